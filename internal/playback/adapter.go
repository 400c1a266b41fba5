// Package playback binds raw player signals to the progress tracker.
// The adapter holds no durable state and may be rebuilt at any time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Adityaachaudhary/true-view-progress/internal/tracker"
)

// Player event names as they arrive over the wire.
const (
	EventPlay       = "play"
	EventPause      = "pause"
	EventTimeUpdate = "timeupdate"
	EventSeeking    = "seeking"
	EventEnded      = "ended"
)

// ErrUnknownEvent is returned by Dispatch for event names outside the
// five playback signals.
var ErrUnknownEvent = errors.New("unknown playback event")

// seekJumpSeconds is the largest position change one timeupdate tick can
// plausibly carry during normal playback. Bigger jumps are seeks that the
// player never announced.
const seekJumpSeconds = 1.0

// Adapter translates play/pause/timeupdate/seeking/ended into tracker
// calls for a single video.
type Adapter struct {
	mu       sync.Mutex
	tr       *tracker.Tracker
	playing  bool
	lastTick float64
	hasTick  bool
}

func New(tr *tracker.Tracker) *Adapter {
	return &Adapter{tr: tr}
}

// Tracker exposes the bound tracker for reads and direct operations
// (reset, export, import) that bypass the event vocabulary.
func (a *Adapter) Tracker() *tracker.Tracker {
	return a.tr
}

// Play opens a tracking session at pos.
func (a *Adapter) Play(_ context.Context, pos float64) error {
	a.mu.Lock()
	a.playing = true
	a.lastTick = pos
	a.hasTick = true
	a.mu.Unlock()
	a.tr.StartTracking(pos)
	return nil
}

// Pause closes the session, committing whatever was watched.
func (a *Adapter) Pause(ctx context.Context, pos float64) error {
	a.mu.Lock()
	a.playing = false
	a.lastTick = pos
	a.hasTick = true
	a.mu.Unlock()
	return a.tr.StopTracking(ctx, pos)
}

// TimeUpdate records the position. A jump beyond what one tick of playback
// can cover is an implicit seek: some players only emit timeupdate when the
// user drags the scrubber, so it gets the same stop/restart treatment as an
// announced seek.
func (a *Adapter) TimeUpdate(ctx context.Context, pos float64) error {
	a.mu.Lock()
	implicitSeek := a.playing && a.hasTick && math.Abs(pos-a.lastTick) > seekJumpSeconds
	a.lastTick = pos
	a.hasTick = true
	playing := a.playing
	a.mu.Unlock()

	if implicitSeek {
		if err := a.tr.HandleSeek(ctx, pos); err != nil {
			return err
		}
		if playing {
			a.tr.StartTracking(pos)
		}
		return nil
	}
	return a.tr.UpdatePosition(ctx, pos)
}

// Seeking handles an announced seek to dest. Coverage is credited only up
// to the pre-seek position; if playback is running the next segment is
// anchored at the destination.
func (a *Adapter) Seeking(ctx context.Context, dest float64) error {
	a.mu.Lock()
	a.lastTick = dest
	a.hasTick = true
	playing := a.playing
	a.mu.Unlock()

	if err := a.tr.HandleSeek(ctx, dest); err != nil {
		return err
	}
	if playing {
		a.tr.StartTracking(dest)
	}
	return nil
}

// Ended commits the final segment and leaves the session closed.
func (a *Adapter) Ended(ctx context.Context, pos float64) error {
	a.mu.Lock()
	a.playing = false
	a.lastTick = pos
	a.hasTick = true
	a.mu.Unlock()
	return a.tr.StopTracking(ctx, pos)
}

// Dispatch routes a named event to the matching handler.
func (a *Adapter) Dispatch(ctx context.Context, event string, pos float64) error {
	switch event {
	case EventPlay:
		return a.Play(ctx, pos)
	case EventPause:
		return a.Pause(ctx, pos)
	case EventTimeUpdate:
		return a.TimeUpdate(ctx, pos)
	case EventSeeking:
		return a.Seeking(ctx, pos)
	case EventEnded:
		return a.Ended(ctx, pos)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}
