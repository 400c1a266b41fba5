// Package tracker owns the watched coverage and derived progress for one
// video. All interval commits, persistence and observer notification flow
// through it; nothing else mutates progress state.
package tracker

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Adityaachaudhary/true-view-progress/internal/interval"
	"github.com/Adityaachaudhary/true-view-progress/internal/kv"
)

// minSegmentSeconds is the smallest segment worth committing. Anything
// shorter is pause/resume jitter, not watching.
const minSegmentSeconds = 1.0

const keyPrefix = "video-progress:"

// progressKey derives the storage key for a video deterministically.
func progressKey(videoID string) string {
	return keyPrefix + videoID
}

// persistedRecord is the durable mirror written on every committed change.
// Progress percentage is derived state and deliberately not stored.
type persistedRecord struct {
	Intervals []interval.Interval `json:"intervals"`
	LastPos   float64             `json:"lastPos"`
}

// Snapshot is a read-only copy of the tracker state. Intervals is always
// normalized.
type Snapshot struct {
	VideoID       string              `json:"videoId"`
	Intervals     []interval.Interval `json:"intervals"`
	LastPosition  float64             `json:"lastPosition"`
	TotalProgress float64             `json:"totalProgress"`
	Duration      float64             `json:"duration"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// session is the Tracking state of the two-state machine; a nil *session
// on the tracker means Idle. anchor is where the open segment began.
type session struct {
	anchor float64
}

// Observer is invoked synchronously after every committed mutation.
type Observer func(Snapshot)

// Tracker accumulates watched intervals for a single video and derives an
// honest percent-watched from merged coverage rather than elapsed time.
type Tracker struct {
	mu sync.Mutex

	videoID       string
	duration      float64
	intervals     []interval.Interval
	lastPosition  float64
	totalProgress float64
	updatedAt     time.Time
	sess          *session

	store    kv.Store
	log      *zap.Logger
	onUpdate Observer
}

// Option customises a tracker at construction.
type Option func(*Tracker)

// WithObserver sets the update callback. A single callback, invoked
// in-line; there is no fan-out.
func WithObserver(fn Observer) Option {
	return func(t *Tracker) { t.onUpdate = fn }
}

// New builds a tracker for videoID, loading any prior persisted state.
// A missing record and an unparseable one both resolve to empty initial
// state; the two cases are kept apart in the logs.
func New(ctx context.Context, videoID string, duration float64, store kv.Store, log *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		videoID:  videoID,
		duration: duration,
		store:    store,
		log:      log.With(zap.String("video_id", videoID)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.load(ctx)
	t.recomputeProgress()
	return t
}

func (t *Tracker) load(ctx context.Context) {
	raw, found, err := t.store.Get(ctx, progressKey(t.videoID))
	if err != nil {
		t.log.Warn("progress load failed, starting fresh", zap.Error(err))
		return
	}
	if !found {
		t.log.Debug("no prior progress")
		return
	}

	var rec persistedRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.log.Warn("corrupt persisted progress, starting fresh", zap.Error(err))
		return
	}
	t.intervals = interval.Merge(sanitize(rec.Intervals))
	t.lastPosition = rec.LastPos
	t.updatedAt = time.Now().UTC()
}

// sanitize drops inverted intervals so a bad record cannot poison the
// merged set. Valid entries pass through untouched.
func sanitize(in []interval.Interval) []interval.Interval {
	out := in[:0:0]
	for _, iv := range in {
		if iv.End >= iv.Start {
			out = append(out, iv)
		}
	}
	return out
}

// VideoID returns the stable id this tracker is bound to.
func (t *Tracker) VideoID() string {
	return t.videoID
}

// SetDuration updates the media duration and recomputes progress without
// touching intervals. Duration commonly arrives after construction, once
// the media source has loaded metadata.
func (t *Tracker) SetDuration(d float64) {
	t.mu.Lock()
	t.duration = d
	t.recomputeProgress()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
}

// StartTracking opens a session anchored at pos. Calling it while a
// session is already active is a no-op, so redundant play events cannot
// produce overlapping segments.
func (t *Tracker) StartTracking(pos float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil {
		return
	}
	t.sess = &session{anchor: pos}
	t.lastPosition = pos
}

// Tracking reports whether a session is currently open.
func (t *Tracker) Tracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess != nil
}

// StopTracking closes the session, committing the segment between the
// anchor and pos when it spans at least one second. Sub-second segments
// are discarded as noise. The session is closed either way.
func (t *Tracker) StopTracking(ctx context.Context, pos float64) error {
	t.mu.Lock()
	if t.sess == nil {
		t.mu.Unlock()
		return nil
	}
	anchor := t.sess.anchor
	t.sess = nil
	t.lastPosition = pos

	if math.Abs(pos-anchor) < minSegmentSeconds {
		err := t.persistLocked(ctx)
		t.mu.Unlock()
		return err
	}

	t.commitLocked(math.Min(anchor, pos), math.Max(anchor, pos))
	snap := t.snapshotLocked()
	err := t.persistLocked(ctx)
	t.mu.Unlock()
	t.notify(snap)
	return err
}

// HandleSeek force-closes any open session against the last position known
// before the jump, never the destination: watched time is credited only up
// to where the viewer actually was. The destination becomes the new last
// position unconditionally.
func (t *Tracker) HandleSeek(ctx context.Context, dest float64) error {
	t.mu.Lock()
	committed := false
	if t.sess != nil {
		anchor := t.sess.anchor
		pre := t.lastPosition
		t.sess = nil
		if math.Abs(pre-anchor) >= minSegmentSeconds {
			t.commitLocked(math.Min(anchor, pre), math.Max(anchor, pre))
			committed = true
		}
	}
	t.lastPosition = dest
	var snap Snapshot
	if committed {
		snap = t.snapshotLocked()
	}
	err := t.persistLocked(ctx)
	t.mu.Unlock()
	if committed {
		t.notify(snap)
	}
	return err
}

// UpdatePosition records the resume point. No session is required and
// intervals are unaffected.
func (t *Tracker) UpdatePosition(ctx context.Context, pos float64) error {
	t.mu.Lock()
	t.lastPosition = pos
	err := t.persistLocked(ctx)
	t.mu.Unlock()
	return err
}

// Reset clears all tracked state and deletes the persisted record.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	t.intervals = nil
	t.lastPosition = 0
	t.totalProgress = 0
	t.sess = nil
	t.updatedAt = time.Now().UTC()
	err := t.store.Delete(ctx, progressKey(t.videoID))
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(snap)
	return err
}

// Progress returns the current derived percentage in [0, 100].
func (t *Tracker) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalProgress
}

// State returns a read-only snapshot of the tracker.
func (t *Tracker) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// commitLocked merges [from, to] into the interval set and recomputes
// progress. Caller holds the lock and has validated the segment.
func (t *Tracker) commitLocked(from, to float64) {
	t.intervals = interval.Merge(append(t.intervals, interval.Interval{Start: from, End: to}))
	t.recomputeProgress()
	t.updatedAt = time.Now().UTC()
}

// recomputeProgress derives the percentage from merged coverage. With no
// usable duration the previous value is kept; an unset duration must never
// zero out progress or divide by zero.
func (t *Tracker) recomputeProgress() {
	if t.duration <= 0 {
		return
	}
	t.totalProgress = math.Min(100, interval.Total(t.intervals)/t.duration*100)
}

func (t *Tracker) persistLocked(ctx context.Context) error {
	rec := persistedRecord{Intervals: t.intervals, LastPos: t.lastPosition}
	if rec.Intervals == nil {
		rec.Intervals = []interval.Interval{}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := t.store.Set(ctx, progressKey(t.videoID), string(raw)); err != nil {
		t.log.Warn("progress persist failed", zap.Error(err))
		return err
	}
	return nil
}

func (t *Tracker) snapshotLocked() Snapshot {
	intervals := make([]interval.Interval, len(t.intervals))
	copy(intervals, t.intervals)
	return Snapshot{
		VideoID:       t.videoID,
		Intervals:     intervals,
		LastPosition:  t.lastPosition,
		TotalProgress: t.totalProgress,
		Duration:      t.duration,
		UpdatedAt:     t.updatedAt,
	}
}

func (t *Tracker) notify(snap Snapshot) {
	if t.onUpdate != nil {
		t.onUpdate(snap)
	}
}
