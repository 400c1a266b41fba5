package playback

import (
	"context"
	"sync"

	"github.com/Adityaachaudhary/true-view-progress/internal/tracker"
)

// Registry pairs each video's tracker with its adapter so HTTP handlers
// and the event consumer share one session state per video.
type Registry struct {
	mu       sync.Mutex
	trackers *tracker.Registry
	adapters map[string]*Adapter
}

func NewRegistry(trackers *tracker.Registry) *Registry {
	return &Registry{
		trackers: trackers,
		adapters: make(map[string]*Adapter),
	}
}

// Adapter returns the adapter for videoID, creating tracker and adapter on
// first use.
func (r *Registry) Adapter(ctx context.Context, videoID string) *Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[videoID]; ok {
		return a
	}
	a := New(r.trackers.Get(ctx, videoID))
	r.adapters[videoID] = a
	return a
}

// Tracker is a convenience passthrough for operations that act on tracked
// state directly.
func (r *Registry) Tracker(ctx context.Context, videoID string) *tracker.Tracker {
	return r.Adapter(ctx, videoID).Tracker()
}
