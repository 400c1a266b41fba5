package tracker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Adityaachaudhary/true-view-progress/internal/kv"
)

// Registry hands out one tracker per video id, creating it lazily on
// first use. Trackers for different videos are fully independent.
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker

	store kv.Store
	log   *zap.Logger
	opts  []Option
}

func NewRegistry(store kv.Store, log *zap.Logger, opts ...Option) *Registry {
	return &Registry{
		trackers: make(map[string]*Tracker),
		store:    store,
		log:      log,
		opts:     opts,
	}
}

// Get returns the tracker for videoID, constructing it (and loading its
// persisted state) the first time. Duration starts at zero until playback
// events carry it.
func (r *Registry) Get(ctx context.Context, videoID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[videoID]; ok {
		return t
	}
	t := New(ctx, videoID, 0, r.store, r.log, r.opts...)
	r.trackers[videoID] = t
	return t
}
