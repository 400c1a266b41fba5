// Package events connects the tracker to NATS JetStream: raw playback
// events in, progress-updated events out.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Adityaachaudhary/true-view-progress/internal/interval"
	"github.com/Adityaachaudhary/true-view-progress/internal/tracker"
)

const (
	// SubjectProgressUpdated carries committed progress mutations.
	SubjectProgressUpdated = "progress.updated"

	streamName = "PROGRESS"
)

// ProgressUpdatedEvent is the payload published after every committed
// progress mutation.
type ProgressUpdatedEvent struct {
	EventID        string    `json:"event_id"`
	VideoID        string    `json:"video_id"`
	TotalProgress  float64   `json:"total_progress"`
	WatchedSeconds float64   `json:"watched_seconds"`
	LastPosition   float64   `json:"last_position"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Publisher publishes progress events to NATS JetStream.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// NewPublisher connects to NATS and ensures the PROGRESS stream exists.
// If natsURL is empty, returns a no-op publisher (stub).
func NewPublisher(natsURL string, log *zap.Logger) (*Publisher, error) {
	if natsURL == "" {
		log.Warn("NATS_URL not set, progress events will not be published (stub mode)")
		return &Publisher{log: log}, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	// Create stream if it doesn't exist.
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"progress.>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warn("failed to create NATS stream (may already exist)", zap.Error(err))
	}

	log.Info("NATS publisher initialised", zap.String("stream", streamName))
	return &Publisher{js: js, log: log}, nil
}

// Publish sends a progress event. If JetStream is not configured (stub),
// it logs and returns nil.
func (p *Publisher) Publish(evt ProgressUpdatedEvent) error {
	if p.js == nil {
		p.log.Debug("NATS stub: skipping publish", zap.String("video_id", evt.VideoID))
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(SubjectProgressUpdated, data)
	if err != nil {
		return err
	}

	p.log.Debug("progress event published",
		zap.String("video_id", evt.VideoID),
		zap.Float64("total_progress", evt.TotalProgress),
		zap.Uint64("seq", ack.Sequence),
	)
	return nil
}

// Observer adapts the publisher into a tracker observer. Publish failures
// are logged and never surface into the mutation path.
func (p *Publisher) Observer() tracker.Observer {
	return func(snap tracker.Snapshot) {
		evt := ProgressUpdatedEvent{
			EventID:        uuid.NewString(),
			VideoID:        snap.VideoID,
			TotalProgress:  snap.TotalProgress,
			WatchedSeconds: interval.Total(snap.Intervals),
			LastPosition:   snap.LastPosition,
			UpdatedAt:      snap.UpdatedAt,
		}
		if err := p.Publish(evt); err != nil {
			p.log.Warn("progress publish failed", zap.String("video_id", snap.VideoID), zap.Error(err))
		}
	}
}
