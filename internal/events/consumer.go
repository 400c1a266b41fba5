package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Adityaachaudhary/true-view-progress/internal/playback"
)

// SubjectPlaybackRaw is the subject players publish their raw timeline
// events to.
const SubjectPlaybackRaw = "playback.raw"

// PlaybackEvent is the payload published by player frontends.
type PlaybackEvent struct {
	EventID  string  `json:"event_id"`
	VideoID  string  `json:"video_id"`
	Event    string  `json:"event"`
	Position float64 `json:"position"`
	// Duration is the media duration when the player knows it; zero
	// otherwise (metadata may not have loaded yet).
	Duration   float64 `json:"duration"`
	ClientTsMs int64   `json:"client_ts_ms"`
}

// StartPlaybackConsumer pull-subscribes to playback.raw and feeds events
// into the per-video adapters. It returns after spawning the fetch loop;
// the loop stops when ctx is cancelled.
func StartPlaybackConsumer(ctx context.Context, nc *nats.Conn, reg *playback.Registry, log *zap.Logger) error {
	js, err := nc.JetStream()
	if err != nil {
		return err
	}

	sub, err := js.PullSubscribe(SubjectPlaybackRaw, "tracker_playback")
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(64, nats.MaxWait(2*time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				log.Warn("playback consumer fetch", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, m := range msgs {
				if err := applyMessage(ctx, reg, m.Data, log); err != nil {
					// Persistence trouble: leave the message for redelivery.
					if nakErr := m.Nak(); nakErr != nil {
						log.Warn("nak failed", zap.Error(nakErr))
					}
					continue
				}
				if err := m.Ack(); err != nil {
					log.Warn("ack failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// applyMessage decodes and applies one raw playback event. Malformed JSON
// and unknown event names are logged and treated as handled; retrying a
// poison message cannot fix it.
func applyMessage(ctx context.Context, reg *playback.Registry, data []byte, log *zap.Logger) error {
	var ev PlaybackEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn("invalid playback event json", zap.Error(err))
		return nil
	}
	if ev.VideoID == "" {
		log.Warn("playback event without video_id", zap.String("event", ev.Event))
		return nil
	}

	a := reg.Adapter(ctx, ev.VideoID)
	if ev.Duration > 0 {
		a.Tracker().SetDuration(ev.Duration)
	}
	if err := a.Dispatch(ctx, ev.Event, ev.Position); err != nil {
		if errors.Is(err, playback.ErrUnknownEvent) {
			log.Warn("unknown playback event name",
				zap.String("video_id", ev.VideoID),
				zap.String("event", ev.Event),
			)
			return nil
		}
		return err
	}
	return nil
}
