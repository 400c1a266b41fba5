package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Adityaachaudhary/true-view-progress/internal/interval"
)

var (
	// ErrMalformedImport means the document did not parse as an export.
	ErrMalformedImport = errors.New("malformed progress document")
	// ErrVideoMismatch means the document belongs to a different video.
	ErrVideoMismatch = errors.New("progress document is for a different video")
)

// ExportDocument is the portable textual form of tracked progress.
type ExportDocument struct {
	VideoID       string              `json:"videoId"`
	Intervals     []interval.Interval `json:"intervals"`
	LastPosition  float64             `json:"lastPosition"`
	TotalProgress float64             `json:"totalProgress"`
	ExportedAt    time.Time           `json:"exportedAt"`
}

// Export serializes the current state for transfer between installations.
func (t *Tracker) Export() (string, error) {
	t.mu.Lock()
	doc := ExportDocument{
		VideoID:       t.videoID,
		Intervals:     t.intervals,
		LastPosition:  t.lastPosition,
		TotalProgress: t.totalProgress,
		ExportedAt:    time.Now().UTC(),
	}
	if doc.Intervals == nil {
		doc.Intervals = []interval.Interval{}
	}
	t.mu.Unlock()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Import replaces the tracked state with the contents of an export
// document. The document must parse and must carry this tracker's videoId;
// otherwise the current state is left untouched and a sentinel error is
// returned, so cross-video contamination is impossible.
func (t *Tracker) Import(ctx context.Context, data string) error {
	var doc ExportDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	if doc.VideoID == "" {
		return fmt.Errorf("%w: missing videoId", ErrMalformedImport)
	}

	t.mu.Lock()
	if doc.VideoID != t.videoID {
		t.mu.Unlock()
		return ErrVideoMismatch
	}
	t.intervals = interval.Merge(sanitize(doc.Intervals))
	t.lastPosition = doc.LastPosition
	t.recomputeProgress()
	t.updatedAt = time.Now().UTC()
	snap := t.snapshotLocked()
	err := t.persistLocked(ctx)
	t.mu.Unlock()

	t.notify(snap)
	return err
}
