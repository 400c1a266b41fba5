// Package handlers exposes tracked progress over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Adityaachaudhary/true-view-progress/internal/platform/api"
	"github.com/Adityaachaudhary/true-view-progress/internal/platform/httpserver"
	"github.com/Adityaachaudhary/true-view-progress/internal/playback"
)

type eventRequest struct {
	Event    string  `json:"event"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
}

type positionRequest struct {
	Position float64 `json:"position"`
}

// GetProgress returns the normalized progress snapshot for a video.
func GetProgress(reg *playback.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", requestID(r), nil)
			return
		}
		api.WriteJSON(w, http.StatusOK, reg.Tracker(r.Context(), videoID).State())
	}
}

// PostEvent feeds one playback signal into the video's session adapter.
func PostEvent(reg *playback.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", rid, nil)
			return
		}

		var req eventRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if req.Position < 0 {
			api.BadRequest(w, "INVALID_POSITION", "position must not be negative", rid, nil)
			return
		}

		a := reg.Adapter(r.Context(), videoID)
		if req.Duration > 0 {
			a.Tracker().SetDuration(req.Duration)
		}
		if err := a.Dispatch(r.Context(), req.Event, req.Position); err != nil {
			if errors.Is(err, playback.ErrUnknownEvent) {
				api.BadRequest(w, "UNKNOWN_EVENT", "event must be one of play, pause, timeupdate, seeking, ended", rid, map[string]any{"event": req.Event})
				return
			}
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, a.Tracker().State())
	}
}

// PutPosition updates the plain resume point, independent of segment
// accounting.
func PutPosition(reg *playback.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", rid, nil)
			return
		}

		var req positionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}

		tr := reg.Tracker(r.Context(), videoID)
		if err := tr.UpdatePosition(r.Context(), req.Position); err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, tr.State())
	}
}

// ResetProgress clears tracked state and the persisted record.
func ResetProgress(reg *playback.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", rid, nil)
			return
		}
		if err := reg.Tracker(r.Context(), videoID).Reset(r.Context()); err != nil {
			api.Internal(w, rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}
