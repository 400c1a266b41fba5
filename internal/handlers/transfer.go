package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Adityaachaudhary/true-view-progress/internal/platform/api"
	"github.com/Adityaachaudhary/true-view-progress/internal/playback"
	"github.com/Adityaachaudhary/true-view-progress/internal/tracker"
)

// ExportProgress returns the portable progress document for a video.
func ExportProgress(reg *playback.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", rid, nil)
			return
		}
		doc, err := reg.Tracker(r.Context(), videoID).Export()
		if err != nil {
			api.Internal(w, rid)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc))
	}
}

// ImportProgress replaces a video's state with an uploaded export
// document. Documents for a different video are rejected with 409 and
// unparseable ones with 400; in both cases state is untouched.
func ImportProgress(reg *playback.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := requestID(r)
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", rid, nil)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			api.BadRequest(w, "INVALID_BODY", "could not read request body", rid, nil)
			return
		}

		tr := reg.Tracker(r.Context(), videoID)
		switch err := tr.Import(r.Context(), string(body)); {
		case err == nil:
			api.WriteJSON(w, http.StatusOK, tr.State())
		case errors.Is(err, tracker.ErrVideoMismatch):
			api.Conflict(w, "VIDEO_MISMATCH", "document belongs to a different video", rid, nil)
		case errors.Is(err, tracker.ErrMalformedImport):
			api.BadRequest(w, "INVALID_IMPORT", "not a valid progress document", rid, nil)
		default:
			api.Internal(w, rid)
		}
	}
}
