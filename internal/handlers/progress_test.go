package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Adityaachaudhary/true-view-progress/internal/kv"
	"github.com/Adityaachaudhary/true-view-progress/internal/playback"
	"github.com/Adityaachaudhary/true-view-progress/internal/tracker"
)

// setupReq builds a request with chi URL params.
func setupReq(method, url, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestReg() *playback.Registry {
	return playback.NewRegistry(tracker.NewRegistry(kv.NewMemory(), zap.NewNop()))
}

func postEvent(t *testing.T, reg *playback.Registry, videoID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := setupReq(http.MethodPost, "/v1/videos/"+videoID+"/events", body,
		map[string]string{"video_id": videoID})
	rr := httptest.NewRecorder()
	PostEvent(reg).ServeHTTP(rr, req)
	return rr
}

func TestPostEvent_PlayPauseFlow(t *testing.T) {
	reg := newTestReg()

	if rr := postEvent(t, reg, "v1", `{"event":"play","position":0,"duration":100}`); rr.Code != http.StatusOK {
		t.Fatalf("play: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr := postEvent(t, reg, "v1", `{"event":"pause","position":30}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var snap tracker.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalProgress != 30 {
		t.Fatalf("expected 30%%, got %v", snap.TotalProgress)
	}
	if len(snap.Intervals) != 1 {
		t.Fatalf("expected 1 interval, got %v", snap.Intervals)
	}
}

func TestPostEvent_UnknownEvent(t *testing.T) {
	rr := postEvent(t, newTestReg(), "v1", `{"event":"buffering","position":5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPostEvent_InvalidJSON(t *testing.T) {
	rr := postEvent(t, newTestReg(), "v1", `{broken`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPostEvent_NegativePosition(t *testing.T) {
	rr := postEvent(t, newTestReg(), "v1", `{"event":"play","position":-3}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetProgress(t *testing.T) {
	reg := newTestReg()
	_ = postEvent(t, reg, "v1", `{"event":"play","position":0,"duration":200}`)
	_ = postEvent(t, reg, "v1", `{"event":"ended","position":50}`)

	req := setupReq(http.MethodGet, "/v1/videos/v1/progress", "", map[string]string{"video_id": "v1"})
	rr := httptest.NewRecorder()
	GetProgress(reg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap tracker.Snapshot
	_ = json.NewDecoder(rr.Body).Decode(&snap)
	if snap.VideoID != "v1" || snap.TotalProgress != 25 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestGetProgress_MissingID(t *testing.T) {
	req := setupReq(http.MethodGet, "/v1/videos//progress", "", nil)
	rr := httptest.NewRecorder()
	GetProgress(newTestReg()).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPutPosition(t *testing.T) {
	reg := newTestReg()
	req := setupReq(http.MethodPut, "/v1/videos/v1/position", `{"position":72.5}`,
		map[string]string{"video_id": "v1"})
	rr := httptest.NewRecorder()
	PutPosition(reg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := reg.Tracker(context.Background(), "v1").State().LastPosition; got != 72.5 {
		t.Fatalf("expected 72.5, got %v", got)
	}
}

func TestResetProgress(t *testing.T) {
	reg := newTestReg()
	_ = postEvent(t, reg, "v1", `{"event":"play","position":0,"duration":100}`)
	_ = postEvent(t, reg, "v1", `{"event":"pause","position":40}`)

	req := setupReq(http.MethodDelete, "/v1/videos/v1/progress", "", map[string]string{"video_id": "v1"})
	rr := httptest.NewRecorder()
	ResetProgress(reg).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	snap := reg.Tracker(context.Background(), "v1").State()
	if len(snap.Intervals) != 0 || snap.TotalProgress != 0 || snap.LastPosition != 0 {
		t.Fatalf("expected cleared state, got %+v", snap)
	}
}

func TestExportImport_RoundTripOverHTTP(t *testing.T) {
	reg := newTestReg()
	_ = postEvent(t, reg, "v1", `{"event":"play","position":10,"duration":100}`)
	_ = postEvent(t, reg, "v1", `{"event":"pause","position":40}`)

	req := setupReq(http.MethodGet, "/v1/videos/v1/progress/export", "", map[string]string{"video_id": "v1"})
	rr := httptest.NewRecorder()
	ExportProgress(reg).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rr.Code)
	}
	doc := rr.Body.String()

	// Import into a fresh registry (same video id).
	reg2 := newTestReg()
	req = setupReq(http.MethodPost, "/v1/videos/v1/progress/import", doc, map[string]string{"video_id": "v1"})
	rr = httptest.NewRecorder()
	ImportProgress(reg2).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	snap := reg2.Tracker(context.Background(), "v1").State()
	if len(snap.Intervals) != 1 || snap.Intervals[0].Start != 10 || snap.Intervals[0].End != 40 {
		t.Fatalf("expected [10,40] after import, got %v", snap.Intervals)
	}
}

func TestImport_WrongVideoConflict(t *testing.T) {
	reg := newTestReg()
	doc := `{"videoId":"other","intervals":[{"start":0,"end":10}],"lastPosition":10,"totalProgress":10,"exportedAt":"2026-01-02T03:04:05Z"}`

	req := setupReq(http.MethodPost, "/v1/videos/v1/progress/import", doc, map[string]string{"video_id": "v1"})
	rr := httptest.NewRecorder()
	ImportProgress(reg).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if n := len(reg.Tracker(context.Background(), "v1").State().Intervals); n != 0 {
		t.Fatalf("rejected import must not change state, got %d intervals", n)
	}
}

func TestImport_Malformed(t *testing.T) {
	req := setupReq(http.MethodPost, "/v1/videos/v1/progress/import", "not json", map[string]string{"video_id": "v1"})
	rr := httptest.NewRecorder()
	ImportProgress(newTestReg()).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
