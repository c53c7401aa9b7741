package filmsync

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"filmsync/internal/timeline"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the film-room engine to the web client using go-chi. The
// wire surface is a thin adapter: every request is translated into one
// in-process engine operation, and the client polls session state to drain
// the control commands the engine issued against its mirrored surfaces.
// Engine-level metrics are recorded by the engines themselves via the
// manager's engine options.
type Handler struct {
	manager *Manager
	library *timeline.Library
	log     *slog.Logger
}

// NewHandler returns a Handler that uses the given Manager, Library and Logger.
func NewHandler(manager *Manager, library *timeline.Library, log *slog.Logger) *Handler {
	return &Handler{manager: manager, library: library, log: log}
}

// Routes mounts the handler's endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/timeline", h.ReplaceTimeline)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Delete("/", h.DeleteSession)
		r.Post("/switch", h.Switch)
		r.Post("/seek", h.Seek)
		r.Route("/events", func(r chi.Router) {
			r.Post("/metadata", h.MetadataEvent)
			r.Post("/ready", h.ReadyEvent)
			r.Post("/time", h.TimeEvent)
		})
	})
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type stateResponse struct {
	Snapshot
	Commands map[timeline.VideoID][]SurfaceCommand `json:"commands,omitempty"`
}

type switchRequest struct {
	VideoID timeline.VideoID `json:"video_id"`
	// PositionMs is optional; when absent the switch keeps the currently
	// tracked position.
	PositionMs *int64 `json:"position_ms"`
}

type seekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

type metadataEvent struct {
	VideoID    timeline.VideoID `json:"video_id"`
	OffsetMs   int64            `json:"offset_ms"`
	DurationMs int64            `json:"duration_ms"`
}

type readyEvent struct {
	VideoID    timeline.VideoID `json:"video_id"`
	ReadyState int              `json:"ready_state"`
}

type timeEvent struct {
	VideoID timeline.VideoID `json:"video_id"`
	Seconds float64          `json:"seconds"`
	Paused  bool             `json:"paused"`
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID})
}

// DeleteSession handles DELETE /sessions/{session_id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.manager.Delete(chi.URLParam(r, "session_id"))
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /sessions/{session_id}/state. Besides the engine
// snapshot it drains the commands the engine queued for the host player.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp := stateResponse{
		Snapshot: s.Engine.Snapshot(),
		Commands: s.Surfaces.DrainAllCommands(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// Switch handles POST /sessions/{session_id}/switch.
// Body: { "video_id": "rec-17", "position_ms": 130000 }.
func (h *Handler) Switch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	target := AtCurrentPosition
	if req.PositionMs != nil {
		target = *req.PositionMs
	}
	accepted := s.Engine.RequestSwitch(req.VideoID, target)
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

// Seek handles POST /sessions/{session_id}/seek.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.Engine.Seek(req.PositionMs)
	w.WriteHeader(http.StatusOK)
}

// MetadataEvent handles POST /sessions/{session_id}/events/metadata: the
// host reporting a surface's real offset/duration once its metadata loaded.
func (h *Handler) MetadataEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var ev metadataEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.VideoID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.Engine.OnOffsetMetadataAvailable(ev.VideoID, ev.OffsetMs, ev.DurationMs)
	w.WriteHeader(http.StatusOK)
}

// ReadyEvent handles POST /sessions/{session_id}/events/ready.
func (h *Handler) ReadyEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var ev readyEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.VideoID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.Surfaces.Mirror(ev.VideoID).SetReadyState(ReadyState(ev.ReadyState))
	s.Engine.OnSurfaceReady(ev.VideoID)
	w.WriteHeader(http.StatusOK)
}

// TimeEvent handles POST /sessions/{session_id}/events/time: ambient
// "current time changed" notifications from the host player.
func (h *Handler) TimeEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var ev timeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.VideoID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	mirror := s.Surfaces.Mirror(ev.VideoID)
	mirror.SetCurrentTime(ev.Seconds)
	mirror.SetPaused(ev.Paused)
	s.Engine.OnTimeUpdate(ev.VideoID, ev.Seconds)
	w.WriteHeader(http.StatusOK)
}

// ReplaceTimeline handles POST /timeline: the upload pipeline replacing the
// lane snapshot wholesale. Open sessions are refreshed, which also retries
// their deferred switches.
func (h *Handler) ReplaceTimeline(w http.ResponseWriter, r *http.Request) {
	var t timeline.Timeline
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.log.Debug("invalid timeline body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.library.Replace(t); err != nil {
		h.log.Info("timeline rejected", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	h.manager.RefreshTimelines()
	h.log.Info("timeline replaced",
		slog.Int("lanes", len(t.Lanes)),
		slog.Int64("total_duration_ms", t.TotalDurationMs))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "session_id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	s, ok := h.manager.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
