package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"club_archive/core-go/internal/archivemap"
	"club_archive/core-go/internal/filter"
)

type filterToggle struct {
	Facet string `json:"facet"`
	Value string `json:"value"`
}

type zoomChange struct {
	Zoom float64 `json:"zoom"`
}

type resize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) (*archivemap.View, bool) {
	id := chi.URLParam(r, "id")
	v, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", nil)
		return nil, false
	}
	return v, true
}

// writeViewError maps view errors onto the envelope. Provider failures are
// part of the snapshot, so they are returned with it rather than as 5xx.
func (h *Handler) writeViewError(w http.ResponseWriter, v *archivemap.View, err error) {
	if errors.Is(err, archivemap.ErrNotReady) {
		h.writeError(w, http.StatusConflict, "not_ready", "map is not ready", map[string]any{"status": v.Snapshot().Status})
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Create(r.Context())
	if err != nil {
		if errors.Is(err, archivemap.ErrTooManySessions) {
			h.writeError(w, http.StatusServiceUnavailable, "too_many_sessions", "session limit reached", nil)
			return
		}
		h.log.Error().Err(err).Msg("create session failed")
		h.writeError(w, http.StatusInternalServerError, "session_error", "failed to create session", nil)
		return
	}

	// The session starts in the background. ?wait=true holds the response
	// until it has settled; otherwise the client polls the loading snapshot.
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		// On timeout the snapshot still says loading.
		_ = v.Wait(r.Context())
	}
	h.writeJSON(w, http.StatusCreated, v.Snapshot())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	// A failed retry leaves the view in its error state.
	_ = v.Retry(r.Context())
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleToggleFilter(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	var req filterToggle
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	facet, err := filter.ParseFacet(req.Facet)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid facet", map[string]any{"facet": req.Facet})
		return
	}
	if req.Value == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "value is required", nil)
		return
	}

	if err := v.ToggleFilter(r.Context(), facet, req.Value); err != nil {
		h.writeViewError(w, v, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := v.ResetFilters(r.Context()); err != nil {
		h.writeViewError(w, v, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleClickMarker(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	found, err := v.ClickMarker(slug)
	if err != nil {
		h.writeViewError(w, v, err)
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, "not_found", "marker not found", map[string]any{"slug": slug})
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleClickCluster(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid cluster index", nil)
		return
	}
	found, err := v.ClickCluster(index)
	if err != nil {
		h.writeViewError(w, v, err)
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, "not_found", "cluster not found", map[string]any{"index": index})
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleClosePopup(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.ClosePopup()
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleDragStart(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := v.DragStart(); err != nil {
		h.writeViewError(w, v, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleZoom(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req zoomChange
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	if err := v.SetZoom(req.Zoom); err != nil {
		h.writeViewError(w, v, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *Handler) handleResize(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var req resize
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	if req.Width < 0 || req.Height < 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "width and height must not be negative", nil)
		return
	}
	if err := v.Resize(req.Width, req.Height); err != nil {
		h.writeViewError(w, v, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v.Snapshot())
}
