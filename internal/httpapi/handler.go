package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"club_archive/core-go/internal/archivemap"
	"club_archive/core-go/internal/content"
	"club_archive/core-go/internal/loader"
	"club_archive/core-go/internal/metrics"
)

// Documents serves a venue's full page.
type Documents interface {
	Document(ctx context.Context, slug string) (content.Document, error)
}

type Handler struct {
	log      zerolog.Logger
	sessions *archivemap.Registry
	docs     Documents
	metrics  *metrics.Metrics
}

func NewHandler(log zerolog.Logger, sessions *archivemap.Registry, docs Documents, m *metrics.Metrics) *Handler {
	return &Handler{log: log, sessions: sessions, docs: docs, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/venues", func(r chi.Router) {
				r.Get("/", h.handleListVenues)
				r.Get("/{slug}", h.handleGetVenue)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.handleCreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetSession)
					r.Delete("/", h.handleDeleteSession)
					r.Post("/retry", h.handleRetry)
					r.Post("/filters/toggle", h.handleToggleFilter)
					r.Post("/filters/reset", h.handleResetFilters)
					r.Post("/markers/{slug}/click", h.handleClickMarker)
					r.Post("/clusters/{index}/click", h.handleClickCluster)
					r.Post("/popup/close", h.handleClosePopup)
					r.Post("/events/dragstart", h.handleDragStart)
					r.Post("/events/zoom", h.handleZoom)
					r.Post("/events/resize", h.handleResize)
				})
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReadyZ reports the shared map-provider load. The service is ready
// once the provider has loaded or nothing has asked for it yet.
func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessions.Loader().State()
	if state == loader.StateFailed {
		h.writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "map provider failed to load", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"ready":    true,
		"provider": state,
		"venues":   len(h.sessions.Catalog().Entities),
	})
}

func (h *Handler) handleListVenues(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sessions.Catalog().Entities)
}

func (h *Handler) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if h.docs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "content_unavailable", "content not configured", nil)
		return
	}

	doc, err := h.docs.Document(r.Context(), slug)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "venue not found", nil)
			return
		}
		h.log.Error().Err(err).Str("slug", slug).Msg("load venue document failed")
		h.writeError(w, http.StatusInternalServerError, "content_error", "failed to load venue", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}
