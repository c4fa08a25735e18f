package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/services"
	"github.com/ewilliams-labs/songtagger/internal/logging"
	"github.com/ewilliams-labs/songtagger/internal/worker"
)

// Library is the read side of the local library exposed over HTTP.
type Library interface {
	GetPlaylist(ctx context.Context, id string) (domain.Playlist, error)
	ListPlaylists(ctx context.Context) ([]domain.Playlist, error)
	Tags(ctx context.Context) ([]domain.Tag, error)
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc     *services.Generator // Dependency on the Core Service
	pool    *worker.Pool
	library Library
	logger  *slog.Logger
	router  *http.ServeMux // Standard library router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Generator, pool *worker.Pool, library Library, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:     svc,
		pool:    pool,
		library: library,
		logger:  logger,
		router:  http.NewServeMux(),
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface. Each request carries a
// logger tagged with its method and path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With("method", r.Method, "path", r.URL.Path)
	h.router.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), log)))
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.Handle("GET /metrics", promhttp.Handler())

	// Graph definitions and edits
	h.router.HandleFunc("GET /graphs", h.ListGraphs)
	h.router.HandleFunc("POST /graphs", h.SaveGraph)
	h.router.HandleFunc("GET /graphs/{id}", h.GetGraph)
	h.router.HandleFunc("PATCH /graphs/{id}/nodes/{key}", h.UpdateNode)
	h.router.HandleFunc("POST /graphs/{id}/edges", h.AddEdge)
	h.router.HandleFunc("DELETE /graphs/{id}/edges", h.RemoveEdge)

	// Evaluation
	h.router.HandleFunc("POST /graphs/{id}/run", h.RunGraph)
	h.router.HandleFunc("POST /graphs/{id}/runs", h.SubmitRun)
	h.router.HandleFunc("GET /runs/{id}", h.GetRun)
	h.router.HandleFunc("DELETE /runs/{id}", h.CancelRun)

	// Library
	h.router.HandleFunc("GET /playlists", h.ListPlaylists)
	h.router.HandleFunc("GET /playlists/{id}", h.GetPlaylist)
	h.router.HandleFunc("GET /tags", h.ListTags)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("rest: failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, worker.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("rest: request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}

// decodeBody reads a JSON request body into v. It writes the error response
// itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
