// Package httphandler is the HTTP driving adapter exposing the pipeline
// status API.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// StatusProvider is the driving port the handler depends on; satisfied by
// application.StatusService.
type StatusProvider interface {
	GetPipelineStatus(ctx context.Context, prNumber int) (*model.PipelineStatus, error)
}

// Handler serves the status endpoint.
type Handler struct {
	statusSvc StatusProvider
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(statusSvc StatusProvider, logger *slog.Logger) *Handler {
	return &Handler{
		statusSvc: statusSvc,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", h.GetStatus)
	mux.HandleFunc("GET /healthz", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// GetStatus synthesizes and returns the pipeline status for one PR.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	prNumber, err := strconv.Atoi(r.URL.Query().Get("prNumber"))
	if err != nil || prNumber <= 0 {
		writeError(w, http.StatusBadRequest, "prNumber must be a positive integer")
		return
	}

	status, err := h.statusSvc.GetPipelineStatus(r.Context(), prNumber)
	if err != nil {
		h.writeStatusError(w, prNumber, err)
		return
	}

	writeJSON(w, http.StatusOK, toPipelineStatusResponse(status))
}

// writeStatusError maps domain errors to HTTP responses. Upstream 401/403
// are mirrored; everything unexpected is a 500 with a generic body.
func (h *Handler) writeStatusError(w http.ResponseWriter, prNumber int, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "pull request not found")
	case errors.Is(err, model.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "github credentials rejected")
	case errors.Is(err, model.ErrPermission):
		writeError(w, http.StatusForbidden, "github denied access to the repository")
	case errors.Is(err, model.ErrInstallationNotFound):
		h.logger.Error("app installation missing", "pr", prNumber, "error", err)
		writeError(w, http.StatusInternalServerError, "github app is not installed for the configured repository")
	case errors.Is(err, model.ErrConfiguration):
		h.logger.Error("credential configuration invalid", "pr", prNumber, "error", err)
		writeError(w, http.StatusInternalServerError, "server credential configuration is invalid")
	default:
		h.logger.Error("status synthesis failed", "pr", prNumber, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Health returns a simple liveness response for load balancers and pollers.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
