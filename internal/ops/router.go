// Package ops serves the operational HTTP surface: liveness, readiness,
// Prometheus metrics and manual triggers for scheduled tasks.
package ops

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fleetdocs/internal/document/scheduler"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/httputil"
	"fleetdocs/pkg/platform/middleware/metadata"
	"fleetdocs/pkg/platform/middleware/requesttime"
)

const readinessTimeout = 3 * time.Second

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// TaskTrigger runs a scheduled task on demand. Satisfied by scheduler.Runner.
type TaskTrigger interface {
	RunNow(ctx context.Context, name string) (bool, error)
}

type Handler struct {
	checks  map[string]Check
	metrics http.Handler
	tasks   TaskTrigger
	logger  *slog.Logger
}

type Option func(*Handler)

func WithCheck(name string, check Check) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

func WithTaskTrigger(tasks TaskTrigger) Option {
	return func(h *Handler) {
		h.tasks = tasks
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{checks: make(map[string]Check), logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.tasks != nil {
		r.With(metadata.Actor).Post("/tasks/{name}/run", h.handleRunTask)
	}
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readiness{Status: "ready", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) handleRunTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ran, err := h.tasks.RunNow(r.Context(), name)
	if errors.Is(err, scheduler.ErrUnknownTask) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown task"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "manual task run failed", "task", name, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "task failed"))
		return
	}
	status := http.StatusOK
	if !ran {
		status = http.StatusConflict
	}
	httputil.WriteJSON(w, status, map[string]any{"task": name, "ran": ran})
}
