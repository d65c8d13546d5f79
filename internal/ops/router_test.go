package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"fleetdocs/internal/document/scheduler"
	"fleetdocs/internal/platform/metrics"
	"fleetdocs/pkg/requestcontext"
	"fleetdocs/pkg/testutil"
)

type fakeTrigger struct {
	ran    bool
	err    error
	actors []string
}

func (f *fakeTrigger) RunNow(ctx context.Context, name string) (bool, error) {
	f.actors = append(f.actors, requestcontext.ActorID(ctx))
	if name == "export" {
		return false, fmt.Errorf("%w %q", scheduler.ErrUnknownTask, name)
	}
	return f.ran, f.err
}

// =============================================================================
// Ops Router Test Suite
// =============================================================================
// Justification for unit tests: orchestrators act on these status codes.
// A failed dependency must flip readiness without touching liveness.

type RouterSuite struct {
	suite.Suite
	trigger *fakeTrigger
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.trigger = &fakeTrigger{ran: true}
}

func (s *RouterSuite) router(opts ...Option) http.Handler {
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return NewRouter(NewHandler(append(base, opts...)...))
}

func (s *RouterSuite) TestHealthz() {
	r := s.router(WithCheck("db", func(context.Context) error { return errors.New("down") }))
	rr := testutil.DoRequest(r, http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rr.Code, "liveness ignores dependencies")
	s.Equal("ok", testutil.DecodeJSON[map[string]any](s.T(), rr)["status"])
}

func (s *RouterSuite) TestReadyz() {
	s.Run("all checks pass", func() {
		r := s.router(
			WithCheck("postgres", func(context.Context) error { return nil }),
			WithCheck("redis", func(context.Context) error { return nil }),
		)
		rr := testutil.DoRequest(r, http.MethodGet, "/readyz", nil)
		s.Equal(http.StatusOK, rr.Code)
		s.Equal("ready", testutil.DecodeJSON[readiness](s.T(), rr).Status)
	})

	s.Run("one failing check", func() {
		r := s.router(
			WithCheck("postgres", func(context.Context) error { return nil }),
			WithCheck("kafka", func(context.Context) error { return errors.New("no brokers") }),
		)
		rr := testutil.DoRequest(r, http.MethodGet, "/readyz", nil)
		s.Equal(http.StatusServiceUnavailable, rr.Code)
		body := testutil.DecodeJSON[readiness](s.T(), rr)
		s.Equal("not_ready", body.Status)
		s.Equal(map[string]string{"postgres": "ok", "kafka": "unavailable"}, body.Checks)
	})
}

func (s *RouterSuite) TestMetrics() {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncTaskSkipped("sweep")

	rr := testutil.DoRequest(s.router(WithMetricsHandler(metrics.Handler(reg))), http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), `fleetdocs_task_skipped_total{task="sweep"} 1`)
}

func (s *RouterSuite) TestRunTask() {
	s.Run("runs with the calling actor", func() {
		rr := testutil.DoRequest(s.router(WithTaskTrigger(s.trigger)), http.MethodPost, "/tasks/sweep/run",
			map[string]string{"X-Actor-ID": "ops-lead"})
		s.Equal(http.StatusOK, rr.Code)
		s.Equal(true, testutil.DecodeJSON[map[string]any](s.T(), rr)["ran"])
		s.Equal([]string{"ops-lead"}, s.trigger.actors)
	})

	s.Run("lease held elsewhere", func() {
		s.trigger.ran = false
		rr := testutil.DoRequest(s.router(WithTaskTrigger(s.trigger)), http.MethodPost, "/tasks/sweep/run", nil)
		s.Equal(http.StatusConflict, rr.Code)
	})

	s.Run("unknown task", func() {
		rr := testutil.DoRequest(s.router(WithTaskTrigger(s.trigger)), http.MethodPost, "/tasks/export/run", nil)
		testutil.AssertErrorCode(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("task failure hides the cause", func() {
		s.trigger.ran, s.trigger.err = true, errors.New("database unavailable")
		rr := testutil.DoRequest(s.router(WithTaskTrigger(s.trigger)), http.MethodPost, "/tasks/sweep/run", nil)
		s.NotContains(rr.Body.String(), "database unavailable")
		testutil.AssertErrorCode(s.T(), rr, http.StatusInternalServerError, "internal")
	})

	s.Run("not mounted without a trigger", func() {
		rr := testutil.DoRequest(s.router(), http.MethodPost, "/tasks/sweep/run", nil)
		s.Equal(http.StatusNotFound, rr.Code)
	})
}
