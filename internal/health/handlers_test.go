package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-saver/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
	timeouts []time.Duration
}

func (s *stubChecker) PingDB(_ context.Context, timeout time.Duration) error {
	s.timeouts = append(s.timeouts, timeout)
	return s.dbErr
}

func (s *stubChecker) PingRedis(_ context.Context, timeout time.Duration) error {
	s.timeouts = append(s.timeouts, timeout)
	return s.redisErr
}

func ready(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyPingsDependencies(t *testing.T) {
	cases := []struct {
		name    string
		checker *stubChecker
		status  int
		db      string
		redis   string
	}{
		{"all up", &stubChecker{}, http.StatusOK, "ok", "ok"},
		{"postgres down", &stubChecker{dbErr: errors.New("db down")}, http.StatusServiceUnavailable, "db down", "ok"},
		{"redis down", &stubChecker{redisErr: errors.New("redis down")}, http.StatusServiceUnavailable, "ok", "redis down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := ready(t, health.Handler{Checker: tc.checker, DBTimeout: 50 * time.Millisecond, RedisTimeout: 20 * time.Millisecond})
			require.Equal(t, tc.status, code)
			require.Equal(t, tc.db, body["db"])
			require.Equal(t, tc.redis, body["redis"])
			require.Equal(t, []time.Duration{50 * time.Millisecond, 20 * time.Millisecond}, tc.checker.timeouts)
		})
	}
}

func TestReadyDefaultTimeouts(t *testing.T) {
	checker := &stubChecker{}
	code, _ := ready(t, health.Handler{Checker: checker})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []time.Duration{500 * time.Millisecond, 300 * time.Millisecond}, checker.timeouts)
}

func TestReadyWhileDraining(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	checker := &stubChecker{}

	health.SetReady(false)
	code, body := ready(t, health.Handler{Checker: checker})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", body["status"])
	require.Empty(t, checker.timeouts, "draining must not ping dependencies")

	health.SetReady(true)
	code, _ = ready(t, health.Handler{Checker: checker})
	require.Equal(t, http.StatusOK, code)
}

func TestReadyReportsCatalogBreaker(t *testing.T) {
	code, body := ready(t, health.Handler{Checker: &stubChecker{}, CatalogState: func() string { return "open" }})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "open", body["catalog"])
}

func TestReadyWithoutChecker(t *testing.T) {
	code, body := ready(t, health.Handler{})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unconfigured", body["status"])
}
