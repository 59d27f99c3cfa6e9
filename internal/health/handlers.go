package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/grocery-saver/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness flag. The server clears it when draining so
// load balancers stop routing new quotes before connections close.
func SetReady(v bool) { ready.Store(v) }

// IsReady reports the current readiness flag.
func IsReady() bool { return ready.Load() }

// Checker represents dependencies pinged for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
	// CatalogState reports the catalog circuit breaker under "catalog". It
	// never fails readiness.
	CatalogState func() string
}

const (
	defaultDBTimeout    = 500 * time.Millisecond
	defaultRedisTimeout = 300 * time.Millisecond
)

type dependency struct {
	name    string
	timeout time.Duration
	ping    func(context.Context, time.Duration) error
}

// Live always answers ok while the process serves HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready answers 503 while draining or when postgres or redis fail their ping.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !IsReady() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unconfigured"})
		return
	}

	deps := []dependency{
		{name: "db", timeout: orDefault(h.DBTimeout, defaultDBTimeout), ping: h.Checker.PingDB},
		{name: "redis", timeout: orDefault(h.RedisTimeout, defaultRedisTimeout), ping: h.Checker.PingRedis},
	}
	report := make(map[string]string, len(deps)+1)
	code := http.StatusOK
	for _, p := range deps {
		if err := p.ping(r.Context(), p.timeout); err != nil {
			report[p.name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		report[p.name] = "ok"
	}
	if h.CatalogState != nil {
		report["catalog"] = h.CatalogState()
	}
	common.JSON(w, code, report)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
