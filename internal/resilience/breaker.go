// Package resilience guards calls to flaky dependencies.
package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/grocery-saver/internal/obs"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all calls and tracks failures.
	Closed State = iota
	// Open rejects calls until the cool-off period expires.
	Open
	// HalfOpen lets a single trial call through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings configure a Breaker.
type Settings struct {
	// Name labels metrics and logs.
	Name string
	// MinRequests is the sample size before the failure ratio is evaluated.
	MinRequests int
	// FailureRatio opens the circuit once reached.
	FailureRatio float64
	// OpenFor is the cool-off before a half-open trial call.
	OpenFor time.Duration
	// IsFailure classifies call errors. Nil counts every error except
	// context cancellation by the caller.
	IsFailure func(error) bool
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Breaker is a failure-ratio circuit breaker.
type Breaker struct {
	mu       sync.Mutex
	cfg      Settings
	state    State
	failures int
	total    int
	openedAt time.Time
	trialing bool
}

// NewBreaker constructs a closed breaker, defaulting unset thresholds.
func NewBreaker(cfg Settings) *Breaker {
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 1
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.FailureRatio > 1 {
		cfg.FailureRatio = 1
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	b := &Breaker{cfg: cfg, state: Closed}
	obs.SetBreakerState(cfg.Name, int(Closed))
	return b
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the circuit is open and records its outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	trial, ok := b.acquire(ctx)
	if !ok {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || !b.cfg.IsFailure(err)) {
		b.release(trial)
		return err
	}
	b.report(ctx, trial, err == nil)
	return err
}

func (b *Breaker) acquire(ctx context.Context) (trial bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false, false
		}
		b.transitionLocked(ctx, HalfOpen)
		b.trialing = true
		return true, true
	case HalfOpen:
		if b.trialing {
			return false, false
		}
		b.trialing = true
		return true, true
	default:
		return false, true
	}
}

func (b *Breaker) release(trial bool) {
	if !trial {
		return
	}
	b.mu.Lock()
	b.trialing = false
	b.mu.Unlock()
}

func (b *Breaker) report(ctx context.Context, trial, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialing = false
		if b.state != HalfOpen {
			return
		}
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}
	if b.state != Closed {
		return
	}

	b.total++
	if !success {
		b.failures++
	}
	if b.total < b.cfg.MinRequests {
		return
	}
	if float64(b.failures)/float64(b.total) >= b.cfg.FailureRatio {
		b.transitionLocked(ctx, Open)
		return
	}
	// Halve the sample once it doubles so old successes do not mask a new outage.
	if b.total >= b.cfg.MinRequests*2 {
		b.total /= 2
		b.failures /= 2
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.failures, b.total = 0, 0
	switch next {
	case Open:
		b.openedAt = b.cfg.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	obs.SetBreakerState(b.cfg.Name, int(next))
	obs.ObserveBreakerTransition(b.cfg.Name, prev.String(), next.String())

	evt := b.cfg.Logger.Warn()
	if next == Closed {
		evt = b.cfg.Logger.Info()
	}
	evt = evt.Str("target", b.cfg.Name).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}
