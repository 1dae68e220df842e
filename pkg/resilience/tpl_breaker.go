// Package resilience provides fault tolerance patterns for backing store calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// Errors returned by the breaker.
var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrCallTimeout = errors.New("call timed out")
)

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // trip after this many failures in a row
	FailureRatio        float64       // or when the failure ratio reaches this value
	MinRequests         uint32        // over at least this many requests
	Interval            time.Duration // closed-state counter reset interval
	ResetTimeout        time.Duration // open duration before a half-open trial
	HalfOpenMaxRequests uint32
	CallTimeout         time.Duration

	// IsSuccessful classifies errors that must not count as failures.
	IsSuccessful func(err error) bool
	// OnStateChange is called on every state transition.
	OnStateChange func(name, from, to string)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig(name string) *BreakerConfig {
	return &BreakerConfig{
		Name:                name,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
		Interval:            60 * time.Second,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
		CallTimeout:         5 * time.Second,
	}
}

// Breaker wraps every call to a dependency with a gobreaker circuit breaker
// and a fixed per-call timeout.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewBreaker creates a breaker from cfg. A nil cfg uses the defaults.
func NewBreaker(cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig("default")
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio <= 0 || counts.Requests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
	}
	if cfg.IsSuccessful != nil {
		isSuccessful := cfg.IsSuccessful
		settings.IsSuccessful = func(err error) bool {
			return err == nil || isSuccessful(err)
		}
	}
	if cfg.OnStateChange != nil {
		onChange := cfg.OnStateChange
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onChange(name, from.String(), to.String())
		}
	}

	return &Breaker{
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.CallTimeout,
	}
}

// Execute runs fn under breaker protection. fn receives a context detached from
// the caller's cancellation and bounded by the call timeout. When the circuit
// is open fn is not invoked and the returned error wraps ErrCircuitOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx := context.WithoutCancel(ctx)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, b.timeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		err := fn(callCtx)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrCallTimeout, err)
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.cb.Name(), ErrCircuitOpen)
	}
	return err
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State returns the current state as "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsOpen reports whether calls are currently rejected.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// BreakerStats is a snapshot of breaker counters.
type BreakerStats struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// Stats returns current statistics.
func (b *Breaker) Stats() BreakerStats {
	counts := b.cb.Counts()
	return BreakerStats{
		Name:                 b.cb.Name(),
		State:                b.State(),
		Requests:             counts.Requests,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}
