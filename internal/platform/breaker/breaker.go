package breaker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultWindow         = 30 * time.Second
	defaultCooldown       = 10 * time.Second
	defaultFailureRatio   = 0.5
	defaultMinRequests    = 5
	defaultHalfOpenProbes = 1
)

// ErrOpen is returned instead of calling the collaborator while the breaker is open or its
// half-open probe budget is exhausted.
var ErrOpen = errors.New("breaker: open")

// State mirrors the breaker state machine.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Settings configures a breaker guarding one collaborator.
type Settings struct {
	Name string
	// Window is the period over which request and failure counts accumulate while closed. Counts
	// reset at each boundary rather than sliding.
	Window time.Duration
	// Cooldown is how long the breaker stays open before admitting a half-open probe.
	Cooldown time.Duration
	// FailureRatio trips the breaker once failures/requests reaches it within the window.
	FailureRatio float64
	// MinRequests is the number of requests required in the window before the ratio is evaluated.
	MinRequests uint32
	// HalfOpenProbes caps concurrent calls admitted while half-open.
	HalfOpenProbes uint32
}

// Option customises a Breaker.
type Option func(*Breaker)

// WithLogger routes state changes to the provided logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSuccessClassifier marks errors that should count as successful calls, such as a definitive
// "not found" answer from a healthy collaborator.
func WithSuccessClassifier(fn func(error) bool) Option {
	return func(b *Breaker) {
		b.successful = fn
	}
}

// Breaker is a circuit breaker decorator for collaborator calls.
type Breaker struct {
	name       string
	cb         *gobreaker.CircuitBreaker[any]
	logger     *zap.Logger
	successful func(error) bool
}

// New constructs a breaker. Zero-valued settings fall back to defaults.
func New(settings Settings, opts ...Option) *Breaker {
	b := &Breaker{
		name:   strings.TrimSpace(settings.Name),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.name == "" {
		b.name = "collaborator"
	}

	window := settings.Window
	if window <= 0 {
		window = defaultWindow
	}
	cooldown := settings.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	ratio := settings.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = defaultFailureRatio
	}
	minRequests := settings.MinRequests
	if minRequests == 0 {
		minRequests = defaultMinRequests
	}
	probes := settings.HalfOpenProbes
	if probes == 0 {
		probes = defaultHalfOpenProbes
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        b.name,
		MaxRequests: probes,
		Interval:    window,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: b.isSuccessful,
	})
	return b
}

// Name returns the collaborator name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State reports the current breaker state.
func (b *Breaker) State() State {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Call runs fn through the breaker. While open it returns ErrOpen without invoking fn.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, errors.New("breaker: call function is nil")
	}
	if b == nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	value, _ := result.(T)
	return value, err
}

func (b *Breaker) isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	// the caller gave up; that says nothing about collaborator health
	if errors.Is(err, context.Canceled) {
		return true
	}
	if b.successful != nil {
		return b.successful(err)
	}
	return false
}
