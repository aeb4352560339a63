package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hanko-field/orders/internal/repositories"
)

type counterState struct {
	value int64
	step  int64
	max   *int64
}

// CounterRepository issues monotonic sequences from process memory.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]*counterState
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository returns a repository with no counters configured.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{counters: make(map[string]*counterState)}
}

// Next increments the counter and returns the new value. A zero step uses the configured step.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	counterID = strings.TrimSpace(counterID)
	if counterID == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "step must be positive", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(counterID)
	if step == 0 {
		step = state.step
	}
	next := state.value + step
	if state.max != nil && next > *state.max {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exhausted", counterID), nil)
	}
	state.value = next
	return next, nil
}

// Configure sets the counter's step, ceiling and starting value.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	counterID = strings.TrimSpace(counterID)
	if counterID == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if cfg.Step < 0 {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "step must be positive", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state(counterID)
	if cfg.Step > 0 {
		state.step = cfg.Step
	}
	if cfg.MaxValue != nil {
		limit := *cfg.MaxValue
		state.max = &limit
	}
	if cfg.InitialValue != nil && state.value < *cfg.InitialValue {
		state.value = *cfg.InitialValue
	}
	return nil
}

func (r *CounterRepository) state(counterID string) *counterState {
	state, ok := r.counters[counterID]
	if !ok {
		state = &counterState{step: 1}
		r.counters[counterID] = state
	}
	return state
}
