package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/hanko-field/orders/internal/domain"
)

const defaultHealthCheckTimeout = 1500 * time.Millisecond

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthCheck probes one dependency. A zero Timeout uses the service default.
type HealthCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// HealthServiceDeps bundles the readiness probes and build metadata.
type HealthServiceDeps struct {
	Checks         []HealthCheck
	Build          BuildInfo
	Clock          func() time.Time
	DefaultTimeout time.Duration
}

type healthService struct {
	checks  []HealthCheck
	build   BuildInfo
	clock   func() time.Time
	timeout time.Duration
}

var _ HealthService = (*healthService)(nil)

// NewHealthService validates the probes and returns a service that runs them concurrently.
func NewHealthService(deps HealthServiceDeps) (HealthService, error) {
	for _, check := range deps.Checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health service: check name is required")
		}
		if check.Check == nil {
			return nil, errors.New("health service: check " + check.Name + " has no probe")
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := deps.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	return &healthService{
		checks:  append([]HealthCheck(nil), deps.Checks...),
		build:   build,
		clock:   func() time.Time { return clock().UTC() },
		timeout: timeout,
	}, nil
}

// HealthReport runs every probe and derives the overall status: any error wins, then degraded.
func (s *healthService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	results := make([]domain.SystemHealthCheck, len(s.checks))
	var g errgroup.Group
	for i, check := range s.checks {
		g.Go(func() error {
			results[i] = s.run(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]domain.SystemHealthCheck, len(results))
	for i, check := range s.checks {
		checks[check.Name] = results[i]
	}

	now := s.clock()
	return domain.SystemHealthReport{
		Status:      deriveHealthStatus(checks),
		Version:     s.build.Version,
		CommitSHA:   s.build.CommitSHA,
		Environment: s.build.Environment,
		Uptime:      now.Sub(s.build.StartedAt),
		GeneratedAt: now,
		Checks:      checks,
	}, nil
}

func (s *healthService) run(ctx context.Context, check HealthCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.clock()
	err := check.Check(checkCtx)
	if err == nil {
		err = checkCtx.Err()
	}
	end := s.clock()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
		result.Error = err.Error()
	case errors.Is(err, context.Canceled):
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
		result.Error = err.Error()
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
		result.Error = err.Error()
	}
	return result
}

func deriveHealthStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
