package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/orders/internal/domain"
)

func TestHealthReportAllHealthy(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Minute)
	svc, err := NewHealthService(HealthServiceDeps{
		Checks: []HealthCheck{
			{Name: "store", Check: func(context.Context) error { return nil }},
			{Name: "redis", Check: func(context.Context) error { return nil }},
		},
		Build: BuildInfo{Version: "1.2.0", StartedAt: start},
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewHealthService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.Uptime != time.Minute || report.Version != "1.2.0" {
		t.Fatalf("unexpected metadata %+v", report)
	}
}

func TestHealthReportDegradedOnFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc, err := NewHealthService(HealthServiceDeps{
		Checks: []HealthCheck{
			{Name: "store", Check: func(context.Context) error { return nil }},
			{Name: "redis", Check: func(context.Context) error { return boom }},
		},
	})
	if err != nil {
		t.Fatalf("NewHealthService: %v", err)
	}

	report, _ := svc.HealthReport(context.Background())
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["redis"].Error != boom.Error() {
		t.Fatalf("expected redis error recorded, got %+v", report.Checks["redis"])
	}
}

func TestHealthReportTimeoutIsError(t *testing.T) {
	svc, err := NewHealthService(HealthServiceDeps{
		Checks: []HealthCheck{{
			Name:    "events",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}},
	})
	if err != nil {
		t.Fatalf("NewHealthService: %v", err)
	}

	report, _ := svc.HealthReport(context.Background())
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error, got %s", report.Status)
	}
	if report.Checks["events"].Detail != "timeout" {
		t.Fatalf("expected timeout detail, got %+v", report.Checks["events"])
	}
}

func TestNewHealthServiceRejectsIncompleteCheck(t *testing.T) {
	if _, err := NewHealthService(HealthServiceDeps{Checks: []HealthCheck{{Name: "store"}}}); err == nil {
		t.Fatalf("expected error for check without probe")
	}
}
