package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/orders/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "trace-1"})

	details := map[string]any{"productId": "sku-1"}
	rr := httptest.NewRecorder()
	WriteError(ctx, rr, NewError("product_unavailable", "out of stock\n", http.StatusUnprocessableEntity).WithDetails(details))
	details["productId"] = "mutated"

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rr.Header().Get("Retry-After") != "" {
		t.Fatalf("expected no Retry-After header")
	}

	var body struct {
		Error     string         `json:"error"`
		Message   string         `json:"message"`
		Status    int            `json:"status"`
		RequestID string         `json:"request_id"`
		TraceID   string         `json:"trace_id"`
		Details   map[string]any `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "product_unavailable" || body.Message != "out of stock" || body.Status != 422 {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if body.RequestID != "req-1" || body.TraceID != "trace-1" {
		t.Fatalf("expected ids from context, got %+v", body)
	}
	if body.Details["productId"] != "sku-1" {
		t.Fatalf("expected copied details, got %v", body.Details)
	}
}

func TestWriteErrorRetryAfterRoundsUp(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, NewError("collaborator_unavailable", "catalog down", http.StatusServiceUnavailable).WithRetryAfter(1500*time.Millisecond))

	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
	if strings.Contains(rr.Body.String(), "request_id") {
		t.Fatalf("expected request_id omitted, got %s", rr.Body.String())
	}
}

func TestNewErrorDefaultsAndLimits(t *testing.T) {
	err := NewError(strings.Repeat("x", 200), "boom", 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 default, got %d", err.Status)
	}
	if len(err.Code) != maxCodeLen {
		t.Fatalf("expected code truncated to %d, got %d", maxCodeLen, len(err.Code))
	}
	if got := err.WithRetryAfter(-time.Second).RetryAfter; got != 0 {
		t.Fatalf("expected negative retry ignored, got %v", got)
	}
}
