package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/orders/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxIDLen      = 80
)

// Error is the JSON error envelope written by every handler.
type Error struct {
	Code       string
	Message    string
	Status     int
	RequestID  string
	TraceID    string
	Details    map[string]any
	RetryAfter time.Duration
}

type envelope struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewError builds an error envelope. A zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, maxCodeLen),
		Message: clean(message, maxMessageLen),
		Status:  status,
	}
}

// WithRequestID overrides the request id otherwise taken from the chi middleware.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clean(id, maxIDLen)
	return e
}

// WithTraceID overrides the trace id otherwise taken from the request context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clean(id, maxIDLen)
	return e
}

// WithDetails attaches a copy of details under the "details" key.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = maps.Clone(details)
	return e
}

// WithRetryAfter sets a Retry-After hint, rounded up to whole seconds.
func (e Error) WithRetryAfter(d time.Duration) Error {
	if d > 0 {
		e.RetryAfter = d
	}
	return e
}

// WriteError renders err as JSON, filling request and trace ids from ctx when unset.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	body := envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    err.Status,
		RequestID: err.RequestID,
		TraceID:   err.TraceID,
		Details:   err.Details,
	}
	if body.Status == 0 {
		body.Status = http.StatusInternalServerError
	}
	if body.RequestID == "" {
		body.RequestID = clean(middleware.GetReqID(ctx), maxIDLen)
	}
	if body.TraceID == "" {
		body.TraceID = clean(requestctx.TraceID(ctx), maxIDLen)
	}

	header := w.Header()
	header.Set("Content-Type", "application/json")
	if err.RetryAfter > 0 {
		header.Set("Retry-After", strconv.Itoa(int(math.Ceil(err.RetryAfter.Seconds()))))
	}
	w.WriteHeader(body.Status)
	_ = json.NewEncoder(w).Encode(body)
}

func clean(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
