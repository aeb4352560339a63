package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind uint8

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// Error satisfies repositories.RepositoryError so services can classify store failures without
// importing gRPC.
type Error struct {
	op   string
	kind errorKind
	err  error
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports a missing document.
func (e *Error) IsNotFound() bool { return e != nil && e.kind == kindNotFound }

// IsConflict reports a write that lost a race or failed a precondition, such as a stale order version.
func (e *Error) IsConflict() bool { return e != nil && e.kind == kindConflict }

// IsUnavailable reports an outage worth retrying.
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

func kindOf(code codes.Code) errorKind {
	switch code {
	case codes.NotFound:
		return kindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return kindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return kindUnavailable
	default:
		return kindOther
	}
}

// ConflictError builds a conflict the repository detected itself. A nil err gets a generic message.
func ConflictError(op string, err error) error {
	if err == nil {
		err = errors.New("firestore: conflict")
	}
	return &Error{op: op, kind: kindConflict, err: err}
}

// NotFoundError builds a not-found the repository detected itself. A nil err gets a generic message.
func NotFoundError(op string, err error) error {
	if err == nil {
		err = errors.New("firestore: not found")
	}
	return &Error{op: op, kind: kindNotFound, err: err}
}

// WrapError classifies err by its gRPC status. Cancellation and deadline errors come back as the
// plain context sentinels, and an already classified *Error keeps its kind.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.op == "" {
			existing.op = op
		}
		return existing
	}
	return &Error{op: op, kind: kindOf(status.Code(err)), err: err}
}
