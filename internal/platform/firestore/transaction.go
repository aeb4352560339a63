package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// TxFunc is the body of a transaction. Firestore may call it more than once on contention.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes RunTransaction.
type TxOption func(*txOptions)

type txOptions struct {
	op       string
	attempts int
	timeout  time.Duration
	readOnly bool
}

// WithTxAttempts caps how many times Firestore retries an aborted transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(o *txOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction, retries included. It never extends a tighter caller deadline.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(o *txOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithReadOnly runs the transaction as a consistent snapshot; writes inside it fail.
func WithReadOnly() TxOption {
	return func(o *txOptions) { o.readOnly = true }
}

// WithTxOperation names the operation in wrapped errors, e.g. "orders.update".
func WithTxOperation(op string) TxOption {
	return func(o *txOptions) { o.op = op }
}

// RunTransaction runs fn in a transaction on client. Errors returned by fn that already carry
// repository classification pass through untouched; everything else is folded by WrapError.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	o := txOptions{op: "transaction", attempts: 5, timeout: 15 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	switch {
	case client == nil:
		return WrapError(o.op, errors.New("firestore: client is nil"))
	case fn == nil:
		return WrapError(o.op, errors.New("firestore: transaction function is nil"))
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > o.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	fsOpts := []firestore.TransactionOption{firestore.MaxAttempts(o.attempts)}
	if o.readOnly {
		fsOpts = append(fsOpts, firestore.ReadOnly)
	}

	err := client.RunTransaction(ctx, fn, fsOpts...)
	var classified interface{ IsConflict() bool }
	if err == nil || errors.As(err, &classified) {
		return err
	}
	return WrapError(o.op, err)
}
