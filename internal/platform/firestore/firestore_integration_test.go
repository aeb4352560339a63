//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	pconfig "github.com/hanko-field/orders/internal/platform/config"
	pfirestore "github.com/hanko-field/orders/internal/platform/firestore"
)

type sequenceDoc struct {
	Value int64 `firestore:"value"`
}

// emulatorProvider binds to FIRESTORE_EMULATOR_HOST; the repository package covers the
// docker-managed emulator.
func emulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "platform-test",
		EmulatorHost: host,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
}

func TestProviderPingAndTransactions(t *testing.T) {
	provider := emulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := provider.Ping(ctx, "sequences"); err != nil {
		t.Fatalf("ping on empty collection: %v", err)
	}

	repo := pfirestore.NewBaseRepository[sequenceDoc](provider, "sequences")
	if err := repo.Set(ctx, "orders", sequenceDoc{Value: 41}); err != nil {
		t.Fatalf("seed sequence: %v", err)
	}

	bump := func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := repo.DocumentRef(ctx, "orders")
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc sequenceDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		return tx.Set(ref, sequenceDoc{Value: doc.Value + 1})
	}
	if err := provider.RunTransaction(ctx, bump, pfirestore.WithTxAttempts(3)); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	doc, err := repo.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("get sequence: %v", err)
	}
	if doc.Data.Value != 42 {
		t.Fatalf("expected 42, got %d", doc.Data.Value)
	}

	if err := provider.RunTransaction(ctx, bump, pfirestore.WithReadOnly()); err == nil {
		t.Fatalf("expected read-only transaction to reject writes")
	}

	_, err = repo.Get(ctx, "missing")
	var classified interface{ IsNotFound() bool }
	if !errors.As(err, &classified) || !classified.IsNotFound() {
		t.Fatalf("expected not found classification, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := provider.RunTransaction(cancelled, func(context.Context, *firestore.Transaction) error {
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
