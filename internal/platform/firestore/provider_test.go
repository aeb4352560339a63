package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/hanko-field/orders/internal/platform/config"
)

func TestProviderRequiresProjectID(t *testing.T) {
	t.Setenv(envGoogleProjectID, "")
	provider := NewProvider(config.FirestoreConfig{})
	if _, err := provider.Client(context.Background()); err == nil {
		t.Fatalf("expected missing project id error")
	}
}

func TestProviderReusesClientAndCloses(t *testing.T) {
	t.Setenv(envEmulatorHost, "")
	provider := NewProvider(config.FirestoreConfig{ProjectID: "orders-test", EmulatorHost: "127.0.0.1:1"})

	first, err := provider.Client(context.Background())
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	second, err := provider.Client(context.Background())
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if first != second {
		t.Fatalf("expected the client to be shared")
	}

	if err := provider.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := provider.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := provider.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
}

func TestProviderCloseWithoutClient(t *testing.T) {
	var nilProvider *Provider
	if err := nilProvider.Close(context.Background()); err != nil {
		t.Fatalf("nil provider close: %v", err)
	}
	if err := NewProvider(config.FirestoreConfig{}).Close(context.Background()); err != nil {
		t.Fatalf("close before init: %v", err)
	}
}
