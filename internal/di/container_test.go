package di

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/orders/internal/domain"
	"github.com/hanko-field/orders/internal/platform/config"
	"github.com/hanko-field/orders/internal/repositories/memory"
	"github.com/hanko-field/orders/internal/services"
)

type fakeCatalog struct{}

func (fakeCatalog) GetProduct(_ context.Context, productID string) (services.Product, error) {
	if productID == "missing" {
		return services.Product{}, services.ErrProductNotFound
	}
	return services.Product{ID: productID, Name: "Widget", Price: decimal.RequireFromString("10.00")}, nil
}

type fakeInventory struct{}

func (fakeInventory) CheckAvailability(context.Context, string, int64) (bool, error) {
	return true, nil
}

type mapStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverMemory},
		Cache:  config.CacheConfig{TTL: time.Minute, KeyPrefix: "order:"},
		Events: config.EventsConfig{Driver: config.EventsDriverNone},
		Breaker: config.BreakerConfig{
			Window:         30 * time.Second,
			Cooldown:       10 * time.Second,
			FailureRatio:   0.5,
			MinRequests:    5,
			HalfOpenProbes: 1,
		},
		Pricing: config.PricingConfig{
			DiscountRate: decimal.RequireFromString("0.10"),
			TaxRate:      decimal.RequireFromString("0.20"),
			ShippingCost: decimal.RequireFromString("5.00"),
		},
		Gateway: config.GatewayConfig{Concurrency: 2},
	}
}

func TestNewContainerWiresOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	store := &mapStore{values: map[string][]byte{}}
	publisher := &recordingPublisher{}

	container, err := NewContainer(ctx, testConfig(),
		WithRegistry(memory.NewRegistry()),
		WithCollaborators(fakeCatalog{}, fakeInventory{}),
		WithCacheStore(store),
		WithEventPublisher(publisher),
		WithBuildInfo(services.BuildInfo{Version: "test"}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer func() {
		_ = container.Close(ctx)
	}()

	created, err := container.Orders.CreateOrder(ctx, services.CreateOrderCommand{
		CustomerID:      "cust_1",
		ShippingAddress: "1 Main St",
		PaymentMethod:   domain.PaymentMethodCreditCard,
		Source:          domain.OrderSourceWebsite,
		Items:           []services.RequestedItem{{ProductID: "p1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if created.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", created.Status)
	}

	if _, ok, _ := store.Get(ctx, "order:"+created.ID); !ok {
		t.Fatalf("expected created order to be cached")
	}

	fetched, err := container.Orders.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !fetched.TotalAmount.Equal(created.TotalAmount) {
		t.Fatalf("expected total %s, got %s", created.TotalAmount, fetched.TotalAmount)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.events) != 1 || publisher.events[0].Type != services.OrderEventCreated {
		t.Fatalf("expected one order-created event, got %+v", publisher.events)
	}
}

func TestNewContainerHealthReportsStore(t *testing.T) {
	ctx := context.Background()
	container, err := NewContainer(ctx, testConfig(),
		WithCollaborators(fakeCatalog{}, fakeInventory{}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	report, err := container.Health.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if _, ok := report.Checks["store"]; !ok {
		t.Fatalf("expected store check, got %v", report.Checks)
	}
	if _, ok := report.Checks["redis"]; ok {
		t.Fatalf("redis check must be absent when redis is disabled")
	}
}

func TestNewContainerRejectsUnknownDrivers(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	cfg.Store.Driver = "cassandra"
	if _, err := NewContainer(ctx, cfg, WithCollaborators(fakeCatalog{}, fakeInventory{})); err == nil {
		t.Fatalf("expected unknown store driver to fail")
	}

	cfg = testConfig()
	cfg.Events.Driver = "carrier-pigeon"
	if _, err := NewContainer(ctx, cfg, WithCollaborators(fakeCatalog{}, fakeInventory{})); err == nil {
		t.Fatalf("expected unknown events driver to fail")
	}
}

func TestNewContainerRequiresCollaboratorURLs(t *testing.T) {
	if _, err := NewContainer(context.Background(), testConfig()); err == nil {
		t.Fatalf("expected missing collaborator urls to fail")
	}
}

func TestContainerCloseRunsInReverse(t *testing.T) {
	var order []string
	c := &Container{}
	c.onClose(func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	c.onClose(func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})

	if err := c.Close(context.Background()); err == nil {
		t.Fatalf("expected close error to surface")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("unexpected close order %v", order)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}
