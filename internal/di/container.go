package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/hanko-field/orders/internal/clients"
	domain "github.com/hanko-field/orders/internal/domain"
	"github.com/hanko-field/orders/internal/platform/breaker"
	"github.com/hanko-field/orders/internal/platform/cache"
	"github.com/hanko-field/orders/internal/platform/config"
	"github.com/hanko-field/orders/internal/platform/events"
	pfirestore "github.com/hanko-field/orders/internal/platform/firestore"
	"github.com/hanko-field/orders/internal/platform/observability"
	"github.com/hanko-field/orders/internal/repositories"
	firestoreRepo "github.com/hanko-field/orders/internal/repositories/firestore"
	"github.com/hanko-field/orders/internal/repositories/memory"
	"github.com/hanko-field/orders/internal/services"
)

// Container wires repositories, collaborators, and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Orders       services.OrderService
	Health       services.HealthService
	Build        services.BuildInfo

	closers []func(context.Context) error
}

// Option overrides a piece of infrastructure, mainly so tests can avoid network dependencies.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	registry  repositories.Registry
	catalog   services.ProductCatalog
	inventory services.InventoryChecker
	store     services.CacheStore
	publisher services.OrderEventPublisher
	build     services.BuildInfo
	clock     func() time.Time
}

// WithLogger sets the base logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry replaces the configured order store.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithCollaborators replaces the HTTP catalog and inventory clients.
func WithCollaborators(catalog services.ProductCatalog, inventory services.InventoryChecker) Option {
	return func(o *options) {
		o.catalog = catalog
		o.inventory = inventory
	}
}

// WithCacheStore replaces the Redis cache store.
func WithCacheStore(store services.CacheStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithEventPublisher replaces the configured event bus.
func WithEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithBuildInfo sets the metadata reported by health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies from configuration. Resources opened before a
// failure are released before returning the error.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Container{Config: cfg, Build: o.build}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	logEvent := observability.EventLogger(o.logger.Named("orders"))
	var checks []services.HealthCheck

	reg, err := c.buildRegistry(cfg, o)
	if err != nil {
		return nil, err
	}
	c.Repositories = reg
	checks = append(checks, services.HealthCheck{Name: "store", Check: reg.Ping})

	store, storeCheck, err := c.buildCacheStore(cfg, o)
	if err != nil {
		return nil, err
	}
	if storeCheck != nil {
		checks = append(checks, *storeCheck)
	}

	gateway, err := buildGateway(cfg, o, logEvent)
	if err != nil {
		return nil, err
	}

	pricing, err := services.NewOrderPricingEngine(domain.PricingRates{
		DiscountRate: cfg.Pricing.DiscountRate,
		TaxRate:      cfg.Pricing.TaxRate,
		ShippingCost: cfg.Pricing.ShippingCost,
	})
	if err != nil {
		return nil, fmt.Errorf("build pricing engine: %w", err)
	}

	orderCache := services.NewOrderCache(services.OrderCacheDeps{
		Store:     store,
		TTL:       cfg.Cache.TTL,
		KeyPrefix: cfg.Cache.KeyPrefix,
		Logger:    logEvent,
	})

	publisher, eventsCheck, err := c.buildPublisher(ctx, cfg, o)
	if err != nil {
		return nil, err
	}
	if eventsCheck != nil {
		checks = append(checks, *eventsCheck)
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   reg.Orders(),
		Counters: reg.Counters(),
		Verifier: gateway,
		Pricing:  pricing,
		Cache:    orderCache,
		Events:   publisher,
		Clock:    o.clock,
		Logger:   logEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}
	c.Orders = orders

	health, err := services.NewHealthService(services.HealthServiceDeps{
		Checks: checks,
		Build:  o.build,
		Clock:  o.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("build health service: %w", err)
	}
	c.Health = health

	return c, nil
}

// Close releases clients in reverse order of construction.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

func (c *Container) buildRegistry(cfg config.Config, o options) (repositories.Registry, error) {
	if o.registry != nil {
		return o.registry, nil
	}
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		return memory.NewRegistry(), nil
	case config.StoreDriverFirestore, "":
		provider := pfirestore.NewProvider(cfg.Firestore)
		reg, err := firestoreRepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close(context.Background())
			return nil, fmt.Errorf("build firestore registry: %w", err)
		}
		c.onClose(reg.Close)
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func (c *Container) buildCacheStore(cfg config.Config, o options) (services.CacheStore, *services.HealthCheck, error) {
	if o.store != nil {
		return o.store, nil, nil
	}
	if !cfg.Redis.Enabled() {
		return nil, nil, nil
	}
	client, err := cache.NewClient(cache.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build redis client: %w", err)
	}
	c.onClose(func(context.Context) error { return client.Close() })

	store, err := cache.NewRedisStore(client)
	if err != nil {
		return nil, nil, fmt.Errorf("build redis store: %w", err)
	}
	return store, &services.HealthCheck{Name: "redis", Check: store.Ping}, nil
}

func buildGateway(cfg config.Config, o options, logEvent func(context.Context, string, map[string]any)) (*services.VerificationGateway, error) {
	catalog, inventory := o.catalog, o.inventory
	if catalog == nil {
		client, err := clients.NewCatalogClient(cfg.Collaborators.CatalogBaseURL, clients.WithTimeout(cfg.Collaborators.Timeout))
		if err != nil {
			return nil, fmt.Errorf("build catalog client: %w", err)
		}
		catalog = client
	}
	if inventory == nil {
		client, err := clients.NewInventoryClient(cfg.Collaborators.InventoryBaseURL, clients.WithTimeout(cfg.Collaborators.Timeout))
		if err != nil {
			return nil, fmt.Errorf("build inventory client: %w", err)
		}
		inventory = client
	}

	breakerLogger := o.logger.Named("breaker")
	catalogBreaker := breaker.New(breakerSettings("catalog", cfg.Breaker),
		breaker.WithLogger(breakerLogger),
		breaker.WithSuccessClassifier(services.IsProductNotFound),
	)
	inventoryBreaker := breaker.New(breakerSettings("inventory", cfg.Breaker),
		breaker.WithLogger(breakerLogger),
	)

	gateway, err := services.NewVerificationGateway(services.VerificationGatewayDeps{
		Catalog:          catalog,
		Inventory:        inventory,
		CatalogBreaker:   catalogBreaker,
		InventoryBreaker: inventoryBreaker,
		Concurrency:      cfg.Gateway.Concurrency,
		Logger:           logEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("build verification gateway: %w", err)
	}
	return gateway, nil
}

func breakerSettings(name string, cfg config.BreakerConfig) breaker.Settings {
	return breaker.Settings{
		Name:           name,
		Window:         cfg.Window,
		Cooldown:       cfg.Cooldown,
		FailureRatio:   cfg.FailureRatio,
		MinRequests:    uint32(max(cfg.MinRequests, 0)),
		HalfOpenProbes: uint32(max(cfg.HalfOpenProbes, 0)),
	}
}

func (c *Container) buildPublisher(ctx context.Context, cfg config.Config, o options) (services.OrderEventPublisher, *services.HealthCheck, error) {
	if o.publisher != nil {
		return o.publisher, nil, nil
	}
	switch cfg.Events.Driver {
	case config.EventsDriverNone:
		return nil, nil, nil
	case config.EventsDriverPubSub, "":
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("build pubsub client: %w", err)
		}
		c.onClose(func(context.Context) error { return client.Close() })
		publisher, err := events.NewPubSubPublisher(client, cfg.Events.TopicPrefix)
		if err != nil {
			return nil, nil, err
		}
		c.onClose(func(context.Context) error { return publisher.Close() })
		return publisher, &services.HealthCheck{Name: "events", Check: publisher.Ping}, nil
	case config.EventsDriverKafka:
		writer, err := events.NewKafkaWriter(cfg.Events.KafkaBrokers)
		if err != nil {
			return nil, nil, err
		}
		publisher, err := events.NewKafkaPublisher(writer, cfg.Events.TopicPrefix)
		if err != nil {
			_ = writer.Close()
			return nil, nil, err
		}
		c.onClose(func(context.Context) error { return publisher.Close() })
		brokers := cfg.Events.KafkaBrokers
		return publisher, &services.HealthCheck{
			Name:  "events",
			Check: func(ctx context.Context) error { return events.PingKafka(ctx, brokers) },
		}, nil
	case config.EventsDriverAMQP:
		conn, channel, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		c.onClose(func(context.Context) error { return conn.Close() })
		publisher, err := events.NewAMQPPublisher(channel, cfg.Events.AMQPExchange, cfg.Events.TopicPrefix)
		if err != nil {
			_ = channel.Close()
			return nil, nil, err
		}
		c.onClose(func(context.Context) error { return publisher.Close() })
		return publisher, &services.HealthCheck{
			Name: "events",
			Check: func(context.Context) error {
				if conn.IsClosed() {
					return errors.New("amqp connection closed")
				}
				return nil
			},
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported events driver %q", cfg.Events.Driver)
	}
}
