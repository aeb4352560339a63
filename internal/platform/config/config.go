package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultRedisDialTimeout    = 2 * time.Second
	defaultCacheTTL            = 10 * time.Minute
	defaultCacheKeyPrefix      = "order:"
	defaultAMQPExchange        = "orders"
	defaultCollaboratorTimeout = 3 * time.Second
	defaultBreakerWindow       = 30 * time.Second
	defaultBreakerCooldown     = 10 * time.Second
	defaultBreakerFailureRatio = 0.5
	defaultBreakerMinRequests  = 5
	defaultBreakerProbes       = 1
	defaultGatewayConcurrency  = 4
)

// Store drivers.
const (
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"
)

// Event bus drivers.
const (
	EventsDriverPubSub = "pubsub"
	EventsDriverKafka  = "kafka"
	EventsDriverAMQP   = "amqp"
	EventsDriverNone   = "none"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Firestore     FirestoreConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Events        EventsConfig
	Collaborators CollaboratorConfig
	Breaker       BreakerConfig
	Pricing       PricingConfig
	Gateway       GatewayConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects the order store backend.
type StoreConfig struct {
	Driver string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// RedisConfig locates the cache server. An empty address disables caching.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// CacheConfig controls the order read cache.
type CacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// EventsConfig selects the event bus and its destinations.
type EventsConfig struct {
	Driver       string
	TopicPrefix  string
	ProjectID    string
	KafkaBrokers []string
	AMQPURL      string
	AMQPExchange string
}

// CollaboratorConfig locates the catalog and inventory services.
type CollaboratorConfig struct {
	CatalogBaseURL   string
	InventoryBaseURL string
	Timeout          time.Duration
}

// BreakerConfig tunes the circuit breakers guarding collaborators.
type BreakerConfig struct {
	Window         time.Duration
	Cooldown       time.Duration
	FailureRatio   float64
	MinRequests    int
	HalfOpenProbes int
}

// PricingConfig holds the rates applied to every order total.
type PricingConfig struct {
	DiscountRate decimal.Decimal
	TaxRate      decimal.Decimal
	ShippingCost decimal.Decimal
}

// GatewayConfig bounds concurrent collaborator lookups per request.
type GatewayConfig struct {
	Concurrency int
}

// ValidationError lists every field or environment key that was missing or malformed.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Load reads ORDERS_* settings from an optional dotenv file, the process environment and
// WithEnvMap, resolves secret references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := newLoaderOptions(opts)
	env, err := newSource(o)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            env.str("ORDERS_SERVER_PORT", defaultPort),
			ReadTimeout:     env.duration("ORDERS_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    env.duration("ORDERS_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     env.duration("ORDERS_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: env.duration("ORDERS_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(env.str("ORDERS_STORE_DRIVER", StoreDriverFirestore)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("ORDERS_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("ORDERS_FIRESTORE_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:        env.str("ORDERS_REDIS_ADDR", ""),
			Password:    env.str("ORDERS_REDIS_PASSWORD", ""),
			DB:          env.integer("ORDERS_REDIS_DB", 0),
			DialTimeout: env.duration("ORDERS_REDIS_DIAL_TIMEOUT", defaultRedisDialTimeout),
		},
		Cache: CacheConfig{
			TTL:       env.duration("ORDERS_CACHE_TTL", defaultCacheTTL),
			KeyPrefix: env.str("ORDERS_CACHE_KEY_PREFIX", defaultCacheKeyPrefix),
		},
		Events: EventsConfig{
			Driver:       strings.ToLower(env.str("ORDERS_EVENTS_DRIVER", EventsDriverPubSub)),
			TopicPrefix:  env.str("ORDERS_EVENTS_TOPIC_PREFIX", ""),
			ProjectID:    env.str("ORDERS_EVENTS_PROJECT_ID", ""),
			KafkaBrokers: env.list("ORDERS_EVENTS_KAFKA_BROKERS"),
			AMQPURL:      env.str("ORDERS_EVENTS_AMQP_URL", ""),
			AMQPExchange: env.str("ORDERS_EVENTS_AMQP_EXCHANGE", defaultAMQPExchange),
		},
		Collaborators: CollaboratorConfig{
			CatalogBaseURL:   env.str("ORDERS_CATALOG_BASE_URL", ""),
			InventoryBaseURL: env.str("ORDERS_INVENTORY_BASE_URL", ""),
			Timeout:          env.duration("ORDERS_COLLABORATOR_TIMEOUT", defaultCollaboratorTimeout),
		},
		Breaker: BreakerConfig{
			Window:         env.duration("ORDERS_BREAKER_WINDOW", defaultBreakerWindow),
			Cooldown:       env.duration("ORDERS_BREAKER_COOLDOWN", defaultBreakerCooldown),
			FailureRatio:   env.float("ORDERS_BREAKER_FAILURE_RATIO", defaultBreakerFailureRatio),
			MinRequests:    env.integer("ORDERS_BREAKER_MIN_REQUESTS", defaultBreakerMinRequests),
			HalfOpenProbes: env.integer("ORDERS_BREAKER_HALF_OPEN_PROBES", defaultBreakerProbes),
		},
		Pricing: PricingConfig{
			DiscountRate: env.amount("ORDERS_PRICING_DISCOUNT_RATE"),
			TaxRate:      env.amount("ORDERS_PRICING_TAX_RATE"),
			ShippingCost: env.amount("ORDERS_PRICING_SHIPPING_COST"),
		},
		Gateway: GatewayConfig{
			Concurrency: env.integer("ORDERS_GATEWAY_CONCURRENCY", defaultGatewayConcurrency),
		},
	}
	if len(env.invalid) > 0 {
		return Config{}, &ValidationError{fields: env.invalid}
	}

	resolved := make(map[string]string, 2)
	for name, field := range map[string]*string{
		"Redis.Password": &cfg.Redis.Password,
		"Events.AMQPURL": &cfg.Events.AMQPURL,
	} {
		value, err := resolveSecret(ctx, *field, o.secret)
		if err != nil {
			return Config{}, err
		}
		*field = value
		resolved[name] = value
	}

	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}
	if fields := cfg.invalidFields(); len(fields) > 0 {
		return Config{}, &ValidationError{fields: fields}
	}

	if missing := missingSecrets(o.requiredSecrets, resolved); missing != nil {
		if o.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}
	return cfg, nil
}

func (cfg Config) invalidFields() []string {
	var bad []string
	check := func(ok bool, field string) {
		if !ok {
			bad = append(bad, field)
		}
	}

	check(cfg.Server.Port != "", "Server.Port")
	switch cfg.Store.Driver {
	case StoreDriverFirestore:
		check(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	case StoreDriverMemory:
	default:
		check(false, "Store.Driver")
	}
	check(cfg.Cache.TTL > 0, "Cache.TTL")

	switch cfg.Events.Driver {
	case EventsDriverPubSub:
		check(cfg.Events.ProjectID != "", "Events.ProjectID")
	case EventsDriverKafka:
		check(len(cfg.Events.KafkaBrokers) > 0, "Events.KafkaBrokers")
	case EventsDriverAMQP:
		check(cfg.Events.AMQPURL != "", "Events.AMQPURL")
		check(cfg.Events.AMQPExchange != "", "Events.AMQPExchange")
	case EventsDriverNone:
	default:
		check(false, "Events.Driver")
	}

	check(cfg.Collaborators.CatalogBaseURL != "", "Collaborators.CatalogBaseURL")
	check(cfg.Collaborators.InventoryBaseURL != "", "Collaborators.InventoryBaseURL")
	check(cfg.Collaborators.Timeout > 0, "Collaborators.Timeout")

	check(cfg.Breaker.FailureRatio > 0 && cfg.Breaker.FailureRatio <= 1, "Breaker.FailureRatio")
	check(cfg.Breaker.MinRequests > 0, "Breaker.MinRequests")
	check(cfg.Breaker.HalfOpenProbes > 0, "Breaker.HalfOpenProbes")

	one := decimal.NewFromInt(1)
	check(!cfg.Pricing.DiscountRate.IsNegative() && cfg.Pricing.DiscountRate.LessThanOrEqual(one), "Pricing.DiscountRate")
	check(!cfg.Pricing.TaxRate.IsNegative(), "Pricing.TaxRate")
	check(!cfg.Pricing.ShippingCost.IsNegative(), "Pricing.ShippingCost")
	check(cfg.Gateway.Concurrency > 0, "Gateway.Concurrency")
	return bad
}
