package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/tckz/visitor-counter/internal/counter"
)

// ErrNotConfigured means required settings are missing or invalid. It is
// fatal at start.
var ErrNotConfigured = errors.New("not configured")

const (
	StoreMemory    = "memory"
	StoreRedis     = "redis"
	StoreDatastore = "datastore"
	StorePostgres  = "postgres"
)

var StoreKinds = []string{StoreMemory, StoreRedis, StoreDatastore, StorePostgres}

type Config struct {
	Store          string        `env:"COUNTER_STORE" envDefault:"memory"`
	CounterID      string        `env:"COUNTER_ID" envDefault:"visitors"`
	CORSOrigin     string        `env:"CORS_ORIGIN" envDefault:"*"`
	Port           int           `env:"PORT" envDefault:"5000"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
	ProjectID      string        `env:"PROJECT_ID"`

	Datastore Datastore `envPrefix:"DATASTORE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Postgres  Postgres  `envPrefix:"POSTGRES_"`
	PubSub    PubSub    `envPrefix:"PUBSUB_"`
}

type Datastore struct {
	Kind        string `env:"KIND" envDefault:"counters"`
	Namespace   string `env:"NAMESPACE"`
	MaxAttempts int    `env:"MAX_ATTEMPTS" envDefault:"3"`
}

type Redis struct {
	Addr        string        `env:"ADDR"`
	KeyPrefix   string        `env:"KEY_PREFIX" envDefault:"visitor-counter:"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"2s"`
	PoolSize    int           `env:"POOL_SIZE" envDefault:"20"`
}

type Postgres struct {
	URL   string `env:"URL"`
	Table string `env:"TABLE" envDefault:"counters"`
}

type PubSub struct {
	// Topic receives one message per increment. Empty disables it.
	Topic string `env:"TOPIC"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("env.ParseAs: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var result *multierror.Error
	missing := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%w: %s", ErrNotConfigured, fmt.Sprintf(format, args...)))
	}

	if !lo.Contains(StoreKinds, c.Store) {
		missing("COUNTER_STORE=%q must be one of %v", c.Store, StoreKinds)
	}
	if c.CounterID == "" {
		missing("COUNTER_ID must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		missing("PORT=%d is out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		missing("REQUEST_TIMEOUT must be positive")
	}

	switch c.Store {
	case StoreDatastore:
		if c.ProjectID == "" {
			missing("PROJECT_ID is required for COUNTER_STORE=%s", c.Store)
		}
		if c.Datastore.Kind == "" {
			missing("DATASTORE_KIND must not be empty")
		}
		if c.Datastore.MaxAttempts < counter.MinMaxAttempts {
			missing("DATASTORE_MAX_ATTEMPTS=%d must be at least %d, a conflict needs a retry", c.Datastore.MaxAttempts, counter.MinMaxAttempts)
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			missing("REDIS_ADDR is required for COUNTER_STORE=%s", c.Store)
		}
	case StorePostgres:
		if c.Postgres.URL == "" {
			missing("POSTGRES_URL is required for COUNTER_STORE=%s", c.Store)
		}
		if c.Postgres.Table == "" {
			missing("POSTGRES_TABLE must not be empty")
		}
	}

	if c.PubSub.Topic != "" && c.ProjectID == "" {
		missing("PROJECT_ID is required when PUBSUB_TOPIC is set")
	}

	return result.ErrorOrNil()
}

// Addr is the listen address of the long-lived server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
