package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port         string        `env:"PORT" envDefault:"8000"`
	Env          string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName  string        `env:"SERVICE_NAME" envDefault:"libraryops"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:5174"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DBSource    string `env:"DB_SOURCE"`
	Mongo       Mongo

	TokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`

	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type Mongo struct {
	URL            string        `env:"MONGODB_URL"`
	User           string        `env:"MONGODB_USER"`
	Pass           string        `env:"MONGODB_PASS"`
	Host           string        `env:"MONGODB_HOST" envDefault:"localhost:27017"`
	Database       string        `env:"MONGODB_DATABASE" envDefault:"rtLibraryManagementSystem"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize    uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	RetryAttempts  int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

// ConnectionURL returns MONGODB_URL when set, otherwise a URI assembled
// from the user, password and host variables.
func (m Mongo) ConnectionURL() string {
	if m.URL != "" {
		return m.URL
	}
	u := url.URL{
		Scheme:   "mongodb",
		Host:     m.Host,
		RawQuery: "retryWrites=true&w=majority",
		Path:     "/",
	}
	if m.User != "" {
		u.User = url.UserPassword(m.User, m.Pass)
	}
	return u.String()
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DBSource == "" {
			return errors.New("DB_SOURCE environment variable is required for the postgres driver")
		}
	case DriverMongo:
		if c.Mongo.URL == "" && c.Mongo.User == "" {
			return errors.New("MONGODB_URL or MONGODB_USER is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}
