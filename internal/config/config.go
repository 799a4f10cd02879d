package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"cashbook"`
	// AutoMigrate applies embedded postgres migrations on startup.
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"false"`

	DevSeed         bool   `env:"DEV_SEED" envDefault:"false"`
	DevUser         string `env:"DEV_USER" envDefault:"dev-user"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"USD"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Auth        Auth        `envPrefix:"JWT_"`
	Idempotency Idempotency `envPrefix:"IDEMPOTENCY_"`
}

// Auth configures bearer token verification. An empty Secret enables dev mode,
// where the X-User-ID header names the caller.
type Auth struct {
	Secret   string `env:"HS256_SECRET"`
	Issuer   string `env:"ISSUER"`
	Audience string `env:"AUDIENCE"`
}

type Idempotency struct {
	TTL  time.Duration `env:"TTL" envDefault:"24h"`
	Size int           `env:"CACHE_SIZE" envDefault:"10000"`
}

// Backend names the storage selected by the connection settings.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.MongoURI = strings.TrimSpace(cfg.MongoURI)
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var problems []error
	if c.DatabaseURL != "" && c.MongoURI != "" {
		problems = append(problems, errors.New("set only one of DATABASE_URL and MONGO_URI"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Errorf("LOG_FORMAT %q: want json or text", c.LogFormat))
	}
	if len(c.DefaultCurrency) != 3 {
		problems = append(problems, fmt.Errorf("DEFAULT_CURRENCY %q: want a 3-letter code", c.DefaultCurrency))
	}
	if c.Idempotency.TTL <= 0 {
		problems = append(problems, errors.New("IDEMPOTENCY_TTL must be > 0"))
	}
	if c.Idempotency.Size <= 0 {
		problems = append(problems, errors.New("IDEMPOTENCY_CACHE_SIZE must be > 0"))
	}
	if c.MongoURI != "" && strings.TrimSpace(c.MongoDatabase) == "" {
		problems = append(problems, errors.New("MONGO_DATABASE is required with MONGO_URI"))
	}
	return errors.Join(problems...)
}

// Backend picks the storage from the configured URLs.
func (c Config) Backend() Backend {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.MongoURI != "":
		return BackendMongo
	default:
		return BackendMemory
	}
}

// DevMode reports whether requests are trusted to name their own user.
func (c Config) DevMode() bool { return c.Auth.Secret == "" }
