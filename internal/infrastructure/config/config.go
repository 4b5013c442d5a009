package config

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Backend    BackendConfig
	Session    SessionConfig
	TokenStore TokenStoreConfig
	Mongo      MongoConfig
	Redis      RedisConfig
}

// BackendConfig locates the clinic REST backend.
type BackendConfig struct {
	URL     string        `env:"BACKEND_URL,     default=http://localhost:8081"`
	MePath  string        `env:"ME_PATH,         default=/api/users/me"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT, default=10s"`
}

// SessionConfig tunes per-browser session handling.
type SessionConfig struct {
	BootstrapTimeout time.Duration `env:"BOOTSTRAP_TIMEOUT, default=5s"`
	BootstrapWorkers int           `env:"BOOTSTRAP_WORKERS, default=4"`
	IdleTTL          time.Duration `env:"SESSION_IDLE_TTL,  default=30m"`
	CookieSecure     bool          `env:"COOKIE_SECURE,     default=false"`
}

// TokenStoreConfig selects where sessions are persisted.
type TokenStoreConfig struct {
	Driver string        `env:"TOKEN_STORE_DRIVER, default=memory"`
	Prefix string        `env:"TOKEN_STORE_PREFIX, default=portal:session"`
	TTL    time.Duration `env:"TOKEN_STORE_TTL,    default=0s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=booking_portal"`
}

// RedisConfig is used when TOKEN_STORE_DRIVER=redis. REDIS_URL overrides the
// discrete fields.
type RedisConfig struct {
	URL      string `env:"REDIS_URL"`
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// DevBackendConfig configures the in-memory stand-in backend.
type DevBackendConfig struct {
	Port      string        `env:"DEV_BACKEND_PORT, default=8081"`
	JWTSecret string        `env:"JWT_SECRET,       default=dev-secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,        default=24h"`
	LogLevel  string        `env:"LOG_LEVEL,        default=info"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(logger zerolog.Logger) *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	return &cfg
}

// LoadDevBackend reads the dev backend configuration.
func LoadDevBackend(logger zerolog.Logger) *DevBackendConfig {
	var cfg DevBackendConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	return &cfg
}

// LoadFrom reads configuration from a custom lookuper. Used by tests.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	return &cfg, nil
}
