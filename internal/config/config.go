package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port            int           `env:"PORT"             envDefault:"8080"`
	APIKey          string        `env:"API_KEY"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES"  envSeparator:","`

	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"text"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"adlink"`
	Version     string `env:"VERSION"      envDefault:"dev"`
	Environment string `env:"ENVIRONMENT"  envDefault:"dev"`

	// LogDir receives a copy of the log in a per-run file; empty logs to stdout only
	LogDir string `env:"LOG_DIR"`

	StoreDriver       string        `env:"STORE_DRIVER"          envDefault:"postgres"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBUser            string        `env:"DB_USER"               envDefault:"postgres"`
	DBPassword        string        `env:"DB_PASSWORD"           envDefault:"postgres"`
	DBHost            string        `env:"DB_HOST"               envDefault:"localhost"`
	DBPort            string        `env:"DB_PORT"               envDefault:"5432"`
	DBName            string        `env:"DB_NAME"               envDefault:"adlink"`
	DBMaxConns        int           `env:"DB_MAX_CONNS"          envDefault:"20"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME"  envDefault:"30m"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE"          envDefault:"false"`

	StateSigningKey string        `env:"STATE_SIGNING_KEY"`
	StateTTL        time.Duration `env:"STATE_TTL"         envDefault:"10m"`
	RelayOrigin     string        `env:"RELAY_ORIGIN"      envDefault:"http://localhost:8080"`
	AppOrigin       string        `env:"APP_ORIGIN"        envDefault:"http://localhost:3000"`
	TrustedOrigins  []string      `env:"TRUSTED_ORIGINS"   envSeparator:","`
	ProvidersFile   string        `env:"PROVIDERS_FILE"`

	BackendURL        string        `env:"BACKEND_URL"`
	BackendAPIKey     string        `env:"BACKEND_API_KEY"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT"     envDefault:"15s"`
	BackendMaxRetries int           `env:"BACKEND_MAX_RETRIES" envDefault:"3"`

	LinkTimeout       time.Duration `env:"LINK_TIMEOUT"        envDefault:"5m"`
	PollInterval      time.Duration `env:"POLL_INTERVAL"       envDefault:"1s"`
	PopupPollInterval time.Duration `env:"POPUP_POLL_INTERVAL" envDefault:"500ms"`
	PopupClosedGrace  time.Duration `env:"POPUP_CLOSED_GRACE"  envDefault:"2s"`
	StoreSize         int           `env:"STORE_SIZE"          envDefault:"10000"`
	DialogRetention   time.Duration `env:"DIALOG_RETENTION"    envDefault:"30m"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL"     envDefault:"1m"`

	WorkerCount     int `env:"WORKER_COUNT"      envDefault:"4"`
	WorkerQueueSize int `env:"WORKER_QUEUE_SIZE" envDefault:"256"`
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse reads the environment into a Config without validating it
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// GetDBConnString returns the PostgreSQL connection string
func (c *Config) GetDBConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// AllowedOrigins returns the origins a callback message may come from:
// the relay, the app itself and any extra configured origins.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.TrustedOrigins)+2)
	origins = append(origins, c.RelayOrigin, c.AppOrigin)
	for _, o := range c.TrustedOrigins {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// ExpansionVars returns the values available to ${VAR} references in the
// provider registry file, on top of the process environment.
func (c *Config) ExpansionVars() map[string]string {
	return map[string]string{
		"RELAY_ORIGIN": c.RelayOrigin,
		"APP_ORIGIN":   c.AppOrigin,
	}
}
