package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the application configuration, loadable from environment
// variables (PARRAINAGE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string        `default:"postgres" usage:"Order and settings storage: postgres or memory"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (PARRAINAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string        `usage:"Redis URL for session carts; in-process carts when empty" flag:"redis-url"`
	CartTTL      time.Duration `default:"48h" usage:"Expiry of synced carts" flag:"cart-ttl"`
	APIKeyPepper string        `usage:"HMAC pepper for API key hashing (PARRAINAGE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	DevAPIKey    string        `usage:"API key accepted with memory storage" flag:"dev-api-key"`
	Timezone     string        `default:"Europe/Paris" usage:"Location of referral discount dates"`
	Gate         GateConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// GateConfig configures coupon suppression.
type GateConfig struct {
	Option string `default:"wc_tb_parrainage_products_config" usage:"Option listing the referral products" flag:"gate-option"`
	// ProductsFile fills the option with memory storage. Comma-separated,
	// .json or .json.gz.
	ProductsFile string `default:"db/seed/products_config.json" usage:"Product option exports loaded with memory storage" flag:"gate-products-file"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PARRAINAGE",
		Files:     []string{"config.yaml", "/etc/parrainage/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL, REDIS_URL and
// PORT to the PARRAINAGE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Gate.Option == "" {
		c.Gate.Option = settings.DefaultProductOption
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set PARRAINAGE_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}
