package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jinzhu/configor"
)

type Config struct {
	App struct {
		ENV string `default:"development" env:"APP_ENV"`
	}

	Log struct {
		Level     string `default:"info" env:"LOG_LEVEL"`
		Format    string `default:"text" env:"LOG_FORMAT"`
		Component string `default:"connect" env:"LOG_COMPONENT"`
		Source    bool   `env:"LOG_SOURCE"`
	}

	DB struct {
		// Driver is one of mysql, postgres, sqlite.
		Driver   string `default:"mysql" env:"DB_DRIVER"`
		DSN      string `env:"DB_DSN"`
		Host     string `default:"localhost" env:"DB_HOST"`
		Port     string `env:"DB_PORT"`
		User     string `default:"root" env:"DB_USER"`
		Password string `default:"root" env:"DB_PASSWORD"`
		Name     string `default:"muzz" env:"DB_NAME"`

		// LegacyMessages merges rows of the pre-migration message table into every read.
		LegacyMessages bool `env:"DB_LEGACY_MESSAGES"`
	}

	Redis struct {
		Addr     string `default:"localhost:6379" env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB"`
	}

	Feed struct {
		// Driver is redis (cross-instance pub/sub) or local (single process).
		Driver string `default:"redis" env:"FEED_DRIVER"`
	}

	GRPC struct {
		Host string `default:"127.0.0.1" env:"GRPC_HOST"`
		Port string `default:"50051" env:"GRPC_PORT"`
	}

	HTTP struct {
		Host string `default:"127.0.0.1" env:"HTTP_HOST"`
		Port string `default:"8080" env:"HTTP_PORT"`
	}

	Billing struct {
		BaseURL        string `default:"http://localhost:54321/functions/v1" env:"BILLING_BASE_URL"`
		APIKey         string `env:"BILLING_API_KEY"`
		WebhookSecret  string `env:"BILLING_WEBHOOK_SECRET"`
		TimeoutSeconds int    `default:"10" env:"BILLING_TIMEOUT_SECONDS"`
	}

	Entitlement struct {
		CacheTTLSeconds int `default:"3600" env:"ENTITLEMENT_CACHE_TTL_SECONDS"`
	}

	Discovery struct {
		PageSize int `default:"20" env:"DISCOVERY_PAGE_SIZE"`
		// UnsetGenderPolicy decides what a viewer without a declared gender sees:
		// everyone, none or unset (only others without a gender).
		UnsetGenderPolicy string `default:"everyone" env:"DISCOVERY_UNSET_GENDER_POLICY"`
	}

	RateLimit struct {
		PerSecond float64 `default:"10" env:"RATE_LIMIT_PER_SECOND"`
		Burst     int     `default:"20" env:"RATE_LIMIT_BURST"`
	}
}

// New loads configuration from defaults, the optional CONFIG_FILE and the environment.
func New() *Config {
	var files []string
	if f := strings.TrimSpace(os.Getenv("CONFIG_FILE")); f != "" {
		files = append(files, f)
	}
	cfg, err := Load(files...)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load is New with explicit config files; missing files are skipped.
func Load(files ...string) (*Config, error) {
	cfg := &Config{}
	if err := configor.New(&configor.Config{ENVPrefix: "CONNECT"}).Load(cfg, files...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = buildDSN(cfg)
	}
	return cfg, nil
}

func buildDSN(cfg *Config) string {
	switch cfg.DB.Driver {
	case "postgres":
		port := cfg.DB.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DB.Host, port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
		)
	case "sqlite":
		return "file:" + cfg.DB.Name + ".db?_foreign_keys=on"
	default:
		port := cfg.DB.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, port, cfg.DB.Name,
		)
	}
}

// IsDevelopment reports whether demo data may be seeded on boot.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.ENV, "development")
}
