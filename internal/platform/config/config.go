package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration, parsed from environment
// variables so main stays lean.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Coupon   Coupon
	SMTP     SMTP
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string `env:"REENGAGE_ADDR" envDefault:":8080"`
	AdminToken string `env:"REENGAGE_ADMIN_TOKEN,required"`
	LogLevel   string `env:"REENGAGE_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"REENGAGE_LOG_FORMAT" envDefault:"json"`
}

// Postgres holds the registry database connection settings.
type Postgres struct {
	DSN          string        `env:"REENGAGE_POSTGRES_DSN,required"`
	MaxOpenConns int           `env:"REENGAGE_POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	ConnLifetime time.Duration `env:"REENGAGE_POSTGRES_CONN_LIFETIME" envDefault:"30m"`
}

// Redis holds the settings-store connection. An empty URL disables Redis and
// falls back to the in-memory settings store.
type Redis struct {
	URL          string        `env:"REENGAGE_REDIS_URL"`
	DialTimeout  time.Duration `env:"REENGAGE_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REENGAGE_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REENGAGE_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Coupon holds the issuance policy.
type Coupon struct {
	DiscountPercent int `env:"REENGAGE_COUPON_PERCENT" envDefault:"20"`
	// ExpiryMonths is the validity window of a newly created coupon.
	ExpiryMonths int `env:"REENGAGE_COUPON_EXPIRY_MONTHS" envDefault:"2"`
	// InactiveMonths is the recency window; customers with no completed
	// order inside it are eligible for issuance.
	InactiveMonths int `env:"REENGAGE_INACTIVE_MONTHS" envDefault:"3"`
	// DirectoryPageSize bounds directory reads during a sync.
	DirectoryPageSize int `env:"REENGAGE_DIRECTORY_PAGE_SIZE" envDefault:"500"`
}

// SMTP configures the test-mail sender. An empty host disables sending.
type SMTP struct {
	Host     string `env:"REENGAGE_SMTP_HOST"`
	Port     int    `env:"REENGAGE_SMTP_PORT" envDefault:"587"`
	Username string `env:"REENGAGE_SMTP_USERNAME"`
	Password string `env:"REENGAGE_SMTP_PASSWORD"`
	From     string `env:"REENGAGE_SMTP_FROM"`
}

// FromEnv parses the full configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
