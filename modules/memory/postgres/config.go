package postgres

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaxConns       = 4
	defaultConnectTimeout = 10 * time.Second
)

// Config holds the memory.postgres configuration.
type Config struct {
	// DSN is a libpq connection string or URL, usually ${DATABASE_URL}.
	DSN string `yaml:"dsn"`

	// MaxConns bounds the pool. Defaults to 4.
	MaxConns int32 `yaml:"max_conns"`

	// ConnectTimeout bounds the initial connection and ping. Defaults to 10s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Migrate creates missing tables on startup. Defaults to true.
	Migrate *bool `yaml:"migrate"`
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.Migrate == nil {
		t := true
		c.Migrate = &t
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.DSN == "" {
		errs = append(errs, errors.New("postgres: dsn is required"))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("postgres: max_conns must be positive, got %d", c.MaxConns))
	}
	return errors.Join(errs...)
}
