package gateway

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sori-ai/sori/internal/security"
)

// Config is the gateway.http module configuration.
type Config struct {
	Bind string     `yaml:"bind"`
	Auth AuthConfig `yaml:"auth"`

	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout must cover a full /chat turn, model call included.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Limits bounds /chat and /user bodies and websocket frames.
	Limits    security.PayloadLimits   `yaml:"limits"`
	RateLimit security.RateLimitConfig `yaml:"rate_limit"`

	// OriginPatterns lists the hosts allowed to open /ws/voice from a
	// browser. Same-origin requests are always accepted.
	OriginPatterns []string `yaml:"origin_patterns"`
}

func (c *Config) defaults() {
	setDefault(&c.Bind, "127.0.0.1:8080")
	setDefault(&c.ReadTimeout, 10*time.Second)
	setDefault(&c.WriteTimeout, time.Minute)
	setDefault(&c.ShutdownTimeout, 5*time.Second)
	setDefault(&c.RateLimit.AuthPerMin, security.DefaultAuthPerMin)
	c.Limits = c.Limits.WithDefaults()
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func (c *Config) validate() error {
	var errs []error
	_, port, err := net.SplitHostPort(c.Bind)
	if err == nil {
		if n, perr := strconv.Atoi(port); perr != nil || n < 0 || n > 65535 {
			err = fmt.Errorf("port %q out of range", port)
		}
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind %q: %w", c.Bind, err))
	}
	for name, d := range map[string]time.Duration{"read_timeout": c.ReadTimeout, "write_timeout": c.WriteTimeout, "shutdown_timeout": c.ShutdownTimeout} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("gateway: %s must not be negative", name))
		}
	}
	if c.RateLimit.MessagesPerMin < 0 || c.RateLimit.AuthPerMin < 0 {
		errs = append(errs, errors.New("gateway: rate_limit.messages_per_min and auth_per_min must not be negative"))
	}
	if (c.Auth.BasicUser == "") != (c.Auth.BasicPass == "") {
		errs = append(errs, errors.New("gateway: auth.basic_user and auth.basic_pass go together"))
	}
	return errors.Join(errs...)
}
