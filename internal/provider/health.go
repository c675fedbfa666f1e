package provider

import (
	"log/slog"
	"sync"
	"time"
)

// HealthConfig tunes how a chain member backs off after failures.
type HealthConfig struct {
	// InitialBackoff is the first cooldown. Each further failure doubles
	// it up to MaxBackoff.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// MaxFailures consecutive failures take the member out of rotation
	// until a background probe succeeds.
	MaxFailures int `yaml:"max_failures"`

	// CheckInterval is the probe period for members out of rotation.
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c *HealthConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Second
	}
}

// GatewayStatus is what /health reports for one chain member.
type GatewayStatus struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Available bool   `json:"available"`
	Failures  int    `json:"failures"`
}

const (
	stateHealthy  = "healthy"
	stateCooldown = "cooldown"
	stateDead     = "dead"
)

// breaker gates one chain member. It is closed while healthy, open for a
// backoff window after a retryable failure, and stays open once failures
// reach MaxFailures.
type breaker struct {
	name   string
	cfg    HealthConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	failures int
	backoff  time.Duration
	retryAt  time.Time
	dead     bool
}

func newBreaker(name string, cfg HealthConfig, logger *slog.Logger) *breaker {
	cfg.defaults()
	return &breaker{name: name, cfg: cfg, logger: logger, now: time.Now}
}

func (b *breaker) stateLocked() string {
	switch {
	case b.dead:
		return stateDead
	case b.failures > 0:
		return stateCooldown
	default:
		return stateHealthy
	}
}

// allow reports whether a call may go to the member now. An expired
// cooldown lets the next call through as a trial.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked()
}

func (b *breaker) allowLocked() bool {
	return !b.dead && !b.now().Before(b.retryAt)
}

// probeDue reports whether the background loop should probe the member.
func (b *breaker) probeDue() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures > 0 && (b.dead || !b.now().Before(b.retryAt))
}

func (b *breaker) succeed() {
	b.mu.Lock()
	prev := b.stateLocked()
	b.failures, b.backoff, b.retryAt, b.dead = 0, 0, time.Time{}, false
	b.mu.Unlock()

	if prev != stateHealthy {
		b.logger.Info("gateway revived", "gateway", b.name, "previous_state", prev)
	}
}

func (b *breaker) fail(err error) {
	b.mu.Lock()
	b.failures++
	failures := b.failures
	if failures >= b.cfg.MaxFailures {
		wasDead := b.dead
		b.dead = true
		b.mu.Unlock()
		if !wasDead {
			b.logger.Error("gateway marked dead", "gateway", b.name, "failures", failures, "error", err)
		}
		return
	}
	if b.backoff == 0 {
		b.backoff = b.cfg.InitialBackoff
	} else {
		b.backoff = min(2*b.backoff, b.cfg.MaxBackoff)
	}
	b.retryAt = b.now().Add(b.backoff)
	backoff := b.backoff
	b.mu.Unlock()

	b.logger.Warn("gateway entered cooldown", "gateway", b.name, "backoff", backoff, "failures", failures, "error", err)
}

func (b *breaker) status() GatewayStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return GatewayStatus{
		Name:      b.name,
		State:     b.stateLocked(),
		Available: b.allowLocked(),
		Failures:  b.failures,
	}
}
