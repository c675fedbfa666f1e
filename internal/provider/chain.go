package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ChainService is the AppContext service holding the assembled *Chain.
const ChainService = "provider.chain"

// ChainEntry configures one member of a Chain.
type ChainEntry struct {
	Name    string
	Gateway Gateway
	Health  HealthConfig
}

type member struct {
	name string
	gw   Gateway
	br   *breaker
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger sets the chain logger. Without it output is discarded.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain is a Gateway that tries its members in order. A retryable failure
// (rate limit, outage) benches the member and moves on; anything else is
// returned to the caller unchanged.
type Chain struct {
	members []*member
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

var (
	_ Gateway          = (*Chain)(nil)
	_ StreamingGateway = (*Chain)(nil)
)

func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}
	c := &Chain{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	for _, e := range entries {
		if e.Gateway == nil {
			return nil, fmt.Errorf("%w: entry %q has nil gateway", ErrNoProvider, e.Name)
		}
		c.members = append(c.members, &member{name: e.Name, gw: e.Gateway, br: newBreaker(e.Name, e.Health, c.logger)})
	}
	return c, nil
}

// Start launches the background probe loop. Calling it twice is a no-op.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	go c.probe(ctx)
}

// Stop ends the probe loop.
func (c *Chain) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Chain) Invoke(ctx context.Context, p Prompt) (string, error) {
	var reply string
	err := c.failover(ctx, func(m *member) error {
		r, err := m.gw.Invoke(ctx, p)
		if err != nil {
			return err
		}
		m.br.succeed()
		reply = r
		return nil
	})
	return reply, err
}

// InvokeStream streams from the first available member. Members that
// cannot stream answer with a single chunk. Failover stops once a stream
// has been handed out.
func (c *Chain) InvokeStream(ctx context.Context, p Prompt) (<-chan StreamChunk, error) {
	var out <-chan StreamChunk
	err := c.failover(ctx, func(m *member) error {
		sg, ok := m.gw.(StreamingGateway)
		if !ok {
			r, err := m.gw.Invoke(ctx, p)
			if err != nil {
				return err
			}
			m.br.succeed()
			out = singleChunk(r)
			return nil
		}
		ch, err := sg.InvokeStream(ctx, p)
		if err != nil {
			return err
		}
		out = c.watch(ch, m)
		return nil
	})
	return out, err
}

func (c *Chain) failover(ctx context.Context, call func(*member) error) error {
	var lastErr error
	for _, m := range c.members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.br.allow() {
			continue
		}
		err := call(m)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		m.br.fail(err)
	}

	if lastErr == nil {
		c.logger.Error("all gateways exhausted", "reason", "none available")
		return fmt.Errorf("%w: all candidates unavailable", ErrAllProviders)
	}
	c.logger.Error("all gateways exhausted", "last_error", lastErr)
	return fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
}

// Status reports every member in chain order.
func (c *Chain) Status() []GatewayStatus {
	out := make([]GatewayStatus, len(c.members))
	for i, m := range c.members {
		out[i] = m.br.status()
	}
	return out
}

// watch forwards a stream and settles the member's health when it ends.
func (c *Chain) watch(src <-chan StreamChunk, m *member) <-chan StreamChunk {
	out := make(chan StreamChunk, cap(src))
	go func() {
		defer close(out)
		var streamErr error
		for chunk := range src {
			if chunk.Err != nil && IsRetryable(chunk.Err) {
				streamErr = chunk.Err
			}
			out <- chunk
		}
		if streamErr != nil {
			m.br.fail(streamErr)
			return
		}
		m.br.succeed()
	}()
	return out
}

func singleChunk(text string) <-chan StreamChunk {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Delta: text}
	close(ch)
	return ch
}

// probe health-checks benched members every CheckInterval (the shortest
// across members) until ctx is done.
func (c *Chain) probe(ctx context.Context) {
	interval := c.members[0].br.cfg.CheckInterval
	for _, m := range c.members[1:] {
		interval = min(interval, m.br.cfg.CheckInterval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, m := range c.members {
			checker, ok := m.gw.(HealthChecker)
			if !ok || !m.br.probeDue() {
				continue
			}
			if err := checker.HealthCheck(ctx); err == nil {
				m.br.succeed()
			}
		}
	}
}
