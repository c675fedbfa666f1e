// Package gateway implements the gateway.http module: the HTTP and
// websocket surface in front of the conversation engine.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/internal/metrics"
	"github.com/sori-ai/sori/internal/provider"
	"github.com/sori-ai/sori/internal/security"
	"github.com/sori-ai/sori/internal/session"
	"github.com/sori-ai/sori/pkg/message"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// RateLimiterService is the AppContext service holding the per-session
// turn limiter, so the scheduler can sweep it.
const RateLimiterService = "gateway.ratelimiter"

// Conversations is the engine surface served by the gateway.
type Conversations interface {
	ProcessTurn(ctx context.Context, sessionID, text string) (string, error)
	StreamTurn(ctx context.Context, sessionID, text string) <-chan engine.StreamEvent
	StreamText(ctx context.Context, sessionID, text string) <-chan engine.StreamEvent
	SetProfile(ctx context.Context, sessionID string, age *int, interests []string) error
	History(ctx context.Context, sessionID string) ([]message.Turn, error)
	AudioFormat() string
	Registry() *session.Registry
}

var (
	_ Conversations     = (*engine.Engine)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	turns     *security.RateLimiter
	auths     *security.RateLimiter
	startedAt time.Time

	// Resolved at Start through the service registry.
	conv    Conversations
	chain   *provider.Chain
	metrics *metrics.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.turns = security.NewRateLimiter(g.config.RateLimit.MessagesPerMin, time.Minute)
	g.auths = security.NewRateLimiter(g.config.RateLimit.AuthPerMin, time.Minute)

	security.AddSecrets(ctx, g.config.Auth.BearerToken, g.config.Auth.BasicPass)
	ctx.RegisterService(RateLimiterService, g.turns)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. The engine is looked up here rather than
// at Provision because it is assembled after every module is provisioned.
func (g *Gateway) Start() error {
	conv, err := core.Lookup[Conversations](g.appCtx, engine.ServiceName)
	if err != nil {
		return fmt.Errorf("gateway: no engine: %w", err)
	}
	g.conv = conv

	if svc, ok := g.appCtx.GetService(provider.ChainService); ok {
		g.chain, _ = svc.(*provider.Chain)
	}
	if svc, ok := g.appCtx.GetService(metrics.ServiceName); ok {
		g.metrics, _ = svc.(*metrics.Metrics)
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadTimeout:       g.config.ReadTimeout,
		ReadHeaderTimeout: g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
// Hijacked websocket connections are not tracked by Shutdown; their
// handlers end when the engine stream ends.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
