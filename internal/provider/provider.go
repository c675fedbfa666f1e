// Package provider defines the model gateway contract consumed by the
// conversation engine, the gateway error taxonomy, and a failover chain
// with health tracking across several gateways.
package provider

import "context"

// Gateway invokes a language model with a fully built prompt and returns
// the reply text. Concrete implementations live in separate packages
// (e.g., provider.openai) and typically also implement core.Module.
type Gateway interface {
	Invoke(ctx context.Context, p Prompt) (string, error)
}

// StreamingGateway is implemented by gateways that can deliver the reply
// incrementally. Initial connection errors are returned directly;
// mid-stream errors are delivered via StreamChunk.Err and end the stream.
type StreamingGateway interface {
	Gateway
	InvokeStream(ctx context.Context, p Prompt) (<-chan StreamChunk, error)
}

// HealthChecker is an optional interface that gateways may implement
// to support active health probing. When a gateway is in cooldown,
// the chain calls HealthCheck periodically to find out if it recovered.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Named is implemented by gateways that can report the model they target.
type Named interface {
	ModelName() string
}
