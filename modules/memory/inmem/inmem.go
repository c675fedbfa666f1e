// Package inmem implements the memory.inmem module: process-local history
// and profile stores. Everything is lost on exit.
package inmem

import (
	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/memory"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ memory.Backend   = (*Module)(nil)
	_ core.Provisioner = (*Module)(nil)
)

// Module wraps memory.InMemoryBackend.
type Module struct {
	*memory.InMemoryBackend
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.inmem",
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.InMemoryBackend = memory.NewInMemoryBackend()
	ctx.RegisterService(memory.ServiceName, memory.Backend(m))
	ctx.Logger.Warn("in-memory store: history and profiles will not survive a restart")
	return nil
}
