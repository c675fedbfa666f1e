package core

import (
	"context"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModuleID is a dotted module identifier such as "memory.sqlite". The
// segment before the first dot is the namespace.
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the first dot.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Module is the minimal interface every module implements. The optional
// interfaces below are discovered with type assertions and run in this
// order: Configure, Provision, Validate when the module is loaded, then
// Start once the engine has been wired from the loaded services, and Stop
// in reverse order at shutdown.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Configurable modules decode their section of the modules map.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open connections and clients, and
// publish services (a memory.Backend, the redactor's secrets) on the
// AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their configuration after Provision.
type Validator interface {
	Validate() error
}

// Starter modules begin background work such as listeners and schedulers.
type Starter interface {
	Start() error
}

// Stopper modules release resources. ctx bounds the whole shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}
