package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// registry holds every compiled-in module, keyed by ID.
var registry = struct {
	sync.RWMutex
	infos map[ModuleID]ModuleInfo
}{infos: make(map[ModuleID]ModuleInfo)}

// RegisterModule records a module so configuration can refer to it by ID.
// IDs must have the form "<namespace>.<name>": the namespace decides which
// role the module plays in the engine (memory, provider, speech, gateway).
// It panics on an invalid or duplicate ID and is meant to be called from
// init functions.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("core: module ID must not be empty")
	}
	if info.ID.Name() == string(info.ID) || info.ID.Namespace() == "" {
		panic(fmt.Sprintf("core: module ID %q has no namespace", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s: New must not be nil", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, exists := registry.infos[info.ID]; exists {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	registry.infos[info.ID] = info
}

// GetModule returns the ModuleInfo for id.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.infos[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace sorted by ID:
// "provider" matches "provider.openai" and "provider.anthropic".
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(id ModuleID) bool { return id.Namespace() == namespace })
}

// ModuleIDs returns the sorted IDs of a namespace, for messages listing
// the available choices.
func ModuleIDs(namespace string) []string {
	infos := GetModulesByNamespace(namespace)
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = string(info.ID)
	}
	return ids
}

func collect(keep func(ModuleID) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var result []ModuleInfo
	for id, info := range registry.infos {
		if keep(id) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.infos = make(map[ModuleID]ModuleInfo)
}
