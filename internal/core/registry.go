package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var registry = struct {
	sync.RWMutex
	modules map[ModuleID]ModuleInfo
}{modules: make(map[ModuleID]ModuleInfo)}

// RegisterModule records a module so it can be loaded by ID from config.
// It panics on an empty ID, a nil constructor, or a duplicate ID.
// Intended to be called from init() functions.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()

	if _, exists := registry.modules[info.ID]; exists {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	registry.modules[info.ID] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.modules[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace returns the modules in the given namespace
// (e.g., "store" matches "store.sqlite"), sorted by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(info ModuleInfo) bool {
		return info.ID.Namespace() == namespace && string(info.ID) != namespace
	})
}

func collect(keep func(ModuleInfo) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var result []ModuleInfo
	for _, info := range registry.modules {
		if keep(info) {
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
	registry.modules = make(map[ModuleID]ModuleInfo)
}
