package core

import "strings"

// ModuleID identifies a module in the registry, namespaced with a dot
// (e.g. "channel.telegram", "provider.openai", "store.sqlite").
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the namespace ("telegram" for
// "channel.telegram"). Channels use it to tag inbound messages.
func (id ModuleID) Name() string {
	if _, name, ok := strings.Cut(string(id), "."); ok {
		return name
	}
	return string(id)
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique, namespaced module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every parrot module implements. Optional
// behavior is discovered through the lifecycle interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
