// Package plugin defines the contract every designer feature unit implements
// and the insertion-ordered registry that holds them.
//
// # Lifecycle
//
// A plugin starts Disabled. The coordinator calls Initialize exactly once
// and then Enable, in registration order. Enable and Disable only toggle
// Status; a Disabled plugin keeps its in-memory state but receives no Handle
// calls. There is no removal: plugins live as long as the coordinator.
//
//	Disabled --Enable--> Enabled --Disable--> Disabled --> ...
//
// Enable is idempotent status-wise but is still invoked every time, so
// implementations with side effects must guard against repeating them.
//
// # Messaging
//
// Plugins never call each other. They receive envelopes through Handle and
// send them with Core.Publish. Handle runs synchronously on the dispatch
// goroutine and must not block.
//
// # Lookup
//
// Lookup finds the first registered plugin of a concrete type:
//
//	pm, ok := plugin.Lookup[*project.Manager](core)
//	if !ok {
//	    return nil // no project manager registered
//	}
//
// The returned value must not be retained past the current synchronous
// operation. Absence is a normal result, never an error.
//
// # Persistence
//
// LoadState and StoreState round-trip a plugin's persisted fields through a
// Storage supplied by the host. State returns a read-only snapshot for
// diagnostics without touching storage.
package plugin
