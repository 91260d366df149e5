package plugin

import "github.com/dshills/bluebird/internal/envelope"

// Plugin is the capability set every hosted feature unit implements.
type Plugin interface {
	// Info returns the plugin's fixed identity.
	Info() Info

	// Status returns Enabled or Disabled.
	Status() Status

	// Initialize is called exactly once, before the first Enable. Other
	// plugins may not be enabled yet.
	Initialize(core Core) error

	// Enable sets the status to Enabled.
	Enable(core Core)

	// Disable sets the status to Disabled.
	Disable(core Core)

	// Handle receives one delivered envelope. It is only called while the
	// plugin is Enabled and must not block.
	Handle(core Core, sender, action string, payload envelope.Payload) error

	// LoadState replaces the persisted fields with the snapshot in storage.
	LoadState(storage Storage) error

	// StoreState writes the persisted fields to storage.
	StoreState(storage Storage) error

	// State returns a read-only snapshot for diagnostics and UI.
	State() envelope.Payload
}

// Core is the coordinator surface available to plugins.
type Core interface {
	// Publish queues an envelope for delivery to every enabled plugin.
	Publish(sender string, cmd envelope.Command) error

	// NotifyHost signals the host that visible state changed.
	NotifyHost()

	// Plugins returns the registry.
	Plugins() *Registry
}

// Lookup returns the first plugin in core's registry whose concrete type
// is T.
func Lookup[T Plugin](core Core) (T, bool) {
	if core == nil {
		var zero T
		return zero, false
	}
	return Find[T](core.Plugins())
}
