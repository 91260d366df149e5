package plugin

// Base carries identity and status for concrete plugins. Embed it to get
// Info, Status, a no-op Initialize and toggle-only Enable/Disable.
type Base struct {
	info   Info
	status Status
}

// NewBase creates a Disabled Base with the given identity.
func NewBase(info Info) Base {
	return Base{info: info, status: Disabled}
}

// Info returns the plugin identity.
func (b *Base) Info() Info {
	return b.info
}

// Status returns the current status.
func (b *Base) Status() Status {
	return b.status
}

// Enabled reports whether the status is Enabled.
func (b *Base) Enabled() bool {
	return b.status == Enabled
}

// Initialize does nothing.
func (b *Base) Initialize(Core) error {
	return nil
}

// Enable sets the status to Enabled.
func (b *Base) Enable(Core) {
	b.status = Enabled
}

// Disable sets the status to Disabled.
func (b *Base) Disable(Core) {
	b.status = Disabled
}
