package core

// HostNotifier receives the one-way "state changed, redraw" signal.
// Implementations must not fail and must not block.
type HostNotifier interface {
	NotifyHost()
}

// NotifierFunc adapts a function to HostNotifier.
type NotifierFunc func()

// NotifyHost calls f.
func (f NotifierFunc) NotifyHost() {
	f()
}

type nopNotifier struct{}

func (nopNotifier) NotifyHost() {}

// NopNotifier returns a notifier that does nothing.
func NopNotifier() HostNotifier {
	return nopNotifier{}
}
