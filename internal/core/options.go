package core

import (
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the host notifier. A nil notifier keeps the no-op
// default.
func WithNotifier(n HostNotifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPlugins registers plugins in the given order.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(c *Coordinator) {
		c.pending = append(c.pending, plugins...)
	}
}
