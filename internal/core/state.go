package core

import (
	"errors"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
)

// LoadStates restores every plugin from provider. A plugin whose state
// cannot be loaded keeps its current (default) state; the failure is
// logged, published as ActionStateDiscarded and included in the returned
// joined error. Call it after InitializeAll so the failures reach enabled
// plugins.
func (c *Coordinator) LoadStates(provider plugin.Provider) error {
	var errs []error
	for _, p := range c.registry.All() {
		info := p.Info()
		if err := p.LoadState(provider.For(info)); err != nil {
			serr := &plugin.StateError{Plugin: info.Name, Op: "load", Err: err}
			c.logger.Warn("plugin state discarded", "plugin", info.Name, "error", err)
			c.report(ActionStateDiscarded, Failure{Plugin: info.Name, Error: err.Error()})
			errs = append(errs, serr)
		}
	}
	c.kick()
	return errors.Join(errs...)
}

// StoreStates persists every plugin through provider. All plugins are
// attempted; failures are returned joined.
func (c *Coordinator) StoreStates(provider plugin.Provider) error {
	var errs []error
	for _, p := range c.registry.All() {
		info := p.Info()
		if err := p.StoreState(provider.For(info)); err != nil {
			c.logger.Error("plugin state not stored", "plugin", info.Name, "error", err)
			errs = append(errs, &plugin.StateError{Plugin: info.Name, Op: "store", Err: err})
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns every plugin's State keyed by plugin name.
func (c *Coordinator) Snapshot() map[string]envelope.Payload {
	out := make(map[string]envelope.Payload, c.registry.Len())
	for _, p := range c.registry.All() {
		out[p.Info().Name] = p.State()
	}
	return out
}
