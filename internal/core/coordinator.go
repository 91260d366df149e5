package core

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/google/uuid"
)

// Stats counts dispatch activity.
type Stats struct {
	Published int64
	Delivered int64
	Failures  int64
	MaxQueue  int
}

// Coordinator owns the plugin registry, the envelope queue and the
// re-entrancy guard.
type Coordinator struct {
	registry *plugin.Registry
	queue    []envelope.Envelope

	// draining is set while a drain loop runs.
	draining    bool
	initialized bool

	notifier HostNotifier
	logger   *logging.Logger
	stats    Stats

	pending []plugin.Plugin
}

// New creates a coordinator. Plugins passed with WithPlugins are
// registered in order; the first registration error is returned.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		registry: plugin.NewRegistry(),
		notifier: NopNotifier(),
		logger:   logging.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("core")

	pending := c.pending
	c.pending = nil
	for _, p := range pending {
		if err := c.Register(p); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Register appends a plugin to the registry. Registration is only allowed
// before InitializeAll.
func (c *Coordinator) Register(p plugin.Plugin) error {
	if c.initialized {
		return ErrAlreadyInitialized
	}
	if err := c.registry.Add(p); err != nil {
		return err
	}
	c.logger.Debug("plugin registered", "plugin", p.Info().Name, "uuid", p.Info().ID)
	return nil
}

// Plugins returns the registry.
func (c *Coordinator) Plugins() *plugin.Registry {
	return c.registry
}

// InitializeAll calls Initialize then Enable on every plugin in
// registration order. A plugin whose Initialize fails stays Disabled; the
// rest still start. Failures are published as ActionPluginFailed once every
// plugin has been processed, and returned joined.
func (c *Coordinator) InitializeAll() error {
	if c.initialized {
		return ErrAlreadyInitialized
	}
	c.initialized = true

	var errs []error
	for _, p := range c.registry.All() {
		name := p.Info().Name
		if err := p.Initialize(c); err != nil {
			c.logger.Error("plugin initialize failed", "plugin", name, "error", err)
			errs = append(errs, &InitError{Plugin: name, Err: err})
			continue
		}
		p.Enable(c)
		c.logger.Debug("plugin enabled", "plugin", name)
	}

	for _, err := range errs {
		var ie *InitError
		if errors.As(err, &ie) {
			c.report(ActionPluginFailed, Failure{Plugin: ie.Plugin, Error: ie.Err.Error()})
		}
	}
	c.kick()

	return errors.Join(errs...)
}

// Initialized reports whether InitializeAll has run.
func (c *Coordinator) Initialized() bool {
	return c.initialized
}

// Publish encodes cmd and appends it to the queue. If no drain loop is
// active it drains the queue before returning; otherwise the active loop
// delivers it. Only encoding failures are returned.
func (c *Coordinator) Publish(sender string, cmd envelope.Command) error {
	env, err := envelope.Encode(sender, cmd)
	if err != nil {
		c.logger.Warn("publish rejected", "sender", sender, "error", err)
		return err
	}
	c.enqueue(env)
	c.kick()
	return nil
}

// PublishEnvelope queues an already encoded envelope.
func (c *Coordinator) PublishEnvelope(env envelope.Envelope) error {
	if env.Action == "" {
		return &envelope.SerializationError{Op: "encode", Err: envelope.ErrEmptyAction}
	}
	c.enqueue(env)
	c.kick()
	return nil
}

// NotifyHost signals the host that visible state changed.
func (c *Coordinator) NotifyHost() {
	c.notifier.NotifyHost()
}

// QueueLen returns the number of envelopes waiting for delivery, not
// counting the one currently being delivered.
func (c *Coordinator) QueueLen() int {
	return len(c.queue)
}

// Draining reports whether a drain loop is active.
func (c *Coordinator) Draining() bool {
	return c.draining
}

// Stats returns dispatch counters.
func (c *Coordinator) Stats() Stats {
	return c.stats
}

// SetEnabled enables or disables the plugin with the given id.
func (c *Coordinator) SetEnabled(id uuid.UUID, enabled bool) error {
	p, ok := c.registry.ByID(id)
	if !ok {
		return fmt.Errorf("plugin %s: %w", id, ErrPluginNotFound)
	}
	if enabled {
		p.Enable(c)
	} else {
		p.Disable(c)
	}
	c.NotifyHost()
	return nil
}

// GetPlugin returns the first registered plugin whose concrete type is T.
func GetPlugin[T plugin.Plugin](c *Coordinator) (T, bool) {
	return plugin.Find[T](c.registry)
}

func (c *Coordinator) enqueue(env envelope.Envelope) {
	c.queue = append(c.queue, env)
	c.stats.Published++
	if len(c.queue) > c.stats.MaxQueue {
		c.stats.MaxQueue = len(c.queue)
	}
}

// kick starts a drain loop unless one is already running.
func (c *Coordinator) kick() {
	if c.draining || len(c.queue) == 0 {
		return
	}
	c.drain()
	c.NotifyHost()
}

func (c *Coordinator) drain() {
	c.draining = true
	defer func() {
		c.draining = false
	}()

	for len(c.queue) > 0 {
		env := c.queue[0]
		c.queue[0] = envelope.Envelope{}
		c.queue = c.queue[1:]
		c.deliver(env)
	}
	c.queue = nil
}

// deliver hands env to every plugin that is Enabled at the moment of
// delivery, in registration order.
func (c *Coordinator) deliver(env envelope.Envelope) {
	c.logger.Debug("dispatch", "sender", env.Sender, "action", env.Action, "pending", len(c.queue))

	for _, p := range c.registry.All() {
		if p.Status() != plugin.Enabled {
			continue
		}
		c.stats.Delivered++
		if err := c.invoke(p, env); err != nil {
			c.stats.Failures++
			c.logger.Error("handler failed", "plugin", p.Info().Name, "action", env.Action, "error", err)
			if env.Action != ActionHandlerFailed {
				c.report(ActionHandlerFailed, Failure{
					Plugin: p.Info().Name,
					Action: env.Action,
					Sender: env.Sender,
					Error:  err.Error(),
				})
			}
		}
	}
}

func (c *Coordinator) invoke(p plugin.Plugin, env envelope.Envelope) (err error) {
	name := p.Info().Name
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Plugin: name,
				Action: env.Action,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	if herr := p.Handle(c, env.Sender, env.Action, env.Payload); herr != nil {
		return &HandlerError{Plugin: name, Action: env.Action, Err: herr}
	}
	return nil
}

// report queues a coordinator failure envelope without starting a drain.
func (c *Coordinator) report(action string, f Failure) {
	env, err := envelope.Encode(Sender, envelope.New(action, f))
	if err != nil {
		c.logger.Error("failure report not encodable", "action", action, "error", err)
		return
	}
	c.enqueue(env)
}
