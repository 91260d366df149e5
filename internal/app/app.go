// Package app wires the coordinator, storage, built-in plugins, Lua script
// plugins and the project file watcher into a runnable host.
//
// The coordinator is single threaded. Every call into it happens either
// from the goroutine running Run or, before Run starts and after it
// returns, from the caller of Start, Dispatch and Shutdown. Other
// goroutines hand work to the loop through Submit.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/bluebird/internal/config"
	"github.com/dshills/bluebird/internal/core"
	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/files"
	"github.com/dshills/bluebird/internal/plugins/interceptor"
	"github.com/dshills/bluebird/internal/plugins/logger"
	"github.com/dshills/bluebird/internal/plugins/project"
	"github.com/dshills/bluebird/internal/plugins/script"
	"github.com/dshills/bluebird/internal/plugins/window"
	"github.com/dshills/bluebird/internal/storage"
	"github.com/dshills/bluebird/internal/watch"
)

// Sender identifies envelopes submitted by the host.
const Sender = "designer.host"

// submitBuffer bounds queued submissions before Submit blocks.
const submitBuffer = 64

// Application is a configured coordinator with its plugins and resources.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	ownLog  bool
	coord   *core.Coordinator
	store   storage.Backend
	scripts []*script.Plugin
	watcher *watch.Watcher

	submit  chan envelope.Envelope
	redraw  chan struct{}
	done    chan struct{}
	stopped chan struct{}

	mu        sync.Mutex
	sendMu    sync.RWMutex // held by Submit while sending
	started   bool
	running   bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures an Application.
type Option func(*options)

type options struct {
	log    *logging.Logger
	extra  []plugin.Plugin
	notify func()
}

// WithLogger uses l instead of a logger built from the config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithPlugins registers extra plugins after the built-ins and scripts.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(o *options) {
		o.extra = append(o.extra, plugins...)
	}
}

// WithNotify calls fn on every host notification in addition to
// signalling Redraws.
func WithNotify(fn func()) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// New builds an application from cfg. Script plugins that fail to load are
// logged and skipped.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &Application{
		cfg:     cfg,
		log:     o.log,
		submit:  make(chan envelope.Envelope, submitBuffer),
		redraw:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	if app.log == nil {
		l, err := newLogger(cfg)
		if err != nil {
			return nil, &InitError{Component: "logging", Err: err}
		}
		app.log = l
		app.ownLog = true
	}

	store, err := storage.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		app.closeLog()
		return nil, &InitError{Component: "storage", Err: err}
	}
	app.store = store

	notify := o.notify
	coord, err := core.New(
		core.WithLogger(app.log.WithComponent("core")),
		core.WithNotifier(core.NotifierFunc(func() {
			app.signalRedraw()
			if notify != nil {
				notify()
			}
		})),
	)
	if err != nil {
		app.release()
		return nil, &InitError{Component: "coordinator", Err: err}
	}
	app.coord = coord

	for _, p := range app.builtins() {
		if err := coord.Register(p); err != nil {
			app.release()
			return nil, &InitError{Component: "plugins", Err: err}
		}
	}
	app.loadScripts()
	for _, p := range o.extra {
		if err := coord.Register(p); err != nil {
			app.release()
			return nil, &InitError{Component: "plugins", Err: err}
		}
	}

	return app, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.LoggerConfig()
	if cfg.Logging.File != "" {
		return logging.NewFile(cfg.Logging.File, lc)
	}
	return logging.New(lc), nil
}

// builtins returns the native plugins in registration order. The
// interceptor comes first so it records every envelope before any other
// plugin reacts to it.
func (app *Application) builtins() []plugin.Plugin {
	return []plugin.Plugin{
		interceptor.New(app.cfg.Interceptor.Capacity),
		logger.New(
			logger.WithMaxEntries(app.cfg.Logger.MaxEntries),
			logger.WithLogger(app.log.WithComponent("logger")),
		),
		project.New(project.WithLogger(app.log.WithComponent("project"))),
		window.New(window.WithLogger(app.log.WithComponent("window"))),
		files.New(
			files.WithIgnore(app.cfg.Files.Ignore...),
			files.WithLogger(app.log.WithComponent("files")),
		),
	}
}

func (app *Application) loadScripts() {
	for _, path := range app.cfg.Scripts.Paths {
		p, err := script.Load(path,
			script.WithTimeout(app.cfg.ScriptTimeout()),
			script.WithLogger(app.log),
		)
		if err != nil {
			app.log.Warn("script plugin not loaded", "path", path, "error", err)
			continue
		}
		if err := app.coord.Register(p); err != nil {
			app.log.Warn("script plugin not registered", "path", path, "error", err)
			_ = p.Close()
			continue
		}
		app.scripts = append(app.scripts, p)
	}
}

// Start initializes every plugin, restores persisted state and reopens the
// workspace project. Plugin failures are logged and do not stop startup.
func (app *Application) Start() error {
	app.mu.Lock()
	switch {
	case app.closed:
		app.mu.Unlock()
		return ErrClosed
	case app.started:
		app.mu.Unlock()
		return ErrAlreadyRunning
	}
	app.started = true
	app.mu.Unlock()

	if err := app.coord.InitializeAll(); err != nil {
		app.log.Warn("some plugins failed to initialize", "error", err)
	}
	if err := app.coord.LoadStates(app.store); err != nil {
		app.log.Warn("some plugin state was discarded", "error", err)
	}

	dir := app.cfg.Workspace.Path
	if dir == "" {
		if pm, ok := core.GetPlugin[*project.Plugin](app.coord); ok {
			dir = pm.Path()
		}
	}
	if dir != "" {
		if err := app.coord.Publish(Sender, project.OpenProject(dir)); err != nil {
			return err
		}
	}

	if app.cfg.Files.Watch {
		if err := app.startWatcher(); err != nil {
			app.log.Warn("file watching disabled", "error", err)
		}
	}
	app.syncWatch()
	return nil
}

func (app *Application) startWatcher() error {
	ig, err := watch.NewIgnore(app.cfg.Files.Ignore...)
	if err != nil {
		return err
	}
	w, err := watch.New(watch.WithIgnore(ig), watch.WithDebounce(app.cfg.Files.Debounce.Std()))
	if err != nil {
		return err
	}
	app.watcher = w
	return nil
}

// syncWatch points the watcher at the currently open project.
func (app *Application) syncWatch() {
	if app.watcher == nil {
		return
	}
	dir := ""
	if pm, ok := core.GetPlugin[*project.Plugin](app.coord); ok && pm.IsOpen() {
		dir = pm.Path()
	}
	if dir == app.watcher.Root() {
		return
	}
	app.watcher.Unwatch()
	if dir == "" {
		return
	}
	if err := app.watcher.Watch(dir); err != nil {
		app.log.Warn("cannot watch project", "path", dir, "error", err)
		return
	}
	app.log.Debug("watching project", "path", dir, "dirs", app.watcher.Watched())
}

// Dispatch publishes cmd on the caller's goroutine. It is meant for one
// shot use before Run or after it returns.
func (app *Application) Dispatch(sender string, cmd envelope.Command) error {
	if err := app.idle(); err != nil {
		return err
	}
	if err := app.coord.Publish(sender, cmd); err != nil {
		return err
	}
	app.syncWatch()
	return nil
}

// idle reports whether the caller may use the coordinator directly.
func (app *Application) idle() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	switch {
	case app.closed:
		return ErrClosed
	case !app.started:
		return ErrNotStarted
	case app.running:
		select {
		case <-app.stopped:
			return nil
		default:
			return ErrAlreadyRunning
		}
	}
	return nil
}

// Submit hands cmd to the Run loop. It is safe for concurrent use. The
// command is encoded immediately so serialization errors reach the caller.
// Every accepted command is delivered, by Run or at the latest by Shutdown.
func (app *Application) Submit(ctx context.Context, sender string, cmd envelope.Command) error {
	env, err := envelope.Encode(sender, cmd)
	if err != nil {
		return err
	}

	app.sendMu.RLock()
	defer app.sendMu.RUnlock()

	app.mu.Lock()
	closed, started := app.closed, app.started
	app.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case !started:
		return ErrNotStarted
	}

	select {
	case app.submit <- env:
		return nil
	case <-app.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Redraws delivers a coalesced signal whenever plugin state visible to the
// host changed.
func (app *Application) Redraws() <-chan struct{} {
	return app.redraw
}

func (app *Application) signalRedraw() {
	select {
	case app.redraw <- struct{}{}:
	default:
	}
}

// Config returns the configuration the application was built with.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Coordinator returns the underlying coordinator. It must only be used
// from the goroutine that owns it.
func (app *Application) Coordinator() *core.Coordinator {
	return app.coord
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.log
}

// Scripts returns the loaded script plugins.
func (app *Application) Scripts() []*script.Plugin {
	return app.scripts
}

// Snapshot returns every plugin's state keyed by name.
func (app *Application) Snapshot() map[string]envelope.Payload {
	return app.coord.Snapshot()
}

// Shutdown stops the Run loop, stores plugin state and releases every
// resource. It waits for Run to return or ctx to end. Later calls return
// the first result.
func (app *Application) Shutdown(ctx context.Context) error {
	app.closeOnce.Do(func() {
		app.mu.Lock()
		app.closed = true
		close(app.done)
		running, started := app.running, app.started
		app.mu.Unlock()

		// Wait out in-flight Submit calls; later ones see closed.
		app.sendMu.Lock()
		app.sendMu.Unlock()

		if running {
			select {
			case <-app.stopped:
			case <-ctx.Done():
				app.closeErr = fmt.Errorf("waiting for loop: %w", ctx.Err())
				return
			}
		}

		var errs []error
		if started {
			app.drainSubmissions()
			if err := app.coord.StoreStates(app.store); err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, app.release())
		app.closeErr = errors.Join(errs...)
	})
	return app.closeErr
}

// release closes the watcher, scripts, storage and owned log file.
func (app *Application) release() error {
	var errs []error
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watcher: %w", err))
		}
	}
	for _, s := range app.scripts {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close script %s: %w", s.Path(), err))
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	app.closeLog()
	return errors.Join(errs...)
}

func (app *Application) closeLog() {
	if app.ownLog {
		_ = app.log.Close()
	}
}
