package app

import (
	"context"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugins/files"
	"github.com/dshills/bluebird/internal/watch"
)

// Run owns the coordinator until ctx ends or Shutdown is called. It
// delivers submitted envelopes and turns watcher events into FileChanged
// commands.
func (app *Application) Run(ctx context.Context) error {
	app.mu.Lock()
	switch {
	case app.closed:
		app.mu.Unlock()
		return ErrClosed
	case !app.started:
		app.mu.Unlock()
		return ErrNotStarted
	case app.running:
		app.mu.Unlock()
		return ErrAlreadyRunning
	}
	app.running = true
	app.mu.Unlock()
	defer close(app.stopped)

	var (
		events <-chan watch.Event
		errs   <-chan error
	)
	if app.watcher != nil {
		events = app.watcher.Events()
		errs = app.watcher.Errors()
	}

	app.log.Info("application running", "plugins", app.coord.Plugins().Len())
	for {
		select {
		case <-ctx.Done():
			app.drainSubmissions()
			return nil
		case <-app.done:
			app.drainSubmissions()
			return nil
		case env := <-app.submit:
			app.deliver(env)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			app.fileChanged(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			app.log.Warn("watcher error", "error", err)
		}
	}
}

func (app *Application) deliver(env envelope.Envelope) {
	if err := app.coord.PublishEnvelope(env); err != nil {
		app.log.Warn("submission rejected", "sender", env.Sender, "action", env.Action, "error", err)
		return
	}
	app.syncWatch()
}

func (app *Application) fileChanged(ev watch.Event) {
	env, err := envelope.Encode(Sender, files.FileChanged(ev.Path, ev.Op.String()))
	if err != nil {
		app.log.Warn("file change dropped", "path", ev.Path, "error", err)
		return
	}
	app.deliver(env)
}

// drainSubmissions delivers whatever was accepted before the loop stopped.
func (app *Application) drainSubmissions() {
	for {
		select {
		case env := <-app.submit:
			app.deliver(env)
		default:
			return
		}
	}
}
