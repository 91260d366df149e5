// Package logger implements the log collecting plugin.
//
// Any plugin or script publishes a Generate command on Action to append an
// entry; the host's log view renders Entries. Coordinator failure reports
// are collected as well, so a failing handler always leaves a visible
// trace.
package logger

import (
	"fmt"
	"time"

	"github.com/dshills/bluebird/internal/core"
	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/pubsub"
	"github.com/google/uuid"
)

// Action carries log commands.
const Action = "designer.logger.log"

// Command kinds.
const (
	KindGenerate = "Generate"
	KindClear    = "Clear"
)

// Well-known categories.
const (
	CategoryError   = "Error"
	CategoryWarning = "Warning"
	CategoryInfo    = "Info"
	CategoryTrace   = "Trace"
	CategorySucceed = "Succeed"
)

// ID is the fixed plugin UUID.
var ID = uuid.MustParse("aacd2e16-52b1-40e8-b504-0aceffd5b466")

// Command is a log command.
type Command struct {
	Kind     string `json:"kind"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Action implements envelope.Command.
func (Command) Action() string { return Action }

// Generate appends an entry.
func Generate(category, content string) Command {
	return Command{Kind: KindGenerate, Category: category, Content: content}
}

// Clear removes every entry.
func Clear() Command {
	return Command{Kind: KindClear}
}

// Entry is one collected log line.
type Entry struct {
	Sender   string    `json:"sender"`
	Category string    `json:"category"`
	Content  string    `json:"content"`
	At       time.Time `json:"at"`
}

// Option configures the plugin.
type Option func(*Plugin)

// WithMaxEntries bounds the entry list; the oldest entries are dropped.
// Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(p *Plugin) {
		if n >= 0 {
			p.maxEntries = n
		}
	}
}

// WithLogger mirrors entries to l at debug level.
func WithLogger(l *logging.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.log = l
		}
	}
}

// Plugin collects log entries.
type Plugin struct {
	plugin.Base

	entries    []Entry
	maxEntries int
	appended   pubsub.Bus[*Plugin, Entry]
	log        *logging.Logger
	now        func() time.Time
}

// New creates a Disabled logger plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase(plugin.Info{
			ID:          ID,
			Name:        "Logger (Native plugin)",
			Description: "Collect logs from other plugin or extension.",
			Version:     plugin.Version{Patch: 1},
			Author:      "dream-lab",
		}),
		log: logging.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Entries returns a copy of the collected entries, oldest first.
func (p *Plugin) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Subscribe registers fn to receive every appended entry. It runs on the
// coordinator goroutine, after the entry is stored.
func (p *Plugin) Subscribe(fn pubsub.Handler[*Plugin, Entry]) pubsub.HandlerID {
	return p.appended.Subscribe(fn)
}

// Unsubscribe removes a handler added with Subscribe.
func (p *Plugin) Unsubscribe(id pubsub.HandlerID) error {
	return p.appended.Unsubscribe(id)
}

// Handle implements plugin.Plugin.
func (p *Plugin) Handle(c plugin.Core, sender, action string, payload envelope.Payload) error {
	switch action {
	case Action:
		var cmd Command
		if err := payload.Decode(&cmd); err != nil {
			return err
		}
		switch cmd.Kind {
		case KindGenerate:
			p.append(sender, cmd.Category, cmd.Content)
		case KindClear:
			p.entries = nil
		default:
			return plugin.UnknownCommand(action, cmd.Kind)
		}

	case core.ActionHandlerFailed, core.ActionPluginFailed, core.ActionStateDiscarded:
		var f core.Failure
		if err := payload.Decode(&f); err != nil {
			return err
		}
		category, content := describeFailure(action, f)
		p.append(sender, category, content)

	default:
		return nil
	}

	c.NotifyHost()
	return nil
}

func (p *Plugin) append(sender, category, content string) {
	e := Entry{
		Sender:   sender,
		Category: category,
		Content:  content,
		At:       p.now(),
	}
	p.entries = append(p.entries, e)
	if p.maxEntries > 0 && len(p.entries) > p.maxEntries {
		drop := len(p.entries) - p.maxEntries
		p.entries = append(p.entries[:0], p.entries[drop:]...)
	}
	p.log.Debug(content, "sender", sender, "category", category)
	p.appended.Publish(p, e)
}

func describeFailure(action string, f core.Failure) (category, content string) {
	switch action {
	case core.ActionHandlerFailed:
		return CategoryError, fmt.Sprintf("%s failed to handle %s from %s: %s", f.Plugin, f.Action, f.Sender, f.Error)
	case core.ActionPluginFailed:
		return CategoryError, fmt.Sprintf("%s failed to initialize: %s", f.Plugin, f.Error)
	default:
		return CategoryWarning, fmt.Sprintf("stored state of %s discarded: %s", f.Plugin, f.Error)
	}
}

// LoadState is a no-op: entries live for one session.
func (p *Plugin) LoadState(plugin.Storage) error {
	return nil
}

// StoreState is a no-op: entries live for one session.
func (p *Plugin) StoreState(plugin.Storage) error {
	return nil
}

// State returns {"logs": [...]}.
func (p *Plugin) State() envelope.Payload {
	out, err := envelope.PayloadOf(map[string]any{"logs": p.Entries()})
	if err != nil {
		return envelope.Null()
	}
	return out
}
