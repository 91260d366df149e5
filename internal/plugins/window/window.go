// Package window implements the window manager plugin: the set of open
// editor windows and the dock layout saved inside the project.
package window

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/logger"
	"github.com/dshills/bluebird/internal/plugins/project"
	"github.com/google/uuid"
)

// Bus names.
const (
	Sender      = "designer.window_manager"
	Action      = "designer.window_manager.management"
	EventAction = "designer.window_manager.event"
)

// Settings location inside a project.
const (
	SettingsDir  = ".designer"
	SettingsFile = "settings.json"
)

// Command kinds.
const (
	KindOpenWindow    = "OpenWindow"
	KindCloseWindow   = "CloseWindow"
	KindSaveDockState = "SaveDockState"
	KindLoadDockState = "LoadDockState"
)

// Event kinds.
const (
	EventDockStateSaved    = "DockStateSaved"
	EventDockStateRestored = "DockStateRestored"
	EventWindowOpened      = "WindowOpened"
	EventWindowClosed      = "WindowClosed"
)

// ID is the fixed plugin UUID.
var ID = uuid.MustParse("35f27394-492c-4af5-804d-803a18a606e8")

// ErrUnknownWindow is returned for a window id outside the known set.
var ErrUnknownWindow = errors.New("unknown window")

// WindowID names an editor window.
type WindowID string

// Editor windows.
const (
	WelcomePage           WindowID = "WelcomePage"
	FileManagerWindow     WindowID = "FileManagerWindow"
	LogViewWindow         WindowID = "LogViewWindow"
	InspectorWindow       WindowID = "InspectorWindow"
	LibraryWindow         WindowID = "LibraryWindow"
	ProjectSettingsWindow WindowID = "ProjectSettingsWindow"
	EditorSettingsWindow  WindowID = "EditorSettingsWindow"
	ExtensionsWindow      WindowID = "ExtensionsWindow"
	NodeEditorWindow      WindowID = "NodeEditorWindow"
	CodeEditorWindow      WindowID = "CodeEditorWindow"
)

// Windows lists every known window.
var Windows = []WindowID{
	WelcomePage, FileManagerWindow, LogViewWindow, InspectorWindow, LibraryWindow,
	ProjectSettingsWindow, EditorSettingsWindow, ExtensionsWindow, NodeEditorWindow, CodeEditorWindow,
}

// Valid reports whether id is a known window.
func (id WindowID) Valid() bool {
	return slices.Contains(Windows, id)
}

// Command is a window management command.
type Command struct {
	Kind   string            `json:"kind"`
	Window WindowID          `json:"window,omitempty"`
	State  *envelope.Payload `json:"state,omitempty"`
}

// Action implements envelope.Command.
func (Command) Action() string { return Action }

// OpenWindow shows a window.
func OpenWindow(id WindowID) Command { return Command{Kind: KindOpenWindow, Window: id} }

// CloseWindow hides a window.
func CloseWindow(id WindowID) Command { return Command{Kind: KindCloseWindow, Window: id} }

// SaveDockState writes the host's dock layout into the open project.
func SaveDockState(state envelope.Payload) Command {
	return Command{Kind: KindSaveDockState, State: &state}
}

// LoadDockState reads the dock layout of the open project.
func LoadDockState() Command { return Command{Kind: KindLoadDockState} }

// Event is published on EventAction.
type Event struct {
	Kind   string   `json:"kind"`
	Window WindowID `json:"window,omitempty"`
}

// Action implements envelope.Command.
func (Event) Action() string { return EventAction }

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.log = l
		}
	}
}

// Plugin is the window manager.
type Plugin struct {
	plugin.Base

	dockState envelope.Payload
	restores  uint64
	open      []WindowID
	log       *logging.Logger
}

// New creates a Disabled window manager.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase(plugin.Info{
			ID:          ID,
			Name:        "Window manager",
			Description: "Manages all the windowing functionality.",
			Version:     plugin.Version{Patch: 1},
			Author:      "dream-lab",
		}),
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DockState returns the last saved or restored layout.
func (p *Plugin) DockState() envelope.Payload {
	return p.dockState
}

// Restores counts successful layout restores. Hosts compare it against
// the value they last applied.
func (p *Plugin) Restores() uint64 {
	return p.restores
}

// OpenWindows returns the open windows in opening order.
func (p *Plugin) OpenWindows() []WindowID {
	return slices.Clone(p.open)
}

// SettingsPath returns the dock settings file of a project directory.
func SettingsPath(projectDir string) string {
	return filepath.Join(projectDir, SettingsDir, SettingsFile)
}

// Handle implements plugin.Plugin.
func (p *Plugin) Handle(c plugin.Core, _, action string, payload envelope.Payload) error {
	switch action {
	case project.EventAction:
		switch payload.Kind() {
		case project.EventOpened:
			return c.Publish(Sender, LoadDockState())
		case project.EventClosed:
			p.dockState = envelope.Null()
		}
		return nil
	case Action:
	default:
		return nil
	}

	var cmd Command
	if err := payload.Decode(&cmd); err != nil {
		return err
	}

	switch cmd.Kind {
	case KindOpenWindow, KindCloseWindow:
		if !cmd.Window.Valid() {
			return fmt.Errorf("%w %q", ErrUnknownWindow, cmd.Window)
		}
		if err := p.toggle(c, cmd.Kind == KindOpenWindow, cmd.Window); err != nil {
			return err
		}
	case KindSaveDockState:
		state := envelope.Null()
		if cmd.State != nil {
			state = *cmd.State
		}
		if err := p.save(c, state); err != nil {
			return err
		}
	case KindLoadDockState:
		if err := p.load(c); err != nil {
			return err
		}
	default:
		return plugin.UnknownCommand(action, cmd.Kind)
	}

	c.NotifyHost()
	return nil
}

func (p *Plugin) toggle(c plugin.Core, open bool, id WindowID) error {
	i := slices.Index(p.open, id)
	switch {
	case open && i < 0:
		p.open = append(p.open, id)
		return c.Publish(Sender, Event{Kind: EventWindowOpened, Window: id})
	case !open && i >= 0:
		p.open = slices.Delete(p.open, i, i+1)
		return c.Publish(Sender, Event{Kind: EventWindowClosed, Window: id})
	}
	return nil
}

func projectDir(c plugin.Core) (string, bool) {
	pm, ok := plugin.Lookup[*project.Plugin](c)
	if !ok || !pm.IsOpen() {
		return "", false
	}
	return pm.Path(), true
}

func (p *Plugin) logEntry(c plugin.Core, category, content string) error {
	return c.Publish(Sender, logger.Generate(category, content))
}

func (p *Plugin) save(c plugin.Core, state envelope.Payload) error {
	dir, ok := projectDir(c)
	if !ok {
		return p.logEntry(c, logger.CategoryError, "Cannot store window dock state: "+plugin.ErrNoProject.Error()+".")
	}

	var buf bytes.Buffer
	err := json.Indent(&buf, state.Bytes(), "", "  ")
	if err == nil {
		err = writeSettings(SettingsPath(dir), buf.Bytes())
	}
	if err != nil {
		p.log.Error("dock state not stored", "project", dir, "error", err)
		return p.logEntry(c, logger.CategoryError, "Cannot store window dock state.")
	}

	p.dockState = state
	if err := p.logEntry(c, logger.CategorySucceed, "Window dock state is stored."); err != nil {
		return err
	}
	return c.Publish(Sender, Event{Kind: EventDockStateSaved})
}

var errEmptyDockState = errors.New("empty dock state")

func (p *Plugin) load(c plugin.Core) error {
	dir, ok := projectDir(c)
	if !ok {
		return nil
	}

	data, err := os.ReadFile(SettingsPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	var state envelope.Payload
	if err == nil {
		state, err = envelope.ParsePayload(data)
	}
	if err == nil && state.IsNull() {
		err = errEmptyDockState
	}
	if err != nil {
		p.dockState = envelope.Null()
		p.log.Error("dock state discarded", "project", dir, "error", err)
		return p.logEntry(c, logger.CategoryError, "Cannot deserialize window dock state so discarded.")
	}

	p.dockState = state
	p.restores++
	if err := p.logEntry(c, logger.CategorySucceed, "Window dock state is restored."); err != nil {
		return err
	}
	return c.Publish(Sender, Event{Kind: EventDockStateRestored})
}

func writeSettings(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

type persisted struct {
	DockState   envelope.Payload `json:"dock_state"`
	OpenWindows []WindowID       `json:"open_windows"`
}

// LoadState restores the dock layout and the open windows. Unknown window
// ids are dropped.
func (p *Plugin) LoadState(s plugin.Storage) error {
	var st persisted
	ok, err := plugin.LoadJSON(s, &st)
	if err != nil || !ok {
		return err
	}
	p.dockState = st.DockState
	p.open = nil
	for _, id := range st.OpenWindows {
		if id.Valid() && !slices.Contains(p.open, id) {
			p.open = append(p.open, id)
		}
	}
	return nil
}

// StoreState persists the dock layout and the open windows.
func (p *Plugin) StoreState(s plugin.Storage) error {
	return plugin.StoreJSON(s, p.persisted())
}

func (p *Plugin) persisted() persisted {
	open := p.open
	if open == nil {
		open = []WindowID{}
	}
	return persisted{DockState: p.dockState, OpenWindows: open}
}

// State returns the persisted fields plus the restore counter.
func (p *Plugin) State() envelope.Payload {
	out, err := envelope.PayloadOf(struct {
		persisted
		Restores uint64 `json:"restores"`
	}{p.persisted(), p.restores})
	if err != nil {
		return envelope.Null()
	}
	return out
}
