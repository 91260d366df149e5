// Package files implements the file manager plugin. It keeps the file tree
// of the open project and the list of files open in editors.
package files

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/project"
	"github.com/dshills/bluebird/internal/watch"
	"github.com/google/uuid"
)

// Bus names.
const (
	Sender      = "designer.file_manager"
	Action      = "designer.file_manager.management"
	EventAction = "designer.file_manager.event"
)

// Command kinds.
const (
	KindReloadProjectFiles = "ReloadProjectFiles"
	KindOpenFile           = "OpenFile"
	KindCloseFile          = "CloseFile"
	KindRequestContextMenu = "RequestContextMenu"
	KindFileChanged        = "FileChanged"
)

// Event kinds.
const (
	EventProjectFilesReloaded = "ProjectFilesReloaded"
	EventFileOpened           = "FileOpened"
	EventFileClosed           = "FileClosed"
	EventContextMenuRequested = "ContextMenuRequested"
)

// ID is the fixed plugin UUID.
var ID = uuid.MustParse("cfa0bc17-f2f7-4ca4-bd6d-1957ab5bfeff")

// Command is a file management command.
type Command struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
	Op   string `json:"op,omitempty"`
}

// Action implements envelope.Command.
func (Command) Action() string { return Action }

// ReloadProjectFiles rebuilds the tree.
func ReloadProjectFiles() Command { return Command{Kind: KindReloadProjectFiles} }

// OpenFile marks a file as open.
func OpenFile(path string) Command { return Command{Kind: KindOpenFile, Path: path} }

// CloseFile marks a file as closed.
func CloseFile(path string) Command { return Command{Kind: KindCloseFile, Path: path} }

// RequestContextMenu asks the host to show a context menu for path.
func RequestContextMenu(path string) Command {
	return Command{Kind: KindRequestContextMenu, Path: path}
}

// FileChanged reports an external change, op as produced by watch.Op.
func FileChanged(path, op string) Command {
	return Command{Kind: KindFileChanged, Path: path, Op: op}
}

// Event is published on EventAction.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
}

// Action implements envelope.Command.
func (Event) Action() string { return EventAction }

// Option configures the plugin.
type Option func(*Plugin)

// WithIgnore sets the patterns left out of the tree. A project's
// .gitignore is applied on top of them.
func WithIgnore(patterns ...string) Option {
	return func(p *Plugin) {
		p.patterns = append(p.patterns, patterns...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.log = l
		}
	}
}

// Plugin is the file manager.
type Plugin struct {
	plugin.Base

	patterns []string
	root     *Entry
	dir      string
	open     []string
	log      *logging.Logger
}

// New creates a Disabled file manager. Patterns are validated in
// Initialize.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase(plugin.Info{
			ID:          ID,
			Name:        "File manager (Native Plugin)",
			Description: "Responsible to load or store files, as well as serve for file manager window.",
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

// Initialize checks the ignore patterns.
func (p *Plugin) Initialize(plugin.Core) error {
	_, err := watch.NewIgnore(p.patterns...)
	return err
}

// Root returns the project tree.
func (p *Plugin) Root() (Entry, bool) {
	if p.root == nil {
		return Entry{}, false
	}
	return *p.root, true
}

// Dir returns the directory the tree was built from.
func (p *Plugin) Dir() string {
	return p.dir
}

// OpenFiles returns the open files in the order they were opened.
func (p *Plugin) OpenFiles() []string {
	return slices.Clone(p.open)
}

// Handle implements plugin.Plugin.
func (p *Plugin) Handle(c plugin.Core, _, action string, payload envelope.Payload) error {
	switch action {
	case project.EventAction:
		return p.handleProjectEvent(c, payload)
	case Action:
	default:
		return nil
	}

	var cmd Command
	if err := payload.Decode(&cmd); err != nil {
		return err
	}

	switch cmd.Kind {
	case KindReloadProjectFiles:
		if err := p.reload(c); err != nil {
			return err
		}
	case KindFileChanged:
		if p.root == nil || !within(p.dir, cmd.Path) {
			return nil
		}
		if strings.Contains(cmd.Op, "remove") || strings.Contains(cmd.Op, "rename") {
			if err := p.closeUnder(c, cmd.Path); err != nil {
				return err
			}
		}
		if err := p.reload(c); err != nil {
			return err
		}
	case KindOpenFile:
		if cmd.Path == "" {
			return fmt.Errorf("open file: empty path")
		}
		if !slices.Contains(p.open, cmd.Path) {
			p.open = append(p.open, cmd.Path)
		}
		if err := c.Publish(Sender, Event{Kind: EventFileOpened, Path: cmd.Path}); err != nil {
			return err
		}
	case KindCloseFile:
		if i := slices.Index(p.open, cmd.Path); i >= 0 {
			p.open = slices.Delete(p.open, i, i+1)
			if err := c.Publish(Sender, Event{Kind: EventFileClosed, Path: cmd.Path}); err != nil {
				return err
			}
		}
	case KindRequestContextMenu:
		if err := c.Publish(Sender, Event{Kind: EventContextMenuRequested, Path: cmd.Path}); err != nil {
			return err
		}
	default:
		return plugin.UnknownCommand(action, cmd.Kind)
	}

	c.NotifyHost()
	return nil
}

func (p *Plugin) handleProjectEvent(c plugin.Core, payload envelope.Payload) error {
	var ev project.Event
	if err := payload.Decode(&ev); err != nil {
		return err
	}
	switch ev.Kind {
	case project.EventOpened:
		return c.Publish(Sender, ReloadProjectFiles())
	case project.EventClosed:
		p.root = nil
		p.dir = ""
		for _, f := range p.open {
			if err := c.Publish(Sender, Event{Kind: EventFileClosed, Path: f}); err != nil {
				return err
			}
		}
		p.open = nil
		c.NotifyHost()
	}
	return nil
}

// reload rebuilds the tree from the open project.
func (p *Plugin) reload(c plugin.Core) error {
	pm, ok := plugin.Lookup[*project.Plugin](c)
	if !ok || !pm.IsOpen() {
		p.root = nil
		p.dir = ""
		return plugin.ErrNoProject
	}

	dir := pm.Path()
	ignore, err := watch.NewIgnore(p.patterns...)
	if err != nil {
		return err
	}
	if err := ignore.AddFromFile(filepath.Join(dir, ".gitignore")); err != nil {
		p.log.Warn("gitignore not applied", "dir", dir, "error", err)
	}

	tree, err := BuildTree(dir, ignore)
	if err != nil {
		return fmt.Errorf("read project files: %w", err)
	}
	p.root = &tree
	p.dir = dir
	p.log.Debug("project files reloaded", "dir", dir, "entries", tree.Count())
	return c.Publish(Sender, Event{Kind: EventProjectFilesReloaded, Path: dir})
}

// closeUnder closes gone and every open file below it. All files are
// closed even when publishing a FileClosed event fails.
func (p *Plugin) closeUnder(c plugin.Core, gone string) error {
	var errs []error
	kept := p.open[:0]
	for _, f := range p.open {
		if f == gone || within(gone, f) {
			if err := c.Publish(Sender, Event{Kind: EventFileClosed, Path: f}); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		kept = append(kept, f)
	}
	p.open = kept
	return errors.Join(errs...)
}

func within(dir, name string) bool {
	if dir == "" || name == "" {
		return false
	}
	rel, err := filepath.Rel(dir, name)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type persisted struct {
	OpenFiles []string `json:"open_files"`
}

// LoadState restores the open files.
func (p *Plugin) LoadState(s plugin.Storage) error {
	var st persisted
	ok, err := plugin.LoadJSON(s, &st)
	if err != nil || !ok {
		return err
	}
	p.open = nil
	for _, f := range st.OpenFiles {
		if f != "" && !slices.Contains(p.open, f) {
			p.open = append(p.open, f)
		}
	}
	return nil
}

// StoreState persists the open files.
func (p *Plugin) StoreState(s plugin.Storage) error {
	open := p.open
	if open == nil {
		open = []string{}
	}
	return plugin.StoreJSON(s, persisted{OpenFiles: open})
}

// State returns {"root": tree, "open_files": [...]}.
func (p *Plugin) State() envelope.Payload {
	out, err := envelope.PayloadOf(map[string]any{
		"root":       p.root,
		"open_files": p.OpenFiles(),
	})
	if err != nil {
		return envelope.Null()
	}
	return out
}
