// Package project implements the project manager plugin: opening,
// creating and closing project directories and remembering recent ones.
package project

import (
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
	"github.com/google/uuid"
)

// Bus names.
const (
	Sender      = "designer.project_manager"
	Action      = "designer.project_manager.management"
	EventAction = "designer.project_manager.event"
)

// FileName is the project descriptor inside a project directory.
const FileName = "project.blueproj"

// MaxRecent bounds the recent projects list.
const MaxRecent = 10

// Command kinds.
const (
	KindOpenProject   = "OpenProject"
	KindCreateProject = "CreateProject"
	KindCloseProject  = "CloseProject"
)

// Event kinds.
const (
	EventOpened  = "Opened"
	EventCreated = "Created"
	EventClosed  = "Closed"
)

// ID is the fixed plugin UUID.
var ID = uuid.MustParse("3979dec2-8e5c-4860-8b1c-07a8fd2d560f")

// Errors.
var (
	ErrProjectExists  = errors.New("project already exists")
	ErrInvalidProject = errors.New("invalid project file")
)

// Project is the descriptor stored in FileName.
type Project struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     plugin.Version `json:"version"`
	PackageName string         `json:"package_name"`
	Author      string         `json:"author"`
	Email       string         `json:"email"`
}

// Command is a project management command.
type Command struct {
	Kind    string   `json:"kind"`
	Path    string   `json:"path,omitempty"`
	Project *Project `json:"project,omitempty"`
}

// Action implements envelope.Command.
func (Command) Action() string { return Action }

// OpenProject opens the project in dir.
func OpenProject(dir string) Command {
	return Command{Kind: KindOpenProject, Path: dir}
}

// CreateProject writes a new descriptor into dir.
func CreateProject(dir string, p Project) Command {
	return Command{Kind: KindCreateProject, Path: dir, Project: &p}
}

// CloseProject closes the open project.
func CloseProject() Command {
	return Command{Kind: KindCloseProject}
}

// Event is published on EventAction.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
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

// Plugin is the project manager.
type Plugin struct {
	plugin.Base

	path    string
	recent  []string
	project *Project
	log     *logging.Logger
}

// New creates a Disabled project manager.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase(plugin.Info{
			ID:          ID,
			Name:        "Project manager (Native plugin)",
			Description: "Provides Opening, Creating And Analyzing features for IDE",
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

// IsOpen reports whether a project is open in this session.
func (p *Plugin) IsOpen() bool {
	return p.project != nil
}

// Path returns the open project directory, or the last one restored from
// state when nothing has been opened yet.
func (p *Plugin) Path() string {
	return p.path
}

// Project returns the open project descriptor.
func (p *Plugin) Project() (Project, bool) {
	if p.project == nil {
		return Project{}, false
	}
	return *p.project, true
}

// Recent returns the recent project directories, most recent first.
func (p *Plugin) Recent() []string {
	return slices.Clone(p.recent)
}

// Handle implements plugin.Plugin.
func (p *Plugin) Handle(c plugin.Core, _, action string, payload envelope.Payload) error {
	if action != Action {
		return nil
	}
	var cmd Command
	if err := payload.Decode(&cmd); err != nil {
		return err
	}

	var err error
	switch cmd.Kind {
	case KindOpenProject:
		err = p.open(c, cmd.Path)
	case KindCreateProject:
		err = p.create(c, cmd.Path, cmd.Project)
	case KindCloseProject:
		err = p.close(c)
	default:
		return plugin.UnknownCommand(action, cmd.Kind)
	}
	if err != nil {
		p.log.Warn("project command failed", "kind", cmd.Kind, "path", cmd.Path, "error", err)
		if perr := c.Publish(Sender, logger.Generate(logger.CategoryError, err.Error())); perr != nil {
			return errors.Join(err, perr)
		}
	}
	c.NotifyHost()
	return nil
}

// ReadProject parses the descriptor in dir.
func ReadProject(dir string) (Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Project{}, fmt.Errorf("open project %s: %w", dir, err)
	}
	var proj Project
	if err := json.Unmarshal(data, &proj); err != nil {
		return Project{}, fmt.Errorf("open project %s: %w", dir, errors.Join(ErrInvalidProject, err))
	}
	return proj, nil
}

// WriteProject creates the descriptor in dir, creating dir if needed. It
// refuses to overwrite an existing descriptor.
func WriteProject(dir string, proj Project) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(proj, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create project %s: %w", dir, ErrProjectExists)
		}
		return fmt.Errorf("create project %s: %w", dir, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write project %s: %w", dir, err)
	}
	return f.Close()
}

func (p *Plugin) open(c plugin.Core, dir string) error {
	if dir == "" {
		return fmt.Errorf("open project: empty path")
	}
	dir = absPath(dir)
	proj, err := ReadProject(dir)
	if err != nil {
		return err
	}

	if p.project != nil && p.path != dir {
		if err := p.close(c); err != nil {
			return err
		}
	}

	p.path = dir
	p.project = &proj
	p.remember(dir)
	p.log.Info("project opened", "path", dir, "name", proj.Name)
	return c.Publish(Sender, Event{Kind: EventOpened, Path: dir})
}

func (p *Plugin) create(c plugin.Core, dir string, proj *Project) error {
	if dir == "" || proj == nil {
		return fmt.Errorf("create project: path and project are required")
	}
	dir = absPath(dir)
	if err := WriteProject(dir, *proj); err != nil {
		return err
	}
	p.log.Info("project created", "path", dir, "name", proj.Name)
	return c.Publish(Sender, Event{Kind: EventCreated, Path: dir})
}

func (p *Plugin) close(c plugin.Core) error {
	if p.project == nil {
		return nil
	}
	dir := p.path
	p.project = nil
	p.path = ""
	return c.Publish(Sender, Event{Kind: EventClosed, Path: dir})
}

func absPath(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func (p *Plugin) remember(dir string) {
	p.recent = slices.DeleteFunc(p.recent, func(s string) bool { return s == dir })
	p.recent = slices.Insert(p.recent, 0, dir)
	if len(p.recent) > MaxRecent {
		p.recent = p.recent[:MaxRecent]
	}
}

type persisted struct {
	Path           string   `json:"path,omitempty"`
	RecentProjects []string `json:"recent_projects"`
}

// LoadState restores the last path and the recent list. The project
// itself is reopened by publishing OpenProject.
func (p *Plugin) LoadState(s plugin.Storage) error {
	var st persisted
	ok, err := plugin.LoadJSON(s, &st)
	if err != nil || !ok {
		return err
	}
	p.path = st.Path
	p.recent = nil
	for _, r := range st.RecentProjects {
		if r != "" && !slices.Contains(p.recent, r) && len(p.recent) < MaxRecent {
			p.recent = append(p.recent, r)
		}
	}
	return nil
}

// StoreState persists the path and the recent list.
func (p *Plugin) StoreState(s plugin.Storage) error {
	return plugin.StoreJSON(s, p.persisted())
}

func (p *Plugin) persisted() persisted {
	recent := p.recent
	if recent == nil {
		recent = []string{}
	}
	return persisted{Path: p.path, RecentProjects: recent}
}

// State returns the persisted fields plus the open project, if any.
func (p *Plugin) State() envelope.Payload {
	out, err := envelope.PayloadOf(struct {
		persisted
		Project *Project `json:"project,omitempty"`
	}{p.persisted(), p.project})
	if err != nil {
		return envelope.Null()
	}
	return out
}
