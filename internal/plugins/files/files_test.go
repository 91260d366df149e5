package files

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dshills/bluebird/internal/core"
	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/logger"
	"github.com/dshills/bluebird/internal/plugins/project"
	"github.com/dshills/bluebird/internal/storage"
	"github.com/dshills/bluebird/internal/watch"
	"github.com/google/uuid"
)

type eventSpy struct {
	plugin.Base
	events []Event
}

func (s *eventSpy) Handle(_ plugin.Core, _, action string, payload envelope.Payload) error {
	if action != EventAction {
		return nil
	}
	var ev Event
	if err := payload.Decode(&ev); err != nil {
		return err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSpy) LoadState(plugin.Storage) error  { return nil }
func (s *eventSpy) StoreState(plugin.Storage) error { return nil }
func (s *eventSpy) State() envelope.Payload         { return envelope.Null() }

func (s *eventSpy) kinds() []string {
	var out []string
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	core *core.Coordinator
	pm   *project.Plugin
	fm   *Plugin
	log  *logger.Plugin
	spy  *eventSpy
	dir  string
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	if err := project.WriteProject(dir, project.Project{Name: "demo"}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "src", "main.lua"), "")
	writeFile(t, filepath.Join(dir, "src", "util.lua"), "")
	writeFile(t, filepath.Join(dir, "README.md"), "")
	writeFile(t, filepath.Join(dir, "app.log"), "")
	writeFile(t, filepath.Join(dir, "secret.txt"), "")
	writeFile(t, filepath.Join(dir, ".gitignore"), "secret.txt\n")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "")
	if err := os.Mkdir(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}

	patterns := append([]string{"*.log", ".gitignore"}, watch.DefaultIgnore...)
	f := &fixture{
		pm:  project.New(),
		fm:  New(WithIgnore(patterns...)),
		log: logger.New(),
		spy: &eventSpy{Base: plugin.NewBase(plugin.Info{ID: uuid.New(), Name: "spy"})},
		dir: dir,
	}
	c, err := core.New(core.WithPlugins(f.pm, f.fm, f.log, f.spy))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.InitializeAll(); err != nil {
		t.Fatal(err)
	}
	f.core = c
	return f
}

func (f *fixture) publish(t *testing.T, cmd envelope.Command) {
	t.Helper()
	if err := f.core.Publish("designer.test", cmd); err != nil {
		t.Fatal(err)
	}
}

func names(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestOpenedProjectBuildsTree(t *testing.T) {
	f := newFixture(t)
	f.publish(t, project.OpenProject(f.dir))

	root, ok := f.fm.Root()
	if !ok {
		t.Fatalf("no tree; log = %+v", f.log.Entries())
	}
	if root.Kind != KindFolder || f.fm.Dir() != f.dir {
		t.Errorf("root = %+v, dir = %q", root, f.fm.Dir())
	}
	want := []string{"assets", "src", "README.md", project.FileName}
	if got := names(root.Children); !reflect.DeepEqual(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
	src, ok := root.Find("src")
	if !ok || !reflect.DeepEqual(names(src.Children), []string{"main.lua", "util.lua"}) {
		t.Errorf("src = %+v", src)
	}
	if !reflect.DeepEqual(f.spy.kinds(), []string{EventProjectFilesReloaded}) {
		t.Errorf("events = %v", f.spy.kinds())
	}
}

func TestFileChangedReloads(t *testing.T) {
	f := newFixture(t)
	f.publish(t, project.OpenProject(f.dir))

	added := filepath.Join(f.dir, "src", "new.lua")
	writeFile(t, added, "")
	f.publish(t, FileChanged(added, "create"))

	root, _ := f.fm.Root()
	if _, ok := root.Find("src/new.lua"); !ok {
		t.Error("new file missing after FileChanged")
	}

	// Changes outside the project are ignored.
	before := len(f.spy.events)
	f.publish(t, FileChanged(filepath.Join(t.TempDir(), "x"), "write"))
	if len(f.spy.events) != before {
		t.Error("change outside the project triggered a reload")
	}
}

func TestOpenCloseFiles(t *testing.T) {
	f := newFixture(t)
	f.publish(t, project.OpenProject(f.dir))
	f.spy.events = nil

	main := filepath.Join(f.dir, "src", "main.lua")
	util := filepath.Join(f.dir, "src", "util.lua")
	f.publish(t, OpenFile(main))
	f.publish(t, OpenFile(util))
	f.publish(t, OpenFile(main))
	if got := f.fm.OpenFiles(); !reflect.DeepEqual(got, []string{main, util}) {
		t.Errorf("OpenFiles = %v", got)
	}

	f.publish(t, CloseFile(main))
	f.publish(t, CloseFile(main))
	if got := f.fm.OpenFiles(); !reflect.DeepEqual(got, []string{util}) {
		t.Errorf("OpenFiles = %v", got)
	}

	want := []string{EventFileOpened, EventFileOpened, EventFileOpened, EventFileClosed}
	if !reflect.DeepEqual(f.spy.kinds(), want) {
		t.Errorf("events = %v, want %v", f.spy.kinds(), want)
	}
}

func TestRemovedFileIsClosed(t *testing.T) {
	f := newFixture(t)
	f.publish(t, project.OpenProject(f.dir))
	util := filepath.Join(f.dir, "src", "util.lua")
	f.publish(t, OpenFile(util))

	if err := os.Remove(util); err != nil {
		t.Fatal(err)
	}
	f.publish(t, FileChanged(util, "remove"))

	if len(f.fm.OpenFiles()) != 0 {
		t.Errorf("OpenFiles = %v", f.fm.OpenFiles())
	}
	root, _ := f.fm.Root()
	if _, ok := root.Find("src/util.lua"); ok {
		t.Error("removed file still in tree")
	}
}

type failingCore struct {
	published int
}

var errPublish = errors.New("queue rejected")

func (c *failingCore) Publish(string, envelope.Command) error {
	c.published++
	return errPublish
}
func (c *failingCore) NotifyHost()               {}
func (c *failingCore) Plugins() *plugin.Registry { return plugin.NewRegistry() }

func TestCloseUnderReportsPublishFailure(t *testing.T) {
	p := New()
	p.open = []string{"/p/a", "/p/a/b.go", "/p/c.go"}
	c := &failingCore{}

	err := p.closeUnder(c, "/p/a")
	if !errors.Is(err, errPublish) {
		t.Fatalf("closeUnder error = %v, want %v", err, errPublish)
	}
	if c.published != 2 {
		t.Errorf("published %d FileClosed events, want 2", c.published)
	}
	if got := p.OpenFiles(); !reflect.DeepEqual(got, []string{"/p/c.go"}) {
		t.Errorf("OpenFiles = %v", got)
	}
}

func TestProjectClosedClearsTree(t *testing.T) {
	f := newFixture(t)
	f.publish(t, project.OpenProject(f.dir))
	f.publish(t, OpenFile(filepath.Join(f.dir, "README.md")))
	f.publish(t, project.CloseProject())

	if _, ok := f.fm.Root(); ok {
		t.Error("tree kept after project closed")
	}
	if len(f.fm.OpenFiles()) != 0 {
		t.Error("open files kept after project closed")
	}
}

func TestReloadWithoutProject(t *testing.T) {
	f := newFixture(t)
	f.publish(t, ReloadProjectFiles())

	entries := f.log.Entries()
	if len(entries) != 1 || entries[0].Category != logger.CategoryError {
		t.Errorf("log = %+v", entries)
	}

	err := f.fm.Handle(f.core, "t", Action, mustPayload(t, ReloadProjectFiles()))
	if !errors.Is(err, plugin.ErrNoProject) {
		t.Errorf("Handle error = %v, want ErrNoProject", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	mem := storage.NewMemory()
	fm := New()
	fm.open = []string{"/a", "/b"}
	if err := fm.StoreState(mem.For(fm.Info())); err != nil {
		t.Fatal(err)
	}

	other := New()
	if err := other.LoadState(mem.For(other.Info())); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(other.OpenFiles(), []string{"/a", "/b"}) {
		t.Errorf("OpenFiles = %v", other.OpenFiles())
	}
}

func mustPayload(t *testing.T, v any) envelope.Payload {
	t.Helper()
	p, err := envelope.PayloadOf(v)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
