package window

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/dshills/bluebird/internal/core"
	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/logger"
	"github.com/dshills/bluebird/internal/plugins/project"
	"github.com/dshills/bluebird/internal/storage"
)

type fixture struct {
	core *core.Coordinator
	pm   *project.Plugin
	wm   *Plugin
	log  *logger.Plugin
	dir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	if err := project.WriteProject(dir, project.Project{Name: "demo"}); err != nil {
		t.Fatal(err)
	}
	f := &fixture{pm: project.New(), wm: New(), log: logger.New(), dir: dir}
	c, err := core.New(core.WithPlugins(f.pm, f.wm, f.log))
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

func (f *fixture) categories() []string {
	var out []string
	for _, e := range f.log.Entries() {
		out = append(out, e.Category)
	}
	return out
}

func layout(t *testing.T) envelope.Payload {
	t.Helper()
	p, err := envelope.PayloadOf(map[string]any{
		"left":  []string{"FileManagerWindow"},
		"main":  []string{"CodeEditorWindow", "WelcomePage"},
		"ratio": 0.25,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSaveAndRestoreDockState(t *testing.T) {
	f := newFixture(t)
	f.publish(t, project.OpenProject(f.dir))
	if f.wm.Restores() != 0 {
		t.Fatalf("Restores = %d before any save", f.wm.Restores())
	}

	state := layout(t)
	f.publish(t, SaveDockState(state))
	if _, err := os.Stat(SettingsPath(f.dir)); err != nil {
		t.Fatalf("settings not written: %v", err)
	}
	if !f.wm.DockState().Equal(state) {
		t.Errorf("DockState = %s", f.wm.DockState())
	}

	// Reopening the project restores the layout from disk.
	f.publish(t, project.CloseProject())
	if !f.wm.DockState().IsNull() {
		t.Error("dock state kept after project closed")
	}
	f.publish(t, project.OpenProject(f.dir))
	if !f.wm.DockState().Equal(state) {
		t.Errorf("restored DockState = %s", f.wm.DockState())
	}
	if f.wm.Restores() != 1 {
		t.Errorf("Restores = %d, want 1", f.wm.Restores())
	}

	want := []string{logger.CategorySucceed, logger.CategorySucceed}
	if got := f.categories(); !reflect.DeepEqual(got, want) {
		t.Errorf("log categories = %v, want %v", got, want)
	}
}

func TestCorruptSettingsDiscarded(t *testing.T) {
	f := newFixture(t)
	if err := writeSettings(SettingsPath(f.dir), []byte("{broken")); err != nil {
		t.Fatal(err)
	}

	f.publish(t, project.OpenProject(f.dir))

	if !f.wm.DockState().IsNull() || f.wm.Restores() != 0 {
		t.Errorf("DockState = %s, Restores = %d", f.wm.DockState(), f.wm.Restores())
	}
	if got := f.categories(); !reflect.DeepEqual(got, []string{logger.CategoryError}) {
		t.Errorf("log categories = %v", got)
	}
}

func TestEmptySettingsDiscarded(t *testing.T) {
	for _, content := range []string{"", "  \n", "null"} {
		f := newFixture(t)
		if err := writeSettings(SettingsPath(f.dir), []byte(content)); err != nil {
			t.Fatal(err)
		}

		f.publish(t, project.OpenProject(f.dir))

		if !f.wm.DockState().IsNull() || f.wm.Restores() != 0 {
			t.Errorf("%q: DockState = %s, Restores = %d", content, f.wm.DockState(), f.wm.Restores())
		}
		if got := f.categories(); !reflect.DeepEqual(got, []string{logger.CategoryError}) {
			t.Errorf("%q: log categories = %v", content, got)
		}
	}
}

func TestSaveWithoutProject(t *testing.T) {
	f := newFixture(t)
	f.publish(t, SaveDockState(layout(t)))

	if got := f.categories(); !reflect.DeepEqual(got, []string{logger.CategoryError}) {
		t.Errorf("log categories = %v", got)
	}
	if !f.wm.DockState().IsNull() {
		t.Error("dock state set without a project")
	}
}

func TestOpenCloseWindows(t *testing.T) {
	f := newFixture(t)
	f.publish(t, OpenWindow(LogViewWindow))
	f.publish(t, OpenWindow(CodeEditorWindow))
	f.publish(t, OpenWindow(LogViewWindow))
	f.publish(t, CloseWindow(LogViewWindow))

	if got := f.wm.OpenWindows(); !reflect.DeepEqual(got, []WindowID{CodeEditorWindow}) {
		t.Errorf("OpenWindows = %v", got)
	}

	err := f.wm.Handle(f.core, "t", Action, mustPayload(t, OpenWindow("Terminal")))
	if !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("Handle error = %v, want ErrUnknownWindow", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	mem := storage.NewMemory()
	wm := New()
	wm.open = []WindowID{InspectorWindow, LibraryWindow}
	wm.dockState = layout(t)
	if err := wm.StoreState(mem.For(wm.Info())); err != nil {
		t.Fatal(err)
	}

	// Unknown ids in stored state are dropped.
	raw := mustPayload(t, map[string]any{"open_windows": []string{"Bogus", "LibraryWindow"}})
	other := New()
	if err := other.LoadState(mem.For(other.Info())); err != nil {
		t.Fatal(err)
	}
	if !other.DockState().Equal(wm.dockState) || len(other.OpenWindows()) != 2 {
		t.Errorf("restored %s %v", other.DockState(), other.OpenWindows())
	}

	if err := mem.For(other.Info()).StoreState(raw); err != nil {
		t.Fatal(err)
	}
	if err := other.LoadState(mem.For(other.Info())); err != nil {
		t.Fatal(err)
	}
	if got := other.OpenWindows(); !reflect.DeepEqual(got, []WindowID{LibraryWindow}) {
		t.Errorf("OpenWindows = %v", got)
	}
}

func TestWindowsAreValid(t *testing.T) {
	if len(Windows) != 10 {
		t.Errorf("len(Windows) = %d", len(Windows))
	}
	for _, id := range Windows {
		if !id.Valid() {
			t.Errorf("%s not valid", id)
		}
	}
	if WindowID("").Valid() {
		t.Error("empty id is valid")
	}
	var _ plugin.Plugin = New()
}

func mustPayload(t *testing.T, v any) envelope.Payload {
	t.Helper()
	p, err := envelope.PayloadOf(v)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
