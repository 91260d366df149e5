package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "create"},
		{OpCreate | OpWrite, "create|write"},
		{OpRemove | OpRename, "remove|rename"},
		{0, "none"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func waitEvent(t *testing.T, w *Watcher, want string) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatal("events channel closed")
			}
			if filepath.Base(ev.Path) == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("no event for %s", want)
		}
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(WithDebounce(20 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if w.Watched() != 2 {
		t.Errorf("Watched = %d, want 2", w.Watched())
	}

	if err := os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, w, "a.txt")
	if !ev.Op.Has(OpCreate) && !ev.Op.Has(OpWrite) {
		t.Errorf("Op = %s", ev.Op)
	}
}

func TestWatcherSkipsIgnored(t *testing.T) {
	dir := t.TempDir()
	ig, _ := NewIgnore("*.tmp")

	w, err := New(WithIgnore(ig), WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "scratch.tmp"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// Events arrive per path; the ignored one must never show up before
	// the real one has been seen and the window has passed.
	timeout := time.After(5 * time.Second)
	seenReal := false
	for !seenReal {
		select {
		case ev := <-w.Events():
			switch filepath.Base(ev.Path) {
			case "scratch.tmp":
				t.Fatal("ignored path reported")
			case "real.txt":
				seenReal = true
			}
		case <-timeout:
			t.Fatal("no event for real.txt")
		}
	}
}

func TestWatchMissingPath(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(filepath.Join(t.TempDir(), "nope")); err != ErrPathNotExist {
		t.Errorf("Watch error = %v, want ErrPathNotExist", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := w.Watch(t.TempDir()); err != ErrClosed {
		t.Errorf("Watch after Close = %v, want ErrClosed", err)
	}
}
