package lua

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func newTestState(t *testing.T, opts ...StateOption) *State {
	t.Helper()
	st, err := NewState(opts...)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDoStringAndCall(t *testing.T) {
	st := newTestState(t)
	if err := st.DoString(`function add(a, b) return a + b, "sum" end`); err != nil {
		t.Fatal(err)
	}
	if !st.HasFunction("add") || st.HasFunction("missing") {
		t.Fatal("HasFunction mismatch")
	}

	res, err := st.Call("add", lua.LNumber(2), lua.LNumber(3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(res) != 2 || res[0] != lua.LNumber(5) || res[1] != lua.LString("sum") {
		t.Errorf("results = %v", res)
	}
	if top := st.L.GetTop(); top != 0 {
		t.Errorf("stack not restored, top = %d", top)
	}
}

func TestCallErrors(t *testing.T) {
	st := newTestState(t)
	if err := st.DoString(`value = 1; function fail() error("bad thing") end`); err != nil {
		t.Fatal(err)
	}

	if _, err := st.Call("value"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call(value) error = %v, want ErrNotFunction", err)
	}
	_, err := st.Call("fail")
	if err == nil || !strings.Contains(err.Error(), "bad thing") {
		t.Errorf("Call(fail) error = %v", err)
	}
}

func TestTimeout(t *testing.T) {
	st := newTestState(t, WithTimeout(50*time.Millisecond))
	err := st.DoString(`while true do end`)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("DoString error = %v, want ErrTimeout", err)
	}

	// The state stays usable after a timeout.
	if err := st.DoString(`x = 1`); err != nil {
		t.Errorf("DoString after timeout: %v", err)
	}
}

func TestSandboxRemovesLoaders(t *testing.T) {
	st := newTestState(t)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "io", "os", "debug"} {
		if st.GetGlobal(name) != lua.LNil {
			t.Errorf("global %s is available", name)
		}
	}
}

func TestSafeRequire(t *testing.T) {
	loader := func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "answer", lua.LNumber(42))
		L.Push(mod)
		return 1
	}
	st := newTestState(t, WithModule("host", loader))

	if err := st.DoString(`local s = require("string"); x = s.upper("a")`); err != nil {
		t.Errorf("require string: %v", err)
	}
	if err := st.DoString(`answer = require("host").answer`); err != nil {
		t.Fatalf("require host: %v", err)
	}
	if st.GetGlobal("answer") != lua.LNumber(42) {
		t.Errorf("answer = %v", st.GetGlobal("answer"))
	}
	if err := st.DoString(`require("os")`); err == nil || !strings.Contains(err.Error(), "not available") {
		t.Errorf("require os error = %v", err)
	}
	if !st.Sandbox().Allowed("host") || st.Sandbox().Allowed("io") {
		t.Error("Allowed mismatch")
	}
}

func TestPrintRedirect(t *testing.T) {
	var lines []string
	st := newTestState(t, WithPrint(func(msg string) { lines = append(lines, msg) }))
	if err := st.DoString(`print("a", 1, true)`); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "a\t1\ttrue" {
		t.Errorf("printed %q", lines)
	}
}

func TestDoFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "s.lua")
	if err := os.WriteFile(name, []byte(`loaded = "yes"`), 0o644); err != nil {
		t.Fatal(err)
	}
	st := newTestState(t)
	if err := st.DoFile(name); err != nil {
		t.Fatal(err)
	}
	if st.GetGlobal("loaded") != lua.LString("yes") {
		t.Error("file not executed")
	}
}

func TestClosedState(t *testing.T) {
	st, err := NewState()
	if err != nil {
		t.Fatal(err)
	}
	st.Close()
	if err := st.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := st.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString error = %v", err)
	}
	if _, err := st.Call("f"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call error = %v", err)
	}
}
