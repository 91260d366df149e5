package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// loaders removed from the base library; they read arbitrary files or
// compile code outside the sandbox.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "module"}

// safeModules may be required without preloading.
var safeModules = map[string]bool{
	lua.TabLibName:    true,
	lua.StringLibName: true,
	lua.MathLibName:   true,
}

// Sandbox restricts what a State's scripts can reach.
type Sandbox struct {
	L       *lua.LState
	print   func(msg string)
	modules map[string]lua.LGFunction
}

func newSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{L: L, modules: make(map[string]lua.LGFunction)}
}

func (s *Sandbox) install() {
	for _, name := range removedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}

	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}
	for name, loader := range s.modules {
		s.L.PreloadModule(name, loader)
	}

	original := s.L.GetGlobal("require")
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !safeModules[name] && s.modules[name] == nil {
			L.RaiseError("%s: %q", ErrModuleDenied.Error(), name)
			return 0
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))

	if s.print != nil {
		s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
			parts := make([]string, L.GetTop())
			for i := range parts {
				parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
			}
			s.print(strings.Join(parts, "\t"))
			return 0
		}))
	}
}

// Allowed reports whether require(name) is permitted.
func (s *Sandbox) Allowed(name string) bool {
	return safeModules[name] || s.modules[name] != nil
}

// Sandbox returns the state's sandbox.
func (st *State) Sandbox() *Sandbox {
	return st.sandbox
}
