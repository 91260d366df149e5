package lua

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds every call into Lua.
const DefaultTimeout = 5 * time.Second

// State is a sandboxed Lua runtime.
type State struct {
	L *lua.LState

	timeout time.Duration
	sandbox *Sandbox
	closed  bool
	depth   int // nested run calls share the outermost deadline
}

// StateOption configures a State.
type StateOption func(*State)

// WithTimeout sets the deadline of each call. Zero disables it.
func WithTimeout(d time.Duration) StateOption {
	return func(s *State) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithPrint redirects print to fn.
func WithPrint(fn func(msg string)) StateOption {
	return func(s *State) {
		s.sandbox.print = fn
	}
}

// WithModule preloads a module that require(name) may load.
func WithModule(name string, loader lua.LGFunction) StateOption {
	return func(s *State) {
		s.sandbox.modules[name] = loader
	}
}

// NewState creates a sandboxed state.
func NewState(opts ...StateOption) (*State, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	s := &State{
		L:       L,
		timeout: DefaultTimeout,
		sandbox: newSandbox(L),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := openSafeLibraries(L); err != nil {
		L.Close()
		return nil, err
	}
	s.sandbox.install()
	return s, nil
}

// openSafeLibraries opens base, package (for require), table, string and
// math.
func openSafeLibraries(L *lua.LState) error {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.LoadLibName, lua.OpenPackage},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("open lua library %s: %w", lib.name, err)
		}
	}
	return nil
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.run(func() error { return s.L.DoFile(path) })
}

// DoString executes a Lua chunk.
func (s *State) DoString(code string) error {
	return s.run(func() error { return s.L.DoString(code) })
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls the global function name and returns its results.
func (s *State) Call(name string, args ...lua.LValue) ([]lua.LValue, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	fn := s.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: %s (got %s)", ErrNotFunction, name, fn.Type())
	}

	top := s.L.GetTop()
	err := s.run(func() error {
		return s.L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}, args...)
	})
	if err != nil {
		s.L.SetTop(top)
		return nil, err
	}

	n := s.L.GetTop() - top
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = s.L.Get(top + i + 1)
	}
	s.L.SetTop(top)
	return results, nil
}

// GetGlobal returns a global value.
func (s *State) GetGlobal(name string) lua.LValue {
	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global value.
func (s *State) SetGlobal(name string, value lua.LValue) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// Close releases the state. Further calls fail with ErrStateClosed.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.L.Close()
	return nil
}

// run executes fn under the deadline, turning panics and cancellation into
// errors.
func (s *State) run(fn func() error) (err error) {
	if s.closed {
		return ErrStateClosed
	}
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > 1 {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lua panic: %v", r)
			}
		}()
		return fn()
	}

	var cancel context.CancelFunc = func() {}
	ctx := context.Background()
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	s.L.SetContext(ctx)
	defer func() {
		s.L.RemoveContext()
		cancel()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, s.timeout, err)
		}
	}()
	return fn()
}
