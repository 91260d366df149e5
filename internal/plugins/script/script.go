// Package script implements plugins written in Lua.
//
// A script defines any of these globals:
//
//	plugin_info = { name = "...", description = "...", version = { 1, 0, 0 }, author = "..." }
//	function on_initialize() end
//	function on_message(sender, action, payload) end
//	state = { ... } -- persisted between sessions
//
// and reaches the host through the designer module:
//
//	local designer = require("designer")
//	designer.publish(action, payload)
//	designer.log(category, content)
//	designer.state(plugin_name_or_uuid)
//	designer.notify()
//	designer.sender
package script

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/bluebird/internal/envelope"
	"github.com/dshills/bluebird/internal/logging"
	"github.com/dshills/bluebird/internal/plugin"
	"github.com/dshills/bluebird/internal/plugins/logger"
	slua "github.com/dshills/bluebird/internal/script/lua"
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
)

// ModuleName is the module scripts require.
const ModuleName = "designer"

// Lua globals.
const (
	globalInfo       = "plugin_info"
	globalState      = "state"
	globalInitialize = "on_initialize"
	globalMessage    = "on_message"
)

// namespace seeds script plugin UUIDs.
var namespace = uuid.MustParse("6f7c2b8e-3d1a-4c55-9a0e-1b2f3c4d5e6f")

// Option configures a script plugin.
type Option func(*config)

type config struct {
	timeout time.Duration
	log     *logging.Logger
}

// WithTimeout bounds each call into the script.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger sets the logger receiving print output and failures.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// Plugin runs one Lua script.
type Plugin struct {
	plugin.Base

	path   string
	sender string
	state  *slua.State
	log    *logging.Logger

	// core is set while Initialize or Handle runs; calls may nest when
	// the script publishes outside a drain.
	core plugin.Core
}

// Load compiles and runs the script at path. Its identity comes from
// plugin_info, falling back to the file name.
func Load(path string, opts ...Option) (*Plugin, error) {
	cfg := config{timeout: slua.DefaultTimeout, log: logging.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p := &Plugin{
		path:   path,
		sender: "designer.script." + name,
		log:    cfg.log.WithComponent("script").WithField("script", name),
	}

	st, err := slua.NewState(
		slua.WithTimeout(cfg.timeout),
		slua.WithPrint(func(msg string) { p.log.Info(msg) }),
		slua.WithModule(ModuleName, p.openModule),
	)
	if err != nil {
		return nil, err
	}
	if err := st.DoFile(path); err != nil {
		st.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	p.state = st

	info, err := p.readInfo(name)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	p.Base = plugin.NewBase(info)
	return p, nil
}

func (p *Plugin) readInfo(name string) (plugin.Info, error) {
	info := plugin.Info{
		Name:        name,
		Description: "Lua script " + filepath.Base(p.path),
		Version:     plugin.Version{Patch: 1},
	}

	if lv := p.state.GetGlobal(globalInfo); lv != lua.LNil {
		raw, err := slua.ToPayload(lv)
		if err != nil {
			return info, fmt.Errorf("%s: %w", globalInfo, err)
		}
		var decl struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			Version     plugin.Version `json:"version"`
			Author      string         `json:"author"`
		}
		if err := raw.Decode(&decl); err != nil {
			return info, fmt.Errorf("%s: %w", globalInfo, err)
		}
		if decl.Name != "" {
			info.Name = decl.Name
		}
		if decl.Description != "" {
			info.Description = decl.Description
		}
		if decl.Version != (plugin.Version{}) {
			info.Version = decl.Version
		}
		info.Author = decl.Author
	}
	info.ID = uuid.NewSHA1(namespace, []byte(info.Name))
	return info, nil
}

// Path returns the script file.
func (p *Plugin) Path() string {
	return p.path
}

// Sender returns the sender name used for the script's envelopes.
func (p *Plugin) Sender() string {
	return p.sender
}

// Close releases the Lua state.
func (p *Plugin) Close() error {
	return p.state.Close()
}

// Initialize calls on_initialize when defined.
func (p *Plugin) Initialize(c plugin.Core) error {
	if !p.state.HasFunction(globalInitialize) {
		return nil
	}
	return p.with(c, func() error {
		_, err := p.state.Call(globalInitialize)
		return err
	})
}

// Handle calls on_message(sender, action, payload) when defined.
func (p *Plugin) Handle(c plugin.Core, sender, action string, payload envelope.Payload) error {
	if !p.state.HasFunction(globalMessage) {
		return nil
	}
	return p.with(c, func() error {
		_, err := p.state.Call(globalMessage,
			lua.LString(sender),
			lua.LString(action),
			slua.FromPayload(p.state.L, payload),
		)
		return err
	})
}

func (p *Plugin) with(c plugin.Core, fn func() error) error {
	prev := p.core
	p.core = c
	defer func() { p.core = prev }()
	return fn()
}

// LoadState replaces the global state value. Any JSON value is accepted,
// matching what StoreState writes.
func (p *Plugin) LoadState(s plugin.Storage) error {
	raw, err := s.LoadState()
	if err != nil {
		return err
	}
	if raw.IsNull() {
		return nil
	}
	p.state.SetGlobal(globalState, slua.FromPayload(p.state.L, raw))
	return nil
}

// StoreState persists the global state value.
func (p *Plugin) StoreState(s plugin.Storage) error {
	raw, err := slua.ToPayload(p.state.GetGlobal(globalState))
	if err != nil {
		return fmt.Errorf("state of %s: %w", p.Info().Name, err)
	}
	return s.StoreState(raw)
}

// State returns the global state value.
func (p *Plugin) State() envelope.Payload {
	raw, err := slua.ToPayload(p.state.GetGlobal(globalState))
	if err != nil {
		return envelope.Null()
	}
	return raw
}

// openModule builds the designer module.
func (p *Plugin) openModule(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"publish": p.luaPublish,
		"log":     p.luaLog,
		"state":   p.luaState,
		"notify":  p.luaNotify,
	})
	L.SetField(mod, "sender", lua.LString(p.sender))
	L.Push(mod)
	return 1
}

func (p *Plugin) requireCore(L *lua.LState) plugin.Core {
	if p.core == nil {
		L.RaiseError("designer API is only available inside on_initialize and on_message")
	}
	return p.core
}

func (p *Plugin) luaPublish(L *lua.LState) int {
	c := p.requireCore(L)
	action := L.CheckString(1)
	payload, err := slua.ToPayload(L.Get(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	if err := c.Publish(p.sender, envelope.New(action, payload)); err != nil {
		L.RaiseError("publish %s: %s", action, err.Error())
	}
	return 0
}

func (p *Plugin) luaLog(L *lua.LState) int {
	c := p.requireCore(L)
	category := L.CheckString(1)
	content := L.CheckString(2)
	if err := c.Publish(p.sender, logger.Generate(category, content)); err != nil {
		L.RaiseError("log: %s", err.Error())
	}
	return 0
}

func (p *Plugin) luaState(L *lua.LState) int {
	c := p.requireCore(L)
	key := L.CheckString(1)

	reg := c.Plugins()
	target, ok := reg.ByName(key)
	if !ok {
		if id, err := uuid.Parse(key); err == nil {
			target, ok = reg.ByID(id)
		}
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(slua.FromPayload(L, target.State()))
	return 1
}

func (p *Plugin) luaNotify(L *lua.LState) int {
	p.requireCore(L).NotifyHost()
	return 0
}
