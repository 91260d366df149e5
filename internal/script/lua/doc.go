// Package lua hosts sandboxed gopher-lua states for script plugins.
//
// A State opens only the base, table, string and math libraries, removes
// the chunk loaders (dofile, loadfile, load, loadstring) and replaces
// require with a whitelist that admits the safe built-ins and modules
// preloaded by the host. Every entry point runs under a deadline set with
// WithTimeout; a script that runs past it is aborted with ErrTimeout.
//
// The Bridge functions convert between Lua values and the JSON-shaped Go
// values carried by envelope payloads:
//
//	st, err := lua.NewState(lua.WithTimeout(time.Second))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	if err := st.DoString(`state = { count = 1 }`); err != nil {
//	    return err
//	}
//	payload, err := lua.ToPayload(st.GetGlobal("state"))
//
// States are not goroutine-safe; the coordinator's single dispatch
// goroutine owns them.
package lua
