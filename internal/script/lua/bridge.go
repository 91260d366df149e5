package lua

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/dshills/bluebird/internal/envelope"
	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds nested table conversion.
const maxDepth = 64

// ToGo converts a Lua value into JSON-shaped Go values: nil, bool,
// float64, string, []any or map[string]any. A table whose keys are exactly
// 1..n becomes a slice; an empty table becomes an empty map. Functions,
// userdata and cyclic tables are rejected.
func ToGo(lv lua.LValue) (any, error) {
	return toGo(lv, make(map[*lua.LTable]bool), 0)
}

func toGo(lv lua.LValue, visiting map[*lua.LTable]bool, depth int) (any, error) {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("number %v is not representable", f)
		}
		return f, nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		if depth >= maxDepth {
			return nil, fmt.Errorf("table nesting deeper than %d", maxDepth)
		}
		if visiting[v] {
			return nil, fmt.Errorf("cyclic table")
		}
		visiting[v] = true
		defer delete(visiting, v)
		return tableToGo(v, visiting, depth+1)
	default:
		return nil, fmt.Errorf("cannot convert lua %s", lv.Type())
	}
}

func tableToGo(t *lua.LTable, visiting map[*lua.LTable]bool, depth int) (any, error) {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && count == n {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			v, err := toGo(t.RawGetInt(i), visiting, depth)
			if err != nil {
				return nil, err
			}
			arr[i-1] = v
		}
		return arr, nil
	}

	m := make(map[string]any, count)
	var err error
	t.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			err = fmt.Errorf("cannot use lua %s as object key", k.Type())
			return
		}
		var gv any
		gv, err = toGo(v, visiting, depth)
		m[key] = gv
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ToLua converts JSON-shaped Go values into Lua values. Integer and
// unsigned kinds become numbers; maps are written in sorted key order.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.CreateTable(len(val), 0)
		for i, e := range val {
			t.RawSetInt(i+1, ToLua(L, e))
		}
		return t
	case []string:
		t := L.CreateTable(len(val), 0)
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, ToLua(L, val[k]))
		}
		return t
	case lua.LValue:
		return val
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// ToPayload converts a Lua value into a payload.
func ToPayload(lv lua.LValue) (envelope.Payload, error) {
	v, err := ToGo(lv)
	if err != nil {
		return envelope.Null(), err
	}
	return envelope.PayloadOf(v)
}

// FromPayload converts a payload into a Lua value.
func FromPayload(L *lua.LState, p envelope.Payload) lua.LValue {
	return ToLua(L, p.Value())
}
