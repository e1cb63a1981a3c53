package lua

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// registerJSON installs the json module into a Lua state. Plugins use
// it to parse request bodies and build structured responses:
//
//	local req = json.decode(body)
//	return { ok = true, echoed = json.encode(req) }
func registerJSON(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"encode": jsonEncode,
		"decode": jsonDecode,
	})
	L.SetGlobal("json", mod)
}

// jsonEncode serializes a Lua value to a JSON string. Returns nil plus
// an error message on failure.
func jsonEncode(L *lua.LState) int {
	v := L.Get(1)
	b := NewBridge(L)

	data, err := json.Marshal(b.ToGo(v))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(data))
	return 1
}

// jsonDecode parses a JSON string into a Lua value. Returns nil plus
// an error message on invalid input.
func jsonDecode(L *lua.LState) int {
	s := L.CheckString(1)

	if !gjson.Valid(s) {
		L.Push(lua.LNil)
		L.Push(lua.LString("invalid json"))
		return 2
	}

	L.Push(resultToLua(L, gjson.Parse(s)))
	return 1
}

// resultToLua converts a gjson result tree into Lua values.
func resultToLua(L *lua.LState, r gjson.Result) lua.LValue {
	switch r.Type {
	case gjson.Null:
		return lua.LNil
	case gjson.False:
		return lua.LFalse
	case gjson.True:
		return lua.LTrue
	case gjson.Number:
		return lua.LNumber(r.Num)
	case gjson.String:
		return lua.LString(r.Str)
	default:
		t := L.NewTable()
		if r.IsArray() {
			for i, item := range r.Array() {
				t.RawSetInt(i+1, resultToLua(L, item))
			}
			return t
		}
		r.ForEach(func(key, value gjson.Result) bool {
			t.RawSetString(key.String(), resultToLua(L, value))
			return true
		})
		return t
	}
}
