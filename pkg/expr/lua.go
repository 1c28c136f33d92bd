package expr

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	lua "github.com/yuin/gopher-lua"
)

const nodeTypeName = "arbor.node"

// maxDepth bounds table conversion so self-referencing tables terminate.
const maxDepth = 32

var sandboxLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage}, // string/table register through package.loaded
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

var removedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module",
	"collectgarbage", "print", "package", "newproxy", "_printregs",
}

func newSandbox() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range sandboxLibs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open %q library: %w", lib.name, err)
		}
	}
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	mt := L.NewTypeMetatable(nodeTypeName)
	L.SetField(mt, "__index", L.NewFunction(nodeIndex))
	L.SetField(mt, "__newindex", L.NewFunction(nodeNewIndex))
	L.SetField(mt, "__tostring", L.NewFunction(nodeString))
	L.SetField(mt, "__metatable", lua.LString("locked"))
	return L, nil
}

func pushNode(L *lua.LState, n domain.Node) lua.LValue {
	ud := L.NewUserData()
	ud.Value = n
	L.SetMetatable(ud, L.GetTypeMetatable(nodeTypeName))
	return ud
}

func checkNode(L *lua.LState, idx int) domain.Node {
	ud := L.CheckUserData(idx)
	if n, ok := ud.Value.(domain.Node); ok {
		return n
	}
	L.ArgError(idx, "node expected")
	return nil
}

func nodeIndex(L *lua.LState) int {
	n := checkNode(L, 1)
	key := L.CheckString(2)
	if key == domain.KeyID {
		L.Push(lua.LString(n.ID()))
		return 1
	}
	v, ok := n.Attribute(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, v))
	return 1
}

func nodeNewIndex(L *lua.LState) int {
	n := checkNode(L, 1)
	key := L.CheckString(2)
	val := fromLua(L.Get(3))
	if key == domain.KeyID {
		s, _ := val.(string)
		n.SetID(s)
		return 0
	}
	if err := n.SetAttribute(key, val); err != nil {
		L.RaiseError("set %s: %v", key, err)
	}
	return 0
}

func nodeString(L *lua.LState) int {
	n := checkNode(L, 1)
	L.Push(lua.LString(fmt.Sprintf("node(%s)", n.ID())))
	return 1
}

// toLua converts a Go value into a Lua value. Unknown types travel as opaque userdata.
func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case domain.Node:
		return pushNode(L, t)
	case lua.LValue:
		return t
	case string:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	case int:
		return lua.LNumber(t)
	case int32:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case uint:
		return lua.LNumber(t)
	case uint32:
		return lua.LNumber(t)
	case uint64:
		return lua.LNumber(t)
	case float32:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case []any:
		tbl := L.NewTable()
		for i, item := range t {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case []string:
		tbl := L.NewTable()
		for i, item := range t {
			tbl.RawSetInt(i+1, lua.LString(item))
		}
		return tbl
	case map[string]any:
		return mapToLua(L, t)
	case domain.Description:
		return mapToLua(L, t)
	case map[string]string:
		tbl := L.NewTable()
		for k, item := range t {
			tbl.RawSetString(k, lua.LString(item))
		}
		return tbl
	case lua.LGFunction:
		return L.NewFunction(t)
	case Func:
		return L.NewFunction(wrapFunc(t))
	case func(args ...any) (any, error):
		return L.NewFunction(wrapFunc(t))
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

func mapToLua(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, item := range m {
		tbl.RawSetString(k, toLua(L, item))
	}
	return tbl
}

func wrapFunc(fn Func) lua.LGFunction {
	return func(L *lua.LState) int {
		top := L.GetTop()
		args := make([]any, 0, top)
		for i := 1; i <= top; i++ {
			args = append(args, fromLua(L.Get(i)))
		}
		out, err := fn(args...)
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		L.Push(toLua(L, out))
		return 1
	}
}

// fromLua converts a Lua value back into plain Go data. Numbers become float64
// like decoded JSON; arrays become []any; other tables become map[string]any.
func fromLua(v lua.LValue) any {
	return fromLuaDepth(v, 0)
}

func fromLuaDepth(v lua.LValue, depth int) any {
	if v == lua.LNil || v == nil {
		return nil
	}
	switch t := v.(type) {
	case lua.LBool:
		return bool(t)
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return float64(t)
	case *lua.LUserData:
		return t.Value
	case *lua.LTable:
		if depth >= maxDepth {
			return nil
		}
		return tableToGo(t, depth+1)
	default:
		return v.String()
	}
}

func tableToGo(t *lua.LTable, depth int) any {
	n := t.MaxN()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, fromLuaDepth(t.RawGetInt(i), depth))
		}
		return out
	}

	out := make(map[string]any, count)
	t.ForEach(func(k, item lua.LValue) {
		out[k.String()] = fromLuaDepth(item, depth)
	})
	return out
}
