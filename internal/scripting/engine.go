// Package scripting wraps a single gopher-lua VM that a hosting game can use
// to attach custom merge/validate behavior to its own component types
// without modifying core Go code (internal/ecs/registry.RegisterScripted
// carries the hook/validator names; internal/sync/receiver consults them
// when an Engine is configured).
//
// Grounded on the teacher's internal/scripting/engine.go: a single
// lua.LState, scripts loaded from a directory at startup, Go<->Lua data
// crossed via lua.LTable built/read field by field with CallByParam and
// Protect: true so a script panic becomes a returned error instead of
// crashing the process.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only — the
// tick loop calls into it, never sync/sender or sync/receiver from another
// goroutine.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir
// (non-recursive; a missing directory is not an error, matching the
// teacher's loadDir "skip missing dirs" behavior).
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("scripting: load %s: %w", scriptsDir, err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasFunction reports whether name is defined as a Lua global function.
func (e *Engine) HasFunction(name string) bool {
	return e.vm.GetGlobal(name) != lua.LNil
}

// CallMergeHook invokes the Lua function hookName(fields) -> table, where
// fields is the merged component's exported scalar fields
// (registry.ToFieldMap). The returned map overlays whatever keys the Lua
// table set on top of fields; a hook that wants to leave a field untouched
// simply omits it from the table it returns. Absent hookName, fields is
// returned unchanged.
func (e *Engine) CallMergeHook(hookName string, fields map[string]any) (map[string]any, error) {
	fn := e.vm.GetGlobal(hookName)
	if fn == lua.LNil {
		return fields, nil
	}

	arg := e.vm.NewTable()
	for k, v := range fields {
		arg.RawSetString(k, goToLua(v))
	}

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
		return nil, fmt.Errorf("scripting: merge hook %s: %w", hookName, err)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return fields, nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	rt.ForEach(func(k, v lua.LValue) {
		out[k.String()] = luaToGo(v)
	})
	return out, nil
}

// ValidateField invokes the Lua function validatorName(fieldName, value) ->
// (ok, reason). A validator that rejects a field returns ok=false and a
// human-readable reason; the receiver then keeps the existing value for that
// field and merges the rest of the incoming component. Absent validatorName,
// every field passes.
func (e *Engine) ValidateField(validatorName, fieldName string, value any) (bool, string) {
	fn := e.vm.GetGlobal(validatorName)
	if fn == lua.LNil {
		return true, ""
	}

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true},
		lua.LString(fieldName), goToLua(value)); err != nil {
		e.log.Error("lua field validator error", zap.String("validator", validatorName), zap.Error(err))
		return false, err.Error()
	}
	reason := e.vm.Get(-1)
	ok := e.vm.Get(-2)
	e.vm.Pop(2)

	return ok == lua.LTrue, lua.LVAsString(reason)
}

// goToLua converts a scalar Go value into the matching lua.LValue.
func goToLua(v any) lua.LValue {
	switch x := v.(type) {
	case bool:
		if x {
			return lua.LTrue
		}
		return lua.LFalse
	case string:
		return lua.LString(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int8:
		return lua.LNumber(x)
	case int16:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint:
		return lua.LNumber(x)
	case uint8:
		return lua.LNumber(x)
	case uint16:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	default:
		return lua.LNil
	}
}

// luaToGo converts a Lua value back to a plain Go value (float64/string/bool).
func luaToGo(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LString:
		return string(x)
	case lua.LNumber:
		return float64(x)
	default:
		return nil
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
