package scripting

import (
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine global into L:
//
//	engine.log(msg)           debug log line tagged with the script source
//	engine.clamp(x, lo, hi)   x bounded to [lo, hi]
//
// Precondition: L must be from NewSandboxedState; logger must not be nil.
func registerModules(L *lua.LState, logger *zap.Logger) {
	engine := L.NewTable()
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Debug("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetField(engine, "clamp", L.NewFunction(func(L *lua.LState) int {
		x := float64(L.CheckNumber(1))
		lo := float64(L.CheckNumber(2))
		hi := float64(L.CheckNumber(3))
		L.Push(lua.LNumber(math.Min(math.Max(x, lo), hi)))
		return 1
	}))
	L.SetGlobal("engine", engine)
}
