package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/game/combat"
)

// FireHook is the Lua global called before each weapon-fired event:
//
//	function on_weapon_fire(weapon_id, level, damage) return damage end
const FireHook = "on_weapon_fire"

var _ combat.DamageHook = (*WeaponHooks)(nil)

// WeaponHooks runs content scripts that adjust weapon damage. It implements
// combat.DamageHook.
//
// A script failure never stops combat: runtime errors and exhausted budgets are
// logged at Warn and the damage passes through unchanged.
type WeaponHooks struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	logger *zap.Logger
}

// LoadWeaponHooks creates a sandboxed VM and executes every *.lua file in dir
// in lexicographic order.
//
// Precondition: dir must be a readable directory; instLimit >= 0 (0 = default).
// Postcondition: Returns a ready WeaponHooks or an error on the first load failure.
func LoadWeaponHooks(dir string, instLimit int, logger *zap.Logger) (*WeaponHooks, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState()
	registerModules(L, logger)
	for _, path := range files {
		if err := runBudgeted(L, instLimit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return nil, fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	logger.Info("weapon scripts loaded", zap.String("dir", dir), zap.Int("files", len(files)))
	return &WeaponHooks{L: L, limit: instLimit, logger: logger}, nil
}

// Defined reports whether the loaded scripts declare FireHook.
func (h *WeaponHooks) Defined() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.L != nil && h.L.GetGlobal(FireHook).Type() == lua.LTFunction
}

// ModifyDamage calls FireHook with the weapon id, its level, and the computed
// damage.
//
// Postcondition: Returns the script's numeric result, or damage unchanged when
// the hook is absent, fails, or returns a non-number.
func (h *WeaponHooks) ModifyDamage(weaponID string, level int, damage float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.L == nil {
		return damage
	}
	fn := h.L.GetGlobal(FireHook)
	if fn.Type() != lua.LTFunction {
		return damage
	}

	err := runBudgeted(h.L, h.limit, func() error {
		return h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true},
			lua.LString(weaponID), lua.LNumber(level), lua.LNumber(damage))
	})
	if err != nil {
		h.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", FireHook),
			zap.String("weapon", weaponID),
			zap.Error(err),
		)
		return damage
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		if ret != lua.LNil {
			h.logger.Warn("scripting: hook returned non-number",
				zap.String("hook", FireHook),
				zap.String("weapon", weaponID),
				zap.String("type", ret.Type().String()),
			)
		}
		return damage
	}
	out := float64(n)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return damage
	}
	return out
}

// Close releases the VM. Close is idempotent.
func (h *WeaponHooks) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.L != nil {
		h.L.Close()
		h.L = nil
	}
}
