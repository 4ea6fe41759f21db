package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/outbreak/internal/scripting"
)

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func loadHooks(t *testing.T, src string, limit int) (*scripting.WeaponHooks, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	h, err := scripting.LoadWeaponHooks(writeTempLua(t, "weapons.lua", src), limit, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h, logs
}

func TestWeaponHooks_ModifiesDamage(t *testing.T) {
	h, _ := loadHooks(t, `
		function on_weapon_fire(weapon_id, level, damage)
			if weapon_id == "spore_cannon" and level >= 3 then
				return damage * 2
			end
			return damage
		end
	`, 0)
	require.True(t, h.Defined())
	assert.Equal(t, 30.0, h.ModifyDamage("spore_cannon", 3, 15))
	assert.Equal(t, 12.0, h.ModifyDamage("spore_cannon", 2, 12))
	assert.Equal(t, 8.0, h.ModifyDamage("bile_spitter", 3, 8))
}

func TestWeaponHooks_NoHookPassesThrough(t *testing.T) {
	h, _ := loadHooks(t, `-- nothing here`, 0)
	assert.False(t, h.Defined())
	assert.Equal(t, 12.0, h.ModifyDamage("spore_cannon", 2, 12))
}

func TestWeaponHooks_RuntimeErrorPassesThrough(t *testing.T) {
	h, logs := loadHooks(t, `
		function on_weapon_fire()
			error("intentional error")
		end
	`, 0)
	assert.Equal(t, 10.0, h.ModifyDamage("spore_cannon", 1, 10))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestWeaponHooks_BudgetExhaustedPassesThrough(t *testing.T) {
	h, logs := loadHooks(t, `
		function on_weapon_fire(id, level, damage)
			while true do end
		end
	`, 100)
	assert.Equal(t, 10.0, h.ModifyDamage("spore_cannon", 1, 10))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())

	// the VM stays usable after an exhausted call
	assert.Equal(t, 10.0, h.ModifyDamage("spore_cannon", 1, 10))
}

func TestWeaponHooks_NonNumberResult(t *testing.T) {
	h, logs := loadHooks(t, `function on_weapon_fire() return "lots" end`, 0)
	assert.Equal(t, 10.0, h.ModifyDamage("spore_cannon", 1, 10))
	assert.Equal(t, 1, logs.FilterMessage("scripting: hook returned non-number").Len())
}

func TestWeaponHooks_NilResultIsSilent(t *testing.T) {
	h, logs := loadHooks(t, `function on_weapon_fire() end`, 0)
	assert.Equal(t, 10.0, h.ModifyDamage("spore_cannon", 1, 10))
	assert.Equal(t, 0, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestWeaponHooks_EngineModule(t *testing.T) {
	h, logs := loadHooks(t, `
		function on_weapon_fire(id, level, damage)
			engine.log("firing " .. id)
			return engine.clamp(damage, 0, 20)
		end
	`, 0)
	assert.Equal(t, 20.0, h.ModifyDamage("bone_saw", 1, 25))
	assert.Equal(t, 1, logs.FilterMessage("lua").Len())
}

func TestWeaponHooks_LoadOrderLexicographic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`function on_weapon_fire(i, l, d) return 1 end`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`function on_weapon_fire(i, l, d) return 2 end`), 0644))
	h, err := scripting.LoadWeaponHooks(dir, 0, nil)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 2.0, h.ModifyDamage("x", 1, 10))
}

func TestLoadWeaponHooks_SyntaxError(t *testing.T) {
	_, err := scripting.LoadWeaponHooks(writeTempLua(t, "bad.lua", `function (`), 0, nil)
	assert.Error(t, err)
}

func TestLoadWeaponHooks_MissingDir(t *testing.T) {
	_, err := scripting.LoadWeaponHooks(filepath.Join(t.TempDir(), "nope"), 0, nil)
	assert.Error(t, err)
}

func TestWeaponHooks_CloseIdempotent(t *testing.T) {
	h, err := scripting.LoadWeaponHooks(writeTempLua(t, "w.lua", `function on_weapon_fire(i, l, d) return d + 1 end`), 0, nil)
	require.NoError(t, err)
	h.Close()
	h.Close()
	assert.Equal(t, 5.0, h.ModifyDamage("x", 1, 5))
	assert.False(t, h.Defined())
}
