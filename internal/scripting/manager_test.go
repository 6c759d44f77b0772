package scripting_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/scripting"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newManager(t *testing.T) *scripting.Manager {
	t.Helper()
	m := scripting.NewManager(rand.New(rand.NewSource(1)), zap.NewNop())
	t.Cleanup(m.Close)
	return m
}

func TestLoadZone_RunsScriptsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.lua", `order = order .. "b"`)
	writeScript(t, dir, "a.lua", `order = "a"`)
	writeScript(t, dir, "notes.txt", `ignored`)

	m := newManager(t)
	require.NoError(t, m.LoadZone("midgaard", dir, 0))

	ret, err := m.CallHook("midgaard", "no_such_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestLoadZone_BadScriptFails(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", `this is not lua`)

	m := newManager(t)
	assert.Error(t, m.LoadZone("midgaard", dir, 0))
}

func TestLoadZone_MissingDirFails(t *testing.T) {
	m := newManager(t)
	assert.Error(t, m.LoadZone("midgaard", "/no/such/dir", 0))
}

func TestCallHook_ZoneThenGlobalFallback(t *testing.T) {
	zoneDir := t.TempDir()
	writeScript(t, zoneDir, "hooks.lua", `function greet() return "zone" end`)
	globalDir := t.TempDir()
	writeScript(t, globalDir, "hooks.lua", `function greet() return "global" end`)

	m := newManager(t)
	require.NoError(t, m.LoadZone("midgaard", zoneDir, 0))
	require.NoError(t, m.LoadGlobal(globalDir, 0))

	ret, err := m.CallHook("midgaard", "greet")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("zone"), ret)

	ret, err = m.CallHook("elsewhere", "greet")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("global"), ret)
}

func TestCallHook_RuntimeErrorSwallowed(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hooks.lua", `function boom() error("kaput") end`)

	m := newManager(t)
	require.NoError(t, m.LoadZone("midgaard", dir, 0))

	ret, err := m.CallHook("midgaard", "boom")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestCallMobHook_StatusMapping(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "hooks.lua", `
		function on_idle(mob)
			if mob.hp < mob.max_hp then
				return "running"
			end
			return "success"
		end
		function on_odd(mob)
			return 42
		end
	`)

	m := newManager(t)
	require.NoError(t, m.LoadZone("midgaard", dir, 0))

	status, err := m.CallMobHook("midgaard", "on_idle", scripting.MobInfo{ID: "midgaard:rat", HP: 10, MaxHP: 10})
	require.NoError(t, err)
	assert.Equal(t, "success", status)

	status, err = m.CallMobHook("midgaard", "on_idle", scripting.MobInfo{ID: "midgaard:rat", HP: 3, MaxHP: 10})
	require.NoError(t, err)
	assert.Equal(t, "running", status)

	// Non-string returns and undefined hooks both report failure.
	status, err = m.CallMobHook("midgaard", "on_odd", scripting.MobInfo{})
	require.NoError(t, err)
	assert.Equal(t, "failure", status)

	status, err = m.CallMobHook("midgaard", "no_such_hook", scripting.MobInfo{})
	require.NoError(t, err)
	assert.Equal(t, "failure", status)

	// No VM at all for the zone and no global fallback.
	status, err = newManager(t).CallMobHook("nowhere", "on_idle", scripting.MobInfo{})
	require.NoError(t, err)
	assert.Equal(t, "failure", status)
}

func TestLoadZone_ReplacesExistingVM(t *testing.T) {
	dir1 := t.TempDir()
	writeScript(t, dir1, "hooks.lua", `function ver() return "one" end`)
	dir2 := t.TempDir()
	writeScript(t, dir2, "hooks.lua", `function ver() return "two" end`)

	m := newManager(t)
	require.NoError(t, m.LoadZone("midgaard", dir1, 0))
	require.NoError(t, m.LoadZone("midgaard", dir2, 0))

	ret, err := m.CallHook("midgaard", "ver")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("two"), ret)
}
