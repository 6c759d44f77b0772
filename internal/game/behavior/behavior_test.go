package behavior

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/combat"
	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	sys     *System
	world   *world.World
	players *player.Manager
	mobs    *mob.Registry
	combat  *combat.System
	effects *effect.Engine
}

const keepDoc = `
zone: keep
startRoom: gate
rooms:
  gate:
    title: The Gate
    description: A heavy iron gate.
    exits:
      north: hall
  hall:
    title: The Hall
    description: Banners line the walls.
    exits:
      south: gate
      east: yard
  yard:
    title: The Yard
    description: Packed dirt and straw dummies.
    exits:
      west: hall
`

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w, err := world.LoadWorld([][]byte{[]byte(keepDoc)}, world.Options{})
	require.NoError(t, err)

	players := player.NewManager()
	mobs := mob.NewRegistry()
	items := item.NewRegistry()
	effects := effect.NewEngine(map[string]*effect.Definition{
		"pin": {ID: "pin", DisplayName: "Pinned", Type: effect.TypeRoot, DurationMs: 60000},
	}, rand.New(rand.NewSource(3)))
	respawn := func(*player.State) id.RoomID { return "keep:gate" }
	cbt := combat.NewSystem(players, mobs, items, effects, rand.New(rand.NewSource(3)), 2*time.Second, respawn)

	sys := NewSystem(players, mobs, cbt, effects, w, nil, rand.New(rand.NewSource(3)), zap.NewNop())
	return &fixture{sys: sys, world: w, players: players, mobs: mobs, combat: cbt, effects: effects}
}

func (f *fixture) addMob(t *testing.T, mobID id.MobID, room id.RoomID, tree string) *mob.Mob {
	t.Helper()
	m := mob.FromSpawn(world.MobSpawn{
		ID: mobID, Name: "a keep guard", RoomID: room,
		MaxHP: 20, MinDamage: 1, MaxDamage: 2, XPReward: 10,
		BehaviorTree: tree,
	})
	require.NoError(t, f.mobs.Upsert(m))
	return m
}

func (f *fixture) addPlayer(t *testing.T, sid id.SessionID, room id.RoomID) *player.State {
	t.Helper()
	st, err := f.players.Connect(sid, event.TransportTelnet, false, t0)
	require.NoError(t, err)
	st.MaxHP, st.HP = 50, 50
	require.NoError(t, f.players.EnterWorld(sid, room))
	return st
}

// tickUntilDue arms the mob's action timer and advances past the longest
// possible delay.
func (f *fixture) tickUntilDue(now time.Time) ([]Event, time.Time) {
	f.sys.Tick(now, 100)
	now = now.Add(6 * time.Second)
	return f.sys.Tick(now, 100), now
}

func TestAggroGuard_EngagesPlayer(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:gate", "aggro_guard")
	f.addPlayer(t, 1, "keep:gate")

	events, _ := f.tickUntilDue(t0)
	require.Len(t, events, 1)
	assert.Equal(t, EventAggro, events[0].Kind)
	assert.Equal(t, id.SessionID(1), events[0].SID)
	assert.Equal(t, "a keep guard", events[0].MobName)
	assert.True(t, f.combat.InCombat(1))
	target, ok := f.combat.TargetOf(1)
	require.True(t, ok)
	assert.Equal(t, m.ID, target)
}

func TestAggroGuard_IgnoresStaffAndEmptyRoom(t *testing.T) {
	f := newFixture(t)
	f.addMob(t, "keep:guard", "keep:gate", "aggro_guard")
	st := f.addPlayer(t, 1, "keep:gate")
	st.IsStaff = true

	events, _ := f.tickUntilDue(t0)
	assert.Empty(t, events)
	assert.False(t, f.combat.InCombat(1))
}

func TestAggro_NoRepeatWhileFighting(t *testing.T) {
	f := newFixture(t)
	f.addMob(t, "keep:guard", "keep:gate", "aggro_guard")
	f.addPlayer(t, 1, "keep:gate")
	f.addPlayer(t, 2, "keep:gate")

	events, now := f.tickUntilDue(t0)
	require.Len(t, events, 1)
	first := events[0].SID

	// Already in combat; the second player is not aggroed.
	events, _ = f.tickUntilDue(now)
	assert.Empty(t, events)
	assert.True(t, f.combat.InCombat(first))
}

func TestPatrol_CyclesExitsInOrder(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:hall", "patrol")

	events, now := f.tickUntilDue(t0)
	require.Len(t, events, 1)
	assert.Equal(t, EventMoved, events[0].Kind)
	// Direction order: east before south from the hall.
	assert.Equal(t, id.RoomID("keep:yard"), events[0].ToRoom)
	assert.Equal(t, id.RoomID("keep:yard"), m.RoomID)

	// The yard's only exit leads back to the hall.
	events, now = f.tickUntilDue(now)
	require.Len(t, events, 1)
	assert.Equal(t, id.RoomID("keep:hall"), events[0].ToRoom)

	// PatrolIndex 2 over the hall's two exits selects east again.
	events, _ = f.tickUntilDue(now)
	require.Len(t, events, 1)
	assert.Equal(t, id.RoomID("keep:yard"), events[0].ToRoom)
}

func TestPatrol_FollowsWaypointRoute(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:gate", "patrol")
	m.PatrolRoute = []id.RoomID{"keep:hall", "keep:yard", "keep:hall", "keep:gate"}

	want := []id.RoomID{
		"keep:hall", "keep:yard", "keep:hall", "keep:gate",
		// The route wraps and repeats.
		"keep:hall", "keep:yard",
	}
	now := t0
	for i, dest := range want {
		var events []Event
		events, now = f.tickUntilDue(now)
		require.Len(t, events, 1, "step %d", i)
		assert.Equal(t, EventMoved, events[0].Kind)
		assert.Equal(t, dest, events[0].ToRoom, "step %d", i)
	}
	assert.Equal(t, id.RoomID("keep:yard"), m.RoomID)
}

func TestPatrol_HoldsWhenOffRoute(t *testing.T) {
	f := newFixture(t)
	// The gate has no exit to the yard; the guard cannot rejoin its route.
	m := f.addMob(t, "keep:guard", "keep:gate", "patrol")
	m.PatrolRoute = []id.RoomID{"keep:yard"}

	events, _ := f.tickUntilDue(t0)
	assert.Empty(t, events)
	assert.Equal(t, id.RoomID("keep:gate"), m.RoomID)
}

func TestPatrol_SkipsCurrentRoomWaypoint(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:hall", "patrol")
	m.PatrolRoute = []id.RoomID{"keep:hall", "keep:yard"}

	events, _ := f.tickUntilDue(t0)
	require.Len(t, events, 1)
	assert.Equal(t, id.RoomID("keep:yard"), events[0].ToRoom)
}

func TestWander_StaysInHomeZone(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:gate", "wander")

	now := t0
	var events []Event
	for i := 0; i < 10; i++ {
		events, now = f.tickUntilDue(now)
		for _, ev := range events {
			assert.Equal(t, EventMoved, ev.Kind)
			assert.Equal(t, "keep", ev.ToRoom.Zone())
		}
	}
	assert.Equal(t, "keep", m.RoomID.Zone())
}

func TestCoward_FleesWhenHurt(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:rat", "keep:yard", "coward")
	f.addPlayer(t, 1, "keep:yard")
	require.NoError(t, f.combat.Engage(t0, 1, m.ID))
	m.HP = 5

	events, _ := f.tickUntilDue(t0)
	require.Len(t, events, 1)
	assert.Equal(t, EventFled, events[0].Kind)
	assert.Equal(t, id.RoomID("keep:hall"), events[0].ToRoom)
	assert.False(t, f.combat.InCombat(1))
}

func TestCoward_HoldsGroundAboveThreshold(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:rat", "keep:yard", "coward")
	f.addPlayer(t, 1, "keep:yard")
	require.NoError(t, f.combat.Engage(t0, 1, m.ID))
	m.HP = 15

	events, _ := f.tickUntilDue(t0)
	assert.Empty(t, events)
	assert.True(t, f.combat.InCombat(1))
}

func TestStationaryAggro_TauntsOnCooldown(t *testing.T) {
	f := newFixture(t)
	f.addMob(t, "keep:warden", "keep:hall", "stationary_aggro")
	f.addPlayer(t, 1, "keep:hall")

	events, now := f.tickUntilDue(t0)
	require.Len(t, events, 2)
	assert.Equal(t, EventSaid, events[0].Kind)
	assert.Equal(t, "You should not have come here.", events[0].Message)
	assert.Equal(t, EventAggro, events[1].Kind)

	// Second victim within the taunt cooldown is attacked silently.
	f.combat.OnPlayerDisconnected(1)
	f.players.Disconnect(1)
	f.addPlayer(t, 2, "keep:hall")
	events, _ = f.tickUntilDue(now)
	require.Len(t, events, 1)
	assert.Equal(t, EventAggro, events[0].Kind)
}

func TestTick_RootedMobsSkipped(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:hall", "patrol")
	require.Equal(t, effect.Applied, f.effects.Apply(t0, effect.MobTarget(m.ID), "pin", 0))

	events, _ := f.tickUntilDue(t0)
	assert.Empty(t, events)
	assert.Equal(t, id.RoomID("keep:hall"), m.RoomID)
}

func TestTick_CapLimitsMobs(t *testing.T) {
	f := newFixture(t)
	f.addMob(t, "keep:g1", "keep:hall", "patrol")
	f.addMob(t, "keep:g2", "keep:hall", "patrol")
	f.addMob(t, "keep:g3", "keep:hall", "patrol")

	f.sys.Tick(t0, 100)
	events := f.sys.Tick(t0.Add(6*time.Second), 2)
	assert.Len(t, events, 2)
}

func TestTick_DelayGatesActions(t *testing.T) {
	f := newFixture(t)
	f.addMob(t, "keep:guard", "keep:hall", "patrol")

	// First sighting arms the timer; nothing happens yet.
	assert.Empty(t, f.sys.Tick(t0, 100))
	// Below the minimum delay, still idle.
	assert.Empty(t, f.sys.Tick(t0.Add(time.Second), 100))
	assert.NotEmpty(t, f.sys.Tick(t0.Add(6*time.Second), 100))
}

func TestTick_UnknownTemplateIgnored(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:odd", "keep:hall", "no_such_tree")

	events, _ := f.tickUntilDue(t0)
	assert.Empty(t, events)
	assert.Equal(t, id.RoomID("keep:hall"), m.RoomID)
}

func TestOnMobRemoved_DropsMemory(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:hall", "patrol")
	f.sys.Tick(t0, 100)
	require.Contains(t, f.sys.memories, m.ID)
	f.sys.OnMobRemoved(m.ID)
	assert.NotContains(t, f.sys.memories, m.ID)
}

type stubScripts struct {
	status string
	err    error
	calls  int
}

func (s *stubScripts) RunMobHook(zone, hook string, m *mob.Mob) (string, error) {
	s.calls++
	return s.status, s.err
}

func TestScriptLeaf(t *testing.T) {
	f := newFixture(t)
	m := f.addMob(t, "keep:guard", "keep:hall", "scripted")
	scripts := &stubScripts{status: "success"}
	f.sys.scripts = scripts
	f.sys.Register("scripted", &Selector{Children: []Node{
		Script{Hook: "on_idle"},
		Stationary{},
	}})

	f.tickUntilDue(t0)
	assert.Equal(t, 1, scripts.calls)

	var events []Event
	ctx := &Context{Now: t0, Mob: m, Memory: newMemory(), events: &events}
	assert.Equal(t, Success, Script{Hook: "on_idle"}.Tick(&Context{Now: t0, Mob: m, Memory: newMemory(), Scripts: scripts, events: &events}))
	scripts.status = "running"
	assert.Equal(t, Running, Script{Hook: "on_idle"}.Tick(&Context{Now: t0, Mob: m, Memory: newMemory(), Scripts: scripts, events: &events}))
	scripts.status = "nope"
	assert.Equal(t, Failure, Script{Hook: "on_idle"}.Tick(&Context{Now: t0, Mob: m, Memory: newMemory(), Scripts: scripts, events: &events}))
	// Nil runner fails the leaf.
	assert.Equal(t, Failure, Script{Hook: "on_idle"}.Tick(ctx))
}

func TestTick_ScriptPrefixBuildsTree(t *testing.T) {
	f := newFixture(t)
	f.addMob(t, "keep:statue", "keep:hall", "script:on_statue_think")
	scripts := &stubScripts{status: "success"}
	f.sys.scripts = scripts

	f.tickUntilDue(t0)
	assert.Equal(t, 1, scripts.calls)
	// The built tree is cached for reuse.
	assert.Contains(t, f.sys.trees, "script:on_statue_think")
}

func TestNodeCombinators(t *testing.T) {
	succ := Stationary{}
	fail := &Inverter{Child: Stationary{}}
	ctx := &Context{}

	assert.Equal(t, Success, (&Selector{Children: []Node{fail, succ}}).Tick(ctx))
	assert.Equal(t, Failure, (&Selector{Children: []Node{fail, fail}}).Tick(ctx))
	assert.Equal(t, Success, (&Sequence{Children: []Node{succ, succ}}).Tick(ctx))
	assert.Equal(t, Failure, (&Sequence{Children: []Node{succ, fail}}).Tick(ctx))
	assert.Equal(t, Failure, (&Inverter{Child: succ}).Tick(ctx))
}

func TestCooldownNode(t *testing.T) {
	mem := newMemory()
	ctx := &Context{Now: t0, Memory: mem}
	node := &Cooldown{Key: "bark", Period: 10 * time.Second, Child: Stationary{}}

	assert.Equal(t, Success, node.Tick(ctx))
	assert.Equal(t, Failure, node.Tick(ctx))
	ctx.Now = t0.Add(11 * time.Second)
	assert.Equal(t, Success, node.Tick(ctx))
}
