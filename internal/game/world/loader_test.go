package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambonmud/server/internal/game/id"
)

const zoneA = `
zone: A
startRoom: a1
rooms:
  a1:
    title: Gatehouse
    description: The western gatehouse.
    exits:
      east: a2
  a2:
    title: Courtyard
    description: A wide courtyard.
    exits:
      west: a1
      east: "B:b1"
`

const zoneB = `
zone: B
startRoom: b1
rooms:
  b1:
    title: Bridge
    description: A stone bridge.
    exits:
      west: "A:a2"
`

func TestLoadWorld_MergesZones(t *testing.T) {
	w, err := LoadWorld([][]byte{[]byte(zoneA), []byte(zoneB)}, Options{})
	require.NoError(t, err)

	require.Len(t, w.Rooms, 3)
	assert.Equal(t, id.RoomID("A:a1"), w.StartRoom)
	assert.Equal(t, []string{"A", "B"}, w.Zones)

	a2, ok := w.Room("A:a2")
	require.True(t, ok)
	assert.Equal(t, id.RoomID("B:b1"), a2.Exits[East])
	assert.Equal(t, id.RoomID("A:a1"), a2.Exits[West])
	assert.Empty(t, a2.RemoteExits)
}

func TestLoadWorld_ZoneFilterRecordsRemoteExits(t *testing.T) {
	w, err := LoadWorld([][]byte{[]byte(zoneA), []byte(zoneB)},
		Options{ZoneFilter: map[string]bool{"A": true}})
	require.NoError(t, err)

	require.Len(t, w.Rooms, 2)
	a2, ok := w.Room("A:a2")
	require.True(t, ok)
	_, open := a2.Exits[East]
	assert.False(t, open)
	assert.True(t, a2.RemoteExits[East])
}

func TestLoadWorld_UnknownExitTarget(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Lone room
    description: Nothing here.
    exits:
      north: nowhere
`
	_, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown room")
}

func TestLoadWorld_DuplicateRoomAcrossZones(t *testing.T) {
	dup := `
zone: C
startRoom: "A:a1"
rooms:
  "A:a1":
    title: Impostor
    description: Already taken.
`
	_, err := LoadWorld([][]byte{[]byte(zoneA), []byte(dup)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate room id")
}

func TestLoadWorld_ObjectExitForm(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Hall
    description: A hall.
    exits:
      north:
        to: a2
        door: oak
  a2:
    title: Cellar
    description: A cellar.
`
	w, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.NoError(t, err)
	a1, _ := w.Room("A:a1")
	assert.Equal(t, id.RoomID("A:a2"), a1.Exits[North])
}

func TestLoadWorld_TierResolution(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
mobs:
  - id: wolf
    name: a grey wolf
    room: a1
    level: 3
  - id: alpha
    name: the alpha wolf
    room: a1
    level: 3
    tier: elite
    maxHp: 99
`
	w, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.NoError(t, err)
	require.Len(t, w.MobSpawns, 2)

	// standard: base 10 hp + 2*5, base 10 xp + 2*5.
	wolf := w.MobSpawns[0]
	assert.Equal(t, 20, wolf.MaxHP)
	assert.Equal(t, 3, wolf.MinDamage)
	assert.Equal(t, 5, wolf.MaxDamage)
	assert.Equal(t, 2, wolf.Armor)
	assert.Equal(t, 20, wolf.XPReward)

	// Explicit maxHp overrides the tier value, the rest stays derived.
	alpha := w.MobSpawns[1]
	assert.Equal(t, 99, alpha.MaxHP)
	assert.Equal(t, 6, alpha.MinDamage)
	assert.Equal(t, 50, alpha.XPReward)
}

func TestLoadWorld_PatrolRoute(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Gate
    description: The gate.
    exits:
      east: a2
  a2:
    title: Yard
    description: The yard.
    exits:
      west: a1
mobs:
  - id: guard
    name: a guard
    room: a1
    behavior: patrol
    patrolRoute: [a2, a1]
`
	w, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.NoError(t, err)
	require.Len(t, w.MobSpawns, 1)
	assert.Equal(t, []id.RoomID{"A:a2", "A:a1"}, w.MobSpawns[0].PatrolRoute)
}

func TestLoadWorld_PatrolRouteUnknownRoom(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Gate
    description: The gate.
mobs:
  - id: guard
    name: a guard
    room: a1
    behavior: patrol
    patrolRoute: [nowhere]
`
	_, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patrol waypoint")
}

func TestLoadWorld_UnknownTier(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
mobs:
  - id: wolf
    name: a wolf
    room: a1
    tier: legendary
`
	_, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}

func TestLoadWorld_DropValidation(t *testing.T) {
	bad := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
mobs:
  - id: wolf
    name: a wolf
    room: a1
    drops:
      - item: pelt
        chance: 1.5
`
	_, err := LoadWorld([][]byte{[]byte(bad)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drop chance")

	missing := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
mobs:
  - id: wolf
    name: a wolf
    room: a1
    drops:
      - item: pelt
        chance: 0.5
`
	_, err = LoadWorld([][]byte{[]byte(missing)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drop item")
}

func TestLoadWorld_ItemPlacement(t *testing.T) {
	both := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
mobs:
  - id: wolf
    name: a wolf
    room: a1
items:
  - id: pelt
    keyword: pelt
    name: a wolf pelt
    room: a1
    mob: wolf
`
	_, err := LoadWorld([][]byte{[]byte(both)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	unplaced := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
items:
  - id: pelt
    keyword: pelt
    name: a wolf pelt
`
	w, err := LoadWorld([][]byte{[]byte(unplaced)}, Options{})
	require.NoError(t, err)
	require.Len(t, w.ItemSpawns, 1)
	assert.Empty(t, w.ItemSpawns[0].RoomID)
	assert.Empty(t, w.ItemSpawns[0].MobID)
}

func TestLoadWorld_InvalidSlot(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Den
    description: A den.
items:
  - id: boots
    keyword: boots
    name: muddy boots
    slot: feet
`
	_, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot")
}

func TestLoadWorld_LifespanConflict(t *testing.T) {
	first := `
zone: A
startRoom: a1
lifespanMinutes: 30
rooms:
  a1:
    title: One
    description: One.
`
	second := `
zone: A
lifespanMinutes: 45
rooms:
  a2:
    title: Two
    description: Two.
`
	_, err := LoadWorld([][]byte{[]byte(first), []byte(second)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting lifespans")
}

func TestLoadWorld_DialogueValidation(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Inn
    description: An inn.
dialogues:
  - id: innkeeper
    nodes:
      start:
        text: Welcome!
        choices:
          - text: Bye.
          - text: Tell me more.
            next: more
      more:
        text: It is a fine inn.
`
	w, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.NoError(t, err)
	tree := w.Dialogues["innkeeper"]
	require.NotNil(t, tree)
	assert.Equal(t, "start", tree.Start)
	require.Len(t, tree.Nodes["start"].Choices, 2)

	broken := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Inn
    description: An inn.
dialogues:
  - id: innkeeper
    nodes:
      start:
        text: Welcome!
        choices:
          - text: Tell me more.
            next: missing
`
	_, err = LoadWorld([][]byte{[]byte(broken)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestLoadWorld_QuestReferences(t *testing.T) {
	doc := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Plaza
    description: A plaza.
mobs:
  - id: captain
    name: the guard captain
    room: a1
    quests: [cull]
  - id: rat
    name: a rat
    room: a1
quests:
  - id: cull
    name: Rat Cull
    description: Thin the rats.
    giver: captain
    target: rat
    requiredKills: 5
    xpReward: 50
`
	w, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.NoError(t, err)
	q, ok := w.QuestByID("cull")
	require.True(t, ok)
	assert.Equal(t, id.MobID("A:rat"), q.TargetMobID)

	bad := `
zone: A
startRoom: a1
rooms:
  a1:
    title: Plaza
    description: A plaza.
mobs:
  - id: captain
    name: the guard captain
    room: a1
quests:
  - id: cull
    name: Rat Cull
    description: Thin the rats.
    giver: captain
    target: rat
    requiredKills: 5
`
	_, err = LoadWorld([][]byte{[]byte(bad)}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target mob")
}

func TestLoadWorld_UnknownField(t *testing.T) {
	doc := `
zone: A
startRoom: a1
roomz:
  a1:
    title: Typo
`
	_, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	assert.Error(t, err)
}

func TestLoadWorld_ClassStartRooms(t *testing.T) {
	doc := `
zone: A
startRoom: a1
classStartRooms:
  Mage: tower
rooms:
  a1:
    title: Plaza
    description: A plaza.
  tower:
    title: Tower
    description: The mage tower.
`
	w, err := LoadWorld([][]byte{[]byte(doc)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, id.RoomID("A:tower"), w.StartRoomFor("MAGE"))
	assert.Equal(t, id.RoomID("A:a1"), w.StartRoomFor("warrior"))
}

func TestLoadWorldFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(zoneA), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(zoneB), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	w, err := LoadWorldFromDir(dir, Options{})
	require.NoError(t, err)
	assert.Len(t, w.Rooms, 3)

	_, err = LoadWorldFromDir(filepath.Join(dir, "missing"), Options{})
	assert.Error(t, err)
}

func TestLoadWorld_Deterministic(t *testing.T) {
	docs := [][]byte{[]byte(zoneA), []byte(zoneB)}
	first, err := LoadWorld(docs, Options{})
	require.NoError(t, err)
	second, err := LoadWorld(docs, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("N")
	require.True(t, ok)
	assert.Equal(t, North, d)
	assert.Equal(t, South, d.Opposite())

	_, ok = ParseDirection("northeast")
	assert.False(t, ok)
}
