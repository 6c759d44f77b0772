package mob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/world"
)

func ratSpawn() world.MobSpawn {
	return world.MobSpawn{
		ID:        "midgaard:rat",
		Name:      "a sewer rat",
		RoomID:    "midgaard:sewer",
		MaxHP:     5,
		MinDamage: 1,
		MaxDamage: 1,
		XPReward:  10,
	}
}

func TestUpsertAndGet(t *testing.T) {
	r := NewRegistry()
	m := FromSpawn(ratSpawn())
	require.NoError(t, r.Upsert(m))

	got, ok := r.Get("midgaard:rat")
	require.True(t, ok)
	assert.Equal(t, 5, got.HP)
	assert.True(t, got.Alive())
	assert.Equal(t, 1, r.Count())

	// Upsert under the same id replaces, including the room index.
	moved := FromSpawn(ratSpawn())
	moved.RoomID = "midgaard:temple"
	require.NoError(t, r.Upsert(moved))
	assert.Empty(t, r.InRoom("midgaard:sewer"))
	assert.Len(t, r.InRoom("midgaard:temple"), 1)
}

func TestUpsert_Invalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Upsert(nil))
	assert.Error(t, r.Upsert(&Mob{ID: "noseparator", RoomID: "midgaard:sewer"}))
	assert.Error(t, r.Upsert(&Mob{ID: "midgaard:rat"}))
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Upsert(FromSpawn(ratSpawn())))
	require.NoError(t, r.Remove("midgaard:rat"))
	assert.Empty(t, r.InRoom("midgaard:sewer"))
	assert.Error(t, r.Remove("midgaard:rat"))
}

func TestMove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Upsert(FromSpawn(ratSpawn())))

	require.NoError(t, r.Move("midgaard:rat", "midgaard:temple"))
	m, _ := r.Get("midgaard:rat")
	assert.Equal(t, id.RoomID("midgaard:temple"), m.RoomID)
	assert.Empty(t, r.InRoom("midgaard:sewer"))
	assert.Len(t, r.InRoom("midgaard:temple"), 1)

	assert.Error(t, r.Move("midgaard:ghost", "midgaard:temple"))
	assert.Error(t, r.Move("midgaard:rat", ""))
}

func TestFindInRoom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Upsert(FromSpawn(ratSpawn())))
	guard := FromSpawn(world.MobSpawn{
		ID: "midgaard:guard", Name: "a city guard", RoomID: "midgaard:sewer", MaxHP: 20,
	})
	require.NoError(t, r.Upsert(guard))

	m, ok := r.FindInRoom("midgaard:sewer", "rat")
	require.True(t, ok)
	assert.Equal(t, id.MobID("midgaard:rat"), m.ID)

	// Name substring, at least three characters.
	m, ok = r.FindInRoom("midgaard:sewer", "city")
	require.True(t, ok)
	assert.Equal(t, id.MobID("midgaard:guard"), m.ID)
	_, ok = r.FindInRoom("midgaard:sewer", "ci")
	assert.False(t, ok)

	_, ok = r.FindInRoom("midgaard:temple", "rat")
	assert.False(t, ok)
}

func TestFindInRoom_ExactBeatsSubstring(t *testing.T) {
	r := NewRegistry()
	// "a giant rat king" contains "rat"; the exact local id "rat" must win.
	king := FromSpawn(world.MobSpawn{
		ID: "midgaard:king", Name: "a giant rat king", RoomID: "midgaard:sewer", MaxHP: 50,
	})
	require.NoError(t, r.Upsert(king))
	require.NoError(t, r.Upsert(FromSpawn(ratSpawn())))

	m, ok := r.FindInRoom("midgaard:sewer", "rat")
	require.True(t, ok)
	assert.Equal(t, id.MobID("midgaard:rat"), m.ID)
}

func TestResetZone(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Upsert(FromSpawn(ratSpawn())))
	foreign := FromSpawn(world.MobSpawn{
		ID: "other:wolf", Name: "a wolf", RoomID: "other:den", MaxHP: 10,
	})
	require.NoError(t, r.Upsert(foreign))

	// Wound the rat, then reset: it comes back at full health.
	m, _ := r.Get("midgaard:rat")
	m.HP = 1
	r.ResetZone("midgaard", []world.MobSpawn{ratSpawn()})

	m, ok := r.Get("midgaard:rat")
	require.True(t, ok)
	assert.Equal(t, 5, m.HP)
	_, ok = r.Get("other:wolf")
	assert.True(t, ok)
	assert.Equal(t, 2, r.Count())
}
