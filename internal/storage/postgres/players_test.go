package postgres_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/stat"
	"github.com/ambonmud/server/internal/storage/postgres"
	"github.com/ambonmud/server/internal/testutil"
)

func testRecord(name string) *player.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &player.Record{
		ID:           uuid.New(),
		Name:         name,
		PasswordHash: []byte("$2a$10$fakehashfakehashfakehash"),
		Class:        "Warrior",
		Race:         "Human",
		Level:        1,
		XPTotal:      0,
		Gold:         25,
		Stats:        stat.Block{Strength: 12, Constitution: 11, Charisma: 11, Dexterity: 10, Intelligence: 10, Wisdom: 10},
		RoomID:       "town:square",
		HP:           24,
		Mana:         10,
		Inventory:    []id.ItemID{"town:potion"},
		Equipment:    map[item.Slot]id.ItemID{item.SlotHand: "town:sword"},
		ActiveQuests: map[string]int{"town:rat_cull": 2},
		CompletedQuests: []string{
			"town:first_steps",
		},
		Achievements: []string{"first_kill"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPlayerRepositoryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.Pool)
	ctx := t.Context()

	rec := testRecord("Alice")
	require.NoError(t, repo.Save(ctx, rec))

	// Lookups are case-insensitive.
	got, err := repo.FindByName(ctx, "aLiCe")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, rec.PasswordHash, got.PasswordHash)
	assert.Equal(t, rec.Stats, got.Stats)
	assert.Equal(t, id.RoomID("town:square"), got.RoomID)
	assert.Equal(t, rec.Inventory, got.Inventory)
	assert.Equal(t, rec.Equipment, got.Equipment)
	assert.Equal(t, rec.ActiveQuests, got.ActiveQuests)
	assert.Equal(t, rec.CompletedQuests, got.CompletedQuests)
	assert.Equal(t, rec.Achievements, got.Achievements)

	exists, err := repo.Exists(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "Bob")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.FindByName(ctx, "Bob")
	assert.ErrorIs(t, err, player.ErrNotFound)
}

func TestPlayerRepositoryUpsert(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.Pool)
	ctx := t.Context()

	rec := testRecord("Bryn")
	require.NoError(t, repo.Save(ctx, rec))

	rec.Level = 5
	rec.Gold = 500
	rec.RoomID = "keep:gate"
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.FindByName(ctx, "Bryn")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Level)
	assert.Equal(t, 500, got.Gold)
	assert.Equal(t, id.RoomID("keep:gate"), got.RoomID)
}

func TestPlayerRepositoryNameCollision(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.Pool)
	ctx := t.Context()

	require.NoError(t, repo.Save(ctx, testRecord("Casey")))

	// A different record with the same name (any case) is rejected.
	dupe := testRecord("cAsEy")
	err := repo.Save(ctx, dupe)
	assert.ErrorIs(t, err, player.ErrNameTaken)
}

func TestPlayerRepositoryEmptyCollections(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewPlayerRepository(pc.Pool)
	ctx := t.Context()

	rec := testRecord("Dara")
	rec.Inventory = nil
	rec.Equipment = map[item.Slot]id.ItemID{}
	rec.ActiveQuests = map[string]int{}
	rec.CompletedQuests = nil
	rec.Achievements = nil
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.FindByName(ctx, "Dara")
	require.NoError(t, err)
	assert.Empty(t, got.Inventory)
	assert.NotNil(t, got.Equipment)
	assert.NotNil(t, got.ActiveQuests)
	assert.Empty(t, got.CompletedQuests)
}
