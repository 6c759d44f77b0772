package player

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/stat"
)

// Repository errors.
var (
	// ErrNotFound means no record exists for the name.
	ErrNotFound = errors.New("player record not found")
	// ErrNameTaken means a save conflicted with an existing name.
	ErrNameTaken = errors.New("player name already taken")
)

// Record is the durable form of a player.
type Record struct {
	ID           uuid.UUID
	Name         string
	PasswordHash []byte
	Class        string
	Race         string
	Level        int
	XPTotal      int
	Gold         int
	Stats        stat.Block
	RoomID       id.RoomID
	BaseMaxHP    int
	HP           int
	Mana         int
	Inventory    []id.ItemID
	Equipment    map[item.Slot]id.ItemID
	// ActiveQuests maps quest id to kill count so far.
	ActiveQuests    map[string]int
	CompletedQuests []string
	Achievements    []string
	IsStaff         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Snapshot folds the live state and current possessions back into the
// durable record for saving.
//
// Precondition: base is the record the state was hydrated from (or the
// one created at finalize); it keeps its identity and password hash.
func Snapshot(base *Record, st *State, inventory []id.ItemID, equipment map[item.Slot]id.ItemID, now time.Time) *Record {
	rec := *base
	rec.Name = st.Name
	rec.Class = st.Class.Name
	rec.Race = st.Race.Name
	rec.Level = st.Level
	rec.XPTotal = st.XPTotal
	rec.Gold = st.Gold
	rec.Stats = st.Stats
	rec.RoomID = st.RoomID
	rec.BaseMaxHP = st.BaseMaxHP
	rec.HP = st.HP
	rec.Mana = st.Mana
	rec.IsStaff = st.IsStaff
	rec.Inventory = append([]id.ItemID(nil), inventory...)
	rec.Equipment = make(map[item.Slot]id.ItemID, len(equipment))
	for slot, itemID := range equipment {
		rec.Equipment[slot] = itemID
	}
	rec.ActiveQuests = make(map[string]int, len(st.ActiveQuests))
	for q, kills := range st.ActiveQuests {
		rec.ActiveQuests[q] = kills
	}
	rec.CompletedQuests = make([]string, 0, len(st.CompletedQuests))
	for q := range st.CompletedQuests {
		rec.CompletedQuests = append(rec.CompletedQuests, q)
	}
	sort.Strings(rec.CompletedQuests)
	rec.Achievements = append([]string(nil), st.Achievements...)
	rec.UpdatedAt = now
	return &rec
}

// Repository is the persistence contract for player records.
//
// Save is invoked on login finalize, on level-up, and on disconnect.
type Repository interface {
	// FindByName returns the record for a name, case-insensitively.
	// Returns ErrNotFound when no record exists.
	FindByName(ctx context.Context, name string) (*Record, error)
	// Save inserts or updates a record. Returns ErrNameTaken when a new
	// record's name collides with an existing one.
	Save(ctx context.Context, rec *Record) error
	// Exists reports whether a record exists for the name.
	Exists(ctx context.Context, name string) (bool, error)
}
