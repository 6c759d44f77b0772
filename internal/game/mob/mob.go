// Package mob tracks live mobs by id and by room.
package mob

import (
	"strings"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/world"
)

// Mob is one live mob. Fields are mutated only on the engine worker; the
// registry lock guards its own indexes, not mob fields.
type Mob struct {
	ID        id.MobID
	Name      string
	RoomID    id.RoomID
	HP        int
	MaxHP     int
	MinDamage int
	MaxDamage int
	Armor     int
	XPReward  int
	Drops     []world.DropSpec
	GoldMin   int
	GoldMax   int
	// RespawnSeconds delays respawn after death; 0 disables it.
	RespawnSeconds int
	DialogueID     string
	BehaviorTree   string
	// PatrolRoute is the waypoint loop a patrolling mob walks; empty means
	// improvise from in-zone exits.
	PatrolRoute []id.RoomID
	QuestIDs    []string
	// SpawnRoomID is where the mob was placed at load time. Wandering mobs
	// return here on zone reset.
	SpawnRoomID id.RoomID
}

// FromSpawn builds a live mob at full health from its spawn definition.
func FromSpawn(sp world.MobSpawn) *Mob {
	return &Mob{
		ID:             sp.ID,
		Name:           sp.Name,
		RoomID:         sp.RoomID,
		HP:             sp.MaxHP,
		MaxHP:          sp.MaxHP,
		MinDamage:      sp.MinDamage,
		MaxDamage:      sp.MaxDamage,
		Armor:          sp.Armor,
		XPReward:       sp.XPReward,
		Drops:          sp.Drops,
		GoldMin:        sp.GoldMin,
		GoldMax:        sp.GoldMax,
		RespawnSeconds: sp.RespawnSeconds,
		DialogueID:     sp.DialogueID,
		BehaviorTree:   sp.BehaviorTree,
		PatrolRoute:    sp.PatrolRoute,
		QuestIDs:       sp.QuestIDs,
		SpawnRoomID:    sp.RoomID,
	}
}

// Alive reports whether the mob has hit points left.
func (m *Mob) Alive() bool {
	return m.HP > 0
}

// matchExact reports a case-insensitive match on the local id segment.
func (m *Mob) matchExact(input string) bool {
	return strings.EqualFold(m.ID.Local(), input)
}

// matchLoose reports a substring match over the display name. Inputs
// shorter than three characters never loose-match.
func (m *Mob) matchLoose(input string) bool {
	if len(input) < 3 {
		return false
	}
	return strings.Contains(strings.ToLower(m.Name), strings.ToLower(input))
}
