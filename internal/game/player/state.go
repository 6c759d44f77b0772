// Package player tracks connected players: live state, the session and
// room indexes, the login state machine, and the persistence contract.
package player

import (
	"time"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/progression"
	"github.com/ambonmud/server/internal/game/stat"
)

// Phase is where a session is in its lifecycle. Sessions in any phase
// before PhasePlaying are driven by the login state machine.
type Phase int

// Login phases, in flow order.
const (
	PhaseAskName Phase = iota
	PhaseAskPassword
	PhaseConfirmCreate
	PhaseNewPassword
	PhaseAskClass
	PhaseAskRace
	PhasePlaying
)

// State is the live, mutable state of one connected player. Mutated only
// on the engine worker.
type State struct {
	SessionID id.SessionID
	Name      string
	RoomID    id.RoomID
	Class     progression.Class
	Race      progression.Race
	Level     int
	XPTotal   int
	Gold      int
	Stats     stat.Block
	HP        int
	MaxHP     int
	Mana      int
	MaxMana   int
	// BaseMaxHP feeds the max-HP formula alongside class and level.
	BaseMaxHP int
	IsStaff   bool
	Title     string
	// ActiveQuests maps quest id to kill count so far.
	ActiveQuests    map[string]int
	CompletedQuests map[string]bool
	Achievements    []string
	ANSIEnabled     bool
	Transport       string
	Phase           Phase
	ConnectedAt     time.Time

	// Login scratch state, meaningless once playing.
	pendingName     string
	pendingPassword []byte
	pendingClass    progression.Class
	passwordTries   int
}

// Playing reports whether the session has finished logging in.
func (s *State) Playing() bool {
	return s.Phase == PhasePlaying
}

// RecomputeVitals rederives MaxHP and MaxMana from class, level, stats,
// and equipment stat bonuses, clamping current values into range.
//
// Postcondition: 0 <= HP <= MaxHP and 0 <= Mana <= MaxMana.
func (s *State) RecomputeVitals(equipBonuses stat.Block) {
	effective := s.Stats.Add(equipBonuses)
	s.MaxHP = progression.MaxHP(s.Class, s.Level, effective.Constitution, s.BaseMaxHP)
	s.MaxMana = progression.MaxMana(s.Class, s.Level, effective.Intelligence, effective.Wisdom)
	s.HP = clamp(s.HP, 0, s.MaxHP)
	s.Mana = clamp(s.Mana, 0, s.MaxMana)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
