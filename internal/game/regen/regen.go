// Package regen restores player HP and mana on a per-player interval.
package regen

import (
	"time"

	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/player"
)

// System ticks passive recovery. Not safe for concurrent use; owned by
// the engine worker.
type System struct {
	players  *player.Manager
	items    *item.Registry
	effects  *effect.Engine
	interval time.Duration
	lastTick map[id.SessionID]time.Time
}

// NewSystem creates the regen system.
//
// Precondition: interval must be positive.
func NewSystem(players *player.Manager, items *item.Registry, effects *effect.Engine, interval time.Duration) *System {
	return &System{
		players:  players,
		items:    items,
		effects:  effects,
		interval: interval,
		lastTick: make(map[id.SessionID]time.Time),
	}
}

// Tick regenerates every playing session whose interval has elapsed, up
// to cap sessions per call.
//
// Postcondition: Returns the sessions whose vitals changed, in session
// order, so the caller can refresh their prompts. HP recovery scales with
// constitution, mana with wisdom, both including equipment and status
// stat modifiers.
func (s *System) Tick(now time.Time, cap int) []id.SessionID {
	var changed []id.SessionID
	for _, st := range s.players.Playing() {
		if len(changed) >= cap {
			break
		}
		last, seen := s.lastTick[st.SessionID]
		if !seen {
			s.lastTick[st.SessionID] = now
			continue
		}
		if now.Sub(last) < s.interval {
			continue
		}
		s.lastTick[st.SessionID] = now

		if st.HP >= st.MaxHP && st.Mana >= st.MaxMana {
			continue
		}
		_, _, equip := s.items.EquipmentBonuses(st.SessionID)
		mods := s.effects.StatMods(effect.PlayerTarget(st.SessionID))
		con := st.Stats.Constitution + equip.Constitution + mods.Constitution
		wis := st.Stats.Wisdom + equip.Wisdom + mods.Wisdom

		st.HP = clampAdd(st.HP, 1+con/5, st.MaxHP)
		st.Mana = clampAdd(st.Mana, 1+wis/5, st.MaxMana)
		changed = append(changed, st.SessionID)
	}
	return changed
}

func clampAdd(v, delta, max int) int {
	v += delta
	if v > max {
		return max
	}
	return v
}

// OnPlayerDisconnected clears the session's regen timestamp.
func (s *System) OnPlayerDisconnected(sid id.SessionID) {
	delete(s.lastTick, sid)
}

// Remap moves the regen timestamp to a new session id.
func (s *System) Remap(oldSID, newSID id.SessionID) {
	if last, ok := s.lastTick[oldSID]; ok {
		delete(s.lastTick, oldSID)
		s.lastTick[newSID] = last
	}
}
