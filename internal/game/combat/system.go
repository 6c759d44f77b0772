// Package combat resolves engagements between players and mobs on a
// fixed round cadence.
package combat

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
)

// EventKind classifies one combat event.
type EventKind int

// Combat event kinds.
const (
	// PlayerHit is a player swing landing on a mob.
	PlayerHit EventKind = iota
	// MobHit is a mob swing landing on a player.
	MobHit
	// MobKilled reports a mob death with its rewards.
	MobKilled
	// PlayerDied reports a player death and where they respawn.
	PlayerDied
)

// Event is one observable combat outcome for the caller to render.
type Event struct {
	Kind    EventKind
	SID     id.SessionID
	MobID   id.MobID
	MobName string
	RoomID  id.RoomID
	Damage  int
	// Shattered lists shields destroyed by this hit.
	Shattered []string
	XP          int
	Gold        int
	Drops       []item.Instance
	RespawnRoom id.RoomID
	// ByDot marks a kill credited through a damage-over-time source.
	ByDot bool
}

// engagement is one session fighting one mob.
type engagement struct {
	sid             id.SessionID
	mobID           id.MobID
	playerNextSwing time.Time
	mobNextSwing    time.Time
}

// RespawnFunc returns the room a dead player respawns in.
type RespawnFunc func(st *player.State) id.RoomID

// System owns all active engagements. Not safe for concurrent use; it is
// owned by the engine worker.
type System struct {
	players *player.Manager
	mobs    *mob.Registry
	items   *item.Registry
	effects *effect.Engine
	rng     *rand.Rand
	round   time.Duration
	respawn RespawnFunc

	engagements map[id.SessionID]*engagement
	// mobVictims maps a mob to the session it swings at.
	mobVictims map[id.MobID]id.SessionID
}

// NewSystem creates the combat system.
//
// Precondition: All collaborators must be non-nil and round positive.
func NewSystem(players *player.Manager, mobs *mob.Registry, items *item.Registry,
	effects *effect.Engine, rng *rand.Rand, round time.Duration, respawn RespawnFunc) *System {
	return &System{
		players:     players,
		mobs:        mobs,
		items:       items,
		effects:     effects,
		rng:         rng,
		round:       round,
		respawn:     respawn,
		engagements: make(map[id.SessionID]*engagement),
		mobVictims:  make(map[id.MobID]id.SessionID),
	}
}

// Engage starts combat between a session and a mob. A session fights at
// most one mob; re-engaging switches targets.
//
// Postcondition: The player's first swing is due on the next tick; the
// mob swings back one round later unless already fighting someone.
func (s *System) Engage(now time.Time, sid id.SessionID, mobID id.MobID) error {
	if _, ok := s.mobs.Get(mobID); !ok {
		return fmt.Errorf("mob %q not found", mobID)
	}
	if eng, ok := s.engagements[sid]; ok && eng.mobID != mobID {
		s.disengageLocked(sid)
	}
	s.engagements[sid] = &engagement{
		sid:             sid,
		mobID:           mobID,
		playerNextSwing: now,
		mobNextSwing:    now.Add(s.round),
	}
	if _, fighting := s.mobVictims[mobID]; !fighting {
		s.mobVictims[mobID] = sid
	}
	return nil
}

// Disengage ends the session's combat, if any.
//
// Postcondition: Returns the mob it was fighting, or ("", false).
func (s *System) Disengage(sid id.SessionID) (id.MobID, bool) {
	eng, ok := s.engagements[sid]
	if !ok {
		return "", false
	}
	mobID := eng.mobID
	s.disengageLocked(sid)
	return mobID, true
}

func (s *System) disengageLocked(sid id.SessionID) {
	eng, ok := s.engagements[sid]
	if !ok {
		return
	}
	delete(s.engagements, sid)
	if s.mobVictims[eng.mobID] == sid {
		delete(s.mobVictims, eng.mobID)
		// Hand the mob to another engaged session, if any.
		for _, other := range s.sortedEngagements() {
			if other.mobID == eng.mobID {
				s.mobVictims[eng.mobID] = other.sid
				break
			}
		}
	}
}

// TargetOf returns the mob the session is fighting.
func (s *System) TargetOf(sid id.SessionID) (id.MobID, bool) {
	eng, ok := s.engagements[sid]
	if !ok {
		return "", false
	}
	return eng.mobID, true
}

// InCombat reports whether the session is fighting.
func (s *System) InCombat(sid id.SessionID) bool {
	_, ok := s.engagements[sid]
	return ok
}

// EngagedWith returns the sessions fighting a mob, in session order.
func (s *System) EngagedWith(mobID id.MobID) []id.SessionID {
	var out []id.SessionID
	for _, eng := range s.sortedEngagements() {
		if eng.mobID == mobID {
			out = append(out, eng.sid)
		}
	}
	return out
}

// Taunt redirects the mob the session is fighting onto the session.
//
// Postcondition: Returns false when the session is not in combat.
func (s *System) Taunt(sid id.SessionID) bool {
	eng, ok := s.engagements[sid]
	if !ok {
		return false
	}
	s.mobVictims[eng.mobID] = sid
	return true
}

// Tick resolves every swing due at now.
//
// Postcondition: Events are emitted in session order; dead mobs are
// removed from the registry and dead players are respawned at full vitals.
func (s *System) Tick(now time.Time) []Event {
	var events []Event
	for _, eng := range s.sortedEngagements() {
		// The engagement may have ended mid-tick via a kill.
		if s.engagements[eng.sid] != eng {
			continue
		}
		st, ok := s.players.Get(eng.sid)
		if !ok || !st.Playing() {
			s.disengageLocked(eng.sid)
			continue
		}
		target, ok := s.mobs.Get(eng.mobID)
		if !ok {
			s.disengageLocked(eng.sid)
			continue
		}

		if !now.Before(eng.playerNextSwing) {
			eng.playerNextSwing = now.Add(s.round)
			if !s.effects.IsStunned(effect.PlayerTarget(eng.sid)) {
				events = append(events, s.playerSwing(now, st, target)...)
			}
		}
		if s.engagements[eng.sid] != eng {
			continue
		}
		if !now.Before(eng.mobNextSwing) {
			eng.mobNextSwing = now.Add(s.round)
			if s.mobVictims[eng.mobID] == eng.sid && !s.effects.IsStunned(effect.MobTarget(eng.mobID)) {
				events = append(events, s.mobSwing(st, target)...)
			}
		}
	}
	return events
}

// playerSwing lands one melee hit: strength-derived damage plus weapon,
// reduced by mob armor with a minimum of 1.
func (s *System) playerSwing(now time.Time, st *player.State, target *mob.Mob) []Event {
	weaponDamage, _, _ := s.items.EquipmentBonuses(st.SessionID)
	mods := s.effects.StatMods(effect.PlayerTarget(st.SessionID))
	strength := st.Stats.Strength + mods.Strength

	raw := strength/10 + weaponDamage
	damage := raw - target.Armor
	if damage < 1 {
		damage = 1
	}
	target.HP -= damage

	hit := Event{
		Kind: PlayerHit, SID: st.SessionID, MobID: target.ID,
		MobName: target.Name, RoomID: target.RoomID, Damage: damage,
	}
	if target.HP <= 0 {
		return append([]Event{hit}, s.KillMob(target.ID, st.SessionID, false)...)
	}
	return []Event{hit}
}

// mobSwing lands one mob hit: rolled damage minus player armor (minimum
// 1), then shield absorption.
func (s *System) mobSwing(st *player.State, target *mob.Mob) []Event {
	roll := target.MinDamage
	if target.MaxDamage > target.MinDamage {
		roll += s.rng.Intn(target.MaxDamage - target.MinDamage + 1)
	}
	_, armor, _ := s.items.EquipmentBonuses(st.SessionID)
	damage := roll - armor
	if damage < 1 {
		damage = 1
	}
	residual, shattered := s.effects.AbsorbDamage(effect.PlayerTarget(st.SessionID), damage)
	st.HP -= residual

	hit := Event{
		Kind: MobHit, SID: st.SessionID, MobID: target.ID,
		MobName: target.Name, RoomID: target.RoomID,
		Damage: residual, Shattered: shattered,
	}
	if st.HP <= 0 {
		return append([]Event{hit}, s.killPlayer(st)...)
	}
	return []Event{hit}
}

// KillMob removes a dead or dying mob, rolls its drops, and credits XP.
// Abilities and DOT kills route through here as well as melee.
//
// Postcondition: The mob is gone from the registry, its carried items and
// drops are on the floor, and every engagement on it is released.
func (s *System) KillMob(mobID id.MobID, credit id.SessionID, byDot bool) []Event {
	m, ok := s.mobs.Get(mobID)
	if !ok {
		return nil
	}
	roomID := m.RoomID

	drops := s.items.DropMobItems(mobID, roomID)
	for _, spec := range m.Drops {
		if s.rng.Float64() >= spec.Chance {
			continue
		}
		if tmpl, ok := s.items.Template(spec.ItemID); ok {
			s.items.PlaceInRoom(roomID, tmpl)
			drops = append(drops, tmpl)
		}
	}
	gold := m.GoldMin
	if m.GoldMax > m.GoldMin {
		gold += s.rng.Intn(m.GoldMax - m.GoldMin + 1)
	}

	_ = s.mobs.Remove(mobID)
	s.effects.OnMobRemoved(mobID)
	for _, sid := range s.EngagedWith(mobID) {
		s.disengageLocked(sid)
	}
	delete(s.mobVictims, mobID)

	ev := Event{
		Kind: MobKilled, SID: credit, MobID: mobID, MobName: m.Name,
		RoomID: roomID, XP: m.XPReward, Gold: gold, Drops: drops, ByDot: byDot,
	}
	if st, ok := s.players.Get(credit); ok && st.Playing() {
		st.XPTotal += m.XPReward
		st.Gold += gold
	}
	return []Event{ev}
}

// killPlayer respawns a dead player at full vitals.
func (s *System) killPlayer(st *player.State) []Event {
	s.disengageLocked(st.SessionID)
	room := s.respawn(st)
	st.HP = st.MaxHP
	st.Mana = st.MaxMana
	return []Event{{
		Kind: PlayerDied, SID: st.SessionID, RoomID: st.RoomID, RespawnRoom: room,
	}}
}

// OnPlayerDisconnected releases the session's engagement.
func (s *System) OnPlayerDisconnected(sid id.SessionID) {
	s.disengageLocked(sid)
}

// OnMobRemoved releases engagements on a mob despawned outside combat.
func (s *System) OnMobRemoved(mobID id.MobID) {
	for _, sid := range s.EngagedWith(mobID) {
		s.disengageLocked(sid)
	}
	delete(s.mobVictims, mobID)
}

// Remap moves an engagement to a new session id.
func (s *System) Remap(oldSID, newSID id.SessionID) {
	eng, ok := s.engagements[oldSID]
	if !ok {
		return
	}
	delete(s.engagements, oldSID)
	eng.sid = newSID
	s.engagements[newSID] = eng
	if s.mobVictims[eng.mobID] == oldSID {
		s.mobVictims[eng.mobID] = newSID
	}
}

func (s *System) sortedEngagements() []*engagement {
	out := make([]*engagement, 0, len(s.engagements))
	for _, eng := range s.engagements {
		out = append(out, eng)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sid < out[j].sid })
	return out
}
