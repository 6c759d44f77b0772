package effect

import (
	"math/rand"
	"sort"
	"time"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/stat"
)

// Target is who an effect is on: a player session or a mob, never both.
type Target struct {
	Player id.SessionID
	Mob    id.MobID
}

// PlayerTarget targets a session.
func PlayerTarget(sid id.SessionID) Target { return Target{Player: sid} }

// MobTarget targets a mob.
func MobTarget(mid id.MobID) Target { return Target{Mob: mid} }

// IsMob reports whether the target is a mob.
func (t Target) IsMob() bool { return t.Mob != "" }

// instance is one active effect on a target.
type instance struct {
	def             *Definition
	appliedAt       time.Time
	expiresAt       time.Time
	lastTickAt      time.Time
	source          id.SessionID
	shieldRemaining int
}

// ApplyOutcome classifies an Apply call.
type ApplyOutcome int

// Apply outcomes.
const (
	Applied ApplyOutcome = iota
	Refreshed
	Stacked
	AlreadyActive
	UnknownEffect
)

// TickKind classifies one tick result.
type TickKind int

// Tick result kinds.
const (
	TickDamage TickKind = iota
	TickHeal
	TickExpired
	TickShattered
)

// TickResult is one observable outcome of an engine tick. Damage and heal
// amounts are applied to the target by the caller, clamped to its HP range.
type TickResult struct {
	Target Target
	Def    *Definition
	Kind   TickKind
	Amount int
	Source id.SessionID
}

// Engine owns all active status effects. Not safe for concurrent use; it
// is owned by the engine worker.
type Engine struct {
	defs    map[string]*Definition
	actives map[Target][]*instance
	rng     *rand.Rand
}

// NewEngine creates a status-effect engine over a definition set.
//
// Precondition: rng must be non-nil.
func NewEngine(defs map[string]*Definition, rng *rand.Rand) *Engine {
	return &Engine{
		defs:    defs,
		actives: make(map[Target][]*instance),
		rng:     rng,
	}
}

// Definition returns a definition by id.
func (e *Engine) Definition(defID string) (*Definition, bool) {
	d, ok := e.defs[defID]
	return d, ok
}

// Apply puts the effect on the target, honoring its stack behavior.
//
// Postcondition: Returns how the application resolved. AlreadyActive and
// UnknownEffect leave the target unchanged.
func (e *Engine) Apply(now time.Time, target Target, defID string, source id.SessionID) ApplyOutcome {
	def, ok := e.defs[defID]
	if !ok {
		return UnknownEffect
	}

	existing := e.activesOf(target, defID)
	if len(existing) > 0 {
		switch def.StackBehavior {
		case StackNone:
			return AlreadyActive
		case StackRefresh:
			inst := existing[0]
			inst.expiresAt = now.Add(def.Duration())
			inst.lastTickAt = now
			inst.source = source
			return Refreshed
		case StackStack:
			if len(existing) >= def.MaxStacks {
				oldest := existing[0]
				for _, inst := range existing[1:] {
					if inst.appliedAt.Before(oldest.appliedAt) {
						oldest = inst
					}
				}
				oldest.expiresAt = now.Add(def.Duration())
				oldest.lastTickAt = now
				return Refreshed
			}
			e.addInstance(now, target, def, source)
			return Stacked
		}
	}
	e.addInstance(now, target, def, source)
	return Applied
}

func (e *Engine) addInstance(now time.Time, target Target, def *Definition, source id.SessionID) {
	e.actives[target] = append(e.actives[target], &instance{
		def:             def,
		appliedAt:       now,
		expiresAt:       now.Add(def.Duration()),
		lastTickAt:      now,
		source:          source,
		shieldRemaining: def.ShieldAmount,
	})
}

func (e *Engine) activesOf(target Target, defID string) []*instance {
	var out []*instance
	for _, inst := range e.actives[target] {
		if inst.def.ID == defID {
			out = append(out, inst)
		}
	}
	return out
}

// Tick advances every active effect to now.
//
// Postcondition: Expired instances and depleted shields are removed; the
// results report damage and heal amounts for the caller to apply, in a
// deterministic target order.
func (e *Engine) Tick(now time.Time) []TickResult {
	var results []TickResult
	for _, target := range e.sortedTargets() {
		var kept []*instance
		for _, inst := range e.actives[target] {
			if now.After(inst.expiresAt) {
				results = append(results, TickResult{Target: target, Def: inst.def, Kind: TickExpired, Source: inst.source})
				continue
			}
			if inst.def.Type == TypeShield && inst.shieldRemaining <= 0 {
				results = append(results, TickResult{Target: target, Def: inst.def, Kind: TickShattered, Source: inst.source})
				continue
			}
			if interval := inst.def.TickInterval(); interval > 0 && now.Sub(inst.lastTickAt) >= interval {
				amount := e.roll(inst.def)
				kind := TickDamage
				if inst.def.Type == TypeHOT {
					kind = TickHeal
				}
				results = append(results, TickResult{Target: target, Def: inst.def, Kind: kind, Amount: amount, Source: inst.source})
				inst.lastTickAt = now
			}
			kept = append(kept, inst)
		}
		if len(kept) == 0 {
			delete(e.actives, target)
		} else {
			e.actives[target] = kept
		}
	}
	return results
}

func (e *Engine) roll(def *Definition) int {
	if def.TickMax <= def.TickMin {
		return def.TickMin
	}
	return def.TickMin + e.rng.Intn(def.TickMax-def.TickMin+1)
}

func (e *Engine) sortedTargets() []Target {
	targets := make([]Target, 0, len(e.actives))
	for t := range e.actives {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Player != targets[j].Player {
			return targets[i].Player < targets[j].Player
		}
		return targets[i].Mob < targets[j].Mob
	})
	return targets
}

// AbsorbDamage routes raw damage through the target's shields.
//
// Postcondition: Returns the residual damage after absorption and the
// display names of shields that shattered on this hit. Shattered shields
// are removed immediately.
func (e *Engine) AbsorbDamage(target Target, raw int) (int, []string) {
	if raw <= 0 {
		return raw, nil
	}
	var shattered []string
	var kept []*instance
	for _, inst := range e.actives[target] {
		if inst.def.Type != TypeShield || raw <= 0 {
			kept = append(kept, inst)
			continue
		}
		absorbed := inst.shieldRemaining
		if absorbed > raw {
			absorbed = raw
		}
		inst.shieldRemaining -= absorbed
		raw -= absorbed
		if inst.shieldRemaining <= 0 {
			shattered = append(shattered, inst.def.DisplayName)
			continue
		}
		kept = append(kept, inst)
	}
	if len(kept) == 0 {
		delete(e.actives, target)
	} else {
		e.actives[target] = kept
	}
	return raw, shattered
}

// StatMods sums the stat modifiers of every active buff and debuff.
func (e *Engine) StatMods(target Target) stat.Block {
	var sum stat.Block
	for _, inst := range e.actives[target] {
		if inst.def.Type == TypeStatBuff || inst.def.Type == TypeStatDebuf {
			sum = sum.Add(inst.def.StatMods)
		}
	}
	return sum
}

// IsStunned reports whether an active STUN holds the target.
func (e *Engine) IsStunned(target Target) bool { return e.hasType(target, TypeStun) }

// IsRooted reports whether an active ROOT holds the target.
func (e *Engine) IsRooted(target Target) bool { return e.hasType(target, TypeRoot) }

func (e *Engine) hasType(target Target, typ Type) bool {
	for _, inst := range e.actives[target] {
		if inst.def.Type == typ {
			return true
		}
	}
	return false
}

// DotSource returns the session to credit for a mob killed by damage over
// time: the source of its most recently applied sourced DOT.
//
// Postcondition: Returns (0, false) when no sourced DOT is active.
func (e *Engine) DotSource(mobID id.MobID) (id.SessionID, bool) {
	var best *instance
	for _, inst := range e.actives[MobTarget(mobID)] {
		if inst.def.Type != TypeDOT || inst.source == 0 {
			continue
		}
		if best == nil || inst.appliedAt.After(best.appliedAt) {
			best = inst
		}
	}
	if best == nil {
		return 0, false
	}
	return best.source, true
}

// ActiveNames returns the display names of the target's active effects,
// sorted, for score output.
func (e *Engine) ActiveNames(target Target) []string {
	seen := make(map[string]bool)
	var names []string
	for _, inst := range e.actives[target] {
		if !seen[inst.def.DisplayName] {
			seen[inst.def.DisplayName] = true
			names = append(names, inst.def.DisplayName)
		}
	}
	sort.Strings(names)
	return names
}

// OnPlayerDisconnected purges effects on the session and detaches the
// session as a source everywhere.
func (e *Engine) OnPlayerDisconnected(sid id.SessionID) {
	delete(e.actives, PlayerTarget(sid))
	for _, actives := range e.actives {
		for _, inst := range actives {
			if inst.source == sid {
				inst.source = 0
			}
		}
	}
}

// OnMobRemoved purges effects on a despawned mob.
func (e *Engine) OnMobRemoved(mobID id.MobID) {
	delete(e.actives, MobTarget(mobID))
}

// Remap moves effects and source credit from one session id to another.
func (e *Engine) Remap(oldSID, newSID id.SessionID) {
	if actives, ok := e.actives[PlayerTarget(oldSID)]; ok {
		delete(e.actives, PlayerTarget(oldSID))
		e.actives[PlayerTarget(newSID)] = actives
	}
	for _, actives := range e.actives {
		for _, inst := range actives {
			if inst.source == oldSID {
				inst.source = newSID
			}
		}
	}
}
