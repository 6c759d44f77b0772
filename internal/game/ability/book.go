package ability

import (
	"sort"
	"strings"
	"time"

	"github.com/ambonmud/server/internal/game/id"
)

// CastGate is the verdict on whether a cast may proceed.
type CastGate int

// Cast gate outcomes.
const (
	CastOK CastGate = iota
	CastNoMana
	CastOnCooldown
)

// Book tracks what every session has learned and when it last cast each
// ability. Not safe for concurrent use; owned by the engine worker.
type Book struct {
	defs []*Definition
	byID map[string]*Definition
	// learned maps session to the set of known ability ids.
	learned map[id.SessionID]map[string]bool
	// lastCast maps session to ability id to the time of the last cast.
	lastCast map[id.SessionID]map[string]time.Time
}

// NewBook creates a Book over an ordered definition list.
func NewBook(defs []*Definition) *Book {
	byID := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return &Book{
		defs:     defs,
		byID:     byID,
		learned:  make(map[id.SessionID]map[string]bool),
		lastCast: make(map[id.SessionID]map[string]time.Time),
	}
}

// Sync recomputes the session's known set for its level and class.
//
// Postcondition: Returns the newly learned definitions, in definition
// order, for notification.
func (b *Book) Sync(sid id.SessionID, level int, class string) []*Definition {
	known := b.learned[sid]
	if known == nil {
		known = make(map[string]bool)
		b.learned[sid] = known
	}
	var fresh []*Definition
	for _, d := range b.defs {
		if d.LevelRequired > level || !d.ForClass(class) {
			continue
		}
		if !known[d.ID] {
			known[d.ID] = true
			fresh = append(fresh, d)
		}
	}
	return fresh
}

// Known returns the session's learned definitions in definition order.
func (b *Book) Known(sid id.SessionID) []*Definition {
	known := b.learned[sid]
	out := make([]*Definition, 0, len(known))
	for _, d := range b.defs {
		if known[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// Resolve finds a learned ability by keyword. Lookup order: exact id,
// case-insensitive display name, id prefix, then display-name substring
// for inputs of three or more characters.
//
// Postcondition: Returns (def, true) for the first match in definition
// order at the strongest matching tier.
func (b *Book) Resolve(sid id.SessionID, input string) (*Definition, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, false
	}
	known := b.Known(sid)
	for _, d := range known {
		if d.ID == input {
			return d, true
		}
	}
	for _, d := range known {
		if strings.EqualFold(d.DisplayName, input) {
			return d, true
		}
	}
	lower := strings.ToLower(input)
	for _, d := range known {
		if strings.HasPrefix(strings.ToLower(d.ID), lower) {
			return d, true
		}
	}
	if len(input) >= 3 {
		for _, d := range known {
			if strings.Contains(strings.ToLower(d.DisplayName), lower) {
				return d, true
			}
		}
	}
	return nil, false
}

// Gate checks mana and cooldown without committing anything.
func (b *Book) Gate(now time.Time, sid id.SessionID, def *Definition, mana int) CastGate {
	if mana < def.ManaCost {
		return CastNoMana
	}
	if b.CooldownRemaining(now, sid, def) > 0 {
		return CastOnCooldown
	}
	return CastOK
}

// CooldownRemaining returns how long until the session may cast again,
// or 0 when ready.
func (b *Book) CooldownRemaining(now time.Time, sid id.SessionID, def *Definition) time.Duration {
	if def.CooldownMs <= 0 {
		return 0
	}
	last, ok := b.lastCast[sid][def.ID]
	if !ok {
		return 0
	}
	remaining := def.Cooldown() - now.Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Commit records a successful cast for cooldown tracking. Mana deduction
// is the caller's.
func (b *Book) Commit(now time.Time, sid id.SessionID, def *Definition) {
	if def.CooldownMs <= 0 {
		return
	}
	if b.lastCast[sid] == nil {
		b.lastCast[sid] = make(map[string]time.Time)
	}
	b.lastCast[sid][def.ID] = now
}

// OnPlayerDisconnected purges the session's derived state.
func (b *Book) OnPlayerDisconnected(sid id.SessionID) {
	delete(b.learned, sid)
	delete(b.lastCast, sid)
}

// Remap moves a session's learned set and cooldowns to a new session id.
func (b *Book) Remap(oldSID, newSID id.SessionID) {
	if known, ok := b.learned[oldSID]; ok {
		delete(b.learned, oldSID)
		b.learned[newSID] = known
	}
	if casts, ok := b.lastCast[oldSID]; ok {
		delete(b.lastCast, oldSID)
		b.lastCast[newSID] = casts
	}
}

// AllDefinitions returns every definition sorted by required level then id,
// for help output.
func (b *Book) AllDefinitions() []*Definition {
	out := append([]*Definition(nil), b.defs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].LevelRequired != out[j].LevelRequired {
			return out[i].LevelRequired < out[j].LevelRequired
		}
		return out[i].ID < out[j].ID
	})
	return out
}
