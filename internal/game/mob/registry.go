package mob

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/world"
)

// Registry tracks all live mobs by id and by room.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	mobs     map[id.MobID]*Mob
	roomSets map[id.RoomID]map[id.MobID]bool
}

// NewRegistry creates an empty mob Registry.
func NewRegistry() *Registry {
	return &Registry{
		mobs:     make(map[id.MobID]*Mob),
		roomSets: make(map[id.RoomID]map[id.MobID]bool),
	}
}

// Upsert registers or replaces the mob under its id.
//
// Precondition: m must be non-nil with a valid id and room.
// Postcondition: The mob is indexed under its current room.
func (r *Registry) Upsert(m *Mob) error {
	if m == nil {
		return fmt.Errorf("mob.Registry.Upsert: mob must not be nil")
	}
	if !m.ID.Valid() || m.RoomID == "" {
		return fmt.Errorf("mob.Registry.Upsert: mob %q needs a valid id and room", m.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.mobs[m.ID]; ok {
		r.removeFromRoomLocked(prev.RoomID, m.ID)
	}
	r.mobs[m.ID] = m
	r.addToRoomLocked(m.RoomID, m.ID)
	return nil
}

// Remove deletes a mob by id.
//
// Postcondition: Returns an error if the mob is not found.
func (r *Registry) Remove(mobID id.MobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mobs[mobID]
	if !ok {
		return fmt.Errorf("mob %q not found", mobID)
	}
	r.removeFromRoomLocked(m.RoomID, mobID)
	delete(r.mobs, mobID)
	return nil
}

// Get returns the mob with the given id.
//
// Postcondition: Returns (mob, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(mobID id.MobID) (*Mob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mobs[mobID]
	return m, ok
}

// InRoom returns the live mobs in roomID, ordered by id.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (r *Registry) InRoom(roomID id.RoomID) []*Mob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.roomSets[roomID]
	if !ok {
		return []*Mob{}
	}
	out := make([]*Mob, 0, len(ids))
	for mobID := range ids {
		if m, ok := r.mobs[mobID]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindInRoom resolves a player's target word to a mob in the room. Exact
// matches on the local id segment win over name substrings.
//
// Postcondition: Returns (mob, true) for the first match in id order.
func (r *Registry) FindInRoom(roomID id.RoomID, input string) (*Mob, bool) {
	mobs := r.InRoom(roomID)
	for _, m := range mobs {
		if m.matchExact(input) {
			return m, true
		}
	}
	for _, m := range mobs {
		if m.matchLoose(input) {
			return m, true
		}
	}
	return nil, false
}

// Move relocates a mob to newRoomID.
//
// Precondition: mobID must identify a live mob; newRoomID must be non-empty.
// Postcondition: The mob's RoomID equals newRoomID and the room index agrees.
func (r *Registry) Move(mobID id.MobID, newRoomID id.RoomID) error {
	if newRoomID == "" {
		return fmt.Errorf("mob.Registry.Move: newRoomID must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mobs[mobID]
	if !ok {
		return fmt.Errorf("mob %q not found", mobID)
	}
	if m.RoomID == newRoomID {
		return nil
	}
	r.removeFromRoomLocked(m.RoomID, mobID)
	m.RoomID = newRoomID
	r.addToRoomLocked(newRoomID, mobID)
	return nil
}

// All returns a snapshot of every live mob, ordered by id.
func (r *Registry) All() []*Mob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Mob, 0, len(r.mobs))
	for _, m := range r.mobs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live mobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mobs)
}

// ResetZone removes every mob belonging to zone and spawns fresh ones
// from the given spawn definitions.
//
// Postcondition: Live mobs from other zones are untouched.
func (r *Registry) ResetZone(zone string, spawns []world.MobSpawn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for mobID, m := range r.mobs {
		if mobID.Zone() != zone {
			continue
		}
		r.removeFromRoomLocked(m.RoomID, mobID)
		delete(r.mobs, mobID)
	}
	for _, sp := range spawns {
		m := FromSpawn(sp)
		r.mobs[m.ID] = m
		r.addToRoomLocked(m.RoomID, m.ID)
	}
}

func (r *Registry) addToRoomLocked(roomID id.RoomID, mobID id.MobID) {
	if r.roomSets[roomID] == nil {
		r.roomSets[roomID] = make(map[id.MobID]bool)
	}
	r.roomSets[roomID][mobID] = true
}

func (r *Registry) removeFromRoomLocked(roomID id.RoomID, mobID id.MobID) {
	if rs, ok := r.roomSets[roomID]; ok {
		delete(rs, mobID)
		if len(rs) == 0 {
			delete(r.roomSets, roomID)
		}
	}
}
