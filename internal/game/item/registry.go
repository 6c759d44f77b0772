package item

import (
	"sync"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/stat"
)

// EquipOutcome classifies the result of an equip attempt.
type EquipOutcome int

// Equip outcomes.
const (
	Equipped EquipOutcome = iota
	EquipNotFound
	NotWearable
	SlotOccupied
)

// EquipResult reports an equip attempt.
type EquipResult struct {
	Outcome EquipOutcome
	// Item is the equipped item on success, or the item that failed to equip.
	Item Instance
	// Slot and Blocking are set for SlotOccupied.
	Slot     Slot
	Blocking Instance
}

// UseOutcome classifies the result of a use attempt.
type UseOutcome int

// Use outcomes.
const (
	Used UseOutcome = iota
	UseNotFound
	NotUsable
)

// UseResult reports a use attempt.
type UseResult struct {
	Outcome UseOutcome
	Item    Instance
	// Effect is the item's use effect when Outcome == Used.
	Effect UseEffect
	// Consumed is true when the item was destroyed by this use.
	Consumed bool
}

// GiveOutcome classifies the result of a give attempt.
type GiveOutcome int

// Give outcomes.
const (
	Given GiveOutcome = iota
	GiveNotFound
)

// GiveResult reports a give attempt.
type GiveResult struct {
	Outcome GiveOutcome
	Item    Instance
}

// Registry tracks every item instance's location. All methods are safe for
// concurrent use; mutation happens on the engine worker, reads may come
// from snapshot paths.
type Registry struct {
	mu        sync.RWMutex
	roomItems map[id.RoomID][]Instance
	inventory map[id.SessionID][]Instance
	mobItems  map[id.MobID][]Instance
	equipped  map[id.SessionID]map[Slot]Instance
	unplaced  map[id.ItemID]Instance
	templates map[id.ItemID]Instance
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		roomItems: make(map[id.RoomID][]Instance),
		inventory: make(map[id.SessionID][]Instance),
		mobItems:  make(map[id.MobID][]Instance),
		equipped:  make(map[id.SessionID]map[Slot]Instance),
		unplaced:  make(map[id.ItemID]Instance),
		templates: make(map[id.ItemID]Instance),
	}
}

// RegisterTemplate records an item template for later instantiation
// (mob drops, shop purchases).
func (r *Registry) RegisterTemplate(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[inst.ID] = inst
}

// Template returns the template for the given item id.
func (r *Registry) Template(itemID id.ItemID) (Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.templates[itemID]
	return inst, ok
}

// PlaceInRoom adds inst to the room's floor.
func (r *Registry) PlaceInRoom(roomID id.RoomID, inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomItems[roomID] = append(r.roomItems[roomID], inst)
}

// PlaceOnMob adds inst to a mob's carried items.
func (r *Registry) PlaceOnMob(mobID id.MobID, inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mobItems[mobID] = append(r.mobItems[mobID], inst)
}

// PlaceUnplaced records an instance with no placement.
func (r *Registry) PlaceUnplaced(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unplaced[inst.ID] = inst
}

// RoomItems returns a snapshot of the room's floor items.
func (r *Registry) RoomItems(roomID id.RoomID) []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Instance(nil), r.roomItems[roomID]...)
}

// Inventory returns a snapshot of a session's carried items.
func (r *Registry) Inventory(sid id.SessionID) []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Instance(nil), r.inventory[sid]...)
}

// Equipment returns a snapshot of a session's equipped items by slot.
func (r *Registry) Equipment(sid id.SessionID) map[Slot]Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Slot]Instance, len(r.equipped[sid]))
	for slot, inst := range r.equipped[sid] {
		out[slot] = inst
	}
	return out
}

// MobItems returns a snapshot of a mob's carried items.
func (r *Registry) MobItems(mobID id.MobID) []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Instance(nil), r.mobItems[mobID]...)
}

// TakeFromRoom moves the first item matching input from the room floor to
// the session's inventory.
//
// Postcondition: Returns (instance, true) on success; the room no longer
// holds the instance.
func (r *Registry) TakeFromRoom(sid id.SessionID, roomID id.RoomID, input string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.roomItems[roomID]
	i := findMatch(list, input)
	if i < 0 {
		return Instance{}, false
	}
	inst := list[i]
	r.roomItems[roomID] = append(list[:i:i], list[i+1:]...)
	r.inventory[sid] = append(r.inventory[sid], inst)
	return inst, true
}

// TakeAllFromRoom moves every floor item in the room to the inventory.
func (r *Registry) TakeAllFromRoom(sid id.SessionID, roomID id.RoomID) []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := r.roomItems[roomID]
	if len(taken) == 0 {
		return nil
	}
	delete(r.roomItems, roomID)
	r.inventory[sid] = append(r.inventory[sid], taken...)
	return taken
}

// DropToRoom moves the first inventory item matching input to the room floor.
func (r *Registry) DropToRoom(sid id.SessionID, roomID id.RoomID, input string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.inventory[sid]
	i := findMatch(list, input)
	if i < 0 {
		return Instance{}, false
	}
	inst := list[i]
	r.inventory[sid] = append(list[:i:i], list[i+1:]...)
	r.roomItems[roomID] = append(r.roomItems[roomID], inst)
	return inst, true
}

// AddToInventory places inst directly into a session's inventory (shop
// purchases, quest rewards).
func (r *Registry) AddToInventory(sid id.SessionID, inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[sid] = append(r.inventory[sid], inst)
}

// RemoveFromInventory removes the first inventory item matching input.
func (r *Registry) RemoveFromInventory(sid id.SessionID, input string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.inventory[sid]
	i := findMatch(list, input)
	if i < 0 {
		return Instance{}, false
	}
	inst := list[i]
	r.inventory[sid] = append(list[:i:i], list[i+1:]...)
	return inst, true
}

// Equip moves the first matching inventory item into its slot.
//
// Postcondition: On Equipped the item left the inventory and occupies its
// slot; on SlotOccupied nothing moved and Blocking names the current
// occupant.
func (r *Registry) Equip(sid id.SessionID, input string) EquipResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.inventory[sid]
	i := findMatch(list, input)
	if i < 0 {
		return EquipResult{Outcome: EquipNotFound}
	}
	inst := list[i]
	if !inst.Item.Wearable() {
		return EquipResult{Outcome: NotWearable, Item: inst}
	}
	slots := r.equipped[sid]
	if slots == nil {
		slots = make(map[Slot]Instance)
		r.equipped[sid] = slots
	}
	if current, occupied := slots[inst.Item.Slot]; occupied {
		return EquipResult{Outcome: SlotOccupied, Item: inst, Slot: inst.Item.Slot, Blocking: current}
	}
	r.inventory[sid] = append(list[:i:i], list[i+1:]...)
	slots[inst.Item.Slot] = inst
	return EquipResult{Outcome: Equipped, Item: inst, Slot: inst.Item.Slot}
}

// Unequip moves the equipped item matching input back to the inventory.
func (r *Registry) Unequip(sid id.SessionID, input string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.equipped[sid]
	for slot, inst := range slots {
		if inst.matchExact(input) || inst.matchLoose(input) {
			delete(slots, slot)
			r.inventory[sid] = append(r.inventory[sid], inst)
			return inst, true
		}
	}
	return Instance{}, false
}

// Use resolves the first matching inventory item, decrements finite charges,
// and consumes depleted consumables.
//
// Postcondition: On Used, Effect carries the item's on-use effect and
// Consumed reports whether the instance was destroyed.
func (r *Registry) Use(sid id.SessionID, input string) UseResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.inventory[sid]
	i := findMatch(list, input)
	if i < 0 {
		return UseResult{Outcome: UseNotFound}
	}
	inst := list[i]
	if !inst.Item.Usable() {
		return UseResult{Outcome: NotUsable, Item: inst}
	}

	res := UseResult{Outcome: Used, Item: inst, Effect: *inst.Item.OnUse}
	if inst.Item.Charges > 0 {
		inst.Item.Charges--
		if inst.Item.Consumable && inst.Item.Charges == 0 {
			r.inventory[sid] = append(list[:i:i], list[i+1:]...)
			res.Consumed = true
			return res
		}
		list[i] = inst
	}
	return res
}

// Give atomically moves the first matching item (inventory first, then
// equipment) from one session to another's inventory.
func (r *Registry) Give(from, to id.SessionID, input string) GiveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.inventory[from]
	if i := findMatch(list, input); i >= 0 {
		inst := list[i]
		r.inventory[from] = append(list[:i:i], list[i+1:]...)
		r.inventory[to] = append(r.inventory[to], inst)
		return GiveResult{Outcome: Given, Item: inst}
	}
	for slot, inst := range r.equipped[from] {
		if inst.matchExact(input) || inst.matchLoose(input) {
			delete(r.equipped[from], slot)
			r.inventory[to] = append(r.inventory[to], inst)
			return GiveResult{Outcome: Given, Item: inst}
		}
	}
	return GiveResult{Outcome: GiveNotFound}
}

// DropMobItems moves a dead mob's carried items to the room floor and
// forgets the mob.
func (r *Registry) DropMobItems(mobID id.MobID, roomID id.RoomID) []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := r.mobItems[mobID]
	if len(dropped) == 0 {
		delete(r.mobItems, mobID)
		return nil
	}
	delete(r.mobItems, mobID)
	r.roomItems[roomID] = append(r.roomItems[roomID], dropped...)
	return dropped
}

// EquipmentBonuses sums damage, armor, and stat bonuses over a session's
// equipped items.
func (r *Registry) EquipmentBonuses(sid id.SessionID) (damage, armor int, bonuses stat.Block) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.equipped[sid] {
		damage += inst.Item.Damage
		armor += inst.Item.Armor
		bonuses = bonuses.Add(inst.Item.Bonuses)
	}
	return damage, armor, bonuses
}

// OnPlayerDisconnected forgets a session's inventory and equipment.
// Persistence snapshots item ids before this runs.
func (r *Registry) OnPlayerDisconnected(sid id.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inventory, sid)
	delete(r.equipped, sid)
}

// Remap atomically moves a session's inventory and equipment to a new
// session id (gateway reconnect).
func (r *Registry) Remap(old, new id.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.inventory[old]; ok {
		r.inventory[new] = inv
		delete(r.inventory, old)
	}
	if eq, ok := r.equipped[old]; ok {
		r.equipped[new] = eq
		delete(r.equipped, old)
	}
}

// ResetZone removes zone-owned items from the given rooms and mobs, then
// applies the spawn placements. Player inventories and equipment are never
// touched by a reset.
//
// Precondition: rooms and mobs must enumerate the zone's rooms and live mobs.
func (r *Registry) ResetZone(zone string, rooms []id.RoomID, mobs []id.MobID, spawnRoom map[id.RoomID][]Instance, spawnMob map[id.MobID][]Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := func(list []Instance) []Instance {
		out := list[:0]
		for _, inst := range list {
			if inst.ID.Zone() != zone {
				out = append(out, inst)
			}
		}
		return out
	}
	for _, roomID := range rooms {
		if list, ok := r.roomItems[roomID]; ok {
			r.roomItems[roomID] = keep(list)
		}
	}
	for _, mobID := range mobs {
		if list, ok := r.mobItems[mobID]; ok {
			r.mobItems[mobID] = keep(list)
		}
	}
	for roomID, list := range spawnRoom {
		r.roomItems[roomID] = append(r.roomItems[roomID], list...)
	}
	for mobID, list := range spawnMob {
		r.mobItems[mobID] = append(r.mobItems[mobID], list...)
	}
}
