// Package item provides the item model and the registry tracking where
// every item instance lives: rooms, inventories, equipment, mobs, or the
// unplaced template pool.
package item

import (
	"fmt"
	"strings"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/stat"
)

// Slot is an equipment slot. Slots are exclusive: at most one equipped item
// per slot per session.
type Slot string

// Equipment slots.
const (
	SlotHead Slot = "HEAD"
	SlotBody Slot = "BODY"
	SlotHand Slot = "HAND"
)

// ParseSlot validates a slot string.
//
// Postcondition: Returns the Slot or an error for unknown values. The empty
// string is valid and means "not wearable".
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToUpper(s)) {
	case "":
		return "", nil
	case SlotHead:
		return SlotHead, nil
	case SlotBody:
		return SlotBody, nil
	case SlotHand:
		return SlotHand, nil
	}
	return "", fmt.Errorf("unknown equipment slot %q", s)
}

// AllSlots lists the equipment slots in display order.
var AllSlots = []Slot{SlotHead, SlotBody, SlotHand}

// UseEffect is what happens when a usable item is consumed.
type UseEffect struct {
	HealHP  int `yaml:"heal_hp"`
	GrantXP int `yaml:"grant_xp"`
}

// Item is the immutable description shared by all instances of one item.
type Item struct {
	// Keyword is the canonical lookup word ("sword").
	Keyword string
	// DisplayName is the in-game name ("a short sword").
	DisplayName string
	// Description is shown on examine.
	Description string
	// Slot is the equipment slot, or "" for non-wearable items.
	Slot Slot
	// Damage adds to the wielder's damage rolls.
	Damage int
	// Armor adds to the wearer's armor.
	Armor int
	// Bonuses are stat bonuses granted while equipped.
	Bonuses stat.Block
	// Consumable items are destroyed when their charges run out.
	Consumable bool
	// Charges is the remaining use count; 0 means unlimited for
	// non-consumables and "spent" for consumables.
	Charges int
	// OnUse is the effect applied by the use command, if any.
	OnUse *UseEffect
	// MatchByKey restricts lookup to the exact keyword (no substring match).
	MatchByKey bool
	// BasePrice is the shop price in gold.
	BasePrice int
}

// Wearable reports whether the item occupies an equipment slot.
func (i Item) Wearable() bool {
	return i.Slot != ""
}

// Usable reports whether the use command does anything with this item.
func (i Item) Usable() bool {
	return i.OnUse != nil
}

// Instance is one concrete item in the world.
type Instance struct {
	ID   id.ItemID
	Item Item
}

// matchExact reports a case-insensitive keyword match.
func (inst Instance) matchExact(input string) bool {
	return strings.EqualFold(inst.Item.Keyword, input)
}

// matchLoose reports a substring match over display name and description.
// Items flagged MatchByKey never loose-match. Inputs shorter than three
// characters never loose-match; that keeps "a"/"of" from grabbing items.
func (inst Instance) matchLoose(input string) bool {
	if inst.Item.MatchByKey || len(input) < 3 {
		return false
	}
	needle := strings.ToLower(input)
	return strings.Contains(strings.ToLower(inst.Item.DisplayName), needle) ||
		strings.Contains(strings.ToLower(inst.Item.Description), needle)
}

// findMatch applies the lookup order (exact keyword first, then loose) to a
// list and returns the index of the first match, or -1.
func findMatch(list []Instance, input string) int {
	for i, inst := range list {
		if inst.matchExact(input) {
			return i
		}
	}
	for i, inst := range list {
		if inst.matchLoose(input) {
			return i
		}
	}
	return -1
}
