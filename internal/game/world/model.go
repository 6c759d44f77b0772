// Package world provides the immutable game world model (rooms, exits,
// spawns, dialogues, shops, quests) and the zone-document loader that
// merges and validates it.
package world

import (
	"strings"
	"time"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
)

// Direction is one of the six movement directions.
type Direction string

// The six directions.
const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
	Up    Direction = "up"
	Down  Direction = "down"
)

// AllDirections lists the directions in display order.
var AllDirections = []Direction{North, East, South, West, Up, Down}

// ParseDirection resolves a direction word or single-letter abbreviation.
//
// Postcondition: Returns (direction, true) for n/s/e/w/u/d and their full
// words, case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(s) {
	case "n", "north":
		return North, true
	case "s", "south":
		return South, true
	case "e", "east":
		return East, true
	case "w", "west":
		return West, true
	case "u", "up":
		return Up, true
	case "d", "down":
		return Down, true
	}
	return "", false
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Up:
		return Down
	case Down:
		return Up
	}
	return ""
}

// Room is one location.
type Room struct {
	ID          id.RoomID
	Title       string
	Description string
	// Outdoor rooms pick up time-of-day flavor text.
	Outdoor bool
	// Exits maps each open direction to its destination.
	Exits map[Direction]id.RoomID
	// RemoteExits are exits whose destination zone was excluded by a zone
	// filter; they render as exits but cannot be validated or traversed.
	RemoteExits map[Direction]bool
}

// DropSpec is one independent drop chance on a mob.
type DropSpec struct {
	ItemID id.ItemID
	// Chance is the Bernoulli probability in [0, 1].
	Chance float64
}

// MobSpawn describes one mob to place at load or reset time.
type MobSpawn struct {
	ID        id.MobID
	Name      string
	RoomID    id.RoomID
	MaxHP     int
	MinDamage int
	MaxDamage int
	Armor     int
	XPReward  int
	Drops     []DropSpec
	// RespawnSeconds delays respawn after death; 0 disables respawn until
	// the next zone reset.
	RespawnSeconds int
	GoldMin        int
	GoldMax        int
	// DialogueID names a dialogue tree, or "" for a silent mob.
	DialogueID string
	// BehaviorTree names a behavior template, or "" for an inert mob.
	BehaviorTree string
	// PatrolRoute lists the waypoint rooms a patrolling mob walks in order,
	// wrapping at the end. Empty means patrols improvise from the room's
	// in-zone exits.
	PatrolRoute []id.RoomID
	// QuestIDs are quests this mob gives.
	QuestIDs []string
}

// ItemSpawn describes one item placement. Exactly one placement or none.
type ItemSpawn struct {
	Instance item.Instance
	// RoomID places the item on a room floor; empty for unplaced templates.
	RoomID id.RoomID
	// MobID places the item on a mob as loot. Deprecated placement form.
	MobID id.MobID
}

// DialogueChoice is one selectable reply in a dialogue node.
type DialogueChoice struct {
	Text string
	// Next names the node this choice leads to; "" ends the conversation.
	Next string
	// MinLevel gates the choice; 0 means ungated.
	MinLevel int
	// Class gates the choice to one player class; "" means ungated.
	Class string
	// AcceptQuest is the quest id accepted by choosing this, if any.
	AcceptQuest string
}

// DialogueNode is one step of a conversation.
type DialogueNode struct {
	Text    string
	Choices []DialogueChoice
}

// DialogueTree is a mob conversation.
type DialogueTree struct {
	ID    string
	Start string
	Nodes map[string]*DialogueNode
}

// Shop sells items in a room.
type Shop struct {
	ID     string
	Name   string
	RoomID id.RoomID
	// ItemIDs reference item templates for sale.
	ItemIDs []id.ItemID
}

// Quest is a kill quest definition.
type Quest struct {
	ID            string
	Name          string
	Description   string
	GiverMobID    id.MobID
	TargetMobID   id.MobID
	RequiredKills int
	XPReward      int
	GoldReward    int
	MinLevel      int
}

// World is the merged, immutable game world. Safe to share by reference
// across workers after construction.
type World struct {
	Rooms     map[id.RoomID]*Room
	StartRoom id.RoomID
	// ClassStartRooms optionally override StartRoom per player class.
	ClassStartRooms map[string]id.RoomID
	MobSpawns       []MobSpawn
	ItemSpawns      []ItemSpawn
	// ZoneLifespans maps zone name to reset lifespan; absent means the zone
	// never expires.
	ZoneLifespans map[string]time.Duration
	Dialogues     map[string]*DialogueTree
	Shops         []Shop
	Quests        []Quest
	// Zones lists the loaded zones in document order.
	Zones []string
}

// Room returns the room with the given id.
func (w *World) Room(roomID id.RoomID) (*Room, bool) {
	r, ok := w.Rooms[roomID]
	return r, ok
}

// StartRoomFor returns the start room for a class, falling back to the
// world start room.
func (w *World) StartRoomFor(class string) id.RoomID {
	if r, ok := w.ClassStartRooms[strings.ToLower(class)]; ok {
		return r
	}
	return w.StartRoom
}

// RoomsInZone returns the ids of every room in the given zone.
func (w *World) RoomsInZone(zone string) []id.RoomID {
	var out []id.RoomID
	for roomID := range w.Rooms {
		if roomID.Zone() == zone {
			out = append(out, roomID)
		}
	}
	return out
}

// SpawnsInZone returns the mob spawns whose room is in the given zone.
func (w *World) SpawnsInZone(zone string) []MobSpawn {
	var out []MobSpawn
	for _, sp := range w.MobSpawns {
		if sp.RoomID.Zone() == zone {
			out = append(out, sp)
		}
	}
	return out
}

// ItemSpawnsInZone returns the placed item spawns belonging to the zone.
func (w *World) ItemSpawnsInZone(zone string) []ItemSpawn {
	var out []ItemSpawn
	for _, sp := range w.ItemSpawns {
		if sp.Instance.ID.Zone() == zone && (sp.RoomID != "" || sp.MobID != "") {
			out = append(out, sp)
		}
	}
	return out
}

// QuestByID returns the quest with the given id.
func (w *World) QuestByID(questID string) (Quest, bool) {
	for _, q := range w.Quests {
		if q.ID == questID {
			return q, true
		}
	}
	return Quest{}, false
}

// ShopInRoom returns the shop located in the given room, if any.
func (w *World) ShopInRoom(roomID id.RoomID) (Shop, bool) {
	for _, s := range w.Shops {
		if s.RoomID == roomID {
			return s, true
		}
	}
	return Shop{}, false
}
