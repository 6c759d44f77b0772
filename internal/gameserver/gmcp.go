package gameserver

import (
	"sort"

	"github.com/ambonmud/server/internal/game/effect"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/mob"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
)

// GMCP package names sent to clients.
const (
	GmcpCharName          = "Char.Name"
	GmcpCharVitals        = "Char.Vitals"
	GmcpCharItemsList     = "Char.Items.List"
	GmcpCharItemsAdd      = "Char.Items.Add"
	GmcpCharItemsRemove   = "Char.Items.Remove"
	GmcpCharStatusEffects = "Char.StatusEffects"
	GmcpCharSkills        = "Char.Skills"
	GmcpRoomInfo          = "Room.Info"
	GmcpRoomItems         = "Room.Items"
	GmcpRoomPlayers       = "Room.Players"
	GmcpRoomAddPlayer     = "Room.AddPlayer"
	GmcpRoomRemovePlayer  = "Room.RemovePlayer"
	GmcpRoomMobs          = "Room.Mobs"
	GmcpRoomAddMob        = "Room.AddMob"
	GmcpRoomUpdateMob     = "Room.UpdateMob"
	GmcpRoomRemoveMob     = "Room.RemoveMob"
	GmcpCommChannel       = "Comm.Channel"
)

// CharNamePayload identifies the character after login.
type CharNamePayload struct {
	Name  string `json:"name"`
	Class string `json:"class"`
	Race  string `json:"race"`
	Level int    `json:"level"`
}

// CharVitalsPayload mirrors the prompt numbers.
type CharVitalsPayload struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"maxhp"`
	Mana    int `json:"mana"`
	MaxMana int `json:"maxmana"`
	XP      int `json:"xp"`
	Gold    int `json:"gold"`
}

// ItemPayload is one item in a GMCP item list.
type ItemPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slot string `json:"slot,omitempty"`
}

// RoomInfoPayload describes the room a character occupies.
type RoomInfoPayload struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Desc  string   `json:"desc"`
	Exits []string `json:"exits"`
}

// RoomPlayerPayload is one player visible in a room.
type RoomPlayerPayload struct {
	Name string `json:"name"`
}

// RoomMobPayload is one mob visible in a room.
type RoomMobPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"maxhp"`
}

// CommChannelPayload mirrors a chat line.
type CommChannelPayload struct {
	Channel string `json:"channel"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
}

// SkillPayload is one known ability.
type SkillPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ManaCost int    `json:"manacost"`
}

func charNamePayload(st *player.State) CharNamePayload {
	return CharNamePayload{
		Name:  st.Name,
		Class: st.Class.Name,
		Race:  st.Race.Name,
		Level: st.Level,
	}
}

func charVitalsPayload(st *player.State) CharVitalsPayload {
	return CharVitalsPayload{
		HP:      st.HP,
		MaxHP:   st.MaxHP,
		Mana:    st.Mana,
		MaxMana: st.MaxMana,
		XP:      st.XPTotal,
		Gold:    st.Gold,
	}
}

func roomInfoPayload(room *world.Room) RoomInfoPayload {
	exits := make([]string, 0, len(room.Exits))
	for _, dir := range world.AllDirections {
		if _, ok := room.Exits[dir]; ok {
			exits = append(exits, string(dir))
		}
	}
	return RoomInfoPayload{
		ID:    string(room.ID),
		Title: room.Title,
		Desc:  room.Description,
		Exits: exits,
	}
}

func itemPayloads(list []item.Instance) []ItemPayload {
	out := make([]ItemPayload, 0, len(list))
	for _, inst := range list {
		out = append(out, ItemPayload{
			ID:   string(inst.ID),
			Name: inst.Item.DisplayName,
			Slot: string(inst.Item.Slot),
		})
	}
	return out
}

func equipmentPayloads(eq map[item.Slot]item.Instance) []ItemPayload {
	out := make([]ItemPayload, 0, len(eq))
	for _, slot := range item.AllSlots {
		if inst, ok := eq[slot]; ok {
			out = append(out, ItemPayload{
				ID:   string(inst.ID),
				Name: inst.Item.DisplayName,
				Slot: string(slot),
			})
		}
	}
	return out
}

func roomPlayerPayloads(states []*player.State, exclude id.SessionID) []RoomPlayerPayload {
	out := make([]RoomPlayerPayload, 0, len(states))
	for _, st := range states {
		if st.SessionID == exclude {
			continue
		}
		out = append(out, RoomPlayerPayload{Name: st.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func roomMobPayload(m *mob.Mob) RoomMobPayload {
	return RoomMobPayload{ID: string(m.ID), Name: m.Name, HP: m.HP, MaxHP: m.MaxHP}
}

func roomMobPayloads(mobs []*mob.Mob) []RoomMobPayload {
	out := make([]RoomMobPayload, 0, len(mobs))
	for _, m := range mobs {
		out = append(out, roomMobPayload(m))
	}
	return out
}

func statusEffectPayload(e *effect.Engine, sid id.SessionID) []string {
	names := e.ActiveNames(effect.PlayerTarget(sid))
	if names == nil {
		return []string{}
	}
	return names
}
