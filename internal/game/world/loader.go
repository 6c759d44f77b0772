package world

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/stat"
)

// TierSpec derives mob stats from a level: each stat is
// base + (level-1) * perLevel.
type TierSpec struct {
	BaseMaxHP         int `yaml:"base_max_hp"`
	PerLevelMaxHP     int `yaml:"per_level_max_hp"`
	BaseMinDamage     int `yaml:"base_min_damage"`
	PerLevelMinDamage int `yaml:"per_level_min_damage"`
	BaseMaxDamage     int `yaml:"base_max_damage"`
	PerLevelMaxDamage int `yaml:"per_level_max_damage"`
	BaseArmor         int `yaml:"base_armor"`
	PerLevelArmor     int `yaml:"per_level_armor"`
	BaseXPReward      int `yaml:"base_xp_reward"`
	PerLevelXPReward  int `yaml:"per_level_xp_reward"`
}

func (t TierSpec) at(base, perLevel, level int) int {
	if level < 1 {
		level = 1
	}
	return base + (level-1)*perLevel
}

// Resolve returns the concrete stats for a mob of the given level.
func (t TierSpec) Resolve(level int) (maxHP, minDamage, maxDamage, armor, xpReward int) {
	return t.at(t.BaseMaxHP, t.PerLevelMaxHP, level),
		t.at(t.BaseMinDamage, t.PerLevelMinDamage, level),
		t.at(t.BaseMaxDamage, t.PerLevelMaxDamage, level),
		t.at(t.BaseArmor, t.PerLevelArmor, level),
		t.at(t.BaseXPReward, t.PerLevelXPReward, level)
}

// DefaultTiers is the built-in mob tier table. Content can override it
// through Options.Tiers.
func DefaultTiers() map[string]TierSpec {
	return map[string]TierSpec{
		"standard": {
			BaseMaxHP: 10, PerLevelMaxHP: 5,
			BaseMinDamage: 1, PerLevelMinDamage: 1,
			BaseMaxDamage: 3, PerLevelMaxDamage: 1,
			BaseArmor: 0, PerLevelArmor: 1,
			BaseXPReward: 10, PerLevelXPReward: 5,
		},
		"elite": {
			BaseMaxHP: 25, PerLevelMaxHP: 10,
			BaseMinDamage: 2, PerLevelMinDamage: 2,
			BaseMaxDamage: 5, PerLevelMaxDamage: 2,
			BaseArmor: 1, PerLevelArmor: 1,
			BaseXPReward: 30, PerLevelXPReward: 10,
		},
		"boss": {
			BaseMaxHP: 80, PerLevelMaxHP: 20,
			BaseMinDamage: 4, PerLevelMinDamage: 2,
			BaseMaxDamage: 9, PerLevelMaxDamage: 3,
			BaseArmor: 2, PerLevelArmor: 2,
			BaseXPReward: 120, PerLevelXPReward: 30,
		},
	}
}

// Options controls world loading.
type Options struct {
	// ZoneFilter restricts loading to the named zones when non-empty.
	// Exits into excluded zones become remote exits instead of errors.
	ZoneFilter map[string]bool
	// Tiers overrides DefaultTiers when non-nil.
	Tiers map[string]TierSpec
}

// exitDoc accepts both the string form ("north: plaza") and the object
// form ("north: {to: other:gate, door: oak}").
type exitDoc struct {
	To   string `yaml:"to"`
	Door string `yaml:"door"`
}

func (e *exitDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.To = node.Value
		return nil
	}
	type plain exitDoc
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = exitDoc(p)
	return nil
}

type roomDoc struct {
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Outdoor     bool               `yaml:"outdoor"`
	Exits       map[string]exitDoc `yaml:"exits"`
}

type dropDoc struct {
	Item   string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
}

type goldDoc struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type mobDoc struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	Room           string    `yaml:"room"`
	Level          int       `yaml:"level"`
	Tier           string    `yaml:"tier"`
	MaxHP          *int      `yaml:"maxHp"`
	MinDamage      *int      `yaml:"minDamage"`
	MaxDamage      *int      `yaml:"maxDamage"`
	Armor          *int      `yaml:"armor"`
	XPReward       *int      `yaml:"xpReward"`
	Drops          []dropDoc `yaml:"drops"`
	RespawnSeconds int       `yaml:"respawnSeconds"`
	Gold           goldDoc   `yaml:"gold"`
	Dialogue       string    `yaml:"dialogue"`
	Behavior       string    `yaml:"behavior"`
	PatrolRoute    []string  `yaml:"patrolRoute"`
	Quests         []string  `yaml:"quests"`
}

type useDoc struct {
	HealHP  int `yaml:"healHp"`
	GrantXP int `yaml:"grantXp"`
}

type itemDoc struct {
	ID          string     `yaml:"id"`
	Keyword     string     `yaml:"keyword"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Slot        string     `yaml:"slot"`
	Damage      int        `yaml:"damage"`
	Armor       int        `yaml:"armor"`
	Bonuses     stat.Block `yaml:"bonuses"`
	Consumable  bool       `yaml:"consumable"`
	Charges     int        `yaml:"charges"`
	OnUse       *useDoc    `yaml:"onUse"`
	MatchByKey  bool       `yaml:"matchByKey"`
	Price       int        `yaml:"price"`
	Room        string     `yaml:"room"`
	Mob         string     `yaml:"mob"`
}

type choiceDoc struct {
	Text        string `yaml:"text"`
	Next        string `yaml:"next"`
	MinLevel    int    `yaml:"minLevel"`
	Class       string `yaml:"class"`
	AcceptQuest string `yaml:"acceptQuest"`
}

type nodeDoc struct {
	Text    string      `yaml:"text"`
	Choices []choiceDoc `yaml:"choices"`
}

type dialogueDoc struct {
	ID    string             `yaml:"id"`
	Start string             `yaml:"start"`
	Nodes map[string]nodeDoc `yaml:"nodes"`
}

type shopDoc struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Room  string   `yaml:"room"`
	Items []string `yaml:"items"`
}

type questDoc struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Giver         string `yaml:"giver"`
	Target        string `yaml:"target"`
	RequiredKills int    `yaml:"requiredKills"`
	XPReward      int    `yaml:"xpReward"`
	GoldReward    int    `yaml:"goldReward"`
	MinLevel      int    `yaml:"minLevel"`
}

// zoneDoc is one YAML zone document.
type zoneDoc struct {
	Zone            string             `yaml:"zone"`
	StartRoom       string             `yaml:"startRoom"`
	ClassStartRooms map[string]string  `yaml:"classStartRooms"`
	LifespanMinutes int                `yaml:"lifespanMinutes"`
	Rooms           map[string]roomDoc `yaml:"rooms"`
	Mobs            []mobDoc           `yaml:"mobs"`
	Items           []itemDoc          `yaml:"items"`
	Dialogues       []dialogueDoc      `yaml:"dialogues"`
	Shops           []shopDoc          `yaml:"shops"`
	Quests          []questDoc         `yaml:"quests"`
}

// stagedExit defers exit-target validation until every zone is merged.
type stagedExit struct {
	from      id.RoomID
	direction Direction
	to        id.RoomID
}

// LoadWorld merges an ordered list of YAML zone documents into one World.
//
// Precondition: Each document is a complete zone YAML document.
// Postcondition: Returns a fully validated World, or an error naming the
// first offending document and field. The returned World is never mutated
// by the loader afterwards.
func LoadWorld(docs [][]byte, opts Options) (*World, error) {
	tiers := opts.Tiers
	if tiers == nil {
		tiers = DefaultTiers()
	}

	w := &World{
		Rooms:           make(map[id.RoomID]*Room),
		ClassStartRooms: make(map[string]id.RoomID),
		ZoneLifespans:   make(map[string]time.Duration),
		Dialogues:       make(map[string]*DialogueTree),
	}
	var exits []stagedExit
	itemIDs := make(map[id.ItemID]bool)
	mobIDs := make(map[id.MobID]bool)
	lifespanSet := make(map[string]time.Duration)
	seenZones := make(map[string]bool)

	for docIndex, raw := range docs {
		var doc zoneDoc
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("zone document %d: %w", docIndex, err)
		}
		zone := strings.TrimSpace(doc.Zone)
		if zone == "" {
			return nil, fmt.Errorf("zone document %d: zone name is blank", docIndex)
		}
		if len(opts.ZoneFilter) > 0 && !opts.ZoneFilter[zone] {
			continue
		}
		if len(doc.Rooms) == 0 {
			return nil, fmt.Errorf("zone %q: no rooms", zone)
		}
		if !seenZones[zone] {
			seenZones[zone] = true
			w.Zones = append(w.Zones, zone)
		}

		if doc.LifespanMinutes < 0 {
			return nil, fmt.Errorf("zone %q: negative lifespanMinutes", zone)
		}
		if doc.LifespanMinutes > 0 {
			lifespan := time.Duration(doc.LifespanMinutes) * time.Minute
			if prev, ok := lifespanSet[zone]; ok && prev != lifespan {
				return nil, fmt.Errorf("zone %q: conflicting lifespans %s and %s", zone, prev, lifespan)
			}
			lifespanSet[zone] = lifespan
			w.ZoneLifespans[zone] = lifespan
		}

		if err := loadRooms(w, zone, doc.Rooms, &exits); err != nil {
			return nil, err
		}

		if doc.StartRoom != "" {
			start := id.QualifyRoomID(zone, doc.StartRoom)
			if _, ok := w.Rooms[start]; !ok {
				return nil, fmt.Errorf("zone %q: startRoom %q not defined in this zone", zone, start)
			}
			if w.StartRoom == "" {
				w.StartRoom = start
			}
		}
		for class, roomName := range doc.ClassStartRooms {
			start := id.QualifyRoomID(zone, roomName)
			if _, ok := w.Rooms[start]; !ok {
				return nil, fmt.Errorf("zone %q: classStartRooms[%s] %q not defined in this zone", zone, class, start)
			}
			w.ClassStartRooms[strings.ToLower(class)] = start
		}

		if err := loadMobs(w, zone, doc.Mobs, tiers, mobIDs); err != nil {
			return nil, err
		}
		if err := loadItems(w, zone, doc.Items, itemIDs); err != nil {
			return nil, err
		}
		if err := loadDialogues(w, zone, doc.Dialogues); err != nil {
			return nil, err
		}
		for _, sd := range doc.Shops {
			if sd.ID == "" {
				return nil, fmt.Errorf("zone %q: shop with blank id", zone)
			}
			shop := Shop{ID: sd.ID, Name: sd.Name, RoomID: id.QualifyRoomID(zone, sd.Room)}
			for _, it := range sd.Items {
				shop.ItemIDs = append(shop.ItemIDs, id.QualifyItemID(zone, it))
			}
			w.Shops = append(w.Shops, shop)
		}
		for _, qd := range doc.Quests {
			if qd.ID == "" {
				return nil, fmt.Errorf("zone %q: quest with blank id", zone)
			}
			if qd.RequiredKills <= 0 {
				return nil, fmt.Errorf("zone %q: quest %q: requiredKills must be positive", zone, qd.ID)
			}
			w.Quests = append(w.Quests, Quest{
				ID:            qd.ID,
				Name:          qd.Name,
				Description:   qd.Description,
				GiverMobID:    id.QualifyMobID(zone, qd.Giver),
				TargetMobID:   id.QualifyMobID(zone, qd.Target),
				RequiredKills: qd.RequiredKills,
				XPReward:      qd.XPReward,
				GoldReward:    qd.GoldReward,
				MinLevel:      qd.MinLevel,
			})
		}
	}

	if len(w.Rooms) == 0 {
		return nil, fmt.Errorf("no rooms loaded; check zone filter")
	}
	if w.StartRoom == "" {
		return nil, fmt.Errorf("no zone declares a startRoom")
	}

	// Exit targets resolve only after every zone has contributed its rooms.
	for _, ex := range exits {
		src := w.Rooms[ex.from]
		if _, ok := w.Rooms[ex.to]; ok {
			src.Exits[ex.direction] = ex.to
			continue
		}
		if len(opts.ZoneFilter) > 0 && !opts.ZoneFilter[ex.to.Zone()] {
			src.RemoteExits[ex.direction] = true
			continue
		}
		return nil, fmt.Errorf("room %q: exit %s points at unknown room %q", ex.from, ex.direction, ex.to)
	}

	if err := validateReferences(w, itemIDs, mobIDs); err != nil {
		return nil, err
	}
	return w, nil
}

func loadRooms(w *World, zone string, rooms map[string]roomDoc, exits *[]stagedExit) error {
	// Deterministic ordering keeps error messages stable across runs.
	names := make([]string, 0, len(rooms))
	for name := range rooms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rd := rooms[name]
		roomID, err := id.NewRoomID(string(id.QualifyRoomID(zone, name)))
		if err != nil {
			return fmt.Errorf("zone %q: %w", zone, err)
		}
		if _, dup := w.Rooms[roomID]; dup {
			return fmt.Errorf("duplicate room id %q", roomID)
		}
		room := &Room{
			ID:          roomID,
			Title:       rd.Title,
			Description: rd.Description,
			Outdoor:     rd.Outdoor,
			Exits:       make(map[Direction]id.RoomID),
			RemoteExits: make(map[Direction]bool),
		}
		for dirName, ex := range rd.Exits {
			dir, ok := ParseDirection(dirName)
			if !ok {
				return fmt.Errorf("room %q: unknown exit direction %q", roomID, dirName)
			}
			if ex.To == "" {
				return fmt.Errorf("room %q: exit %s has no destination", roomID, dir)
			}
			*exits = append(*exits, stagedExit{
				from:      roomID,
				direction: dir,
				to:        id.QualifyRoomID(zone, ex.To),
			})
		}
		w.Rooms[roomID] = room
	}
	return nil
}

func loadMobs(w *World, zone string, mobs []mobDoc, tiers map[string]TierSpec, mobIDs map[id.MobID]bool) error {
	for _, md := range mobs {
		if md.ID == "" {
			return fmt.Errorf("zone %q: mob with blank id", zone)
		}
		mobID, err := id.NewMobID(string(id.QualifyMobID(zone, md.ID)))
		if err != nil {
			return fmt.Errorf("zone %q: %w", zone, err)
		}
		if mobIDs[mobID] {
			return fmt.Errorf("duplicate mob id %q", mobID)
		}
		mobIDs[mobID] = true
		if md.Name == "" {
			return fmt.Errorf("mob %q: blank name", mobID)
		}

		tierName := md.Tier
		if tierName == "" {
			tierName = "standard"
		}
		tier, ok := tiers[tierName]
		if !ok {
			return fmt.Errorf("mob %q: unknown tier %q", mobID, tierName)
		}
		maxHP, minDmg, maxDmg, armor, xp := tier.Resolve(md.Level)
		if md.MaxHP != nil {
			maxHP = *md.MaxHP
		}
		if md.MinDamage != nil {
			minDmg = *md.MinDamage
		}
		if md.MaxDamage != nil {
			maxDmg = *md.MaxDamage
		}
		if md.Armor != nil {
			armor = *md.Armor
		}
		if md.XPReward != nil {
			xp = *md.XPReward
		}
		if maxHP <= 0 {
			return fmt.Errorf("mob %q: maxHp must be positive", mobID)
		}
		if minDmg < 0 || maxDmg < minDmg {
			return fmt.Errorf("mob %q: damage range [%d, %d] is invalid", mobID, minDmg, maxDmg)
		}
		if armor < 0 || xp < 0 {
			return fmt.Errorf("mob %q: negative armor or xpReward", mobID)
		}
		if md.RespawnSeconds < 0 {
			return fmt.Errorf("mob %q: negative respawnSeconds", mobID)
		}
		if md.Gold.Min < 0 || md.Gold.Max < md.Gold.Min {
			return fmt.Errorf("mob %q: gold range [%d, %d] is invalid", mobID, md.Gold.Min, md.Gold.Max)
		}

		spawn := MobSpawn{
			ID:             mobID,
			Name:           md.Name,
			RoomID:         id.QualifyRoomID(zone, md.Room),
			MaxHP:          maxHP,
			MinDamage:      minDmg,
			MaxDamage:      maxDmg,
			Armor:          armor,
			XPReward:       xp,
			RespawnSeconds: md.RespawnSeconds,
			GoldMin:        md.Gold.Min,
			GoldMax:        md.Gold.Max,
			DialogueID:     md.Dialogue,
			BehaviorTree:   md.Behavior,
			QuestIDs:       md.Quests,
		}
		for _, wp := range md.PatrolRoute {
			if wp == "" {
				return fmt.Errorf("mob %q: blank patrol waypoint", mobID)
			}
			spawn.PatrolRoute = append(spawn.PatrolRoute, id.QualifyRoomID(zone, wp))
		}
		for _, dd := range md.Drops {
			if dd.Chance < 0 || dd.Chance > 1 {
				return fmt.Errorf("mob %q: drop chance %v out of [0, 1]", mobID, dd.Chance)
			}
			spawn.Drops = append(spawn.Drops, DropSpec{
				ItemID: id.QualifyItemID(zone, dd.Item),
				Chance: dd.Chance,
			})
		}
		w.MobSpawns = append(w.MobSpawns, spawn)
	}
	return nil
}

func loadItems(w *World, zone string, items []itemDoc, itemIDs map[id.ItemID]bool) error {
	for _, itd := range items {
		if itd.ID == "" {
			return fmt.Errorf("zone %q: item with blank id", zone)
		}
		itemID, err := id.NewItemID(string(id.QualifyItemID(zone, itd.ID)))
		if err != nil {
			return fmt.Errorf("zone %q: %w", zone, err)
		}
		if itemIDs[itemID] {
			return fmt.Errorf("duplicate item id %q", itemID)
		}
		itemIDs[itemID] = true
		if itd.Keyword == "" || itd.Name == "" {
			return fmt.Errorf("item %q: keyword and name are required", itemID)
		}
		slot, err := item.ParseSlot(itd.Slot)
		if err != nil {
			return fmt.Errorf("item %q: %w", itemID, err)
		}
		if itd.Damage < 0 || itd.Armor < 0 {
			return fmt.Errorf("item %q: negative damage or armor", itemID)
		}
		if !itd.Bonuses.NonNegative() {
			return fmt.Errorf("item %q: negative stat bonus", itemID)
		}
		if itd.Charges < 0 {
			return fmt.Errorf("item %q: negative charges", itemID)
		}
		if itd.Price < 0 {
			return fmt.Errorf("item %q: negative price", itemID)
		}
		if itd.Room != "" && itd.Mob != "" {
			return fmt.Errorf("item %q: room and mob placements are mutually exclusive", itemID)
		}

		spawn := ItemSpawn{
			Instance: item.Instance{
				ID: itemID,
				Item: item.Item{
					Keyword:     itd.Keyword,
					DisplayName: itd.Name,
					Description: itd.Description,
					Slot:        slot,
					Damage:      itd.Damage,
					Armor:       itd.Armor,
					Bonuses:     itd.Bonuses,
					Consumable:  itd.Consumable,
					Charges:     itd.Charges,
					MatchByKey:  itd.MatchByKey,
					BasePrice:   itd.Price,
				},
			},
		}
		if itd.OnUse != nil {
			if itd.OnUse.HealHP < 0 || itd.OnUse.GrantXP < 0 {
				return fmt.Errorf("item %q: negative onUse values", itemID)
			}
			spawn.Instance.Item.OnUse = &item.UseEffect{
				HealHP:  itd.OnUse.HealHP,
				GrantXP: itd.OnUse.GrantXP,
			}
		}
		if itd.Room != "" {
			spawn.RoomID = id.QualifyRoomID(zone, itd.Room)
		}
		if itd.Mob != "" {
			spawn.MobID = id.QualifyMobID(zone, itd.Mob)
		}
		w.ItemSpawns = append(w.ItemSpawns, spawn)
	}
	return nil
}

func loadDialogues(w *World, zone string, dialogues []dialogueDoc) error {
	for _, dd := range dialogues {
		if dd.ID == "" {
			return fmt.Errorf("zone %q: dialogue with blank id", zone)
		}
		if _, dup := w.Dialogues[dd.ID]; dup {
			return fmt.Errorf("duplicate dialogue id %q", dd.ID)
		}
		if len(dd.Nodes) == 0 {
			return fmt.Errorf("dialogue %q: no nodes", dd.ID)
		}
		start := dd.Start
		if start == "" {
			start = "start"
		}
		if _, ok := dd.Nodes[start]; !ok {
			return fmt.Errorf("dialogue %q: start node %q not defined", dd.ID, start)
		}
		tree := &DialogueTree{ID: dd.ID, Start: start, Nodes: make(map[string]*DialogueNode)}
		for name, nd := range dd.Nodes {
			node := &DialogueNode{Text: nd.Text}
			for _, cd := range nd.Choices {
				if cd.Next != "" {
					if _, ok := dd.Nodes[cd.Next]; !ok {
						return fmt.Errorf("dialogue %q: node %q choice points at unknown node %q", dd.ID, name, cd.Next)
					}
				}
				node.Choices = append(node.Choices, DialogueChoice{
					Text:        cd.Text,
					Next:        cd.Next,
					MinLevel:    cd.MinLevel,
					Class:       strings.ToLower(cd.Class),
					AcceptQuest: cd.AcceptQuest,
				})
			}
			tree.Nodes[name] = node
		}
		w.Dialogues[dd.ID] = tree
	}
	return nil
}

// validateReferences runs the post-merge checks: every placement room,
// drop item, dialogue, shop item, and quest mob must exist.
func validateReferences(w *World, itemIDs map[id.ItemID]bool, mobIDs map[id.MobID]bool) error {
	for _, sp := range w.MobSpawns {
		if _, ok := w.Rooms[sp.RoomID]; !ok {
			return fmt.Errorf("mob %q: room %q does not exist", sp.ID, sp.RoomID)
		}
		for _, dd := range sp.Drops {
			if !itemIDs[dd.ItemID] {
				return fmt.Errorf("mob %q: drop item %q does not exist", sp.ID, dd.ItemID)
			}
		}
		if sp.DialogueID != "" {
			if _, ok := w.Dialogues[sp.DialogueID]; !ok {
				return fmt.Errorf("mob %q: dialogue %q does not exist", sp.ID, sp.DialogueID)
			}
		}
		for _, questID := range sp.QuestIDs {
			if _, ok := w.QuestByID(questID); !ok {
				return fmt.Errorf("mob %q: quest %q does not exist", sp.ID, questID)
			}
		}
		for _, wp := range sp.PatrolRoute {
			if _, ok := w.Rooms[wp]; !ok {
				return fmt.Errorf("mob %q: patrol waypoint %q does not exist", sp.ID, wp)
			}
		}
	}
	for _, sp := range w.ItemSpawns {
		if sp.RoomID != "" {
			if _, ok := w.Rooms[sp.RoomID]; !ok {
				return fmt.Errorf("item %q: room %q does not exist", sp.Instance.ID, sp.RoomID)
			}
		}
		if sp.MobID != "" && !mobIDs[sp.MobID] {
			return fmt.Errorf("item %q: mob %q does not exist", sp.Instance.ID, sp.MobID)
		}
	}
	for _, shop := range w.Shops {
		if _, ok := w.Rooms[shop.RoomID]; !ok {
			return fmt.Errorf("shop %q: room %q does not exist", shop.ID, shop.RoomID)
		}
		for _, itemID := range shop.ItemIDs {
			if !itemIDs[itemID] {
				return fmt.Errorf("shop %q: item %q does not exist", shop.ID, itemID)
			}
		}
	}
	for _, q := range w.Quests {
		if !mobIDs[q.GiverMobID] {
			return fmt.Errorf("quest %q: giver mob %q does not exist", q.ID, q.GiverMobID)
		}
		if !mobIDs[q.TargetMobID] {
			return fmt.Errorf("quest %q: target mob %q does not exist", q.ID, q.TargetMobID)
		}
	}
	return nil
}

// LoadWorldFromDir loads every .yaml/.yml file under dir, sorted by path.
//
// Postcondition: Returns the merged World or the first load error.
func LoadWorldFromDir(dir string, opts Options) (*World, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan world dir %q: %w", dir, err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no zone documents under %q", dir)
	}

	docs := make([][]byte, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read zone document %q: %w", path, err)
		}
		docs = append(docs, raw)
	}
	world, err := LoadWorld(docs, opts)
	if err != nil {
		return nil, fmt.Errorf("load world from %q: %w", dir, err)
	}
	return world, nil
}
