// Package progression defines player classes, races, the XP curve, and
// the derived vitals formulas.
package progression

import (
	"strings"

	"github.com/ambonmud/server/internal/game/stat"
)

// Class is a player class.
type Class struct {
	Name string
	// PrimaryStat gains a point on every level-up.
	PrimaryStat string
	BaseHP      int
	HPPerLevel  int
	BaseMana    int
	ManaPerLev  int
	Bonuses     stat.Block
}

// Race is a player race.
type Race struct {
	Name    string
	Bonuses stat.Block
}

// The playable classes.
var (
	Warrior = Class{Name: "Warrior", PrimaryStat: "strength", BaseHP: 30, HPPerLevel: 8, BaseMana: 10, ManaPerLev: 2, Bonuses: stat.Block{Strength: 2, Constitution: 1}}
	Mage    = Class{Name: "Mage", PrimaryStat: "intelligence", BaseHP: 18, HPPerLevel: 4, BaseMana: 30, ManaPerLev: 8, Bonuses: stat.Block{Intelligence: 2, Wisdom: 1}}
	Cleric  = Class{Name: "Cleric", PrimaryStat: "wisdom", BaseHP: 22, HPPerLevel: 6, BaseMana: 24, ManaPerLev: 6, Bonuses: stat.Block{Wisdom: 2, Charisma: 1}}
	Rogue   = Class{Name: "Rogue", PrimaryStat: "dexterity", BaseHP: 24, HPPerLevel: 6, BaseMana: 14, ManaPerLev: 3, Bonuses: stat.Block{Dexterity: 2, Charisma: 1}}
)

// Classes lists the playable classes in prompt order.
var Classes = []Class{Warrior, Mage, Cleric, Rogue}

// The playable races.
var (
	Human    = Race{Name: "Human", Bonuses: stat.Block{Charisma: 1, Constitution: 1}}
	Elf      = Race{Name: "Elf", Bonuses: stat.Block{Intelligence: 1, Dexterity: 1}}
	Dwarf    = Race{Name: "Dwarf", Bonuses: stat.Block{Constitution: 2}}
	Halfling = Race{Name: "Halfling", Bonuses: stat.Block{Dexterity: 2}}
)

// Races lists the playable races in prompt order.
var Races = []Race{Human, Elf, Dwarf, Halfling}

// ParseClass resolves a class by full name or first letter,
// case-insensitively.
//
// Postcondition: Returns (class, true) on a match.
func ParseClass(input string) (Class, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return Class{}, false
	}
	for _, c := range Classes {
		name := strings.ToLower(c.Name)
		if in == name || in == name[:1] {
			return c, true
		}
	}
	return Class{}, false
}

// ParseRace resolves a race by full name or first letter,
// case-insensitively.
func ParseRace(input string) (Race, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return Race{}, false
	}
	for _, r := range Races {
		name := strings.ToLower(r.Name)
		if in == name || in == name[:1] {
			return r, true
		}
	}
	return Race{}, false
}

// BaseStats returns the starting stat block for a class/race pair. Every
// stat starts at 10 before class and race bonuses.
func BaseStats(class Class, race Race) stat.Block {
	base := stat.Block{
		Strength: 10, Dexterity: 10, Constitution: 10,
		Intelligence: 10, Wisdom: 10, Charisma: 10,
	}
	return base.Add(class.Bonuses).Add(race.Bonuses)
}

// MaxLevel caps progression.
const MaxLevel = 50

// XPForLevel returns the total XP needed to hold the given level. Level 1
// needs 0; each subsequent level costs 100 more than the one before, so
// the threshold for level n is 100 * n * (n-1) / 2.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return 100 * level * (level - 1) / 2
}

// LevelForXP returns the level a total XP amount earns, in [1, MaxLevel].
func LevelForXP(xpTotal int) int {
	level := 1
	for level < MaxLevel && xpTotal >= XPForLevel(level+1) {
		level++
	}
	return level
}

// MaxHP derives maximum hit points.
//
// Postcondition: The result is positive and depends only on the inputs.
func MaxHP(class Class, level, constitution, baseMaxHP int) int {
	if level < 1 {
		level = 1
	}
	hp := baseMaxHP + class.BaseHP + (level-1)*class.HPPerLevel + 2*constitution
	if hp < 1 {
		hp = 1
	}
	return hp
}

// MaxMana derives maximum mana.
func MaxMana(class Class, level, intelligence, wisdom int) int {
	if level < 1 {
		level = 1
	}
	mana := class.BaseMana + (level-1)*class.ManaPerLev + 2*intelligence + wisdom
	if mana < 0 {
		mana = 0
	}
	return mana
}

// LevelUpReward is what a single level-up grants.
type LevelUpReward struct {
	NewLevel int
	// StatPoint names the stat that gained a point.
	StatPoint string
}

// ApplyLevelUps raises level to match xpTotal and returns one reward per
// level gained.
//
// Postcondition: Returns nil when no level was gained.
func ApplyLevelUps(currentLevel, xpTotal int, class Class) []LevelUpReward {
	target := LevelForXP(xpTotal)
	if target <= currentLevel {
		return nil
	}
	rewards := make([]LevelUpReward, 0, target-currentLevel)
	for lvl := currentLevel + 1; lvl <= target; lvl++ {
		rewards = append(rewards, LevelUpReward{NewLevel: lvl, StatPoint: class.PrimaryStat})
	}
	return rewards
}
