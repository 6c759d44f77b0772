package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseClass(t *testing.T) {
	c, ok := ParseClass("W")
	require.True(t, ok)
	assert.Equal(t, "Warrior", c.Name)

	c, ok = ParseClass("mage")
	require.True(t, ok)
	assert.Equal(t, "Mage", c.Name)

	_, ok = ParseClass("paladin")
	assert.False(t, ok)
	_, ok = ParseClass("")
	assert.False(t, ok)
}

func TestParseRace(t *testing.T) {
	r, ok := ParseRace("H")
	require.True(t, ok)
	assert.Equal(t, "Human", r.Name)

	r, ok = ParseRace("DWARF")
	require.True(t, ok)
	assert.Equal(t, "Dwarf", r.Name)

	_, ok = ParseRace("orc")
	assert.False(t, ok)
}

func TestBaseStats(t *testing.T) {
	stats := BaseStats(Warrior, Human)
	assert.Equal(t, 12, stats.Strength)
	assert.Equal(t, 12, stats.Constitution)
	assert.Equal(t, 11, stats.Charisma)
	assert.Equal(t, 10, stats.Intelligence)
}

func TestXPCurve(t *testing.T) {
	assert.Equal(t, 0, XPForLevel(1))
	assert.Equal(t, 100, XPForLevel(2))
	assert.Equal(t, 300, XPForLevel(3))
	assert.Equal(t, 600, XPForLevel(4))

	assert.Equal(t, 1, LevelForXP(0))
	assert.Equal(t, 1, LevelForXP(99))
	assert.Equal(t, 2, LevelForXP(100))
	assert.Equal(t, 3, LevelForXP(599))
	assert.Equal(t, MaxLevel, LevelForXP(1<<30))
}

func TestXPCurve_Monotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xp := rapid.IntRange(0, 1_000_000).Draw(t, "xp")
		more := rapid.IntRange(0, 100_000).Draw(t, "more")
		a := LevelForXP(xp)
		b := LevelForXP(xp + more)
		assert.GreaterOrEqual(t, b, a)
		// A level's threshold never exceeds the xp that earned it.
		assert.LessOrEqual(t, XPForLevel(a), xp)
	})
}

func TestMaxHP(t *testing.T) {
	// 0 base + 30 class + 2 levels * 8 + 2 * 12 con.
	assert.Equal(t, 70, MaxHP(Warrior, 3, 12, 0))
	assert.Equal(t, MaxHP(Warrior, 1, 12, 0), MaxHP(Warrior, 0, 12, 0))
	assert.Positive(t, MaxHP(Mage, 1, 0, -100))
}

func TestMaxMana(t *testing.T) {
	// 30 base + 2 levels * 8 + 2 * 13 int + 11 wis.
	assert.Equal(t, 83, MaxMana(Mage, 3, 13, 11))
	assert.GreaterOrEqual(t, MaxMana(Warrior, 1, 0, 0), 0)
}

func TestApplyLevelUps(t *testing.T) {
	assert.Nil(t, ApplyLevelUps(1, 99, Warrior))

	rewards := ApplyLevelUps(1, 300, Warrior)
	require.Len(t, rewards, 2)
	assert.Equal(t, 2, rewards[0].NewLevel)
	assert.Equal(t, 3, rewards[1].NewLevel)
	assert.Equal(t, "strength", rewards[0].StatPoint)

	rewards = ApplyLevelUps(2, 300, Mage)
	require.Len(t, rewards, 1)
	assert.Equal(t, "intelligence", rewards[0].StatPoint)
}
