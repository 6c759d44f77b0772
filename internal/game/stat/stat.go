// Package stat provides the six-attribute stat block shared by players,
// items, and status-effect modifiers.
package stat

// Block holds the six core attributes.
type Block struct {
	Strength     int `yaml:"strength"`
	Dexterity    int `yaml:"dexterity"`
	Constitution int `yaml:"constitution"`
	Intelligence int `yaml:"intelligence"`
	Wisdom       int `yaml:"wisdom"`
	Charisma     int `yaml:"charisma"`
}

// Add returns the componentwise sum of b and o.
func (b Block) Add(o Block) Block {
	return Block{
		Strength:     b.Strength + o.Strength,
		Dexterity:    b.Dexterity + o.Dexterity,
		Constitution: b.Constitution + o.Constitution,
		Intelligence: b.Intelligence + o.Intelligence,
		Wisdom:       b.Wisdom + o.Wisdom,
		Charisma:     b.Charisma + o.Charisma,
	}
}

// IsZero reports whether every attribute is zero.
func (b Block) IsZero() bool {
	return b == Block{}
}

// NonNegative reports whether every attribute is >= 0. Content validation
// uses this for item bonuses.
func (b Block) NonNegative() bool {
	return b.Strength >= 0 && b.Dexterity >= 0 && b.Constitution >= 0 &&
		b.Intelligence >= 0 && b.Wisdom >= 0 && b.Charisma >= 0
}
