// Package ability implements learned abilities: definitions from content,
// per-session spellbooks, keyword resolution, and mana/cooldown gating.
package ability

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EffectKind is what a cast does on success.
type EffectKind string

// Effect kinds.
const (
	// DirectDamage bypasses armor.
	DirectDamage EffectKind = "DIRECT_DAMAGE"
	// DirectHeal clamps to the caster's max HP.
	DirectHeal EffectKind = "DIRECT_HEAL"
	// ApplyStatus applies a status effect to the target.
	ApplyStatus EffectKind = "APPLY_STATUS"
	// AreaDamage hits every mob engaged with the caster. Requires combat.
	AreaDamage EffectKind = "AREA_DAMAGE"
	// Taunt forces the caster's combat mob to keep attacking the caster.
	// Requires combat.
	Taunt EffectKind = "TAUNT"
)

// TargetMode is who a cast lands on.
type TargetMode string

// Target modes.
const (
	TargetEnemy TargetMode = "ENEMY"
	TargetSelf  TargetMode = "SELF"
)

// Definition is one ability as declared in content.
type Definition struct {
	ID            string `yaml:"id"`
	DisplayName   string `yaml:"displayName"`
	ManaCost      int    `yaml:"manaCost"`
	CooldownMs    int    `yaml:"cooldownMs"`
	LevelRequired int    `yaml:"levelRequired"`
	// Classes restricts learning; empty means every class learns it.
	Classes []string   `yaml:"classes"`
	Target  TargetMode `yaml:"target"`
	Effect  EffectKind `yaml:"effect"`
	// Amount is the damage or heal magnitude.
	Amount int `yaml:"amount"`
	// StatusID names the status effect for APPLY_STATUS.
	StatusID string `yaml:"statusId"`
}

// Cooldown returns the time between casts.
func (d *Definition) Cooldown() time.Duration {
	return time.Duration(d.CooldownMs) * time.Millisecond
}

// ForClass reports whether the class can learn this ability.
func (d *Definition) ForClass(class string) bool {
	if len(d.Classes) == 0 {
		return true
	}
	for _, c := range d.Classes {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

func (d *Definition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("ability with blank id")
	}
	switch d.Target {
	case TargetEnemy, TargetSelf:
	default:
		return fmt.Errorf("ability %q: unknown target %q", d.ID, d.Target)
	}
	switch d.Effect {
	case DirectDamage, AreaDamage:
		if d.Amount <= 0 {
			return fmt.Errorf("ability %q: %s needs a positive amount", d.ID, d.Effect)
		}
	case DirectHeal:
		if d.Amount <= 0 {
			return fmt.Errorf("ability %q: DIRECT_HEAL needs a positive amount", d.ID)
		}
	case ApplyStatus:
		if d.StatusID == "" {
			return fmt.Errorf("ability %q: APPLY_STATUS needs a statusId", d.ID)
		}
	case Taunt:
	default:
		return fmt.Errorf("ability %q: unknown effect %q", d.ID, d.Effect)
	}
	if d.ManaCost < 0 || d.CooldownMs < 0 {
		return fmt.Errorf("ability %q: negative manaCost or cooldownMs", d.ID)
	}
	if d.LevelRequired < 1 {
		d.LevelRequired = 1
	}
	if d.DisplayName == "" {
		d.DisplayName = d.ID
	}
	return nil
}

type defsDoc struct {
	Abilities []*Definition `yaml:"abilities"`
}

// LoadDefinitions parses an ability YAML document, preserving order.
func LoadDefinitions(raw []byte) ([]*Definition, error) {
	var doc defsDoc
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse abilities: %w", err)
	}
	seen := make(map[string]bool, len(doc.Abilities))
	for _, d := range doc.Abilities {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate ability id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return doc.Abilities, nil
}

// LoadDefinitionsFile reads and parses an ability YAML file.
func LoadDefinitionsFile(path string) ([]*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abilities %q: %w", path, err)
	}
	return LoadDefinitions(raw)
}
