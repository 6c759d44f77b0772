// Package effect implements status effects: timed DOT/HOT ticks, stat
// buffs and debuffs, stuns, roots, and damage shields.
package effect

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ambonmud/server/internal/game/stat"
)

// Type classifies what a status effect does.
type Type string

// Effect types.
const (
	TypeDOT       Type = "DOT"
	TypeHOT       Type = "HOT"
	TypeStatBuff  Type = "STAT_BUFF"
	TypeStatDebuf Type = "STAT_DEBUFF"
	TypeStun      Type = "STUN"
	TypeRoot      Type = "ROOT"
	TypeShield    Type = "SHIELD"
)

// StackBehavior decides what reapplying an active effect does.
type StackBehavior string

// Stack behaviors.
const (
	// StackRefresh extends the active instance's expiry.
	StackRefresh StackBehavior = "REFRESH"
	// StackStack adds instances up to MaxStacks, then refreshes the oldest.
	StackStack StackBehavior = "STACK"
	// StackNone rejects reapplication while active.
	StackNone StackBehavior = "NONE"
)

// Definition is one status effect as declared in content.
type Definition struct {
	ID             string        `yaml:"id"`
	DisplayName    string        `yaml:"displayName"`
	Type           Type          `yaml:"type"`
	DurationMs     int           `yaml:"durationMs"`
	TickIntervalMs int           `yaml:"tickIntervalMs"`
	TickMin        int           `yaml:"tickMin"`
	TickMax        int           `yaml:"tickMax"`
	ShieldAmount   int           `yaml:"shieldAmount"`
	StatMods       stat.Block    `yaml:"statMods"`
	StackBehavior  StackBehavior `yaml:"stackBehavior"`
	MaxStacks      int           `yaml:"maxStacks"`
}

// Duration returns the effect lifetime.
func (d *Definition) Duration() time.Duration {
	return time.Duration(d.DurationMs) * time.Millisecond
}

// TickInterval returns the DOT/HOT period, or 0 for non-ticking effects.
func (d *Definition) TickInterval() time.Duration {
	return time.Duration(d.TickIntervalMs) * time.Millisecond
}

func (d *Definition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("status effect with blank id")
	}
	switch d.Type {
	case TypeDOT, TypeHOT, TypeStatBuff, TypeStatDebuf, TypeStun, TypeRoot, TypeShield:
	default:
		return fmt.Errorf("status effect %q: unknown type %q", d.ID, d.Type)
	}
	if d.DurationMs <= 0 {
		return fmt.Errorf("status effect %q: durationMs must be positive", d.ID)
	}
	switch d.Type {
	case TypeDOT, TypeHOT:
		if d.TickIntervalMs <= 0 {
			return fmt.Errorf("status effect %q: %s needs a positive tickIntervalMs", d.ID, d.Type)
		}
		if d.TickMin < 0 || d.TickMax < d.TickMin {
			return fmt.Errorf("status effect %q: tick range [%d, %d] is invalid", d.ID, d.TickMin, d.TickMax)
		}
	case TypeShield:
		if d.ShieldAmount <= 0 {
			return fmt.Errorf("status effect %q: shieldAmount must be positive", d.ID)
		}
	}
	switch d.StackBehavior {
	case "":
		d.StackBehavior = StackRefresh
	case StackRefresh, StackNone:
	case StackStack:
		if d.MaxStacks < 1 {
			return fmt.Errorf("status effect %q: STACK needs maxStacks >= 1", d.ID)
		}
	default:
		return fmt.Errorf("status effect %q: unknown stackBehavior %q", d.ID, d.StackBehavior)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.ID
	}
	return nil
}

type defsDoc struct {
	Effects []*Definition `yaml:"effects"`
}

// LoadDefinitions parses a status-effect YAML document.
//
// Postcondition: Returns definitions keyed by id, or an error naming the
// first invalid entry.
func LoadDefinitions(raw []byte) (map[string]*Definition, error) {
	var doc defsDoc
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse status effects: %w", err)
	}
	out := make(map[string]*Definition, len(doc.Effects))
	for _, d := range doc.Effects {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := out[d.ID]; dup {
			return nil, fmt.Errorf("duplicate status effect id %q", d.ID)
		}
		out[d.ID] = d
	}
	return out, nil
}

// LoadDefinitionsFile reads and parses a status-effect YAML file.
func LoadDefinitionsFile(path string) (map[string]*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status effects %q: %w", path, err)
	}
	return LoadDefinitions(raw)
}
