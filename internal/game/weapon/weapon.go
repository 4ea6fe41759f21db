// Package weapon provides the immutable weapon catalog: definitions, upgrade
// tables, and the YAML loader that builds them at content-load time.
package weapon

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DamageType is the closed set of damage kinds a weapon can deal.
type DamageType string

const (
	DamageViral    DamageType = "viral"
	DamageToxic    DamageType = "toxic"
	DamagePhysical DamageType = "physical"
)

// Valid reports whether t is one of the known damage types.
func (t DamageType) Valid() bool {
	switch t {
	case DamageViral, DamageToxic, DamagePhysical:
		return true
	}
	return false
}

// Tier is the rarity band of a weapon.
type Tier string

const (
	TierCommon Tier = "common"
	TierRare   Tier = "rare"
	TierEpic   Tier = "epic"
)

// Effects describes additional per-step behaviour. The zero value means no effect.
type Effects struct {
	ProjectileCount int     `yaml:"projectile_count"`
	AreaRadius      float64 `yaml:"area_radius"`
	Penetration     bool    `yaml:"penetration"`
}

// UpgradeStep is one row of a weapon's upgrade table. Omitted fields default to zero.
type UpgradeStep struct {
	// Level is optional; when set it must match the step's position (index + 2).
	Level             int     `yaml:"level"`
	DamageBonus       float64 `yaml:"damage_bonus"`
	CooldownReduction float64 `yaml:"cooldown_reduction"`
	Effects           Effects `yaml:"additional_effects"`
}

// MasteryBonus is the mechanical part of a mastery effect.
type MasteryBonus struct {
	// DamageMultiplier scales pre-resistance damage at max level; 0 means no scaling.
	DamageMultiplier      float64 `yaml:"damage_multiplier"`
	AdditionalProjectiles int     `yaml:"additional_projectiles"`
	SpecialBehavior       string  `yaml:"special_behavior"`
}

// Mastery is applied once a weapon reaches its maximum level.
type Mastery struct {
	VisualEffect string       `yaml:"visual_effect"`
	Bonus        MasteryBonus `yaml:"mechanical_bonus"`
}

// Def is the static definition of a weapon loaded from YAML.
// A Def is never mutated after loading.
type Def struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Tier            Tier          `yaml:"tier"`
	BaseDamage      float64       `yaml:"base_damage"`
	DamageType      DamageType    `yaml:"damage_type"`
	Cooldown        float64       `yaml:"cooldown"` // simulation milliseconds
	Range           float64       `yaml:"range"`
	ProjectileSpeed float64       `yaml:"projectile_speed"`
	Upgrades        []UpgradeStep `yaml:"upgrades"`
	Mastery         *Mastery      `yaml:"mastery"`
}

// MaxLevel returns the highest reachable level: one baseline level plus one per upgrade step.
//
// Postcondition: Returns len(Upgrades) + 1.
func (d *Def) MaxLevel() int {
	return len(d.Upgrades) + 1
}

// StepAt returns the upgrade step applied at level. Level 1 is the baseline and
// yields the zero step, as does any level outside [2, MaxLevel].
//
// Postcondition: For 2 <= level <= MaxLevel returns Upgrades[level-2].
func (d *Def) StepAt(level int) UpgradeStep {
	if level < 2 || level > d.MaxLevel() {
		return UpgradeStep{}
	}
	return d.Upgrades[level-2]
}

// MasteryMultiplier returns the damage multiplier granted at level.
//
// Postcondition: Returns 1 unless level == MaxLevel and a positive multiplier is configured.
func (d *Def) MasteryMultiplier(level int) float64 {
	if d.Mastery == nil || level != d.MaxLevel() || d.Mastery.Bonus.DamageMultiplier <= 0 {
		return 1
	}
	return d.Mastery.Bonus.DamageMultiplier
}

// finite reports whether f is neither NaN nor an infinity.
func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Validate checks that the Def satisfies its invariants.
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if d.BaseDamage < 0 || !finite(d.BaseDamage) {
		errs = append(errs, fmt.Errorf("BaseDamage must be >= 0, got %g", d.BaseDamage))
	}
	if !d.DamageType.Valid() {
		errs = append(errs, fmt.Errorf("DamageType must be one of [viral, toxic, physical], got %q", d.DamageType))
	}
	if d.Cooldown <= 0 || !finite(d.Cooldown) {
		errs = append(errs, fmt.Errorf("Cooldown must be > 0, got %g", d.Cooldown))
	}
	if d.Range < 0 || !finite(d.Range) {
		errs = append(errs, fmt.Errorf("Range must be >= 0, got %g", d.Range))
	}
	switch d.Tier {
	case "", TierCommon, TierRare, TierEpic:
	default:
		errs = append(errs, fmt.Errorf("Tier must be one of [common, rare, epic], got %q", d.Tier))
	}
	for i, s := range d.Upgrades {
		level := i + 2
		if s.Level != 0 && s.Level != level {
			errs = append(errs, fmt.Errorf("upgrade %d declares level %d, expected %d", i, s.Level, level))
		}
		if s.DamageBonus < 0 || !finite(s.DamageBonus) {
			errs = append(errs, fmt.Errorf("level %d DamageBonus must be >= 0", level))
		}
		if s.CooldownReduction < 0 || !finite(s.CooldownReduction) {
			errs = append(errs, fmt.Errorf("level %d CooldownReduction must be >= 0", level))
		}
		if !(d.Cooldown-s.CooldownReduction > 0) {
			errs = append(errs, fmt.Errorf("level %d CooldownReduction %g leaves no cooldown", level, s.CooldownReduction))
		}
	}
	if d.Mastery != nil && (d.Mastery.Bonus.DamageMultiplier < 0 || !finite(d.Mastery.Bonus.DamageMultiplier)) {
		errs = append(errs, errors.New("Mastery DamageMultiplier must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("weapon %q validation failed: %v", d.ID, errs)
	}
	return nil
}

// Catalog holds all loaded weapon definitions indexed by ID.
type Catalog struct {
	defs map[string]*Def
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Def)}
}

// Register adds d to the catalog.
//
// Precondition:  d must not be nil.
// Postcondition: Get(d.ID) returns d; returns error if d is invalid or d.ID already registered.
func (c *Catalog) Register(d *Def) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("weapon: Catalog.Register: %w", err)
	}
	if _, exists := c.defs[d.ID]; exists {
		return fmt.Errorf("weapon: Catalog.Register: weapon ID %q already registered", d.ID)
	}
	c.defs[d.ID] = d
	return nil
}

// Get returns the Def for id and whether it was found.
func (c *Catalog) Get(id string) (*Def, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// Len returns the number of registered weapons.
func (c *Catalog) Len() int { return len(c.defs) }

// All returns every registered Def sorted by ID.
func (c *Catalog) All() []*Def {
	out := make([]*Def, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadWeapons reads all *.yaml files from dir in lexical order, parses each as a
// Def with unknown fields rejected, and registers it into a new Catalog.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns a Catalog of all valid Defs or the first encountered error.
func LoadWeapons(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadWeapons: cannot read directory %q: %w", dir, err)
	}

	cat := NewCatalog()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadWeapons: cannot read file %q: %w", path, err)
		}
		var d Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("LoadWeapons: cannot parse file %q: %w", path, err)
		}
		if err := cat.Register(&d); err != nil {
			return nil, fmt.Errorf("LoadWeapons: invalid weapon in %q: %w", path, err)
		}
	}
	return cat, nil
}
