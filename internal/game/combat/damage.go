package combat

import (
	"math"

	"github.com/cory-johannsen/outbreak/internal/game/weapon"
)

// ComputeDamage returns the weapon's base damage plus the damage bonus of the
// upgrade step at its current level. The result is pre-resistance damage.
//
// Precondition: a and a.Def must be non-nil.
// Postcondition: Returns Def.BaseDamage + Def.StepAt(Level).DamageBonus.
func ComputeDamage(a *ActiveWeapon) float64 {
	return a.Def.BaseDamage + a.Def.StepAt(a.Level).DamageBonus
}

// PreResistanceDamage applies the mastery multiplier to ComputeDamage.
// Without a configured mastery, or below max level, it equals ComputeDamage.
func PreResistanceDamage(a *ActiveWeapon) float64 {
	return ComputeDamage(a) * a.Def.MasteryMultiplier(a.Level)
}

// DamageHook may rewrite pre-resistance damage just before a fire event is published.
type DamageHook interface {
	ModifyDamage(weaponID string, level int, damage float64) float64
}

// Resistances holds a target's percentage mitigation per damage type.
// The zero value mitigates nothing.
type Resistances struct {
	Viral    float64 `yaml:"viral"`
	Toxic    float64 `yaml:"toxic"`
	Physical float64 `yaml:"physical"`
}

// For returns the resistance percentage against t. Unknown types yield 0.
func (r Resistances) For(t weapon.DamageType) float64 {
	switch t {
	case weapon.DamageViral:
		return r.Viral
	case weapon.DamageToxic:
		return r.Toxic
	case weapon.DamagePhysical:
		return r.Physical
	}
	return 0
}

// ApplyResistance returns raw * (1 - pct/100) with pct clamped to [0, 100].
//
// Postcondition: 0 <= result <= raw for raw >= 0.
func ApplyResistance(raw, pct float64) float64 {
	if math.IsNaN(pct) || pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return raw * (1 - pct/100)
}

// FinalDamage runs the target-side stage of the pipeline for a hit of type t.
func FinalDamage(raw float64, t weapon.DamageType, r Resistances) float64 {
	return ApplyResistance(raw, r.For(t))
}

func sanitizeDamage(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}
