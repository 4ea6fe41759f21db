// Package combat implements the per-frame combat core: equipped weapon state,
// cooldown scheduling, the damage pipeline, and the session that ties them to
// the controlled character's health.
package combat

import "github.com/cory-johannsen/outbreak/internal/game/weapon"

// ActiveWeapon is the runtime progress of one equipped weapon.
//
// Invariant: CooldownRemaining >= 0.
// Invariant: 1 <= Level <= Def.MaxLevel().
type ActiveWeapon struct {
	// Def is the catalog definition. It is shared and never mutated.
	Def *weapon.Def
	// Level starts at 1 (baseline, no upgrade step applied).
	Level int
	// CooldownRemaining is the simulation time left before the weapon may fire.
	CooldownRemaining float64
	// LastFired is the timestamp of the last successful fire. Diagnostics only.
	LastFired float64
}

// NewActiveWeapon returns a level-1 weapon that is ready to fire.
//
// Precondition: def must be non-nil.
// Postcondition: Level == 1; CooldownRemaining == 0.
func NewActiveWeapon(def *weapon.Def) *ActiveWeapon {
	return &ActiveWeapon{Def: def, Level: 1}
}

// ID returns the definition id.
func (a *ActiveWeapon) ID() string { return a.Def.ID }

// AtMaxLevel reports whether no further upgrade is possible.
func (a *ActiveWeapon) AtMaxLevel() bool { return a.Level >= a.Def.MaxLevel() }

// Ready reports whether the weapon is eligible to fire.
func (a *ActiveWeapon) Ready() bool { return a.CooldownRemaining <= 0 }
