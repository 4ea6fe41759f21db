package enemy

import (
	"github.com/cory-johannsen/outbreak/internal/game/combat"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
)

// Instance is a live enemy. It satisfies targeting.Targetable.
type Instance struct {
	// ID uniquely identifies this instance within a run.
	ID  string
	Def *Def
	// Pos is the current position in world units.
	Pos targeting.Vec2
	// Velocity is in world units per second.
	Velocity  targeting.Vec2
	Health    float64
	MaxHealth float64
	// SpawnedAt is the run time, in milliseconds, the instance appeared.
	SpawnedAt float64
}

// NewInstance creates a full-health instance of def at pos.
//
// Precondition: id must be non-empty; def must not be nil.
// Postcondition: Health == def.Health; Active() is true.
func NewInstance(id string, def *Def, pos, velocity targeting.Vec2, now float64) *Instance {
	return &Instance{
		ID:        id,
		Def:       def,
		Pos:       pos,
		Velocity:  velocity,
		Health:    def.Health,
		MaxHealth: def.Health,
		SpawnedAt: now,
	}
}

// Position returns the current position.
func (i *Instance) Position() targeting.Vec2 { return i.Pos }

// Active reports whether the instance can still be targeted.
func (i *Instance) Active() bool { return i.Health > 0 }

// IsDead reports whether the instance has no health left.
func (i *Instance) IsDead() bool { return i.Health <= 0 }

// Drift moves the instance along its velocity for dt milliseconds.
func (i *Instance) Drift(dt float64) {
	if dt <= 0 || i.IsDead() {
		return
	}
	i.Pos = i.Pos.Add(i.Velocity.Scale(dt / 1000))
}

// ApplyHit reduces health by raw damage of type t after this enemy's
// resistance.
//
// Postcondition: Returns the damage actually applied and whether this hit
// killed the instance. Hits on a dead instance apply nothing.
func (i *Instance) ApplyHit(raw float64, t weapon.DamageType) (applied float64, killed bool) {
	if i.IsDead() {
		return 0, false
	}
	applied = combat.FinalDamage(raw, t, i.Def.Resistances)
	if applied > i.Health {
		applied = i.Health
	}
	i.Health -= applied
	return applied, i.Health <= 0
}
