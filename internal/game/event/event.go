// Package event provides the per-session combat event bus and the fixed
// payload schema consumed by rendering, audio, and UI collaborators.
package event

import (
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
)

// Type names a combat event. The string values are part of the external contract.
type Type string

const (
	WeaponFired    Type = "weapon-fired"
	WeaponUpgraded Type = "weapon-upgraded"
	PlayerDamaged  Type = "player-damaged"
	PlayerDied     Type = "player-died"
)

// Event is one published notification.
type Event struct {
	// Seq is the 1-based publish sequence number within the bus.
	Seq     uint64
	Type    Type
	Payload any
}

// WeaponFiredPayload accompanies WeaponFired.
// Damage is pre-resistance damage; target-side mitigation happens downstream.
type WeaponFiredPayload struct {
	WeaponID   string
	Damage     float64
	DamageType weapon.DamageType
	Target     targeting.Targetable
	Source     targeting.Positioned
}

// WeaponUpgradedPayload accompanies WeaponUpgraded.
type WeaponUpgradedPayload struct {
	WeaponID string
	NewLevel int
}

// PlayerDamagedPayload accompanies PlayerDamaged.
type PlayerDamagedPayload struct {
	Health    int
	MaxHealth int
}

// PlayerDiedPayload accompanies PlayerDied. It carries no fields.
type PlayerDiedPayload struct{}
