// Package player owns the controlled character's health and its
// post-hit invulnerability state machine.
package player

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/game/event"
)

// DefaultInvulnerabilityWindow is the damage-immunity duration, in simulation
// milliseconds, opened by each accepted hit.
const DefaultInvulnerabilityWindow = 1000.0

// State is the damage-intake state of the controlled character.
type State int

const (
	// Vulnerable accepts damage.
	Vulnerable State = iota
	// Invulnerable rejects damage until the window elapses.
	Invulnerable
	// Dead is terminal until Reset.
	Dead
)

// String returns a human-readable state label.
func (s State) String() string {
	switch s {
	case Vulnerable:
		return "vulnerable"
	case Invulnerable:
		return "invulnerable"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthController tracks health and invulnerability for one run.
//
// Invariant: 0 <= Health() <= MaxHealth().
// Invariant: Invulnerable() == (InvulnerabilityRemaining() > 0).
//
// It is not safe for concurrent use; the frame loop owns it.
type HealthController struct {
	health    int
	maxHealth int
	window    float64
	remaining float64
	dead      bool
	bus       *event.Bus
	logger    *zap.Logger
}

// NewHealthController creates a controller at full health in the Vulnerable state.
//
// Precondition: maxHealth > 0; window >= 0; bus must not be nil.
// Postcondition: Health() == maxHealth; State() == Vulnerable.
func NewHealthController(maxHealth int, window float64, bus *event.Bus, logger *zap.Logger) *HealthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window < 0 {
		window = 0
	}
	return &HealthController{
		health:    maxHealth,
		maxHealth: maxHealth,
		window:    window,
		bus:       bus,
		logger:    logger,
	}
}

// Health returns current health.
func (h *HealthController) Health() int { return h.health }

// MaxHealth returns maximum health.
func (h *HealthController) MaxHealth() int { return h.maxHealth }

// Invulnerable reports whether incoming damage is currently rejected by the window.
func (h *HealthController) Invulnerable() bool { return h.remaining > 0 }

// InvulnerabilityRemaining returns the time left in the current window.
func (h *HealthController) InvulnerabilityRemaining() float64 { return h.remaining }

// IsDead reports whether health reached zero this run.
func (h *HealthController) IsDead() bool { return h.dead }

// State returns the current state. Dead takes precedence over an open window.
func (h *HealthController) State() State {
	switch {
	case h.dead:
		return Dead
	case h.remaining > 0:
		return Invulnerable
	default:
		return Vulnerable
	}
}

// TakeDamage applies amount while Vulnerable and opens the invulnerability window.
// Negative amounts are treated as zero.
//
// Postcondition: Returns true iff damage was applied. On true a player-damaged
// event is published, followed by player-died when health reaches zero.
// Returns false with no event while Invulnerable or Dead.
func (h *HealthController) TakeDamage(amount int) bool {
	if h.dead || h.remaining > 0 {
		return false
	}
	if amount < 0 {
		amount = 0
	}

	h.health -= amount
	if h.health < 0 {
		h.health = 0
	}
	h.remaining = h.window

	h.logger.Debug("player damaged",
		zap.Int("amount", amount),
		zap.Int("health", h.health),
		zap.Float64("invulnerable_for", h.remaining),
	)
	h.bus.Publish(event.PlayerDamaged, event.PlayerDamagedPayload{Health: h.health, MaxHealth: h.maxHealth})

	if h.health <= 0 {
		h.dead = true
		h.remaining = 0
		h.logger.Info("player died")
		h.bus.Publish(event.PlayerDied, event.PlayerDiedPayload{})
	}
	return true
}

// Advance counts the invulnerability window down by dt.
// Negative dt is treated as zero.
//
// Postcondition: InvulnerabilityRemaining() >= 0; the state returns to Vulnerable
// once the window has fully elapsed.
func (h *HealthController) Advance(dt float64) {
	if dt <= 0 || h.remaining <= 0 {
		return
	}
	h.remaining -= dt
	if h.remaining < 0 {
		h.remaining = 0
	}
}

// Opacity returns the flicker value a renderer applies while invulnerable.
// It is a pure function of the remaining window.
//
// Postcondition: Returns 1 when not invulnerable, otherwise a value in [0, 1].
func (h *HealthController) Opacity() float64 {
	if h.remaining <= 0 {
		return 1
	}
	return math.Sin(h.remaining*0.01)*0.5 + 0.5
}

// Heal restores up to amount health, capped at MaxHealth. Healing a dead
// character or by a non-positive amount is a no-op.
//
// Postcondition: Returns the health actually restored.
func (h *HealthController) Heal(amount int) int {
	if h.dead || amount <= 0 {
		return 0
	}
	before := h.health
	h.health += amount
	if h.health > h.maxHealth {
		h.health = h.maxHealth
	}
	return h.health - before
}

// Reset restores the initial state for a new run.
//
// Postcondition: Health() == MaxHealth(); State() == Vulnerable.
func (h *HealthController) Reset() {
	h.health = h.maxHealth
	h.remaining = 0
	h.dead = false
}
