package combat

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/game/event"
	"github.com/cory-johannsen/outbreak/internal/game/player"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
)

// SessionConfig holds the parameters of one combat session.
type SessionConfig struct {
	MaxHealth int
	// InvulnerabilityWindow is the immunity duration opened by each accepted hit.
	InvulnerabilityWindow float64
	Registry              Options
}

// Session owns every piece of combat state for one run: the event bus, the
// controlled character's health, and the equipped weapons. Nothing is shared
// between sessions.
type Session struct {
	ID      uuid.UUID
	Bus     *event.Bus
	Player  *player.HealthController
	Weapons *Registry

	source targeting.Positioned
	logger *zap.Logger
	closed bool
}

// NewSession creates a session whose weapons fire from source.
//
// Precondition: source must not be nil; cfg.MaxHealth > 0.
// Postcondition: Returns an open session with full health and no weapons.
func NewSession(source targeting.Positioned, cfg SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	logger = logger.With(zap.String("session", id.String()))

	bus := event.NewBus()
	opts := cfg.Registry
	opts.Logger = logger
	s := &Session{
		ID:      id,
		Bus:     bus,
		Player:  player.NewHealthController(cfg.MaxHealth, cfg.InvulnerabilityWindow, bus, logger),
		Weapons: NewRegistry(bus, opts),
		source:  source,
		logger:  logger,
	}
	logger.Debug("combat session opened", zap.Int("max_health", cfg.MaxHealth))
	return s
}

// Source returns the position provider weapons fire from.
func (s *Session) Source() targeting.Positioned { return s.source }

// AdvanceCombat runs one frame: the invulnerability window advances first, then
// every weapon's cooldown, firing at targetPool where eligible. targetPool is
// only read during the call. Negative dt is treated as zero. Once the player is
// dead, or after Close, weapons no longer advance.
//
// Postcondition: Returns the number of weapon-fired events published this frame.
func (s *Session) AdvanceCombat(now, dt float64, targetPool []targeting.Targetable) int {
	if s.closed {
		return 0
	}
	if dt < 0 {
		dt = 0
	}
	s.Player.Advance(dt)
	if s.Player.IsDead() {
		return 0
	}
	return s.Weapons.Advance(now, dt, s.source, targetPool)
}

// DamagePlayer routes incoming damage into the health controller.
//
// Postcondition: Returns true iff the damage was applied.
func (s *Session) DamagePlayer(amount int) bool {
	if s.closed {
		return false
	}
	return s.Player.TakeDamage(amount)
}

// Reset prepares the session for a new run: full health, no weapons.
// Bus subscriptions are kept.
func (s *Session) Reset() {
	if s.closed {
		return
	}
	s.Player.Reset()
	s.Weapons.Clear()
	s.logger.Debug("combat session reset")
}

// Close tears the session down: weapons are released and every bus
// subscription is dropped. Close is idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.Weapons.Clear()
	s.Bus.Close()
	s.logger.Debug("combat session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed }
