package observability

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/game/event"
)

// EventLog writes every combat event to a logger and keeps per-type counts.
type EventLog struct {
	logger *zap.Logger
	counts map[event.Type]int
	stop   func()
}

// AttachEventLog subscribes an EventLog to bus.
//
// Precondition: bus and logger must be non-nil.
// Postcondition: Every subsequent event is logged until Detach.
func AttachEventLog(bus *event.Bus, logger *zap.Logger) *EventLog {
	l := &EventLog{logger: logger, counts: make(map[event.Type]int)}
	l.stop = bus.SubscribeAll(l.handle)
	return l
}

func (l *EventLog) handle(ev event.Event) {
	l.counts[ev.Type]++
	base := []zap.Field{zap.Uint64("seq", ev.Seq), zap.String("event", string(ev.Type))}
	switch p := ev.Payload.(type) {
	case event.WeaponFiredPayload:
		pos := p.Target.Position()
		l.logger.Debug("combat event", append(base,
			zap.String("weapon", p.WeaponID),
			zap.Float64("damage", p.Damage),
			zap.String("damage_type", string(p.DamageType)),
			zap.Float64("target_x", pos.X),
			zap.Float64("target_y", pos.Y),
		)...)
	case event.WeaponUpgradedPayload:
		l.logger.Info("combat event", append(base,
			zap.String("weapon", p.WeaponID),
			zap.Int("level", p.NewLevel),
		)...)
	case event.PlayerDamagedPayload:
		l.logger.Info("combat event", append(base,
			zap.Int("health", p.Health),
			zap.Int("max_health", p.MaxHealth),
		)...)
	case event.PlayerDiedPayload:
		l.logger.Warn("combat event", base...)
	default:
		l.logger.Debug("combat event", base...)
	}
}

// Count returns how many events of type t have been seen.
func (l *EventLog) Count(t event.Type) int { return l.counts[t] }

// Summary returns the counts as zap fields, ordered by event type.
func (l *EventLog) Summary() []zap.Field {
	return []zap.Field{
		zap.Int(string(event.WeaponFired), l.counts[event.WeaponFired]),
		zap.Int(string(event.WeaponUpgraded), l.counts[event.WeaponUpgraded]),
		zap.Int(string(event.PlayerDamaged), l.counts[event.PlayerDamaged]),
		zap.Int(string(event.PlayerDied), l.counts[event.PlayerDied]),
	}
}

// Detach unsubscribes from the bus. Detach is idempotent.
func (l *EventLog) Detach() { l.stop() }
