package combat

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/game/event"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
)

var (
	// ErrUnknownWeapon is returned for operations on a weapon id that is not equipped.
	ErrUnknownWeapon = errors.New("weapon not equipped")
	// ErrUpgradeExhausted is returned when upgrading a weapon already at max level.
	ErrUpgradeExhausted = errors.New("weapon already at max level")
	// ErrSlotsFull is returned when equipping a new weapon with every slot taken.
	ErrSlotsFull = errors.New("no free weapon slot")
)

// TargetingPolicy selects which range governs target acquisition.
type TargetingPolicy int

const (
	// TargetPerWeapon uses each weapon definition's own Range.
	TargetPerWeapon TargetingPolicy = iota
	// TargetShared uses Options.SharedRange for every weapon.
	TargetShared
)

// Options configures a Registry. The zero value is per-weapon targeting,
// unlimited slots, no hook, and a no-op logger.
type Options struct {
	Targeting   TargetingPolicy
	SharedRange float64
	// MaxSlots caps the number of equipped weapons; 0 means unlimited.
	MaxSlots int
	// Hook, when non-nil, rewrites damage before each fire event.
	Hook   DamageHook
	Logger *zap.Logger
}

// Registry holds the active weapons of one session in stable insertion order.
// Fire events are published in that order.
//
// It is not safe for concurrent use; the frame loop owns it.
type Registry struct {
	order   []string
	entries map[string]*ActiveWeapon
	bus     *event.Bus
	opts    Options
	logger  *zap.Logger
}

// NewRegistry creates an empty Registry publishing on bus.
//
// Precondition: bus must not be nil.
// Postcondition: Len() == 0.
func NewRegistry(bus *event.Bus, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*ActiveWeapon),
		bus:     bus,
		opts:    opts,
		logger:  logger,
	}
}

// Equip inserts def at level 1 with no cooldown, so it fires on the next
// Advance that finds a target. Re-equipping an id that is already present
// replaces the entry, resetting level and cooldown, and keeps its position.
//
// Precondition: def must not be nil.
// Postcondition: Get(def.ID) reports Level 1 and CooldownRemaining 0;
// returns ErrSlotsFull when a new id would exceed MaxSlots.
func (r *Registry) Equip(def *weapon.Def) error {
	if def == nil {
		return errors.New("combat: Registry.Equip: definition must not be nil")
	}
	if _, exists := r.entries[def.ID]; exists {
		r.entries[def.ID] = NewActiveWeapon(def)
		r.logger.Debug("weapon re-equipped", zap.String("weapon", def.ID))
		return nil
	}
	if r.opts.MaxSlots > 0 && len(r.order) >= r.opts.MaxSlots {
		return fmt.Errorf("combat: Registry.Equip %q: %w", def.ID, ErrSlotsFull)
	}
	r.order = append(r.order, def.ID)
	r.entries[def.ID] = NewActiveWeapon(def)
	r.logger.Debug("weapon equipped", zap.String("weapon", def.ID), zap.Int("slot", len(r.order)))
	return nil
}

// Unequip removes the weapon with id.
//
// Postcondition: Returns true iff an entry was removed.
func (r *Registry) Unequip(id string) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the active weapon with id.
//
// Postcondition: ok is true iff id is equipped.
func (r *Registry) Get(id string) (ActiveWeapon, bool) {
	a, ok := r.entries[id]
	if !ok {
		return ActiveWeapon{}, false
	}
	return *a, true
}

// IDs returns the equipped weapon ids in insertion order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Weapons returns copies of every active weapon in insertion order.
func (r *Registry) Weapons() []ActiveWeapon {
	out := make([]ActiveWeapon, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Len returns the number of equipped weapons.
func (r *Registry) Len() int { return len(r.order) }

// Upgrade raises the weapon's level by one and publishes weapon-upgraded.
//
// Postcondition: On success returns the new level. Returns ErrUnknownWeapon or
// ErrUpgradeExhausted, with no event and no state change, otherwise.
func (r *Registry) Upgrade(id string) (int, error) {
	a, ok := r.entries[id]
	if !ok {
		r.logger.Warn("upgrade of unknown weapon", zap.String("weapon", id))
		return 0, fmt.Errorf("combat: Registry.Upgrade %q: %w", id, ErrUnknownWeapon)
	}
	if a.AtMaxLevel() {
		return a.Level, fmt.Errorf("combat: Registry.Upgrade %q: %w", id, ErrUpgradeExhausted)
	}
	a.Level++
	r.logger.Debug("weapon upgraded", zap.String("weapon", id), zap.Int("level", a.Level))
	r.bus.Publish(event.WeaponUpgraded, event.WeaponUpgradedPayload{WeaponID: id, NewLevel: a.Level})
	return a.Level, nil
}

// Advance runs one frame for every weapon in insertion order: the cooldown is
// reduced by dt and, when it is at zero, the weapon tries to fire at the
// nearest active target in pool as seen from origin.
//
// A weapon with no target stays at zero cooldown and retries on the next call.
// Advance reads no clock; now is only recorded as LastFired.
//
// Precondition: origin must not be nil.
// Postcondition: Returns the number of weapon-fired events published.
func (r *Registry) Advance(now, dt float64, origin targeting.Positioned, pool []targeting.Targetable) int {
	if len(r.order) == 0 {
		return 0
	}
	// handlers may equip or unequip while events are published
	ids := r.IDs()
	fired := 0
	for _, id := range ids {
		a, ok := r.entries[id]
		if !ok {
			continue
		}
		if !Tick(a, dt) {
			continue
		}
		if r.tryFire(a, now, origin, pool) {
			fired++
		}
	}
	return fired
}

func (r *Registry) acquisitionRange(a *ActiveWeapon) float64 {
	if r.opts.Targeting == TargetShared {
		return r.opts.SharedRange
	}
	return a.Def.Range
}

func (r *Registry) tryFire(a *ActiveWeapon, now float64, origin targeting.Positioned, pool []targeting.Targetable) bool {
	target, ok := targeting.SelectClosest(origin.Position(), pool, r.acquisitionRange(a))
	if !ok {
		return false
	}

	dmg := PreResistanceDamage(a)
	if r.opts.Hook != nil {
		dmg = r.opts.Hook.ModifyDamage(a.Def.ID, a.Level, dmg)
	}
	dmg = sanitizeDamage(dmg)

	ResetCooldown(a, now)
	r.logger.Debug("weapon fired",
		zap.String("weapon", a.Def.ID),
		zap.Int("level", a.Level),
		zap.Float64("damage", dmg),
		zap.Float64("cooldown", a.CooldownRemaining),
	)
	r.bus.Publish(event.WeaponFired, event.WeaponFiredPayload{
		WeaponID:   a.Def.ID,
		Damage:     dmg,
		DamageType: a.Def.DamageType,
		Target:     target,
		Source:     origin,
	})
	return true
}

// Clear releases every active weapon. Clear is idempotent.
//
// Postcondition: Len() == 0.
func (r *Registry) Clear() {
	r.order = nil
	r.entries = make(map[string]*ActiveWeapon)
}
