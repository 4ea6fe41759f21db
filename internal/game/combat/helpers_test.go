package combat_test

import (
	"fmt"

	"github.com/cory-johannsen/outbreak/internal/game/event"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
)

type host struct {
	name   string
	pos    targeting.Vec2
	active bool
}

func (h *host) Position() targeting.Vec2 { return h.pos }
func (h *host) Active() bool             { return h.active }

func hostAt(name string, x, y float64) *host {
	return &host{name: name, pos: targeting.Vec2{X: x, Y: y}, active: true}
}

func pool(hs ...*host) []targeting.Targetable {
	out := make([]targeting.Targetable, len(hs))
	for i, h := range hs {
		out[i] = h
	}
	return out
}

var origin = targeting.Point{}

// sporeCannon: 10 base, level 2 +2, level 3 +5 with 100 cooldown reduction.
func sporeCannon() *weapon.Def {
	return &weapon.Def{
		ID:         "spore_cannon",
		Name:       "Spore Cannon",
		BaseDamage: 10,
		DamageType: weapon.DamageViral,
		Cooldown:   500,
		Range:      200,
		Upgrades: []weapon.UpgradeStep{
			{DamageBonus: 2},
			{DamageBonus: 5, CooldownReduction: 100},
		},
	}
}

func bileSpitter() *weapon.Def {
	return &weapon.Def{
		ID:         "bile_spitter",
		BaseDamage: 8,
		DamageType: weapon.DamageToxic,
		Cooldown:   750,
		Range:      120,
		Upgrades:   []weapon.UpgradeStep{{DamageBonus: 3}},
	}
}

func boneSaw() *weapon.Def {
	return &weapon.Def{
		ID:         "bone_saw",
		BaseDamage: 25,
		DamageType: weapon.DamagePhysical,
		Cooldown:   1200,
		Range:      40,
	}
}

// transcript renders events so runs can be compared byte for byte.
func transcript(events []event.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case event.WeaponFiredPayload:
			out = append(out, fmt.Sprintf("%d %s %s %.6f %s %s", ev.Seq, ev.Type, p.WeaponID, p.Damage, p.DamageType, p.Target.(*host).name))
		default:
			out = append(out, fmt.Sprintf("%d %s %+v", ev.Seq, ev.Type, p))
		}
	}
	return out
}
