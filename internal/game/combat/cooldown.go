package combat

// Tick advances a's cooldown timer by dt and reports firing eligibility.
// Negative dt is treated as zero.
//
// Postcondition: a.CooldownRemaining >= 0; returns true iff a.CooldownRemaining == 0.
func Tick(a *ActiveWeapon, dt float64) bool {
	if dt > 0 {
		a.CooldownRemaining -= dt
	}
	if a.CooldownRemaining < 0 {
		a.CooldownRemaining = 0
	}
	return a.CooldownRemaining <= 0
}

// EffectiveCooldown returns the cooldown at a's level: the definition cooldown
// minus the current step's reduction. Reductions do not accumulate across levels.
//
// Postcondition: Returns a value > 0 for any Def that passed Validate.
func EffectiveCooldown(a *ActiveWeapon) float64 {
	cd := a.Def.Cooldown - a.Def.StepAt(a.Level).CooldownReduction
	if cd < 0 {
		return 0
	}
	return cd
}

// ResetCooldown restarts the timer after a successful fire at time now.
//
// Postcondition: a.CooldownRemaining == EffectiveCooldown(a); a.LastFired == now.
func ResetCooldown(a *ActiveWeapon, now float64) {
	a.CooldownRemaining = EffectiveCooldown(a)
	a.LastFired = now
}
