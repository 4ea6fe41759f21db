// Package simulation hosts a headless run: it spawns enemies from a wave,
// drifts them, routes contact damage into the combat session, and applies
// weapon fire to its targets.
package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/game/combat"
	"github.com/cory-johannsen/outbreak/internal/game/enemy"
	"github.com/cory-johannsen/outbreak/internal/game/event"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
)

// Outcome is the state of a run.
type Outcome int

const (
	Running Outcome = iota
	Victory
	Defeat
	// Aborted marks a run stopped before it finished.
	Aborted
)

// String returns the lowercase outcome name used in run history.
func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Victory:
		return "victory"
	case Defeat:
		return "defeat"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Score converts survival time to points: ten per whole second.
func Score(survivalMs float64) int {
	if survivalMs <= 0 {
		return 0
	}
	return int(math.Floor(survivalMs/1000)) * 10
}

// Params are the run rules.
type Params struct {
	// RunDuration is the survival time, in milliseconds, that wins the run.
	RunDuration float64
	// ContactRadius is the distance at which an enemy damages the player.
	ContactRadius float64
}

// Result summarizes a run.
type Result struct {
	Outcome    Outcome
	SurvivalMs float64
	Score      int
	Kills      int
	Spawned    int
}

// Simulator advances one run in fixed steps. Given the same wave, content,
// and step sizes it produces the same event sequence.
//
// It is not safe for concurrent use.
type Simulator struct {
	session *combat.Session
	wave    *Wave
	defs    map[string]*enemy.Def
	params  Params
	logger  *zap.Logger

	now     float64
	next    int
	seq     int
	enemies []*enemy.Instance
	kills   int
	spawned int
	outcome Outcome
	unsub   []func()
}

// NewSimulator attaches a run to session. Weapon fire from the session is
// applied to the enemy instance it targets.
//
// Precondition: session, wave and defs must be non-nil; wave must pass
// Validate(defs); params.RunDuration > 0.
// Postcondition: Now() == 0; Outcome() == Running.
func NewSimulator(session *combat.Session, wave *Wave, defs map[string]*enemy.Def, params Params, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		session: session,
		wave:    wave,
		defs:    defs,
		params:  params,
		logger:  logger,
	}
	s.unsub = append(s.unsub,
		session.Bus.Subscribe(event.WeaponFired, s.onWeaponFired),
		session.Bus.Subscribe(event.PlayerDied, func(event.Event) { s.finish(Defeat) }),
	)
	return s
}

func (s *Simulator) onWeaponFired(ev event.Event) {
	p, ok := ev.Payload.(event.WeaponFiredPayload)
	if !ok {
		return
	}
	inst, ok := p.Target.(*enemy.Instance)
	if !ok {
		return
	}
	applied, killed := inst.ApplyHit(p.Damage, p.DamageType)
	if killed {
		s.kills++
		s.logger.Debug("enemy killed",
			zap.String("enemy", inst.ID),
			zap.String("weapon", p.WeaponID),
			zap.Float64("final_blow", applied),
		)
	}
}

func (s *Simulator) finish(o Outcome) {
	if s.outcome != Running {
		return
	}
	s.outcome = o
	s.logger.Info("run finished",
		zap.Stringer("outcome", o),
		zap.Float64("survival_ms", s.now),
		zap.Int("score", Score(s.now)),
		zap.Int("kills", s.kills),
	)
}

// Now returns the elapsed run time in milliseconds.
func (s *Simulator) Now() float64 { return s.now }

// Outcome returns the current run state.
func (s *Simulator) Outcome() Outcome { return s.outcome }

// Enemies returns the live enemies in spawn order.
func (s *Simulator) Enemies() []*enemy.Instance {
	out := make([]*enemy.Instance, len(s.enemies))
	copy(out, s.enemies)
	return out
}

// Result returns the run summary so far.
func (s *Simulator) Result() Result {
	return Result{
		Outcome:    s.outcome,
		SurvivalMs: s.now,
		Score:      Score(s.now),
		Kills:      s.kills,
		Spawned:    s.spawned,
	}
}

// Step advances the run by dt milliseconds: due spawns appear, enemies drift,
// the combat session advances, then enemies in contact damage the player.
// Negative dt is treated as zero.
//
// Postcondition: Returns the outcome after the step. Once the outcome is not
// Running, Step does nothing.
func (s *Simulator) Step(dt float64) Outcome {
	if s.outcome != Running {
		return s.outcome
	}
	if dt < 0 {
		dt = 0
	}
	s.now += dt
	s.spawnDue()

	for _, e := range s.enemies {
		e.Drift(dt)
	}

	pool := make([]targeting.Targetable, 0, len(s.enemies))
	for _, e := range s.enemies {
		pool = append(pool, e)
	}
	s.session.AdvanceCombat(s.now, dt, pool)
	s.prune()

	origin := s.session.Source().Position()
	for _, e := range s.enemies {
		if s.outcome != Running {
			break
		}
		if e.Pos.DistanceTo(origin) <= s.params.ContactRadius {
			s.session.DamagePlayer(e.Def.Damage)
		}
	}

	if s.outcome == Running && s.now >= s.params.RunDuration {
		s.finish(Victory)
	}
	return s.outcome
}

func (s *Simulator) spawnDue() {
	origin := s.session.Source().Position()
	for s.next < len(s.wave.Spawns) && s.wave.Spawns[s.next].At <= s.now {
		sp := s.wave.Spawns[s.next]
		s.next++
		def, ok := s.defs[sp.Enemy]
		if !ok {
			s.logger.Warn("spawn of unknown enemy skipped", zap.String("enemy", sp.Enemy))
			continue
		}
		for i := 0; i < sp.Count; i++ {
			pos := sp.Position.Add(sp.Spread.Scale(float64(i)))
			s.seq++
			inst := enemy.NewInstance(fmt.Sprintf("%s-%d", def.ID, s.seq), def, pos, velocity(sp, def, pos, origin), s.now)
			s.enemies = append(s.enemies, inst)
			s.spawned++
		}
	}
}

// velocity heads from pos toward origin at the definition's speed unless the
// spawn overrides it.
func velocity(sp Spawn, def *enemy.Def, pos, origin targeting.Vec2) targeting.Vec2 {
	if sp.Velocity != nil {
		return *sp.Velocity
	}
	d := pos.DistanceTo(origin)
	if d == 0 || def.Speed == 0 {
		return targeting.Vec2{}
	}
	return origin.Add(pos.Scale(-1)).Scale(def.Speed / d)
}

func (s *Simulator) prune() {
	alive := s.enemies[:0]
	for _, e := range s.enemies {
		if !e.IsDead() {
			alive = append(alive, e)
		}
	}
	for i := len(alive); i < len(s.enemies); i++ {
		s.enemies[i] = nil
	}
	s.enemies = alive
}

// Abort ends a running run with the Aborted outcome.
func (s *Simulator) Abort() { s.finish(Aborted) }

// Run steps the simulation by dt every frame interval until the run ends or
// ctx is cancelled, in which case the run is aborted.
//
// Precondition: frame > 0.
// Postcondition: Returns the final result; err is ctx.Err() when aborted.
func (s *Simulator) Run(ctx context.Context, frame time.Duration, dt float64) (Result, error) {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Abort()
			return s.Result(), ctx.Err()
		case <-ticker.C:
			if s.Step(dt) != Running {
				return s.Result(), nil
			}
		}
	}
}

// Close detaches the simulator from the session bus. Close is idempotent.
func (s *Simulator) Close() {
	for _, u := range s.unsub {
		u()
	}
	s.unsub = nil
}
