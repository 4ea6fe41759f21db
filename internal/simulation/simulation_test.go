package simulation_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/outbreak/internal/config"
	"github.com/cory-johannsen/outbreak/internal/game/combat"
	"github.com/cory-johannsen/outbreak/internal/game/enemy"
	"github.com/cory-johannsen/outbreak/internal/game/event"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
	"github.com/cory-johannsen/outbreak/internal/simulation"
	"github.com/cory-johannsen/outbreak/internal/storage/postgres"
)

type testingT interface {
	require.TestingT
	Helper()
}

func catalog(t testingT) *weapon.Catalog {
	t.Helper()
	c := weapon.NewCatalog()
	require.NoError(t, c.Register(&weapon.Def{
		ID: "spore_cannon", Name: "Spore Cannon", Tier: weapon.TierCommon,
		BaseDamage: 10, DamageType: weapon.DamageViral, Cooldown: 500, Range: 200,
		Upgrades: []weapon.UpgradeStep{{DamageBonus: 2}},
	}))
	return c
}

func defs() map[string]*enemy.Def {
	return map[string]*enemy.Def{
		"shambler": {ID: "shambler", Name: "Shambler", Health: 30, Speed: 40, Damage: 10, Behavior: enemy.BehaviorDirect},
		"brute":    {ID: "brute", Name: "Brute", Health: 500, Speed: 0, Damage: 100, Behavior: enemy.BehaviorDirect},
	}
}

type harness struct {
	session *combat.Session
	sim     *simulation.Simulator
	rec     *event.Recorder
}

func newHarness(t testingT, wave *simulation.Wave, params simulation.Params, weapons ...string) *harness {
	t.Helper()
	cfg := config.CombatConfig{MaxHealth: 100, InvulnerabilityMs: 1000, Targeting: config.TargetingPerWeapon, AcquisitionRange: 300}
	s := combat.NewSession(targeting.Point{}, simulation.SessionConfig(cfg, nil), nil)
	require.NoError(t, simulation.Equip(s, catalog(t), weapons))
	d := defs()
	require.NoError(t, wave.Validate(d))
	h := &harness{session: s, rec: event.Record(s.Bus)}
	h.sim = simulation.NewSimulator(s, wave, d, params, nil)
	return h
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0, simulation.Score(0))
	assert.Equal(t, 0, simulation.Score(999))
	assert.Equal(t, 10, simulation.Score(1000))
	assert.Equal(t, 12000, simulation.Score(20*60*1000))
	assert.Equal(t, 0, simulation.Score(-5))
}

func TestSimulator_VictoryAtRunDuration(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 1000, ContactRadius: 24})
	steps := 0
	for h.sim.Step(16) == simulation.Running {
		steps++
		require.Less(t, steps, 1000)
	}
	res := h.sim.Result()
	assert.Equal(t, simulation.Victory, res.Outcome)
	assert.Equal(t, 1008.0, res.SurvivalMs)
	assert.Equal(t, 10, res.Score)

	assert.Equal(t, simulation.Victory, h.sim.Step(16), "finished runs do not advance")
	assert.Equal(t, 1008.0, h.sim.Now())
}

func TestSimulator_WeaponsKillEnemies(t *testing.T) {
	wave := &simulation.Wave{Spawns: []simulation.Spawn{{At: 0, Enemy: "shambler", Count: 1, Position: targeting.Vec2{X: 150}}}}
	h := newHarness(t, wave, simulation.Params{RunDuration: 60_000, ContactRadius: 24}, "spore_cannon")

	for i := 0; i < 100; i++ {
		h.sim.Step(16)
	}
	res := h.sim.Result()
	assert.Equal(t, 1, res.Spawned)
	assert.Equal(t, 1, res.Kills)
	assert.Empty(t, h.sim.Enemies())
	assert.Len(t, h.rec.OfType(event.WeaponFired), 3, "30 health at 10 per shot")
	assert.Equal(t, 100, h.session.Player.Health())
}

func TestSimulator_ResistanceReducesHits(t *testing.T) {
	d := defs()
	wave := &simulation.Wave{Spawns: []simulation.Spawn{{At: 0, Enemy: "shambler", Count: 1, Position: targeting.Vec2{X: 150}, Velocity: &targeting.Vec2{}}}}
	d["shambler"].Resistances.Viral = 50

	s := combat.NewSession(targeting.Point{}, simulation.SessionConfig(config.CombatConfig{MaxHealth: 100, InvulnerabilityMs: 1000}, nil), nil)
	require.NoError(t, simulation.Equip(s, catalog(t), []string{"spore_cannon"}))
	sim := simulation.NewSimulator(s, wave, d, simulation.Params{RunDuration: 60_000, ContactRadius: 24}, nil)

	sim.Step(16)
	require.Len(t, sim.Enemies(), 1)
	assert.Equal(t, 25.0, sim.Enemies()[0].Health)
}


func TestSimulator_ContactDamageRespectsInvulnerability(t *testing.T) {
	wave := &simulation.Wave{Spawns: []simulation.Spawn{{At: 0, Enemy: "shambler", Count: 1, Position: targeting.Vec2{X: 20}, Velocity: &targeting.Vec2{}}}}
	h := newHarness(t, wave, simulation.Params{RunDuration: 60_000, ContactRadius: 24})

	h.sim.Step(16)
	assert.Equal(t, 90, h.session.Player.Health())
	for i := 0; i < 62; i++ {
		h.sim.Step(16)
	}
	assert.Equal(t, 90, h.session.Player.Health(), "window still open after 992ms")
	h.sim.Step(16)
	assert.Equal(t, 80, h.session.Player.Health())
	assert.Len(t, h.rec.OfType(event.PlayerDamaged), 2)
}

func TestSimulator_Defeat(t *testing.T) {
	wave := &simulation.Wave{Spawns: []simulation.Spawn{{At: 32, Enemy: "brute", Count: 1, Position: targeting.Vec2{X: 10}}}}
	h := newHarness(t, wave, simulation.Params{RunDuration: 60_000, ContactRadius: 24}, "spore_cannon")

	assert.Equal(t, simulation.Running, h.sim.Step(16))
	assert.Equal(t, simulation.Defeat, h.sim.Step(16))
	assert.True(t, h.session.Player.IsDead())
	assert.Len(t, h.rec.OfType(event.PlayerDied), 1)

	res := h.sim.Result()
	assert.Equal(t, 32.0, res.SurvivalMs)
	assert.Equal(t, 0, res.Score)

	fired := len(h.rec.OfType(event.WeaponFired))
	assert.Equal(t, simulation.Defeat, h.sim.Step(16))
	assert.Len(t, h.rec.OfType(event.WeaponFired), fired)
}

func TestSimulator_SpawnGroupAndOrder(t *testing.T) {
	wave := &simulation.Wave{Spawns: []simulation.Spawn{
		{At: 0, Enemy: "shambler", Count: 3, Position: targeting.Vec2{X: 500}, Spread: targeting.Vec2{Y: 30}},
		{At: 100, Enemy: "brute", Count: 1, Position: targeting.Vec2{X: -500}},
	}}
	h := newHarness(t, wave, simulation.Params{RunDuration: 60_000, ContactRadius: 24})

	h.sim.Step(16)
	got := h.sim.Enemies()
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("shambler-%d", i+1), e.ID)
	}
	assert.InDelta(t, 60.0, got[2].Pos.Y, 1.0)

	for i := 0; i < 6; i++ {
		h.sim.Step(16)
	}
	got = h.sim.Enemies()
	require.Len(t, got, 4)
	assert.Equal(t, "brute-4", got[3].ID)
}

func TestSimulator_DefaultVelocityHeadsToPlayer(t *testing.T) {
	wave := &simulation.Wave{Spawns: []simulation.Spawn{{At: 0, Enemy: "shambler", Count: 1, Position: targeting.Vec2{X: 300, Y: 400}}}}
	h := newHarness(t, wave, simulation.Params{RunDuration: 60_000, ContactRadius: 24})

	h.sim.Step(16)
	e := h.sim.Enemies()[0]
	assert.InDelta(t, -24.0, e.Velocity.X, 1e-9)
	assert.InDelta(t, -32.0, e.Velocity.Y, 1e-9)
}

func TestSimulator_NegativeStepIsZero(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 1000, ContactRadius: 24})
	h.sim.Step(-50)
	assert.Equal(t, 0.0, h.sim.Now())
}

func TestSimulator_CloseDetaches(t *testing.T) {
	wave := &simulation.Wave{Spawns: []simulation.Spawn{{At: 0, Enemy: "shambler", Count: 1, Position: targeting.Vec2{X: 50}, Velocity: &targeting.Vec2{}}}}
	h := newHarness(t, wave, simulation.Params{RunDuration: 60_000, ContactRadius: 24}, "spore_cannon")
	before := h.session.Bus.Len()
	h.sim.Close()
	h.sim.Close()
	assert.Equal(t, before-2, h.session.Bus.Len())
}

func transcript(rec *event.Recorder) []string {
	var out []string
	for _, ev := range rec.Events {
		switch p := ev.Payload.(type) {
		case event.WeaponFiredPayload:
			out = append(out, fmt.Sprintf("%d %s %s %.6f %s", ev.Seq, ev.Type, p.WeaponID, p.Damage, p.Target.(*enemy.Instance).ID))
		default:
			out = append(out, fmt.Sprintf("%d %s %+v", ev.Seq, ev.Type, p))
		}
	}
	return out
}

func busyWave() *simulation.Wave {
	return &simulation.Wave{Spawns: []simulation.Spawn{
		{At: 0, Enemy: "shambler", Count: 4, Position: targeting.Vec2{X: 180, Y: -60}, Spread: targeting.Vec2{Y: 40}},
		{At: 800, Enemy: "shambler", Count: 3, Position: targeting.Vec2{X: -150, Y: 90}, Spread: targeting.Vec2{X: -25}},
		{At: 2500, Enemy: "shambler", Count: 6, Position: targeting.Vec2{Y: 200}, Spread: targeting.Vec2{X: 15}},
	}}
}

func TestSimulator_Deterministic(t *testing.T) {
	run := func() ([]string, simulation.Result) {
		h := newHarness(t, busyWave(), simulation.Params{RunDuration: 8000, ContactRadius: 24}, "spore_cannon")
		for h.sim.Step(16) == simulation.Running {
		}
		return transcript(h.rec), h.sim.Result()
	}
	firstEvents, firstRes := run()
	secondEvents, secondRes := run()
	require.NotEmpty(t, firstEvents)
	assert.Equal(t, firstEvents, secondEvents)
	assert.Equal(t, firstRes, secondRes)
}

func TestProperty_SimulatorInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var spawns []simulation.Spawn
		n := rapid.IntRange(0, 8).Draw(rt, "spawns")
		for i := 0; i < n; i++ {
			spawns = append(spawns, simulation.Spawn{
				At:       float64(rapid.IntRange(0, 3000).Draw(rt, "at")),
				Enemy:    "shambler",
				Count:    rapid.IntRange(1, 4).Draw(rt, "count"),
				Position: targeting.Vec2{X: rapid.Float64Range(-400, 400).Draw(rt, "x"), Y: rapid.Float64Range(-400, 400).Draw(rt, "y")},
			})
		}
		// authored waves are sorted by LoadWave
		for i := 1; i < len(spawns); i++ {
			for j := i; j > 0 && spawns[j].At < spawns[j-1].At; j-- {
				spawns[j], spawns[j-1] = spawns[j-1], spawns[j]
			}
		}
		h := newHarness(rt, &simulation.Wave{Spawns: spawns}, simulation.Params{RunDuration: 4000, ContactRadius: 24}, "spore_cannon")
		for i := 0; i < 400 && h.sim.Step(rapid.Float64Range(0, 40).Draw(rt, "dt")) == simulation.Running; i++ {
			res := h.sim.Result()
			if res.Kills > res.Spawned {
				rt.Fatalf("kills %d exceed spawned %d", res.Kills, res.Spawned)
			}
			hp := h.session.Player.Health()
			if hp < 0 || hp > 100 {
				rt.Fatalf("health %d out of range", hp)
			}
		}
	})
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWave(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.yaml", `
name: opening
spawns:
  - at: 2000
    enemy: brute
    position: {x: -400, y: 0}
  - at: 0
    enemy: shambler
    count: 3
    position: {x: 300, y: 0}
    spread: {x: 0, y: 20}
  - at: 0
    enemy: shambler
    position: {x: 0, y: 300}
    velocity: {x: 0, y: -10}
`)
	w, err := simulation.LoadWave(path)
	require.NoError(t, err)
	assert.Equal(t, "opening", w.Name)
	require.Len(t, w.Spawns, 3)
	assert.Equal(t, 3, w.Spawns[0].Count)
	assert.Equal(t, 1, w.Spawns[1].Count, "count defaults to 1")
	require.NotNil(t, w.Spawns[1].Velocity)
	assert.Equal(t, -10.0, w.Spawns[1].Velocity.Y)
	assert.Equal(t, "brute", w.Spawns[2].Enemy, "sorted by time, stable")
	assert.NoError(t, w.Validate(defs()))
}

func TestLoadWave_UnknownField(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.yaml", "name: x\nspawns:\n  - at: 0\n    enemy: shambler\n    colour: red\n")
	_, err := simulation.LoadWave(path)
	assert.Error(t, err)
}

func TestWave_ValidateCollectsAll(t *testing.T) {
	w := &simulation.Wave{Name: "bad", Spawns: []simulation.Spawn{{At: -1, Enemy: "ghost", Count: -2}}}
	err := w.Validate(defs())
	require.Error(t, err)
	for _, want := range []string{"unknown enemy", "at must be", "count must be"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := config.CombatConfig{MaxHealth: 80, InvulnerabilityMs: 500, Targeting: config.TargetingShared, AcquisitionRange: 300, MaxWeaponSlots: 4}
	sc := simulation.SessionConfig(cfg, nil)
	assert.Equal(t, 80, sc.MaxHealth)
	assert.Equal(t, 500.0, sc.InvulnerabilityWindow)
	assert.Equal(t, combat.TargetShared, sc.Registry.Targeting)
	assert.Equal(t, 300.0, sc.Registry.SharedRange)
	assert.Equal(t, 4, sc.Registry.MaxSlots)

	cfg.Targeting = config.TargetingPerWeapon
	assert.Equal(t, combat.TargetPerWeapon, simulation.SessionConfig(cfg, nil).Registry.Targeting)
}

func TestEquip_UnknownWeapon(t *testing.T) {
	s := combat.NewSession(targeting.Point{}, combat.SessionConfig{MaxHealth: 10}, nil)
	defer s.Close()
	assert.Error(t, simulation.Equip(s, catalog(t), []string{"spore_cannon", "laser"}))
	assert.Equal(t, 1, s.Weapons.Len())
}

func TestLoadout_AppendsKnownUnlocks(t *testing.T) {
	c := catalog(t)
	require.NoError(t, c.Register(&weapon.Def{ID: "bone_saw", DamageType: weapon.DamagePhysical, Cooldown: 300, Range: 60}))

	assert.Equal(t, []string{"spore_cannon"}, simulation.Loadout(c, []string{"spore_cannon"}, nil))
	assert.Equal(t,
		[]string{"spore_cannon", "bone_saw"},
		simulation.Loadout(c, []string{"spore_cannon", "spore_cannon"}, []string{"laser", "bone_saw", "spore_cannon"}),
	)
	assert.Equal(t, []string{"bone_saw"}, simulation.Loadout(c, nil, []string{"bone_saw"}))
}

func TestSimulator_RunFinishes(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 160, ContactRadius: 24})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := h.sim.Run(ctx, time.Millisecond, 16)
	require.NoError(t, err)
	assert.Equal(t, simulation.Victory, res.Outcome)
}

func TestSimulator_RunCancelled(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 60_000, ContactRadius: 24})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.sim.Run(ctx, time.Millisecond, 16)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, simulation.Aborted, res.Outcome)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []postgres.RunRecord
	err  error
}

func (f *fakeRecorder) RecordRun(_ context.Context, run postgres.RunRecord) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.runs = append(f.runs, run)
	return uuid.New(), nil
}

func simCfg() config.SimulationConfig {
	return config.SimulationConfig{FrameInterval: time.Millisecond, DeltaMs: 16, ProfileID: "local"}
}

func TestService_RecordsFinishedRun(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 160, ContactRadius: 24})
	rec := &fakeRecorder{}
	core, logs := observer.New(zap.InfoLevel)
	svc := simulation.NewService(h.sim, h.session, simCfg(), rec, zap.New(core))

	require.NoError(t, svc.Start())
	svc.Stop()

	res, ok := svc.Result()
	require.True(t, ok)
	assert.Equal(t, simulation.Victory, res.Outcome)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "victory", rec.runs[0].Outcome)
	assert.Equal(t, h.session.ID, rec.runs[0].SessionID)
	assert.Equal(t, "local", rec.runs[0].ProfileID)
	assert.Equal(t, 1, logs.FilterMessage("run recorded").Len())
}

func TestService_StopAbortsAndRecords(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 3_600_000, ContactRadius: 24})
	rec := &fakeRecorder{}
	svc := simulation.NewService(h.sim, h.session, simCfg(), rec, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start() }()
	time.Sleep(20 * time.Millisecond)
	svc.Stop()

	require.NoError(t, <-errCh)
	res, ok := svc.Result()
	require.True(t, ok)
	assert.Equal(t, simulation.Aborted, res.Outcome)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "aborted", rec.runs[0].Outcome)
}

func TestService_RecorderError(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 32, ContactRadius: 24})
	svc := simulation.NewService(h.sim, h.session, simCfg(), &fakeRecorder{err: errors.New("db down")}, nil)
	assert.ErrorContains(t, svc.Start(), "db down")
}

func TestService_NilRecorder(t *testing.T) {
	h := newHarness(t, &simulation.Wave{}, simulation.Params{RunDuration: 32, ContactRadius: 24})
	svc := simulation.NewService(h.sim, h.session, simCfg(), nil, nil)
	assert.NoError(t, svc.Start())
	<-svc.Done()
}
