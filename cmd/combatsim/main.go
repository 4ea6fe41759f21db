// Package main provides the headless combat simulator: it loads weapon, enemy,
// and wave content, runs one session to victory or defeat, and optionally
// records the result to PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/config"
	"github.com/cory-johannsen/outbreak/internal/game/combat"
	"github.com/cory-johannsen/outbreak/internal/game/enemy"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
	"github.com/cory-johannsen/outbreak/internal/observability"
	"github.com/cory-johannsen/outbreak/internal/scripting"
	"github.com/cory-johannsen/outbreak/internal/server"
	"github.com/cory-johannsen/outbreak/internal/simulation"
	"github.com/cory-johannsen/outbreak/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	frame := flag.Duration("frame", 0, "override simulation.frame_interval (e.g. 1ms for fast-forward)")
	unlock := flag.String("unlock", "", "comma-separated weapon ids to unlock for the profile before the run (requires database)")
	instLimit := flag.Int("script-limit", scripting.DefaultInstructionLimit, "Lua instruction budget per hook call")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *frame > 0 {
		cfg.Simulation.FrameInterval = *frame
	}

	logger, err := observability.NewLogger(cfg.Logging, "combatsim")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Content
	contentStart := time.Now()
	catalog, err := weapon.LoadWeapons(cfg.Content.WeaponsDir)
	if err != nil {
		logger.Fatal("loading weapons", zap.Error(err))
	}
	defs, err := enemy.LoadDefs(cfg.Content.EnemiesDir)
	if err != nil {
		logger.Fatal("loading enemies", zap.Error(err))
	}
	wave, err := simulation.LoadWave(cfg.Content.WavesFile)
	if err != nil {
		logger.Fatal("loading wave", zap.Error(err))
	}
	if err := wave.Validate(defs); err != nil {
		logger.Fatal("validating wave", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("weapons", catalog.Len()),
		zap.Int("enemies", len(defs)),
		zap.Int("spawns", len(wave.Spawns)),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	var hook combat.DamageHook
	if cfg.Content.ScriptsDir != "" {
		hooks, err := scripting.LoadWeaponHooks(cfg.Content.ScriptsDir, *instLimit, logger)
		if err != nil {
			logger.Fatal("loading weapon scripts", zap.Error(err))
		}
		defer hooks.Close()
		if hooks.Defined() {
			hook = hooks
		}
	}

	// Persistence
	var recorder simulation.RunRecorder
	var unlocked []string
	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		repo := postgres.NewSaveRepository(pool.DB())
		for _, id := range strings.Split(*unlock, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := catalog.Get(id); !ok {
				logger.Fatal("unlocking unknown weapon", zap.String("weapon", id))
			}
			if err := repo.Unlock(ctx, cfg.Simulation.ProfileID, postgres.UnlockWeapon, id); err != nil {
				logger.Fatal("unlocking weapon", zap.String("weapon", id), zap.Error(err))
			}
			logger.Info("weapon unlocked", zap.String("weapon", id))
		}
		save, err := repo.Load(ctx, cfg.Simulation.ProfileID)
		if err != nil {
			logger.Fatal("loading save data", zap.Error(err))
		}
		logger.Info("save data loaded",
			zap.String("profile", save.ProfileID),
			zap.Int("high_score", save.HighScore),
			zap.Int("games_played", save.GamesPlayed),
			zap.Strings("unlocked_weapons", save.UnlockedWeapons),
		)
		recent, err := repo.RecentRuns(ctx, save.ProfileID, 5)
		if err != nil {
			logger.Fatal("loading run history", zap.Error(err))
		}
		for _, run := range recent {
			logger.Debug("previous run",
				zap.String("outcome", run.Outcome),
				zap.Int("score", run.Score),
				zap.Int("kills", run.Kills),
				zap.Time("ended_at", run.EndedAt),
			)
		}
		unlocked = save.UnlockedWeapons
		recorder = repo
	} else if *unlock != "" {
		logger.Warn("ignoring -unlock: database disabled")
	}

	// Session
	origin := targeting.Point{X: cfg.Simulation.PlayerX, Y: cfg.Simulation.PlayerY}
	session := combat.NewSession(origin, simulation.SessionConfig(cfg.Combat, hook), logger)
	defer session.Close()

	starting := cfg.Simulation.StartingWeapons
	if len(starting) == 0 {
		if all := catalog.All(); len(all) > 0 {
			starting = []string{all[0].ID}
		}
	}
	starting = simulation.Loadout(catalog, starting, unlocked)
	if err := simulation.Equip(session, catalog, starting); err != nil {
		logger.Fatal("equipping starting weapons", zap.Error(err))
	}

	events := observability.AttachEventLog(session.Bus, logger)
	sim := simulation.NewSimulator(session, wave, defs, simulation.Params{
		RunDuration:   float64(cfg.Simulation.RunDuration.Milliseconds()),
		ContactRadius: cfg.Simulation.ContactRadius,
	}, logger)
	defer sim.Close()

	svc := simulation.NewService(sim, session, cfg.Simulation, recorder, logger)
	lc := server.NewLifecycle(logger)
	lc.Add("simulation", svc)

	logger.Info("simulator ready",
		zap.String("session", session.ID.String()),
		zap.Strings("weapons", session.Weapons.IDs()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Error("simulation failed", zap.Error(err))
	}

	res, _ := svc.Result()
	logger.Info("run summary", append([]zap.Field{
		zap.Stringer("outcome", res.Outcome),
		zap.Float64("survival_ms", res.SurvivalMs),
		zap.Int("score", res.Score),
		zap.Int("kills", res.Kills),
	}, events.Summary()...)...)
	events.Detach()
}
