package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/outbreak/internal/config"
	"github.com/cory-johannsen/outbreak/internal/game/combat"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
	"github.com/cory-johannsen/outbreak/internal/storage/postgres"
)

// RunRecorder stores finished runs. *postgres.SaveRepository satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run postgres.RunRecord) (uuid.UUID, error)
}

// SessionConfig maps configuration onto combat session parameters.
//
// Precondition: cfg must pass config validation.
func SessionConfig(cfg config.CombatConfig, hook combat.DamageHook) combat.SessionConfig {
	policy := combat.TargetPerWeapon
	if cfg.Targeting == config.TargetingShared {
		policy = combat.TargetShared
	}
	return combat.SessionConfig{
		MaxHealth:             cfg.MaxHealth,
		InvulnerabilityWindow: cfg.InvulnerabilityMs,
		Registry: combat.Options{
			Targeting:   policy,
			SharedRange: cfg.AcquisitionRange,
			MaxSlots:    cfg.MaxWeaponSlots,
			Hook:        hook,
		},
	}
}

// Equip equips each id from catalog in order.
//
// Postcondition: Returns an error naming the first unknown id or rejected equip.
func Equip(s *combat.Session, catalog *weapon.Catalog, ids []string) error {
	for _, id := range ids {
		def, ok := catalog.Get(id)
		if !ok {
			return fmt.Errorf("simulation: unknown starting weapon %q", id)
		}
		if err := s.Weapons.Equip(def); err != nil {
			return fmt.Errorf("simulation: equipping %q: %w", id, err)
		}
	}
	return nil
}

// Loadout returns the weapons a run starts with: the configured starting ids
// followed by every unlocked id the catalog knows, without duplicates.
// Unlocked ids missing from the catalog are skipped.
func Loadout(catalog *weapon.Catalog, starting, unlocked []string) []string {
	seen := make(map[string]bool, len(starting)+len(unlocked))
	out := make([]string, 0, len(starting)+len(unlocked))
	for _, id := range starting {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range unlocked {
		if seen[id] {
			continue
		}
		if _, ok := catalog.Get(id); !ok {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Service runs one simulation under a server lifecycle and records its result.
type Service struct {
	sim       *Simulator
	session   *combat.Session
	cfg       config.SimulationConfig
	recorder  RunRecorder
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	result    Result
	completed bool
}

// NewService wraps sim. recorder may be nil, in which case results are only logged.
//
// Precondition: sim and session must be non-nil; cfg.FrameInterval > 0.
func NewService(sim *Simulator, session *combat.Session, cfg config.SimulationConfig, recorder RunRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		sim:      sim,
		session:  session,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start runs the simulation until it finishes or Stop is called, then
// records the result.
//
// Postcondition: Returns nil for a finished or stopped run; returns the
// recorder's error if the result could not be stored.
func (s *Service) Start() error {
	defer close(s.done)
	start := time.Now()
	res, err := s.sim.Run(s.ctx, s.cfg.FrameInterval, s.cfg.DeltaMs)
	s.mu.Lock()
	s.result = res
	s.completed = true
	s.mu.Unlock()
	s.logger.Info("simulation ended",
		zap.Stringer("outcome", res.Outcome),
		zap.Int("score", res.Score),
		zap.Int("kills", res.Kills),
		zap.Int("spawned", res.Spawned),
		zap.Duration("wall", time.Since(start)),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return s.record(res)
}

func (s *Service) record(res Result) error {
	if s.recorder == nil {
		return nil
	}
	// the run context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := s.recorder.RecordRun(ctx, postgres.RunRecord{
		ProfileID:  s.cfg.ProfileID,
		SessionID:  s.session.ID,
		Outcome:    res.Outcome.String(),
		Score:      res.Score,
		SurvivalMs: int64(res.SurvivalMs),
		Kills:      res.Kills,
	})
	if err != nil {
		return fmt.Errorf("simulation: recording run: %w", err)
	}
	s.logger.Info("run recorded", zap.String("run_id", id.String()))
	return nil
}

// Stop aborts a running simulation and waits for Start to return.
//
// Precondition: Start has been called or will be called.
func (s *Service) Stop() {
	s.cancel()
	<-s.done
}

// Result returns the final result and whether the run has ended.
func (s *Service) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.completed
}

// Done is closed when Start returns.
func (s *Service) Done() <-chan struct{} { return s.done }
