package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnlockKind selects which unlock list an Unlock call extends.
type UnlockKind string

const (
	UnlockWeapon UnlockKind = "weapon"
	UnlockSkill  UnlockKind = "skill"
)

func (k UnlockKind) column() (string, error) {
	switch k {
	case UnlockWeapon:
		return "unlocked_weapons", nil
	case UnlockSkill:
		return "unlocked_skills", nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnlockKind, string(k))
}

var (
	// ErrInvalidUnlockKind is returned for an UnlockKind other than weapon or skill.
	ErrInvalidUnlockKind = errors.New("invalid unlock kind")
	// ErrInvalidRun is returned when a RunRecord fails validation.
	ErrInvalidRun = errors.New("invalid run record")
)

// SaveData is the persistent progression of one profile.
type SaveData struct {
	ProfileID       string
	UnlockedWeapons []string
	UnlockedSkills  []string
	HighScore       int
	// TotalPlaytime is cumulative survival time in milliseconds.
	TotalPlaytime int64
	GamesPlayed   int
	UpdatedAt     time.Time
}

// NewSaveData returns the state of a profile that has never played.
func NewSaveData(profileID string) SaveData {
	return SaveData{ProfileID: profileID, UnlockedWeapons: []string{}, UnlockedSkills: []string{}}
}

// Unlocked reports whether id is present in the kind's unlock list.
func (s SaveData) Unlocked(kind UnlockKind, id string) bool {
	switch kind {
	case UnlockWeapon:
		return slices.Contains(s.UnlockedWeapons, id)
	case UnlockSkill:
		return slices.Contains(s.UnlockedSkills, id)
	}
	return false
}

// RunRecord is the result of one finished run.
type RunRecord struct {
	ProfileID  string
	SessionID  uuid.UUID
	Outcome    string
	Score      int
	SurvivalMs int64
	Kills      int
	EndedAt    time.Time
}

// Validate reports whether r can be stored.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidRun.
func (r RunRecord) Validate() error {
	var errs []error
	if r.ProfileID == "" {
		errs = append(errs, errors.New("profile_id must not be empty"))
	}
	if r.SessionID == uuid.Nil {
		errs = append(errs, errors.New("session_id must be set"))
	}
	switch r.Outcome {
	case "victory", "defeat", "aborted":
	default:
		errs = append(errs, fmt.Errorf("unknown outcome %q", r.Outcome))
	}
	if r.Score < 0 || r.SurvivalMs < 0 || r.Kills < 0 {
		errs = append(errs, errors.New("score, survival_ms and kills must be >= 0"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRun, errors.Join(errs...))
}

// SaveRepository persists SaveData and run history.
type SaveRepository struct {
	db *pgxpool.Pool
}

// NewSaveRepository creates a SaveRepository backed by db.
//
// Precondition: db must be a valid, open connection pool.
func NewSaveRepository(db *pgxpool.Pool) *SaveRepository {
	return &SaveRepository{db: db}
}

// Load returns the save data for profileID. A profile with no row yields
// NewSaveData(profileID); nothing is written.
//
// Precondition: profileID must be non-empty.
func (r *SaveRepository) Load(ctx context.Context, profileID string) (SaveData, error) {
	s := SaveData{ProfileID: profileID}
	err := r.db.QueryRow(ctx,
		`SELECT unlocked_weapons, unlocked_skills, high_score, total_playtime, games_played, updated_at
		 FROM save_data WHERE profile_id = $1`,
		profileID,
	).Scan(&s.UnlockedWeapons, &s.UnlockedSkills, &s.HighScore, &s.TotalPlaytime, &s.GamesPlayed, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NewSaveData(profileID), nil
		}
		return SaveData{}, fmt.Errorf("querying save data: %w", err)
	}
	return s, nil
}

// Unlock adds id to the profile's weapon or skill list, creating the profile
// if needed. Unlocking an id twice is a no-op.
//
// Precondition: profileID and id must be non-empty.
// Postcondition: Load(profileID).Unlocked(kind, id) is true.
func (r *SaveRepository) Unlock(ctx context.Context, profileID string, kind UnlockKind, id string) error {
	col, err := kind.column()
	if err != nil {
		return err
	}
	q := fmt.Sprintf(
		`INSERT INTO save_data (profile_id, %[1]s) VALUES ($1, ARRAY[$2::text])
		 ON CONFLICT (profile_id) DO UPDATE SET
		   %[1]s = CASE WHEN $2::text = ANY(save_data.%[1]s) THEN save_data.%[1]s
		                ELSE array_append(save_data.%[1]s, $2::text) END,
		   updated_at = NOW()`, col)
	if _, err := r.db.Exec(ctx, q, profileID, id); err != nil {
		return fmt.Errorf("unlocking %s %q: %w", kind, id, err)
	}
	return nil
}

// RecordRun stores one run and folds it into the profile aggregates in a
// single transaction.
//
// Precondition: run must pass Validate.
// Postcondition: Returns the new run_history id; GamesPlayed is incremented,
// TotalPlaytime grows by SurvivalMs, HighScore is the max of old and Score.
func (r *SaveRepository) RecordRun(ctx context.Context, run RunRecord) (uuid.UUID, error) {
	if err := run.Validate(); err != nil {
		return uuid.Nil, err
	}
	if run.EndedAt.IsZero() {
		run.EndedAt = time.Now()
	}
	id := uuid.New()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO save_data (profile_id, high_score, total_playtime, games_played)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (profile_id) DO UPDATE SET
		   high_score     = GREATEST(save_data.high_score, EXCLUDED.high_score),
		   total_playtime = save_data.total_playtime + EXCLUDED.total_playtime,
		   games_played   = save_data.games_played + 1,
		   updated_at     = NOW()`,
		run.ProfileID, run.Score, run.SurvivalMs,
	); err != nil {
		return uuid.Nil, fmt.Errorf("updating save data: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO run_history (id, profile_id, session_id, outcome, score, survival_ms, kills, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, run.ProfileID, run.SessionID, run.Outcome, run.Score, run.SurvivalMs, run.Kills, run.EndedAt,
	); err != nil {
		return uuid.Nil, fmt.Errorf("inserting run history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs for profileID, newest first.
//
// Precondition: limit > 0.
func (r *SaveRepository) RecentRuns(ctx context.Context, profileID string, limit int) ([]RunRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT session_id, outcome, score, survival_ms, kills, ended_at
		 FROM run_history WHERE profile_id = $1
		 ORDER BY ended_at DESC LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rr := RunRecord{ProfileID: profileID}
		if err := rows.Scan(&rr.SessionID, &rr.Outcome, &rr.Score, &rr.SurvivalMs, &rr.Kills, &rr.EndedAt); err != nil {
			return nil, fmt.Errorf("scanning run history: %w", err)
		}
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run history: %w", err)
	}
	return out, nil
}
