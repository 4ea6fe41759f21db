// Package enemy provides hostile definitions loaded from YAML and the live
// instances weapons target.
package enemy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/outbreak/internal/game/combat"
	"github.com/cory-johannsen/outbreak/internal/game/weapon"
)

// Behavior names a movement pattern.
type Behavior string

const (
	BehaviorDirect Behavior = "direct"
	BehaviorBurst  Behavior = "burst"
	BehaviorSplit  Behavior = "split"
	BehaviorAttach Behavior = "attach"
)

// Valid reports whether b is a known behavior.
func (b Behavior) Valid() bool {
	switch b {
	case BehaviorDirect, BehaviorBurst, BehaviorSplit, BehaviorAttach:
		return true
	}
	return false
}

// Telegraph describes the warning shown before an attack.
type Telegraph struct {
	Enabled      bool    `yaml:"enabled"`
	Duration     float64 `yaml:"duration"`
	VisualEffect string  `yaml:"visual_effect"`
}

// Special holds behavior-specific tuning.
type Special struct {
	SplitCount     int     `yaml:"split_count"`
	BurstSpeed     float64 `yaml:"burst_speed"`
	AttachDuration float64 `yaml:"attach_duration"`
}

// Def defines a hostile archetype.
type Def struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Health   float64  `yaml:"health"`
	Speed    float64  `yaml:"speed"`  // units per second
	Damage   int      `yaml:"damage"` // contact damage
	Behavior Behavior `yaml:"behavior"`
	// SpawnWeight biases random wave generation; authored waves ignore it.
	SpawnWeight float64 `yaml:"spawn_weight"`
	// FirstAppearance is the earliest run time, in milliseconds, this enemy may spawn.
	FirstAppearance float64            `yaml:"first_appearance"`
	Resistances     combat.Resistances `yaml:"resistances"`
	Telegraph       *Telegraph         `yaml:"telegraph"`
	Special         *Special           `yaml:"special_properties"`
}

// Validate checks the definition and reports every violation.
//
// Precondition: d must not be nil.
// Postcondition: Returns nil iff the definition is usable.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if d.Health <= 0 {
		errs = append(errs, fmt.Errorf("health must be > 0, got %g", d.Health))
	}
	if d.Speed < 0 {
		errs = append(errs, fmt.Errorf("speed must be >= 0, got %g", d.Speed))
	}
	if d.Damage < 0 {
		errs = append(errs, fmt.Errorf("damage must be >= 0, got %d", d.Damage))
	}
	if d.Behavior != "" && !d.Behavior.Valid() {
		errs = append(errs, fmt.Errorf("unknown behavior %q", d.Behavior))
	}
	if d.SpawnWeight < 0 {
		errs = append(errs, fmt.Errorf("spawn_weight must be >= 0, got %g", d.SpawnWeight))
	}
	for _, t := range []weapon.DamageType{weapon.DamageViral, weapon.DamageToxic, weapon.DamagePhysical} {
		if pct := d.Resistances.For(t); pct < 0 || pct > 100 {
			errs = append(errs, fmt.Errorf("resistance %s must be in [0,100], got %g", t, pct))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("enemy %q: %w", d.ID, errors.Join(errs...))
}

// LoadDefFromBytes parses a single definition from raw YAML bytes.
//
// Postcondition: Returns a validated *Def, or an error.
func LoadDefFromBytes(data []byte) (*Def, error) {
	var d Def
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing enemy YAML: %w", err)
	}
	if d.Behavior == "" {
		d.Behavior = BehaviorDirect
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadDefs reads all *.yaml files in dir, keyed by id.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns every definition or the first error; ids are unique.
func LoadDefs(dir string) (map[string]*Def, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading enemy dir %q: %w", dir, err)
	}
	defs := make(map[string]*Def)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		d, err := LoadDefFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if _, dup := defs[d.ID]; dup {
			return nil, fmt.Errorf("loading %q: duplicate enemy id %q", path, d.ID)
		}
		defs[d.ID] = d
	}
	return defs, nil
}
