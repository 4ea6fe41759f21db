package simulation

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/outbreak/internal/game/enemy"
	"github.com/cory-johannsen/outbreak/internal/game/targeting"
)

// Spawn places Count enemies of one definition at a run time.
type Spawn struct {
	// At is the run time in milliseconds.
	At    float64 `yaml:"at"`
	Enemy string  `yaml:"enemy"`
	// Count defaults to 1.
	Count    int            `yaml:"count"`
	Position targeting.Vec2 `yaml:"position"`
	// Spread offsets the i-th enemy of the group by Spread*i.
	Spread targeting.Vec2 `yaml:"spread"`
	// Velocity, in units per second, overrides the default of heading at the
	// player with the definition's speed.
	Velocity *targeting.Vec2 `yaml:"velocity"`
}

// Wave is an authored spawn schedule.
type Wave struct {
	Name   string  `yaml:"name"`
	Spawns []Spawn `yaml:"spawns"`
}

// Validate checks every spawn against defs and reports all violations.
//
// Postcondition: Returns nil iff every spawn names a known enemy, At >= 0 and
// Count >= 0.
func (w *Wave) Validate(defs map[string]*enemy.Def) error {
	var errs []error
	for i, s := range w.Spawns {
		if _, ok := defs[s.Enemy]; !ok {
			errs = append(errs, fmt.Errorf("spawn %d: unknown enemy %q", i, s.Enemy))
		}
		if s.At < 0 {
			errs = append(errs, fmt.Errorf("spawn %d: at must be >= 0, got %g", i, s.At))
		}
		if s.Count < 0 {
			errs = append(errs, fmt.Errorf("spawn %d: count must be >= 0, got %d", i, s.Count))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("wave %q: %w", w.Name, errors.Join(errs...))
}

// LoadWave reads a wave from path, applies defaults, and orders spawns by
// time. Spawns sharing a time keep their file order.
//
// Postcondition: Returns a parsed wave or an error; unknown fields are rejected.
func LoadWave(path string) (*Wave, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wave %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var w Wave
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("parsing wave %q: %w", path, err)
	}
	for i := range w.Spawns {
		if w.Spawns[i].Count == 0 {
			w.Spawns[i].Count = 1
		}
	}
	sort.SliceStable(w.Spawns, func(i, j int) bool { return w.Spawns[i].At < w.Spawns[j].At })
	return &w, nil
}
