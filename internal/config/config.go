// Package config provides Viper-based configuration loading for the combat simulator.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Targeting policy names accepted by CombatConfig.Targeting.
const (
	TargetingPerWeapon = "per_weapon"
	TargetingShared    = "shared"
)

// DatabaseConfig holds PostgreSQL connection settings for save data.
type DatabaseConfig struct {
	// Enabled turns save-data persistence on. When false no connection is made.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// CombatConfig holds the tunables of the combat core.
type CombatConfig struct {
	// MaxHealth is the controlled character's starting and maximum health.
	MaxHealth int `mapstructure:"max_health"`
	// InvulnerabilityMs is the damage-immunity window opened by each hit, in simulation milliseconds.
	InvulnerabilityMs float64 `mapstructure:"invulnerability_ms"`
	// Targeting selects which range governs acquisition: "per_weapon" or "shared".
	Targeting string `mapstructure:"targeting"`
	// AcquisitionRange is the shared range used when Targeting is "shared".
	AcquisitionRange float64 `mapstructure:"acquisition_range"`
	// MaxWeaponSlots caps the number of equipped weapons; 0 means unlimited.
	MaxWeaponSlots int `mapstructure:"max_weapon_slots"`
}

// SimulationConfig holds the headless host loop settings.
type SimulationConfig struct {
	// FrameInterval is the wall-clock period between frames.
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	// DeltaMs is the fixed simulation time advanced per frame.
	DeltaMs float64 `mapstructure:"delta_ms"`
	// RunDuration is the survival time after which the run is won.
	RunDuration time.Duration `mapstructure:"run_duration"`
	// ContactRadius is the distance at which an enemy touches the player.
	ContactRadius float64 `mapstructure:"contact_radius"`
	PlayerX       float64 `mapstructure:"player_x"`
	PlayerY       float64 `mapstructure:"player_y"`
	// ProfileID identifies the save profile the run is recorded against.
	ProfileID string `mapstructure:"profile_id"`
	// StartingWeapons lists weapon ids equipped at the start of each run.
	StartingWeapons []string `mapstructure:"starting_weapons"`
}

// ContentConfig holds the locations of YAML and Lua content.
type ContentConfig struct {
	WeaponsDir string `mapstructure:"weapons_dir"`
	EnemiesDir string `mapstructure:"enemies_dir"`
	WavesFile  string `mapstructure:"waves_file"`
	// ScriptsDir holds weapon Lua scripts; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Combat     CombatConfig     `mapstructure:"combat"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Content    ContentConfig    `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.MaxHealth < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_health must be >= 1, got %d", c.MaxHealth))
	}
	if c.InvulnerabilityMs < 0 {
		errs = append(errs, fmt.Sprintf("combat.invulnerability_ms must be >= 0, got %g", c.InvulnerabilityMs))
	}
	if c.Targeting != TargetingPerWeapon && c.Targeting != TargetingShared {
		errs = append(errs, fmt.Sprintf("combat.targeting must be one of [%s, %s], got %q", TargetingPerWeapon, TargetingShared, c.Targeting))
	}
	if c.AcquisitionRange < 0 {
		errs = append(errs, fmt.Sprintf("combat.acquisition_range must be >= 0, got %g", c.AcquisitionRange))
	}
	if c.MaxWeaponSlots < 0 {
		errs = append(errs, fmt.Sprintf("combat.max_weapon_slots must be >= 0, got %d", c.MaxWeaponSlots))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.FrameInterval <= 0 {
		errs = append(errs, "simulation.frame_interval must be positive")
	}
	if s.DeltaMs <= 0 {
		errs = append(errs, fmt.Sprintf("simulation.delta_ms must be > 0, got %g", s.DeltaMs))
	}
	if s.RunDuration <= 0 {
		errs = append(errs, "simulation.run_duration must be positive")
	}
	if s.ContactRadius < 0 {
		errs = append(errs, fmt.Sprintf("simulation.contact_radius must be >= 0, got %g", s.ContactRadius))
	}
	if s.ProfileID == "" {
		errs = append(errs, "simulation.profile_id must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	if c.WeaponsDir == "" {
		return errors.New("content.weapons_dir must not be empty")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with OUTBREAK_ prefix
	v.SetEnvPrefix("OUTBREAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "outbreak")
	v.SetDefault("database.password", "outbreak")
	v.SetDefault("database.name", "outbreak")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("combat.max_health", 100)
	v.SetDefault("combat.invulnerability_ms", 1000)
	v.SetDefault("combat.targeting", TargetingPerWeapon)
	v.SetDefault("combat.acquisition_range", 300)
	v.SetDefault("combat.max_weapon_slots", 6)

	v.SetDefault("simulation.frame_interval", "16ms")
	v.SetDefault("simulation.delta_ms", 16)
	v.SetDefault("simulation.run_duration", "20m")
	v.SetDefault("simulation.contact_radius", 24)
	v.SetDefault("simulation.player_x", 960)
	v.SetDefault("simulation.player_y", 540)
	v.SetDefault("simulation.profile_id", "local")

	v.SetDefault("content.weapons_dir", "content/weapons")
	v.SetDefault("content.enemies_dir", "content/enemies")
	v.SetDefault("content.waves_file", "content/waves/default.yaml")
	v.SetDefault("content.scripts_dir", "content/scripts/weapons")
}
