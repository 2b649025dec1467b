// Package data provides configuration management and input loading for the skillrank application.
// It layers defaults, a YAML file and environment variables into a single Config, and reads the
// candidate CSV files and result tallies consumed by the rating commands.
package data

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/journal"
	"github.com/pashagolub/skillrank/pkg/logger"
	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

// EnvPrefix marks environment variables that override configuration.
// Sections are separated by a double underscore: SKILLRANK_ELO__K_FACTOR.
const EnvPrefix = "SKILLRANK_"

// Error types for configuration validation
var (
	ErrInvalidEloConfig        = errors.New("invalid Elo configuration")
	ErrInvalidSkillConfig      = errors.New("invalid skill configuration")
	ErrInvalidTournamentConfig = errors.New("invalid tournament configuration")
	ErrInvalidLogConfig        = errors.New("invalid log configuration")
	ErrInvalidMetricsConfig    = errors.New("invalid metrics configuration")
	ErrInvalidExportConfig     = errors.New("invalid export configuration")
	ErrConfigNotFound          = errors.New("configuration file not found")
	ErrConfigParseError        = errors.New("failed to parse configuration file")
)

// Config is the top-level configuration of a rating run
type Config struct {
	Elo        EloConfig        `koanf:"elo" yaml:"elo" json:"elo"`
	Skill      SkillConfig      `koanf:"skill" yaml:"skill" json:"skill"`
	Tournament TournamentConfig `koanf:"tournament" yaml:"tournament" json:"tournament"`
	Log        LogConfig        `koanf:"log" yaml:"log" json:"log"`
	Metrics    MetricsConfig    `koanf:"metrics" yaml:"metrics" json:"metrics"`
	Journal    JournalConfig    `koanf:"journal" yaml:"journal" json:"journal"`
	Export     ExportConfig     `koanf:"export" yaml:"export" json:"export"`
}

// EloConfig holds settings for the scalar Elo track
type EloConfig struct {
	KFactor       int `koanf:"k_factor" yaml:"k_factor" json:"k_factor"`                   // Maximum change per game (default 32)
	Beta          int `koanf:"beta" yaml:"beta" json:"beta"`                               // Logistic spread (default 200)
	InitialRating int `koanf:"initial_rating" yaml:"initial_rating" json:"initial_rating"` // Starting Elo (default 1200)
}

// SkillConfig holds the Bayesian model parameters
type SkillConfig struct {
	Mu              float64 `koanf:"mu" yaml:"mu" json:"mu"`
	Sigma           float64 `koanf:"sigma" yaml:"sigma" json:"sigma"`
	Beta            float64 `koanf:"beta" yaml:"beta" json:"beta"`
	Tau             float64 `koanf:"tau" yaml:"tau" json:"tau"`
	DrawProbability float64 `koanf:"draw_probability" yaml:"draw_probability" json:"draw_probability"`
	SigmaFloor      float64 `koanf:"sigma_floor" yaml:"sigma_floor" json:"sigma_floor"`
}

// TournamentConfig holds simulator and schedule settings
type TournamentConfig struct {
	MinSnippetLength int    `koanf:"min_snippet_length" yaml:"min_snippet_length" json:"min_snippet_length"`
	MaxSnippetLength int    `koanf:"max_snippet_length" yaml:"max_snippet_length" json:"max_snippet_length"`
	Stride           int    `koanf:"stride" yaml:"stride" json:"stride"`
	Rounds           int    `koanf:"rounds" yaml:"rounds" json:"rounds"`
	MatchesPerRound  int    `koanf:"matches_per_round" yaml:"matches_per_round" json:"matches_per_round"`
	Seed             uint64 `koanf:"seed" yaml:"seed" json:"seed"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level string `koanf:"level" yaml:"level" json:"level"` // debug, info, warn or error
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr" json:"addr"` // Listen address of the /metrics endpoint
}

// JournalConfig holds audit trail settings. An empty directory disables the journal.
type JournalConfig struct {
	Directory string `koanf:"directory" yaml:"directory" json:"directory"`
}

// ExportConfig holds output format settings
type ExportConfig struct {
	Format       string `koanf:"format" yaml:"format" json:"format"` // csv, json, yaml or text
	IncludeStats bool   `koanf:"include_stats" yaml:"include_stats" json:"include_stats"`
	IncludeAudit bool   `koanf:"include_audit" yaml:"include_audit" json:"include_audit"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Elo:        DefaultEloConfig(),
		Skill:      DefaultSkillConfig(),
		Tournament: DefaultTournamentConfig(),
		Log:        LogConfig{Level: "info"},
		Metrics:    MetricsConfig{Enabled: false, Addr: ":9090"},
		Journal:    JournalConfig{},
		Export:     ExportConfig{Format: string(journal.FormatCSV), IncludeStats: true},
	}
}

// DefaultEloConfig returns Elo calculation defaults
func DefaultEloConfig() EloConfig {
	return EloConfig{
		KFactor:       elo.DefaultKFactor,
		Beta:          elo.DefaultBeta,
		InitialRating: skill.DefaultEloInit,
	}
}

// DefaultSkillConfig returns the standard Bayesian model parameters
func DefaultSkillConfig() SkillConfig {
	d := skill.DefaultConfig()
	return SkillConfig{
		Mu:              d.Mu,
		Sigma:           d.Sigma,
		Beta:            d.Beta,
		Tau:             d.Tau,
		DrawProbability: d.DrawProbability,
		SigmaFloor:      d.SigmaFloor,
	}
}

// DefaultTournamentConfig returns simulator and schedule defaults
func DefaultTournamentConfig() TournamentConfig {
	d := tournament.DefaultSimulatorConfig()
	return TournamentConfig{
		MinSnippetLength: d.MinSnippetLength,
		MaxSnippetLength: d.MaxSnippetLength,
		Stride:           d.Stride,
		Rounds:           10,
		MatchesPerRound:  3,
		Seed:             d.Seed,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Elo.Validate(); err != nil {
		return fmt.Errorf("Elo config validation failed: %w", err)
	}

	if err := c.Skill.Validate(c.Elo.InitialRating); err != nil {
		return fmt.Errorf("skill config validation failed: %w", err)
	}

	if err := c.Tournament.Validate(); err != nil {
		return fmt.Errorf("tournament config validation failed: %w", err)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogConfig, err)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		return fmt.Errorf("%w: addr is required when metrics are enabled", ErrInvalidMetricsConfig)
	}

	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export config validation failed: %w", err)
	}

	return nil
}

// Validate checks that Elo configuration is valid
func (e *EloConfig) Validate() error {
	if e.KFactor <= 0 {
		return fmt.Errorf("%w: k_factor must be positive, got %d", ErrInvalidEloConfig, e.KFactor)
	}

	if e.KFactor > 100 {
		return fmt.Errorf("%w: k_factor %d is unusually high (typical range: 10-50)", ErrInvalidEloConfig, e.KFactor)
	}

	if e.Beta <= 0 {
		return fmt.Errorf("%w: beta must be positive, got %d", ErrInvalidEloConfig, e.Beta)
	}

	if e.InitialRating < 0 {
		return fmt.Errorf("%w: initial_rating must not be negative, got %d", ErrInvalidEloConfig, e.InitialRating)
	}

	return nil
}

// Validate checks the Bayesian parameters the same way the engine does
func (s *SkillConfig) Validate(eloInit int) error {
	if err := s.engineConfig(eloInit).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSkillConfig, err)
	}
	return nil
}

// Validate checks the snippet window and the schedule
func (t *TournamentConfig) Validate() error {
	if err := t.simulatorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTournamentConfig, err)
	}

	if t.Rounds <= 0 {
		return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidTournamentConfig, t.Rounds)
	}

	if t.MatchesPerRound <= 0 {
		return fmt.Errorf("%w: matches_per_round must be positive, got %d", ErrInvalidTournamentConfig, t.MatchesPerRound)
	}

	return nil
}

// Validate checks that export configuration is valid
func (e *ExportConfig) Validate() error {
	if _, err := journal.ParseExportFormat(e.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExportConfig, err)
	}
	return nil
}

// CalculatorConfig converts the Elo section for elo.NewCalculator
func (c *Config) CalculatorConfig() elo.Config {
	return elo.Config{KFactor: c.Elo.KFactor, Beta: c.Elo.Beta}
}

// EngineConfig converts the skill section for skill.NewEngine
func (c *Config) EngineConfig() skill.Config {
	return c.Skill.engineConfig(c.Elo.InitialRating)
}

// SimulatorConfig converts the tournament section for tournament.NewSimulator
func (c *Config) SimulatorConfig() tournament.SimulatorConfig {
	return c.Tournament.simulatorConfig()
}

func (s *SkillConfig) engineConfig(eloInit int) skill.Config {
	return skill.Config{
		Mu:              s.Mu,
		Sigma:           s.Sigma,
		Beta:            s.Beta,
		Tau:             s.Tau,
		DrawProbability: s.DrawProbability,
		EloInit:         eloInit,
		SigmaFloor:      s.SigmaFloor,
	}
}

func (t *TournamentConfig) simulatorConfig() tournament.SimulatorConfig {
	return tournament.SimulatorConfig{
		MinSnippetLength: t.MinSnippetLength,
		MaxSnippetLength: t.MaxSnippetLength,
		Stride:           t.Stride,
		Seed:             t.Seed,
	}
}

// Load builds a Config by layering defaults, an optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. defaults (DefaultConfig)
//  2. file (YAML) if filename is not empty
//  3. env (prefix SKILLRANK_)
func Load(filename string) (*Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")

	if filename != "" {
		if _, err := os.Stat(filename); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, filename)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, filename, err)
		}
	}

	// SKILLRANK_TOURNAMENT__MAX_SNIPPET_LENGTH -> tournament.max_snippet_length
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
