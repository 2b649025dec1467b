package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skillrank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 32, config.Elo.KFactor)
	assert.Equal(t, 200, config.Elo.Beta)
	assert.Equal(t, 1200, config.Elo.InitialRating)
	assert.Equal(t, 25.0, config.Skill.Mu)
	assert.InDelta(t, 25.0/3, config.Skill.Sigma, 1e-12)
	assert.Equal(t, 50, config.Tournament.MinSnippetLength)
	assert.Equal(t, 100, config.Tournament.MaxSnippetLength)
	assert.Equal(t, 2, config.Tournament.Stride)
	assert.Equal(t, 10, config.Tournament.Rounds)
	assert.Equal(t, 3, config.Tournament.MatchesPerRound)
	assert.Equal(t, uint64(42), config.Tournament.Seed)
	assert.Equal(t, "info", config.Log.Level)
	assert.False(t, config.Metrics.Enabled)
	assert.Empty(t, config.Journal.Directory)
	assert.Equal(t, "csv", config.Export.Format)

	assert.NoError(t, config.Validate())

	t.Run("converters", func(t *testing.T) {
		assert.Equal(t, elo.DefaultConfig(), config.CalculatorConfig())
		assert.Equal(t, skill.DefaultConfig(), config.EngineConfig())
		assert.Equal(t, tournament.DefaultSimulatorConfig(), config.SimulatorConfig())
	})
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero k-factor", func(c *Config) { c.Elo.KFactor = 0 }, ErrInvalidEloConfig},
		{"huge k-factor", func(c *Config) { c.Elo.KFactor = 500 }, ErrInvalidEloConfig},
		{"zero beta", func(c *Config) { c.Elo.Beta = 0 }, ErrInvalidEloConfig},
		{"negative initial rating", func(c *Config) { c.Elo.InitialRating = -1 }, ErrInvalidEloConfig},
		{"zero sigma", func(c *Config) { c.Skill.Sigma = 0 }, ErrInvalidSkillConfig},
		{"draw probability of one", func(c *Config) { c.Skill.DrawProbability = 1 }, ErrInvalidSkillConfig},
		{"max below min", func(c *Config) { c.Tournament.MaxSnippetLength = 10 }, ErrInvalidTournamentConfig},
		{"zero stride", func(c *Config) { c.Tournament.Stride = 0 }, ErrInvalidTournamentConfig},
		{"zero rounds", func(c *Config) { c.Tournament.Rounds = 0 }, ErrInvalidTournamentConfig},
		{"zero matches", func(c *Config) { c.Tournament.MatchesPerRound = 0 }, ErrInvalidTournamentConfig},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogConfig},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, ErrInvalidMetricsConfig},
		{"unknown export format", func(c *Config) { c.Export.Format = "xml" }, ErrInvalidExportConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		config, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), *config)
	})

	t.Run("full file", func(t *testing.T) {
		path := writeConfig(t, `
elo:
  k_factor: 24
  beta: 400
  initial_rating: 1500
skill:
  mu: 30
  sigma: 5
  beta: 2.5
  tau: 0.05
  draw_probability: 0.2
  sigma_floor: 0.01
tournament:
  min_snippet_length: 10
  max_snippet_length: 20
  stride: 1
  rounds: 4
  matches_per_round: 5
  seed: 7
log:
  level: debug
metrics:
  enabled: true
  addr: ":9999"
journal:
  directory: /var/lib/skillrank
export:
  format: json
  include_audit: true
`)
		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 24, config.Elo.KFactor)
		assert.Equal(t, 400, config.Elo.Beta)
		assert.Equal(t, 1500, config.EngineConfig().EloInit)
		assert.Equal(t, 30.0, config.Skill.Mu)
		assert.Equal(t, 0.2, config.Skill.DrawProbability)
		assert.Equal(t, 10, config.Tournament.MinSnippetLength)
		assert.Equal(t, uint64(7), config.SimulatorConfig().Seed)
		assert.Equal(t, 5, config.Tournament.MatchesPerRound)
		assert.Equal(t, "debug", config.Log.Level)
		assert.True(t, config.Metrics.Enabled)
		assert.Equal(t, ":9999", config.Metrics.Addr)
		assert.Equal(t, "/var/lib/skillrank", config.Journal.Directory)
		assert.Equal(t, "json", config.Export.Format)
		assert.True(t, config.Export.IncludeAudit)
		// not in the file, so the default survives
		assert.True(t, config.Export.IncludeStats)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "elo:\n  k_factor: 16\n")
		config, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 16, config.Elo.KFactor)
		assert.Equal(t, 200, config.Elo.Beta)
		assert.Equal(t, 50, config.Tournament.MinSnippetLength)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("broken YAML", func(t *testing.T) {
		path := writeConfig(t, "elo: [k_factor\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrConfigParseError)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "tournament:\n  stride: 0\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidTournamentConfig)
	})
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
elo:
  k_factor: 24
  beta: 300
tournament:
  max_snippet_length: 80
`)

	t.Setenv("SKILLRANK_ELO__K_FACTOR", "40")
	t.Setenv("SKILLRANK_TOURNAMENT__SEED", "1234")
	t.Setenv("SKILLRANK_LOG__LEVEL", "warn")
	t.Setenv("SKILLRANK_METRICS__ENABLED", "true")

	config, err := Load(path)
	require.NoError(t, err)

	// env beats file
	assert.Equal(t, 40, config.Elo.KFactor)
	// file beats default
	assert.Equal(t, 300, config.Elo.Beta)
	assert.Equal(t, 80, config.Tournament.MaxSnippetLength)
	// env beats default
	assert.Equal(t, uint64(1234), config.Tournament.Seed)
	assert.Equal(t, "warn", config.Log.Level)
	assert.True(t, config.Metrics.Enabled)
	// untouched default
	assert.Equal(t, 2, config.Tournament.Stride)

	t.Run("invalid env value", func(t *testing.T) {
		t.Setenv("SKILLRANK_ELO__BETA", "-5")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidEloConfig)
	})
}

func TestSaveToFile(t *testing.T) {
	config := DefaultConfig()
	config.Elo.KFactor = 20
	config.Tournament.Seed = 99
	config.Export.Format = "yaml"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, config.SaveToFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "k_factor: 20")
	assert.Contains(t, string(content), "min_snippet_length: 50")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, config, *loaded)

	err = config.SaveToFile(filepath.Join(t.TempDir(), "missing", "dir", "x.yaml"))
	assert.Error(t, err)
}
