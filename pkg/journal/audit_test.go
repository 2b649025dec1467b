package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

// Test helper functions
func setupTestAuditTrail(t *testing.T) (*AuditTrail, string) {
	t.Helper()

	tempDir := t.TempDir()
	audit, err := NewAuditTrail("test_run_123", tempDir)
	require.NoError(t, err)
	require.NotNil(t, audit)

	return audit, tempDir
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// runTournament plays a small round robin observed by the audit trail
func runTournament(t *testing.T, audit *AuditTrail) []tournament.Player[float64] {
	t.Helper()

	engine, err := skill.NewEngine(skill.DefaultConfig())
	require.NoError(t, err)
	sim, err := tournament.NewSimulator[float64](tournament.DefaultSimulatorConfig())
	require.NoError(t, err)
	tour, err := tournament.NewTournament(engine, sim, tournament.SumOracle[float64](),
		tournament.WithObserver[float64](audit))
	require.NoError(t, err)

	var players []tournament.Player[float64]
	for i, id := range []string{"alpha", "beta", "gamma"} {
		r, err := engine.CreateRating()
		require.NoError(t, err)
		players = append(players, tournament.Player[float64]{
			ID:        id,
			Candidate: constant(100, float64(3-i)),
			Rating:    r,
		})
	}
	players = append(players, tournament.Player[float64]{
		ID:        "short",
		Candidate: constant(5, 9),
		Rating:    players[0].Rating,
	})

	result, err := tour.RoundRobin(context.Background(), players, 1, 2)
	require.NoError(t, err)
	return result
}

func TestNewAuditTrail(t *testing.T) {
	tests := []struct {
		name        string
		runID       string
		expectError bool
	}{
		{
			name:        "valid run ID",
			runID:       "valid_run_123",
			expectError: false,
		},
		{
			name:        "empty run ID",
			runID:       "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()

			audit, err := NewAuditTrail(tt.runID, tempDir)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, audit)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, audit)
				assert.Equal(t, tt.runID, audit.runID)
				assert.True(t, audit.isInitialized)
				assert.Contains(t, audit.GetLogPath(), "audit_valid_run_123.jsonl")
				audit.Close()
			}
		})
	}
}

func TestAuditTrail_ObservesTournament(t *testing.T) {
	audit, _ := setupTestAuditTrail(t)
	defer audit.Close()

	runTournament(t, audit)
	require.NoError(t, audit.Err())

	stats, err := audit.GetStatistics()
	require.NoError(t, err)

	// 6 pairs: alpha-beta, alpha-gamma, beta-gamma rated, 3 involving short skipped
	assert.Equal(t, 1, stats.EventCounts[EventTournamentStarted])
	assert.Equal(t, 3, stats.EventCounts[EventMatchCompleted])
	assert.Equal(t, 6, stats.EventCounts[EventRatingUpdated])
	assert.Equal(t, 3, stats.EventCounts[EventMatchSkipped])
	assert.Equal(t, 1, stats.EventCounts[EventTournamentCompleted])
	assert.Equal(t, 14, stats.TotalEntries)
	assert.Equal(t, 1, stats.Tournaments)
	assert.Equal(t, uint64(14), audit.GetSequence())

	assert.NoError(t, audit.VerifyIntegrity())

	completed, err := audit.Query(QueryOptions{EventTypes: []AuditEventType{EventTournamentCompleted}})
	require.NoError(t, err)
	require.Len(t, completed.Entries, 1)
	ranking, ok := completed.Entries[0].Data["ranking"].([]any)
	require.True(t, ok)
	assert.Equal(t, "alpha", ranking[0])
}

func TestAuditTrail_Query(t *testing.T) {
	audit, _ := setupTestAuditTrail(t)
	defer audit.Close()
	runTournament(t, audit)

	t.Run("by player", func(t *testing.T) {
		history, err := audit.GetPlayerHistory("gamma")
		require.NoError(t, err)
		// two matches, two rating updates, one skip against short
		assert.Len(t, history, 5)
	})

	t.Run("by match", func(t *testing.T) {
		matches, err := audit.Query(QueryOptions{EventTypes: []AuditEventType{EventMatchCompleted}})
		require.NoError(t, err)
		require.Len(t, matches.Entries, 3)

		matchID := matches.Entries[0].Data["match_id"].(string)
		history, err := audit.GetMatchHistory(matchID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, EventMatchCompleted, history[0].EventType)
		assert.Equal(t, EventRatingUpdated, history[1].EventType)
		assert.Equal(t, "alpha", history[1].Data["player_id"])
		// two wins from 1200: 1216, then 1231
		assert.Equal(t, float64(31), history[1].Data["elo_delta"])
	})

	t.Run("by tournament", func(t *testing.T) {
		all, err := audit.Query(QueryOptions{})
		require.NoError(t, err)
		tournamentID := all.Entries[0].TournamentID

		same, err := audit.Query(QueryOptions{TournamentID: tournamentID})
		require.NoError(t, err)
		assert.Equal(t, all.TotalCount, same.TotalCount)

		none, err := audit.Query(QueryOptions{TournamentID: "unknown"})
		require.NoError(t, err)
		assert.Empty(t, none.Entries)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := audit.Query(QueryOptions{Limit: 5, Offset: 10})
		require.NoError(t, err)
		assert.Len(t, page.Entries, 4)
		assert.Equal(t, 14, page.TotalCount)
		assert.False(t, page.HasMore)

		page, err = audit.Query(QueryOptions{Limit: 5})
		require.NoError(t, err)
		assert.Len(t, page.Entries, 5)
		assert.True(t, page.HasMore)

		page, err = audit.Query(QueryOptions{Offset: 100})
		require.NoError(t, err)
		assert.Empty(t, page.Entries)
	})
}

func TestAuditTrail_VerifyIntegrity(t *testing.T) {
	t.Run("tampered entry is detected", func(t *testing.T) {
		audit, _ := setupTestAuditTrail(t)
		runTournament(t, audit)
		require.NoError(t, audit.Close())

		content, err := os.ReadFile(audit.GetLogPath())
		require.NoError(t, err)
		tampered := strings.Replace(string(content), `"player_id":"beta"`, `"player_id":"mallory"`, 1)
		require.NotEqual(t, string(content), tampered)
		require.NoError(t, os.WriteFile(audit.GetLogPath(), []byte(tampered), 0644))

		_, err = NewAuditTrail("test_run_123", filepath.Dir(audit.GetLogPath()))
		assert.ErrorIs(t, err, ErrAuditLogCorrupted)
	})

	t.Run("removed entry breaks the chain", func(t *testing.T) {
		audit, dir := setupTestAuditTrail(t)
		defer audit.Close()
		runTournament(t, audit)

		content, err := os.ReadFile(audit.GetLogPath())
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		shortened := strings.Join(append(lines[:3:3], lines[4:]...), "\n") + "\n"
		require.NoError(t, os.WriteFile(audit.GetLogPath(), []byte(shortened), 0644))

		assert.ErrorIs(t, audit.VerifyIntegrity(), ErrAuditLogCorrupted)
		_, err = NewAuditTrail("test_run_123", dir)
		assert.Error(t, err)
	})

	t.Run("garbage line is reported", func(t *testing.T) {
		audit, _ := setupTestAuditTrail(t)
		defer audit.Close()
		require.NoError(t, audit.LogEvent(EventTournamentStarted, "t1", map[string]any{"players": 2}))

		f, err := os.OpenFile(audit.GetLogPath(), os.O_APPEND|os.O_WRONLY, 0644)
		require.NoError(t, err)
		_, err = f.WriteString("{not json\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		assert.ErrorIs(t, audit.VerifyIntegrity(), ErrInvalidLogEntry)
	})
}

func TestAuditTrail_PersistenceAndRecovery(t *testing.T) {
	tempDir := t.TempDir()

	audit, err := NewAuditTrail("persist", tempDir)
	require.NoError(t, err)
	require.NoError(t, audit.LogEvent(EventTournamentStarted, "t1", map[string]any{"players": 3}))
	require.NoError(t, audit.LogEvent(EventTournamentCompleted, "t1", map[string]any{"completed": 3}))
	require.NoError(t, audit.Close())

	reopened, err := NewAuditTrail("persist", tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(2), reopened.GetSequence())
	require.NoError(t, reopened.LogEvent(EventTournamentStarted, "t2", map[string]any{"players": 4}))
	assert.NoError(t, reopened.VerifyIntegrity())

	stats, err := reopened.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 2, stats.Tournaments)
}

func TestAuditTrail_ClosedTrail(t *testing.T) {
	audit, _ := setupTestAuditTrail(t)
	require.NoError(t, audit.Close())

	assert.ErrorIs(t, audit.LogEvent(EventMatchSkipped, "t", nil), ErrNotInitialized)
	_, err := audit.Query(QueryOptions{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	// observer callbacks keep the first failure
	audit.MatchSkipped(context.Background(), tournament.MatchError{Err: errors.New("x")})
	assert.ErrorIs(t, audit.Err(), ErrNotInitialized)
	assert.ErrorIs(t, audit.Close(), ErrNotInitialized)
}

func TestAuditTrail_GauntletRecordsChallengerOnly(t *testing.T) {
	audit, _ := setupTestAuditTrail(t)
	defer audit.Close()

	audit.MatchCompleted(context.Background(), tournament.MatchRecord{
		ID:           "m1",
		TournamentID: "g1",
		Kind:         tournament.KindGauntlet,
		PlayerA:      "challenger",
		PlayerB:      "baseline",
		Outcomes:     []elo.Outcome{elo.Win},
	})
	require.NoError(t, audit.Err())

	updates, err := audit.Query(QueryOptions{EventTypes: []AuditEventType{EventRatingUpdated}})
	require.NoError(t, err)
	require.Len(t, updates.Entries, 1)
	assert.Equal(t, "challenger", updates.Entries[0].Data["player_id"])
}

func TestAuditTrail_ConcurrentAccess(t *testing.T) {
	audit, _ := setupTestAuditTrail(t)
	defer audit.Close()

	const numGoroutines = 10
	const eventsPerGoroutine = 5

	var wg sync.WaitGroup
	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range eventsPerGoroutine {
				err := audit.LogEvent(EventTournamentStarted, fmt.Sprintf("t_%d", id), map[string]any{"n": j})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(numGoroutines*eventsPerGoroutine), audit.GetSequence())
	assert.NoError(t, audit.VerifyIntegrity())
}

func BenchmarkAuditTrail_LogEvent(b *testing.B) {
	audit, err := NewAuditTrail("bench", b.TempDir())
	require.NoError(b, err)
	defer audit.Close()

	for i := 0; b.Loop(); i++ {
		if err := audit.LogEvent(EventMatchCompleted, "bench", map[string]any{"match_id": fmt.Sprintf("m_%d", i)}); err != nil {
			b.Fatal(err)
		}
	}
}
