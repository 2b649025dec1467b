package tournament

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashagolub/skillrank/pkg/logger"
	"github.com/pashagolub/skillrank/pkg/skill"
)

type recordingObserver struct {
	NopObserver
	started   []TournamentInfo
	completed []MatchRecord
	skipped   []MatchError
	summaries []TournamentSummary
}

func (r *recordingObserver) TournamentStarted(_ context.Context, info TournamentInfo) {
	r.started = append(r.started, info)
}

func (r *recordingObserver) MatchCompleted(_ context.Context, rec MatchRecord) {
	r.completed = append(r.completed, rec)
}

func (r *recordingObserver) MatchSkipped(_ context.Context, failure MatchError) {
	r.skipped = append(r.skipped, failure)
}

func (r *recordingObserver) TournamentCompleted(_ context.Context, summary TournamentSummary) {
	r.summaries = append(r.summaries, summary)
}

func (r *recordingObserver) pairs() [][2]int {
	out := make([][2]int, 0, len(r.completed))
	for _, rec := range r.completed {
		out = append(out, [2]int{rec.IndexA, rec.IndexB})
	}
	return out
}

func newTestEngine(t *testing.T) *skill.Engine {
	t.Helper()
	engine, err := skill.NewEngine(skill.DefaultConfig())
	require.NoError(t, err)
	return engine
}

func newPopulation(t *testing.T, engine *skill.Engine, candidates map[string][]float64, order ...string) []Player[float64] {
	t.Helper()
	players := make([]Player[float64], 0, len(order))
	for _, id := range order {
		r, err := engine.CreateRating()
		require.NoError(t, err)
		players = append(players, Player[float64]{ID: id, Candidate: candidates[id], Rating: r})
	}
	return players
}

func newTestTournament(t *testing.T, engine *skill.Engine, oracle Oracle[float64], opts ...Option[float64]) *Tournament[float64] {
	t.Helper()
	tour, err := NewTournament(engine, newTestSimulator(t), oracle, opts...)
	require.NoError(t, err)
	return tour
}

func TestNewTournament(t *testing.T) {
	_, err := NewTournament[float64](nil, newTestSimulator(t), SumOracle[float64]())
	assert.Error(t, err)
	_, err = NewTournament(newTestEngine(t), nil, SumOracle[float64]())
	assert.Error(t, err)
}

func TestRoundRobin(t *testing.T) {
	ctx := context.Background()
	candidates := map[string][]float64{
		"strong": constant(120, 3),
		"medium": constant(120, 2),
		"weak":   constant(120, 1),
	}

	t.Run("three players play three pairs in order", func(t *testing.T) {
		engine := newTestEngine(t)
		observer := &recordingObserver{}
		tour := newTestTournament(t, engine, SumOracle[float64](), WithObserver[float64](observer))
		population := newPopulation(t, engine, candidates, "strong", "medium", "weak")

		result, err := tour.RoundRobin(ctx, population, 1, 3)
		require.NoError(t, err)

		assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {1, 2}}, observer.pairs())
		require.Len(t, observer.started, 1)
		require.Len(t, observer.summaries, 1)
		assert.Equal(t, 3, observer.summaries[0].Completed)
		assert.Equal(t, 0, observer.summaries[0].Skipped)
		assert.NoError(t, observer.summaries[0].Err)
		assert.Equal(t, observer.started[0].ID, observer.completed[0].TournamentID)

		// input population is not modified
		fresh, err := engine.CreateRating()
		require.NoError(t, err)
		for _, p := range population {
			assert.Equal(t, fresh, p.Rating)
		}

		standings := Standings(result)
		assert.Equal(t, []string{"strong", "medium", "weak"},
			[]string{standings[0].ID, standings[1].ID, standings[2].ID})
		assert.Greater(t, result[0].Rating.Elo, result[2].Rating.Elo)
	})

	t.Run("later pairs see earlier updates", func(t *testing.T) {
		engine := newTestEngine(t)
		observer := &recordingObserver{}
		tour := newTestTournament(t, engine, SumOracle[float64](), WithObserver[float64](observer))
		population := newPopulation(t, engine, candidates, "strong", "medium", "weak")

		_, err := tour.RoundRobin(ctx, population, 1, 3)
		require.NoError(t, err)
		require.Len(t, observer.completed, 3)

		// strong plays (0,2) with the rating it earned in (0,1)
		assert.Equal(t, observer.completed[0].AfterA, observer.completed[1].BeforeA)
		// medium plays (1,2) with the rating it got in (0,1)
		assert.Equal(t, observer.completed[0].AfterB, observer.completed[2].BeforeA)
		// weak plays (1,2) with the rating it got in (0,2)
		assert.Equal(t, observer.completed[1].AfterB, observer.completed[2].BeforeB)
	})

	t.Run("several rounds repeat the schedule", func(t *testing.T) {
		engine := newTestEngine(t)
		observer := &recordingObserver{}
		tour := newTestTournament(t, engine, SumOracle[float64](), WithObserver[float64](observer))
		population := newPopulation(t, engine, candidates, "strong", "medium", "weak")

		_, err := tour.RoundRobin(ctx, population, 2, 1)
		require.NoError(t, err)
		require.Len(t, observer.completed, 6)
		assert.Equal(t, 1, observer.completed[2].Round)
		assert.Equal(t, 2, observer.completed[3].Round)
	})

	t.Run("failing oracle skips only affected pairs", func(t *testing.T) {
		engine := newTestEngine(t)
		observer := &recordingObserver{}
		broken := OracleFunc[float64](func(_ context.Context, window []float64) (float64, error) {
			if slices.Contains(window, 999) {
				return 0, errors.New("cannot score")
			}
			return SumOracle[float64]().Score(context.Background(), window)
		})
		var buf bytes.Buffer
		tour := newTestTournament(t, engine, broken,
			WithObserver[float64](observer),
			WithLogger[float64](logger.New(&buf)))

		withBroken := map[string][]float64{
			"a":      constant(100, 2),
			"b":      constant(100, 1),
			"broken": constant(100, 999),
		}
		population := newPopulation(t, engine, withBroken, "a", "b", "broken")

		result, err := tour.RoundRobin(ctx, population, 1, 2)
		require.NoError(t, err)

		assert.Equal(t, [][2]int{{0, 1}}, observer.pairs())
		require.Len(t, observer.skipped, 2)
		assert.ErrorIs(t, observer.skipped[0], ErrOracleFailure)
		assert.Equal(t, "broken", observer.skipped[0].PlayerB)
		assert.Equal(t, population[2].Rating, result[2].Rating)
		assert.Equal(t, 2, observer.summaries[0].Skipped)
		assert.Contains(t, buf.String(), "match skipped")
	})

	t.Run("short candidate is skipped", func(t *testing.T) {
		engine := newTestEngine(t)
		observer := &recordingObserver{}
		tour := newTestTournament(t, engine, SumOracle[float64](), WithObserver[float64](observer))
		population := newPopulation(t, engine, map[string][]float64{
			"a":     constant(100, 2),
			"b":     constant(100, 1),
			"short": constant(10, 5),
		}, "a", "b", "short")

		_, err := tour.RoundRobin(ctx, population, 1, 1)
		require.NoError(t, err)
		require.Len(t, observer.skipped, 2)
		assert.ErrorIs(t, observer.skipped[1], ErrInsufficientLength)
	})

	t.Run("custom handler aborts", func(t *testing.T) {
		engine := newTestEngine(t)
		observer := &recordingObserver{}
		strict := func(failure MatchError) error { return failure }
		tour := newTestTournament(t, engine, SumOracle[float64](),
			WithObserver[float64](observer),
			WithMatchErrorHandler[float64](strict))
		population := newPopulation(t, engine, map[string][]float64{
			"a":     constant(100, 2),
			"short": constant(10, 5),
			"b":     constant(100, 1),
		}, "a", "short", "b")

		result, err := tour.RoundRobin(ctx, population, 1, 1)
		assert.ErrorIs(t, err, ErrInsufficientLength)
		var failure MatchError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "short", failure.PlayerB)
		assert.Len(t, result, 3)
		assert.Empty(t, observer.completed)
		assert.ErrorIs(t, observer.summaries[0].Err, ErrInsufficientLength)
	})

	t.Run("cancelled context stops between pairs", func(t *testing.T) {
		engine := newTestEngine(t)
		cctx, cancel := context.WithCancel(ctx)
		observer := &recordingObserver{}
		stopper := &cancelAfterFirst{cancel: cancel}
		tour := newTestTournament(t, engine, SumOracle[float64](),
			WithObserver[float64](observer),
			WithObserver[float64](stopper))
		population := newPopulation(t, engine, candidates, "strong", "medium", "weak")

		result, err := tour.RoundRobin(cctx, population, 5, 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, observer.completed, 1)
		assert.NotEqual(t, population[0].Rating, result[0].Rating)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		engine := newTestEngine(t)
		tour := newTestTournament(t, engine, SumOracle[float64]())
		population := newPopulation(t, engine, candidates, "strong", "medium")

		_, err := tour.RoundRobin(ctx, population[:1], 1, 1)
		assert.ErrorIs(t, err, ErrPopulationTooSmall)
		_, err = tour.RoundRobin(ctx, population, 0, 1)
		assert.ErrorIs(t, err, ErrInvalidSchedule)
		_, err = tour.RoundRobin(ctx, population, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})
}

type cancelAfterFirst struct {
	NopObserver
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) MatchCompleted(context.Context, MatchRecord) {
	c.cancel()
}

func TestRoundRobinReproducible(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	candidates := map[string][]float64{"x": ramp(300), "y": ramp(300), "z": ramp(300)}
	firstSample := OracleFunc[float64](func(_ context.Context, window []float64) (float64, error) {
		return window[0], nil
	})

	run := func() []Player[float64] {
		tour := newTestTournament(t, engine, firstSample)
		result, err := tour.RoundRobin(ctx, newPopulation(t, engine, candidates, "x", "y", "z"), 3, 3)
		require.NoError(t, err)
		return result
	}

	assert.Equal(t, run(), run())
}

func TestGauntlet(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	observer := &recordingObserver{}
	tour := newTestTournament(t, engine, SumOracle[float64](), WithObserver[float64](observer))

	baselineRating, err := engine.CreateRating(skill.WithMu(30), skill.WithSigma(1))
	require.NoError(t, err)
	baseline := Player[float64]{ID: "baseline", Candidate: constant(100, 1), Rating: baselineRating}
	start, err := engine.CreateRating()
	require.NoError(t, err)
	challenger := Player[float64]{ID: "challenger", Candidate: constant(100, 2), Rating: start}

	got, err := tour.Gauntlet(ctx, challenger, baseline, 4)
	require.NoError(t, err)

	want, err := engine.RateOneVsMany(start, baselineRating, observer.completed[0].Outcomes)
	require.NoError(t, err)
	assert.Equal(t, want, got.Rating)
	assert.Equal(t, "challenger", got.ID)
	assert.Greater(t, got.Rating.Mu, start.Mu)
	assert.Equal(t, start, observer.completed[0].BeforeA)
	assert.Equal(t, baselineRating, observer.completed[0].AfterB)
	assert.Equal(t, KindGauntlet, observer.started[0].Kind)

	short := Player[float64]{ID: "short", Candidate: constant(5, 1), Rating: start}
	same, err := tour.Gauntlet(ctx, short, baseline, 4)
	assert.ErrorIs(t, err, ErrInsufficientLength)
	assert.Equal(t, start, same.Rating)
	assert.Len(t, observer.skipped, 1)

	_, err = tour.Gauntlet(ctx, challenger, baseline, 0)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestStandings(t *testing.T) {
	players := []Player[int]{
		{ID: "c", Rating: skill.Rating{Mu: 25, Sigma: 1, Elo: 1200}},
		{ID: "a", Rating: skill.Rating{Mu: 30, Sigma: 2, Elo: 1100}},
		{ID: "b", Rating: skill.Rating{Mu: 25, Sigma: 1, Elo: 1300}},
		{ID: "d", Rating: skill.Rating{Mu: 25, Sigma: 1, Elo: 1200}},
	}

	rows := Standings(players)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 4, rows[3].Rank)
	assert.InDelta(t, 24.0, rows[0].Exposure, 1e-9)
	assert.Empty(t, Standings[int](nil))
}
