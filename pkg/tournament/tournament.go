package tournament

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pashagolub/skillrank/pkg/logger"
	"github.com/pashagolub/skillrank/pkg/skill"
)

// Player is one member of a population.
type Player[T any] struct {
	ID        string       `json:"id" yaml:"id"`
	Candidate []T          `json:"-" yaml:"-"`
	Rating    skill.Rating `json:"rating" yaml:"rating"`
}

// Standing is one row of a leaderboard.
type Standing struct {
	Rank     int          `json:"rank" yaml:"rank"`
	ID       string       `json:"id" yaml:"id"`
	Rating   skill.Rating `json:"rating" yaml:"rating"`
	Exposure float64      `json:"exposure" yaml:"exposure"`
}

// MatchErrorHandler decides what happens to a failed match. Returning nil
// skips the match; returning an error aborts the tournament with it.
type MatchErrorHandler func(MatchError) error

// SkipRecoverable skips matches that failed in the oracle or because a
// candidate was too short, and aborts on anything else.
func SkipRecoverable(failure MatchError) error {
	if errors.Is(failure, ErrOracleFailure) || errors.Is(failure, ErrInsufficientLength) {
		return nil
	}
	return failure
}

// Option applies a configuration option to the Tournament.
type Option[T any] func(*Tournament[T])

// WithLogger sets the tournament logger.
func WithLogger[T any](l logger.Logger) Option[T] {
	return func(t *Tournament[T]) {
		if l != nil {
			t.log = l
		}
	}
}

// WithObserver adds an observer of tournament events.
func WithObserver[T any](o MatchObserver) Option[T] {
	return func(t *Tournament[T]) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

// WithMatchErrorHandler replaces SkipRecoverable.
func WithMatchErrorHandler[T any](h MatchErrorHandler) Option[T] {
	return func(t *Tournament[T]) {
		if h != nil {
			t.onError = h
		}
	}
}

// Tournament drives matches between players and keeps their ratings.
type Tournament[T any] struct {
	engine    *skill.Engine
	sim       *Simulator[T]
	oracle    Oracle[T]
	log       logger.Logger
	observers []MatchObserver
	onError   MatchErrorHandler
}

// NewTournament creates a tournament runner
func NewTournament[T any](engine *skill.Engine, sim *Simulator[T], oracle Oracle[T], opts ...Option[T]) (*Tournament[T], error) {
	if engine == nil || sim == nil || oracle == nil {
		return nil, errors.New("tournament needs an engine, a simulator and an oracle")
	}
	t := &Tournament[T]{
		engine:  engine,
		sim:     sim,
		oracle:  oracle,
		log:     logger.Nop(),
		onError: SkipRecoverable,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RoundRobin plays rounds passes over every pair (i, j) with i < j in
// ascending order. Each pair plays matchesPerRound trials and both new
// ratings are stored before the next pair, so later pairs see the updated
// ratings of earlier ones.
//
// The context is checked between pairs. When the tournament is aborted, the
// population as updated so far is returned together with the error.
func (t *Tournament[T]) RoundRobin(ctx context.Context, population []Player[T], rounds, matchesPerRound int) ([]Player[T], error) {
	if len(population) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrPopulationTooSmall, len(population))
	}
	if rounds <= 0 || matchesPerRound <= 0 {
		return nil, fmt.Errorf("%w: rounds=%d, matches=%d", ErrInvalidSchedule, rounds, matchesPerRound)
	}

	players := slices.Clone(population)
	run := t.start(ctx, TournamentInfo{
		Kind:            KindRoundRobin,
		Players:         len(players),
		Rounds:          rounds,
		MatchesPerRound: matchesPerRound,
	})

	for round := 1; round <= rounds; round++ {
		for i := 0; i < len(players); i++ {
			for j := i + 1; j < len(players); j++ {
				if err := ctx.Err(); err != nil {
					return players, t.finish(ctx, run, players, err)
				}
				if err := t.playPair(ctx, run, players, round, i, j, matchesPerRound); err != nil {
					return players, t.finish(ctx, run, players, err)
				}
			}
		}
		t.log.Debug(ctx, "round finished", logger.Int("round", round))
	}

	return players, t.finish(ctx, run, players, nil)
}

// Gauntlet plays matches trials of challenger against a baseline that does
// not adapt, and returns the challenger with its new rating.
func (t *Tournament[T]) Gauntlet(ctx context.Context, challenger, baseline Player[T], matches int) (Player[T], error) {
	if matches <= 0 {
		return challenger, fmt.Errorf("%w: matches=%d", ErrInvalidSchedule, matches)
	}

	run := t.start(ctx, TournamentInfo{
		Kind:            KindGauntlet,
		Players:         2,
		Rounds:          1,
		MatchesPerRound: matches,
	})
	players := []Player[T]{challenger, baseline}
	before := challenger.Rating

	started := time.Now()
	outcomes, err := t.sim.SimulatePair(ctx, challenger.Candidate, baseline.Candidate, t.oracle, matches)
	var after skill.Rating
	if err == nil {
		after, err = t.engine.RateOneVsMany(challenger.Rating, baseline.Rating, outcomes)
	}
	if err != nil {
		failure := MatchError{
			TournamentID: run.info.ID,
			Round:        1,
			IndexA:       0,
			IndexB:       1,
			PlayerA:      challenger.ID,
			PlayerB:      baseline.ID,
			Err:          err,
		}
		run.skipped++
		t.notifySkipped(ctx, failure)
		return challenger, t.finish(ctx, run, players, failure)
	}

	run.completed++
	challenger.Rating = after
	players[0] = challenger
	t.notifyCompleted(ctx, MatchRecord{
		ID:           uuid.NewString(),
		TournamentID: run.info.ID,
		Kind:         KindGauntlet,
		Round:        1,
		IndexA:       0,
		IndexB:       1,
		PlayerA:      challenger.ID,
		PlayerB:      baseline.ID,
		Outcomes:     outcomes,
		BeforeA:      before,
		BeforeB:      baseline.Rating,
		AfterA:       challenger.Rating,
		AfterB:       baseline.Rating,
		Quality:      t.engine.Quality(before, baseline.Rating),
		Duration:     time.Since(started),
	})

	return challenger, t.finish(ctx, run, players, nil)
}

// playPair plays and rates one pair, storing the new ratings in players
func (t *Tournament[T]) playPair(ctx context.Context, run *runState, players []Player[T], round, i, j, n int) error {
	a, b := players[i], players[j]
	started := time.Now()

	outcomes, err := t.sim.SimulatePair(ctx, a.Candidate, b.Candidate, t.oracle, n)
	var newA, newB skill.Rating
	if err == nil {
		newA, newB, err = t.engine.RateOneVsOne(a.Rating, b.Rating, outcomes)
	}
	if err != nil {
		failure := MatchError{
			TournamentID: run.info.ID,
			Round:        round,
			IndexA:       i,
			IndexB:       j,
			PlayerA:      a.ID,
			PlayerB:      b.ID,
			Err:          err,
		}
		if herr := t.onError(failure); herr != nil {
			return herr
		}
		run.skipped++
		t.notifySkipped(ctx, failure)
		return nil
	}

	players[i].Rating = newA
	players[j].Rating = newB
	run.completed++

	rec := MatchRecord{
		ID:           uuid.NewString(),
		TournamentID: run.info.ID,
		Kind:         KindRoundRobin,
		Round:        round,
		IndexA:       i,
		IndexB:       j,
		PlayerA:      a.ID,
		PlayerB:      b.ID,
		Outcomes:     outcomes,
		BeforeA:      a.Rating,
		BeforeB:      b.Rating,
		AfterA:       newA,
		AfterB:       newB,
		Quality:      t.engine.Quality(a.Rating, b.Rating),
		Duration:     time.Since(started),
	}
	t.log.Debug(ctx, "match rated",
		logger.String("pair", a.ID+"-"+b.ID),
		logger.Int("round", round),
		logger.Any("outcomes", outcomes),
		logger.Float64("quality", rec.Quality))
	t.notifyCompleted(ctx, rec)

	return nil
}

// runState counts matches of one tournament run
type runState struct {
	info      TournamentInfo
	completed int
	skipped   int
}

func (t *Tournament[T]) start(ctx context.Context, info TournamentInfo) *runState {
	info.ID = uuid.NewString()
	info.StartedAt = time.Now()

	t.log.Info(ctx, "tournament started",
		logger.String("tournament", info.ID),
		logger.String("kind", info.Kind),
		logger.Int("players", info.Players),
		logger.Int("rounds", info.Rounds),
		logger.Int("matches", info.MatchesPerRound))
	for _, o := range t.observers {
		o.TournamentStarted(ctx, info)
	}

	return &runState{info: info}
}

// finish reports the end of a run and passes err through
func (t *Tournament[T]) finish(ctx context.Context, run *runState, players []Player[T], err error) error {
	summary := TournamentSummary{
		ID:        run.info.ID,
		Kind:      run.info.Kind,
		Completed: run.completed,
		Skipped:   run.skipped,
		Duration:  time.Since(run.info.StartedAt),
		Standings: Standings(players),
		Err:       err,
	}

	fields := []logger.Field{
		logger.String("tournament", summary.ID),
		logger.Int("completed", summary.Completed),
		logger.Int("skipped", summary.Skipped),
		logger.Any("duration", summary.Duration),
	}
	if err != nil {
		t.log.Error(ctx, "tournament aborted", append(fields, logger.Error(err))...)
	} else {
		t.log.Info(ctx, "tournament completed", fields...)
	}

	for _, o := range t.observers {
		o.TournamentCompleted(ctx, summary)
	}
	return err
}

func (t *Tournament[T]) notifyCompleted(ctx context.Context, rec MatchRecord) {
	for _, o := range t.observers {
		o.MatchCompleted(ctx, rec)
	}
}

func (t *Tournament[T]) notifySkipped(ctx context.Context, failure MatchError) {
	t.log.Warn(ctx, "match skipped",
		logger.String("pair", failure.PlayerA+"-"+failure.PlayerB),
		logger.Int("round", failure.Round),
		logger.Error(failure.Err))
	for _, o := range t.observers {
		o.MatchSkipped(ctx, failure)
	}
}

// Standings ranks players by exposure, highest first. Ties are broken by
// Elo, then by ID.
func Standings[T any](players []Player[T]) []Standing {
	rows := make([]Standing, 0, len(players))
	for _, p := range players {
		rows = append(rows, Standing{
			ID:       p.ID,
			Rating:   p.Rating,
			Exposure: p.Rating.Exposure(),
		})
	}

	slices.SortStableFunc(rows, func(a, b Standing) int {
		if c := cmp.Compare(b.Exposure, a.Exposure); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Rating.Elo, a.Rating.Elo); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
