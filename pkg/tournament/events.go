package tournament

import (
	"context"
	"fmt"
	"time"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/skill"
)

// Tournament kinds
const (
	KindRoundRobin = "round_robin"
	KindGauntlet   = "gauntlet"
)

// TournamentInfo describes a tournament when it starts.
type TournamentInfo struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Players         int       `json:"players"`
	Rounds          int       `json:"rounds"`
	MatchesPerRound int       `json:"matches_per_round"`
	StartedAt       time.Time `json:"started_at"`
}

// Pairs is the number of pairings the tournament schedules
func (i TournamentInfo) Pairs() int {
	return i.Rounds * i.Players * (i.Players - 1) / 2
}

// TournamentSummary describes a finished tournament. Err is set when the
// tournament was aborted.
type TournamentSummary struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Standings []Standing    `json:"standings"`
	Err       error         `json:"-"`
}

// MatchRecord is one rated match.
type MatchRecord struct {
	ID           string        `json:"id"`
	TournamentID string        `json:"tournament_id"`
	Kind         string        `json:"kind"`
	Round        int           `json:"round"`
	IndexA       int           `json:"index_a"`
	IndexB       int           `json:"index_b"`
	PlayerA      string        `json:"player_a"`
	PlayerB      string        `json:"player_b"`
	Outcomes     []elo.Outcome `json:"outcomes"`
	BeforeA      skill.Rating  `json:"before_a"`
	BeforeB      skill.Rating  `json:"before_b"`
	AfterA       skill.Rating  `json:"after_a"`
	AfterB       skill.Rating  `json:"after_b"`
	Quality      float64       `json:"quality"`
	Duration     time.Duration `json:"duration"`
}

// MatchError is a match that could not be played or rated.
type MatchError struct {
	TournamentID string
	Round        int
	IndexA       int
	IndexB       int
	PlayerA      string
	PlayerB      string
	Err          error
}

func (e MatchError) Error() string {
	return fmt.Sprintf("match %s vs %s in round %d: %v", e.PlayerA, e.PlayerB, e.Round, e.Err)
}

func (e MatchError) Unwrap() error {
	return e.Err
}

// MatchObserver is notified about the progress of a tournament. Methods are
// called synchronously from the tournament loop.
type MatchObserver interface {
	TournamentStarted(ctx context.Context, info TournamentInfo)
	MatchCompleted(ctx context.Context, rec MatchRecord)
	MatchSkipped(ctx context.Context, failure MatchError)
	TournamentCompleted(ctx context.Context, summary TournamentSummary)
}

// NopObserver implements MatchObserver with empty methods. Embed it to
// observe only some events.
type NopObserver struct{}

func (NopObserver) TournamentStarted(context.Context, TournamentInfo)      {}
func (NopObserver) MatchCompleted(context.Context, MatchRecord)            {}
func (NopObserver) MatchSkipped(context.Context, MatchError)               {}
func (NopObserver) TournamentCompleted(context.Context, TournamentSummary) {}
