package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

func TestParseCandidates(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		input := `id,v1,v2,v3
alpha,1,2,3
beta,4.5,5,6,7
`
		result, err := ParseCandidates(strings.NewReader(input))
		require.NoError(t, err)

		assert.Equal(t, []string{"id", "v1", "v2", "v3"}, result.Header)
		assert.Equal(t, 3, result.TotalRows)
		assert.Equal(t, 2, result.SuccessfulRows)
		require.Len(t, result.Candidates, 2)
		assert.Equal(t, Candidate{ID: "alpha", Values: []float64{1, 2, 3}}, result.Candidates[0])
		assert.Equal(t, []float64{4.5, 5, 6, 7}, result.Candidates[1].Values)
		assert.Empty(t, result.ParseErrors)
	})

	t.Run("without header", func(t *testing.T) {
		result, err := ParseCandidates(strings.NewReader("a,1,2\nb,3,4\n"))
		require.NoError(t, err)

		assert.Nil(t, result.Header)
		assert.Len(t, result.Candidates, 2)
	})

	t.Run("non-finite values are rejected", func(t *testing.T) {
		input := `id,v1,v2
ok,1,2
nan,NaN,1
inf,1,+Inf
neg,-inf,3
`
		result, err := ParseCandidates(strings.NewReader(input))
		require.NoError(t, err)

		require.Len(t, result.Candidates, 1)
		assert.Equal(t, "ok", result.Candidates[0].ID)

		require.Len(t, result.ParseErrors, 3)
		for i, want := range []struct {
			row   int
			field string
		}{{3, "v1"}, {4, "v2"}, {5, "v1"}} {
			assert.Equal(t, want.row, result.ParseErrors[i].RowNumber)
			assert.Equal(t, want.field, result.ParseErrors[i].Field)
			assert.Equal(t, "value is not finite", result.ParseErrors[i].Message)
		}
	})

	t.Run("row problems are reported and skipped", func(t *testing.T) {
		input := `id,values
good,1,2
bad,1,x
,5,6
lonely
good,9,9
# a comment
,,
spaced, 7 , 8,
`
		result, err := ParseCandidates(strings.NewReader(input))
		require.NoError(t, err)

		ids := make([]string, len(result.Candidates))
		for i, c := range result.Candidates {
			ids[i] = c.ID
		}
		assert.Equal(t, []string{"good", "spaced"}, ids)
		assert.Equal(t, []float64{7, 8}, result.Candidates[1].Values)

		require.Len(t, result.ParseErrors, 4)
		assert.Equal(t, 3, result.ParseErrors[0].RowNumber)
		assert.Equal(t, "v2", result.ParseErrors[0].Field)
		assert.Equal(t, "x", result.ParseErrors[0].Value)
		assert.Equal(t, "id is required", result.ParseErrors[1].Message)
		assert.Equal(t, "candidate has no values", result.ParseErrors[2].Message)
		assert.Contains(t, result.ParseErrors[3].Message, "first seen on row 2")
		assert.Len(t, result.SkippedRows, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		result, err := ParseCandidates(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, result.Candidates)
	})

	t.Run("malformed quotes", func(t *testing.T) {
		_, err := ParseCandidates(strings.NewReader("a,\"1,2\n"))
		assert.ErrorIs(t, err, ErrCSVFormat)
	})
}

func TestLoadCandidatesFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,1,2,3\nb,4,5,6\n"), 0644))

	result, err := LoadCandidatesFromCSV(path)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 2)

	_, err = LoadCandidatesFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrCSVFormat)
}

func TestPlayers(t *testing.T) {
	engine, err := skill.NewEngine(skill.DefaultConfig())
	require.NoError(t, err)

	candidates := []Candidate{
		{ID: "a", Values: []float64{1, 2}},
		{ID: "b", Values: []float64{3, 4}},
	}
	players, err := Players(candidates, engine)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "b", players[1].ID)
	assert.Equal(t, []float64{3, 4}, players[1].Candidate)
	assert.Equal(t, skill.DefaultMu, players[0].Rating.Mu)
	assert.Equal(t, skill.DefaultEloInit, players[0].Rating.Elo)

	_, err = Players(nil, engine)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestSplitBaseline(t *testing.T) {
	players := []tournament.Player[float64]{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	baseline, rest, err := SplitBaseline(players, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", baseline.ID)
	require.Len(t, rest, 2)
	assert.Equal(t, "a", rest[0].ID)
	assert.Equal(t, "c", rest[1].ID)
	// input untouched
	assert.Equal(t, "b", players[1].ID)

	_, _, err = SplitBaseline(players, "z")
	assert.ErrorIs(t, err, ErrUnknownCandidate)
}

func TestTally(t *testing.T) {
	dir := t.TempDir()

	t.Run("load", func(t *testing.T) {
		path := filepath.Join(dir, "tally.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
ratings: [1200, 1200]
result:
  - [0, 1]
  - [-1, 0]
game_count:
  - [0, 1]
  - [1, 0]
`), 0644))

		tally, err := LoadTally(path)
		require.NoError(t, err)
		assert.Equal(t, []float64{1200, 1200}, tally.Ratings)
		assert.Equal(t, [][]int{{0, 1}, {-1, 0}}, tally.Result)

		calc, err := elo.NewCalculator(elo.DefaultConfig())
		require.NoError(t, err)
		ratings, err := calc.Batch(tally.Ratings, tally.Result, tally.GameCount)
		require.NoError(t, err)
		assert.Equal(t, []int{1216, 1184}, ratings)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
ratings: [1200, 1200]
result: [[0, 1]]
game_count: [[0, 1], [1, 0]]
`), 0644))

		_, err := LoadTally(path)
		assert.ErrorIs(t, err, ErrInvalidTally)
		assert.ErrorIs(t, err, elo.ErrShapeMismatch)
	})

	t.Run("unknown field", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ratings: [1]\nresults: [[0]]\n"), 0644))

		_, err := LoadTally(path)
		assert.ErrorIs(t, err, ErrInvalidTally)
	})

	t.Run("save and reload", func(t *testing.T) {
		tally := &Tally{
			Ratings:   []float64{1300, 1100, 1200},
			Result:    [][]int{{0, 2, 0}, {-2, 0, 1}, {0, -1, 0}},
			GameCount: [][]int{{0, 2, 0}, {2, 0, 1}, {0, 1, 0}},
		}
		path := filepath.Join(dir, "out", "tally.yaml")
		require.NoError(t, tally.SaveToFile(path))

		_, err := os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))

		loaded, err := LoadTally(path)
		require.NoError(t, err)
		assert.Equal(t, tally, loaded)
	})
}
