package screens

import (
	"errors"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashagolub/skillrank/pkg/skill"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

// leaderboardMockApp implements the interfaces LeaderboardScreen looks for
type leaderboardMockApp struct {
	standings []tournament.Standing
	exportErr error
	calls     []string
}

func (m *leaderboardMockApp) Standings() []tournament.Standing {
	m.calls = append(m.calls, "Standings")
	return m.standings
}

func (m *leaderboardMockApp) ExportStandings() (string, error) {
	m.calls = append(m.calls, "ExportStandings")
	if m.exportErr != nil {
		return "", m.exportErr
	}
	return "/tmp/standings.csv", nil
}

func standing(rank int, id string, mu, sigma float64, elo int) tournament.Standing {
	r := skill.Rating{Mu: mu, Sigma: sigma, Elo: elo}
	return tournament.Standing{Rank: rank, ID: id, Rating: r, Exposure: r.Exposure()}
}

func testStandings() []tournament.Standing {
	return []tournament.Standing{
		standing(1, "alpha", 30, 2, 1260),   // exposure 24
		standing(2, "bravo", 28, 3, 1280),   // exposure 19
		standing(3, "charlie", 25, 4, 1200), // exposure 13
		standing(4, "delta", 20, 6, 1140),   // exposure 2
	}
}

func ids(standings []tournament.Standing) []string {
	out := make([]string, len(standings))
	for i, s := range standings {
		out[i] = s.ID
	}
	return out
}

func TestNewLeaderboardScreen(t *testing.T) {
	ls := NewLeaderboardScreen()

	assert.NotNil(t, ls.GetPrimitive())
	assert.Equal(t, SortByRank, ls.sortField)
	assert.Equal(t, SortAsc, ls.sortOrder)
	assert.Equal(t, "Leaderboard (0 players)", ls.GetTitle())
	assert.Contains(t, ls.StatisticsText(), "No players to show")
	assert.NotEmpty(t, ls.GetHelpText())
	// header row only
	assert.Equal(t, 1, ls.table.GetRowCount())
}

func TestLeaderboardOnEnter(t *testing.T) {
	app := &leaderboardMockApp{standings: testStandings()}
	ls := NewLeaderboardScreen()

	require.NoError(t, ls.OnEnter(app))
	assert.Equal(t, []string{"Standings"}, app.calls)
	assert.Equal(t, "Leaderboard (4 players)", ls.GetTitle())

	require.Equal(t, 5, ls.table.GetRowCount())
	assert.Equal(t, "Rank", ls.table.GetCell(0, 0).Text)
	assert.Equal(t, "1", ls.table.GetCell(1, 0).Text)
	assert.Equal(t, "alpha", ls.table.GetCell(1, 1).Text)
	assert.Equal(t, "24.000", ls.table.GetCell(1, 2).Text)
	assert.Equal(t, "30.000", ls.table.GetCell(1, 3).Text)
	assert.Equal(t, "2.000", ls.table.GetCell(1, 4).Text)
	assert.Equal(t, "1260", ls.table.GetCell(1, 5).Text)

	assert.NoError(t, ls.OnExit(app))
}

func TestLeaderboardOnEnterWithoutSource(t *testing.T) {
	ls := NewLeaderboardScreen()
	ls.SetStandings(testStandings())

	require.NoError(t, ls.OnEnter(struct{}{}))
	// standings pushed earlier survive
	assert.Len(t, ls.Visible(), 4)
}

func TestLeaderboardSorting(t *testing.T) {
	ls := NewLeaderboardScreen()
	ls.SetStandings(testStandings())

	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, ids(ls.Visible()))

	ls.CycleSortField()
	assert.Equal(t, SortByElo, ls.sortField)
	assert.Equal(t, []string{"bravo", "alpha", "charlie", "delta"}, ids(ls.Visible()))

	ls.CycleSortField()
	assert.Equal(t, SortByMu, ls.sortField)
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, ids(ls.Visible()))

	ls.CycleSortField()
	assert.Equal(t, SortBySigma, ls.sortField)
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, ids(ls.Visible()))

	ls.ToggleSortOrder()
	assert.Equal(t, SortDesc, ls.sortOrder)
	assert.Equal(t, []string{"delta", "charlie", "bravo", "alpha"}, ids(ls.Visible()))
	assert.Contains(t, ls.StatusText(), "Sort: Sigma ↓")

	ls.CycleSortField()
	assert.Equal(t, SortByID, ls.sortField)
	assert.Equal(t, []string{"delta", "charlie", "bravo", "alpha"}, ids(ls.Visible()))

	// wraps around
	ls.CycleSortField()
	assert.Equal(t, SortByRank, ls.sortField)
	ls.ToggleSortOrder()
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, ids(ls.Visible()))
}

func TestSortFieldString(t *testing.T) {
	assert.Equal(t, "Rank", SortByRank.String())
	assert.Equal(t, "ID", SortByID.String())
	assert.Equal(t, "unknown", SortField(42).String())
}

func TestLeaderboardFilter(t *testing.T) {
	ls := NewLeaderboardScreen()
	ls.SetStandings(testStandings())

	// case-insensitive, every ID contains an "a"
	ls.SetFilter(FilterCriteria{SearchText: "A"})
	assert.Len(t, ls.Visible(), 4)

	ls.SetFilter(FilterCriteria{SearchText: "ar"})
	assert.Equal(t, []string{"charlie"}, ids(ls.Visible()))
	assert.Equal(t, "Leaderboard (1/4 players)", ls.GetTitle())
	assert.Contains(t, ls.StatusText(), "Showing 1/4 players")
	assert.Contains(t, ls.StatusText(), "Search: 'ar'")

	minExposure := 15.0
	ls.SetFilter(FilterCriteria{MinExposure: &minExposure})
	assert.Equal(t, []string{"alpha", "bravo"}, ids(ls.Visible()))
	stats := ls.StatisticsText()
	assert.Contains(t, stats, "Average: 21.500")
	assert.Contains(t, stats, "Range: 1260 - 1280")
	assert.Contains(t, stats, "Average sigma: 2.500")
	assert.Contains(t, stats, "Displayed: 2")

	ls.ClearFilters()
	assert.Len(t, ls.Visible(), 4)
	assert.Equal(t, FilterCriteria{}, ls.filter)

	ls.SetFilter(FilterCriteria{SearchText: "zulu"})
	assert.Empty(t, ls.Visible())
	assert.Contains(t, ls.StatisticsText(), "No players to show")
}

func TestLeaderboardExport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		app := &leaderboardMockApp{standings: testStandings()}
		ls := NewLeaderboardScreen()
		require.NoError(t, ls.OnEnter(app))

		ls.Export()
		assert.Contains(t, app.calls, "ExportStandings")
		assert.Contains(t, ls.ExportText(), "Export completed!")
		assert.Contains(t, ls.ExportText(), "/tmp/standings.csv")
	})

	t.Run("failure", func(t *testing.T) {
		app := &leaderboardMockApp{exportErr: errors.New("disk full")}
		ls := NewLeaderboardScreen()
		require.NoError(t, ls.OnEnter(app))

		ls.Export()
		assert.Contains(t, ls.ExportText(), "Export failed!")
		assert.Contains(t, ls.ExportText(), "disk full")
	})

	t.Run("app cannot export", func(t *testing.T) {
		ls := NewLeaderboardScreen()
		ls.Export()
		assert.Contains(t, ls.ExportText(), "not available")
	})
}

func TestExposureColor(t *testing.T) {
	assert.Equal(t, tcell.ColorGreen, exposureColor(24))
	assert.Equal(t, tcell.ColorYellow, exposureColor(13))
	assert.Equal(t, tcell.ColorRed, exposureColor(2))
	assert.Equal(t, tcell.ColorRed, exposureColor(-5))
}
