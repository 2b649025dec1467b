// Package screens provides TUI screen implementations for tournament ranking.
// This file implements the leaderboard screen where users browse the standings
// of a finished tournament, filter and sort them and trigger an export.
package screens

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/skillrank/pkg/tournament"
)

// SortOrder represents the sorting direction for standings
type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
)

// SortField represents the field to sort standings by
type SortField int

const (
	SortByRank SortField = iota
	SortByElo
	SortByMu
	SortBySigma
	SortByID
	sortFieldCount
)

var sortFieldNames = [...]string{"Rank", "Elo", "Mu", "Sigma", "ID"}

func (f SortField) String() string {
	if f < 0 || f >= sortFieldCount {
		return "unknown"
	}
	return sortFieldNames[f]
}

// FilterCriteria holds the current filtering settings
type FilterCriteria struct {
	SearchText  string   // Substring of the player ID, case-insensitive
	MinExposure *float64 // Lowest conservative skill estimate to show, nil for all
}

// StandingsSource is implemented by apps that own tournament standings
type StandingsSource interface {
	Standings() []tournament.Standing
}

// Exporter is implemented by apps that can export the standings
type Exporter interface {
	ExportStandings() (string, error)
}

// Navigator is implemented by apps that can return to the previous screen
type Navigator interface {
	GoBack() error
}

// LeaderboardScreen displays tournament standings
type LeaderboardScreen struct {
	// UI components
	container     *tview.Flex
	mainLayout    *tview.Flex
	sidebarLayout *tview.Flex

	table           *tview.Table
	filterForm      *tview.Form
	exportPanel     *tview.TextView
	statisticsPanel *tview.TextView
	statusBar       *tview.TextView
	helpBar         *tview.TextView

	// Current state
	standings []tournament.Standing
	filtered  []tournament.Standing
	sortField SortField
	sortOrder SortOrder
	filter    FilterCriteria

	app any
}

// NewLeaderboardScreen creates a new leaderboard screen instance
func NewLeaderboardScreen() *LeaderboardScreen {
	ls := &LeaderboardScreen{
		container:       tview.NewFlex(),
		mainLayout:      tview.NewFlex(),
		sidebarLayout:   tview.NewFlex(),
		table:           tview.NewTable(),
		filterForm:      tview.NewForm(),
		exportPanel:     tview.NewTextView(),
		statisticsPanel: tview.NewTextView(),
		statusBar:       tview.NewTextView(),
		helpBar:         tview.NewTextView(),
		sortField:       SortByRank,
		sortOrder:       SortAsc,
	}

	ls.setupUI()
	ls.setupKeyBindings()
	ls.refresh()

	return ls
}

// GetPrimitive returns the main primitive for the leaderboard screen
func (ls *LeaderboardScreen) GetPrimitive() tview.Primitive {
	return ls.container
}

// OnEnter is called when the leaderboard becomes active. Standings are pulled
// from the app when it provides them.
func (ls *LeaderboardScreen) OnEnter(app any) error {
	ls.app = app
	if source, ok := app.(StandingsSource); ok {
		ls.SetStandings(source.Standings())
	}
	return nil
}

// OnExit is called when leaving the leaderboard
func (ls *LeaderboardScreen) OnExit(any) error {
	return nil
}

// GetTitle returns the screen title
func (ls *LeaderboardScreen) GetTitle() string {
	if len(ls.filtered) != len(ls.standings) {
		return fmt.Sprintf("Leaderboard (%d/%d players)", len(ls.filtered), len(ls.standings))
	}
	return fmt.Sprintf("Leaderboard (%d players)", len(ls.standings))
}

// GetHelpText returns help text for the leaderboard
func (ls *LeaderboardScreen) GetHelpText() []string {
	return []string{
		"Arrow Keys: Navigate standings",
		"S: Change sort field",
		"O: Toggle sort order",
		"C: Clear all filters",
		"E: Export standings",
		"Q/Esc: Back",
	}
}

// SetStandings replaces the displayed standings
func (ls *LeaderboardScreen) SetStandings(standings []tournament.Standing) {
	ls.standings = slices.Clone(standings)
	ls.refresh()
}

// Visible returns the standings that pass the filter in display order
func (ls *LeaderboardScreen) Visible() []tournament.Standing {
	return slices.Clone(ls.filtered)
}

// setupUI initializes the user interface layout
func (ls *LeaderboardScreen) setupUI() {
	ls.table.SetBorder(true).
		SetTitle(" Standings ").
		SetTitleAlign(tview.AlignLeft)
	ls.table.SetSelectable(true, false).SetFixed(1, 0)

	ls.setupFilterForm()

	ls.exportPanel.SetBorder(true).
		SetTitle(" Export ").
		SetTitleAlign(tview.AlignLeft)
	ls.exportPanel.SetDynamicColors(true)
	ls.resetExportPanel()

	ls.statisticsPanel.SetBorder(true).
		SetTitle(" Statistics ").
		SetTitleAlign(tview.AlignLeft)
	ls.statisticsPanel.SetDynamicColors(true)

	ls.statusBar.SetDynamicColors(true).SetTextAlign(tview.AlignLeft)

	ls.helpBar.SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]E:Export  S:Sort  O:Order  C:Clear  Q:Back[white]")

	ls.sidebarLayout.SetDirection(tview.FlexRow).
		AddItem(ls.filterForm, 0, 2, false).
		AddItem(ls.exportPanel, 0, 1, false).
		AddItem(ls.statisticsPanel, 0, 2, false)

	ls.mainLayout.SetDirection(tview.FlexColumn).
		AddItem(ls.table, 0, 3, true).
		AddItem(ls.sidebarLayout, 40, 1, false)

	ls.container.SetDirection(tview.FlexRow).
		AddItem(ls.mainLayout, 0, 1, true).
		AddItem(ls.statusBar, 1, 1, false).
		AddItem(ls.helpBar, 1, 1, false)
}

// setupTableHeaders configures the standings table headers
func (ls *LeaderboardScreen) setupTableHeaders() {
	headers := []string{"Rank", "ID", "Exposure", "Mu", "Sigma", "Elo"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetAlign(tview.AlignCenter).
			SetSelectable(false).
			SetExpansion(1)
		if col == 1 {
			cell.SetExpansion(3)
		}
		ls.table.SetCell(0, col, cell)
	}
}

// setupFilterForm configures the filter form
func (ls *LeaderboardScreen) setupFilterForm() {
	ls.filterForm.SetBorder(true).
		SetTitle(" Filters ").
		SetTitleAlign(tview.AlignLeft)

	ls.filterForm.AddInputField("Search:", "", 30, nil, func(text string) {
		ls.SetFilter(FilterCriteria{SearchText: text, MinExposure: ls.filter.MinExposure})
	})

	ls.filterForm.AddInputField("Min Exposure:", "", 10, nil, func(text string) {
		if text == "" {
			ls.SetFilter(FilterCriteria{SearchText: ls.filter.SearchText})
			return
		}
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			ls.SetFilter(FilterCriteria{SearchText: ls.filter.SearchText, MinExposure: &v})
		}
	})

	ls.filterForm.AddButton("Clear All", ls.ClearFilters)
}

// setupKeyBindings configures keyboard shortcuts
func (ls *LeaderboardScreen) setupKeyBindings() {
	ls.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc {
			ls.goBack()
			return nil
		}

		switch event.Rune() {
		case 's', 'S':
			ls.CycleSortField()
			return nil
		case 'o', 'O':
			ls.ToggleSortOrder()
			return nil
		case 'c', 'C':
			ls.ClearFilters()
			return nil
		case 'e', 'E':
			ls.Export()
			return nil
		case 'q', 'Q':
			ls.goBack()
			return nil
		}

		return event
	})
}

// SetFilter applies new filter criteria
func (ls *LeaderboardScreen) SetFilter(filter FilterCriteria) {
	ls.filter = filter
	ls.refresh()
}

// ClearFilters resets all filter criteria
func (ls *LeaderboardScreen) ClearFilters() {
	ls.filter = FilterCriteria{}
	ls.filterForm.GetFormItemByLabel("Search:").(*tview.InputField).SetText("")
	ls.filterForm.GetFormItemByLabel("Min Exposure:").(*tview.InputField).SetText("")
	ls.refresh()
}

// CycleSortField cycles through available sort fields
func (ls *LeaderboardScreen) CycleSortField() {
	ls.sortField = (ls.sortField + 1) % sortFieldCount
	ls.refresh()
}

// ToggleSortOrder toggles between ascending and descending sort
func (ls *LeaderboardScreen) ToggleSortOrder() {
	if ls.sortOrder == SortAsc {
		ls.sortOrder = SortDesc
	} else {
		ls.sortOrder = SortAsc
	}
	ls.refresh()
}

// Export asks the app to export the standings and reports the result
func (ls *LeaderboardScreen) Export() {
	exporter, ok := ls.app.(Exporter)
	if !ok {
		ls.exportPanel.SetText("[red]Export is not available[white]")
		return
	}
	path, err := exporter.ExportStandings()
	if err != nil {
		ls.exportPanel.SetText(fmt.Sprintf("[red]Export failed![white]\n\n%v", err))
		return
	}
	ls.exportPanel.SetText(fmt.Sprintf("[green]Export completed![white]\n\n%s", path))
}

func (ls *LeaderboardScreen) resetExportPanel() {
	ls.exportPanel.SetText("[yellow]Press 'E' to export standings[white]\n\nFormats: csv, json, yaml, text")
}

func (ls *LeaderboardScreen) goBack() {
	if nav, ok := ls.app.(Navigator); ok {
		_ = nav.GoBack()
	}
}

// refresh re-applies filter and sort and redraws every panel
func (ls *LeaderboardScreen) refresh() {
	ls.applyFilterAndSort()
	ls.updateTable()
	ls.updateStatusBar()
	ls.updateStatistics()
}

// applyFilterAndSort applies current filter criteria and sorts the results
func (ls *LeaderboardScreen) applyFilterAndSort() {
	ls.filtered = make([]tournament.Standing, 0, len(ls.standings))
	for _, s := range ls.standings {
		if ls.matchesFilter(s) {
			ls.filtered = append(ls.filtered, s)
		}
	}

	slices.SortStableFunc(ls.filtered, func(a, b tournament.Standing) int {
		var c int
		switch ls.sortField {
		case SortByRank:
			c = cmp.Compare(a.Rank, b.Rank)
		case SortByElo:
			c = cmp.Compare(b.Rating.Elo, a.Rating.Elo)
		case SortByMu:
			c = cmp.Compare(b.Rating.Mu, a.Rating.Mu)
		case SortBySigma:
			c = cmp.Compare(a.Rating.Sigma, b.Rating.Sigma)
		case SortByID:
			c = strings.Compare(a.ID, b.ID)
		}
		if ls.sortOrder == SortDesc {
			c = -c
		}
		return c
	})
}

// matchesFilter checks if a standing matches the current filter criteria
func (ls *LeaderboardScreen) matchesFilter(s tournament.Standing) bool {
	if ls.filter.SearchText != "" &&
		!strings.Contains(strings.ToLower(s.ID), strings.ToLower(ls.filter.SearchText)) {
		return false
	}
	return ls.filter.MinExposure == nil || s.Exposure >= *ls.filter.MinExposure
}

// updateTable refreshes the standings table with current data
func (ls *LeaderboardScreen) updateTable() {
	ls.table.Clear()
	ls.setupTableHeaders()

	for i, s := range ls.filtered {
		row := i + 1
		ls.table.SetCell(row, 0, tview.NewTableCell(strconv.Itoa(s.Rank)).
			SetAlign(tview.AlignCenter))
		ls.table.SetCell(row, 1, tview.NewTableCell(s.ID).
			SetAlign(tview.AlignLeft).
			SetTextColor(tcell.ColorLightBlue).
			SetExpansion(3))
		ls.table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%.3f", s.Exposure)).
			SetAlign(tview.AlignRight).
			SetTextColor(exposureColor(s.Exposure)))
		ls.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%.3f", s.Rating.Mu)).
			SetAlign(tview.AlignRight))
		ls.table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%.3f", s.Rating.Sigma)).
			SetAlign(tview.AlignRight))
		ls.table.SetCell(row, 5, tview.NewTableCell(strconv.Itoa(s.Rating.Elo)).
			SetAlign(tview.AlignRight))
	}

	if len(ls.filtered) > 0 {
		ls.table.Select(1, 0)
	}
}

// exposureColor colors fresh players red and well established ones green
func exposureColor(exposure float64) tcell.Color {
	switch {
	case exposure >= 15:
		return tcell.ColorGreen
	case exposure >= 5:
		return tcell.ColorYellow
	default:
		return tcell.ColorRed
	}
}

// updateStatusBar updates the status bar with current information
func (ls *LeaderboardScreen) updateStatusBar() {
	order := "↑"
	if ls.sortOrder == SortDesc {
		order = "↓"
	}

	status := fmt.Sprintf("[blue]Showing %d/%d players | Sort: %s %s",
		len(ls.filtered), len(ls.standings), ls.sortField, order)
	if ls.filter.SearchText != "" {
		status += fmt.Sprintf(" | Search: '%s'", tview.Escape(ls.filter.SearchText))
	}
	ls.statusBar.SetText(status + "[white]")
}

// updateStatistics updates the statistics panel
func (ls *LeaderboardScreen) updateStatistics() {
	if len(ls.filtered) == 0 {
		ls.statisticsPanel.SetText("[gray]No players to show[white]")
		return
	}

	first := ls.filtered[0]
	minElo, maxElo := first.Rating.Elo, first.Rating.Elo
	var sumExposure, sumSigma float64
	for _, s := range ls.filtered {
		minElo = min(minElo, s.Rating.Elo)
		maxElo = max(maxElo, s.Rating.Elo)
		sumExposure += s.Exposure
		sumSigma += s.Rating.Sigma
	}
	n := float64(len(ls.filtered))

	ls.statisticsPanel.SetText(fmt.Sprintf(`[yellow]Exposure:[white]
Average: %.3f

[yellow]Elo:[white]
Range: %d - %d

[yellow]Uncertainty:[white]
Average sigma: %.3f

[yellow]Players:[white]
Displayed: %d
Total: %d`,
		sumExposure/n, minElo, maxElo, sumSigma/n, len(ls.filtered), len(ls.standings)))
}

// StatusText returns the plain status bar content
func (ls *LeaderboardScreen) StatusText() string {
	return ls.statusBar.GetText(true)
}

// StatisticsText returns the plain statistics panel content
func (ls *LeaderboardScreen) StatisticsText() string {
	return ls.statisticsPanel.GetText(true)
}

// ExportText returns the plain export panel content
func (ls *LeaderboardScreen) ExportText() string {
	return ls.exportPanel.GetText(true)
}
