// Package components provides reusable TUI components for tournament ranking.
// This file implements a progress indicator that follows a running tournament
// with a progress bar, match counters and a feed of recent results.
package components

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/skillrank/pkg/elo"
	"github.com/pashagolub/skillrank/pkg/tournament"
)

// ProgressSnapshot is a point-in-time view of tournament progress
type ProgressSnapshot struct {
	Tournaments int
	Total       int
	Completed   int
	Skipped     int
	Elapsed     time.Duration
	Recent      []string
}

// Done returns the fraction of scheduled pairings already played or skipped
func (s ProgressSnapshot) Done() float64 {
	if s.Total <= 0 {
		return 0
	}
	return min(1.0, float64(s.Completed+s.Skipped)/float64(s.Total))
}

// Progress displays live tournament progress
type Progress struct {
	// UI components
	container   *tview.Flex
	progressBar *tview.TextView
	metricsText *tview.TextView
	recentText  *tview.TextView

	mu          sync.Mutex
	started     time.Time
	tournaments int
	total       int
	completed   int
	skipped     int
	recent      []string

	// Display configuration
	recentLimit int

	// Colors
	progressColor tcell.Color
	completeColor tcell.Color
	textColor     tcell.Color
	borderColor   tcell.Color
}

// ProgressConfig holds configuration options for the progress indicator
type ProgressConfig struct {
	RecentLimit   int
	ProgressColor tcell.Color
	CompleteColor tcell.Color
	TextColor     tcell.Color
	BorderColor   tcell.Color
}

// DefaultProgressConfig returns sensible defaults for progress indicators
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		RecentLimit:   10,
		ProgressColor: tcell.ColorBlue,
		CompleteColor: tcell.ColorGreen,
		TextColor:     tcell.ColorWhite,
		BorderColor:   tcell.ColorDarkGray,
	}
}

// NewProgress creates a new progress indicator component
func NewProgress(config ProgressConfig) *Progress {
	p := &Progress{
		container:     tview.NewFlex(),
		progressBar:   tview.NewTextView(),
		metricsText:   tview.NewTextView(),
		recentText:    tview.NewTextView(),
		recentLimit:   config.RecentLimit,
		progressColor: config.ProgressColor,
		completeColor: config.CompleteColor,
		textColor:     config.TextColor,
		borderColor:   config.BorderColor,
	}

	// Set default values if not specified
	if p.recentLimit <= 0 {
		p.recentLimit = 10
	}
	if p.progressColor == 0 {
		p.progressColor = tcell.ColorBlue
	}
	if p.completeColor == 0 {
		p.completeColor = tcell.ColorGreen
	}
	if p.textColor == 0 {
		p.textColor = tcell.ColorWhite
	}
	if p.borderColor == 0 {
		p.borderColor = tcell.ColorDarkGray
	}

	p.initializeUI()
	p.render()
	return p
}

// initializeUI sets up the progress indicator layout and styling
func (p *Progress) initializeUI() {
	p.progressBar.SetBorder(true).SetTitle("Matches")
	p.progressBar.SetBorderColor(p.borderColor)
	p.progressBar.SetTextColor(p.textColor)
	p.progressBar.SetDynamicColors(true)
	p.progressBar.SetTextAlign(tview.AlignCenter)

	p.metricsText.SetBorder(true).SetTitle("Metrics")
	p.metricsText.SetBorderColor(p.borderColor)
	p.metricsText.SetTextColor(p.textColor)
	p.metricsText.SetDynamicColors(true)

	p.recentText.SetBorder(true).SetTitle("Recent Matches")
	p.recentText.SetBorderColor(p.borderColor)
	p.recentText.SetTextColor(p.textColor)
	p.recentText.SetDynamicColors(true)

	textContainer := tview.NewFlex().SetDirection(tview.FlexColumn)
	textContainer.AddItem(p.metricsText, 0, 1, false)
	textContainer.AddItem(p.recentText, 0, 2, false)

	p.container.SetDirection(tview.FlexRow)
	p.container.AddItem(p.progressBar, 4, 0, false)
	p.container.AddItem(textContainer, 0, 1, false)
}

// Start registers a new tournament. Pairings of consecutive tournaments add up.
func (p *Progress) Start(info tournament.TournamentInfo) {
	p.mu.Lock()
	if p.tournaments == 0 {
		p.started = time.Now()
	}
	p.tournaments++
	p.total += info.Pairs()
	p.mu.Unlock()

	p.render()
}

// Record counts a rated match
func (p *Progress) Record(rec tournament.MatchRecord) {
	line := fmt.Sprintf("[white]r%d[-] %s vs %s: %s  [gray](Elo %d/%d)[-]",
		rec.Round, rec.PlayerA, rec.PlayerB, summarizeOutcomes(rec.Outcomes), rec.AfterA.Elo, rec.AfterB.Elo)

	p.mu.Lock()
	p.completed++
	p.pushRecent(line)
	p.mu.Unlock()

	p.render()
}

// Skip counts a pairing that could not be rated
func (p *Progress) Skip(failure tournament.MatchError) {
	line := fmt.Sprintf("[red]r%d %s vs %s skipped[-]", failure.Round, failure.PlayerA, failure.PlayerB)

	p.mu.Lock()
	p.skipped++
	p.pushRecent(line)
	p.mu.Unlock()

	p.render()
}

func (p *Progress) pushRecent(line string) {
	p.recent = append(p.recent, line)
	if len(p.recent) > p.recentLimit {
		p.recent = p.recent[len(p.recent)-p.recentLimit:]
	}
}

// Snapshot returns the current counters
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var elapsed time.Duration
	if !p.started.IsZero() {
		elapsed = time.Since(p.started)
	}
	return ProgressSnapshot{
		Tournaments: p.tournaments,
		Total:       p.total,
		Completed:   p.completed,
		Skipped:     p.skipped,
		Elapsed:     elapsed,
		Recent:      append([]string(nil), p.recent...),
	}
}

// render refreshes every text view from a snapshot
func (p *Progress) render() {
	s := p.Snapshot()
	done := s.Done()

	p.progressBar.SetText(p.createProgressBar(done, done >= 1.0) +
		fmt.Sprintf("\n[white]%.1f%% Complete", done*100))

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Tournaments: [yellow]%d[white]\n", s.Tournaments))
	builder.WriteString(fmt.Sprintf("Pairings: [yellow]%d[white]/%d\n", s.Completed+s.Skipped, s.Total))
	builder.WriteString(fmt.Sprintf("Rated: [green]%d[white]\n", s.Completed))
	builder.WriteString(fmt.Sprintf("Skipped: [red]%d[white]\n", s.Skipped))
	if s.Elapsed > 0 {
		builder.WriteString(fmt.Sprintf("Elapsed: [cyan]%s[white]\n", formatDuration(s.Elapsed)))
	}
	p.metricsText.SetText(builder.String())

	if len(s.Recent) == 0 {
		p.recentText.SetText("[gray]Waiting for matches...[white]")
		return
	}
	// newest first
	lines := make([]string, len(s.Recent))
	for i, line := range s.Recent {
		lines[len(lines)-1-i] = line
	}
	p.recentText.SetText(strings.Join(lines, "\n"))
}

// GetContainer returns the main container for embedding in other views
func (p *Progress) GetContainer() tview.Primitive {
	return p.container
}

// MetricsText returns the plain metrics panel content
func (p *Progress) MetricsText() string {
	return p.metricsText.GetText(true)
}

// RecentText returns the plain recent matches panel content
func (p *Progress) RecentText() string {
	return p.recentText.GetText(true)
}

// summarizeOutcomes counts wins, draws and losses of the first player
func summarizeOutcomes(outcomes []elo.Outcome) string {
	var w, d, l int
	for _, o := range outcomes {
		switch o {
		case elo.Win:
			w++
		case elo.Draw:
			d++
		case elo.Loss:
			l++
		}
	}
	return fmt.Sprintf("%d-%d-%d", w, d, l)
}

// createProgressBar creates a visual progress bar using text characters
func (p *Progress) createProgressBar(progress float64, isComplete bool) string {
	const barWidth = 30
	filledWidth := int(progress * barWidth)

	var color string
	if isComplete {
		color = "[green]"
	} else {
		color = "[blue]"
	}

	bar := color + strings.Repeat("█", filledWidth) + "[gray]" + strings.Repeat("░", barWidth-filledWidth) + "[white]"
	return bar
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) - (minutes * 60)
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) - (hours * 60)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
