// Package tui provides Terminal User Interface functionality for tournament ranking.
// It implements the main TUI application structure with screen management, keyboard
// shortcuts and a live view of running tournaments.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pashagolub/skillrank/pkg/tournament"
	"github.com/pashagolub/skillrank/pkg/tui/components"
	"github.com/pashagolub/skillrank/pkg/tui/screens"
)

// Errors returned by the application
var (
	ErrNoStandings = errors.New("no standings to export yet")
	ErrNoExporter  = errors.New("export is not configured")
)

// ScreenType represents different screens in the TUI application
type ScreenType int

const (
	ScreenProgress ScreenType = iota
	ScreenLeaderboard
	ScreenHelp
)

// String returns the string representation of ScreenType
func (s ScreenType) String() string {
	switch s {
	case ScreenProgress:
		return "progress"
	case ScreenLeaderboard:
		return "leaderboard"
	case ScreenHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Screen interface defines the contract for all TUI screens
type Screen interface {
	// GetPrimitive returns the tview.Primitive for this screen
	GetPrimitive() tview.Primitive

	// OnEnter is called when the screen becomes active
	OnEnter(app any) error

	// OnExit is called when leaving the screen
	OnExit(app any) error

	// GetTitle returns the screen title for display
	GetTitle() string
}

// ExportFunc writes standings somewhere and returns where they went
type ExportFunc func(standings []tournament.Standing) (string, error)

// AppState represents the current application state
type AppState struct {
	mu             sync.RWMutex
	currentScreen  ScreenType
	previousScreen ScreenType
	isRunning      bool
	standings      []tournament.Standing
	summary        *tournament.TournamentSummary
	lastExportTime *time.Time
	lastExportPath string
}

// App represents the main TUI application. It observes tournaments and
// shows their progress and final standings.
type App struct {
	tviewApp    *tview.Application
	pages       *tview.Pages
	header      *tview.TextView
	footer      *tview.TextView
	state       *AppState
	screens     map[ScreenType]Screen
	progress    *components.Progress
	leaderboard *screens.LeaderboardScreen
	exportFn    ExportFunc
	title       string
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex

	uiMu   sync.Mutex // serialises inline updates with the start of Run
	queued bool       // updates go through the tview event loop
}

var _ tournament.MatchObserver = (*App)(nil)

// Option configures the App
type Option func(*App)

// WithExporter enables exporting standings from the leaderboard
func WithExporter(fn ExportFunc) Option {
	return func(a *App) {
		a.exportFn = fn
	}
}

// WithTitle sets the header title
func WithTitle(title string) Option {
	return func(a *App) {
		a.title = title
	}
}

// KeyBinding represents a keyboard shortcut
type KeyBinding struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func(app *App) error
}

// Global key bindings available across all screens. Function keys keep
// letters free for the leaderboard filter inputs.
var globalKeyBindings = []KeyBinding{
	{Key: tcell.KeyCtrlC, Description: "Exit", Handler: (*App).Exit},
	{Key: tcell.KeyF1, Description: "Help", Handler: (*App).ShowHelp},
	{Key: tcell.KeyF2, Description: "Progress", Handler: (*App).ShowProgress},
	{Key: tcell.KeyF3, Description: "Leaderboard", Handler: (*App).ShowLeaderboard},
	{Key: tcell.KeyCtrlE, Description: "Export", Handler: func(a *App) error {
		_, err := a.ExportStandings()
		return err
	}},
}

// NewApp creates a new TUI application with the progress, leaderboard and
// help screens registered
func NewApp(opts ...Option) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		tviewApp: tview.NewApplication(),
		pages:    tview.NewPages(),
		header:   tview.NewTextView(),
		footer:   tview.NewTextView(),
		state: &AppState{
			currentScreen:  ScreenProgress,
			previousScreen: ScreenProgress,
		},
		screens:     make(map[ScreenType]Screen),
		progress:    components.NewProgress(components.DefaultProgressConfig()),
		leaderboard: screens.NewLeaderboardScreen(),
		title:       "Skill Rank Tournament",
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(app)
	}

	app.setupUI()

	for screenType, screen := range map[ScreenType]Screen{
		ScreenProgress:    &progressScreen{progress: app.progress},
		ScreenLeaderboard: app.leaderboard,
		ScreenHelp:        NewHelpScreen(),
	} {
		if err := app.RegisterScreen(screenType, screen); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to register %s screen: %w", screenType, err)
		}
	}

	return app, nil
}

// setupUI initializes the UI components and layout
func (a *App) setupUI() {
	a.header.SetBorder(true).
		SetTitle(a.title).
		SetTitleAlign(tview.AlignCenter).
		SetBackgroundColor(tcell.ColorDarkBlue)
	a.header.SetTextColor(tcell.ColorWhite)

	a.footer.SetBorder(true).
		SetTitle("Keyboard Shortcuts").
		SetTitleAlign(tview.AlignCenter).
		SetBackgroundColor(tcell.ColorDarkGreen)
	a.footer.SetTextColor(tcell.ColorWhite)

	a.updateFooter()

	mainLayout := tview.NewFlex().SetDirection(tview.FlexRow)
	mainLayout.AddItem(a.header, 3, 0, false)
	mainLayout.AddItem(a.pages, 0, 1, true)
	mainLayout.AddItem(a.footer, 3, 0, false)
	mainLayout.SetInputCapture(a.handleGlobalInput)

	a.tviewApp.SetRoot(mainLayout, true)
	a.tviewApp.EnableMouse(true)
	a.tviewApp.SetBeforeDrawFunc(func(tcell.Screen) bool {
		a.updateHeader()
		return false
	})
}

// RegisterScreen registers a screen with the application
func (a *App) RegisterScreen(screenType ScreenType, screen Screen) error {
	if screen == nil {
		return fmt.Errorf("screen cannot be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.screens[screenType] = screen
	a.pages.AddPage(screenType.String(), screen.GetPrimitive(), true, screenType == ScreenProgress)

	return nil
}

// NavigateTo switches to the specified screen
func (a *App) NavigateTo(screenType ScreenType) error {
	a.mu.RLock()
	screen, exists := a.screens[screenType]
	a.mu.RUnlock()
	if !exists {
		return fmt.Errorf("screen %s not registered", screenType)
	}

	a.state.mu.RLock()
	current := a.state.currentScreen
	a.state.mu.RUnlock()

	a.mu.RLock()
	currentScreen, hasCurrentScreen := a.screens[current]
	a.mu.RUnlock()

	// screen callbacks run without locks so they may query the app
	if hasCurrentScreen && current != screenType {
		if err := currentScreen.OnExit(a); err != nil {
			return fmt.Errorf("failed to exit screen %s: %w", current, err)
		}
	}

	if err := screen.OnEnter(a); err != nil {
		return fmt.Errorf("failed to enter screen %s: %w", screenType, err)
	}

	a.state.mu.Lock()
	if current != screenType {
		a.state.previousScreen = current
	}
	a.state.currentScreen = screenType
	a.state.mu.Unlock()

	a.pages.SwitchToPage(screenType.String())
	a.updateHeader()

	return nil
}

// GoBack returns to the previous screen
func (a *App) GoBack() error {
	a.state.mu.RLock()
	previous := a.state.previousScreen
	a.state.mu.RUnlock()
	return a.NavigateTo(previous)
}

// ShowProgress displays the progress screen
func (a *App) ShowProgress() error {
	return a.NavigateTo(ScreenProgress)
}

// ShowLeaderboard displays the leaderboard screen
func (a *App) ShowLeaderboard() error {
	return a.NavigateTo(ScreenLeaderboard)
}

// ShowHelp displays the help screen
func (a *App) ShowHelp() error {
	return a.NavigateTo(ScreenHelp)
}

// ShowResults replaces the standings and switches to the leaderboard
func (a *App) ShowResults(standings []tournament.Standing) {
	a.state.mu.Lock()
	a.state.standings = slices.Clone(standings)
	a.state.mu.Unlock()

	a.update(func() {
		_ = a.ShowLeaderboard()
	})
}

// TournamentStarted adds the tournament pairings to the progress screen
func (a *App) TournamentStarted(_ context.Context, info tournament.TournamentInfo) {
	a.update(func() {
		a.progress.Start(info)
	})
}

// MatchCompleted counts a rated match
func (a *App) MatchCompleted(_ context.Context, rec tournament.MatchRecord) {
	a.update(func() {
		a.progress.Record(rec)
	})
}

// MatchSkipped counts a skipped match
func (a *App) MatchSkipped(_ context.Context, failure tournament.MatchError) {
	a.update(func() {
		a.progress.Skip(failure)
	})
}

// TournamentCompleted keeps the summary. Round robins switch straight to the
// leaderboard; gauntlet runs are shown through ShowResults once all of them
// are done.
func (a *App) TournamentCompleted(_ context.Context, summary tournament.TournamentSummary) {
	a.state.mu.Lock()
	a.state.summary = &summary
	if summary.Kind == tournament.KindRoundRobin {
		a.state.standings = slices.Clone(summary.Standings)
	}
	a.state.mu.Unlock()

	if summary.Kind == tournament.KindRoundRobin {
		a.update(func() {
			_ = a.ShowLeaderboard()
		})
	}
}

// update runs fn on the UI goroutine once Run has started and inline
// otherwise
func (a *App) update(fn func()) {
	a.uiMu.Lock()
	if a.queued {
		a.uiMu.Unlock()
		a.tviewApp.QueueUpdateDraw(fn)
		return
	}
	defer a.uiMu.Unlock()
	fn()
}

// Standings returns the latest standings
func (a *App) Standings() []tournament.Standing {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return slices.Clone(a.state.standings)
}

// Summary returns the summary of the last completed tournament
func (a *App) Summary() (tournament.TournamentSummary, bool) {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	if a.state.summary == nil {
		return tournament.TournamentSummary{}, false
	}
	return *a.state.summary, true
}

// Progress returns the progress component
func (a *App) Progress() *components.Progress {
	return a.progress
}

// Leaderboard returns the leaderboard screen
func (a *App) Leaderboard() *screens.LeaderboardScreen {
	return a.leaderboard
}

// ExportStandings exports the current standings through the configured exporter
func (a *App) ExportStandings() (string, error) {
	if a.exportFn == nil {
		return "", ErrNoExporter
	}
	standings := a.Standings()
	if len(standings) == 0 {
		return "", ErrNoStandings
	}

	path, err := a.exportFn(standings)
	if err != nil {
		a.showErrorDialog("Export Failed", fmt.Sprintf("Failed to export standings:\n\n%v", err))
		return "", fmt.Errorf("failed to export standings: %w", err)
	}

	now := time.Now()
	a.state.mu.Lock()
	a.state.lastExportTime = &now
	a.state.lastExportPath = path
	a.state.mu.Unlock()

	return path, nil
}

// Context is cancelled when the user exits the application
func (a *App) Context() context.Context {
	return a.ctx
}

// Exit stops the application
func (a *App) Exit() error {
	a.state.mu.Lock()
	a.state.isRunning = false
	a.state.mu.Unlock()

	a.cancel()
	a.tviewApp.Stop()

	return nil
}

// Run starts the TUI application and blocks until it exits
func (a *App) Run() error {
	if err := a.start(); err != nil {
		return err
	}
	defer a.finish()

	return a.tviewApp.Run()
}

// start hands widget updates over to the event loop. Updates queued before
// the loop runs wait in the tview update channel.
func (a *App) start() error {
	a.uiMu.Lock()
	defer a.uiMu.Unlock()

	a.state.mu.Lock()
	a.state.isRunning = true
	current := a.state.currentScreen
	a.state.mu.Unlock()

	if err := a.NavigateTo(current); err != nil {
		a.state.mu.Lock()
		a.state.isRunning = false
		a.state.mu.Unlock()
		return fmt.Errorf("failed to navigate to %s screen: %w", current, err)
	}
	a.queued = true
	return nil
}

func (a *App) finish() {
	a.uiMu.Lock()
	a.queued = false
	a.uiMu.Unlock()

	a.state.mu.Lock()
	a.state.isRunning = false
	a.state.mu.Unlock()
}

// Stop gracefully stops the application
func (a *App) Stop() {
	if a.IsRunning() {
		_ = a.Exit()
	}
}

// IsRunning returns whether the application is currently running
func (a *App) IsRunning() bool {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.isRunning
}

// GetCurrentScreen returns the current screen type
func (a *App) GetCurrentScreen() ScreenType {
	a.state.mu.RLock()
	defer a.state.mu.RUnlock()
	return a.state.currentScreen
}

// handleGlobalInput handles global keyboard shortcuts
func (a *App) handleGlobalInput(event *tcell.EventKey) *tcell.EventKey {
	for _, binding := range globalKeyBindings {
		if (binding.Key != tcell.KeyRune && event.Key() == binding.Key) ||
			(binding.Key == tcell.KeyRune && event.Key() == tcell.KeyRune && event.Rune() == binding.Rune) {
			if err := binding.Handler(a); err != nil && !errors.Is(err, ErrNoStandings) {
				a.showErrorDialog("Error", err.Error())
			}
			return nil
		}
	}

	return event
}

// updateHeader updates the header text with current screen information
func (a *App) updateHeader() {
	a.state.mu.RLock()
	currentScreen := a.state.currentScreen
	summary := a.state.summary
	lastExport := a.state.lastExportTime
	lastPath := a.state.lastExportPath
	a.state.mu.RUnlock()

	a.mu.RLock()
	screen, exists := a.screens[currentScreen]
	a.mu.RUnlock()
	if !exists {
		return
	}

	tournamentInfo := " | Tournament running"
	if summary != nil {
		status := "completed"
		if summary.Err != nil {
			status = "aborted"
		}
		tournamentInfo = fmt.Sprintf(" | Tournament: %s (%s)", summary.ID, status)
	}

	exportStatus := " | Not exported yet"
	if lastExport != nil {
		elapsed := time.Since(*lastExport)
		switch {
		case elapsed < time.Minute:
			exportStatus = fmt.Sprintf(" | Exported to %s %ds ago", lastPath, int(elapsed.Seconds()))
		case elapsed < time.Hour:
			exportStatus = fmt.Sprintf(" | Exported to %s %dm ago", lastPath, int(elapsed.Minutes()))
		default:
			exportStatus = fmt.Sprintf(" | Exported to %s at %s", lastPath, lastExport.Format("15:04"))
		}
	}

	a.header.SetText(fmt.Sprintf("Screen: %s%s%s", screen.GetTitle(), tournamentInfo, exportStatus))
}

// HeaderText returns the plain header content
func (a *App) HeaderText() string {
	return a.header.GetText(true)
}

// showErrorDialog displays an error message in a modal dialog
func (a *App) showErrorDialog(title, message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			a.pages.RemovePage("error-dialog")
		})

	modal.SetTitle(title).
		SetBorder(true).
		SetBackgroundColor(tcell.ColorDarkRed)

	a.pages.AddPage("error-dialog", modal, true, true)
}

// updateFooter updates the footer with current key bindings
func (a *App) updateFooter() {
	helpText := ""
	for i, binding := range globalKeyBindings {
		if i > 0 {
			helpText += " | "
		}
		helpText += fmt.Sprintf("%s: %s", keyName(binding), binding.Description)
	}

	a.footer.SetText(helpText)
}

func keyName(binding KeyBinding) string {
	if binding.Key == tcell.KeyRune {
		return string(binding.Rune)
	}
	return tcell.KeyNames[binding.Key]
}

// progressScreen adapts the progress component to the Screen interface
type progressScreen struct {
	progress *components.Progress
}

func (p *progressScreen) GetPrimitive() tview.Primitive { return p.progress.GetContainer() }
func (p *progressScreen) OnEnter(any) error             { return nil }
func (p *progressScreen) OnExit(any) error              { return nil }

func (p *progressScreen) GetTitle() string {
	s := p.progress.Snapshot()
	return fmt.Sprintf("Progress (%d/%d)", s.Completed+s.Skipped, s.Total)
}
