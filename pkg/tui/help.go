// Package tui provides Terminal User Interface screens for tournament ranking.
// This file implements the help screen that displays keyboard shortcuts and usage instructions.
package tui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// HelpScreen provides help and keyboard shortcut information
type HelpScreen struct {
	root     *tview.Flex
	textView *tview.TextView
	app      *App
}

// NewHelpScreen creates a new help screen
func NewHelpScreen() *HelpScreen {
	hs := &HelpScreen{
		root:     tview.NewFlex(),
		textView: tview.NewTextView(),
	}

	hs.setupLayout()
	hs.updateContent()
	return hs
}

// GetPrimitive returns the root primitive for this screen
func (hs *HelpScreen) GetPrimitive() tview.Primitive {
	return hs.root
}

// OnEnter is called when the help screen becomes active
func (hs *HelpScreen) OnEnter(app any) error {
	if a, ok := app.(*App); ok {
		hs.app = a
	}
	return nil
}

// OnExit is called when leaving the help screen
func (hs *HelpScreen) OnExit(any) error {
	return nil
}

// GetTitle returns the screen title
func (hs *HelpScreen) GetTitle() string {
	return "Help"
}

// Text returns the plain help content
func (hs *HelpScreen) Text() string {
	return hs.textView.GetText(true)
}

// setupLayout configures the help screen layout
func (hs *HelpScreen) setupLayout() {
	hs.textView.
		SetBorder(true).
		SetTitle("Help - Skill Rank Tournament").
		SetTitleAlign(tview.AlignCenter)

	hs.textView.SetWrap(true).
		SetDynamicColors(true).
		SetScrollable(true)

	hs.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEsc || event.Rune() == 'q' || event.Rune() == 'Q' {
			if hs.app != nil {
				_ = hs.app.GoBack()
			}
			return nil
		}
		return event
	})

	hs.root.AddItem(hs.textView, 0, 1, true)
}

// updateContent renders the help text
func (hs *HelpScreen) updateContent() {
	var content strings.Builder

	content.WriteString("[yellow]Skill Rank Tournament[-]\n\n")
	content.WriteString("Candidates play each other in simulated matches scored by an oracle.\n")
	content.WriteString("Every match updates a TrueSkill rating and an Elo rating side by side.\n\n")

	content.WriteString("[green]Global Keyboard Shortcuts[-]\n")
	content.WriteString("═════════════════════════════\n")
	for _, binding := range globalKeyBindings {
		content.WriteString("[white]")
		content.WriteString(keyName(binding))
		content.WriteString("[-]  - ")
		content.WriteString(binding.Description)
		content.WriteString("\n")
	}

	content.WriteString("\n[green]Screens[-]\n")
	content.WriteString("═══════\n")
	content.WriteString("[white]Progress[-]    - Pairings played, skipped matches and the latest results\n")
	content.WriteString("[white]Leaderboard[-] - Standings ranked by exposure (mu - 3 sigma)\n")
	content.WriteString("[white]Help[-]        - This help screen\n")

	content.WriteString("\n[green]Leaderboard Keys[-]\n")
	content.WriteString("════════════════\n")
	content.WriteString("[white]S[-]  - Cycle sort field (rank, Elo, mu, sigma, ID)\n")
	content.WriteString("[white]O[-]  - Toggle sort order\n")
	content.WriteString("[white]C[-]  - Clear filters\n")
	content.WriteString("[white]E[-]  - Export standings\n")
	content.WriteString("[white]Q[-]  - Back\n")

	content.WriteString("\n[green]Tips[-]\n")
	content.WriteString("════\n")
	content.WriteString("• Matches the oracle cannot score are skipped and counted, the tournament goes on\n")
	content.WriteString("• Exiting cancels the running tournament, standings so far are kept\n")
	content.WriteString("• With a journal directory every rating change is written to a hash-chained log\n")

	hs.textView.SetText(content.String())
}
