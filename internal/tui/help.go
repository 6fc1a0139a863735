package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HelpModel renders the help overlay
type HelpModel struct{}

// NewHelpModel creates a new help model
func NewHelpModel() HelpModel {
	return HelpModel{}
}

// View renders the help overlay
func (m HelpModel) View() string {
	var sections []string

	sections = append(sections, cardTitleStyle.Render("Keyboard Shortcuts"))
	sections = append(sections, m.renderSection("Watch", []keyHelp{
		{"j / down", "Scroll standings down"},
		{"k / up", "Scroll standings up"},
		{"?", "Toggle this help"},
		{"esc", "Close help"},
		{"q", "Quit"},
	}))
	sections = append(sections, m.renderColumnsHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

type keyHelp struct {
	key  string
	desc string
}

func (m HelpModel) renderSection(title string, keys []keyHelp) string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render(title))

	for _, k := range keys {
		lines = append(lines, "  "+RenderKeyHelp(k.key, k.desc))
	}

	return strings.Join(lines, "\n")
}

func (m HelpModel) renderColumnsHelp() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Columns"))
	lines = append(lines, "")

	columns := []struct {
		name string
		desc string
	}{
		{"Calories", "Sum of Strava's calorie estimates since the start date."},
		{"Acts", "Activities listed in the window."},
		{"Missing", "Activities with no calorie estimate or a failed detail fetch."},
	}

	for _, c := range columns {
		lines = append(lines, "  "+helpKeyStyle.Render(c.name))
		lines = append(lines, "  "+helpDescStyle.Render(c.desc))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
