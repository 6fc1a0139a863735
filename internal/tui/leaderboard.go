package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"strava-leaderboard/internal/service"
)

const nameWidth = 24

// RenderLeaderboard renders a snapshot's standings as a table card
func RenderLeaderboard(snap *service.Snapshot) string {
	title := cardTitleStyle.Render("Calories since " + snap.Since.Format("Jan 02, 2006"))

	if len(snap.Entries) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No athletes ranked this cycle"))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%4s  %-*s  %14s  %8s  %7s",
		"#", nameWidth, "Athlete", "Calories", "Acts", "Missing"))

	rows := []string{header}
	for _, e := range snap.Entries {
		line := fmt.Sprintf("%4d  %-*s  %14s  %8d  %7s",
			e.Rank,
			nameWidth, truncateName(e.Name, nameWidth),
			FormatCalories(e.Total),
			e.Activities,
			FormatMissing(e.Missing, e.Activities),
		)
		style := tableRowStyle
		switch {
		case e.Failed:
			style = failedRowStyle
		case e.Rank == 1:
			style = leaderRowStyle
		}
		rows = append(rows, style.Render(line))
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}

// RenderFailures lists athletes whose cycle failed; empty when none did
func RenderFailures(snap *service.Snapshot) string {
	if len(snap.Failures) == 0 {
		return ""
	}

	lines := []string{warningStyle.Render(fmt.Sprintf("%d athlete(s) failed (policy: %s)", len(snap.Failures), snap.Policy))}
	for _, f := range snap.Failures {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("  %s [%s] %s", f.Name, f.Stage, f.Error)))
	}
	return strings.Join(lines, "\n")
}

// RenderSummary renders the cycle metadata card
func RenderSummary(snap *service.Snapshot, now time.Time) string {
	lines := []string{
		RenderMetric("Cycle", snap.ID),
		RenderMetric("Finished", FormatRelative(snap.FinishedAt, now)),
		RenderMetric("Took", snap.FinishedAt.Sub(snap.StartedAt).Round(time.Second).String()),
		RenderMetric("Ranked", fmt.Sprintf("%d", len(snap.Entries))),
	}
	if leader, ok := snap.Leader(); ok {
		lines = append(lines, RenderMetric("Leader", leader.Name+" "+successStyle.Render(FormatCalories(leader.Total))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
