package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"strava-leaderboard/internal/service"
)

// Console prints every snapshot to a writer. It is the sink used outside
// the watch screen.
type Console struct {
	w   io.Writer
	now func() time.Time
}

// NewConsole creates a console sink writing to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, now: time.Now}
}

// Publish implements service.Sink
func (c *Console) Publish(ctx context.Context, snap *service.Snapshot) error {
	sections := []string{
		headerStyle.Render("Strava Calorie Leaderboard"),
		RenderLeaderboard(snap),
	}
	if failures := RenderFailures(snap); failures != "" {
		sections = append(sections, failures)
	}
	sections = append(sections, statusStyle.Render(RenderSummary(snap, c.now())))

	_, err := fmt.Fprintln(c.w, lipgloss.JoinVertical(lipgloss.Left, sections...))
	return err
}
