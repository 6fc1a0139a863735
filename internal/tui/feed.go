package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"strava-leaderboard/internal/auth"
	"strava-leaderboard/internal/service"
)

// Feed forwards scheduler output into a running watch program
type Feed struct {
	program *tea.Program
}

// NewFeed creates a feed for p
func NewFeed(p *tea.Program) *Feed {
	return &Feed{program: p}
}

// Publish implements service.Sink
func (f *Feed) Publish(ctx context.Context, snap *service.Snapshot) error {
	f.program.Send(SnapshotMsg{Snap: snap})
	return nil
}

// Prompt forwards a consent link from the authorization intake
func (f *Feed) Prompt(p auth.Prompt) {
	f.program.Send(AuthorizationMsg{Prompt: p})
}

// Pump forwards progress updates until ctx is done or progress is closed
func (f *Feed) Pump(ctx context.Context, progress <-chan service.Progress) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-progress:
			if !ok {
				return
			}
			f.program.Send(ProgressMsg{Progress: p})
		}
	}
}
