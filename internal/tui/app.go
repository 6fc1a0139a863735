package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"strava-leaderboard/internal/auth"
	"strava-leaderboard/internal/service"
)

// maxTrend bounds how many past leader totals the chart keeps
const maxTrend = 60

// Status reports what the scheduler is doing
type Status interface {
	State() service.State
	NextCycle() time.Time
}

// SnapshotMsg delivers a finished snapshot
type SnapshotMsg struct {
	Snap *service.Snapshot
}

// ProgressMsg reports the athlete a running cycle just finished
type ProgressMsg struct {
	Progress service.Progress
}

// AuthorizationMsg reports a consent link an athlete must open, or that the
// wait on it is over
type AuthorizationMsg struct {
	Prompt auth.Prompt
}

type tickMsg time.Time

// App is the root Bubble Tea model of the watch screen
type App struct {
	status   Status
	spinner  spinner.Model
	viewport viewport.Model
	help     HelpModel

	latest   *service.Snapshot
	progress service.Progress
	prompts  []auth.Prompt
	// trend holds the leader's total for each snapshot seen this session
	trend  []float64
	cycles int

	state     service.State
	nextCycle time.Time
	showHelp  bool

	width  int
	height int
	ready  bool
	now    func() time.Time
}

// NewApp creates the watch model; latest may be nil
func NewApp(status Status, latest *service.Snapshot) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	a := &App{
		status:  status,
		spinner: s,
		help:    NewHelpModel(),
		now:     time.Now,
	}
	if latest != nil {
		a.record(latest)
	}
	return a
}

// Init starts the spinner and the status poll
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "?":
			a.showHelp = !a.showHelp
			return a, nil
		case "esc":
			a.showHelp = false
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		vpHeight := msg.Height - 16
		if vpHeight < 5 {
			vpHeight = 5
		}
		if !a.ready {
			a.viewport = viewport.New(msg.Width, vpHeight)
			a.ready = true
		} else {
			a.viewport.Width = msg.Width
			a.viewport.Height = vpHeight
		}
		a.refreshViewport()

	case SnapshotMsg:
		a.record(msg.Snap)
		a.progress = service.Progress{}
		return a, nil

	case ProgressMsg:
		a.progress = msg.Progress
		return a, nil

	case AuthorizationMsg:
		a.trackPrompt(msg.Prompt)
		return a, nil

	case tickMsg:
		if a.status != nil {
			a.state = a.status.State()
			a.nextCycle = a.status.NextCycle()
		}
		return a, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.ready {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

// record keeps snap as the latest and extends the leader trend
func (a *App) record(snap *service.Snapshot) {
	a.latest = snap
	a.cycles++
	if leader, ok := snap.Leader(); ok {
		a.trend = append(a.trend, leader.Total)
		if len(a.trend) > maxTrend {
			a.trend = a.trend[len(a.trend)-maxTrend:]
		}
	}
	a.refreshViewport()
}

func (a *App) trackPrompt(p auth.Prompt) {
	kept := a.prompts[:0]
	for _, open := range a.prompts {
		if open.ID != p.ID {
			kept = append(kept, open)
		}
	}
	a.prompts = kept
	if !p.Closed {
		a.prompts = append(a.prompts, p)
	}
}

func (a *App) refreshViewport() {
	if !a.ready || a.latest == nil {
		return
	}
	a.viewport.SetContent(RenderLeaderboard(a.latest))
}

// View renders the watch screen
func (a *App) View() string {
	sections := []string{headerStyle.Render("Strava Calorie Leaderboard")}

	if a.showHelp {
		sections = append(sections, a.help.View())
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, a.renderStatus())
	if len(a.prompts) > 0 {
		sections = append(sections, a.renderPrompts())
	}

	if a.latest == nil {
		sections = append(sections, "\n  Waiting for the first cycle to finish...")
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if a.ready {
		sections = append(sections, a.viewport.View())
	} else {
		sections = append(sections, RenderLeaderboard(a.latest))
	}
	if failures := RenderFailures(a.latest); failures != "" {
		sections = append(sections, failures)
	}
	if chart := a.renderTrend(); chart != "" {
		sections = append(sections, chart)
	}

	sections = append(sections, statusStyle.Render(RenderKeyHelp("q", "quit")+"  "+RenderKeyHelp("?", "help")+"  "+RenderKeyHelp("j/k", "scroll")))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderStatus() string {
	if a.state == service.StateRunningCycle {
		line := a.spinner.View() + " Running cycle"
		if p := a.progress; p.Total > 0 {
			line += fmt.Sprintf("  %s %d/%d  %s",
				RenderProgressBar(float64(p.Completed)/float64(p.Total), 20),
				p.Completed, p.Total, p.User)
		}
		return line
	}

	next := "next cycle " + FormatRelative(a.nextCycle, a.now())
	if a.latest == nil {
		return helpDescStyle.Render(next)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		RenderSummary(a.latest, a.now()),
		"    ",
		helpDescStyle.Render(fmt.Sprintf("%s\n%d cycle(s) this session", next, a.cycles)),
	)
}

func (a *App) renderPrompts() string {
	lines := []string{warningStyle.Render("Authorization required")}
	for _, p := range a.prompts {
		lines = append(lines,
			"Open this link to connect a Strava account:",
			p.URL,
			helpDescStyle.Render("expires "+FormatRelative(p.Deadline, a.now())),
		)
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (a *App) renderTrend() string {
	if len(a.trend) < 2 {
		return ""
	}
	width := 60
	if a.width > 10 && a.width-10 < width {
		width = a.width - 10
	}
	graph := asciigraph.Plot(a.trend,
		asciigraph.Height(6),
		asciigraph.Width(width),
		asciigraph.Precision(0),
	)
	title := cardTitleStyle.Render("Leader total, this session")
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}
