package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/ancsummary/pkg/ancestral"
)

// Progress bar styles
var (
	barFilledStyle = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

const defaultBarWidth = 40

// =============================================================================
// ProgressModel - live progress of a summarization
// =============================================================================

// progressMsg reports that done of total nodes have been visited.
type progressMsg struct{ done, total int }

// finishedMsg ends the progress view.
type finishedMsg struct{}

// ProgressModel is the bubbletea model showing summarization progress.
type ProgressModel struct {
	Title     string
	Done      int
	Total     int
	Width     int
	Finished  bool
	Cancelled bool
}

// NewProgressModel creates a progress model with the given title.
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{Title: title, Width: defaultBarWidth}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.Done, m.Total = msg.done, msg.total
	case finishedMsg:
		m.Finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.Cancelled = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Width = min(defaultBarWidth, max(10, msg.Width-len(m.Title)-20))
	}
	return m, nil
}

func (m ProgressModel) View() string {
	if m.Finished {
		return ""
	}
	frac := 0.0
	if m.Total > 0 {
		frac = min(1, float64(m.Done)/float64(m.Total))
	}
	filled := int(frac * float64(m.Width))
	bar := barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", m.Width-filled))

	return fmt.Sprintf("%s %s %s\n",
		StyleDim.Render(m.Title),
		bar,
		StyleDim.Render(fmt.Sprintf("%3.0f%% (%d/%d nodes)", frac*100, m.Done, m.Total)))
}

// =============================================================================
// Running with progress
// =============================================================================

// progressFunc runs work, reporting node visits through progress.
type progressFunc func(ctx context.Context, progress ancestral.ProgressFunc) error

// runWithProgress runs fn while showing a progress bar on stderr. The bar
// is skipped when disabled or when stderr is not a terminal. Quitting the
// view cancels fn.
func runWithProgress(ctx context.Context, title string, enabled bool, fn progressFunc) error {
	if !enabled || !isatty.IsTerminal(os.Stderr.Fd()) {
		return fn(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr))

	errc := make(chan error, 1)
	go func() {
		err := fn(ctx, func(done, total int) { p.Send(progressMsg{done, total}) })
		errc <- err
		p.Send(finishedMsg{})
	}()

	final, _ := p.Run()
	if m, ok := final.(ProgressModel); ok && m.Cancelled {
		cancel()
	}
	err := <-errc
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}
