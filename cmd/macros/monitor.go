package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ellypaws/macrotune/pkg/finetune"
	"github.com/ellypaws/macrotune/pkg/llm"
)

// history is how many past status lines the monitor keeps on screen.
const history = 8

type statusMsg finetune.Status

type doneMsg struct {
	outcome finetune.Outcome
	err     error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#447294"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a0c0d6"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6f9cbd")).Padding(1, 2)
)

// statusColor colours both driver states and remote job statuses; the two
// share the names succeeded and failed.
func statusColor(status string) lipgloss.Color {
	switch status {
	case string(llm.StatusSucceeded):
		return "#7ac77a"
	case string(llm.StatusFailed), string(llm.StatusCancelled):
		return "#d16a6a"
	case string(finetune.StateAbandoned):
		return "#f4d6bc"
	default:
		return "#84b1d1"
	}
}

type model struct {
	width   int
	height  int
	title   string
	spinner spinner.Model
	latest  *finetune.Status
	lines   []string
	done    *doneMsg
	// cancel stops the driver; the program quits once it reports back.
	cancel   context.CancelFunc
	stopping bool
}

func newModel(title string, cancel context.CancelFunc) model {
	return model{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Moon)),
		cancel:  cancel,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case statusMsg:
		status := finetune.Status(msg)
		m.latest = &status
		m.lines = append(m.lines, formatStatus(status))
		if len(m.lines) > history {
			m.lines = m.lines[len(m.lines)-history:]
		}
	case doneMsg:
		m.done = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.stopping && m.cancel != nil {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		}
	}
	return m.propagate(msg)
}

func (m model) propagate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func IF[T any](condition bool, a, b T) T {
	if condition {
		return a
	}
	return b
}

func formatStatus(s finetune.Status) string {
	var b strings.Builder
	b.WriteString(faintStyle.Render(s.At.Format("15:04:05")))
	b.WriteString(" ")
	if s.Attempt > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("#%d ", s.Attempt)))
	}
	b.WriteString(s.Message)
	return b.String()
}

func (m model) View() string {
	state := finetune.StateUnvalidated
	if m.latest != nil {
		state = m.latest.State
	}
	if m.done != nil {
		state = m.done.outcome.State
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		IF(m.done == nil, m.spinner.View()+" ", ""),
		titleStyle.Render(m.title),
		"  ",
		lipgloss.NewStyle().Bold(true).Foreground(statusColor(string(state))).Render(string(state)),
	)

	rows := []string{header, ""}
	if m.latest != nil && m.latest.Job.ID != "" {
		job := m.latest.Job
		rows = append(rows, messageStyle.Render(fmt.Sprintf("job %s  remote status %s", job.ID, job.Status)))
		if job.TrainedTokens != nil {
			rows = append(rows, messageStyle.Render(fmt.Sprintf("trained tokens %d", *job.TrainedTokens)))
		}
		rows = append(rows, "")
	}
	rows = append(rows, m.lines...)
	rows = append(rows, "", faintStyle.Render(IF(m.stopping, "stopping...", "press q to stop monitoring")))

	box := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.PlaceHorizontal(
		m.width, lipgloss.Center,
		lipgloss.PlaceVertical(
			m.height, lipgloss.Center,
			box,
		),
	)
}

// runMonitor runs the driver in the background and renders its progress until
// it finishes. Quitting the view cancels the driver, which abandons the job.
func runMonitor(ctx context.Context, title string, run func(context.Context, finetune.Observer) (finetune.Outcome, error)) (finetune.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, cancel), tea.WithAltScreen())

	done := make(chan doneMsg, 1)
	go func() {
		outcome, err := run(ctx, func(s finetune.Status) { p.Send(statusMsg(s)) })
		result := doneMsg{outcome: outcome, err: err}
		done <- result
		p.Send(result)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		result := <-done
		return result.outcome, fmt.Errorf("monitor: %w", err)
	}

	result := <-done
	return result.outcome, result.err
}
