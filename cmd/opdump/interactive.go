package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/guest-bridge/dispatch"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	filename string
	traces   []dispatch.OpTrace
	detail   viewport.Model
	selected int
	width    int
	height   int
	ready    bool
}

func newInteractiveModel(filename string, traces []dispatch.OpTrace) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		traces:   traces,
	}
}

func runInteractive(filename string, traces []dispatch.OpTrace) error {
	p := tea.NewProgram(newInteractiveModel(filename, traces), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.detail = viewport.New(msg.Width, m.detailHeight())
			m.ready = true
		} else {
			m.detail.Width = msg.Width
			m.detail.Height = m.detailHeight()
		}
		m.refreshDetail()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refreshDetail()
			}
		case "down", "j":
			if m.selected < len(m.traces)-1 {
				m.selected++
				m.refreshDetail()
			}
		default:
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// detailHeight reserves rows for the title, the op list, and the help line.
func (m *interactiveModel) detailHeight() int {
	h := m.height - len(m.traces) - 4
	if h < 3 {
		h = 3
	}
	return h
}

func (m *interactiveModel) refreshDetail() {
	if !m.ready || len(m.traces) == 0 {
		return
	}
	m.detail.SetContent(strings.Join(traceLines(m.traces[m.selected]), "\n"))
	m.detail.GotoTop()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("batch %s (%d operations)", m.filename, len(m.traces))))
	b.WriteString("\n\n")

	if len(m.traces) == 0 {
		b.WriteString(dimStyle.Render("(empty batch)"))
		b.WriteString("\n")
		return b.String()
	}

	for i, tr := range m.traces {
		line := fmt.Sprintf("[%d] %s", i, tr.Op)
		if tr.Name != "" {
			line += " " + tr.Name
		}
		if i == m.selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + opStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.detail.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • pgup/pgdn scroll • q quit"))
	return b.String()
}
