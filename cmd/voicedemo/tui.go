package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	voicesession "github.com/kampanion/voice-core/core"
	"github.com/kampanion/voice-core/core/events"
)

type sessionEventMsg struct {
	event events.Event
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type transcriptLine struct {
	speaker string
	text    string
}

type model struct {
	session *voicesession.Orchestrator

	spin    spinner.Model
	state   string
	status  string
	muted   bool
	width   int
	lines   []transcriptLine
	partial string
}

func newModel() *model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return &model{
		spin:  spin,
		state: string(voicesession.StateIdle),
		width: 80,
	}
}

func (m *model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "enter":
			if m.session != nil {
				m.session.Tap()
			}
			return m, nil
		case "m":
			if m.session != nil {
				m.muted = !m.muted
				m.session.SetMuted(m.muted)
			}
			return m, nil
		}
		return m, nil

	case sessionEventMsg:
		m.applyEvent(msg.event)
		return m, nil
	}

	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	return m, cmd
}

func (m *model) applyEvent(event events.Event) {
	switch event := event.(type) {
	case events.StateChanged:
		m.state = event.To
		if event.To == string(voicesession.StateListening) {
			m.status = ""
		}
	case events.SessionError:
		m.status = event.Status
	case events.TranscriptFinal:
		m.lines = append(m.lines, transcriptLine{speaker: "you", text: event.Transcript})
	case events.TranscriptEmpty:
		m.status = "Didn't catch anything."
	case events.ResponseSegment:
		m.partial += event.Segment + " "
	case events.ResponseFinal:
		m.lines = append(m.lines, transcriptLine{speaker: "kampanion", text: event.Response})
		m.partial = ""
	case events.ToolInvoked:
		m.status = fmt.Sprintf("using %s", event.Name)
	case events.TurnInterrupted:
		m.partial = ""
		m.status = "Interrupted."
	}
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Kampanion voice demo"))
	b.WriteString("\n\n")

	stateLine := stateStyle.Render(m.state)
	switch m.state {
	case string(voicesession.StateListening),
		string(voicesession.StateTranscribing),
		string(voicesession.StateAwaitingResponse):
		stateLine = m.spin.View() + " " + stateLine
	}
	if m.muted {
		stateLine += statusStyle.Render("  (muted)")
	}
	b.WriteString(stateLine)
	b.WriteString("\n\n")

	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	for _, line := range m.lines {
		style := assistantStyle
		if line.speaker == "you" {
			style = userStyle
		}
		b.WriteString(style.Render(line.speaker + ":"))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(line.text, wrap))
		b.WriteString("\n\n")
	}
	if m.partial != "" {
		b.WriteString(assistantStyle.Render("kampanion:"))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(strings.TrimSpace(m.partial), wrap))
		b.WriteString("\n\n")
	}

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("space: talk / done / interrupt   m: mute   q: quit"))
	return b.String()
}
