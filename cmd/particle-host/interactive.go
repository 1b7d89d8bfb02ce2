package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/particle-runtime/host"
)

type interactiveModel struct {
	err      error
	session  *session
	log      []string
	input    textinput.Model
	view     viewport.Model
	filename string
	state    modelState
	ready    bool
}

type modelState int

const (
	stateSteps modelState = iota
	stateEvent
)

func newInteractiveModel(filename string) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		state:    stateSteps,
		view:     viewport.New(80, 12),
	}
}

type loadedMsg struct {
	err     error
	session *session
	startup []host.Message
}

type stepMsg struct {
	results []host.StepResult
}

type actionMsg struct {
	err   error
	title string
	lines []string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	s, startup, err := openSession(context.Background(), m.filename)
	return loadedMsg{err: err, session: s, startup: startup}
}

func (m *interactiveModel) runSteps(all bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var out []host.StepResult
		for {
			res, ok := m.session.runner.Next(ctx)
			if !ok {
				break
			}
			out = append(out, res)
			if !all {
				break
			}
		}
		return stepMsg{results: out}
	}
}

func (m *interactiveModel) pump(order host.Order) tea.Cmd {
	return func() tea.Msg {
		n, err := m.session.rt.Pump(context.Background(), order)
		lines := []string{fmt.Sprintf("delivered %d", n)}
		for _, msg := range m.session.rt.Drain() {
			lines = append(lines, msg.String())
		}
		title := "pump"
		if order == host.LIFO {
			title = "pump (reverse)"
		}
		return actionMsg{title: title, lines: lines, err: err}
	}
}

func (m *interactiveModel) fireEvent(target string) tea.Cmd {
	return func() tea.Msg {
		slot, handler, ok := strings.Cut(target, "/")
		if !ok {
			slot, handler = "root", target
		}
		err := m.session.rt.FireEvent(slot, handler)
		var lines []string
		for _, msg := range m.session.rt.Drain() {
			lines = append(lines, msg.String())
		}
		return actionMsg{title: "event " + slot + "/" + handler, lines: lines, err: err}
	}
}

func (m *interactiveModel) close() {
	if m.session != nil {
		m.session.close(context.Background())
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateEvent {
			switch msg.String() {
			case "enter":
				target := m.input.Value()
				m.state = stateSteps
				if target == "" {
					return m, nil
				}
				return m, m.fireEvent(target)
			case "esc":
				m.state = stateSteps
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit
		}
		if !m.ready {
			return m, nil
		}
		switch msg.String() {
		case "enter", "n":
			return m, m.runSteps(false)
		case "a":
			return m, m.runSteps(true)
		case "p":
			return m, m.pump(host.FIFO)
		case "r":
			return m, m.pump(host.LIFO)
		case "e":
			ti := textinput.New()
			ti.Placeholder = "slot/handler"
			ti.Prompt = "event: "
			ti.Width = 40
			ti.Focus()
			m.input = ti
			m.state = stateEvent
			return m, textinput.Blink
		}

	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		if h := msg.Height - 14; h > 4 {
			m.view.Height = h
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.ready = true
		m.appendLog("init", linesOf(msg.startup), nil)

	case stepMsg:
		for _, res := range msg.results {
			title := fmt.Sprintf("[%d] %s", res.Index, describeStep(res.Step))
			m.appendLog(title, resultLines(res), res.Err)
		}

	case actionMsg:
		m.appendLog(msg.title, msg.lines, msg.err)
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func linesOf(msgs []host.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.String())
	}
	return out
}

func (m *interactiveModel) appendLog(title string, lines []string, err error) {
	m.log = append(m.log, stepStyle.Render(title))
	for _, line := range lines {
		m.log = append(m.log, "  "+line)
	}
	if err != nil {
		m.log = append(m.log, "  "+errorStyle.Render("error: "+err.Error()))
	}
	m.view.SetContent(strings.Join(m.log, "\n"))
	m.view.GotoBottom()
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.ready {
		return "Loading scenario..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Particle Host"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(kindStyle.Render(m.session.source()))
	b.WriteString("\n\n")

	steps := m.session.scenario.Steps
	next := m.session.runner.Position()
	for i, st := range steps {
		line := fmt.Sprintf("%2d %s", i, describeStep(st))
		switch {
		case i == next:
			b.WriteString(selectedStyle.Render("> " + line))
		case i < next:
			b.WriteString(helpStyle.Render("  " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if next >= len(steps) {
		b.WriteString(resultStyle.Render("  all steps run"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.view.View())
	b.WriteString("\n\n")

	if m.state == stateEvent {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter fire • esc back"))
	} else {
		b.WriteString(helpStyle.Render("enter next step • a run all • p pump • r pump reversed • e event • q quit"))
	}
	return b.String()
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInteractiveModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
