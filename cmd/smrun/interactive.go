package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/asyncsm/future"
	"github.com/wippyai/asyncsm/statemachine"
	"github.com/wippyai/asyncsm/telemetry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxEventLines = 12

// manualOp is an operation the user completes by hand.
type manualOp struct {
	promise *future.Promise[int]
	name    string
	outcome string
}

type manualLocals struct {
	ops     []*future.Future[int]
	skipped int
	i       int
	sum     int
}

const (
	manualAwait statemachine.StateID = 1
	manualCatch statemachine.StateID = 2
)

// manualTransition sums the operations in order. A failed operation is
// caught, counted as skipped, and the loop continues with the next one.
func manualTransition(m *statemachine.Machine[manualLocals, string]) error {
	l := &m.Locals
	if m.Faulted() {
		if _, ok := statemachine.TryRecover[error](m); ok {
			l.skipped++
		}
		m.ExitGuardedCode(manualAwait, false)
		l.i++
	} else if !m.Entering() {
		v, err := l.ops[l.i].Result()
		if err != nil {
			return err
		}
		m.ExitGuardedCode(manualAwait, false)
		l.sum += v
		l.i++
	}

	for l.i < len(l.ops) {
		m.EnterGuardedCode(manualCatch)
		if !statemachine.MoveNext(m, l.ops[l.i], manualCatch) {
			return nil
		}
		v, err := l.ops[l.i].Result()
		if err != nil {
			return err
		}
		m.ExitGuardedCode(manualAwait, false)
		l.sum += v
		l.i++
	}
	m.Complete(fmt.Sprintf("sum=%d skipped=%d", l.sum, l.skipped))
	return nil
}

type inputMode int

const (
	modeSelect inputMode = iota
	modeResolve
	modeFail
)

type interactiveModel struct {
	err      error
	program  *tea.Program
	machine  *statemachine.Machine[manualLocals, string]
	obs      statemachine.Observer
	result   string
	ops      []*manualOp
	events   []string
	input    textinput.Model
	selected int
	mode     inputMode
	done     bool
}

type eventMsg statemachine.Event

type doneMsg struct {
	err    error
	result string
}

type resolvedMsg struct{}

type startedMsg struct {
	machine *statemachine.Machine[manualLocals, string]
	fut     *future.Future[string]
}

func newInteractiveModel(obs statemachine.Observer) *interactiveModel {
	ti := textinput.New()
	ti.Width = 30
	return &interactiveModel{
		obs:   obs,
		input: ti,
		ops: []*manualOp{
			{name: "fetch-a", promise: future.NewPromise[int]()},
			{name: "fetch-b", promise: future.NewPromise[int]()},
			{name: "fetch-c", promise: future.NewPromise[int]()},
		},
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.start
}

// start runs the first turn off the event loop, since observer events are
// sent back into the program.
func (m *interactiveModel) start() tea.Msg {
	locals := manualLocals{}
	for _, op := range m.ops {
		locals.ops = append(locals.ops, op.promise.Future())
	}
	send := statemachine.ObserverFunc(func(e statemachine.Event) {
		m.program.Send(eventMsg(e))
	})
	machine := statemachine.New(manualTransition, locals, &statemachine.Config{
		Name:     "manual",
		Observer: telemetry.Multi(m.obs, send),
	})
	return startedMsg{machine: machine, fut: machine.Start()}
}

func waitDone(fut *future.Future[string]) tea.Cmd {
	return func() tea.Msg {
		v, err := fut.Await(context.Background())
		return doneMsg{result: v, err: err}
	}
}

func (m *interactiveModel) complete(op *manualOp, value int, err error) tea.Cmd {
	return func() tea.Msg {
		if err != nil {
			op.promise.TrySetError(err)
		} else {
			op.promise.TrySetResult(value)
		}
		return resolvedMsg{}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != modeSelect {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.ops)-1 {
				m.selected++
			}
		case "r", "enter":
			if !m.ops[m.selected].promise.Future().IsCompleted() && !m.done {
				m.beginInput(modeResolve, "value: ", "integer")
			}
		case "f":
			if !m.ops[m.selected].promise.Future().IsCompleted() && !m.done {
				m.beginInput(modeFail, "error: ", "message")
			}
		}

	case eventMsg:
		e := statemachine.Event(msg)
		line := fmt.Sprintf("%-9s state=%d depth=%d turn=%d", e.Type, e.State, e.Depth, e.Turn)
		if e.Err != nil {
			line += " " + e.Err.Error()
		}
		m.events = append(m.events, line)
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}

	case startedMsg:
		m.machine = msg.machine
		return m, waitDone(msg.fut)

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
	}
	return m, nil
}

func (m *interactiveModel) beginInput(mode inputMode, prompt, placeholder string) {
	m.mode = mode
	m.input.Reset()
	m.input.Prompt = prompt
	m.input.Placeholder = placeholder
	m.input.Focus()
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeSelect
		m.input.Blur()
		return m, nil
	case "enter":
		op := m.ops[m.selected]
		text := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = modeSelect
		m.input.Blur()
		if mode == modeFail {
			if text == "" {
				text = "failed by user"
			}
			op.outcome = "failed: " + text
			return m, m.complete(op, 0, errors.New(text))
		}
		v, err := strconv.Atoi(text)
		if err != nil {
			op.outcome = ""
			m.events = append(m.events, "invalid integer "+strconv.Quote(text))
			return m, nil
		}
		op.outcome = "= " + text
		return m, m.complete(op, v, nil)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("State Machine Runner"))
	b.WriteString(" manual sum\n\n")

	status := "pending"
	if m.machine != nil {
		status = fmt.Sprintf("%s at state %d", m.machine.Status(), m.machine.State())
	}
	b.WriteString("Machine: " + stateStyle.Render(status) + "\n\n")

	for i, op := range m.ops {
		label := "pending"
		if op.promise.Future().IsCompleted() {
			label = op.outcome
		}
		line := fmt.Sprintf("%s  %s", opStyle.Render(op.name), label)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.mode != modeSelect {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
	}

	b.WriteString("Events:\n")
	for _, e := range m.events {
		b.WriteString("  " + e + "\n")
	}
	b.WriteString("\n")

	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render("Result: " + m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	if m.mode == modeSelect {
		b.WriteString(helpStyle.Render("↑/↓ select • r resolve • f fail • q quit"))
	} else {
		b.WriteString(helpStyle.Render("enter submit • esc back"))
	}
	return b.String()
}

func runInteractive(obs statemachine.Observer) error {
	model := newInteractiveModel(obs)
	p := tea.NewProgram(model, tea.WithAltScreen())
	model.program = p
	_, err := p.Run()
	return err
}
