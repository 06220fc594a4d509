package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/conversation"
	"github.com/klemjul/promptforge/internal/errs"
	"github.com/klemjul/promptforge/internal/evaluator"
	"github.com/klemjul/promptforge/internal/format"
)

type Evaluator interface {
	Evaluate(ctx context.Context, userPrompt string, onFragment func(string)) (*evaluator.Result, error)
	Store() *conversation.Store
}

type ChatTUIModel struct {
	textInput textinput.Model
	viewport  viewport.Model
	title     string
	waiting   bool

	evaluator Evaluator
	ctx       context.Context
	cancel    context.CancelFunc

	// in-flight turn
	events    <-chan tea.Msg
	committed int
	pending   string
	partial   string
	initCmd   tea.Cmd

	// failures holds the error text of failed turns keyed by the store index
	// of their user turn.
	failures map[int]string
	notice   string
}

const (
	CHAT_INPUT_PLACEHOLDER = "Type a prompt..."
	CHAT_WAITING_RESPONSE  = "> ⏳ Analyzing your prompt..."
	CHAT_TYPING_INDICATOR  = "Bot: typing..."
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	titleStyle  = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true)
)

type fragmentMsg struct {
	content string
}

type turnDoneMsg struct {
	err error
}

type InitialModelOptions struct {
	Context   context.Context
	Title     string
	Evaluator Evaluator
	// InitialPrompt is submitted as soon as the program starts.
	InitialPrompt string
}

func InitialModel(opts InitialModelOptions) ChatTUIModel {
	ti := textinput.New()
	ti.Placeholder = CHAT_INPUT_PLACEHOLDER
	ti.Focus()

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	m := ChatTUIModel{
		textInput: ti,
		viewport:  viewport.New(0, 0),
		title:     opts.Title,
		evaluator: opts.Evaluator,
		ctx:       ctx,
		cancel:    cancel,
		failures:  map[int]string{},
	}
	if opts.InitialPrompt != "" {
		m.initCmd = m.submit(opts.InitialPrompt)
	}
	return m
}

func (m ChatTUIModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.initCmd,
		tea.EnableMouseCellMotion,
	)
}

// submit starts a turn for userPrompt. The returned command runs the turn
// and yields its first message; waitForTurn yields the following ones.
func (m *ChatTUIModel) submit(userPrompt string) tea.Cmd {
	events := make(chan tea.Msg)
	m.events = events
	m.waiting = true
	m.notice = ""
	m.pending = userPrompt
	m.partial = ""
	m.committed = m.evaluator.Store().Len()

	ctx, ev := m.ctx, m.evaluator
	return func() tea.Msg {
		go func() {
			defer close(events)
			_, err := ev.Evaluate(ctx, userPrompt, func(fragment string) {
				select {
				case events <- fragmentMsg{content: fragment}:
				case <-ctx.Done():
				}
			})
			select {
			case events <- turnDoneMsg{err: err}:
			case <-ctx.Done():
			}
		}()
		return readTurn(events)
	}
}

func waitForTurn(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return readTurn(events)
	}
}

func readTurn(events <-chan tea.Msg) tea.Msg {
	msg, ok := <-events
	if !ok {
		return nil
	}
	return msg
}

func (m ChatTUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		titleLines := (len(m.title) / msg.Width) + 1
		m.viewport = viewport.New(msg.Width, msg.Height-(3+titleLines))
		m.updateViewport()

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				m.viewport.ScrollUp(1)
			case tea.MouseButtonWheelDown:
				m.viewport.ScrollDown(1)
			}
		}

	case fragmentMsg:
		m.partial += msg.content
		m.updateViewport()
		cmd = waitForTurn(m.events)

	case turnDoneMsg:
		m.finishTurn(msg.err)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
			}
			cmd = tea.Quit
		case tea.KeyEnter:
			if m.textInput.Value() != "" && !m.waiting {
				cmd = m.submit(m.textInput.Value())
				m.textInput.SetValue("")
				m.updateViewport()
			}
		}
	}

	m.textInput, _ = m.textInput.Update(msg)

	if m.waiting {
		m.textInput.Blur()
	} else {
		m.textInput.Focus()
	}

	return m, cmd
}

func (m *ChatTUIModel) finishTurn(err error) {
	m.waiting = false
	m.events = nil
	m.pending = ""
	m.partial = ""

	var invalid *errs.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &invalid):
		m.notice = invalid.Reason
	default:
		if n := m.evaluator.Store().Len(); n > m.committed {
			m.failures[n-1] = err.Error()
		}
	}
}

func (m *ChatTUIModel) updateViewport() {
	turns := m.evaluator.Store().All()
	if m.waiting && m.committed <= len(turns) {
		turns = turns[:m.committed]
	}

	var displayed []string
	for i, turn := range turns {
		switch turn.Role {
		case conversation.Assistant:
			out, _ := format.FormatMarkdownWidth(turn.Content, m.viewport.Width)
			displayed = append(displayed, botStyle.Render(strings.TrimSpace(out)))
		case conversation.User:
			displayed = append(displayed, userStyle.Render(fmt.Sprintf("> %s", turn.Content)))
			if failure, ok := m.failures[i]; ok {
				displayed = append(displayed, errorStyle.Render(fmt.Sprintf("✗ %s", failure)))
			}
		}
	}

	if m.waiting {
		displayed = append(displayed, userStyle.Render(fmt.Sprintf("> %s", m.pending)))
		if m.partial != "" {
			displayed = append(displayed, botStyle.Render(m.partial))
		} else {
			displayed = append(displayed, botStyle.Render(CHAT_TYPING_INDICATOR))
		}
	}
	if m.notice != "" {
		displayed = append(displayed, noticeStyle.Render(m.notice))
	}

	content := strings.Join(displayed, "\n\n")
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m ChatTUIModel) View() string {
	input := m.textInput.View()

	if m.waiting {
		input = CHAT_WAITING_RESPONSE
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.viewport.Width).Render(m.title),
		m.viewport.View(),
		inputStyle.Width(m.viewport.Width).Render(input),
	)
}
