// Package tui is the interactive chat interface, a bubbletea program with
// a scrollback viewport, a multi-line input, and streaming responses that
// can be cancelled without leaving the session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xuopoj/sd-helper/internal/llm"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	titleStyle     = lipgloss.NewStyle().Bold(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

// Options configures a chat session.
type Options struct {
	Client      *llm.Client
	Messages    []llm.Message
	ModelName   string
	Temperature float64
	MaxTokens   int
}

type (
	chunkMsg      string
	streamDoneMsg struct{ err error }
)

// Model is the bubbletea model for the chat session.
type Model struct {
	opts     Options
	messages []llm.Message
	initial  []llm.Message

	viewport viewport.Model
	textarea textarea.Model
	spin     spinner.Model

	transcript []string
	partial    strings.Builder

	streaming bool
	cancel    context.CancelFunc
	events    chan tea.Msg

	width  int
	height int
	ready  bool
}

// New builds the chat model. The seed messages (system prompt, file
// context) survive Ctrl+L clears.
func New(opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message (enter to send, ctrl+q to quit)"
	ta.SetHeight(3)
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#54baff"))

	m := Model{
		opts:     opts,
		messages: append([]llm.Message(nil), opts.Messages...),
		initial:  append([]llm.Message(nil), opts.Messages...),
		textarea: ta,
		spin:     sp,
		events:   make(chan tea.Msg, 64),
	}
	for _, msg := range m.messages {
		m.transcript = append(m.transcript, renderMessage(msg))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick)
}

// waitEvent forwards the next streaming event into the program loop.
func (m Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - m.textarea.Height() - 4
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(msg.Width - 2)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "esc":
			if m.streaming && m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case "ctrl+l":
			return m.clearHistory()
		case "enter":
			return m.submit()
		}

	case chunkMsg:
		m.partial.WriteString(string(msg))
		m.refreshViewport()
		return m, m.waitEvent()

	case streamDoneMsg:
		return m.finishStream(msg.err)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" || m.streaming {
		return m, nil
	}
	switch text {
	case "/clear":
		m.textarea.Reset()
		return m.clearHistory()
	case "/exit", "/quit":
		return m, tea.Quit
	}
	m.textarea.Reset()

	userMsg := llm.Message{Role: "user", Content: text}
	m.messages = append(m.messages, userMsg)
	m.transcript = append(m.transcript, renderMessage(userMsg))
	m.partial.Reset()
	m.streaming = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	client := m.opts.Client
	messages := append([]llm.Message(nil), m.messages...)
	opts := llm.Options{Temperature: m.opts.Temperature, MaxTokens: m.opts.MaxTokens}
	events := m.events
	go func() {
		err := client.Stream(ctx, messages, opts, func(chunk string) error {
			events <- chunkMsg(chunk)
			return nil
		})
		events <- streamDoneMsg{err: err}
	}()

	m.refreshViewport()
	return m, m.waitEvent()
}

func (m Model) finishStream(err error) (tea.Model, tea.Cmd) {
	m.streaming = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	full := m.partial.String()
	m.partial.Reset()

	if full != "" {
		assistant := llm.Message{Role: "assistant", Content: full}
		m.messages = append(m.messages, assistant)
		m.transcript = append(m.transcript, renderMessage(assistant))
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		m.transcript = append(m.transcript, systemStyle.Render("[cancelled]"))
	default:
		m.transcript = append(m.transcript, errorStyle.Render("Error: "+err.Error()))
		// Drop the unanswered user turn so a retry does not double it.
		if full == "" && len(m.messages) > 0 && m.messages[len(m.messages)-1].Role == "user" {
			m.messages = m.messages[:len(m.messages)-1]
		}
	}

	m.refreshViewport()
	m.textarea.Focus()
	return m, nil
}

func (m Model) clearHistory() (tea.Model, tea.Cmd) {
	if m.streaming && m.cancel != nil {
		m.cancel()
	}
	m.streaming = false
	m.partial.Reset()
	m.messages = append([]llm.Message(nil), m.initial...)
	m.transcript = []string{systemStyle.Render("History cleared.")}
	for _, msg := range m.initial {
		m.transcript = append(m.transcript, renderMessage(msg))
	}
	m.refreshViewport()
	return m, nil
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	content := strings.Join(m.transcript, "\n")
	if m.partial.Len() > 0 {
		content += "\n" + assistantStyle.Render("Assistant>") + " " + m.partial.String()
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(content))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	title := titleStyle.Render("sd-helper chat") + "  " + helpStyle.Render(fmt.Sprintf(
		"%s | temp=%.1f | max_tokens=%d", m.opts.ModelName, m.opts.Temperature, m.opts.MaxTokens))

	status := helpStyle.Render("enter: send • esc: cancel stream • ctrl+l: clear • ctrl+q: quit")
	if m.streaming {
		status = m.spin.View() + " streaming... " + status
	}

	return title + "\n" + m.viewport.View() + "\n" + m.textarea.View() + "\n" + status
}

func renderMessage(msg llm.Message) string {
	text := messageText(msg)
	switch msg.Role {
	case "system":
		return systemStyle.Render("System: " + text)
	case "assistant":
		return assistantStyle.Render("Assistant>") + " " + text
	default:
		return userStyle.Render("You>") + " " + text
	}
}

// messageText flattens a message's content for display; vision content
// lists render their text parts plus an attachment marker.
func messageText(msg llm.Message) string {
	if s, ok := msg.Content.(string); ok {
		return s
	}
	return "[attachment]"
}

// Run starts the chat program and blocks until the user quits.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running chat TUI: %w", err)
	}
	return nil
}
