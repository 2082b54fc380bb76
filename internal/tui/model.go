package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/models"
	"docchat/internal/session"
)

// ChatPort is the TUI-facing subset of the session.
type ChatPort interface {
	ProcessFile(ctx context.Context, path string) (int, error)
	Ask(ctx context.Context, query string) session.Reply
	Configure(ctx context.Context, credential string) error
	CurrentHistory() []models.ChatMessage
	State() session.State
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

type entry struct {
	kind entryKind
	text string
}

type processedMsg struct {
	path   string
	chunks int
	err    error
}

type replyMsg struct {
	reply session.Reply
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	service  ChatPort
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	busy     bool
	ready    bool
}

// New creates the chat model. intro is shown as the first notice.
func New(ctx context.Context, service ChatPort, intro string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /load <file>, /key <api key>, /quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{ctx: ctx, service: service, input: ti, viewport: vp}
	m.status = m.stateLine()
	if intro != "" {
		m.entries = append(m.entries, entry{kind: entryNotice, text: intro})
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input frame, input line
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case processedMsg:
		m.busy = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: "Error processing document: " + msg.err.Error()})
		} else {
			m.entries = []entry{{kind: entryNotice, text: fmt.Sprintf("Processed %s into %d chunks. Ask away.", msg.path, msg.chunks)}}
		}
		m.status = m.stateLine()
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		kind := entryAssistant
		if msg.reply.Kind == session.ReplyFailed {
			kind = entryError
		}
		switch msg.reply.Kind {
		case session.ReplyNoDocument, session.ReplyRejected:
			kind = entryNotice
		}
		m.entries = append(m.entries, entry{kind: kind, text: msg.reply.Text})
		m.status = m.stateLine()
		if n := len(msg.reply.Context.Passages); n > 0 {
			m.status += fmt.Sprintf("  passages=%d best=%.3f", n, msg.reply.Context.Passages[0].Score)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			return m.handleLine(line)
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleLine(line string) (tea.Model, tea.Cmd) {
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/load":
		if arg == "" {
			m.entries = append(m.entries, entry{kind: entryError, text: "usage: /load <path>"})
			m.refresh()
			return m, nil
		}
		m.busy = true
		m.status = "Processing " + arg + "..."
		return m, m.process(arg)
	case "/key":
		if err := m.service.Configure(m.ctx, arg); err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: err.Error()})
		} else {
			m.entries = append(m.entries, entry{kind: entryNotice, text: "API key configured."})
		}
		m.refresh()
		return m, nil
	case "/history":
		m.entries = m.entries[:0]
		for _, msg := range m.service.CurrentHistory() {
			kind := entryAssistant
			if msg.Role == models.RoleUser {
				kind = entryUser
			}
			m.entries = append(m.entries, entry{kind: kind, text: msg.Content})
		}
		m.refresh()
		return m, nil
	}

	m.entries = append(m.entries, entry{kind: entryUser, text: line})
	m.busy = true
	m.status = "Thinking..."
	m.refresh()
	return m, m.ask(line)
}

func (m Model) process(path string) tea.Cmd {
	return func() tea.Msg {
		n, err := m.service.ProcessFile(m.ctx, path)
		return processedMsg{path: path, chunks: n, err: err}
	}
}

func (m Model) ask(query string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{reply: m.service.Ask(m.ctx, query)}
	}
}

func (m Model) stateLine() string {
	return "State: " + m.service.State().String()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "Nothing here yet."
	}
	width := max(10, m.viewport.Width)
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		var line string
		switch e.kind {
		case entryUser:
			line = userStyle.Render("You: ") + e.text
		case entryAssistant:
			line = assistantStyle.Render("Assistant: ") + e.text
		case entryError:
			line = errorStyle.Render(e.text)
		default:
			line = noticeStyle.Render(e.text)
		}
		parts = append(parts, lipgloss.NewStyle().Width(width).Render(line))
	}
	return strings.Join(parts, "\n\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	noticeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
