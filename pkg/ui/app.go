package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/machinewire/mcpchat/pkg/engine"
	"github.com/machinewire/mcpchat/pkg/notify"
	"github.com/machinewire/mcpchat/pkg/registry"
	"github.com/machinewire/mcpchat/pkg/transcript"
	"github.com/machinewire/mcpchat/pkg/types"
)

const gap = "\n\n"

// Internal event messages.
type entryMsg struct{ entry types.TranscriptEntry }
type noticeMsg struct{ notification notify.Notification }
type turnDoneMsg struct{}

type model struct {
	viewport   viewport.Model
	textarea   textarea.Model
	messages   []string
	notice     string
	engine     *engine.Engine
	registry   *registry.Registry
	entries    chan types.TranscriptEntry
	notices    <-chan notify.Notification
	processing bool
}

/*
New builds the chat view. The UI is a pure subscriber: it renders
transcript appends and notifications and forwards submitted text to the
engine, nothing more.
*/
func New(
	eng *engine.Engine,
	reg *registry.Registry,
	log *transcript.Transcript,
	hub *notify.Hub,
) tea.Model {
	ta := textarea.New()
	ta.Placeholder = "Ask something, or mention a tool..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 2000

	ta.SetWidth(80)
	ta.SetHeight(3)

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	vp.SetContent(`Welcome to mcpchat.
Type a message and press Enter; connected tool servers are used automatically.
Press Ctrl+C or Esc to quit.`)

	m := model{
		textarea: ta,
		viewport: vp,
		engine:   eng,
		registry: reg,
		entries:  make(chan types.TranscriptEntry, 16),
	}

	// Replay the persisted transcript, then forward future appends.
	for _, entry := range log.Entries() {
		m.messages = append(m.messages, renderEntry(entry))
	}

	log.Observe(func(entry types.TranscriptEntry) {
		select {
		case m.entries <- entry:
		default:
		}
	})

	m.notices = hub.Subscribe()

	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.awaitEntry(), m.awaitNotice())
}

func (m model) awaitEntry() tea.Cmd {
	return func() tea.Msg {
		return entryMsg{entry: <-m.entries}
	}
}

func (m model) awaitNotice() tea.Cmd {
	return func() tea.Msg {
		return noticeMsg{notification: <-m.notices}
	}
}

func (m model) submit(query string) tea.Cmd {
	return func() tea.Msg {
		// Errors surface through the notification hub and the transcript;
		// the turn-done event only clears the spinner state.
		_ = m.engine.Submit(context.Background(), query)
		return turnDoneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - lipgloss.Height(gap) - 2
		m.refresh()

	case entryMsg:
		m.messages = append(m.messages, renderEntry(msg.entry))
		m.refresh()
		return m, tea.Batch(tiCmd, vpCmd, m.awaitEntry())

	case noticeMsg:
		m.notice = renderNotice(msg.notification)
		return m, tea.Batch(tiCmd, vpCmd, m.awaitNotice())

	case turnDoneMsg:
		m.processing = false

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			query := strings.TrimSpace(m.textarea.Value())
			if query != "" && !m.processing {
				m.processing = true
				m.textarea.Reset()
				return m, tea.Batch(tiCmd, vpCmd, m.submit(query))
			}
		}
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *model) refresh() {
	if len(m.messages) == 0 {
		return
	}

	m.viewport.SetContent(
		lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.messages, "\n")),
	)
	m.viewport.GotoBottom()
}

func (m model) View() string {
	status := m.statusLine()

	return fmt.Sprintf(
		"%s%s%s\n%s",
		m.viewport.View(),
		gap,
		m.textarea.View(),
		status,
	)
}

func (m model) statusLine() string {
	connected := 0
	total := 0

	for _, server := range m.registry.Servers() {
		total++
		if server.Connected {
			connected++
		}
	}

	line := statusBarStyle.Render(fmt.Sprintf("servers %d/%d connected", connected, total))

	if m.processing {
		line += statusBarStyle.Render(" · thinking...")
	}

	if m.notice != "" {
		line += "  " + m.notice
	}

	return line
}

func renderEntry(entry types.TranscriptEntry) string {
	prefix := senderStyle.Render("You: ")
	if entry.Role == types.RoleAssistant {
		prefix = agentStyle.Render("Assistant: ")
	}

	line := prefix + entry.Content

	if len(entry.UsedTools) > 0 {
		names := make([]string, 0, len(entry.UsedTools))
		for _, tool := range entry.UsedTools {
			names = append(names, tool.Server+"/"+tool.Name)
		}

		line += "\n" + toolTagStyle.Render("tools: "+strings.Join(names, ", "))
	}

	return line
}

func renderNotice(n notify.Notification) string {
	switch n.Severity {
	case notify.Error:
		return errorStyle.Render(n.Message)
	case notify.Warning:
		return warningStyle.Render(n.Message)
	case notify.Success:
		return successStyle.Render(n.Message)
	default:
		return statusBarStyle.Render(n.Message)
	}
}
