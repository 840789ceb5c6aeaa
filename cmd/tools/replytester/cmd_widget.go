package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	modelchat "github.com/pixelforge/studio/backend/internal/model/chat"
	"github.com/pixelforge/studio/backend/internal/service/chat"
)

var widgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Run the chat widget in the terminal (ctrl+o toggles, enter sends, esc quits)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadEnvironment(io.Discard)
		if err != nil {
			return err
		}
		defer closer.Close()

		svc, err := newChatService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		snap, err := svc.CreateSession(cmd.Context(), "")
		if err != nil {
			return err
		}
		session, err := svc.Session(snap.ID)
		if err != nil {
			return err
		}
		defer func() { _ = svc.EndSession(context.Background(), snap.ID) }()

		p := tea.NewProgram(newWidgetModel(cmd.Context(), session), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

type replyMsg struct {
	reply modelchat.Message
	err   error
}

type widgetTheme struct {
	header  lipgloss.Style
	user    lipgloss.Style
	bot     lipgloss.Style
	stamp   lipgloss.Style
	status  lipgloss.Style
	closed  lipgloss.Style
	errText lipgloss.Style
}

func newWidgetTheme() widgetTheme {
	purple := lipgloss.Color("#7c3aed")
	blue := lipgloss.Color("#2563eb")
	muted := lipgloss.Color("#9ca3af")

	return widgetTheme{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(purple).
			Padding(0, 1),
		user:    lipgloss.NewStyle().Foreground(blue).Bold(true),
		bot:     lipgloss.NewStyle().Foreground(purple).Bold(true),
		stamp:   lipgloss.NewStyle().Foreground(muted),
		status:  lipgloss.NewStyle().Foreground(muted).Italic(true),
		closed:  lipgloss.NewStyle().Foreground(muted).Padding(1, 2),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")),
	}
}

// widgetModel mirrors the site widget: a toggle, a scrolling transcript, a typing indicator
// and an input that is disabled while a reply resolves.
type widgetModel struct {
	ctx      context.Context
	session  *chat.Session
	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    widgetTheme

	resolving bool
	lastErr   error
	width     int
	height    int
}

func newWidgetModel(ctx context.Context, session *chat.Session) widgetModel {
	p := session.Persona()

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Placeholder = p.Placeholder
	input.Blur()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7c3aed"))

	return widgetModel{
		ctx:      ctx,
		session:  session,
		input:    input,
		timeline: viewport.New(80, 20),
		spinner:  sp,
		theme:    newWidgetTheme(),
	}
}

func (m widgetModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m widgetModel) submitCmd(text string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		reply, err := session.Submit(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (m widgetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-5, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.renderTimeline()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.resolving {
			m.renderTimeline()
		}

	case replyMsg:
		m.resolving = false
		m.lastErr = msg.err
		if m.session.IsOpen() {
			m.input.Focus()
		}
		m.renderTimeline()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+o":
			m.toggle()
			return m, nil
		case "enter":
			if !m.session.IsOpen() || m.resolving {
				return m, nil
			}
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.input.Blur()
			m.resolving = true
			m.lastErr = nil
			cmds = append(cmds, m.submitCmd(text), m.spinner.Tick)
			return m, tea.Batch(cmds...)
		}

		if m.session.IsOpen() && !m.resolving {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *widgetModel) toggle() {
	if m.session.IsOpen() {
		if err := m.session.Close(); err != nil {
			m.lastErr = err
		}
		m.input.Blur()
		return
	}

	if _, err := m.session.Open(); err != nil {
		m.lastErr = err
		return
	}
	if !m.resolving {
		m.input.Focus()
	}
	m.renderTimeline()
}

func (m *widgetModel) renderTimeline() {
	var b strings.Builder
	for _, msg := range m.session.Transcript() {
		label := m.theme.bot.Render(m.session.Persona().Name)
		if msg.Sender == modelchat.SenderUser {
			label = m.theme.user.Render("You")
		}
		fmt.Fprintf(&b, "%s %s\n%s\n\n", label, m.theme.stamp.Render(msg.Timestamp), msg.Text)
	}
	m.timeline.SetContent(b.String())
	m.timeline.GotoBottom()
}

func (m widgetModel) View() string {
	p := m.session.Persona()
	header := m.theme.header.Render(fmt.Sprintf("%s · %s", p.Name, p.Title))

	if !m.session.IsOpen() {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			m.theme.closed.Render("Chat is closed. Press ctrl+o to open it, esc to quit."),
		)
	}

	status := m.theme.status.Render("ctrl+o close · enter send · esc quit")
	if m.resolving {
		status = m.spinner.View() + " " + m.theme.status.Render("typing...")
	} else if m.lastErr != nil {
		status = m.theme.errText.Render(m.lastErr.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.timeline.View(),
		status,
		m.input.View(),
	)
}
