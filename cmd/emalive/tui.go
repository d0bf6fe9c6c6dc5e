package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/internal/utils"
	"github.com/muesli/reflow/wordwrap"
)

const (
	contextUpdateTimeout = 30 * time.Second
	// RMS of normal speech sits well below 0.3.
	volumeScale = 3.0
	chromeLines = 6
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	badgeStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214"))
	activeStyle = badgeStyle.Background(lipgloss.Color("42"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	modelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// controls is the part of the session the terminal drives.
type controls interface {
	Mute(muted bool)
	IsMuted() bool
	Pause(paused bool) error
	SetVideoEnabled(enabled bool)
	UpdateContext(ctx context.Context, text string) error
}

type eventMsg struct{ event events.Event }

type contextUpdatedMsg struct{ err error }

type model struct {
	session controls

	width    int
	viewport viewport.Model
	input    textinput.Model
	volume   progress.Model
	ready    bool

	lines       []string
	userPartial string
	modelPart   string

	state        string
	speaking     bool
	level        float64
	muted        bool
	paused       bool
	videoEnabled bool
	editing      bool
	closedReason string
}

func newModel(session controls, videoEnabled bool) model {
	input := textinput.New()
	input.Placeholder = "Add context for the model"
	input.CharLimit = 500

	return model{
		session:      session,
		viewport:     viewport.New(80, 10),
		input:        input,
		volume:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		state:        "idle",
		muted:        session.IsMuted(),
		videoEnabled: videoEnabled,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeLines, 3)
		m.volume.Width = max(msg.Width/3, 10)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateKeys(msg)

	case contextUpdatedMsg:
		if msg.err != nil {
			m.notice(fmt.Sprintf("context update failed: %v", msg.err))
		} else {
			m.notice("context updated")
		}
		return m, nil

	case eventMsg:
		return m.applyEvent(msg.event)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "m":
		m.session.Mute(!m.muted)
	case "p":
		if err := m.session.Pause(!m.paused); err != nil {
			m.notice(fmt.Sprintf("pause failed: %v", err))
			return m, nil
		}
		m.paused = !m.paused
	case "v":
		m.videoEnabled = !m.videoEnabled
		m.session.SetVideoEnabled(m.videoEnabled)
	case "c":
		m.editing = true
		cmd := m.input.Focus()
		return m, cmd
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.editing = false
		m.input.Blur()
		m.input.SetValue("")
		if text == "" {
			return m, nil
		}
		m.notice("updating context…")
		session := m.session
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), contextUpdateTimeout)
			defer cancel()
			return contextUpdatedMsg{err: session.UpdateContext(ctx, text)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) applyEvent(event events.Event) (tea.Model, tea.Cmd) {
	switch e := event.(type) {
	case events.SessionStateChanged:
		m.state = e.To
	case events.SessionReconnected:
		m.notice("reconnected: " + e.Reason)
	case events.SessionClosed:
		m.closedReason = e.Reason
		return m, tea.Quit
	case events.UserVolume:
		m.level = e.Level
	case events.UserMuteChanged:
		m.muted = e.Muted
	case events.AssistantSpeakingChanged:
		m.speaking = e.Speaking
	case events.UserTranscriptSegment:
		m.userPartial += e.Segment
		m.refreshTranscript()
	case events.AssistantResponseSegment:
		m.modelPart += e.Segment
		m.refreshTranscript()
	case events.UserTranscriptFinal:
		m.userPartial = ""
		m.appendLine(userStyle.Render("You: ") + e.Transcript)
	case events.AssistantResponseFinal:
		m.modelPart = ""
		m.appendLine(modelStyle.Render("Model: ") + e.Transcript)
	case events.AssistantPlaybackInterrupted:
		m.notice(fmt.Sprintf("playback interrupted by %s (%s)", e.Source, e.Action))
	case events.ToolCallStarted:
		m.notice(fmt.Sprintf("tool %s(%s)", e.Name, e.Args))
	case events.ToolCallFailed:
		m.notice(fmt.Sprintf("tool %s failed: %s", e.Name, e.Error))
	}
	return m, nil
}

func (m *model) notice(text string) {
	m.appendLine(noticeStyle.Render(text))
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshTranscript()
}

func (m *model) refreshTranscript() {
	lines := append([]string(nil), m.lines...)
	if m.userPartial != "" {
		lines = append(lines, userStyle.Render("You: ")+strings.TrimSpace(m.userPartial))
	}
	if m.modelPart != "" {
		lines = append(lines, modelStyle.Render("Model: ")+strings.TrimSpace(m.modelPart))
	}

	content := strings.Join(lines, "\n")
	if m.viewport.Width > 0 {
		content = wordwrap.String(content, m.viewport.Width)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if m.closedReason != "" {
		return fmt.Sprintf("Session closed: %s\n", m.closedReason)
	}

	header := []string{titleStyle.Render("ema live"), badgeStyle.Render(m.state)}
	if m.speaking {
		header = append(header, activeStyle.Render("speaking"))
	}
	if m.muted {
		header = append(header, badgeStyle.Render("muted"))
	}
	if m.paused {
		header = append(header, badgeStyle.Render("paused"))
	}
	if m.videoEnabled {
		header = append(header, activeStyle.Render("video"))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, withGaps(header)...))
	b.WriteString("\n")
	b.WriteString("mic ")
	b.WriteString(m.volume.ViewAs(volumeFraction(m.level)))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.editing {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(helpStyle.Render("m mute • p pause • v video • c add context • q quit"))
	}
	return b.String()
}

func withGaps(parts []string) []string {
	spaced := make([]string, 0, 2*len(parts))
	for i, part := range parts {
		if i > 0 {
			spaced = append(spaced, " ")
		}
		spaced = append(spaced, part)
	}
	return spaced
}

func volumeFraction(level float64) float64 {
	return utils.Clamp(level*volumeScale, 0, 1)
}
