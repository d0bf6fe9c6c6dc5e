package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-live/core/events"
)

type fakeControls struct {
	mu       sync.Mutex
	muted    bool
	paused   bool
	video    bool
	pauseErr error
	contexts []string
}

func (f *fakeControls) Mute(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

func (f *fakeControls) IsMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeControls) Pause(paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.paused = paused
	return nil
}

func (f *fakeControls) SetVideoEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = enabled
}

func (f *fakeControls) UpdateContext(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = append(f.contexts, text)
	return nil
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	updated, ok := next.(model)
	if !ok {
		t.Fatalf("expected model, got %T", next)
	}
	return updated, cmd
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModelRendersTranscripts(t *testing.T) {
	m := newModel(&fakeControls{}, false)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})

	m, _ = update(t, m, eventMsg{events.NewSessionStateChanged("connecting", "open")})
	m, _ = update(t, m, eventMsg{events.NewAssistantResponseSegment("Hel")})
	m, _ = update(t, m, eventMsg{events.NewAssistantResponseSegment("lo")})
	if view := m.View(); !strings.Contains(view, "Hello") || !strings.Contains(view, "open") {
		t.Fatalf("expected partial response and state in view, got %q", view)
	}

	m, _ = update(t, m, eventMsg{events.NewUserTranscriptFinal("hi")})
	m, _ = update(t, m, eventMsg{events.NewAssistantResponseFinal("Hello world")})
	if m.modelPart != "" {
		t.Fatalf("expected partial response to be cleared, got %q", m.modelPart)
	}
	if len(m.lines) != 2 {
		t.Fatalf("expected 2 transcript lines, got %d", len(m.lines))
	}
	if !strings.Contains(m.View(), "Hello world") {
		t.Fatalf("expected final response in view")
	}
}

func TestModelKeysDriveSession(t *testing.T) {
	controls := &fakeControls{}
	m := newModel(controls, false)

	m, _ = update(t, m, key('m'))
	if !controls.IsMuted() {
		t.Fatalf("expected mute key to mute the session")
	}
	m, _ = update(t, m, eventMsg{events.NewUserMuteChanged(true)})
	if !m.muted {
		t.Fatalf("expected mute event to update the view state")
	}

	m, _ = update(t, m, key('p'))
	if !m.paused || !controls.paused {
		t.Fatalf("expected pause key to pause")
	}
	m, _ = update(t, m, key('v'))
	if !m.videoEnabled || !controls.video {
		t.Fatalf("expected video key to enable video")
	}

	controls.pauseErr = errors.New("session is not connected")
	m, _ = update(t, m, key('p'))
	if !m.paused {
		t.Fatalf("expected pause state to stay on failure")
	}

	_, cmd := update(t, m, key('q'))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestModelUpdatesContext(t *testing.T) {
	controls := &fakeControls{}
	m := newModel(controls, false)

	m, _ = update(t, m, key('c'))
	if !m.editing {
		t.Fatalf("expected context editing to start")
	}
	for _, r := range "likes jazz" {
		m, _ = update(t, m, key(r))
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing || cmd == nil {
		t.Fatalf("expected enter to submit the context")
	}

	msg := cmd()
	if got, ok := msg.(contextUpdatedMsg); !ok || got.err != nil {
		t.Fatalf("expected successful context update, got %#v", msg)
	}
	if len(controls.contexts) != 1 || controls.contexts[0] != "likes jazz" {
		t.Fatalf("expected context to be sent, got %v", controls.contexts)
	}
}

func TestModelQuitsWhenSessionCloses(t *testing.T) {
	m := newModel(&fakeControls{}, false)
	m, cmd := update(t, m, eventMsg{events.NewSessionClosed("ended by model")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if !strings.Contains(m.View(), "ended by model") {
		t.Fatalf("expected close reason in view, got %q", m.View())
	}
}

func TestVolumeFraction(t *testing.T) {
	if got := volumeFraction(0.1); got < 0.29 || got > 0.31 {
		t.Fatalf("expected scaled level, got %v", got)
	}
	if got := volumeFraction(2); got != 1 {
		t.Fatalf("expected clamped level, got %v", got)
	}
}

func TestCurrentTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := currentTime(now, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Sat, 01 Mar 2025 12:00:00 UTC" {
		t.Fatalf("expected RFC1123 time, got %q", got)
	}
	if _, err := currentTime(now, "Mars/Olympus_Mons"); err == nil {
		t.Fatalf("expected unknown time zone error")
	}
}

func TestDemoToolsAreValid(t *testing.T) {
	for _, tool := range demoTools() {
		if tool.Name == "" || len(tool.Declaration().Parameters) == 0 {
			t.Fatalf("expected declared parameters for %q", tool.Name)
		}
	}
}
