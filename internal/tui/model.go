// Package tui is a terminal front end for torchd: the torch screen drawn
// with bubbletea, refreshed from the daemon's status snapshot.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/status"
)

const (
	refreshInterval = 200 * time.Millisecond
	noticeTTL       = 3 * time.Second
)

// Controls is what the screen drives.
type Controls interface {
	ToggleFlash() (bool, error)
	OnToggleStrobe(on bool) error
	OnSendSOS() error
	CancelSOS()
	OnSetTimer(durationMs int64) error
	CancelTimer()
	Snapshot() status.Snapshot
}

type tickMsg time.Time

type noticeMsg flash.Notice

type actionMsg struct {
	err error
}

// Model is the bubbletea model for the torch screen.
type Model struct {
	ctl     Controls
	notices <-chan flash.Notice
	keys    keyMap
	help    help.Model

	snap     status.Snapshot
	notice   string
	noticeAt time.Time
	err      error
	now      func() time.Time
}

// New creates a Model. notices may be nil.
func New(ctl Controls, notices <-chan flash.Notice) Model {
	return Model{
		ctl:     ctl,
		notices: notices,
		keys:    newKeyMap(),
		help:    help.New(),
		snap:    ctl.Snapshot(),
		now:     time.Now,
	}
}

// Run shows the screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctl Controls, notices <-chan flash.Notice) error {
	p := tea.NewProgram(New(ctl, notices))
	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), waitNotice(m.notices))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.refresh()
		return m, tick()

	case noticeMsg:
		m.notice = msg.Message
		m.noticeAt = m.now()
		return m, waitNotice(m.notices)

	case actionMsg:
		m.err = msg.err
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctl := m.ctl
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Flash):
		return m, action(func() error {
			_, err := ctl.ToggleFlash()
			return err
		})

	case key.Matches(msg, m.keys.Strobe):
		on := !m.snap.Strobing
		return m, action(func() error { return ctl.OnToggleStrobe(on) })

	case key.Matches(msg, m.keys.SOS):
		return m, action(ctl.OnSendSOS)

	case key.Matches(msg, m.keys.CancelSOS):
		return m, action(func() error {
			ctl.CancelSOS()
			return nil
		})

	case key.Matches(msg, m.keys.Timer):
		i := int(msg.String()[0] - '1')
		if i < 0 || i >= len(pattern.TimerPresets) {
			return m, nil
		}
		ms := pattern.TimerPresets[i].Milliseconds()
		return m, action(func() error { return ctl.OnSetTimer(ms) })

	case key.Matches(msg, m.keys.CancelTimer):
		return m, action(func() error {
			ctl.CancelTimer()
			return nil
		})
	}
	return m, nil
}

func (m *Model) refresh() {
	m.snap = m.ctl.Snapshot()
	if m.notice != "" && m.now().Sub(m.noticeAt) > noticeTTL {
		m.notice = ""
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("torch"))
	b.WriteString("\n\n")

	row(&b, "Flash", onOff(m.snap.FlashOn, "ON", "OFF"))
	row(&b, "Strobe", onOff(m.snap.Strobing, "ON", "OFF"))
	row(&b, "SOS", onOff(m.snap.SOSActive, "sending", "idle"))

	timer := offStyle.Render("none")
	if r := m.snap.TimerRemaining(); r > 0 {
		timer = fmt.Sprintf("off in %.1fs", r.Seconds())
	}
	row(&b, "Timer", timer)

	device := offStyle.Render("none")
	if m.snap.HasDevice {
		device = m.snap.DeviceID
	}
	row(&b, "Device", device)

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	} else if m.err != nil {
		b.WriteString("\n" + noticeStyle.Render("error: "+m.err.Error()) + "\n")
	}

	return frameStyle.Render(b.String()) + "\n" + m.help.View(m.keys) + "\n"
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + value + "\n")
}

func onOff(on bool, yes, no string) string {
	if on {
		return onStyle.Render(yes)
	}
	return offStyle.Render(no)
}

func action(f func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{err: f()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitNotice(ch <-chan flash.Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}
