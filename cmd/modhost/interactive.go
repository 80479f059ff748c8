package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/mod-runtime/config"
	"github.com/wippyai/mod-runtime/gui"
	"github.com/wippyai/mod-runtime/input"
	"github.com/wippyai/mod-runtime/logging"
	"github.com/wippyai/mod-runtime/modhost"
	"github.com/wippyai/mod-runtime/snapshot"
	"github.com/wippyai/mod-runtime/supervisor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const logLines = 500

type interactiveModel struct {
	cfg      config.Config
	sup      *supervisor.Supervisor
	gui      *gui.Headless
	snap     *snapshot.Server
	ring     *logging.Ring
	log      *zap.Logger
	logs     viewport.Model
	last     time.Time
	held     []input.Key
	frame    uint64
	width    int
	sinceRel time.Duration
}

type tickMsg time.Time

type loadedMsg struct {
	err error
}

func newInteractiveModel(cfg config.Config) (*interactiveModel, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	ring := logging.NewRing(logLines)
	// The terminal belongs to the UI, so logs only go to the ring.
	log := logging.Tee(nil, ring, level)

	headless := gui.NewHeadless()
	sup, err := newSupervisor(cfg, log, headless)
	if err != nil {
		return nil, err
	}

	width, height := 100, 30
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width, height = w, h
	}

	m := &interactiveModel{
		cfg:   cfg,
		sup:   sup,
		gui:   headless,
		ring:  ring,
		log:   log,
		logs:  viewport.New(width-4, max(height/3, 5)),
		width: width,
	}
	if cfg.SnapshotAddr != "" {
		m.snap = snapshot.New(sup.Scene(), log.Named("snapshot"))
	}
	return m, nil
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadMods
}

func (m *interactiveModel) loadMods() tea.Msg {
	_, err := m.sup.LoadAll(context.Background(), m.cfg.Mods)
	return loadedMsg{err: err}
}

func (m *interactiveModel) tick() tea.Cmd {
	return tea.Tick(m.cfg.FrameInterval(), func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			if err := m.sup.ReloadAll(ctx); err != nil {
				m.log.Warn("reload", zap.Error(err))
			}
			return m, nil
		}
		if k, ok := keyFor(msg); ok {
			if err := m.sup.Event(ctx, input.Press(k)); err != nil {
				m.log.Warn("key event", zap.Error(err))
			}
			// Terminals report presses only; release on the next frame.
			m.held = append(m.held, k)
		}

	case tea.MouseMsg:
		var ev input.Event
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			ev = input.ScrollBy(1)
		case tea.MouseButtonWheelDown:
			ev = input.ScrollBy(-1)
		default:
			ev = input.MoveTo(float32(msg.X), float32(msg.Y))
		}
		if err := m.sup.Event(ctx, ev); err != nil {
			m.log.Warn("mouse event", zap.Error(err))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.logs.Width = msg.Width - 4
		m.logs.Height = max(msg.Height/3, 5)

	case loadedMsg:
		if msg.err != nil {
			m.log.Warn("some mods failed to load", zap.Error(msg.err))
		}
		m.last = time.Now()
		return m, m.tick()

	case tickMsg:
		now := time.Time(msg)
		dt := now.Sub(m.last)
		m.last = now

		for _, k := range m.held {
			_ = m.sup.Event(ctx, input.Release(k))
		}
		m.held = m.held[:0]

		if err := m.sup.Update(ctx, float32(dt.Seconds())); err != nil {
			m.log.Debug("tick", zap.Error(err))
		}
		m.frame++
		if m.snap != nil {
			_ = m.snap.Publish()
		}
		if m.cfg.Watch > 0 {
			m.sinceRel += dt
			if m.sinceRel >= m.cfg.Watch {
				m.sinceRel = 0
				if n, err := m.sup.ReloadChanged(ctx); n > 0 {
					m.log.Info("hot reload", zap.Int("mods", n), zap.Error(err))
				}
			}
		}

		atBottom := m.logs.AtBottom()
		m.logs.SetContent(strings.Join(m.ring.Lines(), "\n"))
		if atBottom {
			m.logs.GotoBottom()
		}
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)
	return m, cmd
}

// keyFor maps a terminal key to a mod key code.
func keyFor(msg tea.KeyMsg) (input.Key, bool) {
	switch msg.Type {
	case tea.KeyUp:
		return input.KeyUp, true
	case tea.KeyDown:
		return input.KeyDown, true
	case tea.KeyLeft:
		return input.KeyLeft, true
	case tea.KeyRight:
		return input.KeyRight, true
	case tea.KeyEnter:
		return input.KeyEnter, true
	case tea.KeySpace:
		return input.KeySpace, true
	case tea.KeyEsc:
		return input.KeyEscape, true
	case tea.KeyTab:
		return input.KeyTab, true
	case tea.KeyBackspace:
		return input.KeyBackspace, true
	case tea.KeyDelete:
		return input.KeyDelete, true
	case tea.KeyHome:
		return input.KeyHome, true
	case tea.KeyEnd:
		return input.KeyEnd, true
	case tea.KeyPgUp:
		return input.KeyPageUp, true
	case tea.KeyPgDown:
		return input.KeyPageDown, true
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && msg.Runes[0] < 128 {
			return input.Key(msg.Runes[0]), true
		}
	}
	return input.KeyUnknown, false
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Mod Host"))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" frame %d", m.frame)))
	if m.snap != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" • %d viewers on %s", m.snap.Viewers(), m.cfg.SnapshotAddr)))
	}
	b.WriteString("\n\n")

	b.WriteString(paneStyle.Width(m.width - 2).Render(m.modsView()))
	b.WriteString("\n")
	if windows := m.gui.Frame(); len(windows) > 0 {
		b.WriteString(paneStyle.Width(m.width - 2).Render(windowsView(windows)))
		b.WriteString("\n")
	}
	b.WriteString(paneStyle.Width(m.width - 2).Render(m.logs.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("keys go to mods • wheel scrolls • ctrl+r reload • ctrl+c quit"))
	return b.String()
}

func (m *interactiveModel) modsView() string {
	mods := m.sup.Mods()
	if len(mods) == 0 {
		return dimStyle.Render("no mods running")
	}
	cam := m.sup.Scene().Camera
	pos := cam.Position()

	var b strings.Builder
	for _, mod := range mods {
		state := mod.State.String()
		if mod.State == modhost.Failed {
			state = errorStyle.Render(state)
		}
		fmt.Fprintf(&b, "%-4d %s %s %s\n", uint32(mod.Handle), nameStyle.Render(mod.Name), state, dimStyle.Render(mod.Path))
		if mod.Err != nil {
			b.WriteString("     " + errorStyle.Render(mod.Err.Error()) + "\n")
		}
	}
	fmt.Fprintf(&b, "entities %d • objects %d • camera (%.1f, %.1f) x%.2f",
		m.sup.World().Len(), m.sup.Scene().Objects.Len(), pos.X, pos.Y, cam.Zoom())
	return b.String()
}

func windowsView(windows []gui.Window) string {
	var b strings.Builder
	for i, w := range windows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(nameStyle.Render(w.Title))
		b.WriteString("\n")
		for _, wd := range w.Widgets {
			fmt.Fprintf(&b, "  [%s] %s\n", wd.Kind, wd.Label)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func runInteractive(cfg config.Config) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	m, err := newInteractiveModel(cfg)
	if err != nil {
		return err
	}
	defer m.sup.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if m.snap != nil {
		go func() {
			if err := m.snap.ListenAndServe(ctx, cfg.SnapshotAddr); err != nil {
				m.log.Error("snapshot server", zap.Error(err))
			}
		}()
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}
