package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"huskycat/internal/async"
	"huskycat/internal/logging"
)

// Refresh cadence: at least 10 Hz, capped at 20 Hz.
const renderTick = 100 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimRowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Renderer shows a live per-tool status table on a TTY. It is a Sink; Update
// may be called from any worker goroutine.
type Renderer struct {
	out         io.Writer
	detachable  bool
	onInterrupt func()
	logger      logging.Logger

	mu   sync.Mutex
	prog *tea.Program
	done chan struct{}
}

// NewRenderer builds a TTY renderer writing to out. When detachable is true,
// Ctrl-C detaches the renderer and leaves the background run going, printing
// a notice instead of aborting; onInterrupt (optional) is invoked otherwise.
func NewRenderer(out io.Writer, detachable bool, onInterrupt func(), logger logging.Logger) *Renderer {
	return &Renderer{
		out:         out,
		detachable:  detachable,
		onInterrupt: onInterrupt,
		logger:      logging.OrNop(logger),
	}
}

// Begin starts the live table with one row per tool.
func (r *Renderer) Begin(tools []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := newTableModel(tools, r.detachable, r.onInterrupt)
	r.prog = tea.NewProgram(m, tea.WithOutput(r.out))
	r.done = make(chan struct{})
	prog, done := r.prog, r.done
	async.Go(r.logger, "progress-renderer", func() {
		defer close(done)
		if _, err := prog.Run(); err != nil {
			r.logger.Warn("progress renderer exited: %v", err)
		}
	})
}

// Update forwards a tool state transition to the table.
func (r *Renderer) Update(ev Event) {
	r.mu.Lock()
	prog := r.prog
	r.mu.Unlock()
	if prog != nil {
		prog.Send(ev)
	}
}

// End stops the renderer and waits for the final frame to flush.
func (r *Renderer) End() {
	r.mu.Lock()
	prog, done := r.prog, r.done
	r.mu.Unlock()
	if prog == nil {
		return
	}
	prog.Send(finishedMsg{})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		prog.Kill()
	}
}

type tickMsg time.Time
type finishedMsg struct{}

type toolRow struct {
	state     string
	errors    int
	warnings  int
	startedAt time.Time
	elapsed   time.Duration
}

type tableModel struct {
	order       []string
	rows        map[string]*toolRow
	spin        spinner.Model
	startedAt   time.Time
	detachable  bool
	onInterrupt func()
	notice      string
	finished    bool
}

func newTableModel(tools []string, detachable bool, onInterrupt func()) *tableModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = runningStyle
	rows := make(map[string]*toolRow, len(tools))
	order := append([]string(nil), tools...)
	for _, tool := range order {
		rows[tool] = &toolRow{state: StatePending}
	}
	return &tableModel{
		order:       order,
		rows:        rows,
		spin:        sp,
		startedAt:   time.Now(),
		detachable:  detachable,
		onInterrupt: onInterrupt,
	}
}

func (m *tableModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(renderTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *tableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Event:
		row, ok := m.rows[msg.Tool]
		if !ok {
			return m, nil
		}
		row.state = msg.State
		row.errors = msg.Errors
		row.warnings = msg.Warnings
		if msg.State == StateRunning {
			row.startedAt = time.Now()
		} else if !row.startedAt.IsZero() {
			row.elapsed = time.Since(row.startedAt)
		}
		return m, nil
	case tickMsg:
		if m.finished {
			return m, nil
		}
		return m, tick()
	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		// Redraw happens on the next tick.
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.detachable {
				m.notice = "validation now running in background"
				m.finished = true
				return m, tea.Quit
			}
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			m.finished = true
			return m, tea.Quit
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

func (m *tableModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("huskycat validation"))
	b.WriteString("\n")

	width := 0
	for _, tool := range m.order {
		if len(tool) > width {
			width = len(tool)
		}
	}

	terminal := 0
	for _, tool := range m.order {
		row := m.rows[tool]
		icon, style := rowDecoration(row.state, m.spin.View())
		elapsed := row.elapsed
		if row.state == StateRunning {
			elapsed = time.Since(row.startedAt)
		}
		line := fmt.Sprintf("  %s %-*s  %8s  %3d err  %3d warn",
			icon, width, tool, elapsed.Round(100*time.Millisecond), row.errors, row.warnings)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		if row.state != StatePending && row.state != StateRunning {
			terminal++
		}
	}

	fmt.Fprintf(&b, "\n  %d/%d tools done · %s\n",
		terminal, len(m.order), time.Since(m.startedAt).Round(time.Second))
	if m.notice != "" {
		b.WriteString(skipStyle.Render("  " + m.notice))
		b.WriteString("\n")
	}
	return b.String()
}

func rowDecoration(state, spinnerFrame string) (string, lipgloss.Style) {
	switch state {
	case StateRunning:
		return spinnerFrame, runningStyle
	case "success":
		return okStyle.Render("✓"), okStyle
	case "failed", "timeout":
		return failStyle.Render("✗"), failStyle
	case "skipped":
		return skipStyle.Render("−"), skipStyle
	case "unavailable":
		return dimRowStyle.Render("·"), dimRowStyle
	default:
		return dimRowStyle.Render("·"), dimRowStyle
	}
}
