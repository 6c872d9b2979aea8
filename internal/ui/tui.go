package ui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer drives the live bubbletea dashboard. Events go into the
// shared tracker; messages only wake the program so the next frame
// reads fresh state.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	tracker *ProgressTracker
	model   *tuiModel
	program *tea.Program
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates the dashboard renderer. It refuses non-terminal
// outputs; NewRenderer falls back to plain output on that error.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a terminal")
	}
	r := &TUIRenderer{cfg: cfg, tracker: NewProgressTracker(), done: make(chan struct{})}
	r.model = newTuiModel(r.tracker, cfg)
	return r, nil
}

// Start launches the program loop on its own goroutine. Calling it
// twice is a no-op.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	go r.runLoop(r.program)
	return nil
}

func (r *TUIRenderer) runLoop(p *tea.Program) {
	defer close(r.done)
	_, _ = p.Run()
}

// The tracker carries its own lock, so the event methods do not take
// r.mu; only program lifecycle does.

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	if r.tracker.Stats().Stage != event.Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentFile)
	r.post(progressMsg(event))
}

func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
	r.post(failureMsg(event))
}

func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.SetStage(StageComplete, 0)
	r.post(doneMsg(stats))
}

// Stop quits the program and waits for its goroutine to drain.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// Never hang on an unresponsive program; Ctrl+C must always exit.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// post forwards a message to the running program, if any.
func (r *TUIRenderer) post(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// bubbletea messages
type (
	progressMsg ProgressEvent
	failureMsg  ErrorEvent
	doneMsg     CompletionStats
	frameMsg    time.Time
)

const frameInterval = 100 * time.Millisecond

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// tuiModel renders the indexing dashboard from tracker snapshots.
type tuiModel struct {
	tracker *ProgressTracker
	styles  Styles
	header  string

	width  int
	height int

	spin  spinner.Model
	meter progress.Model

	finished bool
	canceled bool
	final    CompletionStats
}

func newTuiModel(tracker *ProgressTracker, cfg Config) *tuiModel {
	spin := spinner.New()
	spin.Spinner = spinnerFor(cfg.SpinnerStyle)
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal))

	meter := progress.New(
		progress.WithSolidFill(ColorTeal),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	header := "Quarry Indexer"
	if cfg.ProjectDir != "" {
		header += " • " + cfg.ProjectDir
	}

	return &tuiModel{
		tracker: tracker,
		styles:  GetStyles(cfg.NoColor || DetectNoColor()),
		header:  header,
		width:   80,
		height:  24,
		spin:    spin,
		meter:   meter,
	}
}

// spinnerFor maps the configured spinner name to a bubbles spinner.
func spinnerFor(style string) spinner.Spinner {
	switch style {
	case "line":
		return spinner.Line
	case "minidot":
		return spinner.MiniDot
	case "points":
		return spinner.Points
	default:
		return spinner.Dot
	}
}

// Init implements tea.Model.
func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, nextFrame())
}

// Update implements tea.Model.
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.canceled = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.meter.Width = max(20, msg.Width-20)

	case doneMsg:
		m.finished = true
		m.final = CompletionStats(msg)
		return m, tea.Quit

	case frameMsg:
		return m, nextFrame()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// progressMsg and failureMsg carry nothing the tracker does not
	// already hold; they just wake the loop for the next frame.
	return m, nil
}

// View implements tea.Model.
func (m *tuiModel) View() string {
	if m.canceled {
		return "Cancelled.\n"
	}
	if m.finished {
		return m.summaryCard()
	}

	w := max(40, m.width-4)
	stats := m.tracker.Stats()
	rule := m.styles.Border.Render(strings.Repeat("─", w))

	blocks := []string{
		m.stageRail(stats.Stage),
		rule,
		m.meterBlock(stats),
		m.rateLine(stats),
		rule,
		m.throughputLine(w),
	}
	if stats.CurrentFile != "" {
		blocks = append(blocks, rule, m.styles.Dim.Render(squeezePath(stats.CurrentFile, w-2)))
	}

	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(w)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(m.header),
		frame.Render(strings.Join(blocks, "\n")),
		m.footer(stats),
	)
}

// stageRail draws the pipeline position, finished stages filled in,
// the active one spinning.
func (m *tuiModel) stageRail(cur Stage) string {
	names := []string{"Scan", "Parse", "Chunk", "Embed", "Index"}
	parts := make([]string, len(names))
	for i, name := range names {
		switch s := Stage(i); {
		case s < cur:
			parts[i] = m.styles.Success.Render("● " + name)
		case s == cur:
			parts[i] = m.styles.Active.Render(m.spin.View() + " " + name)
		default:
			parts[i] = m.styles.Dim.Render("○ " + name)
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

// meterBlock draws the progress bar with percentage and unit counts,
// or a spinner while the stage total is still unknown.
func (m *tuiModel) meterBlock(stats ProgressStats) string {
	if stats.Total == 0 {
		return m.spin.View() + " " + stats.Stage.String() + "...\n" +
			m.styles.Dim.Render("Preparing...")
	}

	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d units", stats.Current, stats.Total))
	return m.meter.ViewAs(stats.Progress) + "  " + pct + "\n" + count
}

// rateLine draws throughput numbers and the smoothed ETA.
func (m *tuiModel) rateLine(stats ProgressStats) string {
	rate := fmt.Sprintf("Speed: %.0f/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		rate += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}

	line := m.styles.Speed.Render(rate)
	if stats.ETA > 0 {
		line += m.styles.Dim.Render("  •  ") + m.styles.Label.Render("ETA: "+formatDuration(stats.ETA))
	}
	return line
}

func (m *tuiModel) throughputLine(w int) string {
	spark := m.tracker.RenderSparkline(max(10, w-10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("throughput ─")
}

// footer draws the warning and error tallies plus the quit hint.
func (m *tuiModel) footer(stats ProgressStats) string {
	var alerts []string
	if stats.WarnCount > 0 {
		alerts = append(alerts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		alerts = append(alerts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}

	quit := m.styles.Dim.Render("q to quit")
	if len(alerts) == 0 {
		return quit
	}
	sep := m.styles.Dim.Render("  │  ")
	return strings.Join(alerts, sep) + sep + quit
}

// summaryCard draws the final panel once indexing completes.
func (m *tuiModel) summaryCard() string {
	kv := func(label, val string) string {
		return m.styles.Label.Render(fmt.Sprintf("%-10s", label)) + " " + val
	}

	rows := []string{
		m.styles.Success.Render("✓ Indexing Complete"),
		"",
		kv("Documents:", m.styles.Active.Render(strconv.Itoa(m.final.Documents))),
		kv("Units:", m.styles.Active.Render(strconv.Itoa(m.final.Units))),
		kv("Duration:", m.styles.Active.Render(formatDuration(m.final.Duration))),
	}
	if avg := m.tracker.SpeedStats().Avg; avg > 0 {
		rows = append(rows, kv("Avg Speed:", m.styles.Speed.Render(fmt.Sprintf("%.0f units/sec", avg))))
	}
	if m.final.Skipped > 0 || m.final.Failed > 0 {
		rows = append(rows, "")
		if m.final.Skipped > 0 {
			rows = append(rows, m.styles.Warning.Render(fmt.Sprintf("⚠ %d skipped", m.final.Skipped)))
		}
		if m.final.Failed > 0 {
			rows = append(rows, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", m.final.Failed)))
		}
	}
	if emb := m.final.Embedder; emb.Provider != "" {
		rows = append(rows, "", m.styles.Speed.Render(fmt.Sprintf(
			"Embedder: %s (%s, %d dims)", emb.Provider, emb.Model, emb.Dimensions)))
	}

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorTeal)).
		Padding(1, 2).
		Width(max(40, m.width-4))

	return card.Render(strings.Join(rows, "\n")) + "\n"
}

// formatDuration renders a duration like "45s", "2m 5s", "1h 12m".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// squeezePath shortens a path to limit columns, dropping leading
// directories first so the filename stays visible.
func squeezePath(path string, limit int) string {
	if len(path) <= limit {
		return path
	}
	if limit < 4 {
		return "..."
	}

	segs := strings.Split(path, "/")
	for len(segs) > 1 {
		segs = segs[1:]
		if rest := ".../" + strings.Join(segs, "/"); len(rest) <= limit {
			return rest
		}
	}
	name := segs[0]
	return "..." + name[len(name)-(limit-3):]
}

var _ Renderer = (*TUIRenderer)(nil)
