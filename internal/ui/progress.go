package ui

import (
	"sync"
	"time"
)

// Throughput is sampled over fixed windows. Updates landing inside a
// window fold into the next sample, so per-batch jitter does not
// whipsaw the displayed rate.
const (
	sampleWindow = 500 * time.Millisecond
	rateAlpha    = 0.2 // smoothing for the average rate
	etaAlpha     = 0.3 // smoothing for the remaining-time estimate
	historyLen   = 60  // sparkline samples kept
)

// ProgressTracker accumulates pipeline progress for the renderers.
// All methods are safe for concurrent use.
type ProgressTracker struct {
	mu sync.Mutex

	stage   Stage
	done    int
	goal    int
	file    string
	began   time.Time
	stageAt time.Time

	errs  []ErrorEvent
	warns []ErrorEvent

	// Smoothed estimate carried between calls.
	eta time.Duration

	meter rateMeter
}

// SpeedStats is a throughput snapshot in units per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a point-in-time snapshot for rendering.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int     // zero while the stage size is unknown
	Progress    float64 // 0..1, clamped
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// NewProgressTracker creates a tracker positioned at the scanning stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	t := &ProgressTracker{stage: StageScanning, began: now, stageAt: now}
	t.meter.reset(now)
	return t
}

// SetStage moves to stage and resets the per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.goal = total
	p.done = 0
	p.file = ""
	p.stageAt = now
	p.eta = 0
	p.meter.reset(now)
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = current
	if file != "" {
		p.file = file
	}
	p.meter.observe(current, time.Now())
}

// AddError records a failure or warning for the status bar tallies.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.IsWarn {
		p.warns = append(p.warns, event)
		return
	}
	p.errs = append(p.errs, event)
}

// Stats snapshots the current state for one render frame.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.done,
		Total:       p.goal,
		Progress:    fraction(p.done, p.goal),
		ETA:         p.remaining(),
		CurrentFile: p.file,
		ErrorCount:  len(p.errs),
		WarnCount:   len(p.warns),
		Speed:       p.meter.stats(),
	}
}

// Progress returns completion of the current stage in the range 0 to 1.
func (p *ProgressTracker) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fraction(p.done, p.goal)
}

// ETA estimates the time left in the current stage.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining()
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.began)
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ErrorEvent(nil), p.errs...)
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ErrorEvent(nil), p.warns...)
}

// RenderSparkline draws the throughput history at the given width.
// A non-positive width draws the full buffer.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if width <= 0 {
		return p.meter.history.Render()
	}
	return p.meter.history.RenderWidth(width)
}

// SpeedStats returns the current throughput snapshot.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meter.stats()
}

// remaining extrapolates stage time left from the completed fraction,
// blended with the previous estimate so batch-to-batch variance does
// not bounce the display. Caller holds the lock.
func (p *ProgressTracker) remaining() time.Duration {
	frac := fraction(p.done, p.goal)
	if frac <= 0 || frac >= 1 {
		return 0
	}

	raw := time.Duration(float64(time.Since(p.stageAt)) * (1 - frac) / frac)
	if raw < 0 {
		return 0
	}
	if p.eta != 0 {
		raw = time.Duration(etaAlpha*float64(raw) + (1-etaAlpha)*float64(p.eta))
	}
	p.eta = raw
	return raw
}

// fraction clamps done/goal to the unit interval.
func fraction(done, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	if done >= goal {
		return 1
	}
	return float64(done) / float64(goal)
}

// rateMeter turns a monotonically growing counter into a smoothed
// units-per-second rate with a sparkline history. The tracker's lock
// guards it.
type rateMeter struct {
	lastCount int
	lastAt    time.Time
	rate      float64
	avg       float64
	peak      float64
	sampled   int
	history   *Sparkline
}

func (m *rateMeter) reset(now time.Time) {
	m.lastCount = 0
	m.lastAt = now
	m.rate = 0
	m.avg = 0
	m.peak = 0
	m.sampled = 0
	if m.history == nil {
		m.history = NewSparkline(historyLen)
	} else {
		m.history.Clear()
	}
}

// observe folds a new counter reading into the rate once per window.
func (m *rateMeter) observe(count int, now time.Time) {
	window := now.Sub(m.lastAt)
	if window < sampleWindow {
		return
	}

	if delta := count - m.lastCount; delta > 0 {
		r := float64(delta) / window.Seconds()
		m.rate = r
		m.sampled++
		if m.sampled == 1 {
			m.avg = r
		} else {
			m.avg = rateAlpha*r + (1-rateAlpha)*m.avg
		}
		if r > m.peak {
			m.peak = r
		}
		m.history.Add(r)
	}
	m.lastCount = count
	m.lastAt = now
}

func (m *rateMeter) stats() SpeedStats {
	return SpeedStats{Current: m.rate, Avg: m.avg, Peak: m.peak}
}
