package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"go.uber.org/zap"
)

// FrameCounts is what one frame contributed, as reported by the render extension.
type FrameCounts struct {
	Lit     int
	Unlit   int
	Culled  int
	Skipped int
}

// Window holds the totals of one reporting interval.
type Window struct {
	Frames  int
	FPS     float64
	Elapsed time.Duration
	FrameCounts
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, pass counts and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	frameCount     int
	counts         FrameCounts
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time
	last           Window
}

// NewProfiler creates a new Profiler logging every interval.
// A non-positive interval defaults to 1 second.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
		now:            time.Now,
	}
}

// Tick should be called once per submitted frame with the frame's pass counts.
// Logs the interval's statistics when the update interval has elapsed.
//
// Parameters:
//   - counts: the frame's pass counts
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(counts FrameCounts) bool {
	p.frameCount++
	p.counts.Lit += counts.Lit
	p.counts.Unlit += counts.Unlit
	p.counts.Culled += counts.Culled
	p.counts.Skipped += counts.Skipped

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	gcCount := p.memStats.NumGC
	var maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	w := Window{
		Frames:      p.frameCount,
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Elapsed:     elapsed,
		FrameCounts: p.counts,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     gcCount,
		MaxPauseUs:  maxPauseUs,
	}
	logger.L().Info("profiler",
		zap.Float64("fps", w.FPS),
		zap.Int("lit", w.Lit),
		zap.Int("unlit", w.Unlit),
		zap.Int("culled", w.Culled),
		zap.Int("skipped", w.Skipped),
		zap.Float64("heapMB", w.HeapMB),
		zap.Float64("allocRateMBps", w.AllocRateMB),
		zap.Uint32("gc", w.GCCount),
		zap.Uint64("maxPauseUs", w.MaxPauseUs),
	)

	p.last = w
	p.frameCount = 0
	p.counts = FrameCounts{}
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recently logged window.
func (p *Profiler) Last() Window {
	return p.last
}
