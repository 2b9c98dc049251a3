package profiler

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Stats is one reporting window of the Profiler.
type Stats struct {
	FPS float64
	// Writes is the number of member writes recorded in the window.
	Writes int
	// UploadedBytes is the number of bytes written to mapped buffers in the window.
	UploadedBytes uint64
	// UploadRateKB is UploadedBytes per second, in KiB.
	UploadRateKB float64
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
	LastPauseUs  uint64
	MaxPauseUs   uint64
	SysMB        float64
}

// Profiler tracks frame rate, uniform upload volume and memory statistics.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger logrus.FieldLogger
	now    func() time.Time

	frameCount     int
	writes         int
	uploadedBytes  uint64
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// ProfilerBuilderOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger stats are written to. Defaults to the logrus standard logger.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the logger option to a profiler
func WithLogger(logger logrus.FieldLogger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithUpdateInterval sets how often stats are reported. Defaults to 1 second.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option to a profiler
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = interval
	}
}

// WithClock replaces the time source.
//
// Parameters:
//   - now: the function returning the current time
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the clock option to a profiler
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         logrus.StandardLogger(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordWrite counts one member write of n bytes toward the current window.
//
// Parameters:
//   - n: the number of bytes written
func (p *Profiler) RecordWrite(n int) {
	p.writes++
	p.uploadedBytes += uint64(n)
}

// Last returns the stats of the most recent completed window.
//
// Returns:
//   - Stats: the stats, zero before the first report
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}
	seconds := elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:           float64(p.frameCount) / seconds,
		Writes:        p.writes,
		UploadedBytes: p.uploadedBytes,
		UploadRateKB:  float64(p.uploadedBytes) / 1024 / seconds,
		HeapMB:        float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:         float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB:   float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / seconds,
		GCCount:       p.memStats.NumGC,
	}

	if s.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"fps":         s.FPS,
		"writes":      s.Writes,
		"upload_kb_s": s.UploadRateKB,
		"heap_mb":     s.HeapMB,
		"alloc_mb_s":  s.AllocRateMB,
		"gc":          s.GCCount,
		"gc_last_us":  s.LastPauseUs,
		"gc_max_us":   s.MaxPauseUs,
		"sys_mb":      s.SysMB,
	}).Info("[Profiler] frame stats")

	p.last = s
	p.frameCount = 0
	p.writes = 0
	p.uploadedBytes = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
