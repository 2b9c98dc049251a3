package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/profiler"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer/resource_set"
	"github.com/Carmen-Shannon/oxy-descriptors/engine/window"
	"github.com/sirupsen/logrus"
)

// Frame describes one iteration of the frame loop.
type Frame struct {
	// Index is the frame-in-flight slot, cycling through 0..FramesInFlight-1.
	Index int
	// Number counts frames since the engine started.
	Number uint64
	// DeltaTime is the time since the previous frame in seconds.
	DeltaTime float32
}

// engine implements the Engine interface.
// Coordinates the tick and frame goroutines with the optional window.
type engine struct {
	tickRateChannel chan time.Duration

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window window.Window
	logger logrus.FieldLogger
	now    func() time.Time

	profiler         *profiler.Profiler
	profilingEnabled bool

	framesInFlight int
	frameIndex     int
	frameNumber    uint64
	lastFrame      time.Time
	err            error

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	frameCallback  func(frame Frame) error

	resourceSets map[int]resource_set.ResourceSet

	renderFrameLimit time.Duration
}

// Engine drives the frame-in-flight cycle. Each frame selects the slot whose
// resource sets the caller may write, runs the frame callback and ticks the profiler.
type Engine interface {
	// Window returns the window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Profiler returns the frame profiler.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// FramesInFlight returns the number of frame slots cycled through.
	//
	// Returns:
	//   - int: the frames-in-flight count
	FramesInFlight() int

	// FrameIndex returns the slot the next frame will use.
	//
	// Returns:
	//   - int: the frame index
	FrameIndex() int

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called each frame. Returning an error stops the engine.
	//
	// Parameters:
	//   - callback: function receiving the frame being produced
	SetFrameCallback(callback func(frame Frame) error)

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddResourceSet hands ownership of a finalized resource set to the engine at the given key.
	// Sets are released in descending key order when the engine shuts down.
	//
	// Parameters:
	//   - key: the ordering key
	//   - rs: the ResourceSet to register
	//
	// Returns:
	//   - error: an error if the set's frame count differs from the engine's
	AddResourceSet(key int, rs resource_set.ResourceSet) error

	// RemoveResourceSet removes the set at key without releasing it.
	//
	// Parameters:
	//   - key: the ordering key
	RemoveResourceSet(key int)

	// ResourceSet returns the set at key, or nil.
	//
	// Parameters:
	//   - key: the ordering key
	//
	// Returns:
	//   - resource_set.ResourceSet: the registered set
	ResourceSet(key int) resource_set.ResourceSet

	// ResourceSets returns a copy of all registered sets.
	//
	// Returns:
	//   - map[int]resource_set.ResourceSet: a copy of the registry
	ResourceSets() map[int]resource_set.ResourceSet

	// Step produces a single frame on the calling goroutine.
	//
	// Returns:
	//   - error: the frame callback's error
	Step() error

	// RunFrames produces n frames on the calling goroutine, honoring the frame limit.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame callback error
	RunFrames(n int) error

	// Run starts the tick and frame loops and blocks until the window closes or Quit is called.
	//
	// Returns:
	//   - error: the error that stopped the frame loop, if any
	Run() error

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()

	// Shutdown stops the engine and releases every registered resource set.
	Shutdown()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, frames in flight, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		resourceSets:    make(map[int]resource_set.ResourceSet),
		logger:          logrus.StandardLogger(),
		now:             time.Now,
		framesInFlight:  2,
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger), profiler.WithClock(e.now))
	}
	e.lastFrame = e.now()

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.logger.WithFields(logrus.Fields{"width": width, "height": height}).Debug("[engine] window resized")
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	e.profilingEnabled = true
	e.mu.Unlock()
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	e.profilingEnabled = false
	e.mu.Unlock()
}

func (e *engine) FramesInFlight() int {
	return e.framesInFlight
}

func (e *engine) FrameIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameIndex
}

func (e *engine) Step() error {
	e.mu.Lock()
	now := e.now()
	frame := Frame{
		Index:     e.frameIndex,
		Number:    e.frameNumber,
		DeltaTime: float32(now.Sub(e.lastFrame).Seconds()),
	}
	e.lastFrame = now
	callback := e.frameCallback
	profiling := e.profilingEnabled
	e.mu.Unlock()

	if callback != nil {
		if err := callback(frame); err != nil {
			return fmt.Errorf("frame %d (slot %d): %w", frame.Number, frame.Index, err)
		}
	}
	if profiling {
		e.profiler.Tick()
	}

	e.mu.Lock()
	e.frameIndex = (e.frameIndex + 1) % e.framesInFlight
	e.frameNumber++
	e.mu.Unlock()
	return nil
}

func (e *engine) RunFrames(n int) error {
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := e.Step(); err != nil {
			return err
		}
		e.limit(start)
	}
	return nil
}

func (e *engine) Run() error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Shutdown() {
	e.signalQuit()
	e.wg.Wait()

	e.mu.Lock()
	keys := e.sortedKeys()
	sets := e.resourceSets
	e.resourceSets = make(map[int]resource_set.ResourceSet)
	e.mu.Unlock()

	for i := len(keys) - 1; i >= 0; i-- {
		sets[keys[i]].Release()
	}
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			e.logger.WithError(err).Debug("[engine] closing window")
		}
	}
}

// signalQuit closes the quit channel once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// handle launches the tick and frame goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleFrames()
}

// handleEngine runs the fixed-rate tick loop and listens for rate changes.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.mu.Lock()
			callback := e.tickCallback
			e.mu.Unlock()
			if callback != nil {
				callback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}

// handleFrames runs the frame loop until quit or a frame error.
// A panic in the frame callback is logged and stops the engine.
func (e *engine) handleFrames() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("[engine] frame goroutine recovered from panic")
			e.setErr(fmt.Errorf("frame loop panic: %v", r))
			e.signalQuit()
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			start := time.Now()
			if err := e.Step(); err != nil {
				e.logger.WithError(err).Error("[engine] frame failed")
				e.setErr(err)
				e.signalQuit()
				return
			}
			e.limit(start)
		}
	}
}

func (e *engine) setErr(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
}

func (e *engine) limit(start time.Time) {
	e.mu.Lock()
	frameLimit := e.renderFrameLimit
	e.mu.Unlock()
	if frameLimit > 0 {
		if remaining := frameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	e.mu.Lock()
	running := e.running
	if !running {
		e.engineTickRate = newRate
	}
	e.mu.Unlock()
	if !running {
		return
	}

	// Replace any pending update.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	e.tickCallback = callback
	e.mu.Unlock()
}

func (e *engine) SetFrameCallback(callback func(frame Frame) error) {
	e.mu.Lock()
	e.frameCallback = callback
	e.mu.Unlock()
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

func (e *engine) AddResourceSet(key int, rs resource_set.ResourceSet) error {
	if rs == nil {
		return fmt.Errorf("resource set %d is nil", key)
	}
	if rs.FramesInFlight() != e.framesInFlight {
		return fmt.Errorf("resource set %q has %d frames in flight, engine cycles %d",
			rs.Label(), rs.FramesInFlight(), e.framesInFlight)
	}
	e.mu.Lock()
	e.resourceSets[key] = rs
	e.mu.Unlock()
	return nil
}

func (e *engine) RemoveResourceSet(key int) {
	e.mu.Lock()
	delete(e.resourceSets, key)
	e.mu.Unlock()
}

func (e *engine) ResourceSet(key int) resource_set.ResourceSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resourceSets[key]
}

func (e *engine) ResourceSets() map[int]resource_set.ResourceSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]resource_set.ResourceSet, len(e.resourceSets))
	for k, v := range e.resourceSets {
		cp[k] = v
	}
	return cp
}

// sortedKeys returns the registry keys ascending. Callers hold mu.
func (e *engine) sortedKeys() []int {
	keys := make([]int, 0, len(e.resourceSets))
	for k := range e.resourceSets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
