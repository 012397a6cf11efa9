package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/profiler"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/scene"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"go.uber.org/zap"
)

// DefaultImportQueue is the number of import events Submit buffers before blocking.
const DefaultImportQueue = 256

// ErrStopped is returned by Submit once the engine has quit.
var ErrStopped = errors.New("engine: stopped")

// engine implements the Engine interface.
// Coordinates the import, tick and render goroutines.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	ctx         context.Context
	cancel      context.CancelFunc
	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	closeOnce   sync.Once

	events chan model.Event

	device     gpu.Device
	synth      synthesis.Engine
	controller scene.Controller
	frames     renderer.FrameSource

	synthOptions []synthesis.EngineBuilderOption
	bakeOptions  []bake.CoordinatorBuilderOption
	extOptions   []renderer.ExtensionBuilderOption
	ctrlOptions  []scene.ControllerBuilderOption

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(report renderer.FrameReport)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // quit after this many frames; 0 = unbounded
	importQueue      int

	frameCount atomic.Uint64
	lastReport atomic.Pointer[renderer.FrameReport]
	importErrs atomic.Uint64
}

// Engine is the main entry point for the pipeline.
// It owns the device, the synthesis engine, the bake coordinator, the render extension and the
// scene controller, and runs the import, tick and render loops over them.
type Engine interface {
	// Controller returns the scene controller for queries and direct event application.
	//
	// Returns:
	//   - scene.Controller: the controller
	Controller() scene.Controller

	// Device returns the device meshes and lightmaps are allocated on.
	//
	// Returns:
	//   - gpu.Device: the device
	Device() gpu.Device

	// Submit queues an import event for the import goroutine. Blocks while the queue is full.
	//
	// Parameters:
	//   - ctx: cancels the wait for queue space
	//   - ev: the import event
	//
	// Returns:
	//   - error: ctx's error, or ErrStopped if the engine has quit
	Submit(ctx context.Context, ev model.Event) error

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	// Each tick drains bake completions before calling the tick callback.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, after bake completions are applied.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each frame is submitted.
	//
	// Parameters:
	//   - callback: function receiving the frame's report
	SetRenderCallback(callback func(report renderer.FrameReport))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of frames submitted so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// LastReport returns the report of the most recently submitted frame.
	//
	// Returns:
	//   - renderer.FrameReport: the report, zero before the first frame
	LastReport() renderer.FrameReport

	// ImportErrors returns the number of import events that failed.
	//
	// Returns:
	//   - uint64: the failed event count
	ImportErrors() uint64

	// Run starts the import, tick and render goroutines and blocks until Quit is called or the
	// frame limit set by WithMaxFrames is reached. Resources are released before it returns.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// The device defaults to an in-memory device and the frame source to a renderer.Recorder.
//
// Parameters:
//   - options: functional options for engine configuration (device, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(time.Second),
		engineTickRate:  time.Second / 60,
		importQueue:     DefaultImportQueue,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	for _, opt := range options {
		opt(e)
	}

	if e.device == nil {
		e.device = gpu.NewMemoryDevice()
	}
	if e.frames == nil {
		e.frames = renderer.NewRecorder()
	}
	e.events = make(chan model.Event, e.importQueue)
	e.synth = synthesis.NewEngine(e.device, e.synthOptions...)
	coord := bake.NewCoordinator(e.synth, e.device, e.bakeOptions...)
	ext := renderer.NewExtension(e.synth, e.extOptions...)
	e.controller = scene.NewController(e.synth, coord, ext, e.ctrlOptions...)
	return e
}

func (e *engine) Controller() scene.Controller {
	return e.controller
}

func (e *engine) Device() gpu.Device {
	return e.device
}

func (e *engine) Submit(ctx context.Context, ev model.Event) error {
	select {
	case <-e.quitChannel:
		return ErrStopped
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quitChannel:
		return ErrStopped
	}
}

func (e *engine) Run() {
	e.running.Store(true)
	logger.L().Info("engine: started",
		zap.Duration("tick", e.engineTickRate),
		zap.Duration("frameLimit", e.renderFrameLimit),
		zap.Uint64("maxFrames", e.maxFrames))
	e.handle()
	e.wg.Wait()
	e.shutdown()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		e.cancel()
		close(e.quitChannel)
	})
}

// handle launches the import, engine and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleImport()
	go e.handleEngine()
	go e.handleRender()
}

// shutdown retires in-flight frames, then closes the controller and the device.
func (e *engine) shutdown() {
	e.closeOnce.Do(func() {
		if f, ok := e.frames.(interface{ Flush(close bool) }); ok {
			f.Flush(true)
		}
		e.controller.Close()
		e.device.Release()
		logger.L().Info("engine: stopped",
			zap.Uint64("frames", e.frameCount.Load()),
			zap.Uint64("importErrors", e.importErrs.Load()))
	})
}

// handleImport applies queued import events. Events already waiting are applied together so
// distinct nodes synthesize in parallel.
func (e *engine) handleImport() {
	defer e.wg.Done()

	for {
		select {
		case <-e.quitChannel:
			return
		case ev := <-e.events:
			batch := []model.Event{ev}
		drain:
			for {
				select {
				case next := <-e.events:
					batch = append(batch, next)
				default:
					break drain
				}
			}

			var errs []error
			if len(batch) == 1 {
				errs = []error{e.controller.Apply(batch[0])}
			} else {
				errs = e.controller.ApplyBatch(e.ctx, batch)
			}
			for _, err := range errs {
				if err != nil {
					e.importErrs.Add(1)
				}
			}
		}
	}
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Applies bake completions, then fires the tick callback at the configured tick rate and
// listens for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
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

			e.controller.Update()
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender builds one frame per iteration: it takes a frame from the frame source, lets the
// render extension contribute its passes, submits the frame and collects mesh generations no
// frame references any more.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("engine: render goroutine recovered from panic", zap.Any("panic", r))
			e.signalQuit()
		}
	}()

	ext := e.controller.Extension()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}
		frameStart := time.Now()

		fg, err := e.frames.NextFrame(e.ctx)
		if err != nil {
			if e.ctx.Err() == nil {
				logger.L().Error("engine: frame source failed", zap.Error(err))
				e.signalQuit()
			}
			return
		}
		report := ext.RegisterPass(fg)
		if err := e.frames.Submit(fg); err != nil {
			logger.L().Error("engine: submit failed", zap.Error(fmt.Errorf("frame %d: %w", fg.Index(), err)))
			e.signalQuit()
			return
		}
		e.synth.Collect()

		e.lastReport.Store(&report)
		frames := e.frameCount.Add(1)
		if e.profilingEnabled.Load() {
			e.profiler.Tick(profiler.FrameCounts{
				Lit:     report.Lit,
				Unlit:   report.Unlit,
				Culled:  report.Culled,
				Skipped: len(report.Skipped),
			})
		}
		if e.renderCallback != nil {
			e.renderCallback(report)
		}
		if e.maxFrames > 0 && frames >= e.maxFrames {
			e.signalQuit()
			return
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				select {
				case <-time.After(remaining):
				case <-e.quitChannel:
					return
				}
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(report renderer.FrameReport)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Frames() uint64 {
	return e.frameCount.Load()
}

func (e *engine) LastReport() renderer.FrameReport {
	if r := e.lastReport.Load(); r != nil {
		return *r
	}
	return renderer.FrameReport{}
}

func (e *engine) ImportErrors() uint64 {
	return e.importErrs.Load()
}
