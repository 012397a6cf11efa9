package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/scene"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithMaxFrames makes Run return after n frames. 0 runs until Quit.
//
// Parameters:
//   - n: the frame count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithDevice sets the device meshes and lightmaps are allocated on. The engine releases it on shutdown.
//
// Parameters:
//   - d: the device
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDevice(d gpu.Device) EngineBuilderOption {
	return func(e *engine) {
		e.device = d
	}
}

// WithFrameSource sets the host frame source the render loop builds frames from.
//
// Parameters:
//   - fs: the frame source
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameSource(fs renderer.FrameSource) EngineBuilderOption {
	return func(e *engine) {
		e.frames = fs
	}
}

// WithImportQueue sets how many import events Submit buffers before blocking.
//
// Parameters:
//   - n: the queue depth
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithImportQueue(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.importQueue = n
		}
	}
}

// WithSynthesisOptions forwards options to the synthesis engine.
//
// Parameters:
//   - options: the synthesis engine options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSynthesisOptions(options ...synthesis.EngineBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.synthOptions = append(e.synthOptions, options...)
	}
}

// WithBakeOptions forwards options to the bake coordinator.
//
// Parameters:
//   - options: the coordinator options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBakeOptions(options ...bake.CoordinatorBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.bakeOptions = append(e.bakeOptions, options...)
	}
}

// WithExtensionOptions forwards options to the render extension.
//
// Parameters:
//   - options: the extension options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithExtensionOptions(options ...renderer.ExtensionBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.extOptions = append(e.extOptions, options...)
	}
}

// WithControllerOptions forwards options to the scene controller.
//
// Parameters:
//   - options: the controller options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithControllerOptions(options ...scene.ControllerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.ctrlOptions = append(e.ctrlOptions, options...)
	}
}
