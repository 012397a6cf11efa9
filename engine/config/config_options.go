package config

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xrvis/engine"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/camera"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/scene"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Settings returns the bake settings this section describes.
func (b BakeConfig) Settings() bake.Settings {
	return bake.Settings{
		Resolution:  b.Resolution,
		SampleCount: b.SampleCount,
		Denoise:     b.Denoise,
	}
}

// Options renders the bake settings as the option object RequestBake accepts.
//
// Returns:
//   - map[string]any: the option object
func (b BakeConfig) Options() map[string]any {
	return b.Settings().Options()
}

// BuildLights constructs the configured lights. Zero colors default to white and zero
// intensities to 1.
//
// Returns:
//   - []light.Light: the lights, in file order
//   - error: error naming the first light with an unknown type
func (b BakeConfig) BuildLights() ([]light.Light, error) {
	out := make([]light.Light, 0, len(b.Lights))
	for i, lc := range b.Lights {
		lt, ok := light.ParseLightType(lc.Type)
		if !ok {
			return nil, fmt.Errorf("config: bake.lights[%d]: unknown type %q", i, lc.Type)
		}

		color := lc.Color
		if color == ([3]float32{}) {
			color = [3]float32{1, 1, 1}
		}
		intensity := lc.Intensity
		if intensity == 0 {
			intensity = 1
		}

		opts := []light.LightBuilderOption{
			light.WithColor(color[0], color[1], color[2]),
			light.WithIntensity(intensity),
		}
		if lt != light.LightTypeDirectional {
			opts = append(opts, light.WithPosition(lc.Position[0], lc.Position[1], lc.Position[2]))
		}
		if lt != light.LightTypePoint && lc.Direction != ([3]float32{}) {
			opts = append(opts, light.WithDirection(lc.Direction[0], lc.Direction[1], lc.Direction[2]))
		}
		if lc.Range > 0 {
			opts = append(opts, light.WithRange(lc.Range))
		}
		if lt == light.LightTypeSpot && lc.OuterCone > 0 {
			opts = append(opts, light.WithSpotCone(lc.InnerCone, lc.OuterCone))
		}
		out = append(out, light.NewLight(lt, opts...))
	}
	return out, nil
}

// DeviceOptions returns the device builder options for this section.
func (d DeviceConfig) DeviceOptions() []gpu.DeviceBuilderOption {
	opts := []gpu.DeviceBuilderOption{gpu.WithLabel(d.Label)}
	if d.BudgetBytes > 0 {
		opts = append(opts, gpu.WithBudget(d.BudgetBytes))
	}
	if d.MaxHandles > 0 {
		opts = append(opts, gpu.WithMaxHandles(d.MaxHandles))
	}
	if d.ForceFallback {
		opts = append(opts, gpu.WithFallbackAdapter(true))
	}
	return opts
}

// OpenDevice creates the configured device.
//
// Returns:
//   - gpu.Device: the device
//   - error: error if the WebGPU adapter or device cannot be obtained
func (d DeviceConfig) OpenDevice() (gpu.Device, error) {
	if d.Backend == BackendWGPU {
		return gpu.NewWGPUDevice(d.DeviceOptions()...)
	}
	return gpu.NewMemoryDevice(d.DeviceOptions()...), nil
}

// Camera builds the culling camera this section describes. FovY is in degrees.
//
// Returns:
//   - camera.Camera: the camera, disabled when Eye is zero or equals Target
func (c CameraConfig) Camera() camera.Camera {
	return camera.NewCamera(
		camera.WithEye(mgl32.Vec3(c.Eye)),
		camera.WithTarget(mgl32.Vec3(c.Target)),
		camera.WithUp(mgl32.Vec3(c.Up)),
		camera.WithFov(mgl32.DegToRad(max(c.FovY, 1))),
		camera.WithAspect(c.Aspect),
		camera.WithClip(c.Near, c.Far),
	)
}

// ViewProjection returns the camera's combined view-projection matrix.
//
// Returns:
//   - mgl32.Mat4: projection * view
//   - bool: false when the camera is disabled (zero eye or eye equal to target)
func (c CameraConfig) ViewProjection() (mgl32.Mat4, bool) {
	return c.Camera().ViewProjection()
}

// Logger builds the zap logger this section describes.
//
// Returns:
//   - *zap.Logger: the logger
//   - error: error if the level is unknown
func (l LogConfig) Logger() (*zap.Logger, error) {
	return logger.New(l.Level, l.Development)
}

// EngineOptions assembles every engine builder option the configuration implies, except the
// device, which the caller opens and passes with engine.WithDevice.
//
// Returns:
//   - []engine.EngineBuilderOption: the engine options
//   - error: error if the lights cannot be built
func (c Config) EngineOptions() ([]engine.EngineBuilderOption, error) {
	lights, err := c.Bake.BuildLights()
	if err != nil {
		return nil, err
	}

	recorder := renderer.NewRecorder(renderer.WithFramesInFlight(c.Engine.FramesInFlight))
	c.Camera.Camera().Attach(recorder)

	ctrlOpts := []scene.ControllerBuilderOption{scene.WithBakeOptions(c.Bake.Options())}
	if c.Engine.AutoBake {
		ctrlOpts = append(ctrlOpts, scene.WithAutoBake(c.Bake.Options()))
	}
	if c.Engine.Parallelism > 0 {
		ctrlOpts = append(ctrlOpts, scene.WithParallelism(c.Engine.Parallelism))
	}

	return []engine.EngineBuilderOption{
		engine.WithTickRate(c.Engine.TickRate),
		engine.WithRenderFrameLimit(c.Engine.RenderFrameLimit),
		engine.WithMaxFrames(c.Engine.MaxFrames),
		engine.WithProfiling(c.Engine.Profiling),
		engine.WithImportQueue(c.Engine.ImportQueue),
		engine.WithFrameSource(recorder),
		engine.WithSynthesisOptions(
			synthesis.WithMaxPendingReleases(c.Synthesis.MaxPendingReleases),
			synthesis.WithDegenerateEpsilon(c.Synthesis.DegenerateEpsilon),
		),
		engine.WithBakeOptions(
			bake.WithWorkers(c.Bake.Workers),
			bake.WithQueueSize(c.Bake.QueueSize),
			bake.WithLights(lights...),
			bake.WithAmbient(mgl32.Vec3(c.Bake.Ambient)),
		),
		engine.WithExtensionOptions(renderer.WithCulling(c.Engine.Culling)),
		engine.WithControllerOptions(ctrlOpts...),
	}, nil
}
