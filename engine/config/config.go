// Package config loads pipeline settings from TOML or YAML files and turns them into the
// functional options the engine packages are built with.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Device backends.
const (
	BackendMemory = "memory"
	BackendWGPU   = "wgpu"
)

// Config is the complete pipeline configuration. Keys missing from a file keep their defaults
// and unknown keys are ignored.
type Config struct {
	Engine    EngineConfig    `toml:"engine" yaml:"engine"`
	Synthesis SynthesisConfig `toml:"synthesis" yaml:"synthesis"`
	Bake      BakeConfig      `toml:"bake" yaml:"bake"`
	Device    DeviceConfig    `toml:"device" yaml:"device"`
	Camera    CameraConfig    `toml:"camera" yaml:"camera"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

// EngineConfig drives the engine loop, the scene controller and the frame source.
type EngineConfig struct {
	TickRate         float64 `toml:"tick_rate" yaml:"tick_rate"`
	RenderFrameLimit float64 `toml:"render_frame_limit" yaml:"render_frame_limit"`
	MaxFrames        uint64  `toml:"max_frames" yaml:"max_frames"`
	ImportQueue      int     `toml:"import_queue" yaml:"import_queue"`
	Profiling        bool    `toml:"profiling" yaml:"profiling"`
	AutoBake         bool    `toml:"auto_bake" yaml:"auto_bake"`
	Parallelism      int     `toml:"parallelism" yaml:"parallelism"`
	FramesInFlight   int     `toml:"frames_in_flight" yaml:"frames_in_flight"`
	Culling          bool    `toml:"culling" yaml:"culling"`
}

// SynthesisConfig tunes the mesh synthesis engine.
type SynthesisConfig struct {
	MaxPendingReleases int     `toml:"max_pending_releases" yaml:"max_pending_releases"`
	DegenerateEpsilon  float32 `toml:"degenerate_epsilon" yaml:"degenerate_epsilon"`
}

// BakeConfig sets the bake coordinator's pool, the default bake settings and the static lights.
type BakeConfig struct {
	Workers     int           `toml:"workers" yaml:"workers"`
	QueueSize   int           `toml:"queue_size" yaml:"queue_size"`
	Resolution  float64       `toml:"resolution" yaml:"resolution"`
	SampleCount int           `toml:"sample_count" yaml:"sample_count"`
	Denoise     bool          `toml:"denoise" yaml:"denoise"`
	Ambient     [3]float32    `toml:"ambient" yaml:"ambient"`
	Lights      []LightConfig `toml:"lights" yaml:"lights"`
}

// LightConfig describes one static light. Cone angles are in degrees.
type LightConfig struct {
	Type      string     `toml:"type" yaml:"type"`
	Position  [3]float32 `toml:"position" yaml:"position"`
	Direction [3]float32 `toml:"direction" yaml:"direction"`
	Color     [3]float32 `toml:"color" yaml:"color"`
	Intensity float32    `toml:"intensity" yaml:"intensity"`
	Range     float32    `toml:"range" yaml:"range"`
	InnerCone float32    `toml:"inner_cone" yaml:"inner_cone"`
	OuterCone float32    `toml:"outer_cone" yaml:"outer_cone"`
}

// DeviceConfig selects and limits the GPU device.
type DeviceConfig struct {
	Backend       string `toml:"backend" yaml:"backend"`
	Label         string `toml:"label" yaml:"label"`
	BudgetBytes   uint64 `toml:"budget_bytes" yaml:"budget_bytes"`
	MaxHandles    int    `toml:"max_handles" yaml:"max_handles"`
	ForceFallback bool   `toml:"force_fallback_adapter" yaml:"force_fallback_adapter"`
}

// CameraConfig is the viewer used for frustum culling. A zero Eye disables the view.
type CameraConfig struct {
	Eye    [3]float32 `toml:"eye" yaml:"eye"`
	Target [3]float32 `toml:"target" yaml:"target"`
	Up     [3]float32 `toml:"up" yaml:"up"`
	FovY   float32    `toml:"fov_y" yaml:"fov_y"`
	Aspect float32    `toml:"aspect" yaml:"aspect"`
	Near   float32    `toml:"near" yaml:"near"`
	Far    float32    `toml:"far" yaml:"far"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	settings := bake.DefaultSettings()
	return Config{
		Engine: EngineConfig{
			TickRate:       60,
			ImportQueue:    256,
			AutoBake:       true,
			FramesInFlight: renderer.DefaultFramesInFlight,
			Culling:        true,
		},
		Synthesis: SynthesisConfig{
			MaxPendingReleases: synthesis.DefaultMaxPendingReleases,
			DegenerateEpsilon:  synthesis.DefaultDegenerateEpsilon,
		},
		Bake: BakeConfig{
			Workers:     bake.DefaultWorkers,
			QueueSize:   bake.DefaultQueueSize,
			Resolution:  settings.Resolution,
			SampleCount: settings.SampleCount,
			Denoise:     settings.Denoise,
			Ambient:     [3]float32{0.05, 0.05, 0.05},
		},
		Device: DeviceConfig{
			Backend: BackendMemory,
			Label:   "xrvis",
		},
		Camera: CameraConfig{
			Up:     [3]float32{0, 1, 0},
			FovY:   60,
			Aspect: 16.0 / 9.0,
			Near:   0.1,
			Far:    500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// FormatFromPath selects the syntax by extension: .toml, or .yaml/.yml.
//
// Parameters:
//   - path: the configuration file path
//
// Returns:
//   - Format: the syntax
//   - error: error if the extension is not recognised
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
}

// Load reads a configuration file over the defaults and validates the result.
//
// Parameters:
//   - path: the file path (.toml, .yaml or .yml)
//
// Returns:
//   - Config: the loaded configuration
//   - error: error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration data over the defaults and validates the result.
//
// Parameters:
//   - data: the raw file contents
//   - format: the syntax of data
//
// Returns:
//   - Config: the decoded configuration
//   - error: error if decoding or validation fails
func Parse(data []byte, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	case FormatYAML:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode yaml: %w", err)
			}
		}
	default:
		return Config{}, fmt.Errorf("unsupported format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every setting outside its accepted range.
//
// Returns:
//   - error: the joined validation errors, or nil
func (c Config) Validate() error {
	var errs []error
	if c.Engine.TickRate < 0 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must not be negative"))
	}
	if c.Engine.ImportQueue < 0 {
		errs = append(errs, fmt.Errorf("engine.import_queue must not be negative"))
	}
	if c.Engine.FramesInFlight < 0 {
		errs = append(errs, fmt.Errorf("engine.frames_in_flight must not be negative"))
	}
	if c.Bake.Workers < 0 || c.Bake.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("bake.workers and bake.queue_size must not be negative"))
	}
	if c.Bake.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("bake.resolution must be positive"))
	}
	if c.Bake.SampleCount < 1 {
		errs = append(errs, fmt.Errorf("bake.sample_count must be at least 1"))
	}
	for i, l := range c.Bake.Lights {
		if _, ok := light.ParseLightType(l.Type); !ok {
			errs = append(errs, fmt.Errorf("bake.lights[%d]: unknown type %q", i, l.Type))
		}
	}
	switch c.Device.Backend {
	case BackendMemory, BackendWGPU:
	default:
		errs = append(errs, fmt.Errorf("device.backend: unknown backend %q", c.Device.Backend))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera: need 0 < near < far"))
	}
	return errors.Join(errs...)
}
