package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/engine"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlConfig = `
[engine]
tick_rate = 120.0
max_frames = 3
auto_bake = false
unknown_key = "ignored"

[bake]
resolution = 8.0
sample_count = 2
denoise = false
ambient = [0.1, 0.1, 0.1]

[[bake.lights]]
type = "directional"
direction = [0.0, -1.0, 0.0]
intensity = 2.0

[[bake.lights]]
type = "spot"
position = [0.0, 5.0, 0.0]
direction = [0.0, -1.0, 0.0]
range = 20.0
inner_cone = 10.0
outer_cone = 30.0

[device]
budget_bytes = 1048576

[log]
level = "debug"
`

const yamlConfig = `
engine:
  frames_in_flight: 3
  culling: false
synthesis:
  max_pending_releases: 8
device:
  backend: memory
  max_handles: 100
camera:
  eye: [0, 2, 5]
  target: [0, 0, 0]
`

func TestParseTOML(t *testing.T) {
	cfg, err := Parse([]byte(tomlConfig), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, 120.0, cfg.Engine.TickRate)
	assert.Equal(t, uint64(3), cfg.Engine.MaxFrames)
	assert.False(t, cfg.Engine.AutoBake)
	assert.True(t, cfg.Engine.Culling, "missing keys keep defaults")
	assert.Equal(t, bake.Settings{Resolution: 8, SampleCount: 2, Denoise: false}, cfg.Bake.Settings())
	assert.Equal(t, [3]float32{0.1, 0.1, 0.1}, cfg.Bake.Ambient)
	assert.Equal(t, uint64(1<<20), cfg.Device.BudgetBytes)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Bake.Lights, 2)

	lights, err := cfg.Bake.BuildLights()
	require.NoError(t, err)
	assert.Equal(t, light.LightTypeDirectional, lights[0].Type())
	assert.Equal(t, float32(2), lights[0].Intensity())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, lights[0].Color())
	assert.Equal(t, light.LightTypeSpot, lights[1].Type())
	assert.Equal(t, float32(20), lights[1].Range())
	assert.Equal(t, mgl32.Vec3{0, 5, 0}, lights[1].Position())
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.FramesInFlight)
	assert.False(t, cfg.Engine.Culling)
	assert.Equal(t, 8, cfg.Synthesis.MaxPendingReleases)
	assert.Equal(t, 100, cfg.Device.MaxHandles)
	assert.Equal(t, 60.0, cfg.Engine.TickRate)

	vp, ok := cfg.Camera.ViewProjection()
	require.True(t, ok)
	origin := vp.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Greater(t, origin.W(), float32(0), "origin is in front of the camera")
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Parse([]byte(""), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, ok := cfg.Camera.ViewProjection()
	assert.False(t, ok, "default camera is disabled")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"negative tick rate", "[engine]\ntick_rate = -1.0\n"},
		{"zero resolution", "[bake]\nresolution = 0.0\n"},
		{"zero samples", "[bake]\nsample_count = 0\n"},
		{"unknown light", "[[bake.lights]]\ntype = \"area\"\n"},
		{"unknown backend", "[device]\nbackend = \"vulkan\"\n"},
		{"bad clip planes", "[camera]\nnear = 5.0\nfar = 1.0\n"},
		{"malformed", "[engine\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), FormatTOML)
			assert.Error(t, err)
		})
	}
}

func TestLoadSelectsFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "xrvis.toml")
	yamlPath := filepath.Join(dir, "xrvis.yml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlConfig), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlConfig), 0o644))

	cfg, err := Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Engine.TickRate)

	cfg, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.FramesInFlight)

	_, err = Load(filepath.Join(dir, "xrvis.ini"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestBakeOptionsRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Bake.Resolution = 12
	cfg.Bake.SampleCount = 3
	assert.Equal(t, cfg.Bake.Settings(), bake.ParseSettings(cfg.Bake.Options()))
}

func TestEngineOptionsRunEngine(t *testing.T) {
	cfg, err := Parse([]byte(tomlConfig), FormatTOML)
	require.NoError(t, err)
	cfg.Engine.RenderFrameLimit = 1000

	device, err := cfg.Device.OpenDevice()
	require.NoError(t, err)
	opts, err := cfg.EngineOptions()
	require.NoError(t, err)

	e := engine.NewEngine(append(opts, engine.WithDevice(device))...)
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.Quit()
		t.Fatal("engine did not stop after max_frames")
	}
	assert.Equal(t, uint64(3), e.Frames())
}
