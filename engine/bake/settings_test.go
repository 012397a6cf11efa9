package bake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		want    Settings
	}{
		{"nil uses defaults", nil, DefaultSettings()},
		{"all recognised", map[string]any{"resolution": 32, "sampleCount": int64(8), "denoise": false},
			Settings{Resolution: 32, SampleCount: 8, Denoise: false}},
		{"float sample count", map[string]any{"sampleCount": 2.0}, Settings{Resolution: DefaultResolution, SampleCount: 2, Denoise: true}},
		{"json number", map[string]any{"resolution": json.Number("4.5")}, Settings{Resolution: 4.5, SampleCount: DefaultSampleCount, Denoise: true}},
		{"unknown keys ignored", map[string]any{"quality": "ultra", "bounces": 3}, DefaultSettings()},
		{"wrong types ignored", map[string]any{"resolution": "high", "denoise": 1, "sampleCount": nil}, DefaultSettings()},
		{"out of range ignored", map[string]any{"resolution": -1, "sampleCount": 2.5}, DefaultSettings()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSettings(tt.options))
		})
	}
}

func TestSettingsOptionsRoundTrip(t *testing.T) {
	s := Settings{Resolution: 8, SampleCount: 2, Denoise: false}
	assert.Equal(t, s, ParseSettings(s.Options()))
}

func TestLightmapSize(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, uint32(16), s.LightmapSize(1))
	assert.Equal(t, uint32(MinLightmapSize), s.LightmapSize(0))
	assert.Equal(t, uint32(MaxLightmapSize), s.LightmapSize(1e9))
	s.Resolution = 10
	assert.Equal(t, uint32(20), s.LightmapSize(4))
}
