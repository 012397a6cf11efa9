package bake

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"go.uber.org/zap"
)

// Recognised option keys in the opaque configuration object passed to RequestBake.
const (
	OptionResolution  = "resolution"
	OptionSampleCount = "sampleCount"
	OptionDenoise     = "denoise"
)

const (
	// DefaultResolution is the lightmap texel density in texels per world unit.
	DefaultResolution = 16.0
	// DefaultSampleCount is the number of jittered samples per texel.
	DefaultSampleCount = 4
	// MinLightmapSize and MaxLightmapSize clamp the lightmap side length in texels.
	MinLightmapSize = 4
	MaxLightmapSize = 1024
)

// Settings controls bake quality.
type Settings struct {
	// Resolution is the texel density in texels per world unit.
	Resolution float64
	// SampleCount is the number of jittered samples per texel.
	SampleCount int
	// Denoise enables a 3x3 filter over covered texels.
	Denoise bool
}

// DefaultSettings returns the settings used for every option the caller leaves out.
func DefaultSettings() Settings {
	return Settings{
		Resolution:  DefaultResolution,
		SampleCount: DefaultSampleCount,
		Denoise:     true,
	}
}

// ParseSettings reads bake settings from an opaque option object.
// Unrecognised keys are ignored. Recognised keys with an unusable value are ignored with a warning
// and keep their default.
//
// Parameters:
//   - options: the option object, may be nil
//
// Returns:
//   - Settings: the parsed settings
func ParseSettings(options map[string]any) Settings {
	s := DefaultSettings()
	for key, raw := range options {
		switch key {
		case OptionResolution:
			if v, ok := toFloat(raw); ok && v > 0 {
				s.Resolution = v
				continue
			}
		case OptionSampleCount:
			if v, ok := toFloat(raw); ok && v >= 1 && v == math.Trunc(v) {
				s.SampleCount = int(v)
				continue
			}
		case OptionDenoise:
			if v, ok := raw.(bool); ok {
				s.Denoise = v
				continue
			}
		default:
			continue
		}
		logger.L().Warn("bake: ignoring option value",
			zap.String("option", key),
			zap.Any("value", raw),
			zap.String("type", fmt.Sprintf("%T", raw)))
	}
	return s
}

// Options renders s back into the opaque option object form.
//
// Returns:
//   - map[string]any: the option object
func (s Settings) Options() map[string]any {
	return map[string]any{
		OptionResolution:  s.Resolution,
		OptionSampleCount: s.SampleCount,
		OptionDenoise:     s.Denoise,
	}
}

// LightmapSize returns the square lightmap side for a surface of the given world area.
//
// Parameters:
//   - worldArea: the total surface area in squared world units
//
// Returns:
//   - uint32: the side length, clamped to [MinLightmapSize, MaxLightmapSize]
func (s Settings) LightmapSize(worldArea float64) uint32 {
	side := math.Ceil(math.Sqrt(max(worldArea, 0)) * s.Resolution)
	if math.IsNaN(side) {
		side = MinLightmapSize
	}
	return uint32(common.Clamp(side, MinLightmapSize, MaxLightmapSize))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
