package light

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption configures a Light before it is handed to the baker.
type LightBuilderOption func(*lightImpl)

// WithPosition places a point or spot light in world space. Lumel positions sampled by the bake
// kernel are measured against it; directional lights ignore it.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection sets the direction light travels in, used for directional lights and spot cone
// axes. It is normalized; a zero vector keeps the default straight-down direction.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		d := mgl32.Vec3{x, y, z}
		if d.Len() == 0 {
			return
		}
		l.direction = d.Normalize()
	}
}

// WithColor sets the linear RGB tint the light adds to every lumel it reaches.
//
// Parameters:
//   - r: the red component
//   - g: the green component
//   - b: the blue component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity scales the light's contribution to baked irradiance. Zero or negative
// intensities contribute nothing.
//
// Parameters:
//   - intensity: the intensity multiplier
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithRange sets the distance at which a point or spot light's baked contribution fades to zero.
// Lumels at or beyond it are skipped by the kernel.
//
// Parameters:
//   - lightRange: the range in world units
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a lightImpl
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = lightRange
	}
}

// WithSpotCone sets the half-angles in degrees of a spot light's full-intensity core and its
// outer falloff edge. The angles are stored as cosines and swapped if given out of order.
//
// Parameters:
//   - innerDeg: the core half-angle in degrees
//   - outerDeg: the falloff edge half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the cone option to a lightImpl
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		if innerDeg > outerDeg {
			innerDeg, outerDeg = outerDeg, innerDeg
		}
		l.innerCone = cosDeg(innerDeg)
		l.outerCone = cosDeg(outerDeg)
	}
}

// WithEnabled includes or excludes the light from bakes. A disabled light adds no irradiance to
// any lumel.
//
// Parameters:
//   - enabled: true to bake the light
//
// Returns:
//   - LightBuilderOption: a function that applies the enabled option to a lightImpl
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(deg) * math.Pi / 180.0))
}
