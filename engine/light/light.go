// Package light defines the static light sources the lightmap baker integrates.
package light

import (
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun. No distance attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance up to its range.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Attenuates with distance and with angle from the cone axis.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// ParseLightType maps a config name to a LightType.
//
// Parameters:
//   - name: "directional", "point" or "spot"
//
// Returns:
//   - LightType: the light type
//   - bool: false if the name is not recognised
func ParseLightType(name string) (LightType, bool) {
	switch name {
	case "directional", "sun":
		return LightTypeDirectional, true
	case "point":
		return LightTypePoint, true
	case "spot":
		return LightTypeSpot, true
	default:
		return 0, false
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType  LightType
	position   mgl32.Vec3
	direction  mgl32.Vec3
	color      mgl32.Vec3
	intensity  float32
	lightRange float32
	innerCone  float32 // stored as cos(angle in radians)
	outerCone  float32 // stored as cos(angle in radians)
	enabled    bool
}

// Light is an immutable static light source. Bake jobs read lights concurrently,
// so a Light never changes after construction; edit by building a new one.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Direction returns the normalized direction the light travels.
	// For spot lights this is the cone axis. Meaningless for point lights.
	//
	// Returns:
	//   - mgl32.Vec3: the normalized direction
	Direction() mgl32.Vec3

	// Color returns the linear RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Range returns the distance beyond which point and spot lights contribute nothing.
	//
	// Returns:
	//   - float32: the range value
	Range() float32

	// InnerCone returns the cosine of the inner cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(inner half-angle)
	InnerCone() float32

	// OuterCone returns the cosine of the outer cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(outer half-angle)
	OuterCone() float32

	// Enabled returns whether the light contributes to bakes.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// Irradiance evaluates the light's direct contribution at a world-space surface point.
	//
	// Parameters:
	//   - pos: the world-space surface position
	//   - normal: the unit world-space surface normal
	//
	// Returns:
	//   - mgl32.Vec3: the RGB irradiance, zero when the point faces away or lies outside range
	Irradiance(pos, normal mgl32.Vec3) mgl32.Vec3
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:  lightType,
		direction:  mgl32.Vec3{0, -1, 0},
		color:      mgl32.Vec3{1, 1, 1},
		intensity:  1.0,
		lightRange: 10.0,
		innerCone:  0.9063, // cos(25°)
		outerCone:  0.8192, // cos(35°)
		enabled:    true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) InnerCone() float32 {
	return l.innerCone
}

func (l *lightImpl) OuterCone() float32 {
	return l.outerCone
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) Irradiance(pos, normal mgl32.Vec3) mgl32.Vec3 {
	if !l.enabled || l.intensity <= 0 {
		return mgl32.Vec3{}
	}

	var toLight mgl32.Vec3
	atten := float32(1)
	switch l.lightType {
	case LightTypeDirectional:
		toLight = l.direction.Mul(-1)
	case LightTypePoint, LightTypeSpot:
		d := l.position.Sub(pos)
		dist := d.Len()
		if dist >= l.lightRange || dist == 0 {
			return mgl32.Vec3{}
		}
		toLight = d.Mul(1 / dist)
		atten = rangeFalloff(dist, l.lightRange) / (1 + dist*dist)
		if l.lightType == LightTypeSpot {
			atten *= coneFalloff(toLight.Mul(-1).Dot(l.direction), l.innerCone, l.outerCone)
		}
	}

	ndl := normal.Dot(toLight)
	if ndl <= 0 || atten <= 0 {
		return mgl32.Vec3{}
	}
	return l.color.Mul(l.intensity * ndl * atten)
}

// rangeFalloff smoothly fades to zero at the light's range.
func rangeFalloff(dist, lightRange float32) float32 {
	r := dist / lightRange
	w := 1 - r*r*r*r
	if w <= 0 {
		return 0
	}
	return w * w
}

// coneFalloff interpolates between full intensity inside the inner cone and zero outside the outer cone.
func coneFalloff(cosAngle, inner, outer float32) float32 {
	if cosAngle >= inner {
		return 1
	}
	if cosAngle <= outer || inner <= outer {
		return 0
	}
	t := (cosAngle - outer) / (inner - outer)
	return t * t * (3 - 2*t)
}
