package bake

import (
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// Lightmap is baked irradiance for one mesh generation, uploaded as an sRGB RGBA8 texture.
// It is valid only while its generation matches the node's current mesh generation.
// Holders share it through Retain and Release; the texture is freed with the last reference.
type Lightmap struct {
	ref      model.MeshRef
	settings Settings
	image    *Irradiance
	texture  gpu.Texture
	refs     atomic.Int32
}

func newLightmap(ref model.MeshRef, settings Settings, image *Irradiance, texture gpu.Texture) *Lightmap {
	lm := &Lightmap{ref: ref, settings: settings, image: image, texture: texture}
	lm.refs.Store(1)
	return lm
}

// Ref returns the mesh generation the lightmap was baked against.
func (l *Lightmap) Ref() model.MeshRef { return l.ref }

// Generation returns the mesh generation the lightmap was baked against.
func (l *Lightmap) Generation() model.Generation { return l.ref.Generation }

// Size returns the side length in texels.
func (l *Lightmap) Size() uint32 { return l.image.Size }

// Settings returns the settings the bake ran with.
func (l *Lightmap) Settings() Settings { return l.settings }

// Irradiance returns the linear texels. The result is shared and must not be modified.
func (l *Lightmap) Irradiance() *Irradiance { return l.image }

// Texture returns the device texture.
func (l *Lightmap) Texture() gpu.Texture { return l.texture }

// Retain adds a reference and returns l for chaining.
func (l *Lightmap) Retain() *Lightmap {
	l.refs.Add(1)
	return l
}

// Release drops a reference, freeing the texture when none remain.
func (l *Lightmap) Release() {
	if l.refs.Add(-1) == 0 {
		l.texture.Release()
	}
}

// Staging converts linear irradiance to tone-mapped sRGB RGBA8. Uncovered texels get zero alpha.
//
// Parameters:
//   - ir: the baked irradiance
//
// Returns:
//   - common.TextureStagingData: the pixels ready for upload
func Staging(ir *Irradiance) common.TextureStagingData {
	pixels := make([]byte, len(ir.Texels)*4)
	for i, c := range ir.Texels {
		if !ir.Covered[i] {
			continue
		}
		for ch := range 3 {
			pixels[i*4+ch] = encode(c[ch])
		}
		pixels[i*4+3] = 255
	}
	return common.TextureStagingData{Pixels: pixels, Width: ir.Size, Height: ir.Size}
}

// encode applies Reinhard tone mapping then the sRGB transfer curve.
func encode(v float32) byte {
	if v <= 0 {
		return 0
	}
	mapped := float64(v / (1 + v))
	var s float64
	if mapped <= 0.0031308 {
		s = mapped * 12.92
	} else {
		s = 1.055*math.Pow(mapped, 1/2.4) - 0.055
	}
	return byte(math.Round(common.Clamp(s, 0, 1) * 255))
}

// Sample returns the texel containing lightmap coordinate uv.
func (l *Lightmap) Sample(uv mgl32.Vec2) mgl32.Vec3 {
	size := float32(l.image.Size)
	x := uint32(common.Clamp(uv[0]*size, 0, size-1))
	y := uint32(common.Clamp(uv[1]*size, 0, size-1))
	return l.image.At(x, y)
}
