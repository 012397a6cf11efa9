package bake

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// Input is the immutable snapshot a bake works from.
type Input struct {
	Ref       model.MeshRef
	Vertices  []model.GPUVertex
	Indices   []uint32
	HasUVs    bool
	Transform mgl32.Mat4
	Settings  Settings
	Lights    []light.Light
	Ambient   mgl32.Vec3
}

// Irradiance is a square grid of linear RGB irradiance in lightmap UV space.
type Irradiance struct {
	Size    uint32
	Texels  []mgl32.Vec3
	Covered []bool
}

// At returns the texel at (x, y), row zero at v = 0.
func (ir *Irradiance) At(x, y uint32) mgl32.Vec3 {
	return ir.Texels[y*ir.Size+x]
}

// BakeFunc computes irradiance for one mesh generation. Implementations must poll ctx and
// return ctx.Err() promptly once it is cancelled, and may call progress with values in [0, 1].
type BakeFunc func(ctx context.Context, in Input, progress func(float32)) (*Irradiance, error)

var _ BakeFunc = Bake

func bakeFailure(ref model.MeshRef, format string, args ...any) error {
	return fmt.Errorf("bake %s: %w: %s", ref, common.ErrBakeFailure, fmt.Sprintf(format, args...))
}

// Bake is the default CPU kernel. It rasterizes every triangle in lightmap UV space, evaluates
// direct lighting plus ambient at SampleCount jittered points per texel and averages them.
// Jitter comes from a PCG stream seeded by the mesh reference and texel, so equal inputs give equal output.
//
// Parameters:
//   - ctx: cancels the bake between triangles
//   - in: the mesh snapshot and lighting setup
//   - progress: receives the completed fraction, may be nil
//
// Returns:
//   - *Irradiance: the baked texels
//   - error: ErrBakeFailure for unbakeable input, or ctx.Err() if cancelled
func Bake(ctx context.Context, in Input, progress func(float32)) (*Irradiance, error) {
	if !in.HasUVs {
		return nil, bakeFailure(in.Ref, "mesh has no lightmap UVs")
	}
	if progress == nil {
		progress = func(float32) {}
	}

	world := make([]mgl32.Vec3, len(in.Vertices))
	normals := make([]mgl32.Vec3, len(in.Vertices))
	nm := common.NormalMatrix(in.Transform)
	for i, v := range in.Vertices {
		world[i] = mgl32.TransformCoordinate(v.Position, in.Transform)
		n := nm.Mul3x1(v.Normal)
		if n.Len() > 0 {
			n = n.Normalize()
		}
		normals[i] = n
	}

	tris := len(in.Indices) / 3
	var worldArea, uvArea float64
	for t := range tris {
		i0, i1, i2 := in.Indices[t*3], in.Indices[t*3+1], in.Indices[t*3+2]
		worldArea += float64(common.TriangleArea(world[i0], world[i1], world[i2]))
		uvArea += math.Abs(float64(cross2(in.Vertices[i0].UV, in.Vertices[i1].UV, in.Vertices[i2].UV))) * 0.5
	}
	if uvArea < 1e-9 {
		return nil, bakeFailure(in.Ref, "UV atlas has zero area")
	}
	if worldArea <= 0 {
		return nil, bakeFailure(in.Ref, "mesh has zero surface area")
	}

	size := in.Settings.LightmapSize(worldArea)
	samples := max(in.Settings.SampleCount, 1)
	sums := make([]mgl32.Vec3, size*size)
	counts := make([]uint32, size*size)
	seed, stream := seedFor(in.Ref)
	fsize := float32(size)
	var pcg rand.PCG

	for t := range tris {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i0, i1, i2 := in.Indices[t*3], in.Indices[t*3+1], in.Indices[t*3+2]
		a := mgl32.Vec2(in.Vertices[i0].UV).Mul(fsize)
		b := mgl32.Vec2(in.Vertices[i1].UV).Mul(fsize)
		c := mgl32.Vec2(in.Vertices[i2].UV).Mul(fsize)

		x0, x1 := texelSpan(min(a[0], b[0], c[0]), max(a[0], b[0], c[0]), size)
		y0, y1 := texelSpan(min(a[1], b[1], c[1]), max(a[1], b[1], c[1]), size)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				idx := y*size + x
				// same jitter for a texel across triangles
				pcg.Seed(seed, stream^uint64(idx)<<8)
				for range samples {
					p := mgl32.Vec2{float32(x) + unitFloat(&pcg), float32(y) + unitFloat(&pcg)}
					u, v, w, ok := barycentric(p, a, b, c)
					if !ok {
						continue
					}
					pos := world[i0].Mul(u).Add(world[i1].Mul(v)).Add(world[i2].Mul(w))
					n := normals[i0].Mul(u).Add(normals[i1].Mul(v)).Add(normals[i2].Mul(w))
					if n.Len() > 0 {
						n = n.Normalize()
					}
					sums[idx] = sums[idx].Add(irradianceAt(in, pos, n))
					counts[idx]++
				}
			}
		}
		progress(float32(t+1) / float32(tris))
	}

	out := &Irradiance{
		Size:    size,
		Texels:  make([]mgl32.Vec3, size*size),
		Covered: make([]bool, size*size),
	}
	covered := 0
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		out.Texels[i] = sums[i].Mul(1 / float32(counts[i]))
		out.Covered[i] = true
		covered++
	}
	if covered == 0 {
		return nil, bakeFailure(in.Ref, "no texel of the %dx%d atlas is covered", size, size)
	}
	if in.Settings.Denoise {
		denoise(out)
	}
	return out, nil
}

func irradianceAt(in Input, pos, n mgl32.Vec3) mgl32.Vec3 {
	e := in.Ambient
	for _, l := range in.Lights {
		e = e.Add(l.Irradiance(pos, n))
	}
	return e
}

// denoise replaces every covered texel with the mean of the covered texels in its 3x3 neighbourhood.
func denoise(ir *Irradiance) {
	size := int(ir.Size)
	src := make([]mgl32.Vec3, len(ir.Texels))
	copy(src, ir.Texels)
	for y := range size {
		for x := range size {
			if !ir.Covered[y*size+x] {
				continue
			}
			var sum mgl32.Vec3
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= size || ny >= size || !ir.Covered[ny*size+nx] {
						continue
					}
					sum = sum.Add(src[ny*size+nx])
					n++
				}
			}
			ir.Texels[y*size+x] = sum.Mul(1 / float32(n))
		}
	}
}

// texelSpan returns the inclusive texel range overlapping [lo, hi], clamped to the atlas.
func texelSpan(lo, hi float32, size uint32) (uint32, uint32) {
	last := float32(size - 1)
	l := common.Clamp(float32(math.Floor(float64(lo))), 0, last)
	h := common.Clamp(float32(math.Floor(float64(hi))), 0, last)
	return uint32(l), uint32(h)
}

func cross2(a, b, c [2]float32) float32 {
	return (b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1])
}

// barycentric returns the weights of p against triangle (a, b, c) and whether p lies inside it.
func barycentric(p, a, b, c mgl32.Vec2) (float32, float32, float32, bool) {
	v0, v1, v2 := b.Sub(a), c.Sub(a), p.Sub(a)
	den := v0[0]*v1[1] - v1[0]*v0[1]
	if den == 0 {
		return 0, 0, 0, false
	}
	v := (v2[0]*v1[1] - v1[0]*v2[1]) / den
	w := (v0[0]*v2[1] - v2[0]*v0[1]) / den
	u := 1 - v - w
	const eps = -1e-5
	return u, v, w, u >= eps && v >= eps && w >= eps
}

func unitFloat(pcg *rand.PCG) float32 {
	return float32(pcg.Uint64()>>40) / (1 << 24)
}

func seedFor(ref model.MeshRef) (uint64, uint64) {
	h := fnv.New64a()
	h.Write([]byte(ref.Node))
	return h.Sum64(), uint64(ref.Generation)
}
