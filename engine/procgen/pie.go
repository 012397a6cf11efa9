package procgen

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultPieSegments is the number of arc segments a full circle is divided into.
const DefaultPieSegments = 64

// PieChartParams describes a pie extruded along +Y from the XZ plane, centered on the origin.
// Zero-valued fields take their defaults.
type PieChartParams struct {
	// Values is one value per slice. Slices span angles proportional to their value; values that are
	// zero or negative produce no slice but keep their index for radius steps and material slots.
	Values []float32

	// Radius is the outer radius. Default 1.
	Radius float32

	// InnerRadius, when positive, hollows the pie into a ring.
	InnerRadius float32

	// RadiusStep grows the outer radius of slice i by i*RadiusStep, giving a rose (Nightingale) chart.
	RadiusStep float32

	// Height is the extrusion height. Default 0.2.
	Height float32

	// GapAngle is the angle in degrees cut from the end of every slice when there is more than one.
	GapAngle float32

	// Segments is the number of arc segments per full circle. Default DefaultPieSegments.
	Segments int

	// Slots is the number of material slots slices cycle through. Default len(Values).
	Slots int

	// AtlasPadding is the per-side padding of each face's lightmap cell. Default DefaultAtlasPadding.
	AtlasPadding float32
}

type pieSlice struct {
	index      int
	start, end float64
	segments   int
	outer      float32
}

// PieChart generates the pie's geometry: flat-shaded top, bottom, outer and inner arc faces plus the two
// end caps of each slice, one material section per slice and a lightmap UV atlas in which no two faces
// overlap.
//
// Parameters:
//   - p: the pie parameters
//
// Returns:
//   - *model.MeshDescriptor: the generated mesh
//   - error: an error wrapping common.ErrInvalidGeometry if no value is positive or the radii are unusable
func PieChart(p PieChartParams) (*model.MeshDescriptor, error) {
	radius := common.Coalesce(p.Radius, 1)
	height := common.Coalesce(p.Height, 0.2)
	segments := common.Coalesce(p.Segments, DefaultPieSegments)
	pad := common.Coalesce(p.AtlasPadding, DefaultAtlasPadding)
	slots := common.Coalesce(p.Slots, len(p.Values))
	inner := max(p.InnerRadius, 0)
	if radius <= 0 || height <= 0 || segments < 3 || inner >= radius || p.RadiusStep < 0 {
		return nil, fmt.Errorf("procgen: pie radius %g inner %g height %g: %w", radius, inner, height, common.ErrInvalidGeometry)
	}

	var total float64
	positive := 0
	for _, v := range p.Values {
		if v > 0 {
			total += float64(v)
			positive++
		}
	}
	if positive == 0 {
		return nil, fmt.Errorf("procgen: pie of %d values has nothing to draw: %w", len(p.Values), common.ErrInvalidGeometry)
	}

	gap := 0.0
	if positive > 1 {
		gap = float64(mgl32.DegToRad(max(p.GapAngle, 0)))
	}
	full := positive == 1 && gap == 0

	var slices []pieSlice
	var acc float64
	faces := 0
	for i, v := range p.Values {
		if v <= 0 {
			continue
		}
		start := acc
		acc += float64(v) / total * 2 * math.Pi
		end := acc - gap
		if end-start <= 1e-6 {
			continue
		}
		s := pieSlice{
			index:    i,
			start:    start,
			end:      end,
			segments: max(int(math.Ceil(float64(segments)*(end-start)/(2*math.Pi))), 1),
			outer:    radius + float32(i)*p.RadiusStep,
		}
		perSegment := 3
		if inner > 0 {
			perSegment++
		}
		faces += s.segments * perSegment
		if !full {
			faces += 2
		}
		slices = append(slices, s)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("procgen: pie gaps leave no slices: %w", common.ErrInvalidGeometry)
	}

	b := newFaceBuilder(fmt.Sprintf("pie-%d", len(p.Values)), faces, pad)
	up := mgl32.Vec3{0, 1, 0}
	for _, s := range slices {
		b.section(s.index % max(slots, 1))
		at := func(r float32, a float64, y float32) mgl32.Vec3 {
			return mgl32.Vec3{r * float32(math.Cos(a)), y, r * float32(math.Sin(a))}
		}

		step := (s.end - s.start) / float64(s.segments)
		for k := 0; k < s.segments; k++ {
			a0 := s.start + float64(k)*step
			a1 := a0 + step
			mid := at(1, (a0+a1)/2, 0)

			if inner > 0 {
				b.quad(at(inner, a0, height), at(s.outer, a0, height), at(s.outer, a1, height), at(inner, a1, height), up)
				b.quad(at(inner, a0, 0), at(s.outer, a0, 0), at(s.outer, a1, 0), at(inner, a1, 0), up.Mul(-1))
				b.quad(at(inner, a0, 0), at(inner, a1, 0), at(inner, a1, height), at(inner, a0, height), mid.Mul(-1))
			} else {
				b.tri(mgl32.Vec3{0, height, 0}, at(s.outer, a0, height), at(s.outer, a1, height), up)
				b.tri(mgl32.Vec3{}, at(s.outer, a0, 0), at(s.outer, a1, 0), up.Mul(-1))
			}
			b.quad(at(s.outer, a0, 0), at(s.outer, a1, 0), at(s.outer, a1, height), at(s.outer, a0, height), mid)
		}

		if full {
			continue
		}
		tangent := func(a float64) mgl32.Vec3 {
			return mgl32.Vec3{-float32(math.Sin(a)), 0, float32(math.Cos(a))}
		}
		b.quad(at(inner, s.start, 0), at(s.outer, s.start, 0), at(s.outer, s.start, height), at(inner, s.start, height), tangent(s.start).Mul(-1))
		b.quad(at(inner, s.end, 0), at(s.outer, s.end, 0), at(s.outer, s.end, height), at(inner, s.end, height), tangent(s.end))
	}
	return b.mesh, nil
}
