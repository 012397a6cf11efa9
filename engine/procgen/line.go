package procgen

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// LineChartParams describes a line chart as solid ribbons on the XZ plane, one per series, with
// values rising along +Y. The chart is centered on the origin. Zero-valued fields take their defaults.
type LineChartParams struct {
	// Series holds the values of each line. Every series needs at least two values.
	Series [][]float32

	// Step is the distance along X between consecutive values. Default 1.
	Step float32

	// Width is the ribbon thickness along Z. Default 0.2.
	Width float32

	// LaneSpacing is the distance along Z between neighbouring series. Default 1.
	LaneSpacing float32

	// MaxHeight, when positive, rescales every series by the same factor so the highest value reaches it.
	MaxHeight float32

	// MinHeight is the floor applied after scaling. Default DefaultMinHeight.
	MinHeight float32

	// Slots is the number of material slots series cycle through. Default len(Series).
	Slots int

	// AtlasPadding is the per-side padding of each face's lightmap cell. Default DefaultAtlasPadding.
	AtlasPadding float32
}

// LineChart generates one ribbon per series. Each segment between two values is a slab whose top
// slopes from the first value to the second; the ribbon is closed by caps at both ends. Each series is
// its own material section.
//
// Parameters:
//   - p: the line chart parameters
//
// Returns:
//   - *model.MeshDescriptor: the generated mesh
//   - error: an error wrapping common.ErrInvalidGeometry if there is no series or one has fewer than two values
func LineChart(p LineChartParams) (*model.MeshDescriptor, error) {
	if len(p.Series) == 0 {
		return nil, fmt.Errorf("procgen: line chart without series: %w", common.ErrInvalidGeometry)
	}
	var flat []float32
	longest, faces := 0, 0
	for i, s := range p.Series {
		if len(s) < 2 {
			return nil, fmt.Errorf("procgen: series %d has %d values: %w", i, len(s), common.ErrInvalidGeometry)
		}
		flat = append(flat, s...)
		longest = max(longest, len(s))
		faces += (len(s)-1)*4 + 2
	}

	step := common.Coalesce(p.Step, 1)
	width := common.Coalesce(p.Width, 0.2)
	lane := common.Coalesce(p.LaneSpacing, 1)
	pad := common.Coalesce(p.AtlasPadding, DefaultAtlasPadding)
	slots := max(common.Coalesce(p.Slots, len(p.Series)), 1)
	heights := scaleHeights(flat, len(flat), p.MaxHeight, common.Coalesce(p.MinHeight, DefaultMinHeight))

	originX := -float32(longest-1) * step / 2
	originZ := -float32(len(p.Series)-1) * lane / 2

	b := newFaceBuilder(fmt.Sprintf("line-%dx%d", len(p.Series), longest), faces, pad)
	up := mgl32.Vec3{0, 1, 0}
	front := mgl32.Vec3{0, 0, 1}
	right := mgl32.Vec3{1, 0, 0}

	offset := 0
	for i, s := range p.Series {
		b.section(i % slots)
		hs := heights[offset : offset+len(s)]
		offset += len(s)

		z0 := originZ + float32(i)*lane - width/2
		z1 := z0 + width
		for j := 0; j+1 < len(hs); j++ {
			x0 := originX + float32(j)*step
			x1 := x0 + step
			h0, h1 := hs[j], hs[j+1]

			b.quad(mgl32.Vec3{x0, h0, z0}, mgl32.Vec3{x1, h1, z0}, mgl32.Vec3{x1, h1, z1}, mgl32.Vec3{x0, h0, z1}, up)
			b.quad(mgl32.Vec3{x0, 0, z0}, mgl32.Vec3{x1, 0, z0}, mgl32.Vec3{x1, 0, z1}, mgl32.Vec3{x0, 0, z1}, up.Mul(-1))
			b.quad(mgl32.Vec3{x0, 0, z1}, mgl32.Vec3{x1, 0, z1}, mgl32.Vec3{x1, h1, z1}, mgl32.Vec3{x0, h0, z1}, front)
			b.quad(mgl32.Vec3{x0, 0, z0}, mgl32.Vec3{x1, 0, z0}, mgl32.Vec3{x1, h1, z0}, mgl32.Vec3{x0, h0, z0}, front.Mul(-1))

			if j == 0 {
				b.quad(mgl32.Vec3{x0, 0, z0}, mgl32.Vec3{x0, 0, z1}, mgl32.Vec3{x0, h0, z1}, mgl32.Vec3{x0, h0, z0}, right.Mul(-1))
			}
			if j+2 == len(hs) {
				b.quad(mgl32.Vec3{x1, 0, z0}, mgl32.Vec3{x1, 0, z1}, mgl32.Vec3{x1, h1, z1}, mgl32.Vec3{x1, h1, z0}, right)
			}
		}
	}
	return b.mesh, nil
}
