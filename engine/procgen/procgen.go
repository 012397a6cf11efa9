// Package procgen generates chart geometry from data values as mesh descriptors ready for synthesis.
package procgen

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// VerticesPerBox is four corners for each of the six faces so every face has its own normal and UVs.
	VerticesPerBox = 24
	// IndicesPerBox is two triangles for each of the six faces.
	IndicesPerBox = 36

	facesPerBox = 6
)

// DefaultMinHeight keeps zero and negative values from producing flat, degenerate boxes.
const DefaultMinHeight float32 = 0.01

// DefaultAtlasPadding is the fraction of each atlas cell left empty on every side.
const DefaultAtlasPadding float32 = 0.05

// BoxGridParams describes a bar chart laid out as a grid of boxes on the XZ plane, centered on the origin.
// Zero-valued fields take their defaults.
type BoxGridParams struct {
	// Rows and Cols size the grid. Boxes fill it row-major.
	Rows, Cols int

	// Heights is one value per box. Empty means Rows*Cols boxes of height 1.
	// When non-empty, exactly len(Heights) boxes are generated.
	Heights []float32

	// Width and Depth are the box footprint along X and Z. Default 1.
	Width, Depth float32

	// Spacing is the gap between neighbouring boxes.
	Spacing float32

	// MaxHeight, when positive, rescales heights so the tallest box reaches it.
	MaxHeight float32

	// MinHeight is the floor applied after scaling. Default DefaultMinHeight.
	MinHeight float32

	// Slots is the number of material slots boxes cycle through. Default 1.
	Slots int

	// AtlasPadding is the per-side padding of each face's lightmap cell. Default DefaultAtlasPadding.
	AtlasPadding float32
}

// face is one box side: its outward normal and two in-plane axes with U x V = N.
type face struct {
	n, u, v mgl32.Vec3
}

var boxFaces = [facesPerBox]face{
	{n: mgl32.Vec3{1, 0, 0}, u: mgl32.Vec3{0, 0, -1}, v: mgl32.Vec3{0, 1, 0}},
	{n: mgl32.Vec3{-1, 0, 0}, u: mgl32.Vec3{0, 0, 1}, v: mgl32.Vec3{0, 1, 0}},
	{n: mgl32.Vec3{0, 1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, -1}},
	{n: mgl32.Vec3{0, -1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, 1}},
	{n: mgl32.Vec3{0, 0, 1}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 1, 0}},
	{n: mgl32.Vec3{0, 0, -1}, u: mgl32.Vec3{-1, 0, 0}, v: mgl32.Vec3{0, 1, 0}},
}

// corners walks each face counter-clockwise as seen from outside.
var corners = [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// GridFor returns a near-square grid able to hold n boxes.
//
// Parameters:
//   - n: the number of boxes
//
// Returns:
//   - rows: the number of rows
//   - cols: the number of columns
func GridFor(n int) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + cols - 1) / cols
	return rows, cols
}

// BoxGrid generates the grid's geometry: 24 vertices and 36 indices per box, per-face normals and a
// lightmap UV atlas in which no two faces overlap. Boxes sharing a material slot are grouped into
// contiguous sections when possible.
//
// Parameters:
//   - p: the grid parameters
//
// Returns:
//   - *model.MeshDescriptor: the generated mesh
//   - error: an error wrapping common.ErrInvalidGeometry if the parameters describe no boxes
func BoxGrid(p BoxGridParams) (*model.MeshDescriptor, error) {
	if p.Rows <= 0 || p.Cols <= 0 {
		return nil, fmt.Errorf("procgen: grid %dx%d: %w", p.Rows, p.Cols, common.ErrInvalidGeometry)
	}
	count := p.Rows * p.Cols
	if len(p.Heights) > count {
		return nil, fmt.Errorf("procgen: %d heights do not fit a %dx%d grid: %w", len(p.Heights), p.Rows, p.Cols, common.ErrInvalidGeometry)
	}
	if len(p.Heights) > 0 {
		count = len(p.Heights)
	}

	width := common.Coalesce(p.Width, 1)
	depth := common.Coalesce(p.Depth, 1)
	minHeight := common.Coalesce(p.MinHeight, DefaultMinHeight)
	pad := common.Coalesce(p.AtlasPadding, DefaultAtlasPadding)
	slots := max(p.Slots, 1)
	heights := scaleHeights(p.Heights, count, p.MaxHeight, minHeight)

	pitchX := width + p.Spacing
	pitchZ := depth + p.Spacing
	originX := -(float32(p.Cols)*pitchX - p.Spacing) / 2
	originZ := -(float32(p.Rows)*pitchZ - p.Spacing) / 2

	atlasSide := int(math.Ceil(math.Sqrt(float64(count * facesPerBox))))
	cell := 1 / float32(atlasSide)

	mesh := &model.MeshDescriptor{
		Name:      fmt.Sprintf("boxgrid-%dx%d", p.Rows, p.Cols),
		Positions: make([][3]float32, 0, count*VerticesPerBox),
		Normals:   make([][3]float32, 0, count*VerticesPerBox),
		UVs:       make([][2]float32, 0, count*VerticesPerBox),
		Indices:   make([]uint32, 0, count*IndicesPerBox),
	}

	for box := 0; box < count; box++ {
		row, col := box/p.Cols, box%p.Cols
		h := heights[box]
		half := mgl32.Vec3{width / 2, h / 2, depth / 2}
		center := mgl32.Vec3{
			originX + float32(col)*pitchX + half.X(),
			half.Y(),
			originZ + float32(row)*pitchZ + half.Z(),
		}

		for f, fc := range boxFaces {
			base := uint32(len(mesh.Positions))
			slot := box*facesPerBox + f
			u0 := float32(slot%atlasSide)*cell + pad*cell
			v0 := float32(slot/atlasSide)*cell + pad*cell
			span := cell * (1 - 2*pad)

			for _, c := range corners {
				offset := fc.u.Mul(c[0]).Add(fc.v.Mul(c[1]))
				pos := center.Add(mulElem(offset, half))
				mesh.Positions = append(mesh.Positions, [3]float32(pos))
				mesh.Normals = append(mesh.Normals, [3]float32(fc.n))
				mesh.UVs = append(mesh.UVs, [2]float32{
					u0 + (c[0]+1)/2*span,
					v0 + (c[1]+1)/2*span,
				})
			}
			mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
		}

		material := box % slots
		last := len(mesh.Sections) - 1
		if last >= 0 && mesh.Sections[last].MaterialSlot == material {
			mesh.Sections[last].IndexCount += IndicesPerBox
			continue
		}
		mesh.Sections = append(mesh.Sections, model.MeshSection{
			FirstIndex:   uint32(box * IndicesPerBox),
			IndexCount:   IndicesPerBox,
			MaterialSlot: material,
		})
	}
	return mesh, nil
}

// scaleHeights resolves the final height per box: default 1 when no values are given, optional
// normalization to maxHeight, then the minHeight floor.
func scaleHeights(values []float32, count int, maxHeight, minHeight float32) []float32 {
	out := make([]float32, count)
	if len(values) == 0 {
		for i := range out {
			out[i] = max(1, minHeight)
		}
		return out
	}

	scale := float32(1)
	if maxHeight > 0 {
		var peak float32
		for _, v := range values {
			peak = max(peak, v)
		}
		if peak > 0 {
			scale = maxHeight / peak
		}
	}
	for i, v := range values {
		out[i] = max(v*scale, minHeight)
	}
	return out
}

func mulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
