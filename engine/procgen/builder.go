package procgen

import (
	"math"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// faceBuilder appends flat-shaded faces to a mesh, giving each face its own lightmap atlas cell.
// The face count must be known up front to size the atlas.
type faceBuilder struct {
	mesh  *model.MeshDescriptor
	side  int
	cell  float32
	pad   float32
	faces int
	used  int
}

func newFaceBuilder(name string, faces int, pad float32) *faceBuilder {
	side := max(int(math.Ceil(math.Sqrt(float64(faces)))), 1)
	return &faceBuilder{
		mesh: &model.MeshDescriptor{
			Name:      name,
			Positions: make([][3]float32, 0, faces*4),
			Normals:   make([][3]float32, 0, faces*4),
			UVs:       make([][2]float32, 0, faces*4),
			Indices:   make([]uint32, 0, faces*6),
		},
		side:  side,
		cell:  1 / float32(side),
		pad:   pad,
		faces: faces,
	}
}

// section starts a new material section at the current end of the index stream.
func (b *faceBuilder) section(slot int) {
	b.mesh.Sections = append(b.mesh.Sections, model.MeshSection{
		FirstIndex:   uint32(len(b.mesh.Indices)),
		MaterialSlot: slot,
	})
}

// quad appends the four-cornered face p0..p3, given in cyclic order. The corners are reordered when needed so the face winds
// counter-clockwise around outward.
func (b *faceBuilder) quad(p0, p1, p2, p3, outward mgl32.Vec3) {
	n := p2.Sub(p0).Cross(p3.Sub(p1))
	if n.Dot(outward) < 0 {
		p1, p3 = p3, p1
		n = n.Mul(-1)
	}
	b.emit([]mgl32.Vec3{p0, p1, p2, p3}, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, n, outward)
	base := uint32(len(b.mesh.Positions) - 4)
	b.indices(base, base+1, base+2, base, base+2, base+3)
}

// tri appends the triangle p0, p1, p2 wound counter-clockwise around outward.
func (b *faceBuilder) tri(p0, p1, p2, outward mgl32.Vec3) {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Dot(outward) < 0 {
		p1, p2 = p2, p1
		n = n.Mul(-1)
	}
	b.emit([]mgl32.Vec3{p0, p1, p2}, [][2]float32{{0, 0}, {1, 0}, {0, 1}}, n, outward)
	base := uint32(len(b.mesh.Positions) - 3)
	b.indices(base, base+1, base+2)
}

func (b *faceBuilder) emit(points []mgl32.Vec3, corners [][2]float32, n, outward mgl32.Vec3) {
	if b.used >= b.side*b.side {
		panic("procgen: lightmap atlas overflow")
	}
	if n.Len() == 0 {
		n = outward
	}
	n = n.Normalize()

	u0 := float32(b.used%b.side)*b.cell + b.pad*b.cell
	v0 := float32(b.used/b.side)*b.cell + b.pad*b.cell
	span := b.cell * (1 - 2*b.pad)
	b.used++

	for i, p := range points {
		b.mesh.Positions = append(b.mesh.Positions, [3]float32(p))
		b.mesh.Normals = append(b.mesh.Normals, [3]float32(n))
		b.mesh.UVs = append(b.mesh.UVs, [2]float32{u0 + corners[i][0]*span, v0 + corners[i][1]*span})
	}
}

func (b *faceBuilder) indices(idx ...uint32) {
	b.mesh.Indices = append(b.mesh.Indices, idx...)
	if last := len(b.mesh.Sections) - 1; last >= 0 {
		b.mesh.Sections[last].IndexCount += uint32(len(idx))
	}
}
