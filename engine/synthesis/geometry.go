package synthesis

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// prepared is the CPU-side result of validating and cleaning a descriptor, ready for upload.
type prepared struct {
	vertices []model.GPUVertex
	indices  []uint32
	sections []model.MeshSection
	bounds   common.Bounds
	dropped  int
	hasUVs   bool
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidGeometry, fmt.Sprintf(format, args...))
}

// validate checks stream lengths, index bounds and section ranges. It never inspects triangle areas.
func validate(desc *model.MeshDescriptor) error {
	if desc == nil {
		return invalid("nil descriptor")
	}
	n := len(desc.Positions)
	if n == 0 {
		return invalid("empty vertex stream")
	}
	if len(desc.Indices) == 0 {
		return invalid("empty index stream")
	}
	if len(desc.Indices)%3 != 0 {
		return invalid("index count %d is not a multiple of 3", len(desc.Indices))
	}
	if len(desc.Normals) != 0 && len(desc.Normals) != n {
		return invalid("normal stream has %d entries for %d vertices", len(desc.Normals), n)
	}
	if len(desc.UVs) != 0 && len(desc.UVs) != n {
		return invalid("uv stream has %d entries for %d vertices", len(desc.UVs), n)
	}
	for i, p := range desc.Positions {
		for _, c := range p {
			if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
				return invalid("vertex %d has a non-finite position", i)
			}
		}
	}
	for i, idx := range desc.Indices {
		if int(idx) >= n {
			return invalid("index %d references vertex %d of %d", i, idx, n)
		}
	}
	for i, s := range desc.Sections {
		end := uint64(s.FirstIndex) + uint64(s.IndexCount)
		if end > uint64(len(desc.Indices)) {
			return invalid("section %d spans [%d, %d) past %d indices", i, s.FirstIndex, end, len(desc.Indices))
		}
		if s.FirstIndex%3 != 0 || s.IndexCount%3 != 0 {
			return invalid("section %d is not triangle aligned", i)
		}
		if s.MaterialSlot < 0 {
			return invalid("section %d has negative material slot", i)
		}
	}
	return nil
}

// prepare validates desc, drops degenerate triangles, re-bases sections and fills in missing normals.
// Indices outside every section are not drawn and are dropped with the rest.
func prepare(desc *model.MeshDescriptor, epsilon float32) (*prepared, error) {
	if err := validate(desc); err != nil {
		return nil, err
	}

	sections := desc.Sections
	if len(sections) == 0 {
		sections = []model.MeshSection{{FirstIndex: 0, IndexCount: uint32(len(desc.Indices))}}
	}

	out := &prepared{hasUVs: len(desc.UVs) != 0}
	kept := 0
	for _, s := range sections {
		first := uint32(len(out.indices))
		for i := s.FirstIndex; i < s.FirstIndex+s.IndexCount; i += 3 {
			i0, i1, i2 := desc.Indices[i], desc.Indices[i+1], desc.Indices[i+2]
			if i0 == i1 || i1 == i2 || i0 == i2 {
				out.dropped++
				continue
			}
			area := common.TriangleArea(desc.Positions[i0], desc.Positions[i1], desc.Positions[i2])
			if area <= epsilon {
				out.dropped++
				continue
			}
			out.indices = append(out.indices, i0, i1, i2)
			kept++
		}
		if count := uint32(len(out.indices)) - first; count > 0 {
			out.sections = append(out.sections, model.MeshSection{FirstIndex: first, IndexCount: count, MaterialSlot: s.MaterialSlot})
		}
	}
	if kept == 0 {
		return nil, invalid("all %d triangles are degenerate", out.dropped)
	}

	out.vertices = make([]model.GPUVertex, len(desc.Positions))
	out.bounds = common.EmptyBounds()
	for i, p := range desc.Positions {
		out.vertices[i].Position = p
		out.bounds = out.bounds.Extend(p)
		if out.hasUVs {
			out.vertices[i].UV = desc.UVs[i]
		}
	}

	if len(desc.Normals) != 0 {
		for i, nrm := range desc.Normals {
			out.vertices[i].Normal = normalizeOrUp(nrm)
		}
	} else {
		generateNormals(out.vertices, out.indices)
	}

	return out, nil
}

// generateNormals accumulates area-weighted face normals onto each corner vertex, then normalizes.
// Vertices not touched by any triangle point up.
func generateNormals(vertices []model.GPUVertex, indices []uint32) {
	accum := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0 := mgl32.Vec3(vertices[i0].Position)
		face := mgl32.Vec3(vertices[i1].Position).Sub(p0).Cross(mgl32.Vec3(vertices[i2].Position).Sub(p0))
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}
	for i := range vertices {
		vertices[i].Normal = normalizeOrUp(accum[i])
	}
}

func normalizeOrUp(v [3]float32) [3]float32 {
	vec := mgl32.Vec3(v)
	if vec.Len() < 1e-6 {
		return [3]float32{0, 1, 0}
	}
	return vec.Normalize()
}
