package synthesis

import (
	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
)

// SynthesizedMesh is one generation of a node's device-resident geometry.
// It is immutable: a new generation replaces the whole object. Slices returned by
// its accessors are shared and must not be modified.
type SynthesizedMesh struct {
	ref          model.MeshRef
	name         string
	vertices     []model.GPUVertex
	indices      []uint32
	sections     []model.MeshSection
	bounds       common.Bounds
	dropped      int
	hasUVs       bool
	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer
}

// Ref returns the (node, generation) pair naming this mesh.
func (m *SynthesizedMesh) Ref() model.MeshRef { return m.ref }

// Node returns the owning node id.
func (m *SynthesizedMesh) Node() model.NodeID { return m.ref.Node }

// Generation returns the generation this mesh was assigned at swap time.
func (m *SynthesizedMesh) Generation() model.Generation { return m.ref.Generation }

// Name returns the descriptor name, if any.
func (m *SynthesizedMesh) Name() string { return m.name }

// Vertices returns the packed vertex stream as uploaded.
func (m *SynthesizedMesh) Vertices() []model.GPUVertex { return m.vertices }

// Indices returns the cleaned index stream as uploaded.
func (m *SynthesizedMesh) Indices() []uint32 { return m.indices }

// Sections returns the per-material index ranges after degenerate triangles were removed.
func (m *SynthesizedMesh) Sections() []model.MeshSection { return m.sections }

// Bounds returns the object-space bounding box.
func (m *SynthesizedMesh) Bounds() common.Bounds { return m.bounds }

// DroppedTriangles returns how many degenerate triangles were discarded.
func (m *SynthesizedMesh) DroppedTriangles() int { return m.dropped }

// HasUVs reports whether the descriptor supplied a lightmap UV stream.
func (m *SynthesizedMesh) HasUVs() bool { return m.hasUVs }

// TriangleCount returns the number of triangles drawn.
func (m *SynthesizedMesh) TriangleCount() int { return len(m.indices) / 3 }

// VertexBuffer returns the device vertex buffer.
func (m *SynthesizedMesh) VertexBuffer() gpu.Buffer { return m.vertexBuffer }

// IndexBuffer returns the device index buffer.
func (m *SynthesizedMesh) IndexBuffer() gpu.Buffer { return m.indexBuffer }

func (m *SynthesizedMesh) release() {
	m.vertexBuffer.Release()
	m.indexBuffer.Release()
}
