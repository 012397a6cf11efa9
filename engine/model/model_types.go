package model

import (
	"fmt"
)

// NodeID is the stable identity of an imported scene node.
type NodeID string

// Generation versions successive synthesized states of one node's mesh. Zero means "never synthesized".
type Generation uint64

// MeshRef names one synthesized state of a node. Holders of a MeshRef can detect staleness
// by comparing its Generation against the node's current one.
type MeshRef struct {
	Node       NodeID
	Generation Generation
}

func (r MeshRef) String() string {
	return fmt.Sprintf("%s@%d", r.Node, r.Generation)
}

// MeshSection is a contiguous run of triangles drawn with one material slot.
type MeshSection struct {
	// FirstIndex is the offset of the section's first index in MeshDescriptor.Indices.
	FirstIndex uint32

	// IndexCount is the number of indices in the section. Must be a multiple of three.
	IndexCount uint32

	// MaterialSlot indexes the owning node's material list.
	MaterialSlot int
}

// MeshDescriptor is raw geometry as produced by an import adapter.
// It is never mutated after creation, only replaced by a newer descriptor.
type MeshDescriptor struct {
	// Name is an optional label used in logs and GPU resource labels.
	Name string

	// Positions is the vertex position stream in object space.
	Positions [][3]float32

	// Normals is an optional per-vertex normal stream. When empty, normals are generated.
	Normals [][3]float32

	// UVs is an optional per-vertex lightmap coordinate stream. Baking requires it.
	UVs [][2]float32

	// Indices lists triangle corners, three per triangle.
	Indices []uint32

	// Sections splits Indices by material. When empty, a single section with slot 0 covers all indices.
	Sections []MeshSection
}

// VertexCount returns the number of vertices in the position stream.
func (d *MeshDescriptor) VertexCount() int {
	return len(d.Positions)
}

// TriangleCount returns the number of whole triangles described by the index stream.
func (d *MeshDescriptor) TriangleCount() int {
	return len(d.Indices) / 3
}

// MaterialDescriptor is the imported surface description for one material slot.
type MaterialDescriptor struct {
	// Name is the material identifier from the source asset.
	Name string

	// BaseColor is linear RGBA albedo.
	BaseColor [4]float32

	// Metallic is the metalness factor in [0, 1].
	Metallic float32

	// Roughness is the perceptual roughness in [0, 1].
	Roughness float32
}

// DefaultMaterial returns the material used for slots a node does not define.
//
// Returns:
//   - MaterialDescriptor: an opaque mid-grey dielectric
func DefaultMaterial() MaterialDescriptor {
	return MaterialDescriptor{
		Name:      "default",
		BaseColor: [4]float32{0.8, 0.8, 0.8, 1},
		Roughness: 0.5,
	}
}
