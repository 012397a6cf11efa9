package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// sceneNode is the implementation of the SceneNode interface.
type sceneNode struct {
	id        NodeID
	name      string
	transform mgl32.Mat4
	mesh      *MeshDescriptor
	materials []MaterialDescriptor
}

// SceneNode is an imported scene graph node: a stable identity, a world transform,
// a mesh descriptor and its material slots. It is read-only once built.
type SceneNode interface {
	// ID retrieves the stable node identity.
	//
	// Returns:
	//   - NodeID: the node id
	ID() NodeID

	// Name retrieves the display name of the node, defaulting to its id.
	//
	// Returns:
	//   - string: the node name
	Name() string

	// Transform retrieves the node's world transform.
	//
	// Returns:
	//   - mgl32.Mat4: the affine world transform
	Transform() mgl32.Mat4

	// Mesh retrieves the mesh descriptor referenced by the node.
	//
	// Returns:
	//   - *MeshDescriptor: the descriptor, or nil if the node carries no geometry
	Mesh() *MeshDescriptor

	// Materials retrieves the node's material slots.
	//
	// Returns:
	//   - []MaterialDescriptor: a copy of the material list
	Materials() []MaterialDescriptor

	// Material resolves a material slot, falling back to DefaultMaterial for unknown slots.
	//
	// Parameters:
	//   - slot: the material slot index
	//
	// Returns:
	//   - MaterialDescriptor: the material for the slot
	Material(slot int) MaterialDescriptor
}

var _ SceneNode = &sceneNode{}

// NewSceneNode creates a new SceneNode with the specified options applied.
// The transform defaults to identity.
//
// Parameters:
//   - id: the stable node identity
//   - options: a variadic list of SceneNodeBuilderOption functions to configure the node
//
// Returns:
//   - SceneNode: a new immutable SceneNode
func NewSceneNode(id NodeID, options ...SceneNodeBuilderOption) SceneNode {
	n := &sceneNode{
		id:        id,
		transform: mgl32.Ident4(),
	}
	for _, opt := range options {
		opt(n)
	}
	if n.name == "" {
		n.name = string(id)
	}
	return n
}

func (n *sceneNode) ID() NodeID {
	return n.id
}

func (n *sceneNode) Name() string {
	return n.name
}

func (n *sceneNode) Transform() mgl32.Mat4 {
	return n.transform
}

func (n *sceneNode) Mesh() *MeshDescriptor {
	return n.mesh
}

func (n *sceneNode) Materials() []MaterialDescriptor {
	out := make([]MaterialDescriptor, len(n.materials))
	copy(out, n.materials)
	return out
}

func (n *sceneNode) Material(slot int) MaterialDescriptor {
	if slot < 0 || slot >= len(n.materials) {
		return DefaultMaterial()
	}
	return n.materials[slot]
}
