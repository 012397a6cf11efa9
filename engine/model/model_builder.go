package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SceneNodeBuilderOption is a functional option for configuring a SceneNode via NewSceneNode.
type SceneNodeBuilderOption func(*sceneNode)

// WithName is an option builder that sets the display name of the SceneNode.
//
// Parameters:
//   - name: the node name
//
// Returns:
//   - SceneNodeBuilderOption: a function that applies the name option to a scene node
func WithName(name string) SceneNodeBuilderOption {
	return func(n *sceneNode) {
		n.name = name
	}
}

// WithTransform is an option builder that sets the world transform of the SceneNode.
//
// Parameters:
//   - transform: the affine world transform
//
// Returns:
//   - SceneNodeBuilderOption: a function that applies the transform option to a scene node
func WithTransform(transform mgl32.Mat4) SceneNodeBuilderOption {
	return func(n *sceneNode) {
		n.transform = transform
	}
}

// WithMesh is an option builder that sets the mesh descriptor of the SceneNode.
//
// Parameters:
//   - mesh: the mesh descriptor
//
// Returns:
//   - SceneNodeBuilderOption: a function that applies the mesh option to a scene node
func WithMesh(mesh *MeshDescriptor) SceneNodeBuilderOption {
	return func(n *sceneNode) {
		n.mesh = mesh
	}
}

// WithMaterials is an option builder that sets the material slots of the SceneNode.
//
// Parameters:
//   - materials: the material slots, indexed by MeshSection.MaterialSlot
//
// Returns:
//   - SceneNodeBuilderOption: a function that applies the materials option to a scene node
func WithMaterials(materials []MaterialDescriptor) SceneNodeBuilderOption {
	return func(n *sceneNode) {
		n.materials = append([]MaterialDescriptor(nil), materials...)
	}
}
