package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// EventKind classifies a scene graph change delivered by an import adapter.
type EventKind int

const (
	// EventNodeAdded introduces a node with its mesh, transform and materials.
	EventNodeAdded EventKind = iota
	// EventNodeUpdated replaces the mesh of an existing node.
	EventNodeUpdated
	// EventNodeRemoved deletes a node.
	EventNodeRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventNodeAdded:
		return "NodeAdded"
	case EventNodeUpdated:
		return "NodeUpdated"
	case EventNodeRemoved:
		return "NodeRemoved"
	default:
		return "Unknown"
	}
}

// Event is a single scene graph change. Transform and Materials are only meaningful
// for EventNodeAdded; a NodeUpdated event may carry Materials to replace the node's slots.
type Event struct {
	Kind      EventKind
	Node      NodeID
	Name      string
	Mesh      *MeshDescriptor
	Transform mgl32.Mat4
	Materials []MaterialDescriptor
}

// NodeAdded builds an EventNodeAdded event.
//
// Parameters:
//   - id: the new node's identity
//   - mesh: the node's mesh descriptor
//   - transform: the node's world transform
//   - materials: the node's material slots, may be nil
//
// Returns:
//   - Event: the add event
func NodeAdded(id NodeID, mesh *MeshDescriptor, transform mgl32.Mat4, materials ...MaterialDescriptor) Event {
	return Event{Kind: EventNodeAdded, Node: id, Mesh: mesh, Transform: transform, Materials: materials}
}

// NodeUpdated builds an EventNodeUpdated event.
//
// Parameters:
//   - id: the node to update
//   - mesh: the replacement mesh descriptor
//
// Returns:
//   - Event: the update event
func NodeUpdated(id NodeID, mesh *MeshDescriptor) Event {
	return Event{Kind: EventNodeUpdated, Node: id, Mesh: mesh}
}

// NodeRemoved builds an EventNodeRemoved event.
//
// Parameters:
//   - id: the node to remove
//
// Returns:
//   - Event: the remove event
func NodeRemoved(id NodeID) Event {
	return Event{Kind: EventNodeRemoved, Node: id}
}
