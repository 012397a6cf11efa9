package scene

// NodeState is a node's position in the import, synthesis, bake and render lifecycle.
type NodeState int

const (
	// StateUnknown is reported for nodes the controller has never seen or has removed.
	StateUnknown NodeState = iota
	// StateImported means the node exists but has no synthesized mesh.
	StateImported
	// StateSynthesizing means a synthesis for the node is in progress.
	StateSynthesizing
	// StateSynthesized means the node draws unlit from its current mesh generation.
	StateSynthesized
	// StateBaking means a bake for the current mesh generation is in flight.
	StateBaking
	// StateRendered means the node draws lit with a lightmap matching its mesh generation.
	StateRendered
	// StateFailed means the last synthesis could not allocate device resources. The node's pass
	// is skipped until a later synthesis succeeds.
	StateFailed
)

func (s NodeState) String() string {
	switch s {
	case StateImported:
		return "Imported"
	case StateSynthesizing:
		return "Synthesizing"
	case StateSynthesized:
		return "Synthesized"
	case StateBaking:
		return "Baking"
	case StateRendered:
		return "Rendered"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
