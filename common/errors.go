package common

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the synthesis, bake, render and scene packages.
// Callers match these with errors.Is; producers wrap them with context.
var (
	// ErrInvalidGeometry reports a malformed mesh descriptor. The node keeps its prior state.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrBakeFailure reports a lighting computation that could not complete. The node degrades to unlit.
	ErrBakeFailure = errors.New("bake failure")

	// ErrResourceExhaustion reports a GPU memory or handle limit. The node's pass is skipped.
	ErrResourceExhaustion = errors.New("resource exhaustion")

	// ErrSuperseded marks work discarded because newer work replaced it. Not a failure.
	ErrSuperseded = errors.New("superseded")

	// ErrUnknownNode reports a lookup for a node or mesh generation that is not live.
	ErrUnknownNode = errors.New("unknown node")
)

// NodeError attaches the failing node and operation to an error from the taxonomy.
type NodeError struct {
	Node string
	Op   string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: node %q: %v", e.Op, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
