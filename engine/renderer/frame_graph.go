package renderer

import (
	"context"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
)

// PassPath selects the shading path for a node's pass.
type PassPath int

const (
	// PassUnlit draws with default shading and no lightmap.
	PassUnlit PassPath = iota
	// PassLit draws with a lightmap baked for exactly the drawn mesh generation.
	PassLit
)

func (p PassPath) String() string {
	if p == PassLit {
		return "lit"
	}
	return "unlit"
}

// DrawCall is one indexed draw of a mesh section.
type DrawCall struct {
	FirstIndex uint32
	IndexCount uint32
	Material   model.MaterialDescriptor
}

// Pass is the work contributed for one node in one frame. The mesh and lightmap stay
// alive until the frame graph retires the frame.
type Pass struct {
	Node      model.NodeID
	Path      PassPath
	Mesh      *synthesis.SynthesizedMesh
	Lightmap  *bake.Lightmap
	Transform mgl32.Mat4
	Draws     []DrawCall
}

// SkippedPass records a node whose pass was dropped from a frame.
type SkippedPass struct {
	Node   model.NodeID
	Reason error
}

// FrameReport summarises what a provider contributed to one frame.
type FrameReport struct {
	Frame   uint64
	Lit     int
	Unlit   int
	Culled  int
	Skipped []SkippedPass
}

// Passes returns the number of passes added to the frame.
func (r FrameReport) Passes() int {
	return r.Lit + r.Unlit
}

// FrameGraph is the host renderer's per-frame structure that providers contribute passes to.
type FrameGraph interface {
	// Index retrieves the frame number.
	//
	// Returns:
	//   - uint64: the frame index
	Index() uint64

	// View retrieves the frustum used for culling, or nil to draw everything.
	//
	// Returns:
	//   - *common.Frustum: the view frustum
	View() *common.Frustum

	// AddPass schedules a pass. An error means the pass could not be built, e.g. a pipeline
	// failed to compile, and the provider reports the node as skipped.
	//
	// Parameters:
	//   - p: the pass to add
	//
	// Returns:
	//   - error: error if the pass was rejected
	AddPass(p Pass) error

	// SkipPass records that a node contributes nothing to this frame.
	//
	// Parameters:
	//   - node: the skipped node
	//   - reason: why it was skipped
	SkipPass(node model.NodeID, reason error)

	// OnRetire registers fn to run once the GPU no longer uses this frame's resources.
	//
	// Parameters:
	//   - fn: the retire callback
	OnRetire(fn func())
}

// PassProvider contributes passes to a frame graph. The host invokes Emit once per frame build.
type PassProvider interface {
	// Emit adds this provider's passes to fg without blocking.
	//
	// Parameters:
	//   - fg: the frame being built
	//
	// Returns:
	//   - FrameReport: what was contributed
	Emit(fg FrameGraph) FrameReport
}

// FrameSource is the host side of the render loop: it hands out frame graphs and accepts them back for submission.
type FrameSource interface {
	// NextFrame begins building a frame. It may wait for a free frame slot.
	//
	// Parameters:
	//   - ctx: cancels the wait
	//
	// Returns:
	//   - FrameGraph: the frame to build
	//   - error: error if ctx is done or the source is closed
	NextFrame(ctx context.Context) (FrameGraph, error)

	// Submit hands a built frame to the GPU.
	//
	// Parameters:
	//   - fg: the frame returned by NextFrame
	//
	// Returns:
	//   - error: error if the frame was not issued by this source
	Submit(fg FrameGraph) error
}
