// Package renderer is the render extension layer: it keeps one binding per scene node and
// contributes lit or unlit passes for them to the host frame graph every frame.
package renderer

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Binding maps a node to the mesh generation it draws and, optionally, a lightmap.
// Bindings are immutable values; every change publishes a new one.
type Binding struct {
	Ref       model.MeshRef
	Transform mgl32.Mat4
	Materials []model.MaterialDescriptor
	// Lightmap is nil for the "unbaked" state.
	Lightmap *bake.Lightmap
	// Suspended, when set, makes the node's pass skipped with this reason until the next Bind.
	Suspended error
}

// Lit reports whether the binding carries a lightmap valid for its mesh generation.
func (b Binding) Lit() bool {
	return b.Lightmap != nil && b.Lightmap.Generation() == b.Ref.Generation
}

// bindingSet is a published, read-only set of bindings.
type bindingSet struct {
	bindings map[model.NodeID]*Binding
	order    []model.NodeID
}

// extension is the implementation of the Extension interface.
type extension struct {
	mu        sync.Mutex
	emitMu    sync.Mutex
	synth     synthesis.Engine
	snapshot  atomic.Pointer[bindingSet]
	graveyard []*bake.Lightmap
	culling   bool
	frames    atomic.Uint64
}

// Extension is the Render Extension Layer. Binding updates may come from any goroutine;
// RegisterPass and Emit are meant for the render goroutine and only read the latest published snapshot.
type Extension interface {
	PassProvider

	// RegisterPass contributes this frame's passes to the host frame graph. Same as Emit.
	//
	// Parameters:
	//   - fg: the frame being built
	//
	// Returns:
	//   - FrameReport: what was contributed
	RegisterPass(fg FrameGraph) FrameReport

	// Bind points a node at a mesh generation. Binding a newer generation drops the lightmap;
	// rebinding the same generation only updates transform and materials. Older generations are rejected.
	//
	// Parameters:
	//   - ref: the mesh generation to draw
	//   - transform: the node's world transform
	//   - materials: the node's material slots
	//
	// Returns:
	//   - error: common.ErrSuperseded if ref is older than the bound generation
	Bind(ref model.MeshRef, transform mgl32.Mat4, materials []model.MaterialDescriptor) error

	// AttachLightmap attaches a lightmap to the node it was baked for. The extension takes its own reference.
	//
	// Parameters:
	//   - lm: the lightmap
	//
	// Returns:
	//   - error: common.ErrUnknownNode if the node is not bound, common.ErrSuperseded if generations differ
	AttachLightmap(lm *bake.Lightmap) error

	// Suspend makes the node's pass skipped with reason until the next Bind.
	//
	// Parameters:
	//   - node: the node
	//   - reason: the error reported for the skipped pass
	Suspend(node model.NodeID, reason error)

	// Unbind removes a node's binding. Safe to call repeatedly.
	//
	// Parameters:
	//   - node: the node
	//
	// Returns:
	//   - bool: true if a binding was removed
	Unbind(node model.NodeID) bool

	// Binding retrieves a node's current binding.
	//
	// Parameters:
	//   - node: the node
	//
	// Returns:
	//   - Binding: a copy of the binding
	//   - bool: false if the node is not bound
	Binding(node model.NodeID) (Binding, bool)

	// Len retrieves the number of bound nodes.
	//
	// Returns:
	//   - int: the binding count
	Len() int

	// Close drops every binding and the lightmap references they hold.
	Close()
}

var _ Extension = &extension{}

// NewExtension creates a new Extension drawing meshes owned by synth.
//
// Parameters:
//   - synth: the synthesis engine meshes are pinned from
//   - options: a variadic list of ExtensionBuilderOption functions to configure the Extension
//
// Returns:
//   - Extension: a new render extension
func NewExtension(synth synthesis.Engine, options ...ExtensionBuilderOption) Extension {
	if synth == nil {
		panic("renderer: nil synthesis engine")
	}
	e := &extension{
		synth:   synth,
		culling: true,
	}
	for _, opt := range options {
		opt(e)
	}
	e.snapshot.Store(&bindingSet{bindings: map[model.NodeID]*Binding{}})
	return e
}

func (e *extension) Bind(ref model.MeshRef, transform mgl32.Mat4, materials []model.MaterialDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snapshot.Load()
	next := Binding{
		Ref:       ref,
		Transform: transform,
		Materials: append([]model.MaterialDescriptor(nil), materials...),
	}
	if old, ok := cur.bindings[ref.Node]; ok {
		switch {
		case ref.Generation < old.Ref.Generation:
			return fmt.Errorf("renderer: bind %s behind bound generation %d: %w", ref, old.Ref.Generation, common.ErrSuperseded)
		case ref.Generation == old.Ref.Generation:
			next.Lightmap = old.Lightmap
		default:
			if old.Lightmap != nil {
				e.graveyard = append(e.graveyard, old.Lightmap)
			}
		}
	}
	e.publishLocked(cur, ref.Node, &next)
	logger.L().Debug("renderer: bound", zap.Stringer("ref", ref), zap.Bool("lit", next.Lit()))
	return nil
}

func (e *extension) AttachLightmap(lm *bake.Lightmap) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref := lm.Ref()
	cur := e.snapshot.Load()
	old, ok := cur.bindings[ref.Node]
	if !ok {
		return fmt.Errorf("renderer: attach %s: %w", ref, common.ErrUnknownNode)
	}
	if old.Ref.Generation != ref.Generation {
		return fmt.Errorf("renderer: attach %s to bound generation %d: %w", ref, old.Ref.Generation, common.ErrSuperseded)
	}
	if old.Lightmap == lm {
		return nil
	}
	next := *old
	next.Lightmap = lm.Retain()
	if old.Lightmap != nil {
		e.graveyard = append(e.graveyard, old.Lightmap)
	}
	e.publishLocked(cur, ref.Node, &next)
	logger.L().Debug("renderer: lightmap attached", zap.Stringer("ref", ref))
	return nil
}

func (e *extension) Suspend(node model.NodeID, reason error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snapshot.Load()
	old, ok := cur.bindings[node]
	if !ok {
		return
	}
	next := *old
	next.Suspended = reason
	e.publishLocked(cur, node, &next)
}

func (e *extension) Unbind(node model.NodeID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snapshot.Load()
	old, ok := cur.bindings[node]
	if !ok {
		return false
	}
	if old.Lightmap != nil {
		e.graveyard = append(e.graveyard, old.Lightmap)
	}
	e.publishLocked(cur, node, nil)
	return true
}

// publishLocked copies cur with node set to b (or removed when b is nil) and stores the copy.
func (e *extension) publishLocked(cur *bindingSet, node model.NodeID, b *Binding) {
	next := &bindingSet{bindings: make(map[model.NodeID]*Binding, len(cur.bindings)+1)}
	for id, existing := range cur.bindings {
		next.bindings[id] = existing
	}
	if b == nil {
		delete(next.bindings, node)
	} else {
		next.bindings[node] = b
	}
	next.order = make([]model.NodeID, 0, len(next.bindings))
	for id := range next.bindings {
		next.order = append(next.order, id)
	}
	slices.Sort(next.order)
	e.snapshot.Store(next)
}

func (e *extension) Binding(node model.NodeID) (Binding, bool) {
	b, ok := e.snapshot.Load().bindings[node]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

func (e *extension) Len() int {
	return len(e.snapshot.Load().bindings)
}

func (e *extension) RegisterPass(fg FrameGraph) FrameReport {
	return e.Emit(fg)
}

func (e *extension) Emit(fg FrameGraph) FrameReport {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	// Lightmaps unbound before this point cannot appear in the snapshot loaded below.
	e.flushGraveyard()
	snap := e.snapshot.Load()
	view := fg.View()
	report := FrameReport{Frame: fg.Index()}
	e.frames.Add(1)

	var meshes []model.MeshRef
	var lightmaps []*bake.Lightmap
	for _, node := range snap.order {
		b := snap.bindings[node]
		if b.Suspended != nil {
			e.skip(fg, &report, node, b.Suspended)
			continue
		}

		mesh, err := e.synth.Acquire(b.Ref)
		if err != nil {
			e.skip(fg, &report, node, err)
			continue
		}
		if e.culling && view != nil && !view.IntersectsBounds(mesh.Bounds().Transform(b.Transform)) {
			e.synth.Release(b.Ref)
			report.Culled++
			continue
		}
		meshes = append(meshes, b.Ref)

		pass := Pass{
			Node:      node,
			Path:      PassUnlit,
			Mesh:      mesh,
			Transform: b.Transform,
			Draws:     drawCalls(mesh, b.Materials),
		}
		if b.Lightmap != nil && b.Lightmap.Generation() == mesh.Generation() {
			pass.Path = PassLit
			pass.Lightmap = b.Lightmap.Retain()
			lightmaps = append(lightmaps, pass.Lightmap)
		}

		if err := fg.AddPass(pass); err != nil {
			e.skip(fg, &report, node, err)
			continue
		}
		if pass.Path == PassLit {
			report.Lit++
		} else {
			report.Unlit++
		}
	}

	fg.OnRetire(func() {
		for _, ref := range meshes {
			e.synth.Release(ref)
		}
		for _, lm := range lightmaps {
			lm.Release()
		}
	})
	return report
}

func (e *extension) skip(fg FrameGraph, report *FrameReport, node model.NodeID, reason error) {
	fg.SkipPass(node, reason)
	report.Skipped = append(report.Skipped, SkippedPass{Node: node, Reason: reason})
	logger.L().Debug("renderer: pass skipped", zap.String("node", string(node)), zap.Error(reason))
}

func (e *extension) flushGraveyard() {
	e.mu.Lock()
	dead := e.graveyard
	e.graveyard = nil
	e.mu.Unlock()

	for _, lm := range dead {
		lm.Release()
	}
}

func (e *extension) Close() {
	e.mu.Lock()
	cur := e.snapshot.Load()
	for _, b := range cur.bindings {
		if b.Lightmap != nil {
			e.graveyard = append(e.graveyard, b.Lightmap)
		}
	}
	e.snapshot.Store(&bindingSet{bindings: map[model.NodeID]*Binding{}})
	e.mu.Unlock()

	e.emitMu.Lock()
	e.flushGraveyard()
	e.emitMu.Unlock()
}

func drawCalls(mesh *synthesis.SynthesizedMesh, materials []model.MaterialDescriptor) []DrawCall {
	sections := mesh.Sections()
	draws := make([]DrawCall, len(sections))
	for i, s := range sections {
		mat := model.DefaultMaterial()
		if s.MaterialSlot >= 0 && s.MaterialSlot < len(materials) {
			mat = materials[s.MaterialSlot]
		}
		draws[i] = DrawCall{FirstIndex: s.FirstIndex, IndexCount: s.IndexCount, Material: mat}
	}
	return draws
}
