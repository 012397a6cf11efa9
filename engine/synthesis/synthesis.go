// Package synthesis turns imported mesh descriptors into generation-tagged, device-resident meshes.
// Meshes live in an arena keyed by (node, generation) and are reference counted; a node's
// "current" pointer holds one reference, and frames or bake jobs pin others via Acquire.
package synthesis

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Stats is a snapshot of engine counters.
type Stats struct {
	Syntheses        uint64
	Rejected         uint64
	Exhausted        uint64
	DroppedTriangles uint64
	Released         uint64
	Evicted          uint64
	Live             int
	Pending          int
}

type entry struct {
	mesh   *SynthesizedMesh
	refs   int
	queued bool
}

// engine is the implementation of the Engine interface.
type engine struct {
	mu         sync.RWMutex
	device     gpu.Device
	maxPending int
	epsilon    float32
	arena      map[model.MeshRef]*entry
	current    map[model.NodeID]model.Generation
	last       map[model.NodeID]model.Generation
	pending    []model.MeshRef
	stats      Stats
}

// Engine is the Mesh Synthesis Engine. All methods are safe for concurrent use.
type Engine interface {
	// Synthesize validates desc, uploads it and atomically makes it the node's current mesh
	// with generation = previous + 1. On error the node's prior mesh is untouched.
	// Errors wrap common.ErrInvalidGeometry or common.ErrResourceExhaustion.
	//
	// Parameters:
	//   - id: the node being synthesized
	//   - desc: the mesh descriptor
	//
	// Returns:
	//   - *SynthesizedMesh: the new current mesh
	//   - error: error if the descriptor is invalid or the device is out of resources
	Synthesize(id model.NodeID, desc *model.MeshDescriptor) (*SynthesizedMesh, error)

	// Current retrieves the node's current mesh without pinning it.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - *SynthesizedMesh: the current mesh
	//   - bool: false if the node has no current mesh
	Current(id model.NodeID) (*SynthesizedMesh, bool)

	// CurrentGeneration retrieves the node's current generation, or zero if it has none.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - model.Generation: the current generation
	CurrentGeneration(id model.NodeID) model.Generation

	// Acquire pins a specific generation so it outlives supersession until Release.
	// Fails with common.ErrUnknownNode if that generation has already been freed.
	//
	// Parameters:
	//   - ref: the generation to pin
	//
	// Returns:
	//   - *SynthesizedMesh: the pinned mesh
	//   - error: error if the generation is not live
	Acquire(ref model.MeshRef) (*SynthesizedMesh, error)

	// Release drops a pin taken with Acquire.
	//
	// Parameters:
	//   - ref: the generation to unpin
	Release(ref model.MeshRef)

	// IfCurrent runs fn only if ref is still the node's current generation, holding the swap
	// lock for reading so no synthesis can complete while fn runs. fn must not call back into the Engine.
	//
	// Parameters:
	//   - ref: the generation expected to be current
	//   - fn: the function to run
	//
	// Returns:
	//   - bool: true if fn ran
	IfCurrent(ref model.MeshRef, fn func(*SynthesizedMesh)) bool

	// Remove drops the node's current pointer. Safe to call repeatedly.
	// The generation counter is kept so a re-added node never reuses a generation.
	//
	// Parameters:
	//   - id: the node to remove
	//
	// Returns:
	//   - bool: true if a current mesh was dropped
	Remove(id model.NodeID) bool

	// Collect frees every queued generation that no longer has references.
	// The render loop calls it at frame boundaries.
	//
	// Returns:
	//   - int: the number of generations freed
	Collect() int

	// Live retrieves the number of generations of the node still held in the arena.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - int: the live generation count
	Live(id model.NodeID) int

	// References retrieves the total reference count across the node's live generations.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - int: the reference count
	References(id model.NodeID) int

	// Stats returns a snapshot of the engine counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Close frees every generation regardless of references.
	Close()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine allocating on device.
//
// Parameters:
//   - device: the device that owns mesh buffers
//   - options: a variadic list of EngineBuilderOption functions to configure the Engine
//
// Returns:
//   - Engine: a new synthesis engine
func NewEngine(device gpu.Device, options ...EngineBuilderOption) Engine {
	if device == nil {
		panic("synthesis: nil device")
	}
	e := &engine{
		device:     device,
		maxPending: DefaultMaxPendingReleases,
		epsilon:    DefaultDegenerateEpsilon,
		arena:      make(map[model.MeshRef]*entry),
		current:    make(map[model.NodeID]model.Generation),
		last:       make(map[model.NodeID]model.Generation),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Synthesize(id model.NodeID, desc *model.MeshDescriptor) (*SynthesizedMesh, error) {
	p, err := prepare(desc, e.epsilon)
	if err != nil {
		e.mu.Lock()
		e.stats.Rejected++
		e.mu.Unlock()
		return nil, &common.NodeError{Node: string(id), Op: "synthesize", Err: err}
	}

	label := string(id)
	if desc.Name != "" {
		label = label + "/" + desc.Name
	}
	vb, ib, err := e.upload(label, p)
	if errors.Is(err, common.ErrResourceExhaustion) {
		freed := e.Collect()
		logger.L().Debug("synthesis: retrying after flushing releases",
			zap.String("node", string(id)), zap.Int("freed", freed))
		vb, ib, err = e.upload(label, p)
	}
	if err != nil {
		e.mu.Lock()
		e.stats.Exhausted++
		e.mu.Unlock()
		return nil, &common.NodeError{Node: string(id), Op: "synthesize", Err: err}
	}

	e.mu.Lock()
	gen := e.last[id] + 1
	e.last[id] = gen
	mesh := &SynthesizedMesh{
		ref:          model.MeshRef{Node: id, Generation: gen},
		name:         desc.Name,
		vertices:     p.vertices,
		indices:      p.indices,
		sections:     p.sections,
		bounds:       p.bounds,
		dropped:      p.dropped,
		hasUVs:       p.hasUVs,
		vertexBuffer: vb,
		indexBuffer:  ib,
	}
	e.arena[mesh.ref] = &entry{mesh: mesh, refs: 1}
	prev, hadPrev := e.current[id]
	e.current[id] = gen
	if hadPrev {
		e.unrefLocked(model.MeshRef{Node: id, Generation: prev})
	}
	e.stats.Syntheses++
	e.stats.DroppedTriangles += uint64(p.dropped)
	evicted := e.evictLocked()
	e.mu.Unlock()

	freeAll(evicted)
	logger.L().Debug("synthesis: swapped",
		zap.String("node", string(id)),
		zap.Uint64("generation", uint64(gen)),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Int("dropped", p.dropped))
	return mesh, nil
}

func (e *engine) upload(label string, p *prepared) (gpu.Buffer, gpu.Buffer, error) {
	vb, err := e.device.CreateBuffer(label+" vertices", wgpu.BufferUsageVertex, model.MarshalVertices(p.vertices))
	if err != nil {
		return nil, nil, err
	}
	ib, err := e.device.CreateBuffer(label+" indices", wgpu.BufferUsageIndex, model.MarshalIndices(p.indices))
	if err != nil {
		vb.Release()
		return nil, nil, err
	}
	return vb, ib, nil
}

func (e *engine) Current(id model.NodeID) (*SynthesizedMesh, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	gen, ok := e.current[id]
	if !ok {
		return nil, false
	}
	return e.arena[model.MeshRef{Node: id, Generation: gen}].mesh, true
}

func (e *engine) CurrentGeneration(id model.NodeID) model.Generation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current[id]
}

func (e *engine) Acquire(ref model.MeshRef) (*SynthesizedMesh, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.arena[ref]
	if !ok {
		return nil, fmt.Errorf("synthesis: acquire %s: %w", ref, common.ErrUnknownNode)
	}
	ent.refs++
	return ent.mesh, nil
}

func (e *engine) Release(ref model.MeshRef) {
	e.mu.Lock()
	ent, ok := e.arena[ref]
	if !ok || ent.refs == 0 {
		e.mu.Unlock()
		logger.L().Warn("synthesis: release of unpinned mesh", zap.Stringer("ref", ref))
		return
	}
	e.unrefLocked(ref)
	evicted := e.evictLocked()
	e.mu.Unlock()

	freeAll(evicted)
}

func (e *engine) IfCurrent(ref model.MeshRef, fn func(*SynthesizedMesh)) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ref.Generation == 0 || e.current[ref.Node] != ref.Generation {
		return false
	}
	fn(e.arena[ref].mesh)
	return true
}

func (e *engine) Remove(id model.NodeID) bool {
	e.mu.Lock()
	gen, ok := e.current[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.current, id)
	e.unrefLocked(model.MeshRef{Node: id, Generation: gen})
	evicted := e.evictLocked()
	e.mu.Unlock()

	freeAll(evicted)
	logger.L().Debug("synthesis: removed", zap.String("node", string(id)), zap.Uint64("generation", uint64(gen)))
	return true
}

func (e *engine) Collect() int {
	e.mu.Lock()
	var freed []*SynthesizedMesh
	for _, ref := range e.pending {
		ent := e.arena[ref]
		ent.queued = false
		if ent.refs > 0 {
			continue
		}
		delete(e.arena, ref)
		freed = append(freed, ent.mesh)
	}
	e.pending = e.pending[:0]
	e.stats.Released += uint64(len(freed))
	e.mu.Unlock()

	freeAll(freed)
	return len(freed)
}

func (e *engine) Live(id model.NodeID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for ref := range e.arena {
		if ref.Node == id {
			n++
		}
	}
	return n
}

func (e *engine) References(id model.NodeID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for ref, ent := range e.arena {
		if ref.Node == id {
			n += ent.refs
		}
	}
	return n
}

func (e *engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := e.stats
	s.Live = len(e.arena)
	s.Pending = len(e.pending)
	return s
}

func (e *engine) Close() {
	e.mu.Lock()
	freed := make([]*SynthesizedMesh, 0, len(e.arena))
	for _, ent := range e.arena {
		freed = append(freed, ent.mesh)
	}
	e.arena = make(map[model.MeshRef]*entry)
	e.current = make(map[model.NodeID]model.Generation)
	e.pending = nil
	e.mu.Unlock()

	freeAll(freed)
}

// unrefLocked drops one reference and queues the entry once it is unreferenced.
func (e *engine) unrefLocked(ref model.MeshRef) {
	ent := e.arena[ref]
	ent.refs--
	if ent.refs == 0 && !ent.queued {
		ent.queued = true
		e.pending = append(e.pending, ref)
	}
}

// evictLocked trims the release queue to maxPending, oldest first, and returns the meshes to free.
func (e *engine) evictLocked() []*SynthesizedMesh {
	var freed []*SynthesizedMesh
	for len(e.pending) > e.maxPending {
		ref := e.pending[0]
		e.pending = e.pending[1:]
		ent := e.arena[ref]
		ent.queued = false
		if ent.refs > 0 {
			continue
		}
		delete(e.arena, ref)
		freed = append(freed, ent.mesh)
		e.stats.Evicted++
		e.stats.Released++
	}
	return freed
}

func freeAll(meshes []*SynthesizedMesh) {
	for _, m := range meshes {
		m.release()
	}
}
