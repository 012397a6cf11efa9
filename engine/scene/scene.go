// Package scene holds the Scene Synchronization Controller. It owns the mapping from imported
// scene nodes to synthesized meshes and sequences synthesis, bakes and render bindings so the
// renderer never observes a half-updated node.
package scene

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// record is the controller's view of one node. Fields are guarded by controller.mu;
// apply serializes synthesis and removal of the node.
type record struct {
	apply   sync.Mutex
	node    model.SceneNode
	state   NodeState
	ref     model.MeshRef
	bake    bake.Handle
	failure error
}

// controller is the implementation of the Controller interface.
//
// Lock order: a record's apply lock, then mu. The synthesis engine, coordinator and
// extension never call back into the controller, so they may be called with mu held.
type controller struct {
	mu          sync.Mutex
	synth       synthesis.Engine
	coord       bake.Coordinator
	ext         renderer.Extension
	nodes       map[model.NodeID]*record
	autoBake    bool
	bakeOptions map[string]any
	parallelism int64
	closeOnce   sync.Once
}

// Controller is the Scene Synchronization Controller. It consumes import events, drives
// re-synthesis, sequences bakes and keeps render bindings current. Failures are recorded
// per node and never stop other nodes from being processed.
// Thread-safe for concurrent access.
type Controller interface {
	// Apply processes one import event. NodeAdded and NodeUpdated synthesize the node's mesh,
	// rebind it and cancel any bake of the previous generation. NodeRemoved tears the node down
	// and is idempotent.
	//
	// Parameters:
	//   - ev: the import event
	//
	// Returns:
	//   - error: a *common.NodeError wrapping the failure, which is also recorded for FailureReason
	Apply(ev model.Event) error

	// ApplyBatch processes events concurrently across distinct nodes. Events for the same node
	// are applied in order.
	//
	// Parameters:
	//   - ctx: cancels events not yet started
	//   - events: the events to apply
	//
	// Returns:
	//   - []error: one entry per event, nil on success
	ApplyBatch(ctx context.Context, events []model.Event) []error

	// RequestBake schedules a bake of the node's current mesh generation.
	//
	// Parameters:
	//   - id: the node
	//   - options: the opaque bake option object, nil for the controller's defaults
	//
	// Returns:
	//   - bake.Handle: the bake job handle
	//   - error: error if the node has no synthesized mesh, is Failed, or the request was rejected
	RequestBake(id model.NodeID, options map[string]any) (bake.Handle, error)

	// Update drains bake completions and attaches freshly published lightmaps. Call it on the
	// controller's tick.
	//
	// Returns:
	//   - int: the number of completions applied to live nodes
	Update() int

	// NodeState retrieves a node's lifecycle state.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - NodeState: the state, StateUnknown if the node does not exist
	NodeState(id model.NodeID) NodeState

	// BakeProgress retrieves the progress of the node's bake.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - float32: progress in [0, 1]
	//   - bool: false if no bake applies to the node
	BakeProgress(id model.NodeID) (float32, bool)

	// FailureReason retrieves the node's most recent failure.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - error: the failure, or nil
	FailureReason(id model.NodeID) error

	// Node retrieves the last imported definition of a node.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - model.SceneNode: the node
	//   - bool: false if the node does not exist
	Node(id model.NodeID) (model.SceneNode, bool)

	// Nodes retrieves every known node id in sorted order.
	//
	// Returns:
	//   - []model.NodeID: the node ids
	Nodes() []model.NodeID

	// Extension retrieves the render extension the controller binds nodes into.
	//
	// Returns:
	//   - renderer.Extension: the extension
	Extension() renderer.Extension

	// Close stops the bake coordinator and releases the extension's and synthesis engine's resources.
	Close()
}

var _ Controller = &controller{}

// NewController creates a new Controller over the three pipeline stages.
//
// Parameters:
//   - synth: the mesh synthesis engine
//   - coord: the bake coordinator baking meshes of synth
//   - ext: the render extension drawing meshes of synth
//   - options: a variadic list of ControllerBuilderOption functions to configure the Controller
//
// Returns:
//   - Controller: a new controller
func NewController(synth synthesis.Engine, coord bake.Coordinator, ext renderer.Extension, options ...ControllerBuilderOption) Controller {
	if synth == nil || coord == nil || ext == nil {
		panic("scene: controller requires a synthesis engine, a bake coordinator and a render extension")
	}
	c := &controller{
		synth:       synth,
		coord:       coord,
		ext:         ext,
		nodes:       make(map[model.NodeID]*record),
		parallelism: defaultParallelism(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *controller) Apply(ev model.Event) error {
	switch ev.Kind {
	case model.EventNodeAdded, model.EventNodeUpdated:
		return c.synthesize(ev)
	case model.EventNodeRemoved:
		c.remove(ev.Node)
		return nil
	default:
		return &common.NodeError{Node: string(ev.Node), Op: "apply", Err: fmt.Errorf("unknown event kind %d", ev.Kind)}
	}
}

// lockNode returns the node's live record with its apply lock held, creating it if create is set.
func (c *controller) lockNode(id model.NodeID, create bool) (*record, bool) {
	for {
		c.mu.Lock()
		rec, ok := c.nodes[id]
		if !ok {
			if !create {
				c.mu.Unlock()
				return nil, false
			}
			rec = &record{state: StateImported}
			c.nodes[id] = rec
		}
		c.mu.Unlock()

		rec.apply.Lock()
		c.mu.Lock()
		live := c.nodes[id] == rec
		c.mu.Unlock()
		if live {
			return rec, true
		}
		rec.apply.Unlock()
	}
}

func (c *controller) synthesize(ev model.Event) error {
	id := ev.Node
	rec, ok := c.lockNode(id, ev.Kind == model.EventNodeAdded)
	if !ok {
		return &common.NodeError{Node: string(id), Op: "update", Err: common.ErrUnknownNode}
	}
	defer rec.apply.Unlock()

	c.mu.Lock()
	node := mergeNode(rec.node, ev)
	if rec.node == nil {
		rec.node = node
	}
	prev := rec.state
	rec.state = StateSynthesizing
	c.mu.Unlock()

	mesh, err := c.synth.Synthesize(id, ev.Mesh)

	c.mu.Lock()
	if err != nil {
		rec.failure = err
		if errors.Is(err, common.ErrResourceExhaustion) {
			rec.state = StateFailed
			c.ext.Suspend(id, err)
		} else {
			rec.state = prev
		}
		c.mu.Unlock()
		logger.L().Warn("scene: synthesis failed", zap.String("node", string(id)), zap.Stringer("state", prev), zap.Error(err))
		return &common.NodeError{Node: string(id), Op: ev.Kind.String(), Err: err}
	}

	ref := mesh.Ref()
	stale := rec.bake
	rec.node = node
	rec.ref = ref
	rec.bake = 0
	rec.failure = nil
	rec.state = StateSynthesized
	c.mu.Unlock()

	if stale != 0 && c.coord.Cancel(stale) {
		logger.L().Debug("scene: cancelled stale bake", zap.String("node", string(id)), zap.Uint64("job", uint64(stale)))
	}
	if err := c.ext.Bind(ref, node.Transform(), node.Materials()); err != nil {
		logger.L().Warn("scene: bind rejected", zap.Stringer("ref", ref), zap.Error(err))
	}
	logger.L().Debug("scene: synthesized",
		zap.String("node", string(id)),
		zap.Uint64("generation", uint64(ref.Generation)),
		zap.Int("dropped", mesh.DroppedTriangles()))

	if c.autoBake {
		if _, err := c.RequestBake(id, nil); err != nil {
			logger.L().Warn("scene: auto bake rejected", zap.Stringer("ref", ref), zap.Error(err))
		}
	}
	return nil
}

// mergeNode builds the node definition an event leaves behind. Updates keep the previous
// transform and name, and keep the previous materials unless the event carries new ones.
func mergeNode(prev model.SceneNode, ev model.Event) model.SceneNode {
	transform := ev.Transform
	if transform == (mgl32.Mat4{}) {
		transform = mgl32.Ident4()
	}
	name := ev.Name
	materials := ev.Materials
	if prev != nil {
		name = common.Coalesce(name, prev.Name())
		if ev.Kind == model.EventNodeUpdated {
			transform = prev.Transform()
			if materials == nil {
				materials = prev.Materials()
			}
		}
	}
	return model.NewSceneNode(ev.Node,
		model.WithName(name),
		model.WithTransform(transform),
		model.WithMesh(ev.Mesh),
		model.WithMaterials(materials),
	)
}

// remove tears a node down in order: its mesh, then its bake, then its binding.
// Each step tolerates having already run.
func (c *controller) remove(id model.NodeID) {
	rec, ok := c.lockNode(id, false)
	if !ok {
		return
	}
	defer rec.apply.Unlock()

	c.synth.Remove(id)

	c.mu.Lock()
	job := rec.bake
	rec.bake = 0
	c.mu.Unlock()
	if job != 0 {
		c.coord.Cancel(job)
	}
	c.coord.Forget(id)

	c.ext.Unbind(id)

	c.mu.Lock()
	delete(c.nodes, id)
	c.mu.Unlock()
	logger.L().Debug("scene: removed", zap.String("node", string(id)))
}

func (c *controller) ApplyBatch(ctx context.Context, events []model.Event) []error {
	errs := make([]error, len(events))

	var order []model.NodeID
	byNode := make(map[model.NodeID][]int)
	for i, ev := range events {
		if _, ok := byNode[ev.Node]; !ok {
			order = append(order, ev.Node)
		}
		byNode[ev.Node] = append(byNode[ev.Node], i)
	}

	sem := semaphore.NewWeighted(c.parallelism)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range order {
		indices := byNode[id]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				for _, i := range indices {
					errs[i] = err
				}
				return nil
			}
			defer sem.Release(1)

			for _, i := range indices {
				if err := gctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				errs[i] = c.Apply(events[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	logger.L().Info("scene: batch applied", zap.Int("events", len(events)), zap.Int("nodes", len(order)), zap.Int("failed", failed))
	return errs
}

func (c *controller) RequestBake(id model.NodeID, options map[string]any) (bake.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[id]
	if !ok || rec.ref.Generation == 0 {
		return 0, &common.NodeError{Node: string(id), Op: "bake", Err: common.ErrUnknownNode}
	}
	if rec.state == StateFailed {
		return 0, &common.NodeError{Node: string(id), Op: "bake", Err: rec.failure}
	}
	if options == nil {
		options = c.bakeOptions
	}
	h, err := c.coord.RequestBake(rec.ref, rec.node.Transform(), options)
	if err != nil {
		return 0, &common.NodeError{Node: string(id), Op: "bake", Err: err}
	}
	rec.bake = h
	rec.state = StateBaking
	return h, nil
}

func (c *controller) Update() int {
	applied := 0
	for _, comp := range c.coord.Drain() {
		if c.complete(comp) {
			applied++
		}
	}
	return applied
}

// complete applies one bake completion. Completions for jobs the node no longer tracks are ignored.
func (c *controller) complete(comp bake.Completion) bool {
	id := comp.Ref.Node

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[id]
	if !ok || rec.bake != comp.Handle {
		return false
	}
	rec.bake = 0

	switch comp.Status {
	case bake.StatusSucceeded:
		if lm, ok := c.coord.Lightmap(id); ok {
			if lm.Ref() == rec.ref {
				if err := c.ext.AttachLightmap(lm); err != nil {
					logger.L().Warn("scene: lightmap rejected", zap.Stringer("ref", lm.Ref()), zap.Error(err))
				}
			}
			lm.Release()
		}
	case bake.StatusFailed:
		rec.failure = comp.Err
		logger.L().Warn("scene: bake failed, node stays unlit", zap.Stringer("ref", comp.Ref), zap.Error(comp.Err))
	}
	c.settleLocked(id, rec)
	return true
}

// settleLocked derives the resting state of a node with no synthesis or bake in flight.
func (c *controller) settleLocked(id model.NodeID, rec *record) {
	if rec.state == StateFailed || rec.ref.Generation == 0 {
		return
	}
	b, ok := c.ext.Binding(id)
	if ok && b.Suspended != nil {
		rec.state = StateFailed
		return
	}
	if ok && b.Ref == rec.ref && b.Lit() {
		rec.state = StateRendered
		return
	}
	rec.state = StateSynthesized
}

func (c *controller) NodeState(id model.NodeID) NodeState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.nodes[id]; ok {
		return rec.state
	}
	return StateUnknown
}

func (c *controller) BakeProgress(id model.NodeID) (float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[id]
	if !ok {
		return 0, false
	}
	switch {
	case rec.state == StateBaking && rec.bake != 0:
		return c.coord.Progress(rec.bake)
	case rec.state == StateRendered:
		return 1, true
	default:
		return 0, false
	}
}

func (c *controller) FailureReason(id model.NodeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.nodes[id]; ok {
		return rec.failure
	}
	return nil
}

func (c *controller) Node(id model.NodeID) (model.SceneNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[id]
	if !ok || rec.node == nil {
		return nil, false
	}
	return rec.node, true
}

func (c *controller) Nodes() []model.NodeID {
	c.mu.Lock()
	ids := make([]model.NodeID, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	slices.Sort(ids)
	return ids
}

func (c *controller) Extension() renderer.Extension {
	return c.ext
}

func (c *controller) Close() {
	c.closeOnce.Do(func() {
		c.coord.Close()
		c.ext.Close()
		c.synth.Close()
		logger.L().Info("scene: controller closed")
	})
}
