// Package bake coordinates asynchronous lightmap bakes over synthesized meshes.
// Each job works from a pinned mesh generation and publishes its lightmap only if that
// generation is still current when the bake finishes.
package bake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// coordinator is the implementation of the Coordinator interface.
//
// Lock order: the synthesis engine's lock is taken before mu (publication runs inside
// synthesis.Engine.IfCurrent). Nothing calls into the synthesis engine while holding mu.
type coordinator struct {
	mu        sync.Mutex
	synth     synthesis.Engine
	device    gpu.Device
	pool      worker.DynamicWorkerPool
	slots     chan struct{}
	bake      BakeFunc
	lights    []light.Light
	ambient   mgl32.Vec3
	workers   int
	queueSize int
	notify    func(Completion)

	nextHandle  Handle
	jobs        map[Handle]*job
	active      map[model.NodeID]Handle
	lightmaps   map[model.NodeID]*Lightmap
	completions []Completion
	terminal    []Handle
	closed      bool
}

// Coordinator is the Lighting Bake Coordinator. All methods are safe for concurrent use and none block on bake work.
type Coordinator interface {
	// RequestBake schedules a bake of one specific mesh generation and returns immediately.
	// A job already in flight for the node is superseded first. The generation must be current.
	//
	// Parameters:
	//   - ref: the mesh generation to bake
	//   - transform: the node's world transform
	//   - options: the opaque quality settings, see ParseSettings
	//
	// Returns:
	//   - Handle: the job handle
	//   - error: error if the generation is not current or the coordinator is closed
	RequestBake(ref model.MeshRef, transform mgl32.Mat4, options map[string]any) (Handle, error)

	// PollStatus retrieves a job's status. A terminal status is reported once; afterwards the
	// job is forgotten and StatusUnknown is returned.
	//
	// Parameters:
	//   - h: the job handle
	//
	// Returns:
	//   - Status: the job status
	PollStatus(h Handle) Status

	// Progress retrieves a job's completed fraction without consuming its status.
	//
	// Parameters:
	//   - h: the job handle
	//
	// Returns:
	//   - float32: progress in [0, 1]
	//   - bool: false if the job is unknown
	Progress(h Handle) (float32, bool)

	// Err retrieves the error a terminal job ended with, without consuming its status.
	//
	// Parameters:
	//   - h: the job handle
	//
	// Returns:
	//   - error: the failure, common.ErrSuperseded for superseded jobs, or nil
	Err(h Handle) error

	// Cancel supersedes a pending or running job. Its output will be discarded and its mesh pin
	// is dropped immediately.
	//
	// Parameters:
	//   - h: the job handle
	//
	// Returns:
	//   - bool: true if the job was still in flight
	Cancel(h Handle) bool

	// ActiveJob retrieves the in-flight job for a node.
	//
	// Parameters:
	//   - node: the node
	//
	// Returns:
	//   - Handle: the job handle
	//   - bool: false if no job is pending or running
	ActiveJob(node model.NodeID) (Handle, bool)

	// Lightmap retrieves the last lightmap published for a node with a reference taken for the
	// caller, who must Release it. Callers must compare its generation against the mesh they draw.
	//
	// Parameters:
	//   - node: the node
	//
	// Returns:
	//   - *Lightmap: the lightmap
	//   - bool: false if none was published
	Lightmap(node model.NodeID) (*Lightmap, bool)

	// Drain returns and clears the queued completions, oldest first.
	//
	// Returns:
	//   - []Completion: the completions since the last Drain
	Drain() []Completion

	// Forget cancels the node's in-flight job and drops its published lightmap.
	//
	// Parameters:
	//   - node: the node
	Forget(node model.NodeID)

	// Close cancels every job, stops the worker pool and releases all lightmaps.
	Close()
}

var _ Coordinator = &coordinator{}

// NewCoordinator creates a new Coordinator baking meshes from synth and uploading lightmaps to device.
//
// Parameters:
//   - synth: the synthesis engine that owns the meshes
//   - device: the device lightmap textures are created on
//   - options: a variadic list of CoordinatorBuilderOption functions to configure the Coordinator
//
// Returns:
//   - Coordinator: a new bake coordinator
func NewCoordinator(synth synthesis.Engine, device gpu.Device, options ...CoordinatorBuilderOption) Coordinator {
	if synth == nil {
		panic("bake: nil synthesis engine")
	}
	if device == nil {
		panic("bake: nil device")
	}
	c := &coordinator{
		synth:     synth,
		device:    device,
		bake:      Bake,
		ambient:   mgl32.Vec3{0.05, 0.05, 0.05},
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		jobs:      make(map[Handle]*job),
		active:    make(map[model.NodeID]Handle),
		lightmaps: make(map[model.NodeID]*Lightmap),
	}
	for _, opt := range options {
		opt(c)
	}
	c.slots = make(chan struct{}, c.queueSize)
	c.pool = worker.NewDynamicWorkerPool(c.workers, c.queueSize, 1*time.Second)
	return c
}

func (c *coordinator) RequestBake(ref model.MeshRef, transform mgl32.Mat4, options map[string]any) (Handle, error) {
	if cur := c.synth.CurrentGeneration(ref.Node); cur != ref.Generation {
		return 0, fmt.Errorf("bake: request %s (current %d): %w", ref, cur, common.ErrSuperseded)
	}
	mesh, err := c.synth.Acquire(ref)
	if err != nil {
		return 0, fmt.Errorf("bake: request: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		ref:       ref,
		mesh:      mesh,
		transform: transform,
		settings:  ParseSettings(options),
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusPending,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		c.synth.Release(ref)
		return 0, errors.New("bake: coordinator closed")
	}
	var superseded []Completion
	var stale *job
	if prev, ok := c.active[ref.Node]; ok {
		stale = c.jobs[prev]
		superseded = append(superseded, c.supersedeLocked(stale))
	}
	c.nextHandle++
	j.handle = c.nextHandle
	c.jobs[j.handle] = j
	c.active[ref.Node] = j.handle
	c.mu.Unlock()

	if stale != nil {
		c.unpin(stale)
	}
	c.emit(superseded)

	logger.L().Debug("bake: requested",
		zap.Uint64("job", uint64(j.handle)),
		zap.Stringer("ref", ref),
		zap.Float64("resolution", j.settings.Resolution),
		zap.Int("samples", j.settings.SampleCount))
	c.submit(j)
	return j.handle, nil
}

// submit queues j without blocking. When every queue slot is taken the hand-off moves to a goroutine.
func (c *coordinator) submit(j *job) {
	task := worker.Task{
		ID:      int(j.handle),
		Payload: j.ref,
		Do: func() (any, error) {
			<-c.slots
			c.run(j)
			return nil, nil
		},
	}
	select {
	case c.slots <- struct{}{}:
		c.pool.SubmitTask(task)
	default:
		go func() {
			c.slots <- struct{}{}
			c.pool.SubmitTask(task)
		}()
	}
}

func (c *coordinator) run(j *job) {
	defer c.unpin(j)

	c.mu.Lock()
	if j.status != StatusPending {
		c.mu.Unlock()
		return
	}
	j.status = StatusRunning
	c.mu.Unlock()

	img, err := c.safeBake(j)
	c.unpin(j)
	if j.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.finish(j, StatusFailed, err)
		return
	}

	lm, err := c.upload(j, img)
	if err != nil {
		c.finish(j, StatusFailed, err)
		return
	}

	var replaced *Lightmap
	published := false
	c.synth.IfCurrent(j.ref, func(*synthesis.SynthesizedMesh) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if j.status != StatusRunning {
			return
		}
		replaced = c.lightmaps[j.ref.Node]
		c.lightmaps[j.ref.Node] = lm
		published = true
		c.completeLocked(j, StatusSucceeded, nil)
	})

	if !published {
		lm.Release()
		c.finish(j, StatusSuperseded, common.ErrSuperseded)
		return
	}
	if replaced != nil {
		replaced.Release()
	}
	c.emit([]Completion{{Handle: j.handle, Ref: j.ref, Status: StatusSucceeded}})
	logger.L().Debug("bake: published", zap.Uint64("job", uint64(j.handle)), zap.Stringer("ref", j.ref), zap.Uint32("size", lm.Size()))
}

func (c *coordinator) safeBake(j *job) (img *Irradiance, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bake %s: %w: panic: %v", j.ref, common.ErrBakeFailure, r)
		}
	}()

	img, err = c.bake(j.ctx, Input{
		Ref:       j.ref,
		Vertices:  j.mesh.Vertices(),
		Indices:   j.mesh.Indices(),
		HasUVs:    j.mesh.HasUVs(),
		Transform: j.transform,
		Settings:  j.settings,
		Lights:    c.lights,
		Ambient:   c.ambient,
	}, j.setProgress)
	if err != nil && j.ctx.Err() == nil && !errors.Is(err, common.ErrBakeFailure) {
		err = fmt.Errorf("bake %s: %w: %v", j.ref, common.ErrBakeFailure, err)
	}
	if err == nil && img == nil {
		err = fmt.Errorf("bake %s: %w: kernel returned no image", j.ref, common.ErrBakeFailure)
	}
	return img, err
}

func (c *coordinator) upload(j *job, img *Irradiance) (*Lightmap, error) {
	tex, err := c.device.CreateTexture(fmt.Sprintf("%s lightmap", j.ref), Staging(img))
	if err != nil {
		return nil, fmt.Errorf("bake %s: upload: %w", j.ref, err)
	}
	return newLightmap(j.ref, j.settings, img, tex), nil
}

// finish moves a running job to a terminal status unless a canceller got there first.
func (c *coordinator) finish(j *job, status Status, err error) {
	c.mu.Lock()
	if j.status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.completeLocked(j, status, err)
	c.mu.Unlock()

	if status == StatusFailed {
		logger.L().Warn("bake: failed", zap.Uint64("job", uint64(j.handle)), zap.Stringer("ref", j.ref), zap.Error(err))
	}
	c.emit([]Completion{{Handle: j.handle, Ref: j.ref, Status: status, Err: err}})
}

func (c *coordinator) completeLocked(j *job, status Status, err error) {
	j.status = status
	j.err = err
	if status == StatusSucceeded {
		j.setProgress(1)
	}
	if c.active[j.ref.Node] == j.handle {
		delete(c.active, j.ref.Node)
	}
	c.completions = append(c.completions, Completion{Handle: j.handle, Ref: j.ref, Status: status, Err: err})
	c.terminal = append(c.terminal, j.handle)
	for len(c.terminal) > maxTerminalRecords {
		delete(c.jobs, c.terminal[0])
		c.terminal = c.terminal[1:]
	}
}

// supersedeLocked cancels an in-flight job. The caller must unpin it after unlocking.
func (c *coordinator) supersedeLocked(j *job) Completion {
	j.cancel()
	c.completeLocked(j, StatusSuperseded, common.ErrSuperseded)
	logger.L().Debug("bake: superseded", zap.Uint64("job", uint64(j.handle)), zap.Stringer("ref", j.ref))
	return Completion{Handle: j.handle, Ref: j.ref, Status: StatusSuperseded, Err: common.ErrSuperseded}
}

func (c *coordinator) unpin(j *job) {
	j.unpinOnce.Do(func() {
		c.synth.Release(j.ref)
	})
}

func (c *coordinator) emit(completions []Completion) {
	if c.notify == nil {
		return
	}
	for _, comp := range completions {
		c.notify(comp)
	}
}

func (c *coordinator) PollStatus(h Handle) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[h]
	if !ok {
		return StatusUnknown
	}
	if j.status.Terminal() {
		delete(c.jobs, h)
	}
	return j.status
}

func (c *coordinator) Progress(h Handle) (float32, bool) {
	c.mu.Lock()
	j, ok := c.jobs[h]
	c.mu.Unlock()

	if !ok {
		return 0, false
	}
	return j.loadProgress(), true
}

func (c *coordinator) Err(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if j, ok := c.jobs[h]; ok {
		return j.err
	}
	return nil
}

func (c *coordinator) Cancel(h Handle) bool {
	c.mu.Lock()
	j, ok := c.jobs[h]
	if !ok || j.status.Terminal() {
		c.mu.Unlock()
		return false
	}
	comp := c.supersedeLocked(j)
	c.mu.Unlock()

	c.unpin(j)
	c.emit([]Completion{comp})
	return true
}

func (c *coordinator) ActiveJob(node model.NodeID) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.active[node]
	return h, ok
}

func (c *coordinator) Lightmap(node model.NodeID) (*Lightmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lm, ok := c.lightmaps[node]
	if !ok {
		return nil, false
	}
	return lm.Retain(), true
}

func (c *coordinator) Drain() []Completion {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.completions
	c.completions = nil
	return out
}

func (c *coordinator) Forget(node model.NodeID) {
	c.mu.Lock()
	var stale *job
	var comps []Completion
	if h, ok := c.active[node]; ok {
		stale = c.jobs[h]
		comps = append(comps, c.supersedeLocked(stale))
	}
	lm := c.lightmaps[node]
	delete(c.lightmaps, node)
	c.mu.Unlock()

	if stale != nil {
		c.unpin(stale)
	}
	if lm != nil {
		lm.Release()
	}
	c.emit(comps)
}

func (c *coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var stale []*job
	for _, h := range c.active {
		j := c.jobs[h]
		c.supersedeLocked(j)
		stale = append(stale, j)
	}
	lightmaps := c.lightmaps
	c.lightmaps = make(map[model.NodeID]*Lightmap)
	c.mu.Unlock()

	for _, j := range stale {
		c.unpin(j)
	}
	for _, lm := range lightmaps {
		lm.Release()
	}
	c.pool.Stop()
	logger.L().Debug("bake: coordinator closed", zap.Int("cancelled", len(stale)))
}
