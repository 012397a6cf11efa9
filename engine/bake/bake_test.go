package bake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second
const tick = 5 * time.Millisecond

func quadMesh() *model.MeshDescriptor {
	return &model.MeshDescriptor{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []uint32{0, 2, 1, 0, 3, 2},
	}
}

// gatedBake blocks every bake until gate is closed, then finishes regardless of cancellation.
func gatedBake(started chan<- model.MeshRef, gate <-chan struct{}) BakeFunc {
	return func(_ context.Context, in Input, progress func(float32)) (*Irradiance, error) {
		started <- in.Ref
		progress(0.5)
		<-gate
		return Bake(context.Background(), in, progress)
	}
}

type fixture struct {
	device gpu.Device
	synth  synthesis.Engine
	coord  Coordinator
}

func newFixture(t *testing.T, options ...CoordinatorBuilderOption) *fixture {
	t.Helper()
	device := gpu.NewMemoryDevice()
	synth := synthesis.NewEngine(device)
	options = append([]CoordinatorBuilderOption{WithWorkers(2)}, options...)
	coord := NewCoordinator(synth, device, options...)
	t.Cleanup(coord.Close)
	return &fixture{device: device, synth: synth, coord: coord}
}

func (f *fixture) synthesize(t *testing.T, id model.NodeID, desc *model.MeshDescriptor) model.MeshRef {
	t.Helper()
	m, err := f.synth.Synthesize(id, desc)
	require.NoError(t, err)
	return m.Ref()
}

// waitTerminal waits for the job to leave the active set, then consumes its terminal status.
func (f *fixture) waitTerminal(t *testing.T, node model.NodeID, h Handle) Status {
	t.Helper()
	require.Eventually(t, func() bool {
		active, ok := f.coord.ActiveJob(node)
		return !ok || active != h
	}, waitFor, tick)
	return f.coord.PollStatus(h)
}

func TestRequestBakePublishesLightmap(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a", quadMesh())

	h, err := f.coord.RequestBake(ref, mgl32.Ident4(), map[string]any{"resolution": 8})
	require.NoError(t, err)
	assert.NotZero(t, h)

	assert.Equal(t, StatusSucceeded, f.waitTerminal(t, "a", h))
	assert.Equal(t, StatusUnknown, f.coord.PollStatus(h))

	lm, ok := f.coord.Lightmap("a")
	require.True(t, ok)
	defer lm.Release()
	assert.Equal(t, ref, lm.Ref())
	assert.Equal(t, uint32(8), lm.Size())
	assert.Equal(t, 1, f.device.Stats().LiveTextures)
	assert.Equal(t, 1, f.synth.References("a"))

	comps := f.coord.Drain()
	require.Len(t, comps, 1)
	assert.Equal(t, StatusSucceeded, comps[0].Status)
	assert.Empty(t, f.coord.Drain())
}

func TestBakeSupersededByResynthesis(t *testing.T) {
	started := make(chan model.MeshRef, 4)
	gate := make(chan struct{})
	f := newFixture(t, WithBakeFunc(gatedBake(started, gate)))

	gen1 := f.synthesize(t, "a", quadMesh())
	h, err := f.coord.RequestBake(gen1, mgl32.Ident4(), nil)
	require.NoError(t, err)
	<-started

	progress, ok := f.coord.Progress(h)
	require.True(t, ok)
	assert.InDelta(t, 0.5, progress, 1e-6)

	gen2 := f.synthesize(t, "a", quadMesh())
	assert.Equal(t, model.Generation(2), gen2.Generation)
	close(gate)

	assert.Equal(t, StatusSuperseded, f.waitTerminal(t, "a", h))
	_, ok = f.coord.Lightmap("a")
	assert.False(t, ok)
	assert.Zero(t, f.device.Stats().LiveTextures)
}

func TestLastRequestWins(t *testing.T) {
	started := make(chan model.MeshRef, 4)
	gate := make(chan struct{})
	f := newFixture(t, WithBakeFunc(gatedBake(started, gate)))
	ref := f.synthesize(t, "a", quadMesh())

	first, err := f.coord.RequestBake(ref, mgl32.Ident4(), nil)
	require.NoError(t, err)
	<-started

	second, err := f.coord.RequestBake(ref, mgl32.Ident4(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuperseded, f.coord.PollStatus(first))
	active, ok := f.coord.ActiveJob("a")
	require.True(t, ok)
	assert.Equal(t, second, active)

	close(gate)
	assert.Equal(t, StatusSucceeded, f.waitTerminal(t, "a", second))
	lm, ok := f.coord.Lightmap("a")
	require.True(t, ok)
	lm.Release()
}

func TestCancelDropsPinImmediately(t *testing.T) {
	started := make(chan model.MeshRef, 4)
	gate := make(chan struct{})
	f := newFixture(t, WithBakeFunc(gatedBake(started, gate)))
	ref := f.synthesize(t, "a", quadMesh())

	h, err := f.coord.RequestBake(ref, mgl32.Ident4(), nil)
	require.NoError(t, err)
	<-started
	assert.Equal(t, 2, f.synth.References("a"))

	assert.True(t, f.coord.Cancel(h))
	assert.False(t, f.coord.Cancel(h))
	assert.Equal(t, 1, f.synth.References("a"))
	assert.ErrorIs(t, f.coord.Err(h), common.ErrSuperseded)
	assert.Equal(t, StatusSuperseded, f.coord.PollStatus(h))
	assert.Equal(t, StatusUnknown, f.coord.PollStatus(h))

	close(gate)
	assert.Never(t, func() bool {
		_, ok := f.coord.Lightmap("a")
		return ok
	}, 100*time.Millisecond, tick)
}

func TestBakeFailureReportedOnce(t *testing.T) {
	f := newFixture(t)
	desc := quadMesh()
	desc.UVs = nil
	ref := f.synthesize(t, "a", desc)

	h, err := f.coord.RequestBake(ref, mgl32.Ident4(), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := f.coord.ActiveJob("a")
		return !ok
	}, waitFor, tick)
	assert.ErrorIs(t, f.coord.Err(h), common.ErrBakeFailure)
	assert.Equal(t, StatusFailed, f.coord.PollStatus(h))
	assert.Equal(t, StatusUnknown, f.coord.PollStatus(h))
	assert.Equal(t, 1, f.synth.References("a"))
}

func TestKernelPanicBecomesFailure(t *testing.T) {
	f := newFixture(t, WithBakeFunc(func(context.Context, Input, func(float32)) (*Irradiance, error) {
		panic("boom")
	}))
	ref := f.synthesize(t, "a", quadMesh())
	h, err := f.coord.RequestBake(ref, mgl32.Ident4(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, f.waitTerminal(t, "a", h))
}

func TestRequestBakeRejectsStaleGeneration(t *testing.T) {
	f := newFixture(t)
	gen1 := f.synthesize(t, "a", quadMesh())
	f.synthesize(t, "a", quadMesh())

	_, err := f.coord.RequestBake(gen1, mgl32.Ident4(), nil)
	assert.ErrorIs(t, err, common.ErrSuperseded)

	_, err = f.coord.RequestBake(model.MeshRef{Node: "missing", Generation: 1}, mgl32.Ident4(), nil)
	assert.Error(t, err)
}

func TestRequestBakeDoesNotBlockWhenQueueIsFull(t *testing.T) {
	started := make(chan model.MeshRef, 16)
	gate := make(chan struct{})
	var mu sync.Mutex
	done := map[model.NodeID]Status{}
	f := newFixture(t,
		WithWorkers(1),
		WithQueueSize(1),
		WithBakeFunc(gatedBake(started, gate)),
		WithNotify(func(c Completion) {
			mu.Lock()
			done[c.Ref.Node] = c.Status
			mu.Unlock()
		}),
	)

	nodes := []model.NodeID{"a", "b", "c", "d", "e"}
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for _, id := range nodes {
			ref := f.synthesize(t, id, quadMesh())
			_, err := f.coord.RequestBake(ref, mgl32.Ident4(), map[string]any{"resolution": 4})
			assert.NoError(t, err)
		}
	}()

	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatal("RequestBake blocked on a full queue")
	}

	close(gate)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(done) == len(nodes)
	}, waitFor, tick)
	for _, id := range nodes {
		assert.Equal(t, StatusSucceeded, done[id], id)
	}
}

func TestForgetCancelsAndDropsLightmap(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a", quadMesh())
	h, err := f.coord.RequestBake(ref, mgl32.Ident4(), map[string]any{"resolution": 4})
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, f.waitTerminal(t, "a", h))

	f.coord.Forget("a")
	_, ok := f.coord.Lightmap("a")
	assert.False(t, ok)
	assert.Zero(t, f.device.Stats().LiveTextures)
}

func TestClosedCoordinatorRejectsRequests(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a", quadMesh())
	f.coord.Close()

	_, err := f.coord.RequestBake(ref, mgl32.Ident4(), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, f.synth.References("a"))
}
