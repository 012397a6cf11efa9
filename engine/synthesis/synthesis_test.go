package synthesis

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() *model.MeshDescriptor {
	return &model.MeshDescriptor{
		Name:      "quad",
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []uint32{0, 2, 1, 0, 3, 2},
	}
}

func TestSynthesizeGenerationsIncrease(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())

	for want := model.Generation(1); want <= 3; want++ {
		m, err := e.Synthesize("a", quad())
		require.NoError(t, err)
		assert.Equal(t, want, m.Generation())
		assert.Equal(t, want, e.CurrentGeneration("a"))
	}

	other, err := e.Synthesize("b", quad())
	require.NoError(t, err)
	assert.Equal(t, model.Generation(1), other.Generation())
}

func TestSynthesizeIdenticalDescriptorIsDeterministic(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())

	first, err := e.Synthesize("a", quad())
	require.NoError(t, err)
	second, err := e.Synthesize("a", quad())
	require.NoError(t, err)

	assert.Equal(t, first.Vertices(), second.Vertices())
	assert.Equal(t, first.Indices(), second.Indices())
	assert.Equal(t, first.Bounds(), second.Bounds())
	assert.Greater(t, second.Generation(), first.Generation())
}

func TestSynthesizeRejectsInvalidGeometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *model.MeshDescriptor)
	}{
		{"nil positions", func(d *model.MeshDescriptor) { d.Positions = nil }},
		{"nil indices", func(d *model.MeshDescriptor) { d.Indices = nil }},
		{"partial triangle", func(d *model.MeshDescriptor) { d.Indices = d.Indices[:4] }},
		{"index out of range", func(d *model.MeshDescriptor) { d.Indices[4] = 9 }},
		{"short uv stream", func(d *model.MeshDescriptor) { d.UVs = d.UVs[:2] }},
		{"short normal stream", func(d *model.MeshDescriptor) { d.Normals = [][3]float32{{0, 1, 0}} }},
		{"section past end", func(d *model.MeshDescriptor) {
			d.Sections = []model.MeshSection{{FirstIndex: 3, IndexCount: 6}}
		}},
		{"all degenerate", func(d *model.MeshDescriptor) { d.Indices = []uint32{0, 0, 1, 2, 2, 3} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := gpu.NewMemoryDevice()
			e := NewEngine(device)
			_, err := e.Synthesize("a", quad())
			require.NoError(t, err)

			bad := quad()
			tt.mutate(bad)
			_, err = e.Synthesize("a", bad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrInvalidGeometry))

			var nodeErr *common.NodeError
			require.ErrorAs(t, err, &nodeErr)
			assert.Equal(t, "a", nodeErr.Node)

			assert.Equal(t, model.Generation(1), e.CurrentGeneration("a"))
			assert.Equal(t, 2, device.Stats().LiveBuffers)
		})
	}
}

func TestSynthesizeDropsDegenerateTriangles(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())
	d := quad()
	d.Positions = append(d.Positions, [3]float32{2, 0, 0})
	// collinear sliver, repeated index, then the two real triangles split across sections
	d.Indices = append([]uint32{0, 1, 4, 1, 1, 2}, d.Indices...)
	d.UVs = append(d.UVs, [2]float32{1, 1})
	d.Sections = []model.MeshSection{
		{FirstIndex: 0, IndexCount: 6, MaterialSlot: 2},
		{FirstIndex: 6, IndexCount: 6, MaterialSlot: 1},
	}

	m, err := e.Synthesize("a", d)
	require.NoError(t, err)
	assert.Equal(t, 2, m.DroppedTriangles())
	assert.Equal(t, 2, m.TriangleCount())
	require.Len(t, m.Sections(), 1)
	assert.Equal(t, model.MeshSection{FirstIndex: 0, IndexCount: 6, MaterialSlot: 1}, m.Sections()[0])
	assert.Equal(t, uint64(2), e.Stats().DroppedTriangles)
}

func TestSynthesizeGeneratesNormalsAndBounds(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())
	m, err := e.Synthesize("a", quad())
	require.NoError(t, err)

	for _, v := range m.Vertices() {
		assert.InDelta(t, 1.0, v.Normal[1], 1e-5)
	}
	assert.Equal(t, [3]float32{0, 0, 0}, [3]float32(m.Bounds().Min))
	assert.Equal(t, [3]float32{1, 0, 1}, [3]float32(m.Bounds().Max))
	assert.True(t, m.HasUVs())
	assert.Equal(t, uint64(4*model.GPUVertexStride), m.VertexBuffer().Size())
}

func TestSupersededGenerationWaitsForCollect(t *testing.T) {
	device := gpu.NewMemoryDevice()
	e := NewEngine(device)

	_, err := e.Synthesize("a", quad())
	require.NoError(t, err)
	_, err = e.Synthesize("a", quad())
	require.NoError(t, err)

	assert.Equal(t, 2, e.Live("a"))
	assert.Equal(t, 4, device.Stats().LiveBuffers)

	assert.Equal(t, 1, e.Collect())
	assert.Equal(t, 1, e.Live("a"))
	assert.Equal(t, 2, device.Stats().LiveBuffers)
}

func TestPinnedGenerationSurvivesCollect(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())
	first, err := e.Synthesize("a", quad())
	require.NoError(t, err)

	pinned, err := e.Acquire(first.Ref())
	require.NoError(t, err)
	_, err = e.Synthesize("a", quad())
	require.NoError(t, err)

	assert.Zero(t, e.Collect())
	assert.Equal(t, 2, e.Live("a"))
	assert.Equal(t, first.Indices(), pinned.Indices())

	e.Release(first.Ref())
	assert.Equal(t, 1, e.Collect())
	_, err = e.Acquire(first.Ref())
	assert.ErrorIs(t, err, common.ErrUnknownNode)
}

func TestBoundedReleaseQueueEvictsOldest(t *testing.T) {
	device := gpu.NewMemoryDevice()
	e := NewEngine(device, WithMaxPendingReleases(2))

	for range 5 {
		_, err := e.Synthesize("a", quad())
		require.NoError(t, err)
	}

	stats := e.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, uint64(2), stats.Evicted)
	assert.Equal(t, 3, e.Live("a"))
	assert.Equal(t, 6, device.Stats().LiveBuffers)
}

func TestExhaustionFlushesPendingAndRetries(t *testing.T) {
	size := uint64(4*model.GPUVertexStride + 6*4)
	device := gpu.NewMemoryDevice(gpu.WithBudget(2 * size))
	e := NewEngine(device)

	_, err := e.Synthesize("a", quad())
	require.NoError(t, err)
	_, err = e.Synthesize("a", quad())
	require.NoError(t, err)

	// the budget only fits two generations, so the third must reclaim the queued one
	m, err := e.Synthesize("a", quad())
	require.NoError(t, err)
	assert.Equal(t, model.Generation(3), m.Generation())
	assert.Equal(t, 2, e.Live("a"))
}

func TestExhaustionKeepsPriorState(t *testing.T) {
	size := uint64(4*model.GPUVertexStride + 6*4)
	device := gpu.NewMemoryDevice(gpu.WithBudget(size))
	e := NewEngine(device)

	_, err := e.Synthesize("a", quad())
	require.NoError(t, err)

	_, err = e.Synthesize("b", quad())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrResourceExhaustion)
	assert.Zero(t, e.CurrentGeneration("b"))
	assert.Equal(t, model.Generation(1), e.CurrentGeneration("a"))
	assert.Equal(t, 2, device.Stats().LiveBuffers)
	assert.Equal(t, uint64(1), e.Stats().Exhausted)
}

func TestRemoveIsIdempotentAndKeepsCounter(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())
	_, err := e.Synthesize("a", quad())
	require.NoError(t, err)

	assert.True(t, e.Remove("a"))
	assert.False(t, e.Remove("a"))
	assert.Zero(t, e.References("a"))
	e.Collect()
	assert.Zero(t, e.Live("a"))

	m, err := e.Synthesize("a", quad())
	require.NoError(t, err)
	assert.Equal(t, model.Generation(2), m.Generation())
}

func TestIfCurrent(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())
	first, err := e.Synthesize("a", quad())
	require.NoError(t, err)

	ran := e.IfCurrent(first.Ref(), func(m *SynthesizedMesh) {
		assert.Same(t, first, m)
	})
	assert.True(t, ran)

	_, err = e.Synthesize("a", quad())
	require.NoError(t, err)
	assert.False(t, e.IfCurrent(first.Ref(), func(*SynthesizedMesh) { t.Fatal("stale generation ran") }))
	assert.False(t, e.IfCurrent(model.MeshRef{Node: "missing"}, func(*SynthesizedMesh) {}))
}

func TestConcurrentSynthesisOfDistinctNodes(t *testing.T) {
	e := NewEngine(gpu.NewMemoryDevice())
	ids := []model.NodeID{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := e.Synthesize(id, quad())
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, model.Generation(10), e.CurrentGeneration(id))
	}
	e.Close()
	assert.Zero(t, e.Stats().Live)
}
