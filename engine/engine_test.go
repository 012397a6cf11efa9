package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() *model.MeshDescriptor {
	return &model.MeshDescriptor{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []uint32{0, 2, 1, 0, 3, 2},
	}
}

func runAsync(e Engine) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	return done
}

func TestEngineImportsBakesAndRenders(t *testing.T) {
	device := gpu.NewMemoryDevice()
	e := NewEngine(
		WithDevice(device),
		WithTickRate(200),
		WithRenderFrameLimit(500),
		WithControllerOptions(scene.WithAutoBake(map[string]any{"resolution": 4, "sampleCount": 1})),
	)
	done := runAsync(e)

	require.NoError(t, e.Submit(context.Background(), model.NodeAdded("a", quad(), mgl32.Ident4())))
	require.NoError(t, e.Submit(context.Background(), model.NodeAdded("b", quad(), mgl32.Translate3D(2, 0, 0))))

	require.Eventually(t, func() bool {
		return e.Controller().NodeState("a") == scene.StateRendered &&
			e.Controller().NodeState("b") == scene.StateRendered
	}, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return e.LastReport().Lit == 2
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Submit(context.Background(), model.NodeRemoved("a")))
	require.Eventually(t, func() bool {
		r := e.LastReport()
		return r.Passes() == 1 && e.Controller().NodeState("a") == scene.StateUnknown
	}, 5*time.Second, 5*time.Millisecond)

	e.Quit()
	e.Quit()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.Zero(t, e.ImportErrors())
	assert.Positive(t, e.Frames())
	stats := device.Stats()
	assert.Zero(t, stats.LiveBuffers)
	assert.Zero(t, stats.LiveTextures)
	assert.ErrorIs(t, e.Submit(context.Background(), model.NodeRemoved("b")), ErrStopped)
}

func TestEngineStopsAfterMaxFrames(t *testing.T) {
	var reports []renderer.FrameReport
	e := NewEngine(WithMaxFrames(5))
	e.SetRenderCallback(func(r renderer.FrameReport) {
		reports = append(reports, r)
	})

	done := runAsync(e)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, uint64(5), e.Frames())
	require.Len(t, reports, 5)
	assert.Equal(t, uint64(5), reports[4].Frame)
}

func TestEngineCountsImportErrors(t *testing.T) {
	e := NewEngine(WithRenderFrameLimit(200))
	done := runAsync(e)
	defer func() {
		e.Quit()
		<-done
	}()

	bad := quad()
	bad.Indices = []uint32{0, 1, 7}
	require.NoError(t, e.Submit(context.Background(), model.NodeAdded("bad", bad, mgl32.Ident4())))
	require.Eventually(t, func() bool {
		return e.ImportErrors() == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, scene.StateImported, e.Controller().NodeState("bad"))
}
