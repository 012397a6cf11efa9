package renderer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/bake"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad() *model.MeshDescriptor {
	return &model.MeshDescriptor{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
		UVs:       [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []uint32{0, 2, 1, 0, 3, 2},
		Sections: []model.MeshSection{
			{FirstIndex: 0, IndexCount: 3, MaterialSlot: 0},
			{FirstIndex: 3, IndexCount: 3, MaterialSlot: 1},
		},
	}
}

type fixture struct {
	device gpu.Device
	synth  synthesis.Engine
	coord  bake.Coordinator
	ext    Extension
	rec    Recorder
}

func newFixture(t *testing.T, recOptions ...RecorderBuilderOption) *fixture {
	t.Helper()
	device := gpu.NewMemoryDevice()
	synth := synthesis.NewEngine(device)
	coord := bake.NewCoordinator(synth, device, bake.WithWorkers(1))
	f := &fixture{
		device: device,
		synth:  synth,
		coord:  coord,
		ext:    NewExtension(synth),
		rec:    NewRecorder(recOptions...),
	}
	t.Cleanup(func() {
		f.rec.Flush(true)
		f.ext.Close()
		coord.Close()
	})
	return f
}

func (f *fixture) synthesize(t *testing.T, id model.NodeID) model.MeshRef {
	t.Helper()
	m, err := f.synth.Synthesize(id, quad())
	require.NoError(t, err)
	return m.Ref()
}

func (f *fixture) bake(t *testing.T, ref model.MeshRef) *bake.Lightmap {
	t.Helper()
	h, err := f.coord.RequestBake(ref, mgl32.Ident4(), map[string]any{"resolution": 8})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, active := f.coord.ActiveJob(ref.Node)
		return !active
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, bake.StatusSucceeded, f.coord.PollStatus(h))
	lm, ok := f.coord.Lightmap(ref.Node)
	require.True(t, ok)
	return lm
}

func (f *fixture) frame(t *testing.T) (*RecordedFrame, FrameReport) {
	t.Helper()
	fg, err := f.rec.NextFrame(context.Background())
	require.NoError(t, err)
	report := f.ext.RegisterPass(fg)
	require.NoError(t, f.rec.Submit(fg))
	return fg.(*RecordedFrame), report
}

func TestUnbakedNodeDrawsUnlit(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a")
	mats := []model.MaterialDescriptor{{Name: "red", BaseColor: [4]float32{1, 0, 0, 1}}}
	require.NoError(t, f.ext.Bind(ref, mgl32.Ident4(), mats))

	frame, report := f.frame(t)
	assert.Equal(t, 1, report.Unlit)
	assert.Zero(t, report.Lit)

	pass, ok := frame.Pass("a")
	require.True(t, ok)
	assert.Equal(t, PassUnlit, pass.Path)
	assert.Nil(t, pass.Lightmap)
	assert.Equal(t, ref, pass.Mesh.Ref())
	require.Len(t, pass.Draws, 2)
	assert.Equal(t, "red", pass.Draws[0].Material.Name)
	assert.Equal(t, model.DefaultMaterial(), pass.Draws[1].Material)
}

func TestMatchingLightmapDrawsLit(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(ref, mgl32.Ident4(), nil))

	lm := f.bake(t, ref)
	require.NoError(t, f.ext.AttachLightmap(lm))
	lm.Release()

	b, ok := f.ext.Binding("a")
	require.True(t, ok)
	assert.True(t, b.Lit())

	frame, report := f.frame(t)
	assert.Equal(t, 1, report.Lit)
	pass, ok := frame.Pass("a")
	require.True(t, ok)
	assert.Equal(t, PassLit, pass.Path)
	assert.Equal(t, ref.Generation, pass.Lightmap.Generation())
}

func TestNewGenerationDropsLightmap(t *testing.T) {
	f := newFixture(t)
	gen1 := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(gen1, mgl32.Ident4(), nil))
	lm := f.bake(t, gen1)
	defer lm.Release()
	require.NoError(t, f.ext.AttachLightmap(lm))

	gen2 := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(gen2, mgl32.Ident4(), nil))

	err := f.ext.AttachLightmap(lm)
	assert.ErrorIs(t, err, common.ErrSuperseded)

	frame, report := f.frame(t)
	assert.Equal(t, 1, report.Unlit)
	pass, ok := frame.Pass("a")
	require.True(t, ok)
	assert.Equal(t, PassUnlit, pass.Path)
	assert.Equal(t, gen2, pass.Mesh.Ref())
}

func TestBindRejectsOlderGeneration(t *testing.T) {
	f := newFixture(t)
	gen1 := f.synthesize(t, "a")
	gen2 := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(gen2, mgl32.Ident4(), nil))

	err := f.ext.Bind(gen1, mgl32.Ident4(), nil)
	assert.ErrorIs(t, err, common.ErrSuperseded)
	b, ok := f.ext.Binding("a")
	require.True(t, ok)
	assert.Equal(t, gen2, b.Ref)
}

func TestAttachLightmapUnknownNode(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a")
	lm := f.bake(t, ref)
	defer lm.Release()

	assert.ErrorIs(t, f.ext.AttachLightmap(lm), common.ErrUnknownNode)
}

func TestSuspendedNodeIsSkippedUntilRebound(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(ref, mgl32.Ident4(), nil))

	reason := errors.New("bad geometry")
	f.ext.Suspend("a", reason)
	frame, report := f.frame(t)
	assert.Zero(t, report.Passes())
	require.Len(t, frame.Skipped(), 1)
	assert.ErrorIs(t, frame.Skipped()[0].Reason, reason)

	require.NoError(t, f.ext.Bind(ref, mgl32.Ident4(), nil))
	_, report = f.frame(t)
	assert.Equal(t, 1, report.Unlit)
}

func TestRejectedPassIsSkipped(t *testing.T) {
	pipelineErr := errors.New("pipeline creation failed")
	f := newFixture(t, WithPassFailure(func(p Pass) error {
		if p.Node == "b" {
			return pipelineErr
		}
		return nil
	}))
	require.NoError(t, f.ext.Bind(f.synthesize(t, "a"), mgl32.Ident4(), nil))
	require.NoError(t, f.ext.Bind(f.synthesize(t, "b"), mgl32.Ident4(), nil))

	frame, report := f.frame(t)
	assert.Equal(t, 1, report.Unlit)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, model.NodeID("b"), report.Skipped[0].Node)
	assert.ErrorIs(t, report.Skipped[0].Reason, pipelineErr)
	assert.Len(t, frame.Passes(), 1)
}

func TestFrustumCulling(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	f := newFixture(t, WithView(proj.Mul4(view)))

	require.NoError(t, f.ext.Bind(f.synthesize(t, "visible"), mgl32.Ident4(), nil))
	require.NoError(t, f.ext.Bind(f.synthesize(t, "behind"), mgl32.Translate3D(0, 0, 50), nil))

	frame, report := f.frame(t)
	assert.Equal(t, 1, report.Culled)
	assert.Equal(t, 1, report.Unlit)
	_, ok := frame.Pass("visible")
	assert.True(t, ok)
	assert.Equal(t, 1, f.synth.References("behind"))
}

func TestFramePinsReleasedOnRetire(t *testing.T) {
	f := newFixture(t, WithFramesInFlight(1))
	gen1 := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(gen1, mgl32.Ident4(), nil))

	first, _ := f.frame(t)
	assert.False(t, first.Retired())
	assert.Equal(t, 2, f.synth.References("a"))

	gen2 := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(gen2, mgl32.Ident4(), nil))
	f.synth.Collect()
	assert.Equal(t, 2, f.synth.Live("a"), "in-flight generation must stay resident")

	second, _ := f.frame(t)
	assert.True(t, first.Retired())
	assert.False(t, second.Retired())
	f.synth.Collect()
	assert.Equal(t, 1, f.synth.Live("a"))

	f.rec.Flush(false)
	assert.True(t, second.Retired())
	assert.Equal(t, 1, f.synth.References("a"))
}

func TestUnbindReleasesLightmapAfterNextFrame(t *testing.T) {
	f := newFixture(t)
	ref := f.synthesize(t, "a")
	require.NoError(t, f.ext.Bind(ref, mgl32.Ident4(), nil))
	lm := f.bake(t, ref)
	require.NoError(t, f.ext.AttachLightmap(lm))
	lm.Release()
	f.coord.Forget("a")
	assert.Equal(t, 1, f.device.Stats().LiveTextures)

	assert.True(t, f.ext.Unbind("a"))
	assert.False(t, f.ext.Unbind("a"))
	assert.Zero(t, f.ext.Len())

	_, report := f.frame(t)
	assert.Zero(t, report.Passes())
	assert.Zero(t, f.device.Stats().LiveTextures)
}

func TestRecorderRejectsForeignFrames(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()
	fg, err := a.NextFrame(context.Background())
	require.NoError(t, err)
	assert.Error(t, b.Submit(fg))

	a.Flush(true)
	_, err = a.NextFrame(context.Background())
	assert.ErrorIs(t, err, ErrRecorderClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.NextFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
