package bake

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadInput() Input {
	up := [3]float32{0, 1, 0}
	return Input{
		Ref: model.MeshRef{Node: "floor", Generation: 1},
		Vertices: []model.GPUVertex{
			{Position: [3]float32{0, 0, 0}, Normal: up, UV: [2]float32{0, 0}},
			{Position: [3]float32{1, 0, 0}, Normal: up, UV: [2]float32{1, 0}},
			{Position: [3]float32{1, 0, 1}, Normal: up, UV: [2]float32{1, 1}},
			{Position: [3]float32{0, 0, 1}, Normal: up, UV: [2]float32{0, 1}},
		},
		Indices:   []uint32{0, 2, 1, 0, 3, 2},
		HasUVs:    true,
		Transform: mgl32.Ident4(),
		Settings:  Settings{Resolution: 8, SampleCount: 2, Denoise: false},
		Lights:    []light.Light{light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0))},
		Ambient:   mgl32.Vec3{0.1, 0.1, 0.1},
	}
}

func TestBakeUniformSun(t *testing.T) {
	var last float32
	ir, err := Bake(context.Background(), quadInput(), func(p float32) { last = p })
	require.NoError(t, err)

	assert.Equal(t, uint32(8), ir.Size)
	assert.Equal(t, float32(1), last)
	for i, c := range ir.Texels {
		require.True(t, ir.Covered[i], "texel %d uncovered", i)
		assert.InDelta(t, 1.1, c[0], 1e-4)
	}
}

func TestBakeIsDeterministic(t *testing.T) {
	in := quadInput()
	in.Lights = []light.Light{light.NewLight(light.LightTypePoint, light.WithPosition(0.2, 1, 0.7), light.WithRange(4))}
	in.Settings.Denoise = true

	a, err := Bake(context.Background(), in, nil)
	require.NoError(t, err)
	b, err := Bake(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Texels, b.Texels)
	assert.Greater(t, a.At(1, 5)[0], a.At(7, 0)[0])
}

func TestBakeScalesWithTransform(t *testing.T) {
	in := quadInput()
	in.Transform = mgl32.Scale3D(2, 1, 2)
	ir, err := Bake(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), ir.Size)
}

func TestBakeFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"no uvs", func(in *Input) { in.HasUVs = false }},
		{"collapsed uvs", func(in *Input) {
			for i := range in.Vertices {
				in.Vertices[i].UV = [2]float32{0.5, 0.5}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := quadInput()
			tt.mutate(&in)
			_, err := Bake(context.Background(), in, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrBakeFailure))
		})
	}
}

func TestBakeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Bake(ctx, quadInput(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStagingEncodesCoverage(t *testing.T) {
	ir := &Irradiance{
		Size:    2,
		Texels:  []mgl32.Vec3{{0, 0, 0}, {1, 1, 1}, {100, 100, 100}, {1, 1, 1}},
		Covered: []bool{true, true, true, false},
	}
	s := Staging(ir)
	require.Len(t, s.Pixels, 16)
	assert.Equal(t, byte(0), s.Pixels[0])
	assert.Equal(t, byte(255), s.Pixels[3])
	assert.Greater(t, s.Pixels[8], s.Pixels[4])
	assert.Equal(t, byte(0), s.Pixels[15])
}
