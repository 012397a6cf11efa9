package gpu

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeviceBudget(t *testing.T) {
	d := NewMemoryDevice(WithBudget(100))

	a, err := d.CreateBuffer("a", wgpu.BufferUsageVertex, make([]byte, 60))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), a.Size())
	assert.NotZero(t, a.Usage()&wgpu.BufferUsageCopyDst)

	_, err = d.CreateBuffer("b", wgpu.BufferUsageIndex, make([]byte, 41))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrResourceExhaustion))

	a.Release()
	a.Release()
	stats := d.Stats()
	assert.Zero(t, stats.BytesInUse)
	assert.Zero(t, stats.LiveBuffers)
	assert.Equal(t, uint64(1), stats.Releases)

	_, err = d.CreateBuffer("b", wgpu.BufferUsageIndex, make([]byte, 41))
	require.NoError(t, err)
}

func TestMemoryDeviceHandleLimit(t *testing.T) {
	d := NewMemoryDevice(WithMaxHandles(2))

	_, err := d.CreateBuffer("v", wgpu.BufferUsageVertex, []byte{1})
	require.NoError(t, err)
	tex, err := d.CreateTexture("lm", common.TextureStagingData{Pixels: make([]byte, 16), Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tex.Width())

	_, err = d.CreateBuffer("i", wgpu.BufferUsageIndex, []byte{1})
	assert.ErrorIs(t, err, common.ErrResourceExhaustion)

	tex.Release()
	assert.Equal(t, 0, d.Stats().LiveTextures)
	_, err = d.CreateBuffer("i", wgpu.BufferUsageIndex, []byte{1})
	assert.NoError(t, err)
}

func TestMemoryDeviceRejectsBadStaging(t *testing.T) {
	d := NewMemoryDevice()
	tests := []struct {
		name string
		data common.TextureStagingData
	}{
		{"empty", common.TextureStagingData{}},
		{"short", common.TextureStagingData{Pixels: make([]byte, 15), Width: 2, Height: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateTexture("lm", tt.data)
			require.Error(t, err)
			assert.False(t, errors.Is(err, common.ErrResourceExhaustion))
		})
	}
	assert.Zero(t, d.Stats().Allocations)
}

func TestMemoryBufferCopiesData(t *testing.T) {
	d := NewMemoryDevice()
	src := []byte{1, 2, 3}
	b, err := d.CreateBuffer("v", wgpu.BufferUsageVertex, src)
	require.NoError(t, err)
	src[0] = 9
	assert.Equal(t, byte(1), b.(*memoryBuffer).data[0])
}
