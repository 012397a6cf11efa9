// Package gpu abstracts the device that owns mesh buffers and lightmap textures.
// Two devices are provided: an accounting in-memory device for headless runs and tests,
// and a WebGPU device backed by a headless adapter.
package gpu

import (
	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Buffer is a device-resident buffer. Release is idempotent.
type Buffer interface {
	// Label retrieves the debug label given at creation.
	//
	// Returns:
	//   - string: the buffer label
	Label() string

	// Size retrieves the allocation size in bytes.
	//
	// Returns:
	//   - uint64: the buffer size
	Size() uint64

	// Usage retrieves the usage flags given at creation.
	//
	// Returns:
	//   - wgpu.BufferUsage: the usage flags
	Usage() wgpu.BufferUsage

	// Release frees the buffer and returns its bytes to the device budget.
	// Calling Release more than once has no further effect.
	Release()
}

// Texture is a device-resident 2D RGBA8 texture. Release is idempotent.
type Texture interface {
	// Label retrieves the debug label given at creation.
	//
	// Returns:
	//   - string: the texture label
	Label() string

	// Width retrieves the texture width in texels.
	//
	// Returns:
	//   - uint32: the width
	Width() uint32

	// Height retrieves the texture height in texels.
	//
	// Returns:
	//   - uint32: the height
	Height() uint32

	// Release frees the texture and returns its bytes to the device budget.
	// Calling Release more than once has no further effect.
	Release()
}

// Stats is a snapshot of a device's live allocations.
type Stats struct {
	LiveBuffers  int
	LiveTextures int
	BytesInUse   uint64
	Allocations  uint64
	Releases     uint64
}

// Device creates buffers and textures. Implementations are safe for concurrent use.
type Device interface {
	// CreateBuffer allocates a buffer and uploads data into it.
	// Fails with common.ErrResourceExhaustion when the device's memory or handle limit is reached.
	//
	// Parameters:
	//   - label: the debug label for the buffer
	//   - usage: the usage flags, CopyDst is added automatically
	//   - data: the initial contents, which also determine the size
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: error if the buffer could not be created
	CreateBuffer(label string, usage wgpu.BufferUsage, data []byte) (Buffer, error)

	// CreateTexture allocates an RGBA8 texture and uploads the staged pixels into it.
	// Fails with common.ErrResourceExhaustion when the device's memory or handle limit is reached.
	//
	// Parameters:
	//   - label: the debug label for the texture
	//   - data: the staged pixels and dimensions
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: error if the texture could not be created
	CreateTexture(label string, data common.TextureStagingData) (Texture, error)

	// Stats returns a snapshot of live allocations.
	//
	// Returns:
	//   - Stats: the allocation counters
	Stats() Stats

	// Release tears down the device. Resources still alive become invalid.
	Release()
}
