package gpu

import (
	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// memoryDevice keeps resources in host memory and enforces the configured limits.
type memoryDevice struct {
	opts deviceOptions
	acct *accountant
}

type memoryBuffer struct {
	handle
	usage wgpu.BufferUsage
	data  []byte
}

type memoryTexture struct {
	handle
	width, height uint32
	pixels        []byte
}

var _ Device = &memoryDevice{}
var _ Buffer = &memoryBuffer{}
var _ Texture = &memoryTexture{}

// NewMemoryDevice creates a Device whose resources live in host memory.
// It honours WithBudget and WithMaxHandles exactly as a GPU would run out of memory or handles.
//
// Parameters:
//   - options: a variadic list of DeviceBuilderOption functions to configure the device
//
// Returns:
//   - Device: the in-memory device
func NewMemoryDevice(options ...DeviceBuilderOption) Device {
	o := buildOptions(options)
	return &memoryDevice{opts: o, acct: newAccountant(o)}
}

func (d *memoryDevice) CreateBuffer(label string, usage wgpu.BufferUsage, data []byte) (Buffer, error) {
	size := uint64(len(data))
	if err := d.acct.reserve(label, size, false); err != nil {
		return nil, err
	}
	return &memoryBuffer{
		handle: handle{label: label, size: size, acct: d.acct},
		usage:  usage | wgpu.BufferUsageCopyDst,
		data:   append([]byte(nil), data...),
	}, nil
}

func (d *memoryDevice) CreateTexture(label string, data common.TextureStagingData) (Texture, error) {
	if err := validateStaging(label, data); err != nil {
		return nil, err
	}
	size := uint64(len(data.Pixels))
	if err := d.acct.reserve(label, size, true); err != nil {
		return nil, err
	}
	return &memoryTexture{
		handle: handle{label: label, size: size, texture: true, acct: d.acct},
		width:  data.Width,
		height: data.Height,
		pixels: append([]byte(nil), data.Pixels...),
	}, nil
}

func (d *memoryDevice) Stats() Stats {
	return d.acct.snapshot()
}

func (d *memoryDevice) Release() {}

func (b *memoryBuffer) Label() string           { return b.label }
func (b *memoryBuffer) Size() uint64            { return b.size }
func (b *memoryBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *memoryBuffer) Release()                { b.release() }

func (t *memoryTexture) Label() string  { return t.label }
func (t *memoryTexture) Width() uint32  { return t.width }
func (t *memoryTexture) Height() uint32 { return t.height }
func (t *memoryTexture) Release()       { t.release() }
