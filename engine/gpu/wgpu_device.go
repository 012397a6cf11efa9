package gpu

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// wgpuDevice uploads resources through a headless WebGPU adapter. No surface is created;
// presenting frames is the host's concern.
type wgpuDevice struct {
	mu       sync.Mutex
	opts     deviceOptions
	acct     *accountant
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

type wgpuBuffer struct {
	handle
	usage  wgpu.BufferUsage
	buffer *wgpu.Buffer
}

type wgpuTexture struct {
	handle
	width, height uint32
	texture       *wgpu.Texture
	view          *wgpu.TextureView
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice requests a headless adapter and device.
//
// Parameters:
//   - options: a variadic list of DeviceBuilderOption functions to configure the device
//
// Returns:
//   - Device: the WebGPU device
//   - error: error if no adapter or device is available
func NewWGPUDevice(options ...DeviceBuilderOption) (Device, error) {
	o := buildOptions(options)
	d := &wgpuDevice{
		opts:     o,
		acct:     newAccountant(o),
		instance: wgpu.CreateInstance(nil),
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: o.forceFallback,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: o.label + " Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		d.adapter.Release()
		d.instance.Release()
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	logger.L().Info("webgpu device ready", zap.String("label", o.label), zap.Bool("fallback", o.forceFallback))
	return d, nil
}

func (d *wgpuDevice) CreateBuffer(label string, usage wgpu.BufferUsage, data []byte) (Buffer, error) {
	size := uint64(len(data))
	if err := d.acct.reserve(label, size, false); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            d.opts.label + " " + label,
		Size:             size,
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		d.acct.free(size, false)
		return nil, fmt.Errorf("gpu: create buffer %s: %v: %w", label, err, common.ErrResourceExhaustion)
	}
	if size > 0 {
		d.queue.WriteBuffer(buf, 0, data)
	}

	b := &wgpuBuffer{
		handle: handle{label: label, size: size, acct: d.acct},
		usage:  usage | wgpu.BufferUsageCopyDst,
		buffer: buf,
	}
	b.onFree = buf.Release
	return b, nil
}

func (d *wgpuDevice) CreateTexture(label string, data common.TextureStagingData) (Texture, error) {
	if err := validateStaging(label, data); err != nil {
		return nil, err
	}
	size := uint64(len(data.Pixels))
	if err := d.acct.reserve(label, size, true); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	extent := wgpu.Extent3D{
		Width:              data.Width,
		Height:             data.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         d.opts.label + " " + label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		d.acct.free(size, true)
		return nil, fmt.Errorf("gpu: create texture %s: %v: %w", label, err, common.ErrResourceExhaustion)
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * 4,
			RowsPerImage: data.Height,
		},
		&extent,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		d.acct.free(size, true)
		return nil, fmt.Errorf("gpu: create view %s: %w", label, err)
	}

	t := &wgpuTexture{
		handle:  handle{label: label, size: size, texture: true, acct: d.acct},
		width:   data.Width,
		height:  data.Height,
		texture: tex,
		view:    view,
	}
	t.onFree = func() {
		view.Release()
		tex.Release()
	}
	return t, nil
}

func (d *wgpuDevice) Stats() Stats {
	return d.acct.snapshot()
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	d.device = nil
}

func (b *wgpuBuffer) Label() string           { return b.label }
func (b *wgpuBuffer) Size() uint64            { return b.size }
func (b *wgpuBuffer) Usage() wgpu.BufferUsage { return b.usage }
func (b *wgpuBuffer) Release()                { b.release() }

// Raw exposes the underlying WebGPU buffer for hosts that record their own passes.
func (b *wgpuBuffer) Raw() *wgpu.Buffer { return b.buffer }

func (t *wgpuTexture) Label() string  { return t.label }
func (t *wgpuTexture) Width() uint32  { return t.width }
func (t *wgpuTexture) Height() uint32 { return t.height }
func (t *wgpuTexture) Release()       { t.release() }

// View exposes the sampled view of the lightmap for hosts that record their own passes.
func (t *wgpuTexture) View() *wgpu.TextureView { return t.view }
