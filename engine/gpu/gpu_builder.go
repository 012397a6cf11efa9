package gpu

// deviceOptions holds the settings shared by every Device implementation.
type deviceOptions struct {
	label         string
	budget        uint64
	maxHandles    int
	forceFallback bool
}

// DeviceBuilderOption is a functional option for configuring a Device via NewMemoryDevice or NewWGPUDevice.
type DeviceBuilderOption func(*deviceOptions)

// WithLabel is an option builder that sets the device label used as a prefix in resource labels.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - DeviceBuilderOption: a function that applies the label option to a device
func WithLabel(label string) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.label = label
	}
}

// WithBudget is an option builder that caps the total bytes of live buffers and textures.
// Zero means unlimited.
//
// Parameters:
//   - bytes: the memory budget in bytes
//
// Returns:
//   - DeviceBuilderOption: a function that applies the budget option to a device
func WithBudget(bytes uint64) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.budget = bytes
	}
}

// WithMaxHandles is an option builder that caps the number of live buffers and textures.
// Zero means unlimited.
//
// Parameters:
//   - n: the handle limit
//
// Returns:
//   - DeviceBuilderOption: a function that applies the handle limit option to a device
func WithMaxHandles(n int) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.maxHandles = n
	}
}

// WithFallbackAdapter is an option builder that forces the WebGPU software adapter.
// Ignored by the memory device.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the fallback option to a device
func WithFallbackAdapter(force bool) DeviceBuilderOption {
	return func(o *deviceOptions) {
		o.forceFallback = force
	}
}

func buildOptions(options []DeviceBuilderOption) deviceOptions {
	o := deviceOptions{label: "xrvis"}
	for _, opt := range options {
		opt(&o)
	}
	return o
}
