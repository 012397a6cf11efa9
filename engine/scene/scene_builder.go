package scene

import "runtime"

// ControllerBuilderOption is a functional option for configuring a Controller.
// Use the With* functions to create options.
type ControllerBuilderOption func(c *controller)

// WithAutoBake requests a bake after every successful synthesis, using options as the bake settings.
//
// Parameters:
//   - options: the opaque bake option object, nil for defaults
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithAutoBake(options map[string]any) ControllerBuilderOption {
	return func(c *controller) {
		c.autoBake = true
		c.bakeOptions = options
	}
}

// WithBakeOptions sets the bake options used when RequestBake is called with nil options.
//
// Parameters:
//   - options: the opaque bake option object
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithBakeOptions(options map[string]any) ControllerBuilderOption {
	return func(c *controller) {
		c.bakeOptions = options
	}
}

// WithParallelism bounds how many nodes ApplyBatch synthesizes at once. Defaults to GOMAXPROCS.
//
// Parameters:
//   - n: the maximum concurrent syntheses
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithParallelism(n int) ControllerBuilderOption {
	return func(c *controller) {
		if n > 0 {
			c.parallelism = int64(n)
		}
	}
}

func defaultParallelism() int64 {
	return int64(runtime.GOMAXPROCS(0))
}
