package bake

import (
	"github.com/Carmen-Shannon/oxy-xrvis/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultWorkers is the bake worker pool size when none is configured.
	DefaultWorkers = 2
	// DefaultQueueSize is the bake task queue depth when none is configured.
	DefaultQueueSize = 64
	// maxTerminalRecords bounds how many unpolled terminal jobs are remembered.
	maxTerminalRecords = 256
)

// CoordinatorBuilderOption is a functional option for configuring a Coordinator via NewCoordinator.
type CoordinatorBuilderOption func(*coordinator)

// WithWorkers is an option builder that sets the bake worker pool size.
//
// Parameters:
//   - n: the number of concurrent bakes
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the worker count to a coordinator
func WithWorkers(n int) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.workers = max(n, 1)
	}
}

// WithQueueSize is an option builder that sets the bake task queue depth.
// Requests beyond it are handed to the pool from a goroutine so RequestBake never blocks.
//
// Parameters:
//   - n: the queue depth
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the queue depth to a coordinator
func WithQueueSize(n int) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.queueSize = max(n, 1)
	}
}

// WithBakeFunc is an option builder that replaces the bake kernel.
//
// Parameters:
//   - fn: the kernel to run for each job
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the kernel to a coordinator
func WithBakeFunc(fn BakeFunc) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.bake = fn
	}
}

// WithLights is an option builder that sets the static lights every bake integrates.
//
// Parameters:
//   - lights: the light sources
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the lights to a coordinator
func WithLights(lights ...light.Light) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.lights = append([]light.Light(nil), lights...)
	}
}

// WithAmbient is an option builder that sets the constant ambient irradiance.
//
// Parameters:
//   - ambient: the linear RGB ambient term
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the ambient term to a coordinator
func WithAmbient(ambient mgl32.Vec3) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.ambient = ambient
	}
}

// WithNotify is an option builder that registers a callback invoked for every completion.
// The callback runs on a bake worker or on the goroutine that cancelled the job, never
// under a coordinator lock. Completions are queued for Drain regardless.
//
// Parameters:
//   - fn: the completion callback
//
// Returns:
//   - CoordinatorBuilderOption: a function that applies the callback to a coordinator
func WithNotify(fn func(Completion)) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.notify = fn
	}
}
