package renderer

import (
	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ExtensionBuilderOption is a functional option for configuring an Extension via NewExtension.
type ExtensionBuilderOption func(*extension)

// WithCulling is an option builder that enables or disables frustum culling.
// Culling is on by default and only applies when the frame graph provides a view.
//
// Parameters:
//   - enabled: true to cull nodes outside the view frustum
//
// Returns:
//   - ExtensionBuilderOption: a function that applies the culling option to an extension
func WithCulling(enabled bool) ExtensionBuilderOption {
	return func(e *extension) {
		e.culling = enabled
	}
}

// RecorderBuilderOption is a functional option for configuring a Recorder via NewRecorder.
type RecorderBuilderOption func(*recorder)

// WithView is an option builder that sets the culling view of recorded frames.
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - RecorderBuilderOption: a function that applies the view option to a recorder
func WithView(viewProj mgl32.Mat4) RecorderBuilderOption {
	return func(r *recorder) {
		f := common.ExtractFrustumFromMatrix(viewProj)
		r.view = &f
	}
}

// WithFramesInFlight is an option builder that sets how many submitted frames stay alive.
// Values below 1 are ignored.
//
// Parameters:
//   - n: the number of frames in flight
//
// Returns:
//   - RecorderBuilderOption: a function that applies the in-flight option to a recorder
func WithFramesInFlight(n int) RecorderBuilderOption {
	return func(r *recorder) {
		if n > 0 {
			r.framesInFlight = n
		}
	}
}

// WithPassFailure is an option builder that installs a hook rejecting passes, standing in for
// pipeline creation failures in a real frame graph.
//
// Parameters:
//   - fn: returns a non-nil error to reject the pass
//
// Returns:
//   - RecorderBuilderOption: a function that applies the hook to a recorder
func WithPassFailure(fn func(Pass) error) RecorderBuilderOption {
	return func(r *recorder) {
		r.passFailure = fn
	}
}
