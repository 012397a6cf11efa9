package synthesis

// DefaultMaxPendingReleases bounds the deferred release queue when no option overrides it.
const DefaultMaxPendingReleases = 64

// DefaultDegenerateEpsilon is the triangle area at or below which a triangle is dropped.
const DefaultDegenerateEpsilon = 1e-10

// EngineBuilderOption is a functional option for configuring an Engine via NewEngine.
type EngineBuilderOption func(*engine)

// WithMaxPendingReleases is an option builder that bounds the deferred release queue.
// When more unreferenced generations are waiting than this, the oldest are released
// immediately instead of at the next Collect. Values below 1 are treated as 1.
//
// Parameters:
//   - n: the queue bound
//
// Returns:
//   - EngineBuilderOption: a function that applies the bound to an engine
func WithMaxPendingReleases(n int) EngineBuilderOption {
	return func(e *engine) {
		e.maxPending = max(n, 1)
	}
}

// WithDegenerateEpsilon is an option builder that sets the area threshold for dropping triangles.
//
// Parameters:
//   - epsilon: the area threshold in squared object units
//
// Returns:
//   - EngineBuilderOption: a function that applies the threshold to an engine
func WithDegenerateEpsilon(epsilon float32) EngineBuilderOption {
	return func(e *engine) {
		e.epsilon = epsilon
	}
}
