// Package camera holds the viewer used for frustum culling and pushes its view-projection to
// anything that culls against it, such as the frame recorder.
package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Viewer receives the camera's view-projection whenever it changes.
type Viewer interface {
	SetView(viewProj mgl32.Mat4)
}

type cameraImpl struct {
	mu sync.Mutex

	eye    mgl32.Vec3
	target mgl32.Vec3
	up     mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix           mgl32.Mat4
	projectionMatrix     mgl32.Mat4
	viewProjectionMatrix mgl32.Mat4

	viewers []Viewer
}

// Camera is a perspective viewer looking from an eye position at a target.
// A camera whose eye is zero or equal to its target is disabled and culls nothing.
type Camera interface {
	// Eye returns the camera position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Eye() mgl32.Vec3

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - mgl32.Vec3: the target position
	Target() mgl32.Vec3

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Enabled reports whether the camera has a usable view.
	//
	// Returns:
	//   - bool: false when the eye is zero or equals the target
	Enabled() bool

	// ViewMatrix returns the current view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjection returns the combined projection * view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view-projection matrix
	//   - bool: false when the camera is disabled
	ViewProjection() (mgl32.Mat4, bool)

	// LookAt moves the camera and recomputes its matrices.
	//
	// Parameters:
	//   - eye: the new camera position
	//   - target: the new look-at point
	LookAt(eye, target mgl32.Vec3)

	// SetAspect sets the aspect ratio and recomputes the projection.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// Attach registers a viewer. It receives the current view immediately when the camera is
	// enabled and again after every change.
	//
	// Parameters:
	//   - v: the viewer to notify
	Attach(v Viewer)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera. Without WithEye the camera is disabled.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:     mgl32.Vec3{0, 1, 0},
		fov:    mgl32.DegToRad(45),
		aspect: 1,
		near:   0.1,
		far:    100,
	}
	for _, option := range options {
		option(c)
	}
	if c.up == (mgl32.Vec3{}) {
		c.up = mgl32.Vec3{0, 1, 0}
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled()
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjection() (mgl32.Mat4, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix, c.enabled()
}

func (c *cameraImpl) LookAt(eye, target mgl32.Vec3) {
	c.mu.Lock()
	c.eye, c.target = eye, target
	c.updateMatrices()
	vp, viewers := c.viewProjectionMatrix, c.notifyList()
	c.mu.Unlock()
	notify(viewers, vp)
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	c.aspect = aspect
	c.updateMatrices()
	vp, viewers := c.viewProjectionMatrix, c.notifyList()
	c.mu.Unlock()
	notify(viewers, vp)
}

func (c *cameraImpl) Attach(v Viewer) {
	if v == nil {
		return
	}
	c.mu.Lock()
	c.viewers = append(c.viewers, v)
	vp, enabled := c.viewProjectionMatrix, c.enabled()
	c.mu.Unlock()
	if enabled {
		v.SetView(vp)
	}
}

// enabled requires the mutex.
func (c *cameraImpl) enabled() bool {
	return c.eye != (mgl32.Vec3{}) && c.eye != c.target
}

// notifyList returns the viewers to notify after a change, or nil while disabled.
// Caller must hold the mutex.
func (c *cameraImpl) notifyList() []Viewer {
	if !c.enabled() {
		return nil
	}
	return append([]Viewer(nil), c.viewers...)
}

func notify(viewers []Viewer, vp mgl32.Mat4) {
	for _, v := range viewers {
		v.SetView(vp)
	}
}

// updateMatrices recalculates the view, projection and view-projection matrices.
// A disabled camera keeps identity matrices. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if !c.enabled() {
		c.viewMatrix = mgl32.Ident4()
		c.projectionMatrix = mgl32.Ident4()
		c.viewProjectionMatrix = mgl32.Ident4()
		return
	}
	c.viewMatrix = mgl32.LookAtV(c.eye, c.target, c.up)
	c.projectionMatrix = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
}
