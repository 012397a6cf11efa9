package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xrvis/common"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// DefaultFramesInFlight is how many submitted frames a Recorder keeps alive before retiring the oldest.
const DefaultFramesInFlight = 2

// ErrRecorderClosed is returned by a Recorder after Flush with close set.
var ErrRecorderClosed = errors.New("renderer: recorder closed")

// RecordedFrame is the FrameGraph built by a Recorder. It keeps every pass contributed to it.
type RecordedFrame struct {
	mu      sync.Mutex
	index   uint64
	view    *common.Frustum
	owner   *recorder
	passes  []Pass
	skipped []SkippedPass
	retire  []func()
	retired bool
}

var _ FrameGraph = &RecordedFrame{}

func (f *RecordedFrame) Index() uint64 { return f.index }

func (f *RecordedFrame) View() *common.Frustum { return f.view }

func (f *RecordedFrame) AddPass(p Pass) error {
	if f.owner.passFailure != nil {
		if err := f.owner.passFailure(p); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes = append(f.passes, p)
	return nil
}

func (f *RecordedFrame) SkipPass(node model.NodeID, reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipped = append(f.skipped, SkippedPass{Node: node, Reason: reason})
}

func (f *RecordedFrame) OnRetire(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retire = append(f.retire, fn)
}

// Passes returns a copy of the passes added to the frame.
func (f *RecordedFrame) Passes() []Pass {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Pass(nil), f.passes...)
}

// Pass finds the pass for node.
func (f *RecordedFrame) Pass(node model.NodeID) (Pass, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.passes {
		if p.Node == node {
			return p, true
		}
	}
	return Pass{}, false
}

// Skipped returns a copy of the skipped passes.
func (f *RecordedFrame) Skipped() []SkippedPass {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SkippedPass(nil), f.skipped...)
}

// Retired reports whether the frame's retire callbacks have run.
func (f *RecordedFrame) Retired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retired
}

func (f *RecordedFrame) doRetire() {
	f.mu.Lock()
	if f.retired {
		f.mu.Unlock()
		return
	}
	f.retired = true
	callbacks := f.retire
	f.retire = nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// recorder is the implementation of the Recorder interface.
type recorder struct {
	mu             sync.Mutex
	view           *common.Frustum
	framesInFlight int
	passFailure    func(Pass) error
	next           uint64
	inFlight       []*RecordedFrame
	last           *RecordedFrame
	closed         bool
}

// Recorder is a headless FrameSource. Frames are kept in memory, and a submitted frame retires once
// more than the configured number of frames are in flight, the way a swapchain recycles its images.
type Recorder interface {
	FrameSource

	// SetView replaces the culling view for subsequent frames.
	//
	// Parameters:
	//   - viewProj: the combined projection * view matrix
	SetView(viewProj mgl32.Mat4)

	// Last retrieves the most recently submitted frame.
	//
	// Returns:
	//   - *RecordedFrame: the frame, or nil if none was submitted
	Last() *RecordedFrame

	// InFlight retrieves the number of submitted frames not yet retired.
	//
	// Returns:
	//   - int: the in-flight frame count
	InFlight() int

	// Flush retires every in-flight frame, waiting as a device idle would.
	//
	// Parameters:
	//   - close: true to refuse any further frames
	Flush(close bool)
}

var _ Recorder = &recorder{}

// NewRecorder creates a new Recorder with the specified options applied.
//
// Parameters:
//   - options: a variadic list of RecorderBuilderOption functions to configure the Recorder
//
// Returns:
//   - Recorder: a new headless frame source
func NewRecorder(options ...RecorderBuilderOption) Recorder {
	r := &recorder{framesInFlight: DefaultFramesInFlight}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *recorder) NextFrame(ctx context.Context) (FrameGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRecorderClosed
	}
	r.next++
	return &RecordedFrame{index: r.next, view: r.view, owner: r}, nil
}

func (r *recorder) Submit(fg FrameGraph) error {
	frame, ok := fg.(*RecordedFrame)
	if !ok || frame.owner != r {
		return fmt.Errorf("renderer: submit frame %d: not issued by this recorder", fg.Index())
	}

	r.mu.Lock()
	r.inFlight = append(r.inFlight, frame)
	r.last = frame
	var expired []*RecordedFrame
	if over := len(r.inFlight) - r.framesInFlight; over > 0 {
		expired = append(expired, r.inFlight[:over]...)
		r.inFlight = append([]*RecordedFrame(nil), r.inFlight[over:]...)
	}
	r.mu.Unlock()

	for _, f := range expired {
		f.doRetire()
	}
	logger.L().Debug("renderer: frame submitted", zap.Uint64("frame", frame.index), zap.Int("passes", len(frame.Passes())))
	return nil
}

func (r *recorder) SetView(viewProj mgl32.Mat4) {
	f := common.ExtractFrustumFromMatrix(viewProj)
	r.mu.Lock()
	r.view = &f
	r.mu.Unlock()
}

func (r *recorder) Last() *RecordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *recorder) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}

func (r *recorder) Flush(close bool) {
	r.mu.Lock()
	expired := r.inFlight
	r.inFlight = nil
	if close {
		r.closed = true
	}
	r.mu.Unlock()

	for _, f := range expired {
		f.doRetire()
	}
}
