package bake

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/model"
	"github.com/Carmen-Shannon/oxy-xrvis/engine/synthesis"
	"github.com/go-gl/mathgl/mgl32"
)

// Status is the lifecycle state of a bake job.
type Status int

const (
	// StatusUnknown is returned for handles that were never issued or whose terminal status was already polled.
	StatusUnknown Status = iota
	StatusPending
	StatusRunning
	StatusSucceeded
	StatusFailed
	// StatusSuperseded marks a job cancelled or overtaken by a newer mesh generation. Its output is discarded.
	StatusSuperseded
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusSuperseded:
		return "Superseded"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSuperseded
}

// Handle identifies a bake job. The zero Handle is never issued.
type Handle uint64

// Completion reports a job reaching a terminal status.
type Completion struct {
	Handle Handle
	Ref    model.MeshRef
	Status Status
	Err    error
}

// job is one bake request. status and err are guarded by the coordinator lock.
type job struct {
	handle    Handle
	ref       model.MeshRef
	mesh      *synthesis.SynthesizedMesh
	transform mgl32.Mat4
	settings  Settings
	ctx       context.Context
	cancel    context.CancelFunc
	progress  atomic.Uint32
	unpinOnce sync.Once

	status Status
	err    error
}

func (j *job) setProgress(p float32) {
	j.progress.Store(math.Float32bits(p))
}

func (j *job) loadProgress() float32 {
	return math.Float32frombits(j.progress.Load())
}
