// Package camerabackend defines the capability set a scientific camera must
// present to be driven by a camera worker, and provides three variants: a
// fully-implemented Simulated backend used for every test and end-to-end
// scenario, and PVCAM/PICAM stubs documenting the interface a real vendor
// SDK binding would fill in.
package camerabackend

import (
	"errors"

	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

// Mode is the camera lifecycle state a worker drives a Backend through.
type Mode int

const (
	ModeUninitialized Mode = iota
	ModeInitializing
	ModeIdle
	ModeAcquireStart
	ModeAcquiring
	ModeAcquireWait
	ModeAcquireStop
	ModeShutdown
)

func (m Mode) String() string {
	switch m {
	case ModeUninitialized:
		return "UNINITIALIZED"
	case ModeInitializing:
		return "INITIALIZING"
	case ModeIdle:
		return "IDLE"
	case ModeAcquireStart:
		return "ACQUIRE_START"
	case ModeAcquiring:
		return "ACQUIRING"
	case ModeAcquireWait:
		return "ACQUIRE_WAIT"
	case ModeAcquireStop:
		return "ACQUIRE_STOP"
	case ModeShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// FrameSink receives a frame handed off by a Backend's Tick. The backend
// owns f's pixel buffer until the sink returns; a sink that wants to retain
// the frame past that point must copy it (frame.Frame.Clone).
type FrameSink func(f *frame.Frame)

// ErrNotImplemented is returned by every lifecycle method of a vendor
// backend stub.
var ErrNotImplemented = errors.New("camerabackend: not implemented")

// Backend is the polymorphism boundary a CameraWorker drives. Lifecycle
// calls (Initialize, UpdateSettings, StartAcquiring, StopAcquiring,
// Uninitialize) return an error; any non-nil error from one of these is
// fatal for the worker that called it. Tick is the hot path: it is called
// once per worker iteration regardless of mode and must not block.
type Backend interface {
	Initialize() error
	Uninitialize() error

	// UpdateSettings applies the hardware-binding fields of cfg (ROI,
	// binning, readout mode, temperature setpoint) to the backend. Called
	// once, immediately before StartAcquiring.
	UpdateSettings(cfg config.Values) error

	StartAcquiring(shutterOpen bool) error
	StopAcquiring() error

	// Tick polls for a newly completed frame and, if one is ready, invokes
	// sink synchronously before returning.
	Tick(mode Mode, sink FrameSink) error

	ReadTemperature() (float64, error)

	// QueryCCDRegion reports the light-sensitive and overscan sub-arrays of
	// the last configured ROI, if the backend distinguishes them.
	QueryCCDRegion() (image frame.Region, bias frame.Region, hasImage, hasBias bool)

	// NormalizeTrigger shifts a timer timestamp (which some cameras report
	// at end-of-exposure) to the canonical start-of-exposure. mode and
	// exposureUnits describe the active trigger mode and exposure length in
	// the units that mode implies (seconds or milliseconds).
	NormalizeTrigger(ts trigger.Timestamp, mode config.TriggerMode, exposureUnits int) trigger.Timestamp

	PortTable() []string

	SupportsReadoutDisplay() bool
	SupportsShutterDisabling() bool
	SupportsBiasAcquisition() bool
}
