package camerabackend

import (
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

// picamTriggerOffsetSeconds is PICAM's start-of-exposure calibration
// constant. Princeton Instruments' PICAM reports a different timestamp
// convention than PVCAM for the same "end of exposure" notion; the exact
// offset is camera-model-specific and, per the source this system is based
// on, was never pinned down beyond "differs from PVCAM" — treat as a
// hardware calibration value, not a guessable constant.
const picamTriggerOffsetSeconds = 0

// PICAM is the binding point for Princeton Instruments' PICAM SDK. No PICAM
// hardware is available in this environment, so every lifecycle call
// reports ErrNotImplemented; a real binding would wrap Picam_* calls from
// the vendor SDK here.
type PICAM struct{}

// NewPICAM returns an unimplemented PICAM backend.
func NewPICAM() *PICAM { return &PICAM{} }

func (p *PICAM) Initialize() error                     { return ErrNotImplemented }
func (p *PICAM) Uninitialize() error                    { return ErrNotImplemented }
func (p *PICAM) UpdateSettings(cfg config.Values) error { return ErrNotImplemented }
func (p *PICAM) StartAcquiring(shutterOpen bool) error  { return ErrNotImplemented }
func (p *PICAM) StopAcquiring() error                   { return ErrNotImplemented }
func (p *PICAM) Tick(mode Mode, sink FrameSink) error    { return ErrNotImplemented }
func (p *PICAM) ReadTemperature() (float64, error)      { return 0, ErrNotImplemented }
func (p *PICAM) PortTable() []string                    { return nil }
func (p *PICAM) SupportsReadoutDisplay() bool           { return true }
func (p *PICAM) SupportsShutterDisabling() bool         { return false }
func (p *PICAM) SupportsBiasAcquisition() bool          { return false }

func (p *PICAM) QueryCCDRegion() (image, bias frame.Region, hasImage, hasBias bool) {
	return frame.Region{}, frame.Region{}, false, false
}

func (p *PICAM) NormalizeTrigger(ts trigger.Timestamp, mode config.TriggerMode, exposureUnits int) trigger.Timestamp {
	out := ts
	out.Seconds -= picamTriggerOffsetSeconds
	out.Normalize()
	return out
}
