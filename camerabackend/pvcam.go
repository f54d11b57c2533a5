package camerabackend

import (
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

// pvcamTriggerOffsetSeconds is the start-of-exposure calibration constant
// PVCAM's timestamp would need. The vendor SDK reports download completion
// rather than exposure start, and the exact offset depends on the readout
// mode and is not recovered from any available documentation; a real
// binding must determine this empirically against hardware before the
// backend can pair correctly.
const pvcamTriggerOffsetSeconds = 0

// PVCAM is the binding point for Photometrics' Programmable Virtual Camera
// Access Method SDK. No PVCAM hardware is available in this environment, so
// every lifecycle call reports ErrNotImplemented; a real binding would wrap
// pl_* calls from the vendor SDK here.
type PVCAM struct{}

// NewPVCAM returns an unimplemented PVCAM backend.
func NewPVCAM() *PVCAM { return &PVCAM{} }

func (p *PVCAM) Initialize() error                            { return ErrNotImplemented }
func (p *PVCAM) Uninitialize() error                           { return ErrNotImplemented }
func (p *PVCAM) UpdateSettings(cfg config.Values) error        { return ErrNotImplemented }
func (p *PVCAM) StartAcquiring(shutterOpen bool) error         { return ErrNotImplemented }
func (p *PVCAM) StopAcquiring() error                          { return ErrNotImplemented }
func (p *PVCAM) Tick(mode Mode, sink FrameSink) error          { return ErrNotImplemented }
func (p *PVCAM) ReadTemperature() (float64, error)             { return 0, ErrNotImplemented }
func (p *PVCAM) PortTable() []string                           { return nil }
func (p *PVCAM) SupportsReadoutDisplay() bool                  { return true }
func (p *PVCAM) SupportsShutterDisabling() bool                { return true }
func (p *PVCAM) SupportsBiasAcquisition() bool                 { return false }

func (p *PVCAM) QueryCCDRegion() (image, bias frame.Region, hasImage, hasBias bool) {
	return frame.Region{}, frame.Region{}, false, false
}

func (p *PVCAM) NormalizeTrigger(ts trigger.Timestamp, mode config.TriggerMode, exposureUnits int) trigger.Timestamp {
	out := ts
	out.Seconds -= pvcamTriggerOffsetSeconds
	out.Normalize()
	return out
}
