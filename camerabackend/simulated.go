package camerabackend

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
	"github.com/pchote/puoko-nui-go/util"
)

// tempStepPerRead is how far the simulated sensor temperature moves toward
// its target on every ReadTemperature call, imitating a cooler that settles
// gradually rather than jumping straight to its setpoint.
const tempStepPerRead = 0.5

// biasCadence is the fixed interval at which the Simulated backend emits
// frames while running in BIAS mode.
const biasCadence = 100 * time.Millisecond

// Simulated anchors testability: it needs no hardware, emits frames at the
// same cadence a simulated timer emits triggers (derived independently from
// the same AcquisitionConfig rather than any direct coupling to the timer),
// and stamps three fixed-value squares into the frame so transform tests
// can tell the frame's orientation apart.
type Simulated struct {
	mu sync.Mutex

	width, height int
	acquiring     bool
	lastEmit      time.Time

	mode       config.TriggerMode
	exposure   int
	port, speed, gain string

	temp, tempTarget float64
}

// NewSimulated returns a Simulated backend with a 512x512 sensor, matching
// the region camera_simulated_query_ccd_region reports.
func NewSimulated() *Simulated {
	return &Simulated{
		width: 512, height: 512,
		port: "simulated", speed: "1MHz", gain: "high",
		temp: 20, tempTarget: 20,
	}
}

func (s *Simulated) Initialize() error   { return nil }
func (s *Simulated) Uninitialize() error { return nil }

func (s *Simulated) UpdateSettings(cfg config.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = cfg.TriggerMode
	s.exposure = cfg.ExposureTime
	s.tempTarget = cfg.CameraTemperature
	if cfg.CameraWindowWidth > 0 {
		s.width = cfg.CameraWindowWidth
	}
	if cfg.CameraWindowHeight > 0 {
		s.height = cfg.CameraWindowHeight
	}
	return nil
}

func (s *Simulated) StartAcquiring(shutterOpen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquiring = true
	s.lastEmit = time.Now()
	return nil
}

func (s *Simulated) StopAcquiring() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquiring = false
	return nil
}

// ReadTemperature steps the simulated sensor temperature toward its target
// by tempStepPerRead and returns the new value, clamped so it never
// overshoots the setpoint.
func (s *Simulated) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.temp < s.tempTarget:
		s.temp = util.Clamp(s.temp+tempStepPerRead, s.temp, s.tempTarget)
	case s.temp > s.tempTarget:
		s.temp = util.Clamp(s.temp-tempStepPerRead, s.tempTarget, s.temp)
	}
	return s.temp, nil
}

func (s *Simulated) QueryCCDRegion() (image, bias frame.Region, hasImage, hasBias bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return frame.Region{Left: 0, Right: s.width - 1, Top: 0, Bottom: s.height - 1}, frame.Region{}, true, false
}

func (s *Simulated) PortTable() []string { return []string{"simulated"} }

func (s *Simulated) SupportsReadoutDisplay() bool   { return false }
func (s *Simulated) SupportsShutterDisabling() bool { return true }
func (s *Simulated) SupportsBiasAcquisition() bool  { return true }

// NormalizeTrigger converts an end-of-exposure timestamp to start-of-
// exposure by subtracting the exposure length, in the units implied by
// mode, then re-normalizing any borrow this produces.
func (s *Simulated) NormalizeTrigger(ts trigger.Timestamp, mode config.TriggerMode, exposureUnits int) trigger.Timestamp {
	out := ts
	if mode == config.TriggerSeconds {
		out.Seconds -= exposureUnits
	} else {
		out.Seconds -= exposureUnits / 1000
		out.Milliseconds -= exposureUnits % 1000
	}
	out.Normalize()
	return out
}

// Tick emits a frame once per exposure interval while acquiring: every
// exposure_time units in SECONDS/MILLISECONDS mode, or every 100ms in BIAS
// mode, mirroring the cadence of a simulated timer driven by the same
// configuration.
func (s *Simulated) Tick(mode Mode, sink FrameSink) error {
	s.mu.Lock()
	if mode != ModeAcquiring || !s.acquiring {
		s.mu.Unlock()
		return nil
	}

	var interval time.Duration
	if s.mode == config.TriggerBias {
		interval = biasCadence
	} else if s.mode == config.TriggerMilliseconds {
		interval = time.Duration(s.exposure) * time.Millisecond
	} else {
		interval = time.Duration(s.exposure) * time.Second
	}

	now := time.Now()
	if interval <= 0 || now.Sub(s.lastEmit) < interval {
		s.mu.Unlock()
		return nil
	}
	s.lastEmit = now
	width, height := s.width, s.height
	port, speed, gain := s.port, s.speed, s.gain
	s.mu.Unlock()

	f := &frame.Frame{
		Pix:    make([]uint16, width*height),
		Width:  width,
		Height: height,
		Port:   port, Speed: speed, Gain: gain,
		DownloadedTime: trigger.Now(),
	}
	fillRandom(f.Pix)
	stampOrientationMarkers(f.Pix, width, height)

	sink(f)
	return nil
}

func fillRandom(pix []uint16) {
	for i := range pix {
		pix[i] = uint16(rand.Intn(10000))
	}
}

// stampOrientationMarkers draws three 10x10 squares near the top corners
// and the center so a flip/transpose test can verify the resulting
// orientation: zero near the top-left, saturated near the top-right, and a
// mid-value square at the center.
func stampOrientationMarkers(pix []uint16, width, height int) {
	for j := 20; j < 30; j++ {
		for i := 20; i < 30; i++ {
			pix[(height-j)*width+i] = 0
			pix[(height-j)*width+(width-i)] = 65535
			pix[(height/2-j+25)*width+(width/2-i+25)] = 20000
		}
	}
}
