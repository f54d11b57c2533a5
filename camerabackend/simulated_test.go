package camerabackend

import (
	"testing"
	"time"

	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

func TestSimulatedTicksOnlyWhileAcquiring(t *testing.T) {
	s := NewSimulated()
	s.UpdateSettings(config.Values{TriggerMode: config.TriggerBias})

	var got *frame.Frame
	err := s.Tick(ModeIdle, func(f *frame.Frame) { got = f })
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no frame emitted while not acquiring")
	}
}

func TestSimulatedBiasCadence(t *testing.T) {
	s := NewSimulated()
	s.UpdateSettings(config.Values{TriggerMode: config.TriggerBias})
	s.StartAcquiring(false)
	s.lastEmit = time.Now().Add(-200 * time.Millisecond)

	var got *frame.Frame
	if err := s.Tick(ModeAcquiring, func(f *frame.Frame) { got = f }); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a frame once the 100ms bias cadence has elapsed")
	}
	if got.Width != 512 || got.Height != 512 {
		t.Fatalf("unexpected frame geometry: %dx%d", got.Width, got.Height)
	}
}

func TestSimulatedOrientationMarkers(t *testing.T) {
	pix := make([]uint16, 64*64)
	stampOrientationMarkers(pix, 64, 64)

	if pix[(64-25)*64+25] != 0 {
		t.Fatalf("expected zero marker near top-left corner")
	}
	if pix[(64-25)*64+(64-25)] != 65535 {
		t.Fatalf("expected saturated marker near top-right corner")
	}
	if pix[(32-25+25)*64+(32-25+25)] != 20000 {
		t.Fatalf("expected mid-value marker at center")
	}
}

func TestSimulatedNormalizeTriggerSubtractsExposure(t *testing.T) {
	s := NewSimulated()
	ts := trigger.Timestamp{Year: 2026, Month: 1, Day: 1, Hours: 0, Minutes: 0, Seconds: 30}
	got := s.NormalizeTrigger(ts, config.TriggerSeconds, 5)
	if got.Seconds != 25 {
		t.Fatalf("expected seconds shifted back by exposure, got %+v", got)
	}
}
