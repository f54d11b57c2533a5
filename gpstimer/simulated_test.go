package gpstimer

import (
	"testing"
	"time"

	"github.com/pchote/puoko-nui-go/timerproto"
)

type testSink struct{ t *testing.T }

func (s testSink) Logf(format string, args ...interface{}) { s.t.Logf(format, args...) }

func TestSimulatedEmitsTriggerAfterExposure(t *testing.T) {
	s := NewSimulated(testSink{t})
	s.StartExposure(50, true, true, false) // 50ms exposure

	stop := make(chan struct{})
	go s.Run(stop)
	defer close(stop)

	select {
	case <-s.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a trigger within 2s of a 50ms simulated exposure")
	}
}

func TestSimulatedAlignsFirstExposureToMinuteBoundary(t *testing.T) {
	s := NewSimulated(testSink{t})
	s.StartExposure(50, true, true, true) // 50ms exposure, aligned to the minute

	stop := make(chan struct{})
	go s.Run(stop)
	defer close(stop)

	select {
	case <-s.Triggers():
		t.Fatalf("expected no trigger before the minute boundary is reached")
	case <-time.After(200 * time.Millisecond):
	}
	if progress := s.CurrentTimestamp().ExposureProgress; progress != 0 {
		t.Fatalf("expected progress to stay at 0 while aligning, got %d", progress)
	}
}

func TestSimulatedStopSignalsSafeToStop(t *testing.T) {
	s := NewSimulated(testSink{t})
	s.StartExposure(5000, false, true, false)

	stop := make(chan struct{})
	go s.Run(stop)
	defer close(stop)

	s.StopExposure()
	select {
	case <-s.SafeToStop():
	case <-time.After(time.Second):
		t.Fatalf("expected SafeToStop to fire immediately on StopExposure")
	}
	if s.Mode() != timerproto.ModeIdle {
		t.Fatalf("expected mode IDLE after stop, got %v", s.Mode())
	}
}
