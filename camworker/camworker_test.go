package camworker

import (
	"testing"
	"time"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

type fakeBackend struct {
	initialized bool
	acquiring   bool
	calls       []string
}

func (f *fakeBackend) Initialize() error {
	f.calls = append(f.calls, "initialize")
	f.initialized = true
	return nil
}
func (f *fakeBackend) Uninitialize() error {
	f.calls = append(f.calls, "uninitialize")
	return nil
}
func (f *fakeBackend) UpdateSettings(cfg config.Values) error {
	f.calls = append(f.calls, "update_settings")
	return nil
}
func (f *fakeBackend) StartAcquiring(shutterOpen bool) error {
	f.calls = append(f.calls, "start_acquiring")
	f.acquiring = true
	return nil
}
func (f *fakeBackend) StopAcquiring() error {
	f.calls = append(f.calls, "stop_acquiring")
	f.acquiring = false
	return nil
}
func (f *fakeBackend) Tick(mode camerabackend.Mode, sink camerabackend.FrameSink) error {
	f.calls = append(f.calls, "tick:"+mode.String())
	return nil
}
func (f *fakeBackend) ReadTemperature() (float64, error) { return -10, nil }
func (f *fakeBackend) QueryCCDRegion() (frame.Region, frame.Region, bool, bool) {
	return frame.Region{}, frame.Region{}, false, false
}
func (f *fakeBackend) NormalizeTrigger(ts trigger.Timestamp, mode config.TriggerMode, exposureUnits int) trigger.Timestamp {
	return ts
}
func (f *fakeBackend) PortTable() []string          { return nil }
func (f *fakeBackend) SupportsReadoutDisplay() bool  { return false }
func (f *fakeBackend) SupportsShutterDisabling() bool { return true }
func (f *fakeBackend) SupportsBiasAcquisition() bool { return true }

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	c, err := config.Load(dir + "/missing.yaml")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return c
}

func waitForObserved(t *testing.T, w *Worker, mode camerabackend.Mode) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if w.ObservedMode() == mode {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for observed mode %v, got %v", mode, w.ObservedMode())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerDrivesLifecycleToAcquiringAndBack(t *testing.T) {
	backend := &fakeBackend{}
	cfg := testConfig(t)
	w := New(backend, cfg, testSink{t}, func(f *frame.Frame) {})

	go w.Run()

	waitForObserved(t, w, camerabackend.ModeIdle)

	w.RequestAcquire()
	waitForObserved(t, w, camerabackend.ModeAcquiring)

	w.RequestAcquireWait()
	waitForObserved(t, w, camerabackend.ModeAcquireWait)

	w.RequestIdle()
	waitForObserved(t, w, camerabackend.ModeIdle)

	w.RequestShutdown()
	waitForObserved(t, w, camerabackend.ModeShutdown)

	if backend.calls[0] != "initialize" {
		t.Fatalf("expected initialize first, got %v", backend.calls)
	}
	if backend.calls[len(backend.calls)-1] != "uninitialize" {
		t.Fatalf("expected uninitialize last, got %v", backend.calls)
	}
}

func TestWorkerWaitsForSafeToStopBeforeStopAcquiring(t *testing.T) {
	backend := &fakeBackend{}
	cfg := testConfig(t)
	w := New(backend, cfg, testSink{t}, func(f *frame.Frame) {})
	safeToStop := make(chan struct{})
	w.SetSafeToStop(safeToStop)

	go w.Run()
	waitForObserved(t, w, camerabackend.ModeIdle)

	w.RequestAcquire()
	waitForObserved(t, w, camerabackend.ModeAcquiring)
	w.RequestAcquireWait()
	waitForObserved(t, w, camerabackend.ModeAcquireWait)

	w.RequestIdle()
	time.Sleep(50 * time.Millisecond)
	if w.ObservedMode() != camerabackend.ModeAcquireWait {
		t.Fatalf("expected worker to remain in ACQUIRE_WAIT until safeToStop fires, got %v", w.ObservedMode())
	}

	close(safeToStop)
	waitForObserved(t, w, camerabackend.ModeIdle)
}

type testSink struct{ t *testing.T }

func (s testSink) Logf(format string, args ...interface{}) { s.t.Logf(format, args...) }
