// Package camworker implements the CameraWorker: a dedicated loop that
// drives a camerabackend.Backend through its acquisition lifecycle and
// hands completed frames off to the frame manager.
package camworker

import (
	"sync"
	"time"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
)

// LogSink receives a formatted log line; logbuf.Sink implements it.
type LogSink interface {
	Logf(format string, args ...interface{})
}

// temperatureSamplePeriod is how often the worker samples and publishes
// sensor temperature, regardless of acquisition state.
const temperatureSamplePeriod = 5 * time.Second

// tickInterval paces the poll loop; the real cameras this mirrors complete
// a frame readout on the order of seconds, so a 100ms poll is cheap slack
// rather than a busy spin.
const tickInterval = 100 * time.Millisecond

// Worker drives a camerabackend.Backend according to a desired mode set by
// the supervisor (or the control HTTP surface), publishing observed mode
// and sensor temperature, and forwarding completed frames to a sink.
type Worker struct {
	backend camerabackend.Backend
	cfg     *config.Config
	log     LogSink
	sink    func(f *frame.Frame)

	mu           sync.Mutex
	desiredMode  camerabackend.Mode
	observedMode camerabackend.Mode
	temperature  float64
	fatalErr     error

	safeToStop <-chan struct{}
}

// New constructs a Worker. sink is called synchronously from the worker
// goroutine whenever the backend completes a frame; it must not block.
func New(backend camerabackend.Backend, cfg *config.Config, log LogSink, sink func(f *frame.Frame)) *Worker {
	return &Worker{
		backend:      backend,
		cfg:          cfg,
		log:          log,
		sink:         sink,
		desiredMode:  camerabackend.ModeUninitialized,
		observedMode: camerabackend.ModeUninitialized,
	}
}

// SetSafeToStop wires the timer worker's safe-to-stop signal; when set, the
// worker waits for it before leaving ACQUIRE_WAIT.
func (w *Worker) SetSafeToStop(ch <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.safeToStop = ch
}

// RequestAcquire asks the worker to begin acquiring, once it reaches IDLE.
func (w *Worker) RequestAcquire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.desiredMode = camerabackend.ModeAcquiring
}

// RequestAcquireWait asks the worker to transition out of steady-state
// ACQUIRING once the timer confirms the trailing trigger has been emitted.
func (w *Worker) RequestAcquireWait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.desiredMode = camerabackend.ModeAcquireWait
}

// RequestIdle asks the worker to stop acquiring and return to IDLE.
func (w *Worker) RequestIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.desiredMode = camerabackend.ModeIdle
}

// RequestShutdown asks the worker loop to exit after its current iteration.
func (w *Worker) RequestShutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.desiredMode = camerabackend.ModeShutdown
}

// ObservedMode reports the worker's current lifecycle state.
func (w *Worker) ObservedMode() camerabackend.Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.observedMode
}

// Temperature reports the last sampled sensor temperature.
func (w *Worker) Temperature() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.temperature
}

// FatalError reports the error that caused the worker to exit, if any.
func (w *Worker) FatalError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fatalErr
}

func (w *Worker) setObserved(m camerabackend.Mode) {
	w.mu.Lock()
	w.observedMode = m
	w.mu.Unlock()
}

func (w *Worker) safeToStopChan() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.safeToStop
}

func (w *Worker) desired() camerabackend.Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.desiredMode
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	w.fatalErr = err
	w.mu.Unlock()
}

// Run is the worker's main loop: UNINITIALIZED -> INITIALIZING -> IDLE,
// then iterating until desired mode is SHUTDOWN. Any lifecycle call
// (Initialize, UpdateSettings, StartAcquiring, StopAcquiring, Uninitialize)
// returning an error is fatal; the worker logs it, publishes it via
// FatalError, and returns.
func (w *Worker) Run() {
	w.setObserved(camerabackend.ModeInitializing)
	if err := w.backend.Initialize(); err != nil {
		w.log.Logf("camworker: fatal: initialize: %v", err)
		w.fail(err)
		return
	}
	w.setObserved(camerabackend.ModeIdle)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	ticksSinceTemp := 0
	ticksPerTempSample := int(temperatureSamplePeriod / tickInterval)

	for {
		<-ticker.C

		desired := w.desired()
		observed := w.ObservedMode()

		if desired == camerabackend.ModeShutdown {
			if observed == camerabackend.ModeAcquiring || observed == camerabackend.ModeAcquireWait {
				if err := w.backend.StopAcquiring(); err != nil {
					w.log.Logf("camworker: fatal: stop acquiring: %v", err)
					w.fail(err)
				}
			}
			if err := w.backend.Uninitialize(); err != nil {
				w.log.Logf("camworker: fatal: uninitialize: %v", err)
				w.fail(err)
			}
			w.setObserved(camerabackend.ModeShutdown)
			return
		}

		switch {
		case desired == camerabackend.ModeAcquiring && observed == camerabackend.ModeIdle:
			w.setObserved(camerabackend.ModeAcquireStart)
			cfg := w.cfg.Snapshot()
			if err := w.backend.UpdateSettings(cfg); err != nil {
				w.log.Logf("camworker: fatal: update settings: %v", err)
				w.fail(err)
				return
			}
			shutterOpen := cfg.ObjectType != config.ObjectDark
			if err := w.backend.StartAcquiring(shutterOpen); err != nil {
				w.log.Logf("camworker: fatal: start acquiring: %v", err)
				w.fail(err)
				return
			}
			w.setObserved(camerabackend.ModeAcquiring)

		case desired == camerabackend.ModeAcquireWait && observed == camerabackend.ModeAcquiring:
			w.setObserved(camerabackend.ModeAcquireWait)

		case desired == camerabackend.ModeIdle && observed == camerabackend.ModeAcquireWait:
			if ch := w.safeToStopChan(); ch != nil {
				<-ch
			}
			if err := w.backend.StopAcquiring(); err != nil {
				w.log.Logf("camworker: fatal: stop acquiring: %v", err)
				w.fail(err)
				return
			}
			w.setObserved(camerabackend.ModeIdle)
		}

		if err := w.backend.Tick(w.ObservedMode(), w.sink); err != nil {
			w.log.Logf("camworker: tick: %v", err)
		}

		ticksSinceTemp++
		if ticksSinceTemp >= ticksPerTempSample {
			ticksSinceTemp = 0
			if t, err := w.backend.ReadTemperature(); err != nil {
				w.log.Logf("camworker: read temperature: %v", err)
			} else {
				w.mu.Lock()
				w.temperature = t
				w.mu.Unlock()
			}
		}
	}
}
