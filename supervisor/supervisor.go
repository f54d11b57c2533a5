// Package supervisor wires one instance of every worker together: no
// component reaches for another through a package-level global, they are
// all constructed here and handed to each other explicitly.
package supervisor

import (
	"sync"
	"time"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/camworker"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/framemanager"
	"github.com/pchote/puoko-nui-go/gpstimer"
	"github.com/pchote/puoko-nui-go/logbuf"
	"github.com/pchote/puoko-nui-go/scriptrunner"
	"github.com/pchote/puoko-nui-go/timerproto"
	"github.com/pchote/puoko-nui-go/trigger"
	"github.com/pchote/puoko-nui-go/util"
)

// Supervisor owns one instance of each worker component and sequences
// their startup and shutdown.
type Supervisor struct {
	cfg     *config.Config
	backend camerabackend.Backend
	timer   gpstimer.Timer
	log     *logbuf.Buffer

	cam       *camworker.Worker
	frames    *framemanager.Manager
	reduction *scriptrunner.Runner
	preview   *scriptrunner.Runner

	timerStop chan struct{}
	pumpStop  chan struct{}
	fatalStop chan struct{}

	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New constructs every worker and wires the channels between them. It does
// not start anything; call Start to spawn the goroutines.
func New(cfg *config.Config, backend camerabackend.Backend, timer gpstimer.Timer, log *logbuf.Buffer) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		backend: backend,
		timer:   timer,
		log:     log,
	}

	values := cfg.Snapshot()
	s.reduction = scriptrunner.New(values.ReductionScriptPath, "Reduction: ", log)
	s.preview = scriptrunner.New(values.PreviewScriptPath, "Preview: ", log)

	s.frames = framemanager.New(cfg, log, framemanager.FitsSaver, s.reduction, s.preview)

	s.cam = camworker.New(backend, cfg, log, func(f *frame.Frame) {
		s.frames.PushFrame(f)
	})
	s.cam.SetSafeToStop(timer.SafeToStop())

	return s
}

// Start spawns every worker goroutine and begins the supervising loop that
// feeds timer triggers (normalized through the active backend) to the frame
// manager.
func (s *Supervisor) Start() {
	s.timerStop = make(chan struct{})
	s.pumpStop = make(chan struct{})
	s.fatalStop = make(chan struct{})

	s.wg.Add(7)
	go func() { defer s.wg.Done(); s.cam.Run() }()
	go func() { defer s.wg.Done(); s.timer.Run(s.timerStop) }()
	go func() { defer s.wg.Done(); s.frames.Run() }()
	go func() { defer s.wg.Done(); s.reduction.Run() }()
	go func() { defer s.wg.Done(); s.preview.Run() }()
	go func() { defer s.wg.Done(); s.pumpTriggers() }()
	go func() { defer s.wg.Done(); s.watchFatal() }()
}

// fatalPollInterval paces watchFatal's poll of every worker's FatalError.
const fatalPollInterval = 200 * time.Millisecond

// watchFatal polls FatalError until some worker reports one or Shutdown is
// called directly, then requests an orderly shutdown: a dead timer or
// camera backend must not leave the process running in a zombie state.
func (s *Supervisor) watchFatal() {
	ticker := time.NewTicker(fatalPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.fatalStop:
			return
		case <-ticker.C:
			if err := s.FatalError(); err != nil {
				s.log.Logf("supervisor: fatal error, shutting down: %v", err)
				go s.Shutdown()
				return
			}
		}
	}
}

// pumpTriggers forwards every trigger the timer emits to the frame manager,
// normalizing it through the active backend first (step 3 of the pairing
// protocol), until Shutdown closes pumpStop.
func (s *Supervisor) pumpTriggers() {
	triggers := s.timer.Triggers()
	for {
		select {
		case <-s.pumpStop:
			return
		case t := <-triggers:
			s.forwardTrigger(t)
		}
	}
}

func (s *Supervisor) forwardTrigger(t trigger.Timestamp) {
	cfg := s.cfg.Snapshot()
	normalized := s.backend.NormalizeTrigger(t, cfg.TriggerMode, cfg.ExposureTime)
	s.frames.PushTrigger(normalized)
}

// StartAcquisition begins a new acquisition run: locks hardware-binding
// config fields, resets the frame manager's first-frame flag, and requests
// the camera and timer begin acquiring.
func (s *Supervisor) StartAcquisition() {
	s.cfg.BeginAcquisition()
	s.frames.ResetFirstFrame()
	s.cam.RequestAcquire()

	cfg := s.cfg.Snapshot()
	millisecondMode := cfg.TriggerMode == config.TriggerMilliseconds
	s.timer.StartExposure(uint16(cfg.ExposureTime), millisecondMode, true, cfg.AlignFirstExposure)
}

// stopPollInterval paces StopAcquisition's wait for the camera worker to
// reach ACQUIRE_WAIT before it is told to finish stopping.
const stopPollInterval = 10 * time.Millisecond

// StopAcquisition requests an orderly stop. It asks the timer to stop
// exposing and the camera to move into the ACQUIRE_WAIT intermediate state,
// waits for the worker to actually observe that state, then tells it to
// finish the transition to IDLE — which blocks internally on the timer's
// SafeToStop signal before calling StopAcquiring.
func (s *Supervisor) StopAcquisition() {
	s.timer.StopExposure()
	s.cam.RequestAcquireWait()
	for s.cam.ObservedMode() != camerabackend.ModeAcquireWait {
		time.Sleep(stopPollInterval)
	}
	s.cam.RequestIdle()
	s.cfg.EndAcquisition()
}

// CameraMode reports the camera worker's observed lifecycle state.
func (s *Supervisor) CameraMode() camerabackend.Mode {
	return s.cam.ObservedMode()
}

// TimerMode reports the GPS timer's current protocol mode.
func (s *Supervisor) TimerMode() timerproto.TimerMode {
	return s.timer.Mode()
}

// Temperature reports the camera's last-sampled sensor temperature.
func (s *Supervisor) Temperature() float64 {
	return s.cam.Temperature()
}

// RunNumber reports the run number that will be assigned to the next saved
// frame.
func (s *Supervisor) RunNumber() int {
	return s.cfg.Snapshot().RunNumber
}

// Config returns the supervised acquisition's configuration, for the
// control HTTP surface to read and mutate.
func (s *Supervisor) Config() *config.Config {
	return s.cfg
}

// QueueDepths reports the frame manager's queue depths.
func (s *Supervisor) QueueDepths() (frames, triggers int) {
	return s.frames.QueueDepths()
}

// SaveHistory reports the timestamps of the most recently saved frames.
func (s *Supervisor) SaveHistory() []time.Time {
	return s.frames.SaveHistory()
}

// PreviewHistory reports the timestamps of the most recently written
// preview frames.
func (s *Supervisor) PreviewHistory() []time.Time {
	return s.frames.PreviewHistory()
}

// Log returns the shared ring buffer every worker logs into.
func (s *Supervisor) Log() *logbuf.Buffer {
	return s.log
}

// FatalError reports the fatal errors raised by any worker, merged into one,
// or nil if none occurred.
func (s *Supervisor) FatalError() error {
	return util.MergeErrors([]error{s.cam.FatalError(), s.timer.FatalError()})
}

// Shutdown sequences an orderly stop in the order: FrameManager, then
// ScriptRunners, then TimerWorker (SHUTDOWN mode), then CameraWorker
// (SHUTDOWN mode); then waits for every worker goroutine to exit. Safe to
// call more than once (directly, and from watchFatal) or concurrently; only
// the first call runs.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.frames.Shutdown()
		s.reduction.Shutdown()
		s.preview.Shutdown()
		close(s.timerStop)
		s.cam.RequestShutdown()
		close(s.pumpStop)
		close(s.fatalStop)
		s.wg.Wait()
	})
}
