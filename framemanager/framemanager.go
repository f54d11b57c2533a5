// Package framemanager implements the FrameManager: the pairing engine that
// matches each completed camera frame with its trigger timestamp, applies
// geometric transforms, and saves or previews the result.
package framemanager

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brandondube/ringo"
	"golang.org/x/time/rate"

	"github.com/pchote/puoko-nui-go/camerabackend"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/fitswriter"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

// LogSink receives a formatted log line; logbuf.Sink implements it.
type LogSink interface {
	Logf(format string, args ...interface{})
}

// progressLogPeriod is how often a non-empty queue gets a progress log line.
const progressLogPeriod = 5 * time.Second

// consistencyTolerance bounds how far a frame's estimated exposure start may
// drift from its paired trigger before the pairing is considered mismatched.
// The original source hardcodes 1.5s regardless of exposure length; whether
// it should scale with exposure time is an open question the original never
// answers, so this stays fixed.
const consistencyTolerance = 1.5

// maxTempFilenameAttempts bounds how many random suffixes are tried before a
// save is abandoned as unschedulable.
const maxTempFilenameAttempts = 1000

// cadenceHistoryCapacity is how many past save/preview timestamps are kept
// for the diagnostic cadence history.
const cadenceHistoryCapacity = 256

// Saver persists a frame; fitswriter.Write satisfies this, and tests can
// substitute a fake to observe calls without touching the filesystem.
type Saver func(w *os.File, f *frame.Frame, cfg config.Values, start trigger.Timestamp) error

// Runner dispatches a finished file path to a script runner; scriptrunner.Runner
// satisfies this via its Enqueue method.
type Runner interface {
	Enqueue(path string)
}

// Manager owns the frame and trigger queues and runs the pairing loop.
type Manager struct {
	cfg *config.Config
	log LogSink
	save Saver

	reduction Runner
	preview   Runner

	mu         sync.Mutex
	cond       *sync.Cond
	frameQ     []*frame.Frame
	triggerQ   []trigger.Timestamp
	firstFrame bool
	shutdown   bool

	previewLimiter *rate.Limiter

	historyMu    sync.Mutex
	saveHistory  ringo.CircleTime
	previewHistory ringo.CircleTime

	lastProgressLog time.Time
}

// New constructs a Manager. save is normally fitswriter-backed; reduction and
// preview are the two ScriptRunner instances notified on save.
func New(cfg *config.Config, log LogSink, save Saver, reduction, preview Runner) *Manager {
	m := &Manager{
		cfg:        cfg,
		log:        log,
		save:       save,
		reduction:  reduction,
		preview:    preview,
		firstFrame: true,
	}
	m.cond = sync.NewCond(&m.mu)
	m.previewLimiter = rate.NewLimiter(rate.Every(time.Duration(cfg.Snapshot().PreviewRateLimitMS)*time.Millisecond), 1)
	m.saveHistory.Init(cadenceHistoryCapacity)
	m.previewHistory.Init(cadenceHistoryCapacity)
	return m
}

// PushFrame enqueues a completed frame. Never blocks; ownership transfers to
// the manager.
func (m *Manager) PushFrame(f *frame.Frame) {
	m.mu.Lock()
	m.frameQ = append(m.frameQ, f)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// PushTrigger enqueues a trigger timestamp.
func (m *Manager) PushTrigger(t trigger.Timestamp) {
	m.mu.Lock()
	m.triggerQ = append(m.triggerQ, t)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// ResetFirstFrame marks the next frame of a new acquisition run as the
// discardable leading frame. Called by the supervisor when acquisition
// starts.
func (m *Manager) ResetFirstFrame() {
	m.mu.Lock()
	m.firstFrame = true
	m.mu.Unlock()
}

// Shutdown signals the pairing loop to exit after its current wait.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// QueueDepths reports the current frame and trigger queue lengths, for the
// status surface.
func (m *Manager) QueueDepths() (frames, triggers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frameQ), len(m.triggerQ)
}

// SaveHistory returns the recorded save timestamps, oldest first.
func (m *Manager) SaveHistory() []time.Time {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	return m.saveHistory.Contiguous()
}

// PreviewHistory returns the recorded preview timestamps, oldest first.
func (m *Manager) PreviewHistory() []time.Time {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	return m.previewHistory.Contiguous()
}

// readyLocked reports whether the wait condition in step 1 of the pairing
// loop is satisfied. Caller must hold m.mu.
func (m *Manager) readyLocked() bool {
	if m.shutdown {
		return true
	}
	cfg := m.cfg.Snapshot()
	if len(m.frameQ) == 0 {
		return false
	}
	if cfg.TriggerMode == config.TriggerBias {
		return true
	}
	return len(m.triggerQ) > 0
}

// Run is the pairing loop. It exits once Shutdown has been called and no
// further waiting is needed.
func (m *Manager) Run() {
	for {
		m.mu.Lock()
		for !m.readyLocked() {
			m.cond.Wait()
		}
		if m.shutdown {
			m.mu.Unlock()
			return
		}

		if time.Since(m.lastProgressLog) > progressLogPeriod && (len(m.frameQ) > 0 || len(m.triggerQ) > 0) {
			m.log.Logf("framemanager: %d frames queued, %d triggers queued", len(m.frameQ), len(m.triggerQ))
			m.lastProgressLog = time.Now()
		}

		f := m.frameQ[0]
		m.frameQ = m.frameQ[1:]

		cfg := m.cfg.Snapshot()
		var t trigger.Timestamp
		havePair := cfg.TriggerMode == config.TriggerBias
		if !havePair {
			t = m.triggerQ[0]
			m.triggerQ = m.triggerQ[1:]
			havePair = true
		}
		m.mu.Unlock()

		if cfg.TriggerMode != config.TriggerBias {
			m.processPair(f, t, cfg)
		} else {
			m.processFrame(f, cfg)
		}
	}
}

// processPair handles the non-BIAS path: consistency check, first-frame
// discard, transform, save/preview.
func (m *Manager) processPair(f *frame.Frame, t trigger.Timestamp, cfg config.Values) {
	estimatedStart := f.DownloadedTime.Unix() - f.ReadoutTime.Seconds() - exposureTimeSeconds(cfg)
	mismatch := estimatedStart - t.Unix()
	if mismatch < 0 {
		mismatch = -mismatch
	}
	if mismatch > consistencyTolerance {
		if cfg.ValidateTimestamps {
			m.log.Logf("framemanager: ERROR: timestamp mismatch %.3fs (frame estimate %.3f, trigger %.3f); purging queues", mismatch, estimatedStart, t.Unix())
			m.purge()
			return
		}
		m.log.Logf("framemanager: WARNING: timestamp mismatch %.3fs (frame estimate %.3f, trigger %.3f)", mismatch, estimatedStart, t.Unix())
	}

	if m.consumeFirstFrame() {
		return
	}

	f.ApplyTransforms(cfg.FrameFlipX, cfg.FrameFlipY, cfg.FrameTranspose)
	m.saveAndPreview(f, cfg, t)
}

// processFrame handles the BIAS path: no trigger is paired, only the frame.
func (m *Manager) processFrame(f *frame.Frame, cfg config.Values) {
	if m.consumeFirstFrame() {
		return
	}
	f.ApplyTransforms(cfg.FrameFlipX, cfg.FrameFlipY, cfg.FrameTranspose)
	m.saveAndPreview(f, cfg, f.DownloadedTime)
}

func (m *Manager) consumeFirstFrame() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstFrame {
		m.firstFrame = false
		return true
	}
	return false
}

// exposureTimeSeconds converts cfg.ExposureTime (recorded in the unit
// implied by TriggerMode) into seconds for the consistency check, mirroring
// fitswriter.exposureSeconds.
func exposureTimeSeconds(cfg config.Values) float64 {
	if cfg.TriggerMode == config.TriggerMilliseconds {
		return float64(cfg.ExposureTime) / 1000.0
	}
	return float64(cfg.ExposureTime)
}

// purge drops both queues and leaves the first_frame flag as it was: once the
// leading frame of a run has been discarded, a purge does not cause the next
// pair to be discarded as well.
func (m *Manager) purge() {
	m.mu.Lock()
	m.frameQ = nil
	m.triggerQ = nil
	m.mu.Unlock()
}

func (m *Manager) saveAndPreview(f *frame.Frame, cfg config.Values, start trigger.Timestamp) {
	allowSave := cfg.SaveFrames
	if allowSave {
		if err := m.saveCanonical(f, cfg, start); err != nil {
			m.log.Logf("framemanager: save failed: %v", err)
		} else {
			m.cfg.IncrementRunNumber()
		}
	}

	m.previewLimiter.SetLimit(rate.Every(time.Duration(cfg.PreviewRateLimitMS) * time.Millisecond))
	if m.previewLimiter.Allow() {
		if err := m.savePreview(f, cfg, start); err != nil {
			m.log.Logf("framemanager: preview failed: %v", err)
		}
	}
}

// saveCanonical writes f to a random temp name, then atomically renames it
// to the canonical output path, refusing to overwrite an existing file.
func (m *Manager) saveCanonical(f *frame.Frame, cfg config.Values, start trigger.Timestamp) error {
	canonical := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s-%04d.fits.gz", cfg.RunPrefix, cfg.RunNumber))
	if _, err := os.Stat(canonical); err == nil {
		return fmt.Errorf("framemanager: refusing to overwrite existing %s", canonical)
	}

	tmp, tmpPath, err := createUniqueTempFile(cfg.OutputDir, canonical+".")
	if err != nil {
		return err
	}
	if err := m.save(tmp, f, cfg, start); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, canonical); err != nil {
		os.Remove(tmpPath)
		return err
	}

	m.historyMu.Lock()
	m.saveHistory.Append(time.Now())
	m.historyMu.Unlock()

	if m.reduction != nil {
		m.reduction.Enqueue(canonical)
	}
	return nil
}

// savePreview writes f to a temp name and atomically renames over
// preview.fits.gz, overwriting any existing preview.
func (m *Manager) savePreview(f *frame.Frame, cfg config.Values, start trigger.Timestamp) error {
	canonical := filepath.Join(cfg.OutputDir, "preview.fits.gz")
	tmp, tmpPath, err := createUniqueTempFile(cfg.OutputDir, filepath.Join(cfg.OutputDir, "preview-")+".")
	if err != nil {
		return err
	}
	if err := m.save(tmp, f, cfg, start); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, canonical); err != nil {
		os.Remove(tmpPath)
		return err
	}

	m.historyMu.Lock()
	m.previewHistory.Append(time.Now())
	m.historyMu.Unlock()

	if m.preview != nil {
		m.preview.Enqueue(canonical)
	}
	return nil
}

// createUniqueTempFile picks a random 16-bit suffix appended to prefix,
// retrying up to maxTempFilenameAttempts times until one doesn't already
// exist, then creates it exclusively.
func createUniqueTempFile(dir, prefix string) (*os.File, string, error) {
	for i := 0; i < maxTempFilenameAttempts; i++ {
		path := fmt.Sprintf("%s%04x", prefix, rand.Intn(1<<16))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("framemanager: could not find a free temp filename in %s after %d attempts", dir, maxTempFilenameAttempts)
}

// FitsSaver adapts fitswriter.Write to the Saver signature.
func FitsSaver(w *os.File, f *frame.Frame, cfg config.Values, start trigger.Timestamp) error {
	return fitswriter.Write(w, f, cfg, start)
}

// NormalizeWith applies a backend's NormalizeTrigger to t, the conversion
// step 3 of the pairing protocol needs before a trigger is pushed. The
// supervisor's trigger pump does not go through this helper; it calls the
// backend's NormalizeTrigger directly before PushTrigger.
func NormalizeWith(backend camerabackend.Backend, t trigger.Timestamp, mode config.TriggerMode, exposureUnits int) trigger.Timestamp {
	return backend.NormalizeTrigger(t, mode, exposureUnits)
}
