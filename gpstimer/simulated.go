package gpstimer

import (
	"sync"
	"time"

	"github.com/pchote/puoko-nui-go/timerproto"
	"github.com/pchote/puoko-nui-go/trigger"
)

// Simulated advances its current timestamp from the host clock and emits a
// synthetic trigger every exptimeUnits units, for use whenever real timer
// hardware is absent.
type Simulated struct {
	mu sync.Mutex

	total, progress int
	millisecondMode bool
	mode            timerproto.TimerMode
	current         trigger.Timestamp
	alignUntil      time.Time

	triggers   chan trigger.Timestamp
	safeToStop chan struct{}
	log        LogSink
}

// NewSimulated returns a ready-to-run Simulated timer.
func NewSimulated(log LogSink) *Simulated {
	return &Simulated{
		mode:       timerproto.ModeIdle,
		triggers:   make(chan trigger.Timestamp, 64),
		safeToStop: make(chan struct{}, 1),
		log:        log,
	}
}

func (s *Simulated) StartExposure(exptimeUnits uint16, millisecondMode bool, useMonitor bool, alignFirst bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = 0
	s.total = int(exptimeUnits)
	s.millisecondMode = millisecondMode
	s.mode = timerproto.ModeExposing
	s.log.Logf("gpstimer: starting %d %s exposures (simulated)", exptimeUnits, unitName(millisecondMode))

	if alignFirst {
		s.alignUntil = time.Now().Truncate(time.Minute).Add(time.Minute)
		s.log.Logf("gpstimer: aligning first exposure to %s (simulated)", s.alignUntil.Format(time.RFC3339))
	} else {
		s.alignUntil = time.Time{}
	}
}

func (s *Simulated) StopExposure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.progress = 0
	s.alignUntil = time.Time{}
	s.mode = timerproto.ModeIdle
	select {
	case s.safeToStop <- struct{}{}:
	default:
	}
}

func (s *Simulated) Reset() {}

func (s *Simulated) CurrentTimestamp() trigger.Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Simulated) Mode() timerproto.TimerMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Simulated) Triggers() <-chan trigger.Timestamp { return s.triggers }
func (s *Simulated) SafeToStop() <-chan struct{}        { return s.safeToStop }

// Run advances the simulated clock once a millisecond and emits a trigger
// whenever accumulated progress reaches the configured exposure length.
func (s *Simulated) Run(stop <-chan struct{}) {
	s.log.Logf("gpstimer: initializing simulated timer")
	last := trigger.Now()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.log.Logf("gpstimer: simulated timer shutdown")
			return
		case <-ticker.C:
		}

		cur := trigger.Now()

		s.mu.Lock()
		if s.total > 0 && !s.alignUntil.IsZero() && cur.ToTime().Before(s.alignUntil) {
			// still waiting for the minute boundary: hold progress at
			// zero and keep publishing the current timestamp so status
			// readers see the timer alive, but do not accumulate.
			cur.ExposureProgress = 0
			s.current = cur
			s.mu.Unlock()
			last = cur
			continue
		}
		if !s.alignUntil.IsZero() {
			s.alignUntil = time.Time{}
			last = cur
		}

		elapsed := cur.ToTime().Sub(last.ToTime())
		unit := time.Second
		if s.millisecondMode {
			unit = time.Millisecond
		}
		// only whole units are counted; the remainder carries into the
		// next tick so sub-unit ticks still add up.
		units := elapsed / unit
		if s.total > 0 {
			s.progress += int(units)
			if s.progress >= s.total {
				s.progress -= s.total
				trig := cur
				select {
				case s.triggers <- trig:
				default:
					s.log.Logf("gpstimer: trigger queue full, dropping trigger")
				}
				s.mode = timerproto.ModeReadout
			}
		}
		cur.ExposureProgress = s.progress
		s.current = cur
		s.mu.Unlock()

		last = trigger.FromTime(last.ToTime().Add(units * unit))
	}
}

// FatalError always reports nil: the simulated timer has no hardware
// connection that can fail.
func (s *Simulated) FatalError() error { return nil }

func unitName(millisecondMode bool) string {
	if millisecondMode {
		return "ms"
	}
	return "s"
}
