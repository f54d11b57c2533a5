// Package gpstimer implements the TimerWorker: the thread that talks to the
// external GPS-disciplined timer board (or, for testing, simulates one) and
// emits trigger timestamps as exposures complete.
package gpstimer

import (
	"github.com/pchote/puoko-nui-go/timerproto"
	"github.com/pchote/puoko-nui-go/trigger"
)

// LogSink receives a formatted log line; logbuf.Sink implements it.
type LogSink interface {
	Logf(format string, args ...interface{})
}

// Timer is the capability set the camera worker and frame manager consume.
// Both Serial (real hardware) and Simulated implement it.
type Timer interface {
	// Run drives the timer's read/write loop until stop is closed. On
	// return, RESET has been sent (Serial) or the simulated clock has
	// stopped advancing (Simulated).
	Run(stop <-chan struct{})

	// StartExposure begins a new exposure sequence of exptimeUnits units
	// (seconds or milliseconds per millisecondMode). useMonitor controls
	// whether the timer expects SIMULATE_CAMERA feedback from the host.
	// alignFirst delays the first trigger of the sequence until the next
	// wall-clock minute boundary.
	StartExposure(exptimeUnits uint16, millisecondMode bool, useMonitor bool, alignFirst bool)
	StopExposure()
	Reset()

	CurrentTimestamp() trigger.Timestamp
	Mode() timerproto.TimerMode

	// FatalError reports the error that caused Run to return early, if
	// any; nil while the timer is healthy or has not been run yet.
	FatalError() error

	// Triggers delivers a TriggerTimestamp for every completed exposure
	// boundary; the frame manager treats it as its trigger_queue.
	Triggers() <-chan trigger.Timestamp

	// SafeToStop is signalled once per stopped exposure sequence, once the
	// timer confirms it is safe to tell the camera to stop acquiring.
	SafeToStop() <-chan struct{}
}
