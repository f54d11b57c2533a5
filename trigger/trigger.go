// Package trigger describes the timestamp emitted by the external
// GPS-disciplined timer board on each exposure boundary.
package trigger

import "time"

// Timestamp is an absolute wall-clock instant reported by the timer.
//
// Milliseconds is in [0, 999] once Normalize has been called; the timer
// itself sends unnormalized values where Milliseconds may exceed 1000, so
// every Timestamp built from wire data must be normalized before use.
type Timestamp struct {
	Year, Month, Day    int
	Hours, Minutes      int
	Seconds             int
	Milliseconds        int

	// Locked reports whether the GPS was disciplined when this timestamp
	// was captured.
	Locked bool

	// ExposureProgress is only meaningful when this Timestamp is streamed as
	// the timer's "current time"; it is zero on a trigger event.
	ExposureProgress int
}

// Normalize carries overflow from Milliseconds up through Seconds, Minutes,
// Hours, Day, Month and Year so that every field lies within its calendar
// range. Milliseconds are folded in by hand; the rest of the carry is
// delegated to time.Date.
func (t *Timestamp) Normalize() {
	for t.Milliseconds < 0 {
		t.Milliseconds += 1000
		t.Seconds--
	}
	t.Seconds += t.Milliseconds / 1000
	t.Milliseconds %= 1000

	tm := time.Date(t.Year, time.Month(t.Month), t.Day, t.Hours, t.Minutes, t.Seconds, 0, time.UTC)
	t.Year = tm.Year()
	t.Month = int(tm.Month())
	t.Day = tm.Day()
	t.Hours = tm.Hour()
	t.Minutes = tm.Minute()
	t.Seconds = tm.Second()
}

// ToTime converts the Timestamp to a time.UTC time.Time, including the
// millisecond component. It assumes the Timestamp is already normalized.
func (t Timestamp) ToTime() time.Time {
	ns := t.Milliseconds * int(time.Millisecond)
	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hours, t.Minutes, t.Seconds, ns, time.UTC)
}

// Unix returns the Timestamp as fractional Unix seconds.
func (t Timestamp) Unix() float64 {
	tm := t.ToTime()
	return float64(tm.Unix()) + float64(t.Milliseconds)/1000.0
}

// FromTime builds an unlocked, zero-progress Timestamp from a time.Time,
// used by the simulated timer and by system-clock-derived "current time"
// polling.
func FromTime(tm time.Time) Timestamp {
	tm = tm.UTC()
	return Timestamp{
		Year:         tm.Year(),
		Month:        int(tm.Month()),
		Day:          tm.Day(),
		Hours:        tm.Hour(),
		Minutes:      tm.Minute(),
		Seconds:      tm.Second(),
		Milliseconds: tm.Nanosecond() / int(time.Millisecond),
	}
}

// Now returns the current wall-clock instant as an unlocked Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// AddExposure returns a copy of t shifted forward by an exposure duration
// expressed in the unit implied by millisecondMode (milliseconds if true,
// whole seconds otherwise), normalizing the result. It is used to compute
// the end-of-exposure timestamp for FITS UTC-END headers.
func (t Timestamp) AddExposure(exposureUnits int, millisecondMode bool) Timestamp {
	end := t
	if millisecondMode {
		end.Milliseconds += exposureUnits
	} else {
		end.Seconds += exposureUnits
	}
	end.Normalize()
	return end
}
