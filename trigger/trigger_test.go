package trigger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeCarriesMilliseconds(t *testing.T) {
	ts := Timestamp{Year: 2020, Month: 1, Day: 1, Hours: 0, Minutes: 0, Seconds: 59, Milliseconds: 1500}
	ts.Normalize()

	want := Timestamp{Year: 2020, Month: 1, Day: 1, Hours: 0, Minutes: 1, Seconds: 0, Milliseconds: 500}
	if diff := cmp.Diff(want, ts); diff != "" {
		t.Fatalf("unexpected normalization (-want +got):\n%s", diff)
	}
}

func TestNormalizeNegativeMilliseconds(t *testing.T) {
	ts := Timestamp{Year: 2020, Month: 1, Day: 1, Hours: 0, Minutes: 1, Seconds: 0, Milliseconds: -500}
	ts.Normalize()

	want := Timestamp{Year: 2020, Month: 1, Day: 1, Hours: 0, Minutes: 0, Seconds: 59, Milliseconds: 500}
	if diff := cmp.Diff(want, ts); diff != "" {
		t.Fatalf("unexpected normalization (-want +got):\n%s", diff)
	}
}

func TestNormalizeCarriesAcrossMonthBoundary(t *testing.T) {
	ts := Timestamp{Year: 2020, Month: 1, Day: 31, Hours: 23, Minutes: 59, Seconds: 60, Milliseconds: 0}
	ts.Normalize()

	if ts.Month != 2 || ts.Day != 1 || ts.Hours != 0 || ts.Minutes != 0 || ts.Seconds != 0 {
		t.Fatalf("expected carry into February 1st, got %+v", ts)
	}
}

func TestUnixRoundTrip(t *testing.T) {
	ts := Timestamp{Year: 2026, Month: 7, Day: 30, Hours: 12, Minutes: 0, Seconds: 0, Milliseconds: 250}
	got := FromTime(ts.ToTime())
	if diff := cmp.Diff(ts, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAddExposureSeconds(t *testing.T) {
	start := Timestamp{Year: 2026, Month: 1, Day: 1, Seconds: 58}
	end := start.AddExposure(5, false)
	if end.Seconds != 3 || end.Minutes != 1 {
		t.Fatalf("expected carry to 00:01:03, got %02d:%02d:%02d", end.Hours, end.Minutes, end.Seconds)
	}
}
