package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "acquire.yml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsThenFile(t *testing.T) {
	path := writeTempConfig(t, "run_prefix: custom\nexposure_time: 10\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v := c.Snapshot()
	if v.RunPrefix != "custom" || v.ExposureTime != 10 {
		t.Fatalf("expected file overrides to apply, got %+v", v)
	}
	if v.CameraBinning != Default().CameraBinning {
		t.Fatalf("expected default to survive for unset key, got %d", v.CameraBinning)
	}
}

func TestSetRejectsHardwareBindingDuringAcquisition(t *testing.T) {
	c, err := Load(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.BeginAcquisition()
	if err := c.Set("camera_binning", "2"); err == nil {
		t.Fatalf("expected hardware-binding mutation to be rejected during acquisition")
	}
	if c.Snapshot().CameraBinning != Default().CameraBinning {
		t.Fatalf("previous value should be retained on rejection")
	}
	c.EndAcquisition()
	if err := c.Set("camera_binning", "2"); err != nil {
		t.Fatalf("expected mutation to succeed once acquisition ends: %v", err)
	}
	if c.Snapshot().CameraBinning != 2 {
		t.Fatalf("expected camera_binning=2, got %d", c.Snapshot().CameraBinning)
	}
}

func TestSetRejectsOutOfRangeValue(t *testing.T) {
	c, err := Load(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := c.Snapshot()
	if err := c.Set("trigger_mode", "BOGUS"); err == nil {
		t.Fatalf("expected an invalid trigger_mode to be rejected")
	}
	after := c.Snapshot()
	if before.TriggerMode != after.TriggerMode {
		t.Fatalf("previous value should be retained on a rejected mutation")
	}
}

func TestCalibrationCountdownAutoDisablesSaving(t *testing.T) {
	c, err := Load(writeTempConfig(t, "object_type: DARK\ncalibration_countdown: 2\nsave_frames: true\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := c.DecrementCalibrationCountdown(); n != 1 {
		t.Fatalf("expected countdown 1, got %d", n)
	}
	if !c.Snapshot().SaveFrames {
		t.Fatalf("save_frames should remain true while countdown > 0")
	}
	if n := c.DecrementCalibrationCountdown(); n != 0 {
		t.Fatalf("expected countdown 0, got %d", n)
	}
	if c.Snapshot().SaveFrames {
		t.Fatalf("save_frames should auto-disable once countdown reaches 0")
	}
}

func TestCalibrationCountdownIgnoredForTarget(t *testing.T) {
	c, err := Load(writeTempConfig(t, "object_type: TARGET\ncalibration_countdown: 1\nsave_frames: true\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.DecrementCalibrationCountdown()
	if !c.Snapshot().SaveFrames {
		t.Fatalf("TARGET captures should never auto-disable saving")
	}
}
