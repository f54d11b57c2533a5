// Package config holds the acquisition parameter bundle consulted by the
// camera and frame-manager workers at each decision point, loaded from YAML
// with koanf and hot-reloadable; hardware-binding fields keep their values
// while an acquisition is in progress.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"

	"github.com/pchote/puoko-nui-go/util"
)

// temperatureLimits bounds camera_temperature to what a thermoelectric
// cooler on this class of CCD can plausibly be asked to hold.
var temperatureLimits = util.Limiter{Min: -80, Max: 40}

// TriggerMode selects how the timer paces exposures.
type TriggerMode string

const (
	TriggerSeconds      TriggerMode = "SECONDS"
	TriggerMilliseconds TriggerMode = "MILLISECONDS"
	TriggerBias         TriggerMode = "BIAS"
)

// ObjectType drives the OBJECT FITS header and the calibration-countdown
// auto-disable rule.
type ObjectType string

const (
	ObjectDark   ObjectType = "DARK"
	ObjectFlat   ObjectType = "FLAT"
	ObjectFocus  ObjectType = "FOCUS"
	ObjectTarget ObjectType = "TARGET"
)

// Values is the flat, YAML-serializable parameter bundle. Every field here
// is a recognized configuration key; the koanf tag is also the key used by
// the control HTTP surface and the CLI.
type Values struct {
	TriggerMode        TriggerMode `koanf:"trigger_mode"`
	ExposureTime       int         `koanf:"exposure_time"`
	AlignFirstExposure bool        `koanf:"align_first_exposure"`
	SaveFrames         bool        `koanf:"save_frames"`
	ValidateTimestamps bool        `koanf:"validate_timestamps"`

	ObjectType           ObjectType `koanf:"object_type"`
	ObjectName           string     `koanf:"object_name"`
	CalibrationCountdown int        `koanf:"calibration_countdown"`

	RunPrefix string `koanf:"run_prefix"`
	OutputDir string `koanf:"output_dir"`
	RunNumber int     `koanf:"run_number"`

	FrameFlipX     bool `koanf:"frame_flip_x"`
	FrameFlipY     bool `koanf:"frame_flip_y"`
	FrameTranspose bool `koanf:"frame_transpose"`

	CameraBinning      int `koanf:"camera_binning"`
	CameraWindowX      int `koanf:"camera_window_x"`
	CameraWindowY      int `koanf:"camera_window_y"`
	CameraWindowWidth  int `koanf:"camera_window_width"`
	CameraWindowHeight int `koanf:"camera_window_height"`

	PreviewRateLimitMS int `koanf:"preview_rate_limit_ms"`

	CameraReadportMode  int     `koanf:"camera_readport_mode"`
	CameraReadspeedMode int     `koanf:"camera_readspeed_mode"`
	CameraGainMode      int     `koanf:"camera_gain_mode"`
	CameraTemperature   float64 `koanf:"camera_temperature"`

	ObserverName   string `koanf:"observer"`
	Observatory    string `koanf:"observatory"`
	Telescope      string `koanf:"telescope"`
	Instrument     string `koanf:"instrument"`
	Filter         string `koanf:"filter"`
	ProgramVersion string `koanf:"program_version"`

	ReductionScriptPath string `koanf:"reduction_script_path"`
	PreviewScriptPath   string `koanf:"preview_script_path"`

	CameraBackend string `koanf:"camera_backend"`

	TimerSerialPort string `koanf:"timer_serial_port"`
	TimerBaud       int    `koanf:"timer_baud"`

	// ImageScaleArcsecPerPixel is recorded in the IM-SCALE FITS header; it
	// depends on the telescope's focal length and is not derivable from any
	// other acquisition setting.
	ImageScaleArcsecPerPixel float64 `koanf:"image_scale_arcsec_per_pixel"`

	HTTPAddr string `koanf:"http_addr"`
}

// Default returns the built-in defaults, loaded via koanf's structs
// provider, the same pattern used to seed a YAML config before a file on
// disk is overlaid on top of it.
func Default() Values {
	return Values{
		TriggerMode:          TriggerSeconds,
		ExposureTime:         5,
		SaveFrames:           true,
		ObjectType:           ObjectTarget,
		ObjectName:           "object",
		RunPrefix:            "run",
		OutputDir:            ".",
		RunNumber:            0,
		CameraBinning:        1,
		PreviewRateLimitMS:   1000,
		CameraTemperature:    -20,
		ObserverName:         "observer",
		Observatory:          "observatory",
		Telescope:            "telescope",
		Instrument:           "instrument",
		Filter:               "clear",
		ProgramVersion:       "dev",
		ReductionScriptPath:  "",
		PreviewScriptPath:    "",
		CameraBackend:        "SIMULATED",
		TimerSerialPort:      "/dev/ttyUSB0",
		TimerBaud:            9600,
		ImageScaleArcsecPerPixel: 0.33,
		HTTPAddr:             ":8080",
	}
}

// hardwareBinding lists the keys that may only change while no acquisition
// is running: mutating them mid-run would desynchronize the camera backend
// from the ROI/mode it was started with.
var hardwareBinding = map[string]bool{
	"trigger_mode":           true,
	"camera_binning":         true,
	"camera_window_x":        true,
	"camera_window_y":        true,
	"camera_window_width":    true,
	"camera_window_height":   true,
	"camera_readport_mode":   true,
	"camera_readspeed_mode":  true,
	"camera_gain_mode":       true,
	"camera_temperature":     true,
}

// ErrHardwareBindingLocked is returned by Set when a hardware-binding key is
// mutated while an acquisition is in progress.
var ErrHardwareBindingLocked = errors.New("config: key is hardware-binding and cannot change mid-acquisition")

// Config is the process-wide mutable parameter bundle. All access goes
// through its exported methods, which hold a mutex for the duration of the
// read or write; no caller is handed a pointer into the live Values.
type Config struct {
	mu        sync.RWMutex
	values    Values
	acquiring bool

	path string
	k    *koanf.Koanf
}

// Load reads defaults, then overlays path (if it exists) as YAML.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "config: loading defaults")
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			return nil, errors.Wrapf(err, "config: loading %s", path)
		}
	}
	var v Values
	if err := k.Unmarshal("", &v); err != nil {
		return nil, errors.Wrap(err, "config: unmarshaling")
	}
	return &Config{values: v, path: path, k: k}, nil
}

// Snapshot returns a copy of the current values, safe to read without
// holding any lock.
func (c *Config) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values
}

// BeginAcquisition locks hardware-binding fields against mutation.
func (c *Config) BeginAcquisition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquiring = true
}

// EndAcquisition unlocks hardware-binding fields.
func (c *Config) EndAcquisition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquiring = false
}

// Acquiring reports whether an acquisition is currently in progress.
func (c *Config) Acquiring() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.acquiring
}

// Set parses raw (a string, as it would arrive from a config file or HTTP
// request body) into the field named by key and applies it. On any error —
// unknown key, malformed value, out-of-range value, or a hardware-binding
// key mutated mid-acquisition — the previous value is retained and the
// error is returned for the caller to log.
func (c *Config) Set(key, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acquiring && hardwareBinding[key] {
		return errors.Wrapf(ErrHardwareBindingLocked, "key %q", key)
	}

	v := c.values
	if err := setField(&v, key, raw); err != nil {
		return err
	}
	c.values = v
	return nil
}

// DecrementCalibrationCountdown decrements the countdown by one, disabling
// save_frames once it reaches zero, per the calibration-countdown rule:
// non-TARGET captures auto-disable saving once their requested count is
// exhausted. Returns the countdown value after decrementing.
func (c *Config) DecrementCalibrationCountdown() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values.ObjectType == ObjectTarget {
		return c.values.CalibrationCountdown
	}
	if c.values.CalibrationCountdown <= 0 {
		return c.values.CalibrationCountdown
	}
	c.values.CalibrationCountdown--
	if c.values.CalibrationCountdown == 0 {
		c.values.SaveFrames = false
	}
	return c.values.CalibrationCountdown
}

// IncrementRunNumber bumps run_number by one, called after a frame is
// successfully saved to the canonical path.
func (c *Config) IncrementRunNumber() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values.RunNumber++
}

func setField(v *Values, key, raw string) error {
	switch key {
	case "trigger_mode":
		m := TriggerMode(strings.ToUpper(raw))
		if m != TriggerSeconds && m != TriggerMilliseconds && m != TriggerBias {
			return fmt.Errorf("config: invalid trigger_mode %q", raw)
		}
		v.TriggerMode = m
	case "exposure_time":
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid exposure_time %q", raw)
		}
		v.ExposureTime = n
	case "align_first_exposure":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: invalid align_first_exposure %q", raw)
		}
		v.AlignFirstExposure = b
	case "save_frames":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: invalid save_frames %q", raw)
		}
		v.SaveFrames = b
	case "validate_timestamps":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: invalid validate_timestamps %q", raw)
		}
		v.ValidateTimestamps = b
	case "object_type":
		o := ObjectType(strings.ToUpper(raw))
		switch o {
		case ObjectDark, ObjectFlat, ObjectFocus, ObjectTarget:
			v.ObjectType = o
		default:
			return fmt.Errorf("config: invalid object_type %q", raw)
		}
	case "object_name":
		v.ObjectName = raw
	case "calibration_countdown":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid calibration_countdown %q", raw)
		}
		v.CalibrationCountdown = n
	case "run_prefix":
		v.RunPrefix = raw
	case "output_dir":
		v.OutputDir = raw
	case "run_number":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid run_number %q", raw)
		}
		v.RunNumber = n
	case "frame_flip_x":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: invalid frame_flip_x %q", raw)
		}
		v.FrameFlipX = b
	case "frame_flip_y":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: invalid frame_flip_y %q", raw)
		}
		v.FrameFlipY = b
	case "frame_transpose":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: invalid frame_transpose %q", raw)
		}
		v.FrameTranspose = b
	case "camera_binning":
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid camera_binning %q", raw)
		}
		v.CameraBinning = n
	case "camera_window_x":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid camera_window_x %q", raw)
		}
		v.CameraWindowX = n
	case "camera_window_y":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid camera_window_y %q", raw)
		}
		v.CameraWindowY = n
	case "camera_window_width":
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid camera_window_width %q", raw)
		}
		v.CameraWindowWidth = n
	case "camera_window_height":
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid camera_window_height %q", raw)
		}
		v.CameraWindowHeight = n
	case "preview_rate_limit_ms":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid preview_rate_limit_ms %q", raw)
		}
		v.PreviewRateLimitMS = n
	case "camera_readport_mode":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid camera_readport_mode %q", raw)
		}
		v.CameraReadportMode = n
	case "camera_readspeed_mode":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid camera_readspeed_mode %q", raw)
		}
		v.CameraReadspeedMode = n
	case "camera_gain_mode":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("config: invalid camera_gain_mode %q", raw)
		}
		v.CameraGainMode = n
	case "camera_temperature":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || !temperatureLimits.Check(f) {
			return fmt.Errorf("config: invalid camera_temperature %q", raw)
		}
		v.CameraTemperature = f
	case "image_scale_arcsec_per_pixel":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("config: invalid image_scale_arcsec_per_pixel %q", raw)
		}
		v.ImageScaleArcsecPerPixel = f
	default:
		return fmt.Errorf("config: unrecognized key %q", key)
	}
	return nil
}
