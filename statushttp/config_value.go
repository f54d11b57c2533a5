package statushttp

import (
	"fmt"

	"github.com/pchote/puoko-nui-go/config"
)

// stringifyConfigValue renders one named field of v as the same string form
// config.Set accepts, the mirror image of config's internal setField
// switch.
func stringifyConfigValue(v config.Values, key string) (string, error) {
	switch key {
	case "trigger_mode":
		return string(v.TriggerMode), nil
	case "exposure_time":
		return fmt.Sprint(v.ExposureTime), nil
	case "align_first_exposure":
		return fmt.Sprint(v.AlignFirstExposure), nil
	case "save_frames":
		return fmt.Sprint(v.SaveFrames), nil
	case "validate_timestamps":
		return fmt.Sprint(v.ValidateTimestamps), nil
	case "object_type":
		return string(v.ObjectType), nil
	case "object_name":
		return v.ObjectName, nil
	case "calibration_countdown":
		return fmt.Sprint(v.CalibrationCountdown), nil
	case "run_prefix":
		return v.RunPrefix, nil
	case "output_dir":
		return v.OutputDir, nil
	case "run_number":
		return fmt.Sprint(v.RunNumber), nil
	case "frame_flip_x":
		return fmt.Sprint(v.FrameFlipX), nil
	case "frame_flip_y":
		return fmt.Sprint(v.FrameFlipY), nil
	case "frame_transpose":
		return fmt.Sprint(v.FrameTranspose), nil
	case "camera_binning":
		return fmt.Sprint(v.CameraBinning), nil
	case "camera_window_x":
		return fmt.Sprint(v.CameraWindowX), nil
	case "camera_window_y":
		return fmt.Sprint(v.CameraWindowY), nil
	case "camera_window_width":
		return fmt.Sprint(v.CameraWindowWidth), nil
	case "camera_window_height":
		return fmt.Sprint(v.CameraWindowHeight), nil
	case "preview_rate_limit_ms":
		return fmt.Sprint(v.PreviewRateLimitMS), nil
	case "camera_readport_mode":
		return fmt.Sprint(v.CameraReadportMode), nil
	case "camera_readspeed_mode":
		return fmt.Sprint(v.CameraReadspeedMode), nil
	case "camera_gain_mode":
		return fmt.Sprint(v.CameraGainMode), nil
	case "camera_temperature":
		return fmt.Sprint(v.CameraTemperature), nil
	case "observer":
		return v.ObserverName, nil
	case "observatory":
		return v.Observatory, nil
	case "telescope":
		return v.Telescope, nil
	case "instrument":
		return v.Instrument, nil
	case "filter":
		return v.Filter, nil
	case "program_version":
		return v.ProgramVersion, nil
	case "reduction_script_path":
		return v.ReductionScriptPath, nil
	case "preview_script_path":
		return v.PreviewScriptPath, nil
	case "camera_backend":
		return v.CameraBackend, nil
	case "timer_serial_port":
		return v.TimerSerialPort, nil
	case "timer_baud":
		return fmt.Sprint(v.TimerBaud), nil
	case "image_scale_arcsec_per_pixel":
		return fmt.Sprint(v.ImageScaleArcsecPerPixel), nil
	case "http_addr":
		return v.HTTPAddr, nil
	default:
		return "", fmt.Errorf("statushttp: unrecognized key %q", key)
	}
}
