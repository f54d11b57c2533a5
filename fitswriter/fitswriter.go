// Package fitswriter encodes a paired (frame, trigger) into a gzip-
// compressed FITS file, adapting the generic image-writing path the
// teacher used for camera snapshots into the full annotated header this
// system requires.
package fitswriter

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
	"github.com/pchote/puoko-nui-go/config"
	"github.com/pchote/puoko-nui-go/frame"
	"github.com/pchote/puoko-nui-go/trigger"
)

// triggerModeLabel is the human-readable TRG-MODE header value.
func triggerModeLabel(mode config.TriggerMode) string {
	switch mode {
	case config.TriggerSeconds:
		return "Low Resolution"
	case config.TriggerMilliseconds:
		return "High Resolution"
	case config.TriggerBias:
		return "BIAS"
	default:
		return string(mode)
	}
}

func timeString(t trigger.Timestamp, millisecondPrecision bool) string {
	if millisecondPrecision {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hours, t.Minutes, t.Seconds, t.Milliseconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds)
}

func dateString(t trigger.Timestamp) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year, t.Month, t.Day)
}

func regionString(r frame.Region) string {
	return fmt.Sprintf("[%d:%d,%d:%d]", r.Left, r.Right, r.Top, r.Bottom)
}

// Header builds the FITS header cards for f, given the acquisition
// configuration and the (already normalized, start-of-exposure) trigger
// that was paired with it.
func Header(f *frame.Frame, cfg config.Values, start trigger.Timestamp) []fitsio.Card {
	bias := cfg.TriggerMode == config.TriggerBias
	msPrecision := cfg.TriggerMode == config.TriggerMilliseconds

	object := cfg.ObjectName
	if bias {
		object = "Bias"
	}

	cards := []fitsio.Card{
		{Name: "OBJECT", Value: object},
		{Name: "OBSERVER", Value: cfg.ObserverName},
		{Name: "OBSERVAT", Value: cfg.Observatory},
		{Name: "TELESCOP", Value: cfg.Telescope},
		{Name: "INSTRUME", Value: cfg.Instrument},
		{Name: "FILTER", Value: cfg.Filter},
		{Name: "PROG-VER", Value: cfg.ProgramVersion},
	}

	if !bias {
		cards = append(cards, fitsio.Card{Name: "EXPTIME", Value: exposureSeconds(cfg)})
	}

	if !bias {
		end := start.AddExposure(cfg.ExposureTime, msPrecision)
		cards = append(cards,
			fitsio.Card{Name: "UT_DATE", Value: dateString(start)},
			fitsio.Card{Name: "UT_TIME", Value: timeString(start, msPrecision)},
			fitsio.Card{Name: "UTC-DATE", Value: dateString(start)},
			fitsio.Card{Name: "UTC-BEG", Value: timeString(start, msPrecision)},
			fitsio.Card{Name: "UTC-END", Value: timeString(end, msPrecision)},
			fitsio.Card{Name: "UTC-LOCK", Value: start.Locked},
			fitsio.Card{Name: "TRG-ALGN", Value: cfg.AlignFirstExposure},
		)
	}

	pc := f.DownloadedTime
	cards = append(cards,
		fitsio.Card{Name: "PC-DATE", Value: dateString(pc)},
		fitsio.Card{Name: "PC-TIME", Value: timeString(pc, true)},
		fitsio.Card{Name: "CCD-TEMP", Value: f.Temperature},
		fitsio.Card{Name: "CCD-PORT", Value: f.Port},
		fitsio.Card{Name: "CCD-RATE", Value: f.Speed},
		fitsio.Card{Name: "CCD-GAIN", Value: f.Gain},
		fitsio.Card{Name: "CCD-BIN", Value: cfg.CameraBinning},
		fitsio.Card{Name: "CCD-ROUT", Value: f.ReadoutTime.Seconds()},
		fitsio.Card{Name: "CCD-SHFT", Value: f.VerticalShift.Seconds()},
		fitsio.Card{Name: "TRG-MODE", Value: triggerModeLabel(cfg.TriggerMode)},
		fitsio.Card{Name: "IM-SCALE", Value: cfg.ImageScaleArcsecPerPixel},
	)

	if f.HasTimestamp {
		cards = append(cards, fitsio.Card{Name: "CCD-TIME", Value: f.RelativeSeconds})
	}
	if f.HasEMGain {
		cards = append(cards, fitsio.Card{Name: "CCD-EMGN", Value: f.EMGain})
	}
	if f.HasExposureShortcut {
		cards = append(cards, fitsio.Card{Name: "CCD-SCUT", Value: f.ExposureShortcutMS})
	}
	if f.HasImageRegion {
		cards = append(cards, fitsio.Card{Name: "IMAG-RGN", Value: regionString(f.ImageRegion)})
	}
	if f.HasBiasRegion {
		cards = append(cards, fitsio.Card{Name: "BIAS-RGN", Value: regionString(f.BiasRegion)})
	}

	return cards
}

func exposureSeconds(cfg config.Values) float64 {
	if cfg.TriggerMode == config.TriggerMilliseconds {
		return float64(cfg.ExposureTime) / 1000.0
	}
	return float64(cfg.ExposureTime)
}

// Write gzip-compresses a single-plane 16-bit FITS image of f to w, with
// the header built by Header. fitsio stores BITPIX=16 data as signed
// int16 with a BZERO/BSCALE offset, so unsigned pixels are rebiased the
// same way the snapshot image writer this is adapted from did.
func Write(w io.Writer, f *frame.Frame, cfg config.Values, start trigger.Timestamp) error {
	gz := gzip.NewWriter(w)
	defer gz.Close()

	fits, err := fitsio.Create(gz)
	if err != nil {
		return err
	}
	defer fits.Close()

	im := fitsio.NewImage(16, []int{f.Width, f.Height})
	defer im.Close()

	cards := Header(f, cfg, start)
	cards = append(cards, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	if err := im.Header().Append(cards...); err != nil {
		return err
	}

	signed := make([]int16, len(f.Pix))
	for i, v := range f.Pix {
		signed[i] = int16(int32(v) - 32768)
	}
	if err := im.Write(signed); err != nil {
		return err
	}

	return fits.Write(im)
}
