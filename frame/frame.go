// Package frame describes a single CCD exposure and the geometric
// transforms that FrameManager applies before a frame is persisted.
package frame

import (
	"time"

	"github.com/pchote/puoko-nui-go/trigger"
)

// Region is a sub-array rectangle, e.g. the light-sensitive image area or
// the overscan bias area of a readout.
type Region struct {
	Left, Right, Top, Bottom int
}

// Frame is a single exposure: a pixel buffer and its descriptive metadata.
//
// A Frame has a single owner at any time: the CameraBackend fills and owns
// it until the sink callback returns, the sink (CameraWorker) transfers
// ownership to FrameManager on enqueue, and FrameManager is the last owner,
// discarding it once a save/preview has been attempted.
type Frame struct {
	// Pix is the pixel buffer, row-major, strided by Width.
	Pix []uint16

	Width, Height int

	// Temperature is the sensor temperature at readout, in Celsius.
	Temperature float64

	// ReadoutTime is the duration the sensor spent shifting charge off chip.
	ReadoutTime time.Duration

	// VerticalShift is the vertical-shift time per row.
	VerticalShift time.Duration

	// ImageRegion and BiasRegion are optional; HasImageRegion/HasBiasRegion
	// indicate whether they were supplied by the backend.
	ImageRegion    Region
	HasImageRegion bool
	BiasRegion     Region
	HasBiasRegion  bool

	// EMGain and ExposureShortcutMS are optional EMCCD-specific fields.
	EMGain              float64
	HasEMGain           bool
	ExposureShortcutMS  uint16
	HasExposureShortcut bool

	// Port, Speed, Gain are backend-supplied descriptive strings.
	Port, Speed, Gain string

	// DownloadedTime is the wall-clock instant the host received the final
	// byte of this frame.
	DownloadedTime trigger.Timestamp

	// HasTimestamp and RelativeSeconds are used in lieu of a paired trigger
	// when the backend runs without real triggers (e.g. free-running tests).
	HasTimestamp     bool
	RelativeSeconds  float64
}

// Clone returns a deep copy of f, used by the transform round-trip tests and
// anywhere a frame must be mutated without disturbing a shared fixture.
func (f *Frame) Clone() *Frame {
	cp := *f
	cp.Pix = make([]uint16, len(f.Pix))
	copy(cp.Pix, f.Pix)
	return &cp
}

// FlipX mirrors the frame left-to-right in place, and updates ImageRegion /
// BiasRegion to match. Applying FlipX twice is the identity transform.
func (f *Frame) FlipX() {
	w, h := f.Width, f.Height
	for j := 0; j < h; j++ {
		row := f.Pix[j*w : j*w+w]
		for i := 0; i < w/2; i++ {
			row[i], row[w-i-1] = row[w-i-1], row[i]
		}
	}
	if f.HasImageRegion {
		f.ImageRegion.Left, f.ImageRegion.Right = w-f.ImageRegion.Right, w-f.ImageRegion.Left
	}
	if f.HasBiasRegion {
		f.BiasRegion.Left, f.BiasRegion.Right = w-f.BiasRegion.Right, w-f.BiasRegion.Left
	}
}

// FlipY mirrors the frame top-to-bottom in place, and updates ImageRegion /
// BiasRegion to match. Applying FlipY twice is the identity transform.
func (f *Frame) FlipY() {
	w, h := f.Width, f.Height
	for j := 0; j < h/2; j++ {
		top := f.Pix[j*w : j*w+w]
		bot := f.Pix[(h-j-1)*w : (h-j-1)*w+w]
		for i := 0; i < w; i++ {
			top[i], bot[i] = bot[i], top[i]
		}
	}
	if f.HasImageRegion {
		f.ImageRegion.Top, f.ImageRegion.Bottom = h-f.ImageRegion.Bottom, h-f.ImageRegion.Top
	}
	if f.HasBiasRegion {
		f.BiasRegion.Top, f.BiasRegion.Bottom = h-f.BiasRegion.Bottom, h-f.BiasRegion.Top
	}
}

// Transpose swaps the frame's rows and columns in place (using a scratch
// buffer, since width and height may differ), and swaps Width/Height and
// the two axes of ImageRegion / BiasRegion to match. Applying Transpose
// twice is the identity transform.
func (f *Frame) Transpose() {
	w, h := f.Width, f.Height
	scratch := make([]uint16, len(f.Pix))
	copy(scratch, f.Pix)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			f.Pix[i*h+j] = scratch[j*w+i]
		}
	}
	if f.HasImageRegion {
		r := f.ImageRegion
		f.ImageRegion = Region{Left: r.Top, Right: r.Bottom, Top: r.Left, Bottom: r.Right}
	}
	if f.HasBiasRegion {
		r := f.BiasRegion
		f.BiasRegion = Region{Left: r.Top, Right: r.Bottom, Top: r.Left, Bottom: r.Right}
	}
	f.Width, f.Height = h, w
}

// ApplyTransforms applies flip-x, flip-y, then transpose, in that fixed
// canonical order, skipping any transform not requested. This fixed order
// is what makes applying {flip-x, flip-y, transpose} commute regardless of
// the order they're requested in: FrameManager always applies them
// canonically, never in request order.
func (f *Frame) ApplyTransforms(flipX, flipY, transpose bool) {
	if flipX {
		f.FlipX()
	}
	if flipY {
		f.FlipY()
	}
	if transpose {
		f.Transpose()
	}
}
