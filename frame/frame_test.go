package frame

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pchote/puoko-nui-go/util"
)

// gradient builds a deterministic w x h frame whose pixel values are a
// byte-arange gradient, repurposing util.ArangeByte (a numpy-arange analog
// for byte slices) as a source of reproducible non-uniform test pixels.
func gradient(w, h int) *Frame {
	bytes := util.ArangeByte(0, byte(w), 1)
	pix := make([]uint16, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			pix[j*w+i] = uint16(bytes[i]) + uint16(j)*256
		}
	}
	return &Frame{
		Pix: pix, Width: w, Height: h,
		HasImageRegion: true, ImageRegion: Region{Left: 1, Right: w - 1, Top: 1, Bottom: h - 1},
		HasBiasRegion: true, BiasRegion: Region{Left: 0, Right: 1, Top: 0, Bottom: h},
	}
}

func TestFlipXTwiceIsIdentity(t *testing.T) {
	f := gradient(8, 4)
	want := f.Clone()
	f.FlipX()
	f.FlipX()
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("flip-x twice changed the frame (-want +got):\n%s", diff)
	}
}

func TestFlipYTwiceIsIdentity(t *testing.T) {
	f := gradient(8, 4)
	want := f.Clone()
	f.FlipY()
	f.FlipY()
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("flip-y twice changed the frame (-want +got):\n%s", diff)
	}
}

func TestTransposeTwiceIsIdentity(t *testing.T) {
	f := gradient(8, 4)
	want := f.Clone()
	f.Transpose()
	f.Transpose()
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("transpose twice changed the frame (-want +got):\n%s", diff)
	}
}

func TestApplyTransformsIsOrderIndependent(t *testing.T) {
	base := gradient(6, 4)

	canonical := base.Clone()
	canonical.ApplyTransforms(true, true, true)

	// applying the flips in the other order (flip-y before flip-x) and then
	// transposing gives the same result as the canonical sequence.
	other := base.Clone()
	other.FlipY()
	other.FlipX()
	other.Transpose()

	if diff := cmp.Diff(canonical, other); diff != "" {
		t.Fatalf("transform application is not order independent (-want +got):\n%s", diff)
	}
}

func TestTransposeSwapsDimensions(t *testing.T) {
	f := gradient(6, 4)
	f.Transpose()
	if f.Width != 4 || f.Height != 6 {
		t.Fatalf("expected 4x6 after transposing 6x4, got %dx%d", f.Width, f.Height)
	}
	if f.ImageRegion.Left != 1 || f.ImageRegion.Top != 1 {
		t.Fatalf("expected image region axes swapped, got %+v", f.ImageRegion)
	}
}
