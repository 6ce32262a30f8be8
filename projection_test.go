package cubegen

import (
	"testing"

	"github.com/chewxy/math32"
)

const eps = 1e-4

func near(a, b [3]float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// edgeDir returns the direction through face-local (u, v) exactly on the
// face border.
func edgeDir(kind KernelKind, face, fw int, u, v float32) [3]float32 {
	var off [2]uint32
	if kind == KernelVertical {
		off = [2]uint32{0, uint32(face * fw)} //nolint:gosec // small
	} else {
		off = [2]uint32{uint32(face * fw), 0} //nolint:gosec // small
	}
	return FaceDirection(StripForward(kind, off, fw), u, v)
}

func TestStripForward(t *testing.T) {
	tests := []struct {
		kind KernelKind
		face int
		want [3]float32
	}{
		{KernelVertical, 0, [3]float32{0, -1, 0}},
		{KernelVertical, 1, [3]float32{0, 0, 1}},
		{KernelVertical, 2, [3]float32{0, 1, 0}},
		{KernelHorizontal, 0, [3]float32{0, 0, 1}},
		{KernelHorizontal, 1, [3]float32{1, 0, 0}},
		{KernelHorizontal, 2, [3]float32{0, 0, -1}},
		{KernelHorizontal, 3, [3]float32{-1, 0, 0}},
	}
	for _, tt := range tests {
		var off [2]uint32
		if tt.kind == KernelVertical {
			off[1] = uint32(tt.face * 64) //nolint:gosec // small
		} else {
			off[0] = uint32(tt.face * 64) //nolint:gosec // small
		}
		if got := StripForward(tt.kind, off, 64); !near(got, tt.want) {
			t.Errorf("%s face %d forward = %v, want %v", tt.kind, tt.face, got, tt.want)
		}
	}
}

func TestHorizontalEdgesAreContinuous(t *testing.T) {
	for face := 0; face < 4; face++ {
		next := (face + 1) % 4
		for _, v := range []float32{-1, -0.3, 0, 0.7, 1} {
			a := edgeDir(KernelHorizontal, face, 32, 1, v)
			b := edgeDir(KernelHorizontal, next, 32, -1, v)
			if !near(a, b) {
				t.Errorf("face %d right edge %v != face %d left edge %v (v=%v)", face, a, next, b, v)
			}
		}
	}
}

func TestVerticalEdgesAreContinuous(t *testing.T) {
	for face := 0; face < 2; face++ {
		for _, u := range []float32{-1, -0.5, 0, 0.25, 1} {
			a := edgeDir(KernelVertical, face, 32, u, 1)
			b := edgeDir(KernelVertical, face+1, 32, u, -1)
			if !near(a, b) {
				t.Errorf("face %d top edge %v != face %d bottom edge %v (u=%v)", face, a, face+1, b, u)
			}
		}
	}
}

func TestFrontFaceAgreesAcrossStrips(t *testing.T) {
	for _, uv := range [][2]float32{{0, 0}, {0.5, -0.5}, {-1, 1}} {
		v := edgeDir(KernelVertical, 1, 16, uv[0], uv[1])
		h := edgeDir(KernelHorizontal, 0, 16, uv[0], uv[1])
		if !near(v, h) {
			t.Errorf("front face differs between strips at %v: %v vs %v", uv, v, h)
		}
	}
}

func TestLatLong(t *testing.T) {
	tests := []struct {
		d        [3]float32
		lat, lon float32
	}{
		{[3]float32{0, 0, 1}, 0, 0},
		{[3]float32{1, 0, 0}, 0, math32.Pi / 2},
		{[3]float32{-1, 0, 0}, 0, -math32.Pi / 2},
		{[3]float32{0, 1, 0}, math32.Pi / 2, 0},
		{[3]float32{0, -1, 0}, -math32.Pi / 2, 0},
	}
	for _, tt := range tests {
		lat, lon := LatLong(tt.d)
		if math32.Abs(lat-tt.lat) > eps || math32.Abs(lon-tt.lon) > eps {
			t.Errorf("LatLong(%v) = %v, %v, want %v, %v", tt.d, lat, lon, tt.lat, tt.lon)
		}
	}
}

func TestHemisphereSeam(t *testing.T) {
	const w, h = 64, 64
	// Straight ahead lands on the seam between the west and east images.
	x, y := HemispherePoint([3]float32{0, 0, 1}, w, h)
	if math32.Abs(x-(w-0.5)) > eps || math32.Abs(y-(h/2-0.5)) > eps {
		t.Errorf("front maps to %v, %v", x, y)
	}
	if img, col := AtlasImage(w-1, w); img != 0 || col != w-1 {
		t.Errorf("AtlasImage(w-1) = %d, %d", img, col)
	}
	if img, col := AtlasImage(w, w); img != 1 || col != 0 {
		t.Errorf("AtlasImage(w) = %d, %d", img, col)
	}
	if img, col := AtlasImage(-1, w); img != 1 || col != w-1 {
		t.Errorf("AtlasImage(-1) = %d, %d", img, col)
	}
	if img, col := AtlasImage(2*w, w); img != 0 || col != 0 {
		t.Errorf("AtlasImage(2w) = %d, %d", img, col)
	}
}

func TestPixelUV(t *testing.T) {
	u, v := PixelUV(0, 0, 4, 4)
	if u != -0.75 || v != 0.75 {
		t.Errorf("PixelUV(0,0) = %v, %v", u, v)
	}
	u, v = PixelUV(3, 3, 4, 4)
	if u != 0.75 || v != -0.75 {
		t.Errorf("PixelUV(3,3) = %v, %v", u, v)
	}
}
