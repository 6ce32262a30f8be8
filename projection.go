package cubegen

import (
	"github.com/chewxy/math32"
)

// Projection math shared by SoftwareDevice and the WGSL kernels in
// internal/gpu, which evaluate the same mapping per invocation.
//
// Axes: +X right, +Y up, +Z front. Face-local coordinates u and v run from
// -1 to 1, v pointing up (row 0 is the top row).

// StripForward returns the face normal encoded by a strip offset.
// Horizontal offsets advance the yaw by 90 degrees per face, vertical
// offsets advance the pitch by 90 degrees per face starting at -90.
func StripForward(kind KernelKind, offset [2]uint32, faceW int) [3]float32 {
	fw := float32(faceW)
	switch kind {
	case KernelVertical:
		phi := (float32(offset[1])/fw - 1) * math32.Pi / 2
		return [3]float32{0, math32.Sin(phi), math32.Cos(phi)}
	default:
		theta := float32(offset[0]) / fw * math32.Pi / 2
		return [3]float32{math32.Sin(theta), 0, math32.Cos(theta)}
	}
}

// FaceBasis returns the right and up vectors of a face looking along f.
func FaceBasis(f [3]float32) (right, up [3]float32) {
	up = [3]float32{0, 1, 0}
	if math32.Abs(f[1]) > 0.5 {
		up = [3]float32{0, 0, -sign(f[1])}
	}
	right = normalize(cross(up, f))
	up = cross(f, right)
	return right, up
}

// FaceDirection returns the unit direction through face-local (u, v).
func FaceDirection(f [3]float32, u, v float32) [3]float32 {
	r, up := FaceBasis(f)
	return normalize([3]float32{
		f[0] + u*r[0] + v*up[0],
		f[1] + u*r[1] + v*up[1],
		f[2] + u*r[2] + v*up[2],
	})
}

// PixelUV returns the face-local coordinates of the center of pixel (x, y).
func PixelUV(x, y, fw, fh int) (u, v float32) {
	u = 2*(float32(x)+0.5)/float32(fw) - 1
	v = 1 - 2*(float32(y)+0.5)/float32(fh)
	return u, v
}

// LatLong returns latitude in [-pi/2, pi/2] and longitude in (-pi, pi].
// Longitude 0 faces +Z, pi/2 faces +X.
func LatLong(d [3]float32) (lat, lon float32) {
	r := math32.Sqrt(d[0]*d[0] + d[2]*d[2])
	lat = math32.Atan2(d[1], r)
	if d[0] == 0 && d[2] == 0 {
		return lat, 0
	}
	return lat, math32.Atan2(d[0], d[2])
}

// EquirectPoint maps a direction to continuous pixel coordinates of an
// equirectangular image of w*h pixels. X wraps, Y is clamped by the sampler.
func EquirectPoint(d [3]float32, w, h int) (x, y float32) {
	lat, lon := LatLong(d)
	x = (lon+math32.Pi)/(2*math32.Pi)*float32(w) - 0.5
	y = (0.5-lat/math32.Pi)*float32(h) - 0.5
	return x, y
}

// HemispherePoint maps a direction into the pair of hemispheres of w*h
// pixels each. The west image (diffuse A) covers longitudes [-pi, 0), the
// east image (diffuse B) [0, pi). The returned x is in atlas space, that is
// [0, 2w), so sampling can cross the seam.
func HemispherePoint(d [3]float32, w, h int) (x, y float32) {
	return EquirectPoint(d, 2*w, h)
}

// AtlasImage returns which hemisphere holds atlas column x and the column
// inside it, wrapping around the full longitude range.
func AtlasImage(x, w int) (image, col int) {
	x %= 2 * w
	if x < 0 {
		x += 2 * w
	}
	if x < w {
		return 0, x
	}
	return 1, x - w
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}
