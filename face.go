package cubegen

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// KernelKind selects the projection kernel family.
type KernelKind uint8

const (
	// KernelVertical samples the vertical face strip from two hemispheres.
	KernelVertical KernelKind = iota + 1
	// KernelHorizontal samples the horizontal face strip from two hemispheres.
	KernelHorizontal
	// KernelDirect projects one equirectangular image along a direction.
	KernelDirect
)

// String returns the kernel family name.
func (k KernelKind) String() string {
	switch k {
	case KernelVertical:
		return "vertical"
	case KernelHorizontal:
		return "horizontal"
	case KernelDirect:
		return "direct"
	default:
		return fmt.Sprintf("KernelKind(%d)", uint8(k))
	}
}

// Sources returns the number of diffuse planes the kernel samples.
func (k KernelKind) Sources() int {
	if k == KernelDirect {
		return 1
	}
	return 2
}

// faceCount returns the number of faces of the kernel's set, 0 for an
// unknown kind.
func (k KernelKind) faceCount() int {
	switch k {
	case KernelVertical:
		return len(verticalOrder)
	case KernelHorizontal:
		return len(horizontalOrder)
	case KernelDirect:
		return len(directOrder)
	default:
		return 0
	}
}

// FaceSet is a fixed, ordered group of cube faces produced by one call.
type FaceSet uint8

const (
	// SetVertical is {bottom, front, top} sampled along the vertical seam.
	SetVertical FaceSet = iota + 1
	// SetHorizontal is {front, right, back, left} sampled along the
	// horizontal seam.
	SetHorizontal
	// SetDirect is {up, down, left, right, front, rear}.
	SetDirect
)

// Face names. Files are named after them, never randomized.
const (
	FaceBottom = "bottom"
	FaceFront  = "front"
	FaceTop    = "top"
	FaceRight  = "right"
	FaceBack   = "back"
	FaceLeft   = "left"
	FaceUp     = "up"
	FaceDown   = "down"
	FaceRear   = "rear"
)

var (
	verticalOrder   = [...]string{FaceBottom, FaceFront, FaceTop}
	horizontalOrder = [...]string{FaceFront, FaceRight, FaceBack, FaceLeft}
	directOrder     = [...]string{FaceUp, FaceDown, FaceLeft, FaceRight, FaceFront, FaceRear}
)

var directDirections = [6][3]float32{
	{0, 1, 0},  // up
	{0, -1, 0}, // down
	{-1, 0, 0}, // left
	{1, 0, 0},  // right
	{0, 0, 1},  // front
	{0, 0, -1}, // rear
}

var directPalette = [6][3]float32{
	{0, 0.992, 1},
	{1, 0.149, 0},
	{1, 0.251, 0.988},
	{0, 0.976, 0.173},
	{0.024, 0.204, 0.988},
	{0.996, 0.984, 0.169},
}

// String returns the set name.
func (s FaceSet) String() string {
	switch s {
	case SetVertical:
		return "vertical"
	case SetHorizontal:
		return "horizontal"
	case SetDirect:
		return "direct"
	default:
		return fmt.Sprintf("FaceSet(%d)", uint8(s))
	}
}

// ParseFaceSets parses "vertical", "horizontal" or "both".
func ParseFaceSets(s string) ([]FaceSet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertical", "v":
		return []FaceSet{SetVertical}, nil
	case "horizontal", "h":
		return []FaceSet{SetHorizontal}, nil
	case "", "both", "all":
		return []FaceSet{SetVertical, SetHorizontal}, nil
	default:
		return nil, fmt.Errorf("%w: unknown face set %q", ErrConfig, s)
	}
}

// Kernel returns the kernel family the set is rendered with.
func (s FaceSet) Kernel() KernelKind {
	switch s {
	case SetVertical:
		return KernelVertical
	case SetHorizontal:
		return KernelHorizontal
	case SetDirect:
		return KernelDirect
	default:
		return 0
	}
}

// Names returns the face names in dispatch order.
func (s FaceSet) Names() []string {
	switch s {
	case SetVertical:
		return verticalOrder[:]
	case SetHorizontal:
		return horizontalOrder[:]
	case SetDirect:
		return directOrder[:]
	default:
		return nil
	}
}

// FaceExtent returns the face size for sources of w*h pixels.
// Seam sets halve both dimensions; the direct set keeps them.
func (s FaceSet) FaceExtent(w, h int) (fw, fh int, err error) {
	switch s {
	case SetVertical, SetHorizontal:
		fw, fh = w/2, h/2
	case SetDirect:
		fw, fh = w, h
	default:
		return 0, 0, fmt.Errorf("%w: unknown face set %d", ErrConfig, uint8(s))
	}
	if fw < 1 || fh < 1 {
		return 0, 0, fmt.Errorf("%w: source %dx%d too small for %s faces", ErrConfig, w, h, s)
	}
	return fw, fh, nil
}

// FaceSpec identifies one face of a set and carries its kernel parameters.
type FaceSpec struct {
	// Name is the face identifier and output file stem.
	Name string

	// Index is the position of the face in its set.
	Index uint32

	// Offset locates the face in the unfolded strip, in pixels (seam sets).
	Offset [2]uint32

	// Direction and Color are the unit normal and tint (direct set).
	Direction [3]float32
	Color     [3]float32

	// Mirror asks the writer to flip rows vertically.
	Mirror bool
}

// Specs returns the faces of the set in dispatch order for faces of fw
// pixels wide written to container c. With tint disabled the direct set
// uses white.
func (s FaceSet) Specs(fw int, c Container, tint bool) []FaceSpec {
	names := s.Names()
	out := make([]FaceSpec, len(names))
	for i, name := range names {
		spec := FaceSpec{Name: name, Index: uint32(i)} //nolint:gosec // at most 6 faces
		switch s {
		case SetVertical:
			spec.Offset = [2]uint32{0, uint32(fw * i)} //nolint:gosec // face size fits uint32
			spec.Mirror = verticalMirror(name, c)
		case SetHorizontal:
			spec.Offset = [2]uint32{uint32(fw * i), 0} //nolint:gosec // face size fits uint32
		case SetDirect:
			spec.Direction = normalize(directDirections[i])
			spec.Color = [3]float32{1, 1, 1}
			if tint {
				spec.Color = directPalette[i]
			}
		}
		out[i] = spec
	}
	return out
}

// verticalMirror reports whether a vertical face is row-flipped on write.
// Vertical and horizontal strips use opposite row conventions: PNG output
// mirrors every vertical face, TIFF output only the two pole faces.
func verticalMirror(name string, c Container) bool {
	if c == ContainerTIFF {
		return name == FaceBottom || name == FaceTop
	}
	return true
}

func normalize(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
