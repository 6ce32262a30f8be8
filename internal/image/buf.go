package image

import (
	"errors"
)

// Common errors for image operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("image: invalid dimensions")

	// ErrInvalidFormat is returned when the layout is not recognized.
	ErrInvalidFormat = errors.New("image: invalid format")

	// ErrInvalidStride is returned when stride is less than minimum required.
	ErrInvalidStride = errors.New("image: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("image: data buffer too small")
)

// ImageBuf is a raster buffer with an explicit stride.
//
// Rows are stored top to bottom. Buffers created by this package are
// tightly packed; FromRaw accepts padded rows.
type ImageBuf struct {
	data   []byte
	width  int
	height int
	stride int
	layout Layout
}

// NewImageBuf creates a zeroed, tightly packed buffer.
func NewImageBuf(width, height int, layout Layout) (*ImageBuf, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !layout.IsValid() {
		return nil, ErrInvalidFormat
	}

	stride := layout.RowBytes(width)
	return &ImageBuf{
		data:   make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
		layout: layout,
	}, nil
}

// FromRaw creates an ImageBuf from existing data without copying.
// The caller must ensure data remains valid for the lifetime of the ImageBuf.
// Stride must be at least layout.RowBytes(width).
func FromRaw(data []byte, width, height int, layout Layout, stride int) (*ImageBuf, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !layout.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stride < layout.RowBytes(width) {
		return nil, ErrInvalidStride
	}
	if len(data) < stride*(height-1)+layout.RowBytes(width) {
		return nil, ErrDataTooSmall
	}

	return &ImageBuf{
		data:   data,
		width:  width,
		height: height,
		stride: stride,
		layout: layout,
	}, nil
}

// Width returns the image width in pixels.
func (b *ImageBuf) Width() int { return b.width }

// Height returns the image height in pixels.
func (b *ImageBuf) Height() int { return b.height }

// Stride returns the number of bytes between the starts of two rows.
func (b *ImageBuf) Stride() int { return b.stride }

// RowBytes returns the pixels of row y without padding.
func (b *ImageBuf) RowBytes(y int) []byte {
	start := y * b.stride
	return b.data[start : start+b.layout.RowBytes(b.width)]
}

// Packed returns the pixels without row padding, top row first. The
// result aliases the buffer when it is already tightly packed.
func (b *ImageBuf) Packed() []byte {
	row := b.layout.RowBytes(b.width)
	if b.stride == row {
		return b.data[:row*b.height]
	}
	out := make([]byte, row*b.height)
	for y := range b.height {
		copy(out[y*row:], b.RowBytes(y))
	}
	return out
}
