// Package image is the raster codec of cubegen.
//
// It decodes the common 8-bit container formats into tightly packed gray or
// RGBA buffers and encodes such buffers losslessly as PNG with an explicit
// channel count, stride and row order.
package image

import (
	"fmt"
	"strings"
)

// Layout is the in-memory pixel layout of a raster buffer.
type Layout uint8

const (
	// LayoutGray8 is 8-bit luma, one byte per pixel.
	LayoutGray8 Layout = iota

	// LayoutRGBA8 is non-premultiplied 8-bit RGBA, four bytes per pixel.
	LayoutRGBA8

	layoutCount
)

// layoutInfo contains metadata about a layout.
type layoutInfo struct {
	name     string
	channels int
}

var layoutInfoTable = [layoutCount]layoutInfo{
	LayoutGray8: {name: "Gray8", channels: 1},
	LayoutRGBA8: {name: "RGBA8", channels: 4},
}

// IsValid returns true if the layout is known.
func (l Layout) IsValid() bool {
	return l < layoutCount
}

// Channels returns the number of samples per pixel.
func (l Layout) Channels() int {
	if !l.IsValid() {
		return 0
	}
	return layoutInfoTable[l].channels
}

// RowBytes returns the bytes of a tightly packed row.
func (l Layout) RowBytes(width int) int {
	return width * l.Channels()
}

// String returns a string representation of the layout.
func (l Layout) String() string {
	if !l.IsValid() {
		return "Unknown"
	}
	return layoutInfoTable[l].name
}

// LayoutForChannels returns the layout holding n channels.
func LayoutForChannels(n int) (Layout, error) {
	switch n {
	case 1:
		return LayoutGray8, nil
	case 4:
		return LayoutRGBA8, nil
	default:
		return 0, fmt.Errorf("%w: %d channels", ErrInvalidFormat, n)
	}
}

// Format is an image container format.
type Format uint8

// Container formats recognized by extension.
const (
	None Format = iota
	PNG
	JPEG
	GIF
	TIFF
	BMP
	WebP
	TGA
	PSD
	HDR
	PIC
)

var formatNames = [...]string{
	None: "none",
	PNG:  "png",
	JPEG: "jpeg",
	GIF:  "gif",
	TIFF: "tiff",
	BMP:  "bmp",
	WebP: "webp",
	TGA:  "tga",
	PSD:  "psd",
	HDR:  "hdr",
	PIC:  "pic",
}

// String returns the format name.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Decodable reports whether this package can decode the format. TGA, PSD,
// HDR and PIC files are recognized by extension only.
func (f Format) Decodable() bool {
	switch f {
	case PNG, JPEG, GIF, TIFF, BMP, WebP:
		return true
	default:
		return false
	}
}

// ExtToFormat returns the format for a filename extension, which may start
// with a dot or not.
func ExtToFormat(ext string) (Format, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	case "webp":
		return WebP, nil
	case "tga":
		return TGA, nil
	case "psd":
		return PSD, nil
	case "hdr":
		return HDR, nil
	case "pic":
		return PIC, nil
	case "":
		return None, fmt.Errorf("%w: empty extension", ErrUnsupportedFormat)
	}
	return None, fmt.Errorf("%w: extension %q not recognized", ErrUnsupportedFormat, ext)
}
