package cubegen

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// PixelFormat is the storage representation of source planes, GPU images
// and output faces for one invocation.
type PixelFormat uint8

const (
	// FormatInvalid is the zero value and never accepted.
	FormatInvalid PixelFormat = iota

	// FormatR8 is 8-bit unsigned, single channel.
	FormatR8

	// FormatRGBA8 is 8-bit unsigned, four channels (non-premultiplied).
	FormatRGBA8

	// FormatR16I is 16-bit signed integer, single channel.
	FormatR16I

	// FormatR16UI is 16-bit unsigned integer, single channel.
	FormatR16UI

	// FormatR32F is 32-bit IEEE float, single channel.
	FormatR32F

	formatCount
)

// Container is the file container a face is serialized into.
type Container uint8

const (
	// ContainerPNG is the lossless raster container for 8-bit data.
	ContainerPNG Container = iota + 1

	// ContainerTIFF is the scanline scientific container that keeps bit
	// depth and sample format.
	ContainerTIFF
)

// Ext returns the file extension written for the container.
func (c Container) Ext() string {
	switch c {
	case ContainerPNG:
		return ".png"
	case ContainerTIFF:
		return ".tif"
	default:
		return ""
	}
}

// String returns the container name.
func (c Container) String() string {
	switch c {
	case ContainerPNG:
		return "png"
	case ContainerTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Container(%d)", uint8(c))
	}
}

// WordKind is the scalar type of one GPU storage word.
type WordKind uint8

const (
	// WordU32 stores unsigned values (or packed RGBA8).
	WordU32 WordKind = iota + 1
	// WordI32 stores sign-extended signed values.
	WordI32
	// WordF32 stores IEEE floats.
	WordF32
)

// WGSL returns the WGSL scalar type name.
func (k WordKind) WGSL() string {
	switch k {
	case WordI32:
		return "i32"
	case WordF32:
		return "f32"
	default:
		return "u32"
	}
}

// SampleFormat mirrors the TIFF SampleFormat tag values.
type SampleFormat uint16

const (
	SampleUint  SampleFormat = 1
	SampleInt   SampleFormat = 2
	SampleFloat SampleFormat = 3
)

// FormatInfo is one row of the pixel-format dispatch table.
type FormatInfo struct {
	// Name is the lower-case identifier used in flags and config files.
	Name string

	// Channels is the number of samples per pixel.
	Channels int

	// ElementSize is the size in bytes of one sample on the CPU side.
	ElementSize int

	// Word is the GPU storage word kind. Every pixel occupies one word,
	// RGBA8 pixels are packed as r | g<<8 | b<<16 | a<<24.
	Word WordKind

	// Linear selects bilinear sampling in the kernel. Integer formats are
	// sampled with nearest filtering so values survive unchanged.
	Linear bool

	// Container is the output file container.
	Container Container

	// Sample and Bits describe the samples for the TIFF container.
	Sample SampleFormat
	Bits   int

	// Kernel is the suffix of the type-specialized kernel variants.
	Kernel string

	pack   func(p []byte) uint32
	unpack func(w uint32, p []byte)
}

var formatTable = [formatCount]FormatInfo{
	FormatR8: {
		Name: "r8", Channels: 1, ElementSize: 1, Word: WordU32, Linear: true,
		Container: ContainerPNG, Sample: SampleUint, Bits: 8, Kernel: "r8",
		pack:   func(p []byte) uint32 { return uint32(p[0]) },
		unpack: func(w uint32, p []byte) { p[0] = uint8(w & 0xFF) }, //nolint:gosec // masked to 8 bits
	},
	FormatRGBA8: {
		Name: "rgba8", Channels: 4, ElementSize: 1, Word: WordU32, Linear: true,
		Container: ContainerPNG, Sample: SampleUint, Bits: 8, Kernel: "rgba8",
		pack:   packRGBA8,
		unpack: unpackRGBA8,
	},
	FormatR16I: {
		Name: "r16i", Channels: 1, ElementSize: 2, Word: WordI32, Linear: false,
		Container: ContainerTIFF, Sample: SampleInt, Bits: 16, Kernel: "r16i",
		pack: func(p []byte) uint32 {
			return uint32(int32(int16(binary.LittleEndian.Uint16(p)))) //nolint:gosec // sign extension
		},
		unpack: func(w uint32, p []byte) {
			v := max(min(int32(w), math.MaxInt16), math.MinInt16) //nolint:gosec // word holds an i32
			binary.LittleEndian.PutUint16(p, uint16(int16(v)))    //nolint:gosec // clamped
		},
	},
	FormatR16UI: {
		Name: "r16ui", Channels: 1, ElementSize: 2, Word: WordU32, Linear: false,
		Container: ContainerTIFF, Sample: SampleUint, Bits: 16, Kernel: "r16ui",
		pack: func(p []byte) uint32 { return uint32(binary.LittleEndian.Uint16(p)) },
		unpack: func(w uint32, p []byte) {
			binary.LittleEndian.PutUint16(p, uint16(min(w, math.MaxUint16))) //nolint:gosec // clamped
		},
	},
	FormatR32F: {
		Name: "r32f", Channels: 1, ElementSize: 4, Word: WordF32, Linear: true,
		Container: ContainerTIFF, Sample: SampleFloat, Bits: 32, Kernel: "r32f",
		pack:   binary.LittleEndian.Uint32,
		unpack: func(w uint32, p []byte) { binary.LittleEndian.PutUint32(p, w) },
	},
}

// Formats returns every supported format in table order.
func Formats() []PixelFormat {
	out := make([]PixelFormat, 0, formatCount-1)
	for f := FormatR8; f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

// Valid reports whether f has a row in the dispatch table.
func (f PixelFormat) Valid() bool {
	return f > FormatInvalid && f < formatCount
}

// Info returns the dispatch table row for f.
func (f PixelFormat) Info() (FormatInfo, error) {
	if !f.Valid() {
		return FormatInfo{}, fmt.Errorf("%w: unsupported pixel format %d", ErrConfig, uint8(f))
	}
	return formatTable[f], nil
}

// MustInfo returns the dispatch table row for f and panics on an unknown
// format. Use only with formats that were validated already.
func (f PixelFormat) MustInfo() FormatInfo {
	info, err := f.Info()
	if err != nil {
		panic(err)
	}
	return info
}

// String returns the format name.
func (f PixelFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
	return formatTable[f].Name
}

// ParseFormat returns the format named s (case-insensitive).
func ParseFormat(s string) (PixelFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f := FormatR8; f < formatCount; f++ {
		if formatTable[f].Name == name {
			return f, nil
		}
	}
	return FormatInvalid, fmt.Errorf("%w: unknown pixel format %q", ErrConfig, s)
}

// PixelSize returns the CPU bytes of one pixel.
func (fi FormatInfo) PixelSize() int { return fi.Channels * fi.ElementSize }

// BufferSize returns the CPU bytes needed for a w*h plane.
func (fi FormatInfo) BufferSize(w, h int) int { return w * h * fi.PixelSize() }

// KernelName returns the name of the kernel variant for the given kind.
func (fi FormatInfo) KernelName(kind KernelKind) string {
	return kind.String() + "_" + fi.Kernel
}

// PackWords converts a CPU plane into one little-endian GPU word per pixel.
func (fi FormatInfo) PackWords(src []byte, pixels int) []byte {
	out := make([]byte, pixels*4)
	ps := fi.PixelSize()
	for i := 0; i < pixels; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], fi.pack(src[i*ps:i*ps+ps]))
	}
	return out
}

// UnpackWords converts GPU words back into the CPU layout of dst.
// It returns the number of bytes written.
func (fi FormatInfo) UnpackWords(words []byte, dst []byte, pixels int) int {
	ps := fi.PixelSize()
	for i := 0; i < pixels; i++ {
		fi.unpack(binary.LittleEndian.Uint32(words[i*4:]), dst[i*ps:i*ps+ps])
	}
	return pixels * ps
}

func packRGBA8(p []byte) uint32 {
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
}

func unpackRGBA8(w uint32, p []byte) {
	p[0] = uint8(w & 0xFF)         //nolint:gosec // masked to 8 bits
	p[1] = uint8((w >> 8) & 0xFF)  //nolint:gosec // masked to 8 bits
	p[2] = uint8((w >> 16) & 0xFF) //nolint:gosec // masked to 8 bits
	p[3] = uint8((w >> 24) & 0xFF) //nolint:gosec // masked to 8 bits
}
