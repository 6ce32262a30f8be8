// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tiff reads and writes uncompressed scanline TIFF files that keep
// the exact bit depth, sample format and channel count of scientific data.
//
// golang.org/x/image/tiff decodes 8 and 16-bit unsigned data into
// image.Image values and cannot write signed or floating-point samples;
// this package covers those cases and hands samples back as raw
// little-endian bytes instead of colors.
package tiff

import (
	"errors"
	"fmt"
)

// Errors returned by Decode and Encode.
var (
	// ErrFormat is returned for malformed files.
	ErrFormat = errors.New("tiff: invalid format")

	// ErrUnsupported is returned for valid files using features this
	// package does not implement (compression, planar layout, ...).
	ErrUnsupported = errors.New("tiff: unsupported feature")
)

// SampleFormat is the value of the SampleFormat tag.
type SampleFormat uint16

const (
	SampleUint  SampleFormat = 1
	SampleInt   SampleFormat = 2
	SampleFloat SampleFormat = 3
)

// String returns the sample format name.
func (s SampleFormat) String() string {
	switch s {
	case SampleUint:
		return "uint"
	case SampleInt:
		return "int"
	case SampleFloat:
		return "float"
	default:
		return fmt.Sprintf("SampleFormat(%d)", uint16(s))
	}
}

// Image is a decoded TIFF image. Pix holds the samples interleaved,
// little-endian, top row first, without row padding.
type Image struct {
	Width         int
	Height        int
	Channels      int
	BitsPerSample int
	SampleFormat  SampleFormat
	Pix           []byte
}

// Stride returns the number of bytes in one row.
func (m *Image) Stride() int {
	return m.Width * m.Channels * m.BitsPerSample / 8
}

func (m *Image) validate() error {
	if err := m.validateLayout(); err != nil {
		return err
	}
	if want := m.Stride() * m.Height; len(m.Pix) != want {
		return fmt.Errorf("%w: %d bytes of samples, want %d", ErrFormat, len(m.Pix), want)
	}
	return nil
}

func (m *Image) validateLayout() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: invalid size %dx%d", ErrFormat, m.Width, m.Height)
	}
	if m.Channels < 1 || m.Channels > 4 {
		return fmt.Errorf("%w: %d channels", ErrUnsupported, m.Channels)
	}
	switch m.BitsPerSample {
	case 8, 16, 32:
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupported, m.BitsPerSample)
	}
	switch m.SampleFormat {
	case SampleUint, SampleInt:
	case SampleFloat:
		if m.BitsPerSample != 32 {
			return fmt.Errorf("%w: %d-bit float samples", ErrUnsupported, m.BitsPerSample)
		}
	default:
		return fmt.Errorf("%w: sample format %d", ErrUnsupported, uint16(m.SampleFormat))
	}
	return nil
}

// Tag numbers.
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tPlanarConfiguration       = 284
	tExtraSamples              = 338
	tSampleFormat              = 339
)

// Field types.
const (
	dtByte  = 1
	dtShort = 3
	dtLong  = 4
)

var lengths = [...]uint32{0, 1, 1, 2, 4, 8}

const (
	leHeader = "II\x2A\x00"
	beHeader = "MM\x00\x2A"
	ifdLen   = 12
)
