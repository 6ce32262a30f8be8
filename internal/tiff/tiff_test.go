// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tiff

import (
	"bytes"
	"encoding/binary"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xtiff "golang.org/x/image/tiff"
)

func int16Image(w, h int) *Image {
	m := &Image{Width: w, Height: h, Channels: 1, BitsPerSample: 16, SampleFormat: SampleInt}
	m.Pix = make([]byte, w*h*2)
	for i := 0; i < w*h; i++ {
		v := int16(i*97 - 20000) //nolint:gosec // test pattern
		binary.LittleEndian.PutUint16(m.Pix[i*2:], uint16(v))
	}
	return m
}

func TestRoundTripBitIdentical(t *testing.T) {
	float := &Image{Width: 5, Height: 3, Channels: 1, BitsPerSample: 32, SampleFormat: SampleFloat}
	float.Pix = make([]byte, 5*3*4)
	specials := []float32{0, -0, 1.5, -3.25e-7, math.MaxFloat32, float32(math.Inf(1)), float32(math.NaN())}
	for i := 0; i < 15; i++ {
		binary.LittleEndian.PutUint32(float.Pix[i*4:], math.Float32bits(specials[i%len(specials)]))
	}

	uint16Img := &Image{Width: 7, Height: 4, Channels: 1, BitsPerSample: 16, SampleFormat: SampleUint}
	uint16Img.Pix = make([]byte, 7*4*2)
	for i := range 28 {
		binary.LittleEndian.PutUint16(uint16Img.Pix[i*2:], uint16(65535-i*1000)) //nolint:gosec // test pattern
	}

	rgba := &Image{Width: 3, Height: 3, Channels: 4, BitsPerSample: 8, SampleFormat: SampleUint}
	rgba.Pix = make([]byte, 3*3*4)
	for i := range rgba.Pix {
		rgba.Pix[i] = byte(i * 7)
	}

	tests := []struct {
		name string
		img  *Image
	}{
		{"int16", int16Image(9, 5)},
		{"uint16", uint16Img},
		{"float32", float},
		{"rgba8", rgba},
		{"single pixel", int16Image(1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tt.img, nil))

			got, err := Decode(&buf, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.img.Width, got.Width)
			assert.Equal(t, tt.img.Height, got.Height)
			assert.Equal(t, tt.img.Channels, got.Channels)
			assert.Equal(t, tt.img.BitsPerSample, got.BitsPerSample)
			assert.Equal(t, tt.img.SampleFormat, got.SampleFormat)
			assert.True(t, bytes.Equal(tt.img.Pix, got.Pix), "samples differ after round trip")
		})
	}
}

func TestEncodeFlipVertical(t *testing.T) {
	m := int16Image(4, 3)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m, &Options{FlipVertical: true}))
	enc := buf.Bytes()

	got, err := Decode(bytes.NewReader(enc), nil)
	require.NoError(t, err)
	stride := m.Stride()
	for y := 0; y < m.Height; y++ {
		want := m.Pix[(m.Height-1-y)*stride : (m.Height-y)*stride]
		assert.Equal(t, want, got.Pix[y*stride:(y+1)*stride], "row %d", y)
	}

	// Flipping on read restores the original order.
	back, err := Decode(bytes.NewReader(enc), &Options{FlipVertical: true})
	require.NoError(t, err)
	assert.Equal(t, m.Pix, back.Pix)
	assert.NotEqual(t, got.Pix, back.Pix)
}

func TestEncodeReadableByXImage(t *testing.T) {
	m := &Image{Width: 6, Height: 2, Channels: 1, BitsPerSample: 16, SampleFormat: SampleUint}
	m.Pix = make([]byte, 6*2*2)
	for i := range 12 {
		binary.LittleEndian.PutUint16(m.Pix[i*2:], uint16(i*5000)) //nolint:gosec // test pattern
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m, nil))

	img, err := xtiff.Decode(&buf)
	require.NoError(t, err)
	g, ok := img.(*image.Gray16)
	require.True(t, ok, "decoded %T, want *image.Gray16", img)
	for i := range 12 {
		x, y := i%6, i/6
		assert.Equal(t, uint16(i*5000), g.Gray16At(x, y).Y) //nolint:gosec // test pattern
	}
}

func TestEncodeRejectsInvalidLayout(t *testing.T) {
	tests := []struct {
		name string
		img  *Image
		err  error
	}{
		{"zero size", &Image{Width: 0, Height: 1, Channels: 1, BitsPerSample: 16, SampleFormat: SampleInt}, ErrFormat},
		{"short pixels", &Image{Width: 2, Height: 2, Channels: 1, BitsPerSample: 16, SampleFormat: SampleInt, Pix: make([]byte, 3)}, ErrFormat},
		{"16-bit float", &Image{Width: 1, Height: 1, Channels: 1, BitsPerSample: 16, SampleFormat: SampleFloat, Pix: make([]byte, 2)}, ErrUnsupported},
		{"five channels", &Image{Width: 1, Height: 1, Channels: 5, BitsPerSample: 8, SampleFormat: SampleUint, Pix: make([]byte, 5)}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Encode(&bytes.Buffer{}, tt.img, nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a tiff file")), nil)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Decode(bytes.NewReader([]byte("II*\x00\xff\xff\xff\x00")), nil)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeBigEndian(t *testing.T) {
	// 2x1, 16-bit unsigned, one strip, big-endian.
	var b []byte
	b = append(b, beHeader...)
	b = binary.BigEndian.AppendUint32(b, 12)
	b = append(b, 0x01, 0x02, 0xAB, 0xCD) // samples at offset 8
	entries := [][3]uint32{
		{tImageWidth, dtLong, 2},
		{tImageLength, dtLong, 1},
		{tBitsPerSample, dtShort, 16},
		{tCompression, dtShort, 1},
		{tStripOffsets, dtLong, 8},
		{tSamplesPerPixel, dtShort, 1},
		{tStripByteCounts, dtLong, 4},
	}
	b = binary.BigEndian.AppendUint16(b, uint16(len(entries)))
	for _, e := range entries {
		b = binary.BigEndian.AppendUint16(b, uint16(e[0]))
		b = binary.BigEndian.AppendUint16(b, uint16(e[1]))
		b = binary.BigEndian.AppendUint32(b, 1)
		if e[1] == dtShort {
			b = binary.BigEndian.AppendUint16(b, uint16(e[2]))
			b = append(b, 0, 0)
		} else {
			b = binary.BigEndian.AppendUint32(b, e[2])
		}
	}
	b = binary.BigEndian.AppendUint32(b, 0)

	m, err := Decode(bytes.NewReader(b), nil)
	require.NoError(t, err)
	assert.Equal(t, SampleUint, m.SampleFormat)
	assert.Equal(t, []byte{0x02, 0x01, 0xCD, 0xAB}, m.Pix)
}
