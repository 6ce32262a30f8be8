package cubegen

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/cubegen/internal/tiff"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255}) //nolint:gosec // small test values
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeGrayPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8(x*16 + y)}) //nolint:gosec // small test values
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeTIFF(t *testing.T, dir, name string, w, h, bits int, sample tiff.SampleFormat) string {
	t.Helper()
	m := &tiff.Image{Width: w, Height: h, Channels: 1, BitsPerSample: bits, SampleFormat: sample}
	m.Pix = make([]byte, w*h*bits/8)
	for i := 0; i+1 < len(m.Pix); i += 2 {
		binary.LittleEndian.PutUint16(m.Pix[i:], uint16(i*101)) //nolint:gosec // test pattern
	}
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, m, nil))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestLoadSeamSourcesPNG(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "earth_0.png", 8, 4)
	b := writePNG(t, dir, "earth_1.png", 8, 4)

	pa, pb, err := LoadSeamSources(a, b, FormatRGBA8)
	require.NoError(t, err)
	assert.Equal(t, 8, pa.Width)
	assert.Equal(t, 4, pb.Height)
	assert.Len(t, pa.Pix, 8*4*4)
	// pixel (3, 2)
	off := (2*8 + 3) * 4
	assert.Equal(t, []byte{3, 2, 100, 255}, pa.Pix[off:off+4])

	g0 := writeGrayPNG(t, dir, "moon_0.png", 8, 4)
	g1 := writeGrayPNG(t, dir, "moon_1.png", 8, 4)
	gray, _, err := LoadSeamSources(g0, g1, FormatR8)
	require.NoError(t, err)
	assert.Len(t, gray.Pix, 8*4)
	assert.Equal(t, byte(3*16+2), gray.Pix[2*8+3])
}

func TestLoadSeamSourcesChannelMismatch(t *testing.T) {
	dir := t.TempDir()
	gray := writeGrayPNG(t, dir, "mixed_0.png", 4, 4)
	rgba := writePNG(t, dir, "mixed_1.png", 4, 4)
	dev := &fakeDevice{}

	for _, format := range []PixelFormat{FormatR8, FormatRGBA8} {
		_, _, err := LoadSeamSources(gray, rgba, format)
		assert.ErrorIs(t, err, ErrConfig, format.String())
	}

	// Both sources agree but the format needs a different channel count.
	rgba0 := writePNG(t, dir, "color_0.png", 4, 4)
	_, _, err := LoadSeamSources(rgba0, rgba, FormatR8)
	assert.ErrorIs(t, err, ErrConfig)
	_, err = LoadDirectSource(gray, FormatRGBA8)
	assert.ErrorIs(t, err, ErrConfig)

	g := NewGenerator(WithOutputRoot(t.TempDir()), WithDevice(dev))
	_, err = g.Seam(context.Background(), gray, rgba, FormatR8, nil)
	require.ErrorIs(t, err, ErrConfig)
	assert.Empty(t, dev.calls, "GPU was touched before the configuration error")
}

func TestLoadSeamSourcesTIFF(t *testing.T) {
	dir := t.TempDir()
	a := writeTIFF(t, dir, "dem_0.tif", 6, 4, 16, tiff.SampleInt)
	b := writeTIFF(t, dir, "dem_1.tif", 6, 4, 16, tiff.SampleInt)

	pa, pb, err := LoadSeamSources(a, b, FormatR16I)
	require.NoError(t, err)
	assert.Equal(t, FormatR16I, pa.Format)
	assert.Len(t, pb.Pix, 6*4*2)
	assert.Equal(t, uint16(2*101), binary.LittleEndian.Uint16(pa.Pix[2:]))

	// Sample format must match the requested pixel format.
	_, _, err = LoadSeamSources(a, b, FormatR16UI)
	assert.ErrorIs(t, err, ErrConfig)
	_, _, err = LoadSeamSources(a, b, FormatR32F)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadSeamSourcesConfigErrors(t *testing.T) {
	dir := t.TempDir()
	png0 := writePNG(t, dir, "a_0.png", 4, 4)
	png1 := writePNG(t, dir, "a_1.png", 4, 4)
	small := writePNG(t, dir, "small_1.png", 2, 4)
	tif1 := writeTIFF(t, dir, "a_1.tif", 4, 4, 16, tiff.SampleInt)
	tga := filepath.Join(dir, "a_1.tga")
	require.NoError(t, os.WriteFile(tga, []byte{0, 0, 2}, 0o600))
	lying := filepath.Join(dir, "lie_1.png")
	require.NoError(t, os.WriteFile(lying, []byte("II*\x00 not really"), 0o600))

	tests := []struct {
		name   string
		a, b   string
		format PixelFormat
	}{
		{"mismatched extensions", png0, tif1, FormatR8},
		{"unsupported extension", png0, tga, FormatR8},
		{"mismatched sizes", png0, small, FormatRGBA8},
		{"content does not match extension", png0, lying, FormatR8},
		{"scientific format from png", png0, png1, FormatR16I},
		{"invalid format", png0, png1, FormatInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadSeamSources(tt.a, tt.b, tt.format)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoadSeamSourcesMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a_0.png", 4, 4)
	_, _, err := LoadSeamSources(a, filepath.Join(dir, "missing_1.png"), FormatR8)
	assert.ErrorIs(t, err, ErrIO)
}

func TestMismatchedExtensionsFailBeforeUpload(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a_0.png", 4, 4)
	b := writeTIFF(t, dir, "a_1.tif", 4, 4, 16, tiff.SampleUint)
	dev := &fakeDevice{}

	g := NewGenerator(WithOutputRoot(t.TempDir()), WithDevice(dev))
	_, err := g.Seam(context.Background(), a, b, FormatR8, nil)
	require.ErrorIs(t, err, ErrConfig)
	assert.Empty(t, dev.calls, "GPU was touched before the configuration error")
}

func TestExtensionSpellingsMustMatch(t *testing.T) {
	dir := t.TempDir()
	tif := writeTIFF(t, dir, "dem_0.tif", 4, 4, 16, tiff.SampleUint)
	tiff2 := writeTIFF(t, dir, "dem_1.tiff", 4, 4, 16, tiff.SampleUint)
	_, _, err := LoadSeamSources(tif, tiff2, FormatR16UI)
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), ".tiff")

	// Case is not significant.
	g0 := writeGrayPNG(t, dir, "moon_0.png", 4, 4)
	g1 := writeGrayPNG(t, dir, "moon_1.PNG", 4, 4)
	_, _, err = LoadSeamSources(g0, g1, FormatR8)
	assert.NoError(t, err)
}

func TestLoadDirectSource(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadDirectSource(writePNG(t, dir, "pano.png", 8, 4), FormatRGBA8)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Width)

	f32 := writeTIFF(t, dir, "pano.tif", 4, 2, 32, tiff.SampleFloat)
	p, err = LoadDirectSource(f32, FormatR32F)
	require.NoError(t, err)
	assert.Len(t, p.Pix, 4*2*4)
}

func TestFaceDirName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/earth_0.tif", "earth"},
		{"moon-1.png", "moon"},
		{"pano.png", "pano"},
		{"ab.png", "ab"},
		{"x_10.png", "x_10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FaceDirName(tt.path), tt.path)
	}
}
