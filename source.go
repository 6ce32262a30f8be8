package cubegen

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	rimage "github.com/gogpu/cubegen/internal/image"
	"github.com/gogpu/cubegen/internal/tiff"
)

// LoadSeamSources loads the west (path0) and east (path1) hemispheres.
//
// Both files must carry the same, known extension; this is checked before
// either file is opened. Their content must match the extension, their
// layout must match format and their dimensions must be identical.
func LoadSeamSources(path0, path1 string, format PixelFormat) (a, b *Plane, err error) {
	if _, err := format.Info(); err != nil {
		return nil, nil, err
	}
	c0, err := sourceFormat(path0)
	if err != nil {
		return nil, nil, err
	}
	_, err = sourceFormat(path1)
	if err != nil {
		return nil, nil, err
	}
	// Spellings of one container (.tif and .tiff) still count as different.
	if e0, e1 := strings.ToLower(filepath.Ext(path0)), strings.ToLower(filepath.Ext(path1)); e0 != e1 {
		return nil, nil, fmt.Errorf("%w: source extensions differ: %s is %s, %s is %s",
			ErrConfig, filepath.Base(path0), e0, filepath.Base(path1), e1)
	}
	if err := checkContainer(c0, format); err != nil {
		return nil, nil, err
	}
	if format.MustInfo().Container != ContainerTIFF {
		n0, err := rasterChannels(path0)
		if err != nil {
			return nil, nil, err
		}
		n1, err := rasterChannels(path1)
		if err != nil {
			return nil, nil, err
		}
		if n0 != n1 {
			return nil, nil, fmt.Errorf("%w: hemispheres differ in channels: %s has %d, %s has %d",
				ErrConfig, filepath.Base(path0), n0, filepath.Base(path1), n1)
		}
	}

	if a, err = loadPlane(path0, format); err != nil {
		return nil, nil, err
	}
	if b, err = loadPlane(path1, format); err != nil {
		return nil, nil, err
	}
	if a.Width != b.Width || a.Height != b.Height {
		return nil, nil, fmt.Errorf("%w: hemispheres differ in size: %dx%d and %dx%d",
			ErrConfig, a.Width, a.Height, b.Width, b.Height)
	}
	Logger().Debug("cubegen: seam sources loaded",
		"a", path0, "b", path1, "format", format.String(),
		"width", a.Width, "height", a.Height)
	return a, b, nil
}

// LoadDirectSource loads one equirectangular image.
func LoadDirectSource(path string, format PixelFormat) (*Plane, error) {
	if _, err := format.Info(); err != nil {
		return nil, err
	}
	c, err := sourceFormat(path)
	if err != nil {
		return nil, err
	}
	if err := checkContainer(c, format); err != nil {
		return nil, err
	}
	p, err := loadPlane(path, format)
	if err != nil {
		return nil, err
	}
	Logger().Debug("cubegen: direct source loaded",
		"path", path, "format", format.String(),
		"width", p.Width, "height", p.Height)
	return p, nil
}

// FaceDirName returns the output folder name for a source path: the file
// stem with its two-character split suffix ("_0", "-1") removed.
func FaceDirName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if n := len(stem); n > 2 && (stem[n-2] == '_' || stem[n-2] == '-') {
		return stem[:n-2]
	}
	return stem
}

func sourceFormat(path string) (rimage.Format, error) {
	f, err := rimage.ExtToFormat(filepath.Ext(path))
	if err != nil {
		return rimage.None, fmt.Errorf("%w: %s: %w", ErrConfig, filepath.Base(path), err)
	}
	if !f.Decodable() {
		return rimage.None, fmt.Errorf("%w: %s: %s sources are not supported", ErrConfig, filepath.Base(path), f)
	}
	return f, nil
}

// checkContainer rejects raster containers for scientific formats.
func checkContainer(c rimage.Format, format PixelFormat) error {
	info := format.MustInfo()
	if info.Container == ContainerTIFF && c != rimage.TIFF {
		return fmt.Errorf("%w: %s data needs a TIFF source, got %s", ErrConfig, format, c)
	}
	return nil
}

func loadPlane(path string, format PixelFormat) (*Plane, error) {
	if _, err := rimage.CheckContent(path); err != nil {
		return nil, classifyLoad(path, err)
	}
	info := format.MustInfo()
	if info.Container == ContainerTIFF {
		return loadScientific(path, format, info)
	}

	n, err := rasterChannels(path)
	if err != nil {
		return nil, err
	}
	if n != info.Channels {
		return nil, fmt.Errorf("%w: %s has %d channel(s), %s needs %d",
			ErrConfig, filepath.Base(path), n, format, info.Channels)
	}
	layout, err := rimage.LayoutForChannels(info.Channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, format, err)
	}
	buf, err := rimage.Load(path, layout)
	if err != nil {
		return nil, classifyLoad(path, err)
	}
	return &Plane{
		Format: format,
		Width:  buf.Width(),
		Height: buf.Height(),
		Pix:    buf.Packed(),
	}, nil
}

// rasterChannels returns the channel count of a raster source after
// decoding: 1 for gray images, 4 for color images.
func rasterChannels(path string) (int, error) {
	if _, err := rimage.CheckContent(path); err != nil {
		return 0, classifyLoad(path, err)
	}
	n, err := rimage.Channels(path)
	if err != nil {
		return 0, classifyLoad(path, err)
	}
	return n, nil
}

// loadScientific decodes a TIFF whose samples must match format exactly.
// The plane is sized width*height*channels*elementSize.
func loadScientific(path string, format PixelFormat, info FormatInfo) (*Plane, error) {
	m, err := tiff.Load(path, nil)
	if err != nil {
		return nil, classifyLoad(path, err)
	}
	if m.Channels != info.Channels || m.BitsPerSample != info.Bits || uint16(m.SampleFormat) != uint16(info.Sample) {
		return nil, fmt.Errorf("%w: %s holds %d x %d-bit %s samples, %s needs %d x %d-bit %s",
			ErrConfig, filepath.Base(path),
			m.Channels, m.BitsPerSample, m.SampleFormat,
			format, info.Channels, info.Bits, tiff.SampleFormat(info.Sample))
	}
	p := &Plane{Format: format, Width: m.Width, Height: m.Height, Pix: m.Pix}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// classifyLoad maps codec errors onto the pipeline error classes.
func classifyLoad(path string, err error) error {
	name := filepath.Base(path)
	switch {
	case errors.Is(err, rimage.ErrUnsupportedFormat),
		errors.Is(err, rimage.ErrContentMismatch),
		errors.Is(err, rimage.ErrEmptyData),
		errors.Is(err, tiff.ErrUnsupported):
		return fmt.Errorf("%w: %s: %w", ErrConfig, name, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: source %s does not exist: %w", ErrIO, name, err)
	default:
		return fmt.Errorf("%w: read %s: %w", ErrIO, name, err)
	}
}
