package cubegen

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	rimage "github.com/gogpu/cubegen/internal/image"
	"github.com/gogpu/cubegen/internal/tiff"
)

// Encode serializes p into the container. flip writes the rows bottom to
// top.
func (c Container) Encode(w io.Writer, p *Plane, flip bool) error {
	info, err := p.Format.Info()
	if err != nil {
		return err
	}
	switch c {
	case ContainerPNG:
		return rimage.EncodePix(w, p.Pix, p.Width, p.Height, info.Channels, p.Stride(),
			&rimage.PNGOptions{FlipVertical: flip})
	case ContainerTIFF:
		m := &tiff.Image{
			Width:         p.Width,
			Height:        p.Height,
			Channels:      info.Channels,
			BitsPerSample: info.Bits,
			SampleFormat:  tiff.SampleFormat(info.Sample),
			Pix:           p.Pix,
		}
		return tiff.Encode(w, m, &tiff.Options{FlipVertical: flip})
	default:
		return fmt.Errorf("%w: no encoder for %s", ErrConfig, c)
	}
}

// Writer persists face buffers as <dir>/<face><ext>. The directory is
// created on the first write. Files are written to a temporary name and
// renamed into place, so a face file is either complete or absent.
//
// A Writer is used by one goroutine at a time.
type Writer struct {
	dir     string
	written []string

	encode func(c Container, w io.Writer, p *Plane, flip bool) error
}

// NewWriter returns a writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, encode: Container.Encode}
}

// Path returns the file a face of the given format is written to.
func (w *Writer) Path(face string, format PixelFormat) (string, error) {
	info, err := format.Info()
	if err != nil {
		return "", err
	}
	return filepath.Join(w.dir, face+info.Container.Ext()), nil
}

// Write encodes buf as the file of face and returns its path. The
// container and the row order follow the format table and face.Mirror.
func (w *Writer) Write(face FaceSpec, buf *Plane) (string, error) {
	if buf == nil {
		return "", fmt.Errorf("%w: nil face buffer", ErrConfig)
	}
	if err := buf.Validate(); err != nil {
		return "", err
	}
	info := buf.Format.MustInfo()
	path, err := w.Path(face.Name, buf.Format)
	if err != nil {
		return "", err
	}
	err = w.commit(path, func(f io.Writer) error {
		return w.encode(info.Container, f, buf, face.Mirror)
	})
	if err != nil {
		return "", err
	}
	Logger().Info("cubegen: face written",
		"face", face.Name, "path", path,
		"container", info.Container.String(), "mirror", face.Mirror)
	return path, nil
}

// commit writes path through a temporary file in the output directory
// and records it for Cleanup.
func (w *Writer) commit(path string, encode func(io.Writer) error) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, w.dir, err)
	}
	name := filepath.Base(path)
	tmp, err := os.CreateTemp(w.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}
	tmpName := tmp.Name()
	if err := encode(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: encode %s: %w", ErrIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", ErrIO, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %w", ErrIO, path, err)
	}
	if !slices.Contains(w.written, path) {
		w.written = append(w.written, path)
	}
	return nil
}

// Written returns the files written so far, in write order, without
// duplicates.
func (w *Writer) Written() []string {
	return slices.Clone(w.written)
}

// Cleanup removes every file written so far. The directory is removed too
// when it ends up empty.
func (w *Writer) Cleanup() error {
	var errs []error
	for _, p := range w.written {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	w.written = nil
	if entries, err := os.ReadDir(w.dir); err == nil && len(entries) == 0 {
		_ = os.Remove(w.dir)
	}
	if err := errors.Join(errs...); err != nil {
		Logger().Warn("cubegen: cleanup incomplete", "dir", w.dir, "err", err)
		return fmt.Errorf("%w: cleanup: %w", ErrIO, err)
	}
	return nil
}
