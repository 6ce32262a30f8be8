package cubegen

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"path/filepath"

	"github.com/nfnt/resize"

	rimage "github.com/gogpu/cubegen/internal/image"
)

// PreviewName is the file name of the cross layout preview.
const PreviewName = "preview.png"

// maxPreviewCell caps the edge of one face in the preview.
const maxPreviewCell = 256

// crossCells places faces on a 4x3 grid:
//
//	      top
//	left front right back
//	      bottom
var crossCells = map[string]image.Point{
	FaceTop:    {1, 0},
	FaceUp:     {1, 0},
	FaceLeft:   {0, 1},
	FaceFront:  {1, 1},
	FaceRight:  {2, 1},
	FaceBack:   {3, 1},
	FaceRear:   {3, 1},
	FaceBottom: {1, 2},
	FaceDown:   {1, 2},
}

// WritePreview assembles the PNG faces already written by w into a
// downscaled cross and writes it as PreviewName next to them. Cells of
// faces that were not produced stay transparent.
func (w *Writer) WritePreview(format PixelFormat) (string, error) {
	info, err := format.Info()
	if err != nil {
		return "", err
	}
	if info.Container != ContainerPNG {
		return "", fmt.Errorf("%w: no preview for %s faces", ErrConfig, format)
	}

	faces := make(map[string]image.Image)
	for _, path := range w.written {
		name := filepath.Base(path)
		if filepath.Ext(name) != info.Container.Ext() || name == PreviewName {
			continue
		}
		buf, err := rimage.Load(path, rimage.LayoutRGBA8)
		if err != nil {
			return "", fmt.Errorf("%w: preview: %w", ErrIO, err)
		}
		faces[name[:len(name)-len(info.Container.Ext())]] = buf.ToStdImage(false)
	}
	if len(faces) == 0 {
		return "", fmt.Errorf("%w: preview: no faces written", ErrConfig)
	}

	canvas := assembleCross(faces)
	path := filepath.Join(w.dir, PreviewName)
	err = w.commit(path, func(f io.Writer) error {
		return png.Encode(f, canvas)
	})
	if err != nil {
		return "", err
	}
	Logger().Info("cubegen: preview written", "path", path, "faces", len(faces))
	return path, nil
}

func assembleCross(faces map[string]image.Image) *image.NRGBA {
	cell := maxPreviewCell
	for _, img := range faces {
		b := img.Bounds()
		cell = min(cell, b.Dx(), b.Dy())
	}
	cell = max(cell, 1)

	canvas := image.NewNRGBA(image.Rect(0, 0, 4*cell, 3*cell))
	for name, img := range faces {
		at, ok := crossCells[name]
		if !ok {
			continue
		}
		scaled := resize.Resize(uint(cell), uint(cell), img, resize.Bilinear) //nolint:gosec // positive cell size
		r := image.Rect(at.X*cell, at.Y*cell, (at.X+1)*cell, (at.Y+1)*cell)
		draw.Draw(canvas, r, scaled, scaled.Bounds().Min, draw.Src)
	}
	return canvas
}
