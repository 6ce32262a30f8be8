package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when the image format is not supported.
	ErrUnsupportedFormat = errors.New("image: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("image: empty data")

	// ErrContentMismatch is returned when the file content does not match
	// its extension.
	ErrContentMismatch = errors.New("image: content does not match extension")
)

// sniffLen is the number of leading bytes inspected by Sniff.
const sniffLen = 262

// Sniff detects the container format from the leading bytes of a file.
func Sniff(head []byte) (Format, error) {
	if len(head) == 0 {
		return None, ErrEmptyData
	}
	// filetype matches camera raw (CR2) before TIFF, and a CR2 file is a
	// TIFF whose bytes 8..10 happen to read "CR\x02". Sample data can
	// produce the same bytes, so the TIFF header wins.
	if isTIFF(head) {
		return TIFF, nil
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return None, fmt.Errorf("image: sniff: %w", err)
	}
	if kind == filetype.Unknown {
		return None, fmt.Errorf("%w: unknown content", ErrUnsupportedFormat)
	}
	return ExtToFormat(kind.Extension)
}

func isTIFF(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	return bytes.Equal(head[:4], []byte("II*\x00")) || bytes.Equal(head[:4], []byte("MM\x00*"))
}

// SniffFile reads the head of the file at path and detects its format.
func SniffFile(path string) (Format, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return None, fmt.Errorf("image: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return None, fmt.Errorf("image: read file: %w", err)
	}
	return Sniff(head[:n])
}

// CheckContent verifies that the content of the file at path is of the
// format implied by its extension.
func CheckContent(path string) (Format, error) {
	want, err := ExtToFormat(filepath.Ext(path))
	if err != nil {
		return None, err
	}
	got, err := SniffFile(path)
	if err != nil {
		return None, err
	}
	if got != want {
		return None, fmt.Errorf("%w: %s holds %s data", ErrContentMismatch, filepath.Base(path), got)
	}
	return got, nil
}

// ModelChannels returns the channel count a decoded image of model m is
// stored with: 1 for gray models, 4 for everything else. Color images
// without alpha and paletted images are expanded to RGBA.
func ModelChannels(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	default:
		return 4
	}
}

// Channels reads the header of the image at path and returns its
// channel count as defined by ModelChannels. Pixels are not decoded.
func Channels(path string) (int, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("image: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return 0, fmt.Errorf("image: decode config: %w", err)
	}
	return ModelChannels(cfg.ColorModel), nil
}

// Load decodes the image at path and converts it to layout.
func Load(path string, layout Layout) (*ImageBuf, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("image: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, layout)
}

// Decode decodes an image from r, auto-detecting the format, and converts
// it to layout.
func Decode(r io.Reader, layout Layout) (*ImageBuf, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("image: decode: %w", err)
	}
	return FromStdImage(img, layout)
}

// FromStdImage converts a standard library image into a tightly packed
// buffer of the given layout. Gray conversion uses the standard library
// luma weights.
func FromStdImage(img image.Image, layout Layout) (*ImageBuf, error) {
	bounds := img.Bounds()
	buf, err := NewImageBuf(bounds.Dx(), bounds.Dy(), layout)
	if err != nil {
		return nil, err
	}

	switch layout {
	case LayoutGray8:
		if g, ok := img.(*image.Gray); ok {
			for y := range buf.height {
				off := y * g.Stride
				copy(buf.RowBytes(y), g.Pix[off:off+buf.width])
			}
			return buf, nil
		}
		for y := range buf.height {
			row := buf.RowBytes(y)
			for x := range buf.width {
				c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray) //nolint:errcheck // GrayModel returns color.Gray
				row[x] = c.Y
			}
		}

	case LayoutRGBA8:
		if n, ok := img.(*image.NRGBA); ok {
			for y := range buf.height {
				off := y * n.Stride
				copy(buf.RowBytes(y), n.Pix[off:off+buf.width*4])
			}
			return buf, nil
		}
		for y := range buf.height {
			row := buf.RowBytes(y)
			for x := range buf.width {
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA) //nolint:errcheck // NRGBAModel returns color.NRGBA
				row[x*4] = c.R
				row[x*4+1] = c.G
				row[x*4+2] = c.B
				row[x*4+3] = c.A
			}
		}
	}
	return buf, nil
}

// ToStdImage returns the buffer as a standard library image: *image.Gray
// or *image.NRGBA. When flip is set the rows are in reverse order.
func (b *ImageBuf) ToStdImage(flip bool) image.Image {
	rect := image.Rect(0, 0, b.width, b.height)
	var pix []byte
	var stride int
	var img image.Image
	switch b.layout {
	case LayoutGray8:
		g := image.NewGray(rect)
		pix, stride, img = g.Pix, g.Stride, g
	default:
		n := image.NewNRGBA(rect)
		pix, stride, img = n.Pix, n.Stride, n
	}
	for y := range b.height {
		src := y
		if flip {
			src = b.height - 1 - y
		}
		copy(pix[y*stride:], b.RowBytes(src))
	}
	return img
}

// PNGOptions are the PNG encoding parameters.
type PNGOptions struct {
	// FlipVertical writes the rows bottom to top.
	FlipVertical bool
}

// EncodePNG encodes the buffer losslessly as PNG. Gray buffers are written
// as 8-bit grayscale, RGBA buffers as 8-bit non-premultiplied RGBA.
func (b *ImageBuf) EncodePNG(w io.Writer, opt *PNGOptions) error {
	flip := opt != nil && opt.FlipVertical
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(w, b.ToStdImage(flip)); err != nil {
		return fmt.Errorf("image: encode PNG: %w", err)
	}
	return nil
}

// EncodePix encodes tightly packed pixels of the given channel count as
// PNG. stride is the distance between rows in pix.
func EncodePix(w io.Writer, pix []byte, width, height, channels, stride int, opt *PNGOptions) error {
	layout, err := LayoutForChannels(channels)
	if err != nil {
		return err
	}
	buf, err := FromRaw(pix, width, height, layout, stride)
	if err != nil {
		return err
	}
	return buf.EncodePNG(w, opt)
}
