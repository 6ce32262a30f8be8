package cubegen

import (
	"fmt"
)

// Plane is a byte buffer with a declared layout. Samples are stored
// little-endian, rows top to bottom, without padding between rows.
//
// Planes hold both decoded source images and the face buffer that the
// orchestrator reuses for every dispatch of one call.
type Plane struct {
	Format PixelFormat
	Width  int
	Height int
	Pix    []byte
}

// NewPlane allocates a zeroed plane of w*h pixels.
func NewPlane(format PixelFormat, w, h int) (*Plane, error) {
	info, err := format.Info()
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid plane size %dx%d", ErrConfig, w, h)
	}
	return &Plane{
		Format: format,
		Width:  w,
		Height: h,
		Pix:    make([]byte, info.BufferSize(w, h)),
	}, nil
}

// Stride returns the number of bytes in one row.
func (p *Plane) Stride() int {
	return p.Width * p.Format.MustInfo().PixelSize()
}

// Validate checks that Pix matches the declared layout.
func (p *Plane) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil plane", ErrConfig)
	}
	info, err := p.Format.Info()
	if err != nil {
		return err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: invalid plane size %dx%d", ErrConfig, p.Width, p.Height)
	}
	if want := info.BufferSize(p.Width, p.Height); len(p.Pix) != want {
		return fmt.Errorf("%w: plane %dx%d %s holds %d bytes, want %d",
			ErrConfig, p.Width, p.Height, p.Format, len(p.Pix), want)
	}
	return nil
}

// Mirrored returns a copy of the plane with its rows in reverse order.
func (p *Plane) Mirrored() *Plane {
	out := &Plane{Format: p.Format, Width: p.Width, Height: p.Height, Pix: make([]byte, len(p.Pix))}
	s := p.Stride()
	for y := 0; y < p.Height; y++ {
		copy(out.Pix[(p.Height-1-y)*s:], p.Pix[y*s:(y+1)*s])
	}
	return out
}

// Words returns the plane packed as one GPU word per pixel.
func (p *Plane) Words() []byte {
	return p.Format.MustInfo().PackWords(p.Pix, p.Width*p.Height)
}
