// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type decoder struct {
	buf    []byte
	order  binary.ByteOrder
	fields map[uint16][]uint32
}

// Decode reads a single-image, uncompressed, chunky TIFF. Samples are
// returned little-endian regardless of the file byte order.
func Decode(r io.Reader, opt *Options) (*Image, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeBytes(buf, opt)
}

// Load opens and decodes the file at path.
func Load(path string, opt *Options) (*Image, error) {
	buf, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return decodeBytes(buf, opt)
}

func decodeBytes(buf []byte, opt *Options) (*Image, error) {
	d := &decoder{buf: buf, fields: make(map[uint16][]uint32)}
	if len(buf) < 8 {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	switch string(buf[:4]) {
	case leHeader:
		d.order = binary.LittleEndian
	case beHeader:
		d.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if err := d.readIFD(d.order.Uint32(buf[4:8])); err != nil {
		return nil, err
	}

	m := &Image{
		Width:         int(d.first(tImageWidth, 0)),
		Height:        int(d.first(tImageLength, 0)),
		Channels:      int(d.first(tSamplesPerPixel, 1)),
		BitsPerSample: int(d.first(tBitsPerSample, 1)),
		SampleFormat:  SampleFormat(d.first(tSampleFormat, uint32(SampleUint))), //nolint:gosec // tag value
	}
	if c := d.first(tCompression, 1); c != 1 {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, c)
	}
	if p := d.first(tPlanarConfiguration, 1); p != 1 {
		return nil, fmt.Errorf("%w: planar configuration %d", ErrUnsupported, p)
	}
	for _, b := range d.fields[tBitsPerSample] {
		if int(b) != m.BitsPerSample {
			return nil, fmt.Errorf("%w: mixed bits per sample", ErrUnsupported)
		}
	}

	if err := m.validateLayout(); err != nil {
		return nil, err
	}
	stride := m.Stride()
	m.Pix = make([]byte, stride*m.Height)

	offsets := d.fields[tStripOffsets]
	counts := d.fields[tStripByteCounts]
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: strip tables", ErrFormat)
	}
	rowsPerStrip := int(d.first(tRowsPerStrip, uint32(m.Height))) //nolint:gosec // tag value
	if rowsPerStrip <= 0 {
		rowsPerStrip = m.Height
	}

	bytesPerSample := m.BitsPerSample / 8
	y := 0
	for i, off := range offsets {
		rows := min(rowsPerStrip, m.Height-y)
		if rows <= 0 {
			break
		}
		n := rows * stride
		end := uint64(off) + uint64(n)
		if uint64(counts[i]) < uint64(n) || end > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: strip %d out of range", ErrFormat, i)
		}
		dst := m.Pix[y*stride : y*stride+n]
		copy(dst, buf[off:end])
		if d.order == binary.BigEndian && bytesPerSample > 1 {
			swapSamples(dst, bytesPerSample)
		}
		y += rows
	}
	if y != m.Height {
		return nil, fmt.Errorf("%w: strips cover %d of %d rows", ErrFormat, y, m.Height)
	}

	if opt != nil && opt.FlipVertical {
		flipRows(m.Pix, stride, m.Height)
	}
	return m, nil
}

func (d *decoder) first(tag uint16, def uint32) uint32 {
	if v := d.fields[tag]; len(v) > 0 {
		return v[0]
	}
	return def
}

func (d *decoder) readIFD(off uint32) error {
	p := int(off)
	if p+2 > len(d.buf) {
		return fmt.Errorf("%w: IFD offset", ErrFormat)
	}
	n := int(d.order.Uint16(d.buf[p:]))
	p += 2
	if p+n*ifdLen > len(d.buf) {
		return fmt.Errorf("%w: IFD entries", ErrFormat)
	}
	for i := 0; i < n; i++ {
		e := d.buf[p+i*ifdLen : p+(i+1)*ifdLen]
		tag := d.order.Uint16(e[0:])
		typ := d.order.Uint16(e[2:])
		count := d.order.Uint32(e[4:])
		if typ != dtByte && typ != dtShort && typ != dtLong {
			continue
		}
		size := uint64(lengths[typ]) * uint64(count)
		raw := e[8:12]
		if size > 4 {
			vo := uint64(d.order.Uint32(e[8:]))
			if vo+size > uint64(len(d.buf)) {
				return fmt.Errorf("%w: tag %d data out of range", ErrFormat, tag)
			}
			raw = d.buf[vo : vo+size]
		}
		vals := make([]uint32, count)
		for j := range vals {
			switch typ {
			case dtByte:
				vals[j] = uint32(raw[j])
			case dtShort:
				vals[j] = uint32(d.order.Uint16(raw[j*2:]))
			case dtLong:
				vals[j] = d.order.Uint32(raw[j*4:])
			}
		}
		d.fields[tag] = vals
	}
	return nil
}

func swapSamples(b []byte, size int) {
	for i := 0; i+size <= len(b); i += size {
		for l, r := i, i+size-1; l < r; l, r = l+1, r-1 {
			b[l], b[r] = b[r], b[l]
		}
	}
}

func flipRows(pix []byte, stride, h int) {
	tmp := make([]byte, stride)
	for top, bot := 0, h-1; top < bot; top, bot = top+1, bot-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bot*stride : (bot+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
