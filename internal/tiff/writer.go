// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Options are the encoding parameters.
type Options struct {
	// FlipVertical writes the rows bottom to top.
	FlipVertical bool
}

type ifdEntry struct {
	tag      uint16
	datatype uint16
	data     []uint32
}

func (e ifdEntry) size() uint32 {
	return lengths[e.datatype] * uint32(len(e.data)) //nolint:gosec // small counts
}

func (e ifdEntry) putData(dst []byte) []byte {
	for _, d := range e.data {
		switch e.datatype {
		case dtByte:
			dst = append(dst, byte(d)) //nolint:gosec // byte tags hold bytes
		case dtShort:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(d)) //nolint:gosec // short tags hold shorts
		case dtLong:
			dst = binary.LittleEndian.AppendUint32(dst, d)
		}
	}
	return dst
}

// Encode writes m as a little-endian, uncompressed TIFF with one strip per
// scanline. BitsPerSample, SampleFormat and SamplesPerPixel carry the
// exact layout of m so Decode reproduces the samples bit for bit.
func Encode(w io.Writer, m *Image, opt *Options) error {
	if m == nil {
		return fmt.Errorf("%w: nil image", ErrFormat)
	}
	if err := m.validate(); err != nil {
		return err
	}
	flip := opt != nil && opt.FlipVertical

	stride := m.Stride()
	dataLen := stride * m.Height
	pad := dataLen & 1

	offsets := make([]uint32, m.Height)
	counts := make([]uint32, m.Height)
	for y := range m.Height {
		offsets[y] = uint32(8 + y*stride) //nolint:gosec // file offsets fit uint32
		counts[y] = uint32(stride)        //nolint:gosec // row size fits uint32
	}

	bits := make([]uint32, m.Channels)
	formats := make([]uint32, m.Channels)
	for i := range m.Channels {
		bits[i] = uint32(m.BitsPerSample) //nolint:gosec // 8, 16 or 32
		formats[i] = uint32(m.SampleFormat)
	}

	photometric := uint32(1) // BlackIsZero
	if m.Channels >= 3 {
		photometric = 2 // RGB
	}

	entries := []ifdEntry{
		{tImageWidth, dtLong, []uint32{uint32(m.Width)}},   //nolint:gosec // validated positive
		{tImageLength, dtLong, []uint32{uint32(m.Height)}}, //nolint:gosec // validated positive
		{tBitsPerSample, dtShort, bits},
		{tCompression, dtShort, []uint32{1}},
		{tPhotometricInterpretation, dtShort, []uint32{photometric}},
		{tStripOffsets, dtLong, offsets},
		{tSamplesPerPixel, dtShort, []uint32{uint32(m.Channels)}}, //nolint:gosec // 1..4
		{tRowsPerStrip, dtLong, []uint32{1}},
		{tStripByteCounts, dtLong, counts},
		{tPlanarConfiguration, dtShort, []uint32{1}},
		{tSampleFormat, dtShort, formats},
	}
	if m.Channels == 2 || m.Channels == 4 {
		// The last channel is unassociated alpha.
		entries = append(entries, ifdEntry{tExtraSamples, dtShort, []uint32{2}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// Out-of-line tag data follows the samples, then the IFD.
	extOff := uint32(8 + dataLen + pad) //nolint:gosec // file offsets fit uint32
	var ext []byte
	extPos := make([]uint32, len(entries))
	for i, e := range entries {
		if e.size() <= 4 {
			continue
		}
		extPos[i] = extOff + uint32(len(ext)) //nolint:gosec // file offsets fit uint32
		ext = e.putData(ext)
		if len(ext)&1 == 1 {
			ext = append(ext, 0)
		}
	}
	ifdOff := extOff + uint32(len(ext)) //nolint:gosec // file offsets fit uint32

	hdr := make([]byte, 0, 8)
	hdr = append(hdr, leHeader...)
	hdr = binary.LittleEndian.AppendUint32(hdr, ifdOff)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	for y := range m.Height {
		src := y
		if flip {
			src = m.Height - 1 - y
		}
		if _, err := w.Write(m.Pix[src*stride : (src+1)*stride]); err != nil {
			return err
		}
	}
	if pad == 1 {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	if _, err := w.Write(ext); err != nil {
		return err
	}

	ifd := make([]byte, 0, 2+len(entries)*ifdLen+4)
	ifd = binary.LittleEndian.AppendUint16(ifd, uint16(len(entries))) //nolint:gosec // a dozen entries
	for i, e := range entries {
		ifd = binary.LittleEndian.AppendUint16(ifd, e.tag)
		ifd = binary.LittleEndian.AppendUint16(ifd, e.datatype)
		ifd = binary.LittleEndian.AppendUint32(ifd, uint32(len(e.data))) //nolint:gosec // small counts
		if e.size() <= 4 {
			var inline []byte
			inline = e.putData(inline)
			for len(inline) < 4 {
				inline = append(inline, 0)
			}
			ifd = append(ifd, inline...)
		} else {
			ifd = binary.LittleEndian.AppendUint32(ifd, extPos[i])
		}
	}
	ifd = binary.LittleEndian.AppendUint32(ifd, 0) // no next IFD
	_, err := w.Write(ifd)
	return err
}
