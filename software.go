package cubegen

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/chewxy/math32"
)

func init() {
	registerFallback("software", OpenSoftware)
}

// SoftwareDevice evaluates the projection kernels on the CPU. It holds
// images as one storage word per pixel, like the GPU backend, and samples
// them with the same filtering, so faces match the GPU output up to float
// rounding.
//
// OpenDevice only picks it when no GPU backend initializes.
type SoftwareDevice struct {
	mu sync.Mutex

	kernel  Kernel
	active  bool
	sources [2]*wordImage
	target  *wordImage
	pending bool
	visible bool
	closed  bool
}

type wordImage struct {
	format PixelFormat
	width  int
	height int
	words  []uint32
}

// OpenSoftware returns a new CPU device.
func OpenSoftware() (Device, error) {
	return &SoftwareDevice{}, nil
}

// UseKernel makes the variant active. Nothing is compiled.
func (d *SoftwareDevice) UseKernel(k Kernel) error {
	if _, err := k.Format.Info(); err != nil {
		return err
	}
	if k.Kind.faceCount() == 0 {
		return fmt.Errorf("%w: unknown kernel kind %d", ErrConfig, uint8(k.Kind))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%w: device closed", ErrGPU)
	}
	d.kernel = k
	d.active = true
	return nil
}

// BindSource copies p into an input slot.
func (d *SoftwareDevice) BindSource(slot Slot, p *Plane) (Binding, error) {
	if slot != SlotDiffuse0 && slot != SlotDiffuse1 {
		return nil, fmt.Errorf("%w: slot %d is not an input slot", ErrConfig, slot)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: device closed", ErrGPU)
	}
	idx := int(slot - SlotDiffuse0)
	if d.sources[idx] != nil {
		return nil, fmt.Errorf("%w: slot %d already bound", ErrConfig, slot)
	}
	raw := p.Words()
	img := &wordImage{format: p.Format, width: p.Width, height: p.Height, words: make([]uint32, len(raw)/4)}
	for i := range img.words {
		img.words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	d.sources[idx] = img
	return &softwareBinding{d: d, slot: slot}, nil
}

// BindTarget allocates the w*h output image.
func (d *SoftwareDevice) BindTarget(format PixelFormat, w, h int) (Binding, error) {
	if _, err := format.Info(); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", ErrConfig, w, h)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: device closed", ErrGPU)
	}
	if d.target != nil {
		return nil, fmt.Errorf("%w: output slot already bound", ErrConfig)
	}
	d.target = &wordImage{format: format, width: w, height: h, words: make([]uint32, w*h)}
	d.visible = false
	return &softwareBinding{d: d, slot: SlotOutput}, nil
}

// Dispatch evaluates the active kernel for every pixel of the output.
func (d *SoftwareDevice) Dispatch(params DispatchParams, x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkDispatch(x, y); err != nil {
		return err
	}
	if d.pending {
		return fmt.Errorf("%w: dispatch while the previous one is still pending", ErrGPU)
	}
	d.pending = true
	d.visible = false

	kind := d.kernel.Kind
	if params.Face >= uint32(kind.faceCount()) { //nolint:gosec // at most 6 faces
		return nil
	}
	info := d.kernel.Format.MustInfo()
	src := d.sources[0]
	fw, fh := d.target.width, d.target.height
	f := params.Direction
	if kind != KernelDirect {
		f = StripForward(kind, params.Offset, fw)
	}
	for py := range fh {
		for px := range fw {
			u, v := PixelUV(px, py, fw, fh)
			dir := FaceDirection(f, u, v)
			var sx, sy float32
			if kind == KernelDirect {
				sx, sy = EquirectPoint(dir, src.width, src.height)
			} else {
				sx, sy = HemispherePoint(dir, src.width, src.height)
			}
			c := d.sample(sx, sy, info.Linear)
			if kind == KernelDirect {
				c = tint(c, params.Color, info.Channels)
			}
			d.target.words[py*fw+px] = encodeWord(d.kernel.Format, c)
		}
	}
	return nil
}

func (d *SoftwareDevice) checkDispatch(x, y uint32) error {
	if d.closed {
		return fmt.Errorf("%w: device closed", ErrGPU)
	}
	if !d.active {
		return fmt.Errorf("%w: no kernel in use", ErrConfig)
	}
	if d.target == nil {
		return fmt.Errorf("%w: no output bound", ErrConfig)
	}
	for i := range d.kernel.Kind.Sources() {
		if d.sources[i] == nil {
			return fmt.Errorf("%w: diffuse%d not bound", ErrConfig, i)
		}
		if d.sources[i].format != d.kernel.Format || d.target.format != d.kernel.Format {
			return fmt.Errorf("%w: bound images do not match kernel %s", ErrConfig, d.kernel.Name())
		}
	}
	if int(x) != d.target.width || int(y) != d.target.height {
		return fmt.Errorf("%w: dispatch %dx%d does not cover output %dx%d",
			ErrConfig, x, y, d.target.width, d.target.height)
	}
	return nil
}

// sample filters the source at continuous pixel coordinates.
func (d *SoftwareDevice) sample(x, y float32, linear bool) [4]float32 {
	if !linear {
		return d.fetch(int(math32.Floor(x+0.5)), int(math32.Floor(y+0.5)))
	}
	x0, y0 := math32.Floor(x), math32.Floor(y)
	tx, ty := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	top := mix(d.fetch(ix, iy), d.fetch(ix+1, iy), tx)
	bottom := mix(d.fetch(ix, iy+1), d.fetch(ix+1, iy+1), tx)
	return mix(top, bottom, ty)
}

// fetch reads texel (x, y). X wraps around the full longitude range, Y is
// clamped. Seam kernels read the two hemispheres as one atlas.
func (d *SoftwareDevice) fetch(x, y int) [4]float32 {
	src := d.sources[0]
	w := src.width
	y = max(0, min(y, src.height-1))
	if d.kernel.Kind == KernelDirect {
		x %= w
		if x < 0 {
			x += w
		}
		return decodeWord(d.kernel.Format, src.words[y*w+x])
	}
	img, col := AtlasImage(x, w)
	return decodeWord(d.kernel.Format, d.sources[img].words[y*w+col])
}

// Barrier marks the output of the last dispatch readable. Dispatch runs
// synchronously, so there is nothing to wait for.
func (d *SoftwareDevice) Barrier() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending {
		return nil
	}
	d.pending = false
	d.visible = true
	return nil
}

// ReadTarget converts the output words into dst.
func (d *SoftwareDevice) ReadTarget(dst *Plane) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.target == nil {
		return 0, fmt.Errorf("%w: no output bound", ErrConfig)
	}
	if !d.visible {
		return 0, fmt.Errorf("%w: read back before barrier", ErrGPU)
	}
	if err := dst.Validate(); err != nil {
		return 0, err
	}
	if dst.Format != d.target.format || dst.Width != d.target.width || dst.Height != d.target.height {
		return 0, fmt.Errorf("%w: read back into %s %dx%d, output is %s %dx%d", ErrConfig,
			dst.Format, dst.Width, dst.Height, d.target.format, d.target.width, d.target.height)
	}
	raw := make([]byte, len(d.target.words)*4)
	for i, w := range d.target.words {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return dst.Format.MustInfo().UnpackWords(raw, dst.Pix, dst.Width*dst.Height), nil
}

// Close drops every binding. The device cannot be used afterwards.
func (d *SoftwareDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = [2]*wordImage{}
	d.target = nil
	d.active = false
	d.closed = true
}

type softwareBinding struct {
	d    *SoftwareDevice
	slot Slot
	once sync.Once
}

func (b *softwareBinding) Slot() Slot { return b.slot }

func (b *softwareBinding) Release() {
	b.once.Do(func() {
		b.d.mu.Lock()
		defer b.d.mu.Unlock()
		if b.slot == SlotOutput {
			b.d.target = nil
			b.d.visible = false
			return
		}
		b.d.sources[b.slot-SlotDiffuse0] = nil
	})
}

// decodeWord converts one storage word into a sample. 8-bit formats are
// normalized to [0, 1], the others keep their value.
func decodeWord(f PixelFormat, w uint32) [4]float32 {
	switch f {
	case FormatR8:
		return [4]float32{float32(w&0xFF) / 255, 0, 0, 1}
	case FormatRGBA8:
		return [4]float32{
			float32(w&0xFF) / 255,
			float32((w>>8)&0xFF) / 255,
			float32((w>>16)&0xFF) / 255,
			float32(w>>24) / 255,
		}
	case FormatR16I:
		return [4]float32{float32(int32(w)), 0, 0, 1} //nolint:gosec // word holds an i32
	case FormatR16UI:
		return [4]float32{float32(w), 0, 0, 1}
	default:
		return [4]float32{math.Float32frombits(w), 0, 0, 1}
	}
}

// encodeWord rounds half to even, like WGSL round.
func encodeWord(f PixelFormat, c [4]float32) uint32 {
	switch f {
	case FormatR8:
		return uint32(clampRound(c[0]*255, 0, 255))
	case FormatRGBA8:
		var w uint32
		for i := range 4 {
			w |= uint32(clampRound(c[i]*255, 0, 255)) << (8 * i)
		}
		return w
	case FormatR16I:
		return uint32(int32(clampRound(c[0], math.MinInt16, math.MaxInt16))) //nolint:gosec // sign extension
	case FormatR16UI:
		return uint32(clampRound(c[0], 0, math.MaxUint16))
	default:
		return math.Float32bits(c[0])
	}
}

func clampRound(v, lo, hi float32) float32 {
	r := float32(math.RoundToEven(float64(v)))
	return max(lo, min(r, hi))
}

func tint(c [4]float32, color [3]float32, channels int) [4]float32 {
	if channels == 4 {
		return [4]float32{c[0] * color[0], c[1] * color[1], c[2] * color[2], c[3]}
	}
	c[0] *= 0.2126*color[0] + 0.7152*color[1] + 0.0722*color[2]
	return c
}

func mix(a, b [4]float32, t float32) [4]float32 {
	for i := range a {
		a[i] += (b[i] - a[i]) * t
	}
	return a
}
