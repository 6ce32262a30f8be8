package cubegen

import (
	"fmt"
	"slices"
	"sync"
)

// Slot is a binding point of the projection kernel.
type Slot uint32

// Fixed binding points. The output image is written through slot 0, the
// diffuse sources are sampled through slots 1 and 2.
const (
	SlotOutput   Slot = 0
	SlotDiffuse0 Slot = 1
	SlotDiffuse1 Slot = 2
)

// Kernel identifies one type-specialized kernel variant.
type Kernel struct {
	Kind   KernelKind
	Format PixelFormat
}

// Name returns the variant name, e.g. "vertical_r16i".
func (k Kernel) Name() string {
	info, err := k.Format.Info()
	if err != nil {
		return k.Kind.String() + "_invalid"
	}
	return info.KernelName(k.Kind)
}

// DispatchParams are the per-face kernel parameters.
type DispatchParams struct {
	Offset    [2]uint32
	Face      uint32
	Direction [3]float32
	Color     [3]float32
}

// Binding is a scoped resource bound to a kernel slot. Release unbinds and
// frees it; calling Release more than once is a no-op.
type Binding interface {
	Slot() Slot
	Release()
}

// Context is an explicit GPU context handle. It holds the active kernel
// and the current bindings; nothing is bound implicitly.
//
// Calls are blocking. ReadTarget returns only after the work recorded by
// the last Dispatch is visible, which Barrier guarantees.
type Context interface {
	// UseKernel compiles (or reuses) the variant and makes it active.
	// Compilation failures wrap ErrKernel.
	UseKernel(k Kernel) error

	// BindSource uploads p and binds it to an input slot.
	BindSource(slot Slot, p *Plane) (Binding, error)

	// BindTarget allocates a w*h output image of the given format and
	// binds it as the write target at SlotOutput.
	BindTarget(format PixelFormat, w, h int) (Binding, error)

	// Dispatch runs the active kernel over an x*y*z invocation grid.
	Dispatch(params DispatchParams, x, y, z uint32) error

	// Barrier blocks until every image write of the previous dispatch is
	// visible to subsequent reads.
	Barrier() error

	// ReadTarget copies the whole output image into dst and returns the
	// number of bytes written.
	ReadTarget(dst *Plane) (int, error)
}

// Device is a Context that owns GPU resources.
type Device interface {
	Context
	Close()
}

var (
	devicesMu sync.RWMutex
	devices   []deviceFactory
)

type deviceFactory struct {
	name     string
	open     func() (Device, error)
	fallback bool
}

// RegisterDevice makes a device backend available to OpenDevice.
// Backends register themselves from init; see package gpu.
func RegisterDevice(name string, open func() (Device, error)) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices = append(devices, deviceFactory{name: name, open: open})
}

// registerFallback adds a backend that OpenDevice tries only after every
// backend registered with RegisterDevice.
func registerFallback(name string, open func() (Device, error)) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices = append(devices, deviceFactory{name: name, open: open, fallback: true})
}

// OpenDevice opens the first registered backend that initializes. The CPU
// backend is tried last.
func OpenDevice() (Device, error) {
	devicesMu.RLock()
	list := slices.Clone(devices)
	devicesMu.RUnlock()
	slices.SortStableFunc(list, func(a, b deviceFactory) int {
		switch {
		case a.fallback == b.fallback:
			return 0
		case a.fallback:
			return 1
		default:
			return -1
		}
	})

	if len(list) == 0 {
		return nil, ErrNoDevice
	}
	var errs []error
	for _, f := range list {
		d, err := f.open()
		if err == nil {
			Logger().Info("cubegen: device opened", "backend", f.name)
			return d, nil
		}
		Logger().Warn("cubegen: device backend failed", "backend", f.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
	}
	return nil, fmt.Errorf("%w: %v", ErrGPU, errs)
}
