package cubegen

import (
	"errors"
	"fmt"
)

// Source describes the planes a face set is sampled from: one
// equirectangular image for the direct set, or the west (A) and east (B)
// hemispheres for the seam sets.
type Source struct {
	Diffuse []*Plane
}

// SeamSource returns the source for a pair of hemispheres.
func SeamSource(a, b *Plane) Source { return Source{Diffuse: []*Plane{a, b}} }

// DirectSource returns the source for one equirectangular image.
func DirectSource(img *Plane) Source { return Source{Diffuse: []*Plane{img}} }

// DispatchJob is one unit of GPU work: a face, the extent of the dispatch
// and the slot the result lands in. A job lives for exactly one
// dispatch, barrier and readback cycle.
type DispatchJob struct {
	Face   FaceSpec
	Width  int
	Height int
	Target Slot
}

// Params returns the kernel parameters of the job.
func (j DispatchJob) Params() DispatchParams {
	return DispatchParams{
		Offset:    j.Face.Offset,
		Face:      j.Face.Index,
		Direction: j.Face.Direction,
		Color:     j.Face.Color,
	}
}

// FaceSink consumes the buffer of one face before the next job starts.
// The buffer is reused for the next face and must not be retained.
type FaceSink func(face FaceSpec, buf *Plane) error

// RenderOptions tune RenderFaces.
type RenderOptions struct {
	// Tint applies the per-face palette in the direct set. When false the
	// color parameter is white.
	Tint bool
}

// RenderFaces drives the face set through ctx: for every face in the
// fixed order it dispatches the kernel over the face extent, waits on the
// barrier, reads the output image back into one reused buffer and hands
// it to sink. Faces never overlap: the next dispatch starts only after
// sink returned.
//
// Configuration errors are reported before anything is bound.
func RenderFaces(ctx Context, src Source, format PixelFormat, set FaceSet, opts RenderOptions, sink FaceSink) error {
	if ctx == nil {
		return fmt.Errorf("%w: nil GPU context", ErrConfig)
	}
	if sink == nil {
		return fmt.Errorf("%w: nil face sink", ErrConfig)
	}
	info, err := format.Info()
	if err != nil {
		return err
	}
	kind := set.Kernel()
	if kind == 0 {
		return fmt.Errorf("%w: unknown face set %d", ErrConfig, uint8(set))
	}
	if err := checkSources(src, format, kind); err != nil {
		return err
	}
	fw, fh, err := set.FaceExtent(src.Diffuse[0].Width, src.Diffuse[0].Height)
	if err != nil {
		return err
	}
	buf, err := NewPlane(format, fw, fh)
	if err != nil {
		return err
	}

	log := Logger().With("set", set.String(), "format", format.String())

	kernel := Kernel{Kind: kind, Format: format}
	if err := ctx.UseKernel(kernel); err != nil {
		return wrapClass(err, ErrKernel, "use kernel "+kernel.Name())
	}

	bindings := make([]Binding, 0, 3)
	defer func() {
		for i := len(bindings) - 1; i >= 0; i-- {
			bindings[i].Release()
		}
	}()
	for i, p := range src.Diffuse {
		b, err := ctx.BindSource(SlotDiffuse0+Slot(i), p) //nolint:gosec // at most two sources
		if err != nil {
			return wrapClass(err, ErrGPU, fmt.Sprintf("bind diffuse%d", i))
		}
		bindings = append(bindings, b)
	}
	target, err := ctx.BindTarget(format, fw, fh)
	if err != nil {
		return wrapClass(err, ErrGPU, "bind target")
	}
	bindings = append(bindings, target)

	log.Debug("cubegen: faces bound",
		"kernel", kernel.Name(),
		"face_w", fw, "face_h", fh,
		"buffer_bytes", len(buf.Pix))

	for _, face := range set.Specs(fw, info.Container, opts.Tint) {
		job := DispatchJob{Face: face, Width: fw, Height: fh, Target: target.Slot()}
		if err := runJob(ctx, job, buf); err != nil {
			return err
		}
		log.Debug("cubegen: face rendered", "face", face.Name, "index", face.Index)
		if err := sink(face, buf); err != nil {
			return err
		}
	}
	return nil
}

// runJob performs one dispatch, barrier and readback cycle.
func runJob(ctx Context, job DispatchJob, buf *Plane) error {
	w, h := uint32(job.Width), uint32(job.Height) //nolint:gosec // validated positive
	if err := ctx.Dispatch(job.Params(), w, h, 1); err != nil {
		return wrapClass(err, ErrGPU, "dispatch "+job.Face.Name)
	}
	if err := ctx.Barrier(); err != nil {
		return wrapClass(err, ErrGPU, "barrier "+job.Face.Name)
	}
	n, err := ctx.ReadTarget(buf)
	if err != nil {
		return wrapClass(err, ErrGPU, "read back "+job.Face.Name)
	}
	if n != len(buf.Pix) {
		return fmt.Errorf("%w: read back %s: got %d bytes, want %d", ErrGPU, job.Face.Name, n, len(buf.Pix))
	}
	return nil
}

func checkSources(src Source, format PixelFormat, kind KernelKind) error {
	if len(src.Diffuse) != kind.Sources() {
		return fmt.Errorf("%w: %s kernel needs %d source(s), got %d",
			ErrConfig, kind, kind.Sources(), len(src.Diffuse))
	}
	first := src.Diffuse[0]
	for i, p := range src.Diffuse {
		if p == nil {
			return fmt.Errorf("%w: diffuse%d is nil", ErrConfig, i)
		}
		if p.Format != format {
			return fmt.Errorf("%w: diffuse%d is %s, want %s", ErrConfig, i, p.Format, format)
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if p.Width != first.Width || p.Height != first.Height {
			return fmt.Errorf("%w: diffuse%d is %dx%d, diffuse0 is %dx%d",
				ErrConfig, i, p.Width, p.Height, first.Width, first.Height)
		}
	}
	return nil
}

// wrapClass wraps err with class unless it already carries one of the
// pipeline error classes.
func wrapClass(err, class error, op string) error {
	for _, c := range []error{ErrConfig, ErrIO, ErrKernel, ErrGPU} {
		if errors.Is(err, c) {
			return fmt.Errorf("cubegen: %s: %w", op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", class, op, err)
}
