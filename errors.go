package cubegen

import "errors"

// Error classes. Every failure of the pipeline wraps exactly one of them;
// none is recoverable because a partial cubemap has no valid use.
var (
	// ErrConfig reports an unsupported or mismatched pixel format,
	// extension, face set or source size. It is raised before any GPU work.
	ErrConfig = errors.New("cubegen: configuration error")

	// ErrIO reports an unreadable source or a failed face write.
	ErrIO = errors.New("cubegen: i/o error")

	// ErrKernel reports a kernel variant that failed to compile or link.
	ErrKernel = errors.New("cubegen: kernel error")

	// ErrGPU reports a failed submission, a barrier timeout or a short
	// readback.
	ErrGPU = errors.New("cubegen: gpu error")

	// ErrNoDevice is returned by OpenDevice when no backend is registered.
	ErrNoDevice = errors.New("cubegen: no device backend registered")
)
