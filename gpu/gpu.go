//go:build !nogpu

// Package gpu registers the wgpu/hal compute backend with cubegen.
//
// Import it for its side effect:
//
//	import _ "github.com/gogpu/cubegen/gpu" // enable the Vulkan compute backend
//
// The device is opened lazily by cubegen.OpenDevice. If no adapter is
// available the backend reports an error and generation fails with
// cubegen.ErrNoDevice.
package gpu

import (
	"github.com/gogpu/cubegen"
	gpuimpl "github.com/gogpu/cubegen/internal/gpu"
)

func init() {
	cubegen.RegisterDevice("wgpu", gpuimpl.Open)
	cubegen.RegisterLoggerHook(gpuimpl.SetLogger)
}
