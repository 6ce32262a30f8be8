// Package cubegen builds cubemap faces from equirectangular images using
// GPU compute.
//
// # Overview
//
// Two input modes are supported:
//
//   - Seam mode: two hemispheres (west and east) are sampled across their
//     seam into the vertical face set {bottom, front, top} and the
//     horizontal face set {front, right, back, left}. Faces are half the
//     source size.
//   - Direct mode: one equirectangular image is projected along the six
//     directions {up, down, left, right, front, rear}, each face tinted with
//     a fixed color. Faces are the size of the source.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/cubegen"
//		_ "github.com/gogpu/cubegen/gpu" // register the wgpu device
//	)
//
//	g := cubegen.NewGenerator(cubegen.WithOutputRoot("faces"))
//	res, err := g.Seam(ctx, "earth_0.tif", "earth_1.tif", cubegen.FormatR16I, nil)
//
// # Architecture
//
//   - Pixel formats: one row per format in a dispatch table (format.go)
//     fixes channels, element size, GPU word type, kernel variant and file
//     container.
//   - Orchestration: RenderFaces drives dispatch, barrier and readback for
//     every face through an explicit GPU Context handle, strictly one face
//     at a time, reusing one buffer.
//   - Output: Writer encodes PNG for 8-bit formats and scientific TIFF for
//     16-bit integer and 32-bit float formats.
//
// # Coordinate System
//
// +X right, +Y up, +Z front. Image rows are stored top to bottom.
// Longitude 0 faces +Z; the west hemisphere covers [-pi, 0), the east
// hemisphere [0, pi).
package cubegen

// Version information
const (
	// Version is the current version of the module
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
