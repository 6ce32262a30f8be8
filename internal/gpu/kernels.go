//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/gogpu/naga"

	"github.com/gogpu/cubegen"
	"github.com/gogpu/cubegen/internal/cache"
)

// Embedded WGSL template. Every kernel variant is rendered from it with the
// word codec of one pixel format; there is no generic kernel.
//
//go:embed shaders/cubeface.wgsl.tmpl
var cubefaceTemplateSource string

var cubefaceTemplate = template.Must(template.New("cubeface").Parse(cubefaceTemplateSource))

// wordCodec converts between one storage word and a normalized vec4<f32>
// sample. Bodies are WGSL statements.
type wordCodec struct {
	decode string
	encode string
}

// wordCodecs is keyed by FormatInfo.Kernel. A new pixel format needs one
// row here and one row in the cubegen format table.
var wordCodecs = map[string]wordCodec{
	"r8": {
		decode: "    return vec4<f32>(f32(w & 0xFFu) / 255.0, 0.0, 0.0, 1.0);",
		encode: "    return u32(clamp(round(c.x * 255.0), 0.0, 255.0));",
	},
	"rgba8": {
		decode: "    let b = vec4<u32>(w & 0xFFu, (w >> 8u) & 0xFFu, (w >> 16u) & 0xFFu, w >> 24u);\n" +
			"    return vec4<f32>(b) / 255.0;",
		encode: "    let b = vec4<u32>(clamp(round(c * 255.0), vec4<f32>(0.0), vec4<f32>(255.0)));\n" +
			"    return b.x | (b.y << 8u) | (b.z << 16u) | (b.w << 24u);",
	},
	"r16i": {
		decode: "    return vec4<f32>(f32(w), 0.0, 0.0, 1.0);",
		encode: "    return i32(clamp(round(c.x), -32768.0, 32767.0));",
	},
	"r16ui": {
		decode: "    return vec4<f32>(f32(w), 0.0, 0.0, 1.0);",
		encode: "    return u32(clamp(round(c.x), 0.0, 65535.0));",
	},
	"r32f": {
		decode: "    return vec4<f32>(w, 0.0, 0.0, 1.0);",
		encode: "    return c.x;",
	},
}

type kernelData struct {
	Name     string
	Kind     string
	Word     string
	Seam     bool
	Direct   bool
	Linear   bool
	Channels int
	Faces    int
	Decode   string
	Encode   string
}

// faceCount returns the number of faces a kernel family renders.
func faceCount(kind cubegen.KernelKind) int {
	switch kind {
	case cubegen.KernelVertical:
		return len(cubegen.SetVertical.Names())
	case cubegen.KernelHorizontal:
		return len(cubegen.SetHorizontal.Names())
	default:
		return len(cubegen.SetDirect.Names())
	}
}

// KernelSource renders the WGSL source of a kernel variant.
func KernelSource(k cubegen.Kernel) (string, error) {
	info, err := k.Format.Info()
	if err != nil {
		return "", err
	}
	codec, ok := wordCodecs[info.Kernel]
	if !ok {
		return "", fmt.Errorf("%w: no word codec for %s", cubegen.ErrKernel, info.Kernel)
	}
	switch k.Kind {
	case cubegen.KernelVertical, cubegen.KernelHorizontal, cubegen.KernelDirect:
	default:
		return "", fmt.Errorf("%w: unknown kernel kind %d", cubegen.ErrConfig, uint8(k.Kind))
	}

	data := kernelData{
		Name:     k.Name(),
		Kind:     k.Kind.String(),
		Word:     info.Word.WGSL(),
		Seam:     k.Kind != cubegen.KernelDirect,
		Direct:   k.Kind == cubegen.KernelDirect,
		Linear:   info.Linear,
		Channels: info.Channels,
		Faces:    faceCount(k.Kind),
		Decode:   codec.decode,
		Encode:   codec.encode,
	}
	var b strings.Builder
	if err := cubefaceTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("%w: render %s: %w", cubegen.ErrKernel, k.Name(), err)
	}
	return b.String(), nil
}

// spirvCache holds the SPIR-V of every variant compiled by the process.
var spirvCache = cache.New[string, []uint32]()

// CompileKernel renders and compiles a kernel variant to SPIR-V words.
func CompileKernel(k cubegen.Kernel) ([]uint32, error) {
	return spirvCache.GetOrCreate(k.Name(), func() ([]uint32, error) {
		return compile(k)
	})
}

func compile(k cubegen.Kernel) ([]uint32, error) {
	name := k.Name()
	src, err := KernelSource(k)
	if err != nil {
		return nil, err
	}
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %w", cubegen.ErrKernel, name, err)
	}
	if len(spirvBytes) == 0 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: compile %s: %d bytes of SPIR-V", cubegen.ErrKernel, name, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	slogger().Debug("gpu: kernel compiled", "kernel", name, "spirv_words", len(words))
	return words, nil
}
