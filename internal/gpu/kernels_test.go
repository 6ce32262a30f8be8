//go:build !nogpu

package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/cubegen"
)

func allKernels() []cubegen.Kernel {
	var out []cubegen.Kernel
	for _, kind := range []cubegen.KernelKind{cubegen.KernelVertical, cubegen.KernelHorizontal, cubegen.KernelDirect} {
		for _, f := range cubegen.Formats() {
			out = append(out, cubegen.Kernel{Kind: kind, Format: f})
		}
	}
	return out
}

// skipNagaLimitation skips tests that hit shader features naga does not
// lower yet.
func skipNagaLimitation(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
	if strings.Contains(msg, "lowering error") {
		t.Skipf("Skipping: naga lowering limitation: %v", err)
	}
}

func TestKernelSourceVariants(t *testing.T) {
	kernels := allKernels()
	if len(kernels) != 15 {
		t.Fatalf("got %d kernel variants, want 15", len(kernels))
	}
	for _, k := range kernels {
		t.Run(k.Name(), func(t *testing.T) {
			src, err := KernelSource(k)
			if err != nil {
				t.Fatalf("KernelSource: %v", err)
			}
			info := k.Format.MustInfo()
			for _, want := range []string{
				"@group(0) @binding(0) var<storage, read_write> output: array<" + info.Word.WGSL() + ">",
				"@group(0) @binding(1) var<storage, read> diffuse0",
				"@group(0) @binding(3) var<uniform> params: Params",
				"@workgroup_size(8, 8, 1)",
			} {
				if !strings.Contains(src, want) {
					t.Errorf("source lacks %q", want)
				}
			}
			seam := k.Kind != cubegen.KernelDirect
			if got := strings.Contains(src, "diffuse1"); got != seam {
				t.Errorf("diffuse1 declared = %v, want %v", got, seam)
			}
			if got := strings.Contains(src, "mix(fetch"); got != info.Linear {
				t.Errorf("bilinear sampling = %v, want %v", got, info.Linear)
			}
			if got := strings.Contains(src, "params.color"); got != !seam {
				t.Errorf("tint applied = %v, want %v", got, !seam)
			}
			if strings.Contains(src, "{{") || strings.Contains(src, "<no value>") {
				t.Error("template was not fully expanded")
			}
		})
	}
}

func TestKernelSourceFaceCount(t *testing.T) {
	tests := []struct {
		kind cubegen.KernelKind
		want string
	}{
		{cubegen.KernelVertical, "FACE_COUNT: u32 = 3u"},
		{cubegen.KernelHorizontal, "FACE_COUNT: u32 = 4u"},
		{cubegen.KernelDirect, "FACE_COUNT: u32 = 6u"},
	}
	for _, tt := range tests {
		src, err := KernelSource(cubegen.Kernel{Kind: tt.kind, Format: cubegen.FormatR8})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(src, tt.want) {
			t.Errorf("%s: source lacks %q", tt.kind, tt.want)
		}
	}
}

func TestKernelSourceRejectsUnknown(t *testing.T) {
	_, err := KernelSource(cubegen.Kernel{Kind: cubegen.KernelDirect, Format: cubegen.FormatInvalid})
	if !errors.Is(err, cubegen.ErrConfig) {
		t.Errorf("invalid format: got %v, want ErrConfig", err)
	}
	_, err = KernelSource(cubegen.Kernel{Kind: 0, Format: cubegen.FormatR8})
	if !errors.Is(err, cubegen.ErrConfig) {
		t.Errorf("invalid kind: got %v, want ErrConfig", err)
	}
}

// TestCompileKernels checks that every variant compiles to SPIR-V.
func TestCompileKernels(t *testing.T) {
	for _, k := range allKernels() {
		t.Run(k.Name(), func(t *testing.T) {
			words, err := CompileKernel(k)
			if err != nil {
				skipNagaLimitation(t, err)
				if !errors.Is(err, cubegen.ErrKernel) {
					t.Errorf("compile error is not ErrKernel: %v", err)
				}
				t.Fatalf("failed to compile %s: %v", k.Name(), err)
			}
			if len(words) == 0 {
				t.Fatal("SPIR-V output is empty")
			}
			if words[0] != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
			}

			again, err := CompileKernel(k)
			if err != nil {
				t.Fatal(err)
			}
			if &again[0] != &words[0] {
				t.Error("second compile did not hit the cache")
			}
		})
	}
}
