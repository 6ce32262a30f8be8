package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/cubegen"
)

const sample = `
[[job]]
mode   = "seam"
inputs = ["west_0.tif", "/data/east_1.tif"]
format = "r16i"
faces  = "vertical"
output = "faces"

[[job]]
mode    = "direct"
inputs  = ["pano.png"]
format  = "RGBA8"
tint    = false
preview = true
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	plans, err := Load(path)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	seam := plans[0]
	assert.Equal(t, ModeSeam, seam.Mode)
	assert.Equal(t, []string{filepath.Join(dir, "west_0.tif"), "/data/east_1.tif"}, seam.Inputs)
	assert.Equal(t, cubegen.FormatR16I, seam.Format)
	assert.Equal(t, []cubegen.FaceSet{cubegen.SetVertical}, seam.Sets)
	assert.Equal(t, filepath.Join(dir, "faces"), seam.Output)
	assert.True(t, seam.Tint, "tint defaults to on")
	assert.False(t, seam.Preview)

	direct := plans[1]
	assert.Equal(t, ModeDirect, direct.Mode)
	assert.Equal(t, cubegen.FormatRGBA8, direct.Format)
	assert.Equal(t, []cubegen.FaceSet{cubegen.SetDirect}, direct.Sets)
	assert.Equal(t, dir, direct.Output)
	assert.False(t, direct.Tint)
	assert.True(t, direct.Preview)
}

func TestSeamDefaultsToBothSets(t *testing.T) {
	f, err := Parse(strings.NewReader(`[[job]]
mode = "seam"
inputs = ["a_0.png", "a_1.png"]
format = "r8"
`))
	require.NoError(t, err)
	plans, err := f.Plans("")
	require.NoError(t, err)
	assert.Equal(t, []cubegen.FaceSet{cubegen.SetVertical, cubegen.SetHorizontal}, plans[0].Sets)
	assert.Equal(t, []string{"a_0.png", "a_1.png"}, plans[0].Inputs)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader(`[[job]]
mode = "seam"
color = "red"
`))
	require.ErrorIs(t, err, cubegen.ErrConfig)
	assert.Contains(t, err.Error(), "color")
}

func TestParseRejectsSyntax(t *testing.T) {
	_, err := Parse(strings.NewReader("[[job]\nmode = "))
	assert.ErrorIs(t, err, cubegen.ErrConfig)
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{"unknown mode", Job{Mode: "spiral", Inputs: []string{"a.png"}, Format: "r8"}},
		{"unknown format", Job{Mode: ModeDirect, Inputs: []string{"a.png"}, Format: "rgb565"}},
		{"seam with one input", Job{Mode: ModeSeam, Inputs: []string{"a_0.png"}, Format: "r8"}},
		{"direct with two inputs", Job{Mode: ModeDirect, Inputs: []string{"a.png", "b.png"}, Format: "r8"}},
		{"unknown faces", Job{Mode: ModeSeam, Inputs: []string{"a_0.png", "a_1.png"}, Format: "r8", Faces: "diagonal"}},
		{"seam faces in direct mode", Job{Mode: ModeDirect, Inputs: []string{"a.png"}, Format: "r8", Faces: "vertical"}},
		{"empty input", Job{Mode: ModeDirect, Inputs: []string{" "}, Format: "r8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.job.Plan("")
			assert.ErrorIs(t, err, cubegen.ErrConfig)
		})
	}
}

func TestPlansNeedsJobs(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	_, err = f.Plans("")
	assert.ErrorIs(t, err, cubegen.ErrConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, cubegen.ErrIO)
}

func TestLoadReportsJobIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample+`
[[job]]
mode = "direct"
inputs = ["x.png"]
format = "bogus"
`), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, cubegen.ErrConfig)
	assert.Contains(t, err.Error(), "job 3")
}
