// Package config loads cubegen job files.
//
// A job file is TOML with one [[job]] table per run:
//
//	[[job]]
//	mode    = "seam"
//	inputs  = ["west_0.tif", "east_1.tif"]
//	format  = "r16i"
//	faces   = "both"
//	output  = "faces"
//
//	[[job]]
//	mode    = "direct"
//	inputs  = ["pano.png"]
//	format  = "rgba8"
//	tint    = false
//	preview = true
//
// Relative paths are resolved against the directory of the job file.
// Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/cubegen"
)

// Modes.
const (
	ModeSeam   = "seam"
	ModeDirect = "direct"
)

// Job is one [[job]] table as written in the file.
type Job struct {
	Mode    string   `toml:"mode"`
	Inputs  []string `toml:"inputs"`
	Format  string   `toml:"format"`
	Faces   string   `toml:"faces"`
	Output  string   `toml:"output"`
	Tint    *bool    `toml:"tint"`
	Preview bool     `toml:"preview"`
}

// File is a decoded job file.
type File struct {
	Jobs []Job `toml:"job"`
}

// Plan is a validated job ready to run.
type Plan struct {
	Mode    string
	Inputs  []string
	Format  cubegen.PixelFormat
	Sets    []cubegen.FaceSet
	Output  string
	Tint    bool
	Preview bool
}

// Load reads and validates the job file at path.
func Load(path string) ([]Plan, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("%w: read job file: %w", cubegen.ErrIO, err)
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Plans(filepath.Dir(path))
}

// Parse decodes a job file without validating it.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: unknown keys:\n%s", cubegen.ErrConfig, strict.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %s", cubegen.ErrConfig, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%w: %w", cubegen.ErrConfig, err)
	}
	return &f, nil
}

// Plans validates every job and resolves relative paths against base.
func (f *File) Plans(base string) ([]Plan, error) {
	if len(f.Jobs) == 0 {
		return nil, fmt.Errorf("%w: no [[job]] tables", cubegen.ErrConfig)
	}
	plans := make([]Plan, 0, len(f.Jobs))
	for i, j := range f.Jobs {
		p, err := j.Plan(base)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Plan validates the job.
func (j Job) Plan(base string) (Plan, error) {
	p := Plan{
		Mode:    strings.ToLower(strings.TrimSpace(j.Mode)),
		Output:  j.Output,
		Tint:    true,
		Preview: j.Preview,
	}
	if j.Tint != nil {
		p.Tint = *j.Tint
	}

	var err error
	if p.Format, err = cubegen.ParseFormat(j.Format); err != nil {
		return Plan{}, err
	}

	switch p.Mode {
	case ModeSeam:
		if len(j.Inputs) != 2 {
			return Plan{}, fmt.Errorf("%w: seam mode needs 2 inputs, got %d", cubegen.ErrConfig, len(j.Inputs))
		}
		if p.Sets, err = cubegen.ParseFaceSets(j.Faces); err != nil {
			return Plan{}, err
		}
	case ModeDirect:
		if len(j.Inputs) != 1 {
			return Plan{}, fmt.Errorf("%w: direct mode needs 1 input, got %d", cubegen.ErrConfig, len(j.Inputs))
		}
		if f := strings.ToLower(strings.TrimSpace(j.Faces)); f != "" && f != ModeDirect {
			return Plan{}, fmt.Errorf("%w: faces %q not available in direct mode", cubegen.ErrConfig, j.Faces)
		}
		p.Sets = []cubegen.FaceSet{cubegen.SetDirect}
	default:
		return Plan{}, fmt.Errorf("%w: unknown mode %q (want %q or %q)", cubegen.ErrConfig, j.Mode, ModeSeam, ModeDirect)
	}

	for _, in := range j.Inputs {
		if strings.TrimSpace(in) == "" {
			return Plan{}, fmt.Errorf("%w: empty input path", cubegen.ErrConfig)
		}
		p.Inputs = append(p.Inputs, resolve(base, in))
	}
	if p.Output == "" {
		p.Output = "."
	}
	p.Output = resolve(base, p.Output)
	return p, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
