package cubegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Status receives human-readable progress lines. See internal/status for
// the console implementation.
type Status interface {
	Start(msg string)
	Update(msg string)
	End(ok bool, msg string)
}

type nopStatus struct{}

func (nopStatus) Start(string)     {}
func (nopStatus) Update(string)    {}
func (nopStatus) End(bool, string) {}

// Result lists the files produced by one run.
type Result struct {
	// Dir is the face directory.
	Dir string

	// Files are the face files in write order.
	Files []string

	// Preview is the preview path, empty when none was written.
	Preview string
}

// Generator runs complete jobs: it loads and validates the sources, renders
// the requested face sets on a GPU device and writes every face. On failure
// the faces already written by the run are removed.
type Generator struct {
	root    string
	tint    bool
	preview bool
	status  Status
	log     *slog.Logger
	device  Device
	timeout time.Duration
}

// timeoutSetter is implemented by devices whose barrier wait is bounded.
type timeoutSetter interface {
	SetTimeout(d time.Duration)
}

// Option configures a Generator.
type Option func(*Generator)

// WithOutputRoot sets the directory face folders are created in.
// Defaults to the current directory.
func WithOutputRoot(dir string) Option {
	return func(g *Generator) { g.root = dir }
}

// WithTint enables or disables the per-face palette of the direct set.
// Enabled by default.
func WithTint(on bool) Option {
	return func(g *Generator) { g.tint = on }
}

// WithPreview enables the cross layout preview for 8-bit formats.
func WithPreview(on bool) Option {
	return func(g *Generator) { g.preview = on }
}

// WithStatus sets the progress reporter.
func WithStatus(s Status) Option {
	return func(g *Generator) {
		if s != nil {
			g.status = s
		}
	}
}

// WithLogger sets the logger of the generator. Defaults to Logger().
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithDevice makes the generator use d instead of opening a registered
// device per run. The caller keeps ownership of d.
func WithDevice(d Device) Option {
	return func(g *Generator) { g.device = d }
}

// WithTimeout bounds how long a barrier waits for the GPU. Zero keeps the
// device default. Devices without a bounded wait ignore it.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// NewGenerator returns a generator with the given options applied.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{root: ".", tint: true, status: nopStatus{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) logger() *slog.Logger {
	if g.log != nil {
		return g.log
	}
	return Logger()
}

// Seam renders the given face sets from the west (path0) and east (path1)
// hemispheres into <root>/<FaceDirName(path0)>. With sets empty both the
// vertical and the horizontal set are produced.
func (g *Generator) Seam(ctx context.Context, path0, path1 string, format PixelFormat, sets []FaceSet) (Result, error) {
	if len(sets) == 0 {
		sets = []FaceSet{SetVertical, SetHorizontal}
	}
	for _, s := range sets {
		if s != SetVertical && s != SetHorizontal {
			return Result{}, fmt.Errorf("%w: %s is not a seam face set", ErrConfig, s)
		}
	}
	g.status.Start(fmt.Sprintf("seam %s + %s (%s)", filepath.Base(path0), filepath.Base(path1), format))
	a, b, err := LoadSeamSources(path0, path1, format)
	if err != nil {
		g.status.End(false, err.Error())
		return Result{}, err
	}
	dir := filepath.Join(g.root, FaceDirName(path0))
	return g.run(ctx, SeamSource(a, b), format, sets, dir)
}

// Direct renders the six direction faces of one equirectangular image into
// <root>/<FaceDirName(path)>.
func (g *Generator) Direct(ctx context.Context, path string, format PixelFormat) (Result, error) {
	g.status.Start(fmt.Sprintf("direct %s (%s)", filepath.Base(path), format))
	img, err := LoadDirectSource(path, format)
	if err != nil {
		g.status.End(false, err.Error())
		return Result{}, err
	}
	dir := filepath.Join(g.root, FaceDirName(path))
	return g.run(ctx, DirectSource(img), format, []FaceSet{SetDirect}, dir)
}

func (g *Generator) run(ctx context.Context, src Source, format PixelFormat, sets []FaceSet, dir string) (res Result, err error) {
	log := g.logger().With("dir", dir, "format", format.String())
	w := NewWriter(dir)
	defer func() {
		if err != nil {
			if cerr := w.Cleanup(); cerr != nil {
				log.Warn("cubegen: failed run left files behind", "err", cerr)
			}
			g.status.End(false, err.Error())
		}
	}()

	dev := g.device
	if dev == nil {
		dev, err = OpenDevice()
		if err != nil {
			return Result{}, err
		}
		defer dev.Close()
	}
	if ts, ok := dev.(timeoutSetter); ok && g.timeout > 0 {
		ts.SetTimeout(g.timeout)
	}

	sink := func(face FaceSpec, buf *Plane) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := w.Write(face, buf)
		if err != nil {
			return err
		}
		g.status.Update(fmt.Sprintf("%s -> %s", face.Name, path))
		return nil
	}
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		log.Debug("cubegen: rendering face set", "set", set.String())
		if err := RenderFaces(dev, src, format, set, RenderOptions{Tint: g.tint}, sink); err != nil {
			return Result{}, err
		}
	}

	res = Result{Dir: dir, Files: w.Written()}
	if g.preview {
		switch p, perr := w.WritePreview(format); {
		case perr == nil:
			res.Preview = p
		case errors.Is(perr, ErrConfig):
			log.Debug("cubegen: preview skipped", "err", perr)
		default:
			return Result{}, perr
		}
	}
	g.status.End(true, fmt.Sprintf("%d faces in %s", len(res.Files), dir))
	log.Info("cubegen: run complete", "faces", len(res.Files))
	return res, nil
}
