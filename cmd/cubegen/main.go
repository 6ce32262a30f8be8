// Command cubegen renders cubemap faces from equirectangular images on the
// GPU.
//
// Usage:
//
//	cubegen seam   -a west_0.tif -b east_1.tif -format r16i -faces both -out faces
//	cubegen direct -in pano.png -format rgba8 -out faces
//	cubegen run    -config jobs.toml
//
// Common flags: -v (debug logs), -no-color, -preview, -no-tint, -timeout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/cubegen"
	_ "github.com/gogpu/cubegen/gpu" // register the wgpu compute backend
	"github.com/gogpu/cubegen/internal/config"
	"github.com/gogpu/cubegen/internal/status"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// common holds the flags shared by every subcommand.
type common struct {
	verbose bool
	noColor bool
	preview bool
	noTint  bool
	timeout time.Duration
}

func (c *common) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored status output")
	fs.BoolVar(&c.preview, "preview", false, "write preview.png for 8-bit formats")
	fs.BoolVar(&c.noTint, "no-tint", false, "disable the per-face palette in direct mode")
	fs.DurationVar(&c.timeout, "timeout", 0, "GPU wait limit per barrier (0 keeps the default)")
}

func (c *common) validate(stderr io.Writer, cmd string) bool {
	if c.timeout < 0 {
		fmt.Fprintf(stderr, "cubegen %s: -timeout must not be negative\n", cmd)
		return false
	}
	return true
}

func (c *common) setup(stdout, stderr io.Writer) *status.Console {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	cubegen.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	var opts []status.Option
	if c.noColor {
		opts = append(opts, status.NoColor())
	}
	return status.New(stdout, opts...)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: cubegen <command> [flags]

commands:
  seam     render the vertical and/or horizontal set from two hemispheres
  direct   render the six direction faces of one equirectangular image
  run      run the jobs of a TOML job file
  version  print the version

Run "cubegen <command> -h" for the flags of a command.`)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "seam":
		return runSeam(ctx, args[1:], stdout, stderr)
	case "direct":
		return runDirect(ctx, args[1:], stdout, stderr)
	case "run":
		return runJobs(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "cubegen %s\n", cubegen.Version)
		return exitOK
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "cubegen: unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func runSeam(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seam", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	var (
		a      = fs.String("a", "", "west hemisphere (name ending in _0)")
		b      = fs.String("b", "", "east hemisphere (name ending in _1)")
		format = fs.String("format", "rgba8", "pixel format: r8, rgba8, r16i, r16ui, r32f")
		faces  = fs.String("faces", "both", "face set: vertical, horizontal or both")
		out    = fs.String("out", ".", "output root directory")
	)
	if err := fs.Parse(args); err != nil || !c.validate(stderr, "seam") {
		return exitUsage
	}
	if *a == "" || *b == "" {
		fmt.Fprintln(stderr, "cubegen seam: -a and -b are required")
		fs.Usage()
		return exitUsage
	}
	plan, err := (config.Job{
		Mode:    config.ModeSeam,
		Inputs:  []string{*a, *b},
		Format:  *format,
		Faces:   *faces,
		Output:  *out,
		Preview: c.preview,
	}).Plan("")
	if err != nil {
		fmt.Fprintf(stderr, "cubegen seam: %v\n", err)
		return exitUsage
	}
	plan.Tint = !c.noTint
	return execute(ctx, []config.Plan{plan}, c.timeout, c.setup(stdout, stderr), stderr)
}

func runDirect(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("direct", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	var (
		in     = fs.String("in", "", "equirectangular source image")
		format = fs.String("format", "rgba8", "pixel format: r8, rgba8, r16i, r16ui, r32f")
		out    = fs.String("out", ".", "output root directory")
	)
	if err := fs.Parse(args); err != nil || !c.validate(stderr, "direct") {
		return exitUsage
	}
	if *in == "" {
		fmt.Fprintln(stderr, "cubegen direct: -in is required")
		fs.Usage()
		return exitUsage
	}
	plan, err := (config.Job{
		Mode:    config.ModeDirect,
		Inputs:  []string{*in},
		Format:  *format,
		Output:  *out,
		Preview: c.preview,
	}).Plan("")
	if err != nil {
		fmt.Fprintf(stderr, "cubegen direct: %v\n", err)
		return exitUsage
	}
	plan.Tint = !c.noTint
	return execute(ctx, []config.Plan{plan}, c.timeout, c.setup(stdout, stderr), stderr)
}

func runJobs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	path := fs.String("config", "", "TOML job file")
	if err := fs.Parse(args); err != nil || !c.validate(stderr, "run") {
		return exitUsage
	}
	if *path == "" {
		fmt.Fprintln(stderr, "cubegen run: -config is required")
		fs.Usage()
		return exitUsage
	}
	plans, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(stderr, "cubegen run: %v\n", err)
		if errors.Is(err, cubegen.ErrConfig) {
			return exitUsage
		}
		return exitFail
	}
	// Command line switches override the job file.
	for i := range plans {
		if c.preview {
			plans[i].Preview = true
		}
		if c.noTint {
			plans[i].Tint = false
		}
	}
	return execute(ctx, plans, c.timeout, c.setup(stdout, stderr), stderr)
}

// execute runs the plans in order on one shared device and stops at the
// first failure.
func execute(ctx context.Context, plans []config.Plan, timeout time.Duration, st cubegen.Status, stderr io.Writer) int {
	var dev cubegen.Device
	defer func() {
		if dev != nil {
			dev.Close()
		}
	}()

	for _, p := range plans {
		opts := []cubegen.Option{
			cubegen.WithOutputRoot(p.Output),
			cubegen.WithTint(p.Tint),
			cubegen.WithPreview(p.Preview),
			cubegen.WithStatus(st),
			cubegen.WithTimeout(timeout),
		}
		if len(plans) > 1 {
			if dev == nil {
				var err error
				if dev, err = cubegen.OpenDevice(); err != nil {
					fmt.Fprintf(stderr, "cubegen: %v\n", err)
					return exitFail
				}
			}
			opts = append(opts, cubegen.WithDevice(dev))
		}
		g := cubegen.NewGenerator(opts...)

		var err error
		switch p.Mode {
		case config.ModeSeam:
			_, err = g.Seam(ctx, p.Inputs[0], p.Inputs[1], p.Format, p.Sets)
		case config.ModeDirect:
			_, err = g.Direct(ctx, p.Inputs[0], p.Format)
		}
		if err != nil {
			fmt.Fprintf(stderr, "cubegen: %v\n", err)
			return exitFail
		}
	}
	return exitOK
}
