// Package status prints progress lines for the cubegen command.
package status

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

// Console writes one line per event:
//
//	==> generating faces for earth
//	  -> bottom.tif
//	  ok  3 faces in 412ms
//
// Colors follow the terminal profile of the writer; NoColor forces plain
// ASCII output.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	out   *termenv.Output
	start time.Time
	count int
	now   func() time.Time
}

// Option configures a Console.
type Option func(*Console)

// NoColor disables colors regardless of the terminal.
func NoColor() Option {
	return func(c *Console) {
		c.out = termenv.NewOutput(c.w, termenv.WithProfile(termenv.Ascii))
	}
}

// New returns a Console writing to w.
func New(w io.Writer, opts ...Option) *Console {
	c := &Console{
		w:   w,
		out: termenv.NewOutput(w),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) styled(s, color string) termenv.Style {
	return c.out.String(s).Foreground(c.out.Color(color))
}

// Start begins a run.
func (c *Console) Start(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.count = 0
	fmt.Fprintf(c.out, "%s %s\n", c.styled("==>", "4").Bold(), msg)
}

// Update reports one step of the run.
func (c *Console) Update(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	fmt.Fprintf(c.out, "  %s %s\n", c.styled("->", "6"), msg)
}

// End finishes the run.
func (c *Console) End(ok bool, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.start).Round(time.Millisecond)
	if ok {
		fmt.Fprintf(c.out, "  %s %s in %s\n", c.styled("ok", "2").Bold(), msg, elapsed)
		return
	}
	fmt.Fprintf(c.out, "  %s %s after %d step(s)\n", c.styled("failed", "1").Bold(), msg, c.count)
}
