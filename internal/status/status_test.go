package status

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gogpu/cubegen"
)

var _ cubegen.Status = (*Console)(nil)

func TestConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, NoColor())
	clock := time.Unix(100, 0)
	c.now = func() time.Time { return clock }

	c.Start("generating faces for earth")
	c.Update("bottom.tif")
	c.Update("front.tif")
	clock = clock.Add(1500 * time.Millisecond)
	c.End(true, "2 faces")

	assert.Equal(t,
		"==> generating faces for earth\n"+
			"  -> bottom.tif\n"+
			"  -> front.tif\n"+
			"  ok 2 faces in 1.5s\n",
		buf.String())
}

func TestConsoleFailure(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, NoColor())

	c.Start("generating faces for pano")
	c.Update("up.png")
	c.End(false, "gpu error")

	assert.Contains(t, buf.String(), "  failed gpu error after 1 step(s)\n")
}
