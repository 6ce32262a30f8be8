//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/cubegen"
)

// DefaultTimeout bounds one barrier wait.
const DefaultTimeout = 5 * time.Second

// paramsSize is the size of the Params uniform block.
const paramsSize = 64

// Binding points of the cubeface kernels.
const (
	bindingOutput   = 0
	bindingDiffuse0 = 1
	bindingDiffuse1 = 2
	bindingParams   = 3
)

// Context implements cubegen.Device over wgpu/hal compute.
//
// Images live in storage buffers, one word per pixel. A dispatch records
// the compute pass and the copy of the output into a MapRead staging
// buffer in one submission; Barrier waits on its fence and ReadTarget reads
// the staging buffer.
type Context struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	limits   gputypes.Limits
	external bool // device and queue are not owned
	timeout  time.Duration

	pipelines map[string]*pipeline
	active    *pipeline
	kernel    cubegen.Kernel

	sources [2]*imageBuffer
	target  *imageBuffer
	staging hal.Buffer

	pending *submission
	visible bool
}

type pipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
	sources    int
}

type imageBuffer struct {
	buf    hal.Buffer
	format cubegen.PixelFormat
	width  int
	height int
	size   uint64
}

type submission struct {
	cmd     hal.CommandBuffer
	fence   hal.Fence
	uniform hal.Buffer
	group   hal.BindGroup
}

var _ cubegen.Device = (*Context)(nil)

// Open creates a Context on the first discrete or integrated Vulkan
// adapter, falling back to the first adapter found.
func Open() (cubegen.Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	c := newContext(openDev.Device, openDev.Queue, limits)
	c.instance = instance
	c.external = false
	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return c, nil
}

// New wraps an existing device and queue. The caller keeps ownership of
// both; Close releases only the resources created by the Context.
func New(device hal.Device, queue hal.Queue, limits gputypes.Limits) *Context {
	return newContext(device, queue, limits)
}

func newContext(device hal.Device, queue hal.Queue, limits gputypes.Limits) *Context {
	return &Context{
		device:    device,
		queue:     queue,
		limits:    limits,
		external:  true,
		timeout:   DefaultTimeout,
		pipelines: make(map[string]*pipeline),
	}
}

// SetTimeout changes the barrier timeout. Non-positive values restore
// DefaultTimeout.
func (c *Context) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		d = DefaultTimeout
	}
	c.timeout = d
}

// UseKernel compiles the variant on first use and makes it active.
func (c *Context) UseKernel(k cubegen.Kernel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("%w: context closed", cubegen.ErrGPU)
	}
	p, ok := c.pipelines[k.Name()]
	if !ok {
		var err error
		p, err = c.createPipeline(k)
		if err != nil {
			return err
		}
		c.pipelines[k.Name()] = p
	}
	c.active = p
	c.kernel = k
	return nil
}

func (c *Context) createPipeline(k cubegen.Kernel) (*pipeline, error) {
	spirv, err := CompileKernel(k)
	if err != nil {
		return nil, err
	}
	name := k.Name()
	p := &pipeline{sources: k.Kind.Sources()}

	p.shader, err = c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create %s shader module: %w", cubegen.ErrKernel, name, err)
	}

	entries := []gputypes.BindGroupLayoutEntry{
		{Binding: bindingOutput, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: bindingDiffuse0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
	}
	if p.sources == 2 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding: bindingDiffuse1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding: bindingParams, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})

	p.bindLayout, err = c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		c.destroyPipeline(p)
		return nil, fmt.Errorf("%w: create %s bind group layout: %w", cubegen.ErrKernel, name, err)
	}

	p.pipeLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		c.destroyPipeline(p)
		return nil, fmt.Errorf("%w: create %s pipeline layout: %w", cubegen.ErrKernel, name, err)
	}

	p.pipeline, err = c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: name + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		c.destroyPipeline(p)
		return nil, fmt.Errorf("%w: create %s compute pipeline: %w", cubegen.ErrKernel, name, err)
	}
	slogger().Debug("gpu: pipeline created", "kernel", name)
	return p, nil
}

func (c *Context) destroyPipeline(p *pipeline) {
	if p.pipeline != nil {
		c.device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		c.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		c.device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		c.device.DestroyShaderModule(p.shader)
	}
}

// checkSize rejects buffers the device cannot bind as storage.
func (c *Context) checkSize(what string, size uint64) error {
	if limit := uint64(c.limits.MaxStorageBufferBindingSize); limit > 0 && size > limit {
		return fmt.Errorf("%w: %s needs %d bytes, device storage binding limit is %d",
			cubegen.ErrConfig, what, size, limit)
	}
	if limit := uint64(c.limits.MaxBufferSize); limit > 0 && size > limit {
		return fmt.Errorf("%w: %s needs %d bytes, device buffer limit is %d",
			cubegen.ErrConfig, what, size, limit)
	}
	return nil
}

// BindSource uploads p as one word per pixel and binds it to slot.
func (c *Context) BindSource(slot cubegen.Slot, p *cubegen.Plane) (cubegen.Binding, error) {
	if slot != cubegen.SlotDiffuse0 && slot != cubegen.SlotDiffuse1 {
		return nil, fmt.Errorf("%w: slot %d is not an input slot", cubegen.ErrConfig, slot)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, fmt.Errorf("%w: context closed", cubegen.ErrGPU)
	}
	idx := int(slot - cubegen.SlotDiffuse0)
	if c.sources[idx] != nil {
		return nil, fmt.Errorf("%w: slot %d already bound", cubegen.ErrConfig, slot)
	}

	size := uint64(p.Width) * uint64(p.Height) * 4 //nolint:gosec // validated positive
	if err := c.checkSize(fmt.Sprintf("diffuse%d", idx), size); err != nil {
		return nil, err
	}
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("cubeface_diffuse%d", idx), Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create diffuse%d buffer: %w", cubegen.ErrGPU, idx, err)
	}
	c.queue.WriteBuffer(buf, 0, p.Words())
	c.sources[idx] = &imageBuffer{buf: buf, format: p.Format, width: p.Width, height: p.Height, size: size}
	slogger().Debug("gpu: source bound", "slot", slot, "width", p.Width, "height", p.Height, "bytes", size)

	return &binding{c: c, slot: slot}, nil
}

// BindTarget allocates the w*h output image and its staging buffer.
func (c *Context) BindTarget(format cubegen.PixelFormat, w, h int) (cubegen.Binding, error) {
	if _, err := format.Info(); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", cubegen.ErrConfig, w, h)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil, fmt.Errorf("%w: context closed", cubegen.ErrGPU)
	}
	if c.target != nil {
		return nil, fmt.Errorf("%w: output slot already bound", cubegen.ErrConfig)
	}

	size := uint64(w) * uint64(h) * 4 //nolint:gosec // validated positive
	if err := c.checkSize("output", size); err != nil {
		return nil, err
	}
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cubeface_output", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create output buffer: %w", cubegen.ErrGPU, err)
	}
	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cubeface_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		c.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("%w: create staging buffer: %w", cubegen.ErrGPU, err)
	}
	c.target = &imageBuffer{buf: buf, format: format, width: w, height: h, size: size}
	c.staging = staging
	c.visible = false
	slogger().Debug("gpu: target bound", "format", format.String(), "width", w, "height", h, "bytes", size)

	return &binding{c: c, slot: cubegen.SlotOutput}, nil
}

// encodeParams serializes the Params uniform block.
func encodeParams(p cubegen.DispatchParams, target, src *imageBuffer) []byte {
	b := make([]byte, paramsSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], p.Offset[0])
	le.PutUint32(b[4:], p.Offset[1])
	le.PutUint32(b[8:], uint32(target.width))  //nolint:gosec // validated positive
	le.PutUint32(b[12:], uint32(target.height)) //nolint:gosec // validated positive
	le.PutUint32(b[16:], uint32(src.width))     //nolint:gosec // validated positive
	le.PutUint32(b[20:], uint32(src.height))    //nolint:gosec // validated positive
	le.PutUint32(b[24:], p.Face)
	for i, v := range p.Direction {
		le.PutUint32(b[32+i*4:], math.Float32bits(v))
	}
	for i, v := range p.Color {
		le.PutUint32(b[48+i*4:], math.Float32bits(v))
	}
	return b
}

// Dispatch records and submits the active kernel over x*y*z invocations,
// followed by the copy of the output into the staging buffer.
func (c *Context) Dispatch(params cubegen.DispatchParams, x, y, z uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkDispatch(x, y); err != nil {
		return err
	}
	if c.pending != nil {
		return fmt.Errorf("%w: dispatch while the previous one is still pending", cubegen.ErrGPU)
	}

	sub := &submission{}
	ok := false
	defer func() {
		if !ok {
			c.releaseSubmission(sub)
		}
	}()

	var err error
	sub.uniform, err = c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cubeface_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	c.queue.WriteBuffer(sub.uniform, 0, encodeParams(params, c.target, c.sources[0]))

	entries := []gputypes.BindGroupEntry{
		{Binding: bindingOutput, Resource: gputypes.BufferBinding{Buffer: c.target.buf.NativeHandle(), Offset: 0, Size: c.target.size}},
		{Binding: bindingDiffuse0, Resource: gputypes.BufferBinding{Buffer: c.sources[0].buf.NativeHandle(), Offset: 0, Size: c.sources[0].size}},
	}
	if c.active.sources == 2 {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: bindingDiffuse1, Resource: gputypes.BufferBinding{Buffer: c.sources[1].buf.NativeHandle(), Offset: 0, Size: c.sources[1].size},
		})
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: bindingParams, Resource: gputypes.BufferBinding{Buffer: sub.uniform.NativeHandle(), Offset: 0, Size: paramsSize},
	})
	sub.group, err = c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "cubeface_bind", Layout: c.active.bindLayout, Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "cubeface_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("cubeface"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "cubeface_pass"})
	pass.SetPipeline(c.active.pipeline)
	pass.SetBindGroup(0, sub.group, nil)
	pass.Dispatch((x+7)/8, (y+7)/8, z)
	pass.End()
	encoder.CopyBufferToBuffer(c.target.buf, c.staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: c.target.size},
	})
	sub.cmd, err = encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}

	sub.fence, err = c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	if err := c.queue.Submit([]hal.CommandBuffer{sub.cmd}, sub.fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	ok = true
	c.pending = sub
	c.visible = false
	slogger().Debug("gpu: dispatched",
		"kernel", c.kernel.Name(), "face", params.Face,
		"groups_x", (x+7)/8, "groups_y", (y+7)/8)
	return nil
}

func (c *Context) checkDispatch(x, y uint32) error {
	if c.device == nil {
		return fmt.Errorf("%w: context closed", cubegen.ErrGPU)
	}
	if c.active == nil {
		return fmt.Errorf("%w: no kernel in use", cubegen.ErrConfig)
	}
	if c.target == nil {
		return fmt.Errorf("%w: no output bound", cubegen.ErrConfig)
	}
	for i := 0; i < c.active.sources; i++ {
		if c.sources[i] == nil {
			return fmt.Errorf("%w: diffuse%d not bound", cubegen.ErrConfig, i)
		}
		if c.sources[i].format != c.kernel.Format || c.target.format != c.kernel.Format {
			return fmt.Errorf("%w: bound images do not match kernel %s", cubegen.ErrConfig, c.kernel.Name())
		}
	}
	if int(x) != c.target.width || int(y) != c.target.height {
		return fmt.Errorf("%w: dispatch %dx%d does not cover output %dx%d",
			cubegen.ErrConfig, x, y, c.target.width, c.target.height)
	}
	return nil
}

// Barrier waits for the pending dispatch and its staging copy.
func (c *Context) Barrier() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.pending
	if sub == nil {
		return nil
	}
	c.pending = nil
	defer c.releaseSubmission(sub)

	done, err := c.device.Wait(sub.fence, 1, c.timeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !done {
		return fmt.Errorf("%w: GPU did not finish within %s", cubegen.ErrGPU, c.timeout)
	}
	c.visible = true
	return nil
}

// ReadTarget copies the staging buffer into dst.
func (c *Context) ReadTarget(dst *cubegen.Plane) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return 0, fmt.Errorf("%w: no output bound", cubegen.ErrConfig)
	}
	if !c.visible {
		return 0, fmt.Errorf("%w: read back before barrier", cubegen.ErrGPU)
	}
	if dst.Format != c.target.format || dst.Width != c.target.width || dst.Height != c.target.height {
		return 0, fmt.Errorf("%w: read back into %s %dx%d, output is %s %dx%d", cubegen.ErrConfig,
			dst.Format, dst.Width, dst.Height, c.target.format, c.target.width, c.target.height)
	}
	if err := dst.Validate(); err != nil {
		return 0, err
	}

	words := make([]byte, c.target.size)
	if err := c.queue.ReadBuffer(c.staging, 0, words); err != nil {
		return 0, fmt.Errorf("readback: %w", err)
	}
	return dst.Format.MustInfo().UnpackWords(words, dst.Pix, dst.Width*dst.Height), nil
}

func (c *Context) releaseSubmission(sub *submission) {
	if sub.cmd != nil {
		c.device.FreeCommandBuffer(sub.cmd)
	}
	if sub.fence != nil {
		c.device.DestroyFence(sub.fence)
	}
	if sub.group != nil {
		c.device.DestroyBindGroup(sub.group)
	}
	if sub.uniform != nil {
		c.device.DestroyBuffer(sub.uniform)
	}
}

// release unbinds the image at slot.
func (c *Context) release(slot cubegen.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return
	}
	if c.pending != nil {
		// Resources may still be in use; drain before destroying.
		_, _ = c.device.Wait(c.pending.fence, 1, c.timeout)
		c.releaseSubmission(c.pending)
		c.pending = nil
	}
	switch slot {
	case cubegen.SlotOutput:
		if c.target != nil {
			c.device.DestroyBuffer(c.target.buf)
			c.target = nil
		}
		if c.staging != nil {
			c.device.DestroyBuffer(c.staging)
			c.staging = nil
		}
		c.visible = false
	case cubegen.SlotDiffuse0, cubegen.SlotDiffuse1:
		idx := int(slot - cubegen.SlotDiffuse0)
		if s := c.sources[idx]; s != nil {
			c.device.DestroyBuffer(s.buf)
			c.sources[idx] = nil
		}
	}
}

// Close releases every resource created by the Context, and the device
// and instance when the Context opened them.
func (c *Context) Close() {
	for _, slot := range []cubegen.Slot{cubegen.SlotOutput, cubegen.SlotDiffuse1, cubegen.SlotDiffuse0} {
		c.release(slot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return
	}
	for name, p := range c.pipelines {
		c.destroyPipeline(p)
		delete(c.pipelines, name)
	}
	c.active = nil
	if !c.external {
		c.device.Destroy()
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
	c.device = nil
	c.queue = nil
	c.instance = nil
}

type binding struct {
	c    *Context
	slot cubegen.Slot
	once sync.Once
}

func (b *binding) Slot() cubegen.Slot { return b.slot }

func (b *binding) Release() {
	b.once.Do(func() { b.c.release(b.slot) })
}
