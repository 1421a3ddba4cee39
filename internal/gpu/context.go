// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ContextConfig configures a RenderContext.
type ContextConfig struct {
	// Width and Height are the presentation target size in pixels.
	Width  uint32
	Height uint32

	// BufferCount is the number of presentation slots. Default: 2.
	BufferCount int

	// Format is the presentation target format. Default: RGBA8Unorm.
	Format gputypes.TextureFormat

	// ClearColor is the background every frame starts from.
	ClearColor gputypes.Color

	// SyncInterval is passed to every present.
	SyncInterval int

	// FenceTimeout bounds each fence wait. Zero waits without bound.
	FenceTimeout time.Duration

	// SPIRV precompiles the shader with naga.
	SPIRV bool

	// BudgetBytes caps buffer memory. Zero selects DefaultBudgetBytes.
	BudgetBytes uint64

	// Vertices is the encoded vertex data, VertexStride bytes per vertex.
	Vertices []byte

	// Indices is the encoded uint16 index data.
	Indices []byte
}

func (c ContextConfig) withDefaults() ContextConfig {
	if c.BufferCount == 0 {
		c.BufferCount = 2
	}
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = gputypes.TextureFormatRGBA8Unorm
	}
	return c
}

// ContextStats is a snapshot of the render context counters.
type ContextStats struct {
	Frames         uint64
	Recorded       uint64
	FenceNext      uint64
	FenceCompleted uint64
	FenceWaits     uint64
	LastFrame      time.Duration
	Memory         MemoryStats
}

// contextParts are the collaborators a RenderContext is assembled from.
type contextParts struct {
	sync      *Synchronizer
	allocator *Allocator
	surface   Surface
	encoders  EncoderFactory
	pipeline  hal.RenderPipeline
	bind      func(*Buffer) (hal.BindGroup, error)
	unbind    func(hal.BindGroup)
	readback  bufferDevice
	release   func()
}

// RenderContext owns every resource of the frame loop: buffers, fence,
// presentation ring, recorder and pipeline. One goroutine drives it; each
// Frame fully completes on the GPU before it returns.
type RenderContext struct {
	sync      *Synchronizer
	allocator *Allocator
	surface   Surface
	ring      *BufferRing
	barriers  *BarrierSequencer
	recorder  *Recorder
	encoders  EncoderFactory
	readback  bufferDevice

	vertices  *Buffer
	indices   *Buffer
	constants *Buffer
	mapping   *Mapping
	bindings  hal.BindGroup
	unbind    func(hal.BindGroup)
	release   func()

	// abandoned releases GPU objects whose work was never observed
	// complete. Close runs them after the final flush.
	abandoned []func()

	draw         DrawState
	syncInterval int

	frames    uint64
	lastSlot  int
	lastFrame time.Duration
	closed    bool
}

// NewRenderContext creates the presentation surface, pipeline, submission
// timeline and buffers on dev. The caller keeps ownership of dev.
func NewRenderContext(dev *Device, cfg ContextConfig) (*RenderContext, error) {
	cfg = cfg.withDefaults()
	device, queue := dev.HAL(), dev.Queue()

	surface, err := NewOffscreenSurface(device, SurfaceConfig{
		Width:       cfg.Width,
		Height:      cfg.Height,
		BufferCount: cfg.BufferCount,
		Format:      cfg.Format,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := NewPipeline(device, PipelineConfig{Format: surface.Format(), SPIRV: cfg.SPIRV})
	if err != nil {
		surface.Destroy()
		return nil, err
	}

	return assemble(cfg, contextParts{
		sync:      NewSynchronizer(queue, cfg.FenceTimeout),
		allocator: NewAllocator(device, NewBudget(cfg.BudgetBytes)),
		surface:   surface,
		encoders:  NewEncoderFactory(device),
		pipeline:  pipeline.Raw(),
		bind:      pipeline.BindConstants,
		unbind:    pipeline.DestroyBindGroup,
		readback:  device,
		release: func() {
			pipeline.Destroy()
			surface.Destroy()
		},
	})
}

// assemble uploads the mesh, maps the constant buffer and wires the frame
// components together. On failure everything in parts is released.
func assemble(cfg ContextConfig, p contextParts) (_ *RenderContext, err error) {
	c := &RenderContext{
		sync:         p.sync,
		allocator:    p.allocator,
		surface:      p.surface,
		encoders:     p.encoders,
		readback:     p.readback,
		unbind:       p.unbind,
		release:      p.release,
		syncInterval: cfg.SyncInterval,
		lastSlot:     -1,
	}
	defer func() {
		if err != nil {
			c.releaseResources()
		}
	}()

	if len(cfg.Indices)%2 != 0 || len(cfg.Indices) == 0 {
		return nil, fmt.Errorf("%w: index data of %d bytes is not a uint16 list", ErrAllocation, len(cfg.Indices))
	}

	c.ring, err = NewBufferRing(p.surface)
	if err != nil {
		return nil, err
	}
	c.barriers = NewBarrierSequencer(p.surface.BufferCount())

	c.vertices, err = p.allocator.CreateAndUpload("cube_vertices", gputypes.BufferUsageVertex,
		uint64(len(cfg.Vertices)), cfg.Vertices)
	if err != nil {
		return nil, err
	}
	c.indices, err = p.allocator.CreateAndUpload("cube_indices", gputypes.BufferUsageIndex,
		uint64(len(cfg.Indices)), cfg.Indices)
	if err != nil {
		return nil, err
	}
	c.constants, c.mapping, err = p.allocator.CreatePersistentTarget("cube_constants",
		gputypes.BufferUsageUniform, ConstantsSize)
	if err != nil {
		return nil, err
	}
	c.mapping.SetGuard(p.sync)

	c.bindings, err = p.bind(c.constants)
	if err != nil {
		return nil, err
	}

	c.recorder = NewRecorder(p.encoders, c.barriers, p.sync)
	c.draw = DrawState{
		Pipeline:   p.pipeline,
		Bindings:   c.bindings,
		Vertices:   c.vertices,
		Indices:    c.indices,
		IndexCount: uint32(len(cfg.Indices) / 2),
		ClearColor: cfg.ClearColor,
	}

	w, h := p.surface.Extent()
	slogger().Info("render context created",
		"width", w, "height", h, "buffers", c.ring.Count(),
		"indices", c.draw.IndexCount, "memory", p.allocator.Budget().Stats().String())
	return c, nil
}

// Frame runs one complete frame: write constants, record, submit, present,
// wait for the submission, advance the ring. It returns the finished
// frame context.
func (c *RenderContext) Frame(constants []byte) (*FrameContext, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	start := time.Now()

	if err := c.mapping.Write(0, constants); err != nil {
		return nil, err
	}

	idx := c.ring.CurrentIndex()
	w, h := c.surface.Extent()
	frame := &FrameContext{
		Number: c.frames + 1,
		Slot:   c.surface.Slot(idx),
		Width:  w,
		Height: h,
		States: c.barriers.States(),
	}

	cmd, err := c.recorder.Record(frame, &c.draw)
	if err != nil {
		return nil, err
	}
	value, err := c.sync.SignalAfterSubmit(cmd)
	if err != nil {
		return nil, err
	}
	frame.FenceValue = value

	if state := c.barriers.State(idx); state != StatePresentable {
		return nil, fmt.Errorf("%w: %w: slot %d is %s", ErrCommandRecording, ErrNotPresentable, idx, state)
	}
	if err := c.surface.Present(c.syncInterval); err != nil {
		return nil, fmt.Errorf("%w: present: %w", ErrCommandRecording, err)
	}

	if err := c.sync.WaitUntilComplete(value); err != nil {
		return nil, err
	}

	if err := c.ring.Advance(); err != nil {
		return nil, err
	}

	c.frames++
	c.lastSlot = idx
	c.lastFrame = time.Since(start)
	slogger().Debug("frame complete",
		"frame", frame.Number, "slot", idx, "fence", value,
		"next_slot", c.ring.CurrentIndex(), "duration", c.lastFrame)
	return frame, nil
}

// Ring returns the presentation buffer ring.
func (c *RenderContext) Ring() *BufferRing { return c.ring }

// Synchronizer returns the fence timeline.
func (c *RenderContext) Synchronizer() *Synchronizer { return c.sync }

// Barriers returns the barrier sequencer.
func (c *RenderContext) Barriers() *BarrierSequencer { return c.barriers }

// Surface returns the presentation surface.
func (c *RenderContext) Surface() Surface { return c.surface }

// Stats returns a snapshot of the context counters.
func (c *RenderContext) Stats() ContextStats {
	return ContextStats{
		Frames:         c.frames,
		Recorded:       c.recorder.Recorded(),
		FenceNext:      c.sync.NextValue(),
		FenceCompleted: c.sync.CompletedValue(),
		FenceWaits:     c.sync.Waits(),
		LastFrame:      c.lastFrame,
		Memory:         c.allocator.Budget().Stats(),
	}
}

// Close waits once for all GPU work to finish and releases every resource
// in reverse creation order. Safe to call multiple times.
func (c *RenderContext) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.sync.Flush()
	if err != nil {
		slogger().Warn("final fence wait failed, releasing anyway", "err", err)
	}
	c.releaseResources()
	slogger().Info("render context closed", "frames", c.frames)
	return err
}

func (c *RenderContext) releaseResources() {
	for _, release := range c.abandoned {
		release()
	}
	c.abandoned = nil
	if c.recorder != nil {
		c.recorder.Release()
	}
	if c.bindings != nil && c.unbind != nil {
		c.unbind(c.bindings)
		c.bindings = nil
	}
	if c.mapping != nil {
		c.mapping.Release()
	}
	for _, b := range []*Buffer{c.constants, c.indices, c.vertices} {
		if b != nil {
			b.Destroy()
		}
	}
	if c.release != nil {
		c.release()
		c.release = nil
	}
}
