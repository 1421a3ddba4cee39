// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cube

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cube/internal/gpu"
	"github.com/gogpu/cube/internal/mesh"
	"github.com/gogpu/cube/internal/scene"
)

// Key identifies a keyboard key.
type Key = gpucontext.Key

// KeyEscape stops the render loop.
const KeyEscape = gpucontext.KeyEscape

// Frame describes one completed frame.
type Frame struct {
	// Number counts frames from 1.
	Number uint64
	// Slot is the presentation buffer the frame was drawn into.
	Slot int
	// FenceValue is the fence value the frame waited on.
	FenceValue uint64
	// Duration is the wall time from constant update to ring advance.
	Duration time.Duration
}

// Stats is a snapshot of renderer counters.
type Stats struct {
	Frames         uint64
	LastFenceValue uint64
	FenceWaits     uint64
	CurrentSlot    int
	LastFrame      time.Duration
	MemoryUsed     uint64
	MemoryTotal    uint64
	BufferCount    int
}

// Renderer draws one rotating mesh per frame. Each frame is fully
// completed on the GPU before RenderFrame returns.
//
// A Renderer is driven by one goroutine. HandleDrag and HandleKey may be
// called from any goroutine; their effect is applied at the start of the
// next frame.
type Renderer struct {
	device  *gpu.Device
	context *gpu.RenderContext
	camera  *scene.Camera
	mesh    *mesh.Mesh

	inputMu sync.Mutex
	dragX   float32
	dragY   float32

	stop      atomic.Bool
	lastFence uint64
	closed    bool
}

// New opens a device (or shares the provider's), uploads the mesh and
// creates the presentation ring, fence and pipeline. Setup failures are
// returned as is and never retried.
func New(opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	m, err := mesh.New(o.mesh, o.seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	dev, format, err := openDevice(o)
	if err != nil {
		return nil, err
	}

	rc, err := gpu.NewRenderContext(dev, gpu.ContextConfig{
		Width:        o.width,
		Height:       o.height,
		BufferCount:  o.bufferCount,
		Format:       format,
		ClearColor:   o.clearColor,
		SyncInterval: o.syncInterval,
		FenceTimeout: o.fenceTimeout,
		SPIRV:        o.spirv,
		BudgetBytes:  o.budget,
		Vertices:     m.VertexBytes(),
		Indices:      m.IndexBytes(),
	})
	if err != nil {
		dev.Destroy()
		return nil, err
	}

	Logger().Info("cube renderer ready",
		"device", dev.Name(), "mesh", m.Kind.String(),
		"width", o.width, "height", o.height, "buffers", o.bufferCount)
	return &Renderer{
		device:  dev,
		context: rc,
		camera:  scene.NewCamera(),
		mesh:    m,
	}, nil
}

func openDevice(o options) (*gpu.Device, gputypes.TextureFormat, error) {
	if o.provider != nil {
		dev, err := gpu.DeviceFromProvider(o.provider)
		if err != nil {
			return nil, gputypes.TextureFormatUndefined, err
		}
		return dev, presentFormat(o.provider.SurfaceFormat()), nil
	}
	dev, err := gpu.OpenDevice(o.backend)
	if err != nil {
		return nil, gputypes.TextureFormatUndefined, err
	}
	return dev, gputypes.TextureFormatRGBA8Unorm, nil
}

// presentFormat keeps the host's surface format when it is one the
// capture path understands.
func presentFormat(f gputypes.TextureFormat) gputypes.TextureFormat {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return f
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// HandleDrag queues a pointer drag of (dx, dy) pixels.
func (r *Renderer) HandleDrag(dx, dy float32) {
	r.inputMu.Lock()
	r.dragX += dx
	r.dragY += dy
	r.inputMu.Unlock()
}

// HandleKey reacts to a key press. KeyEscape asks Run to stop.
func (r *Renderer) HandleKey(k Key) {
	if k == KeyEscape {
		r.Stop()
	}
}

// Stop asks Run to return after the current frame.
func (r *Renderer) Stop() { r.stop.Store(true) }

// Stopped reports whether a stop was requested.
func (r *Renderer) Stopped() bool { return r.stop.Load() }

// Camera returns the camera. Mutate it only between frames on the
// rendering goroutine.
func (r *Renderer) Camera() *scene.Camera { return r.camera }

func (r *Renderer) applyInput() {
	r.inputMu.Lock()
	dx, dy := r.dragX, r.dragY
	r.dragX, r.dragY = 0, 0
	r.inputMu.Unlock()
	if dx != 0 || dy != 0 {
		r.camera.Drag(dx, dy)
	}
}

// RenderFrame applies pending input, rewrites the constant buffer and
// runs one frame to completion.
func (r *Renderer) RenderFrame() (Frame, error) {
	if r.closed {
		return Frame{}, ErrClosed
	}
	start := time.Now()
	r.applyInput()

	w, h := r.context.Surface().Extent()
	fc, err := r.context.Frame(r.camera.Transforms(w, h).Payload())
	if err != nil {
		return Frame{}, err
	}
	r.lastFence = fc.FenceValue
	return Frame{
		Number:     fc.Number,
		Slot:       fc.Slot.Index,
		FenceValue: fc.FenceValue,
		Duration:   time.Since(start),
	}, nil
}

// Run renders frames until ctx is done, Stop is called, or frames frames
// have been rendered (frames <= 0 means no limit). It returns the first
// frame error; the loop does not retry.
func (r *Renderer) Run(ctx context.Context, frames int) error {
	for n := 0; frames <= 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			Logger().Info("render loop stopped", "reason", ctx.Err(), "frames", n)
			return nil
		default:
		}
		if r.Stopped() {
			Logger().Info("render loop stopped", "reason", "stop requested", "frames", n)
			return nil
		}
		if _, err := r.RenderFrame(); err != nil {
			return err
		}
	}
	return nil
}

// Capture reads the most recently presented buffer back to the CPU.
func (r *Renderer) Capture() (*image.RGBA, error) {
	if r.closed {
		return nil, ErrClosed
	}
	return r.context.Capture()
}

// Stats returns a snapshot of the renderer counters.
func (r *Renderer) Stats() Stats {
	cs := r.context.Stats()
	return Stats{
		Frames:         cs.Frames,
		LastFenceValue: r.lastFence,
		FenceWaits:     cs.FenceWaits,
		CurrentSlot:    r.context.Ring().CurrentIndex(),
		LastFrame:      cs.LastFrame,
		MemoryUsed:     cs.Memory.UsedBytes,
		MemoryTotal:    cs.Memory.TotalBytes,
		BufferCount:    cs.Memory.BufferCount,
	}
}

// Mesh returns the solid being drawn.
func (r *Renderer) Mesh() *mesh.Mesh { return r.mesh }

// Close waits for outstanding GPU work once and releases every resource.
// Safe to call multiple times.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.context.Close()
	r.device.Destroy()
	return err
}
