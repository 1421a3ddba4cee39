// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// eventLog records the order of GPU-facing calls across fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// withPrefix returns the events starting with prefix.
func (l *eventLog) withPrefix(prefix string) []string {
	var out []string
	for _, e := range l.all() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// fakeGPU is a submission queue. Submissions complete at once unless
// hung; a hung GPU completes them only through complete.
type fakeGPU struct {
	log *eventLog

	mu        sync.Mutex
	submitted uint64
	completed uint64
	polls     int
	hung      bool
	submitErr error
}

func newFakeGPU(log *eventLog) *fakeGPU {
	return &fakeGPU{log: log}
}

func (g *fakeGPU) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return 0, g.submitErr
	}
	g.submitted++
	g.log.add("submit cmds=%d index=%d", len(cmds), g.submitted)
	if !g.hung {
		g.completed = g.submitted
	}
	return g.submitted, nil
}

func (g *fakeGPU) PollCompleted() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if !g.hung {
		g.log.add("poll %d", g.completed)
	}
	return g.completed
}

// complete marks every submission up to index as finished.
func (g *fakeGPU) complete(index uint64) {
	g.mu.Lock()
	if index > g.completed {
		g.completed = index
	}
	g.mu.Unlock()
}

func (g *fakeGPU) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

// fakeEncoders creates fakeEncoders that log into a shared log.
type fakeEncoders struct {
	log *eventLog

	newErr   error
	beginErr error
	endErr   error

	created   int
	discarded int
	freed     int
}

func (f *fakeEncoders) NewEncoder(label string) (Encoder, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.created++
	return &fakeEncoder{f: f}, nil
}

func (f *fakeEncoders) FreeCommandBuffer(hal.CommandBuffer) { f.freed++ }

type fakeEncoder struct {
	f    *fakeEncoders
	open bool
}

func (e *fakeEncoder) BeginEncoding(label string) error {
	if e.f.beginErr != nil {
		return e.f.beginErr
	}
	e.open = true
	e.f.log.add("begin %s", label)
	return nil
}

func (e *fakeEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	for _, b := range barriers {
		e.f.log.add("barrier %s->%s", usageName(b.Usage.OldUsage), usageName(b.Usage.NewUsage))
	}
}

func (e *fakeEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) RenderPass {
	e.f.log.add("pass begin")
	return &fakeRenderPass{log: e.f.log}
}

func (e *fakeEncoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	for _, r := range regions {
		e.f.log.add("copy pitch=%d rows=%d", r.BufferLayout.BytesPerRow, r.Size.Height)
	}
}

func (e *fakeEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if e.f.endErr != nil {
		return nil, e.f.endErr
	}
	e.open = false
	e.f.log.add("end")
	return nil, nil
}

func (e *fakeEncoder) DiscardEncoding() {
	e.open = false
	e.f.discarded++
	e.f.log.add("discard")
}

func usageName(u gputypes.TextureUsage) string {
	switch u {
	case gputypes.TextureUsageRenderAttachment:
		return "RenderTarget"
	case gputypes.TextureUsageCopySrc:
		return "Presentable"
	case gputypes.TextureUsageNone:
		return "Undefined"
	default:
		return fmt.Sprintf("usage(%d)", u)
	}
}

type fakeRenderPass struct {
	log *eventLog
}

func (p *fakeRenderPass) SetPipeline(hal.RenderPipeline) {
	p.log.add("pipeline")
}

func (p *fakeRenderPass) SetBindGroup(uint32, hal.BindGroup, []uint32) {
	p.log.add("bind constants")
}

func (p *fakeRenderPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.log.add("viewport %gx%g", w, h)
}

func (p *fakeRenderPass) SetScissorRect(x, y, w, h uint32) {
	p.log.add("scissor %dx%d", w, h)
}

func (p *fakeRenderPass) SetVertexBuffer(uint32, hal.Buffer, uint64) {
	p.log.add("vertices")
}

func (p *fakeRenderPass) SetIndexBuffer(_ hal.Buffer, format gputypes.IndexFormat, _ uint64) {
	p.log.add("indices")
}

func (p *fakeRenderPass) DrawIndexed(count, instances, first uint32, base int32, firstInstance uint32) {
	p.log.add("draw %d", count)
}

func (p *fakeRenderPass) End() { p.log.add("pass end") }

// loggingSurface wraps an offscreen surface, logs presents and can replace
// the index the surface reports.
type loggingSurface struct {
	*OffscreenSurface
	log     *eventLog
	script  []int
	calls   int
	failErr error
}

func (s *loggingSurface) Present(syncInterval int) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.log.add("present %d", s.OffscreenSurface.CurrentIndex())
	return s.OffscreenSurface.Present(syncInterval)
}

func (s *loggingSurface) CurrentIndex() int {
	if len(s.script) == 0 {
		return s.OffscreenSurface.CurrentIndex()
	}
	i := s.script[min(s.calls, len(s.script)-1)]
	s.calls++
	return i
}

// newTestSurface creates a 64x32 offscreen surface on a noop device.
func newTestSurface(t *testing.T, device hal.Device, log *eventLog, buffers int) *loggingSurface {
	t.Helper()
	return newSizedSurface(t, device, log, 64, 32, buffers)
}

func newSizedSurface(t *testing.T, device hal.Device, log *eventLog, width, height uint32, buffers int) *loggingSurface {
	t.Helper()
	s, err := NewOffscreenSurface(device, SurfaceConfig{Width: width, Height: height, BufferCount: buffers})
	if err != nil {
		t.Fatalf("NewOffscreenSurface failed: %v", err)
	}
	s.sleep = func(time.Duration) {}
	t.Cleanup(s.Destroy)
	return &loggingSurface{OffscreenSurface: s, log: log}
}

// countingDevice creates real noop buffers and counts calls.
type countingDevice struct {
	hal.Device

	descs     []hal.BufferDescriptor
	destroyed int
	maps      int
	unmaps    int
	failErr   error
	mapErr    error
	unmapErr  error
	// incoherent makes every mapping report non-coherent memory.
	incoherent bool
}

func (d *countingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if d.failErr != nil {
		return nil, d.failErr
	}
	d.descs = append(d.descs, *desc)
	return d.Device.CreateBuffer(desc)
}

func (d *countingDevice) DestroyBuffer(b hal.Buffer) {
	d.destroyed++
	d.Device.DestroyBuffer(b)
}

func (d *countingDevice) MapBuffer(b hal.Buffer, offset, size uint64) (hal.BufferMapping, error) {
	if d.mapErr != nil {
		return hal.BufferMapping{}, d.mapErr
	}
	d.maps++
	m, err := d.Device.MapBuffer(b, offset, size)
	if d.incoherent {
		m.IsCoherent = false
	}
	return m, err
}

func (d *countingDevice) UnmapBuffer(b hal.Buffer) error {
	d.unmaps++
	if d.unmapErr != nil {
		return d.unmapErr
	}
	return d.Device.UnmapBuffer(b)
}

// deviceBytes reads size bytes of b through a fresh device mapping, so the
// result is what the GPU would see rather than any CPU-side copy.
func deviceBytes(t *testing.T, device hal.Device, b hal.Buffer, size uint64) []byte {
	t.Helper()
	m, err := device.MapBuffer(b, 0, size)
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	defer func() { _ = device.UnmapBuffer(b) }()
	return slices.Clone(unsafe.Slice((*byte)(m.Ptr), size))
}

// testHarness wires a RenderContext to fakes sharing one event log.
type testHarness struct {
	log      *eventLog
	gpu      *fakeGPU
	encoders *fakeEncoders
	surface  *loggingSurface
	device   *countingDevice
	sync     *Synchronizer
	ctx      *RenderContext
}

// cubeGeometry is 8 vertices and 36 indices of zeroed data.
func cubeGeometry() (vertices, indices []byte) {
	return make([]byte, 8*VertexStride), make([]byte, 36*2)
}

func newTestHarness(t *testing.T, buffers int, timeout time.Duration) *testHarness {
	t.Helper()
	return newSizedHarness(t, 64, 32, buffers, timeout)
}

func newSizedHarness(t *testing.T, width, height uint32, buffers int, timeout time.Duration) *testHarness {
	t.Helper()
	device, _, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	log := &eventLog{}
	h := &testHarness{
		log:      log,
		gpu:      newFakeGPU(log),
		encoders: &fakeEncoders{log: log},
		device:   &countingDevice{Device: device},
	}
	h.surface = newSizedSurface(t, device, log, width, height, buffers)
	h.sync = newSynchronizer(h.gpu, timeout)

	vertices, indices := cubeGeometry()
	ctx, err := assemble(ContextConfig{
		Width:       width,
		Height:      height,
		BufferCount: buffers,
		Vertices:    vertices,
		Indices:     indices,
	}, contextParts{
		sync:      h.sync,
		allocator: newAllocator(h.device, NewBudget(0)),
		surface:   h.surface,
		encoders:  h.encoders,
		bind: func(*Buffer) (hal.BindGroup, error) {
			log.add("bind group")
			return nil, nil
		},
		unbind:  func(hal.BindGroup) { log.add("unbind group") },
		release: func() { log.add("release") },
	})
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	h.ctx = ctx
	log.reset()
	return h
}

var errNative = errors.New("native call failed")
