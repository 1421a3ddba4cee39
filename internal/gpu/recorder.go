// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// FrameContext is the transient state of one frame: the target being
// drawn, the tracked target states when the frame began and the fence
// value the frame waits on once signaled.
type FrameContext struct {
	Number     uint64
	Slot       *PresentationSlot
	Width      uint32
	Height     uint32
	States     []ResourceState
	FenceValue uint64
}

// DrawState is everything bound for the single indexed draw.
type DrawState struct {
	Pipeline   hal.RenderPipeline
	Bindings   hal.BindGroup
	Vertices   *Buffer
	Indices    *Buffer
	IndexCount uint32
	ClearColor gputypes.Color
}

// Recorder records the per-frame command sequence against the current
// presentation target, inserting the Presentable/RenderTarget barrier pair
// around the render pass.
type Recorder struct {
	encoders EncoderFactory
	barriers *BarrierSequencer
	guard    InFlightGuard

	pending  hal.CommandBuffer
	recorded uint64
}

// NewRecorder creates a recorder. guard must report idle before the
// previous recording can be reset.
func NewRecorder(encoders EncoderFactory, barriers *BarrierSequencer, guard InFlightGuard) *Recorder {
	return &Recorder{
		encoders: encoders,
		barriers: barriers,
		guard:    guard,
	}
}

// Recorded returns the number of successfully closed recordings.
func (r *Recorder) Recorded() uint64 { return r.recorded }

// Record produces the command buffer for one frame. On failure nothing is
// left open, the barrier states are restored and the error wraps
// ErrCommandRecording.
func (r *Recorder) Record(frame *FrameContext, draw *DrawState) (hal.CommandBuffer, error) {
	if frame.Slot == nil {
		return nil, fmt.Errorf("%w: no presentation slot", ErrCommandRecording)
	}
	enc, err := r.reset()
	if err != nil {
		return nil, err
	}

	saved := r.barriers.snapshot()
	fail := func(step string, cause error) (hal.CommandBuffer, error) {
		enc.DiscardEncoding()
		r.barriers.restore(saved)
		return nil, fmt.Errorf("%w: %s: %w", ErrCommandRecording, step, cause)
	}

	r.barriers.BeginFrame()
	slot := frame.Slot
	if err := r.barriers.Transition(enc, slot.Index, slot.Texture, StatePresentable, StateRenderTarget); err != nil {
		return fail("barrier to render target", err)
	}

	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cube_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       slot.View,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: draw.ClearColor,
		}},
	})
	rp.SetPipeline(draw.Pipeline)
	rp.SetBindGroup(0, draw.Bindings, nil)
	rp.SetViewport(0, 0, float32(frame.Width), float32(frame.Height), 0, 1)
	rp.SetScissorRect(0, 0, frame.Width, frame.Height)
	rp.SetVertexBuffer(0, draw.Vertices.Raw(), 0)
	rp.SetIndexBuffer(draw.Indices.Raw(), gputypes.IndexFormatUint16, 0)
	rp.DrawIndexed(draw.IndexCount, 1, 0, 0, 0)
	rp.End()

	if err := r.barriers.Transition(enc, slot.Index, slot.Texture, StateRenderTarget, StatePresentable); err != nil {
		return fail("barrier to presentable", err)
	}

	cmd, err := enc.EndEncoding()
	if err != nil {
		r.barriers.restore(saved)
		return nil, fmt.Errorf("%w: end encoding: %w", ErrCommandRecording, err)
	}
	r.pending = cmd
	r.recorded++
	return cmd, nil
}

// Release frees the last command buffer. Call only after the GPU is idle.
func (r *Recorder) Release() {
	if r.pending != nil {
		r.encoders.FreeCommandBuffer(r.pending)
		r.pending = nil
	}
}

// reset frees the previous recording and opens a new encoder. The previous
// command buffer may only be freed once the GPU finished with it.
func (r *Recorder) reset() (Encoder, error) {
	if r.guard != nil && !r.guard.Idle() {
		return nil, fmt.Errorf("%w: %w", ErrCommandRecording, ErrRecorderBusy)
	}
	r.Release()

	enc, err := r.encoders.NewEncoder("cube_encoder")
	if err != nil {
		return nil, fmt.Errorf("%w: create command encoder: %w", ErrCommandRecording, err)
	}
	if err := enc.BeginEncoding("cube_frame"); err != nil {
		return nil, fmt.Errorf("%w: begin encoding: %w", ErrCommandRecording, err)
	}
	return enc, nil
}
