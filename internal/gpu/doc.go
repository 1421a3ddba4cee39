// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu implements the fenced frame loop on top of gogpu/wgpu/hal.
//
// This is an internal package used by the cube renderer. It owns every GPU
// resource of one retained-mode scene: a vertex buffer, an index buffer, a
// persistently mapped constant buffer, a ring of presentation targets and
// one render pipeline. Frame completion is tracked on the queue's own
// submission timeline.
//
// # Frame lifecycle
//
// A RenderContext drives each frame through a fixed sequence:
//
//	write constants -> record -> submit -> present -> wait -> advance ring
//
// Submit returns the frame's submission index, which doubles as its fence
// value. The CPU polls the queue until that index completes every frame, so
// at most one frame of GPU work is outstanding and no buffer is rewritten
// while the GPU may read it.
//
// Key components:
//
//   - Allocator: immutable and persistently mapped buffers over MapBuffer
//   - Budget: buffer memory accounting
//   - Synchronizer: submission index timeline with bounded waits
//   - BufferRing: current presentation index, re-read from the surface
//   - BarrierSequencer: explicit Presentable/RenderTarget transitions,
//     starting from undefined contents on first use
//   - Recorder: per-frame command recording
//   - OffscreenSurface: headless swapchain with vsync pacing
//
// # Errors
//
// Every error wraps one of ErrAllocation, ErrMapping, ErrCommandRecording
// or ErrDeviceLost. Nothing is retried.
package gpu
