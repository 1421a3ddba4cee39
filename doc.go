// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cube renders a single rotating mesh with a retained-mode GPU
// command pipeline on top of gogpu/wgpu.
//
// # Overview
//
// Everything the renderer draws is created once: a vertex buffer and an
// index buffer uploaded at setup, a constant buffer that stays mapped for
// the renderer's lifetime, a ring of presentation buffers and a render
// pipeline. Each frame rewrites the constant buffer, records one
// command buffer, submits it, presents, and blocks until the GPU reports
// the frame complete. At most one frame of GPU work is ever outstanding.
//
// # Quick Start
//
//	r, err := cube.New(cube.WithSize(800, 600))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := r.Run(ctx, 0); err != nil {
//	    log.Fatal(err)
//	}
//
// # Frame lifecycle
//
//	apply input -> write constants -> record -> submit -> present -> wait -> advance
//
// Recording brackets the single draw with two barriers on the current
// presentation buffer: Presentable to RenderTarget before the render pass
// and back to Presentable after it.
//
// # Errors
//
// Errors wrap one of ErrAllocation, ErrMapping, ErrCommandRecording or
// ErrDeviceLost. Nothing is retried: a failed frame stops Run and the
// caller is expected to Close the renderer. A frame's fence value is the
// queue submission index it was given. Waits for it are bounded by
// WithFenceTimeout, and an expired wait reports ErrDeviceLost together with
// ErrFenceTimeout.
//
// # Backends
//
// BackendVulkan opens a real GPU. BackendNoop runs the same frame loop on
// a headless device and is what the tests use. WithDeviceProvider shares
// a device owned by a gogpu application instead of opening one.
package cube

// Version is the current version of the module.
const Version = "0.1.0"
