// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "errors"

// Error kinds. Every error returned by this package wraps exactly one of
// these so callers can classify failures with errors.Is.
var (
	// ErrAllocation is returned when device memory cannot be committed or a
	// GPU resource cannot be created.
	ErrAllocation = errors.New("gpu: allocation failed")

	// ErrMapping is returned when the CPU-visible range of a buffer cannot
	// be acquired or written.
	ErrMapping = errors.New("gpu: mapping failed")

	// ErrCommandRecording is returned when a native call fails while a
	// frame is recorded or submitted. The frame is not presented.
	ErrCommandRecording = errors.New("gpu: command recording failed")

	// ErrDeviceLost is returned when the device stops answering fence waits.
	ErrDeviceLost = errors.New("gpu: device lost")
)

// Detail errors, always wrapped together with one of the kinds above.
var (
	// ErrFenceTimeout is returned when a bounded fence wait expires.
	ErrFenceTimeout = errors.New("gpu: fence wait timed out")

	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrBufferSealed is returned when mapping an immutable buffer after
	// its upload completed.
	ErrBufferSealed = errors.New("gpu: buffer is sealed after upload")

	// ErrBufferInFlight is returned when a persistent mapping is written
	// while the GPU may still read it.
	ErrBufferInFlight = errors.New("gpu: buffer is referenced by in-flight work")

	// ErrInvalidMapRange is returned when a write falls outside the buffer.
	ErrInvalidMapRange = errors.New("gpu: map range out of bounds")

	// ErrInvalidBufferSize is returned for zero-sized allocations.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrBudgetExceeded is returned when an allocation would exceed the
	// configured memory budget.
	ErrBudgetExceeded = errors.New("gpu: memory budget exceeded")

	// ErrInvalidBufferIndex is returned when the surface reports a buffer
	// index outside [0, N).
	ErrInvalidBufferIndex = errors.New("gpu: buffer index out of range")

	// ErrStaleBufferIndex is returned when the surface reports the same
	// buffer index twice in a row with more than one buffer.
	ErrStaleBufferIndex = errors.New("gpu: buffer index did not advance")

	// ErrInvalidTransition is returned when a barrier's source state does
	// not match the tracked state of the target.
	ErrInvalidTransition = errors.New("gpu: invalid resource state transition")

	// ErrRecorderBusy is returned when the recorder is reset while the GPU
	// may still consume the previous recording.
	ErrRecorderBusy = errors.New("gpu: recorder reset while GPU work is pending")

	// ErrNotPresentable is returned when a slot is presented while still a
	// render target.
	ErrNotPresentable = errors.New("gpu: slot is not in presentable state")

	// ErrContextClosed is returned when using a closed render context.
	ErrContextClosed = errors.New("gpu: render context is closed")

	// ErrNoAdapter is returned when no GPU adapter is available.
	ErrNoAdapter = errors.New("gpu: no adapter available")
)
