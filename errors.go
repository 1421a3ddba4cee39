// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cube

import (
	"errors"

	"github.com/gogpu/cube/internal/gpu"
)

// Error kinds. Every error returned by a Renderer wraps one of the first
// four; use errors.Is to classify.
var (
	// ErrAllocation reports that a GPU resource could not be created or
	// device memory could not be committed.
	ErrAllocation = gpu.ErrAllocation

	// ErrMapping reports that a CPU-visible buffer range could not be
	// acquired or written.
	ErrMapping = gpu.ErrMapping

	// ErrCommandRecording reports a native failure while recording or
	// submitting a frame. The frame was not presented.
	ErrCommandRecording = gpu.ErrCommandRecording

	// ErrDeviceLost reports that the GPU stopped completing work.
	ErrDeviceLost = gpu.ErrDeviceLost

	// ErrFenceTimeout accompanies ErrDeviceLost when a bounded fence wait
	// expired.
	ErrFenceTimeout = gpu.ErrFenceTimeout

	// ErrClosed is returned when rendering with a closed Renderer.
	ErrClosed = gpu.ErrContextClosed

	// ErrInvalidOption is returned by New when an option is out of range.
	ErrInvalidOption = errors.New("cube: invalid option")
)
