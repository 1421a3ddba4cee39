// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	// copyAlignment is the size granularity of buffer allocations.
	copyAlignment = 4

	// persistentGranularity is the allocation granularity for persistent
	// targets. Constant data is small; the allocation still takes a full
	// 4 KB block.
	persistentGranularity = 4096
)

// bufferDevice is the subset of hal.Device the allocator needs.
type bufferDevice interface {
	CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error)
	DestroyBuffer(buffer hal.Buffer)
	bufferMapper
}

// Allocator creates host-visible, GPU-readable buffers and copies host
// data into them through device mappings.
type Allocator struct {
	device bufferDevice
	budget *Budget
}

// NewAllocator creates an allocator on device that charges every buffer to
// budget. A nil budget selects DefaultBudgetBytes.
func NewAllocator(device hal.Device, budget *Budget) *Allocator {
	return newAllocator(device, budget)
}

func newAllocator(device bufferDevice, budget *Budget) *Allocator {
	if budget == nil {
		budget = NewBudget(DefaultBudgetBytes)
	}
	return &Allocator{device: device, budget: budget}
}

// Budget returns the budget the allocator charges.
func (a *Allocator) Budget() *Budget { return a.budget }

// CreateAndUpload allocates an immutable buffer of sizeBytes, copies data
// into it through a transient mapping and seals it.
//
// It fails with ErrAllocation when the buffer cannot be created and with
// ErrMapping when data does not fit or the mapping cannot be acquired.
func (a *Allocator) CreateAndUpload(label string, usage gputypes.BufferUsage, sizeBytes uint64, data []byte) (*Buffer, error) {
	if uint64(len(data)) > sizeBytes {
		return nil, fmt.Errorf("%w: %s: %d bytes of data for a %d byte buffer: %w",
			ErrMapping, label, len(data), sizeBytes, ErrInvalidMapRange)
	}

	buf, err := a.create(label, usage|gputypes.BufferUsageMapWrite, alignUp(sizeBytes, copyAlignment), BufferImmutable)
	if err != nil {
		return nil, err
	}

	err = buf.withMapping(func(dst []byte) error {
		copy(dst, data)
		return nil
	})
	if err != nil {
		buf.Destroy()
		return nil, err
	}

	slogger().Debug("uploaded buffer",
		"label", label, "size", buf.size, "bytes", len(data))
	return buf, nil
}

// CreatePersistentTarget allocates a persistent buffer rounded up to a
// 4096-byte granularity and returns it with its retained mapping.
func (a *Allocator) CreatePersistentTarget(label string, usage gputypes.BufferUsage, sizeBytes uint64) (*Buffer, *Mapping, error) {
	buf, err := a.create(label, usage|gputypes.BufferUsageMapWrite, alignUp(sizeBytes, persistentGranularity), BufferPersistent)
	if err != nil {
		return nil, nil, err
	}

	if _, err := buf.mapPersistent(); err != nil {
		buf.Destroy()
		return nil, nil, err
	}

	slogger().Debug("mapped persistent buffer", "label", label, "size", buf.size)
	return buf, &Mapping{buf: buf}, nil
}

// create reserves budget and creates the device allocation.
func (a *Allocator) create(label string, usage gputypes.BufferUsage, size uint64, kind BufferKind) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrAllocation, label, ErrInvalidBufferSize)
	}
	if err := a.budget.reserve(size); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAllocation, label, err)
	}

	raw, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		a.budget.unreserve(size)
		return nil, fmt.Errorf("%w: create %s: %w", ErrAllocation, label, err)
	}

	buf := &Buffer{
		raw:    raw,
		device: a.device,
		budget: a.budget,
		label:  label,
		size:   size,
		usage:  usage,
		kind:   kind,
	}
	a.budget.track(buf, size)
	return buf, nil
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
