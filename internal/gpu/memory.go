// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync"
)

// Default memory limits.
const (
	// DefaultBudgetBytes is the default GPU buffer budget (64 MB).
	DefaultBudgetBytes = 64 * 1024 * 1024

	// MinBudgetBytes is the smallest accepted budget (64 KB).
	MinBudgetBytes = 64 * 1024
)

// MemoryStats contains GPU buffer usage statistics.
type MemoryStats struct {
	// TotalBytes is the total budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently reserved memory in bytes.
	UsedBytes uint64

	// AvailableBytes is the remaining budget.
	AvailableBytes uint64

	// BufferCount is the number of live reservations.
	BufferCount int

	// Utilization is the fraction of the budget in use (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, %d buffers]",
		s.Utilization*100,
		s.UsedBytes/1024,
		s.TotalBytes/1024,
		s.BufferCount)
}

// Budget accounts for buffer memory committed through an Allocator.
// Resources live for the whole context, so there is no eviction: a
// reservation that does not fit fails.
//
// Budget is safe for concurrent use.
type Budget struct {
	mu sync.Mutex

	totalBytes uint64
	usedBytes  uint64
	entries    map[*Buffer]uint64
}

// NewBudget creates a budget of the given size in bytes.
// Values below MinBudgetBytes select DefaultBudgetBytes.
func NewBudget(totalBytes uint64) *Budget {
	if totalBytes < MinBudgetBytes {
		totalBytes = DefaultBudgetBytes
	}
	return &Budget{
		totalBytes: totalBytes,
		entries:    make(map[*Buffer]uint64),
	}
}

// reserve checks that size more bytes fit.
func (b *Budget) reserve(size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if size > b.totalBytes-b.usedBytes {
		return fmt.Errorf("%w: need %d bytes, have %d bytes available",
			ErrBudgetExceeded, size, b.totalBytes-b.usedBytes)
	}
	b.usedBytes += size
	return nil
}

// unreserve returns bytes taken by reserve when creation failed.
func (b *Budget) unreserve(size uint64) {
	b.mu.Lock()
	b.usedBytes -= size
	b.mu.Unlock()
}

// track attaches a reservation to a created buffer so release can free it.
func (b *Budget) track(buf *Buffer, size uint64) {
	b.mu.Lock()
	b.entries[buf] = size
	b.mu.Unlock()
}

// release frees the reservation held by buf. Unknown buffers are ignored.
func (b *Budget) release(buf *Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size, ok := b.entries[buf]
	if !ok {
		return
	}
	delete(b.entries, buf)
	b.usedBytes -= size
}

// Stats returns current usage statistics.
func (b *Budget) Stats() MemoryStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var utilization float64
	if b.totalBytes > 0 {
		utilization = float64(b.usedBytes) / float64(b.totalBytes)
	}
	return MemoryStats{
		TotalBytes:     b.totalBytes,
		UsedBytes:      b.usedBytes,
		AvailableBytes: b.totalBytes - b.usedBytes,
		BufferCount:    len(b.entries),
		Utilization:    utilization,
	}
}
