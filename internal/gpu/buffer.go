// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferKind is the mapping policy fixed when a buffer is created.
type BufferKind int

const (
	// BufferImmutable buffers are written once through a transient mapping
	// and sealed. Vertex and index data use this kind.
	BufferImmutable BufferKind = iota
	// BufferPersistent buffers stay mapped until teardown so they can be
	// rewritten every frame. The constant buffer uses this kind.
	BufferPersistent
)

// String returns the string representation of BufferKind.
func (k BufferKind) String() string {
	switch k {
	case BufferImmutable:
		return "Immutable"
	case BufferPersistent:
		return "Persistent"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// BufferMapState represents the mapping state of a buffer.
type BufferMapState int

const (
	// BufferMapStateUnmapped means the buffer is not mapped.
	BufferMapStateUnmapped BufferMapState = iota
	// BufferMapStateMapped means a CPU-visible range is held.
	BufferMapStateMapped
	// BufferMapStateSealed means an immutable buffer finished its upload
	// and belongs to the GPU.
	BufferMapStateSealed
)

// String returns the string representation of BufferMapState.
func (s BufferMapState) String() string {
	switch s {
	case BufferMapStateUnmapped:
		return "Unmapped"
	case BufferMapStateMapped:
		return "Mapped"
	case BufferMapStateSealed:
		return "Sealed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// bufferMapper is the subset of hal.Device that maps buffer memory into the
// CPU address space.
type bufferMapper interface {
	MapBuffer(buffer hal.Buffer, offset, size uint64) (hal.BufferMapping, error)
	UnmapBuffer(buffer hal.Buffer) error
}

// Buffer is a device-resident allocation with an optional CPU-visible
// range. A buffer is either immutable (mapped once, then sealed) or
// persistent (mapped for its whole lifetime), never both.
//
// Buffer is safe for concurrent use.
type Buffer struct {
	mu sync.Mutex

	raw    hal.Buffer
	device bufferDevice
	budget *Budget

	label string
	size  uint64
	usage gputypes.BufferUsage
	kind  BufferKind

	state     BufferMapState
	host      []byte // device memory while mapped
	coherent  bool
	destroyed bool
}

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the allocation size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Kind returns the mapping policy.
func (b *Buffer) Kind() BufferKind { return b.kind }

// MapState returns the current mapping state.
func (b *Buffer) MapState() BufferMapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Raw returns the underlying HAL buffer, or nil after Destroy.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	return b.raw
}

// withMapping maps an immutable buffer, passes the mapped device memory to
// fill and unmaps it again whatever fill returns. After the call the buffer
// is sealed and no further CPU writes are possible.
func (b *Buffer) withMapping(fill func(dst []byte) error) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.destroyed:
		return fmt.Errorf("%w: %s: %w", ErrMapping, b.label, ErrBufferDestroyed)
	case b.kind != BufferImmutable:
		return fmt.Errorf("%w: %s: transient mapping of %s buffer", ErrMapping, b.label, b.kind)
	case b.state == BufferMapStateSealed:
		return fmt.Errorf("%w: %s: %w", ErrMapping, b.label, ErrBufferSealed)
	}

	if err := b.mapLocked(); err != nil {
		return err
	}
	defer func() {
		if unmapErr := b.unmapLocked(); unmapErr != nil && err == nil {
			err = unmapErr
		}
		b.state = BufferMapStateSealed
	}()

	if err := fill(b.host); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMapping, b.label, err)
	}
	return nil
}

// mapPersistent acquires the lifetime mapping of a persistent buffer.
func (b *Buffer) mapPersistent() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.destroyed:
		return nil, fmt.Errorf("%w: %s: %w", ErrMapping, b.label, ErrBufferDestroyed)
	case b.kind != BufferPersistent:
		return nil, fmt.Errorf("%w: %s: persistent mapping of %s buffer", ErrMapping, b.label, b.kind)
	case b.state == BufferMapStateMapped:
		return nil, fmt.Errorf("%w: %s: already mapped", ErrMapping, b.label)
	}

	if err := b.mapLocked(); err != nil {
		return nil, err
	}
	return b.host, nil
}

// mapLocked maps the whole allocation and points host at it.
func (b *Buffer) mapLocked() error {
	m, err := b.device.MapBuffer(b.raw, 0, b.size)
	if err != nil {
		return fmt.Errorf("%w: %s: map: %w", ErrMapping, b.label, err)
	}
	if m.Ptr == nil {
		return fmt.Errorf("%w: %s: map returned no memory", ErrMapping, b.label)
	}
	b.host = unsafe.Slice((*byte)(m.Ptr), b.size)
	b.coherent = m.IsCoherent
	b.state = BufferMapStateMapped
	return nil
}

// unmapLocked drops the CPU view. The HAL flushes non-coherent memory here.
func (b *Buffer) unmapLocked() error {
	b.host = nil
	b.state = BufferMapStateUnmapped
	if err := b.device.UnmapBuffer(b.raw); err != nil {
		return fmt.Errorf("%w: %s: unmap: %w", ErrMapping, b.label, err)
	}
	return nil
}

// Destroy releases the mapping, the budget reservation and the device
// allocation. Safe to call multiple times.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	if b.state == BufferMapStateMapped {
		if err := b.unmapLocked(); err != nil {
			slogger().Warn("unmap on destroy failed", "label", b.label, "err", err)
		}
	}
	b.host = nil
	b.state = BufferMapStateUnmapped
	raw := b.raw
	b.raw = nil
	b.mu.Unlock()

	if b.budget != nil {
		b.budget.release(b)
	}
	if raw != nil {
		b.device.DestroyBuffer(raw)
	}
}

// InFlightGuard reports whether all submitted GPU work has been observed
// complete. *Synchronizer implements it.
type InFlightGuard interface {
	Idle() bool
}

// Mapping is the retained write pointer of a persistent buffer. It stays
// valid until Release, which only the owning context calls at teardown.
type Mapping struct {
	buf   *Buffer
	guard InFlightGuard
}

// Buffer returns the mapped buffer.
func (m *Mapping) Buffer() *Buffer { return m.buf }

// SetGuard attaches the guard consulted before every write.
func (m *Mapping) SetGuard(g InFlightGuard) { m.guard = g }

// Bytes returns the mapped device memory, or nil after Release. Stores into
// it reach the GPU without a copy on coherent memory; use Write when the
// range has to be flushed.
func (m *Mapping) Bytes() []byte {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	return m.buf.host
}

// Write copies data into the mapped device memory at offset. Non-coherent
// memory is flushed before Write returns. It fails with ErrBufferInFlight
// while the guard reports pending GPU work.
func (m *Mapping) Write(offset uint64, data []byte) error {
	if m.guard != nil && !m.guard.Idle() {
		return fmt.Errorf("%w: %s: %w", ErrMapping, m.buf.label, ErrBufferInFlight)
	}

	b := m.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return fmt.Errorf("%w: %s: %w", ErrMapping, b.label, ErrBufferDestroyed)
	}
	if b.state != BufferMapStateMapped {
		return fmt.Errorf("%w: %s: mapping released", ErrMapping, b.label)
	}
	end := offset + uint64(len(data))
	if end > b.size || end < offset {
		return fmt.Errorf("%w: %s: [%d, %d) exceeds size %d: %w",
			ErrMapping, b.label, offset, end, b.size, ErrInvalidMapRange)
	}

	copy(b.host[offset:end], data)
	if b.coherent {
		return nil
	}
	if err := b.unmapLocked(); err != nil {
		return err
	}
	return b.mapLocked()
}

// Release unmaps the buffer. Further writes fail.
func (m *Mapping) Release() {
	b := m.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BufferMapStateMapped {
		return
	}
	if err := b.unmapLocked(); err != nil {
		slogger().Warn("release mapping", "label", b.label, "err", err)
	}
}
