// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "fmt"

// Presenter reports the presentation surface's buffer rotation.
type Presenter interface {
	BufferCount() int
	CurrentIndex() int
}

// BufferRing tracks which presentation slot is currently writable. The
// surface is the source of truth: the index is re-read after every
// present instead of being incremented locally.
type BufferRing struct {
	surface Presenter
	count   int
	current int
}

// NewBufferRing reads the initial index from the surface.
func NewBufferRing(surface Presenter) (*BufferRing, error) {
	r := &BufferRing{surface: surface, count: surface.BufferCount()}
	if r.count < 1 {
		return nil, fmt.Errorf("%w: buffer ring needs at least one buffer, got %d", ErrAllocation, r.count)
	}
	idx, err := r.query()
	if err != nil {
		return nil, err
	}
	r.current = idx
	return r, nil
}

// CurrentIndex returns the index reported by the surface at the last
// Advance, always in [0, Count()).
func (r *BufferRing) CurrentIndex() int { return r.current }

// Count returns the number of presentation slots.
func (r *BufferRing) Count() int { return r.count }

// Advance re-queries the surface after a completed present and sync.
func (r *BufferRing) Advance() error {
	idx, err := r.query()
	if err != nil {
		return err
	}
	if r.count > 1 && idx == r.current {
		return fmt.Errorf("%w: present: %w: still %d", ErrCommandRecording, ErrStaleBufferIndex, idx)
	}
	r.current = idx
	return nil
}

func (r *BufferRing) query() (int, error) {
	idx := r.surface.CurrentIndex()
	if idx < 0 || idx >= r.count {
		return 0, fmt.Errorf("%w: present: %w: %d not in [0, %d)", ErrCommandRecording, ErrInvalidBufferIndex, idx, r.count)
	}
	return idx, nil
}
