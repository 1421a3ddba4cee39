// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ResourceState is the logical usage state of a presentation target.
type ResourceState int

const (
	// StatePresentable means the target can be handed to the surface or
	// copied from.
	StatePresentable ResourceState = iota
	// StateRenderTarget means the target can be bound as a color attachment.
	StateRenderTarget
)

// String returns the string representation of ResourceState.
func (s ResourceState) String() string {
	switch s {
	case StatePresentable:
		return "Presentable"
	case StateRenderTarget:
		return "RenderTarget"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// usage maps the state to the texture usage a HAL barrier expects.
func (s ResourceState) usage() gputypes.TextureUsage {
	if s == StateRenderTarget {
		return gputypes.TextureUsageRenderAttachment
	}
	return gputypes.TextureUsageCopySrc
}

// Transition is one barrier recorded for a slot.
type Transition struct {
	Slot int
	From ResourceState
	To   ResourceState
}

// barrierEncoder emits texture barriers into a command stream.
type barrierEncoder interface {
	TransitionTextures(barriers []hal.TextureBarrier)
}

// BarrierSequencer tracks the state of every presentation target and emits
// explicit transitions. A transition whose source does not match the
// tracked state is rejected before anything is recorded.
//
// A target that no recorded transition has touched yet holds undefined
// contents, so its first barrier leaves TextureUsageNone rather than the
// usage its logical state implies.
type BarrierSequencer struct {
	states  []ResourceState
	touched []bool
	frame   []Transition
}

// barrierSnapshot is the tracked state saved before a recording.
type barrierSnapshot struct {
	states  []ResourceState
	touched []bool
}

// NewBarrierSequencer starts every target in StatePresentable with
// undefined contents.
func NewBarrierSequencer(count int) *BarrierSequencer {
	return &BarrierSequencer{
		states:  make([]ResourceState, count),
		touched: make([]bool, count),
	}
}

// State returns the tracked state of slot.
func (b *BarrierSequencer) State(slot int) ResourceState { return b.states[slot] }

// States returns a copy of all tracked states.
func (b *BarrierSequencer) States() []ResourceState {
	out := make([]ResourceState, len(b.states))
	copy(out, b.states)
	return out
}

// BeginFrame clears the per-frame transition log.
func (b *BarrierSequencer) BeginFrame() { b.frame = b.frame[:0] }

// FrameTransitions returns the transitions recorded since BeginFrame.
func (b *BarrierSequencer) FrameTransitions() []Transition {
	out := make([]Transition, len(b.frame))
	copy(out, b.frame)
	return out
}

// Initialized reports whether slot has been transitioned by a recording.
func (b *BarrierSequencer) Initialized(slot int) bool { return b.touched[slot] }

func (b *BarrierSequencer) snapshot() barrierSnapshot {
	return barrierSnapshot{
		states:  b.States(),
		touched: append([]bool(nil), b.touched...),
	}
}

// restore resets tracked states after an aborted recording.
func (b *BarrierSequencer) restore(saved barrierSnapshot) {
	copy(b.states, saved.states)
	copy(b.touched, saved.touched)
	b.frame = b.frame[:0]
}

// Transition records a barrier moving slot from one state to another.
func (b *BarrierSequencer) Transition(enc barrierEncoder, slot int, tex hal.Texture, from, to ResourceState) error {
	if slot < 0 || slot >= len(b.states) {
		return fmt.Errorf("%w: slot %d", ErrInvalidBufferIndex, slot)
	}
	if b.states[slot] != from {
		return fmt.Errorf("%w: slot %d is %s, barrier expects %s",
			ErrInvalidTransition, slot, b.states[slot], from)
	}
	if from == to {
		return fmt.Errorf("%w: slot %d already %s", ErrInvalidTransition, slot, to)
	}

	old := from.usage()
	if !b.touched[slot] {
		old = gputypes.TextureUsageNone
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: old,
			NewUsage: to.usage(),
		},
	}})
	b.states[slot] = to
	b.touched[slot] = true
	b.frame = append(b.frame, Transition{Slot: slot, From: from, To: to})
	return nil
}
