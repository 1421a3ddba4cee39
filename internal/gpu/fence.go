// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// DefaultFenceTimeout bounds a single wait for a submission.
const DefaultFenceTimeout = 5 * time.Second

// Completion polling backs off between these intervals.
const (
	minPollInterval = 50 * time.Microsecond
	maxPollInterval = 2 * time.Millisecond
)

// SyncState is the state of the fence timeline.
type SyncState int

const (
	// SyncIdle means every signaled value has been observed complete.
	SyncIdle SyncState = iota
	// SyncWaiting means a signaled value has not been observed yet.
	SyncWaiting
)

// String returns the string representation of SyncState.
func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "Idle"
	case SyncWaiting:
		return "Waiting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// submitQueue submits command buffers and reports how far the GPU got.
// hal.Queue implements it.
type submitQueue interface {
	Submit(commandBuffers []hal.CommandBuffer) (submissionIndex uint64, err error)
	PollCompleted() uint64
}

// Synchronizer orders command submission against CPU reuse of resources
// on the queue's submission timeline. Every submit returns a strictly
// increasing index and the queue reports the highest completed one.
//
// The CPU submits once per frame and then blocks until that index
// completes, so at most one frame of GPU work is outstanding.
type Synchronizer struct {
	mu sync.Mutex

	queue   submitQueue
	timeout time.Duration
	now     func() time.Time
	sleep   func(time.Duration)

	signaled  uint64
	completed uint64
	state     SyncState
	waits     uint64
}

// NewSynchronizer tracks submissions on queue. A zero timeout makes
// WaitUntilComplete block without bound.
func NewSynchronizer(queue hal.Queue, timeout time.Duration) *Synchronizer {
	return newSynchronizer(queue, timeout)
}

func newSynchronizer(queue submitQueue, timeout time.Duration) *Synchronizer {
	return &Synchronizer{
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// SignalAfterSubmit submits cmds and returns their submission index, which
// the queue reports complete once they and all earlier work finish.
func (s *Synchronizer) SignalAfterSubmit(cmds ...hal.CommandBuffer) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := s.queue.Submit(cmds)
	if err != nil {
		if errors.Is(err, hal.ErrDeviceLost) {
			return 0, fmt.Errorf("%w: submit after %d: %w", ErrDeviceLost, s.signaled, err)
		}
		return 0, fmt.Errorf("%w: submit after %d: %w", ErrCommandRecording, s.signaled, err)
	}
	if value <= s.signaled {
		return 0, fmt.Errorf("%w: submission index %d does not follow %d", ErrCommandRecording, value, s.signaled)
	}
	s.signaled = value
	s.state = SyncWaiting
	return value, nil
}

// WaitUntilComplete returns once the queue reports a completed index of at
// least value. It returns immediately when that was already observed.
//
// A wait that exceeds the configured timeout fails with ErrDeviceLost and
// ErrFenceTimeout.
func (s *Synchronizer) WaitUntilComplete(value uint64) error {
	s.mu.Lock()
	s.waits++
	if value > s.signaled {
		s.mu.Unlock()
		return fmt.Errorf("%w: wait for %d, last submission is %d", ErrCommandRecording, value, s.signaled)
	}
	if s.observeLocked(value) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	start := s.now()
	interval := minPollInterval
	for {
		s.sleep(interval)

		s.mu.Lock()
		done := s.observeLocked(value)
		s.mu.Unlock()
		if done {
			return nil
		}

		if elapsed := s.now().Sub(start); s.timeout > 0 && elapsed >= s.timeout {
			return fmt.Errorf("%w: submission %d after %v: %w", ErrDeviceLost, value, elapsed, ErrFenceTimeout)
		}
		interval = min(interval*2, maxPollInterval)
	}
}

// Flush waits once for the last submission, after which no submitted work
// is outstanding.
func (s *Synchronizer) Flush() error {
	s.mu.Lock()
	last := s.signaled
	s.mu.Unlock()
	return s.WaitUntilComplete(last)
}

// Idle reports whether every submission has completed. It polls the queue
// and never blocks.
func (s *Synchronizer) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observeLocked(s.signaled)
}

// State returns the timeline state.
func (s *Synchronizer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextValue returns the lowest index the next submission can have.
func (s *Synchronizer) NextValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signaled + 1
}

// CompletedValue returns the last index observed complete.
func (s *Synchronizer) CompletedValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Waits returns how many times WaitUntilComplete was called.
func (s *Synchronizer) Waits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waits
}

// observeLocked polls the queue unless value is already known complete.
func (s *Synchronizer) observeLocked(value uint64) bool {
	if s.completed < value {
		if c := s.queue.PollCompleted(); c > s.completed {
			s.completed = c
		}
	}
	if s.completed >= s.signaled {
		s.state = SyncIdle
	}
	return s.completed >= value
}
