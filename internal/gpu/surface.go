// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// refreshPeriod is the vertical blank period the offscreen surface paces to.
const refreshPeriod = time.Second / 60

// PresentationSlot is one swapchain-backed render target and its view.
type PresentationSlot struct {
	Index   int
	Texture hal.Texture
	View    hal.TextureView
}

// Surface is the presentation surface the frame loop draws into. The
// surface owns its slots; the frame loop never creates or resizes them.
type Surface interface {
	Presenter

	// Slot returns the target at index i.
	Slot(i int) *PresentationSlot

	// Extent returns the size of every target in pixels.
	Extent() (width, height uint32)

	// Format returns the color format of every target.
	Format() gputypes.TextureFormat

	// Present hands the current target to the display. syncInterval is
	// the number of vertical blanks to wait; zero presents immediately.
	Present(syncInterval int) error

	// Destroy releases the targets.
	Destroy()
}

// SurfaceConfig describes an offscreen swapchain.
type SurfaceConfig struct {
	Width       uint32
	Height      uint32
	BufferCount int
	Format      gputypes.TextureFormat
}

// textureDevice is the subset of hal.Device the offscreen surface needs.
type textureDevice interface {
	CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error)
	CreateTextureView(texture hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error)
}

// OffscreenSurface is a headless swapchain of N textures presented in
// round-robin order at a fixed refresh rate.
type OffscreenSurface struct {
	width  uint32
	height uint32
	format gputypes.TextureFormat
	slots  []*PresentationSlot

	current       int
	lastPresented int
	presented     uint64
	lastPresent   time.Time

	now     func() time.Time
	sleep   func(time.Duration)
	release func(*PresentationSlot)
}

// NewOffscreenSurface creates BufferCount render targets on device.
// Targets are created RenderAttachment|CopySrc so they can be captured.
func NewOffscreenSurface(device hal.Device, cfg SurfaceConfig) (*OffscreenSurface, error) {
	release := func(slot *PresentationSlot) {
		if slot.View != nil {
			device.DestroyTextureView(slot.View)
		}
		if slot.Texture != nil {
			device.DestroyTexture(slot.Texture)
		}
	}
	return newOffscreenSurface(device, release, cfg)
}

func newOffscreenSurface(device textureDevice, release func(*PresentationSlot), cfg SurfaceConfig) (*OffscreenSurface, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: surface size %dx%d", ErrAllocation, cfg.Width, cfg.Height)
	}
	if cfg.BufferCount < 1 {
		return nil, fmt.Errorf("%w: surface needs at least one buffer, got %d", ErrAllocation, cfg.BufferCount)
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = gputypes.TextureFormatRGBA8Unorm
	}

	s := &OffscreenSurface{
		width:         cfg.Width,
		height:        cfg.Height,
		format:        cfg.Format,
		lastPresented: -1,
		now:           time.Now,
		sleep:         time.Sleep,
		release:       release,
	}

	for i := 0; i < cfg.BufferCount; i++ {
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label: fmt.Sprintf("swapchain_%d", i),
			Size: hal.Extent3D{
				Width:              cfg.Width,
				Height:             cfg.Height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        cfg.Format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("%w: create swapchain texture %d: %w", ErrAllocation, i, err)
		}
		slot := &PresentationSlot{Index: i, Texture: tex}
		s.slots = append(s.slots, slot)

		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         fmt.Sprintf("swapchain_%d_view", i),
			Format:        cfg.Format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("%w: create swapchain view %d: %w", ErrAllocation, i, err)
		}
		slot.View = view
	}

	slogger().Debug("offscreen surface created",
		"width", cfg.Width, "height", cfg.Height, "buffers", cfg.BufferCount)
	return s, nil
}

// BufferCount returns the number of targets.
func (s *OffscreenSurface) BufferCount() int { return len(s.slots) }

// CurrentIndex returns the target the next frame draws into.
func (s *OffscreenSurface) CurrentIndex() int { return s.current }

// Slot returns the target at index i, or nil when out of range.
func (s *OffscreenSurface) Slot(i int) *PresentationSlot {
	if i < 0 || i >= len(s.slots) {
		return nil
	}
	return s.slots[i]
}

// Extent returns the target size.
func (s *OffscreenSurface) Extent() (uint32, uint32) { return s.width, s.height }

// Format returns the target format.
func (s *OffscreenSurface) Format() gputypes.TextureFormat { return s.format }

// LastPresented returns the index of the most recently presented target,
// or -1 before the first present.
func (s *OffscreenSurface) LastPresented() int { return s.lastPresented }

// Presented returns the number of completed presents.
func (s *OffscreenSurface) Presented() uint64 { return s.presented }

// Present paces to syncInterval refresh periods since the previous present
// and rotates to the next target.
func (s *OffscreenSurface) Present(syncInterval int) error {
	if len(s.slots) == 0 {
		return fmt.Errorf("gpu: present on destroyed surface")
	}
	if syncInterval < 0 {
		return fmt.Errorf("gpu: negative sync interval %d", syncInterval)
	}

	now := s.now()
	if syncInterval > 0 && !s.lastPresent.IsZero() {
		due := s.lastPresent.Add(time.Duration(syncInterval) * refreshPeriod)
		if wait := due.Sub(now); wait > 0 {
			s.sleep(wait)
			now = due
		}
	}
	s.lastPresent = now

	s.lastPresented = s.current
	s.current = (s.current + 1) % len(s.slots)
	s.presented++
	return nil
}

// Destroy releases every target. Safe to call multiple times.
func (s *OffscreenSurface) Destroy() {
	for i := len(s.slots) - 1; i >= 0; i-- {
		if s.release != nil {
			s.release(s.slots[i])
		}
	}
	s.slots = nil
}
