// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"slices"
	"testing"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"vulkan", BackendVulkan, false},
		{"noop", BackendNoop, false},
		{"metal", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseBackend(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.String() != tt.in {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), tt.in)
		}
	}
	if got := Backend(9).String(); got != "Unknown(9)" {
		t.Errorf("Backend(9).String() = %q", got)
	}
}

type fakeProvider struct {
	device, queue any
}

func (p fakeProvider) HalDevice() any { return p.device }
func (p fakeProvider) HalQueue() any  { return p.queue }

func TestDeviceFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	if _, err := DeviceFromProvider(struct{}{}); err == nil {
		t.Error("provider without HAL accessors accepted")
	}
	if _, err := DeviceFromProvider(fakeProvider{device: "x", queue: queue}); err == nil {
		t.Error("provider with a non-HAL device accepted")
	}
	if _, err := DeviceFromProvider(fakeProvider{device: device, queue: nil}); err == nil {
		t.Error("provider without a queue accepted")
	}

	dev, err := DeviceFromProvider(fakeProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("DeviceFromProvider failed: %v", err)
	}
	if !dev.External() || dev.HAL() == nil || dev.Queue() == nil {
		t.Errorf("shared device = %+v", dev)
	}
	// Destroy leaves the shared device to its owner; cleanup destroys it.
	dev.Destroy()
	dev.Destroy()
}

// TestNoopFrameLoop runs the whole frame loop on the headless device.
func TestNoopFrameLoop(t *testing.T) {
	dev, err := OpenDevice(BackendNoop)
	if err != nil {
		t.Fatalf("OpenDevice(noop) failed: %v", err)
	}
	defer dev.Destroy()
	if dev.External() {
		t.Error("opened device reported as external")
	}

	vertices, indices := cubeGeometry()
	ctx, err := NewRenderContext(dev, ContextConfig{
		Width:       32,
		Height:      16,
		BufferCount: 2,
		Vertices:    vertices,
		Indices:     indices,
	})
	if err != nil {
		t.Fatalf("NewRenderContext failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		frame, err := ctx.Frame(constants(byte(i)))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.FenceValue != uint64(i) {
			t.Errorf("frame %d: FenceValue = %d", i, frame.FenceValue)
		}
		if frame.Slot.Index != (i-1)%2 {
			t.Errorf("frame %d: slot %d", i, frame.Slot.Index)
		}
	}

	// The last frame's constants sit in the noop buffer's own storage.
	got := deviceBytes(t, dev.HAL(), ctx.constants.Raw(), ConstantsSize)
	if !slices.Equal(got, constants(3)) {
		t.Error("uniform buffer memory does not hold the last frame's constants")
	}

	img, err := ctx.Capture()
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("capture bounds = %v, want 32x16", b)
	}

	if err := ctx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s := ctx.Stats(); s.Memory.BufferCount != 0 {
		t.Errorf("buffers alive after Close: %d", s.Memory.BufferCount)
	}
}
