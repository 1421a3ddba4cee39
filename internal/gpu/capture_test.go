// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"slices"
	"testing"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// stagingDevice hands out real noop staging buffers. Mapping one stands in
// for the GPU copy: every pixel holds its row index and the row padding
// holds 0xEE.
type stagingDevice struct {
	*countingDevice
	pitch    int
	rowBytes int
}

func (d *stagingDevice) MapBuffer(b hal.Buffer, offset, size uint64) (hal.BufferMapping, error) {
	m, err := d.countingDevice.MapBuffer(b, offset, size)
	if err != nil {
		return m, err
	}
	dst := unsafe.Slice((*byte)(m.Ptr), size)
	for i := range dst {
		if i%d.pitch < d.rowBytes {
			dst[i] = byte(i / d.pitch)
		} else {
			dst[i] = 0xEE
		}
	}
	return m, nil
}

func fakeReadback(t *testing.T, h *testHarness, pitch, rowBytes int) *stagingDevice {
	t.Helper()
	device, _, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	d := &stagingDevice{countingDevice: &countingDevice{Device: device}, pitch: pitch, rowBytes: rowBytes}
	h.ctx.readback = d
	return d
}

func TestCaptureStripsRowPadding(t *testing.T) {
	// 10 pixels per row is 40 bytes, padded to a 256 byte pitch.
	h := newSizedHarness(t, 10, 4, 2, DefaultFenceTimeout)
	t.Cleanup(func() { _ = h.ctx.Close() })
	staging := fakeReadback(t, h, 256, 40)

	if _, err := h.ctx.Frame(constants(0)); err != nil {
		t.Fatal(err)
	}
	h.log.reset()

	img, err := h.ctx.Capture()
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(staging.descs) != 1 {
		t.Fatalf("staging buffers = %d, want 1", len(staging.descs))
	}
	if u := staging.descs[0].Usage; u&gputypes.BufferUsageMapRead == 0 || u&gputypes.BufferUsageCopyDst == 0 {
		t.Errorf("staging usage = %v, want MapRead|CopyDst", u)
	}
	if staging.maps != 1 || staging.unmaps != 1 || staging.destroyed != 1 {
		t.Errorf("staging maps %d, unmaps %d, destroyed %d, want 1 each",
			staging.maps, staging.unmaps, staging.destroyed)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 4 {
		t.Fatalf("bounds = %v, want 10x4", b)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 10; x++ {
			if c := img.RGBAAt(x, y); c.R != byte(y) || c.A != byte(y) {
				t.Fatalf("pixel (%d,%d) = %v, want row %d", x, y, c, y)
			}
		}
	}

	want := []string{
		"begin capture",
		"copy pitch=256 rows=4",
		"end",
		"submit cmds=1 index=2",
		"poll 2",
	}
	if got := h.log.all(); !slices.Equal(got, want) {
		t.Errorf("capture events:\n got %q\nwant %q", got, want)
	}
	if h.encoders.freed == 0 {
		t.Error("capture command buffer not freed")
	}
}

func TestCaptureKeepsResourcesUntilClose(t *testing.T) {
	h := newSizedHarness(t, 10, 4, 2, 20*time.Millisecond)
	staging := fakeReadback(t, h, 256, 40)

	if _, err := h.ctx.Frame(constants(0)); err != nil {
		t.Fatal(err)
	}
	freed := h.encoders.freed

	h.gpu.hung = true
	_, err := h.ctx.Capture()
	if !errors.Is(err, ErrDeviceLost) || !errors.Is(err, ErrFenceTimeout) {
		t.Fatalf("Capture = %v, want ErrDeviceLost and ErrFenceTimeout", err)
	}

	// The copy may still be running: nothing it touches is released.
	if staging.destroyed != 0 {
		t.Error("staging buffer destroyed while the copy is outstanding")
	}
	if staging.maps != 0 {
		t.Error("staging buffer mapped while the copy is outstanding")
	}
	if h.encoders.freed != freed {
		t.Error("capture command buffer freed while the copy is outstanding")
	}

	h.gpu.complete(2)
	if err := h.ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if staging.destroyed != 1 {
		t.Errorf("staging destroyed %d times after Close, want 1", staging.destroyed)
	}
	if h.encoders.freed <= freed {
		t.Error("capture command buffer not freed by Close")
	}
}

func TestCaptureBeforeFirstFrame(t *testing.T) {
	h := newTestHarness(t, 2, DefaultFenceTimeout)
	t.Cleanup(func() { _ = h.ctx.Close() })
	fakeReadback(t, h, 256, 256)

	if _, err := h.ctx.Capture(); !errors.Is(err, errNothingPresented) {
		t.Errorf("Capture = %v, want errNothingPresented", err)
	}
}

func TestCaptureWithoutReadback(t *testing.T) {
	h := newTestHarness(t, 2, DefaultFenceTimeout)
	if _, err := h.ctx.Frame(constants(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctx.Capture(); err == nil {
		t.Error("Capture without readback succeeded")
	}

	_ = h.ctx.Close()
	if _, err := h.ctx.Capture(); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Capture after Close = %v, want ErrContextClosed", err)
	}
}

func TestSwapRedBlue(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	swapRedBlue(pix)
	if want := []byte{3, 2, 1, 4, 7, 6, 5, 8}; !slices.Equal(pix, want) {
		t.Errorf("swapRedBlue = %v, want %v", pix, want)
	}
}
