// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row pitch alignment of texture-to-buffer copies.
const copyPitchAlignment = 256

// errNothingPresented is returned by Capture before the first frame.
var errNothingPresented = errors.New("gpu: no frame has been presented")

// Capture copies the most recently presented target back to the CPU.
// The copy is submitted on the same timeline as the frames and waited on
// before the staging buffer is mapped.
//
// When the wait fails the GPU may still own the staging buffer and the
// command buffer, so both stay alive until Close has flushed the queue.
func (c *RenderContext) Capture() (*image.RGBA, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	if c.lastSlot < 0 {
		return nil, errNothingPresented
	}
	if c.readback == nil {
		return nil, errors.New("gpu: capture not supported by this context")
	}
	slot := c.surface.Slot(c.lastSlot)
	if state := c.barriers.State(slot.Index); state != StatePresentable {
		return nil, fmt.Errorf("%w: slot %d is %s", ErrNotPresentable, slot.Index, state)
	}

	w, h := c.surface.Extent()
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := c.readback.CreateBuffer(&hal.BufferDescriptor{
		Label: "capture_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create staging buffer: %w", ErrAllocation, err)
	}
	release := func() { c.readback.DestroyBuffer(staging) }

	enc, err := c.encoders.NewEncoder("capture_encoder")
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: create command encoder: %w", ErrCommandRecording, err)
	}
	if err := enc.BeginEncoding("capture"); err != nil {
		release()
		return nil, fmt.Errorf("%w: begin encoding: %w", ErrCommandRecording, err)
	}
	enc.CopyTextureToBuffer(slot.Texture, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: slot.Texture, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	cmd, err := enc.EndEncoding()
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: end encoding: %w", ErrCommandRecording, err)
	}
	release = func() {
		c.encoders.FreeCommandBuffer(cmd)
		c.readback.DestroyBuffer(staging)
	}

	value, err := c.sync.SignalAfterSubmit(cmd)
	if err != nil {
		release()
		return nil, err
	}
	if err := c.sync.WaitUntilComplete(value); err != nil {
		c.abandoned = append(c.abandoned, release)
		slogger().Warn("capture did not complete, keeping staging until close",
			"submission", value, "err", err)
		return nil, err
	}
	defer release()

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if err := c.readStaging(staging, stagingSize, func(data []byte) {
		for row := 0; row < int(h); row++ {
			src := data[row*int(alignedBytesPerRow) : row*int(alignedBytesPerRow)+int(bytesPerRow)]
			copy(img.Pix[row*img.Stride:], src)
		}
	}); err != nil {
		return nil, err
	}
	if c.surface.Format() == gputypes.TextureFormatBGRA8Unorm {
		swapRedBlue(img.Pix)
	}
	return img, nil
}

// readStaging maps size bytes of a completed staging buffer for reading.
func (c *RenderContext) readStaging(staging hal.Buffer, size uint64, read func([]byte)) error {
	m, err := c.readback.MapBuffer(staging, 0, size)
	if err != nil {
		return fmt.Errorf("%w: map staging: %w", ErrMapping, err)
	}
	if m.Ptr == nil {
		return fmt.Errorf("%w: map staging returned no memory", ErrMapping)
	}
	read(unsafe.Slice((*byte)(m.Ptr), size))
	if err := c.readback.UnmapBuffer(staging); err != nil {
		return fmt.Errorf("%w: unmap staging: %w", ErrMapping, err)
	}
	return nil
}

// swapRedBlue converts BGRA pixels to RGBA in place.
func swapRedBlue(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
