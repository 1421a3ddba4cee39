// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RenderPass records draw state inside one render pass. It mirrors the
// subset of hal.RenderPassEncoder the frame uses.
type RenderPass interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64)
	SetIndexBuffer(buffer hal.Buffer, format gputypes.IndexFormat, offset uint64)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}

// Encoder records one command buffer. It mirrors the subset of
// hal.CommandEncoder the frame and capture paths use.
type Encoder interface {
	BeginEncoding(label string) error
	TransitionTextures(barriers []hal.TextureBarrier)
	BeginRenderPass(desc *hal.RenderPassDescriptor) RenderPass
	CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy)
	EndEncoding() (hal.CommandBuffer, error)
	DiscardEncoding()
}

// EncoderFactory creates encoders and frees the command buffers they
// produce.
type EncoderFactory interface {
	NewEncoder(label string) (Encoder, error)
	FreeCommandBuffer(cmd hal.CommandBuffer)
}

// halEncoders creates encoders on a HAL device.
type halEncoders struct {
	device hal.Device
}

// NewEncoderFactory returns an EncoderFactory backed by device.
func NewEncoderFactory(device hal.Device) EncoderFactory {
	return halEncoders{device: device}
}

func (f halEncoders) NewEncoder(label string) (Encoder, error) {
	enc, err := f.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, err
	}
	return halEncoder{enc: enc}, nil
}

func (f halEncoders) FreeCommandBuffer(cmd hal.CommandBuffer) {
	f.device.FreeCommandBuffer(cmd)
}

type halEncoder struct {
	enc hal.CommandEncoder
}

func (e halEncoder) BeginEncoding(label string) error { return e.enc.BeginEncoding(label) }

func (e halEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.enc.TransitionTextures(barriers)
}

func (e halEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) RenderPass {
	return halRenderPass{rp: e.enc.BeginRenderPass(desc)}
}

func (e halEncoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	e.enc.CopyTextureToBuffer(src, dst, regions)
}

func (e halEncoder) EndEncoding() (hal.CommandBuffer, error) { return e.enc.EndEncoding() }

func (e halEncoder) DiscardEncoding() { e.enc.DiscardEncoding() }

type halRenderPass struct {
	rp hal.RenderPassEncoder
}

func (p halRenderPass) SetPipeline(pipeline hal.RenderPipeline) { p.rp.SetPipeline(pipeline) }

func (p halRenderPass) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	p.rp.SetBindGroup(index, group, offsets)
}

func (p halRenderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.rp.SetViewport(x, y, width, height, minDepth, maxDepth)
}

func (p halRenderPass) SetScissorRect(x, y, width, height uint32) {
	p.rp.SetScissorRect(x, y, width, height)
}

func (p halRenderPass) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64) {
	p.rp.SetVertexBuffer(slot, buffer, offset)
}

func (p halRenderPass) SetIndexBuffer(buffer hal.Buffer, format gputypes.IndexFormat, offset uint64) {
	p.rp.SetIndexBuffer(buffer, format, offset)
}

func (p halRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.rp.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p halRenderPass) End() { p.rp.End() }
