// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Vertex layout: float32x3 position followed by float32x4 color.
const (
	// VertexStride is the size of one vertex in bytes.
	VertexStride = 28

	// colorOffset is the byte offset of the color attribute.
	colorOffset = 12

	// ConstantsSize is the size of the world, view and projection
	// matrices bound to the vertex stage.
	ConstantsSize = 3 * 64
)

// PipelineConfig configures the mesh pipeline.
type PipelineConfig struct {
	// Format is the color target format. Must match the surface.
	Format gputypes.TextureFormat

	// SPIRV precompiles the shader with naga instead of handing WGSL to
	// the device.
	SPIRV bool
}

// Pipeline holds the shader, layouts and render pipeline for the mesh draw.
// The pipeline is opaque to the recorder; it only binds the handles.
type Pipeline struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	layout     hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

// NewPipeline compiles the mesh shader and creates the render pipeline:
// triangle list, back-face culling, no blending, no depth.
func NewPipeline(device hal.Device, cfg PipelineConfig) (*Pipeline, error) {
	p := &Pipeline{device: device}
	if err := p.create(cfg); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) create(cfg PipelineConfig) error {
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = gputypes.TextureFormatRGBA8Unorm
	}

	source, err := shaderModuleSource(cfg.SPIRV)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "cube_shader",
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("%w: create shader module: %w", ErrAllocation, err)
	}
	p.shader = shader

	// Binding 0: world/view/projection (uniform buffer, vertex stage).
	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cube_constants_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group layout: %w", ErrAllocation, err)
	}
	p.bindLayout = bindLayout

	layout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cube_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: create pipeline layout: %w", ErrAllocation, err)
	}
	p.layout = layout

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "cube_pipeline",
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: vertexEntryPoint,
			Buffers:    vertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: fragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    cfg.Format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeBack,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create render pipeline: %w", ErrAllocation, err)
	}
	p.pipeline = pipeline

	slogger().Debug("mesh pipeline created", "format", cfg.Format, "spirv", cfg.SPIRV)
	return nil
}

// Raw returns the render pipeline handle.
func (p *Pipeline) Raw() hal.RenderPipeline { return p.pipeline }

// BindConstants creates the bind group that exposes the constant buffer
// to the vertex stage.
func (p *Pipeline) BindConstants(buf *Buffer) (hal.BindGroup, error) {
	raw := buf.Raw()
	if raw == nil {
		return nil, fmt.Errorf("%w: bind %s: %w", ErrAllocation, buf.Label(), ErrBufferDestroyed)
	}
	group, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cube_constants_bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: raw.NativeHandle(), Offset: 0, Size: ConstantsSize,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bind group: %w", ErrAllocation, err)
	}
	return group, nil
}

// DestroyBindGroup releases a group created by BindConstants.
func (p *Pipeline) DestroyBindGroup(group hal.BindGroup) {
	if group != nil {
		p.device.DestroyBindGroup(group)
	}
}

// Destroy releases all pipeline resources in reverse creation order.
// Safe to call multiple times.
func (p *Pipeline) Destroy() {
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

func vertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},           // position
				{Format: gputypes.VertexFormatFloat32x4, Offset: colorOffset, ShaderLocation: 1}, // color
			},
		},
	}
}
