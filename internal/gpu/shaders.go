// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/cube.wgsl
var cubeShaderSource string

// Shader entry points.
const (
	vertexEntryPoint   = "vs_main"
	fragmentEntryPoint = "fs_main"
)

// ShaderSource returns the WGSL source of the mesh shader.
func ShaderSource() string { return cubeShaderSource }

// CompileSPIRV compiles WGSL source to SPIR-V words with naga.
func CompileSPIRV(wgslSource string) ([]uint32, error) {
	if wgslSource == "" {
		return nil, errors.New("gpu: shader source is empty")
	}
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile shader: %w", err)
	}
	return spirvWords(spirvBytes)
}

// spirvWords converts little-endian SPIR-V bytes to 32-bit words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("gpu: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}

// shaderModuleSource returns the module source handed to the device:
// precompiled SPIR-V when requested, WGSL otherwise.
func shaderModuleSource(precompile bool) (hal.ShaderSource, error) {
	if !precompile {
		return hal.ShaderSource{WGSL: cubeShaderSource}, nil
	}
	words, err := CompileSPIRV(cubeShaderSource)
	if err != nil {
		return hal.ShaderSource{}, err
	}
	return hal.ShaderSource{SPIRV: words}, nil
}
