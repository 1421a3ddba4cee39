// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cube

import (
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cube/internal/gpu"
	"github.com/gogpu/cube/internal/mesh"
)

// Backend selects the GPU backend a Renderer opens when no device
// provider is given.
type Backend = gpu.Backend

const (
	// BackendVulkan renders on the first discrete or integrated Vulkan GPU.
	BackendVulkan = gpu.BackendVulkan
	// BackendNoop runs the full frame loop on a headless device that
	// accepts every command and draws nothing.
	BackendNoop = gpu.BackendNoop
)

// ParseBackend parses "vulkan" or "noop".
func ParseBackend(s string) (Backend, error) { return gpu.ParseBackend(s) }

// MeshKind selects the solid a Renderer draws.
type MeshKind = mesh.Kind

const (
	// MeshCube is a unit cube, 36 indices.
	MeshCube = mesh.KindCube
	// MeshHexPrism is a hexagonal prism, 60 indices.
	MeshHexPrism = mesh.KindHexPrism
)

// ParseMesh parses "cube" or "hexprism".
func ParseMesh(s string) (MeshKind, error) { return mesh.ParseKind(s) }

// Limits on option values accepted by New.
const (
	MaxBufferCount  = 4
	MaxSyncInterval = 4
)

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := cube.New(
//	    cube.WithSize(1280, 720),
//	    cube.WithBackend(cube.BackendNoop),
//	)
type Option func(*options)

type options struct {
	width        uint32
	height       uint32
	bufferCount  int
	clearColor   gputypes.Color
	syncInterval int
	fenceTimeout time.Duration
	backend      Backend
	provider     gpucontext.DeviceProvider
	mesh         MeshKind
	seed         uint64
	budget       uint64
	spirv        bool
}

func defaultOptions() options {
	return options{
		width:        1600,
		height:       900,
		bufferCount:  2,
		clearColor:   gputypes.Color{R: 0, G: 0.2, B: 0.4, A: 1},
		syncInterval: 1,
		fenceTimeout: gpu.DefaultFenceTimeout,
		backend:      BackendVulkan,
		mesh:         MeshCube,
		seed:         1,
		budget:       gpu.DefaultBudgetBytes,
	}
}

// WithSize sets the presentation target size in pixels.
// Default: 1600x900.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width = clampDim(width)
		o.height = clampDim(height)
	}
}

// WithBufferCount sets the number of presentation buffers (1 to
// MaxBufferCount). Default: 2.
func WithBufferCount(n int) Option {
	return func(o *options) {
		o.bufferCount = n
	}
}

// WithClearColor sets the background every frame is cleared to.
// Default: (0, 0.2, 0.4, 1).
func WithClearColor(r, g, b, a float64) Option {
	return func(o *options) {
		o.clearColor = gputypes.Color{R: r, G: g, B: b, A: a}
	}
}

// WithSyncInterval sets how many vertical blanks each present waits for.
// Zero presents immediately. Default: 1.
func WithSyncInterval(n int) Option {
	return func(o *options) {
		o.syncInterval = n
	}
}

// WithFenceTimeout bounds each per-frame fence wait. A wait that expires
// fails the frame with ErrDeviceLost and ErrFenceTimeout. Zero waits
// forever. Default: 5s.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = d
	}
}

// WithBackend selects the backend to open. Ignored when a device provider
// is set. Default: BackendVulkan.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithDeviceProvider renders on a device owned by the host application.
// The provider must also expose HalDevice() and HalQueue(); its surface
// format becomes the presentation format. Close leaves the device alive.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithMesh selects the solid to draw. Default: MeshCube.
func WithMesh(k MeshKind) Option {
	return func(o *options) {
		o.mesh = k
	}
}

// WithSeed seeds the per-vertex colors. Default: 1.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithMemoryBudget caps the bytes of buffer memory the renderer may
// allocate. Default: 64 MB.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) {
		o.budget = bytes
	}
}

// WithSPIRV precompiles the WGSL shader to SPIR-V with naga instead of
// handing WGSL to the backend.
func WithSPIRV(enabled bool) Option {
	return func(o *options) {
		o.spirv = enabled
	}
}

func (o *options) validate() error {
	switch {
	case o.width == 0 || o.height == 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOption, o.width, o.height)
	case o.bufferCount < 1 || o.bufferCount > MaxBufferCount:
		return fmt.Errorf("%w: buffer count %d not in [1, %d]", ErrInvalidOption, o.bufferCount, MaxBufferCount)
	case o.syncInterval < 0 || o.syncInterval > MaxSyncInterval:
		return fmt.Errorf("%w: sync interval %d not in [0, %d]", ErrInvalidOption, o.syncInterval, MaxSyncInterval)
	case o.fenceTimeout < 0:
		return fmt.Errorf("%w: negative fence timeout %v", ErrInvalidOption, o.fenceTimeout)
	case o.budget < gpu.MinBudgetBytes:
		return fmt.Errorf("%w: memory budget %d below %d", ErrInvalidOption, o.budget, gpu.MinBudgetBytes)
	}
	if _, err := ParseMesh(o.mesh.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	if _, err := ParseBackend(o.backend.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	return nil
}

func clampDim(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
