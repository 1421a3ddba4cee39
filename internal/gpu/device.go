// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Backend selects the HAL implementation a device is opened on.
type Backend int

const (
	// BackendVulkan opens the first discrete or integrated Vulkan adapter.
	BackendVulkan Backend = iota
	// BackendNoop opens the headless noop device. Commands are accepted and
	// fences signal immediately; nothing is rasterized.
	BackendNoop
)

// String returns the string representation of Backend.
func (b Backend) String() string {
	switch b {
	case BackendVulkan:
		return "vulkan"
	case BackendNoop:
		return "noop"
	default:
		return fmt.Sprintf("Unknown(%d)", int(b))
	}
}

// ParseBackend parses a backend name as printed by String.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "vulkan":
		return BackendVulkan, nil
	case "noop":
		return BackendNoop, nil
	default:
		return 0, fmt.Errorf("gpu: unknown backend %q", s)
	}
}

// Device is an opened or shared HAL device and its queue.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	external bool
}

// OpenDevice creates an instance on backend and opens a device on the
// preferred adapter.
func OpenDevice(backend Backend) (*Device, error) {
	var (
		instance hal.Instance
		err      error
	)
	switch backend {
	case BackendVulkan:
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
		}
		instance, err = b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	case BackendNoop:
		instance, err = noop.API{}.CreateInstance(nil)
	default:
		return nil, fmt.Errorf("gpu: unknown backend %d", int(backend))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s instance: %w", ErrAllocation, backend, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", ErrAllocation, err)
	}

	slogger().Info("gpu device opened", "backend", backend.String(), "adapter", selected.Info.Name)
	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

// DeviceFromProvider shares a device owned by the host application. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. Destroy leaves a shared device alive.
func DeviceFromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	slogger().Info("gpu device shared from provider")
	return &Device{
		device:   device,
		queue:    queue,
		name:     "shared",
		external: true,
	}, nil
}

// HAL returns the HAL device.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the HAL queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// External reports whether the device is owned by a provider.
func (d *Device) External() bool { return d.external }

// Destroy closes an owned device and its instance. Shared devices are left
// to their owner. Safe to call multiple times.
func (d *Device) Destroy() {
	if !d.external && d.device != nil {
		d.device.Destroy()
	}
	d.device = nil
	d.queue = nil
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
