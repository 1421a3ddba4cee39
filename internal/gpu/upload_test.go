// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newTestAllocator(t *testing.T, budget uint64) (*Allocator, *countingDevice) {
	t.Helper()
	device, _, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	dev := &countingDevice{Device: device}
	return newAllocator(dev, NewBudget(budget)), dev
}

func TestBufferKindString(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{BufferImmutable.String(), "Immutable"},
		{BufferPersistent.String(), "Persistent"},
		{BufferKind(5).String(), "Unknown(5)"},
		{BufferMapStateUnmapped.String(), "Unmapped"},
		{BufferMapStateMapped.String(), "Mapped"},
		{BufferMapStateSealed.String(), "Sealed"},
		{BufferMapState(5).String(), "Unknown(5)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCreateAndUploadExactCopy(t *testing.T) {
	a, dev := newTestAllocator(t, 0)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	buf, err := a.CreateAndUpload("vertices", gputypes.BufferUsageVertex, uint64(len(data)), data)
	if err != nil {
		t.Fatalf("CreateAndUpload() error = %v", err)
	}
	defer buf.Destroy()

	if dev.maps != 1 || dev.unmaps != 1 {
		t.Errorf("maps = %d, unmaps = %d, want one transient mapping", dev.maps, dev.unmaps)
	}
	if got := deviceBytes(t, dev.Device, buf.Raw(), buf.Size()); !bytes.Equal(got, data) {
		t.Errorf("device memory = %v, want %v", got, data)
	}
	if buf.Kind() != BufferImmutable {
		t.Errorf("Kind = %v, want Immutable", buf.Kind())
	}
	if buf.MapState() != BufferMapStateSealed {
		t.Errorf("MapState = %v, want Sealed", buf.MapState())
	}
	if buf.Usage()&gputypes.BufferUsageMapWrite == 0 || buf.Usage()&gputypes.BufferUsageVertex == 0 {
		t.Errorf("Usage = %v, want Vertex|MapWrite", buf.Usage())
	}
	if buf.Raw() == nil {
		t.Error("Raw() = nil for live buffer")
	}
	if len(dev.descs) != 1 || dev.descs[0].Label != "vertices" {
		t.Errorf("device descriptors = %+v", dev.descs)
	}
}

func TestCreateAndUploadAlignsSize(t *testing.T) {
	a, dev := newTestAllocator(t, 0)

	data := []byte{1, 2, 3, 4, 5, 6}
	buf, err := a.CreateAndUpload("indices", gputypes.BufferUsageIndex, 6, data)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	if buf.Size() != 8 {
		t.Errorf("Size = %d, want 8", buf.Size())
	}
	want := []byte{1, 2, 3, 4, 5, 6, 0, 0}
	if got := deviceBytes(t, dev.Device, buf.Raw(), 8); !bytes.Equal(got, want) {
		t.Errorf("device memory = %v, want %v", got, want)
	}
}

func TestCreateAndUploadErrors(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		data    []byte
		budget  uint64
		devErr  error
		wantErr []error
	}{
		{"zero size", 0, nil, 0, nil, []error{ErrAllocation, ErrInvalidBufferSize}},
		{"data larger than buffer", 4, make([]byte, 8), 0, nil, []error{ErrMapping, ErrInvalidMapRange}},
		{"budget exhausted", MinBudgetBytes + 4, nil, MinBudgetBytes, nil, []error{ErrAllocation, ErrBudgetExceeded}},
		{"device failure", 16, nil, 0, errNative, []error{ErrAllocation, errNative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, dev := newTestAllocator(t, tt.budget)
			dev.failErr = tt.devErr

			buf, err := a.CreateAndUpload("test", gputypes.BufferUsageVertex, tt.size, tt.data)
			if buf != nil {
				t.Error("buffer returned on failure")
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("err = %v, want %v", err, want)
				}
			}
			if used := a.Budget().Stats().UsedBytes; used != 0 {
				t.Errorf("budget leaked %d bytes", used)
			}
		})
	}
}

func TestCreateAndUploadMappingFailure(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*countingDevice)
		unmaps int
	}{
		{"map", func(d *countingDevice) { d.mapErr = errNative }, 0},
		{"unmap", func(d *countingDevice) { d.unmapErr = errNative }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, dev := newTestAllocator(t, 0)
			tt.setup(dev)

			_, err := a.CreateAndUpload("test", gputypes.BufferUsageVertex, 4, []byte{1, 2, 3, 4})
			if !errors.Is(err, ErrMapping) || !errors.Is(err, errNative) {
				t.Fatalf("err = %v, want ErrMapping wrapping the device error", err)
			}
			if dev.unmaps != tt.unmaps {
				t.Errorf("unmaps = %d, want %d", dev.unmaps, tt.unmaps)
			}
			if dev.destroyed != 1 {
				t.Errorf("destroyed = %d, want the failed buffer released", dev.destroyed)
			}
			if used := a.Budget().Stats().UsedBytes; used != 0 {
				t.Errorf("budget leaked %d bytes", used)
			}
		})
	}
}

func TestImmutableBufferSealed(t *testing.T) {
	a, _ := newTestAllocator(t, 0)
	buf, err := a.CreateAndUpload("test", gputypes.BufferUsageIndex, 4, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	err = buf.withMapping(func([]byte) error { return nil })
	if !errors.Is(err, ErrMapping) || !errors.Is(err, ErrBufferSealed) {
		t.Errorf("second mapping = %v, want ErrMapping and ErrBufferSealed", err)
	}
	if _, err := buf.mapPersistent(); !errors.Is(err, ErrMapping) {
		t.Errorf("persistent mapping of immutable buffer = %v, want ErrMapping", err)
	}
}

func TestCreatePersistentTarget(t *testing.T) {
	a, dev := newTestAllocator(t, 0)

	buf, m, err := a.CreatePersistentTarget("constants", gputypes.BufferUsageUniform, 192)
	if err != nil {
		t.Fatalf("CreatePersistentTarget() error = %v", err)
	}
	defer buf.Destroy()

	if buf.Size() != 4096 {
		t.Errorf("Size = %d, want 4096", buf.Size())
	}
	if buf.Kind() != BufferPersistent || buf.MapState() != BufferMapStateMapped {
		t.Errorf("Kind = %v, MapState = %v", buf.Kind(), buf.MapState())
	}
	if buf.Usage()&gputypes.BufferUsageMapWrite == 0 {
		t.Errorf("Usage = %v, want MapWrite", buf.Usage())
	}
	if m.Buffer() != buf {
		t.Error("Mapping.Buffer() is not the created buffer")
	}

	for frame := byte(1); frame <= 3; frame++ {
		payload := bytes.Repeat([]byte{frame}, 192)
		if err := m.Write(0, payload); err != nil {
			t.Fatalf("Write frame %d: %v", frame, err)
		}
		if got := deviceBytes(t, dev.Device, buf.Raw(), 192); !bytes.Equal(got, payload) {
			t.Errorf("frame %d: device memory not updated", frame)
		}
	}
	// Coherent memory keeps the single mapping taken at creation.
	if dev.maps != 1 || dev.unmaps != 0 {
		t.Errorf("maps = %d, unmaps = %d, want the lifetime mapping only", dev.maps, dev.unmaps)
	}
	if buf.MapState() != BufferMapStateMapped {
		t.Errorf("mapping released by writes: %v", buf.MapState())
	}

	if err := m.Write(4000, make([]byte, 200)); !errors.Is(err, ErrInvalidMapRange) {
		t.Errorf("out of range Write = %v, want ErrInvalidMapRange", err)
	}

	m.Release()
	if dev.unmaps != 1 {
		t.Errorf("Release unmapped %d times, want 1", dev.unmaps)
	}
	if m.Bytes() != nil {
		t.Error("Bytes() after Release should be nil")
	}
	if err := m.Write(0, []byte{1}); !errors.Is(err, ErrMapping) {
		t.Errorf("Write after Release = %v, want ErrMapping", err)
	}
}

func TestMappingBytesAreDeviceMemory(t *testing.T) {
	a, dev := newTestAllocator(t, 0)
	buf, m, err := a.CreatePersistentTarget("constants", gputypes.BufferUsageUniform, 192)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	// A store through the retained view lands in the buffer the GPU reads.
	m.Bytes()[17] = 0xAB
	if got := deviceBytes(t, dev.Device, buf.Raw(), 192); got[17] != 0xAB {
		t.Errorf("device byte 17 = %#x, want 0xab", got[17])
	}
	if dev.maps != 1 {
		t.Errorf("MapBuffer calls = %d, want 1", dev.maps)
	}
}

func TestMappingFlushesIncoherentMemory(t *testing.T) {
	a, dev := newTestAllocator(t, 0)
	dev.incoherent = true
	buf, m, err := a.CreatePersistentTarget("constants", gputypes.BufferUsageUniform, 192)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	if err := m.Write(0, []byte{9, 9}); err != nil {
		t.Fatal(err)
	}
	// Unmap flushes the written range, then the lifetime mapping is retaken.
	if dev.unmaps != 1 || dev.maps != 2 {
		t.Errorf("maps = %d, unmaps = %d, want a flush and a remap", dev.maps, dev.unmaps)
	}
	if buf.MapState() != BufferMapStateMapped {
		t.Errorf("MapState = %v after flush, want Mapped", buf.MapState())
	}
	if got := deviceBytes(t, dev.Device, buf.Raw(), 2); !bytes.Equal(got, []byte{9, 9}) {
		t.Errorf("device memory = %v, want [9 9]", got)
	}
}

func TestMappingRefusesInFlightWrite(t *testing.T) {
	a, dev := newTestAllocator(t, 0)
	buf, m, err := a.CreatePersistentTarget("constants", gputypes.BufferUsageUniform, 192)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	s, g := newTestSynchronizer(DefaultFenceTimeout)
	g.hung = true
	m.SetGuard(s)

	if err := m.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write while idle: %v", err)
	}

	v, _ := s.SignalAfterSubmit()
	err = m.Write(0, []byte{2})
	if !errors.Is(err, ErrMapping) || !errors.Is(err, ErrBufferInFlight) {
		t.Fatalf("Write in flight = %v, want ErrMapping and ErrBufferInFlight", err)
	}
	if got := deviceBytes(t, dev.Device, buf.Raw(), 1); got[0] != 1 {
		t.Error("in-flight write reached the buffer")
	}

	g.complete(v)
	if err := s.WaitUntilComplete(v); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(0, []byte{3}); err != nil {
		t.Errorf("Write after wait: %v", err)
	}
}

func TestBufferDestroy(t *testing.T) {
	a, dev := newTestAllocator(t, 0)
	buf, _, err := a.CreatePersistentTarget("constants", gputypes.BufferUsageUniform, 16)
	if err != nil {
		t.Fatal(err)
	}
	if a.Budget().Stats().BufferCount != 1 {
		t.Fatal("buffer not tracked by budget")
	}

	buf.Destroy()
	buf.Destroy()

	if dev.destroyed != 1 {
		t.Errorf("destroyed = %d, want 1", dev.destroyed)
	}
	if dev.unmaps != 1 {
		t.Errorf("unmaps = %d, want the lifetime mapping dropped once", dev.unmaps)
	}
	if buf.Raw() != nil {
		t.Error("Raw() after Destroy should be nil")
	}
	if s := a.Budget().Stats(); s.BufferCount != 0 || s.UsedBytes != 0 {
		t.Errorf("budget after Destroy = %+v", s)
	}
	if err := buf.withMapping(func([]byte) error { return nil }); !errors.Is(err, ErrBufferDestroyed) {
		t.Errorf("mapping destroyed buffer = %v, want ErrBufferDestroyed", err)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{192, 4096, 4096},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}
