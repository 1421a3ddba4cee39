// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PayloadSize is the constant-buffer payload size: three 4x4 float32
// matrices.
const PayloadSize = 3 * 64

// Transforms is the constant-buffer payload in CPU layout.
type Transforms struct {
	World      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// Payload encodes world, view and projection in that order. Each matrix
// is transposed before it is written in mgl32's column-major order, so
// the shader applies it to a row vector on the left.
func (t Transforms) Payload() []byte {
	return t.AppendPayload(make([]byte, 0, PayloadSize))
}

// AppendPayload appends the encoded payload to dst.
func (t Transforms) AppendPayload(dst []byte) []byte {
	for _, m := range []mgl32.Mat4{t.World, t.View, t.Projection} {
		for _, f := range m.Transpose() {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
		}
	}
	return dst
}

// DecodePayload reverses Payload.
func DecodePayload(b []byte) (Transforms, error) {
	if len(b) < PayloadSize {
		return Transforms{}, fmt.Errorf("scene: payload of %d bytes, want %d", len(b), PayloadSize)
	}
	var ms [3]mgl32.Mat4
	for i := range ms {
		var m mgl32.Mat4
		for j := range m {
			m[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*64+j*4:]))
		}
		ms[i] = m.Transpose()
	}
	return Transforms{World: ms[0], View: ms[1], Projection: ms[2]}, nil
}
