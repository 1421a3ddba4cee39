// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Matrices transform column vectors, p' = M * p, so the chain
// projection * view * world applies world first. mgl32 supplies the
// rotations and products; only the left-handed camera matrices with a
// [0, 1] depth range are built here.

// LookAtLH returns a left-handed view matrix for a camera at eye looking
// at target.
func LookAtLH(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	z := target.Sub(eye).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return mgl32.Mat4FromRows(
		x.Vec4(-x.Dot(eye)),
		y.Vec4(-y.Dot(eye)),
		z.Vec4(-z.Dot(eye)),
		mgl32.Vec4{0, 0, 0, 1},
	)
}

// PerspectiveFovLH returns a left-handed perspective projection mapping
// depth [near, far] to [0, 1].
func PerspectiveFovLH(fovY, aspect, near, far float32) mgl32.Mat4 {
	h := float32(1 / math.Tan(float64(fovY)/2))
	w := h / aspect
	r := far / (far - near)
	return mgl32.Mat4FromRows(
		mgl32.Vec4{w, 0, 0, 0},
		mgl32.Vec4{0, h, 0, 0},
		mgl32.Vec4{0, 0, r, -r * near},
		mgl32.Vec4{0, 0, 1, 0},
	)
}

// TransformPoint returns m * (p, 1).
func TransformPoint(p mgl32.Vec3, m mgl32.Mat4) mgl32.Vec4 {
	return m.Mul4x1(p.Vec4(1))
}
