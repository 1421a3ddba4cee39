// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scene holds the CPU-side state that feeds the constant buffer:
// an orbit camera driven by pointer drags and the world, view and
// projection matrices derived from it.
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DragSensitivity converts pointer movement in pixels to radians.
const DragSensitivity = 0.01

// Camera is a fixed viewpoint looking at a mesh that rotates about its
// X and Y axes.
type Camera struct {
	RotationX float32
	RotationY float32

	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	FovY float32
	Near float32
	Far  float32
}

// NewCamera returns the default camera: eye at (2, 2, -2) looking at the
// origin, 45 degree vertical field of view, depth range [0.1, 100].
func NewCamera() *Camera {
	return &Camera{
		Eye:    mgl32.Vec3{2, 2, -2},
		Target: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   math.Pi / 4,
		Near:   0.1,
		Far:    100,
	}
}

// Drag rotates the mesh by a pointer movement of (dx, dy) pixels.
func (c *Camera) Drag(dx, dy float32) {
	c.RotationY -= dx * DragSensitivity
	c.RotationX -= dy * DragSensitivity
}

// Rotate adds angles in radians.
func (c *Camera) Rotate(rx, ry float32) {
	c.RotationX += rx
	c.RotationY += ry
}

// World rotates about X, then about Y.
func (c *Camera) World() mgl32.Mat4 {
	return mgl32.HomogRotate3DY(c.RotationY).Mul4(mgl32.HomogRotate3DX(c.RotationX))
}

// View returns the look-at matrix.
func (c *Camera) View() mgl32.Mat4 {
	return LookAtLH(c.Eye, c.Target, c.Up)
}

// Projection returns the perspective matrix for the given aspect ratio.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	return PerspectiveFovLH(c.FovY, aspect, c.Near, c.Far)
}

// Transforms returns the three matrices for a target of width x height.
func (c *Camera) Transforms(width, height uint32) Transforms {
	aspect := float32(1)
	if height != 0 {
		aspect = float32(width) / float32(height)
	}
	return Transforms{
		World:      c.World(),
		View:       c.View(),
		Projection: c.Projection(aspect),
	}
}
