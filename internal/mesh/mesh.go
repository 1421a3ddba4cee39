// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mesh produces the static geometry the renderer uploads once:
// vertex-colored convex solids with uint16 triangle lists.
//
// Triangles are wound counter-clockwise when seen from outside the solid,
// which is the front face of the default pipeline state.
package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
)

// VertexSize is the encoded size of a Vertex in bytes.
const VertexSize = 28

// Vertex is a position and an RGBA color.
type Vertex struct {
	Position [3]float32
	Color    [4]float32
}

// Kind selects a built-in solid.
type Kind int

const (
	// KindCube is a unit cube: 8 vertices, 12 triangles.
	KindCube Kind = iota
	// KindHexPrism is a hexagonal prism: 12 vertices, 20 triangles.
	KindHexPrism
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindCube:
		return "cube"
	case KindHexPrism:
		return "hexprism"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ParseKind parses a kind name as printed by String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "cube":
		return KindCube, nil
	case "hexprism":
		return KindHexPrism, nil
	default:
		return 0, fmt.Errorf("mesh: unknown kind %q", s)
	}
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Kind     Kind
	Vertices []Vertex
	Indices  []uint16
}

// New builds the solid of the given kind with per-vertex colors drawn from
// a generator seeded with seed.
func New(kind Kind, seed uint64) (*Mesh, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	switch kind {
	case KindCube:
		return Cube(rng), nil
	case KindHexPrism:
		return HexPrism(rng), nil
	default:
		return nil, fmt.Errorf("mesh: unknown kind %d", int(kind))
	}
}

// Cube returns a unit cube centered on the origin.
func Cube(rng *rand.Rand) *Mesh {
	positions := [][3]float32{
		{-0.5, 0.5, -0.5},
		{0.5, 0.5, -0.5},
		{0.5, -0.5, -0.5},
		{-0.5, -0.5, -0.5},
		{-0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5},
		{0.5, -0.5, 0.5},
		{-0.5, -0.5, 0.5},
	}
	m := &Mesh{Kind: KindCube, Vertices: colored(positions, rng)}
	m.Indices = []uint16{
		0, 2, 1, 0, 3, 2, // front (-z)
		4, 5, 6, 4, 6, 7, // back (+z)
		4, 1, 5, 4, 0, 1, // top
		3, 6, 2, 3, 7, 6, // bottom
		1, 6, 5, 1, 2, 6, // right
		4, 3, 0, 4, 7, 3, // left
	}
	return m
}

// HexPrism returns a hexagonal prism of circumradius 0.5 and height 1
// centered on the origin.
func HexPrism(rng *rand.Rand) *Mesh {
	positions := make([][3]float32, 0, 12)
	for _, y := range []float32{0.5, -0.5} {
		for i := 0; i < 6; i++ {
			a := float64(i) * math.Pi / 3
			positions = append(positions, [3]float32{
				float32(0.5 * math.Cos(a)), y, float32(0.5 * math.Sin(a)),
			})
		}
	}
	m := &Mesh{Kind: KindHexPrism, Vertices: colored(positions, rng)}

	var tris [][3]uint16
	for i := uint16(1); i < 5; i++ {
		tris = append(tris, [3]uint16{0, i, i + 1})         // top cap
		tris = append(tris, [3]uint16{6, 6 + i, 6 + i + 1}) // bottom cap
	}
	for i := uint16(0); i < 6; i++ {
		j := (i + 1) % 6
		tris = append(tris, [3]uint16{i, j, j + 6}, [3]uint16{i, j + 6, i + 6})
	}
	for _, t := range tris {
		t = m.orient(t)
		m.Indices = append(m.Indices, t[0], t[1], t[2])
	}
	return m
}

// orient returns t wound counter-clockwise seen from outside. The solid is
// convex and centered on the origin, so the triangle centroid points out.
func (m *Mesh) orient(t [3]uint16) [3]uint16 {
	if m.Facing(t) > 0 {
		return [3]uint16{t[0], t[2], t[1]}
	}
	return t
}

// Facing returns the dot product of the triangle's winding normal with its
// centroid. Counter-clockwise triangles seen from outside give a negative
// value in the left-handed coordinate system the camera uses.
func (m *Mesh) Facing(t [3]uint16) float32 {
	a, b, c := m.Vertices[t[0]].Position, m.Vertices[t[1]].Position, m.Vertices[t[2]].Position
	ab := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	ac := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float32{
		ab[1]*ac[2] - ab[2]*ac[1],
		ab[2]*ac[0] - ab[0]*ac[2],
		ab[0]*ac[1] - ab[1]*ac[0],
	}
	var dot float32
	for i := 0; i < 3; i++ {
		dot += n[i] * (a[i] + b[i] + c[i]) / 3
	}
	return dot
}

// Validate checks that the mesh is a non-empty triangle list whose indices
// address existing vertices.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 || len(m.Vertices) > math.MaxUint16+1 {
		return fmt.Errorf("mesh: %d vertices", len(m.Vertices))
	}
	if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh: %d indices is not a triangle list", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("mesh: index %d at %d out of range", idx, i)
		}
	}
	return nil
}

// VertexBytes encodes the vertices as little-endian float32, VertexSize
// bytes each.
func (m *Mesh) VertexBytes() []byte {
	out := make([]byte, 0, len(m.Vertices)*VertexSize)
	for _, v := range m.Vertices {
		for _, f := range v.Position {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		for _, f := range v.Color {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

// IndexBytes encodes the indices as little-endian uint16.
func (m *Mesh) IndexBytes() []byte {
	out := make([]byte, 0, len(m.Indices)*2)
	for _, idx := range m.Indices {
		out = binary.LittleEndian.AppendUint16(out, idx)
	}
	return out
}

func colored(positions [][3]float32, rng *rand.Rand) []Vertex {
	vs := make([]Vertex, len(positions))
	for i, p := range positions {
		vs[i] = Vertex{
			Position: p,
			Color:    [4]float32{rng.Float32(), rng.Float32(), rng.Float32(), 1},
		}
	}
	return vs
}
