package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a renderer whose local-space bounding box follows its node.
type Mesh struct {
	Name    string
	Enabled bool
	Bounds  r3.Box
}

// WorldBounds returns the axis-aligned box enclosing the mesh bounds
// transformed by the node's world matrix.
func (m *Mesh) WorldBounds(owner *Node) r3.Box {
	world := owner.WorldMatrix()
	lo, hi := m.Bounds.Min, m.Bounds.Max
	out := r3.Box{
		Min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for i := 0; i < 8; i++ {
		c := mgl64.Vec3{lo.X, lo.Y, lo.Z}
		if i&1 != 0 {
			c[0] = hi.X
		}
		if i&2 != 0 {
			c[1] = hi.Y
		}
		if i&4 != 0 {
			c[2] = hi.Z
		}
		w := mgl64.TransformCoordinate(c, world)
		out.Min.X = math.Min(out.Min.X, w[0])
		out.Min.Y = math.Min(out.Min.Y, w[1])
		out.Min.Z = math.Min(out.Min.Z, w[2])
		out.Max.X = math.Max(out.Max.X, w[0])
		out.Max.Y = math.Max(out.Max.Y, w[1])
		out.Max.Z = math.Max(out.Max.Z, w[2])
	}
	return out
}

// MeshBounds returns the world bounds of every enabled mesh under root.
func MeshBounds(root *Node) []r3.Box {
	var out []r3.Box
	root.Walk(func(n *Node) bool {
		for _, m := range n.Meshes {
			if m == nil || !m.Enabled {
				continue
			}
			out = append(out, m.WorldBounds(n))
		}
		return true
	})
	return out
}

// Size returns the extents of a box.
func Size(b r3.Box) r3.Vec {
	return r3.Sub(b.Max, b.Min)
}
