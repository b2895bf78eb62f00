// Package skeleton is an in-memory scene graph of named joints. Each node
// carries a local translation, rotation and non-uniform scale; world
// placement is the product of the local matrices from the root down.
package skeleton

import (
	"math"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a plain local translation/rotation/scale record.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// Identity returns the neutral transform.
func Identity() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Matrix composes T * R * S.
func (t Transform) Matrix() mgl64.Mat4 {
	tr := mgl64.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	rot := t.Rotation.Normalize().Mat4()
	sc := mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(rot).Mul4(sc)
}

// Finite reports whether no component is NaN or infinite.
func (t Transform) Finite() bool {
	vals := []float64{
		t.Position[0], t.Position[1], t.Position[2],
		t.Rotation.W, t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2],
		t.Scale[0], t.Scale[1], t.Scale[2],
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Node is one joint of the tree.
type Node struct {
	Name string
	Transform

	// Meshes are renderers whose bounds follow this node.
	Meshes []*Mesh

	parent   *Node
	children []*Node
}

// NewNode creates a detached node with an identity transform.
func NewNode(name string) *Node {
	return &Node{Name: name, Transform: Identity()}
}

// AddChild attaches child under n, detaching it from any previous parent.
// It returns child for chaining.
func (n *Node) AddChild(child *Node) *Node {
	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	return child
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child list. Callers must not modify it.
func (n *Node) Children() []*Node { return n.children }

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the i-th child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// LocalMatrix returns the node's own TRS matrix.
func (n *Node) LocalMatrix() mgl64.Mat4 { return n.Transform.Matrix() }

// WorldMatrix returns the accumulated matrix from the root to n.
func (n *Node) WorldMatrix() mgl64.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

// ParentWorldMatrix returns the world matrix of the parent, identity for a root.
func (n *Node) ParentWorldMatrix() mgl64.Mat4 {
	if n.parent == nil {
		return mgl64.Ident4()
	}
	return n.parent.WorldMatrix()
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() mgl64.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// SetWorldPosition moves the node so its origin lands on p. Descendants move with it.
func (n *Node) SetWorldPosition(p mgl64.Vec3) {
	if n.parent == nil {
		n.Position = p
		return
	}
	inv := n.parent.WorldMatrix().Inv()
	n.Position = mgl64.TransformCoordinate(p, inv)
}

// TransformPoint maps a point from n's local space to world space.
func (n *Node) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, n.WorldMatrix())
}

// InverseTransformPoint maps a world point into n's local space, scale included.
func (n *Node) InverseTransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, n.WorldMatrix().Inv())
}

// Walk visits n and its descendants depth first, pre-order. Returning false
// from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node named name in a depth-first walk.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Path returns the slash-joined names from the tree root down to n.
func (n *Node) Path() string {
	var parts []string
	for c := n; c != nil; c = c.parent {
		parts = append(parts, c.Name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

// FindPath returns the node at path, whose first segment must name n.
// Among siblings sharing a name the first one is taken.
func (n *Node) FindPath(path string) *Node {
	parts := strings.Split(path, "/")
	if parts[0] != n.Name {
		return nil
	}
	cur := n
	for _, name := range parts[1:] {
		var next *Node
		for _, c := range cur.children {
			if c.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Descendants returns n and every node below it in walk order.
func (n *Node) Descendants() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		out = append(out, c)
		return true
	})
	return out
}
