// Package mutate writes scale and placement changes onto a skeleton.
//
// Bone scales are given as the change a joint's own frame should end up with
// relative to the moment the Mutator was created. The Mutator divides out the
// part a joint already inherits from scaled ancestors, so setting a thigh and
// a calf to the same factor scales both segments once instead of compounding,
// and setting a hand to one keeps it at its original size.
package mutate

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

var one = mgl64.Vec3{1, 1, 1}

// Mutator applies scale vectors and translations to one skeleton.
type Mutator struct {
	root  *skeleton.Node
	bones bonemap.Map

	// intended accumulated change per explicitly scaled node
	intended map[*skeleton.Node]mgl64.Vec3
	// local scale of a node before its first change
	original map[*skeleton.Node]mgl64.Vec3
}

// New creates a Mutator. The current skeleton state is the reference for
// every later SetBoneScale call.
func New(root *skeleton.Node, bones bonemap.Map) *Mutator {
	return &Mutator{
		root:     root,
		bones:    bones,
		intended: make(map[*skeleton.Node]mgl64.Vec3),
		original: make(map[*skeleton.Node]mgl64.Vec3),
	}
}

// SetBoneScale gives the joint bound to role the accumulated scale change v,
// expressed along its own local axes. Unbound roles are ignored and report
// false. Scaled descendants are re-derived so the order of calls does not matter.
func (m *Mutator) SetBoneScale(role humanoid.Role, v mgl64.Vec3) (bool, error) {
	n := m.bones.Get(role)
	if n == nil {
		return false, nil
	}
	return true, m.SetNodeScale(n, v)
}

// SetNodeScale is SetBoneScale for an explicit node.
func (m *Mutator) SetNodeScale(n *skeleton.Node, v mgl64.Vec3) error {
	if err := checkScale(v); err != nil {
		return fmt.Errorf("scale %s: %w", n.Name, err)
	}
	if _, ok := m.original[n]; !ok {
		m.original[n] = n.Scale
	}
	m.intended[n] = v
	n.Walk(func(c *skeleton.Node) bool {
		if _, ok := m.intended[c]; ok {
			m.apply(c)
		}
		return true
	})
	return nil
}

// Accumulated returns the scale change of n's frame since the Mutator was
// created, along n's local axes.
func (m *Mutator) Accumulated(n *skeleton.Node) mgl64.Vec3 {
	if v, ok := m.intended[n]; ok {
		return v
	}
	return m.inherited(n)
}

// inherited maps the parent's accumulated change onto n's axes: each axis of
// n, seen in the parent frame, is stretched by the parent's per-axis change.
// Exact when n's rotation is axis aligned with its parent.
func (m *Mutator) inherited(n *skeleton.Node) mgl64.Vec3 {
	p := n.Parent()
	if p == nil {
		return one
	}
	pa := m.Accumulated(p)
	if pa == one {
		return one
	}
	rot := n.Rotation.Normalize()
	var out mgl64.Vec3
	for i := 0; i < 3; i++ {
		var axis mgl64.Vec3
		axis[i] = 1
		d := rot.Rotate(axis)
		out[i] = mgl64.Vec3{d[0] * pa[0], d[1] * pa[1], d[2] * pa[2]}.Len()
	}
	return out
}

func (m *Mutator) apply(n *skeleton.Node) {
	want := m.intended[n]
	inh := m.inherited(n)
	orig := m.original[n]
	n.Scale = mgl64.Vec3{
		orig[0] * want[0] / inh[0],
		orig[1] * want[1] / inh[1],
		orig[2] * want[2] / inh[2],
	}
}

// SetWholeBodyScale multiplies the root's local scale uniformly by ratio.
func (m *Mutator) SetWholeBodyScale(ratio float64) error {
	if !finite(ratio) {
		return fmt.Errorf("whole body scale: %w", ErrNonFinite)
	}
	if ratio <= 0 {
		return fmt.Errorf("whole body scale %g: %w", ratio, ErrNonPositive)
	}
	m.root.Scale = m.root.Scale.Mul(ratio)
	return nil
}

// Translate moves the root by a world-space offset.
func (m *Mutator) Translate(offset mgl64.Vec3) error {
	for _, c := range offset {
		if !finite(c) {
			return fmt.Errorf("translate: %w", ErrNonFinite)
		}
	}
	m.root.SetWorldPosition(m.root.WorldPosition().Add(offset))
	return nil
}

// SetRootHorizontal places the root at world x, z keeping its height.
func (m *Mutator) SetRootHorizontal(x, z float64) error {
	if !finite(x) || !finite(z) {
		return fmt.Errorf("center: %w", ErrNonFinite)
	}
	p := m.root.WorldPosition()
	m.root.SetWorldPosition(mgl64.Vec3{x, p.Y(), z})
	return nil
}

// ResetScales sets the local scale of every node under root to one.
func ResetScales(root *skeleton.Node) int {
	count := 0
	root.Walk(func(n *skeleton.Node) bool {
		if n.Scale != one {
			n.Scale = one
			count++
		}
		return true
	})
	return count
}

func checkScale(v mgl64.Vec3) error {
	for _, c := range v {
		if !finite(c) {
			return ErrNonFinite
		}
		if c <= 0 {
			return ErrNonPositive
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
