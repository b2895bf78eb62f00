package scaling

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

// Axis is a signed local axis: Index 0, 1, 2 for X, Y, Z.
type Axis struct {
	Index int
	Sign  float64
}

// AxisY is the fallback length axis.
var AxisY = Axis{Index: 1, Sign: 1}

// Vector returns the unit vector of the axis.
func (a Axis) Vector() mgl64.Vec3 {
	var v mgl64.Vec3
	v[a.Index] = a.Sign
	return v
}

func (a Axis) String() string {
	s := "+"
	if a.Sign < 0 {
		s = "-"
	}
	return s + [...]string{"X", "Y", "Z"}[a.Index]
}

// AxisOf returns the dominant signed axis of a child offset in the bone's
// local frame. Ties prefer Y, then X, then Z; a zero offset gives +Y.
func AxisOf(offset mgl64.Vec3) Axis {
	best, bestAbs := -1, eps
	for _, i := range [...]int{1, 0, 2} {
		if a := math.Abs(offset[i]); a > bestAbs {
			best, bestAbs = i, a
		}
	}
	if best < 0 {
		return AxisY
	}
	sign := 1.0
	if offset[best] < 0 {
		sign = -1
	}
	return Axis{Index: best, Sign: sign}
}

// BoneAxis detects the length axis of n from its first child's local
// position. A leaf bone gives +Y.
func BoneAxis(n *skeleton.Node) Axis {
	if n == nil || n.ChildCount() == 0 {
		return AxisY
	}
	return AxisOf(n.Child(0).Position)
}

// DirectionalScale puts length on the axis and thickness on the other two.
func DirectionalScale(a Axis, length, thickness float64) mgl64.Vec3 {
	v := mgl64.Vec3{thickness, thickness, thickness}
	v[a.Index] = length
	return v
}

// Clamp bounds for every factor written to a bone.
const (
	MinScale = 0.1
	MaxScale = 10.0
)

// ClampScale bounds v to [MinScale, MaxScale] and reports whether it moved.
// NaN becomes one.
func ClampScale(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return 1, true
	case v < MinScale:
		return MinScale, true
	case v > MaxScale:
		return MaxScale, true
	}
	return v, false
}
