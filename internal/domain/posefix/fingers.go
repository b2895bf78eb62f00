// Package posefix holds the cosmetic pose adjustments run after scaling:
// spreading the fingers apart for controller tracking and moving the hip
// joint up toward the spine.
package posefix

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

const (
	// DefaultSpreadFactor leaves the fingers as they are.
	DefaultSpreadFactor = 1.0
	// MaxSpreadFactor is the widest supported spread.
	MaxSpreadFactor = 2.0
)

// Degrees of rotation about the proximal joint's local X per unit of
// (factor - 1). Positive spreads forward.
var fingerSpread = map[humanoid.Finger]float64{
	humanoid.Index:  15,
	humanoid.Middle: 5,
	humanoid.Ring:   -10,
	humanoid.Little: -20,
}

// Thumb rotation in degrees per unit of (factor - 1), right hand. The left
// hand mirrors both.
const (
	thumbYaw  = 10.0
	thumbRoll = 30.0
)

// Finder locates a role below a joint by name when the bone map has no
// binding for it. *bonemap.Resolver implements it.
type Finder interface {
	FindUnder(start *skeleton.Node, role humanoid.Role) *skeleton.Node
}

// SpreadOptions configures SpreadFingers.
type SpreadOptions struct {
	// Factor is 0 for fingers pressed together, 1 for unchanged, 2 for widest.
	Factor float64
	// SpareThumb leaves the thumbs alone.
	SpareThumb bool
	// Finder is consulted for unbound proximal joints. Optional.
	Finder Finder
}

// SpreadFingers rotates the proximal joint of every finger on both hands by
// its fixed spread offset scaled by Factor-1. It returns the number of
// joints rotated; a missing hand or finger is skipped.
func SpreadFingers(bones bonemap.Map, opts SpreadOptions) (int, error) {
	if math.IsNaN(opts.Factor) || opts.Factor < 0 || opts.Factor > MaxSpreadFactor {
		return 0, fmt.Errorf("%w: %g", ErrInvalidSpread, opts.Factor)
	}
	mult := opts.Factor - 1
	count := 0
	for _, side := range []humanoid.Side{humanoid.Left, humanoid.Right} {
		hand := bones.Get(humanoid.Arm(side).End)
		if hand == nil {
			continue
		}
		for _, f := range humanoid.Fingers() {
			if f == humanoid.Thumb && opts.SpareThumb {
				continue
			}
			role := humanoid.FingerRole(side, f, humanoid.Proximal)
			n := bones.Get(role)
			if n == nil && opts.Finder != nil {
				n = opts.Finder.FindUnder(hand, role)
			}
			if n == nil {
				continue
			}
			n.Rotation = n.Rotation.Mul(SpreadRotation(side, f, mult)).Normalize()
			count++
		}
	}
	return count, nil
}

// SpreadRotation is the local rotation added to a proximal joint for a
// spread multiplier of mult.
func SpreadRotation(side humanoid.Side, f humanoid.Finger, mult float64) mgl64.Quat {
	if f == humanoid.Thumb {
		sign := 1.0
		if side == humanoid.Left {
			sign = -1
		}
		yaw := mgl64.DegToRad(thumbYaw * mult * sign)
		roll := mgl64.DegToRad(thumbRoll * mult * sign)
		// Roll about Z, then yaw about Y.
		return mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0}).Mul(mgl64.QuatRotate(roll, mgl64.Vec3{0, 0, 1}))
	}
	return mgl64.QuatRotate(mgl64.DegToRad(fingerSpread[f]*mult), mgl64.Vec3{1, 0, 0})
}
