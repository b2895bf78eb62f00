package posefix

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
)

// HipRatio is how far from the leg joints toward the spine the hips move.
const HipRatio = 0.9

// NudgeHips moves the hip joint to HipRatio of the way from the average
// leg joint height to the spine, under the spine horizontally. Every child
// of the hips keeps its world position.
func NudgeHips(bones bonemap.Map) (mgl64.Vec3, error) {
	hips, spine := bones.Get(humanoid.Hips), bones.Get(humanoid.Spine)
	left, right := bones.Get(humanoid.LeftUpperLeg), bones.Get(humanoid.RightUpperLeg)
	if hips == nil || spine == nil || left == nil || right == nil {
		missing := bones.Missing([]humanoid.Role{humanoid.Hips, humanoid.Spine, humanoid.LeftUpperLeg, humanoid.RightUpperLeg})
		return mgl64.Vec3{}, fmt.Errorf("%w: %v", ErrMissingBones, missing)
	}

	children := hips.Children()
	held := make([]mgl64.Vec3, len(children))
	for i, c := range children {
		held[i] = c.WorldPosition()
	}

	legY := (left.WorldPosition().Y() + right.WorldPosition().Y()) / 2
	sp := spine.WorldPosition()
	target := mgl64.Vec3{sp.X(), legY + HipRatio*(sp.Y()-legY), sp.Z()}
	hips.SetWorldPosition(target)

	for i, c := range children {
		c.SetWorldPosition(held[i])
	}
	return target, nil
}
