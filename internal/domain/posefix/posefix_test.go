package posefix_test

import (
	"errors"
	"maps"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/posefix"
	"github.com/okian/immersivescaler/internal/domain/rigtest"
)

func shouldBeRotation(actual interface{}, expected ...interface{}) string {
	a := actual.(mgl64.Quat)
	e := expected[0].(mgl64.Quat)
	if a.OrientationEqualThreshold(e, 1e-9) {
		return ""
	}
	return "rotations differ"
}

func TestSpreadFingers(t *testing.T) {
	Convey("Given the default rig", t, func() {
		rig := rigtest.New()
		leftIndex := rig.Node(humanoid.LeftIndexProximal)
		leftThumb := rig.Node(humanoid.LeftThumbProximal)
		rightThumb := rig.Node(humanoid.RightThumbProximal)

		Convey("When spread with the neutral factor", func() {
			n, err := posefix.SpreadFingers(rig.Bones, posefix.SpreadOptions{Factor: posefix.DefaultSpreadFactor})
			So(err, ShouldBeNil)

			Convey("Then every finger is visited and nothing turns", func() {
				So(n, ShouldEqual, 10)
				So(leftIndex.Rotation, shouldBeRotation, mgl64.QuatIdent())
				So(leftThumb.Rotation, shouldBeRotation, mgl64.QuatIdent())
			})
		})

		Convey("When spread to the widest factor", func() {
			_, err := posefix.SpreadFingers(rig.Bones, posefix.SpreadOptions{Factor: 2})
			So(err, ShouldBeNil)

			Convey("Then each finger turns about X by its offset", func() {
				So(leftIndex.Rotation, shouldBeRotation, mgl64.QuatRotate(mgl64.DegToRad(15), mgl64.Vec3{1, 0, 0}))
				So(rig.Node(humanoid.RightLittleProximal).Rotation, shouldBeRotation, mgl64.QuatRotate(mgl64.DegToRad(-20), mgl64.Vec3{1, 0, 0}))
			})

			Convey("Then the thumbs turn in mirror", func() {
				So(rightThumb.Rotation, shouldBeRotation, posefix.SpreadRotation(humanoid.Right, humanoid.Thumb, 1))
				So(leftThumb.Rotation, shouldBeRotation, posefix.SpreadRotation(humanoid.Left, humanoid.Thumb, 1))
				So(leftThumb.Rotation.ApproxEqualThreshold(rightThumb.Rotation, 1e-6), ShouldBeFalse)
			})
		})

		Convey("When the thumb is spared", func() {
			n, err := posefix.SpreadFingers(rig.Bones, posefix.SpreadOptions{Factor: 0, SpareThumb: true})
			So(err, ShouldBeNil)

			Convey("Then only the four fingers move", func() {
				So(n, ShouldEqual, 8)
				So(leftThumb.Rotation, shouldBeRotation, mgl64.QuatIdent())
				So(leftIndex.Rotation, shouldBeRotation, mgl64.QuatRotate(mgl64.DegToRad(-15), mgl64.Vec3{1, 0, 0}))
			})
		})

		Convey("When a proximal joint is not in the bone map", func() {
			bones := maps.Clone(rig.Bones)
			delete(bones, humanoid.LeftIndexProximal)

			Convey("Then it is skipped without a finder", func() {
				n, err := posefix.SpreadFingers(bones, posefix.SpreadOptions{Factor: 2})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 9)
				So(leftIndex.Rotation, shouldBeRotation, mgl64.QuatIdent())
			})

			Convey("Then it is found by name below the hand with a finder", func() {
				n, err := posefix.SpreadFingers(bones, posefix.SpreadOptions{Factor: 2, Finder: bonemap.NewResolver()})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 10)
				So(leftIndex.Rotation, shouldBeRotation, mgl64.QuatRotate(mgl64.DegToRad(15), mgl64.Vec3{1, 0, 0}))
			})
		})

		Convey("When the factor is out of range", func() {
			_, err := posefix.SpreadFingers(rig.Bones, posefix.SpreadOptions{Factor: 2.5})

			Convey("Then nothing is rotated", func() {
				So(errors.Is(err, posefix.ErrInvalidSpread), ShouldBeTrue)
				So(leftIndex.Rotation, shouldBeRotation, mgl64.QuatIdent())
			})
		})
	})
}

func TestNudgeHips(t *testing.T) {
	Convey("Given the default rig", t, func() {
		rig := rigtest.New()
		spine := rig.Node(humanoid.Spine)
		leg := rig.Node(humanoid.LeftUpperLeg)
		spineBefore, legBefore := spine.WorldPosition(), leg.WorldPosition()

		Convey("When the hips are nudged", func() {
			target, err := posefix.NudgeHips(rig.Bones)
			So(err, ShouldBeNil)

			Convey("Then the hip joint sits ninety percent of the way to the spine", func() {
				want := rigtest.LegTopY + posefix.HipRatio*(spineBefore.Y()-rigtest.LegTopY)
				So(target.Y(), ShouldAlmostEqual, want, 1e-12)
				So(rig.Node(humanoid.Hips).WorldPosition().Y(), ShouldAlmostEqual, want, 1e-12)
			})

			Convey("Then the children stay where they were", func() {
				So(spine.WorldPosition().ApproxEqualThreshold(spineBefore, 1e-12), ShouldBeTrue)
				So(leg.WorldPosition().ApproxEqualThreshold(legBefore, 1e-12), ShouldBeTrue)
			})
		})
	})

	Convey("Given a rig without a spine", t, func() {
		rig := rigtest.New(rigtest.Without(humanoid.Spine))
		before := rig.Node(humanoid.Hips).Position

		Convey("Then the nudge is refused", func() {
			_, err := posefix.NudgeHips(rig.Bones)
			So(errors.Is(err, posefix.ErrMissingBones), ShouldBeTrue)
			So(rig.Node(humanoid.Hips).Position, ShouldResemble, before)
		})
	})
}
