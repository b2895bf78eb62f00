package mutate_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/mutate"
	"github.com/okian/immersivescaler/internal/domain/rigtest"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

const tol = 1e-9

func shouldBeVec(actual interface{}, expected ...interface{}) string {
	a := actual.(mgl64.Vec3)
	e := expected[0].(mgl64.Vec3)
	if !a.ApproxEqualThreshold(e, 1e-9) {
		return fmt.Sprintf("expected %v but got %v", e, a)
	}
	return ""
}

func TestMutator_SetBoneScale(t *testing.T) {
	Convey("Given the default rig and a fresh mutator", t, func() {
		rig := rigtest.New(rigtest.WithHandMeshes())
		m := mutate.New(rig.Root, rig.Bones)

		Convey("When thigh and calf get the same length factor", func() {
			knee := rig.Node(humanoid.LeftLowerLeg).WorldPosition()
			ankle := rig.Node(humanoid.LeftFoot).WorldPosition()
			calf := knee.Sub(ankle).Len()

			_, err := m.SetBoneScale(humanoid.LeftUpperLeg, mgl64.Vec3{1, 2, 1})
			So(err, ShouldBeNil)
			_, err = m.SetBoneScale(humanoid.LeftLowerLeg, mgl64.Vec3{1, 2, 1})
			So(err, ShouldBeNil)

			Convey("Then each segment doubles once", func() {
				So(rig.Node(humanoid.LeftUpperLeg).Scale, shouldBeVec, mgl64.Vec3{1, 2, 1})
				So(rig.Node(humanoid.LeftLowerLeg).Scale, shouldBeVec, mgl64.Vec3{1, 1, 1})
				newCalf := rig.Node(humanoid.LeftLowerLeg).WorldPosition().Sub(rig.Node(humanoid.LeftFoot).WorldPosition()).Len()
				So(newCalf, ShouldAlmostEqual, 2*calf, tol)
			})

			Convey("And the foot is held at its original size", func() {
				_, err := m.SetBoneScale(humanoid.LeftFoot, mgl64.Vec3{1, 1, 1})
				So(err, ShouldBeNil)
				So(rig.Node(humanoid.LeftFoot).Scale, shouldBeVec, mgl64.Vec3{1, 0.5, 1})
				shoe := rig.Node(humanoid.LeftFoot).Meshes[0]
				size := skeleton.Size(shoe.WorldBounds(rig.Node(humanoid.LeftFoot)))
				So(size.Y, ShouldAlmostEqual, rigtest.AnkleY-rigtest.SoleY, tol)
			})
		})

		Convey("When an arm is lengthened and thickened but the hand is held", func() {
			hand := rig.Node(humanoid.RightHand)
			before := skeleton.Size(hand.Meshes[0].WorldBounds(hand))

			for _, r := range []humanoid.Role{humanoid.RightUpperArm, humanoid.RightLowerArm} {
				_, err := m.SetBoneScale(r, mgl64.Vec3{2.5, 1.3, 1.3})
				So(err, ShouldBeNil)
			}
			_, err := m.SetBoneScale(humanoid.RightHand, mgl64.Vec3{1, 1, 1})
			So(err, ShouldBeNil)

			Convey("Then the hand's world size is unchanged", func() {
				after := skeleton.Size(hand.Meshes[0].WorldBounds(hand))
				So(after.X, ShouldAlmostEqual, before.X, tol)
				So(after.Y, ShouldAlmostEqual, before.Y, tol)
				So(after.Z, ShouldAlmostEqual, before.Z, tol)
			})

			Convey("Then the fingers inherit the held hand", func() {
				finger := rig.Node(humanoid.FingerRole(humanoid.Right, humanoid.Index, humanoid.Proximal))
				So(m.Accumulated(finger), shouldBeVec, mgl64.Vec3{1, 1, 1})
			})

			Convey("Then the arm reaches 2.5 times as far", func() {
				shoulder := rig.Node(humanoid.RightUpperArm).WorldPosition()
				wrist := hand.WorldPosition()
				So(shoulder.Sub(wrist).Len(), ShouldAlmostEqual, 2.5*(rigtest.UpperArmLen+rigtest.ForearmLen), tol)
			})
		})

		Convey("When a child is scaled before its parent", func() {
			_, err := m.SetBoneScale(humanoid.LeftLowerLeg, mgl64.Vec3{1, 3, 1})
			So(err, ShouldBeNil)
			_, err = m.SetBoneScale(humanoid.LeftUpperLeg, mgl64.Vec3{1, 1.5, 1})
			So(err, ShouldBeNil)

			Convey("Then the child is re-derived against the new parent", func() {
				So(rig.Node(humanoid.LeftLowerLeg).Scale, shouldBeVec, mgl64.Vec3{1, 2, 1})
				So(m.Accumulated(rig.Node(humanoid.LeftLowerLeg)), shouldBeVec, mgl64.Vec3{1, 3, 1})
			})
		})

		Convey("When a role is unbound", func() {
			rig := rigtest.New(rigtest.Without(humanoid.LeftToes))
			m := mutate.New(rig.Root, rig.Bones)
			ok, err := m.SetBoneScale(humanoid.LeftToes, mgl64.Vec3{2, 2, 2})

			Convey("Then nothing happens", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a scale is not finite or not positive", func() {
			_, errNaN := m.SetBoneScale(humanoid.Hips, mgl64.Vec3{1, math.NaN(), 1})
			_, errZero := m.SetBoneScale(humanoid.Hips, mgl64.Vec3{1, 0, 1})

			Convey("Then it is rejected and the joint is untouched", func() {
				So(errors.Is(errNaN, mutate.ErrNonFinite), ShouldBeTrue)
				So(errors.Is(errZero, mutate.ErrNonPositive), ShouldBeTrue)
				So(rig.Node(humanoid.Hips).Scale, shouldBeVec, mgl64.Vec3{1, 1, 1})
			})
		})
	})

	Convey("Given a child rotated a quarter turn about Z", t, func() {
		root := skeleton.NewNode("root")
		parent := root.AddChild(skeleton.NewNode("parent"))
		child := parent.AddChild(skeleton.NewNode("child"))
		child.Rotation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
		m := mutate.New(root, nil)

		Convey("When the parent is stretched along X and the child held", func() {
			So(m.SetNodeScale(parent, mgl64.Vec3{2, 1, 1}), ShouldBeNil)
			So(m.SetNodeScale(child, mgl64.Vec3{1, 1, 1}), ShouldBeNil)

			Convey("Then the stretch is removed from the child's Y axis", func() {
				So(child.Scale, shouldBeVec, mgl64.Vec3{1, 0.5, 1})
			})
		})
	})
}

func TestMutator_Placement(t *testing.T) {
	Convey("Given the default rig offset from the origin", t, func() {
		rig := rigtest.New(rigtest.WithRootOffset(mgl64.Vec3{0.5, 0.2, -0.3}))
		m := mutate.New(rig.Root, rig.Bones)

		Convey("When the whole body is scaled", func() {
			So(m.SetWholeBodyScale(1.5), ShouldBeNil)

			Convey("Then the root scale is multiplied", func() {
				So(rig.Root.Scale, shouldBeVec, mgl64.Vec3{1.5, 1.5, 1.5})
			})
		})

		Convey("When a bad whole body ratio is given", func() {
			So(errors.Is(m.SetWholeBodyScale(0), mutate.ErrNonPositive), ShouldBeTrue)
			So(errors.Is(m.SetWholeBodyScale(math.Inf(1)), mutate.ErrNonFinite), ShouldBeTrue)
			So(rig.Root.Scale, shouldBeVec, mgl64.Vec3{1, 1, 1})
		})

		Convey("When the root is translated and centred", func() {
			So(m.Translate(mgl64.Vec3{0, -0.2, 0}), ShouldBeNil)
			So(m.SetRootHorizontal(0, 0), ShouldBeNil)

			Convey("Then the root sits at the origin", func() {
				So(rig.Root.WorldPosition(), shouldBeVec, mgl64.Vec3{0, 0, 0})
			})
		})

		Convey("When scales are reset", func() {
			rig.Node(humanoid.Hips).Scale = mgl64.Vec3{1, 2, 1}
			rig.Node(humanoid.Head).Scale = mgl64.Vec3{0.5, 0.5, 0.5}

			Convey("Then every changed joint returns to one", func() {
				So(mutate.ResetScales(rig.Root), ShouldEqual, 2)
				So(rig.Node(humanoid.Hips).Scale, shouldBeVec, mgl64.Vec3{1, 1, 1})
				So(rig.Node(humanoid.Head).Scale, shouldBeVec, mgl64.Vec3{1, 1, 1})
			})
		})
	})
}
