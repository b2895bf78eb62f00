package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/immersivescaler/internal/app"
	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/posefix"
	"github.com/okian/immersivescaler/internal/domain/rigtest"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
	"github.com/okian/immersivescaler/pkg/logger"
)

func TestBuildHook(t *testing.T) {
	ctx := context.Background()

	Convey("Given an avatar carrying the default marker", t, func() {
		c := avatar.DefaultComponent()
		a, rig := newAvatar(avatar.WithComponent(&c))

		Convey("When the build hook runs", func() {
			res, err := app.BuildHook(ctx, a, app.WithLogger(logger.Get()))
			So(err, ShouldBeNil)

			Convey("Then the avatar is scaled to the target", func() {
				So(a.Measurer().Height(measure.EyeHeight), ShouldAlmostEqual, c.Parameters.TargetHeight, 1e-3)
			})

			Convey("Then the original view position is kept and rescaled", func() {
				So(c.HasStoredOriginalViewPosition, ShouldBeTrue)
				So(c.OriginalViewPosition, ShouldResemble, startView)
				So(a.Descriptor.ViewPosition, ShouldResemble, startView.Mul(res.RootScaleRatio()))
			})

			Convey("Then the marker is removed", func() {
				So(a.Component, ShouldBeNil)
			})

			Convey("Then a second build has nothing to do", func() {
				_, err := app.BuildHook(ctx, a)
				So(errors.Is(err, avatar.ErrNoComponent), ShouldBeTrue)
			})
		})

		Convey("When a view position was stored by an earlier build", func() {
			c.StoreOriginalViewPosition(mgl64.Vec3{0, 1.5, 0.1})
			a.Descriptor.ViewPosition = mgl64.Vec3{0, 9, 9}
			res, err := app.BuildHook(ctx, a)

			Convey("Then the view position derives from the stored one", func() {
				So(err, ShouldBeNil)
				So(a.Descriptor.ViewPosition, ShouldResemble, mgl64.Vec3{0, 1.5, 0.1}.Mul(res.RootScaleRatio()))
			})
		})

		Convey("When the post-processes are enabled", func() {
			c.ApplyFingerSpreading = true
			c.FingerSpreadFactor = 2
			c.ApplyShrinkHipBone = true
			_, err := app.BuildHook(ctx, a)
			So(err, ShouldBeNil)

			Convey("Then the fingers are spread and the thumbs spared", func() {
				index := rig.Node(humanoid.LeftIndexProximal).Rotation
				thumb := rig.Node(humanoid.LeftThumbProximal).Rotation
				So(index.OrientationEqualThreshold(mgl64.QuatIdent(), 1e-6), ShouldBeFalse)
				So(thumb.OrientationEqualThreshold(mgl64.QuatIdent(), 1e-9), ShouldBeTrue)
			})

			Convey("Then the hips sit most of the way up to the spine", func() {
				legY := (rig.Node(humanoid.LeftUpperLeg).WorldPosition().Y() + rig.Node(humanoid.RightUpperLeg).WorldPosition().Y()) / 2
				spineY := rig.Node(humanoid.Spine).WorldPosition().Y()
				So(rig.Node(humanoid.Hips).WorldPosition().Y(), ShouldAlmostEqual, legY+posefix.HipRatio*(spineY-legY), 1e-9)
			})
		})

		Convey("When the spread factor is out of range", func() {
			snap := skeleton.Capture(rig.Root)
			c.ApplyFingerSpreading = true
			c.FingerSpreadFactor = 2.5
			_, err := app.BuildHook(ctx, a)

			Convey("Then the build fails before touching the avatar", func() {
				So(errors.Is(err, posefix.ErrInvalidSpread), ShouldBeTrue)
				So(sameAsSnapshot(snap, rig.Root), ShouldBeTrue)
				So(a.Component, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a marked avatar without a descriptor", t, func() {
		c := avatar.DefaultComponent()
		rig := rigtest.New()
		a := avatar.New("bare", rig.Root, rig.Bones, avatar.WithComponent(&c))
		snap := skeleton.Capture(rig.Root)
		_, err := app.BuildHook(ctx, a)

		Convey("Then the build is refused and nothing changes", func() {
			So(errors.Is(err, app.ErrNoDescriptor), ShouldBeTrue)
			So(errors.Is(err, avatar.ErrNoDescriptor), ShouldBeTrue)
			So(a.Component, ShouldNotBeNil)
			So(c.HasStoredOriginalViewPosition, ShouldBeFalse)
			So(sameAsSnapshot(snap, rig.Root), ShouldBeTrue)
		})
	})

	Convey("Given an avatar without a marker", t, func() {
		a, _ := newAvatar()
		_, err := app.BuildHook(ctx, a)

		Convey("Then the hook reports it", func() {
			So(errors.Is(err, avatar.ErrNoComponent), ShouldBeTrue)
		})
	})
}
