package app_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/immersivescaler/internal/app"
	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/posefix"
	"github.com/okian/immersivescaler/internal/domain/rigtest"
	"github.com/okian/immersivescaler/internal/domain/scaling"
)

func TestParameterProviders(t *testing.T) {
	Convey("Given a provider bound to a marker component", t, func() {
		c := avatar.DefaultComponent()
		p := app.NewComponentProvider(&c)

		Convey("Then it reads the component", func() {
			So(p.Parameters(), ShouldResemble, c.Parameters)
			So(p.PostProcess().SpareThumb, ShouldBeTrue)
			So(p.PostProcess().FingerSpreadFactor, ShouldEqual, posefix.DefaultSpreadFactor)
			So(p.Dirty(), ShouldBeFalse)
		})

		Convey("When settings are written", func() {
			params := p.Parameters()
			params.TargetHeight = 1.8
			p.SetParameters(params)
			p.SetPostProcess(app.PostProcess{ApplyShrinkHipBone: true, FingerSpreadFactor: 1.5})

			Convey("Then they land on the component", func() {
				So(c.Parameters.TargetHeight, ShouldEqual, 1.8)
				So(c.ApplyShrinkHipBone, ShouldBeTrue)
				So(c.FingerSpreadFactor, ShouldEqual, 1.5)
				So(c.SpareThumb, ShouldBeFalse)
				So(p.Dirty(), ShouldBeTrue)
			})
		})

		Convey("When it is copied", func() {
			cp, err := app.CopyProvider(p)
			So(err, ShouldBeNil)
			params := cp.Parameters()
			params.TargetHeight = 2.2
			cp.SetParameters(params)

			Convey("Then edits to the copy stay there", func() {
				So(cp.Parameters().TargetHeight, ShouldEqual, 2.2)
				So(c.Parameters.TargetHeight, ShouldEqual, scaling.DefaultParameters().TargetHeight)
				So(cp.PostProcess(), ShouldResemble, p.PostProcess())
				So(cp.Dirty(), ShouldBeTrue)
				So(p.Dirty(), ShouldBeFalse)
			})
		})
	})

	Convey("Given post-process settings", t, func() {
		Convey("Then an out of range spread is rejected only when enabled", func() {
			pp := app.PostProcess{FingerSpreadFactor: 3}
			So(pp.Validate(), ShouldBeNil)
			pp.ApplyFingerSpreading = true
			So(errors.Is(pp.Validate(), posefix.ErrInvalidSpread), ShouldBeTrue)
			pp.FingerSpreadFactor = 0
			So(pp.Validate(), ShouldBeNil)
		})
	})
}

func TestAutoPopulate(t *testing.T) {
	Convey("Given the reference rig", t, func() {
		rig := rigtest.New()
		m := measure.New(rig.Root, rig.Bones)

		Convey("When populating the stock profile", func() {
			p := app.AutoPopulate(m, scaling.DefaultParameters())

			Convey("Then the measured fields describe the rig", func() {
				So(p.TargetHeight, ShouldAlmostEqual, rigtest.EyeY, 1e-9)
				So(p.UpperBodyPercentage, ShouldAlmostEqual, (1-rigtest.LegTopY/rigtest.EyeY)*100, 1e-9)
				So(p.CustomScaleRatio, ShouldAlmostEqual, rigtest.HeadToElbow/(rigtest.EyeY-measure.ViewOffset), 1e-9)
				So(p.ThighPercentage, ShouldAlmostEqual, 50, 1e-9)
				So(p.ArmThickness, ShouldEqual, app.CurrentThickness)
				So(p.LegThickness, ShouldEqual, app.CurrentThickness)
				So(app.AtDefaults(p), ShouldBeFalse)
			})

			Convey("Then scaling with it keeps the rig as it is", func() {
				a := avatar.New("rig", rig.Root, rig.Bones)
				s := newSession(a)
				res, err := s.Scale(context.Background(), p)
				So(err, ShouldBeNil)
				So(res.RescaleRatio, ShouldAlmostEqual, 1, 1e-9)
				So(res.LegScale, ShouldAlmostEqual, 1, 1e-6)
				So(res.ArmScale, ShouldAlmostEqual, 1, 1e-6)
				So(res.HeightScale, ShouldAlmostEqual, 1, 1e-6)
			})
		})

		Convey("When the target height is the total height", func() {
			d := scaling.DefaultParameters()
			d.TargetHeightMethod = measure.TotalHeight
			d.UpperBodyUseLegacy = false
			p := app.AutoPopulate(m, d)

			Convey("Then the head top is used", func() {
				So(p.TargetHeight, ShouldAlmostEqual, rigtest.HeadTopY, 1e-9)
				So(p.UpperBodyPercentage, ShouldAlmostEqual, m.UpperBodyRatio(false, false)*100, 1e-9)
			})
		})

		Convey("When eyes are not the scaling reference", func() {
			d := scaling.DefaultParameters()
			d.ScaleEyes = false
			p := app.AutoPopulate(m, d)

			Convey("Then the total height is read and selected", func() {
				So(p.TargetHeightMethod, ShouldEqual, measure.TotalHeight)
				So(p.TargetHeight, ShouldAlmostEqual, rigtest.HeadTopY, 1e-9)
			})

			Convey("Then scaling with it keeps the rig as it is", func() {
				s := newSession(avatar.New("rig", rig.Root, rig.Bones))
				res, err := s.Scale(context.Background(), p)
				So(err, ShouldBeNil)
				So(res.RescaleRatio, ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("Then the stock profile counts as untouched", func() {
			So(app.AtDefaults(scaling.DefaultParameters()), ShouldBeTrue)
			So(app.AtDefaults(avatar.DefaultComponent().Parameters), ShouldBeTrue)
		})
	})

	Convey("Given a session", t, func() {
		a, _ := newAvatar()
		s := newSession(a)

		Convey("Then it populates from its avatar", func() {
			p := s.AutoPopulate(scaling.DefaultParameters())
			So(p.TargetHeight, ShouldAlmostEqual, rigtest.EyeY, 1e-9)
		})
	})
}
