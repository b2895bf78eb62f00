package scaling_test

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/immersivescaler/internal/domain/scaling"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

func TestAxisOf(t *testing.T) {
	Convey("Given child offsets in a bone's local frame", t, func() {
		Convey("Then the dominant component wins with its sign", func() {
			So(scaling.AxisOf(mgl64.Vec3{-0.2, 0.01, 0}), ShouldResemble, scaling.Axis{Index: 0, Sign: -1})
			So(scaling.AxisOf(mgl64.Vec3{0, -0.41, 0.02}), ShouldResemble, scaling.Axis{Index: 1, Sign: -1})
			So(scaling.AxisOf(mgl64.Vec3{0.01, 0, 0.3}), ShouldResemble, scaling.Axis{Index: 2, Sign: 1})
		})

		Convey("Then ties prefer Y, then X", func() {
			So(scaling.AxisOf(mgl64.Vec3{0.1, 0.1, 0.1}), ShouldResemble, scaling.AxisY)
			So(scaling.AxisOf(mgl64.Vec3{0.1, 0, 0.1}).Index, ShouldEqual, 0)
		})

		Convey("Then a zero offset falls back to +Y", func() {
			So(scaling.AxisOf(mgl64.Vec3{}), ShouldResemble, scaling.AxisY)
		})
	})

	Convey("Given a leaf bone", t, func() {
		leaf := skeleton.NewNode("leaf")

		Convey("Then its axis is +Y", func() {
			So(scaling.BoneAxis(leaf), ShouldResemble, scaling.AxisY)
			So(scaling.BoneAxis(nil), ShouldResemble, scaling.AxisY)
		})

		Convey("Then only the first child is considered", func() {
			leaf.AddChild(skeleton.NewNode("a")).Position = mgl64.Vec3{0, 0, -1}
			leaf.AddChild(skeleton.NewNode("b")).Position = mgl64.Vec3{5, 0, 0}
			So(scaling.BoneAxis(leaf).String(), ShouldEqual, "-Z")
		})
	})
}

func TestDirectionalScale(t *testing.T) {
	Convey("Given a length and a thickness", t, func() {
		Convey("Then length goes on the bone axis and thickness elsewhere", func() {
			So(scaling.DirectionalScale(scaling.Axis{Index: 0, Sign: -1}, 2, 1.5), ShouldResemble, mgl64.Vec3{2, 1.5, 1.5})
			So(scaling.DirectionalScale(scaling.AxisY, 2, 1.5), ShouldResemble, mgl64.Vec3{1.5, 2, 1.5})
			So(scaling.DirectionalScale(scaling.Axis{Index: 2, Sign: 1}, 2, 1.5), ShouldResemble, mgl64.Vec3{1.5, 1.5, 2})
		})
	})
}

func TestClampScale(t *testing.T) {
	Convey("Given factors inside and outside the bounds", t, func() {
		Convey("Then they are bounded and flagged", func() {
			v, moved := scaling.ClampScale(3)
			So(v, ShouldEqual, 3)
			So(moved, ShouldBeFalse)
			v, moved = scaling.ClampScale(-2)
			So(v, ShouldEqual, scaling.MinScale)
			So(moved, ShouldBeTrue)
			v, _ = scaling.ClampScale(1e9)
			So(v, ShouldEqual, scaling.MaxScale)
			v, moved = scaling.ClampScale(math.NaN())
			So(v, ShouldEqual, 1)
			So(moved, ShouldBeTrue)
		})
	})
}

func TestThicknessPolicy(t *testing.T) {
	Convey("Given the two thickness policies", t, func() {
		Convey("Then blend keeps the percentage and lets the rest follow the length", func() {
			So(scaling.Blend.Factor(50, 2), ShouldAlmostEqual, 1.5, 1e-12)
			So(scaling.Blend.Factor(100, 2), ShouldAlmostEqual, 1, 1e-12)
			So(scaling.Blend.Factor(0, 2), ShouldAlmostEqual, 2, 1e-12)
		})

		Convey("Then band maps the knob onto 0.8 to 1.2", func() {
			So(scaling.Band.Factor(0, 3), ShouldAlmostEqual, 0.8, 1e-12)
			So(scaling.Band.Factor(50, 3), ShouldAlmostEqual, 1.0, 1e-12)
			So(scaling.Band.Factor(100, 3), ShouldAlmostEqual, 1.2, 1e-12)
		})

		Convey("Then names parse from configuration", func() {
			var p scaling.ThicknessPolicy
			So(p.UnmarshalText([]byte("Band")), ShouldBeNil)
			So(p, ShouldEqual, scaling.Band)
			So(p.UnmarshalText([]byte("thin")), ShouldNotBeNil)
		})
	})
}

func TestInvertArm(t *testing.T) {
	// head to T-pose elbow of the test rig: shoulder 0.14 out, upper arm 0.196, neck drop 0.252
	elbow := scaling.ArmGeometry{Model: scaling.Triangle, Total: 0.42, Arm: 0.196, Neck: 0.252}

	Convey("Given the head to elbow triangle", t, func() {
		Convey("Then a unit ratio leaves the arm alone", func() {
			v, guarded := scaling.InvertArm(elbow, 1)
			So(v, ShouldAlmostEqual, 1, 1e-9)
			So(guarded, ShouldBeFalse)
		})

		Convey("Then the factor reproduces the requested total", func() {
			v, _ := scaling.InvertArm(elbow, 1.3)
			horizontal := 0.14 + 0.196*v
			So(math.Hypot(horizontal, 0.252), ShouldAlmostEqual, 0.42*1.3, 1e-9)
		})

		Convey("Then a target shorter than the neck drop is guarded", func() {
			v, guarded := scaling.InvertArm(elbow, 0.2)
			So(guarded, ShouldBeTrue)
			So(math.IsNaN(v), ShouldBeFalse)
			So(v, ShouldBeLessThan, 0)
		})
	})

	Convey("Given linear and proportional measures", t, func() {
		Convey("Then a linear measure keeps its fixed offset", func() {
			v, guarded := scaling.InvertArm(scaling.ArmGeometry{Model: scaling.Linear, Total: 0.556, Arm: 0.416}, 1.5)
			So(guarded, ShouldBeFalse)
			So(0.14+0.416*v, ShouldAlmostEqual, 0.556*1.5, 1e-9)
		})

		Convey("Then a proportional measure passes the ratio through", func() {
			v, _ := scaling.InvertArm(scaling.ArmGeometry{Model: scaling.Proportional}, 1.7)
			So(v, ShouldEqual, 1.7)
		})

		Convey("Then a zero arm falls back to one", func() {
			v, guarded := scaling.InvertArm(scaling.ArmGeometry{Model: scaling.Linear, Total: 0.5}, 2)
			So(v, ShouldEqual, 1)
			So(guarded, ShouldBeTrue)
		})
	})
}

func TestParameters_Validate(t *testing.T) {
	Convey("Given the default parameters", t, func() {
		p := scaling.DefaultParameters()

		Convey("Then they are valid and select the standard strategy", func() {
			So(p.Validate(), ShouldBeNil)
			So(p.Strategy(), ShouldEqual, scaling.Standard)
		})

		Convey("Then the mode switches select the strategy", func() {
			p.KeepHeadSize = true
			So(p.Strategy(), ShouldEqual, scaling.KeepHead)
			p.ScaleRelative = true
			So(p.Strategy(), ShouldEqual, scaling.Relative)
			p.SkipMainRescale = true
			So(p.Strategy(), ShouldEqual, scaling.AdjustOnly)
		})

		Convey("Then values outside their domain are rejected", func() {
			bad := []func(*scaling.Parameters){
				func(p *scaling.Parameters) { p.TargetHeight = 0 },
				func(p *scaling.Parameters) { p.TargetHeight = math.NaN() },
				func(p *scaling.Parameters) { p.CustomScaleRatio = -1 },
				func(p *scaling.Parameters) { p.UpperBodyPercentage = 100 },
				func(p *scaling.Parameters) { p.ThighPercentage = 0 },
				func(p *scaling.Parameters) { p.ArmThickness = 101 },
				func(p *scaling.Parameters) { p.ArmToLegs = -1 },
				func(p *scaling.Parameters) { p.ExtraLegLength = math.Inf(1) },
				func(p *scaling.Parameters) { p.ThicknessPolicy = 7 },
			}
			for _, mutate := range bad {
				q := scaling.DefaultParameters()
				mutate(&q)
				So(errors.Is(q.Validate(), scaling.ErrInvalidParameters), ShouldBeTrue)
			}
		})
	})
}
