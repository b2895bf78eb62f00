package app

import (
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/scaling"
)

// CurrentThickness is the thickness reported for a freshly measured avatar.
const CurrentThickness = 50.0

// AutoPopulate fills the measured fields of p from the avatar as it stands,
// so scaling with the result reproduces the current proportions. The
// measurement selectors of p pick which heights and arm length are read.
// Without ScaleEyes the target is the total height.
func AutoPopulate(m *measure.Measurer, p scaling.Parameters) scaling.Parameters {
	if !p.ScaleEyes {
		p.TargetHeightMethod = measure.TotalHeight
	}
	p.TargetHeight = m.Height(p.TargetHeightMethod)
	p.UpperBodyPercentage = m.UpperBody(p.UpperBodyMethod()) * 100

	p.CustomScaleRatio = m.CurrentScaling(p.ArmToHeightRatioMethod, p.ArmToHeightHeightMethod)
	if !(p.CustomScaleRatio > 0) {
		p.CustomScaleRatio = measure.DefaultScaleRatio
	}

	p.ArmThickness = CurrentThickness
	p.LegThickness = CurrentThickness
	p.ThighPercentage = m.ThighPercentage() * 100
	return p
}

// AtDefaults reports whether the fields AutoPopulate derives still hold the
// stock profile, i.e. nobody has tuned them for this avatar yet.
func AtDefaults(p scaling.Parameters) bool {
	d := scaling.DefaultParameters()
	near := func(a, b float64) bool { return scalar.EqualWithinAbs(a, b, 1e-5) }
	return near(p.TargetHeight, d.TargetHeight) &&
		near(p.UpperBodyPercentage, d.UpperBodyPercentage) &&
		near(p.CustomScaleRatio, d.CustomScaleRatio)
}
