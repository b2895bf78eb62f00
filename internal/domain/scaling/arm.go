package scaling

import "math"

// ArmModel describes how an arm measurement responds to scaling the arm.
type ArmModel int

const (
	// Proportional measures are the arm itself.
	Proportional ArmModel = iota
	// Linear measures are a fixed offset plus the arm along one line.
	Linear
	// Triangle measures are the hypotenuse of a fixed vertical neck leg and
	// a horizontal leg made of a fixed shoulder plus the arm.
	Triangle
)

// ArmGeometry is the measured state the inversion starts from.
type ArmGeometry struct {
	Model ArmModel
	// Total is the current value of the arm measurement.
	Total float64
	// Arm is the part of Total that scales with the arm segments.
	Arm float64
	// Neck is the fixed vertical leg of a Triangle measure.
	Neck float64
}

// InvertArm returns the arm segment factor that changes the measurement by
// ratio. The second result reports that a degenerate input was replaced: a
// non-positive arm gives 1, and a target shorter than the neck drop is
// treated as a zero horizontal reach.
func InvertArm(g ArmGeometry, ratio float64) (float64, bool) {
	if g.Model == Proportional {
		return ratio, false
	}
	if !(g.Arm > eps) || !(g.Total > eps) {
		return 1, true
	}
	switch g.Model {
	case Linear:
		fixed := math.Max(0, g.Total-g.Arm)
		return (ratio*g.Total - fixed) / g.Arm, g.Total < g.Arm
	default:
		guarded := false
		reach := g.Total*g.Total - g.Neck*g.Neck
		if reach < 0 {
			reach, guarded = 0, true
		}
		shoulder := math.Sqrt(reach) - g.Arm
		want := ratio*g.Total*(ratio*g.Total) - g.Neck*g.Neck
		if want < 0 {
			want, guarded = 0, true
		}
		return (math.Sqrt(want) - shoulder) / g.Arm, guarded
	}
}
