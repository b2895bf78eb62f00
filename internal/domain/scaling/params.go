package scaling

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/immersivescaler/internal/domain/measure"
)

// ThicknessPolicy maps a 0-100 thickness knob and a segment length factor to
// the factor applied across the segment.
type ThicknessPolicy int

const (
	// Blend keeps thickness% of the original girth and lets the rest follow
	// the length: t + s*(1-t).
	Blend ThicknessPolicy = iota
	// Band ignores the length and maps the knob onto [0.8, 1.2]: 0.8 + 0.4*t.
	Band
)

func (p ThicknessPolicy) String() string {
	switch p {
	case Blend:
		return "blend"
	case Band:
		return "band"
	}
	return fmt.Sprintf("ThicknessPolicy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p ThicknessPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ThicknessPolicy) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "blend":
		*p = Blend
	case "band":
		*p = Band
	default:
		return fmt.Errorf("unknown thickness policy %q", string(b))
	}
	return nil
}

// Factor returns the cross-axis factor for thickness percent and length factor s.
func (p ThicknessPolicy) Factor(thickness, s float64) float64 {
	t := thickness / 100
	if p == Band {
		return 0.8 + 0.4*t
	}
	return t + s*(1-t)
}

// Strategy is the proportion model selected by the mode switches.
type Strategy int

const (
	Standard Strategy = iota
	Relative
	KeepHead
	// AdjustOnly skips the proportion model and only floors and sizes.
	AdjustOnly
)

func (s Strategy) String() string {
	return [...]string{"standard", "relative", "keep_head", "adjust_only"}[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Parameters is the full configuration of one scaling run. Percentages are
// 0-100; heights and lengths are metres.
type Parameters struct {
	TargetHeight        float64 `koanf:"target_height" yaml:"target_height"`
	ArmToLegs           float64 `koanf:"arm_to_legs" yaml:"arm_to_legs"`
	UpperBodyPercentage float64 `koanf:"upper_body_percentage" yaml:"upper_body_percentage"`
	ArmThickness        float64 `koanf:"arm_thickness" yaml:"arm_thickness"`
	LegThickness        float64 `koanf:"leg_thickness" yaml:"leg_thickness"`
	ExtraLegLength      float64 `koanf:"extra_leg_length" yaml:"extra_leg_length"`
	ThighPercentage     float64 `koanf:"thigh_percentage" yaml:"thigh_percentage"`
	CustomScaleRatio    float64 `koanf:"custom_scale_ratio" yaml:"custom_scale_ratio"`

	ScaleHand     bool `koanf:"scale_hand" yaml:"scale_hand"`
	ScaleFoot     bool `koanf:"scale_foot" yaml:"scale_foot"`
	CenterModel   bool `koanf:"center_model" yaml:"center_model"`
	ScaleRelative bool `koanf:"scale_relative" yaml:"scale_relative"`
	KeepHeadSize  bool `koanf:"keep_head_size" yaml:"keep_head_size"`

	// ScaleEyes makes auto-population read the target as an eye height.
	// When false it reads the total height and selects TotalHeight.
	ScaleEyes bool `koanf:"scale_eyes" yaml:"scale_eyes"`

	// RebalanceThigh shifts the thigh:calf split toward ThighPercentage.
	RebalanceThigh bool `koanf:"rebalance_thigh" yaml:"rebalance_thigh"`

	TargetHeightMethod      measure.HeightMethod `koanf:"target_height_method" yaml:"target_height_method"`
	ArmToHeightRatioMethod  measure.ArmMethod    `koanf:"arm_to_height_ratio_method" yaml:"arm_to_height_ratio_method"`
	ArmToHeightHeightMethod measure.HeightMethod `koanf:"arm_to_height_height_method" yaml:"arm_to_height_height_method"`

	UpperBodyUseNeck      bool `koanf:"upper_body_use_neck" yaml:"upper_body_use_neck"`
	UpperBodyTorsoUseNeck bool `koanf:"upper_body_torso_use_neck" yaml:"upper_body_torso_use_neck"`
	UpperBodyUseLegacy    bool `koanf:"upper_body_use_legacy" yaml:"upper_body_use_legacy"`

	SkipMainRescale   bool `koanf:"skip_main_rescale" yaml:"skip_main_rescale"`
	SkipMoveToFloor   bool `koanf:"skip_move_to_floor" yaml:"skip_move_to_floor"`
	SkipHeightScaling bool `koanf:"skip_height_scaling" yaml:"skip_height_scaling"`
	UseBoneBasedFloor bool `koanf:"use_bone_based_floor" yaml:"use_bone_based_floor"`

	ThicknessPolicy ThicknessPolicy `koanf:"thickness_policy" yaml:"thickness_policy"`
}

// DefaultParameters returns the stock profile.
func DefaultParameters() Parameters {
	return Parameters{
		TargetHeight:            1.61,
		ArmToLegs:               55,
		UpperBodyPercentage:     44,
		ArmThickness:            50,
		LegThickness:            50,
		ThighPercentage:         53,
		CustomScaleRatio:        measure.DefaultScaleRatio,
		TargetHeightMethod:      measure.EyeHeight,
		ArmToHeightRatioMethod:  measure.HeadToElbowVRC,
		ArmToHeightHeightMethod: measure.EyeHeight,
		UpperBodyUseLegacy:      true,
		ScaleEyes:               true,
		ThicknessPolicy:         Blend,
	}
}

// Strategy reports which proportion model the switches select.
func (p Parameters) Strategy() Strategy {
	switch {
	case p.SkipMainRescale:
		return AdjustOnly
	case p.ScaleRelative:
		return Relative
	case p.KeepHeadSize:
		return KeepHead
	}
	return Standard
}

// UpperBodyMethod returns the selectors for the upper-body measurement.
func (p Parameters) UpperBodyMethod() measure.UpperBodyMethod {
	return measure.UpperBodyMethod{
		Legacy:        p.UpperBodyUseLegacy,
		NeckForHeight: p.UpperBodyUseNeck,
		NeckForTorso:  p.UpperBodyTorsoUseNeck,
	}
}

// Validate checks that every value is inside the domain the formulas are
// defined on. Extreme but valid values are accepted; they are handled by
// clamping the resulting factors.
func (p Parameters) Validate() error {
	check := func(name string, v, lo, hi float64, open bool) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParameters, name)
		}
		if open && (v <= lo || v >= hi) {
			return fmt.Errorf("%w: %s=%g must be in (%g, %g)", ErrInvalidParameters, name, v, lo, hi)
		}
		if !open && (v < lo || v > hi) {
			return fmt.Errorf("%w: %s=%g must be in [%g, %g]", ErrInvalidParameters, name, v, lo, hi)
		}
		return nil
	}
	inf := math.MaxFloat64
	checks := []error{
		check("target_height", p.TargetHeight, 0, inf, true),
		check("custom_scale_ratio", p.CustomScaleRatio, 0, inf, true),
		check("upper_body_percentage", p.UpperBodyPercentage, 0, 100, true),
		check("thigh_percentage", p.ThighPercentage, 0, 100, true),
		check("arm_to_legs", p.ArmToLegs, 0, 100, false),
		check("arm_thickness", p.ArmThickness, 0, 100, false),
		check("leg_thickness", p.LegThickness, 0, 100, false),
		check("extra_leg_length", p.ExtraLegLength, -inf, inf, false),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if p.ThicknessPolicy != Blend && p.ThicknessPolicy != Band {
		return fmt.Errorf("%w: unknown thickness policy %d", ErrInvalidParameters, int(p.ThicknessPolicy))
	}
	return nil
}
