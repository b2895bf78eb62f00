package measure

// Report collects the measurements shown to a user before scaling.
type Report struct {
	LowestPoint             float64        `yaml:"lowest_point"`
	HighestPoint            float64        `yaml:"highest_point"`
	EyeHeight               float64        `yaml:"eye_height"`
	TotalHeight             float64        `yaml:"total_height"`
	EyePositionLocal        [3]float64     `yaml:"eye_position_local,flow"`
	HeadToElbow             float64        `yaml:"head_to_elbow"`
	HeadToWrist             float64        `yaml:"head_to_wrist"`
	ArmLength               float64        `yaml:"arm_length"`
	ShoulderToFingertip     float64        `yaml:"shoulder_to_fingertip"`
	CenterToHand            float64        `yaml:"center_to_hand"`
	CenterToFingertip       float64        `yaml:"center_to_fingertip"`
	FingertipToFingertip    float64        `yaml:"fingertip_to_fingertip"`
	UpperBodyPortion        float64        `yaml:"upper_body_portion"`
	UpperBodyRatio          float64        `yaml:"upper_body_ratio"`
	AlternateUpperBodyRatio float64        `yaml:"alternate_upper_body_ratio"`
	UpperBodyLength         float64        `yaml:"upper_body_length"`
	HeadHeight              float64        `yaml:"head_height"`
	FloorToHeadHeight       float64        `yaml:"floor_to_head_height"`
	LegLength               float64        `yaml:"leg_length"`
	ThighPercentage         float64        `yaml:"thigh_percentage"`
	Leg                     LegProportions `yaml:"leg_proportions"`
	CurrentScaling          float64        `yaml:"current_scaling"`
	Fallbacks               []string       `yaml:"fallbacks,omitempty"`
}

// ReportOptions picks the selectors used by the ratio fields of a Report.
type ReportOptions struct {
	Arm       ArmMethod
	Height    HeightMethod
	UpperBody UpperBodyMethod
}

// Report takes every measurement once. Fallbacks lists the distinct
// measurements that fell back, in the order they first did.
func (m *Measurer) Report(opts ReportOptions) Report {
	seen := make(map[string]bool)
	var fallbacks []string
	prev := m.onFallback
	m.onFallback = func(name string) {
		if !seen[name] {
			seen[name] = true
			fallbacks = append(fallbacks, name)
		}
		if prev != nil {
			prev(name)
		}
	}
	defer func() { m.onFallback = prev }()

	floor := m.Floor()
	eye := m.EyePositionLocal()
	r := Report{
		LowestPoint:             floor,
		HighestPoint:            m.HighestPoint(),
		EyeHeight:               m.EyeHeight() - floor,
		EyePositionLocal:        [3]float64{eye.X(), eye.Y(), eye.Z()},
		HeadToElbow:             m.HeadToElbow(),
		HeadToWrist:             m.HeadToWrist(),
		ArmLength:               m.ArmLength(),
		ShoulderToFingertip:     m.ShoulderToFingertip(),
		CenterToHand:            m.CenterToHand(),
		CenterToFingertip:       m.CenterToFingertip(),
		FingertipToFingertip:    m.FingertipToFingertip(),
		UpperBodyPortion:        m.UpperBodyPortion(),
		UpperBodyRatio:          m.UpperBody(opts.UpperBody),
		AlternateUpperBodyRatio: m.AlternateUpperBodyRatio(),
		UpperBodyLength:         m.UpperBodyLength(),
		HeadHeight:              m.HeadHeight(),
		FloorToHeadHeight:       m.FloorToHeadHeight(),
		LegLength:               m.LegLength(),
		ThighPercentage:         m.ThighPercentage(),
		Leg:                     m.LegProportions(),
		CurrentScaling:          m.CurrentScaling(opts.Arm, opts.Height),
	}
	r.TotalHeight = r.HighestPoint - floor
	r.Fallbacks = fallbacks
	return r
}
