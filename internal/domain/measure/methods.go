package measure

import (
	"fmt"
	"strings"
)

// HeightMethod selects which vertical extent counts as the avatar height.
type HeightMethod int

const (
	// EyeHeight measures floor to the midpoint of the eyes.
	EyeHeight HeightMethod = iota
	// TotalHeight measures floor to the top of the geometry.
	TotalHeight
)

var heightMethodNames = map[HeightMethod]string{
	EyeHeight:   "eye_height",
	TotalHeight: "total_height",
}

func (h HeightMethod) String() string {
	if s, ok := heightMethodNames[h]; ok {
		return s
	}
	return fmt.Sprintf("HeightMethod(%d)", int(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h HeightMethod) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText accepts the snake_case name or the CamelCase form.
func (h *HeightMethod) UnmarshalText(b []byte) error {
	key := canonical(string(b))
	for m, name := range heightMethodNames {
		if canonical(name) == key {
			*h = m
			return nil
		}
	}
	return fmt.Errorf("unknown height method %q", string(b))
}

// ArmMethod selects one of the alternative arm measurements.
type ArmMethod int

const (
	// HeadToElbowVRC is head to the T-pose elbow, the platform's own calibration metric.
	HeadToElbowVRC ArmMethod = iota
	// HeadToHand is head to the T-pose wrist.
	HeadToHand
	// ArmLength is upper arm plus forearm.
	ArmLength
	// ShoulderToFingertip is shoulder to the middle fingertip.
	ShoulderToFingertip
	// CenterToHand is the horizontal chest to wrist distance.
	CenterToHand
	// CenterToFingertip is the horizontal chest to middle fingertip distance.
	CenterToFingertip
)

var armMethodNames = map[ArmMethod]string{
	HeadToElbowVRC:      "head_to_elbow_vrc",
	HeadToHand:          "head_to_hand",
	ArmLength:           "arm_length",
	ShoulderToFingertip: "shoulder_to_fingertip",
	CenterToHand:        "center_to_hand",
	CenterToFingertip:   "center_to_fingertip",
}

// ArmMethods lists every arm measurement.
func ArmMethods() []ArmMethod {
	return []ArmMethod{HeadToElbowVRC, HeadToHand, ArmLength, ShoulderToFingertip, CenterToHand, CenterToFingertip}
}

func (a ArmMethod) String() string {
	if s, ok := armMethodNames[a]; ok {
		return s
	}
	return fmt.Sprintf("ArmMethod(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a ArmMethod) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts the snake_case name or the CamelCase form.
func (a *ArmMethod) UnmarshalText(b []byte) error {
	key := canonical(string(b))
	for m, name := range armMethodNames {
		if canonical(name) == key {
			*a = m
			return nil
		}
	}
	return fmt.Errorf("unknown arm method %q", string(b))
}

func canonical(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
}
