// Package humanoid defines the canonical bone roles of a humanoid skeleton,
// independent of any rig's naming convention.
package humanoid

import (
	"fmt"
	"strings"
)

// Role is a canonical skeletal joint label.
type Role int

// Body roles. The order is stable and used for iteration only.
const (
	Hips Role = iota
	Spine
	Chest
	UpperChest
	Neck
	Head
	LeftEye
	RightEye

	LeftShoulder
	LeftUpperArm
	LeftLowerArm
	LeftHand
	RightShoulder
	RightUpperArm
	RightLowerArm
	RightHand

	LeftUpperLeg
	LeftLowerLeg
	LeftFoot
	LeftToes
	RightUpperLeg
	RightLowerLeg
	RightFoot
	RightToes

	// Finger roles, laid out as side x finger x segment.
	LeftThumbProximal
	LeftThumbIntermediate
	LeftThumbDistal
	LeftIndexProximal
	LeftIndexIntermediate
	LeftIndexDistal
	LeftMiddleProximal
	LeftMiddleIntermediate
	LeftMiddleDistal
	LeftRingProximal
	LeftRingIntermediate
	LeftRingDistal
	LeftLittleProximal
	LeftLittleIntermediate
	LeftLittleDistal
	RightThumbProximal
	RightThumbIntermediate
	RightThumbDistal
	RightIndexProximal
	RightIndexIntermediate
	RightIndexDistal
	RightMiddleProximal
	RightMiddleIntermediate
	RightMiddleDistal
	RightRingProximal
	RightRingIntermediate
	RightRingDistal
	RightLittleProximal
	RightLittleIntermediate
	RightLittleDistal

	roleCount
)

var roleNames = [...]string{
	"Hips", "Spine", "Chest", "UpperChest", "Neck", "Head", "LeftEye", "RightEye",
	"LeftShoulder", "LeftUpperArm", "LeftLowerArm", "LeftHand",
	"RightShoulder", "RightUpperArm", "RightLowerArm", "RightHand",
	"LeftUpperLeg", "LeftLowerLeg", "LeftFoot", "LeftToes",
	"RightUpperLeg", "RightLowerLeg", "RightFoot", "RightToes",
	"LeftThumbProximal", "LeftThumbIntermediate", "LeftThumbDistal",
	"LeftIndexProximal", "LeftIndexIntermediate", "LeftIndexDistal",
	"LeftMiddleProximal", "LeftMiddleIntermediate", "LeftMiddleDistal",
	"LeftRingProximal", "LeftRingIntermediate", "LeftRingDistal",
	"LeftLittleProximal", "LeftLittleIntermediate", "LeftLittleDistal",
	"RightThumbProximal", "RightThumbIntermediate", "RightThumbDistal",
	"RightIndexProximal", "RightIndexIntermediate", "RightIndexDistal",
	"RightMiddleProximal", "RightMiddleIntermediate", "RightMiddleDistal",
	"RightRingProximal", "RightRingIntermediate", "RightRingDistal",
	"RightLittleProximal", "RightLittleIntermediate", "RightLittleDistal",
}

// String returns the canonical role name, e.g. "LeftUpperArm".
func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r >= 0 && r < roleCount }

// MarshalText implements encoding.TextMarshaler so roles can be map keys in documents.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown humanoid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole resolves a role from its canonical name, case-insensitively.
func ParseRole(name string) (Role, error) {
	n := strings.TrimSpace(name)
	for i, rn := range roleNames {
		if strings.EqualFold(rn, n) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown humanoid role %q", name)
}

// All returns every role in declaration order.
func All() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}

// Required lists the roles without which a skeleton is not treated as humanoid.
func Required() []Role {
	return []Role{Hips, Head, LeftUpperArm, RightUpperArm, LeftUpperLeg, RightUpperLeg}
}

// Side selects the left or right limb.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "Left"
	}
	return "Right"
}

// Finger names a digit of the hand.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Little
)

// Fingers lists the digits from thumb to little finger.
func Fingers() []Finger { return []Finger{Thumb, Index, Middle, Ring, Little} }

func (f Finger) String() string {
	return [...]string{"Thumb", "Index", "Middle", "Ring", "Little"}[f]
}

// Segment is a phalanx position along a finger.
type Segment int

const (
	Proximal Segment = iota
	Intermediate
	Distal
)

// FingerRole returns the role of one finger segment.
func FingerRole(side Side, finger Finger, seg Segment) Role {
	base := LeftThumbProximal
	if side == Right {
		base = RightThumbProximal
	}
	return base + Role(int(finger)*3+int(seg))
}

// Limb groups the roles along one arm or leg, root to tip.
type Limb struct {
	Upper Role
	Lower Role
	End   Role
}

// Arm returns the arm chain for a side.
func Arm(side Side) Limb {
	if side == Left {
		return Limb{Upper: LeftUpperArm, Lower: LeftLowerArm, End: LeftHand}
	}
	return Limb{Upper: RightUpperArm, Lower: RightLowerArm, End: RightHand}
}

// Leg returns the leg chain for a side.
func Leg(side Side) Limb {
	if side == Left {
		return Limb{Upper: LeftUpperLeg, Lower: LeftLowerLeg, End: LeftFoot}
	}
	return Limb{Upper: RightUpperLeg, Lower: RightLowerLeg, End: RightFoot}
}
