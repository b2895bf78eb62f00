// Package measure reads proportions off a humanoid skeleton: floor and
// ceiling, eye height, six arm definitions, torso and leg ratios.
//
// Every query is a pure read and always returns a finite number. When a bone
// needed for a measurement is missing, or a denominator degenerates, the
// query returns a documented constant and reports the measurement name to
// the fallback hook.
package measure

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

// Fallback constants.
const (
	// DefaultScaleRatio is the platform's stock arm-to-height calibration.
	DefaultScaleRatio = 0.4537
	// ViewOffset is added by the platform to the arm-derived view height.
	ViewOffset = 0.005

	DefaultArmLength       = 0.5
	DefaultWingspan        = 1.5
	DefaultCenterToHand    = 0.5
	DefaultUpperBodyRatio  = 0.44
	DefaultThighPercentage = 0.53
	DefaultLegLength       = 0.8
	DefaultUpperBodyLength = 0.6
	DefaultAlternateRatio  = 0.5

	// FingerAllowance approximates hand plus fingers when no fingertip is mapped.
	FingerAllowance = 0.1
	// HeadTopOffset is added to the head joint when there is no geometry.
	HeadTopOffset = 0.1
	// NeckBelowEye approximates the neck when only the eyes are known.
	NeckBelowEye = 0.1
	// RootHeightOffset stands in for a body when neither eyes nor head exist.
	RootHeightOffset = 1.5
)

const eps = 1e-6

// Measurement names reported to the fallback hook.
const (
	FallbackLowestPointMesh   = "lowest_point_mesh"
	FallbackLowestPointBones  = "lowest_point_bones"
	FallbackHighestPoint      = "highest_point"
	FallbackEyeHeight         = "eye_height"
	FallbackHeadToElbow       = "head_to_elbow"
	FallbackHeadToWrist       = "head_to_wrist"
	FallbackArmLength         = "arm_length"
	FallbackFingertip         = "fingertip"
	FallbackWingspan          = "fingertip_to_fingertip"
	FallbackCenterToHand      = "center_to_hand"
	FallbackCenterToFingertip = "center_to_fingertip"
	FallbackUpperBodyPortion  = "upper_body_portion"
	FallbackUpperBodyRatio    = "upper_body_ratio"
	FallbackUpperBodyLength   = "upper_body_length"
	FallbackHeadHeight        = "head_height"
	FallbackFloorToHead       = "floor_to_head"
	FallbackAlternateRatio    = "alternate_upper_body_ratio"
	FallbackThighPercentage   = "thigh_percentage"
	FallbackLegProportions    = "leg_proportions"
	FallbackLegLength         = "leg_length"
	FallbackScaleRatio        = "scale_ratio"
)

// Measurer answers measurement queries for one skeleton.
type Measurer struct {
	root       *skeleton.Node
	bones      bonemap.Map
	boneFloor  bool
	onFallback func(measurement string)
}

// Option configures a Measurer.
type Option func(*Measurer)

// WithBoneBasedFloor makes Floor ignore mesh bounds and use foot joints.
func WithBoneBasedFloor(on bool) Option {
	return func(m *Measurer) { m.boneFloor = on }
}

// WithFallbackHook registers fn to be called whenever a query falls back.
func WithFallbackHook(fn func(measurement string)) Option {
	return func(m *Measurer) { m.onFallback = fn }
}

// New creates a Measurer over root with the given role bindings.
func New(root *skeleton.Node, bones bonemap.Map, opts ...Option) *Measurer {
	m := &Measurer{root: root, bones: bones}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the measured skeleton root.
func (m *Measurer) Root() *skeleton.Node { return m.root }

// Bones returns the role bindings.
func (m *Measurer) Bones() bonemap.Map { return m.bones }

func (m *Measurer) bone(r humanoid.Role) *skeleton.Node { return m.bones.Get(r) }

func (m *Measurer) fallback(name string) {
	if m.onFallback != nil {
		m.onFallback(name)
	}
}

// Floor is LowestPoint with the configured floor mode.
func (m *Measurer) Floor() float64 { return m.LowestPoint(m.boneFloor) }

// LowestPoint returns the minimum world Y of enabled mesh bounds. With
// useBoneBased, or when there are no meshes, it falls back to the feet and
// toes, then to every mapped bone, then to the root.
func (m *Measurer) LowestPoint(useBoneBased bool) float64 {
	if !useBoneBased {
		lowest := math.Inf(1)
		for _, b := range skeleton.MeshBounds(m.root) {
			lowest = math.Min(lowest, b.Min.Y)
		}
		if finite(lowest) {
			return lowest
		}
		m.fallback(FallbackLowestPointMesh)
	}
	return m.lowestFromBones()
}

func (m *Measurer) lowestFromBones() float64 {
	lowest := math.Inf(1)
	for _, r := range []humanoid.Role{humanoid.LeftFoot, humanoid.RightFoot, humanoid.LeftToes, humanoid.RightToes} {
		if n := m.bone(r); n != nil {
			lowest = math.Min(lowest, n.WorldPosition().Y())
		}
	}
	if finite(lowest) {
		return lowest
	}
	m.fallback(FallbackLowestPointBones)
	for _, n := range m.bones.Nodes() {
		lowest = math.Min(lowest, n.WorldPosition().Y())
	}
	if finite(lowest) {
		return lowest
	}
	return m.root.WorldPosition().Y()
}

// HighestPoint returns the maximum world Y of enabled mesh bounds, else the
// head joint plus HeadTopOffset, else the root plus RootHeightOffset.
func (m *Measurer) HighestPoint() float64 {
	highest := math.Inf(-1)
	for _, b := range skeleton.MeshBounds(m.root) {
		highest = math.Max(highest, b.Max.Y)
	}
	if finite(highest) {
		return highest
	}
	m.fallback(FallbackHighestPoint)
	if head := m.bone(humanoid.Head); head != nil {
		return head.WorldPosition().Y() + HeadTopOffset
	}
	return m.root.WorldPosition().Y() + RootHeightOffset
}

// EyePosition returns the world midpoint of the eyes, or whichever eye is
// mapped, else the head joint, else a point RootHeightOffset above the root.
func (m *Measurer) EyePosition() mgl64.Vec3 {
	l, r := m.bone(humanoid.LeftEye), m.bone(humanoid.RightEye)
	switch {
	case l != nil && r != nil:
		return l.WorldPosition().Add(r.WorldPosition()).Mul(0.5)
	case l != nil:
		return l.WorldPosition()
	case r != nil:
		return r.WorldPosition()
	}
	m.fallback(FallbackEyeHeight)
	if head := m.bone(humanoid.Head); head != nil {
		return head.WorldPosition()
	}
	return m.root.WorldPosition().Add(mgl64.Vec3{0, RootHeightOffset, 0})
}

// EyeHeight is the world Y of EyePosition.
func (m *Measurer) EyeHeight() float64 { return m.EyePosition().Y() }

// EyePositionLocal returns EyePosition in the root's local space, the frame
// the view reference point is stored in.
func (m *Measurer) EyePositionLocal() mgl64.Vec3 {
	return m.root.InverseTransformPoint(m.EyePosition())
}

// Height returns the selected height measured from the floor.
func (m *Measurer) Height(method HeightMethod) float64 {
	floor := m.Floor()
	if method == TotalHeight {
		return m.HighestPoint() - floor
	}
	return m.EyeHeight() - floor
}

// armAxis returns the world axis the right arm extends along in T-pose: X,
// signed by the shoulder to elbow offset, -X when that offset has no X
// extent. A forward swing of the arm does not change the axis.
func armAxis(upper, lower mgl64.Vec3) mgl64.Vec3 {
	dx := lower.X() - upper.X()
	if dx == 0 {
		return mgl64.Vec3{-1, 0, 0}
	}
	return mgl64.Vec3{sign(dx), 0, 0}
}

// UpperArmLength is the right shoulder to elbow distance.
func (m *Measurer) UpperArmLength() (float64, bool) {
	upper, lower := m.bone(humanoid.RightUpperArm), m.bone(humanoid.RightLowerArm)
	if upper == nil || lower == nil {
		return 0, false
	}
	return upper.WorldPosition().Sub(lower.WorldPosition()).Len(), true
}

// NeckOffset is the vertical distance between the head joint and the right shoulder.
func (m *Measurer) NeckOffset() (float64, bool) {
	head, upper := m.bone(humanoid.Head), m.bone(humanoid.RightUpperArm)
	if head == nil || upper == nil {
		return 0, false
	}
	return math.Abs(head.WorldPosition().Y() - upper.WorldPosition().Y()), true
}

// HeadToElbow measures head to the T-pose right elbow, the platform's own
// calibration metric. Falls back to DefaultScaleRatio.
func (m *Measurer) HeadToElbow() float64 {
	head, upper, lower := m.bone(humanoid.Head), m.bone(humanoid.RightUpperArm), m.bone(humanoid.RightLowerArm)
	if head == nil || upper == nil || lower == nil {
		m.fallback(FallbackHeadToElbow)
		return DefaultScaleRatio
	}
	up, lo := upper.WorldPosition(), lower.WorldPosition()
	elbow := up.Add(armAxis(up, lo).Mul(lo.Sub(up).Len()))
	return head.WorldPosition().Sub(elbow).Len()
}

// HeadToWrist measures head to the T-pose right wrist. Falls back to ArmLength.
func (m *Measurer) HeadToWrist() float64 {
	head, upper, lower := m.bone(humanoid.Head), m.bone(humanoid.RightUpperArm), m.bone(humanoid.RightLowerArm)
	if head == nil || upper == nil || lower == nil || m.bone(humanoid.RightHand) == nil {
		m.fallback(FallbackHeadToWrist)
		return m.ArmLength()
	}
	up, lo := upper.WorldPosition(), lower.WorldPosition()
	wrist := up.Add(armAxis(up, lo).Mul(m.ArmLength()))
	return head.WorldPosition().Sub(wrist).Len()
}

// ArmLength is right upper arm plus forearm. Falls back to DefaultArmLength.
func (m *Measurer) ArmLength() float64 {
	upper, lower, hand := m.bone(humanoid.RightUpperArm), m.bone(humanoid.RightLowerArm), m.bone(humanoid.RightHand)
	if upper == nil || lower == nil || hand == nil {
		m.fallback(FallbackArmLength)
		return DefaultArmLength
	}
	u, l, h := upper.WorldPosition(), lower.WorldPosition(), hand.WorldPosition()
	return u.Sub(l).Len() + l.Sub(h).Len()
}

// FingertipToFingertip is the wingspan between the middle distal joints,
// else between the wrists, else shoulders plus two arm lengths.
func (m *Measurer) FingertipToFingertip() float64 {
	ls, rs := m.bone(humanoid.LeftUpperArm), m.bone(humanoid.RightUpperArm)
	if ls == nil || rs == nil {
		m.fallback(FallbackWingspan)
		return DefaultWingspan
	}
	lt := m.bone(humanoid.FingerRole(humanoid.Left, humanoid.Middle, humanoid.Distal))
	rt := m.bone(humanoid.FingerRole(humanoid.Right, humanoid.Middle, humanoid.Distal))
	if lt != nil && rt != nil {
		return lt.WorldPosition().Sub(rt.WorldPosition()).Len()
	}
	m.fallback(FallbackFingertip)
	lh, rh := m.bone(humanoid.LeftHand), m.bone(humanoid.RightHand)
	if lh != nil && rh != nil {
		return lh.WorldPosition().Sub(rh.WorldPosition()).Len()
	}
	return ls.WorldPosition().Sub(rs.WorldPosition()).Len() + 2*m.ArmLength()
}

// ShoulderToFingertip is right shoulder to middle distal joint, else
// ArmLength plus FingerAllowance.
func (m *Measurer) ShoulderToFingertip() float64 {
	shoulder, hand := m.bone(humanoid.RightUpperArm), m.bone(humanoid.RightHand)
	if shoulder == nil || hand == nil {
		m.fallback(FallbackFingertip)
		return m.ArmLength()
	}
	if tip := m.bone(humanoid.FingerRole(humanoid.Right, humanoid.Middle, humanoid.Distal)); tip != nil {
		return shoulder.WorldPosition().Sub(tip.WorldPosition()).Len()
	}
	m.fallback(FallbackFingertip)
	return m.ArmLength() + FingerAllowance
}

func (m *Measurer) center() *skeleton.Node {
	if c := m.bone(humanoid.Chest); c != nil {
		return c
	}
	return m.bone(humanoid.Spine)
}

// CenterToHand is the horizontal chest (or spine) to right wrist distance.
func (m *Measurer) CenterToHand() float64 {
	c, hand := m.center(), m.bone(humanoid.RightHand)
	if c == nil || hand == nil {
		m.fallback(FallbackCenterToHand)
		return DefaultCenterToHand
	}
	return horizontal(hand.WorldPosition(), c.WorldPosition())
}

// CenterToFingertip is the horizontal chest (or spine) to right middle
// distal distance, using the wrist when no fingertip is mapped.
func (m *Measurer) CenterToFingertip() float64 {
	c, hand := m.center(), m.bone(humanoid.RightHand)
	if c == nil || hand == nil {
		m.fallback(FallbackCenterToFingertip)
		return m.CenterToHand() + FingerAllowance
	}
	end := hand
	if tip := m.bone(humanoid.FingerRole(humanoid.Right, humanoid.Middle, humanoid.Distal)); tip != nil {
		end = tip
	}
	return horizontal(end.WorldPosition(), c.WorldPosition())
}

// Arm returns the selected arm measurement.
func (m *Measurer) Arm(method ArmMethod) float64 {
	switch method {
	case HeadToElbowVRC:
		return m.HeadToElbow()
	case HeadToHand:
		return m.HeadToWrist()
	case ShoulderToFingertip:
		return m.ShoulderToFingertip()
	case CenterToHand:
		return m.CenterToHand()
	case CenterToFingertip:
		return m.CenterToFingertip()
	default:
		return m.ArmLength()
	}
}

// ViewZ is the view height the platform infers from the arm measurement:
// arm/ratio + ViewOffset. A non-positive ratio is replaced by DefaultScaleRatio.
func (m *Measurer) ViewZ(ratio float64, method ArmMethod) float64 {
	if !(ratio > eps) || !finite(ratio) {
		m.fallback(FallbackScaleRatio)
		ratio = DefaultScaleRatio
	}
	return m.Arm(method)/ratio + ViewOffset
}

// CurrentScaling is the arm-to-height ratio the platform would compute for
// the avatar as it stands: arm/(height-ViewOffset).
func (m *Measurer) CurrentScaling(arm ArmMethod, height HeightMethod) float64 {
	h := m.Height(height) - ViewOffset
	if h <= eps {
		m.fallback(FallbackScaleRatio)
		return DefaultScaleRatio
	}
	return m.Arm(arm) / h
}

// ProportionRatio is arm/height without the platform offset, for display.
func (m *Measurer) ProportionRatio(arm ArmMethod, height HeightMethod) float64 {
	h := m.Height(height)
	if h <= eps {
		m.fallback(FallbackScaleRatio)
		return DefaultAlternateRatio
	}
	return m.Arm(arm) / h
}

func (m *Measurer) legTopY() (float64, bool) {
	l, r := m.bone(humanoid.LeftUpperLeg), m.bone(humanoid.RightUpperLeg)
	if l == nil || r == nil {
		return 0, false
	}
	return (l.WorldPosition().Y() + r.WorldPosition().Y()) / 2, true
}

// UpperBodyPortion is the legacy torso fraction:
// 1 - (leg joint height - floor)/(eye - floor).
func (m *Measurer) UpperBodyPortion() float64 {
	legY, ok := m.legTopY()
	if !ok {
		m.fallback(FallbackUpperBodyPortion)
		return DefaultUpperBodyRatio
	}
	floor := m.Floor()
	eye := m.EyeHeight() - floor
	if eye <= eps {
		m.fallback(FallbackUpperBodyPortion)
		return DefaultUpperBodyRatio
	}
	return 1 - (legY-floor)/eye
}

// UpperBodyRatio is torso length over height, where the torso ends at the
// neck or head joint and the height is floor to neck or floor to head.
func (m *Measurer) UpperBodyRatio(useNeckForHeight, useNeckForTorso bool) float64 {
	legY, ok := m.legTopY()
	neck, head := m.bone(humanoid.Neck), m.bone(humanoid.Head)
	if !ok || neck == nil || head == nil {
		m.fallback(FallbackUpperBodyRatio)
		return DefaultUpperBodyRatio
	}
	height := m.FloorToHeadHeight()
	if useNeckForHeight {
		height = m.HeadHeight()
	}
	if height <= eps {
		m.fallback(FallbackUpperBodyRatio)
		return DefaultUpperBodyRatio
	}
	top := head.WorldPosition().Y()
	if useNeckForTorso {
		top = neck.WorldPosition().Y()
	}
	return (top - legY) / height
}

// UpperBodyMethod selects how the upper-body fraction is measured.
type UpperBodyMethod struct {
	Legacy        bool
	NeckForHeight bool
	NeckForTorso  bool
}

// UpperBody dispatches to UpperBodyPortion or UpperBodyRatio.
func (m *Measurer) UpperBody(method UpperBodyMethod) float64 {
	if method.Legacy {
		return m.UpperBodyPortion()
	}
	return m.UpperBodyRatio(method.NeckForHeight, method.NeckForTorso)
}

// UpperBodyLength is the vertical leg joint to neck distance.
func (m *Measurer) UpperBodyLength() float64 {
	legY, ok := m.legTopY()
	neck := m.bone(humanoid.Neck)
	if !ok || neck == nil {
		m.fallback(FallbackUpperBodyLength)
		return DefaultUpperBodyLength
	}
	return math.Abs(neck.WorldPosition().Y() - legY)
}

// HeadHeight is floor to neck, else floor to eyes minus NeckBelowEye.
func (m *Measurer) HeadHeight() float64 {
	if neck := m.bone(humanoid.Neck); neck != nil {
		return neck.WorldPosition().Y() - m.Floor()
	}
	m.fallback(FallbackHeadHeight)
	return m.EyeHeight() - m.Floor() - NeckBelowEye
}

// FloorToHeadHeight is floor to the head joint, else the total height.
func (m *Measurer) FloorToHeadHeight() float64 {
	floor := m.Floor()
	if head := m.bone(humanoid.Head); head != nil {
		return head.WorldPosition().Y() - floor
	}
	m.fallback(FallbackFloorToHead)
	return m.HighestPoint() - floor
}

// AlternateUpperBodyRatio is UpperBodyLength over HeadHeight.
func (m *Measurer) AlternateUpperBodyRatio() float64 {
	hh := m.HeadHeight()
	if hh <= eps {
		m.fallback(FallbackAlternateRatio)
		return DefaultAlternateRatio
	}
	return m.UpperBodyLength() / hh
}

// LegLength is the left leg joint height above the floor.
func (m *Measurer) LegLength() float64 {
	upper := m.bone(humanoid.LeftUpperLeg)
	if upper == nil {
		m.fallback(FallbackLegLength)
		return DefaultLegLength
	}
	return upper.WorldPosition().Y() - m.Floor()
}

// LegProportions splits the leg into thigh, calf and foot fractions.
type LegProportions struct {
	Thigh float64 `yaml:"thigh"`
	Calf  float64 `yaml:"calf"`
	Foot  float64 `yaml:"foot"`
}

// DefaultLegProportions is returned when the leg cannot be measured.
var DefaultLegProportions = LegProportions{Thigh: 0.5, Calf: 0.4, Foot: 0.1}

// LegProportions measures the left leg from its joint down to the floor.
func (m *Measurer) LegProportions() LegProportions {
	upper, lower, foot := m.bone(humanoid.LeftUpperLeg), m.bone(humanoid.LeftLowerLeg), m.bone(humanoid.LeftFoot)
	if upper == nil || lower == nil || foot == nil {
		m.fallback(FallbackLegProportions)
		return DefaultLegProportions
	}
	floor := m.Floor()
	top, knee, ankle := upper.WorldPosition().Y(), lower.WorldPosition().Y(), foot.WorldPosition().Y()
	total := top - floor
	if total <= eps {
		m.fallback(FallbackLegProportions)
		return DefaultLegProportions
	}
	return LegProportions{
		Thigh: (top - knee) / total,
		Calf:  (knee - ankle) / total,
		Foot:  (ankle - floor) / total,
	}
}

// ThighPercentage is thigh over thigh plus calf, as a fraction.
func (m *Measurer) ThighPercentage() float64 {
	upper, lower, foot := m.bone(humanoid.LeftUpperLeg), m.bone(humanoid.LeftLowerLeg), m.bone(humanoid.LeftFoot)
	if upper == nil || lower == nil || foot == nil {
		m.fallback(FallbackThighPercentage)
		return DefaultThighPercentage
	}
	thigh := upper.WorldPosition().Y() - lower.WorldPosition().Y()
	calf := lower.WorldPosition().Y() - foot.WorldPosition().Y()
	if thigh+calf <= eps {
		m.fallback(FallbackThighPercentage)
		return DefaultThighPercentage
	}
	return thigh / (thigh + calf)
}

func horizontal(a, b mgl64.Vec3) float64 {
	d := a.Sub(b)
	d[1] = 0
	return d.Len()
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
