// Package rigtest builds synthetic humanoid rigs with known proportions for tests.
//
// The default rig stands in T-pose at the origin with identity rotations:
// eyes at y=1.70, head top mesh at 1.80, leg joints at 0.90, knees 0.49,
// ankles 0.08 and foot soles at 0. The right arm extends along -X from a
// shoulder at (-0.14, 1.348, 0) with an upper arm of 0.196 and a forearm
// of 0.22, so the head (y=1.60) to T-pose elbow distance is exactly 0.42.
package rigtest

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

// Known measurements of the default rig.
const (
	EyeY          = 1.70
	HeadY         = 1.60
	NeckY         = 1.50
	HeadTopY      = 1.80
	LegTopY       = 0.90
	KneeY         = 0.49
	AnkleY        = 0.08
	ShoulderY     = 1.348
	ShoulderX     = 0.14
	UpperArmLen   = 0.196
	ForearmLen    = 0.22
	HeadToElbow   = 0.42
	SoleY         = 0.0
	HandMeshWidth = 0.10
)

// Rig is a built skeleton plus the role bindings used to create it.
type Rig struct {
	Root  *skeleton.Node
	Bones bonemap.Map
}

// Node returns the node bound to role.
func (r *Rig) Node(role humanoid.Role) *skeleton.Node { return r.Bones.Get(role) }

type options struct {
	rootOffset mgl64.Vec3
	unmapped   map[humanoid.Role]bool
	noMeshes   bool
	armDrop    float64
	handMesh   bool
}

// Option customises the rig.
type Option func(*options)

// WithRootOffset places the avatar root at p.
func WithRootOffset(p mgl64.Vec3) Option { return func(o *options) { o.rootOffset = p } }

// Without leaves the given roles unbound. Their joints stay in the tree under
// a neutral name so geometry is unchanged.
func Without(roles ...humanoid.Role) Option {
	return func(o *options) {
		for _, r := range roles {
			o.unmapped[r] = true
		}
	}
}

// WithoutMeshes builds the rig with no renderers at all.
func WithoutMeshes() Option { return func(o *options) { o.noMeshes = true } }

// WithHandMeshes attaches a box renderer to each hand.
func WithHandMeshes() Option { return func(o *options) { o.handMesh = true } }

// WithArmsDropped rotates both upper arms down by deg degrees (A-pose).
func WithArmsDropped(deg float64) Option { return func(o *options) { o.armDrop = deg } }

// New builds the default rig.
func New(opts ...Option) *Rig {
	o := &options{unmapped: make(map[humanoid.Role]bool)}
	for _, opt := range opts {
		opt(o)
	}
	rig := &Rig{Bones: make(bonemap.Map)}

	root := skeleton.NewNode("Avatar")
	root.Position = o.rootOffset
	rig.Root = root

	hidden := 0
	add := func(parent *skeleton.Node, role humanoid.Role, name string, local mgl64.Vec3) *skeleton.Node {
		if o.unmapped[role] {
			hidden++
			name = "Joint" + strconv.Itoa(hidden)
		}
		n := skeleton.NewNode(name)
		n.Position = local
		parent.AddChild(n)
		if !o.unmapped[role] {
			rig.Bones[role] = n
		}
		return n
	}
	box := func(n *skeleton.Node, name string, lo, hi r3.Vec) {
		if o.noMeshes {
			return
		}
		n.Meshes = append(n.Meshes, &skeleton.Mesh{Name: name, Enabled: true, Bounds: r3.Box{Min: lo, Max: hi}})
	}

	hips := add(root, humanoid.Hips, "Hips", mgl64.Vec3{0, 0.95, 0})
	spine := add(hips, humanoid.Spine, "Spine", mgl64.Vec3{0, 0.10, 0})
	chest := add(spine, humanoid.Chest, "Chest", mgl64.Vec3{0, 0.20, 0})
	neck := add(chest, humanoid.Neck, "Neck", mgl64.Vec3{0, 0.25, 0})
	head := add(neck, humanoid.Head, "Head", mgl64.Vec3{0, 0.10, 0})
	add(head, humanoid.LeftEye, "Eye_L", mgl64.Vec3{0.03, 0.10, 0.08})
	add(head, humanoid.RightEye, "Eye_R", mgl64.Vec3{-0.03, 0.10, 0.08})
	box(head, "Face", r3.Vec{X: -0.1, Y: -0.05, Z: -0.1}, r3.Vec{X: 0.1, Y: HeadTopY - HeadY, Z: 0.1})

	for _, side := range []humanoid.Side{humanoid.Left, humanoid.Right} {
		sx := 1.0
		suffix := "_L"
		if side == humanoid.Right {
			sx = -1
			suffix = "_R"
		}
		arm := humanoid.Arm(side)
		upper := add(chest, arm.Upper, "UpperArm"+suffix, mgl64.Vec3{sx * ShoulderX, ShoulderY - 1.25, 0})
		if o.armDrop != 0 {
			upper.Rotation = mgl64.QuatRotate(mgl64.DegToRad(-sx*o.armDrop), mgl64.Vec3{0, 0, 1})
		}
		lower := add(upper, arm.Lower, "LowerArm"+suffix, mgl64.Vec3{sx * UpperArmLen, 0, 0})
		hand := add(lower, arm.End, "Hand"+suffix, mgl64.Vec3{sx * ForearmLen, 0, 0})
		if o.handMesh {
			box(hand, "Hand"+suffix, r3.Vec{X: -HandMeshWidth / 2, Y: -0.03, Z: -0.05}, r3.Vec{X: HandMeshWidth / 2, Y: 0.03, Z: 0.05})
		}
		for i, f := range humanoid.Fingers() {
			z := 0.04 - 0.02*float64(i)
			prox := add(hand, humanoid.FingerRole(side, f, humanoid.Proximal), f.String()+"Proximal"+suffix, mgl64.Vec3{sx * 0.04, 0, z})
			mid := add(prox, humanoid.FingerRole(side, f, humanoid.Intermediate), f.String()+"Intermediate"+suffix, mgl64.Vec3{sx * 0.03, 0, 0})
			add(mid, humanoid.FingerRole(side, f, humanoid.Distal), f.String()+"Distal"+suffix, mgl64.Vec3{sx * 0.025, 0, 0})
		}

		leg := humanoid.Leg(side)
		upLeg := add(hips, leg.Upper, "UpperLeg"+suffix, mgl64.Vec3{sx * 0.09, LegTopY - 0.95, 0})
		lowLeg := add(upLeg, leg.Lower, "LowerLeg"+suffix, mgl64.Vec3{0, KneeY - LegTopY, 0})
		foot := add(lowLeg, leg.End, "Foot"+suffix, mgl64.Vec3{0, AnkleY - KneeY, 0})
		toes := humanoid.LeftToes
		if side == humanoid.Right {
			toes = humanoid.RightToes
		}
		add(foot, toes, "Toes"+suffix, mgl64.Vec3{0, -0.06, 0.12})
		box(foot, "Shoe"+suffix, r3.Vec{X: -0.05, Y: SoleY - AnkleY, Z: -0.05}, r3.Vec{X: 0.05, Y: 0, Z: 0.18})
	}
	return rig
}
