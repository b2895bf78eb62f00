// Package scaling computes and applies the proportional rescale of a
// humanoid avatar: limb and torso factors derived from the platform's
// arm-to-height calibration, followed by flooring and sizing to a target
// height.
package scaling

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/mutate"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
	"github.com/okian/immersivescaler/pkg/logger"
)

const eps = 1e-6

// DefaultLegHeightPortion replaces a degenerate leg-to-height fraction.
const DefaultLegHeightPortion = 1 - measure.DefaultUpperBodyRatio

// Guard names recorded in Result.Guards.
const (
	GuardCurrentHeight = "current_height"
	GuardViewZ         = "view_z"
	GuardLegPortion    = "leg_height_portion"
	GuardUpperBody     = "upper_body_ratio"
	GuardRescaleLeg    = "rescale_leg"
	GuardArmInversion  = "arm_inversion"
	GuardThighRatio    = "thigh_ratio"
	GuardLegSegment    = "leg_segment"
	GuardTargetHeight  = "target_height"
)

// Result reports what one ScaleAvatar call computed and applied.
type Result struct {
	Strategy Strategy `yaml:"strategy"`

	CurrentHeight    float64 `yaml:"current_height"`
	ViewZ            float64 `yaml:"view_z"`
	RescaleRatio     float64 `yaml:"rescale_ratio"`
	LegHeightPortion float64 `yaml:"leg_height_portion"`
	UpperBodyBefore  float64 `yaml:"upper_body_before"`
	UpperBodyTarget  float64 `yaml:"upper_body_target"`

	LegScale      float64 `yaml:"leg_scale"`
	ThighScale    float64 `yaml:"thigh_scale"`
	CalfScale     float64 `yaml:"calf_scale"`
	FootScale     float64 `yaml:"foot_scale"`
	ArmScale      float64 `yaml:"arm_scale"`
	UpperArmScale float64 `yaml:"upper_arm_scale"`
	LowerArmScale float64 `yaml:"lower_arm_scale"`
	HandScale     float64 `yaml:"hand_scale"`
	ArmThickness  float64 `yaml:"arm_thickness"`
	LegThickness  float64 `yaml:"leg_thickness"`
	TorsoScale    float64 `yaml:"torso_scale"`

	HeightScale float64 `yaml:"height_scale"`
	FloorOffset float64 `yaml:"floor_offset"`

	RootScaleBefore mgl64.Vec3 `yaml:"-"`
	RootScaleAfter  mgl64.Vec3 `yaml:"-"`

	// Clamped lists the factors that hit the [MinScale, MaxScale] bounds.
	Clamped []string `yaml:"clamped,omitempty"`
	// Guards lists numerical guards that replaced a degenerate value.
	Guards []string `yaml:"guards,omitempty"`
	// Fallbacks lists measurements that used their documented constant.
	Fallbacks []string `yaml:"fallbacks,omitempty"`

	Duration time.Duration `yaml:"-"`
}

// RootScaleRatio is the Y ratio of the root scale after and before the call.
func (r Result) RootScaleRatio() float64 {
	if math.Abs(r.RootScaleBefore.Y()) < eps {
		return 1
	}
	return r.RootScaleAfter.Y() / r.RootScaleBefore.Y()
}

// Factors returns every per-segment factor by name.
func (r Result) Factors() map[string]float64 {
	return map[string]float64{
		"leg": r.LegScale, "thigh": r.ThighScale, "calf": r.CalfScale, "foot": r.FootScale,
		"arm": r.ArmScale, "upper_arm": r.UpperArmScale, "lower_arm": r.LowerArmScale, "hand": r.HandScale,
		"arm_thickness": r.ArmThickness, "leg_thickness": r.LegThickness, "torso": r.TorsoScale,
	}
}

// Engine runs the scaling algorithm.
type Engine struct {
	logger logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: logger.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScaleAvatar rescales the skeleton under root in place. Invalid parameters
// or a non-humanoid skeleton abort before anything is touched; a failure
// while applying restores the skeleton to its state at the call. Calling it
// again on the result compounds.
func (e *Engine) ScaleAvatar(ctx context.Context, root *skeleton.Node, bones bonemap.Map, p Parameters) (Result, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		e.logger.Error(ctx, "scaling aborted", logger.Error(err))
		return Result{}, err
	}
	if missing := bones.Missing(humanoid.Required()); len(missing) > 0 {
		err := fmt.Errorf("%w: missing %v", ErrNotHumanoid, missing)
		e.logger.Error(ctx, "scaling aborted", logger.Error(err))
		return Result{}, err
	}

	r := &run{
		ctx:    ctx,
		log:    e.logger,
		p:      p,
		root:   root,
		bones:  bones,
		seen:   make(map[string]bool),
		result: Result{Strategy: p.Strategy(), RootScaleBefore: root.Scale},
	}
	r.m = measure.New(root, bones,
		measure.WithBoneBasedFloor(p.UseBoneBasedFloor),
		measure.WithFallbackHook(r.fallback),
	)
	r.mut = mutate.New(root, bones)

	e.logger.Info(ctx, "scaling avatar",
		logger.String("strategy", r.result.Strategy.String()),
		logger.Float64("target_height", p.TargetHeight),
		logger.Float64("upper_body_percentage", p.UpperBodyPercentage),
		logger.Float64("custom_scale_ratio", p.CustomScaleRatio),
	)

	snap := skeleton.Capture(root)
	if err := r.execute(); err != nil {
		snap.Restore()
		e.logger.Error(ctx, "scaling failed, skeleton restored", logger.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrApply, err)
	}
	for _, n := range root.Descendants() {
		if !n.Transform.Finite() {
			snap.Restore()
			err := fmt.Errorf("%w: non-finite transform on %s", ErrApply, n.Name)
			e.logger.Error(ctx, "scaling failed, skeleton restored", logger.Error(err))
			return Result{}, err
		}
	}

	r.result.RootScaleAfter = root.Scale
	r.result.Duration = time.Since(start)
	e.logger.Info(ctx, "scaling complete",
		logger.Float64("leg_scale", r.result.LegScale),
		logger.Float64("arm_scale", r.result.ArmScale),
		logger.Float64("height_scale", r.result.HeightScale),
		logger.Int("clamped", len(r.result.Clamped)),
		logger.Int("fallbacks", len(r.result.Fallbacks)),
	)
	return r.result, nil
}

// run holds the state of one ScaleAvatar call.
type run struct {
	ctx    context.Context
	log    logger.Logger
	p      Parameters
	root   *skeleton.Node
	bones  bonemap.Map
	m      *measure.Measurer
	mut    *mutate.Mutator
	seen   map[string]bool
	result Result
}

func (r *run) fallback(name string) {
	if r.seen[name] {
		return
	}
	r.seen[name] = true
	r.result.Fallbacks = append(r.result.Fallbacks, name)
	r.log.Warn(r.ctx, "measurement fell back to default", logger.String("measurement", name))
}

func (r *run) guard(name string, replaced float64) {
	r.result.Guards = append(r.result.Guards, name)
	r.log.Warn(r.ctx, "degenerate value replaced", logger.String("guard", name), logger.Float64("value", replaced))
}

func (r *run) clamp(name string, v float64) float64 {
	c, moved := ClampScale(v)
	if moved {
		r.result.Clamped = append(r.result.Clamped, name)
		r.log.Warn(r.ctx, "scale factor clamped",
			logger.String("segment", name), logger.Float64("computed", v), logger.Float64("applied", c))
	}
	return c
}

func (r *run) execute() error {
	if r.result.Strategy != AdjustOnly {
		if err := r.proportions(); err != nil {
			return err
		}
	} else {
		r.log.Debug(r.ctx, "main rescale skipped")
	}
	if !r.p.SkipMoveToFloor {
		if err := r.moveToFloor(); err != nil {
			return err
		}
	}
	if !r.p.SkipHeightScaling {
		if err := r.scaleToHeight(); err != nil {
			return err
		}
	}
	if r.p.CenterModel {
		if err := r.mut.SetRootHorizontal(0, 0); err != nil {
			return err
		}
	}
	return nil
}

// plan is everything measured before the first mutation.
type plan struct {
	legScale, armScale, torso float64
	thighK, calfK             float64
	legs                      [2]legPlan
	arms                      [2]armPlan
}

type legPlan struct {
	upper, lower, foot *skeleton.Node
	upperAxis          Axis
	lowerAxis          Axis
	seg                float64
}

type armPlan struct {
	upper, lower, hand *skeleton.Node
	upperAxis          Axis
	lowerAxis          Axis
}

func (r *run) proportions() error {
	p, m := r.p, r.m
	res := &r.result

	height := m.Height(p.ArmToHeightHeightMethod)
	res.CurrentHeight = height
	res.ViewZ = m.ViewZ(p.CustomScaleRatio, p.ArmToHeightRatioMethod) + p.ExtraLegLength

	rescale := 1.0
	switch {
	case height <= eps:
		r.guard(GuardCurrentHeight, height)
	case res.ViewZ <= eps:
		r.guard(GuardViewZ, res.ViewZ)
	default:
		rescale = height / res.ViewZ
	}
	res.RescaleRatio = rescale

	portion := DefaultLegHeightPortion
	if height > eps {
		portion = m.LegLength() / height
	}
	if !(portion > eps) || math.IsInf(portion, 0) {
		r.guard(GuardLegPortion, portion)
		portion = DefaultLegHeightPortion
	}
	res.LegHeightPortion = portion
	r.log.Debug(r.ctx, "base ratios",
		logger.Float64("current_height", height),
		logger.Float64("view_z", res.ViewZ),
		logger.Float64("rescale_ratio", rescale),
		logger.Float64("leg_height_portion", portion),
	)

	pl := plan{torso: 1}
	switch res.Strategy {
	case Relative:
		split := p.ArmToLegs / 100
		legR := math.Pow(rescale, split)
		armR := math.Pow(rescale, 1-split)
		pl.legScale = 1 - (1-1/legR)/portion
		pl.armScale = r.invertArm(armR)
	case KeepHead:
		current, target := r.upperBody()
		pl.torso = target / current
		pl.legScale = (1 - target) / (1 - current)
		pl.armScale = rescale
	default:
		current, target := r.upperBody()
		ub := current / target
		pl.legScale = ub + (ub*current-current)/portion
		rescaleLeg := 1.0
		if den := portion*(pl.legScale-1) + 1; den > eps {
			rescaleLeg = 1 / den
		} else {
			r.guard(GuardRescaleLeg, den)
		}
		pl.armScale = r.invertArm(rescale / rescaleLeg)
	}

	pl.legScale = r.clamp("leg", pl.legScale)
	pl.armScale = r.clamp("arm", pl.armScale)
	pl.torso = r.clamp("torso", pl.torso)
	res.LegScale, res.ArmScale, res.TorsoScale = pl.legScale, pl.armScale, pl.torso

	r.planLegs(&pl)
	r.planArms(&pl)
	return r.apply(&pl)
}

// upperBody returns the current and target upper-body fractions, guarding
// a current value that would divide by zero in either strategy.
func (r *run) upperBody() (float64, float64) {
	current := r.m.UpperBody(r.p.UpperBodyMethod())
	if !(current > eps && current < 1-eps) {
		r.guard(GuardUpperBody, current)
		current = measure.DefaultUpperBodyRatio
	}
	target := r.p.UpperBodyPercentage / 100
	r.result.UpperBodyBefore, r.result.UpperBodyTarget = current, target
	return current, target
}

// invertArm turns a desired change of the selected arm measurement into a
// factor for the arm segments.
func (r *run) invertArm(ratio float64) float64 {
	g, ok := r.armGeometry()
	if !ok {
		r.guard(GuardArmInversion, ratio)
		return 1
	}
	v, guarded := InvertArm(g, ratio)
	if guarded {
		r.guard(GuardArmInversion, ratio)
	}
	r.log.Debug(r.ctx, "arm inversion",
		logger.String("method", r.p.ArmToHeightRatioMethod.String()),
		logger.Float64("ratio", ratio),
		logger.Float64("factor", v),
	)
	return v
}

func (r *run) armGeometry() (ArmGeometry, bool) {
	m := r.m
	switch method := r.p.ArmToHeightRatioMethod; method {
	case measure.ArmLength:
		return ArmGeometry{Model: Proportional}, true
	case measure.HeadToElbowVRC:
		upper, ok := m.UpperArmLength()
		neck, ok2 := m.NeckOffset()
		if !ok || !ok2 {
			return ArmGeometry{}, false
		}
		return ArmGeometry{Model: Triangle, Total: m.HeadToElbow(), Arm: upper, Neck: neck}, true
	case measure.HeadToHand:
		neck, ok := m.NeckOffset()
		if !ok || !r.bones.Has(humanoid.RightLowerArm) || !r.bones.Has(humanoid.RightHand) {
			return ArmGeometry{}, false
		}
		return ArmGeometry{Model: Triangle, Total: m.HeadToWrist(), Arm: m.ArmLength(), Neck: neck}, true
	default:
		if !r.bones.Has(humanoid.RightLowerArm) || !r.bones.Has(humanoid.RightHand) {
			return ArmGeometry{}, false
		}
		return ArmGeometry{Model: Linear, Total: m.Arm(method), Arm: m.ArmLength()}, true
	}
}

func (r *run) planLegs(pl *plan) {
	p, m := r.p, r.m
	pl.thighK, pl.calfK = 1, 1
	if p.RebalanceThigh {
		ct := m.ThighPercentage()
		if ct > eps && ct < 1-eps {
			pl.thighK = math.Sqrt((p.ThighPercentage / 100) / ct)
			pl.calfK = (1 - ct*pl.thighK) / (1 - ct)
		} else {
			r.guard(GuardThighRatio, ct)
		}
	}

	floor := m.Floor()
	for i, side := range []humanoid.Side{humanoid.Left, humanoid.Right} {
		limb := humanoid.Leg(side)
		lp := legPlan{
			upper: r.bones.Get(limb.Upper),
			lower: r.bones.Get(limb.Lower),
			foot:  r.bones.Get(limb.End),
			seg:   pl.legScale,
		}
		lp.upperAxis, lp.lowerAxis = BoneAxis(lp.upper), BoneAxis(lp.lower)
		if !p.ScaleFoot && lp.upper != nil && lp.foot != nil {
			top := lp.upper.WorldPosition().Y() - floor
			footH := lp.foot.WorldPosition().Y() - floor
			if segLen := top - footH; segLen > eps {
				lp.seg = (pl.legScale*top - footH) / segLen
			} else {
				r.guard(GuardLegSegment, segLen)
			}
		}
		pl.legs[i] = lp
	}
}

func (r *run) planArms(pl *plan) {
	for i, side := range []humanoid.Side{humanoid.Left, humanoid.Right} {
		limb := humanoid.Arm(side)
		ap := armPlan{
			upper: r.bones.Get(limb.Upper),
			lower: r.bones.Get(limb.Lower),
			hand:  r.bones.Get(limb.End),
		}
		ap.upperAxis, ap.lowerAxis = BoneAxis(ap.upper), BoneAxis(ap.lower)
		pl.arms[i] = ap
	}
}

func (r *run) apply(pl *plan) error {
	p, res := r.p, &r.result
	one := mgl64.Vec3{1, 1, 1}
	set := func(n *skeleton.Node, v mgl64.Vec3) error {
		if n == nil {
			return nil
		}
		return r.mut.SetNodeScale(n, v)
	}

	if res.Strategy == KeepHead {
		if err := set(r.bones.Get(humanoid.Hips), mgl64.Vec3{1, pl.torso, 1}); err != nil {
			return err
		}
		if err := set(r.bones.Get(humanoid.Head), one); err != nil {
			return err
		}
	}

	legThick := r.clamp("leg_thickness", p.ThicknessPolicy.Factor(p.LegThickness, pl.legScale))
	res.LegThickness = legThick
	res.FootScale = 1
	if p.ScaleFoot {
		res.FootScale = pl.legScale
	}
	for i, lp := range pl.legs {
		thigh := r.clamp("thigh", lp.seg*pl.thighK)
		calf := r.clamp("calf", lp.seg*pl.calfK)
		if i == 0 {
			res.ThighScale, res.CalfScale = thigh, calf
		}
		if err := set(lp.upper, DirectionalScale(lp.upperAxis, thigh, legThick)); err != nil {
			return err
		}
		if err := set(lp.lower, DirectionalScale(lp.lowerAxis, calf, legThick)); err != nil {
			return err
		}
		if err := set(lp.foot, one.Mul(res.FootScale)); err != nil {
			return err
		}
	}

	armThick := r.clamp("arm_thickness", p.ThicknessPolicy.Factor(p.ArmThickness, pl.armScale))
	res.ArmThickness = armThick
	res.UpperArmScale, res.LowerArmScale = pl.armScale, pl.armScale
	res.HandScale = 1
	if p.ScaleHand {
		res.HandScale = pl.armScale
	}
	for _, ap := range pl.arms {
		if err := set(ap.upper, DirectionalScale(ap.upperAxis, pl.armScale, armThick)); err != nil {
			return err
		}
		if err := set(ap.lower, DirectionalScale(ap.lowerAxis, pl.armScale, armThick)); err != nil {
			return err
		}
		if err := set(ap.hand, one.Mul(res.HandScale)); err != nil {
			return err
		}
	}
	r.log.Debug(r.ctx, "segment scales applied",
		logger.Float64("thigh", res.ThighScale),
		logger.Float64("calf", res.CalfScale),
		logger.Float64("leg_thickness", legThick),
		logger.Float64("arm", pl.armScale),
		logger.Float64("arm_thickness", armThick),
		logger.Float64("torso", pl.torso),
	)
	return nil
}

// moveToFloor translates the root so the lowest point lands on world Y=0,
// whatever the root's height was.
func (r *run) moveToFloor() error {
	lowest := r.m.Floor()
	if err := r.mut.Translate(mgl64.Vec3{0, -lowest, 0}); err != nil {
		return err
	}
	r.result.FloorOffset = -lowest
	r.log.Debug(r.ctx, "moved to floor", logger.Float64("lowest_point", lowest))
	return nil
}

// scaleToHeight scales the whole avatar about its current floor height so
// the selected height equals the target.
func (r *run) scaleToHeight() error {
	floor := r.m.Floor()
	current := r.m.Height(r.p.TargetHeightMethod)
	if current <= eps {
		r.guard(GuardTargetHeight, current)
		r.result.HeightScale = 1
		return nil
	}
	ratio := r.p.TargetHeight / current
	if err := r.mut.SetWholeBodyScale(ratio); err != nil {
		return err
	}
	if err := r.mut.Translate(mgl64.Vec3{0, floor - r.m.Floor(), 0}); err != nil {
		return err
	}
	r.result.HeightScale = ratio
	r.log.Debug(r.ctx, "scaled to height",
		logger.String("method", r.p.TargetHeightMethod.String()),
		logger.Float64("current", current),
		logger.Float64("ratio", ratio),
	)
	return nil
}
