// Package app drives scaling on one avatar: direct scales, preview
// transactions that can be cancelled back to the exact prior pose, the
// build hook and the parameter providers that feed them.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/mutate"
	"github.com/okian/immersivescaler/internal/domain/posefix"
	"github.com/okian/immersivescaler/internal/domain/scaling"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
	"github.com/okian/immersivescaler/pkg/logger"
	"github.com/okian/immersivescaler/pkg/metrics"
)

// Failure reasons recorded in the scale_failures_total metric.
const (
	ReasonNotHumanoid        = "not_humanoid"
	ReasonInvalidParameters  = "invalid_parameters"
	ReasonApply              = "apply"
	ReasonNoDescriptor       = "no_descriptor"
	ReasonInvalidPostProcess = "invalid_post_process"
	ReasonOther              = "other"
)

// Session owns one avatar for the duration of an editing or build run.
// All methods serialize on the session, so at most one operation touches
// the skeleton at a time.
type Session struct {
	mu sync.Mutex

	avatar *avatar.Avatar
	engine *scaling.Engine
	finder posefix.Finder
	logger logger.Logger

	preview *preview
}

// preview is the state needed to undo an open preview.
type preview struct {
	id      uuid.UUID
	snap    *skeleton.Snapshot
	view    mgl64.Vec3
	hasView bool
	began   time.Time
}

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithEngine sets the scaling engine.
func WithEngine(e *scaling.Engine) Option {
	return func(s *Session) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFinder sets the lookup used for finger joints the bone map misses.
func WithFinder(f posefix.Finder) Option {
	return func(s *Session) {
		if f != nil {
			s.finder = f
		}
	}
}

// NewSession opens a session on a. The avatar must have a skeleton.
func NewSession(a *avatar.Avatar, opts ...Option) (*Session, error) {
	if a == nil || a.Root == nil {
		return nil, avatar.ErrNoSkeleton
	}
	s := &Session{
		avatar: a,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = scaling.NewEngine(scaling.WithLogger(s.logger))
	}
	if s.finder == nil {
		s.finder = bonemap.NewResolver()
	}
	return s, nil
}

// Avatar returns the avatar the session operates on.
func (s *Session) Avatar() *avatar.Avatar { return s.avatar }

// Measure takes every display measurement of the avatar as it stands.
func (s *Session) Measure(ctx context.Context, opts measure.ReportOptions, mopts ...measure.Option) measure.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.avatar.Descriptor == nil {
		s.logger.Warn(ctx, "avatar has no VR descriptor, view position unavailable",
			logger.String("avatar", s.avatar.Name))
	}
	mopts = append(mopts, measure.WithFallbackHook(metrics.RecordMeasurementFallback))
	return s.avatar.Measurer(mopts...).Report(opts)
}

// AutoPopulate returns p with its measured fields read off the avatar.
func (s *Session) AutoPopulate(p scaling.Parameters) scaling.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AutoPopulate(s.avatar.Measurer(measure.WithBoneBasedFloor(p.UseBoneBasedFloor)), p)
}

// Scale rescales the avatar with p and moves the view position with it.
// A second call compounds.
func (s *Session) Scale(ctx context.Context, p scaling.Parameters) (scaling.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, hasView := s.view()
	return s.run(ctx, p, PostProcess{}, view, hasView)
}

// Run scales with the provider's parameters and then applies its pose fixes.
func (s *Session) Run(ctx context.Context, pp ParameterProvider) (scaling.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, hasView := s.view()
	return s.run(ctx, pp.Parameters(), pp.PostProcess(), view, hasView)
}

func (s *Session) view() (mgl64.Vec3, bool) {
	v, err := s.avatar.ViewPosition()
	return v, err == nil
}

// run scales, writes base*ratio to the view position and applies the
// post-process. Nothing is touched when validation fails.
func (s *Session) run(ctx context.Context, p scaling.Parameters, post PostProcess, base mgl64.Vec3, hasView bool) (scaling.Result, error) {
	if err := post.Validate(); err != nil {
		metrics.RecordScaleFailure(ReasonInvalidPostProcess)
		return scaling.Result{}, err
	}
	if err := s.avatar.Validate(); err != nil {
		metrics.RecordScaleFailure(failureReason(err))
		s.logger.Error(ctx, "avatar rejected", logger.String("avatar", s.avatar.Name), logger.Error(err))
		return scaling.Result{}, err
	}

	res, err := s.engine.ScaleAvatar(ctx, s.avatar.Root, s.avatar.Bones, p)
	if err != nil {
		metrics.RecordScaleFailure(failureReason(err))
		return scaling.Result{}, err
	}
	record(res)

	if hasView && rescalesView(p) {
		view := base.Mul(res.RootScaleRatio())
		if err := s.avatar.SetViewPosition(view); err != nil {
			s.logger.Warn(ctx, "view position not rescaled",
				logger.String("avatar", s.avatar.Name), logger.Error(err))
		} else {
			s.logger.Debug(ctx, "view position rescaled",
				logger.Vec3("view_position", view), logger.Float64("ratio", res.RootScaleRatio()))
		}
	} else if !hasView {
		s.logger.Warn(ctx, "avatar has no VR descriptor, view position not rescaled",
			logger.String("avatar", s.avatar.Name))
	}

	s.postProcess(ctx, post)
	return res, nil
}

// rescalesView reports whether a run with p can change the avatar's size.
func rescalesView(p scaling.Parameters) bool {
	return !(p.SkipMainRescale && p.SkipHeightScaling)
}

func (s *Session) postProcess(ctx context.Context, post PostProcess) {
	if post.ApplyFingerSpreading {
		opts := posefix.SpreadOptions{Factor: post.FingerSpreadFactor, SpareThumb: post.SpareThumb, Finder: s.finder}
		if n, err := posefix.SpreadFingers(s.avatar.Bones, opts); err != nil {
			s.logger.Warn(ctx, "finger spreading skipped", logger.Error(err))
		} else {
			s.logger.Debug(ctx, "fingers spread", logger.Int("joints", n), logger.Float64("factor", post.FingerSpreadFactor))
		}
	}
	if post.ApplyShrinkHipBone {
		if pos, err := posefix.NudgeHips(s.avatar.Bones); err != nil {
			s.logger.Warn(ctx, "hip fix skipped", logger.Error(err))
		} else {
			s.logger.Debug(ctx, "hips moved", logger.Vec3("position", pos))
		}
	}
}

func record(res scaling.Result) {
	metrics.RecordScaleOperation(res.Strategy.String(), float64(res.Duration.Microseconds())/1000)
	for _, seg := range res.Clamped {
		metrics.RecordClampedFactor(seg)
	}
	for _, name := range res.Fallbacks {
		metrics.RecordMeasurementFallback(name)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, scaling.ErrNotHumanoid), errors.Is(err, avatar.ErrNoSkeleton):
		return ReasonNotHumanoid
	case errors.Is(err, scaling.ErrInvalidParameters):
		return ReasonInvalidParameters
	case errors.Is(err, scaling.ErrApply):
		return ReasonApply
	case errors.Is(err, ErrNoDescriptor):
		return ReasonNoDescriptor
	}
	return ReasonOther
}

// SpreadFingers rotates the finger joints apart; see posefix.SpreadFingers.
func (s *Session) SpreadFingers(ctx context.Context, factor float64, spareThumb bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := posefix.SpreadFingers(s.avatar.Bones, posefix.SpreadOptions{Factor: factor, SpareThumb: spareThumb, Finder: s.finder})
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "fingers spread", logger.Int("joints", n), logger.Float64("factor", factor))
	return n, nil
}

// NudgeHips moves the hip joint toward the spine; see posefix.NudgeHips.
func (s *Session) NudgeHips(ctx context.Context) (mgl64.Vec3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := posefix.NudgeHips(s.avatar.Bones)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	s.logger.Info(ctx, "hips moved", logger.Vec3("position", pos))
	return pos, nil
}

// ResetScales sets every local scale in the skeleton back to one and
// returns how many nodes changed.
func (s *Session) ResetScales(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := mutate.ResetScales(s.avatar.Root)
	s.logger.Info(ctx, "scales reset", logger.Int("nodes", n))
	return n
}

// BeginPreview captures the skeleton and view position, then runs the
// provider's scale and pose fixes. The returned id closes the preview
// with ApplyPreview or CancelPreview. A failed run leaves no preview open.
func (s *Session) BeginPreview(ctx context.Context, pp ParameterProvider) (uuid.UUID, scaling.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview != nil {
		return uuid.Nil, scaling.Result{}, fmt.Errorf("%w: %s", ErrPreviewActive, s.preview.id)
	}

	view, hasView := s.view()
	pv := &preview{
		id:      uuid.New(),
		snap:    skeleton.Capture(s.avatar.Root),
		view:    view,
		hasView: hasView,
		began:   time.Now(),
	}
	res, err := s.run(ctx, pp.Parameters(), pp.PostProcess(), view, hasView)
	if err != nil {
		s.undo(ctx, pv)
		return uuid.Nil, scaling.Result{}, err
	}

	s.preview = pv
	metrics.RecordPreview(metrics.PreviewBegun)
	s.logger.Info(ctx, "preview started", logger.String("preview", pv.id.String()), logger.String("avatar", s.avatar.Name))
	return pv.id, res, nil
}

// UpdatePreview rolls the open preview back to its captured state and runs
// again with the provider's current settings.
func (s *Session) UpdatePreview(ctx context.Context, id uuid.UUID, pp ParameterProvider) (scaling.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPreview(id); err != nil {
		return scaling.Result{}, err
	}
	s.undo(ctx, s.preview)
	res, err := s.run(ctx, pp.Parameters(), pp.PostProcess(), s.preview.view, s.preview.hasView)
	if err != nil {
		s.undo(ctx, s.preview)
		return scaling.Result{}, err
	}
	s.logger.Debug(ctx, "preview updated", logger.String("preview", id.String()))
	return res, nil
}

// ApplyPreview keeps the previewed changes and closes the preview.
func (s *Session) ApplyPreview(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPreview(id); err != nil {
		return err
	}
	began := s.preview.began
	s.preview = nil
	metrics.RecordPreview(metrics.PreviewApplied)
	s.logger.Info(ctx, "preview applied",
		logger.String("preview", id.String()), logger.Float64("open_seconds", time.Since(began).Seconds()))
	return nil
}

// CancelPreview restores every node and the view position to their state
// when the preview began and closes the preview.
func (s *Session) CancelPreview(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPreview(id); err != nil {
		return err
	}
	s.undo(ctx, s.preview)
	s.preview = nil
	metrics.RecordPreview(metrics.PreviewCancelled)
	s.logger.Info(ctx, "preview cancelled", logger.String("preview", id.String()))
	return nil
}

// Preview returns the id of the open preview, if any.
func (s *Session) Preview() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview == nil {
		return uuid.Nil, false
	}
	return s.preview.id, true
}

func (s *Session) checkPreview(id uuid.UUID) error {
	if s.preview == nil {
		return ErrNoPreview
	}
	if s.preview.id != id {
		return fmt.Errorf("%w: got %s, open %s", ErrPreviewMismatch, id, s.preview.id)
	}
	return nil
}

func (s *Session) undo(ctx context.Context, pv *preview) {
	pv.snap.Restore()
	if !pv.hasView {
		return
	}
	if err := s.avatar.SetViewPosition(pv.view); err != nil {
		s.logger.Warn(ctx, "view position not restored",
			logger.String("avatar", s.avatar.Name), logger.Error(err))
	}
}
