package app

import (
	"context"
	"fmt"

	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/scaling"
	"github.com/okian/immersivescaler/pkg/logger"
	"github.com/okian/immersivescaler/pkg/metrics"
)

// Build runs the build-time scale configured by the avatar's marker
// component exactly once. The view position before the first build is kept
// on the component and every build derives the new view position from it.
// On success the component is removed from the avatar; on failure the
// avatar keeps it and its skeleton is unchanged.
func (s *Session) Build(ctx context.Context) (scaling.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview != nil {
		return scaling.Result{}, fmt.Errorf("%w: %s", ErrPreviewActive, s.preview.id)
	}
	c := s.avatar.Component
	if c == nil {
		return scaling.Result{}, avatar.ErrNoComponent
	}
	view, err := s.avatar.ViewPosition()
	if err != nil {
		metrics.RecordScaleFailure(ReasonNoDescriptor)
		s.logger.Error(ctx, "build aborted", logger.String("avatar", s.avatar.Name), logger.Error(err))
		return scaling.Result{}, fmt.Errorf("%w: %w", ErrNoDescriptor, err)
	}

	if c.StoreOriginalViewPosition(view) {
		s.logger.Debug(ctx, "original view position stored", logger.Vec3("view_position", view))
	}

	pp := NewComponentProvider(c)
	res, err := s.run(ctx, pp.Parameters(), pp.PostProcess(), c.OriginalViewPosition, true)
	if err != nil {
		s.logger.Error(ctx, "build failed", logger.String("avatar", s.avatar.Name), logger.Error(err))
		return scaling.Result{}, err
	}

	s.avatar.RemoveComponent()
	s.logger.Info(ctx, "build scale applied",
		logger.String("avatar", s.avatar.Name),
		logger.String("strategy", res.Strategy.String()),
		logger.Float64("root_scale_ratio", res.RootScaleRatio()),
	)
	return res, nil
}

// BuildHook opens a session on a and runs Build. It is the entry point a
// build pipeline calls once per avatar.
func BuildHook(ctx context.Context, a *avatar.Avatar, opts ...Option) (scaling.Result, error) {
	s, err := NewSession(a, opts...)
	if err != nil {
		return scaling.Result{}, err
	}
	return s.Build(ctx)
}
