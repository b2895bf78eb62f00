// Package avatar models a humanoid avatar as the scaler sees it: the
// skeleton, its role bindings, the VR descriptor holding the eye view point
// and the optional marker component that configures a build-time scale.
package avatar

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/humanoid"
	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/scaling"
	"github.com/okian/immersivescaler/internal/domain/skeleton"
)

// Descriptor is the VR platform's avatar descriptor.
type Descriptor struct {
	// ViewPosition is the eye view reference point in root-local space.
	ViewPosition mgl64.Vec3
}

// Avatar is one humanoid avatar.
type Avatar struct {
	Name  string
	Root  *skeleton.Node
	Bones bonemap.Map

	// Descriptor is nil when the avatar carries none.
	Descriptor *Descriptor
	// Component is nil when no build-time scale is configured.
	Component *Component
}

// Option configures an Avatar.
type Option func(*Avatar)

// WithDescriptor attaches a VR descriptor.
func WithDescriptor(d *Descriptor) Option {
	return func(a *Avatar) { a.Descriptor = d }
}

// WithComponent attaches a scaler component.
func WithComponent(c *Component) Option {
	return func(a *Avatar) { a.Component = c }
}

// New creates an avatar over an already resolved skeleton.
func New(name string, root *skeleton.Node, bones bonemap.Map, opts ...Option) *Avatar {
	a := &Avatar{Name: name, Root: root, Bones: bones}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate checks that the avatar can be measured and scaled.
func (a *Avatar) Validate() error {
	if a.Root == nil {
		return ErrNoSkeleton
	}
	if missing := a.Bones.Missing(humanoid.Required()); len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", scaling.ErrNotHumanoid, missing)
	}
	return nil
}

// Measurer returns a measurer over the avatar's skeleton.
func (a *Avatar) Measurer(opts ...measure.Option) *measure.Measurer {
	return measure.New(a.Root, a.Bones, opts...)
}

// ViewPosition returns the descriptor's view point.
func (a *Avatar) ViewPosition() (mgl64.Vec3, error) {
	if a.Descriptor == nil {
		return mgl64.Vec3{}, ErrNoDescriptor
	}
	return a.Descriptor.ViewPosition, nil
}

// SetViewPosition writes the descriptor's view point.
func (a *Avatar) SetViewPosition(v mgl64.Vec3) error {
	if a.Descriptor == nil {
		return ErrNoDescriptor
	}
	a.Descriptor.ViewPosition = v
	return nil
}

// RemoveComponent detaches the scaler component and reports whether one was present.
func (a *Avatar) RemoveComponent() bool {
	had := a.Component != nil
	a.Component = nil
	return had
}
