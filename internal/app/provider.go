package app

import (
	"fmt"
	"math"

	"github.com/tiendc/go-deepcopy"

	"github.com/okian/immersivescaler/internal/domain/avatar"
	"github.com/okian/immersivescaler/internal/domain/posefix"
	"github.com/okian/immersivescaler/internal/domain/scaling"
)

// PostProcess selects the pose fixes run after a scale.
type PostProcess struct {
	ApplyFingerSpreading bool    `koanf:"apply_finger_spreading" yaml:"apply_finger_spreading"`
	FingerSpreadFactor   float64 `koanf:"finger_spread_factor" yaml:"finger_spread_factor"`
	SpareThumb           bool    `koanf:"spare_thumb" yaml:"spare_thumb"`
	ApplyShrinkHipBone   bool    `koanf:"apply_shrink_hip_bone" yaml:"apply_shrink_hip_bone"`
}

// DefaultPostProcess leaves the pose untouched.
func DefaultPostProcess() PostProcess {
	return PostProcess{FingerSpreadFactor: posefix.DefaultSpreadFactor, SpareThumb: true}
}

// Validate rejects a spread factor the finger fix would refuse. It only
// applies when spreading is enabled.
func (pp PostProcess) Validate() error {
	if !pp.ApplyFingerSpreading {
		return nil
	}
	f := pp.FingerSpreadFactor
	if math.IsNaN(f) || f < 0 || f > posefix.MaxSpreadFactor {
		return fmt.Errorf("%w: %g", posefix.ErrInvalidSpread, f)
	}
	return nil
}

// ParameterProvider is the settings surface shared by the persisted marker
// component and a transient editing session.
type ParameterProvider interface {
	Parameters() scaling.Parameters
	SetParameters(p scaling.Parameters)
	PostProcess() PostProcess
	SetPostProcess(pp PostProcess)
	// Dirty reports whether a setter ran since the provider was created.
	Dirty() bool
}

var (
	_ ParameterProvider = (*ComponentProvider)(nil)
	_ ParameterProvider = (*TransientProvider)(nil)
)

// ComponentProvider reads and writes the fields of a marker component.
type ComponentProvider struct {
	c     *avatar.Component
	dirty bool
}

// NewComponentProvider binds a provider to c.
func NewComponentProvider(c *avatar.Component) *ComponentProvider {
	return &ComponentProvider{c: c}
}

func (p *ComponentProvider) Parameters() scaling.Parameters { return p.c.Parameters }

func (p *ComponentProvider) SetParameters(v scaling.Parameters) {
	p.c.Parameters = v
	p.dirty = true
}

func (p *ComponentProvider) PostProcess() PostProcess {
	return PostProcess{
		ApplyFingerSpreading: p.c.ApplyFingerSpreading,
		FingerSpreadFactor:   p.c.FingerSpreadFactor,
		SpareThumb:           p.c.SpareThumb,
		ApplyShrinkHipBone:   p.c.ApplyShrinkHipBone,
	}
}

func (p *ComponentProvider) SetPostProcess(v PostProcess) {
	p.c.ApplyFingerSpreading = v.ApplyFingerSpreading
	p.c.FingerSpreadFactor = v.FingerSpreadFactor
	p.c.SpareThumb = v.SpareThumb
	p.c.ApplyShrinkHipBone = v.ApplyShrinkHipBone
	p.dirty = true
}

func (p *ComponentProvider) Dirty() bool { return p.dirty }

// TransientProvider holds settings that live only as long as the caller
// keeps it, e.g. a headless run driven by configuration.
type TransientProvider struct {
	params scaling.Parameters
	post   PostProcess
	dirty  bool
}

// NewTransientProvider starts from p and pp.
func NewTransientProvider(p scaling.Parameters, pp PostProcess) *TransientProvider {
	return &TransientProvider{params: p, post: pp}
}

// CopyProvider returns a transient provider detached from src, so edits to
// the copy never reach src.
func CopyProvider(src ParameterProvider) (*TransientProvider, error) {
	var t TransientProvider
	params, post := src.Parameters(), src.PostProcess()
	if err := deepcopy.Copy(&t.params, &params); err != nil {
		return nil, fmt.Errorf("copy parameters: %w", err)
	}
	if err := deepcopy.Copy(&t.post, &post); err != nil {
		return nil, fmt.Errorf("copy post process: %w", err)
	}
	return &t, nil
}

func (p *TransientProvider) Parameters() scaling.Parameters { return p.params }

func (p *TransientProvider) SetParameters(v scaling.Parameters) {
	p.params = v
	p.dirty = true
}

func (p *TransientProvider) PostProcess() PostProcess { return p.post }

func (p *TransientProvider) SetPostProcess(v PostProcess) {
	p.post = v
	p.dirty = true
}

func (p *TransientProvider) Dirty() bool { return p.dirty }
