package avatar

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/immersivescaler/internal/domain/posefix"
	"github.com/okian/immersivescaler/internal/domain/scaling"
)

// Component is the marker attached to an avatar that asks the build hook to
// scale it. It persists the parameters and the post-process toggles.
type Component struct {
	Parameters scaling.Parameters `yaml:",inline"`

	ApplyFingerSpreading bool    `yaml:"apply_finger_spreading"`
	FingerSpreadFactor   float64 `yaml:"finger_spread_factor"`
	SpareThumb           bool    `yaml:"spare_thumb"`
	ApplyShrinkHipBone   bool    `yaml:"apply_shrink_hip_bone"`

	// OriginalViewPosition is the view point before the first build scaled
	// the avatar. The view point of every later build derives from it.
	OriginalViewPosition          mgl64.Vec3 `yaml:"original_view_position"`
	HasStoredOriginalViewPosition bool       `yaml:"has_stored_original_view_position"`
}

// DefaultComponent returns a component with the defaults a newly attached
// marker carries. Moving to the floor is skipped so the build keeps the
// avatar where the author placed it.
func DefaultComponent() Component {
	p := scaling.DefaultParameters()
	p.SkipMoveToFloor = true
	return Component{
		Parameters:         p,
		FingerSpreadFactor: posefix.DefaultSpreadFactor,
		SpareThumb:         true,
	}
}

// StoreOriginalViewPosition records v unless a value was stored before.
// It reports whether v was stored.
func (c *Component) StoreOriginalViewPosition(v mgl64.Vec3) bool {
	if c.HasStoredOriginalViewPosition {
		return false
	}
	c.OriginalViewPosition = v
	c.HasStoredOriginalViewPosition = true
	return true
}

// SpreadOptions returns the finger spreading settings.
func (c *Component) SpreadOptions() posefix.SpreadOptions {
	return posefix.SpreadOptions{Factor: c.FingerSpreadFactor, SpareThumb: c.SpareThumb}
}
