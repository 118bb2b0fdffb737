package layout

import "fmt"

// Defaults applied by [Options.ValidateAndSetDefaults].
const (
	DefaultHSpacing      = 40.0
	DefaultVSpacing      = 20.0
	DefaultMaxIterations = 5
	DefaultMaxStep       = 80.0
)

// Options configure subtree padding and overlap resolution.
type Options struct {
	// HSpacing and VSpacing pad subtree bounding rects on each side, so
	// resolved siblings end up separated rather than merely touching.
	HSpacing float64
	VSpacing float64

	// MaxIterations bounds the separation passes per sibling group.
	// Residual overlap may remain once the cap is hit on dense input.
	MaxIterations int

	// MaxStep caps the displacement a single pair separation applies to
	// one subtree, to avoid overshoot on large overlaps.
	MaxStep float64
}

// ValidateAndSetDefaults replaces zero fields with package defaults and
// rejects negative values.
func (o *Options) ValidateAndSetDefaults() error {
	if o.HSpacing < 0 {
		return fmt.Errorf("horizontal spacing must not be negative, got %v", o.HSpacing)
	}
	if o.VSpacing < 0 {
		return fmt.Errorf("vertical spacing must not be negative, got %v", o.VSpacing)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("iteration cap must not be negative, got %d", o.MaxIterations)
	}
	if o.MaxStep < 0 {
		return fmt.Errorf("max step must not be negative, got %v", o.MaxStep)
	}

	if o.HSpacing == 0 {
		o.HSpacing = DefaultHSpacing
	}
	if o.VSpacing == 0 {
		o.VSpacing = DefaultVSpacing
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxStep == 0 {
		o.MaxStep = DefaultMaxStep
	}
	return nil
}
