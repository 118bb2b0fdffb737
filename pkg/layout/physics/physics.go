// Package physics implements the rigid-body alternative to the analytic
// overlap resolver: nodes become dynamic boxes that repel overlapping
// siblings and are pulled toward a polar target position derived from
// their depth and their parent's angle.
//
// Bodies collide only within their collision group. All roots share
// group 0 and every distinct parent id gets its own group, so true
// siblings interact while unrelated subtrees pass through each other
// unless cross-group collision is explicitly enabled.
//
// The simulation is fixed-timestep and owns a copy of the node
// geometry; the tree is written exactly once, when the runner stops.
package physics

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Defaults applied by [Config.ValidateAndSetDefaults].
const (
	DefaultBaseSpringLength    = 120.0
	DefaultMinDistance         = 30.0
	DefaultRepulsionStrength   = 40.0
	DefaultRadialStrength      = 2.0
	DefaultAngularStrength     = 1.0
	DefaultAngularDampingFloor = 0.2
	DefaultVelocityRetention   = 0.85
	DefaultTimeStep            = 1.0 / 60.0
	DefaultInterval            = 16 * time.Millisecond
)

// Config tunes the simulation.
type Config struct {
	// Origin is the canvas point polar targets are measured from.
	Origin r2.Vec

	// BaseSpringLength sets the ring spacing: a node at depth d is
	// pulled toward radius BaseSpringLength*(d+1).
	BaseSpringLength float64

	// MinDistance is the edge-to-edge gap below which sibling bodies
	// start repelling each other.
	MinDistance float64

	// RepulsionStrength scales the separation force per unit of
	// penetration below MinDistance.
	RepulsionStrength float64

	// RadialStrength scales the pull toward the target ring and
	// AngularStrength the pull toward the target point on it.
	RadialStrength  float64
	AngularStrength float64

	// AngularDampingFloor is the minimum multiplier the angular force is
	// damped to when siblings crowd each other. It is never fully
	// disabled, so a dragged branch keeps tracking its parent.
	AngularDampingFloor float64

	// CrossGroupStrength scales repulsion between bodies of different
	// collision groups. Zero leaves unrelated subtrees free to overlap.
	CrossGroupStrength float64

	// VelocityRetention is the fraction of velocity kept each step.
	VelocityRetention float64

	// TimeStep is the simulated seconds per step; Interval is the wall
	// clock pace the runner drives steps at.
	TimeStep float64
	Interval time.Duration
}

// ValidateAndSetDefaults replaces zero fields with package defaults and
// rejects values outside their domain. CrossGroupStrength keeps its
// zero, which means cross-group collision stays disabled.
func (c *Config) ValidateAndSetDefaults() error {
	if c.BaseSpringLength < 0 {
		return fmt.Errorf("base spring length must not be negative, got %v", c.BaseSpringLength)
	}
	if c.MinDistance < 0 {
		return fmt.Errorf("min distance must not be negative, got %v", c.MinDistance)
	}
	if c.RepulsionStrength < 0 || c.RadialStrength < 0 || c.AngularStrength < 0 {
		return fmt.Errorf("force strengths must not be negative")
	}
	if c.CrossGroupStrength < 0 {
		return fmt.Errorf("cross-group strength must not be negative, got %v", c.CrossGroupStrength)
	}
	if c.AngularDampingFloor < 0 || c.AngularDampingFloor > 1 {
		return fmt.Errorf("angular damping floor must be in [0,1], got %v", c.AngularDampingFloor)
	}
	if c.VelocityRetention < 0 || c.VelocityRetention > 1 {
		return fmt.Errorf("velocity retention must be in [0,1], got %v", c.VelocityRetention)
	}
	if c.TimeStep < 0 {
		return fmt.Errorf("time step must not be negative, got %v", c.TimeStep)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", c.Interval)
	}

	if c.BaseSpringLength == 0 {
		c.BaseSpringLength = DefaultBaseSpringLength
	}
	if c.MinDistance == 0 {
		c.MinDistance = DefaultMinDistance
	}
	if c.RepulsionStrength == 0 {
		c.RepulsionStrength = DefaultRepulsionStrength
	}
	if c.RadialStrength == 0 {
		c.RadialStrength = DefaultRadialStrength
	}
	if c.AngularStrength == 0 {
		c.AngularStrength = DefaultAngularStrength
	}
	if c.AngularDampingFloor == 0 {
		c.AngularDampingFloor = DefaultAngularDampingFloor
	}
	if c.VelocityRetention == 0 {
		c.VelocityRetention = DefaultVelocityRetention
	}
	if c.TimeStep == 0 {
		c.TimeStep = DefaultTimeStep
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	return nil
}
