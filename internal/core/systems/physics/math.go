package physics

import (
	"fmt"
	"math"
)

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vec2) IsFinite() bool { return isFinite(v.X) && isFinite(v.Y) }
func (v Vec2) String() string { return fmt.Sprintf("(%g, %g)", v.X, v.Y) }

// Isometry is a rigid 2D pose: translation plus rotation in radians, no
// scale or shear. Poses compare with ==; movement detection relies on exact
// equality.
type Isometry struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Angle float64 `json:"angle" yaml:"angle"`
}

// NewIsometry builds a pose from a translation and an angle.
func NewIsometry(x, y, angle float64) Isometry {
	return Isometry{X: x, Y: y, Angle: angle}
}

// Translate returns p moved by d, rotation unchanged.
func (p Isometry) Translate(d Vec2) Isometry {
	return Isometry{X: p.X + d.X, Y: p.Y + d.Y, Angle: p.Angle}
}

func (p Isometry) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Angle)
}

func (p Isometry) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Angle)
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
