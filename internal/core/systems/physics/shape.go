package physics

import "fmt"

// ShapeKind tags the variants of Shape.
type ShapeKind uint8

const (
	KindBall ShapeKind = iota + 1
)

func (k ShapeKind) String() string {
	switch k {
	case KindBall:
		return "ball"
	default:
		return fmt.Sprintf("shape(%d)", uint8(k))
	}
}

// Shape is the closed set of collision geometries an entity can declare.
// The set is sealed by an unexported method; a new geometry is a new
// variant here plus a new case in World.buildCollider.
type Shape interface {
	Kind() ShapeKind
	// Extent is the width and height of the shape's bounding box.
	Extent() Vec2
	Validate() error

	sealed()
}

// Ball is a disc centred on its body. A sensor ball reports proximity
// events instead of taking part in contact resolution.
type Ball struct {
	Radius float64 `json:"radius" yaml:"radius"`
	Sensor bool    `json:"sensor,omitempty" yaml:"sensor,omitempty"`
}

// DefaultShape is the shape given to entities that declare a physical
// shape without geometry.
func DefaultShape() Shape { return Ball{Radius: 5} }

func (Ball) Kind() ShapeKind { return KindBall }

func (b Ball) Extent() Vec2 { return Vec2{X: 2 * b.Radius, Y: 2 * b.Radius} }

func (b Ball) Validate() error {
	if !isFinite(b.Radius) || b.Radius <= 0 {
		return fmt.Errorf("%w: ball radius must be positive and finite, got %g", ErrShapeRejected, b.Radius)
	}
	return nil
}

func (Ball) sealed() {}
