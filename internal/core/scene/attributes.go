package scene

import (
	"fmt"

	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

// Attribute names a typed property stored on a scene node.
type Attribute string

const (
	AttrName             Attribute = "name"
	AttrBounds           Attribute = "bounds"
	AttrPhysicalPosition Attribute = "physical_position"
	AttrPhysicalShape    Attribute = "physical_shape"
	AttrCameraCenter     Attribute = "camera_center"
	AttrVisibility       Attribute = "visibility"
	AttrCulled           Attribute = "culled"
	AttrDirty            Attribute = "dirty"
)

// Attrs is an initial attribute set for Graph.Create.
type Attrs map[Attribute]any

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ContainsPoint reports whether (x, y) lies inside r, edges included.
func (r Rect) ContainsPoint(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g, %g, %gx%g]", r.X, r.Y, r.Width, r.Height)
}

type Visibility uint8

const (
	Visible Visibility = iota
	Hidden
	// Collapsed nodes are hidden and take no space in layout.
	Collapsed
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case Collapsed:
		return "collapsed"
	default:
		return fmt.Sprintf("visibility(%d)", uint8(v))
	}
}

func Name(t Tree, node models.EntityID) (string, error) {
	return Get[string](t, node, AttrName)
}

func Bounds(t Tree, node models.EntityID) (Rect, error) {
	return Get[Rect](t, node, AttrBounds)
}

func SetBounds(t Tree, node models.EntityID, r Rect) error {
	return t.Set(node, AttrBounds, r)
}

func PhysicalPosition(t Tree, node models.EntityID) (physics.Isometry, bool, error) {
	return Lookup[physics.Isometry](t, node, AttrPhysicalPosition)
}

func PhysicalShape(t Tree, node models.EntityID) (physics.Shape, bool, error) {
	return Lookup[physics.Shape](t, node, AttrPhysicalShape)
}

// VisibilityOf returns Visible for nodes that never set a visibility.
func VisibilityOf(t Tree, node models.EntityID) (Visibility, error) {
	v, _, err := Lookup[Visibility](t, node, AttrVisibility)
	return v, err
}

// IsDirty returns false for nodes that never set the dirty flag.
func IsDirty(t Tree, node models.EntityID) (bool, error) {
	v, _, err := Lookup[bool](t, node, AttrDirty)
	return v, err
}

func SetDirty(t Tree, node models.EntityID, dirty bool) error {
	return t.Set(node, AttrDirty, dirty)
}

// IsCulled returns false for nodes that were never culled.
func IsCulled(t Tree, node models.EntityID) (bool, error) {
	v, _, err := Lookup[bool](t, node, AttrCulled)
	return v, err
}
