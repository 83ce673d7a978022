package camera

import (
	"errors"
	"fmt"

	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

// Center is the world-space point the viewport is centred on.
type Center struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Anchor selects which point of a projected child sits on its world pose.
type Anchor uint8

const (
	AnchorTopLeft Anchor = iota
	AnchorCenter
)

// View is the world-space rectangle seen through a viewport of the given
// size centred on c.
func View(c Center, width, height float64) scene.Rect {
	return scene.Rect{X: c.X - width/2, Y: c.Y - height/2, Width: width, Height: height}
}

// CenterOf reads the camera center stored on node.
func CenterOf(t scene.Tree, node models.EntityID) (Center, error) {
	return scene.Get[Center](t, node, scene.AttrCameraCenter)
}

// Size is a desired size with a dirty flag telling whether it changed
// since the last arrange pass.
type Size struct {
	Width, Height float64
	Dirty         bool
}

// Frame summarizes one arrange pass.
type Frame struct {
	View    scene.Rect
	Visible []models.EntityID
	Culled  []models.EntityID
}

// Layout projects the subtree of one camera node into viewport space.
// Children with a physical position are placed relative to the camera
// view or culled; every other child keeps its own rectangle and its
// subtree is projected the same way.
type Layout struct {
	tree    scene.Tree
	node    models.EntityID
	anchor  Anchor
	desired Size
	logger  log.Log
}

func NewLayout(tree scene.Tree, node models.EntityID, anchor Anchor, logger log.Log) *Layout {
	return &Layout{
		tree:   tree,
		node:   node,
		anchor: anchor,
		logger: logger.With(log.String("component", "camera")),
	}
}

func (l *Layout) Node() models.EntityID { return l.node }

// Measure sizes the layout to the root viewport and folds the dirty flags
// of the whole subtree into the result.
func (l *Layout) Measure() (Size, error) {
	root, err := scene.Bounds(l.tree, l.tree.Root())
	switch {
	case err == nil:
		if root.Width != l.desired.Width || root.Height != l.desired.Height {
			l.desired.Width, l.desired.Height = root.Width, root.Height
			l.desired.Dirty = true
		}
	case errors.Is(err, scene.ErrAttributeMissing):
	default:
		return l.desired, err
	}

	dirty, err := l.measureChildren(l.node)
	if err != nil {
		return l.desired, err
	}
	l.desired.Dirty = l.desired.Dirty || dirty
	return l.desired, nil
}

func (l *Layout) measureChildren(node models.EntityID) (bool, error) {
	children, err := l.tree.Children(node)
	if err != nil {
		return false, err
	}
	anyDirty := false
	for _, child := range children {
		// post-order: the subtree first, then the node itself
		below, err := l.measureChildren(child)
		if err != nil {
			return false, err
		}
		self, err := scene.IsDirty(l.tree, child)
		if err != nil {
			return false, err
		}
		anyDirty = anyDirty || below || self
	}
	return anyDirty, nil
}

// Arrange writes screen rectangles for the subtree. A collapsed camera node
// takes no space and arranges nothing.
func (l *Layout) Arrange() (Frame, error) {
	vis, err := scene.VisibilityOf(l.tree, l.node)
	if err != nil {
		return Frame{}, err
	}
	if vis == scene.Collapsed {
		l.desired = Size{}
		return Frame{}, nil
	}

	bounds, _, err := scene.Lookup[scene.Rect](l.tree, l.node, scene.AttrBounds)
	if err != nil {
		return Frame{}, err
	}
	bounds.Width, bounds.Height = l.desired.Width, l.desired.Height
	if err = scene.SetBounds(l.tree, l.node, bounds); err != nil {
		return Frame{}, err
	}

	center, err := CenterOf(l.tree, l.node)
	if err != nil {
		return Frame{}, fmt.Errorf("camera center: %w", err)
	}

	frame := Frame{View: View(center, bounds.Width, bounds.Height)}
	if err = l.arrangeChildren(l.node, &frame); err != nil {
		return frame, err
	}

	l.desired.Dirty = false
	if err = scene.SetDirty(l.tree, l.node, false); err != nil {
		return frame, err
	}
	return frame, nil
}

func (l *Layout) arrangeChildren(node models.EntityID, frame *Frame) error {
	children, err := l.tree.Children(node)
	if err != nil {
		return err
	}
	for _, child := range children {
		vis, err := scene.VisibilityOf(l.tree, child)
		if err != nil {
			return err
		}
		if vis == scene.Collapsed {
			continue
		}

		pose, physical, err := scene.PhysicalPosition(l.tree, child)
		if err != nil {
			return err
		}
		if physical {
			err = l.project(child, pose, frame)
		} else {
			// viewport-absolute: the child keeps its declared rectangle
			err = l.arrangeChildren(child, frame)
		}
		if err != nil {
			return err
		}
		if err = scene.SetDirty(l.tree, child, false); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layout) project(child models.EntityID, pose physics.Isometry, frame *Frame) error {
	if !frame.View.ContainsPoint(pose.X, pose.Y) {
		frame.Culled = append(frame.Culled, child)
		return l.tree.Set(child, scene.AttrCulled, true)
	}

	// post-order: the subtree is resolved before the child is placed
	if err := l.arrangeChildren(child, frame); err != nil {
		return err
	}
	size, err := l.childSize(child)
	if err != nil {
		return err
	}
	r := scene.Rect{
		X:      pose.X - frame.View.X,
		Y:      pose.Y - frame.View.Y,
		Width:  size.X,
		Height: size.Y,
	}
	if l.anchor == AnchorCenter {
		r.X -= size.X / 2
		r.Y -= size.Y / 2
	}
	if err = scene.SetBounds(l.tree, child, r); err != nil {
		return err
	}
	frame.Visible = append(frame.Visible, child)
	return l.tree.Set(child, scene.AttrCulled, false)
}

// childSize keeps the size the child already declared and falls back to
// the extent of its physical shape.
func (l *Layout) childSize(child models.EntityID) (physics.Vec2, error) {
	bounds, ok, err := scene.Lookup[scene.Rect](l.tree, child, scene.AttrBounds)
	if err != nil {
		return physics.Vec2{}, err
	}
	if ok && (bounds.Width != 0 || bounds.Height != 0) {
		return physics.Vec2{X: bounds.Width, Y: bounds.Height}, nil
	}
	shape, ok, err := scene.PhysicalShape(l.tree, child)
	if err != nil || !ok {
		return physics.Vec2{}, err
	}
	return shape.Extent(), nil
}
