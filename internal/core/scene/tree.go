package scene

import (
	"errors"

	"github.com/zeusync/battlefield/internal/core/models"
)

var (
	ErrNodeNotFound     = errors.New("scene: node not found")
	ErrAttributeMissing = errors.New("scene: attribute not set")
	ErrAttributeType    = errors.New("scene: attribute has unexpected type")
	ErrNotAChild        = errors.New("scene: node is not a child of parent")
	ErrCycle            = errors.New("scene: node cannot be appended below itself")
)

// Tree is the scene graph owned by the host framework. The battlefield only
// holds node ids and reaches node state through typed attributes.
type Tree interface {
	// Root is the window node whose bounds define the viewport.
	Root() models.EntityID
	Contains(node models.EntityID) bool

	Get(node models.EntityID, attr Attribute) (any, error)
	Set(node models.EntityID, attr Attribute, value any) error
	Unset(node models.EntityID, attr Attribute) error

	// AppendChild attaches child as the last child of parent, detaching it
	// from its previous parent first.
	AppendChild(parent, child models.EntityID) error
	RemoveChild(parent, child models.EntityID) error
	Children(node models.EntityID) ([]models.EntityID, error)
	// Parent returns models.NoEntity for the root and for detached nodes.
	Parent(node models.EntityID) (models.EntityID, error)
}

// Get reads attr from node as a T.
func Get[T any](t Tree, node models.EntityID, attr Attribute) (T, error) {
	var zero T
	raw, err := t.Get(node, attr)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, &AttributeError{Node: node, Attr: attr, Err: ErrAttributeType}
	}
	return v, nil
}

// Lookup is Get with absence folded into the boolean. Any other failure is
// still returned.
func Lookup[T any](t Tree, node models.EntityID, attr Attribute) (T, bool, error) {
	v, err := Get[T](t, node, attr)
	if errors.Is(err, ErrAttributeMissing) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// AttributeError carries the node and attribute a lookup failed on.
type AttributeError struct {
	Node models.EntityID
	Attr Attribute
	Err  error
}

func (e *AttributeError) Error() string {
	return e.Err.Error() + ": " + string(e.Attr) + " on " + e.Node.String()
}

func (e *AttributeError) Unwrap() error { return e.Err }
