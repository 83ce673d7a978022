package layer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/scene"
)

var (
	ErrLayerNameMissing = errors.New("layer has no name")
	ErrLayerExists      = errors.New("layer name already registered")
	ErrLayerNotFound    = errors.New("layer not found")
)

// Layer is a named scene node grouping battlefield content.
type Layer struct {
	Name string
	Node models.EntityID
}

// Registry keeps the ordered set of layers attached under one container
// node. It references nodes the scene tree owns and never deletes them.
type Registry struct {
	tree      scene.Tree
	container models.EntityID

	order  []string
	byName map[string]Layer
	byNode map[models.EntityID]string
}

func NewRegistry(tree scene.Tree, container models.EntityID) *Registry {
	return &Registry{
		tree:      tree,
		container: container,
		byName:    make(map[string]Layer),
		byNode:    make(map[models.EntityID]string),
	}
}

// Add registers node under its name attribute and attaches it to the
// container. A second layer with a taken name is rejected and the first
// one stays in place.
func (r *Registry) Add(node models.EntityID) (Layer, error) {
	name, err := scene.Name(r.tree, node)
	if errors.Is(err, scene.ErrAttributeMissing) || (err == nil && name == "") {
		return Layer{}, fmt.Errorf("%w: %s", ErrLayerNameMissing, node)
	}
	if err != nil {
		return Layer{}, err
	}
	if existing, ok := r.byName[name]; ok {
		return Layer{}, fmt.Errorf("%w: %q held by %s", ErrLayerExists, name, existing.Node)
	}
	if other, ok := r.byNode[node]; ok {
		return Layer{}, fmt.Errorf("%w: %s already registered as %q", ErrLayerExists, node, other)
	}

	if err = r.tree.AppendChild(r.container, node); err != nil {
		return Layer{}, fmt.Errorf("attach layer %q: %w", name, err)
	}

	l := Layer{Name: name, Node: node}
	r.order = append(r.order, name)
	r.byName[name] = l
	r.byNode[node] = name
	return l, nil
}

func (r *Registry) RemoveByName(name string) (Layer, error) {
	l, ok := r.byName[name]
	if !ok {
		return Layer{}, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
	}
	return l, r.remove(l)
}

func (r *Registry) RemoveByHandle(node models.EntityID) (Layer, error) {
	name, ok := r.byNode[node]
	if !ok {
		return Layer{}, fmt.Errorf("%w: %s", ErrLayerNotFound, node)
	}
	l := r.byName[name]
	return l, r.remove(l)
}

func (r *Registry) remove(l Layer) error {
	delete(r.byName, l.Name)
	delete(r.byNode, l.Node)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == l.Name })

	// the host may already have dropped the node
	if err := r.tree.RemoveChild(r.container, l.Node); err != nil &&
		!errors.Is(err, scene.ErrNodeNotFound) && !errors.Is(err, scene.ErrNotAChild) {
		return fmt.Errorf("detach layer %q: %w", l.Name, err)
	}
	return nil
}

// Lookup returns the layer registered under name.
func (r *Registry) Lookup(name string) (Layer, error) {
	l, ok := r.byName[name]
	if !ok {
		return Layer{}, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
	}
	return l, nil
}

// Owner returns the layer registered for node.
func (r *Registry) Owner(node models.EntityID) (Layer, bool) {
	name, ok := r.byNode[node]
	if !ok {
		return Layer{}, false
	}
	return r.byName[name], true
}

// SetVisible shows or hides a layer and everything below it.
func (r *Registry) SetVisible(name string, visible bool) error {
	l, err := r.Lookup(name)
	if err != nil {
		return err
	}
	v := scene.Hidden
	if visible {
		v = scene.Visible
	}
	if err = r.tree.Set(l.Node, scene.AttrVisibility, v); err != nil {
		return err
	}
	return scene.SetDirty(r.tree, l.Node, true)
}

// Layers returns the registered layers in registration order.
func (r *Registry) Layers() []Layer {
	out := make([]Layer, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) Container() models.EntityID { return r.container }
