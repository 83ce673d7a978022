package scene

import (
	"fmt"
	"slices"
	"sync"

	"github.com/zeusync/battlefield/internal/core/models"
)

var _ Tree = (*Graph)(nil)

type node struct {
	parent   models.EntityID
	children []models.EntityID
	attrs    map[Attribute]any
}

// Graph is an in-memory Tree. Node ids are issued in increasing order
// starting after the root.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[models.EntityID]*node
	root   models.EntityID
	nextID models.EntityID
}

// NewGraph creates a graph holding only the root node, sized to viewport.
func NewGraph(viewport Rect) *Graph {
	g := &Graph{nodes: make(map[models.EntityID]*node)}
	g.root = g.Create(Attrs{AttrName: "root", AttrBounds: viewport})
	return g
}

// Create adds a detached node carrying attrs.
func (g *Graph) Create(attrs Attrs) models.EntityID {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	n := &node{attrs: make(map[Attribute]any, len(attrs))}
	for k, v := range attrs {
		n.attrs[k] = v
	}
	g.nodes[g.nextID] = n
	return g.nextID
}

// Delete detaches node and drops it together with its subtree.
func (g *Graph) Delete(id models.EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return err
	}
	if id == g.root {
		return fmt.Errorf("delete root: %w", ErrCycle)
	}
	g.detachLocked(id, n)

	stack := []models.EntityID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, g.nodes[cur].children...)
		delete(g.nodes, cur)
	}
	return nil
}

func (g *Graph) Root() models.EntityID { return g.root }

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) Contains(id models.EntityID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Get(id models.EntityID, attr Attribute) (any, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return nil, err
	}
	v, ok := n.attrs[attr]
	if !ok {
		return nil, &AttributeError{Node: id, Attr: attr, Err: ErrAttributeMissing}
	}
	return v, nil
}

func (g *Graph) Set(id models.EntityID, attr Attribute, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return err
	}
	n.attrs[attr] = value
	return nil
}

func (g *Graph) Unset(id models.EntityID, attr Attribute) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return err
	}
	delete(n.attrs, attr)
	return nil
}

func (g *Graph) AppendChild(parent, child models.EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.nodeLocked(parent)
	if err != nil {
		return err
	}
	c, err := g.nodeLocked(child)
	if err != nil {
		return err
	}
	for anc := parent; anc != models.NoEntity; anc = g.nodes[anc].parent {
		if anc == child {
			return fmt.Errorf("append %s to %s: %w", child, parent, ErrCycle)
		}
	}

	g.detachLocked(child, c)
	p.children = append(p.children, child)
	c.parent = parent
	return nil
}

func (g *Graph) RemoveChild(parent, child models.EntityID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.nodeLocked(parent); err != nil {
		return err
	}
	c, err := g.nodeLocked(child)
	if err != nil {
		return err
	}
	if c.parent != parent {
		return fmt.Errorf("remove %s from %s: %w", child, parent, ErrNotAChild)
	}
	g.detachLocked(child, c)
	return nil
}

func (g *Graph) Children(id models.EntityID) ([]models.EntityID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(n.children), nil
}

func (g *Graph) Parent(id models.EntityID) (models.EntityID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return models.NoEntity, err
	}
	return n.parent, nil
}

func (g *Graph) nodeLocked(id models.EntityID) (*node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

func (g *Graph) detachLocked(id models.EntityID, n *node) {
	if n.parent == models.NoEntity {
		return
	}
	if p, ok := g.nodes[n.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(c models.EntityID) bool { return c == id })
	}
	n.parent = models.NoEntity
}
