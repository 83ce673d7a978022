package layer

import (
	"github.com/zeusync/battlefield/internal/core/events/bus"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
)

// Moved is implemented by events reporting that an entity changed pose.
type Moved interface {
	bus.Event
	MovedEntity() models.EntityID
}

// Base is the default layer behaviour: it listens for movement events and
// marks its node dirty whenever one of its own children moved, so the next
// layout pass re-measures it.
type Base struct {
	tree   scene.Tree
	node   models.EntityID
	sub    bus.Subscription
	moves  uint64
	logger log.Log
}

func NewBase(tree scene.Tree, node models.EntityID, logger log.Log) *Base {
	return &Base{
		tree:   tree,
		node:   node,
		logger: logger.With(log.String("component", "layer"), log.Stringer("node", node)),
	}
}

// Attach subscribes the layer to every event on b. Calling Attach again
// replaces the previous subscription.
func (l *Base) Attach(b bus.EventBus) error {
	if err := l.Detach(); err != nil {
		return err
	}
	sub, err := b.Subscribe(bus.Wildcard, l.handle)
	if err != nil {
		return err
	}
	l.sub = sub
	return nil
}

func (l *Base) Detach() error {
	if l.sub == nil {
		return nil
	}
	err := l.sub.Cancel()
	l.sub = nil
	return err
}

// Moves returns how many child movements the layer has seen.
func (l *Base) Moves() uint64 { return l.moves }

func (l *Base) Node() models.EntityID { return l.node }

func (l *Base) handle(e bus.Event) error {
	m, ok := e.(Moved)
	if !ok {
		return nil
	}
	parent, err := l.tree.Parent(m.MovedEntity())
	if err != nil || parent != l.node {
		return nil
	}
	l.moves++
	l.logger.Debug("Child moved", log.Stringer("entity", m.MovedEntity()))
	return scene.SetDirty(l.tree, l.node, true)
}
