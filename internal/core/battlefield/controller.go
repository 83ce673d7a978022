package battlefield

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/battlefield/internal/core/camera"
	"github.com/zeusync/battlefield/internal/core/events/bus"
	"github.com/zeusync/battlefield/internal/core/layer"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
	"github.com/zeusync/battlefield/pkg/sequence"
)

// State of the controller between and during ticks.
type State uint8

const (
	Idle State = iota
	Draining
)

func (s State) String() string {
	if s == Draining {
		return "draining"
	}
	return "idle"
}

// Report describes what one Update did.
type Report struct {
	Tick     uint64
	Commands int
	Stepped  bool
	Events   []Event
	Errors   []*CommandError
	Digest   uint64
}

// Err joins the command errors of the tick, nil when every command applied.
func (r Report) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Options are the construction parameters of a Controller.
type Options struct {
	Size   WorldSize
	Camera camera.Center
	// Layers are attached in order at construction.
	Layers []models.EntityID
	// AlwaysStep steps the world on every tick with physical entities, not
	// only on ticks that added or moved one.
	AlwaysStep bool
}

// Controller is the only mutator of the physics world, the entity registry
// and the layer registry. Producers enqueue commands from anywhere; Update
// applies them in enqueue order, one batch per tick.
type Controller struct {
	mu    sync.Mutex
	queue *sequence.Queue[Command]

	state  State
	tick   uint64
	opts   Options
	camera camera.Center

	node     models.EntityID
	tree     scene.Tree
	world    *physics.World
	entities *Registry
	layers   *layer.Registry
	bases    map[models.EntityID]*layer.Base
	bus      bus.EventBus

	root   log.Log
	logger log.Log
}

// New builds a controller for the battlefield node, which becomes the
// container of every layer and carries the camera center.
func New(
	opts Options,
	node models.EntityID,
	tree scene.Tree,
	world *physics.World,
	events bus.EventBus,
	logger log.Log,
) (*Controller, error) {
	if err := opts.Size.Validate(); err != nil {
		return nil, err
	}
	if !tree.Contains(node) {
		return nil, fmt.Errorf("battlefield node %s: %w", node, scene.ErrNodeNotFound)
	}

	c := &Controller{
		queue:    sequence.NewQueue[Command](64),
		opts:     opts,
		camera:   opts.Camera,
		node:     node,
		tree:     tree,
		world:    world,
		entities: NewRegistry(),
		layers:   layer.NewRegistry(tree, node),
		bases:    make(map[models.EntityID]*layer.Base),
		bus:      events,
		root:     logger,
		logger:   logger.With(log.String("component", "battlefield")),
	}

	if err := tree.Set(node, scene.AttrCameraCenter, opts.Camera); err != nil {
		return nil, err
	}
	for _, l := range opts.Layers {
		if err := c.addLayer(l); err != nil {
			return nil, fmt.Errorf("initial layer %s: %w", l, err)
		}
	}

	return c, nil
}

// Enqueue defers cmd to the next Update. Commands enqueued while a batch is
// draining land in the following batch.
func (c *Controller) Enqueue(cmd Command) {
	c.mu.Lock()
	c.queue.Push(cmd)
	c.mu.Unlock()
}

func (c *Controller) AddEntity(layerName string, entity models.EntityID, pose physics.Isometry) {
	c.Enqueue(AddEntity{Layer: layerName, Entity: entity, Pose: pose})
}

func (c *Controller) RemoveEntity(entity models.EntityID) {
	c.Enqueue(RemoveEntity{Entity: entity})
}

func (c *Controller) MoveEntity(entity models.EntityID, pose physics.Isometry) {
	c.Enqueue(MoveEntity{Entity: entity, Pose: pose})
}

func (c *Controller) MoveEntityBy(entity models.EntityID, offset physics.Vec2) {
	c.Enqueue(MoveEntityBy{Entity: entity, Offset: offset})
}

func (c *Controller) SetEntityVelocity(entity models.EntityID, v physics.Vec2) {
	c.Enqueue(SetEntityVelocity{Entity: entity, Velocity: v})
}

func (c *Controller) AddLayer(node models.EntityID) {
	c.Enqueue(AddLayer{Node: node})
}

func (c *Controller) RemoveLayerByName(name string) {
	c.Enqueue(RemoveLayerByName{Layer: name})
}

func (c *Controller) RemoveLayerByHandle(node models.EntityID) {
	c.Enqueue(RemoveLayerByHandle{Node: node})
}

func (c *Controller) MoveCamera(x, y float64) {
	c.Enqueue(MoveCamera{Center: camera.Center{X: x, Y: y}})
}

func (c *Controller) SetLayerVisible(name string, visible bool) {
	c.Enqueue(SetLayerVisible{Layer: name, Visible: visible})
}

// Pending returns the number of commands waiting for the next Update.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// Update applies the pending batch, steps the world when something was
// added or moved, and publishes the resulting events. The returned error
// joins the command failures of the tick; the report carries them too.
func (c *Controller) Update() (Report, error) {
	c.mu.Lock()
	if c.state == Draining {
		c.mu.Unlock()
		return Report{}, ErrReentrantUpdate
	}
	c.state = Draining
	batch := c.queue.Drain()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
	}()

	c.tick++
	report := Report{Tick: c.tick, Commands: len(batch)}
	logger := c.logger.With(log.Uint64("tick", c.tick))

	updateWorld := false
	for i, cmd := range batch {
		touched, err := c.apply(cmd, logger)
		updateWorld = updateWorld || touched
		if err != nil {
			cerr := &CommandError{Tick: c.tick, Index: i, Command: cmd, Err: err}
			report.Errors = append(report.Errors, cerr)
			logger.Warn("Command rejected",
				log.Int("index", i),
				log.String("command", cmd.Name()),
				log.Error(err),
			)
		}
	}

	if (updateWorld || c.opts.AlwaysStep) && c.entities.Len() > 0 {
		report.Stepped = true
		contacts := c.world.Step()
		report.Events = append(report.Events, c.collectMoves(logger)...)
		report.Events = append(report.Events, c.translateContacts(contacts)...)
	}
	report.Digest = c.Digest()

	logger.Debug("Tick applied",
		log.Int("commands", report.Commands),
		log.Int("events", len(report.Events)),
		log.Int("errors", len(report.Errors)),
		log.Bool("stepped", report.Stepped),
	)

	if len(report.Events) > 0 {
		published := make([]bus.Event, len(report.Events))
		for i, e := range report.Events {
			published[i] = e
		}
		if err := c.bus.PublishBatch(published...); err != nil {
			logger.Error("Event handler failed", log.Error(err))
		}
	}

	return report, report.Err()
}

// apply runs one command. The boolean reports whether the physics world
// needs a step because a body was added or moved.
func (c *Controller) apply(cmd Command, logger log.Log) (bool, error) {
	switch cmd := cmd.(type) {
	case AddEntity:
		return c.addEntity(cmd)
	case RemoveEntity:
		c.removeEntity(cmd.Entity, logger)
		return false, nil
	case MoveEntity:
		pe, ok := c.entities.Get(cmd.Entity)
		if !ok {
			return false, nil
		}
		err := c.world.SetPose(pe.Body, cmd.Pose)
		return err == nil, err
	case MoveEntityBy:
		return c.moveEntityBy(cmd)
	case SetEntityVelocity:
		pe, ok := c.entities.Get(cmd.Entity)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrEntityNotPhysical, cmd.Entity)
		}
		err := c.world.SetVelocity(pe.Body, cmd.Velocity)
		return err == nil, err
	case AddLayer:
		return false, c.addLayer(cmd.Node)
	case RemoveLayerByName:
		l, err := c.layers.RemoveByName(cmd.Layer)
		c.releaseLayer(l, logger)
		return false, err
	case RemoveLayerByHandle:
		l, err := c.layers.RemoveByHandle(cmd.Node)
		c.releaseLayer(l, logger)
		return false, err
	case MoveCamera:
		if err := c.tree.Set(c.node, scene.AttrCameraCenter, cmd.Center); err != nil {
			return false, err
		}
		c.camera = cmd.Center
		return false, scene.SetDirty(c.tree, c.node, true)
	case SetLayerVisible:
		return false, c.layers.SetVisible(cmd.Layer, cmd.Visible)
	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (c *Controller) addEntity(cmd AddEntity) (bool, error) {
	if !c.tree.Contains(cmd.Entity) {
		return false, fmt.Errorf("%w: %s", scene.ErrNodeNotFound, cmd.Entity)
	}
	l, err := c.layers.Lookup(cmd.Layer)
	if err != nil {
		return false, err
	}
	if c.entities.Contains(cmd.Entity) {
		return false, fmt.Errorf("%w: %s", ErrEntityExists, cmd.Entity)
	}
	shape, physical, err := scene.PhysicalShape(c.tree, cmd.Entity)
	if err != nil {
		return false, err
	}

	// the scene tree owns the rectangle of a non-physical entity
	if !physical {
		return false, c.tree.AppendChild(l.Node, cmd.Entity)
	}

	body, collider, err := c.world.AddEntity(shape, cmd.Pose)
	if err != nil {
		return false, err
	}
	pe := PhysicalEntity{Entity: cmd.Entity, Body: body, Collider: collider, Pose: cmd.Pose}
	if err = c.entities.Insert(pe); err != nil {
		_ = c.world.RemoveEntity(body, collider)
		return false, err
	}
	if err = c.tree.Set(cmd.Entity, scene.AttrPhysicalPosition, cmd.Pose); err == nil {
		err = c.tree.AppendChild(l.Node, cmd.Entity)
	}
	if err != nil {
		c.entities.Remove(cmd.Entity)
		_ = c.world.RemoveEntity(body, collider)
		return false, err
	}
	return true, nil
}

// removeEntity never fails: whatever is left of the entity is released.
func (c *Controller) removeEntity(entity models.EntityID, logger log.Log) {
	if parent, err := c.tree.Parent(entity); err == nil && parent != models.NoEntity {
		if err = c.tree.RemoveChild(parent, entity); err != nil {
			logger.Warn("Detach failed", log.Stringer("entity", entity), log.Error(err))
		}
	}

	pe, ok := c.entities.Remove(entity)
	if !ok {
		logger.Warn("Entity has no physics registration", log.Stringer("entity", entity))
		return
	}
	if err := c.world.RemoveEntity(pe.Body, pe.Collider); err != nil {
		logger.Error("Physics handles already released",
			log.Stringer("entity", entity),
			log.Error(err),
		)
	}
}

func (c *Controller) moveEntityBy(cmd MoveEntityBy) (bool, error) {
	pe, ok := c.entities.Get(cmd.Entity)
	if !ok {
		return false, nil
	}
	pose, err := c.world.Pose(pe.Body)
	if err != nil {
		return false, err
	}
	err = c.world.SetPose(pe.Body, pose.Translate(cmd.Offset))
	return err == nil, err
}

func (c *Controller) addLayer(node models.EntityID) error {
	if _, err := c.layers.Add(node); err != nil {
		return err
	}
	base := layer.NewBase(c.tree, node, c.root)
	if err := base.Attach(c.bus); err != nil {
		_, _ = c.layers.RemoveByHandle(node)
		return err
	}
	c.bases[node] = base
	return nil
}

// releaseLayer drops the base behaviour of a removed layer and the physics
// registrations of the entities placed on it. The entities stay under the
// layer node, which the scene tree still owns.
func (c *Controller) releaseLayer(l layer.Layer, logger log.Log) {
	if l.Node == models.NoEntity {
		return
	}
	if base, ok := c.bases[l.Node]; ok {
		_ = base.Detach()
		delete(c.bases, l.Node)
	}

	children, err := c.tree.Children(l.Node)
	if err != nil {
		return
	}
	released := 0
	for _, child := range children {
		pe, ok := c.entities.Remove(child)
		if !ok {
			continue
		}
		released++
		if err = c.world.RemoveEntity(pe.Body, pe.Collider); err != nil {
			logger.Error("Physics handles already released", log.Stringer("entity", child), log.Error(err))
		}
	}
	if released > 0 {
		logger.Info("Layer entities released", log.String("layer", l.Name), log.Int("entities", released))
	}
}

// collectMoves compares every cached pose with the stepped one, in entity
// order, and emits EntityMoved for exact differences.
func (c *Controller) collectMoves(logger log.Log) []Event {
	var events []Event
	for _, id := range c.entities.IDs() {
		pe, _ := c.entities.Get(id)
		pose, err := c.world.Pose(pe.Body)
		if err != nil {
			logger.Error("Registered body missing", log.Stringer("entity", id), log.Error(err))
			continue
		}
		if !c.entities.SetPose(id, pose) {
			continue
		}
		if err = c.tree.Set(id, scene.AttrPhysicalPosition, pose); err != nil {
			logger.Warn("Position not written back", log.Stringer("entity", id), log.Error(err))
		}
		events = append(events, EntityMoved{Entity: id, Pose: pose})
	}
	return events
}

func (c *Controller) translateContacts(contacts []physics.ContactEvent) []Event {
	var events []Event
	for _, ce := range contacts {
		a, ok := c.entities.EntityOf(ce.A)
		if !ok {
			continue
		}
		b := models.NoEntity
		if !ce.WithWall() {
			if b, ok = c.entities.EntityOf(ce.B); !ok {
				continue
			}
		}
		if e, ok := contactEvent(ce.Kind, Contact{Entity: a, Other: b}); ok {
			events = append(events, e)
		}
	}
	return events
}

// OnPropertyChanged turns an attribute write made by the host into a queued
// command. It reports whether a command was queued.
func (c *Controller) OnPropertyChanged(node models.EntityID, attr scene.Attribute) bool {
	switch attr {
	case scene.AttrPhysicalPosition:
		pe, ok := c.entities.Get(node)
		if !ok {
			return false
		}
		pose, set, err := scene.PhysicalPosition(c.tree, node)
		if err != nil || !set || pose == pe.Pose {
			return false
		}
		c.MoveEntity(node, pose)
		return true
	case scene.AttrCameraCenter:
		if node != c.node {
			return false
		}
		center, err := camera.CenterOf(c.tree, node)
		if err != nil || center == c.camera {
			return false
		}
		c.MoveCamera(center.X, center.Y)
		return true
	case scene.AttrVisibility:
		l, ok := c.layers.Owner(node)
		if !ok {
			return false
		}
		vis, err := scene.VisibilityOf(c.tree, node)
		if err != nil {
			return false
		}
		c.SetLayerVisible(l.Name, vis == scene.Visible)
		return true
	default:
		return false
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Tick() uint64 { return c.tick }

func (c *Controller) Node() models.EntityID { return c.node }

func (c *Controller) Camera() camera.Center { return c.camera }

func (c *Controller) Size() WorldSize { return c.opts.Size }

func (c *Controller) Bus() bus.EventBus { return c.bus }

func (c *Controller) Layers() *layer.Registry { return c.layers }

// Entity returns the physics registration of id.
func (c *Controller) Entity(id models.EntityID) (PhysicalEntity, bool) {
	return c.entities.Get(id)
}

// Entities returns the physically registered entities in ascending order.
func (c *Controller) Entities() []models.EntityID { return c.entities.IDs() }
