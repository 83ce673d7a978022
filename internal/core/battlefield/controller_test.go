package battlefield

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/battlefield/internal/core/camera"
	"github.com/zeusync/battlefield/internal/core/events/bus"
	"github.com/zeusync/battlefield/internal/core/layer"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/internal/core/scene"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

type harness struct {
	graph *scene.Graph
	bus   bus.EventBus
	ctrl  *Controller
}

func newHarness(t *testing.T, layers ...string) harness {
	t.Helper()
	g := scene.NewGraph(scene.Rect{Width: 100, Height: 100})
	node := g.Create(scene.Attrs{scene.AttrName: "battlefield", scene.AttrBounds: scene.Rect{}})
	require.NoError(t, g.AppendChild(g.Root(), node))

	var initial []models.EntityID
	for _, name := range layers {
		initial = append(initial, g.Create(scene.Attrs{scene.AttrName: name}))
	}

	b := bus.New()
	world := physics.NewWorld(physics.DefaultSettings(), log.NewNop())
	ctrl, err := New(Options{
		Size:   WorldSize{Width: 200, Height: 200},
		Layers: initial,
	}, node, g, world, b, log.NewNop())
	require.NoError(t, err)
	return harness{graph: g, bus: b, ctrl: ctrl}
}

func (h harness) ball(radius float64) models.EntityID {
	return h.graph.Create(scene.Attrs{scene.AttrPhysicalShape: physics.Ball{Radius: radius}})
}

func (h harness) layerNode(t *testing.T, name string) models.EntityID {
	t.Helper()
	l, err := h.ctrl.Layers().Lookup(name)
	require.NoError(t, err)
	return l.Node
}

func (h harness) update(t *testing.T) Report {
	t.Helper()
	report, err := h.ctrl.Update()
	require.NoError(t, err)
	return report
}

func movedEvents(events []Event) []EntityMoved {
	var out []EntityMoved
	for _, e := range events {
		if m, ok := e.(EntityMoved); ok {
			out = append(out, m)
		}
	}
	return out
}

func TestNewValidatesOptions(t *testing.T) {
	g := scene.NewGraph(scene.Rect{})
	world := physics.NewWorld(physics.DefaultSettings(), log.NewNop())

	_, err := New(Options{}, g.Root(), g, world, bus.New(), log.NewNop())
	require.ErrorIs(t, err, ErrInvalidWorldSize)

	_, err = New(Options{Size: WorldSize{Width: 1, Height: 1}}, 999, g, world, bus.New(), log.NewNop())
	require.ErrorIs(t, err, scene.ErrNodeNotFound)

	unnamed := g.Create(nil)
	_, err = New(Options{Size: WorldSize{Width: 1, Height: 1}, Layers: []models.EntityID{unnamed}},
		g.Root(), g, world, bus.New(), log.NewNop())
	require.ErrorIs(t, err, layer.ErrLayerNameMissing)
}

func TestCommandsHaveNoEffectBeforeUpdate(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)

	h.ctrl.AddEntity("ground", e, physics.NewIsometry(5, 5, 0))
	h.ctrl.MoveCamera(3, 4)
	assert.Equal(t, 2, h.ctrl.Pending())
	assert.Equal(t, Idle, h.ctrl.State())

	parent, err := h.graph.Parent(e)
	require.NoError(t, err)
	assert.Equal(t, models.NoEntity, parent)
	assert.Equal(t, camera.Center{}, h.ctrl.Camera())

	report := h.update(t)
	assert.Equal(t, 2, report.Commands)
	assert.Zero(t, h.ctrl.Pending())

	parent, err = h.graph.Parent(e)
	require.NoError(t, err)
	assert.Equal(t, h.layerNode(t, "ground"), parent)

	center, err := camera.CenterOf(h.graph, h.ctrl.Node())
	require.NoError(t, err)
	assert.Equal(t, camera.Center{X: 3, Y: 4}, center)
}

func TestAddLayerThenAddEntitySameBatch(t *testing.T) {
	h := newHarness(t)
	a := h.graph.Create(scene.Attrs{scene.AttrName: "A"})
	e := h.ball(1)

	h.ctrl.AddLayer(a)
	h.ctrl.AddEntity("A", e, physics.Isometry{})
	h.update(t)

	parent, err := h.graph.Parent(e)
	require.NoError(t, err)
	assert.Equal(t, a, parent)
	_, ok := h.ctrl.Entity(e)
	assert.True(t, ok)
}

func TestAddEntityUnknownLayerFailsAlone(t *testing.T) {
	h := newHarness(t, "ground")
	lost := h.ball(1)
	kept := h.ball(1)

	h.ctrl.AddEntity("sky", lost, physics.Isometry{})
	h.ctrl.AddEntity("ground", kept, physics.NewIsometry(50, 50, 0))

	report, err := h.ctrl.Update()
	require.ErrorIs(t, err, layer.ErrLayerNotFound)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 0, report.Errors[0].Index)
	assert.Equal(t, report.Tick, report.Errors[0].Tick)

	_, ok := h.ctrl.Entity(lost)
	assert.False(t, ok, "rejected entity must not keep physics handles")
	_, ok = h.ctrl.Entity(kept)
	assert.True(t, ok)
}

func TestAddEntityRejectedShapeLeavesNothing(t *testing.T) {
	h := newHarness(t, "ground")
	bad := h.ball(0)

	h.ctrl.AddEntity("ground", bad, physics.Isometry{})
	_, err := h.ctrl.Update()
	require.ErrorIs(t, err, physics.ErrShapeRejected)

	assert.Empty(t, h.ctrl.Entities())
	parent, _ := h.graph.Parent(bad)
	assert.Equal(t, models.NoEntity, parent)
}

func TestAddEntityTwiceRejected(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)
	h.ctrl.AddEntity("ground", e, physics.Isometry{})
	h.ctrl.AddEntity("ground", e, physics.Isometry{})

	_, err := h.ctrl.Update()
	require.ErrorIs(t, err, ErrEntityExists)
	assert.Len(t, h.ctrl.Entities(), 1)
}

func TestRegistryMatchesAddedMinusRemoved(t *testing.T) {
	h := newHarness(t, "ground")
	ids := make([]models.EntityID, 6)
	for i := range ids {
		ids[i] = h.ball(1)
		// far apart so nothing collides
		h.ctrl.AddEntity("ground", ids[i], physics.NewIsometry(float64(i)*30, 0, 0))
	}
	h.ctrl.RemoveEntity(ids[1])
	h.ctrl.RemoveEntity(ids[4])
	h.update(t)

	h.ctrl.RemoveEntity(ids[0])
	h.ctrl.RemoveEntity(ids[0])
	h.ctrl.AddEntity("ground", ids[4], physics.NewIsometry(200, 0, 0))
	h.update(t)

	assert.Equal(t, []models.EntityID{ids[2], ids[3], ids[4], ids[5]}, h.ctrl.Entities())
	assert.Equal(t, 4, h.ctrl.world.BodyCount())
	assert.Equal(t, 4, h.ctrl.world.ColliderCount())
}

func TestRemoveEntityIsIdempotent(t *testing.T) {
	h := newHarness(t, "ground")
	a, b := h.ball(1), h.ball(1)
	h.ctrl.AddEntity("ground", a, physics.Isometry{})
	h.ctrl.AddEntity("ground", b, physics.NewIsometry(50, 0, 0))
	h.update(t)
	before, ok := h.ctrl.Entity(b)
	require.True(t, ok)

	h.ctrl.RemoveEntity(a)
	h.update(t)
	h.ctrl.RemoveEntity(a)
	report := h.update(t)
	assert.Empty(t, report.Errors)

	after, ok := h.ctrl.Entity(b)
	require.True(t, ok)
	assert.Equal(t, before, after)
	pose, err := h.ctrl.world.Pose(after.Body)
	require.NoError(t, err)
	assert.Equal(t, physics.NewIsometry(50, 0, 0), pose)

	parent, _ := h.graph.Parent(a)
	assert.Equal(t, models.NoEntity, parent)
}

func TestMovementEventsAreExact(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)

	h.ctrl.AddEntity("ground", e, physics.Isometry{})
	report := h.update(t)
	assert.True(t, report.Stepped)
	assert.Empty(t, movedEvents(report.Events), "resting body must not report movement")

	h.ctrl.MoveEntity(e, physics.Isometry{})
	report = h.update(t)
	assert.True(t, report.Stepped)
	assert.Empty(t, movedEvents(report.Events))

	h.ctrl.MoveEntity(e, physics.NewIsometry(1, 0, 0))
	report = h.update(t)
	assert.Equal(t, []Event{EntityMoved{Entity: e, Pose: physics.NewIsometry(1, 0, 0)}}, report.Events)

	pose, set, err := scene.PhysicalPosition(h.graph, e)
	require.NoError(t, err)
	require.True(t, set)
	assert.Equal(t, physics.NewIsometry(1, 0, 0), pose)

	report = h.update(t)
	assert.False(t, report.Stepped, "idle tick does not step")
}

func TestMoveEntityOnNonPhysicalIsNoop(t *testing.T) {
	h := newHarness(t, "ui")
	declared := scene.Rect{X: 10, Y: 10, Width: 50, Height: 20}
	label := h.graph.Create(scene.Attrs{scene.AttrBounds: declared})

	h.ctrl.AddEntity("ui", label, physics.Isometry{})
	h.ctrl.MoveEntity(label, physics.NewIsometry(1, 1, 0))
	report := h.update(t)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Stepped, "no physical entity, no step")

	parent, err := h.graph.Parent(label)
	require.NoError(t, err)
	assert.Equal(t, h.layerNode(t, "ui"), parent)

	bounds, err := scene.Bounds(h.graph, label)
	require.NoError(t, err)
	assert.Equal(t, declared, bounds, "the pose of a non-physical entity never reaches its rectangle")

	h.ctrl.MoveEntityBy(label, physics.Vec2{X: 1, Y: -2})
	report = h.update(t)
	assert.Empty(t, report.Errors)
	bounds, _ = scene.Bounds(h.graph, label)
	assert.Equal(t, declared, bounds)

	h.ctrl.SetEntityVelocity(label, physics.Vec2{X: 1})
	_, err = h.ctrl.Update()
	require.ErrorIs(t, err, ErrEntityNotPhysical)
}

func TestAddNonPhysicalIgnoresNonFinitePose(t *testing.T) {
	h := newHarness(t, "ui")
	declared := scene.Rect{X: 3, Y: 4, Width: 5, Height: 6}
	label := h.graph.Create(scene.Attrs{scene.AttrBounds: declared})

	h.ctrl.AddEntity("ui", label, physics.NewIsometry(math.NaN(), 0, 0))
	report := h.update(t)
	assert.Empty(t, report.Errors)

	bounds, err := scene.Bounds(h.graph, label)
	require.NoError(t, err)
	assert.Equal(t, declared, bounds)
}

func TestMoveEntityByAndVelocity(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)
	h.ctrl.AddEntity("ground", e, physics.NewIsometry(10, 10, 0))
	h.update(t)

	h.ctrl.MoveEntityBy(e, physics.Vec2{X: 5})
	report := h.update(t)
	assert.Equal(t, []Event{EntityMoved{Entity: e, Pose: physics.NewIsometry(15, 10, 0)}}, report.Events)

	h.ctrl.SetEntityVelocity(e, physics.Vec2{Y: 60})
	report = h.update(t)
	moved := movedEvents(report.Events)
	require.Len(t, moved, 1)
	assert.Equal(t, 15.0, moved[0].Pose.X)
	assert.Greater(t, moved[0].Pose.Y, 10.0)
}

func TestDuplicateLayerNameKeepsFirst(t *testing.T) {
	h := newHarness(t, "A")
	first := h.layerNode(t, "A")
	second := h.graph.Create(scene.Attrs{scene.AttrName: "A"})

	h.ctrl.AddLayer(second)
	_, err := h.ctrl.Update()
	require.ErrorIs(t, err, layer.ErrLayerExists)
	assert.Equal(t, first, h.layerNode(t, "A"))
	assert.Equal(t, 1, h.ctrl.Layers().Len())
}

func TestLayerCommands(t *testing.T) {
	h := newHarness(t, "A", "B")
	b := h.layerNode(t, "B")

	h.ctrl.AddLayer(h.graph.Create(nil))
	h.ctrl.RemoveLayerByName("missing")
	h.ctrl.SetLayerVisible("A", false)
	h.ctrl.RemoveLayerByHandle(b)
	report, err := h.ctrl.Update()
	require.Error(t, err)
	require.Len(t, report.Errors, 2)
	assert.ErrorIs(t, report.Errors[0], layer.ErrLayerNameMissing)
	assert.ErrorIs(t, report.Errors[1], layer.ErrLayerNotFound)

	vis, err := scene.VisibilityOf(h.graph, h.layerNode(t, "A"))
	require.NoError(t, err)
	assert.Equal(t, scene.Hidden, vis)

	_, err = h.ctrl.Layers().Lookup("B")
	require.ErrorIs(t, err, layer.ErrLayerNotFound)
	assert.True(t, h.graph.Contains(b), "the tree still owns the removed layer node")
}

func TestContactEventsReachSubscribers(t *testing.T) {
	h := newHarness(t, "ground")
	a, b := h.ball(5), h.ball(5)

	var got []Event
	_, err := h.bus.Subscribe(TypeContactStarted, func(e bus.Event) error {
		got = append(got, e.(Event))
		return nil
	})
	require.NoError(t, err)

	h.ctrl.AddEntity("ground", a, physics.NewIsometry(0, 0, 0))
	h.ctrl.AddEntity("ground", b, physics.NewIsometry(6, 0, 0))
	report := h.update(t)

	require.Len(t, got, 1)
	started := got[0].(ContactStarted)
	assert.ElementsMatch(t, []models.EntityID{a, b}, []models.EntityID{started.Entity, started.Other})
	assert.Contains(t, report.Events, got[0])
}

func TestSubscriberCommandsLandInNextBatch(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)

	var reentrant error
	queued := false
	_, err := h.bus.Subscribe(TypeEntityMoved, func(bus.Event) error {
		_, reentrant = h.ctrl.Update()
		if !queued {
			queued = true
			h.ctrl.MoveCamera(9, 9)
		}
		return nil
	})
	require.NoError(t, err)

	h.ctrl.AddEntity("ground", e, physics.Isometry{})
	h.update(t)
	h.ctrl.MoveEntity(e, physics.NewIsometry(2, 0, 0))
	h.update(t)

	require.ErrorIs(t, reentrant, ErrReentrantUpdate)
	assert.Equal(t, camera.Center{}, h.ctrl.Camera())
	assert.Equal(t, 1, h.ctrl.Pending())

	h.update(t)
	assert.Equal(t, camera.Center{X: 9, Y: 9}, h.ctrl.Camera())
}

func TestBaseLayerMarkedDirtyOnMove(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)
	h.ctrl.AddEntity("ground", e, physics.Isometry{})
	h.update(t)

	node := h.layerNode(t, "ground")
	require.NoError(t, scene.SetDirty(h.graph, node, false))
	h.ctrl.MoveEntity(e, physics.NewIsometry(3, 3, 0))
	h.update(t)

	dirty, err := scene.IsDirty(h.graph, node)
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestDigestIsDeterministic(t *testing.T) {
	run := func() uint64 {
		h := newHarness(t, "ground")
		a, b := h.ball(5), h.ball(5)
		h.ctrl.AddEntity("ground", a, physics.NewIsometry(0, 0, 0))
		h.ctrl.AddEntity("ground", b, physics.NewIsometry(6, 1, 0))
		h.update(t)
		h.ctrl.SetEntityVelocity(a, physics.Vec2{X: 10})
		return h.update(t).Digest
	}
	assert.Equal(t, run(), run())

	h := newHarness(t, "ground")
	empty := h.ctrl.Digest()
	e := h.ball(1)
	h.ctrl.AddEntity("ground", e, physics.Isometry{})
	assert.NotEqual(t, empty, h.update(t).Digest)
}

func TestOnPropertyChanged(t *testing.T) {
	h := newHarness(t, "ground")
	e := h.ball(1)
	h.ctrl.AddEntity("ground", e, physics.Isometry{})
	h.update(t)

	assert.False(t, h.ctrl.OnPropertyChanged(e, scene.AttrPhysicalPosition), "unchanged pose")

	require.NoError(t, h.graph.Set(e, scene.AttrPhysicalPosition, physics.NewIsometry(4, 0, 0)))
	assert.True(t, h.ctrl.OnPropertyChanged(e, scene.AttrPhysicalPosition))
	report := h.update(t)
	assert.Equal(t, []Event{EntityMoved{Entity: e, Pose: physics.NewIsometry(4, 0, 0)}}, report.Events)

	require.NoError(t, h.graph.Set(h.ctrl.Node(), scene.AttrCameraCenter, camera.Center{X: 1}))
	assert.True(t, h.ctrl.OnPropertyChanged(h.ctrl.Node(), scene.AttrCameraCenter))
	h.update(t)
	assert.Equal(t, camera.Center{X: 1}, h.ctrl.Camera())

	node := h.layerNode(t, "ground")
	require.NoError(t, h.graph.Set(node, scene.AttrVisibility, scene.Collapsed))
	assert.True(t, h.ctrl.OnPropertyChanged(node, scene.AttrVisibility))
	h.update(t)
	vis, _ := scene.VisibilityOf(h.graph, node)
	assert.Equal(t, scene.Hidden, vis)

	assert.False(t, h.ctrl.OnPropertyChanged(e, scene.AttrBounds))
}

func TestCommandNames(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{RemoveLayerByName{Layer: "ground"}, `remove_layer("ground")`},
		{SetLayerVisible{Layer: "air", Visible: true}, `set_layer_visible("air", true)`},
		{RemoveLayerByHandle{Node: 3}, "remove_layer(entity#3)"},
		{MoveCamera{Center: camera.Center{X: 1, Y: 2}}, "move_camera(1, 2)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cmd.Name())
	}
}

func TestRemoveLayerReleasesItsEntities(t *testing.T) {
	h := newHarness(t, "ground", "air")
	walker, flyer := h.ball(1), h.ball(1)
	h.ctrl.AddEntity("ground", walker, physics.Isometry{})
	h.ctrl.AddEntity("air", flyer, physics.NewIsometry(50, 0, 0))
	h.ctrl.SetEntityVelocity(walker, physics.Vec2{X: 60})
	h.update(t)
	node := h.layerNode(t, "ground")

	h.ctrl.RemoveLayerByName("ground")
	report := h.update(t)
	assert.Empty(t, report.Errors)
	assert.Empty(t, movedEvents(report.Events))

	assert.Equal(t, []models.EntityID{flyer}, h.ctrl.Entities())
	assert.Equal(t, 1, h.ctrl.world.BodyCount())
	assert.Equal(t, 1, h.ctrl.world.ColliderCount())

	parent, err := h.graph.Parent(walker)
	require.NoError(t, err)
	assert.Equal(t, node, parent, "the entity stays with its layer node")
}

var errRefused = errors.New("subscription refused")

type refusingBus struct{ bus.EventBus }

func (refusingBus) Subscribe(string, bus.EventHandler) (bus.Subscription, error) {
	return nil, errRefused
}

func TestAddLayerRollsBackWhenBaseCannotAttach(t *testing.T) {
	g := scene.NewGraph(scene.Rect{Width: 100, Height: 100})
	node := g.Create(scene.Attrs{scene.AttrName: "battlefield", scene.AttrBounds: scene.Rect{}})
	require.NoError(t, g.AppendChild(g.Root(), node))
	world := physics.NewWorld(physics.DefaultSettings(), log.NewNop())
	ctrl, err := New(Options{Size: WorldSize{Width: 10, Height: 10}}, node, g, world, refusingBus{bus.New()}, log.NewNop())
	require.NoError(t, err)

	ground := g.Create(scene.Attrs{scene.AttrName: "ground"})
	ctrl.AddLayer(ground)
	_, err = ctrl.Update()
	require.ErrorIs(t, err, errRefused)

	assert.Zero(t, ctrl.Layers().Len())
	parent, err := g.Parent(ground)
	require.NoError(t, err)
	assert.Equal(t, models.NoEntity, parent)
}
