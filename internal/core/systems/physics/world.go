package physics

import (
	"fmt"

	"github.com/jakecoffman/cp"

	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/pkg/generic"
)

// BodyHandle addresses a rigid body owned by a World.
type BodyHandle struct{ generic.Handle }

// ColliderHandle addresses a collider owned by a World.
type ColliderHandle struct{ generic.Handle }

const (
	entityCollisionType cp.CollisionType = 1
	wallCollisionType   cp.CollisionType = 2
)

// Settings configure the simulation backend.
type Settings struct {
	Gravity    Vec2
	Damping    float64
	Iterations uint
	// TickRate is the number of fixed steps per simulated second.
	TickRate   float64
	BodyMass   float64
	Friction   float64
	Elasticity float64

	// Walls encloses [0, Width] x [0, Height] with static segments when set.
	Walls         bool
	Width, Height float64
	WallRadius    float64
}

// DefaultSettings returns a top-down world: no gravity, 60 steps per second.
func DefaultSettings() Settings {
	return Settings{
		Damping:    1,
		Iterations: 10,
		TickRate:   60,
		BodyMass:   1,
		Friction:   0.7,
		Elasticity: 0.2,
		Width:      200,
		Height:     200,
		WallRadius: 1,
	}
}

// World owns every rigid body and collider of the battlefield and advances
// them with the Chipmunk solver. Everything outside holds handles only.
// World is not safe for concurrent use.
type World struct {
	settings  Settings
	space     *cp.Space
	bodies    *generic.Arena[*cp.Body]
	colliders *generic.Arena[*cp.Shape]
	walls     []*cp.Shape

	// events collects solver callbacks until the next Step hands them out.
	events []ContactEvent
	steps  uint64

	logger log.Log
}

func NewWorld(settings Settings, logger log.Log) *World {
	if settings.TickRate <= 0 {
		settings.TickRate = DefaultSettings().TickRate
	}
	if settings.BodyMass <= 0 {
		settings.BodyMass = DefaultSettings().BodyMass
	}
	if settings.Iterations == 0 {
		settings.Iterations = DefaultSettings().Iterations
	}

	space := cp.NewSpace()
	space.Iterations = settings.Iterations
	space.SetGravity(cp.Vector{X: settings.Gravity.X, Y: settings.Gravity.Y})
	if settings.Damping > 0 {
		space.SetDamping(settings.Damping)
	}

	w := &World{
		settings:  settings,
		space:     space,
		bodies:    generic.NewArena[*cp.Body](64),
		colliders: generic.NewArena[*cp.Shape](64),
		logger:    logger.With(log.String("component", "physics")),
	}

	for _, pair := range [][2]cp.CollisionType{
		{entityCollisionType, entityCollisionType},
		{entityCollisionType, wallCollisionType},
	} {
		handler := space.NewCollisionHandler(pair[0], pair[1])
		handler.BeginFunc = w.onBegin
		handler.SeparateFunc = w.onSeparate
	}

	if settings.Walls {
		w.buildWalls()
	}

	return w
}

// AddEntity builds a rigid body at pose and a collider from shape attached
// to it. Nothing stays inserted when the collider cannot be built.
func (w *World) AddEntity(shape Shape, pose Isometry) (BodyHandle, ColliderHandle, error) {
	if !pose.IsFinite() {
		return BodyHandle{}, ColliderHandle{}, fmt.Errorf("%w: %s", ErrInvalidPose, pose)
	}

	body := cp.NewBody(w.settings.BodyMass, cp.INFINITY)
	body.SetPosition(cp.Vector{X: pose.X, Y: pose.Y})
	body.SetAngle(pose.Angle)
	w.space.AddBody(body)
	bh := BodyHandle{w.bodies.Insert(body)}
	body.UserData = bh

	collider, moment, err := w.buildCollider(shape, body)
	if err != nil {
		w.space.RemoveBody(body)
		_, _ = w.bodies.Remove(bh.Handle)
		return BodyHandle{}, ColliderHandle{}, err
	}

	body.SetMoment(moment)
	w.space.AddShape(collider)
	ch := ColliderHandle{w.colliders.Insert(collider)}
	collider.UserData = ch

	return bh, ch, nil
}

// buildCollider is the one conversion point from Shape to solver geometry.
func (w *World) buildCollider(shape Shape, body *cp.Body) (*cp.Shape, float64, error) {
	if shape == nil {
		return nil, 0, fmt.Errorf("%w: nil shape", ErrShapeRejected)
	}
	if err := shape.Validate(); err != nil {
		return nil, 0, err
	}

	switch s := shape.(type) {
	case Ball:
		collider := cp.NewCircle(body, s.Radius, cp.Vector{})
		collider.SetSensor(s.Sensor)
		collider.SetCollisionType(entityCollisionType)
		collider.SetFriction(w.settings.Friction)
		collider.SetElasticity(w.settings.Elasticity)
		return collider, cp.MomentForCircle(w.settings.BodyMass, 0, s.Radius, cp.Vector{}), nil
	default:
		return nil, 0, fmt.Errorf("%w: unsupported shape %T", ErrShapeRejected, shape)
	}
}

// RemoveEntity releases a body and its collider together. When either
// handle is stale, or they do not belong together, nothing is released.
func (w *World) RemoveEntity(bh BodyHandle, ch ColliderHandle) error {
	body, ok := w.bodies.Get(bh.Handle)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBodyNotFound, bh)
	}
	collider, ok := w.colliders.Get(ch.Handle)
	if !ok {
		return fmt.Errorf("%w: %s", ErrColliderNotFound, ch)
	}
	if collider.Body() != body {
		return fmt.Errorf("%w: collider %s, body %s", ErrHandleMismatch, ch, bh)
	}

	w.space.RemoveShape(collider)
	w.space.RemoveBody(body)
	_, _ = w.colliders.Remove(ch.Handle)
	_, _ = w.bodies.Remove(bh.Handle)
	return nil
}

// SetPose teleports a body, bypassing velocity integration.
func (w *World) SetPose(bh BodyHandle, pose Isometry) error {
	body, err := w.body(bh)
	if err != nil {
		return err
	}
	if !pose.IsFinite() {
		return fmt.Errorf("%w: %s", ErrInvalidPose, pose)
	}
	body.SetPosition(cp.Vector{X: pose.X, Y: pose.Y})
	body.SetAngle(pose.Angle)
	return nil
}

// Pose reads the current pose of a body.
func (w *World) Pose(bh BodyHandle) (Isometry, error) {
	body, err := w.body(bh)
	if err != nil {
		return Isometry{}, err
	}
	return poseOf(body), nil
}

func (w *World) SetVelocity(bh BodyHandle, v Vec2) error {
	body, err := w.body(bh)
	if err != nil {
		return err
	}
	if !v.IsFinite() {
		return fmt.Errorf("%w: velocity %s", ErrInvalidPose, v)
	}
	body.SetVelocity(v.X, v.Y)
	return nil
}

func (w *World) Velocity(bh BodyHandle) (Vec2, error) {
	body, err := w.body(bh)
	if err != nil {
		return Vec2{}, err
	}
	v := body.Velocity()
	return Vec2{X: v.X, Y: v.Y}, nil
}

// Step advances the simulation by one fixed tick and returns the contact and
// proximity events produced since the previous Step. Step never fails: a
// body whose state stops being finite is put back where it was before the
// step and stopped.
func (w *World) Step() []ContactEvent {
	type saved struct {
		body *cp.Body
		pose Isometry
	}
	before := make([]saved, 0, w.bodies.Len())
	w.bodies.Each(func(_ generic.Handle, body *cp.Body) bool {
		before = append(before, saved{body: body, pose: poseOf(body)})
		return true
	})

	w.space.Step(1 / w.settings.TickRate)
	w.steps++

	for _, s := range before {
		v := s.body.Velocity()
		if poseOf(s.body).IsFinite() && isFinite(v.X) && isFinite(v.Y) && isFinite(s.body.AngularVelocity()) {
			continue
		}
		s.body.SetPosition(cp.Vector{X: s.pose.X, Y: s.pose.Y})
		s.body.SetAngle(s.pose.Angle)
		s.body.SetVelocity(0, 0)
		s.body.SetAngularVelocity(0)
		w.logger.Warn("Clamped non-finite body state",
			log.Stringer("body", s.body.UserData.(BodyHandle)),
			log.Uint64("step", w.steps),
		)
	}

	events := w.events
	w.events = nil
	return events
}

// Steps returns how many times Step ran.
func (w *World) Steps() uint64 { return w.steps }

// TimeStep returns the simulated seconds covered by one Step.
func (w *World) TimeStep() float64 { return 1 / w.settings.TickRate }

// BodyCount returns the number of live rigid bodies.
func (w *World) BodyCount() int { return w.bodies.Len() }

// ColliderCount returns the number of live colliders, walls excluded.
func (w *World) ColliderCount() int { return w.colliders.Len() }

func (w *World) body(bh BodyHandle) (*cp.Body, error) {
	body, ok := w.bodies.Get(bh.Handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBodyNotFound, bh)
	}
	return body, nil
}

func (w *World) buildWalls() {
	static := w.space.StaticBody
	r := w.settings.WallRadius
	wd, ht := w.settings.Width, w.settings.Height
	corners := []cp.Vector{{X: 0, Y: 0}, {X: wd, Y: 0}, {X: wd, Y: ht}, {X: 0, Y: ht}}
	for i := range corners {
		seg := cp.NewSegment(static, corners[i], corners[(i+1)%len(corners)], r)
		seg.SetCollisionType(wallCollisionType)
		seg.SetFriction(w.settings.Friction)
		seg.SetElasticity(w.settings.Elasticity)
		w.space.AddShape(seg)
		w.walls = append(w.walls, seg)
	}
}

func (w *World) onBegin(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
	w.record(arb, ContactStarted, ProximityEntered)
	return true
}

func (w *World) onSeparate(arb *cp.Arbiter, _ *cp.Space, _ interface{}) {
	w.record(arb, ContactEnded, ProximityExited)
}

func (w *World) record(arb *cp.Arbiter, contact, proximity ContactKind) {
	a, b := arb.Shapes()
	kind := contact
	if a.Sensor() || b.Sensor() {
		kind = proximity
	}
	ha, _ := a.UserData.(ColliderHandle)
	hb, _ := b.UserData.(ColliderHandle)
	w.events = append(w.events, ContactEvent{Kind: kind, A: ha, B: hb})
}

func poseOf(body *cp.Body) Isometry {
	p := body.Position()
	return Isometry{X: p.X, Y: p.Y, Angle: body.Angle()}
}
