package battlefield

import (
	"fmt"

	"github.com/zeusync/battlefield/internal/core/camera"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

// Command is a deferred world mutation. The set is closed; Controller.apply
// handles every variant.
type Command interface {
	Name() string
	command()
}

// AddEntity places Entity under the named layer. Entities declaring a
// physical shape also get a rigid body at Pose; the others keep their
// declared bounds and Pose is ignored.
type AddEntity struct {
	Layer  string
	Entity models.EntityID
	Pose   physics.Isometry
}

// RemoveEntity detaches Entity from its layer and releases its physics
// registration, if any.
type RemoveEntity struct {
	Entity models.EntityID
}

// MoveEntity replaces the pose of a physical entity. It does nothing for
// entities without a physical registration.
type MoveEntity struct {
	Entity models.EntityID
	Pose   physics.Isometry
}

// MoveEntityBy translates the body of a physical entity. Like MoveEntity it
// does nothing for the others.
type MoveEntityBy struct {
	Entity models.EntityID
	Offset physics.Vec2
}

type SetEntityVelocity struct {
	Entity   models.EntityID
	Velocity physics.Vec2
}

type AddLayer struct {
	Node models.EntityID
}

type RemoveLayerByName struct {
	Layer string
}

type RemoveLayerByHandle struct {
	Node models.EntityID
}

type MoveCamera struct {
	Center camera.Center
}

type SetLayerVisible struct {
	Layer   string
	Visible bool
}

func (c AddEntity) Name() string {
	return fmt.Sprintf("add_entity(%s, %q, %s)", c.Entity, c.Layer, c.Pose)
}
func (c RemoveEntity) Name() string { return fmt.Sprintf("remove_entity(%s)", c.Entity) }
func (c MoveEntity) Name() string   { return fmt.Sprintf("move_entity(%s, %s)", c.Entity, c.Pose) }
func (c MoveEntityBy) Name() string {
	return fmt.Sprintf("move_entity_by(%s, %s)", c.Entity, c.Offset)
}
func (c SetEntityVelocity) Name() string {
	return fmt.Sprintf("set_entity_velocity(%s, %s)", c.Entity, c.Velocity)
}
func (c AddLayer) Name() string            { return fmt.Sprintf("add_layer(%s)", c.Node) }
func (c RemoveLayerByName) Name() string   { return fmt.Sprintf("remove_layer(%q)", c.Layer) }
func (c RemoveLayerByHandle) Name() string { return fmt.Sprintf("remove_layer(%s)", c.Node) }
func (c MoveCamera) Name() string {
	return fmt.Sprintf("move_camera(%g, %g)", c.Center.X, c.Center.Y)
}
func (c SetLayerVisible) Name() string {
	return fmt.Sprintf("set_layer_visible(%q, %t)", c.Layer, c.Visible)
}

func (AddEntity) command()           {}
func (RemoveEntity) command()        {}
func (MoveEntity) command()          {}
func (MoveEntityBy) command()        {}
func (SetEntityVelocity) command()   {}
func (AddLayer) command()            {}
func (RemoveLayerByName) command()   {}
func (RemoveLayerByHandle) command() {}
func (MoveCamera) command()          {}
func (SetLayerVisible) command()     {}
