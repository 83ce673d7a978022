package battlefield

import (
	"github.com/zeusync/battlefield/internal/core/events/bus"
	"github.com/zeusync/battlefield/internal/core/models"
	"github.com/zeusync/battlefield/internal/core/systems/physics"
)

const (
	TypeEntityMoved      = "entity_moved"
	TypeContactStarted   = "contact_started"
	TypeContactEnded     = "contact_ended"
	TypeProximityEntered = "proximity_entered"
	TypeProximityExited  = "proximity_exited"
)

// Event is a world change produced by one tick. Events are published on
// the bus and returned in the tick Report; nothing keeps them afterwards.
type Event interface {
	bus.Event
	event()
}

// EntityMoved reports the new pose of a physical entity after a step.
type EntityMoved struct {
	Entity models.EntityID  `json:"entity"`
	Pose   physics.Isometry `json:"pose"`
}

// Contact is the payload shared by contact and proximity events. Other is
// models.NoEntity when the entity touched a world boundary.
type Contact struct {
	Entity models.EntityID `json:"entity"`
	Other  models.EntityID `json:"other"`
}

type (
	ContactStarted   struct{ Contact }
	ContactEnded     struct{ Contact }
	ProximityEntered struct{ Contact }
	ProximityExited  struct{ Contact }
)

func (EntityMoved) Type() string      { return TypeEntityMoved }
func (ContactStarted) Type() string   { return TypeContactStarted }
func (ContactEnded) Type() string     { return TypeContactEnded }
func (ProximityEntered) Type() string { return TypeProximityEntered }
func (ProximityExited) Type() string  { return TypeProximityExited }

// MovedEntity lets layers react to movement without importing this package.
func (e EntityMoved) MovedEntity() models.EntityID { return e.Entity }

func (EntityMoved) event()      {}
func (ContactStarted) event()   {}
func (ContactEnded) event()     {}
func (ProximityEntered) event() {}
func (ProximityExited) event()  {}

func contactEvent(kind physics.ContactKind, c Contact) (Event, bool) {
	switch kind {
	case physics.ContactStarted:
		return ContactStarted{c}, true
	case physics.ContactEnded:
		return ContactEnded{c}, true
	case physics.ProximityEntered:
		return ProximityEntered{c}, true
	case physics.ProximityExited:
		return ProximityExited{c}, true
	default:
		return nil, false
	}
}
