package physics

import "fmt"

// ContactKind classifies the events produced by Step.
type ContactKind uint8

const (
	ContactStarted ContactKind = iota + 1
	ContactEnded
	ProximityEntered
	ProximityExited
)

func (k ContactKind) String() string {
	switch k {
	case ContactStarted:
		return "contact_started"
	case ContactEnded:
		return "contact_ended"
	case ProximityEntered:
		return "proximity_entered"
	case ProximityExited:
		return "proximity_exited"
	default:
		return fmt.Sprintf("contact(%d)", uint8(k))
	}
}

// ContactEvent reports a pair of colliders starting or ending a contact.
// B is the zero handle when the other side is a world boundary wall.
type ContactEvent struct {
	Kind ContactKind
	A    ColliderHandle
	B    ColliderHandle
}

// WithWall reports whether the event involves a boundary wall.
func (e ContactEvent) WithWall() bool { return e.B.IsZero() }
