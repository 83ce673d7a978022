package physics

import "errors"

var (
	// Construction errors: the backend refused to build what was asked.

	ErrShapeRejected = errors.New("shape rejected by physics backend")
	ErrInvalidPose   = errors.New("pose is not finite")

	// Handle errors: a caller used a handle the world does not own. These
	// are programming errors, never simulation failures.

	ErrBodyNotFound     = errors.New("rigid body not found")
	ErrColliderNotFound = errors.New("collider not found")
	ErrHandleMismatch   = errors.New("collider is not attached to body")
)
