package thing

import "errors"

// Domain errors for the thing package.
//
// Live things return ErrForbidden, ErrUnsupportedAction or
// ErrInvalidParams (possibly wrapped) from Do so the gateway can tell
// the failure kinds apart.
var (
	// ErrNotFound is returned when a thing ID does not exist.
	ErrNotFound = errors.New("thing: not found")

	// ErrExists is returned when adding a thing whose ID is already known.
	ErrExists = errors.New("thing: already exists")

	// ErrInvalidRecord is returned when record validation fails.
	ErrInvalidRecord = errors.New("thing: invalid record")

	// ErrForbidden is a permission-style rejection from a live thing.
	ErrForbidden = errors.New("thing: action forbidden")

	// ErrUnsupportedAction is returned for actions a thing does not offer.
	ErrUnsupportedAction = errors.New("thing: unsupported action")

	// ErrInvalidParams is returned when action parameters are rejected.
	ErrInvalidParams = errors.New("thing: invalid action parameters")

	// ErrNoBuilder is returned when a live thing is needed but no builder
	// was supplied.
	ErrNoBuilder = errors.New("thing: no builder")
)
