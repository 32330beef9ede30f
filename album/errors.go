package album

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a refresh is requested while a fetch for the
	// same pin is in flight
	ErrBusy = errors.New("Album is already loading")
	// ErrNotRunning is returned when the manager loop is not running
	ErrNotRunning = errors.New("Album manager is not running")
)

// NotFound is returned when a pin or photo does not exist
type NotFound string

func (e NotFound) Error() string {
	return fmt.Sprintf("Not found: %s", string(e))
}

func PinNotFound(id PinID) NotFound {
	return NotFound(fmt.Sprintf("pin %s", id))
}

func PhotoNotFound(pin PinID, id PhotoID) NotFound {
	return NotFound(fmt.Sprintf("photo %s of pin %s", id, pin))
}

// PinAlreadyExists is returned when creating a pin at an already pinned coordinate
type PinAlreadyExists PinID

func (e PinAlreadyExists) Error() string {
	return fmt.Sprintf("A pin already exists at this location: %s", string(e))
}

// StoreError wraps failures of the persistent store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("Store failure on %s: %s", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err is or wraps a NotFound
func IsNotFound(err error) bool {
	var nf NotFound
	return errors.As(err, &nf)
}
