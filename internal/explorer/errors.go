package explorer

import (
	"errors"
	"fmt"
)

// ErrNotALeaf is returned when a task operation is given a group or nil node.
var ErrNotALeaf = errors.New("node is not a task")

// OperationError wraps a failed explorer operation with its context.
type OperationError struct {
	// Op is the operation that failed (e.g. "run", "fetch").
	Op string
	// Target names what the operation acted on, usually a task identity.
	Target string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}
