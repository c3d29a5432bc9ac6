package errors

import (
	"fmt"
)

// MissingFunctionError occurs when a function call refers to a function which is not part of the Program
type MissingFunctionError struct{ Key string }

// Error returns a textual representation of this MissingFunctionError
func (e MissingFunctionError) Error() string {
	return fmt.Sprintf("Function %s does not exist in program", e.Key)
}

// MissingBlockError occurs when a plan node has lost the handle to its executable block,
// or the block cannot be found in its parent
type MissingBlockError struct {
	NodeID int64
	Reason string
}

// Error returns a textual representation of this MissingBlockError
func (e MissingBlockError) Error() string {
	return fmt.Sprintf("Plan node %d has no executable block: %s", e.NodeID, e.Reason)
}

// InvalidTreeError occurs when a plan tree violates one of its structural invariants
type InvalidTreeError struct {
	NodeID int64
	Reason string
}

// Error returns a textual representation of this InvalidTreeError
func (e InvalidTreeError) Error() string {
	return fmt.Sprintf("Plan node %d is invalid: %s", e.NodeID, e.Reason)
}

// UnsupportedNodeError occurs when an operation is requested on a plan node (or block) of the
// wrong kind
type UnsupportedNodeError struct {
	NodeID    int64
	Kind      string
	Operation string
}

// Error returns a textual representation of this UnsupportedNodeError
func (e UnsupportedNodeError) Error() string {
	return fmt.Sprintf("%s is not supported for %s node %d", e.Operation, e.Kind, e.NodeID)
}
