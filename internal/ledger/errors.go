package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrValidation: the request is malformed or violates a data invariant.
	ErrValidation = errors.New("validation failed")
	// ErrPermission: the acting user may not perform the request.
	ErrPermission = errors.New("permission denied")
	// ErrSaturated: an operator has used up the edits allowed on a record.
	// It also matches ErrPermission.
	ErrSaturated = fmt.Errorf("%w: edit limit reached", ErrPermission)
	// ErrNotFound: the referenced record does not exist in scope.
	ErrNotFound = errors.New("not found")
	// ErrCollaborator: the store, vault or feed failed.
	ErrCollaborator = errors.New("collaborator failure")
)

// Error describes a rejected or failed operation.
type Error struct {
	Kind   error  // one of the Err* kinds above
	Op     string // operation name, e.g. "EditTransaction"
	Reason string // human readable reason
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Reason: fmt.Sprintf(format, args...)}
}

func permissionError(op, format string, args ...any) error {
	return &Error{Kind: ErrPermission, Op: op, Reason: fmt.Sprintf(format, args...)}
}

func saturatedError(op, format string, args ...any) error {
	return &Error{Kind: ErrSaturated, Op: op, Reason: fmt.Sprintf(format, args...)}
}

func notFoundError(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Reason: fmt.Sprintf(format, args...)}
}

// collaboratorError wraps a store/vault failure, preserving its message.
func collaboratorError(op, what string, err error) error {
	return &Error{Kind: ErrCollaborator, Op: op, Reason: what, Err: err}
}
