package service

import "fmt"

// Kind is the class of a service error. Callers map kinds to transport
// statuses; codes are for machines, messages for people.
type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindForbidden  Kind = "FORBIDDEN"
	KindConflict   Kind = "CONFLICT"
	KindBadRequest Kind = "BAD_REQUEST"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict)
// holds for every conflict regardless of its code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrForbidden  = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "forbidden"}
	ErrConflict   = &Error{Kind: KindConflict, Code: "CONFLICT", Message: "conflict"}
	ErrBadRequest = &Error{Kind: KindBadRequest, Code: "BAD_REQUEST", Message: "bad request"}
)

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	errTaskNotFound  = newError(KindNotFound, "TASK_NOT_FOUND", "task not found")
	errNotExecutor   = newError(KindForbidden, "NOT_EXECUTOR", "only the executor can submit this task")
	errNotVerifier   = newError(KindForbidden, "NOT_VERIFIER", "only the creator or a global verifier can verify this task")
	errInvalidStatus = newError(KindForbidden, "INVALID_STATUS", "task is not in a state that allows this action")
	errStatusChanged = newError(KindConflict, "STATUS_CHANGED", "task status changed concurrently, reload and retry")
)
