package models

import (
	"errors"
	"fmt"
)

// ErrConflictFail is returned by the fail strategy on the first conflict
var ErrConflictFail = errors.New("conflict encountered with fail strategy")

// DiffError reports an internal inconsistency detected while building a
// plan, such as a duplicate relative path in a scan
type DiffError struct {
	Path   string
	Reason string
}

func (e *DiffError) Error() string {
	return fmt.Sprintf("diff error at %q: %s", e.Path, e.Reason)
}

// ActionError wraps a failure executing one action
type ActionError struct {
	Path   string
	Action ActionKind
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Action, e.Path, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
