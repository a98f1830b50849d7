package opt

import (
	"errors"
	"fmt"
)

// ErrNoServerAvailable indicates that no registered server offers the
// requested capability. Returned wrapped with the capability name.
var ErrNoServerAvailable = errors.New("no server available")

// ErrInvalidDependencyGraph indicates that a submitted task set cannot be
// ordered safely: a dependency cycle, a duplicate task name, or a reference
// to an unknown task. Returned wrapped with the offending detail; no task
// is dispatched when this error is reported.
var ErrInvalidDependencyGraph = errors.New("invalid dependency graph")

// InvocationFailedError wraps a server-side failure for one task.
type InvocationFailedError struct {
	Task   string
	Server string
	Err    error
}

func (e *InvocationFailedError) Error() string {
	return fmt.Sprintf("task %q failed on server %q: %v", e.Task, e.Server, e.Err)
}

// Unwrap returns the underlying server error.
func (e *InvocationFailedError) Unwrap() error { return e.Err }

// DependencyFailedError marks a task that was never dispatched because one
// of its (possibly transitive) dependencies failed.
type DependencyFailedError struct {
	Task       string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("task %q not dispatched: dependency %q failed", e.Task, e.Dependency)
}
