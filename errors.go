package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrTreeUnavailable means the source root does not exist,
	// is not a directory,
	// or cannot be read.
	// A pass that fails this way has not touched the replica.
	ErrTreeUnavailable = errors.New("tree unavailable")

	// ErrReconcile is the kind of a SubtreeError caused by
	// a failure to copy a file or create a directory.
	ErrReconcile = errors.New("reconciliation failure")

	// ErrPrune is the kind of a SubtreeError caused by
	// a failure to enumerate or delete stale replica entries.
	ErrPrune = errors.New("prune failure")
)

// SubtreeError is a failure confined to one directory pair of a pass.
// Path is relative to the pass's roots.
//
// errors.Is(e, ErrReconcile) or errors.Is(e, ErrPrune) tells the kind;
// errors.Unwrap(e) gives the underlying I/O error.
type SubtreeError struct {
	Kind error
	Path string
	Err  error
}

func (e *SubtreeError) Error() string {
	path := e.Path
	if path == "" {
		path = "."
	}
	return fmt.Sprintf("%s in %s: %s", e.Kind, path, e.Err)
}

func (e *SubtreeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is e's kind.
func (e *SubtreeError) Is(target error) bool {
	return target == e.Kind
}
