package mirror

import (
	"time"

	"go.uber.org/multierr"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Source, Replica string
	Start, End      time.Time

	FilesCopied  int
	FilesDeleted int
	DirsCreated  int
	DirsDeleted  int

	// Failures lists the subtrees that could not be reconciled.
	Failures []*SubtreeError

	// Skipped lists quarantined subtrees that the pass did not visit.
	Skipped []string
}

// Duration is how long the pass took.
func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Err combines all the report's failures into a single error,
// or returns nil if there were none.
func (r *Report) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// FailedPaths lists the relative paths of the failed subtrees.
func (r *Report) FailedPaths() []string {
	paths := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		paths = append(paths, f.Path)
	}
	return paths
}
