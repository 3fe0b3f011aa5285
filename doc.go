// Package mirror keeps a replica directory tree in step with a source directory tree.
//
// A reconciliation pass walks the source tree top-down.
// At each level it makes the replica directory's immediate contents match the source's,
// by name:
// every source file is written to the replica
// (overwriting whatever was there),
// every replica file with no same-named source file is deleted,
// and every replica subdirectory with no same-named source subdirectory
// is deleted along with everything beneath it.
// Only then does the pass descend into each subdirectory pair.
//
// There is no change detection.
// File contents are not hashed or timestamp-compared,
// and nothing is remembered from one pass to the next;
// each pass recomputes the whole diff from the file system as it is at that moment.
// This makes a pass idempotent and lets it converge from any starting replica state,
// at the cost of rewriting every file on every pass.
//
// The reconciler itself lives in the reconcile subpackage.
// It works against the FS interface defined here,
// which any go-billy filesystem satisfies,
// and it reports progress to a Sink,
// which any zap SugaredLogger satisfies.
// The schedule subpackage drives passes on a fixed interval
// and guarantees that two passes never overlap.
package mirror
