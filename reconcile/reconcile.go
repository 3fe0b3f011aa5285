// Package reconcile brings a replica directory tree into exact correspondence with a source directory tree.
package reconcile

import (
	"context"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/mirror"
	"github.com/bobg/mirror/quarantine"
)

// Policy says what a pass does after a directory pair fails.
type Policy int

const (
	// ContinueOnError records the failure,
	// abandons the failed directory pair and everything beneath it,
	// and carries on with the rest of the tree.
	ContinueOnError Policy = iota

	// StopOnError ends the pass at the first failure.
	StopOnError
)

// Reconciler performs reconciliation passes.
// The zero value is not usable; Source and Replica must be set.
type Reconciler struct {
	Source  mirror.FS
	Replica mirror.FS

	// Sink receives a message for every write, deletion, directory creation and failure.
	// If nil, messages are discarded.
	Sink mirror.Sink

	Policy Policy

	// Parallel, if greater than 1,
	// is how many sibling subdirectories of one directory are reconciled at once.
	// The Replica FS must then be safe for concurrent use.
	Parallel int

	// Quarantine, if non-nil,
	// receives the path of every failed subtree,
	// and subtrees it contains are skipped.
	// If nil, failed subtrees are simply retried on the next pass.
	Quarantine *quarantine.Set
}

// New produces a Reconciler with the default policy.
func New(source, replica mirror.FS, sink mirror.Sink) *Reconciler {
	return &Reconciler{Source: source, Replica: replica, Sink: sink}
}

// Reconcile makes the tree at replica (in r.Replica) match the tree at source (in r.Source).
//
// If source cannot be read as a directory,
// the result is an error wrapping mirror.ErrTreeUnavailable and the replica is untouched.
// If ctx is canceled the pass stops before the next directory pair and returns ctx.Err().
// Otherwise failures are handled according to r.Policy:
// with StopOnError the first *mirror.SubtreeError is returned;
// with ContinueOnError the result is the report's combined Err.
//
// The report is non-nil in every case.
func (r *Reconciler) Reconcile(ctx context.Context, source, replica string) (*mirror.Report, error) {
	p := &pass{
		r:       r,
		sink:    r.Sink,
		srcRoot: source,
		dstRoot: replica,
		rep:     &mirror.Report{Source: source, Replica: replica, Start: time.Now()},
	}
	if p.sink == nil {
		p.sink = mirror.Discard
	}

	err := p.run(ctx)
	p.rep.End = time.Now()
	return p.rep, err
}

type pass struct {
	r                *Reconciler
	sink             mirror.Sink
	srcRoot, dstRoot string

	mu  sync.Mutex // protects rep
	rep *mirror.Report
}

func (p *pass) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.sink.Infof("Start of a directory synchronization")

	root, err := readNode(p.r.Source, p.srcRoot)
	if err != nil {
		p.sink.Errorf("Invalid source directory %s: %s", p.srcRoot, err)
		return errors.Wrapf(mirror.ErrTreeUnavailable, "%s", err)
	}

	if err = p.dir(ctx, "", root); err != nil {
		return err
	}

	if len(p.rep.Failures) > 0 {
		p.sink.Errorf("Synchronization of [%s] into [%s] finished with %d failed subtree(s)", p.srcRoot, p.dstRoot, len(p.rep.Failures))
		return p.rep.Err()
	}
	p.sink.Infof("Synchronized source directory [%s] with replica directory [%s]", p.srcRoot, p.dstRoot)
	return nil
}

func (p *pass) srcPath(rel string) string {
	return p.r.Source.Join(p.srcRoot, rel)
}

func (p *pass) dstPath(rel string) string {
	return p.r.Replica.Join(p.dstRoot, rel)
}

func (p *pass) update(f func(*mirror.Report)) {
	p.mu.Lock()
	f(p.rep)
	p.mu.Unlock()
}

// dir reconciles the directory pair at rel and then everything beneath it.
// Src is the source listing if the caller already has it.
// The only errors dir returns are ones that should end the pass.
func (p *pass) dir(ctx context.Context, rel string, src *node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if q := p.r.Quarantine; q != nil && q.Contains(rel) {
		p.sink.Infof("Skipping quarantined directory %s", p.srcPath(rel))
		p.update(func(rep *mirror.Report) { rep.Skipped = append(rep.Skipped, rel) })
		return nil
	}

	if src == nil {
		var err error
		src, err = readNode(p.r.Source, p.srcPath(rel))
		if err != nil {
			return p.fail(&mirror.SubtreeError{Kind: mirror.ErrReconcile, Path: rel, Err: err})
		}
	}

	if serr := p.level(rel, src); serr != nil {
		return p.fail(serr)
	}

	return p.recurse(ctx, rel, src)
}

func (p *pass) fail(serr *mirror.SubtreeError) error {
	p.sink.Errorf("Copying of files from source directory [%s] failed: %s", p.srcPath(serr.Path), serr)
	p.update(func(rep *mirror.Report) { rep.Failures = append(rep.Failures, serr) })
	if q := p.r.Quarantine; q != nil {
		q.Add(serr.Path, serr)
	}
	if p.r.Policy == StopOnError {
		return serr
	}
	return nil
}

// level reconciles the immediate contents of one directory pair.
// The steps are ordered: ensure the replica dir, propagate files, prune files, prune dirs.
func (p *pass) level(rel string, src *node) *mirror.SubtreeError {
	var (
		dst       = p.dstPath(rel)
		reconcile = func(err error) *mirror.SubtreeError {
			return &mirror.SubtreeError{Kind: mirror.ErrReconcile, Path: rel, Err: err}
		}
	)

	if err := p.ensureDir(dst); err != nil {
		return reconcile(err)
	}

	before, err := readNode(p.r.Replica, dst)
	if err != nil {
		return reconcile(err)
	}
	// Anything but a regular file under a source file's name is in the way.
	// Writing through a symlink could modify its target, even inside the source tree.
	var (
		dirsInTheWay  = before.dirNames()
		otherInTheWay = names(before.other)
	)

	for _, f := range src.files {
		var (
			name   = f.Name()
			target = p.r.Replica.Join(dst, name)
		)
		switch {
		case dirsInTheWay[name]:
			p.sink.Infof("Removing directory %s to make way for file", target)
			if err := p.removeTree(target); err != nil {
				return reconcile(err)
			}
		case otherInTheWay[name]:
			p.sink.Infof("Removing %s to make way for file", target)
			if err := p.r.Replica.Remove(target); err != nil {
				return reconcile(errors.Wrapf(err, "removing %s (to make way for file)", target))
			}
			p.update(func(rep *mirror.Report) { rep.FilesDeleted++ })
		}
		if err := p.copyFile(p.r.Source.Join(src.path, name), target, f.Mode().Perm()); err != nil {
			return reconcile(err)
		}
	}

	if err := p.pruneFiles(src, dst); err != nil {
		return &mirror.SubtreeError{Kind: mirror.ErrPrune, Path: rel, Err: err}
	}
	if err := p.pruneDirs(src, dst); err != nil {
		return &mirror.SubtreeError{Kind: mirror.ErrPrune, Path: rel, Err: err}
	}
	return nil
}

func (p *pass) ensureDir(dir string) error {
	info, err := p.r.Replica.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil

	case err == nil:
		p.sink.Infof("Removing file %s to make way for directory", dir)
		if err = p.r.Replica.Remove(dir); err != nil {
			return errors.Wrapf(err, "removing file %s (to make way for dir)", dir)
		}
		p.update(func(rep *mirror.Report) { rep.FilesDeleted++ })

	case !os.IsNotExist(err):
		return errors.Wrapf(err, "statting %s", dir)
	}

	p.sink.Infof("Creating directory %s", dir)
	if err = p.r.Replica.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "making dir %s", dir)
	}
	p.update(func(rep *mirror.Report) { rep.DirsCreated++ })
	return nil
}

func (p *pass) copyFile(src, dst string, perm os.FileMode) error {
	p.sink.Infof("Copying %s", dst)

	in, err := p.r.Source.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s for reading", src)
	}
	defer in.Close()

	out, err := p.r.Replica.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "opening %s for writing", dst)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()
		return errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	if err = out.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", dst)
	}

	p.update(func(rep *mirror.Report) { rep.FilesCopied++ })
	return nil
}

func (p *pass) recurse(ctx context.Context, rel string, src *node) error {
	if p.r.Parallel <= 1 {
		for _, d := range src.dirs {
			if err := p.dir(ctx, path.Join(rel, d.Name()), nil); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.r.Parallel)
	for _, d := range src.dirs {
		child := path.Join(rel, d.Name())
		g.Go(func() error {
			return p.dir(gctx, child, nil)
		})
	}
	return g.Wait()
}
