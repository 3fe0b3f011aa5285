package reconcile

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/bobg/mirror"
)

// pruneFiles deletes every non-directory entry of the replica dir
// that has no same-named regular file in src.
func (p *pass) pruneFiles(src *node, dst string) error {
	cur, err := readNode(p.r.Replica, dst)
	if err != nil {
		return err
	}

	var errs error
	for _, info := range stale(cur.nonDirs(), src.fileNames()) {
		path := p.r.Replica.Join(dst, info.Name())
		p.sink.Infof("Deleting file %s from %s directory.", info.Name(), dst)
		if err := p.r.Replica.Remove(path); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "removing %s", path))
			if p.stopping() {
				return errs
			}
			continue
		}
		p.update(func(rep *mirror.Report) { rep.FilesDeleted++ })
	}
	return errs
}

// pruneDirs deletes every subdirectory of the replica dir
// that has no same-named subdirectory in src,
// together with everything beneath it.
func (p *pass) pruneDirs(src *node, dst string) error {
	cur, err := readNode(p.r.Replica, dst)
	if err != nil {
		return err
	}

	doomed := cur.dirs
	if len(src.dirs) == 0 {
		if len(doomed) > 0 {
			p.sink.Infof("Deleting all directories from %s directory.", dst)
		}
	} else {
		doomed = stale(cur.dirs, src.dirNames())
	}

	var errs error
	for _, info := range doomed {
		p.sink.Infof("Deleting recursively %s directory from %s directory.", info.Name(), dst)
		if err := p.removeTree(p.r.Replica.Join(dst, info.Name())); err != nil {
			errs = multierr.Append(errs, err)
			if p.stopping() {
				return errs
			}
		}
	}
	return errs
}

// removeTree deletes dir and everything beneath it, bottom-up:
// subdirectories first, then files, then dir itself.
// A subdirectory that cannot be removed
// (including one that vanished while the walk was under way)
// does not stop the removal of its siblings,
// but it does leave dir in place.
func (p *pass) removeTree(dir string) error {
	n, err := readNode(p.r.Replica, dir)
	if err != nil {
		return err
	}

	var errs error
	for _, sub := range n.dirs {
		if err := p.removeTree(p.r.Replica.Join(dir, sub.Name())); err != nil {
			errs = multierr.Append(errs, err)
			if p.stopping() {
				return errs
			}
		}
	}

	for _, info := range n.nonDirs() {
		path := p.r.Replica.Join(dir, info.Name())
		p.sink.Infof("Deleting file %s", path)
		if err := p.r.Replica.Remove(path); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "removing %s", path))
			if p.stopping() {
				return errs
			}
			continue
		}
		p.update(func(rep *mirror.Report) { rep.FilesDeleted++ })
	}

	if errs != nil {
		return errs
	}

	p.sink.Infof("Deleting %s directory.", dir)
	if err := p.r.Replica.Remove(dir); err != nil {
		return errors.Wrapf(err, "removing dir %s", dir)
	}
	p.update(func(rep *mirror.Report) { rep.DirsDeleted++ })
	return nil
}

func (p *pass) stopping() bool {
	return p.r.Policy == StopOnError
}
