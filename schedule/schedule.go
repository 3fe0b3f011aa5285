// Package schedule runs reconciliation passes at a fixed interval.
package schedule

import (
	"context"
	stderrs "errors"
	"os"
	"sync"
	"time"

	"github.com/bobg/flock"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/bobg/mirror"
	"github.com/bobg/mirror/reconcile"
)

// ErrBusy is the error from RunOnce when another pass of the same Runner is still in progress.
var ErrBusy = stderrs.New("pass already in progress")

// Runner drives a Reconciler over one source/replica pair.
//
// Ticks behave like timer callbacks:
// each one starts a pass in its own goroutine without waiting for the previous tick.
// At most one pass of a Runner is in progress at any moment;
// a tick that arrives while a pass is running is skipped.
type Runner struct {
	Reconciler      *reconcile.Reconciler
	Source, Replica string
	Interval        time.Duration

	// LockFile, if set, names a file that is flock'd for the duration of each pass,
	// serializing passes of separate processes that share it.
	LockFile string

	// ExitOnError makes Run return after the first pass that fails.
	// Otherwise failed passes are logged and the schedule continues.
	ExitOnError bool

	// OnReport, if set, is called after every pass with its report and error.
	// By then the pass no longer counts as in progress.
	OnReport func(*mirror.Report, error)

	// OnSkip, if set, is called for every tick skipped because a pass was in progress.
	OnSkip func()

	once    sync.Once
	sem     *semaphore.Weighted
	trigger chan struct{}
	flocker flock.Locker
}

func (r *Runner) init() {
	r.once.Do(func() {
		r.sem = semaphore.NewWeighted(1)
		r.trigger = make(chan struct{}, 1)
	})
}

func (r *Runner) sink() mirror.Sink {
	if r.Reconciler.Sink != nil {
		return r.Reconciler.Sink
	}
	return mirror.Discard
}

// RunOnce performs a single pass now,
// unless one is already in progress,
// in which case it returns ErrBusy.
func (r *Runner) RunOnce(ctx context.Context) (*mirror.Report, error) {
	r.init()

	if !r.sem.TryAcquire(1) {
		r.sink().Infof("Skipping synchronization of [%s]: previous pass still running", r.Source)
		if r.OnSkip != nil {
			r.OnSkip()
		}
		return nil, ErrBusy
	}

	rep, err := r.pass(ctx)
	r.sem.Release(1)

	if rep != nil && r.OnReport != nil {
		r.OnReport(rep, err)
	}
	return rep, err
}

// pass reconciles under the lock file, if any.
// The report is non-nil even when the lock cannot be taken.
func (r *Runner) pass(ctx context.Context) (*mirror.Report, error) {
	if r.LockFile != "" {
		start := time.Now()
		failed := func(err error) (*mirror.Report, error) {
			return &mirror.Report{Source: r.Source, Replica: r.Replica, Start: start, End: time.Now()}, err
		}

		f, err := os.OpenFile(r.LockFile, os.O_RDONLY|os.O_CREATE, 0644)
		if err != nil {
			return failed(errors.Wrapf(err, "creating lock file %s", r.LockFile))
		}
		f.Close()
		if err = r.flocker.Lock(r.LockFile); err != nil {
			return failed(errors.Wrapf(err, "locking %s", r.LockFile))
		}
		defer r.flocker.Unlock(r.LockFile)
	}
	return r.Reconciler.Reconcile(ctx, r.Source, r.Replica)
}

// Trigger requests a pass ahead of the next tick.
// Requests made while one is already pending are coalesced.
// A request made while Run is not running waits for it.
func (r *Runner) Trigger() {
	r.init()

	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run performs a pass immediately and then once per Interval until ctx is canceled.
// It waits for any pass in progress to finish before returning.
//
// The result is ctx.Err(),
// or, if ExitOnError is set, the error of the first failed pass.
func (r *Runner) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return errors.Errorf("interval %s is not positive", r.Interval)
	}
	r.init()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		errCh = make(chan error, 1)
	)

	fire := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := r.RunOnce(ctx)
			if err == nil || stderrs.Is(err, ErrBusy) || ctx.Err() != nil {
				return
			}
			if !r.ExitOnError {
				return
			}
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}()
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	fire()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			select {
			case err := <-errCh:
				return err
			default:
				return ctx.Err()
			}

		case <-ticker.C:
			fire()

		case <-r.trigger:
			fire()
		}
	}
}
