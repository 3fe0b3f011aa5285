package schedule

import (
	"context"
	stderrs "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobg/mirror"
	"github.com/bobg/mirror/reconcile"
	"github.com/bobg/mirror/sink"
)

// blockingFS stalls the first Stat of path until release is closed.
type blockingFS struct {
	mirror.FS

	path             string
	once             sync.Once
	entered, release chan struct{}
}

func (b *blockingFS) Stat(name string) (os.FileInfo, error) {
	if name == b.path {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	return b.FS.Stat(name)
}

func newSource(t *testing.T) mirror.FS {
	t.Helper()

	fsys := mirror.Mem()
	if err := fsys.MkdirAll("/src/sub", 0755); err != nil {
		t.Fatal(err)
	}
	f, err := fsys.OpenFile("/src/sub/f.txt", os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = io.WriteString(f, "hello"); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}
	return fsys
}

func TestRunOnceBusy(t *testing.T) {
	mem := newSource(t)
	src := &blockingFS{
		FS:      mem,
		path:    "/src",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	var skips int32
	rec := sink.NewRecorder(nil)
	r := &Runner{
		Reconciler: reconcile.New(src, mem, rec),
		Source:     "/src",
		Replica:    "/dst",
		OnSkip:     func() { atomic.AddInt32(&skips, 1) },
	}

	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = r.RunOnce(ctx)
	}()

	<-src.entered

	if _, err := r.RunOnce(ctx); !stderrs.Is(err, ErrBusy) {
		t.Errorf("got %v, want ErrBusy", err)
	}
	if got := atomic.LoadInt32(&skips); got != 1 {
		t.Errorf("got %d skips, want 1", got)
	}

	close(src.release)
	wg.Wait()

	if firstErr != nil {
		t.Fatal(firstErr)
	}
	if _, err := mem.Stat("/dst/sub/f.txt"); err != nil {
		t.Errorf("replica not populated: %s", err)
	}

	// The guard is released once the pass is over.
	if _, err := r.RunOnce(ctx); err != nil {
		t.Errorf("third pass: %s", err)
	}
}

func TestRunImmediateAndTrigger(t *testing.T) {
	fsys := newSource(t)

	reports := make(chan *mirror.Report, 10)
	r := &Runner{
		Reconciler: reconcile.New(fsys, fsys, nil),
		Source:     "/src",
		Replica:    "/dst",
		Interval:   time.Hour,
		OnReport:   func(rep *mirror.Report, _ error) { reports <- rep },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	wait := func(what string) *mirror.Report {
		t.Helper()
		select {
		case rep := <-reports:
			return rep
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}

	first := wait("the first pass")
	if first.DirsCreated != 2 {
		t.Errorf("first pass created %d dirs, want 2", first.DirsCreated)
	}

	r.Trigger()
	second := wait("the triggered pass")
	if second.DirsCreated != 0 {
		t.Errorf("second pass created %d dirs, want 0", second.DirsCreated)
	}

	cancel()
	select {
	case err := <-errCh:
		if !stderrs.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunExitOnError(t *testing.T) {
	fsys := mirror.Mem()

	r := &Runner{
		Reconciler:  reconcile.New(fsys, fsys, nil),
		Source:      "/missing",
		Replica:     "/dst",
		Interval:    time.Hour,
		ExitOnError: true,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if !stderrs.Is(err, mirror.ErrTreeUnavailable) {
			t.Errorf("got %v, want ErrTreeUnavailable", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a failed pass")
	}
}

func TestRunContinuesAfterError(t *testing.T) {
	fsys := mirror.Mem()

	var passes int32
	r := &Runner{
		Reconciler: reconcile.New(fsys, fsys, nil),
		Source:     "/missing",
		Replica:    "/dst",
		Interval:   10 * time.Millisecond,
		OnReport: func(_ *mirror.Report, err error) {
			if err != nil {
				atomic.AddInt32(&passes, 1)
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&passes) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for repeated passes")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-errCh; !stderrs.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRunBadInterval(t *testing.T) {
	fsys := mirror.Mem()
	r := &Runner{
		Reconciler: reconcile.New(fsys, fsys, nil),
		Source:     "/src",
		Replica:    "/dst",
	}
	if err := r.Run(context.Background()); err == nil {
		t.Error("expected an error for a zero interval")
	}
}

func TestLockFile(t *testing.T) {
	fsys := newSource(t)
	r := &Runner{
		Reconciler: reconcile.New(fsys, fsys, nil),
		Source:     "/src",
		Replica:    "/dst",
		LockFile:   filepath.Join(t.TempDir(), "mirror.lock"),
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := r.RunOnce(ctx); err != nil {
			t.Fatalf("pass %d: %s", i+1, err)
		}
	}
}

func TestLockFileFailureReported(t *testing.T) {
	fsys := newSource(t)

	var (
		gotRep *mirror.Report
		gotErr error
	)
	r := &Runner{
		Reconciler: reconcile.New(fsys, fsys, nil),
		Source:     "/src",
		Replica:    "/dst",
		LockFile:   filepath.Join(t.TempDir(), "nonexistent", "mirror.lock"),
		OnReport: func(rep *mirror.Report, err error) {
			gotRep, gotErr = rep, err
		},
	}

	rep, err := r.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unusable lock file")
	}
	if rep == nil {
		t.Fatal("nil report")
	}
	if rep.Source != "/src" || rep.Replica != "/dst" || rep.End.Before(rep.Start) {
		t.Errorf("unexpected report %+v", rep)
	}
	if gotRep != rep || gotErr != err {
		t.Error("OnReport not called with the failed pass")
	}
	if _, serr := fsys.Stat("/dst"); serr == nil {
		t.Error("replica touched without the lock")
	}
}
