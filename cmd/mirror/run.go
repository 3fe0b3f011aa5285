package main

import (
	"context"
	stderrs "errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/mirror"
	"github.com/bobg/mirror/history"
	"github.com/bobg/mirror/metrics"
	"github.com/bobg/mirror/quarantine"
	"github.com/bobg/mirror/reconcile"
	"github.com/bobg/mirror/schedule"
	"github.com/bobg/mirror/sink"
	"github.com/bobg/mirror/watch"
)

// app is everything a run or once subcommand wires together.
type app struct {
	conf    *config
	log     *zap.SugaredLogger
	q       *quarantine.Set // nil unless failed subtrees are quarantined
	history history.Store   // may be nil
	runner  *schedule.Runner
}

func newApp(ctx context.Context, conf *config) (*app, error) {
	logger, err := sink.New(conf.sinkConfig())
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}

	a := &app{conf: conf, log: logger}

	r := reconcile.New(mirror.OS(), mirror.OS(), logger)
	r.Policy = conf.policy()
	r.Parallel = conf.Parallel

	if !conf.RetryFailed {
		if a.q, err = quarantine.New(conf.QuarantineSize); err != nil {
			return nil, errors.Wrap(err, "creating quarantine")
		}
		r.Quarantine = a.q
	}

	if conf.History != nil {
		typ, ok := conf.History["type"].(string)
		if !ok {
			return nil, errors.New("history config missing `type` parameter")
		}
		if a.history, err = history.Create(ctx, typ, conf.History); err != nil {
			return nil, errors.Wrapf(err, "creating %s-type history store", typ)
		}
	}

	a.runner = &schedule.Runner{
		Reconciler:  r,
		Source:      conf.Source,
		Replica:     conf.Replica,
		Interval:    conf.interval(),
		LockFile:    conf.LockFile,
		ExitOnError: conf.ExitOnError,
		OnReport:    a.onReport,
		OnSkip:      metrics.Skipped,
	}

	return a, nil
}

func (a *app) onReport(rep *mirror.Report, err error) {
	metrics.Observe(rep, err)
	if a.q != nil {
		metrics.SetQuarantined(a.q.Len())
	}

	a.log.Infof("Pass over [%s] took %s: %d files copied, %d files and %d directories deleted, %d directories created",
		rep.Source, rep.Duration(), rep.FilesCopied, rep.FilesDeleted, rep.DirsDeleted, rep.DirsCreated)

	if a.history == nil {
		return
	}
	// The pass's own context may be canceled by now.
	if herr := a.history.Add(context.Background(), history.FromReport(rep, err)); herr != nil {
		a.log.Errorf("Recording pass history: %s", herr)
	}
}

func (c maincmd) run(ctx context.Context, fs *flag.FlagSet, args []string) error {
	conf, err := parseConfig(fs, args, true)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	return a.run(ctx)
}

func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if addr := a.conf.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}

		wg.Add(1)
		go func() {
			defer wg.Done()
			a.log.Infof("Serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !stderrs.Is(err, http.ErrServerClosed) {
				a.log.Errorf("Serving metrics: %s", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if a.conf.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := watch.Watch(ctx, a.conf.Source, a.runner.Trigger, a.log)
			if err != nil && !stderrs.Is(err, context.Canceled) {
				a.log.Errorf("Watching %s: %s", a.conf.Source, err)
			}
		}()
	}

	if a.q != nil {
		hupCh := make(chan os.Signal, 1)
		signal.Notify(hupCh, syscall.SIGHUP)
		defer signal.Stop(hupCh)

		// SIGHUP is the operator's signal that quarantined subtrees may be retried.
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-hupCh:
					for _, e := range a.q.Entries() {
						a.log.Infof("Releasing %s from quarantine (failed %s: %s)", e.Path, e.Since.Format(time.RFC3339), e.Err)
					}
					a.q.Clear()
					metrics.SetQuarantined(0)
					a.runner.Trigger()
				}
			}
		}()
	}

	err := a.runner.Run(ctx)
	cancel()
	wg.Wait()

	if stderrs.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c maincmd) once(ctx context.Context, fs *flag.FlagSet, args []string) error {
	conf, err := parseConfig(fs, args, false)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	_, err = a.runner.RunOnce(ctx)
	return err
}
