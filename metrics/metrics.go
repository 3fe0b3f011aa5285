// Package metrics provides Prometheus metrics for reconciliation passes.
package metrics

import (
	"context"
	stderrs "errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bobg/mirror"
)

var (
	// Pass metrics
	passesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_passes_total",
			Help: "Total number of reconciliation passes",
		},
		[]string{"result"},
	)

	passesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_passes_skipped_total",
			Help: "Scheduled passes skipped because a pass was already running",
		},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mirror_pass_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Replica mutation metrics
	filesCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_files_copied_total",
			Help: "Total files written to the replica",
		},
	)

	entriesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_entries_deleted_total",
			Help: "Total replica entries deleted",
		},
		[]string{"kind"},
	)

	dirsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_dirs_created_total",
			Help: "Total directories created in the replica",
		},
	)

	// Failure metrics
	subtreeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_subtree_failures_total",
			Help: "Total directory pairs that failed to reconcile",
		},
		[]string{"kind"},
	)

	quarantined = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirror_quarantined_subtrees",
			Help: "Number of subtrees currently quarantined",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe records the outcome of a pass.
func Observe(rep *mirror.Report, err error) {
	passesTotal.WithLabelValues(Result(err)).Inc()
	if rep == nil {
		return
	}

	passDuration.Observe(rep.Duration().Seconds())
	filesCopied.Add(float64(rep.FilesCopied))
	entriesDeleted.WithLabelValues("file").Add(float64(rep.FilesDeleted))
	entriesDeleted.WithLabelValues("dir").Add(float64(rep.DirsDeleted))
	dirsCreated.Add(float64(rep.DirsCreated))

	for _, f := range rep.Failures {
		subtreeFailures.WithLabelValues(kind(f.Kind)).Inc()
	}
}

// Skipped records a scheduled pass that did not run.
func Skipped() {
	passesSkipped.Inc()
}

// SetQuarantined sets the number of quarantined subtrees.
func SetQuarantined(n int) {
	quarantined.Set(float64(n))
}

// Result is the "result" label for a pass ending with err.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stderrs.Is(err, context.Canceled), stderrs.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}

func kind(err error) string {
	switch err {
	case mirror.ErrReconcile:
		return "reconcile"
	case mirror.ErrPrune:
		return "prune"
	default:
		return "other"
	}
}
