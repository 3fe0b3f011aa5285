// Package watch requests reconciliation passes when a source tree changes.
package watch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rjeczalik/notify"

	"github.com/bobg/mirror"
)

// Watch calls trigger for every change notification beneath root
// until ctx is canceled.
// It returns ctx.Err(),
// or an error if root cannot be watched.
// Notifications can arrive in bursts;
// trigger should coalesce them (as schedule.Runner.Trigger does).
func Watch(ctx context.Context, root string, trigger func(), sink mirror.Sink) error {
	if sink == nil {
		sink = mirror.Discard
	}

	fsch := make(chan notify.EventInfo, 100)

	err := notify.Watch(root+"/...", fsch, notify.All)
	if err != nil {
		return errors.Wrapf(err, "watching %s/...", root)
	}
	defer notify.Stop(fsch)

	sink.Infof("Watching %s for changes", root)

	for {
		select {
		case <-ctx.Done():
			sink.Infof("Context canceled, no longer watching %s", root)
			return ctx.Err()

		case ev, ok := <-fsch:
			if !ok {
				return errors.Errorf("file-events channel for %s closed", root)
			}
			sink.Infof("Change detected: %s %s", ev.Event(), ev.Path())
			trigger()
		}
	}
}
