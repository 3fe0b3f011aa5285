// Package testutil holds conformance tests shared by the history store implementations.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/bobg/mirror/history"
)

// History exercises Add and List on an empty store.
func History(ctx context.Context, t *testing.T, store history.Store) {
	var (
		t1 = time.Date(1977, 8, 5, 12, 0, 0, 0, time.FixedZone("UTC-4", -4*60*60))
		t2 = t1.Add(500 * time.Millisecond)
		t3 = t1.Add(time.Second)

		r1 = &history.Record{
			Source:      "/src",
			Replica:     "/dst",
			Start:       t1,
			End:         t1.Add(10 * time.Millisecond),
			FilesCopied: 3,
			DirsCreated: 2,
		}
		r2 = &history.Record{
			Source:       "/src",
			Replica:      "/dst",
			Start:        t2,
			End:          t2.Add(10 * time.Millisecond),
			FilesCopied:  3,
			FilesDeleted: 1,
			DirsDeleted:  1,
			Failed:       []string{"a", "b/c"},
			Err:          "reconciliation failure in a: permission denied",
		}
		r3 = &history.Record{
			Source:  "/src",
			Replica: "/dst",
			Start:   t3,
			End:     t3.Add(10 * time.Millisecond),
			Skipped: []string{"a"},
		}
	)

	// Out of order, to show that List sorts by Start.
	for _, rec := range []*history.Record{r3, r1, r2} {
		if err := store.Add(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.ID == 0 {
			t.Fatal("Add did not assign an ID")
		}
	}
	if r1.ID == r2.ID || r2.ID == r3.ID || r1.ID == r3.ID {
		t.Fatalf("IDs not distinct: %d, %d, %d", r1.ID, r2.ID, r3.ID)
	}

	list := func(since time.Time) []*history.Record {
		var got []*history.Record
		err := store.List(ctx, since, func(rec *history.Record) error {
			got = append(got, rec)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	cases := []struct {
		since time.Time
		want  []*history.Record
	}{
		{since: time.Time{}, want: []*history.Record{r1, r2, r3}},
		{since: t1, want: []*history.Record{r1, r2, r3}},
		{since: t1.Add(time.Millisecond), want: []*history.Record{r2, r3}},
		{since: t3, want: []*history.Record{r3}},
		{since: t3.Add(time.Minute)},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%02d", i+1), func(t *testing.T) {
			got := list(c.since)
			if diff := cmp.Diff(c.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	stop := errors.New("stop")
	var n int
	err := store.List(ctx, time.Time{}, func(*history.Record) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("got error %v, want %v", err, stop)
	}
	if n != 1 {
		t.Errorf("callback called %d times after returning an error, want 1", n)
	}
}
