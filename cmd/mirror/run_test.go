package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobg/mirror/history"
	"github.com/bobg/mirror/sink"
)

func TestOnce(t *testing.T) {
	src, dst, logdir := dirs(t)
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "stale.txt"), []byte("z"), 0644); err != nil {
		t.Fatal(err)
	}

	conf, err := parse(src, dst, "1000", logdir)
	if err != nil {
		t.Fatal(err)
	}
	conf.History = map[string]interface{}{"type": "mem"}

	ctx := context.Background()
	a, err := newApp(ctx, conf)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = a.runner.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	a.log.Sync()

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "x" {
		t.Errorf("got %q, want x", got)
	}
	if _, err = os.Stat(filepath.Join(dst, "stale.txt")); !os.IsNotExist(err) {
		t.Errorf("stale file not removed (err %v)", err)
	}

	var recs []*history.Record
	err = a.history.List(ctx, time.Time{}, func(rec *history.Record) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d history records, want 1", len(recs))
	}
	if recs[0].FilesCopied != 1 || recs[0].FilesDeleted != 1 || !recs[0].OK() {
		t.Errorf("unexpected record %+v", recs[0])
	}

	if _, err = os.Stat(sink.FileName(logdir, time.Now())); err != nil {
		t.Errorf("log file not written: %s", err)
	}
}
