package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/mirror/history"
)

func (c maincmd) listHistory(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		historyFile = fs.String("history", "", "path to JSON history-store config file")
		sinceStr    = fs.String("since", "", "list passes starting at or after this time (default: all)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	if *historyFile == "" {
		return errors.New("must supply -history")
	}

	var since time.Time
	if *sinceStr != "" {
		since, err = parsetime(*sinceStr)
		if err != nil {
			return errors.Wrap(err, "parsing -since")
		}
	}

	conf, err := readJSONMap(*historyFile)
	if err != nil {
		return err
	}
	typ, ok := conf["type"].(string)
	if !ok {
		return fmt.Errorf("config file %s missing `type` parameter", *historyFile)
	}

	s, err := history.Create(ctx, typ, conf)
	if err != nil {
		return errors.Wrapf(err, "creating %s-type history store", typ)
	}

	return s.List(ctx, since, func(rec *history.Record) error {
		status := "ok"
		if !rec.OK() {
			status = "FAILED: " + rec.Err
		}
		fmt.Fprintf(c.stdout, "%d %s %s -> %s (%s): copied %d, deleted %d files and %d dirs, created %d dirs; %s\n",
			rec.ID, rec.Start.Format(time.RFC3339), rec.Source, rec.Replica, rec.End.Sub(rec.Start),
			rec.FilesCopied, rec.FilesDeleted, rec.DirsDeleted, rec.DirsCreated, status)
		if len(rec.Failed) > 0 {
			fmt.Fprintf(c.stdout, "  failed subtrees: %s\n", strings.Join(rec.Failed, ", "))
		}
		if len(rec.Skipped) > 0 {
			fmt.Fprintf(c.stdout, "  quarantined subtrees: %s\n", strings.Join(rec.Skipped, ", "))
		}
		return nil
	})
}
