package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"

	_ "github.com/bobg/mirror/history/mem"
	_ "github.com/bobg/mirror/history/pg"
	_ "github.com/bobg/mirror/history/sqlite3"
)

type maincmd struct {
	stdout io.Writer
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("got signal %s", sig)
		cancel()
	}()

	err := subcmd.Run(ctx, maincmd{stdout: os.Stdout}, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"run":     flagSubcmd("run", c.run),
		"once":    flagSubcmd("once", c.once),
		"history": flagSubcmd("history", c.listHistory),
	}
}

// flagSubcmd adapts a subcommand that parses its own flags to subcmd.Subcmd.
func flagSubcmd(name string, f func(context.Context, *flag.FlagSet, []string) error) subcmd.Subcmd {
	return subcmd.Subcmd{
		F: func(ctx context.Context, args []string) error {
			return f(ctx, flag.NewFlagSet(name, flag.ContinueOnError), args)
		},
	}
}

var layouts = []string{
	time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", time.ANSIC, time.UnixDate,
}

func parsetime(s string) (time.Time, error) {
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("could not parse time %s", s)
}
