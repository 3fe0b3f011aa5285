package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobg/mirror/history"
)

func TestListHistory(t *testing.T) {
	var (
		ctx  = context.Background()
		tmp  = t.TempDir()
		conn = filepath.Join(tmp, "history.db")
	)

	s, err := history.Create(ctx, "sqlite3", map[string]interface{}{"conn": conn})
	if err != nil {
		t.Fatal(err)
	}

	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	for _, rec := range []*history.Record{
		{Source: "/old-src", Replica: "/dst", Start: t1, End: t1.Add(time.Second), FilesCopied: 1},
		{Source: "/new-src", Replica: "/dst", Start: t2, End: t2.Add(time.Second), Failed: []string{"a/b"}, Skipped: []string{"q"}, Err: "prune failure in a/b: busy"},
	} {
		if err = s.Add(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	confFile := filepath.Join(tmp, "history.json")
	if err = os.WriteFile(confFile, []byte(fmt.Sprintf(`{"type": "sqlite3", "conn": %q}`, conn)), 0644); err != nil {
		t.Fatal(err)
	}

	list := func(args ...string) string {
		t.Helper()

		var (
			buf strings.Builder
			fs  = flag.NewFlagSet("history", flag.ContinueOnError)
		)
		fs.SetOutput(new(strings.Builder))
		if err := (maincmd{stdout: &buf}).listHistory(ctx, fs, args); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}

	all := list("-history", confFile)
	for _, want := range []string{"/old-src -> /dst", "/new-src -> /dst", "FAILED: prune failure in a/b: busy", "failed subtrees: a/b", "quarantined subtrees: q"} {
		if !strings.Contains(all, want) {
			t.Errorf("full listing lacks %q:\n%s", want, all)
		}
	}
	if i, j := strings.Index(all, "/old-src"), strings.Index(all, "/new-src"); i > j {
		t.Errorf("listing not in start order:\n%s", all)
	}

	recent := list("-history", confFile, "-since", "2024-03-03")
	if strings.Contains(recent, "/old-src") {
		t.Errorf("-since did not exclude the older pass:\n%s", recent)
	}
	if !strings.Contains(recent, "/new-src") {
		t.Errorf("-since excluded the newer pass:\n%s", recent)
	}

	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))
	if err = (maincmd{stdout: new(strings.Builder)}).listHistory(ctx, fs, nil); err == nil {
		t.Error("expected an error without -history")
	}
}

func TestParsetime(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-03T10:00:00Z", want: time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)},
		{in: "2024-03-03T10:00:00.5Z", want: time.Date(2024, 3, 3, 10, 0, 0, 500000000, time.UTC)},
		{in: "2024-03-03T10:00:00-04:00", want: time.Date(2024, 3, 3, 14, 0, 0, 0, time.UTC)},
		{in: "2024-03-03 10:00:00", want: time.Date(2024, 3, 3, 10, 0, 0, 0, time.Local)},
		{in: "2024-03-03", want: time.Date(2024, 3, 3, 0, 0, 0, 0, time.Local)},
		{in: "yesterday", wantErr: true},
	}
	for _, c := range cases {
		got, err := parsetime(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parsetime(%q): expected an error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsetime(%q): %s", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("parsetime(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}
