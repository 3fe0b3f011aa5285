// Package mem implements an in-memory history store.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobg/mirror/history"
)

var _ history.Store = &Store{}

// Store is a memory-based implementation of a history store.
type Store struct {
	mu      sync.Mutex
	records []*history.Record // sorted by Start, then ID
	nextID  int64
}

// New produces a new Store.
func New() *Store {
	return &Store{nextID: 1}
}

// Add implements history.Store.
func (s *Store) Add(_ context.Context, rec *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++

	cp := *rec
	cp.Failed = append([]string(nil), rec.Failed...)
	cp.Skipped = append([]string(nil), rec.Skipped...)

	idx := sort.Search(len(s.records), func(n int) bool {
		return s.records[n].Start.After(rec.Start)
	})
	s.records = append(s.records, nil)
	copy(s.records[idx+1:], s.records[idx:])
	s.records[idx] = &cp

	return nil
}

// List implements history.Store.
func (s *Store) List(ctx context.Context, since time.Time, f func(*history.Record) error) error {
	s.mu.Lock()
	idx := sort.Search(len(s.records), func(n int) bool {
		return !s.records[n].Start.Before(since)
	})
	records := append([]*history.Record(nil), s.records[idx:]...)
	s.mu.Unlock()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		cp := *rec
		if err := f(&cp); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	history.Register("mem", func(context.Context, map[string]interface{}) (history.Store, error) {
		return New(), nil
	})
}
