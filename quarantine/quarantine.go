// Package quarantine holds the set of subtrees that failed to reconcile
// and should be left alone until an operator clears them.
package quarantine

import (
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Entry describes one quarantined subtree.
type Entry struct {
	Path  string
	Err   string
	Since time.Time
}

// Set is a bounded set of quarantined subtree paths.
// When full, the least recently added path is forgotten,
// which means it will be retried on the next pass.
// A Set is safe for concurrent use.
type Set struct {
	c *lru.Cache // path->Entry
}

// New produces a new Set holding up to size paths.
func New(size int) (*Set, error) {
	c, err := lru.New(size)
	return &Set{c: c}, err
}

// Add quarantines path because of err.
// Adding a path that is already present refreshes its entry.
func (s *Set) Add(path string, err error) {
	e := Entry{Path: path, Since: time.Now()}
	if err != nil {
		e.Err = err.Error()
	}
	s.c.Add(path, e)
}

// Contains tells whether path is quarantined.
// It does not count as a use for eviction purposes.
func (s *Set) Contains(path string) bool {
	return s.c.Contains(path)
}

// Remove releases path from quarantine.
func (s *Set) Remove(path string) {
	s.c.Remove(path)
}

// Clear releases everything.
func (s *Set) Clear() {
	s.c.Purge()
}

// Len is the number of quarantined paths.
func (s *Set) Len() int {
	return s.c.Len()
}

// Entries lists the quarantined subtrees sorted by path.
func (s *Set) Entries() []Entry {
	var result []Entry
	for _, k := range s.c.Keys() {
		if v, ok := s.c.Peek(k); ok {
			result = append(result, v.(Entry))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}
