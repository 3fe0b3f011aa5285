// Package history records the outcome of reconciliation passes.
package history

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/mirror"
)

// Record is the durable summary of one pass.
type Record struct {
	// ID is assigned by the Store in Add.
	ID int64

	Source, Replica string
	Start, End      time.Time

	FilesCopied  int
	FilesDeleted int
	DirsCreated  int
	DirsDeleted  int

	// Failed lists the relative paths of subtrees that failed.
	Failed []string

	// Skipped lists the relative paths of quarantined subtrees.
	Skipped []string

	// Err is the pass's error text, empty if it succeeded.
	Err string
}

// FromReport converts the outcome of a pass into a Record.
func FromReport(rep *mirror.Report, err error) *Record {
	r := &Record{
		Source:       rep.Source,
		Replica:      rep.Replica,
		Start:        rep.Start,
		End:          rep.End,
		FilesCopied:  rep.FilesCopied,
		FilesDeleted: rep.FilesDeleted,
		DirsCreated:  rep.DirsCreated,
		DirsDeleted:  rep.DirsDeleted,
		Failed:       rep.FailedPaths(),
		Skipped:      append([]string(nil), rep.Skipped...),
	}
	if err != nil {
		r.Err = err.Error()
	}
	return r
}

// OK tells whether the pass succeeded.
func (r *Record) OK() bool {
	return r.Err == ""
}

// Store is where Records are kept.
type Store interface {
	// Add stores rec and sets its ID.
	Add(ctx context.Context, rec *Record) error

	// List calls f on each Record whose Start is not before since,
	// in order of Start.
	// An error from f ends the listing and is returned.
	List(ctx context.Context, since time.Time, f func(*Record) error) error
}

// Factory creates a Store from a config map.
type Factory func(context.Context, map[string]interface{}) (Store, error)

var registry = make(map[string]Factory)

// Register makes a Store type available to Create.
// It is normally called from an init function.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create produces a Store of the registered type key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (Store, error) {
	f, ok := registry[key]
	if !ok {
		return nil, errors.Errorf("history type %s not found in registry", key)
	}
	return f(ctx, conf)
}

// Conn extracts the "conn" string from a config map.
func Conn(conf map[string]interface{}) (string, error) {
	conn, ok := conf["conn"].(string)
	if !ok || conn == "" {
		return "", errors.New(`missing "conn" parameter`)
	}
	return conn, nil
}
