package sqlite3

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/mirror/history"
)

var _ history.Store = &Store{}

// Store is a Sqlite-based history store.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `passes` table if it does not exist.
// (If it does exist, it must have the columns, constraints, and indexing described here.)
//
// Times are stored as fixed-width UTC text (see timeLayout) so that they sort correctly as strings.
// Path lists are stored as JSON arrays.
const Schema = `
CREATE TABLE IF NOT EXISTS passes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  replica TEXT NOT NULL,
  start_time TEXT NOT NULL,
  end_time TEXT NOT NULL,
  files_copied INTEGER NOT NULL,
  files_deleted INTEGER NOT NULL,
  dirs_created INTEGER NOT NULL,
  dirs_deleted INTEGER NOT NULL,
  failed TEXT NOT NULL,
  skipped TEXT NOT NULL,
  err TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS passes_start_idx ON passes (start_time);
`

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// New produces a new Store using `db` for storage.
// It expects to create table `passes`,
// or for that table already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

// Add implements history.Store.
func (s *Store) Add(ctx context.Context, rec *history.Record) error {
	const q = `INSERT INTO passes
		(source, replica, start_time, end_time, files_copied, files_deleted, dirs_created, dirs_deleted, failed, skipped, err)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	failed, err := encodePaths(rec.Failed)
	if err != nil {
		return err
	}
	skipped, err := encodePaths(rec.Skipped)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, q,
		rec.Source, rec.Replica,
		formatTime(rec.Start), formatTime(rec.End),
		rec.FilesCopied, rec.FilesDeleted, rec.DirsCreated, rec.DirsDeleted,
		failed, skipped, rec.Err)
	if err != nil {
		return errors.Wrap(err, "inserting pass record")
	}

	rec.ID, err = res.LastInsertId()
	return errors.Wrap(err, "getting record ID")
}

// List implements history.Store.
func (s *Store) List(ctx context.Context, since time.Time, f func(*history.Record) error) error {
	const q = `SELECT id, source, replica, start_time, end_time,
		files_copied, files_deleted, dirs_created, dirs_deleted, failed, skipped, err
		FROM passes WHERE start_time >= $1 ORDER BY start_time, id`

	return sqlutil.ForQueryRows(ctx, s.db, q, formatTime(since), func(
		id int64,
		source, replica, startStr, endStr string,
		filesCopied, filesDeleted, dirsCreated, dirsDeleted int,
		failedStr, skippedStr, errStr string,
	) error {
		rec := &history.Record{
			ID:           id,
			Source:       source,
			Replica:      replica,
			FilesCopied:  filesCopied,
			FilesDeleted: filesDeleted,
			DirsCreated:  dirsCreated,
			DirsDeleted:  dirsDeleted,
			Err:          errStr,
		}

		var err error
		if rec.Start, err = time.Parse(timeLayout, startStr); err != nil {
			return errors.Wrapf(err, "parsing time %s", startStr)
		}
		if rec.End, err = time.Parse(timeLayout, endStr); err != nil {
			return errors.Wrapf(err, "parsing time %s", endStr)
		}
		if err = json.Unmarshal([]byte(failedStr), &rec.Failed); err != nil {
			return errors.Wrapf(err, "decoding failed paths of record %d", id)
		}
		if err = json.Unmarshal([]byte(skippedStr), &rec.Skipped); err != nil {
			return errors.Wrapf(err, "decoding skipped paths of record %d", id)
		}

		return f(rec)
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodePaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	b, err := json.Marshal(paths)
	return string(b), errors.Wrap(err, "encoding paths")
}

func init() {
	history.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (history.Store, error) {
		conn, err := history.Conn(conf)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
