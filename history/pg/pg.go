package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/bobg/sqlutil"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bobg/mirror/history"
)

var _ history.Store = &Store{}

// Store is a Postgresql-based history store.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `passes` table if it does not exist.
// (If it does exist, it must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS passes (
  id BIGSERIAL PRIMARY KEY,
  source TEXT NOT NULL,
  replica TEXT NOT NULL,
  start_time TIMESTAMP WITH TIME ZONE NOT NULL,
  end_time TIMESTAMP WITH TIME ZONE NOT NULL,
  files_copied INTEGER NOT NULL,
  files_deleted INTEGER NOT NULL,
  dirs_created INTEGER NOT NULL,
  dirs_deleted INTEGER NOT NULL,
  failed TEXT[] NOT NULL,
  skipped TEXT[] NOT NULL,
  err TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS passes_start_idx ON passes (start_time);
`

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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, q,
		rec.Source, rec.Replica,
		rec.Start, rec.End,
		rec.FilesCopied, rec.FilesDeleted, rec.DirsCreated, rec.DirsDeleted,
		paths(rec.Failed), paths(rec.Skipped), rec.Err,
	).Scan(&rec.ID)
	return errors.Wrap(err, "inserting pass record")
}

// List implements history.Store.
func (s *Store) List(ctx context.Context, since time.Time, f func(*history.Record) error) error {
	const q = `SELECT id, source, replica, start_time, end_time,
		files_copied, files_deleted, dirs_created, dirs_deleted, failed, skipped, err
		FROM passes WHERE start_time >= $1 ORDER BY start_time, id`

	return sqlutil.ForQueryRows(ctx, s.db, q, since, func(
		id int64,
		source, replica string,
		start, end time.Time,
		filesCopied, filesDeleted, dirsCreated, dirsDeleted int,
		failed, skipped pq.StringArray,
		errStr string,
	) error {
		return f(&history.Record{
			ID:           id,
			Source:       source,
			Replica:      replica,
			Start:        start,
			End:          end,
			FilesCopied:  filesCopied,
			FilesDeleted: filesDeleted,
			DirsCreated:  dirsCreated,
			DirsDeleted:  dirsDeleted,
			Failed:       failed,
			Skipped:      skipped,
			Err:          errStr,
		})
	})
}

// Postgres arrays may be empty but the columns are NOT NULL,
// and pq encodes a nil StringArray as NULL.
func paths(p []string) pq.StringArray {
	if p == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(p)
}

func init() {
	history.Register("pg", func(ctx context.Context, conf map[string]interface{}) (history.Store, error) {
		conn, err := history.Conn(conf)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
