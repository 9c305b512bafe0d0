/*
sql.go - database/sql snapshot store

PURPOSE:
  Keeps the current sheet document in one row of sheet_state, keyed by sheet
  id. Every save overwrites the row (upsert). The same statements run on
  SQLite and PostgreSQL: positional $n parameters and ON CONFLICT.

SCHEMA (see store/sqlite/migrations, store/postgres/migrations):
  sheet_state(sheet_id PK, revision, origin, saved_at, document)

SEE ALSO:
  - store/sqlite: opens SQLite (mattn/go-sqlite3) and migrates
  - store/postgres: opens PostgreSQL (lib/pq) and migrates
  - sheet/sheet.go: Persister interface
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/order-sheet/sheet"
)

// DefaultSheetID is the row used when a database holds a single sheet.
const DefaultSheetID = "default"

// SQL implements sheet.Persister on a migrated database.
type SQL struct {
	db      *sql.DB
	sheetID string
}

// NewSQL wraps db. The schema must already exist.
func NewSQL(db *sql.DB, sheetID string) *SQL {
	if sheetID == "" {
		sheetID = DefaultSheetID
	}
	return &SQL{db: db, sheetID: sheetID}
}

// DB returns the underlying handle.
func (s *SQL) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the stored snapshot, or nil when the sheet was never saved.
func (s *SQL) Load(ctx context.Context) (*sheet.Snapshot, error) {
	var (
		snap    sheet.Snapshot
		savedAt string
		doc     []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT revision, origin, saved_at, document
		FROM sheet_state
		WHERE sheet_id = $1`, s.sheetID,
	).Scan(&snap.Revision, &snap.Origin, &savedAt, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sheet %s: %w", s.sheetID, err)
	}

	snap.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved_at %q: %w", savedAt, err)
	}
	snap.Data = doc
	return &snap, nil
}

// Save upserts the snapshot.
func (s *SQL) Save(ctx context.Context, snap sheet.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sheet_state (sheet_id, revision, origin, saved_at, document)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sheet_id) DO UPDATE SET
			revision = excluded.revision,
			origin = excluded.origin,
			saved_at = excluded.saved_at,
			document = excluded.document`,
		s.sheetID,
		snap.Revision,
		snap.Origin,
		snap.SavedAt.UTC().Format(time.RFC3339Nano),
		string(snap.Data),
	)
	if err != nil {
		return fmt.Errorf("failed to save sheet %s: %w", s.sheetID, err)
	}
	return nil
}
