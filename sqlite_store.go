package dts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

type sqliteStore struct{ db *sql.DB }

// OpenSQLiteStore opens/creates a SQLite archive and ensures schema +
// PRAGMAs. WAL with synchronous=FULL keeps appended entries durable
// across crashes, which is the whole point of an audit archive.
func OpenSQLiteStore(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	schema := `
CREATE TABLE IF NOT EXISTS entries (
  seq   INTEGER PRIMARY KEY,
  entry TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Append stores one serialized entry, enforcing contiguity inside a
// serializable transaction.
func (s *sqliteStore) Append(seq uint64, entry string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var maxSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),0) FROM entries`).Scan(&maxSeq); err != nil {
		return err
	}
	if uint64(maxSeq) != seq-1 {
		return fmt.Errorf("%w: have %d, got %d", ErrNonContiguous, maxSeq, seq)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO entries(seq, entry) VALUES(?, ?)`, seq, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// Iter streams archived entries starting from startSeq in ascending order.
func (s *sqliteStore) Iter(startSeq uint64) (<-chan StoredEntry, func() error, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, entry FROM entries WHERE seq >= ? ORDER BY seq ASC`, startSeq)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	out := make(chan StoredEntry, 64)
	go func() {
		defer close(out)
		defer rows.Close()
		defer cancel()
		for rows.Next() {
			var se StoredEntry
			if err := rows.Scan(&se.Seq, &se.Entry); err != nil {
				return
			}
			out <- se
		}
	}()
	return out, func() error { cancel(); return nil }, nil
}

// Count returns the highest archived sequence number.
func (s *sqliteStore) Count() (uint64, error) {
	var maxSeq int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq),0) FROM entries`).Scan(&maxSeq); err != nil {
		return 0, err
	}
	return uint64(maxSeq), nil
}

// Close closes the underlying database.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
