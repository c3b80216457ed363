// Package db mirrors the translation store into SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/japaniel/tarjama/pkg/store"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Snapshot persists store snapshots in the records and record_tags tables.
type Snapshot struct {
	conn *sql.DB
}

// NewSnapshot returns a persister backed by conn. The schema must already
// be applied (see InitDB).
func NewSnapshot(conn *sql.DB) *Snapshot {
	return &Snapshot{conn: conn}
}

// Load reads every record in snapshot order.
func (s *Snapshot) Load() ([]store.Record, error) {
	records, err := listRecords(s.conn)
	if err != nil {
		return nil, err
	}
	tags, err := listTags(s.conn)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Tags = tags[records[i].Key]
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
	}
	return records, nil
}

// Save replaces the stored snapshot with records inside one transaction.
func (s *Snapshot) Save(records []store.Record) error {
	ctx := context.Background()
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if err := clearSnapshot(tx); err != nil {
		return err
	}
	for i, r := range records {
		if err := insertRecord(tx, i, r); err != nil {
			return fmt.Errorf("insert record %q: %w", r.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot (%d records): %w", len(records), err)
	}
	return nil
}

func clearSnapshot(db DBExecutor) error {
	if _, err := db.Exec(`DELETE FROM record_tags`); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func insertRecord(db DBExecutor, position int, r store.Record) error {
	_, err := db.Exec(
		`INSERT INTO records (record_key, position, english, arabic, version) VALUES (?, ?, ?, ?, ?)`,
		r.Key, position, r.English, r.Arabic, r.Version,
	)
	if err != nil {
		return err
	}
	for i, tag := range r.Tags {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO record_tags (record_key, position, tag) VALUES (?, ?, ?)`,
			r.Key, i, tag,
		); err != nil {
			return err
		}
	}
	return nil
}

func listRecords(db DBExecutor) ([]store.Record, error) {
	rows, err := db.Query(`SELECT record_key, english, arabic, version FROM records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var out []store.Record
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.Key, &r.English, &r.Arabic, &r.Version); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func listTags(db DBExecutor) (map[string][]string, error) {
	rows, err := db.Query(`SELECT record_key, tag FROM record_tags ORDER BY record_key, position`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var key, tag string
		if err := rows.Scan(&key, &tag); err != nil {
			return nil, err
		}
		out[key] = append(out[key], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountRecords returns the number of records in the mirror.
func CountRecords(db DBExecutor) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
