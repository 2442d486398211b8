package prooflog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists a proof log for offline audit. The chain fields
// are stored verbatim; LoadAll re-verifies them, so a tampered
// database is caught on read.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and migrates) a proof log database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("prooflog: open %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an existing database handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS proof_steps (
		seq INTEGER PRIMARY KEY,
		rule TEXT NOT NULL,
		oracle_id TEXT NOT NULL DEFAULT '',
		cert_scheme TEXT NOT NULL DEFAULT '',
		hyps JSON,
		concl TEXT NOT NULL,
		premises JSON,
		term_args JSON,
		recorded_at TEXT NOT NULL,
		prev_hash TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Append stores entries starting at their recorded sequence numbers.
func (s *SQLiteStore) Append(ctx context.Context, entries []*Entry) error {
	query := `INSERT INTO proof_steps (
		seq, rule, oracle_id, cert_scheme, hyps, concl, premises, term_args, recorded_at, prev_hash, digest
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		hyps, _ := json.Marshal(e.Hyps)
		premises, _ := json.Marshal(e.Premises)
		termArgs, _ := json.Marshal(e.TermArgs)
		if _, err := tx.ExecContext(ctx, query,
			e.Seq, e.Rule, e.OracleID, e.CertScheme, string(hyps), e.Concl,
			string(premises), string(termArgs), e.RecordedAt, e.Prev, e.Digest,
		); err != nil {
			return fmt.Errorf("prooflog: insert step %d: %w", e.Seq, err)
		}
	}
	return tx.Commit()
}

// LoadAll reads the full log in order and verifies the hash chain.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*Entry, error) {
	query := `
		SELECT seq, rule, oracle_id, cert_scheme, hyps, concl, premises, term_args, recorded_at, prev_hash, digest
		FROM proof_steps
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var (
			e                        Entry
			hyps, premises, termArgs sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.Rule, &e.OracleID, &e.CertScheme, &hyps, &e.Concl,
			&premises, &termArgs, &e.RecordedAt, &e.Prev, &e.Digest); err != nil {
			return nil, err
		}
		if hyps.Valid && hyps.String != "" {
			_ = json.Unmarshal([]byte(hyps.String), &e.Hyps)
		}
		if premises.Valid && premises.String != "" {
			_ = json.Unmarshal([]byte(premises.String), &e.Premises)
		}
		if termArgs.Valid && termArgs.String != "" {
			_ = json.Unmarshal([]byte(termArgs.String), &e.TermArgs)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := VerifyChain(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
