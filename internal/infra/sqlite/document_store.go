package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alpharia-assessment/internal/domain"
	_ "modernc.org/sqlite" // driver: sqlite
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  data TEXT NOT NULL CHECK (json_valid(data)),
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (collection, id)
);
`

// DefaultDSN is used when no sqlite dsn is configured.
const DefaultDSN = "file:alpharia.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

// DocumentStore keeps documents in a single sqlite table. It suits a
// one-classroom install with no external services.
type DocumentStore struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*DocumentStore, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &DocumentStore{db: db, clock: time.Now}, nil
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	var (
		data    string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM documents WHERE collection=$1 AND id=$2`,
		collection, id,
	).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		Collection: collection,
		ID:         id,
		Data:       json.RawMessage(data),
		UpdatedAt:  time.Unix(0, updated).UTC(),
	}, nil
}

func (s *DocumentStore) SaveDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("%s/%s: invalid json", collection, id)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (collection,id,data,updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (collection,id) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		collection, id, string(data), s.clock().UnixNano())
	return err
}

// QueryDocuments reads the collection and applies filters in Go, since
// json_extract returns booleans as integers.
func (s *DocumentStore) QueryDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, updated_at FROM documents WHERE collection=$1 ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		var (
			id, data string
			updated  int64
		)
		if err := rows.Scan(&id, &data, &updated); err != nil {
			return nil, err
		}
		raw := json.RawMessage(data)
		if !domain.MatchAll(raw, filters) {
			continue
		}
		out = append(out, domain.Document{
			Collection: collection,
			ID:         id,
			Data:       raw,
			UpdatedAt:  time.Unix(0, updated).UTC(),
		})
	}
	return out, rows.Err()
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return nil
}
