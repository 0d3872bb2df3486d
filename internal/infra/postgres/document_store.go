package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"alpharia-assessment/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DocumentStore keeps JSONB documents in the documents table.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	doc := domain.Document{Collection: collection, ID: id}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE collection=$1 AND id=$2`,
		collection, id,
	).Scan(&raw, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	doc.Data = raw
	return doc, nil
}

func (s *DocumentStore) SaveDocument(ctx context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("%s/%s: invalid json", collection, id)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// QueryDocuments matches filters with data->>field text equality.
func (s *DocumentStore) QueryDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	query, args := buildQuery(collection, filters)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc := domain.Document{Collection: collection}
		var raw []byte
		if err := rows.Scan(&doc.ID, &raw, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Data = raw
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return nil
}

func buildQuery(collection string, filters []domain.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, data, updated_at FROM documents WHERE collection=$1`)
	args := []any{collection}
	for _, f := range filters {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		fmt.Fprintf(&b, ` AND data->>($%d::text) = $%d`, len(args)-1, len(args))
	}
	b.WriteString(` ORDER BY id`)
	return b.String(), args
}
