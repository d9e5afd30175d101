package docs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"veriledger/pkg/domain"
	"veriledger/pkg/platform/sentinel"
)

// Schema creates the documents table.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	uri      TEXT NOT NULL,
	hash     BYTEA NOT NULL,
	added_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore persists documents in Postgres. The primary-key constraint
// enforces write-once at the database level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id domain.DocumentID) (*Document, error) {
	var doc Document
	var hash []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, uri, hash, added_at FROM documents WHERE id = $1`, id.String(),
	).Scan(&doc.ID, &doc.URI, &hash, &doc.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	copy(doc.Hash[:], hash)
	return &doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, doc *Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, uri, hash, added_at) VALUES ($1, $2, $3, $4)`,
		doc.ID.String(), doc.URI, doc.Hash[:], doc.AddedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, uri, hash, added_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var doc Document
		var hash []byte
		if err := rows.Scan(&doc.ID, &doc.URI, &hash, &doc.AddedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		copy(doc.Hash[:], hash)
		out = append(out, doc)
	}
	return out, rows.Err()
}
