package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/internal/domain"
)

// DB is the subset of *sql.DB the store needs.
type DB interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLStore implements Store over database/sql. Works against SQLite and
// Postgres; placeholders use the $N form both drivers accept.
type SQLStore struct {
	db DB
}

// NewSQLStore creates a new SQL-backed draft store.
func NewSQLStore(db DB) *SQLStore {
	return &SQLStore{db: db}
}

// Schema is the DDL for the drafts table. Applied at startup; IF NOT EXISTS
// keeps repeated application harmless.
const Schema = `
CREATE TABLE IF NOT EXISTS ai_drafts (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	source     TEXT NOT NULL,
	prompt     TEXT,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_drafts_owner ON ai_drafts (owner_id);
CREATE INDEX IF NOT EXISTS idx_ai_drafts_expires ON ai_drafts (expires_at);
`

// Migrate applies the drafts schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply drafts schema: %w", err)
	}
	return nil
}

// Create writes a new draft row.
func (s *SQLStore) Create(ctx context.Context, p CreateParams) (*domain.Draft, error) {
	now := time.Now().UTC()
	d := &domain.Draft{
		ID:        uuid.New(),
		OwnerID:   p.OwnerID,
		Kind:      p.Kind,
		Payload:   p.Payload,
		Source:    p.Source,
		Prompt:    p.Prompt,
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl()),
	}

	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal draft payload: %w", err)
	}

	query := `
		INSERT INTO ai_drafts (id, owner_id, kind, payload, source, prompt, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var prompt sql.NullString
	if d.Prompt != nil {
		prompt = sql.NullString{String: *d.Prompt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, query,
		d.ID.String(), d.OwnerID.String(), string(d.Kind), string(payload),
		d.Source, prompt, d.CreatedAt, d.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	return d, nil
}

// Get retrieves a draft by id, optionally restricted to an owner.
func (s *SQLStore) Get(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*domain.Draft, error) {
	query := `
		SELECT id, owner_id, kind, payload, source, prompt, created_at, expires_at
		FROM ai_drafts WHERE id = $1
	`
	args := []interface{}{id.String()}
	if owner != nil {
		query += ` AND owner_id = $2`
		args = append(args, owner.String())
	}

	var (
		d          domain.Draft
		idStr      string
		ownerStr   string
		kind       string
		payloadStr string
		prompt     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&idStr, &ownerStr, &kind, &payloadStr, &d.Source, &prompt,
		&d.CreatedAt, &d.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select draft: %w", err)
	}

	if d.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse draft id: %w", err)
	}
	if d.OwnerID, err = uuid.Parse(ownerStr); err != nil {
		return nil, fmt.Errorf("parse draft owner id: %w", err)
	}
	d.Kind = domain.DraftKind(kind)
	if prompt.Valid {
		d.Prompt = &prompt.String
	}
	if err := json.Unmarshal([]byte(payloadStr), &d.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal draft payload: %w", err)
	}
	return &d, nil
}

// Delete removes a draft by id, optionally restricted to an owner. Returns
// whether a row was deleted.
func (s *SQLStore) Delete(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (bool, error) {
	query := `DELETE FROM ai_drafts WHERE id = $1`
	args := []interface{}{id.String()}
	if owner != nil {
		query += ` AND owner_id = $2`
		args = append(args, owner.String())
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete draft rows affected: %w", err)
	}
	return n > 0, nil
}

// SweepExpired deletes drafts past their expiry by predicate, so it stays
// correct when drafts are created concurrently with the sweep.
func (s *SQLStore) SweepExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_drafts WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return int(n), nil
}
