package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
)

const createRuns = `
CREATE TABLE IF NOT EXISTS insight_runs (
  id            TEXT        PRIMARY KEY,
  tenant_id     TEXT        NOT NULL,
  slot          TEXT        NOT NULL,
  provider      TEXT        NOT NULL,
  prompt        TEXT        NOT NULL,
  schema_json   JSONB       NOT NULL,
  status        TEXT        NOT NULL,
  error_kind    TEXT        NOT NULL,
  error_message TEXT        NOT NULL,
  result_json   JSONB       NOT NULL,
  payload_url   TEXT        NOT NULL,
  attempts      INTEGER     NOT NULL,
  duration_ms   BIGINT      NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_insight_runs_tenant_created ON insight_runs (tenant_id, created_at DESC);`

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the insight_runs table when missing.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRuns); err != nil {
		return fmt.Errorf("create insight_runs: %w", err)
	}
	return nil
}

// Save inserts or updates a run record
func (r *RunRepository) Save(ctx context.Context, run *domain.Run) error {
	const q = `
INSERT INTO insight_runs
  (id, tenant_id, slot, provider, prompt, schema_json, status, error_kind,
   error_message, result_json, payload_url, attempts, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  error_kind=EXCLUDED.error_kind,
  error_message=EXCLUDED.error_message,
  result_json=EXCLUDED.result_json,
  payload_url=EXCLUDED.payload_url,
  attempts=EXCLUDED.attempts,
  duration_ms=EXCLUDED.duration_ms;
`
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		string(run.ID), stringOrDash(run.TenantID), run.Slot, run.Provider, run.Prompt,
		jsonOrEmpty(run.SchemaJSON), string(run.Status), string(run.ErrorKind),
		run.ErrorMessage, jsonOrEmpty(run.ResultJSON), run.PayloadURL,
		run.Attempts, run.DurationMS, createdAt)
	return err
}

// Get returns one run of the tenant
func (r *RunRepository) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	const q = `
SELECT id, tenant_id, slot, provider, prompt, schema_json, status, error_kind,
       error_message, result_json, payload_url, attempts, duration_ms, created_at
FROM insight_runs
WHERE tenant_id=$1 AND id=$2;
`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	return run, err
}

// Paginate returns a page of runs ordered by created_at desc
func (r *RunRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Run, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, slot, provider, prompt, schema_json, status, error_kind,
       error_message, result_json, payload_url, attempts, duration_ms, created_at
FROM insight_runs
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.Run, error) {
	var run domain.Run
	var status, kind string
	if err := s.Scan(&run.ID, &run.TenantID, &run.Slot, &run.Provider, &run.Prompt,
		&run.SchemaJSON, &status, &kind, &run.ErrorMessage, &run.ResultJSON,
		&run.PayloadURL, &run.Attempts, &run.DurationMS, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.ErrorKind = domain.Kind(kind)
	return &run, nil
}

func jsonOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
