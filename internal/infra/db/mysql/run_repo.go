package mysql

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
  id            VARCHAR(36)  NOT NULL PRIMARY KEY,
  tenant_id     VARCHAR(128) NOT NULL,
  slot          VARCHAR(128) NOT NULL,
  provider      VARCHAR(128) NOT NULL,
  prompt        MEDIUMTEXT   NOT NULL,
  schema_json   JSON         NOT NULL,
  status        VARCHAR(16)  NOT NULL,
  error_kind    VARCHAR(32)  NOT NULL,
  error_message TEXT         NOT NULL,
  result_json   JSON         NOT NULL,
  payload_url   VARCHAR(512) NOT NULL,
  attempts      INT          NOT NULL,
  duration_ms   BIGINT       NOT NULL,
  created_at    DATETIME(6)  NOT NULL,
  INDEX idx_insight_runs_tenant_created (tenant_id, created_at)
);`

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

// Save inserts a run record
func (r *RunRepository) Save(ctx context.Context, run *domain.Run) error {
	const q = `
INSERT INTO insight_runs
  (id, tenant_id, slot, provider, prompt, schema_json, status, error_kind,
   error_message, result_json, payload_url, attempts, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  status=VALUES(status), error_kind=VALUES(error_kind), error_message=VALUES(error_message),
  result_json=VALUES(result_json), payload_url=VALUES(payload_url),
  attempts=VALUES(attempts), duration_ms=VALUES(duration_ms);
`
	_, err := r.db.ExecContext(ctx, q, insertArgs(run)...)
	return err
}

// Get returns one run of the tenant
func (r *RunRepository) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	const q = `
SELECT id, tenant_id, slot, provider, prompt, schema_json, status, error_kind,
       error_message, result_json, payload_url, attempts, duration_ms, created_at
FROM insight_runs
WHERE tenant_id=? AND id=?;
`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), id))
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
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
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

// insertArgs applies safe defaults for the non-nullable columns.
func insertArgs(run *domain.Run) []any {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return []any{
		string(run.ID), stringOrDash(run.TenantID), run.Slot, run.Provider, run.Prompt,
		jsonOrEmpty(run.SchemaJSON), string(run.Status), string(run.ErrorKind),
		run.ErrorMessage, jsonOrEmpty(run.ResultJSON), run.PayloadURL,
		run.Attempts, run.DurationMS, createdAt.UTC(),
	}
}

// result_json column requires valid JSON; use empty object
func jsonOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
