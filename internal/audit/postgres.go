// internal/audit/postgres.go
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var ErrAuditWriteFailed = errors.New("AUDIT_WRITE_FAILED")

// SchemaSQL creates the audit table. Only turn metadata is stored.
const SchemaSQL = `CREATE TABLE IF NOT EXISTS conversation_turns (
	correlation_id TEXT PRIMARY KEY,
	customer_id    TEXT NOT NULL,
	session_id     TEXT,
	exit_path      TEXT NOT NULL,
	language_code  TEXT,
	domains        TEXT[],
	intent_count   INTEGER NOT NULL DEFAULT 0,
	from_date      DATE,
	to_date        DATE,
	error_code     TEXT,
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
)`

const insertTurnSQL = `INSERT INTO conversation_turns
	(correlation_id, customer_id, session_id, exit_path, language_code, domains,
	 intent_count, from_date, to_date, error_code, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (correlation_id) DO NOTHING`

// PostgresRecorder writes one row per turn.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// EnsureSchema creates the audit table when missing.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("%w: postgres: create table: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, rec TurnRecord) error {
	_, err := r.db.ExecContext(ctx, insertTurnSQL,
		rec.CorrelationID,
		rec.CustomerID,
		nullString(rec.SessionID),
		rec.Exit,
		nullString(rec.LanguageCode),
		pq.Array(rec.Domains),
		rec.IntentCount,
		nullString(rec.FromDate),
		nullString(rec.ToDate),
		nullString(rec.ErrorCode),
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: postgres: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
