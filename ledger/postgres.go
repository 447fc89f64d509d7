package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresSink implements AuditSink
var _ AuditSink = (*PostgresSink)(nil)

const insertOverrideSQL = `
INSERT INTO override_record
	(id, patient_id, visit_id, prescription_id, alert_key, kind, drugs, condition, decision, reason, recorded_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// PostgresSink persists override records to the clinical audit database.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to the audit database and verifies the connection.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach audit db: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Persist appends one record. Records are never updated or deleted here; the
// table is append-only by contract.
func (s *PostgresSink) Persist(ctx context.Context, rec OverrideRecord) error {
	_, err := s.pool.Exec(ctx, insertOverrideSQL,
		rec.ID,
		rec.PatientID,
		rec.VisitID,
		rec.PrescriptionID,
		rec.AlertKey,
		string(rec.Kind),
		rec.Drugs,
		rec.Condition,
		string(rec.Decision),
		rec.Reason,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert override record %s: %w", rec.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
