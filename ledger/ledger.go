// Package ledger records clinician override decisions for blocking alerts.
// Records are append-only and immutable after creation; the save workflow
// must not persist a prescription until every blocking alert carries a
// proceeded record. Each prescription transaction owns its own Transaction
// value, so concurrent checks for different patients never share state.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxguard/interactions-api/engine"
	"github.com/rxguard/interactions-api/logging"
)

// Decision is the clinician's recorded choice for one alert.
type Decision string

const (
	DecisionProceeded Decision = "proceeded"
	DecisionCancelled Decision = "cancelled"
)

// MissingReasonError reports an override attempt without the mandatory
// documented reason. The caller re-presents the dialog.
type MissingReasonError struct {
	AlertKey string
}

func (e *MissingReasonError) Error() string {
	return fmt.Sprintf("alert %s requires a documented reason", e.AlertKey)
}

// BlockedDecisionError reports a proceed attempt on an alert whose rule is
// marked absolute and cannot be overridden.
type BlockedDecisionError struct {
	AlertKey string
}

func (e *BlockedDecisionError) Error() string {
	return fmt.Sprintf("alert %s cannot be overridden", e.AlertKey)
}

// OverrideRecord is one immutable audit entry. It carries the alert identity,
// not the alert itself; alerts are recomputed per check and never persisted.
type OverrideRecord struct {
	ID             uuid.UUID   `json:"id"`
	PatientID      string      `json:"patient_id"`
	VisitID        string      `json:"visit_id,omitempty"`
	PrescriptionID string      `json:"prescription_id"`
	AlertKey       string      `json:"alert_key"`
	Kind           engine.Kind `json:"kind"`
	Drugs          []string    `json:"drugs,omitempty"`
	Condition      string      `json:"condition,omitempty"`
	Decision       Decision    `json:"decision"`
	Reason         string      `json:"reason,omitempty"`
	RecordedAt     time.Time   `json:"recorded_at"`
}

// AuditSink hands completed records to the external persistence collaborator.
type AuditSink interface {
	Persist(ctx context.Context, rec OverrideRecord) error
}

// Transaction is the override context for one prescription-check-and-save
// cycle. Appends are serialized within the transaction; different patients'
// transactions never contend.
type Transaction struct {
	patientID      string
	visitID        string
	prescriptionID string
	sink           AuditSink

	mu      sync.Mutex
	records []OverrideRecord
}

// NewTransaction creates the override context for one prescription. A nil
// sink keeps records in memory only.
func NewTransaction(patientID, visitID, prescriptionID string, sink AuditSink) *Transaction {
	return &Transaction{
		patientID:      patientID,
		visitID:        visitID,
		prescriptionID: prescriptionID,
		sink:           sink,
	}
}

// Record validates the decision against the alert's override policy and
// appends an immutable record. It fails with *MissingReasonError when the
// alert demands a documented reason and none was given, and with
// *BlockedDecisionError when the alert cannot be overridden at all.
func (t *Transaction) Record(ctx context.Context, alert engine.Alert, decision Decision, reason string) (OverrideRecord, error) {
	if decision != DecisionProceeded && decision != DecisionCancelled {
		return OverrideRecord{}, fmt.Errorf("invalid decision: %q", decision)
	}
	if !alert.CanOverride && decision == DecisionProceeded {
		return OverrideRecord{}, &BlockedDecisionError{AlertKey: alert.Key}
	}
	if alert.RequiresReason && strings.TrimSpace(reason) == "" {
		return OverrideRecord{}, &MissingReasonError{AlertKey: alert.Key}
	}

	rec := OverrideRecord{
		ID:             uuid.New(),
		PatientID:      t.patientID,
		VisitID:        t.visitID,
		PrescriptionID: t.prescriptionID,
		AlertKey:       alert.Key,
		Kind:           alert.Kind,
		Drugs:          alert.Drugs,
		Condition:      alert.Condition,
		Decision:       decision,
		Reason:         strings.TrimSpace(reason),
		RecordedAt:     time.Now().UTC(),
	}

	if t.sink != nil {
		if err := t.sink.Persist(ctx, rec); err != nil {
			return OverrideRecord{}, fmt.Errorf("failed to persist override record: %w", err)
		}
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()

	logging.Info("Override recorded",
		"record_id", rec.ID,
		"alert_key", rec.AlertKey,
		"decision", rec.Decision,
		"has_reason", rec.Reason != "",
	)

	return rec, nil
}

// Records returns a copy of the appended records in order.
func (t *Transaction) Records() []OverrideRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]OverrideRecord, len(t.records))
	copy(out, t.records)
	return out
}

// BlockingCleared reports whether every blocking alert in the list has a
// proceeded record in this transaction. The save workflow gates on this.
func (t *Transaction) BlockingCleared(alerts []engine.Alert) bool {
	t.mu.Lock()
	proceeded := make(map[string]bool, len(t.records))
	for _, rec := range t.records {
		if rec.Decision == DecisionProceeded {
			proceeded[rec.AlertKey] = true
		}
	}
	t.mu.Unlock()

	for _, a := range alerts {
		if a.Informational || !a.RequiresReason {
			continue
		}
		if !a.CanOverride || !proceeded[a.Key] {
			return false
		}
	}
	return true
}

// MemorySink keeps persisted records in memory. It is the default sink when
// no audit database is configured, and what tests inspect.
type MemorySink struct {
	mu      sync.Mutex
	records []OverrideRecord
}

// NewMemorySink creates an in-memory audit sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Persist appends the record.
func (s *MemorySink) Persist(_ context.Context, rec OverrideRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything persisted so far.
func (s *MemorySink) Records() []OverrideRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OverrideRecord, len(s.records))
	copy(out, s.records)
	return out
}
