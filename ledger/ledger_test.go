package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rxguard/interactions-api/engine"
	"github.com/rxguard/interactions-api/referencedata/entities"
)

func blockingAlert(key string) engine.Alert {
	return engine.Alert{
		Kind:           engine.KindInteraction,
		Severity:       entities.SeverityCritical,
		Key:            key,
		CanOverride:    true,
		RequiresReason: true,
	}
}

func TestRecordProceedWithReason(t *testing.T) {
	sink := NewMemorySink()
	tx := NewTransaction("pat-1", "visit-1", "rx-1", sink)

	rec, err := tx.Record(context.Background(), blockingAlert("k1"), DecisionProceeded, "bridge anticoagulation planned")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.ID == uuid.Nil {
		t.Error("record must carry a generated id")
	}
	if rec.PatientID != "pat-1" || rec.PrescriptionID != "rx-1" {
		t.Errorf("record context wrong: %+v", rec)
	}
	if rec.Decision != DecisionProceeded {
		t.Errorf("expected proceeded, got %s", rec.Decision)
	}
	if rec.RecordedAt.IsZero() {
		t.Error("RecordedAt must be set")
	}

	if got := sink.Records(); len(got) != 1 || got[0].ID != rec.ID {
		t.Errorf("sink should hold the persisted record, got %+v", got)
	}
}

func TestRecordMissingReason(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", nil)

	_, err := tx.Record(context.Background(), blockingAlert("k1"), DecisionProceeded, "   ")
	var missing *MissingReasonError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingReasonError, got %v", err)
	}
	if missing.AlertKey != "k1" {
		t.Errorf("error should carry the alert key, got %q", missing.AlertKey)
	}

	if len(tx.Records()) != 0 {
		t.Error("failed record must not be appended")
	}
}

func TestRecordBlockedDecision(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", nil)

	absolute := blockingAlert("k1")
	absolute.CanOverride = false

	_, err := tx.Record(context.Background(), absolute, DecisionProceeded, "documented reason")
	var blocked *BlockedDecisionError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedDecisionError, got %v", err)
	}

	// Cancelling against an absolute rule is always allowed
	if _, err := tx.Record(context.Background(), absolute, DecisionCancelled, "switching to alternative"); err != nil {
		t.Errorf("cancel must succeed against an absolute rule: %v", err)
	}
}

func TestRecordInvalidDecision(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", nil)

	if _, err := tx.Record(context.Background(), blockingAlert("k1"), Decision("maybe"), "reason"); err == nil {
		t.Error("expected error for invalid decision token")
	}
}

func TestRecordNoReasonRequired(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", nil)

	a := engine.Alert{Kind: engine.KindInteraction, Severity: entities.SeverityModerate, Key: "k2", CanOverride: true}
	if _, err := tx.Record(context.Background(), a, DecisionProceeded, ""); err != nil {
		t.Errorf("moderate alert should not demand a reason: %v", err)
	}
}

type failingSink struct{}

func (failingSink) Persist(context.Context, OverrideRecord) error {
	return errors.New("db unavailable")
}

func TestRecordSinkFailureDoesNotAppend(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", failingSink{})

	_, err := tx.Record(context.Background(), blockingAlert("k1"), DecisionProceeded, "reason")
	if err == nil {
		t.Fatal("expected error from failing sink")
	}
	if len(tx.Records()) != 0 {
		t.Error("record must not be appended when persistence fails")
	}
}

func TestBlockingCleared(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", nil)

	blocking := blockingAlert("k1")
	info := engine.Alert{Kind: engine.KindUnrecognizedDrug, Key: "k2", Informational: true, CanOverride: true}
	moderate := engine.Alert{Kind: engine.KindInteraction, Severity: entities.SeverityModerate, Key: "k3", CanOverride: true}
	alerts := []engine.Alert{blocking, info, moderate}

	if tx.BlockingCleared(alerts) {
		t.Error("blocking alert without a record must block the save")
	}

	if _, err := tx.Record(context.Background(), blocking, DecisionProceeded, "benefit outweighs risk, monitoring planned"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !tx.BlockingCleared(alerts) {
		t.Error("proceeded record should clear the blocking alert")
	}

	// An absolute alert can never clear
	absolute := blockingAlert("k4")
	absolute.CanOverride = false
	if tx.BlockingCleared(append(alerts, absolute)) {
		t.Error("absolute alert must keep the save blocked")
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	tx := NewTransaction("pat-1", "", "rx-1", nil)

	if _, err := tx.Record(context.Background(), blockingAlert("k1"), DecisionCancelled, "chose alternative"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := tx.Records()
	records[0].Reason = "tampered"

	if tx.Records()[0].Reason == "tampered" {
		t.Error("Records must return a copy, not the backing slice")
	}
}
