package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/rxguard/interactions-api/data"
	"github.com/rxguard/interactions-api/engine"
	"github.com/rxguard/interactions-api/health"
	"github.com/rxguard/interactions-api/ledger"
	"github.com/rxguard/interactions-api/referencedata"
	"github.com/rxguard/interactions-api/referencedata/entities"
	"github.com/rxguard/interactions-api/validation"
)

func testRouter(t *testing.T) (*chi.Mux, *ledger.MemorySink) {
	t.Helper()

	store, err := referencedata.NewLoader().Load("../referencedata/testdata")
	if err != nil {
		t.Fatalf("failed to load test reference data: %v", err)
	}
	dc := data.NewDataContainer()
	dc.UpdateReference(store)

	validator := validation.NewValidator()
	sink := ledger.NewMemorySink()

	r := chi.NewRouter()
	r.Post("/check", CheckPrescription(dc, validator))
	r.Post("/overrides", RecordOverride(sink, validator))
	r.Get("/drugs/{name}", FindDrug(dc, validator))
	r.Get("/classes/{tag}", FindClass(dc, validator))
	r.Get("/health", HealthCheck(dc, health.NewChecker(dc, []string{"06:00"})))
	return r, sink
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	w := postJSON(t, router, "/check", map[string]any{
		"new_drugs": []string{"warfarin", "ibuprofen"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result engine.CheckResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(result.Alerts))
	}
	if result.Alerts[0].Kind != engine.KindInteraction {
		t.Errorf("expected interaction alert, got %s", result.Alerts[0].Kind)
	}
}

func TestCheckEndpointRejectsBadInput(t *testing.T) {
	router, _ := testRouter(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"empty new drugs", map[string]any{"new_drugs": []string{}}},
		{"dangerous drug name", map[string]any{"new_drugs": []string{"<script>alert(1)</script>"}}},
		{"bad condition", map[string]any{"new_drugs": []string{"warfarin"}, "conditions": []string{"CKD Stage 4"}}},
		{"unknown field", map[string]any{"new_drugs": []string{"warfarin"}, "bogus": true}},
		{"negative age", map[string]any{"new_drugs": []string{"warfarin"}, "age": -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/check", tt.payload)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestCheckEndpointUnrecognizedDrugIsNotAnError(t *testing.T) {
	router, _ := testRouter(t)

	w := postJSON(t, router, "/check", map[string]any{
		"new_drugs": []string{"unknownbrandxyz"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("unrecognized drug must not fail the request, got %d", w.Code)
	}

	var result engine.CheckResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Kind != engine.KindUnrecognizedDrug {
		t.Errorf("expected one unrecognized_drug alert, got %+v", result.Alerts)
	}
}

func overridePayload(alert engine.Alert, decision, reason string) map[string]any {
	return map[string]any{
		"patient_id":      "pat-1",
		"prescription_id": "rx-1",
		"alert":           alert,
		"decision":        decision,
		"reason":          reason,
	}
}

func TestOverrideEndpoint(t *testing.T) {
	router, sink := testRouter(t)

	alert := engine.Alert{
		Kind:           engine.KindInteraction,
		Severity:       entities.SeverityMajor,
		Key:            "interaction|ibuprofen+warfarin",
		CanOverride:    true,
		RequiresReason: true,
	}

	w := postJSON(t, router, "/overrides", overridePayload(alert, "proceeded", "bridge anticoagulation planned"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rec ledger.OverrideRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if rec.AlertKey != alert.Key {
		t.Errorf("expected alert key %q, got %q", alert.Key, rec.AlertKey)
	}

	if persisted := sink.Records(); len(persisted) != 1 {
		t.Errorf("expected 1 persisted record, got %d", len(persisted))
	}
}

func TestOverrideEndpointMissingReason(t *testing.T) {
	router, sink := testRouter(t)

	alert := engine.Alert{
		Kind:           engine.KindContraindication,
		Severity:       entities.SeverityMajor,
		Key:            "contraindication|metformin|ckd_stage4",
		CanOverride:    true,
		RequiresReason: true,
	}

	w := postJSON(t, router, "/overrides", overridePayload(alert, "proceeded", ""))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if len(sink.Records()) != 0 {
		t.Error("rejected override must not be persisted")
	}
}

func TestOverrideEndpointBlockedDecision(t *testing.T) {
	router, _ := testRouter(t)

	alert := engine.Alert{
		Kind:           engine.KindPregnancy,
		Severity:       entities.SeverityCritical,
		Key:            "pregnancy|isotretinoin",
		CanOverride:    false,
		RequiresReason: true,
	}

	w := postJSON(t, router, "/overrides", overridePayload(alert, "proceeded", "documented reason"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOverrideEndpointRequiresIdentity(t *testing.T) {
	router, _ := testRouter(t)

	w := postJSON(t, router, "/overrides", map[string]any{
		"alert":    engine.Alert{Key: "k", CanOverride: true},
		"decision": "cancelled",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without patient and prescription ids, got %d", w.Code)
	}
}

func TestFindDrugEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/drugs/Glucophage", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var drug drugResponse
	if err := json.Unmarshal(w.Body.Bytes(), &drug); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if drug.ID != "metformin" {
		t.Errorf("expected canonical metformin, got %q", drug.ID)
	}
}

func TestFindDrugEndpointNotFound(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/drugs/unknownbrandxyz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestFindClassEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/classes/nsaids", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Tag           string         `json:"tag"`
		DuplicateRisk bool           `json:"duplicate_risk"`
		Members       []drugResponse `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Tag != "nsaids" || !payload.DuplicateRisk {
		t.Errorf("unexpected class payload: %+v", payload)
	}
	if len(payload.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(payload.Members))
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Status != "healthy" {
		t.Errorf("expected healthy, got %s", payload.Status)
	}
}
