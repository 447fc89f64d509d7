// Package handlers provides HTTP request handlers for the interactions API
// endpoints: prescription checks, override recording, drug and class lookup,
// and health checks, with input validation and error handling.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rxguard/interactions-api/engine"
	"github.com/rxguard/interactions-api/health"
	"github.com/rxguard/interactions-api/interfaces"
	"github.com/rxguard/interactions-api/ledger"
	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/metrics"
)

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	RespondWithJSON(w, code, errorResponse)
}

// validateCheckRequest rejects input that can never be part of a valid check.
// Unrecognized but well-formed drug names pass through; the engine surfaces
// those as informational alerts rather than request errors.
func validateCheckRequest(req *engine.CheckRequest, validator interfaces.Validator) error {
	if len(req.NewDrugs) == 0 {
		return fmt.Errorf("new_drugs cannot be empty")
	}
	if len(req.NewDrugs)+len(req.CurrentDrugs) > 100 {
		return fmt.Errorf("too many drugs in one check: maximum 100")
	}

	for _, name := range req.NewDrugs {
		if err := validator.ValidateDrugName(name); err != nil {
			return fmt.Errorf("invalid drug name %q: %w", name, err)
		}
	}
	for _, name := range req.CurrentDrugs {
		if err := validator.ValidateDrugName(name); err != nil {
			return fmt.Errorf("invalid drug name %q: %w", name, err)
		}
	}
	for _, name := range req.Allergies {
		if err := validator.ValidateDrugName(name); err != nil {
			return fmt.Errorf("invalid allergy %q: %w", name, err)
		}
	}
	for _, cond := range req.Conditions {
		if err := validator.ValidateConditionID(cond); err != nil {
			return fmt.Errorf("invalid condition %q: %w", cond, err)
		}
	}

	if req.Age < 0 || req.Age > 150 {
		return fmt.Errorf("age out of range: %d", req.Age)
	}
	if req.EGFR != nil && (*req.EGFR < 0 || *req.EGFR > 300) {
		return fmt.Errorf("egfr out of range: %v", *req.EGFR)
	}

	return nil
}

// CheckPrescription runs the safety evaluators against the proposed
// prescription and returns the ordered alert list.
func CheckPrescription(dataStore interfaces.DataStore, validator interfaces.Validator) http.HandlerFunc {
	checker := engine.NewChecker(dataStore)

	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.CheckRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		if err := validateCheckRequest(&req, validator); err != nil {
			logging.Warn("Rejected check request", "error", err)
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		result := checker.Check(req)

		metrics.ChecksTotal.Inc()
		for _, a := range result.Alerts {
			metrics.AlertsTotal.WithLabelValues(string(a.Kind), a.Severity.String()).Inc()
		}

		RespondWithJSON(w, http.StatusOK, result)
	}
}

// overrideRequest is the payload for recording one clinician decision.
type overrideRequest struct {
	PatientID      string       `json:"patient_id"`
	VisitID        string       `json:"visit_id,omitempty"`
	PrescriptionID string       `json:"prescription_id"`
	Alert          engine.Alert `json:"alert"`
	Decision       string       `json:"decision"`
	Reason         string       `json:"reason,omitempty"`
}

// RecordOverride appends one override decision to the audit ledger. Policy
// violations map to distinct status codes so the prescribing client can
// re-present the right dialog: 422 when the mandatory reason is missing,
// 403 when the alert cannot be overridden at all.
func RecordOverride(sink ledger.AuditSink, validator interfaces.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req overrideRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}

		if req.PatientID == "" || req.PrescriptionID == "" {
			RespondWithError(w, http.StatusBadRequest, "patient_id and prescription_id are required")
			return
		}
		if req.Alert.Key == "" {
			RespondWithError(w, http.StatusBadRequest, "alert is required")
			return
		}
		if err := validator.ValidateReason(req.Reason); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		tx := ledger.NewTransaction(req.PatientID, req.VisitID, req.PrescriptionID, sink)
		rec, err := tx.Record(r.Context(), req.Alert, ledger.Decision(req.Decision), req.Reason)
		if err != nil {
			var missingReason *ledger.MissingReasonError
			var blocked *ledger.BlockedDecisionError
			switch {
			case errors.As(err, &missingReason):
				RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
			case errors.As(err, &blocked):
				RespondWithError(w, http.StatusForbidden, err.Error())
			default:
				logging.Error("Failed to record override", "error", err, "alert_key", req.Alert.Key)
				RespondWithError(w, http.StatusInternalServerError, "Failed to record override")
			}
			return
		}

		metrics.OverridesTotal.WithLabelValues(req.Decision).Inc()

		RespondWithJSON(w, http.StatusCreated, rec)
	}
}

// drugResponse is the lookup view of one reference drug.
type drugResponse struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Classes []string `json:"classes,omitempty"`
}

// FindDrug resolves a drug name or alias to its canonical reference entry.
func FindDrug(dataStore interfaces.DataStore, validator interfaces.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			RespondWithError(w, http.StatusBadRequest, "Missing drug name")
			return
		}

		if err := validator.ValidateDrugName(name); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		ref := dataStore.GetReference()
		normalized := ref.Normalize(name)
		if !normalized.Recognized {
			RespondWithError(w, http.StatusNotFound, "Drug not found")
			return
		}

		drug, ok := ref.Drug(normalized.CanonicalID)
		if !ok {
			RespondWithError(w, http.StatusNotFound, "Drug not found")
			return
		}

		RespondWithJSON(w, http.StatusOK, drugResponse{
			ID:      drug.ID,
			Name:    drug.Name,
			Aliases: drug.Aliases,
			Classes: drug.Classes,
		})
	}
}

// FindClass returns a drug class and its member drugs.
func FindClass(dataStore interfaces.DataStore, validator interfaces.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		if tag == "" {
			RespondWithError(w, http.StatusBadRequest, "Missing class tag")
			return
		}

		if err := validator.ValidateConditionID(tag); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		ref := dataStore.GetReference()
		class, ok := ref.Class(tag)
		if !ok {
			RespondWithError(w, http.StatusNotFound, "Class not found")
			return
		}

		members := ref.ClassMembers(tag)
		memberViews := make([]drugResponse, 0, len(members))
		for _, m := range members {
			memberViews = append(memberViews, drugResponse{
				ID:      m.ID,
				Name:    m.Name,
				Aliases: m.Aliases,
				Classes: m.Classes,
			})
		}

		RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"tag":            class.Tag,
			"name":           class.Name,
			"duplicate_risk": class.DuplicateRisk,
			"members":        memberViews,
		})
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string                 `json:"status"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Data          map[string]interface{} `json:"data"`
	System        map[string]interface{} `json:"system"`
}

// HealthCheck returns server health information
func HealthCheck(dataStore interfaces.DataStore, checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		uptime := time.Since(dataStore.GetServerStartTime())

		status, data, httpStatus := checker.HealthCheck()
		data["api_version"] = "1.0"

		response := HealthResponse{
			Status:        status,
			UptimeSeconds: uptime.Seconds(),
			Data:          data,
			System: map[string]interface{}{
				"goroutines": runtime.NumGoroutine(),
				"memory": map[string]interface{}{
					"alloc_mb":       int(m.Alloc / 1024 / 1024),
					"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
					"sys_mb":         int(m.Sys / 1024 / 1024),
					"num_gc":         m.NumGC,
				},
			},
		}

		RespondWithJSON(w, httpStatus, response)
	}
}
