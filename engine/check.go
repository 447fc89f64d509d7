package engine

import (
	"fmt"
	"time"

	"github.com/rxguard/interactions-api/interfaces"
	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/referencedata"
)

// CheckRequest is one prescription-check call: the drugs being prescribed,
// the patient's current list, and the clinical context the evaluators need.
type CheckRequest struct {
	NewDrugs     []string `json:"new_drugs"`
	CurrentDrugs []string `json:"current_drugs,omitempty"`
	Conditions   []string `json:"conditions,omitempty"`
	Allergies    []string `json:"allergies,omitempty"`
	Age          int      `json:"age,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	EGFR         *float64 `json:"egfr,omitempty"`
	Pregnant     bool     `json:"pregnant,omitempty"`
}

// CheckResult is the ordered alert list plus the snapshot provenance needed
// for audit reconstruction.
type CheckResult struct {
	Alerts       []Alert   `json:"alerts"`
	CheckedAt    time.Time `json:"checked_at"`
	DataLoadedAt time.Time `json:"data_loaded_at"`
}

// Checker runs prescription checks against the shared reference snapshot.
// It is stateless per call and safe for concurrent use.
type Checker struct {
	store interfaces.DataStore
}

// NewChecker creates a checker reading from the given data store.
func NewChecker(store interfaces.DataStore) *Checker {
	return &Checker{store: store}
}

// Check normalizes the request's drug strings, runs the four evaluators
// against one consistent snapshot, and aggregates their findings into the
// ordered alert list. No evaluation failure aborts the check: unresolvable
// items surface as informational coverage-gap alerts instead.
func (c *Checker) Check(req CheckRequest) CheckResult {
	ref := c.store.GetReference()

	newDrugs := normalizeList(ref, req.NewDrugs)
	currentDrugs := normalizeList(ref, req.CurrentDrugs)
	allergens := normalizeList(ref, req.Allergies)

	conditions := make(map[string]bool, len(req.Conditions))
	for _, cond := range req.Conditions {
		if cond != "" {
			conditions[cond] = true
		}
	}

	var findings []Finding
	findings = append(findings, unrecognizedDrugFindings(newDrugs, currentDrugs)...)
	findings = append(findings, evaluateInteractions(ref, newDrugs, currentDrugs)...)
	findings = append(findings, evaluateContraindications(ref, newDrugs, req, conditions)...)
	findings = append(findings, evaluateAllergies(ref, newDrugs, allergens)...)
	findings = append(findings, evaluateDuplicateTherapy(ref, newDrugs, currentDrugs)...)

	alerts := Aggregate(findings)

	logCheck(req, alerts)

	return CheckResult{
		Alerts:       alerts,
		CheckedAt:    time.Now().UTC(),
		DataLoadedAt: ref.LoadedAt(),
	}
}

func normalizeList(ref *referencedata.Store, raw []string) []referencedata.NormalizedDrug {
	out := make([]referencedata.NormalizedDrug, 0, len(raw))
	for _, name := range raw {
		out = append(out, ref.Normalize(name))
	}
	return out
}

// unrecognizedDrugFindings makes safety coverage gaps visible: a drug the
// normalizer cannot resolve yields an informational alert instead of being
// silently dropped from evaluation.
func unrecognizedDrugFindings(newDrugs, currentDrugs []referencedata.NormalizedDrug) []Finding {
	var findings []Finding
	emit := func(d referencedata.NormalizedDrug) {
		if d.Recognized {
			return
		}
		findings = append(findings, Finding{
			Kind:          KindUnrecognizedDrug,
			Drugs:         []string{d.Input},
			Title:         fmt.Sprintf("Unrecognized drug %q", d.Input),
			Message:       "No interaction, contraindication or allergy data is available for this drug; it was not checked.",
			Informational: true,
		})
	}
	for _, d := range newDrugs {
		emit(d)
	}
	for _, d := range currentDrugs {
		emit(d)
	}
	return findings
}

// logCheck records what fired with enough context to reconstruct the decision
// later. Drug names and rule identities only; patient identity stays with the
// caller.
func logCheck(req CheckRequest, alerts []Alert) {
	hard := 0
	keys := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if !a.Informational {
			hard++
		}
		keys = append(keys, a.Key)
	}
	logging.Info("Prescription check completed",
		"new_drugs", req.NewDrugs,
		"current_drugs", req.CurrentDrugs,
		"hard_alerts", hard,
		"total_alerts", len(alerts),
		"alert_keys", keys,
	)
}
