// Package engine implements the drug-safety rule evaluation: name
// normalization of the request, the four rule evaluators, and the alert
// aggregation that produces the ordered, deduplicated alert list. A check is
// a pure computation over an immutable reference snapshot; the engine holds
// no per-call state.
package engine

import (
	"sort"
	"strings"

	"github.com/rxguard/interactions-api/referencedata"
	"github.com/rxguard/interactions-api/referencedata/entities"
)

// Kind classifies an alert. The hard kinds are fixed by the rule datasets;
// the unrecognized_* kinds mark informational coverage-gap alerts.
type Kind string

const (
	KindInteraction            Kind = "interaction"
	KindContraindication       Kind = "contraindication"
	KindAllergy                Kind = "allergy"
	KindCrossAllergy           Kind = "cross_allergy"
	KindDuplicateTherapy       Kind = "duplicate_therapy"
	KindRenal                  Kind = "renal"
	KindPregnancy              Kind = "pregnancy"
	KindGeriatric              Kind = "geriatric"
	KindUnrecognizedDrug       Kind = "unrecognized_drug"
	KindUnrecognizedAllergy    Kind = "unrecognized_allergy"
	KindUnrecognizedCondition  Kind = "unrecognized_condition"
)

// kindPriority is the fixed secondary sort order within a severity band.
var kindPriority = map[Kind]int{
	KindInteraction:           0,
	KindContraindication:      1,
	KindAllergy:               2,
	KindCrossAllergy:          2,
	KindDuplicateTherapy:      3,
	KindRenal:                 4,
	KindPregnancy:             4,
	KindGeriatric:             4,
	KindUnrecognizedDrug:      5,
	KindUnrecognizedAllergy:   5,
	KindUnrecognizedCondition: 5,
}

// Alert is one entry in the ordered result list, carrying enough structured
// detail for the caller to render without further lookups. Alerts are created
// fresh per check and never persisted; only override decisions are.
type Alert struct {
	Kind           Kind                   `json:"kind"`
	Severity       entities.Severity      `json:"severity"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Drugs          []string               `json:"drugs,omitempty"`
	Condition      string                 `json:"condition,omitempty"`
	Mechanism      string                 `json:"mechanism,omitempty"`
	Management     string                 `json:"management,omitempty"`
	Alternatives   []string               `json:"alternatives,omitempty"`
	Evidence       entities.EvidenceLevel `json:"evidence_level,omitempty"`
	CanOverride    bool                   `json:"can_override"`
	RequiresReason bool                   `json:"requires_reason"`
	Informational  bool                   `json:"informational"`
	Key            string                 `json:"key"`
}

// Finding is the raw output of one evaluator before aggregation. The tagged
// Kind lets the aggregator treat all evaluators uniformly.
type Finding struct {
	Kind          Kind
	Severity      entities.Severity
	RuleID        string
	Drugs         []string // literal input names that triggered the match
	Condition     string
	Title         string
	Message       string
	Mechanism     string
	Management    string
	Alternatives  []string
	Evidence      entities.EvidenceLevel
	Absolute      bool
	Informational bool
}

// identity is the dedupe key: same kind plus same drug-pair-or-condition
// collapses to one alert. Drug names are folded and sorted so argument order
// never splits an identity.
func (f Finding) identity() string {
	folded := make([]string, 0, len(f.Drugs))
	for _, d := range f.Drugs {
		folded = append(folded, referencedata.Fold(d))
	}
	sort.Strings(folded)

	parts := []string{string(f.Kind), strings.Join(folded, "+")}
	if f.Condition != "" {
		parts = append(parts, f.Condition)
	}
	return strings.Join(parts, "|")
}
