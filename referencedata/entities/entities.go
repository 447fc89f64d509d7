// Package entities defines the reference data records the rule engine
// evaluates against: canonical drugs, therapeutic classes, interaction pairs,
// contraindication rules and cross-allergy groups. All entities are plain
// values and immutable once loaded.
package entities

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity ranks clinical alerts. Higher values sort first and drive the
// override policy. The zero value marks informational findings that carry no
// clinical severity.
type Severity int

const (
	SeverityMinor Severity = iota + 1
	SeverityModerate
	SeverityMajor
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityMinor:    "minor",
	SeverityModerate: "moderate",
	SeverityMajor:    "major",
	SeverityCritical: "critical",
}

// ParseSeverity converts a severity token from a reference data file.
func ParseSeverity(token string) (Severity, error) {
	for sev, name := range severityNames {
		if name == strings.ToLower(strings.TrimSpace(token)) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("invalid severity token: %q", token)
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "info"
}

// UnmarshalJSON accepts the textual severity tokens used by the rule files,
// plus "info" for the informational band alerts round-trip through.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	if strings.ToLower(strings.TrimSpace(token)) == "info" {
		*s = 0
		return nil
	}
	sev, err := ParseSeverity(token)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// EvidenceLevel ranks the strength of the literature behind a rule,
// A (strongest) through D. Zero means the rule carries no evidence grade.
type EvidenceLevel int

const (
	EvidenceD EvidenceLevel = iota + 1
	EvidenceC
	EvidenceB
	EvidenceA
)

var evidenceNames = map[EvidenceLevel]string{
	EvidenceA: "A",
	EvidenceB: "B",
	EvidenceC: "C",
	EvidenceD: "D",
}

// ParseEvidenceLevel converts an evidence token. An empty token is allowed
// and yields the zero level.
func ParseEvidenceLevel(token string) (EvidenceLevel, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return 0, nil
	}
	for lvl, name := range evidenceNames {
		if name == token {
			return lvl, nil
		}
	}
	return 0, fmt.Errorf("invalid evidence level token: %q", token)
}

func (e EvidenceLevel) String() string {
	if name, ok := evidenceNames[e]; ok {
		return name
	}
	return ""
}

func (e *EvidenceLevel) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	lvl, err := ParseEvidenceLevel(token)
	if err != nil {
		return err
	}
	*e = lvl
	return nil
}

func (e EvidenceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// DrugReference is one canonical drug with its aliases and class memberships.
type DrugReference struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Classes []string `json:"classes,omitempty"`
}

// DrugClass is a therapeutic or chemical category used for class-level rule
// matching. Classes flagged with DuplicateRisk trigger duplicate-therapy
// findings when two or more prescribed drugs share the tag.
type DrugClass struct {
	Tag           string `json:"tag"`
	Name          string `json:"name"`
	DuplicateRisk bool   `json:"duplicate_risk,omitempty"`
}

// InteractionRule flags an unordered pair of drug-or-class identifiers. The
// store indexes both orders, so a rule for (A,B) always matches (B,A).
type InteractionRule struct {
	ID         string        `json:"id"`
	A          string        `json:"a"`
	B          string        `json:"b"`
	Severity   Severity      `json:"severity"`
	Mechanism  string        `json:"mechanism,omitempty"`
	Effect     string        `json:"clinical_effect"`
	Management string        `json:"management,omitempty"`
	Evidence   EvidenceLevel `json:"evidence_level,omitempty"`
	Absolute   bool          `json:"absolute,omitempty"`
}

// Contraindication qualifiers. A qualified rule fires on a demographic or lab
// threshold instead of (or in addition to) a declared condition.
const (
	QualifierRenal     = "renal"
	QualifierPregnancy = "pregnancy"
	QualifierGeriatric = "geriatric"
)

// ContraindicationRule flags a drug-or-class identifier against a patient
// condition. Qualified rules additionally carry the threshold that must be
// crossed before they fire: MaxEGFR for renal, MinAge for geriatric.
type ContraindicationRule struct {
	ID           string        `json:"id"`
	Drug         string        `json:"drug"`
	Condition    string        `json:"condition,omitempty"`
	Severity     Severity      `json:"severity"`
	Reason       string        `json:"reason"`
	Alternatives []string      `json:"alternatives,omitempty"`
	Qualifier    string        `json:"qualifier,omitempty"`
	MaxEGFR      float64       `json:"max_egfr,omitempty"`
	MinAge       int           `json:"min_age,omitempty"`
	Evidence     EvidenceLevel `json:"evidence_level,omitempty"`
	Absolute     bool          `json:"absolute,omitempty"`
}

// CrossAllergyGroup names a set of substances presumed to cross-react.
// Members are drug-or-class identifiers; membership resolution is one-hop
// transitive through class tags.
type CrossAllergyGroup struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Members    []string `json:"members"`
	Severity   Severity `json:"severity"`
	Management string   `json:"management,omitempty"`
}
