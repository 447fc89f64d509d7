package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rxguard/interactions-api/referencedata"
	"github.com/rxguard/interactions-api/referencedata/entities"
)

// evaluateInteractions runs the pairwise interaction matcher over every
// (new, new) and (new, current) pair. Current-current pairs were accepted
// when those prescriptions were saved and are not re-flagged. Each matching
// rule yields one finding tagged with the literal pair that triggered it,
// even when the match went through a class tag.
func evaluateInteractions(ref *referencedata.Store, newDrugs, currentDrugs []referencedata.NormalizedDrug) []Finding {
	var findings []Finding

	check := func(a, b referencedata.NormalizedDrug) {
		if !a.Recognized || !b.Recognized {
			return
		}
		if a.CanonicalID != "" && a.CanonicalID == b.CanonicalID {
			return
		}
		for _, rule := range ref.LookupInteractions(a, b) {
			findings = append(findings, Finding{
				Kind:       KindInteraction,
				Severity:   rule.Severity,
				RuleID:     rule.ID,
				Drugs:      []string{a.Input, b.Input},
				Title:      fmt.Sprintf("Interaction: %s + %s", displayName(a), displayName(b)),
				Message:    rule.Effect,
				Mechanism:  rule.Mechanism,
				Management: rule.Management,
				Evidence:   rule.Evidence,
				Absolute:   rule.Absolute,
			})
		}
	}

	for i := range newDrugs {
		for j := i + 1; j < len(newDrugs); j++ {
			check(newDrugs[i], newDrugs[j])
		}
		for j := range currentDrugs {
			check(newDrugs[i], currentDrugs[j])
		}
	}

	return findings
}

// evaluateContraindications matches each new drug against the patient's
// condition set. Renal, pregnancy and geriatric rules are qualifier filters
// on the same dataset: they fire only when the demographic or lab threshold
// is crossed, and their findings carry the corresponding kind.
func evaluateContraindications(ref *referencedata.Store, newDrugs []referencedata.NormalizedDrug, req CheckRequest, conditions map[string]bool) []Finding {
	var findings []Finding

	for _, cond := range sortedKeys(conditions) {
		if !ref.KnownCondition(cond) {
			findings = append(findings, Finding{
				Kind:          KindUnrecognizedCondition,
				Condition:     cond,
				Title:         fmt.Sprintf("No contraindication data for condition %q", cond),
				Message:       "The condition identifier is not referenced by any contraindication rule; coverage for it is unavailable.",
				Informational: true,
			})
		}
	}

	for _, d := range newDrugs {
		if !d.Recognized {
			continue
		}
		for _, rule := range ref.LookupContraindications(d, conditions) {
			kind := KindContraindication
			condition := rule.Condition

			switch rule.Qualifier {
			case entities.QualifierRenal:
				if req.EGFR == nil || *req.EGFR >= rule.MaxEGFR {
					continue
				}
				kind = KindRenal
			case entities.QualifierPregnancy:
				if !req.Pregnant {
					continue
				}
				kind = KindPregnancy
			case entities.QualifierGeriatric:
				if req.Age < rule.MinAge {
					continue
				}
				kind = KindGeriatric
			}

			title := fmt.Sprintf("Contraindicated: %s with %s", displayName(d), condition)
			switch kind {
			case KindRenal:
				title = fmt.Sprintf("Renal risk: %s at eGFR below %.0f", displayName(d), rule.MaxEGFR)
			case KindPregnancy:
				title = fmt.Sprintf("Pregnancy risk: %s", displayName(d))
			case KindGeriatric:
				title = fmt.Sprintf("Geriatric risk: %s at age %d or older", displayName(d), rule.MinAge)
			}

			findings = append(findings, Finding{
				Kind:         kind,
				Severity:     rule.Severity,
				RuleID:       rule.ID,
				Drugs:        []string{d.Input},
				Condition:    condition,
				Title:        title,
				Message:      rule.Reason,
				Alternatives: alternativeNames(ref, rule.Alternatives),
				Evidence:     rule.Evidence,
				Absolute:     rule.Absolute,
			})
		}
	}

	return findings
}

// evaluateAllergies checks each new drug against the declared allergy set:
// an exact canonical match is a direct allergy, shared cross-allergy group
// membership (one hop through class tags) is a cross-allergy.
func evaluateAllergies(ref *referencedata.Store, newDrugs, allergens []referencedata.NormalizedDrug) []Finding {
	var findings []Finding

	for _, al := range allergens {
		if !al.Recognized {
			findings = append(findings, Finding{
				Kind:          KindUnrecognizedAllergy,
				Drugs:         []string{al.Input},
				Title:         fmt.Sprintf("Unrecognized allergy %q", al.Input),
				Message:       "The declared allergy does not match any known drug or class; cross-allergy coverage for it is unavailable.",
				Informational: true,
			})
			continue
		}

		for _, d := range newDrugs {
			if !d.Recognized {
				continue
			}

			if d.CanonicalID != "" && d.CanonicalID == al.CanonicalID {
				findings = append(findings, Finding{
					Kind:     KindAllergy,
					Severity: entities.SeverityCritical,
					Drugs:    []string{d.Input, al.Input},
					Title:    fmt.Sprintf("Allergy: patient is allergic to %s", displayName(d)),
					Message:  fmt.Sprintf("%s matches the declared allergy %q.", displayName(d), al.Input),
				})
				continue
			}

			for _, g := range ref.LookupCrossAllergies(d, al) {
				findings = append(findings, Finding{
					Kind:       KindCrossAllergy,
					Severity:   g.Severity,
					RuleID:     g.ID,
					Drugs:      []string{d.Input, al.Input},
					Title:      fmt.Sprintf("Cross-allergy: %s and %q share the %s group", displayName(d), al.Input, g.Name),
					Message:    fmt.Sprintf("%s belongs to the %s cross-allergy group, which includes the declared allergen %q.", displayName(d), g.Name, al.Input),
					Management: g.Management,
				})
			}
		}
	}

	return findings
}

// evaluateDuplicateTherapy flags duplicate-risk classes shared by two or more
// distinct drugs, at least one of them newly prescribed. Severity is fixed at
// moderate regardless of which drugs or how many share the class.
func evaluateDuplicateTherapy(ref *referencedata.Store, newDrugs, currentDrugs []referencedata.NormalizedDrug) []Finding {
	type member struct {
		drug  referencedata.NormalizedDrug
		isNew bool
	}

	byClass := make(map[string][]member)
	seen := make(map[string]bool)
	collect := func(drugs []referencedata.NormalizedDrug, isNew bool) {
		for _, d := range drugs {
			if !d.Recognized || d.CanonicalID == "" || seen[d.CanonicalID] {
				continue
			}
			seen[d.CanonicalID] = true
			for _, tag := range d.ClassTags {
				byClass[tag] = append(byClass[tag], member{drug: d, isNew: isNew})
			}
		}
	}
	collect(newDrugs, true)
	collect(currentDrugs, false)

	var findings []Finding
	for _, tag := range ref.DuplicateRiskClasses() {
		members := byClass[tag]
		if len(members) < 2 {
			continue
		}
		anyNew := false
		names := make([]string, 0, len(members))
		inputs := make([]string, 0, len(members))
		for _, m := range members {
			anyNew = anyNew || m.isNew
			names = append(names, displayName(m.drug))
			inputs = append(inputs, m.drug.Input)
		}
		if !anyNew {
			continue
		}

		className := tag
		if c, ok := ref.Class(tag); ok {
			className = c.Name
		}

		findings = append(findings, Finding{
			Kind:      KindDuplicateTherapy,
			Severity:  entities.SeverityModerate,
			Drugs:     inputs,
			Condition: tag,
			Title:     fmt.Sprintf("Duplicate therapy: %s", className),
			Message:   fmt.Sprintf("%s all belong to %s; combining them duplicates the same therapeutic effect.", strings.Join(names, ", "), className),
		})
	}

	return findings
}

func displayName(d referencedata.NormalizedDrug) string {
	if d.Name != "" {
		return d.Name
	}
	return d.Input
}

func alternativeNames(ref *referencedata.Store, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, ok := ref.Drug(id); ok {
			names = append(names, d.Name)
		} else {
			names = append(names, id)
		}
	}
	return names
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
