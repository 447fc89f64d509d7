package engine

import (
	"sort"
	"strings"

	"github.com/rxguard/interactions-api/referencedata/entities"
)

// Aggregate merges raw findings into the ordered alert list. Findings that
// resolve to the same (kind, drug-pair-or-condition) identity collapse to one
// alert, keeping the highest severity; ties keep the strongest evidence
// level. On a full tie, findings with the same mechanism text are one
// guidance and collapse silently; differing mechanisms have their management
// texts combined so no guidance is lost. The result is sorted by severity
// (critical first), then by the fixed kind priority, stably, so the order
// never depends on evaluator execution order. Aggregate is idempotent over
// the same findings.
func Aggregate(findings []Finding) []Alert {
	var order []string
	best := make(map[string]Finding)

	for _, f := range findings {
		id := f.identity()
		cur, ok := best[id]
		if !ok {
			best[id] = f
			order = append(order, id)
			continue
		}
		if f.Severity > cur.Severity {
			best[id] = f
			continue
		}
		if f.Severity == cur.Severity && f.Evidence > cur.Evidence {
			best[id] = f
			continue
		}
		if f.Severity == cur.Severity && f.Evidence == cur.Evidence &&
			f.Mechanism != cur.Mechanism && f.Management != "" &&
			!strings.Contains(cur.Management, f.Management) {
			if cur.Management == "" {
				cur.Management = f.Management
			} else {
				cur.Management = cur.Management + " " + f.Management
			}
			best[id] = cur
		}
	}

	alerts := make([]Alert, 0, len(order))
	for _, id := range order {
		alerts = append(alerts, toAlert(best[id], id))
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity > alerts[j].Severity
		}
		return kindPriority[alerts[i].Kind] < kindPriority[alerts[j].Kind]
	})

	return alerts
}

// toAlert applies the override policy: a documented reason is mandatory for
// critical and contraindication-derived alerts, and only rules marked
// absolute in the data cannot be overridden at all.
func toAlert(f Finding, key string) Alert {
	requiresReason := false
	if !f.Informational {
		switch {
		case f.Severity == entities.SeverityCritical:
			requiresReason = true
		case f.Kind == KindContraindication, f.Kind == KindRenal, f.Kind == KindPregnancy, f.Kind == KindGeriatric:
			requiresReason = true
		}
	}

	return Alert{
		Kind:           f.Kind,
		Severity:       f.Severity,
		Title:          f.Title,
		Message:        f.Message,
		Drugs:          f.Drugs,
		Condition:      f.Condition,
		Mechanism:      f.Mechanism,
		Management:     f.Management,
		Alternatives:   f.Alternatives,
		Evidence:       f.Evidence,
		CanOverride:    !f.Absolute,
		RequiresReason: requiresReason,
		Informational:  f.Informational,
		Key:            key,
	}
}
