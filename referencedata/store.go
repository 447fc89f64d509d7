// Package referencedata loads and indexes the four static datasets the rule
// engine evaluates against: the drug/class map, interaction pairs,
// contraindication rules and cross-allergy groups. A Store is immutable after
// construction and safe for unlimited concurrent readers without locking.
package referencedata

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rxguard/interactions-api/referencedata/entities"
)

// NormalizedDrug is the normalizer output for one free-text drug or allergen
// name. Recognized is false when no canonical match exists; the marker still
// flows through the evaluators so coverage gaps stay visible.
type NormalizedDrug struct {
	Input       string   `json:"input"`
	CanonicalID string   `json:"canonical_id,omitempty"`
	Name        string   `json:"name,omitempty"`
	ClassTags   []string `json:"class_tags,omitempty"`
	Recognized  bool     `json:"recognized"`
}

// Identifiers returns the canonical id plus every class tag: the full set of
// identifiers rule matching considers for this drug.
func (n NormalizedDrug) Identifiers() []string {
	ids := make([]string, 0, len(n.ClassTags)+1)
	if n.CanonicalID != "" {
		ids = append(ids, n.CanonicalID)
	}
	ids = append(ids, n.ClassTags...)
	return ids
}

// IdentifierSet returns the same identifiers as a lookup set.
func (n NormalizedDrug) IdentifierSet() map[string]bool {
	set := make(map[string]bool, len(n.ClassTags)+1)
	for _, id := range n.Identifiers() {
		set[id] = true
	}
	return set
}

// foldTransformer strips combining marks so accented brand names match their
// plain-ASCII spellings.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold canonicalizes a free-text name for alias lookup: trimmed, lowercased,
// diacritics stripped, inner whitespace collapsed.
func Fold(raw string) string {
	folded, _, err := transform.String(foldTransformer, raw)
	if err != nil {
		folded = raw
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

type indexedGroup struct {
	group   entities.CrossAllergyGroup
	members map[string]bool
}

// Store holds the query-ready indices over the reference datasets.
type Store struct {
	drugs             map[string]entities.DrugReference
	classes           map[string]entities.DrugClass
	aliasIndex        map[string]string
	classMembers      map[string][]string
	interactions      map[string][]entities.InteractionRule
	interactionCount  int
	contraindications map[string][]entities.ContraindicationRule
	contraCount       int
	groups            []indexedGroup
	knownConditions   map[string]bool
	loadedAt          time.Time
}

// Empty returns a Store with no data. Every lookup misses; the data container
// falls back to it before the initial load completes.
func Empty() *Store {
	s, _ := Build(nil, nil, nil, nil, nil)
	return s
}

// Build validates the parsed records and constructs the indices. Any record
// that references an undefined identifier, carries an invalid severity, or
// duplicates an unordered interaction pair fails the whole build: the engine
// must never start on partially loaded indices.
func Build(
	drugs []entities.DrugReference,
	classes []entities.DrugClass,
	interactions []entities.InteractionRule,
	contraindications []entities.ContraindicationRule,
	groups []entities.CrossAllergyGroup,
) (*Store, error) {
	s := &Store{
		drugs:             make(map[string]entities.DrugReference, len(drugs)),
		classes:           make(map[string]entities.DrugClass, len(classes)),
		aliasIndex:        make(map[string]string),
		classMembers:      make(map[string][]string),
		interactions:      make(map[string][]entities.InteractionRule),
		contraindications: make(map[string][]entities.ContraindicationRule),
		knownConditions:   make(map[string]bool),
		loadedAt:          time.Now(),
	}

	for _, c := range classes {
		if c.Tag == "" {
			return nil, fmt.Errorf("class with empty tag: %q", c.Name)
		}
		if _, dup := s.classes[c.Tag]; dup {
			return nil, fmt.Errorf("duplicate class tag: %s", c.Tag)
		}
		s.classes[c.Tag] = c
	}

	for _, d := range drugs {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("drug with missing id or name: %+v", d)
		}
		if _, dup := s.drugs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate drug id: %s", d.ID)
		}
		for _, tag := range d.Classes {
			if _, ok := s.classes[tag]; !ok {
				return nil, fmt.Errorf("drug %s references undefined class tag: %s", d.ID, tag)
			}
			s.classMembers[tag] = append(s.classMembers[tag], d.ID)
		}
		s.drugs[d.ID] = d
		for _, alias := range append([]string{d.ID, d.Name}, d.Aliases...) {
			key := Fold(alias)
			if key == "" {
				continue
			}
			if existing, taken := s.aliasIndex[key]; taken && existing != d.ID {
				return nil, fmt.Errorf("alias %q maps to both %s and %s", alias, existing, d.ID)
			}
			s.aliasIndex[key] = d.ID
		}
	}

	// Interaction pairs are unordered: index both sides, reject duplicates of
	// the same unordered pair so symmetric lookups cannot disagree.
	pairSeen := make(map[string]string)
	for _, r := range interactions {
		if err := s.checkIdentifier(r.A); err != nil {
			return nil, fmt.Errorf("interaction %s: %w", r.ID, err)
		}
		if err := s.checkIdentifier(r.B); err != nil {
			return nil, fmt.Errorf("interaction %s: %w", r.ID, err)
		}
		if r.A == r.B {
			return nil, fmt.Errorf("interaction %s pairs %s with itself", r.ID, r.A)
		}
		if r.Severity == 0 {
			return nil, fmt.Errorf("interaction %s has no severity", r.ID)
		}
		key := pairKey(r.A, r.B)
		if prev, dup := pairSeen[key]; dup {
			return nil, fmt.Errorf("interaction %s duplicates pair (%s, %s) already declared by %s", r.ID, r.A, r.B, prev)
		}
		pairSeen[key] = r.ID
		s.interactions[r.A] = append(s.interactions[r.A], r)
		s.interactions[r.B] = append(s.interactions[r.B], r)
		s.interactionCount++
	}

	for _, r := range contraindications {
		if err := s.checkIdentifier(r.Drug); err != nil {
			return nil, fmt.Errorf("contraindication %s: %w", r.ID, err)
		}
		if r.Severity == 0 {
			return nil, fmt.Errorf("contraindication %s has no severity", r.ID)
		}
		switch r.Qualifier {
		case "":
			if r.Condition == "" {
				return nil, fmt.Errorf("contraindication %s has neither condition nor qualifier", r.ID)
			}
		case entities.QualifierRenal:
			if r.MaxEGFR <= 0 {
				return nil, fmt.Errorf("renal contraindication %s has no eGFR cutoff", r.ID)
			}
		case entities.QualifierGeriatric:
			if r.MinAge <= 0 {
				return nil, fmt.Errorf("geriatric contraindication %s has no age cutoff", r.ID)
			}
		case entities.QualifierPregnancy:
		default:
			return nil, fmt.Errorf("contraindication %s has unknown qualifier: %s", r.ID, r.Qualifier)
		}
		for _, alt := range r.Alternatives {
			if _, ok := s.drugs[alt]; !ok {
				return nil, fmt.Errorf("contraindication %s lists undefined alternative drug: %s", r.ID, alt)
			}
		}
		if r.Condition != "" {
			s.knownConditions[r.Condition] = true
		}
		s.contraindications[r.Drug] = append(s.contraindications[r.Drug], r)
		s.contraCount++
	}

	for _, g := range groups {
		if len(g.Members) < 2 {
			return nil, fmt.Errorf("cross-allergy group %s needs at least two members", g.ID)
		}
		if g.Severity == 0 {
			return nil, fmt.Errorf("cross-allergy group %s has no severity", g.ID)
		}
		members := make(map[string]bool, len(g.Members))
		for _, m := range g.Members {
			if err := s.checkIdentifier(m); err != nil {
				return nil, fmt.Errorf("cross-allergy group %s: %w", g.ID, err)
			}
			members[m] = true
		}
		s.groups = append(s.groups, indexedGroup{group: g, members: members})
	}

	return s, nil
}

func (s *Store) checkIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("empty identifier")
	}
	if _, ok := s.drugs[id]; ok {
		return nil
	}
	if _, ok := s.classes[id]; ok {
		return nil
	}
	return fmt.Errorf("undefined identifier: %s", id)
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// Normalize maps a free-text drug or allergen name to its canonical drug, or
// to a bare class identity when the name matches a class tag. Unrecognized
// names soft-fail: the marker propagates instead of the drug being dropped.
func (s *Store) Normalize(raw string) NormalizedDrug {
	key := Fold(raw)
	if key == "" {
		return NormalizedDrug{Input: raw}
	}
	if id, ok := s.aliasIndex[key]; ok {
		d := s.drugs[id]
		return NormalizedDrug{
			Input:       raw,
			CanonicalID: d.ID,
			Name:        d.Name,
			ClassTags:   d.Classes,
			Recognized:  true,
		}
	}
	if c, ok := s.classes[key]; ok {
		return NormalizedDrug{
			Input:      raw,
			Name:       c.Name,
			ClassTags:  []string{c.Tag},
			Recognized: true,
		}
	}
	return NormalizedDrug{Input: raw}
}

// LookupInteractions returns every interaction rule matching the pair, via
// literal identifiers or any class tag either drug carries. Results are
// ordered by rule id, so the lookup is symmetric in its arguments.
func (s *Store) LookupInteractions(a, b NormalizedDrug) []entities.InteractionRule {
	if !a.Recognized || !b.Recognized {
		return nil
	}
	setA := a.IdentifierSet()
	setB := b.IdentifierSet()
	seen := make(map[string]bool)
	var out []entities.InteractionRule
	for id := range setA {
		for _, r := range s.interactions[id] {
			if seen[r.ID] {
				continue
			}
			if (setA[r.A] && setB[r.B]) || (setA[r.B] && setB[r.A]) {
				seen[r.ID] = true
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupContraindications returns rules matching the drug's identifiers whose
// declared condition is in the patient's condition set. Qualified rules with
// no declared condition are returned unconditionally; the evaluator applies
// their demographic or lab threshold.
func (s *Store) LookupContraindications(d NormalizedDrug, conditions map[string]bool) []entities.ContraindicationRule {
	if !d.Recognized {
		return nil
	}
	seen := make(map[string]bool)
	var out []entities.ContraindicationRule
	for _, id := range d.Identifiers() {
		for _, r := range s.contraindications[id] {
			if seen[r.ID] {
				continue
			}
			if r.Condition != "" && !conditions[r.Condition] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupCrossAllergies returns the groups in which both the drug and the
// declared allergen are members, each resolved through its own identifiers
// (one hop through class tags, no deeper traversal).
func (s *Store) LookupCrossAllergies(d, allergen NormalizedDrug) []entities.CrossAllergyGroup {
	if !d.Recognized || !allergen.Recognized {
		return nil
	}
	var out []entities.CrossAllergyGroup
	for _, ig := range s.groups {
		if containsAny(ig.members, d.Identifiers()) && containsAny(ig.members, allergen.Identifiers()) {
			out = append(out, ig.group)
		}
	}
	return out
}

func containsAny(set map[string]bool, ids []string) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

// Drug returns the canonical drug record for an id.
func (s *Store) Drug(id string) (entities.DrugReference, bool) {
	d, ok := s.drugs[id]
	return d, ok
}

// Class returns the class record for a tag.
func (s *Store) Class(tag string) (entities.DrugClass, bool) {
	c, ok := s.classes[tag]
	return c, ok
}

// ClassMembers returns the drugs carrying a class tag, ordered by id.
func (s *Store) ClassMembers(tag string) []entities.DrugReference {
	ids := append([]string(nil), s.classMembers[tag]...)
	sort.Strings(ids)
	out := make([]entities.DrugReference, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.drugs[id])
	}
	return out
}

// DuplicateRiskClasses returns the tags flagged for duplicate-therapy
// checking, ordered for deterministic evaluation.
func (s *Store) DuplicateRiskClasses() []string {
	var tags []string
	for tag, c := range s.classes {
		if c.DuplicateRisk {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// KnownCondition reports whether any contraindication rule references the
// condition identifier. Unknown conditions surface as coverage-gap alerts.
func (s *Store) KnownCondition(id string) bool {
	return s.knownConditions[id]
}

// Counts returns dataset sizes for health reporting.
func (s *Store) Counts() (drugs, classes, interactions, contraindications, groups int) {
	return len(s.drugs), len(s.classes), s.interactionCount, s.contraCount, len(s.groups)
}

// LoadedAt returns when this snapshot was built.
func (s *Store) LoadedAt() time.Time {
	return s.loadedAt
}
