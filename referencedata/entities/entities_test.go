package entities

import (
	"encoding/json"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		token    string
		expected Severity
		wantErr  bool
	}{
		{"minor", SeverityMinor, false},
		{"moderate", SeverityModerate, false},
		{"MAJOR", SeverityMajor, false},
		{" critical ", SeverityCritical, false},
		{"", 0, true},
		{"severe", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSeverity(tt.token)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeverity(%q): unexpected error state: %v", tt.token, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseSeverity(%q): expected %v, got %v", tt.token, tt.expected, got)
		}
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityMinor < SeverityModerate && SeverityModerate < SeverityMajor && SeverityMajor < SeverityCritical) {
		t.Error("severity constants must be ordered minor < moderate < major < critical")
	}
}

func TestSeverityJSONRoundTrip(t *testing.T) {
	var rule InteractionRule
	input := `{"id": "I1", "a": "x", "b": "y", "severity": "major", "clinical_effect": "e", "evidence_level": "A"}`
	if err := json.Unmarshal([]byte(input), &rule); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if rule.Severity != SeverityMajor {
		t.Errorf("expected major, got %v", rule.Severity)
	}
	if rule.Evidence != EvidenceA {
		t.Errorf("expected evidence A, got %v", rule.Evidence)
	}

	out, err := json.Marshal(rule.Severity)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `"major"` {
		t.Errorf("expected \"major\", got %s", out)
	}
}

func TestSeverityRejectsInvalidToken(t *testing.T) {
	var s Severity
	if err := json.Unmarshal([]byte(`"catastrophic"`), &s); err == nil {
		t.Error("expected error for invalid severity token")
	}
}

func TestParseEvidenceLevel(t *testing.T) {
	if lvl, err := ParseEvidenceLevel(""); err != nil || lvl != 0 {
		t.Errorf("empty token should yield zero level, got %v, %v", lvl, err)
	}
	if lvl, err := ParseEvidenceLevel("a"); err != nil || lvl != EvidenceA {
		t.Errorf("expected EvidenceA, got %v, %v", lvl, err)
	}
	if _, err := ParseEvidenceLevel("E"); err == nil {
		t.Error("expected error for invalid evidence token")
	}
	if !(EvidenceD < EvidenceC && EvidenceC < EvidenceB && EvidenceB < EvidenceA) {
		t.Error("evidence constants must be ordered D < C < B < A")
	}
}
