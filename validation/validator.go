// Package validation provides input validation for the interactions API.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rxguard/interactions-api/interfaces"
)

// Pre-compiled regex patterns for performance optimization
// Compiled once at package initialization and reused for all validations
var (
	// Drug names: alphanumeric + accents + safe punctuation
	drugNameRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'/àâäéèêëïîôöùûüÿç]+$`)

	// Condition identifiers are snake_case tokens from the reference data
	conditionRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// InputValidator implements the interfaces.Validator interface
type InputValidator struct{}

// Compile-time check to ensure InputValidator implements Validator
var _ interfaces.Validator = (*InputValidator)(nil)

// NewValidator creates a new input validator
func NewValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateDrugName validates a drug name or allergen string from a request.
// Unrecognized names are not an error here; the normalizer handles those.
// This only rejects input that can never be a drug name.
func (v *InputValidator) ValidateDrugName(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("drug name cannot be empty")
	}

	if len(input) > 100 {
		return fmt.Errorf("drug name too long: maximum 100 characters")
	}

	if err := checkDangerous(input); err != nil {
		return err
	}

	if !drugNameRegex.MatchString(input) {
		return fmt.Errorf("drug name contains invalid characters")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("drug name contains excessive character repetition")
	}

	return nil
}

// ValidateConditionID validates a condition identifier.
func (v *InputValidator) ValidateConditionID(input string) error {
	if input == "" {
		return fmt.Errorf("condition id cannot be empty")
	}

	if len(input) > 64 {
		return fmt.Errorf("condition id too long: maximum 64 characters")
	}

	if !conditionRegex.MatchString(input) {
		return fmt.Errorf("condition id must contain only lowercase letters, digits and underscores")
	}

	return nil
}

// ValidateReason validates a clinician override reason.
func (v *InputValidator) ValidateReason(input string) error {
	if len(input) > 500 {
		return fmt.Errorf("reason too long: maximum 500 characters")
	}

	if err := checkDangerous(input); err != nil {
		return err
	}

	return nil
}

// checkDangerous scans for known injection patterns using string matching
// (faster than regex for these substrings).
func checkDangerous(input string) error {
	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}
	return nil
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func hasExcessiveRepetition(input string) bool {
	// Same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
