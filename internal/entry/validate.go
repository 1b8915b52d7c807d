package entry

import (
	"strconv"
	"strings"
	"unicode"
)

// validateChoice checks value against the spec's enumerated canonical values.
// Decorated display labels (emoji prefixes) are normalized before matching so
// downstream submission always carries the canonical value.
func validateChoice(spec FieldSpec, value string) (string, error) {
	normalized := StripDecoration(value)
	if normalized == "" {
		return "", &ValidationError{Reason: ReasonEmptyInput, Spec: spec}
	}
	for _, choice := range spec.Choices {
		if normalized == choice {
			return choice, nil
		}
	}
	return "", &ValidationError{Reason: ReasonNotInChoiceSet, Spec: spec}
}

// validateText accepts any input that is non-empty after trimming.
func validateText(spec FieldSpec, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &ValidationError{Reason: ReasonEmptyInput, Spec: spec}
	}
	return trimmed, nil
}

// validateAmount parses a positive integer amount in minor units.
// "," and "." are treated as grouping separators, never decimal points.
func validateAmount(spec FieldSpec, value string) (string, error) {
	stripped := strings.Map(func(r rune) rune {
		if r == ',' || r == '.' {
			return -1
		}
		return r
	}, strings.TrimSpace(value))

	if stripped == "" {
		return "", &ValidationError{Reason: ReasonEmptyInput, Spec: spec}
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return "", &ValidationError{Reason: ReasonNotANumber, Spec: spec}
		}
	}
	n, err := strconv.ParseUint(stripped, 10, 63)
	if err != nil {
		return "", &ValidationError{Reason: ReasonNotANumber, Spec: spec}
	}
	if n == 0 {
		return "", &ValidationError{Reason: ReasonNonPositive, Spec: spec}
	}
	return strconv.FormatUint(n, 10), nil
}

// validateField dispatches on the spec's field type and returns the
// normalized value to store.
func validateField(spec FieldSpec, raw string) (string, error) {
	switch spec.Type {
	case FieldChoice:
		return validateChoice(spec, raw)
	case FieldAmount:
		return validateAmount(spec, raw)
	default:
		return validateText(spec, raw)
	}
}

// StripDecoration removes a leading decorative prefix (emoji and punctuation)
// from a display label, returning the canonical value.
func StripDecoration(label string) string {
	trimmed := strings.TrimSpace(label)
	start := -1
	for i, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	return strings.TrimSpace(trimmed[start:])
}
