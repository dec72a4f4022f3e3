package schema

// convert.go coerces raw spreadsheet cells into typed field values.
//
// These functions handle the messy reality of operator-provided files:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Localized boolean tokens (yes/no, true/false, 1/0, and their Hebrew
//     equivalents used by the classifieds operators)
//   - Excel formula prefixes (="value")
//   - Common CSV artifacts (BOM, smart quotes)
//
// All Parse* functions report ok=false for empty or unparseable input.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Date layouts split by year format for proper 2-digit year handling.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are assumed
// to be in the previous century.
var TwoDigitYearPivot = 20

// Boolean token sets. The marketplace serves Hebrew-speaking operators, so the
// localized yes/no spellings show up in bulk files next to the English ones.
var (
	trueTokens  = map[string]bool{"true": true, "yes": true, "y": true, "1": true, "כן": true}
	falseTokens = map[string]bool{"false": true, "no": true, "n": true, "0": true, "לא": true}
)

// CleanCell strips common CSV artifacts from a raw cell value:
// UTF-8 BOM, Excel formula wrappers (="value"), and surrounding whitespace.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// ParseBool parses a localized boolean token.
func ParseBool(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if trueTokens[s] {
		return true, true
	}
	if falseTokens[s] {
		return false, true
	}
	return false, false
}

// ParseNumber parses a numeric cell, tolerating currency symbols, thousands
// separators, and accounting format (parentheses for negative).
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = s[1 : len(s)-1]
	}

	// Strip currency symbols, thousands separators, and spaces
	replacer := strings.NewReplacer("$", "", "₪", "", "€", "", "£", "", ",", "", " ", "")
	s = replacer.Replace(s)

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if isNegative {
		f = -f
	}
	return f, true
}

// ParseDate parses a date cell, supporting multiple layouts and 2-digit years
// with a pivot. Day-first layouts are preferred, matching the operators' files.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// Coerce converts a cleaned cell into the typed value for a field.
// Empty input yields (nil, nil); type failures return a field-level error.
func Coerce(spec FieldSpec, raw string) (any, error) {
	raw = CleanCell(raw)
	if raw == "" {
		return nil, nil
	}

	switch spec.Type {
	case FieldNumeric:
		f, ok := ParseNumber(raw)
		if !ok {
			return nil, fmt.Errorf("invalid number format")
		}
		return f, nil
	case FieldDate:
		t, ok := ParseDate(raw)
		if !ok {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
		return t.Format("2006-01-02"), nil
	case FieldBool:
		b, ok := ParseBool(raw)
		if !ok {
			return nil, fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
		return b, nil
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, raw) {
				return ev, nil
			}
		}
		return nil, fmt.Errorf("value must be one of: %s", strings.Join(spec.EnumValues, ", "))
	default:
		return raw, nil
	}
}
