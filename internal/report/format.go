package report

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label converts a machine-case key such as "patient_summary" into a heading
// label such as "Patient Summary".
func Label(key string) string {
	words := strings.ReplaceAll(key, "_", " ")
	return cases.Title(language.Und).String(words)
}

// IsNumeric reports whether a leaf value is a quantitative finding that gets
// emphasis. JSON numbers always are. Strings are when they parse as a finite
// number and are written as an optional leading minus, digits and at most one
// decimal point; "1e3", "1.2.3", "NaN" or " 7" are plain text.
func IsNumeric(v Value) bool {
	if v.kind != KindPrimitive {
		return false
	}
	switch v.ptype {
	case PrimitiveNumber:
		return true
	case PrimitiveString:
		return isNumericText(v.text)
	default:
		return false
	}
}

func isNumericText(s string) bool {
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}

	body := strings.TrimPrefix(s, "-")
	digits, dots := 0, 0
	for _, r := range body {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
