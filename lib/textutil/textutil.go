package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a product name and collapses its whitespace
// so names coming from different surfaces (listing page, search API,
// order line items) compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

var nonNumericRegex = regexp.MustCompile(`[^\d.,\-]`)
var nonIntegerRegex = regexp.MustCompile(`[^\d\-]`)

// LenientFloat parses price-like strings the remote API produces, which
// may carry currency symbols, spaces or a comma decimal separator.
// The boolean reports whether a value could be extracted.
func LenientFloat(raw string) (float64, bool) {
	raw = nonNumericRegex.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, ",", ".")
	if raw == "" || raw == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LenientInt parses stock-like strings, stripping everything that is
// not a digit or sign. "12.0" style floats are truncated.
func LenientInt(raw string) (int64, bool) {
	if f, ok := LenientFloat(raw); ok {
		return int64(f), true
	}
	raw = nonIntegerRegex.ReplaceAllString(raw, "")
	if raw == "" || raw == "-" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
