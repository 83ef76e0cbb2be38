package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// numberRegexp captures a numeric value with optional decimals
	numberRegexp = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)
	// ageRegexp captures values like "3h", "2d", "45m", "1mo", "30s", "2y"
	ageRegexp = regexp.MustCompile(`(\d+)\s*(mo|[smhdwy])`)
)

// ParseMoney extracts a dollar amount from listing text such as "$1.2M",
// "$506K" or "2,000". Returns 0 when no number is present.
func ParseMoney(raw string) float64 {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "n/a" {
		return 0
	}

	cleaned := strings.ReplaceAll(raw, ",", "")
	match := numberRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}

	switch {
	case strings.Contains(cleaned, "b"):
		val *= 1e9
	case strings.Contains(cleaned, "m"):
		val *= 1e6
	case strings.Contains(cleaned, "k"):
		val *= 1e3
	}
	return val
}

// ParsePrice extracts a numeric price from locale-formatted text.
func ParsePrice(raw string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	match := numberRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}

// ParseChange extracts a percentage change from text like "300%" or "-12.5%".
// "N/A" and unparsable text yield 0.
func ParseChange(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return 0
	}
	cleaned := strings.ReplaceAll(raw, ",", "")
	match := numberRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}

// ParseAge converts listing age text ("3h", "2d", "1mo") to a duration.
// Unparsable text yields 0 (treated as unknown, not as brand-new).
func ParseAge(raw string) time.Duration {
	match := ageRegexp.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if len(match) < 3 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}

	unit := time.Duration(0)
	switch match[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	case "mo":
		unit = 30 * 24 * time.Hour
	case "y":
		unit = 365 * 24 * time.Hour
	}
	return time.Duration(n) * unit
}

// normaliseText strips leading/trailing whitespace and collapses internal
// whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
