package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// Fold lowercases s unless caseSensitive matching was requested.
func Fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

var (
	decimalRegex   = regexp.MustCompile(`(\d+\.?\d*)`)
	hoursRegex     = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:hours?|hrs?|h)`)
	hourMinRegex   = regexp.MustCompile(`(?i)(\d+)h\s*(\d+)m`)
	digitGrpsRegex = regexp.MustCompile(`([\d,]+)`)
)

// ParseRating extracts the first decimal number from free text such as
// "4.5" or "4.5 stars". Unparsable input yields fallback.
func ParseRating(raw string, fallback float64) float64 {
	m := decimalRegex.FindStringSubmatch(raw)
	if m == nil {
		return fallback
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return v
}

// ParseDuration converts duration text into hours. It understands
// "5.5 hours", "10 hrs", "3h" and the "2h 30m" form; a bare number is
// taken as hours. Unparsable input yields fallback.
func ParseDuration(raw string, fallback float64) float64 {
	if m := hourMinRegex.FindStringSubmatch(raw); m != nil {
		hours, err1 := strconv.Atoi(m[1])
		minutes, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return float64(hours) + float64(minutes)/60
		}
	}
	if m := hoursRegex.FindStringSubmatch(raw); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v
		}
	}
	return ParseNumber(raw, fallback)
}

// ParseStudents extracts an integer count from text such as
// "1,234 students", stripping thousands separators.
func ParseStudents(raw string, fallback int) int {
	m := digitGrpsRegex.FindStringSubmatch(raw)
	if m == nil {
		return fallback
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return fallback
	}
	return v
}

// ParseNumber parses trimmed free text as a float.
func ParseNumber(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	return v
}
