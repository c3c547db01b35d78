package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var salaryExpr = regexp.MustCompile(`(?i)\$?([\d,]+)k?\s*-\s*\$?([\d,]+)k?`)

// CleanText trims s and collapses internal whitespace runs to single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractSalary finds the first "min - max" range in text. Values are scaled
// by 1000 when the text mentions a "k" suffix anywhere.
func ExtractSalary(text string) (*float64, *float64) {
	match := salaryExpr.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}

	lo, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return nil, nil
	}
	hi, err := strconv.ParseFloat(strings.ReplaceAll(match[2], ",", ""), 64)
	if err != nil {
		return nil, nil
	}

	if strings.Contains(strings.ToLower(text), "k") {
		lo *= 1000
		hi *= 1000
	}
	return &lo, &hi
}

func normalizeToken(s string) string {
	return strings.ToLower(CleanText(s))
}
