package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeKey produces the canonical comparison form of a column label:
// lowercased, trimmed, inner whitespace collapsed to single spaces.
func NormalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.Trim(key, " \n\t")
	key = whitespaceRegex.ReplaceAllString(key, " ")
	return key
}

// MatchKey reports whether the normalized key contains any of the
// candidate substrings. Candidates are expected to be lowercase already.
func MatchKey(key string, candidates []string) bool {
	key = NormalizeKey(key)
	for _, c := range candidates {
		if strings.Contains(key, c) {
			return true
		}
	}
	return false
}

var numberCleaner = strings.NewReplacer(
	"$", "",
	",", "",
	"%", "",
	" ", "",
)

// ParseNumber converts rendered numeric cell text into a float.
// Currency, thousands and percent punctuation is stripped and
// parenthesized values are treated as negative. Values that do not
// parse ("N/A", "-", free text) yield (0, false) rather than an error.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = numberCleaner.Replace(s)
	s = strings.TrimPrefix(s, "+")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
