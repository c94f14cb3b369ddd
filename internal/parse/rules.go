package parse

import (
	"regexp"
	"strings"
)

// Field names a parsed identity field.
type Field string

const (
	FieldName    Field = "name"
	FieldAccount Field = "account"
	FieldID      Field = "id"
)

// Rule matches a single field over the document lines. Rules are independent
// and ordered; for each field the first qualifying match by position wins.
type Rule struct {
	Field Field
	Match func(lines []string) (string, bool)
}

// Account-like digit runs must be 10..20 digits; shorter runs are form
// numbers, dates and phone fragments, longer ones are barcodes.
const (
	minAccountDigits = 10
	maxAccountDigits = 20
)

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]`)

	// Anchors for name-bearing labels. Longer variants listed first.
	reNameAnchor = regexp.MustCompile(`(?i)\b(?:name of account holder|name of organi[sz]ation|account name|institution name|print name|first names?|surnames?|other names?|name)\s*:?[ \t]*`)

	// A name-shaped word: letters with optional inner punctuation (O'Brien,
	// Smith-Jones, Jr.).
	reNameWord = regexp.MustCompile(`^[A-Za-z][A-Za-z.'-]*$`)

	// Account labels followed by a candidate token.
	reAccount = regexp.MustCompile(`(?i)\b(?:client csd securities account no|csd number|account(?:\s+(?:number|no\.?))?)\s*:?[ \t]*([A-Za-z0-9-]+)`)

	// Alternate ID labels, normalized to the "id" field.
	reID = regexp.MustCompile(`(?i)\b(?:umb-ihl id number|id number)\s*:?[ \t]*([A-Za-z0-9-]+)`)
)

// Words that can never be (part of) an extracted value: label vocabulary and
// filler the OCR tends to run together with real values.
var blacklist = makeSet(
	"name", "surname", "surnames", "other", "print", "account", "number", "no",
	"holder", "institution", "organization", "organisation", "csd", "id",
	"client", "securities", "umbihl", "first", "names",
	"details", "purpose", "period", "address", "tel", "email", "photo",
	"reference", "date", "relationship", "employer", "spouse",
	"failed", "partial", "partially", "indexed", "fully",
	"of", "the", "and", "or", "as", "it", "is", "are", "was", "be", "on", "in",
	"at", "to", "for", "by", "with", "from", "this", "that", "these", "those",
	"a", "an",
)

func makeSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[normalizeToken(w)] = struct{}{}
	}
	return m
}

func normalizeToken(s string) string {
	return reNonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

func blacklisted(tok string) bool {
	_, ok := blacklist[normalizeToken(tok)]
	return ok
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}

// DefaultRules returns the standard matcher set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Field: FieldName, Match: matchName},
		{Field: FieldAccount, Match: matchLabeledNumber(reAccount)},
		{Field: FieldID, Match: matchLabeledNumber(reID)},
	}
}

// matchName anchors on a name-bearing label and collects the name-shaped
// words that follow, falling back to the next line when the label sits alone.
func matchName(lines []string) (string, bool) {
	for i, line := range lines {
		loc := reNameAnchor.FindStringIndex(line)
		if loc == nil {
			continue
		}
		words := collectNameWords(line[loc[1]:])
		if len(words) == 0 && i+1 < len(lines) {
			words = collectNameWords(lines[i+1])
		}
		candidate := strings.Join(words, " ")
		if candidate == "" {
			continue
		}
		if ncan := normalizeToken(candidate); len(ncan) > 2 && !blacklisted(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func collectNameWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if blacklisted(w) || !reNameWord.MatchString(w) {
			break
		}
		words = append(words, w)
	}
	return words
}

// matchLabeledNumber returns a rule body matching label-anchored tokens whose
// digit run satisfies the account length constraint. First match by line
// position wins.
func matchLabeledNumber(re *regexp.Regexp) func(lines []string) (string, bool) {
	return func(lines []string) (string, bool) {
		for _, line := range lines {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			cand := strings.TrimSpace(m[1])
			if blacklisted(cand) {
				continue
			}
			if n := len(digitsOf(cand)); n >= minAccountDigits && n <= maxAccountDigits {
				return cand, true
			}
		}
		return "", false
	}
}
