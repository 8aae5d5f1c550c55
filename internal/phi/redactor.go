package phi

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// pattern binds a category to its matcher. group selects the submatch that
// is replaced; 0 replaces the whole match.
type pattern struct {
	category Category
	re       *regexp.Regexp
	group    int
}

const monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

const streetSuffixes = `street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|court|way|place|terrace|circle|parkway|pkwy|highway|hwy`

// defaultPatterns is compiled once and shared read-only. Order is the
// redaction priority order; each entry runs on the output of the previous.
var defaultPatterns = []pattern{
	{
		category: CategoryName,
		re:       regexp.MustCompile(`(?i)\b(?:my (?:full )?name is|my name's|i am called|i'm called|people call me)\s+([a-z][a-z'\-]*(?:\s+[a-z][a-z'\-]*)?)`),
		group:    1,
	},
	{
		category: CategorySSN,
		re:       regexp.MustCompile(`\b\d{3}[- ]\d{2}[- ]\d{4}\b`),
	},
	{
		category: CategoryPhone,
		re:       regexp.MustCompile(`(?:\+?1[\s.\-]?)?(?:\(\d{3}\)|\b\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}\b`),
	},
	{
		category: CategoryEmail,
		re:       regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`),
	},
	{
		category: CategoryDOB,
		re: regexp.MustCompile(`(?i)\b(?:` +
			`(?:0?[1-9]|1[0-2])[/\-.](?:0?[1-9]|[12]\d|3[01])[/\-.](?:19|20)?\d{2}` +
			`|(?:19|20)\d{2}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])` +
			`|(?:` + monthNames + `)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+(?:19|20)\d{2}` +
			`|\d{1,2}(?:st|nd|rd|th)?\s+(?:` + monthNames + `)\.?,?\s+(?:19|20)\d{2}` +
			`)\b`),
	},
	// Street name words must be capitalized or numbered; only the suffix is
	// case-insensitive.
	{
		category: CategoryAddress,
		re:       regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Z0-9][A-Za-z0-9.'\-]*\s+){1,4}(?i:` + streetSuffixes + `)\b\.?`),
	},
}

// Redactor masks PHI with positional tokens of the form [CATEGORY_i].
type Redactor struct {
	patterns []pattern
}

var defaultRedactor = &Redactor{patterns: defaultPatterns}

// Default returns the shared redactor built from the fixed pattern table.
func Default() *Redactor {
	return defaultRedactor
}

// Redact applies the shared redactor.
func Redact(text string) Result {
	return defaultRedactor.Redact(text)
}

// Redact rewrites text category by category. Each category sees the text as
// already rewritten by earlier categories, so earlier tokens are inert.
// Identical matched values within a category share one token, and every
// later occurrence of a matched value is masked too.
func (r *Redactor) Redact(text string) Result {
	result := Result{RedactedText: text}
	for _, p := range r.patterns {
		result.RedactedText = p.apply(result.RedactedText, &result.Findings)
	}
	return result
}

func (p pattern) apply(text string, findings *[]Finding) string {
	matches := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	tokens := make(map[string]string)
	var values []string
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[2*p.group], m[2*p.group+1]
		if start < 0 || start == end {
			continue
		}
		value := text[start:end]
		key := strings.ToLower(value)
		token, ok := tokens[key]
		if !ok {
			token = fmt.Sprintf("[%s_%d]", p.category, len(tokens))
			tokens[key] = token
			values = append(values, value)
			*findings = append(*findings, Finding{Token: token, Category: p.category})
		}
		b.WriteString(text[last:start])
		b.WriteString(token)
		last = end
	}
	b.WriteString(text[last:])
	return maskRepeats(b.String(), values, tokens)
}

// maskRepeats replaces any remaining occurrence of a matched value with its
// token, so a value seen once with context is also masked where it appears
// bare. Longer values go first so a shorter one cannot split them.
func maskRepeats(text string, values []string, tokens map[string]string) string {
	sort.SliceStable(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })
	for _, value := range values {
		token := tokens[strings.ToLower(value)]
		locs := valueMatcher(value).FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		var b strings.Builder
		last := 0
		for _, loc := range locs {
			if embedded(text, loc[0], loc[1]) {
				continue
			}
			b.WriteString(text[last:loc[0]])
			b.WriteString(token)
			last = loc[1]
		}
		b.WriteString(text[last:])
		text = b.String()
	}
	return text
}

// valueMatcher matches value case-insensitively, anchored on word
// boundaries where the value starts or ends with a word character.
func valueMatcher(value string) *regexp.Regexp {
	expr := regexp.QuoteMeta(value)
	if isWordByte(value[0]) {
		expr = `\b` + expr
	}
	if isWordByte(value[len(value)-1]) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

// embedded reports whether text[start:end] is glued into a larger
// identifier such as an email address, which later categories own.
func embedded(text string, start, end int) bool {
	if start > 0 && joins(text[start-1]) && (text[start-1] == '@' || start > 1 && isWordByte(text[start-2])) {
		return true
	}
	if end < len(text) && joins(text[end]) && (text[end] == '@' || end+1 < len(text) && isWordByte(text[end+1])) {
		return true
	}
	return false
}

func joins(c byte) bool {
	return strings.IndexByte("@._%+-", c) >= 0
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
