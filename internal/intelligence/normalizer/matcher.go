package normalizer

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/clinlink/clinlink/pkg/errors"
)

// Concept is one vocabulary entry a mention can resolve to.
type Concept struct {
	CUI           string   `json:"cui"`
	PreferredTerm string   `json:"preferred_term"`
	SemanticTypes []string `json:"semantic_types"`
}

// Matcher resolves a mention's surface text to vocabulary concepts.
type Matcher interface {
	Match(ctx context.Context, mention string) ([]Concept, error)
}

// NormalizeTerm canonicalizes a surface form for dictionary lookup: Unicode
// NFKC normalization, lower-casing, punctuation stripped to spaces and runs
// of whitespace collapsed.
func NormalizeTerm(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// DictionaryMatcher resolves mentions against an in-memory term dictionary
// keyed by normalized surface form.  It is the local stand-in for a full
// UMLS installation: exact normalized-term lookup, no approximate matching.
type DictionaryMatcher struct {
	terms map[string][]Concept
}

// DictionaryEntry is one term→concept row used to build a DictionaryMatcher.
type DictionaryEntry struct {
	Term    string  `json:"term"`
	Concept Concept `json:"concept"`
}

// NewDictionaryMatcher builds a matcher from dictionary entries.  An empty
// dictionary is rejected; matching against it could only ever return
// nothing, which in practice means a missing vocabulary file.
func NewDictionaryMatcher(entries []DictionaryEntry) (*DictionaryMatcher, error) {
	if len(entries) == 0 {
		return nil, errors.New(errors.ErrCodeNormalizerNoVocabulary,
			"term dictionary is empty")
	}
	terms := make(map[string][]Concept, len(entries))
	for _, e := range entries {
		key := NormalizeTerm(e.Term)
		if key == "" {
			continue
		}
		terms[key] = append(terms[key], e.Concept)
	}
	return &DictionaryMatcher{terms: terms}, nil
}

// Match resolves one mention.  Unknown mentions return an empty slice, not
// an error; missing coverage is expected.
func (m *DictionaryMatcher) Match(ctx context.Context, mention string) ([]Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "match canceled")
	}
	return m.terms[NormalizeTerm(mention)], nil
}
