package normalizer

import (
	"encoding/json"
	"os"

	"github.com/clinlink/clinlink/pkg/errors"
)

// LoadDictionaryFile reads a vocabulary file: a JSON array of
// DictionaryEntry rows mapping surface terms to concepts.
func LoadDictionaryFile(path string) ([]DictionaryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNormalizerNoVocabulary,
			"cannot read vocabulary file")
	}

	var entries []DictionaryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization,
			"cannot parse vocabulary file")
	}
	return entries, nil
}

// NewDictionaryMatcherFromFile loads a vocabulary file and builds a matcher
// from it.
func NewDictionaryMatcherFromFile(path string) (*DictionaryMatcher, error) {
	entries, err := LoadDictionaryFile(path)
	if err != nil {
		return nil, err
	}
	return NewDictionaryMatcher(entries)
}
