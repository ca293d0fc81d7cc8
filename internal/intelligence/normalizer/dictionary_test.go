package normalizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/pkg/errors"
)

func TestLoadDictionaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	content := `[
		{"term": "Aspirin", "concept": {"cui": "C0004057", "preferred_term": "aspirin", "semantic_types": ["T121"]}},
		{"term": "Migraine Disorders", "concept": {"cui": "C0149931", "preferred_term": "migraine", "semantic_types": ["T047"]}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := LoadDictionaryFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "C0004057", entries[0].Concept.CUI)
}

func TestLoadDictionaryFile_Missing(t *testing.T) {
	_, err := LoadDictionaryFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNormalizerNoVocabulary, errors.GetCode(err))
}

func TestLoadDictionaryFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))

	_, err := LoadDictionaryFile(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSerialization, errors.GetCode(err))
}

func TestNewDictionaryMatcherFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	content := `[{"term": "Aspirin", "concept": {"cui": "C0004057", "preferred_term": "aspirin", "semantic_types": ["T121"]}}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := NewDictionaryMatcherFromFile(path)
	require.NoError(t, err)

	concepts, err := m.Match(context.Background(), "ASPIRIN")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "C0004057", concepts[0].CUI)
}
