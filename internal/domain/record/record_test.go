package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/pkg/errors"
)

func TestParseSource(t *testing.T) {
	s, err := ParseSource("ctgov")
	assert.NoError(t, err)
	assert.Equal(t, SourceCTGov, s)

	_, err = ParseSource("arxiv")
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecordSourceInvalid))
}

func TestCodeSet_Basics(t *testing.T) {
	cs := NewCodeSet("C2", "C1", "C2")
	assert.Equal(t, 2, cs.Len())
	assert.True(t, cs.Contains("C1"))
	assert.False(t, cs.Contains("C9"))
	assert.Equal(t, []string{"C1", "C2"}, cs.Sorted())

	cs.Add("C0")
	assert.Equal(t, []string{"C0", "C1", "C2"}, cs.Sorted())

	var nilSet CodeSet
	assert.True(t, nilSet.Empty())
	assert.False(t, nilSet.Contains("x"))
}

func TestCodeSet_Equal(t *testing.T) {
	assert.True(t, NewCodeSet("a", "b").Equal(NewCodeSet("b", "a")))
	assert.False(t, NewCodeSet("a").Equal(NewCodeSet("a", "b")))
	assert.False(t, NewCodeSet("a").Equal(NewCodeSet("c")))
	assert.True(t, NewCodeSet().Equal(nil))
}

func TestCodeSet_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(NewCodeSet("z", "a", "m"))
	require.NoError(t, err)
	// Sorted for byte stability.
	assert.Equal(t, `["a","m","z"]`, string(data))

	var cs CodeSet
	require.NoError(t, json.Unmarshal(data, &cs))
	assert.True(t, cs.Equal(NewCodeSet("a", "m", "z")))
}

func TestRecord_HasCodes(t *testing.T) {
	r := &Record{ID: "NCT1"}
	assert.False(t, r.HasCodes())
	r.DiseaseCodes = NewCodeSet("C01")
	assert.True(t, r.HasCodes())

	r2 := &Record{ID: "PM1", DrugCodes: NewCodeSet("C99")}
	assert.True(t, r2.HasCodes())
}

func TestDataset_AddAndOrder(t *testing.T) {
	d := NewDataset()
	require.NoError(t, d.Add(&Record{ID: "b"}))
	require.NoError(t, d.Add(&Record{ID: "a"}))
	require.NoError(t, d.Add(&Record{ID: "c"}))

	// Insertion order, not lexical order.
	assert.Equal(t, []string{"b", "a", "c"}, d.IDs())
	assert.Equal(t, 3, d.Len())
	assert.True(t, d.Has("a"))

	err := d.Add(&Record{ID: "a"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecordDuplicateID))

	err = d.Add(&Record{})
	assert.Error(t, err)
}

func TestDataset_Get(t *testing.T) {
	d := NewDataset()
	require.NoError(t, d.Add(&Record{ID: "x", Source: SourcePubMed}))

	r, err := d.Get("x")
	require.NoError(t, err)
	assert.Equal(t, SourcePubMed, r.Source)

	_, err = d.Get("missing")
	assert.True(t, errors.IsCode(err, errors.ErrCodeRecordNotFound))
}

func TestDataset_Filtered(t *testing.T) {
	d := NewDataset()
	require.NoError(t, d.Add(&Record{ID: "keep1", DiseaseCodes: NewCodeSet("d1")}))
	require.NoError(t, d.Add(&Record{ID: "drop"}))
	require.NoError(t, d.Add(&Record{ID: "keep2", DrugCodes: NewCodeSet("r1")}))

	f := d.Filtered()
	assert.Equal(t, []string{"keep1", "keep2"}, f.IDs())
	// Original untouched.
	assert.Equal(t, 3, d.Len())
	// Records are shared.
	orig, _ := d.Get("keep1")
	filt, _ := f.Get("keep1")
	assert.Same(t, orig, filt)
}

func TestDataset_CodeSetsInRowOrder(t *testing.T) {
	d := NewDataset()
	require.NoError(t, d.Add(&Record{ID: "1", DiseaseCodes: NewCodeSet("d1"), DrugCodes: NewCodeSet("r1")}))
	require.NoError(t, d.Add(&Record{ID: "2", DiseaseCodes: NewCodeSet("d2"), DrugCodes: NewCodeSet("r2")}))

	dis := d.DiseaseSets()
	drug := d.DrugSets()
	require.Len(t, dis, 2)
	assert.True(t, dis[0].Contains("d1"))
	assert.True(t, dis[1].Contains("d2"))
	assert.True(t, drug[0].Contains("r1"))
	assert.True(t, drug[1].Contains("r2"))
}
