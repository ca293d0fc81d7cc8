// Package record defines the biomedical record domain: clinical-trial
// registrations and publication abstracts carrying the normalized disease and
// drug vocabulary codes extracted from their text.
package record

import (
	"encoding/json"
	"sort"

	"github.com/clinlink/clinlink/pkg/errors"
)

// Source identifies the registry a record originates from.
type Source string

const (
	SourceCTGov  Source = "ctgov"
	SourcePubMed Source = "pubmed"
	SourceEMA    Source = "ema"
)

// IsValid checks whether the source is one of the known registries.
func (s Source) IsValid() bool {
	switch s {
	case SourceCTGov, SourcePubMed, SourceEMA:
		return true
	default:
		return false
	}
}

func (s Source) String() string { return string(s) }

// ParseSource parses a string into a Source, failing on unknown registries.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if src.IsValid() {
		return src, nil
	}
	return "", errors.New(errors.ErrCodeRecordSourceInvalid, "unknown record source: "+s)
}

// CodeSet is a set of normalized vocabulary codes.  The zero value (nil map)
// behaves as an empty set for reads.
type CodeSet map[string]struct{}

// NewCodeSet builds a CodeSet from the given codes.
func NewCodeSet(codes ...string) CodeSet {
	cs := make(CodeSet, len(codes))
	for _, c := range codes {
		cs[c] = struct{}{}
	}
	return cs
}

// Add inserts a code into the set.
func (cs CodeSet) Add(code string) {
	cs[code] = struct{}{}
}

// Contains reports whether code is in the set.
func (cs CodeSet) Contains(code string) bool {
	_, ok := cs[code]
	return ok
}

// Len returns the number of codes in the set.
func (cs CodeSet) Len() int { return len(cs) }

// Empty reports whether the set has no codes.
func (cs CodeSet) Empty() bool { return len(cs) == 0 }

// Sorted returns the codes in ascending order.
func (cs CodeSet) Sorted() []string {
	out := make([]string, 0, len(cs))
	for c := range cs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets contain exactly the same codes.
func (cs CodeSet) Equal(other CodeSet) bool {
	if len(cs) != len(other) {
		return false
	}
	for c := range cs {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted JSON array so that serialized
// records are byte-stable for identical content.
func (cs CodeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.Sorted())
}

// UnmarshalJSON decodes a JSON array of codes.
func (cs *CodeSet) UnmarshalJSON(data []byte) error {
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}
	*cs = NewCodeSet(codes...)
	return nil
}

// Record is one clinical-trial or publication entry.  Identity is the ID;
// records with both code sets empty carry no linkage signal and are filtered
// out before grouping.
type Record struct {
	ID           string  `json:"id"`
	Source       Source  `json:"source"`
	Text         string  `json:"text,omitempty"`
	DiseaseCodes CodeSet `json:"disease_codes"`
	DrugCodes    CodeSet `json:"drug_codes"`
}

// HasCodes reports whether at least one of the two code sets is non-empty.
func (r *Record) HasCodes() bool {
	return !r.DiseaseCodes.Empty() || !r.DrugCodes.Empty()
}

// Dataset is an order-preserving table of records keyed by unique ID.  Row
// order is insertion order; it determines the row layout of the incidence
// matrices built from the dataset.
type Dataset struct {
	ids  []string
	byID map[string]*Record
}

// NewDataset returns an empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{byID: make(map[string]*Record)}
}

// Add appends a record, rejecting duplicate IDs.
func (d *Dataset) Add(r *Record) error {
	if r == nil || r.ID == "" {
		return errors.InvalidParam("record must have a non-empty ID")
	}
	if _, ok := d.byID[r.ID]; ok {
		return errors.New(errors.ErrCodeRecordDuplicateID, "duplicate record ID: "+r.ID)
	}
	d.ids = append(d.ids, r.ID)
	d.byID[r.ID] = r
	return nil
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.ids) }

// Get returns the record with the given ID.
func (d *Dataset) Get(id string) (*Record, error) {
	r, ok := d.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeRecordNotFound, "record not found: "+id)
	}
	return r, nil
}

// Has reports whether a record with the given ID exists.
func (d *Dataset) Has(id string) bool {
	_, ok := d.byID[id]
	return ok
}

// IDs returns the record identifiers in row order.
func (d *Dataset) IDs() []string {
	out := make([]string, len(d.ids))
	copy(out, d.ids)
	return out
}

// Records returns the records in row order.
func (d *Dataset) Records() []*Record {
	out := make([]*Record, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.byID[id])
	}
	return out
}

// DiseaseSets returns the per-record disease code sets in row order.
func (d *Dataset) DiseaseSets() []CodeSet {
	out := make([]CodeSet, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.byID[id].DiseaseCodes)
	}
	return out
}

// DrugSets returns the per-record drug code sets in row order.
func (d *Dataset) DrugSets() []CodeSet {
	out := make([]CodeSet, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.byID[id].DrugCodes)
	}
	return out
}

// Filtered returns a new Dataset containing, in the same relative order, only
// records where at least one code set is non-empty.  Records are shared, not
// copied; the filtered view borrows them.
func (d *Dataset) Filtered() *Dataset {
	out := NewDataset()
	for _, id := range d.ids {
		r := d.byID[id]
		if r.HasCodes() {
			out.ids = append(out.ids, id)
			out.byID[id] = r
		}
	}
	return out
}
