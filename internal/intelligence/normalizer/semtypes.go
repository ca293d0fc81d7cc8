// Package normalizer maps entity mention text to normalized UMLS concept
// codes (CUIs), filtered to the semantic types relevant for disease and drug
// matching.
package normalizer

// UMLS semantic type identifiers accepted per code space.  Concepts whose
// semantic types fall outside the space's list are dropped during matching.
var (
	DiseaseSemanticTypes = []string{
		"T020", "T190", "T049", "T019", "T047", "T050",
		"T033", "T037", "T048", "T191", "T046", "T184",
	}

	DrugSemanticTypes = []string{
		"T116", "T195", "T123", "T122", "T103", "T120", "T104",
		"T200", "T196", "T126", "T131", "T125", "T129", "T130",
		"T197", "T114", "T109", "T121", "T192", "T127",
	}
)

// SemanticTypeFilter is a membership set over semantic type identifiers.
type SemanticTypeFilter map[string]struct{}

// NewSemanticTypeFilter builds a filter accepting the given types.
func NewSemanticTypeFilter(types ...string) SemanticTypeFilter {
	f := make(SemanticTypeFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

// Accepts reports whether any of the concept's semantic types pass the
// filter.  An empty filter accepts everything.
func (f SemanticTypeFilter) Accepts(types []string) bool {
	if len(f) == 0 {
		return true
	}
	for _, t := range types {
		if _, ok := f[t]; ok {
			return true
		}
	}
	return false
}
