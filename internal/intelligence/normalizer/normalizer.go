package normalizer

import (
	"context"
	"strings"

	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
)

// Mentions holds the unique lower-cased disease and drug mention texts of
// one record, in first-seen order.
type Mentions struct {
	Disease []string
	Drug    []string
}

// GroupMentions buckets flattened entity rows per record and entity type,
// lower-casing mention text and dropping duplicates within a record.  Entity
// types other than disease and drug are ignored.
func GroupMentions(entities []annotator.Entity) map[string]*Mentions {
	out := make(map[string]*Mentions)
	seen := make(map[string]struct{})
	for _, e := range entities {
		text := strings.ToLower(e.Text)
		key := e.RecordID + "\x1f" + e.Type + "\x1f" + text
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		m := out[e.RecordID]
		if m == nil {
			m = &Mentions{}
			out[e.RecordID] = m
		}
		switch e.Type {
		case annotator.EntityTypeDisease:
			m.Disease = append(m.Disease, text)
		case annotator.EntityTypeDrug:
			m.Drug = append(m.Drug, text)
		}
	}
	return out
}

// Normalizer resolves grouped mentions to CUI code sets through a Matcher,
// keeping only concepts whose semantic types fit the target code space.
type Normalizer struct {
	matcher Matcher
	disease SemanticTypeFilter
	drug    SemanticTypeFilter
	logger  logging.Logger
}

// NewNormalizer constructs a Normalizer with the standard disease and drug
// semantic type filters.
func NewNormalizer(m Matcher, logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Normalizer{
		matcher: m,
		disease: NewSemanticTypeFilter(DiseaseSemanticTypes...),
		drug:    NewSemanticTypeFilter(DrugSemanticTypes...),
		logger:  logger,
	}
}

// CodeSets resolves one record's mentions into its disease and drug CUI
// sets.  Mentions that resolve to nothing contribute nothing; a record whose
// mentions all miss yields two empty sets.
func (n *Normalizer) CodeSets(ctx context.Context, m *Mentions) (disease, drug record.CodeSet, err error) {
	disease, err = n.resolve(ctx, m.Disease, n.disease)
	if err != nil {
		return nil, nil, err
	}
	drug, err = n.resolve(ctx, m.Drug, n.drug)
	if err != nil {
		return nil, nil, err
	}
	return disease, drug, nil
}

// Apply resolves mentions for every grouped record and writes the resulting
// code sets onto the dataset's records.  Records without mentions keep their
// existing sets.
func (n *Normalizer) Apply(ctx context.Context, ds *record.Dataset, grouped map[string]*Mentions) error {
	resolved := 0
	for _, rec := range ds.Records() {
		m, ok := grouped[rec.ID]
		if !ok {
			continue
		}
		disease, drug, err := n.CodeSets(ctx, m)
		if err != nil {
			return err
		}
		rec.DiseaseCodes = disease
		rec.DrugCodes = drug
		resolved++
	}
	n.logger.Info("mention normalization completed",
		logging.Int("records_resolved", resolved),
		logging.Int("records_total", ds.Len()))
	return nil
}

func (n *Normalizer) resolve(ctx context.Context, mentions []string, filter SemanticTypeFilter) (record.CodeSet, error) {
	out := record.NewCodeSet()
	for _, mention := range mentions {
		concepts, err := n.matcher.Match(ctx, mention)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			if filter.Accepts(c.SemanticTypes) {
				out.Add(c.CUI)
			}
		}
	}
	return out, nil
}
