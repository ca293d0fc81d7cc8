// Package grouping implements the record-linkage clustering engine: it turns
// per-record vocabulary-code sets into binary incidence matrices, computes
// pairwise distances under a configurable metric, combines the disease-space
// and drug-space similarity verdicts, and reduces the resulting groups to
// maximal supergroups.
package grouping

import (
	"github.com/clinlink/clinlink/pkg/errors"
)

// Metric selects the pairwise distance function.  The set of accepted values
// is closed; unrecognized names fail at Grouping construction, never at
// computation time.
type Metric string

const (
	// MetricCosine is the cosine distance over binary code-incidence rows.
	// It operates directly on the sparse representation.
	MetricCosine Metric = "cosine"

	// MetricJaccard is the Jaccard (set-overlap) distance.  It requires the
	// dense incidence representation and is therefore memory-risky on large
	// inputs; that failure mode is accepted behavior, surfaced as a distinct
	// resource-exhaustion error rather than silently forcing sparse mode.
	MetricJaccard Metric = "jaccard"
)

// IsValid checks whether the metric is one of the accepted values.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricJaccard:
		return true
	default:
		return false
	}
}

func (m Metric) String() string { return string(m) }

// SparseCapable reports whether the metric can consume the sparse incidence
// representation.
func (m Metric) SparseCapable() bool {
	return m == MetricCosine
}

// ParseMetric parses a string into a Metric, failing fast on unknown names.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if m.IsValid() {
		return m, nil
	}
	return "", errors.New(errors.ErrCodeGroupingUnknownMetric,
		"metric '"+s+"' not recognized").WithDetail("acceptable values are 'cosine' or 'jaccard'")
}
