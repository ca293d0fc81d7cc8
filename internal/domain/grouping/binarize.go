package grouping

import (
	"sort"

	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/pkg/errors"
)

// IncidenceMatrix is the binary matrix marking code membership per record.
// Rows follow the input record order; columns are the sorted union of all
// codes seen across the input sets, so identical inputs always yield the same
// layout.
//
// The canonical content is always held sparsely as per-row sorted column
// indices.  In dense mode an explicit row-major float64 matrix is
// materialized as well; both encodings carry identical logical content, the
// choice only affects memory and which metrics can run.
type IncidenceMatrix struct {
	ids    []string
	codes  []string
	rows   [][]int32
	dense  [][]float64
	sparse bool
}

// Binarize builds the incidence matrix for the given per-record code sets.
// ids and sets must be parallel slices in record order.  Records with an
// empty set produce an all-zero row.
func Binarize(ids []string, sets []record.CodeSet, sparse bool) (*IncidenceMatrix, error) {
	if len(ids) != len(sets) {
		return nil, errors.New(errors.ErrCodeGroupingShapeMismatch,
			"binarize: ids and code sets have different lengths")
	}

	universe := make(map[string]struct{})
	for _, s := range sets {
		for code := range s {
			universe[code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(universe))
	for code := range universe {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	codeIndex := make(map[string]int32, len(codes))
	for i, code := range codes {
		codeIndex[code] = int32(i)
	}

	m := &IncidenceMatrix{
		ids:    append([]string(nil), ids...),
		codes:  codes,
		rows:   make([][]int32, len(sets)),
		sparse: sparse,
	}

	for i, s := range sets {
		row := make([]int32, 0, len(s))
		for code := range s {
			row = append(row, codeIndex[code])
		}
		sort.Slice(row, func(a, b int) bool { return row[a] < row[b] })
		m.rows[i] = row
	}

	if !sparse {
		m.dense = make([][]float64, len(sets))
		for i, row := range m.rows {
			dr := make([]float64, len(codes))
			for _, c := range row {
				dr[c] = 1
			}
			m.dense[i] = dr
		}
	}

	return m, nil
}

// NumRows returns the number of records.
func (m *IncidenceMatrix) NumRows() int { return len(m.rows) }

// NumCols returns the size of the code universe.
func (m *IncidenceMatrix) NumCols() int { return len(m.codes) }

// IsSparse reports whether the matrix was built in sparse mode.
func (m *IncidenceMatrix) IsSparse() bool { return m.sparse }

// IDs returns the record identifiers in row order.
func (m *IncidenceMatrix) IDs() []string { return m.ids }

// Codes returns the sorted column universe.
func (m *IncidenceMatrix) Codes() []string { return m.codes }

// Row returns the sorted column indices set in row i.
func (m *IncidenceMatrix) Row(i int) []int32 { return m.rows[i] }

// DenseRow returns the dense float64 encoding of row i.  Only valid when the
// matrix was built in dense mode.
func (m *IncidenceMatrix) DenseRow(i int) []float64 { return m.dense[i] }

// Cell reports whether row i has column j set, regardless of representation.
func (m *IncidenceMatrix) Cell(i, j int) bool {
	row := m.rows[i]
	k := sort.Search(len(row), func(n int) bool { return row[n] >= int32(j) })
	return k < len(row) && row[k] == int32(j)
}

// intersectSorted counts common elements of two ascending index slices.
func intersectSorted(a, b []int32) int {
	n := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
