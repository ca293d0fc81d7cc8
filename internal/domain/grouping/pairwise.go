package grouping

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/clinlink/clinlink/pkg/errors"
)

// DefaultWorkingMemoryMiB is the pairwise working-memory budget applied when
// the caller does not supply one.
const DefaultWorkingMemoryMiB = 1024

// bytesPerDistance is the storage cost of one distance cell.
const bytesPerDistance = 8

// PairwiseOptions carries the chunk-control parameters of the pairwise
// engine.  Both values are passed through to the chunked computation
// unchanged.
type PairwiseOptions struct {
	// WorkingMemoryMiB bounds the memory the engine may dedicate to distance
	// cells at any one time.  Zero or negative selects
	// DefaultWorkingMemoryMiB.
	WorkingMemoryMiB int

	// Parallelism is the optional width used to spread row computation inside
	// a chunk.  Values below 2 keep the computation single-threaded.
	Parallelism int
}

func (o PairwiseOptions) budgetBytes() int64 {
	mib := o.WorkingMemoryMiB
	if mib <= 0 {
		mib = DefaultWorkingMemoryMiB
	}
	return int64(mib) << 20
}

// DistanceMatrix is a full square pairwise distance matrix.  Symmetric by
// construction, zero diagonal.
type DistanceMatrix struct {
	ids  []string
	vals [][]float64
}

// IDs returns the record identifiers indexing both axes.
func (d *DistanceMatrix) IDs() []string { return d.ids }

// At returns the distance between rows i and j.
func (d *DistanceMatrix) At(i, j int) float64 { return d.vals[i][j] }

// Len returns the matrix dimension.
func (d *DistanceMatrix) Len() int { return len(d.vals) }

// DistanceChunk is a contiguous slice of distance-matrix rows produced by the
// chunked engine.  Row k of Vals corresponds to global row Start+k; columns
// span the full record set.
type DistanceChunk struct {
	Start int
	IDs   []string
	Vals  [][]float64
}

// ChunkReduceFunc consumes one distance chunk.  The chunk is discarded by
// the engine after the call returns.
type ChunkReduceFunc func(chunk *DistanceChunk) error

// checkMetricInput validates metric/representation compatibility.
func checkMetricInput(m *IncidenceMatrix, metric Metric) error {
	if !metric.IsValid() {
		return errors.New(errors.ErrCodeGroupingUnknownMetric, "metric '"+metric.String()+"' not recognized")
	}
	if !metric.SparseCapable() && m.IsSparse() {
		return errors.New(errors.ErrCodeGroupingDenseRequired,
			"metric '"+metric.String()+"' cannot operate on sparse input")
	}
	return nil
}

// Full computes the all-pairs distance matrix.  The N×N materialization is
// guarded by the working-memory budget: exceeding it returns a distinct
// GRP_002 resource-exhaustion error before anything is allocated, so the
// caller can fall back to Chunked without losing progress.
func Full(m *IncidenceMatrix, metric Metric, opts PairwiseOptions) (*DistanceMatrix, error) {
	if err := checkMetricInput(m, metric); err != nil {
		return nil, err
	}

	n := m.NumRows()
	need := int64(n) * int64(n) * bytesPerDistance
	if need > opts.budgetBytes() {
		return nil, errors.New(errors.ErrCodeGroupingMemoryExceeded,
			"full pairwise distance matrix exceeds working-memory budget").
			WithDetail(fmt.Sprintf("need %d bytes for %d×%d matrix, budget %d bytes", need, n, n, opts.budgetBytes()))
	}

	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := rowDistance(m, metric, i, j)
			vals[i][j] = d
			vals[j][i] = d
		}
	}
	return &DistanceMatrix{ids: m.IDs(), vals: vals}, nil
}

// PairChunkReduceFunc consumes one lockstep pair of distance chunks covering
// the same global rows.  Both chunks are discarded after the call returns.
type PairChunkReduceFunc func(a, b *DistanceChunk) error

// Chunked computes pairwise distances one bounded slice of rows at a time,
// applying reduce to each slice and discarding the raw distances afterwards.
// Peak memory is O(chunkRows×N) instead of O(N²); the chunk row count is
// derived from the working-memory budget the way scikit-learn sizes
// pairwise_distances_chunked slices.  A budget too small to hold even a
// single row is fatal (GRP_003): chunk size is the only lever and it is
// caller-controlled.
func Chunked(m *IncidenceMatrix, metric Metric, reduce ChunkReduceFunc, opts PairwiseOptions) error {
	return chunkedOver([]*IncidenceMatrix{m}, metric, func(chunks []*DistanceChunk) error {
		return reduce(chunks[0])
	}, opts)
}

// ChunkedPair runs the chunked computation over two row-aligned incidence
// matrices in lockstep: each reduce call receives the chunks covering the
// same global rows in both spaces.  Chunk scheduling is identical to Chunked.
func ChunkedPair(a, b *IncidenceMatrix, metric Metric, reduce PairChunkReduceFunc, opts PairwiseOptions) error {
	if a.NumRows() != b.NumRows() {
		return errors.New(errors.ErrCodeGroupingShapeMismatch,
			"cannot chunk incidence matrices of different row counts").
			WithDetail(fmt.Sprintf("%d rows vs %d rows", a.NumRows(), b.NumRows()))
	}
	return chunkedOver([]*IncidenceMatrix{a, b}, metric, func(chunks []*DistanceChunk) error {
		return reduce(chunks[0], chunks[1])
	}, opts)
}

// chunkedOver is the single chunk-scheduling loop behind Chunked and
// ChunkedPair.  All matrices must share the same row count.
func chunkedOver(ms []*IncidenceMatrix, metric Metric, reduce func([]*DistanceChunk) error, opts PairwiseOptions) error {
	for _, m := range ms {
		if err := checkMetricInput(m, metric); err != nil {
			return err
		}
	}

	ranges, err := chunkRanges(ms[0].NumRows(), opts.budgetBytes())
	if err != nil {
		return err
	}
	chunks := make([]*DistanceChunk, len(ms))
	for _, rng := range ranges {
		for k, m := range ms {
			chunk, err := distanceChunk(m, metric, rng[0], rng[1], opts.Parallelism)
			if err != nil {
				return err
			}
			chunks[k] = chunk
		}
		if err := reduce(chunks); err != nil {
			return err
		}
	}
	return nil
}

// chunkRanges splits [0, n) into contiguous row ranges whose distance rows
// fit the byte budget, sized the way scikit-learn sizes
// pairwise_distances_chunked slices.
func chunkRanges(n int, budget int64) ([][2]int, error) {
	if n == 0 {
		return nil, nil
	}
	chunkRows := int(budget / (int64(n) * bytesPerDistance))
	if chunkRows < 1 {
		return nil, errors.New(errors.ErrCodeGroupingChunkMemoryExceeded,
			"working-memory budget cannot hold a single distance row").
			WithDetail(fmt.Sprintf("row needs %d bytes, budget %d bytes", int64(n)*bytesPerDistance, budget))
	}
	ranges := make([][2]int, 0, (n+chunkRows-1)/chunkRows)
	for start := 0; start < n; start += chunkRows {
		end := start + chunkRows
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges, nil
}

// distanceChunk computes the distance rows for global rows [start, end).
func distanceChunk(m *IncidenceMatrix, metric Metric, start, end, parallelism int) (*DistanceChunk, error) {
	n := m.NumRows()
	vals := make([][]float64, end-start)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	if err := computeChunk(m, metric, start, end, vals, parallelism); err != nil {
		return nil, err
	}
	return &DistanceChunk{Start: start, IDs: m.IDs(), Vals: vals}, nil
}

// computeChunk fills vals with distances for global rows [start, end).
func computeChunk(m *IncidenceMatrix, metric Metric, start, end int, vals [][]float64, parallelism int) error {
	n := m.NumRows()

	fillRow := func(i int) {
		row := vals[i-start]
		for j := 0; j < n; j++ {
			if i == j {
				row[j] = 0
				continue
			}
			row[j] = rowDistance(m, metric, i, j)
		}
	}

	if parallelism < 2 {
		for i := start; i < end; i++ {
			fillRow(i)
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i := start; i < end; i++ {
		i := i
		g.Go(func() error {
			fillRow(i)
			return nil
		})
	}
	return g.Wait()
}

// rowDistance computes the metric distance between rows i and j.  Rows with
// no codes are maximally distant from everything, themselves excluded; the
// diagonal is handled by the callers.
func rowDistance(m *IncidenceMatrix, metric Metric, i, j int) float64 {
	switch metric {
	case MetricJaccard:
		return jaccardDistance(m.DenseRow(i), m.DenseRow(j))
	default:
		return cosineDistance(m.Row(i), m.Row(j))
	}
}

// cosineDistance computes 1 - cosine similarity over binary rows held as
// sorted column indices.  For binary data the norm of a row is the square
// root of its popcount, so no dense expansion is needed.
func cosineDistance(a, b []int32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	inter := intersectSorted(a, b)
	sim := float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
	d := 1 - sim
	if d < 0 {
		return 0
	}
	return d
}

// jaccardDistance computes the set-overlap distance over dense binary rows:
// (ntf + nft) / (ntt + ntf + nft).  Non-zero cells count as true.
func jaccardDistance(x, y []float64) float64 {
	var ntt, ntf, nft int
	for k := range x {
		xt := x[k] != 0
		yt := y[k] != 0
		switch {
		case xt && yt:
			ntt++
		case xt:
			ntf++
		case yt:
			nft++
		}
	}
	denom := ntt + ntf + nft
	if denom == 0 {
		// Two all-zero rows share no evidence; treat as maximally distant.
		return 1
	}
	return float64(ntf+nft) / float64(denom)
}

// SimilarityMatrix is the boolean thresholding of a distance matrix or chunk:
// similar[i][j] = distance[i][j] < threshold.
type SimilarityMatrix struct {
	start int
	ids   []string
	rows  [][]bool
}

// Threshold converts a distance chunk into similarity rows.
func Threshold(chunk *DistanceChunk, threshold float64) *SimilarityMatrix {
	rows := make([][]bool, len(chunk.Vals))
	for i, dr := range chunk.Vals {
		sr := make([]bool, len(dr))
		for j, d := range dr {
			sr[j] = d < threshold
		}
		rows[i] = sr
	}
	return &SimilarityMatrix{start: chunk.Start, ids: chunk.IDs, rows: rows}
}

// ThresholdFull converts a full distance matrix into a similarity matrix.
func ThresholdFull(dm *DistanceMatrix, threshold float64) *SimilarityMatrix {
	chunk := &DistanceChunk{Start: 0, IDs: dm.ids, Vals: dm.vals}
	return Threshold(chunk, threshold)
}

// Start returns the global row offset of the first row.
func (s *SimilarityMatrix) Start() int { return s.start }

// NumRows returns the number of rows held.
func (s *SimilarityMatrix) NumRows() int { return len(s.rows) }

// Row returns the boolean similarity row at local index i.
func (s *SimilarityMatrix) Row(i int) []bool { return s.rows[i] }

// IDs returns the record identifiers indexing the columns.
func (s *SimilarityMatrix) IDs() []string { return s.ids }

// And combines two similarity matrices elementwise; both records must be
// similar in disease space AND drug space to count.  Shapes must match.
func And(a, b *SimilarityMatrix) (*SimilarityMatrix, error) {
	if a.start != b.start || len(a.rows) != len(b.rows) || len(a.ids) != len(b.ids) {
		return nil, errors.New(errors.ErrCodeGroupingShapeMismatch,
			"cannot combine similarity matrices of different shapes")
	}
	rows := make([][]bool, len(a.rows))
	for i := range a.rows {
		if len(a.rows[i]) != len(b.rows[i]) {
			return nil, errors.New(errors.ErrCodeGroupingShapeMismatch,
				"cannot combine similarity rows of different widths")
		}
		r := make([]bool, len(a.rows[i]))
		for j := range r {
			r[j] = a.rows[i][j] && b.rows[i][j]
		}
		rows[i] = r
	}
	return &SimilarityMatrix{start: a.start, ids: a.ids, rows: rows}, nil
}
