package grouping

import (
	"fmt"

	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

// Space names one of the two code spaces a record is compared in.
type Space string

const (
	SpaceDisease Space = "disease"
	SpaceDrug    Space = "drug"
)

// Grouping is the aggregate owning one clustering run: the dataset name,
// metric and distance threshold chosen at construction, and the lazily
// computed group and supergroup collections with their derived index.
//
// The raw dataset is borrowed, never owned: it is excluded from persisted
// snapshots and must be reattached before anything uncached can be computed.
type Grouping struct {
	name      string
	metric    Metric
	threshold float64
	opts      PairwiseOptions
	logger    logging.Logger

	data *record.Dataset

	groups         []Group
	groupsSet      bool
	supergroups    []Group
	supergroupsSet bool
	index          *Index
}

// Option configures a Grouping at construction.
type Option func(*Grouping)

// WithLogger injects the structured logger used for progress reporting.
func WithLogger(l logging.Logger) Option {
	return func(g *Grouping) { g.logger = l }
}

// WithWorkingMemory sets the pairwise working-memory budget in MiB.
func WithWorkingMemory(mib int) Option {
	return func(g *Grouping) { g.opts.WorkingMemoryMiB = mib }
}

// WithParallelism sets the chunk-internal parallelism width.
func WithParallelism(width int) Option {
	return func(g *Grouping) { g.opts.Parallelism = width }
}

// New constructs a Grouping.  The metric is validated here, before any
// computation begins; unrecognized values fail immediately.
func New(name string, data *record.Dataset, metric Metric, threshold float64, opts ...Option) (*Grouping, error) {
	if !metric.IsValid() {
		return nil, errors.New(errors.ErrCodeGroupingUnknownMetric,
			"metric '"+metric.String()+"' not recognized").
			WithDetail("acceptable values are 'cosine' or 'jaccard'")
	}
	g := &Grouping{
		name:      name,
		metric:    metric,
		threshold: threshold,
		data:      data,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns the dataset name this grouping was built for.
func (g *Grouping) Name() string { return g.name }

// Metric returns the configured distance metric.
func (g *Grouping) Metric() Metric { return g.metric }

// Threshold returns the configured distance threshold.
func (g *Grouping) Threshold() float64 { return g.threshold }

// HasData reports whether a raw dataset is currently attached.
func (g *Grouping) HasData() bool { return g.data != nil }

// AttachData reattaches a raw dataset, e.g. after loading a snapshot.
// Cached results are kept; only uncomputed state needs the data.
func (g *Grouping) AttachData(data *record.Dataset) { g.data = data }

// DetachData drops the borrowed dataset reference.
func (g *Grouping) DetachData() { g.data = nil }

// Invalidate discards all computed state so the next access recomputes it.
// Derived state is never recomputed implicitly.
func (g *Grouping) Invalidate() {
	g.groups = nil
	g.groupsSet = false
	g.supergroups = nil
	g.supergroupsSet = false
	g.index = nil
}

// Groups returns all groups found within the data, computing them on first
// access.  The full pairwise path is tried first; when it reports that the
// distance matrix would not fit the working-memory budget the engine falls
// back to the chunked path exactly once.  A chunked-path budget failure
// propagates.  No partial state is committed on failure.
func (g *Grouping) Groups() ([]Group, error) {
	if g.groupsSet {
		return g.groups, nil
	}
	if g.data == nil {
		return nil, errors.New(errors.ErrCodeGroupingMissingData,
			"cannot compute groups without attached data")
	}

	groups, err := g.createGroups()
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeGroupingMemoryExceeded) {
			return nil, err
		}
		g.logger.Warn("insufficient memory; moving to chunked group creation",
			logging.String("name", g.name),
			logging.Err(err))
		groups, err = g.createGroupsChunked()
		if err != nil {
			return nil, err
		}
	}

	g.groups = groups
	g.groupsSet = true
	g.index = nil
	return g.groups, nil
}

// Supergroups returns all groups that are not subsets of other groups,
// computing (and caching) them on first access.
func (g *Grouping) Supergroups() ([]Group, error) {
	if g.supergroupsSet {
		return g.supergroups, nil
	}
	groups, err := g.Groups()
	if err != nil {
		return nil, err
	}
	g.logger.Info("creating supergroups; this might take a while",
		logging.String("name", g.name),
		logging.Int("groups", len(groups)))

	g.supergroups = reduceSupergroups(groups)
	g.supergroupsSet = true
	return g.supergroups, nil
}

// Index returns the derived lookup views over the group collection.
func (g *Grouping) Index() (*Index, error) {
	if g.index != nil {
		return g.index, nil
	}
	groups, err := g.Groups()
	if err != nil {
		return nil, err
	}
	g.index = BuildIndex(groups)
	return g.index, nil
}

// DistanceMatrixFor computes and returns the full distance matrix for one
// code space.  Intended for inspection and debugging; it bypasses the group
// cache and is subject to the same working-memory budget as group creation.
func (g *Grouping) DistanceMatrixFor(space Space) (*DistanceMatrix, error) {
	if g.data == nil {
		return nil, errors.New(errors.ErrCodeGroupingMissingData,
			"cannot compute distances without attached data")
	}
	filtered := g.data.Filtered()
	m, err := g.binarizeSpace(filtered, space)
	if err != nil {
		return nil, err
	}
	return Full(m, g.metric, g.opts)
}

// binarizeSpace builds the incidence matrix for one code space of the
// filtered dataset, using the representation the metric supports.
func (g *Grouping) binarizeSpace(filtered *record.Dataset, space Space) (*IncidenceMatrix, error) {
	var sets []record.CodeSet
	switch space {
	case SpaceDrug:
		sets = filtered.DrugSets()
	default:
		sets = filtered.DiseaseSets()
	}
	return Binarize(filtered.IDs(), sets, g.metric.SparseCapable())
}

// denseIncidenceBytes estimates the dense incidence materialization cost for
// metrics that cannot run sparse.  Sparse-capable metrics cost nothing here.
func (g *Grouping) denseIncidenceBytes(filtered *record.Dataset) int64 {
	if g.metric.SparseCapable() {
		return 0
	}
	universe := make(map[string]struct{})
	for _, r := range filtered.Records() {
		for c := range r.DiseaseCodes {
			universe[c] = struct{}{}
		}
		for c := range r.DrugCodes {
			universe[c] = struct{}{}
		}
	}
	return int64(filtered.Len()) * int64(len(universe)) * bytesPerDistance
}

// createGroups runs the full-matrix path:
//
//  1. binarize the disease and drug code sets of the filtered data,
//  2. compute all-pairs distances in each space and threshold them,
//  3. AND the two similarity matrices and extract candidate rows,
//  4. deduplicate candidates into the group collection.
func (g *Grouping) createGroups() ([]Group, error) {
	filtered := g.data.Filtered()
	n := filtered.Len()

	g.logger.Info("creating groups; this might take a while",
		logging.String("name", g.name),
		logging.String("metric", g.metric.String()),
		logging.Float64("threshold", g.threshold),
		logging.Int("records", n))

	// Dense-only metrics pay for the incidence materialization on top of the
	// distance matrix; account for both before allocating anything.
	if dense := g.denseIncidenceBytes(filtered); dense > 0 {
		need := dense + 2*int64(n)*int64(n)*bytesPerDistance
		if need > g.opts.budgetBytes() {
			return nil, errors.New(errors.ErrCodeGroupingMemoryExceeded,
				"dense pairwise computation exceeds working-memory budget").
				WithDetail(fmt.Sprintf("need %d bytes, budget %d bytes", need, g.opts.budgetBytes()))
		}
	}

	findSimilar := func(space Space) (*SimilarityMatrix, error) {
		m, err := g.binarizeSpace(filtered, space)
		if err != nil {
			return nil, err
		}
		dm, err := Full(m, g.metric, g.opts)
		if err != nil {
			return nil, err
		}
		return ThresholdFull(dm, g.threshold), nil
	}

	simDisease, err := findSimilar(SpaceDisease)
	if err != nil {
		return nil, err
	}
	simDrug, err := findSimilar(SpaceDrug)
	if err != nil {
		return nil, err
	}

	combined, err := And(simDisease, simDrug)
	if err != nil {
		return nil, err
	}
	return dedupGroups(extractCandidates(combined)), nil
}

// createGroupsChunked runs the memory-bounded path: the same computation as
// createGroups, but distances are produced one row slice at a time for both
// spaces in lockstep and reduced to candidate groups immediately.
// Candidates from all chunks are pooled and deduplicated once after the full
// scan; a group's rows normally fall within one chunk, but identical groups
// may still surface in different chunks, so per-chunk deduplication would be
// unsound.
func (g *Grouping) createGroupsChunked() ([]Group, error) {
	filtered := g.data.Filtered()
	n := filtered.Len()

	g.logger.Info("creating groups chunkwise; this might take a while",
		logging.String("name", g.name),
		logging.String("metric", g.metric.String()),
		logging.Float64("threshold", g.threshold),
		logging.Int("records", n))

	if dense := g.denseIncidenceBytes(filtered); dense > g.opts.budgetBytes() {
		// Chunking bounds the distance rows, not the dense incidence input;
		// if that alone busts the budget there is no lever left.
		return nil, errors.New(errors.ErrCodeGroupingChunkMemoryExceeded,
			"dense incidence matrix alone exceeds working-memory budget").
			WithDetail(fmt.Sprintf("need %d bytes, budget %d bytes", dense, g.opts.budgetBytes()))
	}

	disease, err := g.binarizeSpace(filtered, SpaceDisease)
	if err != nil {
		return nil, err
	}
	drug, err := g.binarizeSpace(filtered, SpaceDrug)
	if err != nil {
		return nil, err
	}

	var candidates []Group
	chunkIdx, processed := 0, 0
	err = ChunkedPair(disease, drug, g.metric, func(disChunk, drugChunk *DistanceChunk) error {
		combined, err := And(Threshold(disChunk, g.threshold), Threshold(drugChunk, g.threshold))
		if err != nil {
			return err
		}
		found := extractCandidates(combined)
		candidates = append(candidates, found...)

		processed += len(disChunk.Vals)
		g.logger.Info("processed chunk",
			logging.Int("chunk", chunkIdx),
			logging.Int("records_processed", processed),
			logging.Float64("percent", float64(processed)/float64(n)*100),
			logging.Int("candidates", len(found)))
		chunkIdx++
		return nil
	}, g.opts)
	if err != nil {
		return nil, err
	}

	return dedupGroups(candidates), nil
}
