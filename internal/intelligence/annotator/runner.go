package annotator

import (
	"context"
	"fmt"
	"time"

	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

// Annotator is the single-text annotation dependency of the Runner; the HTTP
// Client satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, text string) (*Annotation, error)
}

// Sink stores one raw annotation document per record.  Implementations live
// in the infrastructure layer (local directory of JSON files, object
// storage).
type Sink interface {
	// Exists reports whether an annotation for the record is already stored.
	Exists(ctx context.Context, recordID string) (bool, error)

	// Put stores the annotation document for the record, replacing any
	// previous version.
	Put(ctx context.Context, recordID string, a *Annotation) error
}

// RunnerConfig controls the batch annotation loop.
type RunnerConfig struct {
	// FailLimit breaks the run after this many consecutive failed records.
	// Zero or negative disables the limit.
	FailLimit int `json:"fail_limit" mapstructure:"fail_limit"`

	// SkipAnnotated skips records the sink already holds a document for,
	// making re-runs resume where the previous run stopped.
	SkipAnnotated bool `json:"skip_annotated" mapstructure:"skip_annotated"`
}

// RunStats summarizes one batch annotation run.
type RunStats struct {
	Processed int
	Skipped   int
	Failed    int
	Elapsed   time.Duration
}

// Runner drives annotation over a whole dataset: one request per record,
// results stored through the sink, with resumability and a consecutive-
// failure circuit breaker.  Individual record failures are logged and
// counted but do not abort the run; only the breaker or a context
// cancellation does.
type Runner struct {
	annotator Annotator
	sink      Sink
	cfg       RunnerConfig
	logger    logging.Logger
}

// NewRunner constructs a Runner.
func NewRunner(a Annotator, sink Sink, cfg RunnerConfig, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runner{annotator: a, sink: sink, cfg: cfg, logger: logger}
}

// Run annotates every record of the dataset in insertion order.
func (r *Runner) Run(ctx context.Context, ds *record.Dataset) (*RunStats, error) {
	start := time.Now()
	total := ds.Len()
	stats := &RunStats{}
	consecutive := 0

	for cnt, rec := range ds.Records() {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, errors.Wrap(err, errors.ErrCodeTimeout, "annotation run canceled")
		}

		r.logger.Info("annotating record",
			logging.String("record_id", rec.ID),
			logging.Int("position", cnt+1),
			logging.Int("total", total),
			logging.String("progress", fmt.Sprintf("%.1f%%", float64(cnt+1)/float64(total)*100)))

		if r.cfg.SkipAnnotated {
			exists, err := r.sink.Exists(ctx, rec.ID)
			if err != nil {
				return stats, err
			}
			if exists {
				stats.Skipped++
				continue
			}
		}

		if err := r.annotateOne(ctx, rec); err != nil {
			stats.Failed++
			consecutive++
			r.logger.Warn("record annotation failed",
				logging.String("record_id", rec.ID),
				logging.Int("consecutive_failures", consecutive),
				logging.Err(err))

			if r.cfg.FailLimit > 0 && consecutive > r.cfg.FailLimit {
				stats.Elapsed = time.Since(start)
				return stats, errors.New(errors.ErrCodeAnnotationFailLimit,
					"consecutive annotation failures exceeded the limit").
					WithDetail(fmt.Sprintf("%d consecutive failures, limit %d",
						consecutive, r.cfg.FailLimit))
			}
			continue
		}

		consecutive = 0
		stats.Processed++
	}

	stats.Elapsed = time.Since(start)
	r.logger.Info("annotation run completed",
		logging.Duration("elapsed", stats.Elapsed),
		logging.Int("processed", stats.Processed),
		logging.Int("skipped", stats.Skipped),
		logging.Int("failed", stats.Failed))
	return stats, nil
}

func (r *Runner) annotateOne(ctx context.Context, rec *record.Record) error {
	a, err := r.annotator.Annotate(ctx, rec.Text)
	if err != nil {
		return err
	}
	return r.sink.Put(ctx, rec.ID, a)
}
