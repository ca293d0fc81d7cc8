package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

// dbPool is the slice of pgxpool.Pool this repository uses; narrowed for
// testability.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// RecordRepository is the PostgreSQL implementation of record.Repository.
type RecordRepository struct {
	pool   dbPool
	logger logging.Logger
}

// NewRecordRepository constructs a ready-to-use RecordRepository.
func NewRecordRepository(pool dbPool, logger logging.Logger) *RecordRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RecordRepository{pool: pool, logger: logger}
}

// Save inserts or updates a record by ID.
func (r *RecordRepository) Save(ctx context.Context, rec *record.Record) error {
	disease, drug, err := marshalCodes(rec)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO records (id, source, text, disease_codes, drug_codes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			text = EXCLUDED.text,
			disease_codes = EXCLUDED.disease_codes,
			drug_codes = EXCLUDED.drug_codes,
			updated_at = now()`,
		rec.ID, rec.Source.String(), rec.Text, disease, drug)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot save record")
	}
	return nil
}

// SaveBatch inserts records in one round trip using the COPY protocol.
// Intended for initial ingest; conflicting IDs fail the whole batch.
func (r *RecordRepository) SaveBatch(ctx context.Context, records []*record.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		disease, drug, err := marshalCodes(rec)
		if err != nil {
			return err
		}
		rows = append(rows, []any{rec.ID, rec.Source.String(), rec.Text, disease, drug})
	}

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"records"},
		[]string{"id", "source", "text", "disease_codes", "drug_codes"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot batch-save records")
	}
	r.logger.Debug("records batch saved", logging.Int64("count", n))
	return nil
}

// GetByID returns the record with the given ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*record.Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, source, text, disease_codes, drug_codes
		FROM records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeRecordNotFound,
				"record not found").WithDetail("id: " + id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot load record")
	}
	return rec, nil
}

// UpdateCodes replaces the two code sets of an existing record.
func (r *RecordRepository) UpdateCodes(ctx context.Context, id string, disease, drug record.CodeSet) error {
	diseaseJSON, err := json.Marshal(disease)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode disease codes")
	}
	drugJSON, err := json.Marshal(drug)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode drug codes")
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE records SET disease_codes = $2, drug_codes = $3, updated_at = now()
		WHERE id = $1`, id, diseaseJSON, drugJSON)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot update record codes")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeRecordNotFound,
			"record not found").WithDetail("id: " + id)
	}
	return nil
}

// ListBySource returns records of a single registry in insertion order.
func (r *RecordRepository) ListBySource(ctx context.Context, source record.Source) ([]*record.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, text, disease_codes, drug_codes
		FROM records WHERE source = $1 ORDER BY seq`, source.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot list records")
	}
	defer rows.Close()
	return collectRecords(rows)
}

// LoadDataset returns all records as an ordered Dataset.
func (r *RecordRepository) LoadDataset(ctx context.Context) (*record.Dataset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, text, disease_codes, drug_codes
		FROM records ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot load dataset")
	}
	defer rows.Close()

	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	ds := record.NewDataset()
	for _, rec := range recs {
		if err := ds.Add(rec); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// ListUnannotated returns IDs of records that have no code sets yet.
func (r *RecordRepository) ListUnannotated(ctx context.Context, limit int) ([]string, error) {
	q := `SELECT id FROM records
		WHERE disease_codes = '[]'::jsonb AND drug_codes = '[]'::jsonb
		ORDER BY seq`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot list unannotated records")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot scan record id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot list unannotated records")
	}
	return ids, nil
}

func marshalCodes(rec *record.Record) (disease, drug []byte, err error) {
	disease, err = json.Marshal(rec.DiseaseCodes)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode disease codes")
	}
	drug, err = json.Marshal(rec.DrugCodes)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode drug codes")
	}
	return disease, drug, nil
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		rec         record.Record
		source      string
		diseaseJSON []byte
		drugJSON    []byte
	)
	if err := row.Scan(&rec.ID, &source, &rec.Text, &diseaseJSON, &drugJSON); err != nil {
		return nil, err
	}
	src, err := record.ParseSource(source)
	if err != nil {
		return nil, err
	}
	rec.Source = src

	if err := json.Unmarshal(diseaseJSON, &rec.DiseaseCodes); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot decode disease codes")
	}
	if err := json.Unmarshal(drugJSON, &rec.DrugCodes); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot decode drug codes")
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*record.Record, error) {
	var out []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot scan record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot read records")
	}
	return out, nil
}
