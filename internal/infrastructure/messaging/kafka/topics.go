// Package kafka carries the pipeline's events: record ingestion, annotation
// job dispatch and completion, and grouping completion.  The producer and
// consumer wrap segmentio/kafka-go writers and readers behind narrow
// interfaces.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinlink/clinlink/pkg/errors"
)

// Topic constants.
const (
	TopicRecordIngested      = "record.ingested"
	TopicAnnotationRequested = "annotation.requested"
	TopicAnnotationCompleted = "annotation.completed"
	TopicGroupingCompleted   = "grouping.completed"
)

// schemaVersion is bumped when an envelope payload changes incompatibly.
const schemaVersion = "1"

// EventEnvelope standardizes event messages across topics.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// RecordIngestedPayload announces a newly persisted record.
type RecordIngestedPayload struct {
	RecordID string    `json:"record_id"`
	Source   string    `json:"source"`
	SavedAt  time.Time `json:"saved_at"`
}

// AnnotationRequestedPayload asks a worker to annotate one record.
type AnnotationRequestedPayload struct {
	RecordID string `json:"record_id"`
}

// AnnotationCompletedPayload reports one finished annotation job.
type AnnotationCompletedPayload struct {
	RecordID     string `json:"record_id"`
	EntityCount  int    `json:"entity_count"`
	DiseaseCodes int    `json:"disease_codes"`
	DrugCodes    int    `json:"drug_codes"`
	Failed       bool   `json:"failed"`
}

// GroupingCompletedPayload announces a stored grouping snapshot.
type GroupingCompletedPayload struct {
	SnapshotKey string `json:"snapshot_key"`
	Groups      int    `json:"groups"`
	Supergroups int    `json:"supergroups"`
}

// NewEnvelope wraps a payload into a versioned envelope with a fresh event
// ID.
func NewEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       raw,
	}, nil
}

// DecodeEnvelope parses an envelope off the wire.
func DecodeEnvelope(data []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot decode event envelope")
	}
	return &env, nil
}

// DecodePayload parses the envelope's payload into the given struct.
func (e *EventEnvelope) DecodePayload(dest interface{}) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot decode event payload").
			WithDetail("event_type: " + e.EventType)
	}
	return nil
}
