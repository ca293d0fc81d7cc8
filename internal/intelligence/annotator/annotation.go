// Package annotator extracts disease and drug entity mentions from record
// text via a remote biomedical NER service and turns the service's raw
// annotation documents into flat entity rows ready for normalization.
package annotator

import (
	"encoding/json"
	"fmt"

	"github.com/clinlink/clinlink/pkg/errors"
)

// Entity types the downstream pipeline consumes.  The NER service emits more
// (genes, species, mutations); everything else is carried through untouched
// and filtered later.
const (
	EntityTypeDisease = "disease"
	EntityTypeDrug    = "drug"
)

// Span is a half-open byte range into the annotated text.
type Span struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Denotation is one entity mention as reported by the NER service.
type Denotation struct {
	Span Span     `json:"span"`
	Obj  string   `json:"obj"`
	IDs  []string `json:"id"`
}

// Annotation is the raw NER document for one record: the text that was
// annotated plus every mention found in it.
type Annotation struct {
	Text        string       `json:"text"`
	Denotations []Denotation `json:"denotations"`
}

// Entity is one flattened mention row: the resolved surface text plus the
// span, type and vocabulary IDs it came with.
type Entity struct {
	RecordID  string   `json:"record_id"`
	Text      string   `json:"entity_text"`
	Type      string   `json:"entity_type"`
	SpanBegin int      `json:"span_begin"`
	SpanEnd   int      `json:"span_end"`
	IDs       []string `json:"entity_ids"`
}

// ParseAnnotation decodes a raw NER document.
func ParseAnnotation(data []byte) (*Annotation, error) {
	var a Annotation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationDecodeFailed,
			"cannot decode annotation document")
	}
	return &a, nil
}

// Entities flattens the annotation into one row per mention, resolving each
// span against the annotated text.  A span reaching outside the text is a
// corrupt document and fails the whole flattening.
func (a *Annotation) Entities(recordID string) ([]Entity, error) {
	out := make([]Entity, 0, len(a.Denotations))
	for _, d := range a.Denotations {
		if d.Span.Begin < 0 || d.Span.End > len(a.Text) || d.Span.Begin > d.Span.End {
			return nil, errors.New(errors.ErrCodeAnnotationInvalidSpan,
				"entity span outside annotated text").
				WithDetail(fmt.Sprintf("record %s: span [%d, %d) in text of length %d",
					recordID, d.Span.Begin, d.Span.End, len(a.Text)))
		}
		out = append(out, Entity{
			RecordID:  recordID,
			Text:      a.Text[d.Span.Begin:d.Span.End],
			Type:      d.Obj,
			SpanBegin: d.Span.Begin,
			SpanEnd:   d.Span.End,
			IDs:       d.IDs,
		})
	}
	return out, nil
}
