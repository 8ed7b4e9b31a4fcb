package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Resource is one {id, type, attributes, relationships} entry with its
// attributes left undecoded.
type Resource struct {
	ID            string                     `json:"id"`
	Type          string                     `json:"type"`
	Attributes    json.RawMessage            `json:"attributes"`
	Relationships map[string]json.RawMessage `json:"relationships,omitempty"`
}

type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PerPage  int   `json:"perPage"`
	LastPage int   `json:"lastPage"`
}

// Document is the response envelope. Exactly one of List or Single is set
// after decoding, depending on whether data held an array or an object.
type Document struct {
	List   []Resource
	Single *Resource
	Meta   *Meta
}

var errEmptyData = errors.New("response has no data")

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data json.RawMessage `json:"data"`
		Meta *Meta           `json:"meta"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Meta = raw.Meta

	data := bytes.TrimSpace(raw.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return errEmptyData
	case data[0] == '[':
		d.List = []Resource{}
		return json.Unmarshal(data, &d.List)
	case data[0] == '{':
		d.Single = &Resource{}
		return json.Unmarshal(data, d.Single)
	default:
		return fmt.Errorf("unexpected data shape %q", data[:1])
	}
}

// Record flattens a resource into its id and decoded attributes.
type Record[T any] struct {
	ID    string
	Attrs T
}

type ListResponse[T any] struct {
	Items []Record[T]
	// Meta is nil when the server sent no paging information.
	Meta *Meta
}

// Total reports the server total when meta is present.
func (l *ListResponse[T]) Total() (int64, bool) {
	if l.Meta == nil {
		return 0, false
	}
	return l.Meta.Total, true
}

type SingleResponse[T any] struct {
	Record[T]
	Relationships map[string]json.RawMessage
}

func decodeRecord[T any](r Resource) (Record[T], error) {
	rec := Record[T]{ID: r.ID}
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &rec.Attrs); err != nil {
			return rec, fmt.Errorf("decode %s %s: %w", r.Type, r.ID, err)
		}
	}
	return rec, nil
}

// DecodeList converts a list document into typed records.
func DecodeList[T any](doc *Document) (*ListResponse[T], error) {
	if doc.List == nil {
		return nil, errors.New("expected a list document")
	}
	out := &ListResponse[T]{Items: make([]Record[T], 0, len(doc.List)), Meta: doc.Meta}
	for _, r := range doc.List {
		rec, err := decodeRecord[T](r)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, rec)
	}
	return out, nil
}

// DecodeSingle converts a single-resource document into a typed record.
func DecodeSingle[T any](doc *Document) (*SingleResponse[T], error) {
	if doc.Single == nil {
		return nil, errors.New("expected a single resource document")
	}
	rec, err := decodeRecord[T](*doc.Single)
	if err != nil {
		return nil, err
	}
	return &SingleResponse[T]{Record: rec, Relationships: doc.Single.Relationships}, nil
}
