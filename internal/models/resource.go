package models

import "strconv"

// Resource is the wire shape of a single record: {id, type, attributes, relationships}.
type Resource struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Attributes    any            `json:"attributes"`
	Relationships map[string]any `json:"relationships,omitempty"`
}

type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PerPage  int   `json:"perPage"`
	LastPage int   `json:"lastPage"`
}

// Document wraps either one resource or a list of them.
type Document struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

func NewResource(resourceType string, id uint, attributes any) Resource {
	return Resource{
		ID:         strconv.FormatUint(uint64(id), 10),
		Type:       resourceType,
		Attributes: attributes,
	}
}

func (r Resource) WithRelationship(name string, value any) Resource {
	if r.Relationships == nil {
		r.Relationships = map[string]any{}
	}
	r.Relationships[name] = value
	return r
}

func NewMeta(total int64, params ListParams) *Meta {
	last := 0
	if params.PerPage > 0 {
		last = int((total + int64(params.PerPage) - 1) / int64(params.PerPage))
	}
	return &Meta{
		Total:    total,
		Page:     params.Page,
		PerPage:  params.PerPage,
		LastPage: last,
	}
}

// ListDocument builds a list document by mapping every item to a resource.
func ListDocument[T any](items []T, total int64, params ListParams, toResource func(T) Resource) Document {
	data := make([]Resource, 0, len(items))
	for _, item := range items {
		data = append(data, toResource(item))
	}
	return Document{Data: data, Meta: NewMeta(total, params)}
}

func SingleDocument(r Resource) Document {
	return Document{Data: r}
}

// Resource type names.
const (
	TypeAssessment = "assessments"
	TypeQuestion   = "questions"
	TypeSubject    = "subjects"
	TypeCategory   = "categories"
	TypePassage    = "passages"
	TypeGroup      = "groups"
	TypeUser       = "users"
	TypeAttempt    = "attempts"
	TypeResult     = "results"
)
