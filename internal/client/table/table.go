// Package table is a headless data table: column descriptors, one-row-at-a-time
// inline editing, record creation hooks and a plain text renderer.
// A Table is not safe for concurrent use.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/pager"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type ColumnType string

const (
	Text   ColumnType = "text"
	Number ColumnType = "number"
	Date   ColumnType = "date"
	Enum   ColumnType = "enum"
	User   ColumnType = "user"
)

const (
	NoData   = "No data found"
	DateForm = "2006-01-02"
)

type Column struct {
	Label      string
	Key        string
	Type       ColumnType
	CanEdit    bool
	Searchable bool
	EnumValues []string
	// Render overrides the default cell text.
	Render func(value any, row Row) string
	// Rule is a validator tag applied to edited values, e.g. "required,max=100".
	Rule string
}

type Row struct {
	ID   string
	Data map[string]any
}

var (
	ErrNotEditing  = errors.New("no row is being edited")
	ErrRowNotFound = errors.New("row not found")
	ErrReadOnly    = errors.New("column is not editable")
	ErrNoAddAction = errors.New("table has no add action")
)

type Config struct {
	Columns []Column
	// OnUpdated receives the merged row when an edit is saved.
	OnUpdated func(id string, data map[string]any) error
	// OnSaved receives a new record when no Form is configured.
	OnSaved func(data map[string]any) error
	// Form collects a new record itself, replacing OnSaved.
	Form func(seed map[string]any) error
}

// SearchBar is the state of the column selector, match type and term.
type SearchBar struct {
	Column string
	Type   client.SearchType
	Term   string
}

// Criteria converts the bar into pager search criteria.
func (s SearchBar) Criteria() pager.SearchCriteria {
	return pager.SearchCriteria{Type: s.Type, Column: s.Column}
}

type edit struct {
	id    string
	draft map[string]any
}

type Table struct {
	cfg      Config
	rows     []Row
	loading  bool
	editing  *edit
	search   SearchBar
	validate *validator.Validator
}

func New(cfg Config) *Table {
	t := &Table{cfg: cfg, validate: validator.New()}
	if cols := t.SearchableColumns(); len(cols) > 0 {
		t.search = SearchBar{Column: cols[0].Key, Type: client.SearchContains}
	}
	return t
}

func (t *Table) Columns() []Column {
	return t.cfg.Columns
}

// SetRows replaces the dataset. An edit on a row that disappeared is dropped.
func (t *Table) SetRows(rows []Row) {
	t.rows = rows
	if t.editing != nil {
		if _, ok := t.find(t.editing.id); !ok {
			t.editing = nil
		}
	}
}

func (t *Table) Rows() []Row {
	return t.rows
}

// SetLoading toggles the loading flag; rows stay in place.
func (t *Table) SetLoading(loading bool) {
	t.loading = loading
}

func (t *Table) Loading() bool {
	return t.loading
}

func (t *Table) SearchableColumns() []Column {
	var out []Column
	for _, c := range t.cfg.Columns {
		if c.Searchable {
			out = append(out, c)
		}
	}
	return out
}

func (t *Table) Search() SearchBar {
	return t.search
}

func (t *Table) SetSearch(bar SearchBar) error {
	if bar.Column != "" {
		col, ok := t.column(bar.Column)
		if !ok || !col.Searchable {
			return fmt.Errorf("column %q is not searchable", bar.Column)
		}
	}
	if bar.Type == "" {
		bar.Type = client.SearchContains
	}
	t.search = bar
	return nil
}

// BeginEdit puts row id into edit mode. Any other pending edit is discarded.
func (t *Table) BeginEdit(id string) error {
	row, ok := t.find(id)
	if !ok {
		return ErrRowNotFound
	}
	t.editing = &edit{id: id, draft: maps.Clone(row.Data)}
	if t.editing.draft == nil {
		t.editing.draft = map[string]any{}
	}
	return nil
}

// Editing returns the id of the row in edit mode.
func (t *Table) Editing() (string, bool) {
	if t.editing == nil {
		return "", false
	}
	return t.editing.id, true
}

func (t *Table) Draft() map[string]any {
	if t.editing == nil {
		return nil
	}
	return maps.Clone(t.editing.draft)
}

// SetCell coerces raw into the column type, validates it and stores it in the draft.
func (t *Table) SetCell(key, raw string) error {
	if t.editing == nil {
		return ErrNotEditing
	}
	col, ok := t.column(key)
	if !ok {
		return fmt.Errorf("unknown column %q", key)
	}
	if !col.CanEdit {
		return ErrReadOnly
	}

	value, err := coerce(col, raw)
	if err != nil {
		return validator.ValidationErrors{{Field: key, Message: err.Error(), Value: raw, Rule: string(col.Type)}}
	}
	if col.Rule != "" {
		if err := t.validate.Var(value, col.Rule); err != nil {
			errs := validator.ToValidationErrors(err)
			for i := range errs {
				errs[i].Field = key
			}
			if len(errs) > 0 {
				return errs
			}
			return err
		}
	}
	t.editing.draft[key] = value
	return nil
}

// Save hands the merged row to OnUpdated and leaves edit mode. On error the
// edit stays open.
func (t *Table) Save() error {
	if t.editing == nil {
		return ErrNotEditing
	}
	merged := maps.Clone(t.editing.draft)
	if t.cfg.OnUpdated != nil {
		if err := t.cfg.OnUpdated(t.editing.id, merged); err != nil {
			return err
		}
	}
	for i := range t.rows {
		if t.rows[i].ID == t.editing.id {
			t.rows[i].Data = merged
		}
	}
	t.editing = nil
	return nil
}

func (t *Table) Cancel() {
	t.editing = nil
}

// Add creates a record through Form when configured, otherwise through OnSaved.
func (t *Table) Add(data map[string]any) error {
	switch {
	case t.cfg.Form != nil:
		return t.cfg.Form(data)
	case t.cfg.OnSaved != nil:
		return t.cfg.OnSaved(data)
	default:
		return ErrNoAddAction
	}
}

// Render writes the table as aligned text.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := make([]string, 0, len(t.cfg.Columns))
	for _, c := range t.cfg.Columns {
		headers = append(headers, strings.ToUpper(c.Label))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	if len(t.rows) == 0 {
		fmt.Fprintln(tw, NoData)
	}
	for _, row := range t.rows {
		data := row.Data
		marker := ""
		if t.editing != nil && t.editing.id == row.ID {
			data = t.editing.draft
			marker = "*"
		}
		cells := make([]string, 0, len(t.cfg.Columns))
		for _, c := range t.cfg.Columns {
			cells = append(cells, cellText(c, data[c.Key], row))
		}
		if marker != "" && len(cells) > 0 {
			cells[0] = marker + cells[0]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if t.loading {
		fmt.Fprintln(tw, "Loading...")
	}
	return tw.Flush()
}

func (t *Table) find(id string) (Row, bool) {
	for _, r := range t.rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

func (t *Table) column(key string) (Column, bool) {
	for _, c := range t.cfg.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

func coerce(col Column, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch col.Type {
	case Number:
		if raw == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("must be a number")
		}
		return f, nil
	case Date:
		if raw == "" {
			return nil, nil
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts, nil
		}
		ts, err := time.Parse(DateForm, raw)
		if err != nil {
			return nil, errors.New("must be a date (YYYY-MM-DD)")
		}
		return ts, nil
	case Enum:
		for _, v := range col.EnumValues {
			if v == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("must be one of: %s", strings.Join(col.EnumValues, ", "))
	default:
		return raw, nil
	}
}

func cellText(c Column, value any, row Row) string {
	if c.Render != nil {
		return c.Render(value, row)
	}
	if value == nil {
		return "-"
	}
	switch c.Type {
	case Date:
		switch v := value.(type) {
		case time.Time:
			return v.Format(DateForm)
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts.Format(DateForm)
			}
		}
	case Number:
		if f, ok := value.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case User:
		if m, ok := value.(map[string]any); ok {
			for _, k := range []string{"fullName", "name", "email", "id"} {
				if s, ok := m[k].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return fmt.Sprint(value)
}

// RowsFrom flattens typed records into table rows through their JSON form.
func RowsFrom[T any](records []client.Record[T]) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec.Attrs)
		if err != nil {
			return nil, err
		}
		data := map[string]any{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		rows = append(rows, Row{ID: rec.ID, Data: data})
	}
	return rows, nil
}
