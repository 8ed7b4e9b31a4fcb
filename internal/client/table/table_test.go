package table

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

func groupColumns() []Column {
	return []Column{
		{Label: "Name", Key: "name", Type: Text, CanEdit: true, Searchable: true, Rule: "required,max=10"},
		{Label: "Seats", Key: "seats", Type: Number, CanEdit: true, Rule: "omitempty,gte=0"},
		{Label: "Level", Key: "level", Type: Enum, CanEdit: true, EnumValues: []string{"basic", "advanced"}},
		{Label: "Starts", Key: "starts", Type: Date, CanEdit: true},
		{Label: "Owner", Key: "owner", Type: User},
	}
}

func sampleRows() []Row {
	return []Row{
		{ID: "1", Data: map[string]any{"name": "Math A", "seats": 30.0, "level": "basic", "owner": map[string]any{"fullName": "Ada L"}}},
		{ID: "2", Data: map[string]any{"name": "Math B", "seats": 12.0, "level": "advanced"}},
	}
}

func TestInlineEdit_SaveEmitsMergedRow(t *testing.T) {
	var gotID string
	var gotData map[string]any
	tbl := New(Config{
		Columns: groupColumns(),
		OnUpdated: func(id string, data map[string]any) error {
			gotID, gotData = id, data
			return nil
		},
	})
	tbl.SetRows(sampleRows())

	require.NoError(t, tbl.BeginEdit("1"))
	require.NoError(t, tbl.SetCell("seats", "42"))
	require.NoError(t, tbl.SetCell("level", "advanced"))
	require.NoError(t, tbl.SetCell("starts", "2025-03-01"))
	require.NoError(t, tbl.Save())

	assert.Equal(t, "1", gotID)
	assert.Equal(t, 42.0, gotData["seats"])
	assert.Equal(t, "advanced", gotData["level"])
	assert.Equal(t, "Math A", gotData["name"], "untouched cells are kept")
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), gotData["starts"])

	_, editing := tbl.Editing()
	assert.False(t, editing)
	assert.Equal(t, 42.0, tbl.Rows()[0].Data["seats"])
}

func TestBeginEdit_OnlyOneRowAtATime(t *testing.T) {
	tbl := New(Config{Columns: groupColumns()})
	tbl.SetRows(sampleRows())

	require.NoError(t, tbl.BeginEdit("1"))
	require.NoError(t, tbl.SetCell("name", "Changed"))
	require.NoError(t, tbl.BeginEdit("2"))

	id, ok := tbl.Editing()
	require.True(t, ok)
	assert.Equal(t, "2", id)
	assert.Equal(t, "Math B", tbl.Draft()["name"])
	assert.Equal(t, "Math A", tbl.Rows()[0].Data["name"], "discarded draft never reaches the row")

	assert.ErrorIs(t, tbl.BeginEdit("missing"), ErrRowNotFound)
}

func TestSetCell_Validation(t *testing.T) {
	tbl := New(Config{Columns: groupColumns()})
	tbl.SetRows(sampleRows())

	assert.ErrorIs(t, tbl.SetCell("name", "x"), ErrNotEditing)
	require.NoError(t, tbl.BeginEdit("1"))

	tests := []struct {
		key, raw string
		rule     string
	}{
		{"seats", "many", "number"},
		{"seats", "-3", "gte"},
		{"level", "expert", "enum"},
		{"starts", "01/03/2025", "date"},
		{"name", "", "required"},
		{"name", "a very long group name", "max"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			err := tbl.SetCell(tt.key, tt.raw)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			fe, ok := verrs.Field(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.rule, fe.Rule)
		})
	}

	assert.ErrorIs(t, tbl.SetCell("owner", "someone"), ErrReadOnly)
	assert.Equal(t, 30.0, tbl.Draft()["seats"], "rejected values leave the draft alone")
}

func TestSave_ErrorKeepsEditOpen(t *testing.T) {
	tbl := New(Config{
		Columns:   groupColumns(),
		OnUpdated: func(string, map[string]any) error { return errors.New("conflict") },
	})
	tbl.SetRows(sampleRows())
	require.NoError(t, tbl.BeginEdit("2"))
	require.NoError(t, tbl.SetCell("name", "Math C"))

	assert.Error(t, tbl.Save())
	id, ok := tbl.Editing()
	assert.True(t, ok)
	assert.Equal(t, "2", id)
	assert.Equal(t, "Math B", tbl.Rows()[1].Data["name"])
}

func TestAdd(t *testing.T) {
	var saved, formed map[string]any

	withCallback := New(Config{Columns: groupColumns(), OnSaved: func(d map[string]any) error { saved = d; return nil }})
	require.NoError(t, withCallback.Add(map[string]any{"name": "New"}))
	assert.Equal(t, "New", saved["name"])

	withForm := New(Config{
		Columns: groupColumns(),
		OnSaved: func(map[string]any) error { t.Fatal("form takes precedence"); return nil },
		Form:    func(seed map[string]any) error { formed = seed; return nil },
	})
	require.NoError(t, withForm.Add(map[string]any{"name": "Seed"}))
	assert.Equal(t, "Seed", formed["name"])

	assert.ErrorIs(t, New(Config{}).Add(nil), ErrNoAddAction)
}

func TestRender(t *testing.T) {
	tbl := New(Config{Columns: groupColumns()})

	var empty bytes.Buffer
	require.NoError(t, tbl.Render(&empty))
	lines := strings.Split(strings.TrimSpace(empty.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "NAME")
	assert.Equal(t, NoData, strings.TrimSpace(lines[1]))

	tbl.SetRows(sampleRows())
	tbl.SetLoading(true)
	var out bytes.Buffer
	require.NoError(t, tbl.Render(&out))
	assert.Contains(t, out.String(), "Math A")
	assert.Contains(t, out.String(), "Ada L")
	assert.Contains(t, out.String(), "Loading...")
	assert.Len(t, tbl.Rows(), 2, "loading keeps rows")
}

func TestSearchBar(t *testing.T) {
	tbl := New(Config{Columns: groupColumns()})
	assert.Equal(t, "name", tbl.Search().Column)

	assert.Error(t, tbl.SetSearch(SearchBar{Column: "seats", Term: "3"}))
	require.NoError(t, tbl.SetSearch(SearchBar{Column: "name", Term: "math"}))
	assert.Equal(t, client.SearchContains, tbl.Search().Criteria().Type)
}

func TestRowsFrom(t *testing.T) {
	rows, err := RowsFrom([]client.Record[models.Subject]{{ID: "4", Attrs: models.Subject{ID: 4, Name: "Physics", Code: "PHY"}}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4", rows[0].ID)
	assert.Equal(t, "Physics", rows[0].Data["name"])
}
