package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExportService_ExportResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	submitted := f.submitted(t)
	export := NewExportService(f.repo, testLogger())

	data, name, err := export.ExportResults(ctx, f.assessment.ID, teacher)
	if err != nil {
		t.Fatalf("ExportResults() error = %v", err)
	}
	if !strings.HasPrefix(name, "midterm-") || !strings.HasSuffix(name, "-results.xlsx") {
		t.Errorf("file name = %q", name)
	}

	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows(resultsSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one attempt", len(rows))
	}
	if rows[0][0] != "User ID" || rows[0][len(rows[0])-1] != "Passed" {
		t.Errorf("header = %v", rows[0])
	}
	row := rows[1]
	if row[0] != student.UserID || row[1] != "Alice Nguyen" || row[2] != "alice@example.com" {
		t.Errorf("identity columns = %v", row[:3])
	}
	if row[4] != "submitted" || row[7] != "7" || row[9] != "yes" {
		t.Errorf("result columns = %v (attempt %d)", row, submitted.AttemptID)
	}

	summary, err := book.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("GetRows(summary) error = %v", err)
	}
	if summary[0][1] != "Midterm" || summary[2][1] != "1" {
		t.Errorf("summary = %v", summary)
	}
}

func TestExportService_OwnerOnly(t *testing.T) {
	f := newFixture()
	var permErr *PermissionError
	_, _, err := NewExportService(f.repo, testLogger()).ExportResults(context.Background(), f.assessment.ID, student)
	if !errors.As(err, &permErr) {
		t.Fatalf("ExportResults() error = %v, want PermissionError", err)
	}
}
