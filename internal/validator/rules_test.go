package validator

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestCheckMarksSum(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		marks   []float64
		wantErr bool
	}{
		{name: "exact", total: 10, marks: []float64{4, 6}},
		{name: "within tolerance", total: 10, marks: []float64{4, 6.009}},
		{name: "diff exactly tolerance blocks", total: 10, marks: []float64{4, 6.01}, wantErr: true},
		{name: "diff exactly tolerance below blocks", total: 10, marks: []float64{4, 5.99}, wantErr: true},
		{name: "float noise", total: 0.3, marks: []float64{0.1, 0.2}},
		{name: "no questions", total: 5, marks: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckMarksSum(tt.total, tt.marks)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckMarksSum() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var mm *MarksMismatchError
				if !errors.As(err, &mm) {
					t.Fatalf("expected *MarksMismatchError, got %T", err)
				}
				if mm.Expected != tt.total {
					t.Errorf("Expected = %v, want %v", mm.Expected, tt.total)
				}
			}
		})
	}
}

func TestCheckValidityWindow(t *testing.T) {
	from := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := from.Add(d); return &v }

	tests := []struct {
		name     string
		from, to *time.Time
		duration *int
		wantErr  bool
	}{
		{name: "unbounded", from: nil, to: nil, duration: intPtr(60)},
		{name: "to before from", from: &from, to: at(-time.Minute), wantErr: true},
		{name: "window equals duration", from: &from, to: at(60 * time.Minute), duration: intPtr(60)},
		{name: "window shorter than duration", from: &from, to: at(59 * time.Minute), duration: intPtr(60), wantErr: true},
		{name: "unlimited duration", from: &from, to: at(time.Minute), duration: intPtr(0)},
		{name: "same instant no duration", from: &from, to: &from},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckValidityWindow(tt.from, tt.to, tt.duration)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckValidityWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClampMarks(t *testing.T) {
	tests := []struct {
		v, max, want float64
	}{
		{v: -1, max: 5, want: 0},
		{v: 3.5, max: 5, want: 3.5},
		{v: 7, max: 5, want: 5},
		{v: 5, max: 5, want: 5},
	}
	for _, tt := range tests {
		if got := ClampMarks(tt.v, tt.max); got != tt.want {
			t.Errorf("ClampMarks(%v, %v) = %v, want %v", tt.v, tt.max, got, tt.want)
		}
	}
}
