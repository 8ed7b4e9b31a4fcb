package postgres

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

func TestMapError(t *testing.T) {
	driverErr := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil stays nil", err: nil, want: nil},
		{name: "missing row", err: gorm.ErrRecordNotFound, want: repositories.ErrNotFound},
		{name: "second attempt with the same number", err: gorm.ErrDuplicatedKey, want: repositories.ErrDuplicate},
		{name: "wrapped duplicate", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: repositories.ErrDuplicate},
		{name: "other errors pass through", err: driverErr, want: driverErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "failed to create attempt")
			if tt.want == nil {
				if got != nil {
					t.Fatalf("mapError() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("mapError() = %v, want it to wrap %v", got, tt.want)
			}
		})
	}
}
