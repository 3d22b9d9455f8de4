package postgres

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "translated duplicate key", err: gorm.ErrDuplicatedKey, want: true},
		{name: "wrapped duplicate key", err: fmt.Errorf("create version: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "record not found", err: gorm.ErrRecordNotFound},
		{name: "other error", err: errors.New("connection reset")},
		{name: "nil", err: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Fatalf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
