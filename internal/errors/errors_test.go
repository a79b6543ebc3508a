package errors

import (
	"fmt"
	"testing"
)

func TestJotError_Error(t *testing.T) {
	err := &JotError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "no record abc in projects",
	}

	expected := "NOT_FOUND: no record abc in projects"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewAmbiguousTitle(t *testing.T) {
	err := NewAmbiguousTitle("projects", "Ship v2", []string{"a", "b"})

	if err.Code != ErrAmbiguousTitle {
		t.Errorf("Code = %q, want %q", err.Code, ErrAmbiguousTitle)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	ids, ok := err.Details["ids"].([]string)
	if !ok || len(ids) != 2 {
		t.Errorf("Details[ids] = %v, want both conflicting ids", err.Details["ids"])
	}
}

func TestNewUnauthorized(t *testing.T) {
	err := NewUnauthorized("invalid signature")

	if err.Code != ErrUnauthorized {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnauthorized)
	}
	if err.Status != 401 {
		t.Errorf("Status = %d, want 401", err.Status)
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("admin", "x"), ErrNotFound, true},
		{"different code", NewNotFound("admin", "x"), ErrConfig, false},
		{"plain error", fmt.Errorf("plain"), ErrNotFound, false},
		{"nil error", nil, ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
