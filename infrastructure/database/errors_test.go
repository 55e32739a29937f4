package database

import (
	"errors"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error with ID", func(t *testing.T) {
		err := &NotFoundError{Entity: "particle", ID: "localhost:app-0"}
		expected := "particle with id 'localhost:app-0' not found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("Error without ID", func(t *testing.T) {
		err := &NotFoundError{Entity: "particle", ID: ""}
		expected := "particle not found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("Unwrap returns ErrNotFound", func(t *testing.T) {
		err := &NotFoundError{Entity: "particle", ID: "123"}
		if err.Unwrap() != ErrNotFound {
			t.Error("Unwrap() should return ErrNotFound")
		}
	})

	t.Run("errors.Is works with NotFoundError", func(t *testing.T) {
		err := &NotFoundError{Entity: "particle", ID: "123"}
		if !errors.Is(err, ErrNotFound) {
			t.Error("errors.Is should return true for ErrNotFound")
		}
	})
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("particle", "localhost")
	if err == nil {
		t.Fatal("NewNotFoundError() returned nil")
	}

	nfe, ok := err.(*NotFoundError)
	if !ok {
		t.Fatal("NewNotFoundError() should return *NotFoundError")
	}
	if nfe.Entity != "particle" {
		t.Errorf("Entity = %q, want %q", nfe.Entity, "particle")
	}
	if nfe.ID != "localhost" {
		t.Errorf("ID = %q, want %q", nfe.ID, "localhost")
	}
}

func TestIsNotFound(t *testing.T) {
	t.Run("true for ErrNotFound", func(t *testing.T) {
		if !IsNotFound(ErrNotFound) {
			t.Error("IsNotFound(ErrNotFound) should return true")
		}
	})

	t.Run("true for wrapped NotFoundError", func(t *testing.T) {
		err := NewNotFoundError("particle", "123")
		if !IsNotFound(err) {
			t.Error("IsNotFound should return true for NotFoundError")
		}
	})

	t.Run("false for other errors", func(t *testing.T) {
		if IsNotFound(ErrAlreadyExists) {
			t.Error("IsNotFound should return false for ErrAlreadyExists")
		}
	})

	t.Run("false for nil", func(t *testing.T) {
		if IsNotFound(nil) {
			t.Error("IsNotFound(nil) should return false")
		}
	})
}

func TestIsAlreadyExists(t *testing.T) {
	t.Run("true for ErrAlreadyExists", func(t *testing.T) {
		if !IsAlreadyExists(ErrAlreadyExists) {
			t.Error("IsAlreadyExists(ErrAlreadyExists) should return true")
		}
	})

	t.Run("false for other errors", func(t *testing.T) {
		if IsAlreadyExists(ErrNotFound) {
			t.Error("IsAlreadyExists should return false for ErrNotFound")
		}
	})

	t.Run("false for nil", func(t *testing.T) {
		if IsAlreadyExists(nil) {
			t.Error("IsAlreadyExists(nil) should return false")
		}
	})
}

func TestValidateID(t *testing.T) {
	t.Run("valid UUID with hyphens", func(t *testing.T) {
		err := ValidateID("550e8400-e29b-41d4-a716-446655440000")
		if err != nil {
			t.Errorf("ValidateID() error = %v for valid UUID", err)
		}
	})

	t.Run("valid UUID without hyphens", func(t *testing.T) {
		err := ValidateID("550e8400e29b41d4a716446655440000")
		if err != nil {
			t.Errorf("ValidateID() error = %v for valid UUID without hyphens", err)
		}
	})

	t.Run("valid alphanumeric", func(t *testing.T) {
		err := ValidateID("star_123-abc")
		if err != nil {
			t.Errorf("ValidateID() error = %v for valid alphanumeric", err)
		}
	})

	t.Run("empty ID", func(t *testing.T) {
		err := ValidateID("")
		if err == nil {
			t.Error("ValidateID() should return error for empty ID")
		}
	})

	t.Run("ID too long", func(t *testing.T) {
		longID := strings.Repeat("a", 129)
		err := ValidateID(longID)
		if err == nil {
			t.Error("ValidateID() should return error for ID > 128 chars")
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		err := ValidateID("invalid@id!")
		if err == nil {
			t.Error("ValidateID() should return error for invalid format")
		}
	})
}

func TestValidateLimit(t *testing.T) {
	t.Run("returns default for zero", func(t *testing.T) {
		if result := ValidateLimit(0, 50, 1000); result != 50 {
			t.Errorf("ValidateLimit(0, 50, 1000) = %d, want 50", result)
		}
	})

	t.Run("returns default for negative", func(t *testing.T) {
		if result := ValidateLimit(-10, 50, 1000); result != 50 {
			t.Errorf("ValidateLimit(-10, 50, 1000) = %d, want 50", result)
		}
	})

	t.Run("returns max for over limit", func(t *testing.T) {
		if result := ValidateLimit(2000, 50, 1000); result != 1000 {
			t.Errorf("ValidateLimit(2000, 50, 1000) = %d, want 1000", result)
		}
	})

	t.Run("returns value when valid", func(t *testing.T) {
		if result := ValidateLimit(100, 50, 1000); result != 100 {
			t.Errorf("ValidateLimit(100, 50, 1000) = %d, want 100", result)
		}
	})
}

func TestValidateOffset(t *testing.T) {
	t.Run("returns 0 for negative", func(t *testing.T) {
		if result := ValidateOffset(-10); result != 0 {
			t.Errorf("ValidateOffset(-10) = %d, want 0", result)
		}
	})

	t.Run("returns value for positive", func(t *testing.T) {
		if result := ValidateOffset(100); result != 100 {
			t.Errorf("ValidateOffset(100) = %d, want 100", result)
		}
	})
}

func TestSanitizeString(t *testing.T) {
	t.Run("removes null bytes", func(t *testing.T) {
		if result := SanitizeString("hello\x00world"); result != "helloworld" {
			t.Errorf("SanitizeString() = %q, want %q", result, "helloworld")
		}
	})

	t.Run("removes control characters", func(t *testing.T) {
		if result := SanitizeString("hello\x01\x02world"); result != "helloworld" {
			t.Errorf("SanitizeString() = %q, want %q", result, "helloworld")
		}
	})

	t.Run("preserves tabs and newlines", func(t *testing.T) {
		if result := SanitizeString("hello\tworld\n"); result != "hello\tworld" {
			t.Errorf("SanitizeString() = %q", result)
		}
	})

	t.Run("trims whitespace", func(t *testing.T) {
		if result := SanitizeString("  hello world  "); result != "hello world" {
			t.Errorf("SanitizeString() = %q, want %q", result, "hello world")
		}
	})
}

func TestDefaultPagination(t *testing.T) {
	p := DefaultPagination()
	if p.Limit != 50 || p.Offset != 0 {
		t.Errorf("DefaultPagination() = %+v", p)
	}
}

func TestNewPagination(t *testing.T) {
	t.Run("valid values", func(t *testing.T) {
		p := NewPagination(100, 50)
		if p.Limit != 100 || p.Offset != 50 {
			t.Errorf("NewPagination(100, 50) = %+v", p)
		}
	})

	t.Run("normalizes invalid limit", func(t *testing.T) {
		if p := NewPagination(0, 0); p.Limit != 50 {
			t.Errorf("Limit = %d, want 50 (default)", p.Limit)
		}
	})

	t.Run("caps limit at max", func(t *testing.T) {
		if p := NewPagination(5000, 0); p.Limit != 1000 {
			t.Errorf("Limit = %d, want 1000 (max)", p.Limit)
		}
	})

	t.Run("normalizes negative offset", func(t *testing.T) {
		if p := NewPagination(50, -10); p.Offset != 0 {
			t.Errorf("Offset = %d, want 0", p.Offset)
		}
	})
}

func TestPaginationParamsToQuery(t *testing.T) {
	t.Run("with offset", func(t *testing.T) {
		p := PaginationParams{Limit: 100, Offset: 50}
		if got := p.ToQuery(); got != "limit=100&offset=50" {
			t.Errorf("ToQuery() = %q", got)
		}
	})

	t.Run("without offset", func(t *testing.T) {
		p := PaginationParams{Limit: 100, Offset: 0}
		if got := p.ToQuery(); got != "limit=100" {
			t.Errorf("ToQuery() = %q", got)
		}
	})
}

func TestSentinelErrors(t *testing.T) {
	all := []error{ErrNotFound, ErrAlreadyExists, ErrUnauthorized, ErrInvalidInput, ErrConflict, ErrDatabaseError}
	for i, e1 := range all {
		for j, e2 := range all {
			if i != j && e1 == e2 {
				t.Errorf("Sentinel errors should be distinct: %v == %v", e1, e2)
			}
		}
	}
}
