package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/manifestcheck/internal/collab"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unsupported extension", fmt.Errorf("%w: %q", parser.ErrUnsupportedFormat, ".docx"), "PARSE001"},
		{"bare no records", parser.ErrNoRecords, "PARSE002"},
		{"pdf extraction wins over no records", fmt.Errorf("%w: %w", parser.ErrNoRecords, errors.New("open pdf: bad xref")), "PARSE003"},
		{"malformed json wins over no records", fmt.Errorf("%w: %w", parser.ErrNoRecords, errors.New("invalid json")), "PARSE004"},
		{"file too large", ErrFileTooLarge, "FILE001"},
		{"no file", ErrNoFile, "FILE004"},
		{"empty file", ErrEmptyFile, "FILE005"},
		{"invalid request", fmt.Errorf("%w: record is required", ErrInvalidRequest), "VAL001"},
		{"collaborator unavailable", collab.ErrUnavailable, "COLLAB001"},
		{"malformed reply", fmt.Errorf("%w: no JSON object", collab.ErrMalformed), "COLLAB002"},
		{"report not found", ErrReportNotFound, "RPT001"},
		{"store disabled", ErrStoreDisabled, "RPT002"},
		{"limiter full", ErrTooManyDocuments, "UPL002"},
		{"deadline", errors.New("context deadline exceeded"), "UPL005"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"case insensitive", errors.New("RATE LIMIT exceeded"), "RATE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTooManyDocuments)

	expected := "System is busy processing other documents (Code: UPL002). Please wait a moment and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", parser.ErrNoRecords, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("%w: %q", parser.ErrUnsupportedFormat, ".docx")
		userErr := NewUserError(techErr)

		if userErr.Error() != "This file type is not supported" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, parser.ErrUnsupportedFormat) {
			t.Error("Unwrap() should return original error")
		}
	})
}
