package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCategorySchema, CodeLoadFailed, "layer unreadable")
	want := "[SCHEMA:LOAD_FAILED] layer unreadable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := Wrap(ErrCategoryStorage, CodeDownloadFailed, "get object", fmt.Errorf("timeout"))
	want = "[STORAGE:DOWNLOAD_FAILED] get object: timeout"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestUnwrapChain(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(ErrCategoryContainer, CodeLengthMismatch, "bad column", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	outer := fmt.Errorf("context: %w", err)
	if GetCategory(outer) != ErrCategoryContainer {
		t.Errorf("GetCategory = %q, want CONTAINER", GetCategory(outer))
	}
	if GetCode(outer) != CodeLengthMismatch {
		t.Errorf("GetCode = %q, want LENGTH_MISMATCH", GetCode(outer))
	}
}

func TestIsMatchesCategoryAndCode(t *testing.T) {
	err := New(ErrCategoryDerivation, CodeUnknownDerivation, "no such function")
	target := New(ErrCategoryDerivation, CodeUnknownDerivation, "different message")
	if !errors.Is(err, target) {
		t.Error("expected category+code match")
	}

	other := New(ErrCategoryDerivation, CodeDerivationFailed, "boom")
	if errors.Is(err, other) {
		t.Error("different codes must not match")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		code     string
		want     bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategorySchema, CodeLoadFailed, false},
		{ErrCategoryDerivation, CodeDerivationFailed, false},
		{ErrCategoryConfig, CodeInvalidMission, false},
	}
	for _, tt := range tests {
		err := New(tt.category, tt.code, "x")
		if IsRetryable(err) != tt.want {
			t.Errorf("IsRetryable(%s:%s) = %v, want %v", tt.category, tt.code, !tt.want, tt.want)
		}
	}

	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are not retryable")
	}
}
