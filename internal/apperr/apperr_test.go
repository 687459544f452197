package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInsufficientStock, http.StatusUnprocessableEntity},
		{KindInternal, http.StatusInternalServerError},
		{Kind("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := Conflict("request %s is already completed", "r1")
	wrapped := fmt.Errorf("complete: %w", base)

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf(wrapped) = %q, want %q", got, KindConflict)
	}
	if !Is(wrapped, KindConflict) {
		t.Fatal("Is(wrapped, KindConflict) = false, want true")
	}
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf(untyped) = %q, want %q", got, KindInternal)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q, want empty", got)
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Internal(errors.New("pq: connection refused"), "list printers")
	if got := PublicMessage(err); got != "internal server error" {
		t.Fatalf("PublicMessage(internal) = %q", got)
	}
	if got := PublicMessage(errors.New("raw driver error")); got != "internal server error" {
		t.Fatalf("PublicMessage(untyped) = %q", got)
	}
	if got := PublicMessage(NotFound("printer not found")); got != "printer not found" {
		t.Fatalf("PublicMessage(not found) = %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("internal error should unwrap to its cause")
	}
}
