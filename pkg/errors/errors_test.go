package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeEmptyCart, status: http.StatusBadRequest, publicMsg: "cart is empty"},
		{code: CodeNotPayable, status: http.StatusNotFound, publicMsg: "order not found or not payable"},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestPublicMessageHidesServerSideText(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{err: New(CodeValidation, "quantity must be between 1 and 99"), want: "quantity must be between 1 and 99"},
		{err: New(CodeNotPayable, ""), want: "order not found or not payable"},
		{err: Wrap(CodeInternal, stdErrors.New("pq: relation missing"), "load cart"), want: "internal server error"},
		{err: New(CodeDependency, "redis ping failed"), want: "dependency unavailable"},
	}
	for _, tt := range tests {
		if got := tt.err.PublicMessage(); got != tt.want {
			t.Fatalf("%s: expected %q got %q", tt.err.Code(), tt.want, got)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("connection reset"), "load order")
	if got := err.Error(); got != "INTERNAL_ERROR: load order: connection reset" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Newf(CodeValidation, "cart line cannot exceed %d units", 99).Error(); got != "VALIDATION_ERROR: cart line cannot exceed 99 units" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestCodeOfAndIsClientError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   Code
		client bool
	}{
		{name: "nil", err: nil, code: "", client: false},
		{name: "untyped", err: stdErrors.New("boom"), code: CodeInternal, client: false},
		{name: "wrapped not payable", err: fmt.Errorf("settle: %w", New(CodeNotPayable, "")), code: CodeNotPayable, client: true},
		{name: "rate limit", err: New(CodeRateLimit, ""), code: CodeRateLimit, client: true},
		{name: "dependency", err: New(CodeDependency, "redis"), code: CodeDependency, client: false},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.code {
			t.Fatalf("%s: expected code %q got %q", tt.name, tt.code, got)
		}
		if got := IsClientError(tt.err); got != tt.client {
			t.Fatalf("%s: expected client error %v got %v", tt.name, tt.client, got)
		}
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotPayable, "order 7 not payable")
	if got := As(err); got == nil || got.Code() != CodeNotPayable {
		t.Fatalf("As failed to return typed error")
	}
	outer := fmt.Errorf("settle: %w", err)
	if got := As(outer); got == nil || got.Code() != CodeNotPayable {
		t.Fatalf("As failed to unwrap typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestLogFieldsCollectChainAndPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_items_cart_id_product_id_key", TableName: "cart_items"}
	err := Wrap(CodeInternal, fmt.Errorf("insert cart item: %w", pgErr), "add item").
		WithDetails(map[string]any{"step": "upsert_item"})

	fields := LogFields(err)
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "cart_items_cart_id_product_id_key" || fields["pg_table"] != "cart_items" {
		t.Fatalf("unexpected pg fields %+v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg values should be left out: %+v", fields)
	}
	if fields["step"] != "upsert_item" {
		t.Fatalf("expected step detail, got %+v", fields)
	}
	if chain, _ := fields["error_chain"].([]string); len(chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %v", fields["error_chain"])
	}
	if len(LogFields(nil)) != 0 {
		t.Fatalf("expected no fields for nil error")
	}
}
