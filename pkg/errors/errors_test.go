package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
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
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeInsufficientMatureBalance, status: http.StatusUnprocessableEntity, publicMsg: "insufficient mature balance", detailsOK: true},
		{code: CodeInsufficientPoolBalance, status: http.StatusUnprocessableEntity, publicMsg: "insufficient pool balance", detailsOK: true},
		{code: CodeConcurrentModification, status: http.StatusConflict, publicMsg: "concurrent modification, retry", retryable: true},
		{code: CodeNoClearedEarnings, status: http.StatusUnprocessableEntity, publicMsg: "no cleared earnings to pay out"},
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

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrapChain(t *testing.T) {
	inner := New(CodeInsufficientMatureBalance, "not enough")
	outer := fmtWrap(inner)
	if !IsCode(outer, CodeInsufficientMatureBalance) {
		t.Fatalf("expected IsCode to find wrapped code")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("unexpected code match")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error should not match")
	}
}

func fmtWrap(err error) error {
	return stdErrors.Join(stdErrors.New("outer"), err)
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "load balance")
	if got := err.Error(); got != "DEPENDENCY_ERROR: load balance: dial tcp: refused" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Newf(CodeValidation, "amount %s must be positive", "-1").Message(); got != "amount -1 must be positive" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(CodeConcurrentModification, "retry")) {
		t.Fatalf("concurrent modification should be retryable")
	}
	if Retryable(New(CodeInsufficientBalance, "no")) {
		t.Fatalf("insufficient balance should not be retryable")
	}
	if Retryable(stdErrors.New("plain")) {
		t.Fatalf("untyped errors are not retryable")
	}
}

func TestLogFieldsIncludesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_ledger_entries_account_seq", TableName: "ledger_entries"}
	err := Wrap(CodeConcurrentModification, pgErr, "append entry").WithDetails(map[string]any{"step": "append"})

	fields := LogFields(err)
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "uq_ledger_entries_account_seq" {
		t.Fatalf("missing pg diagnostics: %#v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty diagnostics should be omitted")
	}
	if fields["error_code"] != CodeConcurrentModification || fields["step"] != "append" {
		t.Fatalf("missing typed fields: %#v", fields)
	}
	if chain, _ := fields["error_chain"].([]string); len(chain) != 2 {
		t.Fatalf("expected two links in chain, got %#v", fields["error_chain"])
	}

	pqFields := LogFields(&pq.Error{Code: "40001", Table: "balances"})
	if pqFields["pg_code"] != "40001" || pqFields["pg_table"] != "balances" {
		t.Fatalf("missing lib/pq diagnostics: %#v", pqFields)
	}
}
