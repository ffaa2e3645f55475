package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := ErrDelivery.WithInternal(stdErrors.New("smtp timeout"))
	if !stdErrors.Is(wrapped, ErrDelivery) {
		t.Fatal("expected copy to match its sentinel")
	}
	if stdErrors.Is(wrapped, ErrInvalidOTP) {
		t.Fatal("expected different codes not to match")
	}

	outer := fmt.Errorf("verify: %w", ErrExpiredOTP.WithMessage("custom"))
	if !stdErrors.Is(outer, ErrExpiredOTP) {
		t.Fatal("expected wrapped AppError to match through fmt.Errorf")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestAuthErrorStatusCodes(t *testing.T) {
	cases := map[*AppError]int{
		ErrValidation:          http.StatusBadRequest,
		ErrAccountNotFound:     http.StatusNotFound,
		ErrInvalidOTP:          http.StatusBadRequest,
		ErrExpiredOTP:          http.StatusBadRequest,
		ErrDelivery:            http.StatusInternalServerError,
		ErrInvalidCredential:   http.StatusUnauthorized,
		ErrAccountExists:       http.StatusConflict,
		ErrOTPAttemptsExceeded: http.StatusTooManyRequests,
	}
	for err, status := range cases {
		if err.StatusCode != status {
			t.Fatalf("%s: expected status %d, got %d", err.Code, status, err.StatusCode)
		}
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
