package testutil

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	apperrors "budgettracker/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected code and
// returns it for further checks.
func AssertAppError(t *testing.T, err error, expectedCode string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
	return appErr
}

// AssertHidden checks that err is the 404 a caller gets for a resource they
// do not own, and that its message names none of the hidden values.
func AssertHidden(t *testing.T, err error, expectedCode string, hidden ...string) {
	t.Helper()

	appErr := AssertAppError(t, err, expectedCode)
	if appErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 for %s, got %d", expectedCode, appErr.StatusCode)
	}
	for _, value := range hidden {
		if value != "" && strings.Contains(appErr.Message, value) {
			t.Errorf("error message %q reveals %q", appErr.Message, value)
		}
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
