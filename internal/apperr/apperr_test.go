package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRetryable(t *testing.T) {
	retryable := []Code{CodeUnavailable, CodeInternal}
	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("%s should be retryable", c)
		}
	}
	terminal := []Code{CodeNotFound, CodeValidation, CodeConflict, CodeUnauthorized}
	for _, c := range terminal {
		if c.Retryable() {
			t.Errorf("%s should not be retryable", c)
		}
	}
}

func TestUserMessageHidesDetail(t *testing.T) {
	cause := errors.New("SELECT * FROM nodes WHERE id = 'nd-123': disk I/O error")
	err := Wrap(CodeUnavailable, "load node", cause)

	msg := CodeOf(err).UserMessage()
	if strings.Contains(msg, "SELECT") || strings.Contains(msg, "nd-123") {
		t.Fatalf("user message leaked internal detail: %q", msg)
	}
	if msg == "" {
		t.Fatal("user message should not be empty")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Fatalf("CodeOf(nil): got %q, want empty", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Fatalf("unclassified: got %q, want internal", got)
	}

	err := New(CodeNotFound, "node nd-abc")
	if got := CodeOf(err); got != CodeNotFound {
		t.Fatalf("direct: got %q, want not-found", got)
	}

	wrapped := fmt.Errorf("list children: %w", err)
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("wrapped: got %q, want not-found", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeUnavailable, "push item", cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause should satisfy errors.Is")
	}
	if !Is(err, CodeUnavailable) {
		t.Fatal("Is should match the code")
	}
	if Is(err, CodeNotFound) {
		t.Fatal("Is should not match a different code")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(CodeInternal, "noop", nil); err != nil {
		t.Fatalf("Wrap(nil) should return nil, got %v", err)
	}
}
