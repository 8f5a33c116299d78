package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrParticipantTimeout, "participant took too long").
		WithCause(root)

	if GetErrorCode(err) != ErrParticipantTimeout {
		t.Fatalf("expected code %s, got %s", ErrParticipantTimeout, GetErrorCode(err))
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsErrorCode_ThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrConfigInvalid, "max_rounds must be >= 1")
	wrapped := fmt.Errorf("session start: %w", inner)

	if !IsErrorCode(wrapped, ErrConfigInvalid) {
		t.Fatalf("expected CONFIG_INVALID through fmt wrapping")
	}
	if IsErrorCode(wrapped, ErrDuplicateVote) {
		t.Fatalf("unexpected code match")
	}
	if IsErrorCode(errors.New("plain"), ErrConfigInvalid) {
		t.Fatalf("plain error must not match")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain error must yield empty code")
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	cause := errors.New("redis: connection refused")
	err := WrapError(ErrStoreClosed, "decision archive unavailable", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap to cause")
	}
	if err.Error() != "[STORE_CLOSED] decision archive unavailable: redis: connection refused" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}
