package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserErrorFormatting(t *testing.T) {
	err := UserError{
		Message:    "Rotation failed",
		Details:    "connection refused",
		Suggestion: "Check that the provider API is reachable",
	}
	msg := err.Error()
	assert.Contains(t, msg, "Rotation failed")
	assert.Contains(t, msg, "Details: connection refused")
	assert.Contains(t, msg, "💡 Try: Check that the provider API is reachable")
}

func TestUserErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	err := UserError{Message: "outer", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestLockHeldError(t *testing.T) {
	err := &LockHeldError{PID: 4242, Operation: "rotate", Age: 90 * time.Second}
	assert.Equal(t, "lock already held by PID 4242 for operation 'rotate' (acquired 1m ago)", err.Error())
	assert.True(t, IsLockHeld(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsLockHeld(fmt.Errorf("plain")))
}

func TestCooldownActiveError(t *testing.T) {
	err := &CooldownActiveError{Remaining: 45 * time.Second}
	assert.Equal(t, "cooldown active: wait 45s before rotating again", err.Error())
	assert.True(t, IsCooldownActive(err))
}

func TestProviderErrorFormats(t *testing.T) {
	withStatus := &ProviderError{Provider: "vercel", Operation: "update secret", StatusCode: 403, Body: "forbidden"}
	assert.Equal(t, "vercel update secret error (403): forbidden", withStatus.Error())

	wrapped := &ProviderError{Provider: "aws", Operation: "get secret", Err: fmt.Errorf("timeout")}
	assert.Contains(t, wrapped.Error(), "timeout")
}

func TestNotReadableError(t *testing.T) {
	err := &NotReadableError{Provider: "fly", Reason: "Fly.io secrets are write-only"}
	assert.Contains(t, err.Error(), "write-only")
	assert.True(t, IsNotReadable(err))
}

func TestNotEnoughHistoryError(t *testing.T) {
	err := &NotEnoughHistoryError{Found: 1}
	assert.Equal(t, "no previous value found in audit logs (need at least 2 successful rotations, found 1)", err.Error())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "59s", FormatDuration(59*time.Second))
	assert.Equal(t, "1m", FormatDuration(60*time.Second))
	assert.Equal(t, "59m", FormatDuration(59*time.Minute))
	assert.Equal(t, "2h", FormatDuration(2*time.Hour))
}
