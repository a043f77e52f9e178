package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// LockHeldError is returned when a rotation lock is held by another process
// that has not exceeded the stale threshold yet.
type LockHeldError struct {
	PID       int
	Operation string
	Age       time.Duration
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("lock already held by PID %d for operation '%s' (acquired %s ago)",
		e.PID, e.Operation, FormatDuration(e.Age))
}

// CooldownActiveError is returned when a rotation is attempted before the
// per-secret cooldown interval has elapsed.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active: wait %ds before rotating again", int(e.Remaining.Seconds()))
}

// ProviderError wraps a hosting provider API failure, carrying the HTTP
// status and response body when available.
type ProviderError struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error (%d): %s", e.Provider, e.Operation, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s error: %v", e.Provider, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s error", e.Provider, e.Operation)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotReadableError indicates a provider that disallows reading secret
// values back, which is intentional and distinct from an API failure.
type NotReadableError struct {
	Provider string
	Reason   string
}

func (e *NotReadableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s secrets cannot be read: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s secrets cannot be read via API", e.Provider)
}

// UnknownServiceError is returned when connector dispatch does not
// recognize a service name.
type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service: %s", e.Service)
}

// MalformedLineError aborts an audit log read when a line cannot be parsed.
type MalformedLineError struct {
	File string
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed audit entry in %s: %v", e.File, e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

// Sentinel errors for conditions callers branch on.
var (
	ErrPoolExhausted    = errors.New("no available keys in pool - all keys exhausted")
	ErrPoolEmpty        = errors.New("no keys in pool")
	ErrKeyNotFound      = errors.New("key not found in pool")
	ErrNoRecentRotation = errors.New("no recent rotation found for this secret")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrSignatureInvalid = errors.New("audit entry signature invalid")
)

// NotEnoughHistoryError is returned by rollback when the audit log does not
// contain at least two successful rotations for the target secret.
type NotEnoughHistoryError struct {
	Found int
}

func (e *NotEnoughHistoryError) Error() string {
	return fmt.Sprintf("no previous value found in audit logs (need at least 2 successful rotations, found %d)", e.Found)
}

// IsLockHeld reports whether err is a LockHeldError.
func IsLockHeld(err error) bool {
	var lh *LockHeldError
	return errors.As(err, &lh)
}

// IsCooldownActive reports whether err is a CooldownActiveError.
func IsCooldownActive(err error) bool {
	var ca *CooldownActiveError
	return errors.As(err, &ca)
}

// IsNotReadable reports whether err indicates a write-only provider.
func IsNotReadable(err error) bool {
	var nr *NotReadableError
	return errors.As(err, &nr)
}

// FormatDuration renders a duration the way humans read lock and window
// ages: seconds under a minute, minutes under an hour, hours otherwise.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%dh", seconds/3600)
	}
}
