// Package cooldown tracks the timestamp of the last rotation per
// environment and secret, enforcing a minimum interval between rotations.
package cooldown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
)

// Tracker stores rotation markers as RFC3339 timestamps, one file per
// (environment, secret) pair.
type Tracker struct {
	dir    string
	window time.Duration
}

// New creates a tracker rooted at dir with the given cooldown window.
func New(dir string, window time.Duration) *Tracker {
	return &Tracker{dir: dir, window: window}
}

// Check returns CooldownActiveError when the last rotation for the pair
// happened within the cooldown window. A missing or unreadable marker
// means no cooldown applies.
func (t *Tracker) Check(env, secret string) error {
	last, ok := t.lastRotation(env, secret)
	if !ok {
		return nil
	}

	elapsed := time.Since(last)
	if elapsed < t.window {
		remaining := t.window - elapsed
		return &kserrors.CooldownActiveError{
			Remaining: time.Duration(remaining.Seconds()+0.5) * time.Second,
		}
	}
	return nil
}

// Remaining returns how long until the cooldown for the pair expires,
// or zero when no cooldown is active.
func (t *Tracker) Remaining(env, secret string) time.Duration {
	last, ok := t.lastRotation(env, secret)
	if !ok {
		return 0
	}
	remaining := t.window - time.Since(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Record writes the current time as the last rotation marker for the pair.
func (t *Tracker) Record(env, secret string) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cooldown directory: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(t.path(env, secret), []byte(stamp), 0o600); err != nil {
		return fmt.Errorf("failed to write cooldown marker: %w", err)
	}
	return nil
}

// LastRotation returns when the pair was last rotated, if ever recorded.
func (t *Tracker) LastRotation(env, secret string) (time.Time, bool) {
	return t.lastRotation(env, secret)
}

func (t *Tracker) lastRotation(env, secret string) (time.Time, bool) {
	data, err := os.ReadFile(t.path(env, secret))
	if err != nil {
		return time.Time{}, false
	}
	last, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		// A corrupt marker does not block rotation.
		return time.Time{}, false
	}
	return last, true
}

func (t *Tracker) path(env, secret string) string {
	return filepath.Join(t.dir, fmt.Sprintf("%s-%s", env, secret))
}
