// Package lockfile provides per-secret advisory locks so that only one
// rotation or rollback runs at a time for a given environment and secret.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

// StaleAfter is how old a lock file must be before another process may
// reclaim it. A holder that has been gone this long is assumed dead.
const StaleAfter = 5 * time.Minute

type lockInfo struct {
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
}

// Lock is a filesystem lock scoped to one (environment, secret) pair.
type Lock struct {
	path     string
	acquired bool
	logger   *logging.Logger
}

// New creates a lock rooted at dir for the given environment and secret.
// The lock is not held until Acquire succeeds.
func New(dir, env, secret string, logger *logging.Logger) *Lock {
	return &Lock{
		path:   filepath.Join(dir, fmt.Sprintf("%s-%s.lock", env, secret)),
		logger: logger,
	}
}

// Acquire takes the lock for the given operation. If another live holder
// exists the call fails with LockHeldError; stale locks are reclaimed.
func (l *Lock) Acquire(operation string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if data, err := os.ReadFile(l.path); err == nil {
		var existing lockInfo
		if err := json.Unmarshal(data, &existing); err == nil {
			age := time.Since(existing.Timestamp)
			if age < StaleAfter {
				return &kserrors.LockHeldError{
					PID:       existing.PID,
					Operation: existing.Operation,
					Age:       age,
				}
			}
			l.logger.Warn("Removing stale lock (held by PID %d for %s)", existing.PID, kserrors.FormatDuration(age))
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	info := lockInfo{
		PID:       os.Getpid(),
		Timestamp: time.Now().UTC(),
		Operation: operation,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}

	l.acquired = true
	return nil
}

// Release removes the lock file. Releasing a lock that was never
// acquired is a no-op, so Release is safe to defer unconditionally.
func (l *Lock) Release() error {
	if !l.acquired {
		return nil
	}
	l.acquired = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
