package rotation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/keystone-dev/keystone/internal/audit"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/lockfile"
	"github.com/keystone-dev/keystone/internal/logging"
	"github.com/keystone-dev/keystone/internal/metrics"
)

// RollbackOptions parameterize one rollback.
type RollbackOptions struct {
	Secret   string
	Env      string
	Service  string
	EnvFile  string
	Redeploy bool
}

// Rollback restores the previous secret value recovered from the audit
// log. Rolling back outside the configured window needs confirmation.
func (e *Engine) Rollback(ctx context.Context, opts RollbackOptions) error {
	if opts.Secret == "" || opts.Env == "" {
		return kserrors.UserError{
			Message:    "Secret name and environment are required",
			Suggestion: "Pass the secret name and --env flag, e.g. keystone rollback API_KEY --env production",
		}
	}

	lock := lockfile.New(filepath.Join(e.cfg.BaseDir(), "locks"), opts.Env, opts.Secret, e.logger)
	if err := lock.Acquire("rollback"); err != nil {
		return err
	}
	defer lock.Release()

	if err := e.checkRollbackWindow(opts.Env, opts.Secret); err != nil {
		return err
	}

	value, err := e.previousValue(opts.Secret, opts.Env)
	if err != nil {
		return err
	}

	preview := logging.Mask(value)
	e.logger.Info("Rolling back %s in %s to previous value %s", opts.Secret, opts.Env, preview)

	if e.DryRun {
		e.logger.Info("Dry run: %s would be restored in %s", opts.Secret, opts.Env)
		return nil
	}

	ok, err := e.Confirm(fmt.Sprintf("Restore '%s' in %s to its previous value?", opts.Secret, opts.Env))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rollback cancelled")
	}

	if err := e.apply(ctx, opts.Secret, opts.Env, opts.Service, opts.EnvFile, value, opts.Redeploy, true); err != nil {
		metrics.RecordRollback(opts.Env, false)
		if auditErr := e.auditLog.Append(audit.ActionRollback, opts.Secret, opts.Env, opts.Service, false, preview); auditErr != nil {
			e.logger.Warn("Failed to record audit entry: %v", auditErr)
		}
		return err
	}

	if err := e.auditLog.Append(audit.ActionRollback, opts.Secret, opts.Env, opts.Service, true, preview); err != nil {
		return fmt.Errorf("rollback applied but audit logging failed: %w", err)
	}

	metrics.RecordRollback(opts.Env, true)
	e.logger.Info("Rollback of %s complete", opts.Secret)
	return nil
}

// checkRollbackWindow verifies a rotation happened, and asks before
// proceeding past the window.
func (e *Engine) checkRollbackWindow(env, secret string) error {
	last, ok := e.cooldowns.LastRotation(env, secret)
	if !ok {
		return kserrors.ErrNoRecentRotation
	}

	window := time.Duration(e.cfg.RollbackWindowSeconds) * time.Second
	elapsed := time.Since(last)
	if elapsed > window {
		e.logger.Warn("Rollback window expired (last rotation %s ago, window %s)",
			kserrors.FormatDuration(elapsed), kserrors.FormatDuration(window))
		proceed, err := e.Confirm("The rollback window has expired. Roll back anyway?")
		if err != nil {
			return err
		}
		if !proceed {
			return fmt.Errorf("rollback cancelled")
		}
	}
	return nil
}

// previousValue recovers the value that was live before the most recent
// rotation: the second most recent successful rotation entry.
func (e *Engine) previousValue(secret, env string) (string, error) {
	entries, err := e.auditLog.Read(audit.Query{Secret: secret, Env: env})
	if err != nil {
		return "", err
	}

	var rotations []audit.Entry
	for _, entry := range entries {
		if entry.Action == audit.ActionRotate && entry.Success {
			rotations = append(rotations, entry)
		}
	}

	if len(rotations) < 2 {
		return "", &kserrors.NotEnoughHistoryError{Found: len(rotations)}
	}
	return e.auditLog.DecryptValue(rotations[1])
}
