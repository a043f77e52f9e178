// Package rotation implements the rotate and rollback workflows: value
// selection, locking, cooldown enforcement, provider updates and audit
// logging.
package rotation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/keystone-dev/keystone/internal/audit"
	"github.com/keystone-dev/keystone/internal/config"
	"github.com/keystone-dev/keystone/internal/connectors"
	"github.com/keystone-dev/keystone/internal/cooldown"
	"github.com/keystone-dev/keystone/internal/envfile"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/keymat"
	"github.com/keystone-dev/keystone/internal/keypool"
	"github.com/keystone-dev/keystone/internal/lockfile"
	"github.com/keystone-dev/keystone/internal/logging"
	"github.com/keystone-dev/keystone/internal/metrics"
)

const (
	generatedLength  = 32
	generatedCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// DevEnv is applied by editing a local dotenv file instead of a
	// hosting provider.
	DevEnv = "dev"

	lowPoolThreshold = 2
)

// Engine drives rotations and rollbacks for one configuration.
type Engine struct {
	cfg       *config.Config
	logger    *logging.Logger
	material  *keymat.Material
	pools     *keypool.Store
	auditLog  *audit.Log
	cooldowns *cooldown.Tracker

	// Confirm asks the operator before destructive steps. Implementations
	// that cannot prompt should auto-approve.
	Confirm func(prompt string) (bool, error)

	// Connect resolves a service name to a connector. Overridable in tests.
	Connect func(service string) (connectors.Connector, error)

	// DryRun previews the rotation without applying or recording it.
	DryRun bool
}

// New creates an engine rooted at the config's state directory.
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	base := cfg.BaseDir()
	material, err := keymat.Load(base)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		material:  material,
		pools:     keypool.NewStore(filepath.Join(base, "pools"), material.Cipher()),
		auditLog:  audit.New(cfg.AuditLogPath, material),
		cooldowns: cooldown.New(filepath.Join(base, "cooldowns"), time.Duration(cfg.CooldownSeconds)*time.Second),
	}
	e.Confirm = func(string) (bool, error) { return true, nil }
	e.Connect = func(service string) (connectors.Connector, error) {
		return connectors.ForService(service, cfg, logger)
	}
	return e, nil
}

// Pools returns the key pool store sharing this engine's cipher.
func (e *Engine) Pools() *keypool.Store {
	return e.pools
}

// Audit returns the audit log sharing this engine's key material.
func (e *Engine) Audit() *audit.Log {
	return e.auditLog
}

// Cooldowns returns the cooldown tracker.
func (e *Engine) Cooldowns() *cooldown.Tracker {
	return e.cooldowns
}

// RotateOptions parameterize one rotation.
type RotateOptions struct {
	Secret     string
	Env        string
	Service    string
	Value      string
	EnvFile    string
	Redeploy   bool
	FromSignal bool
}

// Rotate runs the full rotation workflow for one secret.
func (e *Engine) Rotate(ctx context.Context, opts RotateOptions) error {
	if opts.Secret == "" || opts.Env == "" {
		return kserrors.UserError{
			Message:    "Secret name and environment are required",
			Suggestion: "Pass the secret name and --env flag, e.g. keystone rotate API_KEY --env production",
		}
	}

	start := time.Now()
	lock := lockfile.New(filepath.Join(e.cfg.BaseDir(), "locks"), opts.Env, opts.Secret, e.logger)
	if err := lock.Acquire("rotate"); err != nil {
		return err
	}
	defer lock.Release()

	if err := e.cooldowns.Check(opts.Env, opts.Secret); err != nil {
		return err
	}

	value, err := e.selectValue(ctx, opts)
	if err != nil {
		return err
	}

	preview := logging.Mask(value)
	e.logger.Info("Rotating %s in %s (new value %s)", opts.Secret, opts.Env, preview)

	if e.DryRun {
		e.logger.Info("Dry run: %s would be updated in %s", opts.Secret, opts.Env)
		return nil
	}

	if err := e.apply(ctx, opts.Secret, opts.Env, opts.Service, opts.EnvFile, value, opts.Redeploy, opts.FromSignal); err != nil {
		metrics.RecordRotation(opts.Env, false, time.Since(start).Seconds())
		if auditErr := e.auditLog.Append(audit.ActionRotate, opts.Secret, opts.Env, opts.Service, false, preview); auditErr != nil {
			e.logger.Warn("Failed to record audit entry: %v", auditErr)
		}
		return err
	}

	if err := e.cooldowns.Record(opts.Env, opts.Secret); err != nil {
		e.logger.Warn("Failed to record cooldown marker: %v", err)
	}

	if err := e.auditLog.AppendWithValue(audit.ActionRotate, opts.Secret, opts.Env, opts.Service, true, preview, value); err != nil {
		return fmt.Errorf("rotation applied but audit logging failed: %w", err)
	}

	metrics.RecordRotation(opts.Env, true, time.Since(start).Seconds())
	e.logger.Info("Rotation of %s complete", opts.Secret)
	return nil
}

// selectValue picks the new secret value: an explicit value wins, then
// the key pool, then a random generated value.
func (e *Engine) selectValue(ctx context.Context, opts RotateOptions) (string, error) {
	if opts.Value != "" {
		return opts.Value, nil
	}

	if e.pools.Exists(opts.Secret) {
		value, err := e.valueFromPool(ctx, opts)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, kserrors.ErrPoolExhausted) || errors.Is(err, kserrors.ErrPoolEmpty) {
			e.logger.Warn("Key pool for %s is exhausted, falling back to a generated value", opts.Secret)
		} else {
			return "", err
		}
	}

	return generateValue()
}

func (e *Engine) valueFromPool(ctx context.Context, opts RotateOptions) (string, error) {
	pool, err := e.pools.Load(opts.Secret)
	if err != nil {
		return "", err
	}

	available, active, exhausted := pool.CountByStatus()
	e.logger.Debug("Pool for %s: %d available, %d active, %d exhausted", opts.Secret, available, active, exhausted)

	// Best effort: retire the value currently deployed so it is never
	// handed out again.
	if current, err := e.currentValue(ctx, opts); err == nil && current != "" {
		if err := e.pools.MarkExhausted(pool, current); err == nil {
			e.logger.Info("Marked current key as exhausted")
		}
	}

	value, err := e.pools.GetNextAvailable(pool)
	if err != nil {
		return "", err
	}
	if err := e.pools.Save(pool); err != nil {
		return "", err
	}

	remaining, _, _ := pool.CountByStatus()
	metrics.SetPoolAvailable(opts.Secret, remaining)
	if remaining <= lowPoolThreshold {
		e.logger.Warn("Only %d keys left in pool for %s, provision more soon", remaining, opts.Secret)
	}
	return value, nil
}

// currentValue reads the value currently deployed, when the target
// supports reading it back.
func (e *Engine) currentValue(ctx context.Context, opts RotateOptions) (string, error) {
	if opts.Env == DevEnv {
		return envfile.Get(e.envFilePath(opts.EnvFile), opts.Secret)
	}
	if opts.Service == "" {
		return "", fmt.Errorf("no service to read current value from")
	}
	connector, err := e.Connect(opts.Service)
	if err != nil {
		return "", err
	}
	return connector.GetSecret(ctx, opts.Secret)
}

// apply pushes the value to its destination: a dotenv file for dev, a
// provider connector otherwise.
func (e *Engine) apply(ctx context.Context, secret, env, service, envFile, value string, redeploy, autoApprove bool) error {
	if env == DevEnv {
		return envfile.Set(e.envFilePath(envFile), secret, value)
	}

	if service == "" {
		return kserrors.UserError{
			Message:    "A service is required for non-dev environments",
			Suggestion: "Pass --service with one of: " + strings.Join(connectors.KnownServices(), ", "),
		}
	}

	if !autoApprove {
		if !e.inMaintenanceWindow() {
			ok, err := e.Confirm(fmt.Sprintf("Outside maintenance window. Update '%s' in %s anyway?", secret, env))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("update cancelled")
			}
		}
		ok, err := e.Confirm(fmt.Sprintf("Update '%s' in %s environment via %s?", secret, env, service))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("update cancelled")
		}
	}

	connector, err := e.Connect(service)
	if err != nil {
		return err
	}
	if err := connector.UpdateSecret(ctx, secret, value); err != nil {
		return err
	}

	if redeploy {
		if err := connector.TriggerRefresh(ctx); err != nil {
			return fmt.Errorf("secret updated but refresh failed: %w", err)
		}
	}
	return nil
}

// inMaintenanceWindow reports whether now falls in a configured window.
// No configured windows means rotations are always allowed.
func (e *Engine) inMaintenanceWindow() bool {
	if len(e.cfg.MaintenanceWindows) == 0 {
		return true
	}

	now := time.Now().UTC()
	day := strings.ToLower(now.Weekday().String())
	for _, w := range e.cfg.MaintenanceWindows {
		for _, d := range w.Days {
			if strings.ToLower(d) == day && now.Hour() >= w.StartHour && now.Hour() < w.EndHour {
				return true
			}
		}
	}
	return false
}

func (e *Engine) envFilePath(override string) string {
	if override != "" {
		return override
	}
	return ".env"
}

func generateValue() (string, error) {
	max := big.NewInt(int64(len(generatedCharset)))
	out := make([]byte, generatedLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random value: %w", err)
		}
		out[i] = generatedCharset[n.Int64()]
	}
	return string(out), nil
}
