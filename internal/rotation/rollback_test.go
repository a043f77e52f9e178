package rotation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keystone-dev/keystone/internal/audit"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/envfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rotateTwice performs two rotations so a rollback has history to restore.
func rotateTwice(t *testing.T, engine *Engine, envPath string) {
	t.Helper()
	for _, value := range []string{"first-value", "second-value"} {
		err := engine.Rotate(context.Background(), RotateOptions{
			Secret:  "API_KEY",
			Env:     DevEnv,
			Value:   value,
			EnvFile: envPath,
		})
		require.NoError(t, err)
	}
}

func TestRollbackRestoresPreviousValue(t *testing.T) {
	engine, _ := newTestEngine(t)
	envPath := filepath.Join(t.TempDir(), ".env")
	rotateTwice(t, engine, envPath)

	err := engine.Rollback(context.Background(), RollbackOptions{
		Secret:  "API_KEY",
		Env:     DevEnv,
		EnvFile: envPath,
	})
	require.NoError(t, err)

	value, err := envfile.Get(envPath, "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "first-value", value)
}

func TestRollbackRequiresRecentRotation(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.Rollback(context.Background(), RollbackOptions{
		Secret: "API_KEY",
		Env:    DevEnv,
	})
	assert.ErrorIs(t, err, kserrors.ErrNoRecentRotation)
}

func TestRollbackNeedsTwoRotations(t *testing.T) {
	engine, _ := newTestEngine(t)
	envPath := filepath.Join(t.TempDir(), ".env")

	err := engine.Rotate(context.Background(), RotateOptions{
		Secret:  "API_KEY",
		Env:     DevEnv,
		Value:   "only-value",
		EnvFile: envPath,
	})
	require.NoError(t, err)

	err = engine.Rollback(context.Background(), RollbackOptions{
		Secret:  "API_KEY",
		Env:     DevEnv,
		EnvFile: envPath,
	})
	require.Error(t, err)

	var history *kserrors.NotEnoughHistoryError
	require.ErrorAs(t, err, &history)
	assert.Equal(t, 1, history.Found)
}

func TestRollbackExpiredWindowAsksForConfirmation(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.cfg.RollbackWindowSeconds = 1
	envPath := filepath.Join(t.TempDir(), ".env")
	rotateTwice(t, engine, envPath)

	// Age the rotation marker past the window.
	marker := filepath.Join(engine.cfg.BaseDir(), "cooldowns", "dev-API_KEY")
	old := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	require.NoError(t, os.WriteFile(marker, []byte(old), 0o600))

	declined := false
	engine.Confirm = func(prompt string) (bool, error) {
		declined = true
		return false, nil
	}

	err := engine.Rollback(context.Background(), RollbackOptions{
		Secret:  "API_KEY",
		Env:     DevEnv,
		EnvFile: envPath,
	})
	require.Error(t, err)
	assert.True(t, declined)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestRollbackWritesAuditEntry(t *testing.T) {
	engine, _ := newTestEngine(t)
	envPath := filepath.Join(t.TempDir(), ".env")
	rotateTwice(t, engine, envPath)

	err := engine.Rollback(context.Background(), RollbackOptions{
		Secret:  "API_KEY",
		Env:     DevEnv,
		EnvFile: envPath,
	})
	require.NoError(t, err)

	entries, err := engine.Audit().Read(audit.Query{Secret: "API_KEY"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, audit.ActionRollback, entries[0].Action)
	assert.True(t, entries[0].Success)
	assert.Empty(t, entries[0].EncryptedSecretValue)
}

func TestRollbackDryRun(t *testing.T) {
	engine, _ := newTestEngine(t)
	envPath := filepath.Join(t.TempDir(), ".env")
	rotateTwice(t, engine, envPath)
	engine.DryRun = true
	engine.Confirm = func(prompt string) (bool, error) {
		t.Fatalf("dry run asked for confirmation: %s", prompt)
		return false, nil
	}

	err := engine.Rollback(context.Background(), RollbackOptions{
		Secret:  "API_KEY",
		Env:     DevEnv,
		EnvFile: envPath,
	})
	require.NoError(t, err)

	value, err := envfile.Get(envPath, "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "second-value", value)
}
