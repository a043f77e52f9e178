package cooldown

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWithoutMarkerPasses(t *testing.T) {
	tracker := New(t.TempDir(), time.Minute)
	assert.NoError(t, tracker.Check("production", "API_KEY"))
}

func TestRecordThenCheckFails(t *testing.T) {
	tracker := New(t.TempDir(), time.Minute)
	require.NoError(t, tracker.Record("production", "API_KEY"))

	err := tracker.Check("production", "API_KEY")
	require.Error(t, err)

	var active *kserrors.CooldownActiveError
	require.ErrorAs(t, err, &active)
	assert.Greater(t, active.Remaining, time.Duration(0))
	assert.LessOrEqual(t, active.Remaining, time.Minute)
}

func TestCheckPassesAfterWindow(t *testing.T) {
	dir := t.TempDir()
	tracker := New(dir, time.Minute)

	old := time.Now().UTC().Add(-2 * time.Minute).Format(time.RFC3339)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "production-API_KEY"), []byte(old), 0o600))

	assert.NoError(t, tracker.Check("production", "API_KEY"))
	assert.Zero(t, tracker.Remaining("production", "API_KEY"))
}

func TestCooldownIsScopedPerPair(t *testing.T) {
	tracker := New(t.TempDir(), time.Minute)
	require.NoError(t, tracker.Record("production", "API_KEY"))

	assert.Error(t, tracker.Check("production", "API_KEY"))
	assert.NoError(t, tracker.Check("staging", "API_KEY"))
	assert.NoError(t, tracker.Check("production", "DB_PASSWORD"))
}

func TestCorruptMarkerDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	tracker := New(dir, time.Minute)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "production-API_KEY"), []byte("garbage"), 0o600))
	assert.NoError(t, tracker.Check("production", "API_KEY"))
}

func TestRemainingReflectsRecord(t *testing.T) {
	tracker := New(t.TempDir(), time.Minute)
	require.NoError(t, tracker.Record("production", "API_KEY"))

	remaining := tracker.Remaining("production", "API_KEY")
	assert.Greater(t, remaining, 50*time.Second)
	assert.LessOrEqual(t, remaining, time.Minute)
}
