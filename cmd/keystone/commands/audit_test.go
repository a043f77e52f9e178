package commands

import (
	"testing"

	"github.com/keystone-dev/keystone/internal/audit"
	"github.com/keystone-dev/keystone/internal/keymat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditCommandEmptyLog(t *testing.T) {
	cfg := testConfig(t)

	cmd := NewAuditCommand(cfg)
	cmd.SetArgs([]string{})
	assert.NoError(t, cmd.Execute())
}

func TestAuditCommandFiltersBySecret(t *testing.T) {
	cfg := testConfig(t)

	material, err := keymat.Load(cfg.BaseDir())
	require.NoError(t, err)
	log := audit.New(cfg.AuditLogPath, material)
	require.NoError(t, log.Append(audit.ActionRotate, "API_KEY", "production", "vercel", true, "***1234"))
	require.NoError(t, log.Append(audit.ActionRotate, "DB_PASSWORD", "production", "", true, "***5678"))

	cmd := NewAuditCommand(cfg)
	cmd.SetArgs([]string{"API_KEY", "--verify"})
	assert.NoError(t, cmd.Execute())
}

func TestAuditCommandJSONOutput(t *testing.T) {
	cfg := testConfig(t)

	material, err := keymat.Load(cfg.BaseDir())
	require.NoError(t, err)
	log := audit.New(cfg.AuditLogPath, material)
	require.NoError(t, log.Append(audit.ActionSignal, "API_KEY", "staging", "", true, "***"))

	cmd := NewAuditCommand(cfg)
	cmd.SetArgs([]string{"--json", "--last", "5"})
	assert.NoError(t, cmd.Execute())
}
