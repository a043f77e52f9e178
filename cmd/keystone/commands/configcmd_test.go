package commands

import (
	"os"
	"testing"

	"github.com/keystone-dev/keystone/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitWritesFile(t *testing.T) {
	cfg := testConfig(t)

	cmd := NewConfigCommand(cfg)
	cmd.SetArgs([]string{"init"})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(config.Path())
	assert.NoError(t, err)
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, config.Default().Save())

	cmd := NewConfigCommand(cfg)
	cmd.SetArgs([]string{"init"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigShow(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConnectorAuth.VercelToken = "secret-token"

	cmd := NewConfigCommand(cfg)
	cmd.SetArgs([]string{"show"})
	assert.NoError(t, cmd.Execute())
}
