package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestServeFlagsOverrideFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_id: from-file\nlisten_address: 127.0.0.1:9000\n"), 0o600))
	t.Setenv(config.FileEnv, "")
	t.Setenv("COLLAB_TOKEN", "env-token")

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--project", "p-flag"}))

	var f serveFlags
	f.configPath, _ = cmd.Flags().GetString("config")
	f.projectID, _ = cmd.Flags().GetString("project")

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "p-flag", cfg.ProjectID)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	assert.Equal(t, "env-token", cfg.AuthToken)
}

func TestServeRejectsInvalidURLFlag(t *testing.T) {
	t.Setenv(config.FileEnv, "")

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--ws-url", "not a url"}))
	wsURL, _ := cmd.Flags().GetString("ws-url")

	_, err := loadConfig(cmd, serveFlags{wsURL: wsURL})
	assert.Error(t, err)
}
