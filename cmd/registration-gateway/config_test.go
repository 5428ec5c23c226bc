package main

import (
	"bytes"
	"testing"

	"admissions-gateway/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintConfig_MasksSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.ERP.APIKey = "super-secret-key-1234"
	cfg.ERP.EventsURL = "https://erp.example.fr/api/meetings"
	cfg.Database.Redis.Password = "hunter2"

	var out bytes.Buffer
	require.NoError(t, printConfig(&out, cfg))

	assert.NotContains(t, out.String(), "super-secret")
	assert.Contains(t, out.String(), "1234")
	assert.NotContains(t, out.String(), "hunter2")
	assert.Contains(t, out.String(), "https://erp.example.fr/api/meetings")
	assert.Equal(t, "super-secret-key-1234", cfg.ERP.APIKey)
}

func TestRootCmd_Version(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "registration-gateway version dev")
}
