package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server_url: http://localhost:5000\n"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.EqualValues(t, 50, cfg.MaxUploadBytesMb)
	assert.EqualValues(t, 50<<20, cfg.MaxUploadBytes())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./artifacts", cfg.Artifacts.BaseDir)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.MinIO.Enabled())
	assert.False(t, cfg.NATS.Enabled())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing server", "poll_interval: 1s\n"},
		{"relative server", "server_url: /api\n"},
		{"negative timeout", "server_url: http://x\nrequest_timeout: -1s\n"},
		{"minio without bucket", "server_url: http://x\nminio:\n  endpoint: localhost:9000\n"},
		{"nats without subject", "server_url: http://x\nnats:\n  url: nats://localhost:4222\n"},
		{"broken yaml", "server_url: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: https://tool.example\npoll_interval: 500ms\nmax_upload_mb: 10\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.EqualValues(t, 10<<20, cfg.MaxUploadBytes())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
