package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
drafts:
  ttl: 30m
engine:
  model: gpt-4o
`), 0o644))

	t.Setenv("EXTRACTOR_PORT", "7070")
	t.Setenv("EXTRACTOR_DRAFT_TTL", "2h")
	t.Setenv("EXTRACTOR_TOKEN_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file, the file wins over defaults.
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Drafts.TTL)
	assert.Equal(t, "from-env", cfg.Tokens.Secret)
	assert.Equal(t, "gpt-4o", cfg.Engine.Model)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestValidate_Rejections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "oracle"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Drafts.Backend = "memcached"
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Drafts.TTL = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate(), "auth without keys locks everyone out")
}

func TestTokenTTL_MirrorsDraftTTLWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Drafts.TTL = 45 * time.Minute

	assert.Equal(t, 45*time.Minute, cfg.TokenTTL())

	cfg.Tokens.TTL = 10 * time.Minute
	assert.Equal(t, 10*time.Minute, cfg.TokenTTL())
}
