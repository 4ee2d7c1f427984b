package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3.0, cfg.Signing.RenderScale)
	assert.Equal(t, "clamp", cfg.Signing.BoundsPolicy)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL.Std())
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 9000, "read_timeout": "5s"},
		"security": {"jwt_secret": "file-secret-0123456789"},
		"signing": {"bounds_policy": "reject", "render_scale": 2},
		"session": {"ttl": 600}
	}`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("SIGNING_BOUNDS_POLICY", "allow")
	t.Setenv("ARCHIVE_BUCKET", "signed-docs")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, "file-secret-0123456789", cfg.Security.JWTSecret)
	assert.Equal(t, "allow", cfg.Signing.BoundsPolicy)
	assert.Equal(t, 2.0, cfg.Signing.RenderScale)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL.Std())
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "signed-docs", cfg.Archive.Bucket)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "jwt_secret")

	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("SIGNING_BOUNDS_POLICY", "wrap")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "bounds_policy")

	t.Setenv("SIGNING_BOUNDS_POLICY", "")
	t.Setenv("SERVER_PORT", "eighty")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "SERVER_PORT")

	t.Setenv("SERVER_PORT", "")
	_, err = LoadConfig(writeConfig(t, `{"server": `))
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoadConfigArchiveCredentials(t *testing.T) {
	path := writeConfig(t, `{
		"security": {"jwt_secret": "file-secret-0123456789"},
		"archive": {"enabled": true, "bucket": "signed-docs", "access_key_id": "AKIDFILE", "secret_access_key": "file-secret"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "AKIDFILE", cfg.Archive.AccessKeyID)
	assert.Equal(t, "file-secret", cfg.Archive.SecretAccessKey)

	t.Setenv("ARCHIVE_ACCESS_KEY_ID", "AKIDENV")
	t.Setenv("ARCHIVE_SECRET_ACCESS_KEY", "env-secret")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "AKIDENV", cfg.Archive.AccessKeyID)
	assert.Equal(t, "env-secret", cfg.Archive.SecretAccessKey)

	t.Setenv("ARCHIVE_ACCESS_KEY_ID", "")
	t.Setenv("ARCHIVE_SECRET_ACCESS_KEY", "")
	_, err = LoadConfig(writeConfig(t, `{
		"security": {"jwt_secret": "file-secret-0123456789"},
		"archive": {"access_key_id": "AKIDFILE"}
	}`))
	assert.ErrorContains(t, err, "secret_access_key")
}
