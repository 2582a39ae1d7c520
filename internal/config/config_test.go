package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, "uploads", cfg.Blob.UploadBucket)
	assert.Equal(t, "processed", cfg.Blob.ResultBucket)
	assert.Equal(t, 60*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.HTTP.CORSOrigins)
	assert.Empty(t, cfg.Auth.CallbackSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("RESULT_BUCKET", "results")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "results", cfg.Blob.ResultBucket)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server_port: \"9090\"\nauth:\n  jwt_secret: from-file\nblob:\n  upload_bucket: raw\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("UPLOAD_BUCKET", "raw-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "raw-env", cfg.Blob.UploadBucket)
}

func TestValidate_RequiresSecretOutsideDevelopment(t *testing.T) {
	cfg := &Config{Env: "production", Auth: AuthConfig{TokenTTL: time.Minute}, Blob: BlobConfig{UploadBucket: "u", ResultBucket: "r"}}
	assert.Error(t, cfg.Validate())

	dev := &Config{
		Env:  "development",
		Auth: AuthConfig{TokenTTL: time.Minute},
		Blob: BlobConfig{UploadBucket: "u", ResultBucket: "r"},
		HTTP: HTTPConfig{RateLimit: 10, RateWindow: time.Minute},
	}
	require.NoError(t, dev.Validate())
	assert.NotEmpty(t, dev.Auth.JWTSecret)
}

func TestValidate_RejectsZeroRateLimit(t *testing.T) {
	cfg := &Config{
		Env:  "development",
		Auth: AuthConfig{TokenTTL: time.Minute},
		Blob: BlobConfig{UploadBucket: "u", ResultBucket: "r"},
		HTTP: HTTPConfig{RateLimit: 0, RateWindow: time.Minute},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_RATE_LIMIT")

	cfg.HTTP = HTTPConfig{RateLimit: 5, RateWindow: 0}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_RATE_WINDOW")
}

func TestLoad_RejectsZeroRateLimitFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AUTH_RATE_LIMIT", "0")

	_, err := Load()
	assert.Error(t, err)
}
