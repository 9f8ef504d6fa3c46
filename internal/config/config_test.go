package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func writeEnvfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postfan.env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(KeyAPIURL, "https://api.example.com/")
	t.Setenv(KeyUserID, "user-1")

	cfg, err := Load(writeEnvfile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, "user-1", cfg.UserID)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PublishTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1, cfg.PublishMaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, upload.DefaultLimits(), cfg.Limits())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NotEmpty(t, cfg.DirectoryPath)
	assert.False(t, cfg.R2.Enabled())
}

func TestLoadEnvfileAndOverride(t *testing.T) {
	clearEnv(t)
	path := writeEnvfile(t, `POSTFAN_API_URL=https://file.example.com
POSTFAN_USER_ID=from-file
POSTFAN_MAX_RETRIES=5
POSTFAN_RETRY_BASE_DELAY=250ms
POSTFAN_MAX_IMAGE_BYTES=1024
`)
	t.Setenv(KeyUserID, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.APIURL)
	assert.Equal(t, "from-env", cfg.UserID)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, int64(1024), cfg.MaxImageBytes)

	policy := cfg.RequestPolicy()
	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 1, cfg.PublishPolicy().MaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.UploadPolicy().Timeout)
}

func TestLoadMissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeEnvfile(t, ""))
	var missing postfan.MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{KeyAPIURL, KeyUserID}, missing.Variables)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		APIURL:            "https://api.example.com",
		UserID:            "u",
		RequestTimeout:    time.Second,
		UploadTimeout:     time.Second,
		PublishTimeout:    time.Second,
		MaxRetries:        3,
		PublishMaxRetries: 1,
		MaxVideoBytes:     1,
		MaxImageBytes:     1,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"relative url", func(c *Config) { c.APIURL = "api.example.com" }, KeyAPIURL},
		{"zero timeout", func(c *Config) { c.PublishTimeout = 0 }, KeyPublishTimeout},
		{"no retries", func(c *Config) { c.MaxRetries = 0 }, KeyMaxRetries},
		{"negative delay", func(c *Config) { c.RetryBaseDelay = -time.Second }, KeyRetryBaseDelay},
		{"partial r2", func(c *Config) { c.R2 = upload.R2Config{Bucket: "media"} }, "r2"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.edit(&cfg)
			var vErr postfan.ValidationError
			require.ErrorAs(t, cfg.Validate(), &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	full := base
	full.R2 = upload.R2Config{AccountID: "acc", AccessKey: "ak", SecretKey: "sk", Bucket: "media", PublicURL: "https://media.example.com"}
	assert.NoError(t, full.Validate())
}

func TestLoadLocalSkipsValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv(KeyDirectoryPath, "/tmp/postfan-accounts.json")

	cfg, err := LoadLocal(writeEnvfile(t, ""))
	require.NoError(t, err)
	assert.Empty(t, cfg.APIURL)
	assert.Equal(t, "/tmp/postfan-accounts.json", cfg.DirectoryPath)
}
