// Package config loads postfan settings from the environment and an optional
// dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/transport"
	"github.com/blacktop/postfan/internal/upload"
)

const (
	// Base URL of the publishing backend
	KeyAPIURL = "POSTFAN_API_URL"
	// Backend user that owns the connected accounts
	KeyUserID = "POSTFAN_USER_ID"
	// Optional bearer token sent on every request
	KeyAPIToken = "POSTFAN_API_TOKEN"

	// Per-attempt timeout for ordinary JSON calls
	KeyRequestTimeout = "POSTFAN_REQUEST_TIMEOUT"
	// Per-attempt timeout for one media upload
	KeyUploadTimeout = "POSTFAN_UPLOAD_TIMEOUT"
	// Per-attempt timeout for a provider publish call
	KeyPublishTimeout = "POSTFAN_PUBLISH_TIMEOUT"
	// Attempts for idempotent calls (uploads, scheduling)
	KeyMaxRetries = "POSTFAN_MAX_RETRIES"
	// Attempts for provider publish calls
	KeyPublishMaxRetries = "POSTFAN_PUBLISH_MAX_RETRIES"
	// Delay after the first failed attempt; doubles after each further one
	KeyRetryBaseDelay = "POSTFAN_RETRY_BASE_DELAY"

	KeyMaxVideoBytes = "POSTFAN_MAX_VIDEO_BYTES"
	KeyMaxImageBytes = "POSTFAN_MAX_IMAGE_BYTES"

	// Log level (e.g. "debug", "info", "warn", "error")
	KeyLogLevel = "POSTFAN_LOG_LEVEL"
	// Log output format ("text" or "json")
	KeyLogFormat = "POSTFAN_LOG_FORMAT"
	// JSON file holding known accounts
	KeyDirectoryPath = "POSTFAN_DIRECTORY_PATH"

	// Cloudflare R2; when set, media goes straight to the bucket
	KeyR2AccountID = "POSTFAN_R2_ACCOUNT_ID"
	KeyR2AccessKey = "POSTFAN_R2_ACCESS_KEY"
	KeyR2SecretKey = "POSTFAN_R2_SECRET_KEY"
	KeyR2Bucket    = "POSTFAN_R2_BUCKET"
	KeyR2PublicURL = "POSTFAN_R2_PUBLIC_URL"
)

// DefaultEnvfile is read from the working directory when no path is given.
const DefaultEnvfile = ".env"

var keys = []string{
	KeyAPIURL, KeyUserID, KeyAPIToken,
	KeyRequestTimeout, KeyUploadTimeout, KeyPublishTimeout,
	KeyMaxRetries, KeyPublishMaxRetries, KeyRetryBaseDelay,
	KeyMaxVideoBytes, KeyMaxImageBytes,
	KeyLogLevel, KeyLogFormat, KeyDirectoryPath,
	KeyR2AccountID, KeyR2AccessKey, KeyR2SecretKey, KeyR2Bucket, KeyR2PublicURL,
}

// Config is the resolved runtime configuration.
type Config struct {
	APIURL   string
	UserID   string
	APIToken string

	RequestTimeout    time.Duration
	UploadTimeout     time.Duration
	PublishTimeout    time.Duration
	MaxRetries        int
	PublishMaxRetries int
	RetryBaseDelay    time.Duration

	MaxVideoBytes int64
	MaxImageBytes int64

	LogLevel      string
	LogFormat     string
	DirectoryPath string

	R2 upload.R2Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRequestTimeout, 60*time.Second)
	v.SetDefault(KeyUploadTimeout, 10*time.Minute)
	v.SetDefault(KeyPublishTimeout, 5*time.Minute)
	v.SetDefault(KeyMaxRetries, 3)
	v.SetDefault(KeyPublishMaxRetries, 1)
	v.SetDefault(KeyRetryBaseDelay, time.Second)
	v.SetDefault(KeyMaxVideoBytes, upload.DefaultMaxVideoBytes)
	v.SetDefault(KeyMaxImageBytes, upload.DefaultMaxImageBytes)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyDirectoryPath, defaultDirectoryPath())
}

func defaultDirectoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".postfan", "accounts.json")
	}
	return filepath.Join(dir, "postfan", "accounts.json")
}

// Load reads defaults, then the dotenv file at path (or ./.env when path is
// empty and the file exists), then POSTFAN_* environment variables.
func Load(path string) (Config, error) {
	cfg, err := LoadLocal(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadLocal is Load without validation, for commands that never reach the
// backend.
func LoadLocal(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("dotenv")
	setDefaults(v)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	envfile, explicit := path, path != ""
	if !explicit {
		envfile = DefaultEnvfile
	}
	v.SetConfigFile(envfile)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", envfile, err)
		}
	}

	cfg := Config{
		APIURL:            strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIURL)), "/"),
		UserID:            strings.TrimSpace(v.GetString(KeyUserID)),
		APIToken:          strings.TrimSpace(v.GetString(KeyAPIToken)),
		RequestTimeout:    v.GetDuration(KeyRequestTimeout),
		UploadTimeout:     v.GetDuration(KeyUploadTimeout),
		PublishTimeout:    v.GetDuration(KeyPublishTimeout),
		MaxRetries:        v.GetInt(KeyMaxRetries),
		PublishMaxRetries: v.GetInt(KeyPublishMaxRetries),
		RetryBaseDelay:    v.GetDuration(KeyRetryBaseDelay),
		MaxVideoBytes:     v.GetInt64(KeyMaxVideoBytes),
		MaxImageBytes:     v.GetInt64(KeyMaxImageBytes),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
		DirectoryPath:     v.GetString(KeyDirectoryPath),
		R2: upload.R2Config{
			AccountID: v.GetString(KeyR2AccountID),
			AccessKey: v.GetString(KeyR2AccessKey),
			SecretKey: v.GetString(KeyR2SecretKey),
			Bucket:    v.GetString(KeyR2Bucket),
			PublicURL: v.GetString(KeyR2PublicURL),
		},
	}
	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c Config) Validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, KeyAPIURL)
	}
	if c.UserID == "" {
		missing = append(missing, KeyUserID)
	}
	if len(missing) > 0 {
		return postfan.MissingEnvError{Provider: "postfan", Variables: missing}
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return postfan.ValidationError{Field: KeyAPIURL, Reason: fmt.Sprintf("%q is not an absolute URL", c.APIURL)}
	}
	for key, d := range map[string]time.Duration{
		KeyRequestTimeout: c.RequestTimeout,
		KeyUploadTimeout:  c.UploadTimeout,
		KeyPublishTimeout: c.PublishTimeout,
	} {
		if d <= 0 {
			return postfan.ValidationError{Field: key, Reason: "must be a positive duration"}
		}
	}
	if c.MaxRetries < 1 {
		return postfan.ValidationError{Field: KeyMaxRetries, Reason: "must be at least 1"}
	}
	if c.PublishMaxRetries < 1 {
		return postfan.ValidationError{Field: KeyPublishMaxRetries, Reason: "must be at least 1"}
	}
	if c.RetryBaseDelay < 0 {
		return postfan.ValidationError{Field: KeyRetryBaseDelay, Reason: "must not be negative"}
	}
	if c.MaxVideoBytes <= 0 || c.MaxImageBytes <= 0 {
		return postfan.ValidationError{Field: "media limits", Reason: "size limits must be positive"}
	}
	if c.R2.Enabled() {
		if missing := c.R2.Missing(); len(missing) > 0 {
			return postfan.ValidationError{Field: "r2", Reason: "incomplete settings, missing " + strings.Join(missing, ", ")}
		}
	}
	return nil
}

// RequestPolicy governs scheduling and other JSON calls.
func (c Config) RequestPolicy() transport.Policy {
	return transport.Policy{Timeout: c.RequestTimeout, MaxRetries: c.MaxRetries, BaseDelay: c.RetryBaseDelay}
}

// UploadPolicy governs one media upload.
func (c Config) UploadPolicy() transport.Policy {
	return transport.Policy{Timeout: c.UploadTimeout, MaxRetries: c.MaxRetries, BaseDelay: c.RetryBaseDelay}
}

// PublishPolicy governs provider publish calls, which are not idempotent.
func (c Config) PublishPolicy() transport.Policy {
	return transport.Policy{Timeout: c.PublishTimeout, MaxRetries: c.PublishMaxRetries, BaseDelay: c.RetryBaseDelay}
}

// Limits returns the upload size ceilings.
func (c Config) Limits() upload.Limits {
	return upload.Limits{MaxVideoBytes: c.MaxVideoBytes, MaxImageBytes: c.MaxImageBytes}
}
