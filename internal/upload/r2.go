package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/transport"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// R2Config holds Cloudflare R2 bucket settings.
type R2Config struct {
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

// Enabled reports whether any R2 setting is present.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" || c.AccessKey != "" || c.SecretKey != "" || c.Bucket != "" || c.PublicURL != ""
}

// Missing lists the empty settings by name.
func (c R2Config) Missing() []string {
	fields := []struct{ name, value string }{
		{"account id", c.AccountID},
		{"access key", c.AccessKey},
		{"secret key", c.SecretKey},
		{"bucket", c.Bucket},
		{"public url", c.PublicURL},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Store writes media straight to an R2 bucket.
type R2Store struct {
	client    objectPutter
	bucket    string
	publicURL string
	policy    transport.Policy
	sleep     transport.Sleeper
	newKey    func(name string) (string, error)
}

// NewR2Store builds an S3 client against the account's R2 endpoint. Every
// PutObject attempt is bounded by policy.Timeout, and policy.MaxRetries caps
// the attempts; the SDK's own retryer is disabled.
func NewR2Store(ctx context.Context, cfg R2Config, policy transport.Policy) (*R2Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load r2 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
		o.RetryMaxAttempts = 1
	})
	return newR2Store(client, cfg, policy), nil
}

func newR2Store(client objectPutter, cfg R2Config, policy transport.Policy) *R2Store {
	return &R2Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		policy:    policy,
		sleep:     transport.Sleep,
		newKey:    objectKey,
	}
}

// Put uploads asset and returns its public URL. Failed attempts are retried
// with the policy's backoff; the last error surfaces.
func (s *R2Store) Put(ctx context.Context, asset postfan.MediaAsset, progress func(float64)) (string, error) {
	name := filepath.Base(asset.LocalHandle)
	key, err := s.newKey(name)
	if err != nil {
		return "", &postfan.UploadError{File: name, Reason: "generate object key", Err: err}
	}
	contentType, _ := DetectMIME(asset.LocalHandle)
	target := fmt.Sprintf("r2://%s/%s", s.bucket, key)

	gate := &attemptGate{fn: progress}
	defer gate.close()

	attempts := s.policy.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr *postfan.TransportError
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.putOnce(ctx, asset, key, contentType, gate.next())
		if err == nil {
			return s.publicURL + "/" + key, nil
		}
		if ctx.Err() != nil {
			return "", &postfan.UploadError{File: name, Reason: "put object", Err: fmt.Errorf("request canceled: %w", ctx.Err())}
		}
		var tErr *postfan.TransportError
		if !errors.As(err, &tErr) {
			return "", &postfan.UploadError{File: name, Reason: "put object", Err: err}
		}
		tErr.URL = target
		tErr.Attempts = attempt
		lastErr = tErr
		logutil.Debug("r2 put failed", "key", key, "attempt", attempt, "of", attempts, "err", err)
		if attempt == attempts {
			break
		}
		if err := s.sleep(ctx, s.policy.Delay(attempt)); err != nil {
			return "", &postfan.UploadError{File: name, Reason: "put object", Err: fmt.Errorf("request canceled: %w", err)}
		}
	}
	return "", &postfan.UploadError{File: name, Reason: "put object", Err: lastErr}
}

func (s *R2Store) putOnce(ctx context.Context, asset postfan.MediaAsset, key, contentType string, progress func(float64)) error {
	f, err := os.Open(asset.LocalHandle)
	if err != nil {
		return fmt.Errorf("open %s: %w", asset.LocalHandle, err)
	}
	defer f.Close()

	attemptCtx := ctx
	cancel := func() {}
	if s.policy.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, s.policy.Timeout)
	}
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          &progressReader{r: f, total: asset.SizeBytes, fn: progress},
		ContentLength: aws.Int64(asset.SizeBytes),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err = s.client.PutObject(attemptCtx, input, func(o *s3.Options) { o.RetryMaxAttempts = 1 })
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return err
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return &postfan.TransportError{Timeout: true, Err: err}
	default:
		return &postfan.TransportError{Err: err}
	}
}

func objectKey(name string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	return "uploads/" + id + "/" + url.PathEscape(name), nil
}
