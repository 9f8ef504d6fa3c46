package postfan

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized provider error codes returned by the backend.
const (
	CodeTikTokAuth         = "TIKTOK_AUTH_ERROR"
	CodeTwitterAuth        = "TWITTER_AUTH_ERROR"
	CodeInvalidMediaFormat = "INVALID_MEDIA_FORMAT"
)

// ErrSubmissionInFlight is returned when a submission is started while
// another one is still running.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s settings not configured", e.Provider)
	}
	return fmt.Sprintf("%s settings not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError is a client-side check that failed before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// TransportError is the last failure of a retried network call.
type TransportError struct {
	URL        string
	Attempts   int
	Timeout    bool
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("request ")
	b.WriteString(e.URL)
	switch {
	case e.Timeout:
		b.WriteString(" timed out")
	case e.StatusCode != 0:
		fmt.Fprintf(&b, " failed with status %d", e.StatusCode)
	default:
		b.WriteString(" failed")
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamTimeoutError marks a 504/524 gateway timeout on a publish call.
// The post may still complete server-side.
type UpstreamTimeoutError struct {
	Platform   Platform
	StatusCode int
}

func (e UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("%s: upstream timed out (status %d)", e.Platform, e.StatusCode)
}

// IsGatewayTimeout reports whether status is an upstream gateway timeout.
func IsGatewayTimeout(status int) bool {
	return status == 504 || status == 524
}

// AuthError means the stored provider credential is invalid or expired.
type AuthError struct {
	Platform Platform
	Code     string
}

func (e AuthError) Error() string {
	return fmt.Sprintf("%s: account needs to be reconnected (%s)", e.Platform, e.Code)
}

// MediaFormatError means the provider rejected the media encoding.
type MediaFormatError struct {
	Platform Platform
	Message  string
}

func (e MediaFormatError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unsupported media format", e.Platform)
	}
	return fmt.Sprintf("%s: unsupported media format: %s", e.Platform, e.Message)
}

// UnknownServerError carries a provider failure message verbatim.
type UnknownServerError struct {
	Platform   Platform
	StatusCode int
	Message    string
}

func (e UnknownServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown server error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Platform, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Platform, msg)
}

// UploadError is returned by the upload pipeline for a single file.
type UploadError struct {
	File   string
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload %s: %s", e.File, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }
