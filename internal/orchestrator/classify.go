package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/tracker"
)

// User-facing messages.
const (
	MessagePosted          = "Posted successfully"
	MessageReconnect       = "Account needs to be reconnected"
	MessageUpstreamPending = "Publishing is taking longer than usual; the post may have completed server-side"
	MessageNoResult        = "No result returned for this account"
	MessageUnknown         = "Unknown error"
)

// MediaFormatMessage is the actionable text shown when a provider rejects the
// media encoding.
func MediaFormatMessage(platform postfan.Platform) string {
	switch platform {
	case postfan.PlatformTikTok:
		return "TikTok rejected the media format. Use an H.264 MP4 (or JPEG/WebP images) and try again"
	case postfan.PlatformTwitter:
		return "X rejected the media format. Use an MP4 under 2:20 (or JPEG/PNG/GIF/WebP images) and try again"
	default:
		return "The provider rejected the media format. Re-encode the file and try again"
	}
}

// IsAuthCode reports whether code means the stored credential is unusable.
func IsAuthCode(code string) bool {
	switch code {
	case postfan.CodeTikTokAuth, postfan.CodeTwitterAuth:
		return true
	default:
		return false
	}
}

// Classify turns one provider result into a terminal tracker update.
func Classify(platform postfan.Platform, r postfan.ProviderResult) tracker.Update {
	switch {
	case r.Success:
		return tracker.Update{Status: postfan.StatusSuccess, Message: MessagePosted, ProviderRef: r.Ref}
	case IsAuthCode(r.Code):
		return tracker.Update{Status: postfan.StatusReconnect, Message: MessageReconnect, ErrorCode: r.Code}
	case r.Code == postfan.CodeInvalidMediaFormat:
		return tracker.Update{
			Status:             postfan.StatusError,
			Message:            MediaFormatMessage(platform),
			ErrorCode:          r.Code,
			InvalidMediaFormat: true,
		}
	default:
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			msg = MessageUnknown
		}
		return tracker.Update{Status: postfan.StatusError, Message: msg, ErrorCode: r.Code}
	}
}

// ResultError converts a non-success AccountResult into the matching typed
// error, or nil when the account succeeded.
func ResultError(r postfan.AccountResult) error {
	switch {
	case r.Status == postfan.StatusSuccess:
		return nil
	case r.Status == postfan.StatusReconnect:
		return postfan.AuthError{Platform: r.Platform, Code: r.ErrorCode}
	case r.InvalidMediaFormat:
		return postfan.MediaFormatError{Platform: r.Platform, Message: r.Message}
	default:
		return postfan.UnknownServerError{Platform: r.Platform, Message: r.Message}
	}
}

// OutcomeError joins the failures of every account, or returns nil when all
// of them succeeded. Scheduled outcomes never carry per-account failures.
func OutcomeError(o *postfan.PostOutcome) error {
	if o.Scheduled {
		return nil
	}
	var errs []error
	for _, r := range o.Results() {
		if err := ResultError(r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", displayName(r), err))
		}
	}
	return errors.Join(errs...)
}

func failureMessage(err error) string {
	var tErr *postfan.TransportError
	if errors.As(err, &tErr) && tErr.Timeout {
		return "Request timed out; please try again"
	}
	var unknown postfan.UnknownServerError
	if errors.As(err, &unknown) && unknown.Message != "" {
		return unknown.Message
	}
	return err.Error()
}

func displayName(r postfan.AccountResult) string {
	if r.DisplayName != "" {
		return fmt.Sprintf("%s/%s", r.Platform, r.DisplayName)
	}
	return fmt.Sprintf("%s/%s", r.Platform, r.AccountID)
}
