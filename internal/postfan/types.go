package postfan

import (
	"context"
	"time"
)

// Platform identifies one of the provider integrations.
type Platform string

const (
	PlatformTikTok  Platform = "tiktok"
	PlatformTwitter Platform = "twitter"
)

// Platforms lists every supported provider in a stable order.
var Platforms = []Platform{PlatformTikTok, PlatformTwitter}

// Valid reports whether p is a supported provider.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTikTok, PlatformTwitter:
		return true
	default:
		return false
	}
}

// MimeClass is the coarse media category used for validation.
type MimeClass string

const (
	MimeImage MimeClass = "image"
	MimeVideo MimeClass = "video"
)

// MediaAsset is a local file selected for posting. RemoteURL is set once the
// upload succeeded and never changes afterwards.
type MediaAsset struct {
	LocalHandle string
	RemoteURL   string
	MimeClass   MimeClass
	SizeBytes   int64
	Validated   bool
}

// Uploaded reports whether the asset already has a remote URL.
func (m MediaAsset) Uploaded() bool { return m.RemoteURL != "" }

// TargetAccount is one connected provider account chosen by the caller.
type TargetAccount struct {
	Platform    Platform `json:"platform"`
	AccountID   string   `json:"accountId"`
	DisplayName string   `json:"displayName"`
}

// Key returns the tracker key for the account.
func (t TargetAccount) Key() AccountKey {
	return AccountKey{Platform: t.Platform, AccountID: t.AccountID}
}

// AccountKey identifies an account across providers.
type AccountKey struct {
	Platform  Platform
	AccountID string
}

func (k AccountKey) String() string { return string(k.Platform) + ":" + k.AccountID }

// ContentKind selects which family of provider endpoints a post uses.
type ContentKind string

const (
	KindVideo  ContentKind = "video"
	KindImages ContentKind = "images"
	KindText   ContentKind = "text"
)

// Content is the payload shared by every target.
type Content struct {
	Media    []MediaAsset
	Caption  string
	TextOnly bool
}

// MediaURLs returns the remote URLs of all uploaded assets in order.
func (c Content) MediaURLs() []string {
	urls := make([]string, 0, len(c.Media))
	for _, m := range c.Media {
		if m.RemoteURL != "" {
			urls = append(urls, m.RemoteURL)
		}
	}
	return urls
}

// PostRequest is a single submission. A nil Schedule means publish now.
type PostRequest struct {
	Content  Content
	Targets  []TargetAccount
	Schedule *time.Time
}

// AccountStatus is the per-account state of a submission.
type AccountStatus string

const (
	StatusPending   AccountStatus = "pending"
	StatusLoading   AccountStatus = "loading"
	StatusSuccess   AccountStatus = "success"
	StatusError     AccountStatus = "error"
	StatusReconnect AccountStatus = "reconnect"
)

// Terminal reports whether no further transitions are allowed.
func (s AccountStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusReconnect:
		return true
	default:
		return false
	}
}

// AccountResult is the outcome for one TargetAccount.
type AccountResult struct {
	AccountID          string        `json:"accountId"`
	Platform           Platform      `json:"platform"`
	DisplayName        string        `json:"displayName,omitempty"`
	Status             AccountStatus `json:"status"`
	Message            string        `json:"message,omitempty"`
	ProviderRef        string        `json:"providerRef,omitempty"`
	ErrorCode          string        `json:"errorCode,omitempty"`
	Pending            bool          `json:"pending,omitempty"`
	InvalidMediaFormat bool          `json:"invalidMediaFormat,omitempty"`
}

// RequiresReconnect reports whether the account must be re-authenticated.
func (r AccountResult) RequiresReconnect() bool { return r.Status == StatusReconnect }

// PostOutcome is the consolidated result of one submission.
type PostOutcome struct {
	OverallSuccess bool                         `json:"overallSuccess"`
	ByPlatform     map[Platform][]AccountResult `json:"byPlatform"`
	PostID         string                       `json:"postId,omitempty"`
	Scheduled      bool                         `json:"scheduled,omitempty"`
	SubmissionID   string                       `json:"submissionId,omitempty"`
}

// Results flattens ByPlatform in provider order.
func (o PostOutcome) Results() []AccountResult {
	var out []AccountResult
	for _, p := range Platforms {
		out = append(out, o.ByPlatform[p]...)
	}
	return out
}

// NoticeLevel grades a user-visible notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notifier surfaces short human-readable messages to the user.
type Notifier interface {
	Notify(level NoticeLevel, message string)
}

// AccountDirectory resolves connected accounts known to the user.
type AccountDirectory interface {
	Lookup(ctx context.Context, platform Platform, accountID string) (TargetAccount, bool, error)
	List(ctx context.Context, platform Platform) ([]TargetAccount, error)
}

// ProgressFunc receives overall upload progress as a percentage in [0, 100].
type ProgressFunc func(percent float64)
