// Package schedule hands a deferred post to the backend, which owns every
// later per-account publish.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/transport"
)

// PostsPath is the unified scheduling endpoint.
const PostsPath = "/posts"

// TikTokAccount is a TikTok entry of the scheduling payload.
type TikTokAccount struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName,omitempty"`
}

// TwitterAccount is a Twitter entry of the scheduling payload.
type TwitterAccount struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// Payload is the provider-agnostic body sent to PostsPath.
type Payload struct {
	UserID          string           `json:"userId"`
	VideoURL        string           `json:"video_url,omitempty"`
	ImageURLs       []string         `json:"imageUrls,omitempty"`
	TextContent     string           `json:"textContent,omitempty"`
	PostDescription string           `json:"post_description"`
	Platforms       []string         `json:"platforms"`
	TikTokAccounts  []TikTokAccount  `json:"tiktok_accounts"`
	TwitterAccounts []TwitterAccount `json:"twitter_accounts"`
	IsScheduled     bool             `json:"isScheduled"`
	ScheduledDate   string           `json:"scheduledDate"`
}

// Result identifies the created post for later lookup.
type Result struct {
	PostID string
}

// Submitter sends scheduled posts.
type Submitter struct {
	client *transport.Client
	policy transport.Policy
	url    string
	userID string
}

// NewSubmitter returns a Submitter posting to baseURL + PostsPath.
func NewSubmitter(client *transport.Client, baseURL, userID string, policy transport.Policy) *Submitter {
	return &Submitter{
		client: client,
		policy: policy,
		url:    strings.TrimRight(baseURL, "/") + PostsPath,
		userID: userID,
	}
}

// BuildPayload normalizes req into the scheduling body. The media URLs of
// req must already be populated.
func BuildPayload(userID string, kind postfan.ContentKind, req postfan.PostRequest) (Payload, error) {
	if req.Schedule == nil {
		return Payload{}, postfan.ValidationError{Field: "schedule", Reason: "no scheduled date"}
	}
	p := Payload{
		UserID:          userID,
		PostDescription: req.Content.Caption,
		Platforms:       []string{},
		TikTokAccounts:  []TikTokAccount{},
		TwitterAccounts: []TwitterAccount{},
		IsScheduled:     true,
		ScheduledDate:   req.Schedule.UTC().Format(time.RFC3339),
	}

	urls := req.Content.MediaURLs()
	switch kind {
	case postfan.KindVideo:
		if len(urls) != 1 {
			return Payload{}, postfan.ValidationError{Field: "media", Reason: "video post needs exactly one uploaded video"}
		}
		p.VideoURL = urls[0]
	case postfan.KindImages:
		if len(urls) == 0 {
			return Payload{}, postfan.ValidationError{Field: "media", Reason: "image post has no uploaded images"}
		}
		p.ImageURLs = urls
	case postfan.KindText:
		p.TextContent = req.Content.Caption
	}

	seen := map[postfan.Platform]bool{}
	for _, target := range req.Targets {
		switch target.Platform {
		case postfan.PlatformTikTok:
			p.TikTokAccounts = append(p.TikTokAccounts, TikTokAccount{AccountID: target.AccountID, DisplayName: target.DisplayName})
		case postfan.PlatformTwitter:
			p.TwitterAccounts = append(p.TwitterAccounts, TwitterAccount{UserID: target.AccountID, Username: target.DisplayName})
		default:
			return Payload{}, postfan.ValidationError{Field: "targets", Reason: fmt.Sprintf("unsupported platform %q", target.Platform)}
		}
		if !seen[target.Platform] {
			seen[target.Platform] = true
			p.Platforms = append(p.Platforms, string(target.Platform))
		}
	}
	return p, nil
}

type scheduleResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Schedule submits req once. Per-account results stay with the backend.
func (s *Submitter) Schedule(ctx context.Context, kind postfan.ContentKind, req postfan.PostRequest) (*Result, error) {
	payload, err := BuildPayload(s.userID, kind, req)
	if err != nil {
		return nil, err
	}
	build, err := transport.PostJSON(s.url, payload)
	if err != nil {
		return nil, err
	}

	logutil.Debug("scheduling post", "platforms", payload.Platforms, "date", payload.ScheduledDate)
	resp, err := s.client.DoWithPolicy(ctx, s.policy, build)
	if err != nil {
		return nil, fmt.Errorf("schedule post: %w", err)
	}

	var body scheduleResponse
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("schedule post: %w", err)
	}
	if !resp.OK() || !body.Success {
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		return nil, fmt.Errorf("schedule post: %w", postfan.UnknownServerError{StatusCode: resp.StatusCode, Message: msg, Platform: "scheduler"})
	}

	id := postfan.ExtractPostID(resp.Body)
	if id == "" {
		logutil.Warnf("scheduled post accepted but the response carried no post id")
	}
	return &Result{PostID: id}, nil
}
