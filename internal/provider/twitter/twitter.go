// Package twitter publishes through the backend's Twitter (X) endpoint.
package twitter

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/provider"
	"github.com/blacktop/postfan/internal/transport"
)

const (
	// PathPost serves both single and multi-account posts.
	PathPost = "/social/twitter/post"

	// MaxTextRunes is the tweet length limit.
	MaxTextRunes = 280

	providerName = postfan.PlatformTwitter
)

// Client implements the orchestrator's publisher contract for X (Twitter).
type Client struct {
	base provider.Base
}

// New returns a Twitter client for the backend at baseURL.
func New(client *transport.Client, baseURL, userID string, policy transport.Policy) *Client {
	return &Client{base: provider.Base{
		Client:   client,
		Policy:   policy,
		BaseURL:  baseURL,
		UserID:   userID,
		Platform: providerName,
	}}
}

// Platform returns the provider identifier.
func (c *Client) Platform() postfan.Platform { return providerName }

// Validate checks that X accepts pub.
func (c *Client) Validate(pub postfan.Publication) error {
	if n := utf8.RuneCountInString(pub.Text); n > MaxTextRunes {
		return postfan.ValidationError{Field: "caption", Reason: fmt.Sprintf("tweets are limited to %d characters, got %d", MaxTextRunes, n)}
	}
	if pub.Kind == postfan.KindText && pub.Text == "" {
		return postfan.ValidationError{Field: "caption", Reason: "text post is empty"}
	}
	return nil
}

// Endpoint returns PathPost; the backend takes an accounts array either way.
func (c *Client) Endpoint(kind postfan.ContentKind, accounts int) (string, error) {
	return PathPost, nil
}

type accountRef struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type request struct {
	ImageURLs []string     `json:"imageUrls,omitempty"`
	VideoURL  string       `json:"videoUrl,omitempty"`
	Text      string       `json:"text"`
	UserID    string       `json:"userId"`
	Accounts  []accountRef `json:"accounts"`
}

// PublishSingle posts to one account.
func (c *Client) PublishSingle(ctx context.Context, pub postfan.Publication, account postfan.TargetAccount) (*postfan.PublishResponse, error) {
	return c.PublishMulti(ctx, pub, []postfan.TargetAccount{account})
}

// PublishMulti posts to every account with one call.
func (c *Client) PublishMulti(ctx context.Context, pub postfan.Publication, accounts []postfan.TargetAccount) (*postfan.PublishResponse, error) {
	req := request{Text: pub.Text, UserID: c.base.UserID}
	switch pub.Kind {
	case postfan.KindVideo:
		req.VideoURL = pub.VideoURL
	case postfan.KindImages:
		req.ImageURLs = pub.ImageURLs
	}
	for _, account := range accounts {
		req.Accounts = append(req.Accounts, accountRef{UserID: account.AccountID, Username: account.DisplayName})
	}

	resp, err := c.base.Post(ctx, PathPost, req)
	if err != nil {
		return nil, err
	}
	env, err := provider.Decode(providerName, resp)
	if err != nil {
		return nil, err
	}
	return provider.Normalize(resp, env, accounts), nil
}
