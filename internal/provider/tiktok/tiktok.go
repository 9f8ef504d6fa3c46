// Package tiktok publishes through the backend's TikTok endpoints.
package tiktok

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/provider"
	"github.com/blacktop/postfan/internal/transport"
)

const (
	PathVideo       = "/tiktok/post-video"
	PathImages      = "/tiktok/post-images"
	PathVideoMulti  = "/tiktok/post-video-multi"
	PathImagesMulti = "/tiktok/post-images-multi"

	// MaxCaptionRunes is TikTok's caption limit.
	MaxCaptionRunes = 2200

	providerName = postfan.PlatformTikTok
)

// Client implements the orchestrator's publisher contract for TikTok.
type Client struct {
	base provider.Base
}

// New returns a TikTok client for the backend at baseURL.
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

// Validate checks that TikTok can publish pub.
func (c *Client) Validate(pub postfan.Publication) error {
	if pub.Kind == postfan.KindText {
		return postfan.ValidationError{Field: "tiktok", Reason: "TikTok needs a video or images; text-only posts are not supported"}
	}
	if n := utf8.RuneCountInString(pub.Text); n > MaxCaptionRunes {
		return postfan.ValidationError{Field: "caption", Reason: fmt.Sprintf("TikTok captions are limited to %d characters, got %d", MaxCaptionRunes, n)}
	}
	return nil
}

// Endpoint returns the path used for kind and the number of accounts.
func (c *Client) Endpoint(kind postfan.ContentKind, accounts int) (string, error) {
	multi := accounts > 1
	switch kind {
	case postfan.KindVideo:
		if multi {
			return PathVideoMulti, nil
		}
		return PathVideo, nil
	case postfan.KindImages:
		if multi {
			return PathImagesMulti, nil
		}
		return PathImages, nil
	default:
		return "", postfan.ValidationError{Field: "tiktok", Reason: fmt.Sprintf("unsupported content kind %q", kind)}
	}
}

type accountRef struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName,omitempty"`
}

type request struct {
	VideoURL  string       `json:"videoUrl,omitempty"`
	ImageURLs []string     `json:"imageUrls,omitempty"`
	Caption   string       `json:"caption"`
	UserID    string       `json:"userId"`
	AccountID string       `json:"accountId,omitempty"`
	Accounts  []accountRef `json:"accounts,omitempty"`
}

func (c *Client) newRequest(pub postfan.Publication) request {
	req := request{Caption: pub.Text, UserID: c.base.UserID}
	switch pub.Kind {
	case postfan.KindVideo:
		req.VideoURL = pub.VideoURL
	case postfan.KindImages:
		req.ImageURLs = pub.ImageURLs
	}
	return req
}

// PublishSingle posts to one account through the single-account endpoint.
func (c *Client) PublishSingle(ctx context.Context, pub postfan.Publication, account postfan.TargetAccount) (*postfan.PublishResponse, error) {
	path, err := c.Endpoint(pub.Kind, 1)
	if err != nil {
		return nil, err
	}
	req := c.newRequest(pub)
	req.AccountID = account.AccountID
	return c.publish(ctx, path, req, []postfan.TargetAccount{account})
}

// PublishMulti posts to several accounts with one call.
func (c *Client) PublishMulti(ctx context.Context, pub postfan.Publication, accounts []postfan.TargetAccount) (*postfan.PublishResponse, error) {
	path, err := c.Endpoint(pub.Kind, len(accounts))
	if err != nil {
		return nil, err
	}
	req := c.newRequest(pub)
	for _, account := range accounts {
		req.Accounts = append(req.Accounts, accountRef{AccountID: account.AccountID, DisplayName: account.DisplayName})
	}
	return c.publish(ctx, path, req, accounts)
}

func (c *Client) publish(ctx context.Context, path string, req request, accounts []postfan.TargetAccount) (*postfan.PublishResponse, error) {
	resp, err := c.base.Post(ctx, path, req)
	if err != nil {
		return nil, err
	}
	env, err := provider.Decode(providerName, resp)
	if err != nil {
		return nil, err
	}
	return provider.Normalize(resp, env, accounts), nil
}
