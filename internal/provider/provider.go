// Package provider holds the plumbing shared by the backend endpoint clients
// of each provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/transport"
)

// Base carries what every provider client needs to reach the backend.
type Base struct {
	Client   *transport.Client
	Policy   transport.Policy
	BaseURL  string
	UserID   string
	Platform postfan.Platform
}

// URL joins path onto the backend base URL.
func (b Base) URL(path string) string {
	return strings.TrimRight(b.BaseURL, "/") + path
}

// Post sends payload and turns gateway timeouts into UpstreamTimeoutError.
func (b Base) Post(ctx context.Context, path string, payload any) (*transport.Response, error) {
	build, err := transport.PostJSON(b.URL(path), payload)
	if err != nil {
		return nil, err
	}
	logutil.Debug("publishing", "platform", b.Platform, "endpoint", path)
	resp, err := b.Client.DoWithPolicy(ctx, b.Policy, build)
	if err != nil {
		var tErr *postfan.TransportError
		if errors.As(err, &tErr) && postfan.IsGatewayTimeout(tErr.StatusCode) {
			return nil, postfan.UpstreamTimeoutError{Platform: b.Platform, StatusCode: tErr.StatusCode}
		}
		return nil, fmt.Errorf("%s publish: %w", b.Platform, err)
	}
	if postfan.IsGatewayTimeout(resp.StatusCode) {
		return nil, postfan.UpstreamTimeoutError{Platform: b.Platform, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Entry is one per-account element of a results array.
type Entry struct {
	AccountID string `json:"accountId"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	PublishID string `json:"publishId"`
	ContentID string `json:"contentId"`
	Data      *struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Ref returns the provider-side identifier of the published item.
func (e Entry) Ref() string {
	switch {
	case e.Data != nil && e.Data.ID != "":
		return e.Data.ID
	case e.PublishID != "":
		return e.PublishID
	default:
		return e.ContentID
	}
}

// Envelope is the top-level shape shared by single and multi responses.
type Envelope struct {
	Entry
	Results []Entry `json:"results"`
}

// Decode reads an Envelope from resp. Anything that is not the expected JSON
// shape becomes an UnknownServerError for the whole batch.
func Decode(platform postfan.Platform, resp *transport.Response) (*Envelope, error) {
	var env Envelope
	if err := resp.Decode(&env); err != nil {
		return nil, postfan.UnknownServerError{Platform: platform, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return &env, nil
}

// Normalize maps an envelope onto the requested accounts. When the backend
// returns a results array it is used as is; otherwise the top-level fields
// describe every account in the request.
func Normalize(resp *transport.Response, env *Envelope, accounts []postfan.TargetAccount) *postfan.PublishResponse {
	out := &postfan.PublishResponse{StatusCode: resp.StatusCode, PostID: postfan.ExtractPostID(resp.Body)}
	if len(env.Results) > 0 {
		for _, e := range env.Results {
			out.Results = append(out.Results, toResult(e, e.AccountID, resp.OK()))
		}
		if out.PostID == "" {
			for _, r := range out.Results {
				if r.Ref != "" {
					out.PostID = r.Ref
					break
				}
			}
		}
		return out
	}
	for _, account := range accounts {
		out.Results = append(out.Results, toResult(env.Entry, account.AccountID, resp.OK()))
	}
	return out
}

func toResult(e Entry, accountID string, ok bool) postfan.ProviderResult {
	msg := e.Error
	if msg == "" && !e.Success {
		msg = e.Message
	}
	return postfan.ProviderResult{
		AccountID: accountID,
		Success:   e.Success && ok,
		Ref:       e.Ref(),
		Message:   msg,
		Code:      e.Code,
	}
}
