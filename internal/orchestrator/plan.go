package orchestrator

import (
	"context"
	"time"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/schedule"
)

// Call is one request a submission would make.
type Call struct {
	Platform postfan.Platform        `json:"platform,omitempty"`
	Endpoint string                  `json:"endpoint"`
	Accounts []postfan.TargetAccount `json:"accounts"`
}

// Plan describes what Submit would do for a request without doing it.
type Plan struct {
	Kind         postfan.ContentKind  `json:"kind"`
	ScheduledFor *time.Time           `json:"scheduledFor,omitempty"`
	Uploads      []postfan.MediaAsset `json:"uploads,omitempty"`
	Calls        []Call               `json:"calls"`
}

// Plan validates req and resolves the endpoints it would hit. No network
// requests are made.
func (o *Orchestrator) Plan(ctx context.Context, req postfan.PostRequest) (*Plan, error) {
	req.Targets = o.resolveTargets(ctx, req.Targets)
	kind, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Kind: kind, ScheduledFor: req.Schedule}
	for _, m := range req.Content.Media {
		if !m.Uploaded() {
			plan.Uploads = append(plan.Uploads, m)
		}
	}

	if req.Schedule != nil {
		plan.Calls = []Call{{Endpoint: schedule.PostsPath, Accounts: req.Targets}}
		return plan, nil
	}
	for _, platform := range activePlatforms(req.Targets) {
		accounts := targetsFor(req.Targets, platform)
		endpoint, err := o.publishers[platform].Endpoint(kind, len(accounts))
		if err != nil {
			return nil, err
		}
		plan.Calls = append(plan.Calls, Call{Platform: platform, Endpoint: endpoint, Accounts: accounts})
	}
	return plan, nil
}
