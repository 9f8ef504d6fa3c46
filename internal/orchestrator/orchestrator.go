// Package orchestrator turns one PostRequest into one PostOutcome: it
// validates the request, uploads media, then either hands the post to the
// scheduler or fans it out to every selected provider account.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lucsky/cuid"
	"golang.org/x/sync/errgroup"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/schedule"
	"github.com/blacktop/postfan/internal/tracker"
	"github.com/blacktop/postfan/internal/transport"
	"github.com/blacktop/postfan/internal/upload"
)

// MinScheduleLead is how far in the future a scheduled post must be.
const MinScheduleLead = 60 * time.Second

// Uploader moves local media to public URLs.
type Uploader interface {
	Upload(ctx context.Context, assets []postfan.MediaAsset, progress postfan.ProgressFunc) (*upload.Result, error)
}

// Scheduler hands a deferred post to the backend.
type Scheduler interface {
	Schedule(ctx context.Context, kind postfan.ContentKind, req postfan.PostRequest) (*schedule.Result, error)
}

// Publisher is one provider integration.
type Publisher interface {
	Platform() postfan.Platform
	Validate(pub postfan.Publication) error
	Endpoint(kind postfan.ContentKind, accounts int) (string, error)
	PublishSingle(ctx context.Context, pub postfan.Publication, account postfan.TargetAccount) (*postfan.PublishResponse, error)
	PublishMulti(ctx context.Context, pub postfan.Publication, accounts []postfan.TargetAccount) (*postfan.PublishResponse, error)
}

// Orchestrator runs submissions one at a time.
type Orchestrator struct {
	uploader   Uploader
	scheduler  Scheduler
	publishers map[postfan.Platform]Publisher

	notifier  postfan.Notifier
	directory postfan.AccountDirectory
	progress  postfan.ProgressFunc
	now       func() time.Time
	newID     func() string

	posting atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n postfan.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithDirectory fills in missing display names from d.
func WithDirectory(d postfan.AccountDirectory) Option {
	return func(o *Orchestrator) { o.directory = d }
}

// WithProgress receives upload progress.
func WithProgress(fn postfan.ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides how submission IDs are made.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

type discard struct{}

func (discard) Notify(postfan.NoticeLevel, string) {}

// New returns an Orchestrator over the given collaborators.
func New(uploader Uploader, scheduler Scheduler, publishers []Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		uploader:   uploader,
		scheduler:  scheduler,
		publishers: make(map[postfan.Platform]Publisher, len(publishers)),
		notifier:   discard{},
		now:        time.Now,
		newID:      cuid.New,
	}
	for _, p := range publishers {
		o.publishers[p.Platform()] = p
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Busy reports whether a submission is in flight.
func (o *Orchestrator) Busy() bool { return o.posting.Load() }

// Submit runs one submission to completion. The returned error is non-nil
// only when no provider was contacted: invalid input, upload failure or a
// rejected schedule. Per-account failures are reported in the outcome.
func (o *Orchestrator) Submit(ctx context.Context, req postfan.PostRequest) (*postfan.PostOutcome, error) {
	if !o.posting.CompareAndSwap(false, true) {
		return nil, postfan.ErrSubmissionInFlight
	}
	defer o.posting.Store(false)

	submissionID := o.newID()
	ctx = transport.WithRequestID(ctx, submissionID)

	req.Targets = o.resolveTargets(ctx, req.Targets)
	kind, err := o.validate(req)
	if err != nil {
		o.notifier.Notify(postfan.NoticeError, err.Error())
		return nil, err
	}
	logutil.Info("submitting post", "id", submissionID, "kind", kind, "accounts", len(req.Targets), "scheduled", req.Schedule != nil)

	if needsUpload(req.Content.Media) {
		res, err := o.uploader.Upload(ctx, req.Content.Media, o.progress)
		if err != nil {
			o.notifier.Notify(postfan.NoticeError, fmt.Sprintf("Upload failed: %v", err))
			return nil, fmt.Errorf("upload media: %w", err)
		}
		req.Content.Media = res.Assets
	}

	tr := tracker.New(req.Targets)

	if req.Schedule != nil {
		// Uploads can outlast the lead checked during validation.
		if err := o.checkScheduleLead(*req.Schedule); err != nil {
			o.notifier.Notify(postfan.NoticeError, err.Error())
			return nil, err
		}
		res, err := o.scheduler.Schedule(ctx, kind, req)
		if err != nil {
			o.notifier.Notify(postfan.NoticeError, fmt.Sprintf("Scheduling failed: %v", err))
			return nil, err
		}
		o.notifier.Notify(postfan.NoticeSuccess, fmt.Sprintf("Post scheduled for %s", req.Schedule.Local().Format("Jan 2, 2006 3:04 PM")))
		return &postfan.PostOutcome{
			OverallSuccess: true,
			ByPlatform:     tr.ByPlatform(),
			PostID:         res.PostID,
			Scheduled:      true,
			SubmissionID:   submissionID,
		}, nil
	}

	pub := publication(kind, req.Content, false)
	platforms := activePlatforms(req.Targets)
	postIDs := make([]string, len(platforms))

	var g errgroup.Group
	for i, platform := range platforms {
		i, platform := i, platform
		g.Go(func() error {
			postIDs[i] = o.fanOut(ctx, tr, o.publishers[platform], pub, targetsFor(req.Targets, platform))
			return nil
		})
	}
	_ = g.Wait()

	for _, platform := range platforms {
		if n := tr.FailUnresolved(platform, MessageNoResult); n > 0 {
			logutil.Warn("accounts left unresolved", "platform", platform, "count", n)
		}
	}

	outcome := &postfan.PostOutcome{
		OverallSuccess: tr.AllSucceeded(),
		ByPlatform:     tr.ByPlatform(),
		SubmissionID:   submissionID,
	}
	for _, id := range postIDs {
		if id != "" {
			outcome.PostID = id
			break
		}
	}
	o.report(outcome)
	return outcome, nil
}

// fanOut publishes to every account of one provider and returns the post ID
// found in the response, if any. It never leaves an account non-terminal.
func (o *Orchestrator) fanOut(ctx context.Context, tr *tracker.Tracker, p Publisher, pub postfan.Publication, accounts []postfan.TargetAccount) (postID string) {
	platform := p.Platform()
	defer func() {
		if r := recover(); r != nil {
			logutil.Error("provider publish panicked", "platform", platform, "panic", r)
			tr.FailUnresolved(platform, fmt.Sprintf("Unexpected error: %v", r))
			postID = ""
		}
	}()

	keys := make([]postfan.AccountKey, 0, len(accounts))
	for _, a := range accounts {
		keys = append(keys, a.Key())
	}
	if err := tr.Dispatch(keys...); err != nil {
		tr.FailUnresolved(platform, err.Error())
		return ""
	}

	var (
		resp *postfan.PublishResponse
		err  error
	)
	if len(accounts) == 1 {
		resp, err = p.PublishSingle(ctx, pub, accounts[0])
	} else {
		resp, err = p.PublishMulti(ctx, pub, accounts)
	}
	if err != nil {
		var upstream postfan.UpstreamTimeoutError
		if errors.As(err, &upstream) {
			logutil.Warn("upstream timeout, assuming publish continues server-side", "platform", platform, "status", upstream.StatusCode)
			for _, key := range keys {
				if err := tr.Resolve(key, tracker.Update{Status: postfan.StatusSuccess, Message: MessageUpstreamPending, Pending: true}); err != nil {
					logutil.Warn("ignoring provider result", "platform", platform, "err", err)
				}
			}
			return ""
		}
		logutil.Error("publish failed", "platform", platform, "err", err)
		tr.FailUnresolved(platform, failureMessage(err))
		return ""
	}

	for _, r := range resp.Results {
		key := postfan.AccountKey{Platform: platform, AccountID: r.AccountID}
		if err := tr.Resolve(key, Classify(platform, r)); err != nil {
			logutil.Warn("ignoring provider result", "platform", platform, "err", err)
		}
	}
	return resp.PostID
}

func (o *Orchestrator) report(outcome *postfan.PostOutcome) {
	results := outcome.Results()
	succeeded := 0
	for _, r := range results {
		switch {
		case r.Status == postfan.StatusSuccess && r.Pending:
			succeeded++
			o.notifier.Notify(postfan.NoticeInfo, fmt.Sprintf("%s: %s", displayName(r), MessageUpstreamPending))
		case r.Status == postfan.StatusSuccess:
			succeeded++
		case r.RequiresReconnect():
			o.notifier.Notify(postfan.NoticeWarning, fmt.Sprintf("%s: %s. Reconnect it and try again", displayName(r), MessageReconnect))
		default:
			o.notifier.Notify(postfan.NoticeError, fmt.Sprintf("%s: %s", displayName(r), r.Message))
		}
	}
	if outcome.OverallSuccess {
		o.notifier.Notify(postfan.NoticeSuccess, fmt.Sprintf("Posted to %d account(s)", len(results)))
		return
	}
	o.notifier.Notify(postfan.NoticeWarning, fmt.Sprintf("Posted to %d of %d account(s)", succeeded, len(results)))
}

// resolveTargets drops duplicates and fills display names from the directory.
func (o *Orchestrator) resolveTargets(ctx context.Context, targets []postfan.TargetAccount) []postfan.TargetAccount {
	seen := make(map[postfan.AccountKey]bool, len(targets))
	out := make([]postfan.TargetAccount, 0, len(targets))
	for _, t := range targets {
		t.AccountID = strings.TrimSpace(t.AccountID)
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		if t.DisplayName == "" && o.directory != nil && t.AccountID != "" {
			known, ok, err := o.directory.Lookup(ctx, t.Platform, t.AccountID)
			switch {
			case err != nil:
				logutil.Warn("account lookup failed", "account", t.Key().String(), "err", err)
			case ok:
				t.DisplayName = known.DisplayName
			}
		}
		out = append(out, t)
	}
	return out
}

func (o *Orchestrator) validate(req postfan.PostRequest) (postfan.ContentKind, error) {
	kind, err := ContentKindOf(req.Content)
	if err != nil {
		return "", err
	}
	if len(req.Targets) == 0 {
		return "", postfan.ValidationError{Field: "targets", Reason: "select at least one account"}
	}
	for _, t := range req.Targets {
		if !t.Platform.Valid() {
			return "", postfan.ValidationError{Field: "targets", Reason: fmt.Sprintf("unsupported platform %q", t.Platform)}
		}
		if t.AccountID == "" {
			return "", postfan.ValidationError{Field: "targets", Reason: fmt.Sprintf("%s account has no ID", t.Platform)}
		}
		if _, ok := o.publishers[t.Platform]; !ok {
			return "", postfan.ValidationError{Field: "targets", Reason: fmt.Sprintf("%s is not configured", t.Platform)}
		}
	}
	if req.Schedule != nil {
		if err := o.checkScheduleLead(*req.Schedule); err != nil {
			return "", err
		}
	}
	preview := publication(kind, req.Content, true)
	for _, platform := range activePlatforms(req.Targets) {
		if err := o.publishers[platform].Validate(preview); err != nil {
			return "", err
		}
	}
	return kind, nil
}

func (o *Orchestrator) checkScheduleLead(when time.Time) error {
	if when.Before(o.now().Add(MinScheduleLead)) {
		return postfan.ValidationError{Field: "schedule", Reason: "scheduled time must be at least 1 minute in the future"}
	}
	return nil
}

// ContentKindOf classifies content into a video, image set or text post.
func ContentKindOf(c postfan.Content) (postfan.ContentKind, error) {
	if c.TextOnly && len(c.Media) > 0 {
		return "", postfan.ValidationError{Field: "media", Reason: "a text-only post cannot carry media"}
	}
	var videos, images int
	for _, m := range c.Media {
		switch m.MimeClass {
		case postfan.MimeVideo:
			videos++
		case postfan.MimeImage:
			images++
		default:
			return "", postfan.ValidationError{Field: "media", Reason: fmt.Sprintf("%s is neither an image nor a video", m.LocalHandle)}
		}
	}
	switch {
	case videos > 1:
		return "", postfan.ValidationError{Field: "media", Reason: "only one video can be posted at a time"}
	case videos == 1 && images > 0:
		return "", postfan.ValidationError{Field: "media", Reason: "videos and images cannot be mixed"}
	case videos == 1:
		return postfan.KindVideo, nil
	case images > 0:
		return postfan.KindImages, nil
	case strings.TrimSpace(c.Caption) == "":
		return "", postfan.ValidationError{Field: "content", Reason: "add media or text to post"}
	default:
		return postfan.KindText, nil
	}
}

// publication builds what providers receive. With preview set, local paths
// stand in for URLs that do not exist yet.
func publication(kind postfan.ContentKind, c postfan.Content, preview bool) postfan.Publication {
	pub := postfan.Publication{Kind: kind, Text: c.Caption}
	var urls []string
	for _, m := range c.Media {
		switch {
		case m.RemoteURL != "":
			urls = append(urls, m.RemoteURL)
		case preview:
			urls = append(urls, m.LocalHandle)
		}
	}
	switch kind {
	case postfan.KindVideo:
		if len(urls) > 0 {
			pub.VideoURL = urls[0]
		}
	case postfan.KindImages:
		pub.ImageURLs = urls
	}
	return pub
}

func needsUpload(media []postfan.MediaAsset) bool {
	for _, m := range media {
		if !m.Uploaded() {
			return true
		}
	}
	return false
}

func activePlatforms(targets []postfan.TargetAccount) []postfan.Platform {
	var out []postfan.Platform
	for _, p := range postfan.Platforms {
		for _, t := range targets {
			if t.Platform == p {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func targetsFor(targets []postfan.TargetAccount, platform postfan.Platform) []postfan.TargetAccount {
	var out []postfan.TargetAccount
	for _, t := range targets {
		if t.Platform == platform {
			out = append(out, t)
		}
	}
	return out
}
