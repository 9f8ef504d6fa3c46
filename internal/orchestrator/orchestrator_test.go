package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/schedule"
	"github.com/blacktop/postfan/internal/tracker"
	"github.com/blacktop/postfan/internal/transport"
	"github.com/blacktop/postfan/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type MockPublisher struct {
	mock.Mock
	platform postfan.Platform
}

func (m *MockPublisher) Platform() postfan.Platform { return m.platform }

func (m *MockPublisher) Validate(pub postfan.Publication) error { return nil }

func (m *MockPublisher) Endpoint(kind postfan.ContentKind, accounts int) (string, error) {
	if accounts > 1 {
		return "/" + string(m.platform) + "/multi", nil
	}
	return "/" + string(m.platform) + "/single", nil
}

func (m *MockPublisher) PublishSingle(ctx context.Context, pub postfan.Publication, account postfan.TargetAccount) (*postfan.PublishResponse, error) {
	args := m.Called(ctx, pub, account)
	return args.Get(0).(*postfan.PublishResponse), args.Error(1)
}

func (m *MockPublisher) PublishMulti(ctx context.Context, pub postfan.Publication, accounts []postfan.TargetAccount) (*postfan.PublishResponse, error) {
	args := m.Called(ctx, pub, accounts)
	return args.Get(0).(*postfan.PublishResponse), args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, assets []postfan.MediaAsset, progress postfan.ProgressFunc) (*upload.Result, error) {
	args := m.Called(ctx, assets)
	return args.Get(0).(*upload.Result), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, kind postfan.ContentKind, req postfan.PostRequest) (*schedule.Result, error) {
	args := m.Called(ctx, kind, req)
	return args.Get(0).(*schedule.Result), args.Error(1)
}

type panicPublisher struct{ platform postfan.Platform }

func (p panicPublisher) Platform() postfan.Platform { return p.platform }
func (p panicPublisher) Validate(postfan.Publication) error { return nil }
func (p panicPublisher) Endpoint(postfan.ContentKind, int) (string, error) { return "/boom", nil }
func (p panicPublisher) PublishSingle(context.Context, postfan.Publication, postfan.TargetAccount) (*postfan.PublishResponse, error) {
	panic("boom")
}
func (p panicPublisher) PublishMulti(context.Context, postfan.Publication, []postfan.TargetAccount) (*postfan.PublishResponse, error) {
	panic("boom")
}

type notice struct {
	level   postfan.NoticeLevel
	message string
}

type recorder struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recorder) Notify(level postfan.NoticeLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{level, message})
}

func (r *recorder) levels() []postfan.NoticeLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []postfan.NoticeLevel
	for _, n := range r.notices {
		out = append(out, n.level)
	}
	return out
}

type fixture struct {
	tiktok    *MockPublisher
	twitter   *MockPublisher
	uploader  *MockUploader
	scheduler *MockScheduler
	notices   *recorder
	orch      *Orchestrator
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		tiktok:    &MockPublisher{platform: postfan.PlatformTikTok},
		twitter:   &MockPublisher{platform: postfan.PlatformTwitter},
		uploader:  new(MockUploader),
		scheduler: new(MockScheduler),
		notices:   &recorder{},
	}
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return "sub-1" }),
		WithNotifier(f.notices),
	}, opts...)
	f.orch = New(f.uploader, f.scheduler, []Publisher{f.tiktok, f.twitter}, opts...)
	return f
}

func (f *fixture) assertNoNetwork(t *testing.T) {
	t.Helper()
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything)
	for _, p := range []*MockPublisher{f.tiktok, f.twitter} {
		p.AssertNotCalled(t, "PublishSingle", mock.Anything, mock.Anything, mock.Anything)
		p.AssertNotCalled(t, "PublishMulti", mock.Anything, mock.Anything, mock.Anything)
	}
}

func uploadedVideo() postfan.MediaAsset {
	return postfan.MediaAsset{LocalHandle: "clip.mp4", RemoteURL: "https://cdn.example.com/clip.mp4", MimeClass: postfan.MimeVideo, Validated: true}
}

func tiktokAccount(id string) postfan.TargetAccount {
	return postfan.TargetAccount{Platform: postfan.PlatformTikTok, AccountID: id, DisplayName: "@" + id}
}

func twitterAccount(id string) postfan.TargetAccount {
	return postfan.TargetAccount{Platform: postfan.PlatformTwitter, AccountID: id, DisplayName: "@" + id}
}

func TestSubmitMultiAccountGatewayTimeoutIsPendingSuccess(t *testing.T) {
	f := newFixture()
	accounts := []postfan.TargetAccount{tiktokAccount("a"), tiktokAccount("b")}
	f.tiktok.On("PublishMulti", mock.Anything, mock.Anything, accounts).
		Return((*postfan.PublishResponse)(nil), postfan.UpstreamTimeoutError{Platform: postfan.PlatformTikTok, StatusCode: 524})

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}, Caption: "launch day"},
		Targets: accounts,
	})
	require.NoError(t, err)
	assert.True(t, outcome.OverallSuccess)
	require.Len(t, outcome.ByPlatform[postfan.PlatformTikTok], 2)
	for _, r := range outcome.ByPlatform[postfan.PlatformTikTok] {
		assert.Equal(t, postfan.StatusSuccess, r.Status)
		assert.True(t, r.Pending)
	}
	assert.Empty(t, outcome.ByPlatform[postfan.PlatformTwitter])
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.tiktok.AssertNotCalled(t, "PublishSingle", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitOneAccountPerProvider(t *testing.T) {
	f := newFixture()
	tk, tw := tiktokAccount("tk1"), twitterAccount("tw1")
	withID := mock.MatchedBy(func(ctx context.Context) bool { return transport.RequestID(ctx) == "sub-1" })

	f.tiktok.On("PublishSingle", withID, mock.Anything, tk).Return(&postfan.PublishResponse{
		StatusCode: 200,
		PostID:     "post-1",
		Results:    []postfan.ProviderResult{{AccountID: "tk1", Success: true, Ref: "v_1"}},
	}, nil)
	f.twitter.On("PublishSingle", withID, mock.Anything, tw).Return(&postfan.PublishResponse{
		StatusCode: 200,
		Results:    []postfan.ProviderResult{{AccountID: "tw1", Success: true, Ref: "179"}},
	}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}, Caption: "hi"},
		Targets: []postfan.TargetAccount{tk, tw},
	})
	require.NoError(t, err)
	assert.True(t, outcome.OverallSuccess)
	assert.Equal(t, "post-1", outcome.PostID)
	assert.Equal(t, "sub-1", outcome.SubmissionID)

	results := outcome.Results()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, postfan.StatusSuccess, r.Status)
		assert.False(t, r.Pending)
	}
	assert.Equal(t, "v_1", results[0].ProviderRef)
	assert.Equal(t, "179", results[1].ProviderRef)
	f.tiktok.AssertExpectations(t)
	f.twitter.AssertExpectations(t)
	assert.Contains(t, f.notices.levels(), postfan.NoticeSuccess)
}

func TestSubmitAuthErrorNeedsReconnect(t *testing.T) {
	f := newFixture()
	accounts := []postfan.TargetAccount{tiktokAccount("a"), tiktokAccount("b")}
	f.tiktok.On("PublishMulti", mock.Anything, mock.Anything, accounts).Return(&postfan.PublishResponse{
		StatusCode: 200,
		Results: []postfan.ProviderResult{
			{AccountID: "a", Success: true},
			{AccountID: "b", Message: "token expired", Code: postfan.CodeTikTokAuth},
		},
	}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}},
		Targets: accounts,
	})
	require.NoError(t, err)
	assert.False(t, outcome.OverallSuccess)

	results := outcome.ByPlatform[postfan.PlatformTikTok]
	require.Len(t, results, 2)
	assert.Equal(t, postfan.StatusSuccess, results[0].Status)
	assert.Equal(t, postfan.StatusReconnect, results[1].Status)
	assert.Equal(t, MessageReconnect, results[1].Message)
	assert.True(t, results[1].RequiresReconnect())
	assert.Contains(t, f.notices.levels(), postfan.NoticeWarning)

	var authErr postfan.AuthError
	require.ErrorAs(t, OutcomeError(outcome), &authErr)
	assert.Equal(t, postfan.CodeTikTokAuth, authErr.Code)
}

func TestSubmitInvalidMediaFormat(t *testing.T) {
	f := newFixture()
	tw := twitterAccount("tw1")
	f.twitter.On("PublishSingle", mock.Anything, mock.Anything, tw).Return(&postfan.PublishResponse{
		StatusCode: 400,
		Results:    []postfan.ProviderResult{{AccountID: "tw1", Message: "bad codec", Code: postfan.CodeInvalidMediaFormat}},
	}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}},
		Targets: []postfan.TargetAccount{tw},
	})
	require.NoError(t, err)
	require.Len(t, outcome.ByPlatform[postfan.PlatformTwitter], 1)
	r := outcome.ByPlatform[postfan.PlatformTwitter][0]
	assert.Equal(t, postfan.StatusError, r.Status)
	assert.True(t, r.InvalidMediaFormat)
	assert.Equal(t, MediaFormatMessage(postfan.PlatformTwitter), r.Message)
}

func TestSubmitScheduleTooSoonMakesNoCalls(t *testing.T) {
	f := newFixture()
	when := testNow.Add(30 * time.Second)

	_, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content:  postfan.Content{Media: []postfan.MediaAsset{{LocalHandle: "clip.mp4", MimeClass: postfan.MimeVideo}}},
		Targets:  []postfan.TargetAccount{tiktokAccount("a")},
		Schedule: &when,
	})
	var vErr postfan.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "schedule", vErr.Field)
	f.assertNoNetwork(t)
	assert.False(t, f.orch.Busy())
}

func TestSubmitScheduled(t *testing.T) {
	f := newFixture()
	when := testNow.Add(2 * time.Hour)
	local := postfan.MediaAsset{LocalHandle: "clip.mp4", MimeClass: postfan.MimeVideo}

	f.uploader.On("Upload", mock.Anything, []postfan.MediaAsset{local}).Return(&upload.Result{
		URLs:   []string{"https://cdn.example.com/clip.mp4"},
		Assets: []postfan.MediaAsset{uploadedVideo()},
	}, nil)
	f.scheduler.On("Schedule", mock.Anything, postfan.KindVideo, mock.MatchedBy(func(req postfan.PostRequest) bool {
		return req.Content.MediaURLs()[0] == "https://cdn.example.com/clip.mp4" && req.Schedule.Equal(when)
	})).Return(&schedule.Result{PostID: "sched-9"}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content:  postfan.Content{Media: []postfan.MediaAsset{local}},
		Targets:  []postfan.TargetAccount{tiktokAccount("a"), twitterAccount("b")},
		Schedule: &when,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Scheduled)
	assert.True(t, outcome.OverallSuccess)
	assert.Equal(t, "sched-9", outcome.PostID)
	for _, r := range outcome.Results() {
		assert.Equal(t, postfan.StatusPending, r.Status)
	}
	f.tiktok.AssertNotCalled(t, "PublishSingle", mock.Anything, mock.Anything, mock.Anything)
	f.twitter.AssertNotCalled(t, "PublishSingle", mock.Anything, mock.Anything, mock.Anything)
	f.scheduler.AssertExpectations(t)
}

func TestSubmitScheduleRecheckedAfterUpload(t *testing.T) {
	now := testNow
	f := newFixture(WithClock(func() time.Time { return now }))
	when := testNow.Add(90 * time.Second)
	local := postfan.MediaAsset{LocalHandle: "clip.mp4", MimeClass: postfan.MimeVideo}

	f.uploader.On("Upload", mock.Anything, []postfan.MediaAsset{local}).Run(func(mock.Arguments) {
		now = testNow.Add(time.Minute)
	}).Return(&upload.Result{
		URLs:   []string{"https://cdn.example.com/clip.mp4"},
		Assets: []postfan.MediaAsset{uploadedVideo()},
	}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content:  postfan.Content{Media: []postfan.MediaAsset{local}},
		Targets:  []postfan.TargetAccount{tiktokAccount("a")},
		Schedule: &when,
	})
	assert.Nil(t, outcome)
	var vErr postfan.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "schedule", vErr.Field)
	f.uploader.AssertNumberOfCalls(t, "Upload", 1)
	f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []postfan.NoticeLevel{postfan.NoticeError}, f.notices.levels())
	assert.False(t, f.orch.Busy())
}

func TestUpstreamTimeoutLogsRejectedResolve(t *testing.T) {
	var logs bytes.Buffer
	logutil.SetOutput(&logs)
	t.Cleanup(func() { logutil.SetOutput(io.Discard) })

	f := newFixture()
	a, b := tiktokAccount("a"), tiktokAccount("b")
	tr := tracker.New([]postfan.TargetAccount{a, b})
	f.tiktok.On("PublishMulti", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		// The account settles before the timeout is handled.
		require.NoError(t, tr.Resolve(a.Key(), tracker.Update{Status: postfan.StatusError, Message: "cancelled"}))
	}).Return((*postfan.PublishResponse)(nil), postfan.UpstreamTimeoutError{Platform: postfan.PlatformTikTok, StatusCode: 504})

	postID := f.orch.fanOut(context.Background(), tr, f.tiktok, postfan.Publication{Kind: postfan.KindVideo}, []postfan.TargetAccount{a, b})
	assert.Empty(t, postID)

	results := tr.Results(postfan.PlatformTikTok)
	require.Len(t, results, 2)
	assert.Equal(t, postfan.StatusError, results[0].Status)
	assert.Equal(t, "cancelled", results[0].Message)
	assert.Equal(t, postfan.StatusSuccess, results[1].Status)
	assert.True(t, results[1].Pending)
	assert.Contains(t, logs.String(), "ignoring provider result")
}

func TestSubmitUploadFailureAborts(t *testing.T) {
	f := newFixture()
	local := postfan.MediaAsset{LocalHandle: "clip.mp4", MimeClass: postfan.MimeVideo}
	f.uploader.On("Upload", mock.Anything, mock.Anything).
		Return((*upload.Result)(nil), &postfan.UploadError{File: "clip.mp4", Reason: "connection reset"})

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{local}},
		Targets: []postfan.TargetAccount{tiktokAccount("a"), twitterAccount("b")},
	})
	assert.Nil(t, outcome)
	var upErr *postfan.UploadError
	require.ErrorAs(t, err, &upErr)
	f.tiktok.AssertNotCalled(t, "PublishSingle", mock.Anything, mock.Anything, mock.Anything)
	f.twitter.AssertNotCalled(t, "PublishSingle", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, f.notices.levels(), postfan.NoticeError)
}

func TestSubmitPanicMarksProviderFailed(t *testing.T) {
	twitter := &MockPublisher{platform: postfan.PlatformTwitter}
	tw := twitterAccount("tw1")
	twitter.On("PublishSingle", mock.Anything, mock.Anything, tw).Return(&postfan.PublishResponse{
		StatusCode: 200,
		Results:    []postfan.ProviderResult{{AccountID: "tw1", Success: true}},
	}, nil)
	orch := New(new(MockUploader), new(MockScheduler), []Publisher{panicPublisher{platform: postfan.PlatformTikTok}, twitter})

	outcome, err := orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}},
		Targets: []postfan.TargetAccount{tiktokAccount("a"), tiktokAccount("b"), tw},
	})
	require.NoError(t, err)
	assert.False(t, outcome.OverallSuccess)
	for _, r := range outcome.ByPlatform[postfan.PlatformTikTok] {
		assert.Equal(t, postfan.StatusError, r.Status)
		assert.Equal(t, "Unexpected error: boom", r.Message)
	}
	require.Len(t, outcome.ByPlatform[postfan.PlatformTwitter], 1)
	assert.Equal(t, postfan.StatusSuccess, outcome.ByPlatform[postfan.PlatformTwitter][0].Status)
}

func TestSubmitTransportFailure(t *testing.T) {
	f := newFixture()
	tk := tiktokAccount("a")
	f.tiktok.On("PublishSingle", mock.Anything, mock.Anything, tk).Return((*postfan.PublishResponse)(nil),
		&postfan.TransportError{URL: "https://api.example.com/tiktok/post-video", Attempts: 1, Timeout: true})

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}},
		Targets: []postfan.TargetAccount{tk},
	})
	require.NoError(t, err)
	assert.False(t, outcome.OverallSuccess)
	r := outcome.ByPlatform[postfan.PlatformTikTok][0]
	assert.Equal(t, postfan.StatusError, r.Status)
	assert.Equal(t, "Request timed out; please try again", r.Message)
}

func TestSubmitMissingResultIsError(t *testing.T) {
	f := newFixture()
	accounts := []postfan.TargetAccount{tiktokAccount("a"), tiktokAccount("b")}
	f.tiktok.On("PublishMulti", mock.Anything, mock.Anything, accounts).Return(&postfan.PublishResponse{
		StatusCode: 200,
		Results: []postfan.ProviderResult{
			{AccountID: "a", Success: true},
			{AccountID: "stranger", Success: true},
		},
	}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{uploadedVideo()}},
		Targets: accounts,
	})
	require.NoError(t, err)
	results := outcome.ByPlatform[postfan.PlatformTikTok]
	require.Len(t, results, 2)
	assert.Equal(t, postfan.StatusSuccess, results[0].Status)
	assert.Equal(t, postfan.StatusError, results[1].Status)
	assert.Equal(t, MessageNoResult, results[1].Message)
	assert.False(t, outcome.OverallSuccess)
}

func TestSubmitGenericProviderError(t *testing.T) {
	f := newFixture()
	tw := twitterAccount("tw1")
	f.twitter.On("PublishSingle", mock.Anything, mock.Anything, tw).Return(&postfan.PublishResponse{
		StatusCode: 403,
		Results:    []postfan.ProviderResult{{AccountID: "tw1", Message: "duplicate content"}},
	}, nil)

	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Caption: "same as yesterday", TextOnly: true},
		Targets: []postfan.TargetAccount{tw},
	})
	require.NoError(t, err)
	r := outcome.ByPlatform[postfan.PlatformTwitter][0]
	assert.Equal(t, postfan.StatusError, r.Status)
	assert.Equal(t, "duplicate content", r.Message)
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	release := make(chan struct{})
	f.uploader.On("Upload", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return((*upload.Result)(nil), errors.New("cancelled"))

	req := postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{{LocalHandle: "clip.mp4", MimeClass: postfan.MimeVideo}}},
		Targets: []postfan.TargetAccount{tiktokAccount("a")},
	}
	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Submit(context.Background(), req)
		done <- err
	}()

	<-started
	assert.True(t, f.orch.Busy())
	_, err := f.orch.Submit(context.Background(), req)
	require.ErrorIs(t, err, postfan.ErrSubmissionInFlight)

	close(release)
	require.Error(t, <-done)
	assert.False(t, f.orch.Busy())
}

type staticDirectory map[postfan.AccountKey]postfan.TargetAccount

func (d staticDirectory) Lookup(_ context.Context, p postfan.Platform, id string) (postfan.TargetAccount, bool, error) {
	t, ok := d[postfan.AccountKey{Platform: p, AccountID: id}]
	return t, ok, nil
}

func (d staticDirectory) List(context.Context, postfan.Platform) ([]postfan.TargetAccount, error) {
	return nil, nil
}

func TestSubmitResolvesDisplayNamesAndDedupes(t *testing.T) {
	dir := staticDirectory{
		{Platform: postfan.PlatformTwitter, AccountID: "42"}: {Platform: postfan.PlatformTwitter, AccountID: "42", DisplayName: "@blacktop"},
	}
	f := newFixture(WithDirectory(dir))
	want := postfan.TargetAccount{Platform: postfan.PlatformTwitter, AccountID: "42", DisplayName: "@blacktop"}
	f.twitter.On("PublishSingle", mock.Anything, mock.Anything, want).Return(&postfan.PublishResponse{
		StatusCode: 200,
		Results:    []postfan.ProviderResult{{AccountID: "42", Success: true}},
	}, nil)

	bare := postfan.TargetAccount{Platform: postfan.PlatformTwitter, AccountID: "42"}
	outcome, err := f.orch.Submit(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Caption: "hello"},
		Targets: []postfan.TargetAccount{bare, bare},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Results(), 1)
	assert.Equal(t, "@blacktop", outcome.Results()[0].DisplayName)
	f.twitter.AssertExpectations(t)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   postfan.PostRequest
		field string
	}{
		{
			name:  "nothing to post",
			req:   postfan.PostRequest{Content: postfan.Content{Caption: "   "}, Targets: []postfan.TargetAccount{twitterAccount("a")}},
			field: "content",
		},
		{
			name:  "no targets",
			req:   postfan.PostRequest{Content: postfan.Content{Caption: "hi"}},
			field: "targets",
		},
		{
			name:  "unknown platform",
			req:   postfan.PostRequest{Content: postfan.Content{Caption: "hi"}, Targets: []postfan.TargetAccount{{Platform: "myspace", AccountID: "tom"}}},
			field: "targets",
		},
		{
			name: "mixed media",
			req: postfan.PostRequest{
				Content: postfan.Content{Media: []postfan.MediaAsset{
					{LocalHandle: "a.mp4", MimeClass: postfan.MimeVideo},
					{LocalHandle: "b.png", MimeClass: postfan.MimeImage},
				}},
				Targets: []postfan.TargetAccount{twitterAccount("a")},
			},
			field: "media",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.orch.Submit(context.Background(), tt.req)
			var vErr postfan.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			f.assertNoNetwork(t)
		})
	}
}

func TestContentKindOf(t *testing.T) {
	img := postfan.MediaAsset{LocalHandle: "a.png", MimeClass: postfan.MimeImage}
	vid := postfan.MediaAsset{LocalHandle: "a.mp4", MimeClass: postfan.MimeVideo}

	kind, err := ContentKindOf(postfan.Content{Media: []postfan.MediaAsset{vid}})
	require.NoError(t, err)
	assert.Equal(t, postfan.KindVideo, kind)

	kind, err = ContentKindOf(postfan.Content{Media: []postfan.MediaAsset{img, img}})
	require.NoError(t, err)
	assert.Equal(t, postfan.KindImages, kind)

	kind, err = ContentKindOf(postfan.Content{Caption: "words"})
	require.NoError(t, err)
	assert.Equal(t, postfan.KindText, kind)

	_, err = ContentKindOf(postfan.Content{Media: []postfan.MediaAsset{vid, vid}})
	assert.Error(t, err)
	_, err = ContentKindOf(postfan.Content{Media: []postfan.MediaAsset{img}, TextOnly: true})
	assert.Error(t, err)
	_, err = ContentKindOf(postfan.Content{Media: []postfan.MediaAsset{{LocalHandle: "a.bin"}}})
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	f := newFixture()
	local := postfan.MediaAsset{LocalHandle: "clip.mp4", MimeClass: postfan.MimeVideo}

	plan, err := f.orch.Plan(context.Background(), postfan.PostRequest{
		Content: postfan.Content{Media: []postfan.MediaAsset{local}},
		Targets: []postfan.TargetAccount{tiktokAccount("a"), tiktokAccount("b"), twitterAccount("c")},
	})
	require.NoError(t, err)
	assert.Equal(t, postfan.KindVideo, plan.Kind)
	assert.Len(t, plan.Uploads, 1)
	require.Len(t, plan.Calls, 2)
	assert.Equal(t, "/tiktok/multi", plan.Calls[0].Endpoint)
	assert.Len(t, plan.Calls[0].Accounts, 2)
	assert.Equal(t, "/twitter/single", plan.Calls[1].Endpoint)
	f.assertNoNetwork(t)

	when := testNow.Add(time.Hour)
	plan, err = f.orch.Plan(context.Background(), postfan.PostRequest{
		Content:  postfan.Content{Caption: "later"},
		Targets:  []postfan.TargetAccount{twitterAccount("c")},
		Schedule: &when,
	})
	require.NoError(t, err)
	require.Len(t, plan.Calls, 1)
	assert.Equal(t, schedule.PostsPath, plan.Calls[0].Endpoint)
}
