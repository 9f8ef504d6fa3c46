package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/transport"
)

// UploadPath is the backend's upload endpoint.
const UploadPath = "/upload"

var errAttemptDone = errors.New("upload attempt finished")

// HTTPStore uploads files to the backend as multipart form posts.
type HTTPStore struct {
	client *transport.Client
	policy transport.Policy
	url    string
}

// NewHTTPStore returns a store posting to baseURL + UploadPath.
func NewHTTPStore(client *transport.Client, baseURL string, policy transport.Policy) *HTTPStore {
	return &HTTPStore{
		client: client,
		policy: policy,
		url:    strings.TrimRight(baseURL, "/") + UploadPath,
	}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Put uploads asset. The body is re-streamed from disk on every retry. Put
// returns only after every body writer it started has exited, and a
// superseded attempt never reports progress.
func (s *HTTPStore) Put(ctx context.Context, asset postfan.MediaAsset, progress func(float64)) (string, error) {
	name := filepath.Base(asset.LocalHandle)
	gate := &attemptGate{fn: progress}
	var (
		writers sync.WaitGroup
		mu      sync.Mutex
		bodies  []*io.PipeReader
	)
	resp, err := s.client.DoWithPolicy(ctx, s.policy, func(ctx context.Context) (*http.Request, error) {
		req, body, err := s.newRequest(ctx, asset, name, gate.next(), &writers)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		return req, nil
	})
	gate.close()
	mu.Lock()
	for _, body := range bodies {
		body.CloseWithError(errAttemptDone)
	}
	mu.Unlock()
	writers.Wait()
	if err != nil {
		return "", &postfan.UploadError{File: name, Reason: "transfer failed", Err: err}
	}

	var body uploadResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", &postfan.UploadError{File: name, Reason: fmt.Sprintf("malformed response (status %d)", resp.StatusCode), Err: err}
	}
	if !resp.OK() || !body.Success || body.URL == "" {
		reason := firstNonEmpty(body.Error, body.Message, "backend did not confirm the upload")
		return "", &postfan.UploadError{File: name, Reason: fmt.Sprintf("%s (status %d)", reason, resp.StatusCode)}
	}
	return body.URL, nil
}

func (s *HTTPStore) newRequest(ctx context.Context, asset postfan.MediaAsset, name string, progress func(float64), writers *sync.WaitGroup) (*http.Request, *io.PipeReader, error) {
	f, err := os.Open(asset.LocalHandle)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", asset.LocalHandle, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, pr)
	if err != nil {
		f.Close()
		pr.Close()
		return nil, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-File-Name", name)

	contentType, _ := DetectMIME(asset.LocalHandle)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	writers.Add(1)
	go func() {
		defer writers.Done()
		defer f.Close()
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: f, total: asset.SizeBytes, fn: progress}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	return req, pr, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
