// Package upload moves local media to remote storage one file at a time and
// reports monotonic progress for the whole batch.
package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
)

// inFlightCeiling keeps a file's share below 100% until the store confirms it.
const inFlightCeiling = 0.99

// Store persists a single validated asset and returns its public URL.
// progress receives the fraction of the file sent so far.
type Store interface {
	Put(ctx context.Context, asset postfan.MediaAsset, progress func(fraction float64)) (string, error)
}

// Result lists the remote URLs in input order.
type Result struct {
	URLs   []string
	Assets []postfan.MediaAsset
}

// Pipeline validates then uploads a batch of files sequentially.
type Pipeline struct {
	store  Store
	limits Limits
}

// NewPipeline returns a Pipeline writing to store.
func NewPipeline(store Store, limits Limits) *Pipeline {
	return &Pipeline{store: store, limits: limits}
}

// Upload validates every asset, then uploads those without a remote URL one
// at a time. Any failure discards the URLs collected so far.
func (p *Pipeline) Upload(ctx context.Context, assets []postfan.MediaAsset, progress postfan.ProgressFunc) (*Result, error) {
	validated, err := Validate(assets, p.limits)
	if err != nil {
		return nil, err
	}

	tracker := newProgress(len(validated), progress)
	out := make([]postfan.MediaAsset, len(validated))
	urls := make([]string, 0, len(validated))
	for i, asset := range validated {
		i := i
		if !asset.Uploaded() {
			logutil.Debug("uploading media", "file", asset.LocalHandle, "bytes", asset.SizeBytes, "index", i+1, "of", len(validated))
			url, err := p.store.Put(ctx, asset, func(fraction float64) {
				tracker.report(i, fraction)
			})
			if err != nil {
				return nil, fmt.Errorf("upload file %d of %d: %w", i+1, len(validated), err)
			}
			if url == "" {
				return nil, &postfan.UploadError{File: filepath.Base(asset.LocalHandle), Reason: "store returned no url"}
			}
			asset.RemoteURL = url
			logutil.Debug("media uploaded", "file", asset.LocalHandle, "url", url)
		}
		tracker.done(i)
		out[i] = asset
		urls = append(urls, asset.RemoteURL)
	}
	return &Result{URLs: urls, Assets: out}, nil
}

// progress is shared by every attempt of the current file; stores may
// report from more than one goroutine.
type progress struct {
	mu    sync.Mutex
	total int
	fn    postfan.ProgressFunc
	last  float64
}

func newProgress(total int, fn postfan.ProgressFunc) *progress {
	return &progress{total: total, fn: fn, last: -1}
}

func (p *progress) report(index int, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > inFlightCeiling {
		fraction = inFlightCeiling
	}
	p.emit((float64(index) + fraction) / float64(p.total) * 100)
}

func (p *progress) done(index int) {
	p.emit(float64(index+1) / float64(p.total) * 100)
}

func (p *progress) emit(pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// progressReader counts bytes read from r and reports the fraction of total.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(float64)
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.read += int64(n)
	if pr.fn != nil && pr.total > 0 && n > 0 {
		pr.fn(float64(pr.read) / float64(pr.total))
	}
	return n, err
}

// attemptGate hands out progress callbacks that go quiet once their attempt
// is superseded or closed.
type attemptGate struct {
	mu      sync.Mutex
	fn      func(float64)
	current *atomic.Bool
}

func (g *attemptGate) next() func(float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		g.current.Store(false)
	}
	live := new(atomic.Bool)
	live.Store(true)
	g.current = live
	return func(fraction float64) {
		if g.fn != nil && live.Load() {
			g.fn(fraction)
		}
	}
}

func (g *attemptGate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		g.current.Store(false)
	}
}

// Seek lets SDKs rewind the body; the counter follows the new offset.
func (pr *progressReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := pr.r.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("seek: underlying reader is not seekable")
	}
	pos, err := s.Seek(offset, whence)
	if err == nil {
		pr.read = pos
	}
	return pos, err
}
