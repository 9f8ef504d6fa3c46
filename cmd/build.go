/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"

	"github.com/blacktop/postfan/internal/config"
	"github.com/blacktop/postfan/internal/orchestrator"
	"github.com/blacktop/postfan/internal/postfan"
	"github.com/blacktop/postfan/internal/provider/tiktok"
	"github.com/blacktop/postfan/internal/provider/twitter"
	"github.com/blacktop/postfan/internal/schedule"
	"github.com/blacktop/postfan/internal/transport"
	"github.com/blacktop/postfan/internal/upload"
)

const userAgent = "postfan"

func newOrchestrator(ctx context.Context, cfg config.Config, notifier postfan.Notifier, dir postfan.AccountDirectory, progress postfan.ProgressFunc) (*orchestrator.Orchestrator, error) {
	opts := []transport.Option{transport.WithHeader("User-Agent", userAgent)}
	if cfg.APIToken != "" {
		opts = append(opts, transport.WithHeader("Authorization", "Bearer "+cfg.APIToken))
	}
	client := transport.New(cfg.RequestPolicy(), opts...)

	var store upload.Store
	if cfg.R2.Enabled() {
		r2, err := upload.NewR2Store(ctx, cfg.R2, cfg.UploadPolicy())
		if err != nil {
			return nil, err
		}
		store = r2
	} else {
		store = upload.NewHTTPStore(client, cfg.APIURL, cfg.UploadPolicy())
	}

	publishers := []orchestrator.Publisher{
		tiktok.New(client, cfg.APIURL, cfg.UserID, cfg.PublishPolicy()),
		twitter.New(client, cfg.APIURL, cfg.UserID, cfg.PublishPolicy()),
	}

	return orchestrator.New(
		upload.NewPipeline(store, cfg.Limits()),
		schedule.NewSubmitter(client, cfg.APIURL, cfg.UserID, cfg.RequestPolicy()),
		publishers,
		orchestrator.WithNotifier(notifier),
		orchestrator.WithDirectory(dir),
		orchestrator.WithProgress(progress),
	), nil
}
