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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/blacktop/postfan/internal/config"
	"github.com/blacktop/postfan/internal/directory"
	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/notify"
	"github.com/blacktop/postfan/internal/orchestrator"
	"github.com/blacktop/postfan/internal/postfan"
)

var (
	messageFlag  string
	videoPath    string
	imagePaths   []string
	tiktokIDs    []string
	twitterIDs   []string
	allAccounts  bool
	scheduleFlag string
	configPath   string
	dryRun       bool
	jsonOutput   bool
	verbose      bool

	settings config.Config
)

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postfan [message]",
		Short: "Publish one post to many TikTok and X accounts",
		Long: "postfan uploads a video, a set of images, or plain text once and publishes it " +
			"to every selected TikTok and X account, now or at a scheduled time.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		Args:              cobra.ArbitraryArgs,
		RunE:              runRoot,
		Example: `  postfan --video ./launch.mp4 --tiktok 7012 --tiktok 7013 -m "launch day"
  postfan "Ship it!" --twitter 1790001
  postfan --image a.png --image b.png --all --schedule "2026-11-01 09:30"
  echo "Release shipped" | postfan --twitter 1790001 --dry-run`,
	}

	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Caption or post text")
	cmd.Flags().StringVar(&videoPath, "video", "", "Path to a video to post")
	cmd.Flags().StringSliceVar(&imagePaths, "image", nil, "Path to an image to post (repeatable)")
	cmd.Flags().StringSliceVar(&tiktokIDs, "tiktok", nil, "TikTok account ID to post to (repeatable)")
	cmd.Flags().StringSliceVar(&twitterIDs, "twitter", nil, "X account ID to post to (repeatable)")
	cmd.Flags().BoolVar(&allAccounts, "all", false, "Post to every account in the account directory")
	cmd.Flags().StringVar(&scheduleFlag, "schedule", "", `Publish later: local "2006-01-02 15:04", RFC3339, or "+2h"`)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the requests that would be made without posting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the outcome as JSON")
	cmd.Flags().SortFlags = false

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a dotenv config file (default ./.env)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")

	cmd.AddCommand(newAccountsCommand())
	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadLocal(configPath)
	if err != nil {
		return err
	}
	if err := logutil.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	if err := logutil.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	logutil.SetOutput(cmd.ErrOrStderr())
	if verbose {
		logutil.SetVerbose(true)
	}
	if logutil.Verbose() {
		logutil.Debugf("loaded config: api=%s r2=%t directory=%s", cfg.APIURL, cfg.R2.Enabled(), cfg.DirectoryPath)
	}
	settings = cfg
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := settings.Validate(); err != nil {
		return err
	}

	message, err := resolveMessage(cmd, args)
	if err != nil {
		return err
	}

	when, err := parseSchedule(scheduleFlag, time.Now())
	if err != nil {
		return err
	}

	dir := directory.Open(settings.DirectoryPath)
	targets, err := selectTargets(cmd, dir)
	if err != nil {
		return err
	}

	media := mediaAssets(videoPath, imagePaths)
	req := postfan.PostRequest{
		Content: postfan.Content{
			Media:    media,
			Caption:  message,
			TextOnly: len(media) == 0,
		},
		Targets:  targets,
		Schedule: when,
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var notifier postfan.Notifier = notify.New(errOut)
	if jsonOutput {
		notifier = notify.Quiet{}
	}
	progress := notify.NewProgress(errOut, "uploading")

	orch, err := newOrchestrator(ctx, settings, notifier, dir, progress.Update)
	if err != nil {
		return err
	}

	if dryRun {
		plan, err := orch.Plan(ctx, req)
		if err != nil {
			return err
		}
		return printPlan(out, plan, message)
	}

	outcome, err := orch.Submit(ctx, req)
	progress.Done()
	if err != nil {
		return err
	}
	if jsonOutput {
		err = notify.WriteJSON(out, outcome)
	} else {
		err = notify.RenderOutcome(out, outcome)
	}
	if err != nil {
		return err
	}
	return orchestrator.OutcomeError(outcome)
}

func resolveMessage(cmd *cobra.Command, args []string) (string, error) {
	var message string

	if messageFlag != "" {
		message = messageFlag
	}

	if len(args) > 0 {
		if message != "" {
			return "", errors.New("provide the message either as an argument or with --message, not both")
		}
		message = strings.Join(args, " ")
	}

	if message != "" {
		return strings.TrimSpace(message), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		message = strings.TrimSpace(string(data))
	}

	// Media-only posts have no caption.
	return message, nil
}

func normalizeTargets(platform postfan.Platform, values []string) []postfan.TargetAccount {
	result := make([]postfan.TargetAccount, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, postfan.TargetAccount{Platform: platform, AccountID: raw})
	}
	return result
}

func selectTargets(cmd *cobra.Command, dir postfan.AccountDirectory) ([]postfan.TargetAccount, error) {
	targets := append(normalizeTargets(postfan.PlatformTikTok, tiktokIDs), normalizeTargets(postfan.PlatformTwitter, twitterIDs)...)
	if allAccounts {
		known, err := dir.List(cmd.Context(), "")
		if err != nil {
			return nil, err
		}
		if len(known) == 0 {
			return nil, errors.New("--all: the account directory is empty (add accounts with 'postfan accounts add')")
		}
		targets = append(targets, known...)
	}
	if len(targets) == 0 {
		return nil, errors.New("no accounts selected (use --tiktok, --twitter or --all)")
	}
	return targets, nil
}

func mediaAssets(video string, images []string) []postfan.MediaAsset {
	var media []postfan.MediaAsset
	if video = strings.TrimSpace(video); video != "" {
		media = append(media, postfan.MediaAsset{LocalHandle: video, MimeClass: postfan.MimeVideo})
	}
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			media = append(media, postfan.MediaAsset{LocalHandle: img, MimeClass: postfan.MimeImage})
		}
	}
	return media
}

var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// parseSchedule reads --schedule in the local time zone. The 60 second lead
// is enforced by the orchestrator.
func parseSchedule(value string, now time.Time) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "+") {
		d, err := time.ParseDuration(value[1:])
		if err != nil {
			return nil, fmt.Errorf("parse --schedule: %w", err)
		}
		when := now.Add(d)
		return &when, nil
	}
	for _, layout := range scheduleLayouts {
		if when, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return &when, nil
		}
	}
	return nil, fmt.Errorf("parse --schedule: %q is not a recognized date", value)
}

func printPlan(out io.Writer, plan *orchestrator.Plan, message string) error {
	if jsonOutput {
		return notify.WriteJSON(out, plan)
	}
	for _, asset := range plan.Uploads {
		fmt.Fprintf(out, "[dry-run] would upload %s (%s)\n", asset.LocalHandle, asset.MimeClass)
	}
	for _, call := range plan.Calls {
		names := make([]string, 0, len(call.Accounts))
		for _, a := range call.Accounts {
			names = append(names, a.Key().String())
		}
		fmt.Fprintf(out, "[dry-run] would POST %s for %s\n", call.Endpoint, strings.Join(names, ", "))
	}
	if plan.ScheduledFor != nil {
		fmt.Fprintf(out, "[dry-run] scheduled for %s\n", plan.ScheduledFor.Local().Format(time.RFC1123))
	}
	if message != "" {
		fmt.Fprintf(out, "[dry-run] %s: %q\n", plan.Kind, message)
	}
	return nil
}
