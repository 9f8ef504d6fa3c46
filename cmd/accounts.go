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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blacktop/postfan/internal/directory"
	"github.com/blacktop/postfan/internal/notify"
	"github.com/blacktop/postfan/internal/postfan"
)

func newAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the local account directory",
		Long: "The account directory maps account IDs to display names so posts can target " +
			"accounts with --all and results show readable names.",
	}
	cmd.AddCommand(newAccountsListCommand(), newAccountsAddCommand(), newAccountsRemoveCommand())
	return cmd
}

func newAccountsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [platform]",
		Short: "List known accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var platform postfan.Platform
			if len(args) == 1 {
				p, err := parsePlatform(args[0])
				if err != nil {
					return err
				}
				platform = p
			}
			accounts, err := directory.Open(settings.DirectoryPath).List(cmd.Context(), platform)
			if err != nil {
				return err
			}
			if jsonOutput {
				if accounts == nil {
					accounts = []postfan.TargetAccount{}
				}
				return notify.WriteJSON(cmd.OutOrStdout(), accounts)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no accounts (add one with 'postfan accounts add')")
				return nil
			}
			return notify.RenderAccounts(cmd.OutOrStdout(), accounts)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print accounts as JSON")
	return cmd
}

func newAccountsAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "add <platform> <account-id> [display name]",
		Short:   "Add or rename an account",
		Args:    cobra.RangeArgs(2, 3),
		Example: `  postfan accounts add tiktok 7012 @dancefloor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := parsePlatform(args[0])
			if err != nil {
				return err
			}
			account := postfan.TargetAccount{Platform: platform, AccountID: strings.TrimSpace(args[1])}
			if len(args) == 3 {
				account.DisplayName = strings.TrimSpace(args[2])
			}
			replaced, err := directory.Open(settings.DirectoryPath).Add(cmd.Context(), account)
			if err != nil {
				return err
			}
			verb := "added"
			if replaced {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, account.Key())
			return nil
		},
	}
}

func newAccountsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <platform> <account-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an account",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := parsePlatform(args[0])
			if err != nil {
				return err
			}
			removed, err := directory.Open(settings.DirectoryPath).Remove(cmd.Context(), platform, strings.TrimSpace(args[1]))
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s:%s is not in the account directory", platform, args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s:%s\n", platform, args[1])
			return nil
		},
	}
}

func parsePlatform(raw string) (postfan.Platform, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "x" {
		raw = string(postfan.PlatformTwitter)
	}
	p := postfan.Platform(raw)
	if !p.Valid() {
		return "", fmt.Errorf("unsupported platform %q (use tiktok or twitter)", raw)
	}
	return p, nil
}
