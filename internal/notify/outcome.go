package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/blacktop/postfan/internal/postfan"
)

func statusCell(r postfan.AccountResult) string {
	switch {
	case r.Status == postfan.StatusSuccess && r.Pending:
		return warningStyle.Render("processing")
	case r.Status == postfan.StatusSuccess:
		return successStyle.Render("posted")
	case r.Status == postfan.StatusReconnect:
		return warningStyle.Render("reconnect")
	case r.Status == postfan.StatusError:
		return errorStyle.Render("failed")
	default:
		return mutedStyle.Render(string(r.Status))
	}
}

func accountCell(r postfan.AccountResult) string {
	if r.DisplayName == "" {
		return r.AccountID
	}
	return fmt.Sprintf("%s (%s)", r.DisplayName, r.AccountID)
}

// RenderOutcome writes a table of per-account results followed by a summary.
func RenderOutcome(w io.Writer, o *postfan.PostOutcome) error {
	results := o.Results()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLATFORM", "ACCOUNT", "STATUS", "DETAIL")
	var reconnect []string
	for _, r := range results {
		t.Row(string(r.Platform), accountCell(r), statusCell(r), r.Message)
		if r.RequiresReconnect() {
			reconnect = append(reconnect, accountCell(r))
		}
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	var summary string
	switch {
	case o.Scheduled:
		summary = successStyle.Render("Scheduled")
	case o.OverallSuccess:
		summary = successStyle.Render("All posts succeeded")
	default:
		summary = errorStyle.Render("Some posts failed")
	}
	if o.PostID != "" {
		summary += mutedStyle.Render(" post " + o.PostID)
	}
	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}
	if len(reconnect) > 0 {
		_, err := fmt.Fprintf(w, "%s reconnect %s in the dashboard, then retry.\n",
			warningStyle.Render("!"), strings.Join(reconnect, ", "))
		return err
	}
	return nil
}

// RenderAccounts writes a table of known accounts.
func RenderAccounts(w io.Writer, accounts []postfan.TargetAccount) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLATFORM", "ID", "NAME")
	for _, a := range accounts {
		t.Row(string(a.Platform), a.AccountID, a.DisplayName)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
