package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/orcstate"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker and issue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireInit(orcDir); err != nil {
				return err
			}

			st, err := orcstate.Load(orcDir + "/state.json")
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			colorize := isatty.IsTerminal(os.Stdout.Fd())

			printWorkers(st.Workers, colorize)
			printIssues(st.Issues, colorize)
			printBatches(st.Batches)
			return nil
		},
	}
}

func printWorkers(workers []orcstate.Worker, colorize bool) {
	fmt.Println("Workers")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tSTATUS\tISSUE\tPID\tIDLE")
	for _, wk := range workers {
		idle := "-"
		if wk.Heartbeat != nil {
			idle = humanize.Time(*wk.Heartbeat)
		}
		cur := wk.CurrentIssue
		if cur == "" {
			cur = "-"
		}
		pid := "-"
		if wk.PID != 0 {
			pid = fmt.Sprintf("%d", wk.PID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", wk.WorkerID, workerStatusLabel(wk.Status, colorize), cur, pid, idle)
	}
	w.Flush()
	fmt.Println()
}

func printIssues(issues map[string]*issue.Issue, colorize bool) {
	ids := make([]string, 0, len(issues))
	for id := range issues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("Issues")
	if len(ids) == 0 {
		fmt.Println("  (none — add one with: orc new \"title\")")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tATTEMPTS\tTITLE")
	for _, id := range ids {
		iss := issues[id]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", iss.ID, issueStatusLabel(iss.Status, colorize), len(iss.Attempts), iss.Title)
	}
	w.Flush()
	fmt.Println()
}

func printBatches(batches []orcstate.Batch) {
	if len(batches) == 0 {
		return
	}
	fmt.Println("Recent batches")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tISSUES\tDURATION")
	for _, b := range batches {
		dur := "-"
		if b.StartedAt != nil {
			end := time.Now()
			if b.CompletedAt != nil {
				end = *b.CompletedAt
			}
			dur = humanize.RelTime(*b.StartedAt, end, "", "")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", b.ID, b.Status, len(b.IssueIDs), dur)
	}
	w.Flush()
}

func workerStatusLabel(s orcstate.WorkerStatus, colorize bool) string {
	if !colorize {
		return string(s)
	}
	switch s {
	case orcstate.WorkerRunning:
		return "\033[32m" + string(s) + "\033[0m"
	case orcstate.WorkerFailed, orcstate.WorkerTimeout:
		return "\033[31m" + string(s) + "\033[0m"
	case orcstate.WorkerWaiting:
		return "\033[33m" + string(s) + "\033[0m"
	default:
		return string(s)
	}
}

func issueStatusLabel(s issue.Status, colorize bool) string {
	if !colorize {
		return string(s)
	}
	switch s {
	case issue.StatusCompleted:
		return "\033[32m" + string(s) + "\033[0m"
	case issue.StatusFailed, issue.StatusBlocked:
		return "\033[31m" + string(s) + "\033[0m"
	case issue.StatusRunning:
		return "\033[36m" + string(s) + "\033[0m"
	default:
		return string(s)
	}
}
