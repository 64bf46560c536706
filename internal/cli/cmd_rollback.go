package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/issue"
	orcerrors "github.com/randalmurphal/orc/internal/errors"
	"github.com/randalmurphal/orc/internal/orcstate"
	"github.com/randalmurphal/orc/internal/repoops"
)

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <issue>",
		Short: "Discard an issue's in-progress workspace and requeue it",
		Long: `Kills nothing itself (use ctrl-C or wait for idle timeout for a live
worker); it removes the issue's worktree and resets its status to Open so
the next run dispatches it fresh. Its attempt history is kept, so earlier
manifest violations still count against the retry budget.

Example:
  orc rollback add-retry-budget`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireInit(orcDir); err != nil {
				return err
			}

			id := args[0]
			statePath := orcDir + "/state.json"
			st, err := orcstate.Load(statePath)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			iss, ok := st.Issues[id]
			if !ok {
				return orcerrors.ErrIssueNotFound(id)
			}

			for i := range st.Workers {
				wk := &st.Workers[i]
				if wk.CurrentIssue != id {
					continue
				}
				if wk.WorkspacePath != "" {
					repo, err := repoops.New(".", ".orc/worktrees")
					if err == nil {
						_ = repo.RemoveWorkspace(wk.WorkspacePath)
					}
				}
				*wk = orcstate.Worker{WorkerID: wk.WorkerID, Status: orcstate.WorkerIdle}
			}

			iss.Status = issue.StatusOpen
			if err := st.Save(); err != nil {
				return fmt.Errorf("save state: %w", err)
			}

			fmt.Printf("issue %s rolled back to open\n", id)
			return nil
		},
	}
}
