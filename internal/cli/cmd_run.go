package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/orc/internal/agentloop"
	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/planner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the dispatch loop",
		Long: `Runs the planner/dispatch loop until the backlog is empty, an
interrupt is observed, or --max-iterations is reached.

Example:
  orc run
  orc run --issue add-retry-budget
  orc run --max-iterations 5 --no-planner`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireInit(orcDir); err != nil {
				return err
			}

			cfg, err := config.Load(orcDir)
			if err != nil {
				return err
			}

			maxIterations, _ := cmd.Flags().GetInt("max-iterations")
			issueID, _ := cmd.Flags().GetString("issue")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			noPlanner, _ := cmd.Flags().GetBool("no-planner")
			workers, _ := cmd.Flags().GetInt("num-workers")
			if workers > 0 {
				cfg.Workers = workers
			}

			wd, err := os.Getwd()
			if err != nil {
				return err
			}

			loop, err := agentloop.New(agentloop.Options{
				WorkDir:       wd,
				Cfg:           cfg,
				MaxIterations: maxIterations,
				IssueID:       issueID,
				DryRun:        dryRun,
				NoPlanner:     noPlanner,
				Planner:       planner.Options{SpecDir: ".spec"},
				Publisher:     events.NewCLIPublisher(os.Stdout),
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\ninterrupt received, finishing in-flight work and saving state...")
				cancel()
			}()

			return loop.Run(ctx)
		},
	}
	cmd.Flags().Int("max-iterations", 0, "stop after N iterations (0 = unbounded)")
	cmd.Flags().String("issue", "", "restrict the run to a single issue")
	cmd.Flags().Bool("dry-run", false, "show the planner prompt without invoking the reviewer agent")
	cmd.Flags().Bool("no-planner", false, "skip planner passes entirely")
	cmd.Flags().Int("num-workers", 0, "override configured worker count")
	return cmd
}
