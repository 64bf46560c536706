package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/orcstate"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize orc in the current repository",
		Long: `Creates .orc/ with a default config.yaml and an empty state.json.

Example:
  orc init
  orc init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			if err := config.Init(orcDir, force); err != nil {
				return err
			}

			cfg, err := config.Load(orcDir)
			if err != nil {
				return err
			}

			statePath := orcDir + "/state.json"
			st := orcstate.New(statePath, cfg.Workers)
			if err := st.Save(); err != nil {
				return fmt.Errorf("write initial state: %w", err)
			}

			fmt.Println("orc initialized")
			fmt.Println("  config: " + orcDir + "/config.yaml")
			fmt.Println("  state:  " + statePath)
			fmt.Println("\nNext: orc new \"Your first issue\"")
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite existing configuration")
	return cmd
}
