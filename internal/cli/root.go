// Package cli implements the orc command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	orcerrors "github.com/randalmurphal/orc/internal/errors"
)

var (
	cfgFile string
	verbose bool
	orcDir  = ".orc"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "orc",
	Short: "Autonomous multi-agent coding orchestrator",
	Long: `orc dispatches a backlog of issues across a pool of coding-agent
workers, keeping their writes manifest-disjoint and rolling back anything
that strays outside an issue's declared file-access policy.

Quick start:
  orc init               Initialize orc in the current repository
  orc new "Add retries"  Add an issue to the backlog
  orc run                Start the dispatch loop
  orc status              Show worker and issue state`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		orcErr := orcerrors.AsOrcError(err)
		if orcErr != nil {
			fmt.Fprintln(os.Stderr, orcErr.UserMessage())
			os.Exit(orcErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .orc/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newNewCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRollbackCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return
	}
	viper.AddConfigPath(orcDir)
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvPrefix("ORC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
