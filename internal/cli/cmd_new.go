package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/issue"
	"github.com/randalmurphal/orc/internal/orcstate"
)

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Add an issue to the backlog",
		Long: `Create a new issue with no manifest assigned. The next planner pass
assigns it a manifest and it becomes dispatchable.

Example:
  orc new "Add retry budget to config"
  orc new "Fix flaky worker timeout" --depends-on add-retry-budget`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireInit(orcDir); err != nil {
				return err
			}

			cfg, err := config.Load(orcDir)
			if err != nil {
				return err
			}

			statePath := orcDir + "/state.json"
			st, err := orcstate.Load(statePath)
			if err != nil {
				st = orcstate.New(statePath, cfg.Workers)
			}

			title := args[0]
			dependsOn, _ := cmd.Flags().GetStringSlice("depends-on")

			id := uniqueSlug(title, st.Issues)
			iss := issue.New(id, title)
			iss.DependsOn = dependsOn
			st.Issues[id] = iss

			if err := st.Save(); err != nil {
				return fmt.Errorf("save state: %w", err)
			}

			fmt.Printf("issue created: %s\n", id)
			fmt.Printf("  title: %s\n", title)
			if len(dependsOn) > 0 {
				fmt.Printf("  depends on: %s\n", strings.Join(dependsOn, ", "))
			}
			fmt.Println("\nNext: orc run")
			return nil
		},
	}
	cmd.Flags().StringSlice("depends-on", nil, "issue IDs this issue depends on")
	return cmd
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify converts a title into a kebab-case issue ID, e.g. "Add retry
// budget!" -> "add-retry-budget".
func slugify(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "issue"
	}
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	return s
}

// uniqueSlug slugifies title and appends a numeric suffix if it collides
// with an existing issue ID.
func uniqueSlug(title string, existing map[string]*issue.Issue) string {
	base := slugify(title)
	id := base
	for n := 2; ; n++ {
		if _, taken := existing[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
