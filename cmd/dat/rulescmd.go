package dat

import (
	"encoding/json"
	"strings"

	"github.com/devaudit/dat/internal/report"
	"github.com/devaudit/dat/internal/rules"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	var (
		policyPath string
		repo       string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules of the active policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy := rules.DefaultPolicy()
			if policyPath != "" {
				p, _, err := loadPolicy(cmd.ErrOrStderr(), policyPath, repo)
				if err != nil {
					return err
				}
				policy = p
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(policy.Rules)
			}
			noColor := colorDisabled(false, nil, out)
			table := tablewriter.NewWriter(out)
			table.Header("ID", "SEVERITY", "PATTERNS", "DESCRIPTION")
			for _, r := range policy.Rules {
				row := []string{r.ID, report.SeverityLabel(r.Severity, noColor), strings.Join(r.Patterns, ", "), r.Description}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "policy schema file (JSON or YAML)")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name used to select a schema")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the rules as JSON")
	return cmd
}
