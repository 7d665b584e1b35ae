package dat

import (
	"encoding/json"
	"fmt"

	"github.com/devaudit/dat/internal/diff"
	"github.com/devaudit/dat/internal/report"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var (
		asJSON           bool
		failOnRegression bool
	)
	cmd := &cobra.Command{
		Use:   "diff <previous> <current>",
		Short: "Compare the per-file violation counts of two saved reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := report.LoadReport(args[0])
			if err != nil {
				return fmt.Errorf("load previous report: %w", err)
			}
			cur, err := report.LoadReport(args[1])
			if err != nil {
				return fmt.Errorf("load current report: %w", err)
			}
			res := diff.Diff(prev, cur)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else if err := diff.Print(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if failOnRegression && res.HasRegressions() {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the diff as JSON")
	cmd.Flags().BoolVar(&failOnRegression, "fail-on-regression", false, "exit 1 when any file regressed")
	return cmd
}
