package dat

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/devaudit/dat/internal/audit"
	"github.com/devaudit/dat/internal/config"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scans, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			records, err := audit.NewAuditLog(dir).LoadHistory()
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if records == nil {
					records = []audit.ScanRecord{}
				}
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No scans recorded")
				return nil
			}
			table := tablewriter.NewWriter(out)
			table.Header("TIME", "REPO", "FILES", "VIOLATIONS", "REGRESSIONS", "FINGERPRINT")
			for _, r := range records {
				fp := r.Fingerprint
				if len(fp) > 12 {
					fp = fp[:12]
				}
				row := []string{
					r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					r.Repo,
					strconv.Itoa(r.Stats.Scanned),
					strconv.Itoa(r.TotalViolations),
					strconv.Itoa(r.Regressions),
					fp,
				}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many entries (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit entries as JSON")
	return cmd
}
