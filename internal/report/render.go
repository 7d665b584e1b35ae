package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/devaudit/dat/internal/types"
	"github.com/olekukonko/tablewriter"
)

type PrintOptions struct {
	NoColor  bool
	Duration time.Duration
	// Limit caps the number of table rows; zero shows all.
	Limit int
}

var sevStyles = map[types.Severity]lipgloss.Style{
	types.SevCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	types.SevHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	types.SevMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	types.SevLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	types.SevInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
}

// SeverityLabel renders a severity name, coloured unless noColor is set.
func SeverityLabel(s types.Severity, noColor bool) string {
	if noColor {
		return s.String()
	}
	if st, ok := sevStyles[s]; ok {
		return st.Render(s.String())
	}
	return s.String()
}

// PrintTable renders the violations of r as a table followed by a summary
// footer.
func PrintTable(w io.Writer, r *Report, opts PrintOptions) error {
	if len(r.Violations) == 0 {
		fmt.Fprintln(w, "No policy violations found ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("SEVERITY", "RULE", "LOCATION", "MESSAGE")
		for i, v := range r.Violations {
			if opts.Limit > 0 && i >= opts.Limit {
				break
			}
			loc := v.Path
			if v.LineNumber > 0 {
				loc += ":" + strconv.Itoa(v.LineNumber)
			}
			if err := table.Append([]string{SeverityLabel(v.Severity, opts.NoColor), v.RuleID, loc, v.Message}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		if opts.Limit > 0 && len(r.Violations) > opts.Limit {
			fmt.Fprintf(w, "… %d more\n", len(r.Violations)-opts.Limit)
		}
	}

	counts := r.SeverityCounts()
	parts := make([]string, 0, len(types.Severities()))
	for _, s := range types.Severities() {
		parts = append(parts, fmt.Sprintf("%s: %d", s, counts[s.String()]))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Violations: %d (%s)\n", len(r.Violations), strings.Join(parts, ", "))
	fmt.Fprintf(w, "Files scanned: %d, skipped: %d, binary: %d, errors: %d\n",
		r.Stats.Scanned, r.Stats.Skipped, r.Stats.Binary, r.Stats.Errors)
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", r.Fingerprint)
	if r.Interrupted {
		fmt.Fprintln(w, "Scan interrupted: results are partial")
	}
	return nil
}
