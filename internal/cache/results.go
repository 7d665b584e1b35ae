package cache

import (
	"os"
	"path/filepath"

	"github.com/devaudit/dat/internal/report"
)

const lastReportName = "last_report.json"

func resultsPath(root string) (string, error) {
	dir, err := StateDir(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, lastReportName), nil
}

// SaveReport stores r as the last report for root.
func SaveReport(root string, r *report.Report) error {
	p, err := resultsPath(root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return report.WriteFile(p, r)
}

// LoadReport returns the last report stored for root.
func LoadReport(root string) (*report.Report, error) {
	p, err := resultsPath(root)
	if err != nil {
		return nil, err
	}
	return report.LoadReport(p)
}
