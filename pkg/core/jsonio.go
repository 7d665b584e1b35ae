package core

import (
	"io"

	"github.com/devaudit/dat/internal/report"
)

// MarshalReport pretty-prints a report as JSON for humans or pipelines.
func MarshalReport(w io.Writer, r *Report) error {
	return report.WriteJSON(w, r)
}

// UnmarshalReport decodes a report written by MarshalReport or a JSONL
// envelope line.
func UnmarshalReport(rd io.Reader) (*Report, error) {
	return report.ReadReport(rd)
}
