// Package audit keeps an append-only JSONL history of scans.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/devaudit/dat/internal/report"
	"github.com/devaudit/dat/internal/types"
)

// FileName is the history file inside the dat config directory.
const FileName = "auditlog.jsonl"

type ScanRecord struct {
	Timestamp       time.Time            `json:"timestamp"`
	ScanID          string               `json:"scan_id"`
	User            string               `json:"user"`
	Repo            string               `json:"repo"`
	Root            string               `json:"root"`
	Fingerprint     string               `json:"fingerprint"`
	PolicyDigest    string               `json:"policy_digest,omitempty"`
	Stats           types.ScanStatistics `json:"stats"`
	TotalViolations int                  `json:"total_violations"`
	SeverityCounts  map[string]int       `json:"severity_counts"`
	Regressions     int                  `json:"regressions,omitempty"`
	Duration        string               `json:"duration"`
	Interrupted     bool                 `json:"interrupted,omitempty"`
	Artifacts       []string             `json:"artifacts,omitempty"`
}

type AuditLog struct {
	logPath string
}

// NewAuditLog returns a log stored in dir.
func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{logPath: filepath.Join(dir, FileName)}
}

// Path returns the location of the log file.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns all records, newest first. A log that does not exist
// yet is empty.
func (a *AuditLog) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ScanRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// LogScan appends record to the log, creating it owner-only.
func (a *AuditLog) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = scanID(record)
	}
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create audit log dir: %w", err)
	}
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// CreateScanRecord summarizes r for the log.
func CreateScanRecord(r *report.Report, duration time.Duration, regressions int, artifacts []string) ScanRecord {
	rec := ScanRecord{
		Timestamp:       time.Now().UTC(),
		User:            report.CurrentUser(),
		Root:            r.Root,
		Fingerprint:     r.Fingerprint,
		PolicyDigest:    r.Metadata.PolicyDigest,
		Stats:           r.Stats,
		TotalViolations: len(r.Violations),
		SeverityCounts:  r.SeverityCounts(),
		Regressions:     regressions,
		Duration:        duration.Round(time.Millisecond).String(),
		Interrupted:     r.Interrupted,
		Artifacts:       artifacts,
	}
	if r.Metadata.Repository != nil {
		rec.Repo = r.Metadata.Repository.Name
	}
	if rec.Repo == "" {
		rec.Repo = filepath.Base(r.Root)
	}
	rec.ScanID = scanID(rec)
	return rec
}

func scanID(r ScanRecord) string {
	h := xxhash.New()
	_, _ = h.WriteString(r.Fingerprint)
	_, _ = h.WriteString(r.Root)
	_, _ = h.WriteString(r.Timestamp.Format(time.RFC3339Nano))
	return "scan_" + strconv.FormatUint(h.Sum64(), 16)
}
