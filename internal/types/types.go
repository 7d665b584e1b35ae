package types

import (
	"fmt"
	"strings"
)

// Severity is the risk level attached to a rule. Levels are totally ordered:
// critical > high > medium > low > info.
type Severity int

const (
	SevInfo Severity = iota
	SevLow
	SevMedium
	SevHigh
	SevCritical
)

var severityNames = [...]string{"info", "low", "medium", "high", "critical"}

// Severities lists every level from most to least severe.
func Severities() []Severity {
	return []Severity{SevCritical, SevHigh, SevMedium, SevLow, SevInfo}
}

func (s Severity) String() string {
	if s < SevInfo || s > SevCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// Rank returns the position of s in the total order; higher is more severe.
func (s Severity) Rank() int { return int(s) }

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool { return s >= SevInfo && s <= SevCritical }

// ParseSeverity converts a case-insensitive level name into a Severity.
func ParseSeverity(v string) (Severity, error) {
	name := strings.ToLower(strings.TrimSpace(v))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SevInfo, fmt.Errorf("unknown severity %q", v)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// FileRecord describes one scanned file. Path is relative to the scan root
// and always uses forward slashes.
type FileRecord struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Lines  int    `json:"lines"`
	Binary bool   `json:"binary"`
	MIME   string `json:"mime_type,omitempty"`
	// Checksum is the hex BLAKE3-256 digest of the raw content.
	Checksum string `json:"checksum,omitempty"`
	// Encoding is the text encoding the content was decoded with; empty for
	// binary files and files that were never read as text.
	Encoding string `json:"encoding,omitempty"`
}

// ScanStatistics holds the counters of a single walk.
type ScanStatistics struct {
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Binary  int `json:"binary"`
	Errors  int `json:"errors"`
}

// RuleViolation is a single pattern match of a rule on one line of a file.
type RuleViolation struct {
	RuleID     string   `json:"rule_id"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Path       string   `json:"path"`
	LineNumber int      `json:"line_number,omitempty"`
}

// ScanResult is the outcome of one walk. A path appears in exactly one of
// Files, Skipped and Errors; all three are sorted by path.
type ScanResult struct {
	Root        string         `json:"root"`
	Files       []FileRecord   `json:"files"`
	Skipped     []string       `json:"skipped"`
	Errors      []string       `json:"errors"`
	Stats       ScanStatistics `json:"stats"`
	Interrupted bool           `json:"interrupted,omitempty"`
}
