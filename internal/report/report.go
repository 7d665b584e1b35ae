// Package report assembles a scan into an immutable, serializable snapshot,
// fingerprints it and renders it for people and tools.
package report

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/devaudit/dat/internal/git"
	"github.com/devaudit/dat/internal/types"
	"lukechampine.com/blake3"
)

// ErrUnsupportedFormat is returned for an output path whose extension has
// no writer.
var ErrUnsupportedFormat = errors.New("unsupported report format")

// Metadata is the caller-supplied provenance of a report. None of it takes
// part in the fingerprint except PolicyDigest.
type Metadata struct {
	ToolVersion  string         `json:"tool_version,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Repository   *git.Identity  `json:"repository,omitempty"`
	PolicyDigest string         `json:"policy_digest,omitempty"`
	Schema       map[string]any `json:"schema,omitempty"`
	SchemaSource string         `json:"schema_source,omitempty"`
}

// Report is the snapshot of one scan.
type Report struct {
	Root        string                `json:"root"`
	Stats       types.ScanStatistics  `json:"stats"`
	Files       []types.FileRecord    `json:"files"`
	Skipped     []string              `json:"skipped"`
	Errors      []string              `json:"errors"`
	Violations  []types.RuleViolation `json:"violations"`
	Interrupted bool                  `json:"interrupted,omitempty"`
	Metadata    Metadata              `json:"metadata"`
	Fingerprint string                `json:"fingerprint"`

	byPath map[string][]types.RuleViolation
}

// Build copies res and violations into a new report, sorts the violations
// canonically, indexes them by path and sets the fingerprint.
func Build(res *types.ScanResult, violations []types.RuleViolation, meta Metadata) *Report {
	r := &Report{Metadata: meta}
	if res != nil {
		r.Root = res.Root
		r.Stats = res.Stats
		r.Files = append([]types.FileRecord{}, res.Files...)
		r.Skipped = append([]string{}, res.Skipped...)
		r.Errors = append([]string{}, res.Errors...)
		r.Interrupted = res.Interrupted
	}
	r.Violations = append([]types.RuleViolation{}, violations...)
	SortViolations(r.Violations)
	r.index()
	r.Fingerprint = Fingerprint(r)
	return r
}

// SortViolations orders violations by path then line. The sort is stable so
// rule and pattern order within a line is kept.
func SortViolations(vs []types.RuleViolation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Path != vs[j].Path {
			return vs[i].Path < vs[j].Path
		}
		return vs[i].LineNumber < vs[j].LineNumber
	})
}

func (r *Report) index() {
	r.byPath = make(map[string][]types.RuleViolation)
	for _, v := range r.Violations {
		r.byPath[v.Path] = append(r.byPath[v.Path], v)
	}
}

// ViolationsFor returns the violations recorded for path.
func (r *Report) ViolationsFor(path string) []types.RuleViolation {
	if r.byPath == nil {
		r.index()
	}
	return r.byPath[path]
}

// ViolationCounts returns the number of violations per path.
func (r *Report) ViolationCounts() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.Path]++
	}
	return out
}

// SeverityCounts returns the number of violations per severity name.
func (r *Report) SeverityCounts() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.Severity.String()]++
	}
	return out
}

// canonicalFile leaves out the MIME type, which depends on the host's MIME
// tables. Checksum and encoding are derived from content alone and are kept.
type canonicalFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Lines    int    `json:"lines"`
	Binary   bool   `json:"binary"`
	Checksum string `json:"checksum"`
	Encoding string `json:"encoding"`
}

type canonical struct {
	PolicyDigest string                `json:"policy_digest"`
	Stats        types.ScanStatistics  `json:"stats"`
	Files        []canonicalFile       `json:"files"`
	Skipped      []string              `json:"skipped"`
	Errors       []string              `json:"errors"`
	Violations   []types.RuleViolation `json:"violations"`
}

// Fingerprint hashes the content of r with BLAKE3. The root, timestamps and
// other provenance are excluded, so the same tree scanned with the same
// policy gives the same fingerprint on any host.
func Fingerprint(r *Report) string {
	c := canonical{
		PolicyDigest: r.Metadata.PolicyDigest,
		Stats:        r.Stats,
		Files:        make([]canonicalFile, 0, len(r.Files)),
		Skipped:      sortedCopy(r.Skipped),
		Errors:       sortedCopy(r.Errors),
		Violations:   append([]types.RuleViolation{}, r.Violations...),
	}
	for _, f := range r.Files {
		c.Files = append(c.Files, canonicalFile{
			Path:     f.Path,
			Size:     f.Size,
			Lines:    f.Lines,
			Binary:   f.Binary,
			Checksum: f.Checksum,
			Encoding: f.Encoding,
		})
	}
	sort.Slice(c.Files, func(i, j int) bool { return c.Files[i].Path < c.Files[j].Path })
	SortViolations(c.Violations)
	buf, err := json.Marshal(c)
	if err != nil {
		// only reachable with an out-of-range severity
		buf = []byte(fmt.Sprintf("%v", c))
	}
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

// ShouldFail reports whether any violation is at or above threshold. The
// threshold "none" (or empty) never fails.
func ShouldFail(violations []types.RuleViolation, threshold string) (bool, error) {
	threshold = strings.TrimSpace(strings.ToLower(threshold))
	if threshold == "" || threshold == "none" {
		return false, nil
	}
	th, err := types.ParseSeverity(threshold)
	if err != nil {
		return false, err
	}
	for _, v := range violations {
		if v.Severity.Rank() >= th.Rank() {
			return true, nil
		}
	}
	return false, nil
}
