package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// Envelope is the single-line JSONL record wrapping a report together with
// who produced it and when.
type Envelope struct {
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Repo        string    `json:"repo"`
	Fingerprint string    `json:"fingerprint"`
	Report      *Report   `json:"report"`
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteEnvelope writes r wrapped in an Envelope as one JSON line.
func WriteEnvelope(w io.Writer, r *Report) error {
	env := Envelope{
		Timestamp:   time.Now().UTC(),
		User:        CurrentUser(),
		Repo:        repoName(r),
		Fingerprint: r.Fingerprint,
		Report:      r,
	}
	return json.NewEncoder(w).Encode(env)
}

// ReadReport decodes the first JSON value of rd, either a bare report or an
// envelope.
func ReadReport(rd io.Reader) (*Report, error) {
	dec := json.NewDecoder(rd)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	body := raw
	if inner, ok := fields["report"]; ok {
		body = inner
	}
	var r Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if r.Fingerprint == "" {
		return nil, errors.New("decode report: missing fingerprint")
	}
	r.index()
	return &r, nil
}

// LoadReport reads a report file written by any of the JSON writers.
func LoadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := ReadReport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// WriteFile writes r to path in the format its extension names: .json is an
// indented report, .jsonl an envelope line and .sarif a SARIF log.
func WriteFile(path string, r *Report) error {
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = WriteJSON(&buf, r)
	case ".jsonl":
		err = WriteEnvelope(&buf, r)
	case ".sarif":
		err = WriteSARIF(&buf, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// CurrentUser names the account running the scan: the OS user, then $USER
// or $USERNAME, then "unknown".
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, k := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return "unknown"
}

func repoName(r *Report) string {
	if r.Metadata.Repository != nil && r.Metadata.Repository.Name != "" {
		return r.Metadata.Repository.Name
	}
	return filepath.Base(r.Root)
}
