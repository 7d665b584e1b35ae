package report

import (
	"encoding/json"
	"io"

	"github.com/devaudit/dat/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID                   string        `json:"id"`
	DefaultConfiguration sarifDefaults `json:"defaultConfiguration"`
	Properties           sarifProps    `json:"properties"`
}

type sarifDefaults struct {
	Level string `json:"level"`
}

type sarifProps struct {
	Severity string `json:"severity"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMedium:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes the violations of r as a SARIF 2.1.0 log. Rules are
// listed in order of first appearance.
func WriteSARIF(w io.Writer, r *Report) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "dat", Version: r.Metadata.ToolVersion, Rules: []sarifRule{}}},
		Results: []sarifResult{},
	}
	ruleIndex := map[string]int{}
	for _, v := range r.Violations {
		idx, ok := ruleIndex[v.RuleID]
		if !ok {
			idx = len(run.Tool.Driver.Rules)
			ruleIndex[v.RuleID] = idx
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:                   v.RuleID,
				DefaultConfiguration: sarifDefaults{Level: sevToLevel(v.Severity)},
				Properties:           sarifProps{Severity: v.Severity.String()},
			})
		}
		loc := sarifPhys{ArtifactLocation: sarifArt{URI: v.Path}}
		if v.LineNumber > 0 {
			loc.Region = &sarifRegion{StartLine: v.LineNumber}
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    v.RuleID,
			RuleIndex: idx,
			Level:     sevToLevel(v.Severity),
			Message:   sarifMessage{Text: v.Message},
			Locations: []sarifLoc{{PhysicalLocation: loc}},
		})
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
