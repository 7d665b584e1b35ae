// Package diff compares the per-file violation counts of two reports.
package diff

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/devaudit/dat/internal/report"
	"github.com/olekukonko/tablewriter"
)

// Change is a path present in both reports whose violation count moved.
type Change struct {
	Path          string `json:"path"`
	PreviousCount int    `json:"previous_count"`
	CurrentCount  int    `json:"current_count"`
}

// Entry is a path present in only one of the reports.
type Entry struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Result partitions the paths of two reports. Paths whose count did not
// change appear in none of the lists. Each list is sorted by path.
type Result struct {
	Regressions  []Change `json:"regressions"`
	Improvements []Change `json:"improvements"`
	New          []Entry  `json:"new"`
	Removed      []Entry  `json:"removed"`
}

// HasRegressions reports whether any file got worse.
func (r Result) HasRegressions() bool { return len(r.Regressions) > 0 }

// Empty reports whether nothing changed.
func (r Result) Empty() bool {
	return len(r.Regressions)+len(r.Improvements)+len(r.New)+len(r.Removed) == 0
}

// Diff compares previous and current by the number of violations per file.
// Only the count is compared, not which violations they are.
func Diff(previous, current *report.Report) Result {
	res := Result{
		Regressions:  []Change{},
		Improvements: []Change{},
		New:          []Entry{},
		Removed:      []Entry{},
	}
	prevPaths, prevCounts := paths(previous)
	curPaths, curCounts := paths(current)

	for p := range curPaths {
		if !prevPaths[p] {
			res.New = append(res.New, Entry{Path: p, Count: curCounts[p]})
			continue
		}
		before, after := prevCounts[p], curCounts[p]
		switch {
		case after > before:
			res.Regressions = append(res.Regressions, Change{Path: p, PreviousCount: before, CurrentCount: after})
		case after < before:
			res.Improvements = append(res.Improvements, Change{Path: p, PreviousCount: before, CurrentCount: after})
		}
	}
	for p := range prevPaths {
		if !curPaths[p] {
			res.Removed = append(res.Removed, Entry{Path: p, Count: prevCounts[p]})
		}
	}
	sort.Slice(res.Regressions, func(i, j int) bool { return res.Regressions[i].Path < res.Regressions[j].Path })
	sort.Slice(res.Improvements, func(i, j int) bool { return res.Improvements[i].Path < res.Improvements[j].Path })
	sort.Slice(res.New, func(i, j int) bool { return res.New[i].Path < res.New[j].Path })
	sort.Slice(res.Removed, func(i, j int) bool { return res.Removed[i].Path < res.Removed[j].Path })
	return res
}

// paths collects the scanned files of r plus any path carrying a
// violation, with the violation count of each.
func paths(r *report.Report) (map[string]bool, map[string]int) {
	set := map[string]bool{}
	if r == nil {
		return set, map[string]int{}
	}
	for _, f := range r.Files {
		set[f.Path] = true
	}
	counts := r.ViolationCounts()
	for p := range counts {
		set[p] = true
	}
	return set, counts
}

// Print renders res as a table of changed files.
func Print(w io.Writer, res Result) error {
	if res.Empty() {
		fmt.Fprintln(w, "No changes in violation counts")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("CHANGE", "PATH", "PREVIOUS", "CURRENT")
	rows := [][]string{}
	for _, c := range res.Regressions {
		rows = append(rows, []string{"regression", c.Path, strconv.Itoa(c.PreviousCount), strconv.Itoa(c.CurrentCount)})
	}
	for _, c := range res.Improvements {
		rows = append(rows, []string{"improvement", c.Path, strconv.Itoa(c.PreviousCount), strconv.Itoa(c.CurrentCount)})
	}
	for _, e := range res.New {
		rows = append(rows, []string{"new", e.Path, "-", strconv.Itoa(e.Count)})
	}
	for _, e := range res.Removed {
		rows = append(rows, []string{"removed", e.Path, strconv.Itoa(e.Count), "-"})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nRegressions: %d, improvements: %d, new: %d, removed: %d\n",
		len(res.Regressions), len(res.Improvements), len(res.New), len(res.Removed))
	return nil
}
