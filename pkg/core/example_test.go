package core_test

import (
	"context"
	"fmt"
	"os"

	"github.com/devaudit/dat/pkg/core"
)

// ExampleRun demonstrates how to audit a directory with the default policy.
func ExampleRun() {
	cfg := core.Config{
		Options: core.Options{
			Root:            ".",
			Threads:         4,
			Safe:            true,
			MaxLines:        1000,
			MaxSize:         10 << 20,
			DefaultExcludes: true,
		},
	}

	rep, err := core.Run(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		return
	}

	if len(rep.Violations) == 0 {
		fmt.Println("No violations found.")
		return
	}
	fmt.Printf("Found %d violations in %d files.\n", len(rep.Violations), len(rep.ViolationCounts()))
	_ = core.MarshalReport(os.Stdout, rep)
}

// ExampleDiff shows how to compare a saved report with a fresh run.
func ExampleDiff() {
	f, err := os.Open("last_report.json")
	if err != nil {
		return
	}
	defer f.Close()
	previous, err := core.UnmarshalReport(f)
	if err != nil {
		return
	}
	current, err := core.Run(context.Background(), core.Config{Options: core.Options{Root: previous.Root}})
	if err != nil {
		return
	}
	res := core.Diff(previous, current)
	for _, c := range res.Regressions {
		fmt.Printf("%s: %d -> %d\n", c.Path, c.PreviousCount, c.CurrentCount)
	}
}
