// Package core provides a small, stable facade over dat's internal engine
// for external integrations. It re-exports a narrow API surface so other
// tools can depend on a stable import path without importing internal
// packages.
//
// Example:
//
//	cfg := core.Config{Options: core.Options{Root: ".", Safe: true, MaxLines: 1000}}
//	rep, err := core.Run(ctx, cfg)
//	if err != nil { /* handle */ }
//	_ = core.MarshalReport(os.Stdout, rep)
package core
