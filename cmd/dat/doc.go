// Package dat provides the command-line interface for the Dev Audit Tool.
// It configures subcommands (scan, diff, rules, history, etc.), parses flags,
// and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/devaudit/dat/cmd/dat"
//	func main() { dat.Execute() }
package dat
