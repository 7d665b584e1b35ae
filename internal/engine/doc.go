// Package engine walks a directory tree into a ScanResult, evaluates the
// policy over the text files it found and assembles the report. This package
// is internal; external consumers should use the stable facade in pkg/core.
package engine
