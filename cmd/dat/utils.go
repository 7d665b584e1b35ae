package dat

import (
	"io"
	"os"

	"golang.org/x/term"
)

// pick resolves a setting with CLI > config file > flag default precedence.
// changed reports whether the flag was given on the command line.
func pick[T any](changed bool, cli T, file *T) T {
	if changed || file == nil {
		return cli
	}
	return *file
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorDisabled folds the --no-color flag, the config file and NO_COLOR
// together with TTY detection on w.
func colorDisabled(flag bool, file *bool, w io.Writer) bool {
	if flag || os.Getenv("NO_COLOR") != "" {
		return true
	}
	if file != nil && *file {
		return true
	}
	return !isTerminal(w)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
