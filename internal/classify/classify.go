// Package classify decides whether a file is text or binary, resolves the
// encoding of text content and counts lines with an optional bound.
package classify

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// SniffSize is the number of leading bytes inspected by Classify.
const SniffSize = 4096

const (
	maxControlRatio  = 0.05
	minPrintableRate = 0.70
)

// Result is the outcome of classifying one file.
type Result struct {
	Binary bool
	Size   int64
	MIME   string
}

// Classify inspects the file at path. Any I/O failure classifies the file as
// binary so that unreadable content is never processed further.
func Classify(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Binary: true}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Result{Binary: true}
	}
	buf := make([]byte, SniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Result{Binary: true, Size: info.Size()}
	}
	buf = buf[:n]
	mt := detectMIME(path, buf)
	return Result{Binary: !isText(buf, mt), Size: info.Size(), MIME: mt}
}

func isText(sniff []byte, mt string) bool {
	if len(sniff) == 0 {
		return true
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return false
	}
	if textualMIME(mt) {
		return true
	}
	control, printable := ratios(sniff)
	return control < maxControlRatio && printable > minPrintableRate
}

// detectMIME prefers a magic-number match and falls back to the extension.
func detectMIME(name string, sniff []byte) string {
	if len(sniff) > 0 {
		if kind, err := filetype.Match(sniff); err == nil && kind != filetype.Unknown && kind.MIME.Value != "" {
			return kind.MIME.Value
		}
	}
	if ext := filepath.Ext(name); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			if i := strings.IndexByte(mt, ';'); i >= 0 {
				mt = mt[:i]
			}
			return strings.TrimSpace(mt)
		}
	}
	return ""
}

func textualMIME(mt string) bool {
	if mt == "" {
		return false
	}
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	for _, s := range []string{"xml", "json", "javascript"} {
		if strings.Contains(mt, s) {
			return true
		}
	}
	return false
}

func ratios(b []byte) (control, printable float64) {
	var c, p int
	for _, x := range b {
		switch {
		case x == '\t' || x == '\n' || x == '\r':
			p++
		case x < 0x20 || x == 0x7f:
			c++
		default:
			// printable ASCII or high-bit byte
			p++
		}
	}
	n := float64(len(b))
	return float64(c) / n, float64(p) / n
}
