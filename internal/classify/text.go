package classify

import (
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names reported by Decode, in the order they are attempted.
const (
	EncUTF8    = "utf-8"
	EncUTF8BOM = "utf-8-sig"
	EncUTF16   = "utf-16"
	EncLatin1  = "latin-1"
	EncLossy   = "utf-8-lossy"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw file content to a string. It never fails: when no
// encoding applies the content is decoded lossily.
func Decode(data []byte) (string, string) {
	if bytes.HasPrefix(data, utf8BOM) && utf8.Valid(data[len(utf8BOM):]) {
		return string(data[len(utf8BOM):]), EncUTF8BOM
	}
	if utf8.Valid(data) {
		return string(data), EncUTF8
	}
	if len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return string(out), EncUTF16
		}
	}
	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(out), EncLatin1
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), EncLossy
}

// ReadText reads and decodes the file at path.
func ReadText(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, enc := Decode(data)
	return text, enc, nil
}

// SplitLines splits text the way a line reader enumerates it: a trailing
// newline does not start an extra empty line, and CRLF is treated as one
// terminator.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// CountLines counts the lines of the file at path. With limit > 0 it stops
// as soon as the count exceeds limit and returns that count without reading
// the rest of the file. Read errors yield 0.
func CountLines(path string, limit int) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	n, err := countLines(f, limit)
	if err != nil {
		return 0
	}
	return n
}

func countLines(r io.Reader, limit int) (int, error) {
	count := 0
	pending := false
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		chunk := buf[:n]
		for len(chunk) > 0 {
			i := bytes.IndexByte(chunk, '\n')
			if i < 0 {
				pending = true
				break
			}
			count++
			pending = false
			if limit > 0 && count > limit {
				return count, nil
			}
			chunk = chunk[i+1:]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if pending {
		count++
	}
	return count, nil
}
