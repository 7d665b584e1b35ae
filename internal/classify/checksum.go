package classify

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"unicode/utf8"

	"lukechampine.com/blake3"
)

// Content is what a single full read of a file yields.
type Content struct {
	// Checksum is the hex BLAKE3-256 digest of the raw bytes.
	Checksum string
	// Encoding is the name Decode would report for the same bytes.
	Encoding string
}

// Inspect streams the file at path once, hashing it and detecting its text
// encoding without holding the content in memory.
func Inspect(path string) (Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return Content{}, err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	var enc encodingSniffer
	if _, err := io.Copy(io.MultiWriter(h, &enc), f); err != nil {
		return Content{}, err
	}
	return Content{Checksum: hex.EncodeToString(h.Sum(nil)), Encoding: enc.result()}, nil
}

// encodingSniffer tracks UTF-8 validity across writes. A rune split between
// two writes is carried over to the next one.
type encodingSniffer struct {
	head    []byte
	carry   []byte
	invalid bool
}

func (s *encodingSniffer) Write(p []byte) (int, error) {
	if n := 3 - len(s.head); n > 0 {
		s.head = append(s.head, p[:min(n, len(p))]...)
	}
	if s.invalid {
		return len(p), nil
	}
	buf := p
	if len(s.carry) > 0 {
		buf = append(s.carry, p...)
	}
	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	if !utf8.Valid(buf[:cut]) {
		s.invalid = true
		s.carry = nil
		return len(p), nil
	}
	s.carry = append([]byte(nil), buf[cut:]...)
	return len(p), nil
}

// result mirrors the order Decode tries encodings in.
func (s *encodingSniffer) result() string {
	if !s.invalid && len(s.carry) == 0 {
		if bytes.HasPrefix(s.head, utf8BOM) {
			return EncUTF8BOM
		}
		return EncUTF8
	}
	if len(s.head) >= 2 && ((s.head[0] == 0xFF && s.head[1] == 0xFE) || (s.head[0] == 0xFE && s.head[1] == 0xFF)) {
		return EncUTF16
	}
	return EncLatin1
}
