package livetiming

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Entry is one timestamped update from a .jsonStream archive.
type Entry struct {
	// Timestamp is the offset from session start, "HH:MM:SS.mmm".
	// Empty for keyframes.
	Timestamp string
	Data      any
}

// Offset parses Timestamp.
func (e Entry) Offset() (time.Duration, error) {
	return ParseOffset(e.Timestamp)
}

// DecodeStream reads a .jsonStream archive: one update per line, a
// timestamp immediately followed by a JSON value.
func DecodeStream(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var entries []Entry
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if lineNo == 1 {
			line = bytes.TrimPrefix(line, bom)
		}
		line = bytes.TrimRight(line, "\r ")
		if len(line) == 0 {
			continue
		}

		i := bytes.IndexAny(line, `{["`)
		if i <= 0 {
			return nil, fmt.Errorf("line %d: no timestamp prefix", lineNo)
		}
		var data any
		if err := json.Unmarshal(line[i:], &data); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, Entry{Timestamp: string(line[:i]), Data: data})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// DecodeKeyframe reads a single JSON document.
func DecodeKeyframe(b []byte) (any, error) {
	b = bytes.TrimPrefix(b, bom)
	var data any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decoding keyframe: %w", err)
	}
	return data, nil
}

// Inflate decodes a base64 raw-deflate payload (the .z topics) into JSON.
func Inflate(b64 string) (any, error) {
	compressed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()

	var data any
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("inflating payload: %w", err)
	}
	return data, nil
}

// ParseOffset parses "HH:MM:SS.mmm", "MM:SS.mmm" or "SS.mmm" into a duration.
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty offset")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	var secs float64
	for i, p := range parts {
		if i == len(parts)-1 {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid offset %q: %w", s, err)
			}
			secs += f
			break
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q: %w", s, err)
		}
		secs = (secs + float64(n)) * 60
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Microsecond), nil
}
