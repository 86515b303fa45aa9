// Package record encodes and decodes the line-oriented catalog file format.
//
// The first line holds a decimal format version. Every following non-blank
// line is one KEY:DESCRIPTION record in which literal colons are written as
// `\:`.
package record

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/starford/keycat/internal/apperr"
	"github.com/starford/keycat/internal/models"
)

// CurrentVersion is the newest format version this codec reads and writes.
const CurrentVersion = 2

const (
	separator = ':'
	escaped   = `\:`

	// Version 1 files frame each record as a marker line followed by a key
	// line and a description line, with an optional terminator line.
	legacyMarker     = "\x01"
	legacyTerminator = "\x00"
)

const maxLineBytes = 1 << 20

// Decode parses the lines of a catalog file. Every decoded entry gets a fresh
// id; ids are not persisted.
func Decode(lines []string) (int, []models.Entry, error) {
	if len(lines) == 0 {
		return 0, nil, fmt.Errorf("record: %w: empty file", apperr.ErrMalformedVersion)
	}
	version, err := parseVersion(lines[0])
	if err != nil {
		return 0, nil, err
	}
	if version > CurrentVersion {
		return 0, nil, fmt.Errorf("record: %w: file version %d, supported up to %d",
			apperr.ErrVersionTooNew, version, CurrentVersion)
	}

	body := lines[1:]
	if version < CurrentVersion && isLegacy(body) {
		entries, err := decodeLegacy(body)
		if err != nil {
			return 0, nil, err
		}
		return version, entries, nil
	}

	entries := make([]models.Entry, 0, len(body))
	for i, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, desc, err := DecodeRecord(line)
		if err != nil {
			return 0, nil, fmt.Errorf("record: decode: %w", &apperr.MalformedRecordError{
				Line:   i + 2,
				Text:   line,
				Reason: err.Error(),
			})
		}
		entries = append(entries, models.NewEntry(key, desc))
	}
	return version, entries, nil
}

// Encode renders a catalog: the version line followed by one record per entry
// in the given order.
func Encode(version int, entries []models.Entry) []string {
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, strconv.Itoa(version))
	for _, e := range entries {
		lines = append(lines, EncodeRecord(e.Key, e.DescriptionRaw()))
	}
	return lines
}

// Read decodes a catalog from r.
func Read(r io.Reader) (int, []models.Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return 0, nil, fmt.Errorf("record: %w: %w", apperr.ErrIO, err)
	}
	return Decode(lines)
}

// Write encodes a catalog to w, one record per line.
func Write(w io.Writer, version int, entries []models.Entry) error {
	bw := bufio.NewWriter(w)
	for _, line := range Encode(version, entries) {
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("record: %w: %w", apperr.ErrIO, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("record: %w: %w", apperr.ErrIO, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("record: %w: %w", apperr.ErrIO, err)
	}
	return nil
}

// EncodeRecord joins key and description with an unescaped colon.
// Line breaks cannot be represented and are folded into spaces. A key ending
// in a backslash gets one trailing space so the separator stays unescaped;
// decoding trims it again.
func EncodeRecord(key, description string) string {
	k := escape(key)
	if strings.HasSuffix(k, `\`) {
		k += " "
	}
	return k + string(separator) + escape(description)
}

// DecodeRecord splits a record line at its first unescaped colon and returns
// the trimmed, unescaped key and description.
func DecodeRecord(line string) (string, string, error) {
	idx := splitIndex(line)
	if idx < 0 {
		return "", "", fmt.Errorf("missing unescaped %q", separator)
	}
	key := strings.TrimSpace(unescape(line[:idx]))
	desc := strings.TrimSpace(unescape(line[idx+1:]))
	if key == "" {
		return "", "", fmt.Errorf("empty key")
	}
	return key, desc, nil
}

func parseVersion(line string) (int, error) {
	s := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	if s == "" {
		return 0, fmt.Errorf("record: %w: empty version line", apperr.ErrMalformedVersion)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("record: %w: %q", apperr.ErrMalformedVersion, s)
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// All digits, so the only failure left is overflow.
		return 0, fmt.Errorf("record: %w: file version %s, supported up to %d",
			apperr.ErrVersionTooNew, s, CurrentVersion)
	}
	return v, nil
}

func splitIndex(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] == separator && (i == 0 || line[i-1] != '\\') {
			return i
		}
	}
	return -1
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func escape(s string) string {
	return strings.ReplaceAll(lineBreaks.Replace(s), string(separator), escaped)
}

func unescape(s string) string {
	return strings.ReplaceAll(s, escaped, string(separator))
}

func isLegacy(body []string) bool {
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.HasPrefix(line, legacyMarker) || strings.HasPrefix(line, legacyTerminator)
	}
	return false
}

func decodeLegacy(body []string) ([]models.Entry, error) {
	var entries []models.Entry
	for i := 0; i < len(body); i++ {
		line := body[i]
		lineNo := i + 2
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, legacyTerminator):
			return entries, nil
		case !strings.HasPrefix(line, legacyMarker):
			return nil, legacyError(lineNo, line, "expected record marker")
		}
		if i+2 >= len(body) {
			return nil, legacyError(lineNo, line, "truncated record")
		}
		key := strings.TrimSpace(body[i+1])
		if key == "" {
			return nil, legacyError(lineNo+1, body[i+1], "empty key")
		}
		entries = append(entries, models.NewEntry(key, strings.TrimSpace(body[i+2])))
		i += 2
	}
	return entries, nil
}

func legacyError(line int, text, reason string) error {
	return fmt.Errorf("record: decode legacy: %w", &apperr.MalformedRecordError{
		Line:   line,
		Text:   text,
		Reason: reason,
	})
}
