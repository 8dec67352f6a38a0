// Package record implements the output side of the compilation
// database: the per-entry JSON encoding rules from spec.md §6 and the
// append-only array writer the collector's accept loop feeds.
package record

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is a filtered observation ready to be written out.
type Record struct {
	Directory string
	Command   string
	// File is the resolved source path. HasFile distinguishes a
	// genuinely empty path from "no source file" (debug mode, spec.md
	// §4.2/§9): the file field is omitted from the object entirely
	// when HasFile is false.
	File    string
	HasFile bool
	// Timestamp is an additive RFC3339 field populated only when the
	// collector was started with -t/--timestamps; the collector reads the
	// time from its Options.Clock. Empty means omitted.
	Timestamp string
}

// EscapeCommand joins argv into the "command" field per spec.md §6: a
// single-space join where any element containing whitespace is wrapped
// in escaped double quotes, and any backslash or double quote within an
// element is itself backslash-escaped — ported from the "JSON escape"
// step of the original implementation (original_source/src/json.c).
func EscapeCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		parts[i] = escapeArgument(arg)
	}
	return strings.Join(parts, " ")
}

func escapeArgument(arg string) string {
	hasSpace := strings.IndexFunc(arg, isSpace) >= 0
	hasSpecial := strings.ContainsAny(arg, `\"`)
	if !hasSpace && !hasSpecial {
		return arg
	}

	var b strings.Builder
	if hasSpace {
		b.WriteString(`\"`)
	}
	for _, r := range arg {
		if r == '\\' || r == '"' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	if hasSpace {
		b.WriteString(`\"`)
	}
	return b.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Writer streams Records to an underlying file as the JSON array format
// from spec.md §6: "[" ... comma-separated objects ... "]".
type Writer struct {
	f     *os.File
	w     *bufio.Writer
	count int
}

// NewWriter opens file (creating it if necessary and truncating any
// previous content, O_CREAT|O_TRUNC|O_RDWR) and writes the opening "[".
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString("[\n"); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f, w: w}, nil
}

// Append writes one record, preceded by a separating comma when it's
// not the first.
func (o *Writer) Append(r Record) error {
	if o.count > 0 {
		if _, err := o.w.WriteString(",\n"); err != nil {
			return err
		}
	}
	o.count++

	fmt.Fprintf(o.w, "{\n  \"directory\": %s,\n  \"command\": \"%s\"", jsonString(r.Directory), r.Command)
	if r.HasFile {
		fmt.Fprintf(o.w, ",\n  \"file\": %s", jsonString(r.File))
	}
	if r.Timestamp != "" {
		fmt.Fprintf(o.w, ",\n  \"timestamp\": %s", jsonString(r.Timestamp))
	}
	_, err := o.w.WriteString("\n}\n")
	return err
}

// Close writes the closing "]" and flushes/closes the underlying file.
// A well-formed empty array is produced even when Append was never
// called (spec.md §8 "single-connection, zero-record build").
func (o *Writer) Close() error {
	if _, err := o.w.WriteString("]\n"); err != nil {
		o.f.Close()
		return err
	}
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return err
	}
	return o.f.Close()
}

// jsonString renders s as a JSON-quoted string. The "command" field is
// pre-escaped by EscapeCommand per spec.md's bespoke rule and written
// verbatim by Append; directory/file are ordinary filesystem paths and
// go through standard JSON string quoting here.
func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

var _ io.Closer = (*Writer)(nil)
