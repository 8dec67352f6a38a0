// Package wire implements the length-prefixed framing used between the
// interposition shim and the collector (see "Wire Codec" in SPEC_FULL.md).
package wire

import (
	"encoding/binary"
	"io"
)

// sentinel terminates a string-vector frame. It is distinct from the
// length of a legal empty string (0) so a zero-length argv element
// survives the round trip instead of being mistaken for the end of
// the vector.
const sentinel uint32 = 0xFFFFFFFF

// Observation is the in-memory form of one intercepted exec call.
type Observation struct {
	Cwd  string
	Argv []string
	// Fn is the name of the intercepted entry point (e.g. "execve").
	// It is debug-only and may be empty.
	Fn string
}

// WriteString writes s as a single length-prefixed frame.
func WriteString(w io.Writer, s string) error {
	var length [4]byte
	binary.NativeEndian.PutUint32(length[:], uint32(len(s)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a single length-prefixed frame. Any error — including
// a clean EOF before any bytes arrive — indicates the frame could not be
// read in full and the caller should discard the connection.
func ReadString(r io.Reader) (string, error) {
	n, err := readLength(r)
	if err != nil {
		return "", err
	}
	return readPayload(r, n)
}

func readLength(r io.Reader) (uint32, error) {
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return 0, shortRead(err)
	}
	return binary.NativeEndian.Uint32(length[:]), nil
}

func readPayload(r io.Reader, n uint32) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", shortRead(err)
	}
	return string(buf), nil
}

// shortRead normalizes a clean EOF into io.ErrUnexpectedEOF once the
// caller already expects more of a frame to follow. io.ReadFull already
// returns io.ErrUnexpectedEOF for a partial read; a plain io.EOF means
// nothing at all arrived, which the collector treats identically: the
// observation is discarded either way.
func shortRead(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// WriteStringVector writes argv as a sequence of string frames followed
// by the sentinel frame. The sentinel is always written.
func WriteStringVector(w io.Writer, argv []string) error {
	for _, s := range argv {
		if err := WriteString(w, s); err != nil {
			return err
		}
	}
	var length [4]byte
	binary.NativeEndian.PutUint32(length[:], sentinel)
	_, err := w.Write(length[:])
	return err
}

// ReadStringVector reads string frames until the sentinel frame, which is
// always consumed.
func ReadStringVector(r io.Reader) ([]string, error) {
	var out []string
	for {
		n, err := readLength(r)
		if err != nil {
			return nil, err
		}
		if n == sentinel {
			return out, nil
		}
		s, err := readPayload(r, n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// WriteObservation writes the cwd frame, the argv vector frame, and —
// when Fn is non-empty — a trailing entry-point-name frame.
func WriteObservation(w io.Writer, o Observation) error {
	if err := WriteString(w, o.Cwd); err != nil {
		return err
	}
	if err := WriteStringVector(w, o.Argv); err != nil {
		return err
	}
	if o.Fn != "" {
		if err := WriteString(w, o.Fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadObservation reads one Observation frame. The trailing Fn frame is
// optional: a clean EOF immediately after the argv vector means the peer
// didn't send the debug protocol's entry-point name, not a truncated
// message.
func ReadObservation(r io.Reader) (Observation, error) {
	cwd, err := ReadString(r)
	if err != nil {
		return Observation{}, err
	}
	argv, err := ReadStringVector(r)
	if err != nil {
		return Observation{}, err
	}
	var length [4]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		if err == io.EOF {
			return Observation{Cwd: cwd, Argv: argv}, nil
		}
		return Observation{}, err
	}
	fn, err := readPayload(r, binary.NativeEndian.Uint32(length[:]))
	if err != nil {
		return Observation{}, err
	}
	return Observation{Cwd: cwd, Argv: argv, Fn: fn}, nil
}
