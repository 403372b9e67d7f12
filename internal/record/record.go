// Package record defines the on-disk format of a run's output file and
// classifies existing files by completion state.
//
// Layout of a record:
//
//	# -flag1=a -flag2=b        header, flags in the order they were run
//	...solver stdout...
//
//	# DONE                     sentinel, present only after exit status 0
//
// The runner writes SentinelLine and the detector searches for
// SentinelMarker within the last TailWindow bytes; both sides use the
// constants below.
package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	// HeaderMarker starts the first line of every record.
	HeaderMarker = "#"
	// HeaderPrefix is written before the flags on the first line.
	HeaderPrefix = HeaderMarker + " "

	// Sentinel is the completion marker line, without newlines.
	Sentinel = HeaderPrefix + "DONE"
	// SentinelMarker must appear in the tail of a completed record.
	SentinelMarker = "\n" + Sentinel
	// SentinelLine is appended by the runner on success. The leading
	// newline guarantees the marker starts a line even when the solver's
	// output lacks a trailing newline.
	SentinelLine = SentinelMarker + "\n"

	// TailWindow is how many trailing bytes the detector inspects.
	TailWindow = len(Sentinel) + 2
)

var (
	ErrBadName         = errors.New("record: malformed file name")
	ErrMalformedHeader = errors.New("record: missing header marker")
)

// Header renders the first line of a record, including its newline.
func Header(flags []string) string {
	return HeaderPrefix + strings.Join(flags, " ") + "\n"
}

// Name identifies a record by prefix, content hash and sample index.
type Name struct {
	Prefix string
	Hash   string
	Sample int
}

// String formats the file name, e.g. "exp-3f9a1c-07".
func (n Name) String() string {
	return fmt.Sprintf("%s-%s-%02d", n.Prefix, n.Hash, n.Sample)
}

// WithHash returns a copy of n carrying hash.
func (n Name) WithHash(hash string) Name {
	n.Hash = hash
	return n
}

// ParseName splits a file name into its three dash-separated fields.
func ParseName(s string) (Name, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Name{}, fmt.Errorf("%w: %q", ErrBadName, s)
	}
	digits := parts[2] != "" && strings.Trim(parts[2], "0123456789") == ""
	sample, err := strconv.Atoi(parts[2])
	if !digits || err != nil {
		return Name{}, fmt.Errorf("%w: %q: bad sample index", ErrBadName, s)
	}
	for _, r := range parts[1] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return Name{}, fmt.Errorf("%w: %q: hash is not lowercase hex", ErrBadName, s)
		}
	}
	return Name{Prefix: parts[0], Hash: parts[1], Sample: sample}, nil
}

// ReadHeader returns the flags stored on the first line of the record at
// path, with the marker and surrounding space stripped. It fails with
// ErrMalformedHeader when the line does not start with HeaderMarker.
func ReadHeader(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read header of %s: %w", path, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, HeaderMarker) {
		return "", fmt.Errorf("%w: %s: first line %q", ErrMalformedHeader, path, truncate(line, 60))
	}
	return strings.TrimSpace(strings.TrimLeft(line, HeaderPrefix)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
