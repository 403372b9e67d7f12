package record

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// State is the completion state of a record on disk.
type State int

const (
	// Run: no record exists yet.
	Run State = iota
	// Skip: the record carries the sentinel.
	Skip
	// Rerun: the record exists but was interrupted or failed.
	Rerun
)

func (s State) String() string {
	switch s {
	case Run:
		return "run"
	case Skip:
		return "skip"
	case Rerun:
		return "rerun"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Code is the one-letter status used in plan listings: A (add),
// S (skip), M (modify).
func (s State) Code() string {
	switch s {
	case Run:
		return "A"
	case Skip:
		return "S"
	case Rerun:
		return "M"
	default:
		return "?"
	}
}

// Detect classifies the record at path by reading only its last
// TailWindow bytes. Files shorter than the window are read whole. Any
// error other than the file not existing is returned; callers treat it as
// fatal rather than guessing a state for unreadable output.
func Detect(path string) (State, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Run, nil
	}
	if err != nil {
		return 0, fmt.Errorf("detect %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("detect %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("detect %s: not a regular file", path)
	}

	offset, whence := -int64(TailWindow), io.SeekEnd
	if info.Size() < int64(TailWindow) {
		offset, whence = 0, io.SeekStart
	}
	if _, err := f.Seek(offset, whence); err != nil {
		return 0, fmt.Errorf("detect %s: seek: %w", path, err)
	}
	tail := make([]byte, TailWindow)
	n, err := io.ReadFull(f, tail)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("detect %s: read tail: %w", path, err)
	}
	if strings.Contains(string(tail[:n]), SentinelMarker) {
		return Skip, nil
	}
	return Rerun, nil
}
