package study

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the study lock.
var ErrLocked = errors.New("study is locked by another studyrun process")

// Lock is an exclusive advisory lock on a study directory.
type Lock struct {
	fl *flock.Flock
}

// Lock takes the study lock without waiting.
func (s *Study) Lock() (*Lock, error) {
	fl := flock.New(filepath.Join(s.Dir, LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("lock %s: %w", s.Dir, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return &Lock{fl: fl}, nil
}

// Unlock releases the lock. The lock file itself is left in place.
func (l *Lock) Unlock() error {
	return l.fl.Close()
}
