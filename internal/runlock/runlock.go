// Package runlock serializes invocations of the bot. The history store is
// not safe under concurrent runs, so a second instance must back off.
package runlock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another instance already holds the lock.
var ErrHeld = fmt.Errorf("another instance is already running")

// Lock is a cooperative file lock around one invocation.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock file without blocking. The caller must Release.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Release() error {
	return l.fl.Unlock()
}
