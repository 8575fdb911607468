// Package lockfile keeps two safechat processes from using the same home
// directory at once.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rogpeppe/go-internal/lockedfile"
	"github.com/sirupsen/logrus"
)

// Filename is the lock file created inside the home directory.
const Filename = "safechat.lock"

// Lock is a held home directory lock.
type Lock struct {
	f *lockedfile.File
}

// Release unlocks the home directory.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return errors.New("lockfile: not held")
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Acquire blocks until the lock of home is held or ctx is done.
func Acquire(ctx context.Context, home string) (*Lock, error) {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(home, Filename)

	type result struct {
		f   *lockedfile.File
		err error
	}
	done := make(chan result, 1)
	go func() {
		f, err := lockedfile.Create(path)
		done <- result{f, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, r.err)
		}
		// Owner details ease debugging a stuck lock; failures are harmless.
		host, _ := os.Hostname()
		_, _ = fmt.Fprintf(r.f, "PID=%d\nHost=%q\n", os.Getpid(), host)
		logrus.WithField("path", path).Debug("home directory locked")
		return &Lock{f: r.f}, nil

	case <-ctx.Done():
		// The lock may still be granted later; release it when it is.
		go func() {
			if r := <-done; r.err == nil {
				_ = r.f.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
