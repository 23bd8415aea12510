// Package runlock guards against two backup runs executing concurrently on
// one host. It is an advisory flock on a file keyed by the host identifier,
// so the kernel releases it even when the process dies hard.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// BusyError means another run on this host already holds the lock.
type BusyError struct {
	Path string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("another backup run is active (lock %s is held)", e.Path)
}

// Lock is the host-local run guard. Distinct hosts get distinct lock files,
// so hosts sharing a repository can still run concurrently.
type Lock struct {
	fl     *flock.Flock
	logger *zap.SugaredLogger
}

func New(dir, host string, logger *zap.SugaredLogger) *Lock {
	path := filepath.Join(dir, "volume-backup-"+host+".lock")
	return &Lock{fl: flock.New(path), logger: logger}
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

// Acquire takes the lock without waiting. A held lock returns *BusyError;
// the caller must then exit without touching the store.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock %s: %w", l.fl.Path(), err)
	}
	if !locked {
		return &BusyError{Path: l.fl.Path()}
	}
	l.logger.Debugf("run lock acquired: %s", l.fl.Path())
	return nil
}

// Release drops the lock. Failures are logged, never returned: callers defer
// Release so it runs on every exit path, and there is nothing useful to do
// with an unlock error at that point.
func (l *Lock) Release() {
	if err := l.fl.Unlock(); err != nil {
		l.logger.Warnf("release run lock %s: %s", l.fl.Path(), err)
	}
}
