package lock

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/the-mace/evtools/common"
)

// ErrTimeout is returned when another run keeps holding the lock for every attempt.
var ErrTimeout = errors.New("lock file not getting released, please investigate")

var errBusy = errors.New("lock held by another process")

// Lock is an advisory exclusive lock on a well-known file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock at path, waiting between attempts according to policy.
func Acquire(ctx context.Context, path string, policy common.RetryPolicy) (*Lock, error) {
	var l *Lock
	err := backoff.RetryNotify(func() error {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return backoff.Permanent(errors.Wrapf(err, "cannot open lock file %s", path))
		}
		if err := lockFile(file, path); err != nil {
			file.Close()
			if err == errBusy {
				return errBusy
			}
			return backoff.Permanent(err)
		}
		l = &Lock{file: file, path: path}
		return nil
	}, policy.NewBackOff(ctx), func(err error, next time.Duration) {
		glog.Infof("Someone else is running this tool right now. Sleeping %s", common.Round(next, time.Millisecond))
	})
	if err == errBusy {
		return nil, errors.Wrap(ErrTimeout, path)
	}
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("Acquired lock %s", path)
	return l, nil
}

// lockFile flocks file and checks that it is still the file at path. A holder removes the file
// before unlocking it, so a lock on an unlinked file means another run may already own a newer
// one.
func lockFile(file *os.File, path string) error {
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if err == syscall.EWOULDBLOCK {
			return errBusy
		}
		return errors.Wrapf(err, "cannot lock %s", path)
	}
	locked, err := file.Stat()
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		return errors.Wrapf(err, "cannot stat lock file %s", path)
	}
	current, err := os.Stat(path)
	if err != nil || !os.SameFile(locked, current) {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		return errBusy
	}
	return nil
}

// Release removes the lock file and then unlocks it. Removing first means a run that locks the old
// file afterwards sees it is stale. Failures are only logged: the OS drops the lock when the process
// exits anyway.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := os.Remove(l.path); err != nil {
		glog.V(1).Infof("Cannot remove lock file %s: %v", l.path, err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		glog.V(1).Infof("Cannot unlock %s: %v", l.path, err)
	}
	if err := l.file.Close(); err != nil {
		glog.V(1).Infof("Cannot close lock file %s: %v", l.path, err)
	}
	l.file = nil
}
