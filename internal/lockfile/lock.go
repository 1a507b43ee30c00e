// Package lockfile guards the state directory with an exclusive advisory
// lock so only one process mutates the ledger at a time.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("lock held by another process")

// LockInfo is written into the lock file by the holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Alive reports whether the recorded holder process still exists.
func (i *LockInfo) Alive() bool {
	return i != nil && isProcessRunning(i.PID)
}

// BusyError is ErrLockBusy with whatever the lock file says about its holder.
type BusyError struct {
	Path   string
	Holder *LockInfo
}

func (e *BusyError) Error() string {
	if e.Holder == nil {
		return fmt.Sprintf("%s: %v", e.Path, ErrLockBusy)
	}
	return fmt.Sprintf("%s: %v (pid %d, %s)", e.Path, ErrLockBusy, e.Holder.PID, e.Holder.Command)
}

func (e *BusyError) Unwrap() error { return ErrLockBusy }

// Lock is a held lock. Release it when done.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the lock at path without waiting. The parent directory is
// created if needed. When the lock is held elsewhere the error is a
// *BusyError that matches ErrLockBusy.
func Acquire(path, command string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 - resolved state path
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockExclusiveNonBlock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			holder, _ := ReadLockInfo(path)
			return nil, &BusyError{Path: path, Holder: holder}
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	info := LockInfo{PID: os.Getpid(), Command: command, StartedAt: time.Now().UTC()}
	data, _ := json.Marshal(info)
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt(data, 0)
		_ = f.Sync()
	}
	return &Lock{path: path, f: f}, nil
}

// AcquireWait retries Acquire with exponential backoff until the lock is
// free, ctx is done, or maxWait elapses (zero means wait for ctx only).
func AcquireWait(ctx context.Context, path, command string, maxWait time.Duration) (*Lock, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = maxWait

	var lock *Lock
	op := func() error {
		l, err := Acquire(path, command)
		if err != nil {
			if errors.Is(err, ErrLockBusy) {
				return err
			}
			return backoff.Permanent(err)
		}
		lock = l
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return lock, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the file. The file itself is left in place so
// a waiting process never races a recreate.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := flockUnlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}

// ReadLockInfo reads the holder information from a lock file. Files that
// only contain a PID are accepted.
func ReadLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 - resolved state path
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		return &info, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &LockInfo{PID: pid}, nil
}

// Held reports whether some process currently holds the lock at path,
// along with its recorded info. It tries a non-blocking lock on a
// read-only handle, so the holder record in the file is never rewritten.
func Held(path string) (bool, *LockInfo) {
	f, err := os.Open(path) // #nosec G304 - resolved state path
	if err != nil {
		return false, nil
	}
	defer func() { _ = f.Close() }()

	if err := flockExclusiveNonBlock(f); err != nil {
		if errors.Is(err, ErrLockBusy) {
			holder, _ := ReadLockInfo(path)
			return true, holder
		}
		return false, nil
	}
	_ = flockUnlock(f)
	return false, nil
}
