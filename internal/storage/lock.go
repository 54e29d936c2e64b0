package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ExclusiveLock is the lock file a writer holds while it rewrites the build
// tables (ingest, prune), so two modhook processes never do so at once.
// Readers such as check and events never take it.
type ExclusiveLock struct {
	Holder    string    `json:"holder"`
	Operation string    `json:"operation"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// busyError describes a live holder.
func (l *ExclusiveLock) busyError() error {
	op := l.Operation
	if op == "" {
		op = "write"
	}
	return fmt.Errorf("another modhook process holds the database (%s, PID %d on %s, started %s)",
		op, l.PID, l.Hostname, l.StartedAt.Format(time.RFC3339))
}

// alive reports whether the holding process may still be running.
func (l *ExclusiveLock) alive() bool {
	return isProcessAlive(l.PID, l.Hostname)
}

func lockPathFor(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("invalid database path: %w", err)
	}
	return absPath + ".lock", nil
}

// AcquireExclusiveLock creates dbPath's lock file for operation. The file is
// created with O_EXCL, so of two racing writers exactly one wins. A lock
// left by a dead process is replaced. Returns the lock file path for
// ReleaseExclusiveLock.
func AcquireExclusiveLock(dbPath, operation, version string) (string, error) {
	lockPath, err := lockPathFor(dbPath)
	if err != nil {
		return "", err
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	data, err := json.MarshalIndent(ExclusiveLock{
		Holder:    "modhook",
		Operation: operation,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Version:   version,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	// Second attempt only after clearing a stale lock
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.Write(data)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(lockPath)
				return "", fmt.Errorf("failed to write lock: %w", werr)
			}
			return lockPath, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create exclusive lock: %w", err)
		}

		holder, cleared, err := ClearStaleLock(dbPath)
		if err != nil {
			return "", err
		}
		if !cleared && holder != nil {
			return "", holder.busyError()
		}
	}
	return "", fmt.Errorf("lock %s was recreated while acquiring it", lockPath)
}

// ReleaseExclusiveLock removes the lock file. An empty path or a missing
// file is not an error.
func ReleaseExclusiveLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove exclusive lock: %w", err)
	}
	return nil
}

// ClearStaleLock removes the lock file for dbPath if its holder is no longer
// running, and reports whether it did. A live holder's lock is left in place.
// Unreadable lock contents count as stale.
func ClearStaleLock(dbPath string) (*ExclusiveLock, bool, error) {
	lockPath, err := lockPathFor(dbPath)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(lockPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read lock: %w", err)
	}

	var lock ExclusiveLock
	if json.Unmarshal(data, &lock) == nil && lock.alive() {
		return &lock, false, nil
	}
	if err := ReleaseExclusiveLock(lockPath); err != nil {
		return &lock, false, err
	}
	return &lock, true, nil
}

// isProcessAlive signals pid with signal 0. Processes on other hosts, and
// checks that fail for lack of permission, count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil || !strings.EqualFold(hostname, currentHost) {
		return true
	}
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
