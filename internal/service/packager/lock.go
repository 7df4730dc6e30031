package packager

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/logger"
)

const (
	// lockSuffix is appended to the dist directory to name the run lock.
	lockSuffix = ".lock"

	// lockGrace protects a lock whose owner has created it but not yet written its PID.
	lockGrace = 30 * time.Second

	// lockMode is used for the lock file.
	lockMode os.FileMode = 0o600
)

// runLock serializes packaging runs that target the same dist directory.
type runLock struct {
	path string
}

// acquireLock creates the lock file exclusively. A lock left behind by a
// process that no longer runs is removed and acquisition retried once.
func acquireLock(ctx context.Context, path string) (*runLock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, lockMode)
		if err == nil {
			_, err = file.WriteString(strconv.Itoa(os.Getpid()))
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}

			if err != nil {
				_ = os.Remove(path)

				return nil, &release.PackagingError{Op: "write lock", Path: path, Err: err}
			}

			logger.DebugKV(ctx, "Packaging lock acquired", "path", path)

			return &runLock{path: path}, nil
		}

		if !os.IsExist(err) {
			return nil, &release.PackagingError{Op: "create lock", Path: path, Err: err}
		}

		pid, held := lockHolder(path)
		if held {
			return nil, &release.PackagingError{Op: "acquire lock", Path: path, Err: release.ErrPackagingInProgress}
		}

		logger.WarnKV(ctx, "Removing stale packaging lock", "path", path, "pid", pid)

		if err = os.Remove(path); err != nil && !isNotExist(err) {
			return nil, &release.PackagingError{Op: "remove stale lock", Path: path, Err: err}
		}
	}

	return nil, &release.PackagingError{Op: "acquire lock", Path: path, Err: release.ErrPackagingInProgress}
}

// release removes the lock file.
func (l *runLock) release(ctx context.Context) {
	if err := os.Remove(l.path); err != nil && !isNotExist(err) {
		logger.WarnKV(ctx, "Could not remove packaging lock", "path", l.path, "error", err)
	}
}

// lockHolder reports the PID recorded in the lock and whether that process
// still holds it.
func lockHolder(path string) (int, bool) {
	info, err := os.Stat(path)
	if err != nil {
		// Vanished between the failed create and now.
		return 0, false
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Since(info.ModTime()) <= lockGrace
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, time.Since(info.ModTime()) <= lockGrace
	}

	if pid == os.Getpid() {
		return pid, true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		// Unknown state counts as held.
		return pid, true
	}

	return pid, process != nil
}
