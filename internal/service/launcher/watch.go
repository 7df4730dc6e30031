package launcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/service/common"
)

// errWatcherClosed is returned when fsnotify stops delivering events.
var errWatcherClosed = errors.New("config watcher closed")

// wakeReason says why waiting on a server instance ended.
type wakeReason int

const (
	wakeConfigChanged wakeReason = iota
	wakeCancelled
	wakeServerExited
	wakeWatcherFailed
)

// watch keeps a server running and restarts it after every config change.
func (l *launcher) watch(ctx context.Context, configAbs string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	// Editors often save by renaming over the file, which drops a watch on the
	// file itself, so the directory is watched instead.
	if err = watcher.Add(filepath.Dir(configAbs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(configAbs), err)
	}

	logger.Info(ctx, "Watching config for changes")

	for restarts := 0; ; restarts++ {
		instanceCtx, cancel := context.WithCancel(ctx)

		proc, err := l.starter.Start(instanceCtx, configAbs, l.logFilter)
		if err != nil {
			cancel()

			return err
		}

		exited := make(chan error, 1)

		go func() {
			exited <- proc.Wait()
		}()

		reason, waitErr := l.await(ctx, watcher, configAbs, exited)

		cancel()

		if reason == wakeServerExited {
			return l.exitStatus(ctx, waitErr)
		}

		// Stop the current instance before doing anything else.
		<-exited

		switch reason {
		case wakeConfigChanged:
			logger.InfoKV(ctx, "Config changed, restarting server", "restarts", restarts+1)
		case wakeCancelled:
			logger.Info(ctx, "Server stopped")
			return nil
		default:
			return waitErr
		}
	}
}

// await blocks until the config settles after a change, the server exits,
// or ctx is cancelled.
func (l *launcher) await(
	ctx context.Context,
	watcher *fsnotify.Watcher,
	configAbs string,
	exited <-chan error,
) (wakeReason, error) {
	var (
		timer   *time.Timer
		settled <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return wakeCancelled, nil

		case err := <-exited:
			return wakeServerExited, err

		case event, ok := <-watcher.Events:
			if !ok {
				return wakeWatcherFailed, errWatcherClosed
			}

			if filepath.Clean(event.Name) != configAbs || event.Op == fsnotify.Chmod {
				continue
			}

			logger.DebugKV(ctx, "Config event", "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}

			settled = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return wakeWatcherFailed, errWatcherClosed
			}

			logger.WarnKV(ctx, "Config watcher error", "error", err)

		case <-settled:
			settled = nil

			// A rename-based save may leave a gap; restart only once the file is back.
			if _, err := common.ResolveConfig(configAbs); err != nil {
				logger.WarnKV(ctx, "Config is missing, keeping the running server", "error", err)
				continue
			}

			return wakeConfigChanged, nil
		}
	}
}
