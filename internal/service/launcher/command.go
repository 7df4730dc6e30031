package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/service/common"
	"github.com/KazimiOrg/telemetry/internal/toolchain"
)

// Options controls how the server is launched.
type Options struct {
	// Settings locate the project and build driver.
	Settings *config.Config
	// ConfigPath is the server config to launch with.
	ConfigPath string
	// Watch restarts the server when the config file changes.
	Watch bool
}

// defaultDebounce batches the burst of events an editor produces on save.
const defaultDebounce = 300 * time.Millisecond

// starter launches one server instance.
type starter interface {
	Start(ctx context.Context, configPath, logFilter string) (toolchain.Process, error)
}

// launcher holds the collaborators of a run.
type launcher struct {
	starter   starter
	lookPath  toolchain.LookPathFunc
	driver    string
	logFilter string
	debounce  time.Duration
}

// Run validates the config and runs the server until it exits or ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "run")

	cfg := opts.Settings
	l := &launcher{
		starter: &toolchain.Cargo{
			Driver:      cfg.BuildDriver,
			Cross:       cfg.CrossHelper,
			ProjectDir:  cfg.ProjectPath(),
			CrateBinary: cfg.CrateBinary,
		},
		lookPath:  exec.LookPath,
		driver:    cfg.BuildDriver,
		logFilter: cfg.ServerLogFilter,
		debounce:  defaultDebounce,
	}

	return l.run(ctx, opts.ConfigPath, opts.Watch)
}

func (l *launcher) run(ctx context.Context, configPath string, watch bool) error {
	configAbs, err := common.ResolveConfig(configPath)
	if err != nil {
		return err
	}

	if err = toolchain.CheckEnvironment(l.lookPath, l.driver); err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "config", configAbs)

	if watch {
		return l.watch(ctx, configAbs)
	}

	return l.once(ctx, configAbs)
}

// once runs a single server instance to completion.
func (l *launcher) once(ctx context.Context, configAbs string) error {
	proc, err := l.starter.Start(ctx, configAbs, l.logFilter)
	if err != nil {
		return err
	}

	return l.exitStatus(ctx, proc.Wait())
}

// exitStatus turns the server's exit into the command result. An exit caused
// by the operator interrupting telemetryctl is not a failure.
func (l *launcher) exitStatus(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		logger.Info(ctx, "Server stopped")
		return nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("server exited with code %d: %w", exitErr.ExitCode(), err)
		}

		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info(ctx, "Server exited")

	return nil
}
