package tester

import (
	"context"
	"os/exec"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/toolchain"
)

// Options configures a test run.
type Options struct {
	// Settings locate the project and build driver.
	Settings *config.Config
	// Args are passed through to the build driver's test command.
	Args []string
}

// suite runs a test suite.
type suite interface {
	Test(ctx context.Context, args ...string) error
}

// Run executes the test suite and fails if any test fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "test")

	cfg := opts.Settings
	cargo := &toolchain.Cargo{
		Driver:     cfg.BuildDriver,
		ProjectDir: cfg.ProjectPath(),
	}

	return run(ctx, exec.LookPath, cfg.BuildDriver, cargo, opts.Args)
}

func run(ctx context.Context, lookPath toolchain.LookPathFunc, driver string, s suite, args []string) error {
	if err := toolchain.CheckEnvironment(lookPath, driver); err != nil {
		return err
	}

	if err := s.Test(ctx, args...); err != nil {
		return err
	}

	logger.Info(ctx, "Test suite passed")

	return nil
}
