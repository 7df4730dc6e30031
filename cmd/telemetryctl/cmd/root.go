package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	// settingsPath points at the telemetryctl settings file.
	settingsPath string
	// logLevel overrides the level from the settings file.
	logLevel string
	// projectDir overrides the project directory from the settings file.
	projectDir string
}

// newRootCommand assembles the telemetryctl command tree.
func newRootCommand() *cobra.Command {
	flags := new(globalFlags)

	root := &cobra.Command{
		Use:   "telemetryctl",
		Short: "Run, test and package the telemetry server",
		Long: `telemetryctl drives the telemetry server's cargo project.

run         launches the server with a config file and debug logging,
test        runs the server's test suite,
build-dist  performs a clean cross-compiled release build and stages the
            binary and config into the dist directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.settingsPath, "settings", "s", "",
		"path to settings file (default "+config.DefaultSettingsFilename+" if present)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.projectDir, "project-dir", "", "server project directory")

	root.AddCommand(
		newRunCommand(flags),
		newTestCommand(flags),
		newBuildDistCommand(flags),
		newStatusCommand(flags),
		newInitCommand(flags),
	)

	version.AttachCobraVersionCommand(root)

	return root
}

// load reads settings, applies flag overrides and configures logging.
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.settingsPath)
	if err != nil {
		return nil, err
	}

	if f.projectDir != "" {
		cfg.ProjectDir = f.projectDir
		if err = config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	levelName := cfg.LogLevel
	if f.logLevel != "" {
		levelName = f.logLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", levelName, errUnknownLogLevel)
	}

	logger.SetLevel(level)

	return cfg, nil
}

// Execute runs telemetryctl and exits with the status matching the failure class.
func Execute() {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		logger.Errorf(ctx, "%v", err)
	}

	logger.Sync()
	os.Exit(release.ExitCode(err))
}
