package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/service/launcher"
	"github.com/KazimiOrg/telemetry/internal/service/packager"
	"github.com/KazimiOrg/telemetry/internal/service/status"
	"github.com/KazimiOrg/telemetry/internal/service/tester"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var watch bool

	command := &cobra.Command{
		Use:   "run <config>",
		Short: "Run the server with a config file and debug logging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			return launcher.Run(cmd.Context(), &launcher.Options{
				Settings:   cfg,
				ConfigPath: args[0],
				Watch:      watch,
			})
		},
	}

	command.Flags().BoolVarP(&watch, "watch", "w", false, "restart the server when the config file changes")

	return command
}

func newTestCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "test [-- cargo test args...]",
		Short: "Run the server's test suite",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			return tester.Run(cmd.Context(), &tester.Options{
				Settings: cfg,
				Args:     args,
			})
		},
	}
}

func newBuildDistCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "build-dist <config>",
		Short: "Build a clean release and stage it with the config into the dist directory",
		Long: `Checks that the build driver and cross-compilation helper are installed,
validates the config file, removes all previous build artifacts, cross-compiles
a locked release build for the configured target triple and replaces the dist
directory with exactly the renamed binary and config.yaml.

The dist directory is only replaced after a successful build. A failed run
never leaves a partially staged dist directory behind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			return packager.Run(cmd.Context(), &packager.Options{
				Settings:   cfg,
				ConfigPath: args[0],
				Out:        cmd.OutOrStdout(),
			})
		},
	}
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	var verify bool

	command := &cobra.Command{
		Use:   "status",
		Short: "Show the last packaged release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			return status.Run(cmd.Context(), &status.Options{
				Settings: cfg,
				Verify:   verify,
				Out:      cmd.OutOrStdout(),
			})
		},
	}

	command.Flags().BoolVar(&verify, "verify", false, "check the dist binary against the recorded checksum")

	return command
}

func newInitCommand(flags *globalFlags) *cobra.Command {
	var force bool

	command := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.settingsPath
			if path == "" {
				path = config.DefaultSettingsFilename
			}

			cfg := config.Default()
			if flags.projectDir != "" {
				cfg.ProjectDir = flags.projectDir
			}

			if err := config.Save(path, cfg, force); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Settings written", "path", path)

			return nil
		},
	}

	command.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")

	return command
}
