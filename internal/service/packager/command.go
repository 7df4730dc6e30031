package packager

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/repository/history"
	"github.com/KazimiOrg/telemetry/internal/toolchain"
)

// Options contains inputs for the build-dist entry point.
type Options struct {
	// Settings locate the project and toolchain.
	Settings *config.Config
	// ConfigPath is the server config to ship.
	ConfigPath string
	// Out receives the dist directory path on success; os.Stdout when nil.
	Out io.Writer
}

// Run packages a release with the real toolchain and reports the dist directory.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "build-dist")

	cfg := opts.Settings
	builder := &toolchain.Cargo{
		Driver:      cfg.BuildDriver,
		Cross:       cfg.CrossHelper,
		ProjectDir:  cfg.ProjectPath(),
		CrateBinary: cfg.CrateBinary,
	}

	pkg := New(cfg, builder, WithHistory(history.NewFileRepository(cfg.HistoryPath())))

	distDir, err := pkg.Package(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("build-dist: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	_, err = fmt.Fprintln(out, distDir)

	return err
}
