package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/repository/history"
	"github.com/KazimiOrg/telemetry/internal/service/common"
	"github.com/KazimiOrg/telemetry/internal/toolchain"
	"github.com/KazimiOrg/telemetry/internal/version"
)

// Packager runs the release packaging pipeline for one settings snapshot.
type Packager struct {
	cfg         *config.Config
	builder     toolchain.Builder
	lookPath    toolchain.LookPathFunc
	history     history.Repository
	detectActor func() (*release.Actor, error)
	now         func() time.Time
}

// Option customizes a Packager.
type Option func(*Packager)

// WithLookPath replaces exec.LookPath for the environment check.
func WithLookPath(lookPath toolchain.LookPathFunc) Option {
	return func(p *Packager) {
		p.lookPath = lookPath
	}
}

// WithHistory records every successful release in repo.
func WithHistory(repo history.Repository) Option {
	return func(p *Packager) {
		p.history = repo
	}
}

// WithActor replaces the detection of who is packaging.
func WithActor(detect func() (*release.Actor, error)) Option {
	return func(p *Packager) {
		p.detectActor = detect
	}
}

// WithClock replaces time.Now for release timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Packager) {
		p.now = now
	}
}

// New creates a Packager that builds with builder according to cfg.
func New(cfg *config.Config, builder toolchain.Builder, options ...Option) *Packager {
	p := &Packager{
		cfg:         cfg,
		builder:     builder,
		lookPath:    exec.LookPath,
		detectActor: common.DetectActor,
		now:         time.Now,
	}

	for _, option := range options {
		option(p)
	}

	return p
}

// Package runs the pipeline for configPath and returns the absolute dist
// directory. Errors are *release.EnvironmentError, *release.ConfigNotFoundError,
// *release.BuildError or *release.PackagingError depending on the failing step.
func (p *Packager) Package(ctx context.Context, configPath string) (string, error) {
	distDir := p.cfg.DistPath()
	ctx = logger.WithKV(ctx, "dist_dir", distDir)

	logger.Info(ctx, "Checking build tooling")

	if err := toolchain.CheckEnvironment(p.lookPath, p.cfg.BuildDriver, p.cfg.CrossHelper); err != nil {
		return "", err
	}

	configAbs, err := common.ResolveConfig(configPath)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Using config", "config", configAbs)

	lock, err := acquireLock(ctx, distDir+lockSuffix)
	if err != nil {
		return "", err
	}

	defer lock.release(ctx)

	binary, err := p.builder.Build(ctx, p.cfg.Target)
	if err != nil {
		var buildErr *release.BuildError
		if !errors.As(err, &buildErr) {
			err = &release.BuildError{Step: "build " + p.cfg.Target, ExitCode: -1, Err: err}
		}

		return "", err
	}

	logger.Info(ctx, "Staging release")

	checksum, err := stage(ctx, &stageRequest{
		binary:     binary,
		config:     configAbs,
		distDir:    distDir,
		distBinary: p.cfg.DistBinary,
	})
	if err != nil {
		return "", err
	}

	p.record(ctx, configAbs, distDir, checksum)

	logger.InfoKV(ctx, "Release packaged", "binary", p.cfg.DistBinary, "config", config.DistConfigFilename)

	return distDir, nil
}

// record stores the release in history. The dist directory is already valid
// at this point, so failures are logged rather than returned.
func (p *Packager) record(ctx context.Context, configAbs, distDir string, checksum []byte) {
	if p.history == nil {
		return
	}

	actor, err := p.detectActor()
	if err != nil {
		logger.WarnKV(ctx, "Could not detect actor for release record", "error", err)
	}

	rec := &release.Record{
		ID:             uuid.NewString(),
		Target:         p.cfg.Target,
		DistDir:        distDir,
		Binary:         p.cfg.DistBinary,
		ConfigPath:     configAbs,
		BinaryChecksum: base64.StdEncoding.EncodeToString(checksum),
		Actor:          actor,
		ToolVersion:    version.Short(),
		Timestamp:      p.now().UTC(),
	}

	if err = p.history.Save(ctx, rec); err != nil {
		logger.WarnKV(ctx, "Could not record release", "error", err)
		return
	}

	logger.DebugKV(ctx, "Release recorded", "id", rec.ID)
}

// isNotExist reports whether err means the path is absent.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// hiddenSibling returns a dot-prefixed name beside path.
func hiddenSibling(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+suffix)
}
