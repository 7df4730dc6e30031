package status

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/repository/history"
)

// packagedRelease writes a dist directory and the matching history record.
func packagedRelease(t *testing.T) (*config.Config, *release.Record) {
	t.Helper()

	cfg := &config.Config{ProjectDir: t.TempDir()}
	require.NoError(t, config.Validate(cfg))

	binary := []byte("\x7fELF telemetry")
	require.NoError(t, os.MkdirAll(cfg.DistPath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DistPath(), cfg.DistBinary), binary, 0o755))

	sum := sha512.Sum512(binary)
	rec := &release.Record{
		ID:             "6f1c2a3e-0000-4000-8000-000000000001",
		Target:         cfg.Target,
		DistDir:        cfg.DistPath(),
		Binary:         cfg.DistBinary,
		ConfigPath:     "/srv/configs/prod.yaml",
		BinaryChecksum: base64.StdEncoding.EncodeToString(sum[:]),
		Actor:          &release.Actor{Hostname: "build-01", Username: "release"},
		ToolVersion:    "0.1.0",
		Timestamp:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, history.NewFileRepository(cfg.HistoryPath()).Save(context.Background(), rec))

	return cfg, rec
}

// TestRun_NoHistory prints a friendly message and succeeds.
func TestRun_NoHistory(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{ProjectDir: t.TempDir()}
	require.NoError(t, config.Validate(cfg))

	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), &Options{Settings: cfg, Verify: true, Out: &out}))
	require.Contains(t, out.String(), "No release")
}

// TestRun_Report prints every recorded field and verifies the binary.
func TestRun_Report(t *testing.T) {
	t.Parallel()

	cfg, rec := packagedRelease(t)

	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), &Options{Settings: cfg, Verify: true, Out: &out}))

	for _, want := range []string{rec.ID, rec.Target, rec.DistDir, rec.BinaryChecksum, "release@build-01", "2026-10-17T12:00:00Z"} {
		require.Contains(t, out.String(), want)
	}
}

// TestRun_VerifyMismatch detects a dist binary that changed after packaging.
func TestRun_VerifyMismatch(t *testing.T) {
	t.Parallel()

	cfg, _ := packagedRelease(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DistPath(), cfg.DistBinary), []byte("tampered"), 0o755))

	var out bytes.Buffer

	// Without --verify the report alone succeeds.
	require.NoError(t, Run(context.Background(), &Options{Settings: cfg, Out: &out}))

	err := Run(context.Background(), &Options{Settings: cfg, Verify: true, Out: &out})
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

// TestRun_VerifyMissingBinary fails when the dist directory was removed.
func TestRun_VerifyMissingBinary(t *testing.T) {
	t.Parallel()

	cfg, _ := packagedRelease(t)
	require.NoError(t, os.RemoveAll(cfg.DistPath()))

	err := Run(context.Background(), &Options{Settings: cfg, Verify: true, Out: new(bytes.Buffer)})
	require.ErrorIs(t, err, os.ErrNotExist)
}
