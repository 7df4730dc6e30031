package status

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/repository/history"
	"github.com/KazimiOrg/telemetry/internal/service/common"
)

// Options configures the status report.
type Options struct {
	// Settings locate the history file.
	Settings *config.Config
	// Verify re-hashes the dist binary and compares it with the record.
	Verify bool
	// Out receives the report; os.Stdout when nil.
	Out io.Writer
}

// ErrChecksumMismatch is returned by verification when the dist binary changed.
var ErrChecksumMismatch = errors.New("dist binary does not match the recorded release")

// Run prints the last release record.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "status")

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	repo := history.NewFileRepository(opts.Settings.HistoryPath())

	return report(ctx, repo, out, opts.Verify)
}

func report(ctx context.Context, repo history.Repository, out io.Writer, verify bool) error {
	rec, err := repo.Load(ctx)
	if errors.Is(err, history.ErrNotFound) {
		_, err = fmt.Fprintln(out, "No release has been packaged yet.")
		return err
	}

	if err != nil {
		return fmt.Errorf("load release history: %w", err)
	}

	if err = render(out, rec); err != nil {
		return err
	}

	if !verify {
		return nil
	}

	if err = verifyBinary(rec); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Dist binary matches the recorded release", "id", rec.ID)

	return nil
}

// render writes the record as aligned key/value lines.
func render(out io.Writer, rec *release.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	actor := "unknown"
	if rec.Actor != nil {
		actor = rec.Actor.Username + "@" + rec.Actor.Hostname
	}

	timestamp := "unknown"
	if !rec.Timestamp.IsZero() {
		timestamp = rec.Timestamp.Format(time.RFC3339)
	}

	rows := [][2]string{
		{"Release", rec.ID},
		{"Target", rec.Target},
		{"Dist", rec.DistDir},
		{"Binary", rec.Binary},
		{"Config", rec.ConfigPath},
		{"SHA-512", rec.BinaryChecksum},
		{"Packaged by", actor},
		{"Packaged at", timestamp},
		{"Tool version", rec.ToolVersion},
	}

	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}

	return w.Flush()
}

// verifyBinary compares the dist binary on disk with the recorded checksum.
func verifyBinary(rec *release.Record) error {
	want, err := base64.StdEncoding.DecodeString(rec.BinaryChecksum)
	if err != nil {
		return fmt.Errorf("decode recorded checksum: %w", err)
	}

	binary := filepath.Join(rec.DistDir, rec.Binary)

	got, err := common.FileChecksum(binary)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", binary, err)
	}

	if !bytes.Equal(got, want) {
		return fmt.Errorf("%s: %w", binary, ErrChecksumMismatch)
	}

	return nil
}
