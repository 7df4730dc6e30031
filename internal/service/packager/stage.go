package packager

import (
	"context"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/KazimiOrg/telemetry/internal/config"
	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/logger"
	"github.com/KazimiOrg/telemetry/internal/service/common"
)

const (
	// binaryMode is applied to the shipped binary.
	binaryMode os.FileMode = 0o755
	// distDirMode is applied to the dist directory.
	distDirMode os.FileMode = 0o755
)

// stageRequest names the inputs and output of a staging step.
type stageRequest struct {
	// binary is the freshly built executable.
	binary string
	// config is the validated absolute config path.
	config string
	// distDir is the final dist directory.
	distDir string
	// distBinary is the binary name inside distDir.
	distBinary string
}

// stage assembles the release in a fresh directory beside distDir and swaps
// it into place. It returns the checksum of the shipped binary.
func stage(ctx context.Context, req *stageRequest) ([]byte, error) {
	parent := filepath.Dir(req.distDir)
	if err := os.MkdirAll(parent, distDirMode); err != nil {
		return nil, &release.PackagingError{Op: "create parent directory", Path: parent, Err: err}
	}

	// Same parent as distDir so the final rename cannot cross filesystems.
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(req.distDir)+".staging-")
	if err != nil {
		return nil, &release.PackagingError{Op: "create staging directory", Path: parent, Err: err}
	}

	// A no-op once staging has been renamed into place.
	defer func() {
		if removeErr := os.RemoveAll(staging); removeErr != nil {
			logger.WarnKV(ctx, "Could not remove staging directory", "path", staging, "error", removeErr)
		}
	}()

	if err = os.Chmod(staging, distDirMode); err != nil {
		return nil, &release.PackagingError{Op: "chmod staging directory", Path: staging, Err: err}
	}

	checksum, err := installBinary(req.binary, filepath.Join(staging, req.distBinary))
	if err != nil {
		return nil, err
	}

	if err = copyConfig(req.config, filepath.Join(staging, config.DistConfigFilename)); err != nil {
		return nil, err
	}

	if err = swap(ctx, staging, req.distDir); err != nil {
		return nil, err
	}

	return checksum, nil
}

// installBinary copies the built binary to target through go-update, which
// rejects the copy unless the bytes it read hash to the checksum taken first.
func installBinary(binary, target string) ([]byte, error) {
	checksum, err := common.FileChecksum(binary)
	if err != nil {
		return nil, &release.PackagingError{Op: "checksum binary", Path: binary, Err: err}
	}

	source, err := os.Open(filepath.Clean(binary))
	if err != nil {
		return nil, &release.PackagingError{Op: "open binary", Path: binary, Err: err}
	}

	defer func() {
		_ = source.Close()
	}()

	// go-update moves the current target aside before writing, so one must exist.
	placeholder, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, binaryMode)
	if err != nil {
		return nil, &release.PackagingError{Op: "create binary", Path: target, Err: err}
	}

	if err = placeholder.Close(); err != nil {
		return nil, &release.PackagingError{Op: "create binary", Path: target, Err: err}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: binaryMode,
		Checksum:   checksum,
		Hash:       common.ChecksumFunction,
	}

	if err = goupdate.Apply(source, options); err != nil {
		return nil, &release.PackagingError{Op: "install binary", Path: target, Err: err}
	}

	// Windows hides the replaced placeholder instead of deleting it.
	_ = os.Remove(hiddenSibling(target, ".old"))

	if err = os.Chmod(target, binaryMode); err != nil {
		return nil, &release.PackagingError{Op: "chmod binary", Path: target, Err: err}
	}

	return checksum, nil
}

// copyConfig copies the config byte for byte, keeping its permission bits.
func copyConfig(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return &release.PackagingError{Op: "stat config", Path: source, Err: err}
	}

	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return &release.PackagingError{Op: "open config", Path: source, Err: err}
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return &release.PackagingError{Op: "create config", Path: target, Err: err}
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return &release.PackagingError{Op: "copy config", Path: target, Err: err}
	}

	if err = out.Sync(); err != nil {
		_ = out.Close()

		return &release.PackagingError{Op: "sync config", Path: target, Err: err}
	}

	if err = out.Close(); err != nil {
		return &release.PackagingError{Op: "close config", Path: target, Err: err}
	}

	return nil
}

// swap replaces distDir with staging. An existing dist directory is moved
// aside first and restored if staging cannot take its place.
func swap(ctx context.Context, staging, distDir string) error {
	previous := staging + ".previous"

	_, err := os.Lstat(distDir)

	switch {
	case err == nil:
		if err = os.Rename(distDir, previous); err != nil {
			return &release.PackagingError{Op: "move aside previous dist", Path: distDir, Err: err}
		}
	case isNotExist(err):
		previous = ""
	default:
		return &release.PackagingError{Op: "stat dist", Path: distDir, Err: err}
	}

	if err = os.Rename(staging, distDir); err != nil {
		if previous != "" {
			if restoreErr := os.Rename(previous, distDir); restoreErr != nil {
				logger.ErrorKV(ctx, "Could not restore previous dist", "path", previous, "error", restoreErr)
			}
		}

		return &release.PackagingError{Op: "publish dist", Path: distDir, Err: err}
	}

	if previous == "" {
		return nil
	}

	if err = os.RemoveAll(previous); err != nil {
		logger.WarnKV(ctx, "Could not remove previous dist", "path", previous, "error", err)
	}

	return nil
}
