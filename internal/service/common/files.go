//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KazimiOrg/telemetry/internal/domain/release"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

// ChecksumFunction hashes release binaries.
const ChecksumFunction = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// ResolveConfig returns the absolute form of path if it names an existing,
// readable regular file, and a *release.ConfigNotFoundError otherwise.
func ResolveConfig(path string) (string, error) {
	if path == "" {
		return "", &release.ConfigNotFoundError{Path: path, Err: os.ErrNotExist}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &release.ConfigNotFoundError{Path: path, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", &release.ConfigNotFoundError{Path: abs, Err: err}
	}

	if !info.Mode().IsRegular() {
		return "", &release.ConfigNotFoundError{Path: abs}
	}

	file, err := os.Open(abs)
	if err != nil {
		return "", &release.ConfigNotFoundError{Path: abs, Err: err}
	}

	_ = file.Close()

	return abs, nil
}

// FileChecksum returns the checksum of the file at path using ChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
