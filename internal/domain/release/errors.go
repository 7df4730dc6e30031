package release

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes reported by telemetryctl, one per failure class.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0
	// ExitFailure covers failures outside the packaging taxonomy (tests failed, server exited, bad settings).
	ExitFailure = 1
	// ExitConfigNotFound indicates the caller supplied a config path that is not a regular file.
	ExitConfigNotFound = 2
	// ExitEnvironment indicates required build tooling is missing.
	ExitEnvironment = 3
	// ExitBuild indicates the build toolchain reported failure.
	ExitBuild = 4
	// ExitPackaging indicates a filesystem failure while staging the dist directory.
	ExitPackaging = 5
)

// ErrPackagingInProgress is wrapped in a PackagingError when another run holds the lock.
var ErrPackagingInProgress = errors.New("another packaging run is in progress")

// EnvironmentError reports build tooling that could not be found on PATH.
type EnvironmentError struct {
	// Missing lists the executables that were not found.
	Missing []string
	// Err is the lookup error of the first missing tool.
	Err error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("required tooling not found on PATH: %s", strings.Join(e.Missing, ", "))
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// ConfigNotFoundError reports a config path that does not name a readable regular file.
type ConfigNotFoundError struct {
	// Path is the resolved path that was checked.
	Path string
	// Err is the underlying stat or open error, if any.
	Err error
}

func (e *ConfigNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("config %s is not a regular file", e.Path)
	}

	return fmt.Sprintf("config %s not found: %v", e.Path, e.Err)
}

func (e *ConfigNotFoundError) Unwrap() error {
	return e.Err
}

// BuildError reports a failed toolchain step.
type BuildError struct {
	// Step is the toolchain command that failed, e.g. "cargo clean".
	Step string
	// ExitCode is the exit status of the step, or -1 if it did not exit normally.
	ExitCode int
	// Err is the underlying error.
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build step %q failed (exit code %d): %v", e.Step, e.ExitCode, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// PackagingError reports a filesystem failure while staging the dist directory.
// A dist directory left behind by a failed run must not be shipped.
type PackagingError struct {
	// Op names the staging operation, e.g. "copy config".
	Op string
	// Path is the file or directory the operation was acting on.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to the process exit status for its failure class.
func ExitCode(err error) int {
	var (
		envErr    *EnvironmentError
		configErr *ConfigNotFoundError
		buildErr  *BuildError
		packErr   *PackagingError
	)

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &envErr):
		return ExitEnvironment
	case errors.As(err, &configErr):
		return ExitConfigNotFound
	case errors.As(err, &buildErr):
		return ExitBuild
	case errors.As(err, &packErr):
		return ExitPackaging
	default:
		return ExitFailure
	}
}
