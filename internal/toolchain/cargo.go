package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/logger"
)

const (
	// serverLogEnv is the variable the server reads its log filter from.
	serverLogEnv = "RUST_LOG"

	// interruptGrace is how long a cancelled child gets to exit after an interrupt before it is killed.
	interruptGrace = 10 * time.Second

	// unknownExitCode is reported when a step did not exit normally.
	unknownExitCode = -1
)

// errBinaryMissing is returned when a build succeeds but the expected binary is absent.
var errBinaryMissing = errors.New("build finished without producing the binary")

// Builder produces a release binary for a target triple.
type Builder interface {
	// Build performs a clean release build for target and returns the path of the binary.
	Build(ctx context.Context, target string) (string, error)
}

// Process is a launched child that can be waited on.
type Process interface {
	// Wait blocks until the child exits.
	Wait() error
}

// Cargo drives a cargo project. The zero value is not usable; set at least
// Driver, Cross and ProjectDir.
type Cargo struct {
	// Driver is the build driver executable.
	Driver string
	// Cross is the cross-compilation helper executable.
	Cross string
	// ProjectDir is the cargo project root.
	ProjectDir string
	// CrateBinary is the name of the binary the project produces.
	CrateBinary string
	// Stdout receives child output; os.Stdout when nil.
	Stdout io.Writer
	// Stderr receives child diagnostics; os.Stderr when nil.
	Stderr io.Writer
}

// Build removes every prior artifact, then cross-compiles a locked release
// build for target. Failures are reported as *release.BuildError.
func (c *Cargo) Build(ctx context.Context, target string) (string, error) {
	ctx = logger.WithKV(ctx, "target", target)

	logger.Info(ctx, "Removing previous build artifacts")

	if err := c.step(ctx, nil, c.Driver, "clean"); err != nil {
		return "", err
	}

	logger.Info(ctx, "Cross-compiling release build")

	if err := c.step(ctx, nil, c.Cross, "build", "--release", "--locked", "--target", target); err != nil {
		return "", err
	}

	binary := c.BinaryPath(target)

	info, err := os.Stat(binary)
	if err != nil || !info.Mode().IsRegular() {
		if err == nil {
			err = fmt.Errorf("%s: %w", binary, errBinaryMissing)
		}

		return "", &release.BuildError{Step: "locate " + binary, ExitCode: unknownExitCode, Err: err}
	}

	logger.InfoKV(ctx, "Release build finished", "binary", binary)

	return binary, nil
}

// BinaryPath is where a release build for target leaves the crate binary.
func (c *Cargo) BinaryPath(target string) string {
	name := c.CrateBinary
	if strings.Contains(target, "windows") {
		name += ".exe"
	}

	return filepath.Join(c.ProjectDir, "target", target, "release", name)
}

// Start launches the server through the build driver with the given config
// and log filter. Cancelling ctx interrupts the server, then kills it if it
// does not exit in time.
func (c *Cargo) Start(ctx context.Context, configPath, logFilter string) (Process, error) {
	cmd := c.command(ctx, []string{serverLogEnv + "=" + logFilter}, c.Driver, "run", "--", "--config", configPath)

	logger.InfoKV(ctx, "Launching server", "command", cmd.String(), serverLogEnv, logFilter)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Driver, err)
	}

	return cmd, nil
}

// Test runs the project's test suite, passing args through to the build driver.
func (c *Cargo) Test(ctx context.Context, args ...string) error {
	cmd := c.command(ctx, nil, c.Driver, append([]string{"test"}, args...)...)

	logger.InfoKV(ctx, "Running test suite", "command", cmd.String())

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s test: %w", c.Driver, err)
	}

	return nil
}

// step runs one build command and converts failure into a *release.BuildError.
func (c *Cargo) step(ctx context.Context, env []string, name string, args ...string) error {
	cmd := c.command(ctx, env, name, args...)
	stepName := strings.Join(append([]string{filepath.Base(name)}, args...), " ")

	logger.DebugKV(ctx, "Running build step", "command", cmd.String())

	if err := cmd.Run(); err != nil {
		return &release.BuildError{Step: stepName, ExitCode: exitCode(err), Err: err}
	}

	return nil
}

func (c *Cargo) command(ctx context.Context, env []string, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.ProjectDir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Cancel = func() error {
		return interrupt(cmd.Process)
	}
	cmd.WaitDelay = interruptGrace

	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	return cmd
}

// exitCode extracts the exit status of a failed command.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return unknownExitCode
}
