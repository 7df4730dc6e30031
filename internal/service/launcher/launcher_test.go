package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/KazimiOrg/telemetry/internal/domain/release"
	"github.com/KazimiOrg/telemetry/internal/toolchain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errCrashed = errors.New("exit status 101")

// fakeProcess runs until its context is cancelled or it is told to exit.
type fakeProcess struct {
	ctx  context.Context
	exit chan error
}

func (p *fakeProcess) Wait() error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case err := <-p.exit:
		return err
	}
}

// fakeStarter records launches and hands out fake processes.
type fakeStarter struct {
	mu       sync.Mutex
	launches []string
	filters  []string
	started  chan *fakeProcess
	startErr error
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{started: make(chan *fakeProcess, 16)}
}

func (s *fakeStarter) Start(ctx context.Context, configPath, logFilter string) (toolchain.Process, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}

	s.mu.Lock()
	s.launches = append(s.launches, configPath)
	s.filters = append(s.filters, logFilter)
	s.mu.Unlock()

	proc := &fakeProcess{ctx: ctx, exit: make(chan error, 1)}
	s.started <- proc

	return proc, nil
}

func (s *fakeStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.launches)
}

func newTestLauncher(s *fakeStarter) *launcher {
	return &launcher{
		starter:   s,
		lookPath:  func(file string) (string, error) { return "/usr/bin/" + file, nil },
		driver:    "cargo",
		logFilter: "debug",
		debounce:  20 * time.Millisecond,
	}
}

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func waitStarted(t *testing.T, s *fakeStarter) *fakeProcess {
	t.Helper()

	select {
	case proc := <-s.started:
		return proc
	case <-time.After(5 * time.Second):
		t.Fatal("server was not started")
		return nil
	}
}

// TestRun_MissingConfig never launches the server.
func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	s := newFakeStarter()
	err := newTestLauncher(s).run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), false)

	var notFound *release.ConfigNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, release.ExitConfigNotFound, release.ExitCode(err))
	require.Zero(t, s.count())
}

// TestRun_MissingDriver reports an environment error before launching.
func TestRun_MissingDriver(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "dev.yaml")
	writeConfig(t, configPath, "listen: localhost:4318\n")

	s := newFakeStarter()
	l := newTestLauncher(s)
	l.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	err := l.run(context.Background(), configPath, false)

	var envErr *release.EnvironmentError
	require.ErrorAs(t, err, &envErr)
	require.Equal(t, []string{"cargo"}, envErr.Missing)
	require.Zero(t, s.count())
}

// TestRun_ServerExitCodes distinguishes crashes, clean exits and operator interrupts.
func TestRun_ServerExitCodes(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "dev.yaml")
	writeConfig(t, configPath, "listen: localhost:4318\n")

	// Crash.
	s := newFakeStarter()
	done := make(chan error, 1)

	go func() {
		done <- newTestLauncher(s).run(context.Background(), configPath, false)
	}()

	waitStarted(t, s).exit <- errCrashed
	require.ErrorIs(t, <-done, errCrashed)
	require.Equal(t, []string{configPath}, s.launches)
	require.Equal(t, []string{"debug"}, s.filters)

	// Clean exit.
	go func() {
		done <- newTestLauncher(s).run(context.Background(), configPath, false)
	}()

	waitStarted(t, s).exit <- nil
	require.NoError(t, <-done)

	// Interrupt.
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		done <- newTestLauncher(s).run(ctx, configPath, false)
	}()

	waitStarted(t, s)
	cancel()
	require.NoError(t, <-done)
}

// TestRun_StartFailure surfaces launch errors.
func TestRun_StartFailure(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "dev.yaml")
	writeConfig(t, configPath, "listen: localhost:4318\n")

	s := newFakeStarter()
	s.startErr = errCrashed

	require.ErrorIs(t, newTestLauncher(s).run(context.Background(), configPath, true), errCrashed)
}

// TestWatch_RestartsOnChange restarts once per settled change and stops on cancel.
func TestWatch_RestartsOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "dev.yaml")
	writeConfig(t, configPath, "listen: localhost:4318\n")

	s := newFakeStarter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- newTestLauncher(s).run(ctx, configPath, true)
	}()

	first := waitStarted(t, s)

	// Unrelated files in the same directory are ignored.
	writeConfig(t, filepath.Join(dir, "other.yaml"), "x: 1\n")

	// Several quick writes count as one change.
	writeConfig(t, configPath, "listen: localhost:4319\n")
	writeConfig(t, configPath, "listen: localhost:4320\n")

	second := waitStarted(t, s)
	require.Error(t, first.ctx.Err(), "previous instance must be stopped")
	require.NoError(t, second.ctx.Err())

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 2, s.count())
}

// TestWatch_ServerExit ends watching when the server dies on its own.
func TestWatch_ServerExit(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "dev.yaml")
	writeConfig(t, configPath, "listen: localhost:4318\n")

	s := newFakeStarter()
	done := make(chan error, 1)

	go func() {
		done <- newTestLauncher(s).run(context.Background(), configPath, true)
	}()

	waitStarted(t, s).exit <- errCrashed
	require.ErrorIs(t, <-done, errCrashed)
}
